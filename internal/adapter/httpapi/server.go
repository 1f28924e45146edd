package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"a11y-agent/internal/application/port/input"
	"a11y-agent/internal/application/port/output"
	"a11y-agent/internal/domain/entity"
	"a11y-agent/internal/infrastructure/browser/a11y"
	rodadapter "a11y-agent/internal/infrastructure/browser/rod"
	"a11y-agent/internal/usecase/observe"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httplog"
)

const (
	maxBodyBytes    = 1 << 20
	shutdownTimeout = 10 * time.Second
)

// ElementPerformer runs a method on an element id of a known tree.
type ElementPerformer interface {
	PerformByID(ctx context.Context, tree *entity.CombinedTree, id entity.EncodedID, method string, args []string) error
}

type Deps struct {
	Browser   output.BrowserPort
	Page      output.AccessibilityPort
	Observer  input.Observer
	Actor     input.Actor
	Performer ElementPerformer
}

type Handler struct {
	deps   Deps
	logger output.LoggerPort
}

func NewHandler(deps Deps, logger output.LoggerPort) *Handler {
	return &Handler{deps: deps, logger: logger.WithField("component", "http")}
}

// Router mounts the API on a chi router with request logging.
func (h *Handler) Router(debug bool) http.Handler {
	level := "info"
	if debug {
		level = "debug"
	}
	reqLogger := httplog.NewLogger("a11y-agent", httplog.Options{
		JSON:     true,
		LogLevel: level,
		Concise:  true,
	})

	r := chi.NewRouter()
	r.Use(httplog.RequestLogger(reqLogger))
	r.Use(chimw.Recoverer)

	r.Get("/healthz", h.health)
	r.Post("/navigate", h.navigate)
	r.Get("/tree", h.tree)
	r.Post("/observe", h.observe)
	r.Post("/act", h.act)
	r.Post("/perform", h.perform)
	return r
}

type errorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

var errBadRequest = errors.New("bad request")

func statusOf(err error) int {
	var (
		notFound    *a11y.ElementNotFoundError
		unresolved  *a11y.XPathResolutionError
		unsupported *a11y.UnsupportedMethodError
	)
	switch {
	case errors.As(err, &notFound), errors.As(err, &unresolved), errors.Is(err, observe.ErrUnknownElement):
		return http.StatusNotFound
	case errors.As(err, &unsupported),
		errors.Is(err, errBadRequest),
		errors.Is(err, entity.ErrMalformedEncodedID),
		errors.Is(err, observe.ErrEmptyInstruction),
		errors.Is(err, rodadapter.ErrInvalidURL):
		return http.StatusBadRequest
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusOf(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("Request failed", "path", r.URL.Path, "error", err)
	} else {
		h.logger.Warn("Request rejected", "path", r.URL.Path, "status", status, "error", err)
	}
	writeJSON(w, status, errorResponse{Code: status, Message: err.Error()})
}

func decode(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return nil
}

func (h *Handler) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type navigateRequest struct {
	URL string `json:"url"`
}

func (h *Handler) navigate(w http.ResponseWriter, r *http.Request) {
	var req navigateRequest
	if err := decode(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.deps.Browser.Navigate(r.Context(), req.URL); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"url": h.deps.Browser.CurrentURL()})
}

func (h *Handler) tree(w http.ResponseWriter, r *http.Request) {
	tree, err := h.deps.Page.CombinedTree(r.Context(), r.URL.Query().Get("focus"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tree)
}

type observeRequest struct {
	Instruction  string `json:"instruction"`
	FocusXPath   string `json:"focus_xpath"`
	ReturnAction bool   `json:"return_action"`
}

type observeResponse struct {
	Elements []entity.ObservedElement `json:"elements"`
}

func (h *Handler) observe(w http.ResponseWriter, r *http.Request) {
	var req observeRequest
	if err := decode(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	elements, err := h.deps.Observer.Observe(r.Context(), input.ObserveRequest{
		Instruction:  req.Instruction,
		FocusXPath:   req.FocusXPath,
		ReturnAction: req.ReturnAction,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if elements == nil {
		elements = []entity.ObservedElement{}
	}
	writeJSON(w, http.StatusOK, observeResponse{Elements: elements})
}

type actRequest struct {
	Instruction string `json:"instruction"`
	FocusXPath  string `json:"focus_xpath"`
}

func (h *Handler) act(w http.ResponseWriter, r *http.Request) {
	var req actRequest
	if err := decode(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	res, err := h.deps.Actor.Act(r.Context(), input.ActRequest{
		Instruction: req.Instruction,
		FocusXPath:  req.FocusXPath,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type performRequest struct {
	ElementID string   `json:"element_id"`
	Method    string   `json:"method"`
	Arguments []string `json:"arguments"`
}

func (h *Handler) perform(w http.ResponseWriter, r *http.Request) {
	var req performRequest
	if err := decode(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	id := entity.EncodedID(strings.TrimSpace(req.ElementID))
	if _, _, err := entity.ParseEncodedID(string(id)); err != nil {
		h.fail(w, r, err)
		return
	}

	tree, err := h.deps.Page.CombinedTree(r.Context(), "")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.deps.Performer.PerformByID(r.Context(), tree, id, req.Method, req.Arguments); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "element_id": id, "method": req.Method})
}

// Server serves the API until its context is canceled.
type Server struct {
	srv    *http.Server
	logger output.LoggerPort
}

func NewServer(addr string, handler http.Handler, logger output.LoggerPort) *Server {
	return &Server{
		srv: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		},
		logger: logger,
	}
}

func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP server listening", "addr", s.srv.Addr)
		errCh <- s.srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	s.logger.Info("HTTP server shutting down")
	return s.srv.Shutdown(shutdownCtx)
}

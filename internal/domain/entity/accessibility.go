package entity

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// EncodedID identifies a DOM node across every frame of a page as
// "frameOrdinal-backendNodeId".
type EncodedID string

var ErrMalformedEncodedID = errors.New("malformed encoded id")

func NewEncodedID(ordinal, backendID int) EncodedID {
	return EncodedID(strconv.Itoa(ordinal) + "-" + strconv.Itoa(backendID))
}

func ParseEncodedID(s string) (ordinal, backendID int, err error) {
	head, tail, ok := strings.Cut(strings.TrimSpace(s), "-")
	if !ok {
		return 0, 0, fmt.Errorf("%w: %q", ErrMalformedEncodedID, s)
	}
	ordinal, err = strconv.Atoi(head)
	if err != nil || ordinal < 0 {
		return 0, 0, fmt.Errorf("%w: %q", ErrMalformedEncodedID, s)
	}
	backendID, err = strconv.Atoi(tail)
	if err != nil || backendID <= 0 {
		return 0, 0, fmt.Errorf("%w: %q", ErrMalformedEncodedID, s)
	}
	return ordinal, backendID, nil
}

func (id EncodedID) String() string {
	return string(id)
}

// Ordinal returns the frame ordinal part, or -1 when the id is malformed.
func (id EncodedID) Ordinal() int {
	ordinal, _, err := ParseEncodedID(string(id))
	if err != nil {
		return -1
	}
	return ordinal
}

// AccessibilityNode is one semantic node of a cleaned tree.
type AccessibilityNode struct {
	NodeID      string
	Role        string
	Name        string
	Description string
	Value       string
	BackendID   int
	EncodedID   EncodedID
	Children    []*AccessibilityNode
}

// Label is the identifier printed in the serialized outline.
func (n *AccessibilityNode) Label() string {
	if n.EncodedID != "" {
		return string(n.EncodedID)
	}
	return n.NodeID
}

type NodeSummary struct {
	Role string `json:"role"`
	Name string `json:"name,omitempty"`
}

// TreeResult is the cleaned tree of a single frame.
type TreeResult struct {
	Tree       []*AccessibilityNode
	Simplified string
	XPaths     map[EncodedID]string
	URLs       map[EncodedID]string
	Nodes      map[EncodedID]NodeSummary
}

// FrameSnapshot is what the stitcher collects per extracted frame.
// FrameXPath is the owner iframe's path in the parent document; Prefix is
// the full path of the owner from the main document.
type FrameSnapshot struct {
	Ordinal        int
	FrameURL       string
	Tree           string
	XPaths         map[EncodedID]string
	URLs           map[EncodedID]string
	Nodes          map[EncodedID]NodeSummary
	FrameXPath     string
	Prefix         string
	OwnerBackendID int
	ParentOrdinal  int
}

// IsMain reports whether the snapshot belongs to the top-level document.
func (s *FrameSnapshot) IsMain() bool {
	return s.OwnerBackendID == 0
}

// CombinedTree spans every frame reachable from the main document.
type CombinedTree struct {
	Tree   string                    `json:"tree"`
	XPaths map[EncodedID]string      `json:"xpaths"`
	URLs   map[EncodedID]string      `json:"urls"`
	Nodes  map[EncodedID]NodeSummary `json:"-"`
}

func (t *CombinedTree) XPath(id EncodedID) (string, bool) {
	if t == nil {
		return "", false
	}
	xp, ok := t.XPaths[id]
	return xp, ok
}

const XPathPrefix = "xpath="

// ObservedElement is the caller-facing shape returned by observe.
type ObservedElement struct {
	ElementID   EncodedID `json:"elementId"`
	Selector    string    `json:"selector"`
	Role        string    `json:"role,omitempty"`
	Name        string    `json:"name,omitempty"`
	Description string    `json:"description"`
	Method      string    `json:"method,omitempty"`
	Arguments   []string  `json:"arguments,omitempty"`
}

// XPath returns the selector without its "xpath=" prefix.
func (e ObservedElement) XPath() string {
	return strings.TrimPrefix(e.Selector, XPathPrefix)
}

// Action is a primitive browser action against an absolute XPath.
type Action struct {
	Method    string   `json:"method"`
	Arguments []string `json:"arguments,omitempty"`
	Selector  string   `json:"selector"`
}

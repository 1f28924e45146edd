package a11y

import (
	"errors"
	"fmt"
)

var (
	ErrTooManyFrames        = errors.New("too many frames for encoded ids")
	ErrContentFrameNotFound = errors.New("content frame not found")
	ErrPageClosed           = errors.New("page is closed")
)

// FrameResolutionError means the protocol frame id of a frame could not be
// determined, usually because it detached mid-call.
type FrameResolutionError struct {
	URL string
	Err error
}

func (e *FrameResolutionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("resolve frame %q: %v", e.URL, e.Err)
	}
	return fmt.Sprintf("resolve frame %q", e.URL)
}

func (e *FrameResolutionError) Unwrap() error { return e.Err }

// XPathResolutionError is returned when a path neither resolves in the
// current document nor crosses an iframe boundary.
type XPathResolutionError struct {
	XPath string
}

func (e *XPathResolutionError) Error() string {
	return fmt.Sprintf("xpath %q does not resolve", e.XPath)
}

type ElementNotFoundError struct {
	XPath string
	Err   error
}

func (e *ElementNotFoundError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("element not found: %s: %v", e.XPath, e.Err)
	}
	return fmt.Sprintf("element not found: %s", e.XPath)
}

func (e *ElementNotFoundError) Unwrap() error { return e.Err }

type UnsupportedMethodError struct {
	Method string
}

func (e *UnsupportedMethodError) Error() string {
	return fmt.Sprintf("method %q not supported", e.Method)
}

// ActionError wraps a failure of a supported action.
type ActionError struct {
	Method string
	XPath  string
	Err    error
}

func (e *ActionError) Error() string {
	return fmt.Sprintf("%s on %s failed: %v", e.Method, e.XPath, e.Err)
}

func (e *ActionError) Unwrap() error { return e.Err }

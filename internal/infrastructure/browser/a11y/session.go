package a11y

import (
	"github.com/go-rod/rod/lib/proto"
)

// frameSession says how to reach one frame over CDP.
//
// Same-process child frames are addressed through the session of their
// host document plus frameID. The main frame and OOPIFs use their own
// session and leave frameID empty. The two shapes must never be mixed.
type frameSession struct {
	client  proto.Client
	frameID proto.PageFrameID
	ordinal int
	oopif   bool
}

func (s frameSession) viaHost() bool {
	return s.frameID != ""
}

// enableDomains turns on DOM and Accessibility for the session and returns
// the matching cleanup.
func enableDomains(c proto.Client) func() {
	_ = proto.DOMEnable{}.Call(c)
	_ = proto.AccessibilityEnable{}.Call(c)
	return func() {
		_ = proto.AccessibilityDisable{}.Call(c)
		_ = proto.DOMDisable{}.Call(c)
	}
}

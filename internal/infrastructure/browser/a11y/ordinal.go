package a11y

import (
	"fmt"
	"sync"

	"github.com/go-rod/rod/lib/proto"
)

// MaxFrames bounds the ordinal part of an encoded id to two digits.
const MaxFrames = 100

// OrdinalRegistry hands out small per-page frame numbers in first-seen
// order. The main frame is always 0.
type OrdinalRegistry struct {
	mu        sync.Mutex
	byFrame   map[proto.PageFrameID]int
	byOrdinal map[int]proto.PageFrameID
}

func NewOrdinalRegistry() *OrdinalRegistry {
	r := &OrdinalRegistry{}
	r.Reset()
	return r
}

// Ordinal returns the ordinal of the frame, assigning the next free one on
// first sight. The empty frame id denotes the main frame.
func (r *OrdinalRegistry) Ordinal(frameID proto.PageFrameID) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if ord, ok := r.byFrame[frameID]; ok {
		return ord, nil
	}
	if len(r.byFrame) >= MaxFrames {
		return 0, fmt.Errorf("%w: frame %s", ErrTooManyFrames, frameID)
	}

	ord := len(r.byFrame)
	r.byFrame[frameID] = ord
	r.byOrdinal[ord] = frameID
	return ord, nil
}

// Lookup returns the ordinal without assigning one.
func (r *OrdinalRegistry) Lookup(frameID proto.PageFrameID) (int, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ord, ok := r.byFrame[frameID]
	return ord, ok
}

// Frame is the reverse mapping, kept for debugging.
func (r *OrdinalRegistry) Frame(ordinal int) (proto.PageFrameID, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.byOrdinal[ordinal]
	return id, ok
}

func (r *OrdinalRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byFrame)
}

// Reset forgets every frame except the main one.
func (r *OrdinalRegistry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byFrame = map[proto.PageFrameID]int{mainFrameKey: 0}
	r.byOrdinal = map[int]proto.PageFrameID{0: mainFrameKey}
}

const mainFrameKey proto.PageFrameID = ""

// tagCache memoizes lowercased DOM node names.
type tagCache struct {
	mu    sync.Mutex
	names map[string]string
}

func newTagCache() *tagCache {
	return &tagCache{names: make(map[string]string)}
}

func (c *tagCache) lower(name string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if v, ok := c.names[name]; ok {
		return v
	}
	v := toLowerASCII(name)
	c.names[name] = v
	return v
}

func toLowerASCII(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}

package a11y

import (
	"fmt"
	"sync"
	"testing"

	"github.com/go-rod/rod/lib/proto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrdinalRegistry_MainFrameIsZero(t *testing.T) {
	r := NewOrdinalRegistry()

	ord, err := r.Ordinal("")
	require.NoError(t, err)
	assert.Equal(t, 0, ord)
	assert.Equal(t, 1, r.Len())
}

func TestOrdinalRegistry_AssignsInFirstSeenOrder(t *testing.T) {
	r := NewOrdinalRegistry()

	tests := []struct {
		frame proto.PageFrameID
		want  int
	}{
		{"F-A", 1},
		{"F-B", 2},
		{"F-A", 1},
		{"", 0},
		{"F-C", 3},
		{"F-B", 2},
	}

	for _, tt := range tests {
		ord, err := r.Ordinal(tt.frame)
		require.NoError(t, err)
		assert.Equal(t, tt.want, ord, "frame %q", tt.frame)
	}
	assert.Equal(t, 4, r.Len())
}

func TestOrdinalRegistry_LookupDoesNotAssign(t *testing.T) {
	r := NewOrdinalRegistry()

	_, ok := r.Lookup("F-A")
	assert.False(t, ok)
	assert.Equal(t, 1, r.Len())

	_, err := r.Ordinal("F-A")
	require.NoError(t, err)
	ord, ok := r.Lookup("F-A")
	assert.True(t, ok)
	assert.Equal(t, 1, ord)
}

func TestOrdinalRegistry_Capacity(t *testing.T) {
	r := NewOrdinalRegistry()

	for i := 1; i < MaxFrames; i++ {
		ord, err := r.Ordinal(proto.PageFrameID(fmt.Sprintf("F-%d", i)))
		require.NoError(t, err)
		require.Equal(t, i, ord)
	}

	_, err := r.Ordinal("one-too-many")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTooManyFrames)

	ord, err := r.Ordinal("F-42")
	require.NoError(t, err)
	assert.Equal(t, 42, ord)
}

func TestOrdinalRegistry_ReverseMapping(t *testing.T) {
	r := NewOrdinalRegistry()
	_, _ = r.Ordinal("F-A")

	id, ok := r.Frame(1)
	assert.True(t, ok)
	assert.Equal(t, proto.PageFrameID("F-A"), id)

	_, ok = r.Frame(7)
	assert.False(t, ok)
}

func TestOrdinalRegistry_Reset(t *testing.T) {
	r := NewOrdinalRegistry()
	_, _ = r.Ordinal("F-A")
	_, _ = r.Ordinal("F-B")

	r.Reset()

	assert.Equal(t, 1, r.Len())
	ord, err := r.Ordinal("F-B")
	require.NoError(t, err)
	assert.Equal(t, 1, ord)
}

func TestOrdinalRegistry_ConcurrentCallersAgree(t *testing.T) {
	r := NewOrdinalRegistry()

	var wg sync.WaitGroup
	results := make([]int, 32)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], _ = r.Ordinal("F-shared")
		}(i)
	}
	wg.Wait()

	for _, got := range results {
		assert.Equal(t, 1, got)
	}
	assert.Equal(t, 2, r.Len())
}

func TestTagCache_Lower(t *testing.T) {
	c := newTagCache()

	assert.Equal(t, "div", c.lower("DIV"))
	assert.Equal(t, "div", c.lower("DIV"))
	assert.Equal(t, "foreignobject", c.lower("foreignObject"))
	assert.Equal(t, "#text", c.lower("#text"))
}

package dialog

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHistoryGoBackReversesAddOrder(t *testing.T) {
	for _, n := range []int{1, 2, 5, 12} {
		t.Run(fmt.Sprintf("n=%d", n), func(t *testing.T) {
			var h History
			texts := make([]string, n)
			for i := range texts {
				texts[i] = fmt.Sprintf("page %d", i)
				h.Add(texts[i], true)
			}

			msg, _, ok := h.Current()
			require.True(t, ok)
			got := []string{msg}
			for h.HasPrev() {
				require.True(t, h.GoBack())
				msg, _, _ = h.Current()
				got = append(got, msg)
			}

			want := make([]string, n)
			for i, s := range texts {
				want[n-1-i] = s
			}
			assert.Equal(t, want, got)
			assert.False(t, h.GoBack(), "no previous page once at the head")
			msg, _, _ = h.Current()
			assert.Equal(t, texts[0], msg)
		})
	}
}

func TestHistoryForwardAfterBack(t *testing.T) {
	var h History
	h.Add("a", true)
	h.Add("b", false)

	require.True(t, h.GoBack())
	assert.True(t, h.HasNext())
	require.True(t, h.GoForward())

	msg, hasNext, _ := h.Current()
	assert.Equal(t, "b", msg)
	assert.False(t, hasNext)
	assert.False(t, h.HasNext())
	assert.False(t, h.GoForward())
}

func TestHistoryClearResetsQueries(t *testing.T) {
	var h History
	h.Add("a", true)
	h.Add("b", true)
	h.GoBack()
	h.Clear()

	assert.False(t, h.HasPrev())
	assert.False(t, h.HasNext())
	assert.False(t, h.HasPrevOrIsFirst())
	_, _, ok := h.Current()
	assert.False(t, ok)
	assert.Zero(t, h.Len())
}

func TestHistoryHasPrevOrIsFirst(t *testing.T) {
	var h History
	assert.False(t, h.HasPrevOrIsFirst())

	h.Add("first", false)
	assert.True(t, h.HasPrevOrIsFirst())
	assert.False(t, h.HasPrev())

	h.Add("second", false)
	assert.True(t, h.HasPrevOrIsFirst())
	assert.True(t, h.HasPrev())
	assert.Equal(t, 2, h.Len())
}

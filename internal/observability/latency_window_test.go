package observability

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLatencyWindowSnapshot(t *testing.T) {
	w := newLatencyWindow(8)
	w.Observe("script_stretch", 5)
	w.Observe("script_stretch", 7)
	w.Observe("script_stretch", 9)
	w.Observe("", 1)
	w.Observe("yes_no", -1)
	w.ObserveIndicator("outbound_dropped")
	w.ObserveIndicator("outbound_dropped")
	w.ObserveIndicator("  ")

	snap := w.Snapshot()
	assert.Equal(t, 8, snap.Capacity)
	require.Len(t, snap.Stages, 1)

	s := snap.Stages[0]
	assert.Equal(t, "script_stretch", s.Key)
	assert.Equal(t, 3, s.Count)
	assert.Equal(t, 9.0, s.LastMS)
	assert.Equal(t, 7.0, s.MeanMS)
	assert.Equal(t, 7.0, s.P50MS)
	assert.Equal(t, 9.0, s.P95MS)
	assert.Equal(t, 9.0, s.MaxMS)
	assert.Equal(t, 50.0, s.BudgetMS)

	assert.Equal(t, []LatencyCounter{{Name: "outbound_dropped", Count: 2}}, snap.Counters)
}

func TestLatencyWindowWrapsRing(t *testing.T) {
	w := newLatencyWindow(2)
	for _, v := range []float64{100, 1, 2} {
		w.Observe("menu", v)
	}
	snap := w.Snapshot()
	require.Len(t, snap.Stages, 1)
	st := snap.Stages[0]
	assert.Equal(t, 2, st.Count)
	assert.Equal(t, 1.5, st.MeanMS)
	assert.Equal(t, 2.0, st.LastMS)
	assert.Equal(t, 2.0, st.MaxMS)
	assert.Zero(t, st.BudgetMS)
}

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics
	m.ConversationStarted()
	m.ConversationEnded("completed")
	m.ObservePrompt("say")
	m.ObserveResponse("say", "resumed")
	m.ObserveResponseLatency("say", time.Millisecond)
	m.ObserveScriptStretch(time.Millisecond)
	m.SessionEvent("created")
	m.WSMessage("in", "binary")
	m.Outbound("sent")
	assert.Empty(t, m.SnapshotLatency().Stages)
}

package observability

import (
	"maps"
	"math"
	"slices"
	"strings"
	"sync"
	"time"
)

// scriptStretchBudgetMS is the p95 a script stretch should stay under.
// Response latencies are player think time and carry no budget.
const scriptStretchBudgetMS = 50

type LatencyStats struct {
	Key      string  `json:"key"`
	Count    int     `json:"count"`
	LastMS   float64 `json:"last_ms"`
	MeanMS   float64 `json:"mean_ms"`
	P50MS    float64 `json:"p50_ms"`
	P95MS    float64 `json:"p95_ms"`
	MaxMS    float64 `json:"max_ms"`
	BudgetMS float64 `json:"budget_ms,omitempty"`
}

type LatencyCounter struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

type LatencySnapshot struct {
	GeneratedAt time.Time        `json:"generated_at"`
	Capacity    int              `json:"capacity"`
	Stages      []LatencyStats   `json:"stages"`
	Counters    []LatencyCounter `json:"counters,omitempty"`
}

// sampleRing holds the newest cap(buf) samples of one key.
type sampleRing struct {
	buf  []float64
	pos  int
	full bool
}

func (r *sampleRing) push(ms float64) {
	r.buf[r.pos] = ms
	r.pos = (r.pos + 1) % len(r.buf)
	if r.pos == 0 {
		r.full = true
	}
}

func (r *sampleRing) latest() float64 {
	return r.buf[(r.pos+len(r.buf)-1)%len(r.buf)]
}

func (r *sampleRing) sorted() []float64 {
	n := r.pos
	if r.full {
		n = len(r.buf)
	}
	out := slices.Clone(r.buf[:n])
	slices.Sort(out)
	return out
}

// latencyWindow tracks per-key rings plus plain event counters.
type latencyWindow struct {
	mu       sync.Mutex
	capacity int
	rings    map[string]*sampleRing
	counters map[string]int
}

func newLatencyWindow(capacity int) *latencyWindow {
	if capacity < 1 {
		capacity = 256
	}
	return &latencyWindow{
		capacity: capacity,
		rings:    map[string]*sampleRing{},
		counters: map[string]int{},
	}
}

func (w *latencyWindow) Observe(key string, ms float64) {
	if key == "" || ms < 0 {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	r := w.rings[key]
	if r == nil {
		r = &sampleRing{buf: make([]float64, w.capacity)}
		w.rings[key] = r
	}
	r.push(ms)
}

func (w *latencyWindow) ObserveIndicator(name string) {
	if name = strings.TrimSpace(name); name != "" {
		w.mu.Lock()
		w.counters[name]++
		w.mu.Unlock()
	}
}

func (w *latencyWindow) Snapshot() LatencySnapshot {
	w.mu.Lock()
	defer w.mu.Unlock()

	snap := LatencySnapshot{
		GeneratedAt: time.Now().UTC(),
		Capacity:    w.capacity,
		Stages:      make([]LatencyStats, 0, len(w.rings)),
	}
	for _, key := range slices.Sorted(maps.Keys(w.rings)) {
		r := w.rings[key]
		samples := r.sorted()
		if len(samples) == 0 {
			continue
		}
		var total float64
		for _, v := range samples {
			total += v
		}
		st := LatencyStats{
			Key:    key,
			Count:  len(samples),
			LastMS: twoPlaces(r.latest()),
			MeanMS: twoPlaces(total / float64(len(samples))),
			P50MS:  twoPlaces(nearestRank(samples, 50)),
			P95MS:  twoPlaces(nearestRank(samples, 95)),
			MaxMS:  twoPlaces(samples[len(samples)-1]),
		}
		if key == "script_stretch" {
			st.BudgetMS = scriptStretchBudgetMS
		}
		snap.Stages = append(snap.Stages, st)
	}
	for _, name := range slices.Sorted(maps.Keys(w.counters)) {
		snap.Counters = append(snap.Counters, LatencyCounter{Name: name, Count: w.counters[name]})
	}
	return snap
}

// nearestRank returns the pct-th percentile of an ascending, non-empty slice.
func nearestRank(sorted []float64, pct int) float64 {
	rank := (len(sorted)*pct + 99) / 100
	return sorted[max(rank, 1)-1]
}

func twoPlaces(v float64) float64 {
	return math.Round(v*100) / 100
}

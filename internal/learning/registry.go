package learning

import (
	"sort"
	"sync"
	"time"
)

// Entry is the per-instrument slot in the registry. Callers hold Lock for the
// whole read-modify-write of an iteration; the methods below assume it is held.
type Entry struct {
	mu       sync.Mutex
	pair     string
	params   Parameters
	records  []PredictionRecord
	horizons Horizons
}

func (e *Entry) Lock()   { e.mu.Lock() }
func (e *Entry) Unlock() { e.mu.Unlock() }

func (e *Entry) Pair() string { return e.pair }

// Parameters returns a pointer into the entry, valid while the lock is held.
func (e *Entry) Parameters() *Parameters { return &e.params }

// Learned reports whether any prediction has been graded yet.
func (e *Entry) Learned() bool {
	return e.params.UpStats.Total()+e.params.DownStats.Total() > 0
}

func (e *Entry) Record(r PredictionRecord) {
	e.records = append(e.records, r)
}

func (e *Entry) Evaluate(now time.Time, price float64) []Evaluation {
	var evals []Evaluation
	e.records, evals = evaluate(e.records, &e.params, now, price, e.horizons)
	return evals
}

func (e *Entry) Pending() int {
	n := 0
	for _, r := range e.records {
		if !r.Evaluated {
			n++
		}
	}
	return n
}

func (e *Entry) Records() []PredictionRecord {
	out := make([]PredictionRecord, len(e.records))
	copy(out, e.records)
	return out
}

// Registry indexes learning state by instrument id. Each entry is created with
// default parameters on first reference and lives for the process.
type Registry struct {
	mu       sync.RWMutex
	entries  map[string]*Entry
	step     float64
	horizons Horizons
}

func NewRegistry(step float64, horizons Horizons) *Registry {
	return &Registry{
		entries:  make(map[string]*Entry),
		step:     step,
		horizons: horizons.withDefaults(),
	}
}

func (r *Registry) Get(pair string) *Entry {
	r.mu.RLock()
	e, ok := r.entries[pair]
	r.mu.RUnlock()
	if ok {
		return e
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.entries[pair]; ok {
		return e
	}
	e = &Entry{pair: pair, params: NewParameters(r.step), horizons: r.horizons}
	r.entries[pair] = e
	return e
}

// Restore replaces an instrument's parameters, e.g. from a checkpoint.
func (r *Registry) Restore(pair string, params Parameters) {
	e := r.Get(pair)
	e.Lock()
	defer e.Unlock()
	if params.Step <= 0 {
		params.Step = r.step
	}
	e.params = params
}

// Snapshot copies every instrument's parameters.
func (r *Registry) Snapshot() map[string]Parameters {
	r.mu.RLock()
	entries := make([]*Entry, 0, len(r.entries))
	for _, e := range r.entries {
		entries = append(entries, e)
	}
	r.mu.RUnlock()

	out := make(map[string]Parameters, len(entries))
	for _, e := range entries {
		e.Lock()
		out[e.pair] = e.params
		e.Unlock()
	}
	return out
}

func (r *Registry) Pairs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	pairs := make([]string, 0, len(r.entries))
	for p := range r.entries {
		pairs = append(pairs, p)
	}
	sort.Strings(pairs)
	return pairs
}

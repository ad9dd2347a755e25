package learning

import "time"

const (
	DefaultEvaluationHorizon = 24 * time.Hour
	DefaultRetentionHorizon  = 7 * 24 * time.Hour
)

// PredictionRecord is one emitted directional call awaiting evaluation.
type PredictionRecord struct {
	Pair        string    `json:"pair"`
	CreatedAt   time.Time `json:"created_at"`
	Price       float64   `json:"price"`
	PredictedUp bool      `json:"predicted_up"`
	Evaluated   bool      `json:"evaluated"`
}

// Evaluation is the outcome of scoring one record against the realized price.
type Evaluation struct {
	Record   PredictionRecord `json:"record"`
	ActualUp bool             `json:"actual_up"`
	Correct  bool             `json:"correct"`
}

// Horizons bounds when records are evaluated and when they are dropped.
type Horizons struct {
	Evaluation time.Duration
	Retention  time.Duration
}

func (h Horizons) withDefaults() Horizons {
	if h.Evaluation <= 0 {
		h.Evaluation = DefaultEvaluationHorizon
	}
	if h.Retention <= 0 {
		h.Retention = DefaultRetentionHorizon
	}
	return h
}

// evaluate walks records oldest first, scoring every unevaluated record older
// than the evaluation horizon, then drops anything past retention.
func evaluate(records []PredictionRecord, params *Parameters, now time.Time, price float64, h Horizons) ([]PredictionRecord, []Evaluation) {
	var evals []Evaluation
	cutoff := now.Add(-h.Evaluation)
	for i := range records {
		r := &records[i]
		if r.Evaluated || !r.CreatedAt.Before(cutoff) {
			continue
		}
		actualUp := price > r.Price
		correct := r.PredictedUp == actualUp
		r.Evaluated = true
		params.AdjustWeights(r.PredictedUp, correct)
		evals = append(evals, Evaluation{Record: *r, ActualUp: actualUp, Correct: correct})
	}
	return purge(records, now.Add(-h.Retention)), evals
}

func purge(records []PredictionRecord, before time.Time) []PredictionRecord {
	kept := records[:0]
	for _, r := range records {
		if r.CreatedAt.Before(before) {
			continue
		}
		kept = append(kept, r)
	}
	// release the tail for GC
	for i := len(kept); i < len(records); i++ {
		records[i] = PredictionRecord{}
	}
	return kept
}

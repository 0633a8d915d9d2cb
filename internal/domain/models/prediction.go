package models

import "time"

// PredictionState is the cached result of the last successful inference.
type PredictionState struct {
	PredictedValue *float64  `json:"predicted_value"`
	ComputedAt     time.Time `json:"computed_at"`
}

// HasValue reports whether an inference has ever succeeded.
func (s PredictionState) HasValue() bool { return s.PredictedValue != nil }

// FreshAt reports whether the state is still valid at now for the given interval.
func (s PredictionState) FreshAt(now time.Time, interval time.Duration) bool {
	if s.PredictedValue == nil {
		return false
	}
	return now.Sub(s.ComputedAt) <= interval
}

// Clone returns a deep copy so callers cannot mutate the cached value.
func (s PredictionState) Clone() PredictionState {
	out := PredictionState{ComputedAt: s.ComputedAt}
	if s.PredictedValue != nil {
		v := *s.PredictedValue
		out.PredictedValue = &v
	}
	return out
}

// PredictionResult is what the UI driver receives for a prediction request.
type PredictionResult struct {
	State    PredictionState `json:"state"`
	Fresh    bool            `json:"fresh"`
	Computed bool            `json:"computed"`
}

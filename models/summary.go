package models

import "time"

// Outcome classifies the terminal state of one model's reconciliation.
type Outcome string

const (
	// OutcomeSucceeded means the record was created or refreshed and rendered.
	OutcomeSucceeded Outcome = "succeeded"
	// OutcomeUnchanged means the remote snapshot was not newer; zero writes.
	OutcomeUnchanged Outcome = "unchanged"
	// OutcomeMissing means the hash lookup returned not-found upstream.
	OutcomeMissing Outcome = "missing"
	// OutcomeErrored means a file or transient error stopped this model.
	OutcomeErrored Outcome = "errored"
	// OutcomeSkipped means a selection filter excluded the model.
	OutcomeSkipped Outcome = "skipped"
)

// Result is the per-model outcome reported back to the scheduler.
type Result struct {
	File        ModelFile `json:"file"`
	Outcome     Outcome   `json:"outcome"`
	Err         error     `json:"-"`
	UsedNetwork bool      `json:"used_network"`
}

// BatchSummary aggregates per-model outcomes for one scheduler run.
type BatchSummary struct {
	Total     int           `json:"total" pretty:"label=Total"`
	Succeeded int           `json:"succeeded" pretty:"label=Succeeded,color=green"`
	Unchanged int           `json:"unchanged" pretty:"label=Unchanged"`
	Missing   int           `json:"missing" pretty:"label=Missing,color=yellow"`
	Errored   int           `json:"errored" pretty:"label=Errored,color=red"`
	Skipped   int           `json:"skipped" pretty:"label=Skipped"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
}

// Add folds a per-model result into the summary counters.
func (s *BatchSummary) Add(r Result) {
	s.Total++
	switch r.Outcome {
	case OutcomeSucceeded:
		s.Succeeded++
	case OutcomeUnchanged:
		s.Unchanged++
	case OutcomeMissing:
		s.Missing++
	case OutcomeErrored:
		s.Errored++
	case OutcomeSkipped:
		s.Skipped++
	}
}

// Failed reports whether any model errored during the batch.
func (s *BatchSummary) Failed() bool {
	return s.Errored > 0
}

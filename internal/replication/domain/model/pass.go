package model

import "time"

// Direction of a unidirectional sync run within a pass.
type Direction string

const (
	// DirectionForward copies primary -> replica.
	DirectionForward Direction = "forward"
	// DirectionReverse copies replica -> primary.
	DirectionReverse Direction = "reverse"
)

// Pass outcomes
const (
	OutcomeOK      = "ok"
	OutcomePartial = "partial"
	OutcomeSkipped = "skipped"
)

// Skip reasons
const (
	ReasonAlreadyRunning     = "sync already in progress"
	ReasonPrimaryUnavailable = "primary store unavailable"
	ReasonReplicaUnavailable = "replica store unavailable"
)

// CollectionCounts is the outcome of one unidirectional sync of a collection.
type CollectionCounts struct {
	Created int `json:"created"`
	Updated int `json:"updated"`
}

// CollectionResult records both directions for one collection.
type CollectionResult struct {
	Collection string           `json:"collection"`
	Forward    CollectionCounts `json:"forward"`
	Reverse    CollectionCounts `json:"reverse"`
	Error      string           `json:"error,omitempty"`
}

// PassError is a per-collection failure recorded in a pass or seed result.
type PassError struct {
	Collection string `json:"collection"`
	Message    string `json:"message"`
}

// PassResult summarizes one bidirectional pass. It is immutable once returned.
type PassResult struct {
	ID             string             `json:"id,omitempty"`
	Skipped        bool               `json:"skipped"`
	Reason         string             `json:"reason,omitempty"`
	StartedAt      time.Time          `json:"startedAt"`
	FinishedAt     time.Time          `json:"finishedAt"`
	Duration       time.Duration      `json:"durationNs"`
	CreatedForward int                `json:"createdForward"`
	UpdatedForward int                `json:"updatedForward"`
	CreatedReverse int                `json:"createdReverse"`
	UpdatedReverse int                `json:"updatedReverse"`
	Collections    []CollectionResult `json:"collections,omitempty"`
	Errors         []PassError        `json:"errors,omitempty"`
}

// SkippedPass builds the result returned when a pass does not run.
func SkippedPass(reason string) *PassResult {
	now := time.Now()
	return &PassResult{Skipped: true, Reason: reason, StartedAt: now, FinishedAt: now}
}

// Outcome classifies the pass for metrics and journaling.
func (p *PassResult) Outcome() string {
	switch {
	case p.Skipped:
		return OutcomeSkipped
	case len(p.Errors) > 0:
		return OutcomePartial
	default:
		return OutcomeOK
	}
}

// Moved is the total number of documents created or updated in either direction.
func (p *PassResult) Moved() int {
	return p.CreatedForward + p.UpdatedForward + p.CreatedReverse + p.UpdatedReverse
}

// SeedResult summarizes a catch-up run (primary -> replica only).
type SeedResult struct {
	ID                   string        `json:"id,omitempty"`
	Skipped              bool          `json:"skipped"`
	Reason               string        `json:"reason,omitempty"`
	StartedAt            time.Time     `json:"startedAt"`
	Duration             time.Duration `json:"durationNs"`
	CollectionsProcessed int           `json:"collectionsProcessed"`
	TotalSynced          int           `json:"totalSynced"`
	TotalSkipped         int           `json:"totalSkipped"`
	Errors               []PassError   `json:"errors,omitempty"`
}

// Status is the engine state exposed to the host.
type Status struct {
	IsRunning        bool        `json:"isRunning"`
	LastSyncTime     *time.Time  `json:"lastSyncTime"`
	PeriodicEnabled  bool        `json:"periodicEnabled"`
	IntervalMillis   int64       `json:"intervalMillis"`
	PrimaryAvailable bool        `json:"primaryAvailable"`
	ReplicaAvailable bool        `json:"replicaAvailable"`
	LastPass         *PassResult `json:"lastPass,omitempty"`
}

// Journal entry kinds
const (
	KindPass = "pass"
	KindSeed = "seed"
)

// JournalEntry is the compact record of a pass or seed kept in the pass journal.
type JournalEntry struct {
	ID             string    `json:"id"`
	Kind           string    `json:"kind"`
	Outcome        string    `json:"outcome"`
	Reason         string    `json:"reason,omitempty"`
	StartedAt      time.Time `json:"startedAt"`
	DurationMillis int64     `json:"durationMs"`
	CreatedForward int       `json:"createdForward"`
	UpdatedForward int       `json:"updatedForward"`
	CreatedReverse int       `json:"createdReverse"`
	UpdatedReverse int       `json:"updatedReverse"`
	ErrorCount     int       `json:"errorCount"`
}

// JournalEntryFromPass builds the journal record for a pass.
func JournalEntryFromPass(p *PassResult) JournalEntry {
	return JournalEntry{
		ID:             p.ID,
		Kind:           KindPass,
		Outcome:        p.Outcome(),
		Reason:         p.Reason,
		StartedAt:      p.StartedAt,
		DurationMillis: p.Duration.Milliseconds(),
		CreatedForward: p.CreatedForward,
		UpdatedForward: p.UpdatedForward,
		CreatedReverse: p.CreatedReverse,
		UpdatedReverse: p.UpdatedReverse,
		ErrorCount:     len(p.Errors),
	}
}

// Outcome classifies the seed the same way as a pass.
func (s *SeedResult) Outcome() string {
	switch {
	case s.Skipped:
		return OutcomeSkipped
	case len(s.Errors) > 0:
		return OutcomePartial
	default:
		return OutcomeOK
	}
}

// JournalEntryFromSeed builds the journal record for a seed. Seeded documents are
// reported as forward creations.
func JournalEntryFromSeed(s *SeedResult) JournalEntry {
	return JournalEntry{
		ID:             s.ID,
		Kind:           KindSeed,
		Outcome:        s.Outcome(),
		Reason:         s.Reason,
		StartedAt:      s.StartedAt,
		DurationMillis: s.Duration.Milliseconds(),
		CreatedForward: s.TotalSynced,
		ErrorCount:     len(s.Errors),
	}
}

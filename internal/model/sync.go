package model

import (
	"strconv"
	"time"
)

// SyncSource names one synchronized upstream.
type SyncSource string

const (
	SyncAgencies    SyncSource = "agencies"
	SyncPlum        SyncSource = "plum"
	SyncLegislators SyncSource = "legislators"
	SyncRegulations SyncSource = "regulations"
)

// SyncSources lists every source in the order a full refresh should run.
var SyncSources = []SyncSource{SyncAgencies, SyncPlum, SyncLegislators, SyncRegulations}

// SyncState is the state of one run.
type SyncState string

const (
	StateNotStarted        SyncState = "not_started"
	StateFetching          SyncState = "fetching"
	StateParsingAndMerging SyncState = "parsing_and_merging"
	StateCompleted         SyncState = "completed"
	StateFailed            SyncState = "failed"
)

// Active reports whether a run in this state holds the per-source slot.
func (s SyncState) Active() bool {
	return s == StateFetching || s == StateParsingAndMerging
}

// SyncStatistics summarizes one run.
type SyncStatistics struct {
	RunID             string     `json:"run_id"`
	Source            SyncSource `json:"source"`
	State             SyncState  `json:"state"`
	NoChange          bool       `json:"no_change"`
	Fetched           int        `json:"fetched"`
	Created           int        `json:"created"`
	Updated           int        `json:"updated"`
	Unchanged         int        `json:"unchanged"`
	Skipped           int        `json:"skipped"`
	Errors            int        `json:"errors"`
	ErrorSamples      []string   `json:"error_samples,omitempty"`
	LinkedAgencies    int        `json:"linked_agencies"`
	UnmatchedAgencies int        `json:"unmatched_agencies"`
	UnmatchedNames    []string   `json:"unmatched_names,omitempty"`
	PreviousMarker    string     `json:"previous_marker,omitempty"`
	Marker            string     `json:"marker,omitempty"`
	FailureReason     string     `json:"failure_reason,omitempty"`
	StartedAt         time.Time  `json:"started_at"`
	FinishedAt        time.Time  `json:"finished_at,omitzero"`
}

// Duration returns how long the run took, or zero while it is active.
func (s *SyncStatistics) Duration() time.Duration {
	if s.FinishedAt.IsZero() {
		return 0
	}
	return s.FinishedAt.Sub(s.StartedAt)
}

// SyncMarker is the persisted version token of a source.
type SyncMarker struct {
	Source    SyncSource
	Marker    string
	UpdatedAt time.Time
}

func itoa(n int64) string { return strconv.FormatInt(n, 10) }

package domain

import (
	"sort"
	"time"

	json "github.com/goccy/go-json"
)

// Phase is a pipeline stage. Transitions are monotonic; on resume the
// phase determines the entry point (spec §3 RunState invariant).
type Phase string

const (
	PhaseScanning      Phase = "scanning"
	PhaseClassifying   Phase = "classifying"
	PhaseReviewing     Phase = "reviewing"
	PhaseCreatingLabels Phase = "creating_labels"
	PhaseCreatingFilters Phase = "creating_filters"
	PhaseApplyingLabels Phase = "applying_labels"
	PhaseComplete       Phase = "complete"
)

// phaseOrder gives Phase.AtLeast a total order to check monotonicity against.
var phaseOrder = map[Phase]int{
	PhaseScanning:        0,
	PhaseClassifying:     1,
	PhaseReviewing:       2,
	PhaseCreatingLabels:  3,
	PhaseCreatingFilters: 4,
	PhaseApplyingLabels:  5,
	PhaseComplete:        6,
}

// AtLeast reports whether p has progressed to or past other.
func (p Phase) AtLeast(other Phase) bool {
	return phaseOrder[p] >= phaseOrder[other]
}

// ScanCheckpoint is the Scanner's opaque per-phase checkpoint (spec §4.2).
type ScanCheckpoint struct {
	PageToken       string   `json:"page_token"`
	FetchedCount    int      `json:"fetched_count"`
	LastMessageID   string   `json:"last_message_id"`
	FailedMessageIDs []string `json:"failed_message_ids,omitempty"`
	Done            bool     `json:"done"`
}

// RunState is the phase-aware checkpoint persisted across the whole run
// (spec §3/§4.10).
type RunState struct {
	RunID     string    `json:"run_id"`
	Phase     Phase     `json:"phase"`
	StartedAt time.Time `json:"started_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Scan ScanCheckpoint `json:"scan"`

	CreatedLabelIDs  map[string]string `json:"created_label_ids,omitempty"`  // path -> id
	CreatedFilterIDs []string          `json:"created_filter_ids,omitempty"` // filter ids created this run

	FailedMessageIDs []string `json:"failed_message_ids,omitempty"`

	MessageCount int `json:"message_count"`
	ClusterCount int `json:"cluster_count"`
}

// NewRunState starts a fresh run at the Scanning phase.
func NewRunState(runID string, now time.Time) *RunState {
	return &RunState{
		RunID:           runID,
		Phase:           PhaseScanning,
		StartedAt:       now,
		UpdatedAt:       now,
		CreatedLabelIDs: make(map[string]string),
	}
}

// Advance moves to a new phase, enforcing monotonicity (spec §3 invariant).
func (s *RunState) Advance(p Phase, now time.Time) {
	if phaseOrder[p] < phaseOrder[s.Phase] {
		return
	}
	s.Phase = p
	s.UpdatedAt = now
}

// ExclusionSet is the persistent set of cluster identity keys the user has
// permanently suppressed (spec §3).
type ExclusionSet struct {
	Keys map[string]struct{} `json:"-"`
}

// NewExclusionSet returns an empty set.
func NewExclusionSet() *ExclusionSet {
	return &ExclusionSet{Keys: make(map[string]struct{})}
}

// Contains reports whether the identity key is excluded.
func (e *ExclusionSet) Contains(key string) bool {
	_, ok := e.Keys[key]
	return ok
}

// Add inserts the identity key.
func (e *ExclusionSet) Add(key string) {
	e.Keys[key] = struct{}{}
}

// Remove deletes the identity key (used by the review loop's Undo to
// reopen a cluster that was just excluded).
func (e *ExclusionSet) Remove(key string) {
	delete(e.Keys, key)
}

// MarshalJSON serializes the set as a sorted array for a stable,
// human-diffable exclusions.json (spec §6).
func (e *ExclusionSet) MarshalJSON() ([]byte, error) {
	keys := make([]string, 0, len(e.Keys))
	for k := range e.Keys {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return json.Marshal(keys)
}

// UnmarshalJSON restores the set from a JSON array of identity keys.
func (e *ExclusionSet) UnmarshalJSON(data []byte) error {
	var keys []string
	if err := json.Unmarshal(data, &keys); err != nil {
		return err
	}
	e.Keys = make(map[string]struct{}, len(keys))
	for _, k := range keys {
		e.Keys[k] = struct{}{}
	}
	return nil
}

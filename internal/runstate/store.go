// Package runstate persists domain.RunState to state.json, the phase-aware
// checkpoint the pipeline consults on every resume (spec §4.10).
package runstate

import (
	"os"

	"github.com/google/uuid"

	"github.com/victor-bajanov/gmail-cleanup-automation/internal/domain"
	"github.com/victor-bajanov/gmail-cleanup-automation/pkg/apperr"
	"github.com/victor-bajanov/gmail-cleanup-automation/pkg/atomicfile"
)

// Store owns the on-disk state.json for one pipeline run.
type Store struct {
	Path string
}

// Load reads the persisted RunState, or nil if none exists yet (a fresh
// run starts at PhaseScanning via NewRunState).
func (s Store) Load() (*domain.RunState, error) {
	if !atomicfile.Exists(s.Path) {
		return nil, nil
	}
	var rs domain.RunState
	if err := atomicfile.ReadJSON(s.Path, &rs); err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, apperr.CorruptState(s.Path, err)
	}
	return &rs, nil
}

// Save atomically persists rs.
func (s Store) Save(rs *domain.RunState) error {
	if err := atomicfile.WriteJSON(s.Path, rs, 0o644); err != nil {
		return apperr.Internal("persist state.json", err)
	}
	return nil
}

// NewRunID generates a fresh run identifier (grounded on the teacher's
// domain package use of github.com/google/uuid for entity ids).
func NewRunID() string {
	return uuid.NewString()
}

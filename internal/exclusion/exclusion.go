// Package exclusion persists the ExclusionSet of permanently-suppressed
// cluster identity keys to exclusions.json (spec §3/§4.6 ExcludePermanent),
// using the same atomic temp-file-then-rename primitive every other
// persisted artefact in this pipeline goes through.
package exclusion

import (
	"os"

	"github.com/victor-bajanov/gmail-cleanup-automation/internal/domain"
	"github.com/victor-bajanov/gmail-cleanup-automation/pkg/apperr"
	"github.com/victor-bajanov/gmail-cleanup-automation/pkg/atomicfile"
)

// Store owns the on-disk exclusions.json for one pipeline run.
type Store struct {
	Path string
}

// Load reads the exclusion set, returning an empty set if the file does
// not exist yet (spec §6: exclusions.json is created on first exclusion).
func (s Store) Load() (*domain.ExclusionSet, error) {
	set := domain.NewExclusionSet()
	if !atomicfile.Exists(s.Path) {
		return set, nil
	}
	if err := atomicfile.ReadJSON(s.Path, set); err != nil {
		if os.IsNotExist(err) {
			return set, nil
		}
		return nil, apperr.CorruptState(s.Path, err)
	}
	return set, nil
}

// Save atomically persists the set (world-readable; exclusions carry no
// secrets, unlike token.json).
func (s Store) Save(set *domain.ExclusionSet) error {
	if err := atomicfile.WriteJSON(s.Path, set, 0o644); err != nil {
		return apperr.Internal("persist exclusions.json", err)
	}
	return nil
}

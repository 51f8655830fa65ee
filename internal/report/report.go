// Package report renders a human-readable run summary to report-<run_id>.md
// (spec §6 "Persistent state layout" — an external collaborator's
// artefact, so this renderer stays deliberately minimal).
package report

import (
	"fmt"
	"strings"

	"github.com/victor-bajanov/gmail-cleanup-automation/internal/apply"
	"github.com/victor-bajanov/gmail-cleanup-automation/internal/materialize"
)

// Summary is the data the renderer needs; the pipeline assembles it from
// RunState and the phase results.
type Summary struct {
	RunID           string
	MessageCount    int
	ClusterCount    int
	FailedMessageIDs []string
	MaterializeResults []materialize.Result
	ApplyOutcomes   []apply.Outcome
}

// Render produces the Markdown document (spec §6).
func Render(s Summary) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Run Report: %s\n\n", s.RunID)
	fmt.Fprintf(&b, "- Messages scanned: %d\n", s.MessageCount)
	fmt.Fprintf(&b, "- Clusters proposed: %d\n", s.ClusterCount)
	fmt.Fprintf(&b, "- Scan failures: %d\n\n", len(s.FailedMessageIDs))

	b.WriteString("## Filters\n\n")
	created, deleted, skipped := 0, 0, 0
	for _, r := range s.MaterializeResults {
		switch {
		case r.CreatedFilterID != "":
			created++
		case r.DeletedFilterID != "" && r.CreatedFilterID == "":
			deleted++
		case r.Skipped:
			skipped++
		}
	}
	fmt.Fprintf(&b, "- Created: %d\n", created)
	fmt.Fprintf(&b, "- Deleted: %d\n", deleted)
	fmt.Fprintf(&b, "- Skipped (already present / dry-run / keep): %d\n\n", skipped)

	b.WriteString("## Retroactive relabeling\n\n")
	succeeded, failed := 0, 0
	for _, o := range s.ApplyOutcomes {
		succeeded += len(o.SucceededIDs)
		failed += len(o.FailedIDs)
	}
	fmt.Fprintf(&b, "- Messages relabeled: %d\n", succeeded)
	fmt.Fprintf(&b, "- Messages failed: %d\n", failed)

	if len(s.FailedMessageIDs) > 0 {
		b.WriteString("\n## Failed message ids\n\n")
		for _, id := range s.FailedMessageIDs {
			fmt.Fprintf(&b, "- %s\n", id)
		}
	}

	return b.String()
}

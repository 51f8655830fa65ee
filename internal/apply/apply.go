// Package apply is the retroactive applier (spec §4.9): it relabels
// message members of Accept/UpdateExisting clusters in batches, so
// existing mail picks up the new rule without waiting for new mail to
// arrive and be matched by the freshly created filter.
package apply

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/victor-bajanov/gmail-cleanup-automation/internal/domain"
	"github.com/victor-bajanov/gmail-cleanup-automation/internal/gmailapi"
)

// maxBatchSize is the provider's batch_modify ceiling (spec §4.9 "up to
// 1000 per call").
const maxBatchSize = 1000

// Job is one cluster's retroactive relabel request.
type Job struct {
	ClusterKey string
	MessageIDs []string
	LabelID    string
	Archive    bool
}

// Outcome records per-job success/failure for RunState reporting.
type Outcome struct {
	ClusterKey    string
	SucceededIDs  []string
	FailedIDs     []string
}

// Applier issues batch_modify calls sequentially per job, chunking each
// job's message ids into batches of at most maxBatchSize.
type Applier struct {
	Client gmailapi.Client
	Log    zerolog.Logger
}

// Apply runs every job and returns per-job outcomes. Failed chunks are
// recorded, not retried across phase boundaries (spec §4.9).
func (a *Applier) Apply(ctx context.Context, jobs []Job) []Outcome {
	outcomes := make([]Outcome, 0, len(jobs))
	for _, job := range jobs {
		outcomes = append(outcomes, a.applyOne(ctx, job))
	}
	return outcomes
}

func (a *Applier) applyOne(ctx context.Context, job Job) Outcome {
	remove := []string{}
	if job.Archive {
		remove = []string{"INBOX"}
	}

	outcome := Outcome{ClusterKey: job.ClusterKey}
	for _, chunk := range chunk(job.MessageIDs, maxBatchSize) {
		if err := a.Client.BatchModify(ctx, chunk, []string{job.LabelID}, remove); err != nil {
			a.Log.Warn().Str("cluster", job.ClusterKey).Int("chunk_size", len(chunk)).Err(err).Msg("batch_modify failed")
			outcome.FailedIDs = append(outcome.FailedIDs, chunk...)
			continue
		}
		outcome.SucceededIDs = append(outcome.SucceededIDs, chunk...)
	}
	return outcome
}

func chunk(ids []string, size int) [][]string {
	if len(ids) == 0 {
		return nil
	}
	var out [][]string
	for i := 0; i < len(ids); i += size {
		end := i + size
		if end > len(ids) {
			end = len(ids)
		}
		out = append(out, ids[i:end])
	}
	return out
}

// JobsFromDecisions builds one Job per Accept/UpdateExisting decision
// whose cluster's members are known from the current run (spec §4.9).
func JobsFromDecisions(clusters []domain.Cluster, decisions map[string]domain.Decision, labelIDFor func(path string) string) []Job {
	var jobs []Job
	for _, c := range clusters {
		dec, ok := decisions[c.Identity.Key()]
		if !ok {
			continue
		}
		if dec.Kind != domain.DecisionAccept && dec.Kind != domain.DecisionUpdateExisting {
			continue
		}
		jobs = append(jobs, Job{
			ClusterKey: c.Identity.Key(),
			MessageIDs: c.MemberIDs,
			LabelID:    labelIDFor(dec.Label),
			Archive:    dec.Archive,
		})
	}
	return jobs
}

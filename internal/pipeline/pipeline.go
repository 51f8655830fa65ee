// Package pipeline orchestrates the full run: Scanner -> Classifier ->
// Clusterer -> Reconciler -> interactive review -> Label manager ->
// Filter materialiser -> Retroactive applier, dispatching to the phase
// recorded in RunState on resume (spec §3 control flow, §4.10).
package pipeline

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/victor-bajanov/gmail-cleanup-automation/internal/apply"
	"github.com/victor-bajanov/gmail-cleanup-automation/internal/classify"
	"github.com/victor-bajanov/gmail-cleanup-automation/internal/cluster"
	"github.com/victor-bajanov/gmail-cleanup-automation/internal/config"
	"github.com/victor-bajanov/gmail-cleanup-automation/internal/domain"
	"github.com/victor-bajanov/gmail-cleanup-automation/internal/exclusion"
	"github.com/victor-bajanov/gmail-cleanup-automation/internal/gmailapi"
	"github.com/victor-bajanov/gmail-cleanup-automation/internal/label"
	"github.com/victor-bajanov/gmail-cleanup-automation/internal/materialize"
	"github.com/victor-bajanov/gmail-cleanup-automation/internal/reconcile"
	"github.com/victor-bajanov/gmail-cleanup-automation/internal/report"
	"github.com/victor-bajanov/gmail-cleanup-automation/internal/review"
	"github.com/victor-bajanov/gmail-cleanup-automation/internal/runstate"
	"github.com/victor-bajanov/gmail-cleanup-automation/internal/scanner"
)

// Options captures the run flags (spec §6 "run" command surface).
type Options struct {
	DryRun            bool
	NoReview          bool
	LabelsOnly        bool
	FiltersOnly       bool
	Resume            bool
	IgnoreExclusions  bool
}

// Paths is the data directory layout (spec §6 "Persistent state layout").
type Paths struct {
	StatePath      string
	DecisionsPath  string
	ExclusionsPath string
	ReportDir      string
}

// Pipeline wires every phase's collaborators together.
type Pipeline struct {
	Client gmailapi.Client
	Config config.Config
	Paths  Paths
	Log    zerolog.Logger
	Prompt review.Prompter
}

// Run executes (or resumes) a full pipeline run and returns the run report
// summary.
func (p *Pipeline) Run(ctx context.Context, opts Options) (report.Summary, error) {
	stateStore := runstate.Store{Path: p.Paths.StatePath}
	decisionStore := review.Store{Path: p.Paths.DecisionsPath}
	exclStore := exclusion.Store{Path: p.Paths.ExclusionsPath}

	rs, err := stateStore.Load()
	if err != nil {
		return report.Summary{}, err
	}
	if rs == nil || !opts.Resume {
		rs = domain.NewRunState(runstate.NewRunID(), time.Now())
	}

	excl, err := exclStore.Load()
	if err != nil {
		return report.Summary{}, err
	}

	decisions, err := decisionStore.Load()
	if err != nil {
		return report.Summary{}, err
	}

	if opts.IgnoreExclusions {
		// Dropping the exclusion set alone isn't enough: a previously
		// excluded cluster's terminal ExcludePermanent decision (from
		// decisions.json) would still make review.Loop skip it on sight
		// (spec §8 S4's third run requires it to "appear again with prior
		// decision cleared").
		for key := range excl.Keys {
			delete(decisions, key)
		}
		excl = domain.NewExclusionSet()
	}

	labels := label.New(p.Client)
	labels.Seed(rs.CreatedLabelIDs)

	var messages []domain.MessageMetadata

	if !rs.Phase.AtLeast(domain.PhaseClassifying) {
		sc := &scanner.Scanner{
			Client: p.Client,
			Clock:  scanner.SystemClock{},
			Width:  p.Config.Scan.MaxConcurrentRequests,
			Log:    p.Log,
			OnCheckpoint: func(cp domain.ScanCheckpoint) {
				rs.Scan = cp
				_ = stateStore.Save(rs)
			},
		}
		var checkpoint *domain.ScanCheckpoint
		if rs.Scan.PageToken != "" || rs.Scan.Done {
			checkpoint = &rs.Scan
		}
		messages, err = sc.Scan(ctx, p.Config.Scan.PeriodDays, checkpoint)
		if err != nil {
			return report.Summary{}, err
		}
		rs.MessageCount = len(messages)
		rs.Advance(domain.PhaseClassifying, time.Now())
		if serr := stateStore.Save(rs); serr != nil {
			return report.Summary{}, serr
		}
	}

	classifications := make([]domain.Classification, len(messages))
	for i, m := range messages {
		classifications[i] = classify.Classify(m)
	}

	clusters := cluster.Cluster(messages, classifications, cluster.Config{
		MinEmailsForLabel: p.Config.Classification.MinimumEmailsForLabel,
	}, excl)
	rs.ClusterCount = len(clusters)

	serverFilters, err := reconcile.ListServerFilters(ctx, p.Client)
	if err != nil {
		return report.Summary{}, err
	}
	clusters = reconcile.Attach(clusters, serverFilters, func(path string) string { return path })

	if !rs.Phase.AtLeast(domain.PhaseReviewing) {
		rs.Advance(domain.PhaseReviewing, time.Now())
		if serr := stateStore.Save(rs); serr != nil {
			return report.Summary{}, serr
		}
	}

	if opts.NoReview {
		review.NonInteractiveAccept(clusters, decisions)
		if err := decisionStore.Save(decisions); err != nil {
			return report.Summary{}, err
		}
	} else {
		loop := &review.Loop{
			Clusters:   clusters,
			Decisions:  decisions,
			Exclusions: excl,
			Prompter:   p.Prompt,
			Store:      decisionStore,
			ExclStore:  exclStore,
		}
		if err := loop.Run(ctx); err != nil {
			return report.Summary{}, err
		}
	}

	rs.Advance(domain.PhaseCreatingLabels, time.Now())
	if serr := stateStore.Save(rs); serr != nil {
		return report.Summary{}, serr
	}

	plans, err := materialize.BuildPlans(ctx, clusters, decisions, labels)
	if err != nil {
		return report.Summary{}, err
	}
	rs.CreatedLabelIDs = labels.Snapshot()
	if serr := stateStore.Save(rs); serr != nil {
		return report.Summary{}, serr
	}

	rs.Advance(domain.PhaseCreatingFilters, time.Now())
	var materializeResults []materialize.Result
	if !opts.LabelsOnly {
		m := &materialize.Materializer{Client: p.Client, Labels: labels, DryRun: opts.DryRun, Log: p.Log}
		for _, plan := range plans {
			materializeResults = append(materializeResults, m.Apply(ctx, plan, serverFilters))
		}
	}
	if serr := stateStore.Save(rs); serr != nil {
		return report.Summary{}, serr
	}

	var applyOutcomes []apply.Outcome
	if !opts.LabelsOnly && !opts.FiltersOnly && !opts.DryRun {
		rs.Advance(domain.PhaseApplyingLabels, time.Now())
		jobs := apply.JobsFromDecisions(clusters, decisions, func(path string) string { return labels.Snapshot()[path] })
		applier := &apply.Applier{Client: p.Client, Log: p.Log}
		applyOutcomes = applier.Apply(ctx, jobs)
		for _, o := range applyOutcomes {
			rs.FailedMessageIDs = append(rs.FailedMessageIDs, o.FailedIDs...)
		}
		if serr := stateStore.Save(rs); serr != nil {
			return report.Summary{}, serr
		}
	}

	rs.Advance(domain.PhaseComplete, time.Now())
	if serr := stateStore.Save(rs); serr != nil {
		return report.Summary{}, serr
	}

	return report.Summary{
		RunID:              rs.RunID,
		MessageCount:       rs.MessageCount,
		ClusterCount:       rs.ClusterCount,
		FailedMessageIDs:   rs.Scan.FailedMessageIDs,
		MaterializeResults: materializeResults,
		ApplyOutcomes:      applyOutcomes,
	}, nil
}

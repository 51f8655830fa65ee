// Package materialize turns accepted decisions into server-side labels
// and filters (spec §4.8), deduplicating against what's already present
// and supporting dry-run.
package materialize

import (
	"context"
	"strings"

	"github.com/rs/zerolog"
	"google.golang.org/api/gmail/v1"

	"github.com/victor-bajanov/gmail-cleanup-automation/internal/domain"
	"github.com/victor-bajanov/gmail-cleanup-automation/internal/gmailapi"
	"github.com/victor-bajanov/gmail-cleanup-automation/internal/label"
)

// Materializer applies the set of non-terminal-rejected decisions to the
// mail provider.
type Materializer struct {
	Client   gmailapi.Client
	Labels   *label.Cache
	DryRun   bool
	Log      zerolog.Logger
}

// Plan is one cluster's resolved decision paired with its built predicate,
// assembled before any remote call so the caller can log or dry-run it.
type Plan struct {
	Cluster  domain.Cluster
	Decision domain.Decision
	Rule     domain.FilterRule
}

// Result records what happened for one plan, for the run report.
type Result struct {
	Plan         Plan
	CreatedFilterID string
	DeletedFilterID string
	Skipped      bool
	SkipReason   string
	Err          error
}

// BuildPlans resolves the target label for each decision and constructs
// its FilterRule, without touching the network beyond label resolution.
func BuildPlans(ctx context.Context, clusters []domain.Cluster, decisions map[string]domain.Decision, labels *label.Cache) ([]Plan, error) {
	var plans []Plan
	for _, c := range clusters {
		dec, ok := decisions[c.Identity.Key()]
		if !ok || !dec.Kind.Terminal() {
			continue
		}
		switch dec.Kind {
		case domain.DecisionReject, domain.DecisionExcludePermanent, domain.DecisionDeleteExisting, domain.DecisionKeepExisting:
			plans = append(plans, Plan{Cluster: c, Decision: dec})
			continue
		}

		labelID, err := labels.EnsureLabel(ctx, dec.Label)
		if err != nil {
			return nil, err
		}
		rule := buildRule(c, labelID, dec.Archive)
		plans = append(plans, Plan{Cluster: c, Decision: dec, Rule: rule})
	}
	return plans, nil
}

func buildRule(c domain.Cluster, targetLabelID string, archive bool) domain.FilterRule {
	pattern := c.Identity.SenderOrDomain
	if c.Identity.Tier == domain.TierDomain {
		pattern = "*@" + c.Identity.SenderOrDomain
	}
	var keywords []string
	if c.Identity.SubjectPattern != "" {
		keywords = []string{c.Identity.SubjectPattern}
	}
	return domain.FilterRule{
		FromPattern:     pattern,
		SubjectKeywords: keywords,
		ExcludedSenders: c.Identity.ExcludedSenders,
		TargetLabelID:   targetLabelID,
		Archive:         archive,
	}
}

// Apply executes one plan (spec §4.8): dedup against existing server
// filters, delete-then-create for UpdateExisting, delete-only for
// DeleteExisting/Reject/ExcludePermanent/KeepExisting (no-op for Keep).
func (m *Materializer) Apply(ctx context.Context, plan Plan, existing []domain.ServerFilter) Result {
	res := Result{Plan: plan}

	switch plan.Decision.Kind {
	case domain.DecisionKeepExisting:
		res.Skipped = true
		res.SkipReason = "keep_existing: no change"
		return res

	case domain.DecisionDeleteExisting, domain.DecisionReject, domain.DecisionExcludePermanent:
		if plan.Decision.ExistingFilterID == "" {
			res.Skipped = true
			res.SkipReason = "no existing filter to delete"
			return res
		}
		if m.DryRun {
			m.Log.Info().Str("filter_id", plan.Decision.ExistingFilterID).Msg("dry-run: would delete filter")
			res.Skipped = true
			res.SkipReason = "dry-run"
			return res
		}
		if err := m.Client.DeleteFilter(ctx, plan.Decision.ExistingFilterID); err != nil {
			res.Err = err
			return res
		}
		res.DeletedFilterID = plan.Decision.ExistingFilterID
		return res

	case domain.DecisionAccept, domain.DecisionUpdateExisting:
		if dup, ok := findDuplicate(plan.Rule, existing); ok {
			res.Skipped = true
			res.SkipReason = "identical filter already present: " + dup.ID
			return res
		}

		if plan.Decision.Kind == domain.DecisionUpdateExisting && plan.Decision.ExistingFilterID != "" {
			if m.DryRun {
				m.Log.Info().Str("filter_id", plan.Decision.ExistingFilterID).Msg("dry-run: would delete filter before recreating")
			} else if err := m.Client.DeleteFilter(ctx, plan.Decision.ExistingFilterID); err != nil {
				res.Err = err
				return res
			} else {
				res.DeletedFilterID = plan.Decision.ExistingFilterID
			}
		}

		if m.DryRun {
			m.Log.Info().Str("from", plan.Rule.FromPattern).Str("label_id", plan.Rule.TargetLabelID).Msg("dry-run: would create filter")
			res.Skipped = true
			res.SkipReason = "dry-run"
			return res
		}

		created, err := m.Client.CreateFilter(ctx, toGmailFilter(plan.Rule))
		if err != nil {
			res.Err = err
			return res
		}
		res.CreatedFilterID = created.Id
		return res
	}

	res.Skipped = true
	res.SkipReason = "non-terminal or unhandled decision kind"
	return res
}

// findDuplicate performs the deep-equality dedup check spec §4.8 mandates
// over (from_pattern, sorted(subject_keywords), sorted(excluded_senders),
// archive, target_label_id).
func findDuplicate(rule domain.FilterRule, existing []domain.ServerFilter) (domain.ServerFilter, bool) {
	for _, sf := range existing {
		if len(sf.AddLabelIDs) == 1 && sf.Rule(sf.AddLabelIDs[0]).Equal(rule) {
			return sf, true
		}
	}
	return domain.ServerFilter{}, false
}

// toGmailFilter renders a FilterRule into the wire shape, using the same
// Subject/NegatedQuery encoding the reconciler parses back
// (internal/reconcile.convert).
func toGmailFilter(rule domain.FilterRule) *gmail.Filter {
	f := &gmail.Filter{
		Criteria: &gmail.FilterCriteria{
			From: rule.FromPattern,
		},
		Action: &gmail.FilterAction{
			AddLabelIds: []string{rule.TargetLabelID},
		},
	}
	if len(rule.SubjectKeywords) > 0 {
		f.Criteria.Subject = strings.Join(rule.SubjectKeywords, " OR ")
	}
	if len(rule.ExcludedSenders) > 0 {
		parts := make([]string, len(rule.ExcludedSenders))
		for i, s := range rule.ExcludedSenders {
			parts[i] = "from:(" + s + ")"
		}
		f.Criteria.NegatedQuery = strings.Join(parts, " OR ")
	}
	if rule.Archive {
		f.Action.RemoveLabelIds = []string{"INBOX"}
	}
	return f
}

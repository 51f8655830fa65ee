// Package reconcile matches proposed clusters against filters already
// present on the mail provider (spec §4.5), so the reviewer can offer
// Keep/Update/Delete instead of blindly proposing a duplicate rule.
package reconcile

import (
	"context"
	"sort"
	"strings"

	"google.golang.org/api/gmail/v1"

	"github.com/victor-bajanov/gmail-cleanup-automation/internal/domain"
	"github.com/victor-bajanov/gmail-cleanup-automation/internal/gmailapi"
)

// ListServerFilters fetches and converts every filter currently on the
// mail provider to the domain.ServerFilter shape the reconciler compares
// against.
func ListServerFilters(ctx context.Context, client gmailapi.Client) ([]domain.ServerFilter, error) {
	raw, err := client.ListFilters(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]domain.ServerFilter, 0, len(raw))
	for _, f := range raw {
		out = append(out, convert(f))
	}
	return out, nil
}

// Gmail's Filter.Criteria has no native multi-value "subject keywords" or
// "excluded senders" fields, just single From/Subject strings and a
// NegatedQuery string. We fold our subject-keyword set into Subject
// joined by " OR " and our excluded-sender set into NegatedQuery as
// "from:(a) OR from:(b)" — the same round-trip shape materialize.go
// writes when creating filters, so reconciliation can parse it back.
func convert(f *gmail.Filter) domain.ServerFilter {
	sf := domain.ServerFilter{ID: f.Id}
	if f.Criteria != nil {
		sf.FromPattern = f.Criteria.From
		sf.SubjectKeywords = splitOR(f.Criteria.Subject)
		sf.ExcludedSenders = parseExcludedSenders(f.Criteria.NegatedQuery)
	}
	if f.Action != nil {
		sf.AddLabelIDs = f.Action.AddLabelIds
		sf.RemovesInbox = containsString(f.Action.RemoveLabelIds, "INBOX")
	}
	return sf
}

func splitOR(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, " OR ")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

func parseExcludedSenders(negatedQuery string) []string {
	if negatedQuery == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(negatedQuery, " OR ") {
		part = strings.TrimSpace(part)
		part = strings.TrimPrefix(part, "from:(")
		part = strings.TrimSuffix(part, ")")
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

func containsString(ss []string, target string) bool {
	for _, s := range ss {
		if s == target {
			return true
		}
	}
	return false
}

// Attach searches serverFilters for a predicate-equal match against each
// cluster's proposed rule and attaches it as ExistingFilter (spec §4.5
// "Match fields: from-pattern, subject keyword set, exclusion list").
// Clusters with a match are moved to the front of the returned slice so
// the reviewer sees them first (spec §4.5 "surfaced first in the review
// queue").
func Attach(clusters []domain.Cluster, serverFilters []domain.ServerFilter, targetLabelID func(path string) string) []domain.Cluster {
	withExisting := make([]domain.Cluster, 0, len(clusters))
	withoutExisting := make([]domain.Cluster, 0, len(clusters))

	for _, c := range clusters {
		proposed := proposedRule(c, targetLabelID(c.SuggestedLabel))
		if sf, ok := findMatch(proposed, serverFilters); ok {
			match := sf
			c.ExistingFilter = &match
			withExisting = append(withExisting, c)
			continue
		}
		withoutExisting = append(withoutExisting, c)
	}

	return append(withExisting, withoutExisting...)
}

func proposedRule(c domain.Cluster, targetLabelID string) domain.FilterRule {
	pattern := c.Identity.SenderOrDomain
	if c.Identity.Tier == domain.TierDomain {
		pattern = "*@" + c.Identity.SenderOrDomain
	}

	var subjectKeywords []string
	if c.Identity.SubjectPattern != "" {
		subjectKeywords = []string{c.Identity.SubjectPattern}
	}

	return domain.FilterRule{
		FromPattern:     pattern,
		SubjectKeywords: subjectKeywords,
		ExcludedSenders: c.Identity.ExcludedSenders,
		TargetLabelID:   targetLabelID,
		Archive:         c.ArchiveHint,
	}
}

func findMatch(proposed domain.FilterRule, serverFilters []domain.ServerFilter) (domain.ServerFilter, bool) {
	for _, sf := range serverFilters {
		candidate := sf.Rule(proposed.TargetLabelID)
		if predicateEqual(candidate, proposed) {
			return sf, true
		}
	}
	return domain.ServerFilter{}, false
}

// predicateEqual compares two rules on the fields spec §4.5 defines as the
// reconciler's match key: from-pattern, subject keyword set, and exclusion
// list. Unlike domain.FilterRule.Equal (used by materialize.go's dedup
// check, spec §4.8, which must also treat archive as part of identity),
// archive is a separately-attached outcome here, not a match field — a
// cluster proposing archive=true must still match an existing filter that
// doesn't archive, so the reviewer can offer UpdateExisting rather than
// silently proposing a duplicate.
func predicateEqual(a, b domain.FilterRule) bool {
	return a.FromPattern == b.FromPattern &&
		sortedEqual(a.SubjectKeywords, b.SubjectKeywords) &&
		sortedEqual(a.ExcludedSenders, b.ExcludedSenders)
}

func sortedEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	sa := append([]string(nil), a...)
	sb := append([]string(nil), b...)
	sort.Strings(sa)
	sort.Strings(sb)
	for i := range sa {
		if sa[i] != sb[i] {
			return false
		}
	}
	return true
}

package domain

import (
	"sort"
	"strings"
)

// FilterRule is a materialised predicate, the server-side shape the
// Filter materialiser creates (spec §3/§6 "Filter query syntax").
type FilterRule struct {
	FromPattern     string // exact address, or "*@domain"
	SubjectKeywords []string
	ExcludedSenders []string
	TargetLabelID   string
	Archive         bool
}

// dedupKey canonicalises field ordering so deep-equality comparisons don't
// depend on slice order (spec §4.8/§9 "Deep filter equality").
func (f FilterRule) dedupKey() string {
	kw := append([]string(nil), f.SubjectKeywords...)
	sort.Strings(kw)
	excl := append([]string(nil), f.ExcludedSenders...)
	sort.Strings(excl)

	var b strings.Builder
	b.WriteString(f.FromPattern)
	b.WriteByte('|')
	b.WriteString(strings.Join(kw, ","))
	b.WriteByte('|')
	b.WriteString(strings.Join(excl, ","))
	b.WriteByte('|')
	b.WriteString(f.TargetLabelID)
	b.WriteByte('|')
	if f.Archive {
		b.WriteByte('1')
	} else {
		b.WriteByte('0')
	}
	return b.String()
}

// Equal reports whether two rules are functionally identical once fields
// are canonicalised. Two filters differing only in add-label or in
// exclusion-from list are NOT equal (spec §9).
func (f FilterRule) Equal(other FilterRule) bool {
	return f.dedupKey() == other.dedupKey()
}

// Query renders the deterministic provider filter-query fragment (spec §6).
func (f FilterRule) Query() string {
	var b strings.Builder
	b.WriteString("from:(")
	b.WriteString(f.FromPattern)
	b.WriteByte(')')

	if len(f.SubjectKeywords) > 0 {
		kw := append([]string(nil), f.SubjectKeywords...)
		b.WriteString(" subject:(")
		b.WriteString(strings.Join(kw, " OR "))
		b.WriteByte(')')
	}

	if len(f.ExcludedSenders) > 0 {
		excl := append([]string(nil), f.ExcludedSenders...)
		sort.Strings(excl)
		for _, e := range excl {
			b.WriteString(" -from:(")
			b.WriteString(e)
			b.WriteByte(')')
		}
	}

	return b.String()
}

// ServerFilter is a filter already present on the mail provider at the
// start of a run (spec §4.5).
type ServerFilter struct {
	ID              string
	FromPattern     string
	SubjectKeywords []string
	ExcludedSenders []string
	AddLabelIDs     []string
	RemovesInbox    bool // archives matching messages
}

// Rule projects the server filter into the same canonical shape as a
// proposed FilterRule so the reconciler can compare predicates by value.
func (sf ServerFilter) Rule(targetLabelID string) FilterRule {
	return FilterRule{
		FromPattern:     sf.FromPattern,
		SubjectKeywords: sf.SubjectKeywords,
		ExcludedSenders: sf.ExcludedSenders,
		TargetLabelID:   targetLabelID,
		Archive:         sf.RemovesInbox,
	}
}

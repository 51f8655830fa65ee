// Package subject normalizes email subject lines into a stable fingerprint
// so the clusterer can group "Your order #48213 has shipped" and "Your
// order #91820 has shipped" under one SubjectSender cluster; it also holds
// the keyword check the classifier runs over lowercased subjects
// (spec §4.4 "Subject pattern", grounded on the
// teacher's SubjectScoreClassifier keyword/regex matching style in
// core/service/classification/worker_subject_score_classifier.go).
package subject

import (
	"regexp"
	"strings"
)

// numberRun matches a run of digits, optionally with surrounding # or -
// punctuation that's part of an order/ticket/tracking number.
var numberRun = regexp.MustCompile(`[#\-]?\d[\d,\-]*\d|\b\d\b`)

// replyForwardPrefix strips leading Re:/Fwd:/Fw: chains, case-insensitive,
// possibly repeated ("Re: Re: Fwd: ...").
var replyForwardPrefix = regexp.MustCompile(`(?i)^((re|fwd|fw)\s*:\s*)+`)

// whitespaceRun collapses repeated whitespace after token removal.
var whitespaceRun = regexp.MustCompile(`\s+`)

// Normalize lowercases, strips reply/forward prefixes, and collapses
// numeric tokens to a single placeholder so subjects that differ only by
// an order number, invoice number, or ticket id normalize identically.
func Normalize(raw string) string {
	s := replyForwardPrefix.ReplaceAllString(raw, "")
	s = strings.ToLower(s)
	s = numberRun.ReplaceAllString(s, "#")
	s = whitespaceRun.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// Pattern derives the cluster-identity subject pattern from a normalized
// subject: the normalized form itself, truncated to a bounded length so
// extremely long subjects don't blow up identity keys persisted to disk.
const maxPatternLen = 120

func Pattern(raw string) string {
	n := Normalize(raw)
	if len(n) > maxPatternLen {
		return n[:maxPatternLen]
	}
	return n
}

// ContainsAny reports whether the lowercased subject contains any of the
// given lowercase keywords — the classifier uses it for its priority
// boost and reduce keyword lists (spec §4.3).
func ContainsAny(subjectLower string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(subjectLower, kw) {
			return true
		}
	}
	return false
}

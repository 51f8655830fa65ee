package classify

import (
	"regexp"
	"strings"

	"github.com/victor-bajanov/gmail-cleanup-automation/internal/domain"
	"github.com/victor-bajanov/gmail-cleanup-automation/internal/subject"
)

// LabelPrefix roots every generated label path (spec §4.3's examples all
// begin "AutoManaged/...").
const LabelPrefix = "AutoManaged"

// categoryScore accumulates weighted evidence for one category across the
// cascade.
type categoryScore map[domain.Category]float64

func (s categoryScore) add(cat domain.Category, weight float64) {
	s[cat] += weight
}

// winner picks the highest-scoring category, ties broken by enumeration
// order (spec §4.3).
func (s categoryScore) winner() (domain.Category, float64) {
	best := domain.CategoryOther
	bestScore := 0.0
	for cat := domain.CategoryNewsletter; cat <= domain.CategoryOther; cat++ {
		sc := s[cat]
		if sc > bestScore {
			best = cat
			bestScore = sc
		}
	}
	return best, bestScore
}

// Classify runs the full deterministic rule cascade over one message's
// metadata (spec §4.3). Pure: no mutable package state is consulted or
// written, so repeated calls on equal input always return equal output.
func Classify(m domain.MessageMetadata) domain.Classification {
	scores := categoryScore{}
	var matchedService *serviceInfo

	lp := localPart(m.SenderEmail)
	if cat, ok := localPartBias[lp]; ok {
		scores.add(cat, localPartWeight)
	}

	if m.HasUnsubscribe {
		scores.add(domain.CategoryNewsletter, 15)
		scores.add(domain.CategoryMarketing, 15)
	}

	if automationDomains[m.SenderDomain] {
		scores.add(domain.CategoryNotification, automationDomainWeight)
	}

	subjectLower := strings.ToLower(m.Subject)
	for _, fam := range subjectFamilies {
		if fam.pattern.MatchString(subjectLower) {
			scores.add(fam.category, fam.weight)
		}
	}

	if svc, ok := knownServices[m.SenderDomain]; ok {
		matchedService = &svc
		scores.add(svc.category, 40)
	}

	category, _ := scores.winner()
	if matchedService != nil {
		category = matchedService.category
	}

	priority := computePriority(category, subjectLower, matchedService)
	archive := archiveHint(category, priority)

	displayName := m.SenderDomain
	if matchedService != nil {
		displayName = matchedService.displayName
	}

	return domain.Classification{
		Category:      category,
		Confidence:    confidence(scores, category),
		SuggestedPath: labelPath(category, displayName),
		ArchiveHint:   archive,
	}
}

// computePriority derives the [0,100] priority score (spec §4.3): base
// from the matched service if any, else a per-category baseline, then
// keyword boosts/reductions are applied and the result clamped.
func computePriority(cat domain.Category, subjectLower string, svc *serviceInfo) int {
	base := categoryBasePriority(cat)
	if svc != nil {
		base = svc.basePriority
	}

	score := float64(base)
	if subject.ContainsAny(subjectLower, priorityKeywordBoost) {
		score += 20
	}
	if subject.ContainsAny(subjectLower, priorityKeywordReduce) {
		score -= 20
	}

	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}
	return int(score)
}

func categoryBasePriority(cat domain.Category) int {
	switch cat {
	case domain.CategoryFinancial:
		return 70
	case domain.CategoryReceipt:
		return 55
	case domain.CategoryShipping:
		return 45
	case domain.CategoryPersonal:
		return 80
	case domain.CategoryNotification:
		return 35
	case domain.CategoryNewsletter:
		return 20
	case domain.CategoryMarketing:
		return 10
	default:
		return 40
	}
}

// archiveHint implements spec §4.3's exact predicate: true iff category is
// Newsletter/Marketing/Notification AND priority is below the
// category-specific threshold AND category is not Personal/Financial/Receipt
// (the last conjunct is redundant with the first given the enums involved,
// but spelled out here to match the spec literally).
func archiveHint(cat domain.Category, priority int) bool {
	switch cat {
	case domain.CategoryNewsletter, domain.CategoryMarketing:
		if priority >= archiveThresholdNewsletterMarketing {
			return false
		}
	case domain.CategoryNotification:
		if priority >= archiveThresholdNotification {
			return false
		}
	default:
		return false
	}
	switch cat {
	case domain.CategoryPersonal, domain.CategoryFinancial, domain.CategoryReceipt:
		return false
	}
	return true
}

// confidence derives a [0,1] score as the winning category's share of the
// total score across all categories; a message with no evidence at all
// (fell through to Other) gets a low fixed confidence.
func confidence(scores categoryScore, winner domain.Category) float64 {
	total := 0.0
	for _, v := range scores {
		total += v
	}
	if total == 0 {
		return 0.3
	}
	c := scores[winner] / total
	if c > 1 {
		c = 1
	}
	return c
}

var nonAlnum = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify lower-kebabs a string and strips punctuation, per spec §4.3
// "slugs lower-kebab, punctuation stripped, truncated at 50 bytes". Exported
// so the clusterer can build a tier-aware label from a cluster identity
// instead of a per-message suggestion.
func Slugify(s string) string {
	return slugify(s)
}

func slugify(s string) string {
	s = strings.ToLower(s)
	s = nonAlnum.ReplaceAllString(s, "-")
	s = strings.Trim(s, "-")
	if len(s) > 50 {
		s = s[:50]
		s = strings.TrimRight(s, "-")
	}
	if s == "" {
		s = "unknown"
	}
	return s
}

// labelPath builds "<prefix>/<category-slug>/<sender-slug>" (spec §4.3).
func labelPath(cat domain.Category, senderOrService string) string {
	return LabelPrefix + "/" + cat.Slug() + "/" + slugify(senderOrService)
}

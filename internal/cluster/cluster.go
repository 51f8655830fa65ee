// Package cluster implements the three-tier hierarchical clusterer
// (spec §4.4): SubjectSender, then Sender, then Domain, each tier
// excluding messages already claimed by a narrower tier, producing
// disjoint predicates sorted narrowest-first.
package cluster

import (
	"sort"

	"github.com/victor-bajanov/gmail-cleanup-automation/internal/classify"
	"github.com/victor-bajanov/gmail-cleanup-automation/internal/domain"
	"github.com/victor-bajanov/gmail-cleanup-automation/internal/subject"
)

// Config carries the tunables the clusterer reads from the pipeline
// config (spec §6 `classification.minimum_emails_for_label`).
type Config struct {
	MinEmailsForLabel int
}

const defaultMinEmails = 5

func (c Config) threshold() int {
	if c.MinEmailsForLabel > 0 {
		return c.MinEmailsForLabel
	}
	return defaultMinEmails
}

// scored pairs a message with its classification, the unit the clusterer
// groups over.
type scored struct {
	msg   domain.MessageMetadata
	class domain.Classification
}

// Cluster runs the full three-tier algorithm and returns clusters sorted
// narrowest-first, tier 1 before tier 2 before tier 3, and within a tier
// by descending message count (spec §4.4 step 7). exclusions drops any
// cluster whose identity key is already permanently excluded (step 6).
func Cluster(messages []domain.MessageMetadata, classifications []domain.Classification, cfg Config, exclusions *domain.ExclusionSet) []domain.Cluster {
	if len(messages) != len(classifications) {
		panic("cluster: messages and classifications must be parallel slices")
	}

	pairs := make([]scored, len(messages))
	for i := range messages {
		pairs[i] = scored{msg: messages[i], class: classifications[i]}
	}

	claimed := make(map[string]bool, len(pairs)) // message id -> claimed by a narrower tier
	threshold := cfg.threshold()

	tier1 := buildSubjectSenderTier(pairs, claimed, threshold)
	tier2 := buildSenderTier(pairs, claimed, threshold)
	tier3 := buildDomainTier(pairs, claimed, threshold, tier2)

	all := make([]domain.Cluster, 0, len(tier1)+len(tier2)+len(tier3))
	all = append(all, tier1...)
	all = append(all, tier2...)
	all = append(all, tier3...)

	if exclusions != nil {
		filtered := all[:0]
		for _, c := range all {
			if !exclusions.Contains(c.Identity.Key()) {
				filtered = append(filtered, c)
			}
		}
		all = filtered
	}

	sortClusters(all)
	return all
}

// sortClusters orders tier 1 before tier 2 before tier 3, and within a tier
// by descending message count (spec §4.4 step 7).
func sortClusters(cs []domain.Cluster) {
	sort.SliceStable(cs, func(i, j int) bool {
		if cs[i].Identity.Tier != cs[j].Identity.Tier {
			return cs[i].Identity.Tier < cs[j].Identity.Tier
		}
		return cs[i].MessageCount() > cs[j].MessageCount()
	})
}

func buildSubjectSenderTier(pairs []scored, claimed map[string]bool, threshold int) []domain.Cluster {
	type key struct{ sender, pattern string }
	groups := map[key][]int{}
	order := []key{}

	for i, p := range pairs {
		k := key{sender: p.msg.SenderEmail, pattern: subject.Pattern(p.msg.Subject)}
		if _, ok := groups[k]; !ok {
			order = append(order, k)
		}
		groups[k] = append(groups[k], i)
	}

	var out []domain.Cluster
	for _, k := range order {
		idxs := groups[k]
		if len(idxs) < threshold {
			continue
		}
		identity := domain.ClusterIdentity{
			Tier:           domain.TierSubjectSender,
			SenderOrDomain: k.sender,
			SubjectPattern: k.pattern,
		}
		out = append(out, buildCluster(identity, pairs, idxs))
		for _, i := range idxs {
			claimed[pairs[i].msg.ID] = true
		}
	}
	return out
}

func buildSenderTier(pairs []scored, claimed map[string]bool, threshold int) []domain.Cluster {
	groups := map[string][]int{}
	order := []string{}

	for i, p := range pairs {
		if claimed[p.msg.ID] {
			continue
		}
		if _, ok := groups[p.msg.SenderEmail]; !ok {
			order = append(order, p.msg.SenderEmail)
		}
		groups[p.msg.SenderEmail] = append(groups[p.msg.SenderEmail], i)
	}

	var out []domain.Cluster
	for _, sender := range order {
		idxs := groups[sender]
		if len(idxs) < threshold {
			continue
		}
		identity := domain.ClusterIdentity{
			Tier:           domain.TierSender,
			SenderOrDomain: sender,
		}
		out = append(out, buildCluster(identity, pairs, idxs))
		for _, i := range idxs {
			claimed[pairs[i].msg.ID] = true
		}
	}
	return out
}

// buildDomainTier groups by sender domain, excluding messages already
// claimed by tier 1 or tier 2, and records the tier-2-emitting senders
// within that domain as excluded_senders (spec §4.4 step 4).
func buildDomainTier(pairs []scored, claimed map[string]bool, threshold int, tier2 []domain.Cluster) []domain.Cluster {
	excludedSendersByDomain := map[string][]string{}
	for _, c := range tier2 {
		dom := domainOf(pairs, c.Identity.SenderOrDomain)
		if dom == "" {
			continue
		}
		excludedSendersByDomain[dom] = append(excludedSendersByDomain[dom], c.Identity.SenderOrDomain)
	}

	groups := map[string][]int{}
	order := []string{}
	for i, p := range pairs {
		if claimed[p.msg.ID] {
			continue
		}
		if _, ok := groups[p.msg.SenderDomain]; !ok {
			order = append(order, p.msg.SenderDomain)
		}
		groups[p.msg.SenderDomain] = append(groups[p.msg.SenderDomain], i)
	}

	var out []domain.Cluster
	for _, dom := range order {
		idxs := groups[dom]
		if len(idxs) < threshold {
			continue
		}
		identity := domain.ClusterIdentity{
			Tier:            domain.TierDomain,
			SenderOrDomain:  dom,
			ExcludedSenders: excludedSendersByDomain[dom],
		}
		out = append(out, buildCluster(identity, pairs, idxs))
		for _, i := range idxs {
			claimed[pairs[i].msg.ID] = true
		}
	}
	return out
}

// domainOf finds the sender_domain belonging to the given sender_email by
// scanning once; senders are already known to exist in pairs.
func domainOf(pairs []scored, senderEmail string) string {
	for _, p := range pairs {
		if p.msg.SenderEmail == senderEmail {
			return p.msg.SenderDomain
		}
	}
	return ""
}

// buildCluster computes the majority category/archive hint and sample
// subjects for one group of message indices (spec §4.4 step 5), then builds
// the suggested label from the cluster's own identity rather than any
// single member's per-message suggestion: identity.SenderOrDomain is the
// full sender address at Tier SubjectSender/Sender and the registrable
// domain at Tier Domain, so two distinct senders at the same domain (e.g.
// jobs@linkedin.com vs invitations@linkedin.com, spec §8 S1) always get
// distinct labels even when a known-service override collapses their
// per-message Classification.SuggestedPath to the same string.
func buildCluster(identity domain.ClusterIdentity, pairs []scored, idxs []int) domain.Cluster {
	categoryVotes := map[domain.Category]int{}
	categoryConfidenceSum := map[domain.Category]float64{}
	archiveVotes := 0
	memberIDs := make([]string, 0, len(idxs))
	samples := make([]string, 0, 3)

	for _, i := range idxs {
		p := pairs[i]
		memberIDs = append(memberIDs, p.msg.ID)
		categoryVotes[p.class.Category]++
		categoryConfidenceSum[p.class.Category] += p.class.Confidence
		if p.class.ArchiveHint {
			archiveVotes++
		}
		if len(samples) < 3 {
			samples = append(samples, p.msg.Subject)
		}
	}

	category := majorityCategory(categoryVotes, categoryConfidenceSum)
	label := classify.LabelPrefix + "/" + category.Slug() + "/" + classify.Slugify(identity.SenderOrDomain)

	return domain.Cluster{
		Identity:       identity,
		MemberIDs:      memberIDs,
		SampleSubjects: samples,
		SuggestedLabel: label,
		ArchiveHint:    archiveVotes*2 >= len(idxs),
	}
}

// majorityCategory picks the category with the most votes, ties broken by
// highest mean confidence, then by category enumeration order for full
// determinism (spec §4.4 step 5).
func majorityCategory(votes map[domain.Category]int, confidenceSum map[domain.Category]float64) domain.Category {
	best := domain.CategoryOther
	var bestVotes int
	var bestMeanConfidence float64
	first := true

	cats := make([]domain.Category, 0, len(votes))
	for c := range votes {
		cats = append(cats, c)
	}
	sort.Slice(cats, func(i, j int) bool { return cats[i] < cats[j] })

	for _, c := range cats {
		v := votes[c]
		mean := confidenceSum[c] / float64(v)
		if first || v > bestVotes || (v == bestVotes && mean > bestMeanConfidence) {
			best = c
			bestVotes = v
			bestMeanConfidence = mean
			first = false
		}
	}
	return best
}

package cluster

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/victor-bajanov/gmail-cleanup-automation/internal/domain"
)

func synthMessages(n int, sender, subj string) []domain.MessageMetadata {
	out := make([]domain.MessageMetadata, n)
	for i := 0; i < n; i++ {
		out[i] = domain.MessageMetadata{
			ID:           fmt.Sprintf("%s-%d", sender, i),
			SenderEmail:  sender,
			SenderDomain: sender[len("noreply@"):],
			Subject:      subj,
		}
	}
	return out
}

func classificationsFor(n int, label string, archive bool) []domain.Classification {
	out := make([]domain.Classification, n)
	for i := range out {
		out[i] = domain.Classification{Category: domain.CategoryNewsletter, Confidence: 0.9, SuggestedPath: label, ArchiveHint: archive}
	}
	return out
}

func TestCluster_SubjectSenderTierTakesPriority(t *testing.T) {
	msgs := synthMessages(6, "noreply@example.com", "Your weekly digest #42")
	classes := classificationsFor(6, "AutoManaged/newsletters/example-com", true)

	clusters := Cluster(msgs, classes, Config{MinEmailsForLabel: 5}, nil)

	require.Len(t, clusters, 1)
	assert.Equal(t, domain.TierSubjectSender, clusters[0].Identity.Tier)
	assert.Equal(t, 6, clusters[0].MessageCount())
}

func TestCluster_DomainTierExcludesSenderTierSenders(t *testing.T) {
	var msgs []domain.MessageMetadata
	var classes []domain.Classification

	// sender1 has enough volume with varying subjects to form a Sender tier
	// cluster (not SubjectSender: subject.Pattern collapses numeric tokens,
	// so the subjects vary by word, not number, to stay distinct patterns).
	subjectWords := []string{"weekly", "monthly", "quarterly", "annual", "daily", "hourly"}
	for i := 0; i < 6; i++ {
		msgs = append(msgs, domain.MessageMetadata{
			ID:           fmt.Sprintf("s1-%d", i),
			SenderEmail:  "alerts@example.com",
			SenderDomain: "example.com",
			Subject:      subjectWords[i] + " notice",
		})
		classes = append(classes, domain.Classification{Category: domain.CategoryNotification, SuggestedPath: "AutoManaged/notifications/example-com"})
	}
	// Five more senders at the same domain, one message each, all below the
	// per-sender threshold, should fall through to the Domain tier and
	// exclude sender1.
	for i := 0; i < 5; i++ {
		msgs = append(msgs, domain.MessageMetadata{
			ID:           fmt.Sprintf("s2-%d", i),
			SenderEmail:  fmt.Sprintf("billing%d@example.com", i),
			SenderDomain: "example.com",
			Subject:      subjectWords[i] + " statement",
		})
		classes = append(classes, domain.Classification{Category: domain.CategoryFinancial, SuggestedPath: "AutoManaged/financial/example-com"})
	}

	clusters := Cluster(msgs, classes, Config{MinEmailsForLabel: 5}, nil)

	var sawDomain, sawSender bool
	for _, c := range clusters {
		if c.Identity.Tier == domain.TierSender {
			sawSender = true
			assert.Equal(t, "alerts@example.com", c.Identity.SenderOrDomain)
		}
		if c.Identity.Tier == domain.TierDomain {
			sawDomain = true
			assert.Contains(t, c.Identity.ExcludedSenders, "alerts@example.com")
		}
	}
	assert.True(t, sawSender)
	assert.True(t, sawDomain)
}

func TestCluster_DisjointMembership(t *testing.T) {
	msgs := synthMessages(10, "noreply@example.com", "Order shipped #100")
	classes := classificationsFor(10, "AutoManaged/shipping/example-com", false)

	clusters := Cluster(msgs, classes, Config{MinEmailsForLabel: 5}, nil)

	seen := map[string]bool{}
	for _, c := range clusters {
		for _, id := range c.MemberIDs {
			require.False(t, seen[id], "message %s claimed by more than one cluster", id)
			seen[id] = true
		}
	}
}

func TestCluster_ExclusionSetDropsMatchingIdentity(t *testing.T) {
	msgs := synthMessages(6, "noreply@example.com", "Your weekly digest #42")
	classes := classificationsFor(6, "AutoManaged/newsletters/example-com", true)

	excl := domain.NewExclusionSet()
	clusters := Cluster(msgs, classes, Config{MinEmailsForLabel: 5}, nil)
	require.Len(t, clusters, 1)
	excl.Add(clusters[0].Identity.Key())

	filtered := Cluster(msgs, classes, Config{MinEmailsForLabel: 5}, excl)
	assert.Empty(t, filtered)
}

func TestCluster_SenderTierLabelsDistinctPerSender(t *testing.T) {
	// spec §8 S1: 6 from jobs@linkedin.com, 5 from invitations@linkedin.com,
	// 9 more from other @linkedin.com senders below the per-sender threshold.
	var msgs []domain.MessageMetadata
	var classes []domain.Classification

	// Subjects vary by word, not by number, within each sender's messages:
	// subject.Pattern collapses numeric tokens, so "subject 0".."subject 5"
	// would all normalize identically and wrongly form a SubjectSender tier
	// cluster instead of the intended Sender tier cluster.
	words := []string{"opening", "referral", "endorsement", "update", "reminder", "digest", "alert", "notice", "summary"}
	addSender := func(sender string, n int) {
		for i := 0; i < n; i++ {
			msgs = append(msgs, domain.MessageMetadata{
				ID:           fmt.Sprintf("%s-%d", sender, i),
				SenderEmail:  sender,
				SenderDomain: "linkedin.com",
				Subject:      "new " + words[i%len(words)] + " for you",
			})
			classes = append(classes, domain.Classification{
				Category:      domain.CategoryNotification,
				Confidence:    0.8,
				SuggestedPath: "AutoManaged/notifications/linkedin",
			})
		}
	}
	addSender("jobs@linkedin.com", 6)
	addSender("invitations@linkedin.com", 5)
	for i := 0; i < 9; i++ {
		sender := fmt.Sprintf("other%d@linkedin.com", i)
		msgs = append(msgs, domain.MessageMetadata{
			ID:           fmt.Sprintf("other-%d", i),
			SenderEmail:  sender,
			SenderDomain: "linkedin.com",
			Subject:      fmt.Sprintf("misc subject %d", i),
		})
		classes = append(classes, domain.Classification{
			Category:      domain.CategoryNotification,
			Confidence:    0.8,
			SuggestedPath: "AutoManaged/notifications/linkedin",
		})
	}

	clusters := Cluster(msgs, classes, Config{MinEmailsForLabel: 5}, nil)

	labelsBySender := map[string]string{}
	var domainCluster *domain.Cluster
	for i, c := range clusters {
		if c.Identity.Tier == domain.TierSender {
			labelsBySender[c.Identity.SenderOrDomain] = c.SuggestedLabel
		}
		if c.Identity.Tier == domain.TierDomain {
			domainCluster = &clusters[i]
		}
	}

	require.Equal(t, "AutoManaged/notifications/jobs-linkedin-com", labelsBySender["jobs@linkedin.com"])
	require.Equal(t, "AutoManaged/notifications/invitations-linkedin-com", labelsBySender["invitations@linkedin.com"])
	assert.NotEqual(t, labelsBySender["jobs@linkedin.com"], labelsBySender["invitations@linkedin.com"])

	require.NotNil(t, domainCluster)
	assert.Equal(t, "AutoManaged/notifications/linkedin-com", domainCluster.SuggestedLabel)
	assert.ElementsMatch(t, []string{"jobs@linkedin.com", "invitations@linkedin.com"}, domainCluster.Identity.ExcludedSenders)
}

func TestCluster_BelowThresholdEmitsNothing(t *testing.T) {
	msgs := synthMessages(3, "noreply@example.com", "Your weekly digest #42")
	classes := classificationsFor(3, "AutoManaged/newsletters/example-com", true)

	clusters := Cluster(msgs, classes, Config{MinEmailsForLabel: 5}, nil)
	assert.Empty(t, clusters)
}

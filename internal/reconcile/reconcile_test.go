package reconcile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/victor-bajanov/gmail-cleanup-automation/internal/domain"
)

func TestAttach_MatchesDespiteArchiveMismatch(t *testing.T) {
	// spec §8 S3: existing filter for from:(newsletter@example.com) ->
	// OldLabel, no archive. Cluster proposes the same sender and archive.
	// Archive is an outcome, not a match field, so this must still match.
	cluster := domain.Cluster{
		Identity: domain.ClusterIdentity{
			Tier:           domain.TierSender,
			SenderOrDomain: "newsletter@example.com",
		},
		MemberIDs:      []string{"m1"},
		SuggestedLabel: "AutoManaged/newsletters/example-com",
		ArchiveHint:    true,
	}
	serverFilters := []domain.ServerFilter{
		{
			ID:          "f1",
			FromPattern: "newsletter@example.com",
			AddLabelIDs: []string{"OldLabelID"},
			RemovesInbox: false,
		},
	}

	out := Attach([]domain.Cluster{cluster}, serverFilters, func(path string) string { return "NewLabelID" })

	require.Len(t, out, 1)
	require.NotNil(t, out[0].ExistingFilter)
	assert.Equal(t, "f1", out[0].ExistingFilter.ID)
}

func TestAttach_NoMatchWhenSenderDiffers(t *testing.T) {
	cluster := domain.Cluster{
		Identity: domain.ClusterIdentity{
			Tier:           domain.TierSender,
			SenderOrDomain: "billing@example.com",
		},
		MemberIDs: []string{"m1"},
	}
	serverFilters := []domain.ServerFilter{
		{ID: "f1", FromPattern: "newsletter@example.com"},
	}

	out := Attach([]domain.Cluster{cluster}, serverFilters, func(path string) string { return "LabelID" })

	require.Len(t, out, 1)
	assert.Nil(t, out[0].ExistingFilter)
}

package review

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/victor-bajanov/gmail-cleanup-automation/internal/domain"
)

type scriptedPrompter struct {
	actions []string
	i       int
}

func (p *scriptedPrompter) SelectAction(c domain.Cluster) (string, error) {
	a := p.actions[p.i]
	p.i++
	return a, nil
}
func (p *scriptedPrompter) InputLabel(defaultLabel string) (string, error) { return defaultLabel, nil }
func (p *scriptedPrompter) Confirm(message string, defaultYes bool) (bool, error) {
	return defaultYes, nil
}

type noopExclStore struct{ saved *domain.ExclusionSet }

func (s *noopExclStore) Save(e *domain.ExclusionSet) error {
	s.saved = e
	return nil
}

func cluster(key string) domain.Cluster {
	return domain.Cluster{
		Identity:       domain.ClusterIdentity{Tier: domain.TierSender, SenderOrDomain: key},
		MemberIDs:      []string{"m1", "m2"},
		SuggestedLabel: "AutoManaged/notifications/" + key,
		ArchiveHint:    true,
	}
}

func TestLoop_AcceptPersistsDecision(t *testing.T) {
	c := cluster("alerts-example-com")
	decisions := map[string]domain.Decision{}
	excl := domain.NewExclusionSet()

	loop := &Loop{
		Clusters:   []domain.Cluster{c},
		Decisions:  decisions,
		Exclusions: excl,
		Prompter:   &scriptedPrompter{actions: []string{actionAccept}},
		ExclStore:  &noopExclStore{},
	}
	loop.Store = Store{Path: t.TempDir() + "/decisions.json"}

	require.NoError(t, loop.Run(context.Background()))
	dec, ok := decisions[c.Identity.Key()]
	require.True(t, ok)
	assert.Equal(t, domain.DecisionAccept, dec.Kind)
	assert.True(t, dec.Archive)
}

func TestLoop_SkipsAlreadyTerminalDecisions(t *testing.T) {
	c := cluster("billing-example-com")
	decisions := map[string]domain.Decision{
		c.Identity.Key(): {Kind: domain.DecisionReject},
	}

	loop := &Loop{
		Clusters:   []domain.Cluster{c},
		Decisions:  decisions,
		Exclusions: domain.NewExclusionSet(),
		Prompter:   &scriptedPrompter{actions: []string{actionAccept}}, // would panic if consulted
		ExclStore:  &noopExclStore{},
	}
	loop.Store = Store{Path: t.TempDir() + "/decisions.json"}

	require.NoError(t, loop.Run(context.Background()))
	assert.Equal(t, domain.DecisionReject, decisions[c.Identity.Key()].Kind)
}

func TestLoop_ExcludePermanentAddsToExclusionSet(t *testing.T) {
	c := cluster("promo-example-com")
	decisions := map[string]domain.Decision{}
	excl := domain.NewExclusionSet()
	store := &noopExclStore{}

	loop := &Loop{
		Clusters:   []domain.Cluster{c},
		Decisions:  decisions,
		Exclusions: excl,
		Prompter:   &scriptedPrompter{actions: []string{actionExclude}},
		ExclStore:  store,
	}
	loop.Store = Store{Path: t.TempDir() + "/decisions.json"}

	require.NoError(t, loop.Run(context.Background()))
	assert.True(t, excl.Contains(c.Identity.Key()))
	assert.Same(t, excl, store.saved)
}

func TestLoop_UndoReopensPreviousCluster(t *testing.T) {
	c1 := cluster("first-example-com")
	c2 := cluster("second-example-com")
	decisions := map[string]domain.Decision{}
	excl := domain.NewExclusionSet()

	loop := &Loop{
		Clusters:   []domain.Cluster{c1, c2},
		Decisions:  decisions,
		Exclusions: excl,
		// accept c1, reach c2, undo back to c1, then accept both going forward.
		Prompter:  &scriptedPrompter{actions: []string{actionAccept, actionUndo, actionAccept, actionAccept}},
		ExclStore: &noopExclStore{},
	}
	loop.Store = Store{Path: t.TempDir() + "/decisions.json"}

	require.NoError(t, loop.Run(context.Background()))
	assert.Equal(t, domain.DecisionAccept, decisions[c1.Identity.Key()].Kind)
	assert.Equal(t, domain.DecisionAccept, decisions[c2.Identity.Key()].Kind)
}

func TestLoop_UndoRestoresExclusionSet(t *testing.T) {
	c1 := cluster("excluded-example-com")
	c2 := cluster("after-example-com")
	decisions := map[string]domain.Decision{}
	excl := domain.NewExclusionSet()

	loop := &Loop{
		Clusters:   []domain.Cluster{c1, c2},
		Decisions:  decisions,
		Exclusions: excl,
		Prompter:   &scriptedPrompter{actions: []string{actionExclude, actionUndo, actionAccept, actionAccept}},
		ExclStore:  &noopExclStore{},
	}
	loop.Store = Store{Path: t.TempDir() + "/decisions.json"}

	require.NoError(t, loop.Run(context.Background()))
	assert.False(t, excl.Contains(c1.Identity.Key()))
	_, stillDecided := decisions[c1.Identity.Key()]
	assert.True(t, stillDecided)
	assert.Equal(t, domain.DecisionAccept, decisions[c1.Identity.Key()].Kind)
}

func TestLoop_SkipAllExistingAdvancesPastMatchedClusters(t *testing.T) {
	withFilter := cluster("matched-example-com")
	withFilter.ExistingFilter = &domain.ServerFilter{ID: "f1"}
	withoutFilter := cluster("unmatched-example-com")
	decisions := map[string]domain.Decision{}

	loop := &Loop{
		Clusters:   []domain.Cluster{withFilter, withoutFilter},
		Decisions:  decisions,
		Exclusions: domain.NewExclusionSet(),
		Prompter:   &scriptedPrompter{actions: []string{actionSkipAllExisting, actionAccept}},
		ExclStore:  &noopExclStore{},
	}
	loop.Store = Store{Path: t.TempDir() + "/decisions.json"}

	require.NoError(t, loop.Run(context.Background()))
	_, decided := decisions[withFilter.Identity.Key()]
	assert.False(t, decided, "skip-all-existing must not decide the matched cluster")
	assert.Equal(t, domain.DecisionAccept, decisions[withoutFilter.Identity.Key()].Kind)
}

func TestNonInteractiveAccept_AcceptsEveryNonTerminalCluster(t *testing.T) {
	c1 := cluster("a")
	c2 := cluster("b")
	decisions := map[string]domain.Decision{
		c1.Identity.Key(): {Kind: domain.DecisionReject},
	}

	NonInteractiveAccept([]domain.Cluster{c1, c2}, decisions)

	assert.Equal(t, domain.DecisionReject, decisions[c1.Identity.Key()].Kind)
	assert.Equal(t, domain.DecisionAccept, decisions[c2.Identity.Key()].Kind)
}

// Package review implements the interactive decision state machine
// (spec §4.6): a cooperative single-threaded loop over the cluster queue,
// persisting the decision map after every answer so a crash mid-review
// loses at most one decision.
package review

import (
	"context"
	"fmt"

	"github.com/AlecAivazis/survey/v2"

	"github.com/victor-bajanov/gmail-cleanup-automation/internal/domain"
	"github.com/victor-bajanov/gmail-cleanup-automation/pkg/apperr"
	"github.com/victor-bajanov/gmail-cleanup-automation/pkg/atomicfile"
)

// Store owns the on-disk decisions.json for one pipeline run.
type Store struct {
	Path string
}

// decisionsFile is the JSON-serializable shape of the decision map,
// keyed by cluster identity key (spec §4.4 "Identity key for
// deduplication & persistence").
type decisionsFile map[string]domain.Decision

func (s Store) Load() (map[string]domain.Decision, error) {
	if !atomicfile.Exists(s.Path) {
		return map[string]domain.Decision{}, nil
	}
	var df decisionsFile
	if err := atomicfile.ReadJSON(s.Path, &df); err != nil {
		return nil, apperr.CorruptState(s.Path, err)
	}
	return map[string]domain.Decision(df), nil
}

func (s Store) Save(decisions map[string]domain.Decision) error {
	if err := atomicfile.WriteJSON(s.Path, decisionsFile(decisions), 0o644); err != nil {
		return apperr.Internal("persist decisions.json", err)
	}
	return nil
}

// Prompter is the interactive surface Loop.Run drives; SurveyPrompter is the
// production implementation and a scripted fake drives tests (grounded on
// GoogleContainerTools-skaffold's survey-based initializer prompts).
type Prompter interface {
	SelectAction(c domain.Cluster) (string, error)
	InputLabel(defaultLabel string) (string, error)
	Confirm(message string, defaultYes bool) (bool, error)
}

// SurveyPrompter is the real terminal-backed Prompter.
type SurveyPrompter struct{}

const (
	actionAccept      = "accept"
	actionEditLabel   = "edit label & accept"
	actionKeep        = "keep existing"
	actionUpdate      = "update existing"
	actionDeleteExisting = "delete existing filter"
	actionReject      = "reject"
	actionExclude     = "exclude permanently"
	actionSkip        = "skip"
	actionDefer       = "defer"
	actionUndo        = "undo"
	actionSkipAllExisting = "skip all existing"
)

func (SurveyPrompter) SelectAction(c domain.Cluster) (string, error) {
	options := []string{actionAccept, actionEditLabel, actionReject, actionExclude, actionSkip, actionDefer, actionUndo, actionSkipAllExisting}
	if c.ExistingFilter != nil {
		options = append([]string{actionKeep, actionUpdate, actionDeleteExisting}, options...)
	}
	msg := fmt.Sprintf("%s (%d messages, suggested: %s)", c.Identity.SenderOrDomain, c.MessageCount(), c.SuggestedLabel)
	var choice string
	err := survey.AskOne(&survey.Select{Message: msg, Options: options}, &choice)
	return choice, err
}

func (SurveyPrompter) InputLabel(defaultLabel string) (string, error) {
	var label string
	err := survey.AskOne(&survey.Input{Message: "Label path:", Default: defaultLabel}, &label)
	return label, err
}

func (SurveyPrompter) Confirm(message string, defaultYes bool) (bool, error) {
	var ok bool
	err := survey.AskOne(&survey.Confirm{Message: message, Default: defaultYes}, &ok)
	return ok, err
}

// Loop drives the per-cluster state machine over clusters in queue order
// (spec §4.6). Clusters that already have a terminal decision are skipped
// (resume contract). Run updates Decisions and Exclusions in place.
type Loop struct {
	Clusters   []domain.Cluster
	Decisions  map[string]domain.Decision
	Exclusions *domain.ExclusionSet
	Prompter   Prompter
	Store      Store
	ExclStore  interface{ Save(*domain.ExclusionSet) error }
}

// Run drives the queue pointer forward over l.Clusters, skipping any
// cluster whose stored decision is already terminal (the resume contract).
// Navigation actions (spec §4.6 "Undo, SkipAllExisting") move the pointer
// without mutating any terminal decision other than the one Undo reopens:
// history records, in queue order, the index of every cluster this run
// just gave a terminal decision, so Undo can rewind to exactly that
// cluster and clear its decision, restoring it to Pending.
func (l *Loop) Run(ctx context.Context) error {
	var history []int
	i := 0
	for i < len(l.Clusters) {
		c := l.Clusters[i]
		key := c.Identity.Key()
		if existing, ok := l.Decisions[key]; ok && existing.Kind.Terminal() {
			i++
			continue
		}

		action, err := l.Prompter.SelectAction(c)
		if err != nil {
			return apperr.Internal("review prompt failed", err)
		}

		switch action {
		case actionUndo:
			if len(history) == 0 {
				continue
			}
			prev := history[len(history)-1]
			history = history[:len(history)-1]
			prevKey := l.Clusters[prev].Identity.Key()
			prevDecision := l.Decisions[prevKey]
			delete(l.Decisions, prevKey)
			if prevDecision.Kind == domain.DecisionExcludePermanent {
				l.Exclusions.Remove(prevKey)
				if err := l.ExclStore.Save(l.Exclusions); err != nil {
					return err
				}
			}
			if err := l.Store.Save(l.Decisions); err != nil {
				return err
			}
			i = prev
			continue
		case actionSkipAllExisting:
			for i < len(l.Clusters) && l.Clusters[i].ExistingFilter != nil {
				i++
			}
			continue
		}

		dec, err := l.decideOne(c, action)
		if err != nil {
			return err
		}
		if dec.Kind == domain.DecisionSkip || dec.Kind == domain.DecisionDeferred {
			i++
			continue
		}

		if dec.Kind == domain.DecisionExcludePermanent {
			l.Exclusions.Add(key)
			if c.ExistingFilter != nil {
				dec.ExistingFilterID = c.ExistingFilter.ID
			}
			if err := l.ExclStore.Save(l.Exclusions); err != nil {
				return err
			}
		}

		l.Decisions[key] = dec
		if err := l.Store.Save(l.Decisions); err != nil {
			return err
		}
		history = append(history, i)
		i++
	}
	return nil
}

func (l *Loop) decideOne(c domain.Cluster, action string) (domain.Decision, error) {
	switch action {
	case actionAccept:
		return domain.Decision{Kind: domain.DecisionAccept, Label: c.SuggestedLabel, Archive: c.ArchiveHint}, nil
	case actionEditLabel:
		label, err := l.Prompter.InputLabel(c.SuggestedLabel)
		if err != nil {
			return domain.Decision{}, err
		}
		kind := domain.DecisionAccept
		if c.ExistingFilter != nil {
			kind = domain.DecisionUpdateExisting
		}
		dec := domain.Decision{Kind: kind, Label: label, Archive: c.ArchiveHint}
		if c.ExistingFilter != nil {
			dec.ExistingFilterID = c.ExistingFilter.ID
		}
		return dec, nil
	case actionKeep:
		return domain.Decision{Kind: domain.DecisionKeepExisting, ExistingFilterID: existingID(c)}, nil
	case actionUpdate:
		return domain.Decision{Kind: domain.DecisionUpdateExisting, Label: c.SuggestedLabel, Archive: c.ArchiveHint, ExistingFilterID: existingID(c)}, nil
	case actionDeleteExisting:
		return domain.Decision{Kind: domain.DecisionDeleteExisting, ExistingFilterID: existingID(c)}, nil
	case actionReject:
		return domain.Decision{Kind: domain.DecisionReject}, nil
	case actionExclude:
		return domain.Decision{Kind: domain.DecisionExcludePermanent}, nil
	case actionSkip:
		return domain.Decision{Kind: domain.DecisionSkip}, nil
	case actionDefer:
		return domain.Decision{Kind: domain.DecisionDeferred}, nil
	default:
		return domain.Decision{Kind: domain.DecisionSkip}, nil
	}
}

func existingID(c domain.Cluster) string {
	if c.ExistingFilter == nil {
		return ""
	}
	return c.ExistingFilter.ID
}

// NonInteractiveAccept implements the --no-review mode: every cluster
// receives Accept with the proposed label/archive (spec §4.6).
func NonInteractiveAccept(clusters []domain.Cluster, decisions map[string]domain.Decision) {
	for _, c := range clusters {
		key := c.Identity.Key()
		if existing, ok := decisions[key]; ok && existing.Kind.Terminal() {
			continue
		}
		decisions[key] = domain.Decision{Kind: domain.DecisionAccept, Label: c.SuggestedLabel, Archive: c.ArchiveHint}
	}
}

package service

import (
	"fmt"
	"log/slog"
	"sort"

	"github.com/MrF3lix/archre/model"
)

// Triage verdicts
const (
	VerdictSignificant = "significant"
	VerdictIrrelevant  = "irrelevant"
	VerdictUndecided   = "undecided"
)

// TriageDecision is one expert verdict on a candidate change. Indices
// refer to the diff artifact's suggestions_for_investigation list.
type TriageDecision struct {
	ChangeIndex int    `json:"change_index"`
	Verdict     string `json:"verdict" binding:"required"`
	ExpertNote  string `json:"expert_note,omitempty"`
}

// TriageAggregator merges expert decisions with the computed diff
// artifact into the persisted significant/irrelevant partition.
type TriageAggregator struct {
	store *ProcessStore
}

func NewTriageAggregator(store *ProcessStore) *TriageAggregator {
	return &TriageAggregator{store: store}
}

// SaveTriage validates the decisions against the current diff artifact
// and replaces the triage snapshot. Each call is a full replace, last
// write wins; omitted indices count as undecided. A decision referencing
// an index the diff artifact does not contain means the client triaged a
// stale diff and the whole submission is rejected unchanged.
func (a *TriageAggregator) SaveTriage(processID string, decisions []TriageDecision) error {
	p := a.store.Get(processID)
	if p == nil {
		return ErrProcessNotFound
	}
	if p.Status != model.StatusDiffReady {
		return ErrAlreadyInProgress
	}

	candidates := p.DiffResult.SuggestionsForInvestigation

	seen := make(map[int]bool, len(decisions))
	for _, d := range decisions {
		if d.ChangeIndex < 0 || d.ChangeIndex >= len(candidates) {
			return &ValidationError{Msg: fmt.Sprintf("change index %d is not part of the current diff", d.ChangeIndex)}
		}
		if seen[d.ChangeIndex] {
			return &ValidationError{Msg: fmt.Sprintf("change index %d has more than one verdict", d.ChangeIndex)}
		}
		seen[d.ChangeIndex] = true

		switch d.Verdict {
		case VerdictSignificant, VerdictIrrelevant, VerdictUndecided:
		default:
			return &ValidationError{Msg: fmt.Sprintf("unknown verdict %q for change index %d", d.Verdict, d.ChangeIndex)}
		}
	}

	significant := make([]model.SignificantChange, 0, len(decisions))
	irrelevant := make([]int, 0, len(decisions))
	for _, d := range decisions {
		switch d.Verdict {
		case VerdictSignificant:
			significant = append(significant, model.SignificantChange{
				ChangeIndex:        d.ChangeIndex,
				ChangeText:         candidates[d.ChangeIndex],
				InvestigateFurther: true,
				ExpertNote:         d.ExpertNote,
			})
		case VerdictIrrelevant:
			irrelevant = append(irrelevant, d.ChangeIndex)
		}
	}

	sort.Slice(significant, func(i, j int) bool {
		return significant[i].ChangeIndex < significant[j].ChangeIndex
	})
	sort.Ints(irrelevant)

	if err := a.store.SaveTriage(processID, significant, irrelevant); err != nil {
		return err
	}

	slog.Info("triage saved",
		"process_id", processID,
		"significant", len(significant),
		"irrelevant", len(irrelevant),
	)
	return nil
}

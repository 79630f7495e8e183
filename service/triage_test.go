package service

import (
	"errors"
	"testing"

	"github.com/MrF3lix/archre/config"
	"github.com/MrF3lix/archre/model"
)

func newDiffReadyStore(t *testing.T, suggestions []string) *ProcessStore {
	t.Helper()
	store := NewProcessStore(&config.StoreConfig{})
	store.Create(newUploadedProcess("p1"))
	if _, err := store.BeginDiffStage("p1"); err != nil {
		t.Fatalf("Failed to begin diff stage: %v", err)
	}
	err := store.CompleteDiff("p1", &model.DiffResult{
		SignificantChanges:          []string{"limit raised"},
		SuggestionsForInvestigation: suggestions,
	})
	if err != nil {
		t.Fatalf("Failed to complete diff: %v", err)
	}
	return store
}

func TestSaveTriagePartition(t *testing.T) {
	store := newDiffReadyStore(t, []string{"clause 4 changed", "premium wording", "exclusion added"})
	aggregator := NewTriageAggregator(store)

	err := aggregator.SaveTriage("p1", []TriageDecision{
		{ChangeIndex: 0, Verdict: VerdictSignificant, ExpertNote: "material change"},
		{ChangeIndex: 1, Verdict: VerdictIrrelevant},
		{ChangeIndex: 2, Verdict: VerdictUndecided},
	})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	p := store.Get("p1")
	if len(p.SignificantChanges) != 1 {
		t.Fatalf("Expected 1 significant change, got %d", len(p.SignificantChanges))
	}
	sc := p.SignificantChanges[0]
	if sc.ChangeIndex != 0 || sc.ChangeText != "clause 4 changed" || !sc.InvestigateFurther || sc.ExpertNote != "material change" {
		t.Errorf("Unexpected significant change: %+v", sc)
	}

	if len(p.IrrelevantChanges) != 1 || p.IrrelevantChanges[0] != 1 {
		t.Errorf("Unexpected irrelevant changes: %v", p.IrrelevantChanges)
	}

	// The sets partition the decided indices: no overlap, undecided in
	// neither.
	for _, sc := range p.SignificantChanges {
		for _, idx := range p.IrrelevantChanges {
			if sc.ChangeIndex == idx {
				t.Errorf("Index %d appears in both sets", idx)
			}
		}
		if sc.ChangeIndex == 2 {
			t.Error("Undecided index must not appear in significant changes")
		}
	}
}

func TestSaveTriageOnlyIrrelevant(t *testing.T) {
	store := newDiffReadyStore(t, []string{"clause 4 changed"})
	aggregator := NewTriageAggregator(store)

	err := aggregator.SaveTriage("p1", []TriageDecision{
		{ChangeIndex: 0, Verdict: VerdictIrrelevant},
	})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	p := store.Get("p1")
	if p.SignificantChanges == nil {
		t.Error("Expected a saved (empty) significant set, not nil")
	}
	if len(p.SignificantChanges) != 0 {
		t.Errorf("Expected 0 significant changes, got %d", len(p.SignificantChanges))
	}
	if len(p.IrrelevantChanges) != 1 {
		t.Errorf("Expected 1 irrelevant change, got %d", len(p.IrrelevantChanges))
	}
}

func TestSaveTriageStaleIndexRejected(t *testing.T) {
	store := newDiffReadyStore(t, []string{"clause 4 changed"})
	aggregator := NewTriageAggregator(store)

	err := aggregator.SaveTriage("p1", []TriageDecision{
		{ChangeIndex: 5, Verdict: VerdictSignificant},
	})
	if !AsValidationError(err) {
		t.Fatalf("Expected ValidationError, got %v", err)
	}

	// A rejected submission leaves the triage fields unchanged.
	p := store.Get("p1")
	if p.SignificantChanges != nil || p.IrrelevantChanges != nil {
		t.Error("Expected triage fields to stay unset after rejection")
	}
}

func TestSaveTriageNegativeIndexRejected(t *testing.T) {
	store := newDiffReadyStore(t, []string{"a"})
	aggregator := NewTriageAggregator(store)

	err := aggregator.SaveTriage("p1", []TriageDecision{
		{ChangeIndex: -1, Verdict: VerdictIrrelevant},
	})
	if !AsValidationError(err) {
		t.Errorf("Expected ValidationError, got %v", err)
	}
}

func TestSaveTriageDuplicateIndexRejected(t *testing.T) {
	store := newDiffReadyStore(t, []string{"a", "b"})
	aggregator := NewTriageAggregator(store)

	err := aggregator.SaveTriage("p1", []TriageDecision{
		{ChangeIndex: 0, Verdict: VerdictSignificant},
		{ChangeIndex: 0, Verdict: VerdictIrrelevant},
	})
	if !AsValidationError(err) {
		t.Errorf("Expected ValidationError, got %v", err)
	}
}

func TestSaveTriageUnknownVerdictRejected(t *testing.T) {
	store := newDiffReadyStore(t, []string{"a"})
	aggregator := NewTriageAggregator(store)

	err := aggregator.SaveTriage("p1", []TriageDecision{
		{ChangeIndex: 0, Verdict: "maybe"},
	})
	if !AsValidationError(err) {
		t.Errorf("Expected ValidationError, got %v", err)
	}
}

func TestSaveTriageReplacesPriorSnapshot(t *testing.T) {
	store := newDiffReadyStore(t, []string{"a", "b"})
	aggregator := NewTriageAggregator(store)

	aggregator.SaveTriage("p1", []TriageDecision{
		{ChangeIndex: 0, Verdict: VerdictSignificant, ExpertNote: "first pass"},
		{ChangeIndex: 1, Verdict: VerdictIrrelevant},
	})

	// The expert revises: index 0 is now irrelevant, index 1 significant.
	err := aggregator.SaveTriage("p1", []TriageDecision{
		{ChangeIndex: 0, Verdict: VerdictIrrelevant},
		{ChangeIndex: 1, Verdict: VerdictSignificant, ExpertNote: "second pass"},
	})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	p := store.Get("p1")
	if len(p.SignificantChanges) != 1 || p.SignificantChanges[0].ChangeIndex != 1 {
		t.Errorf("Expected replaced snapshot, got %+v", p.SignificantChanges)
	}
	if p.SignificantChanges[0].ExpertNote != "second pass" {
		t.Errorf("Expected revised note, got %s", p.SignificantChanges[0].ExpertNote)
	}
	if len(p.IrrelevantChanges) != 1 || p.IrrelevantChanges[0] != 0 {
		t.Errorf("Expected replaced irrelevant set, got %v", p.IrrelevantChanges)
	}
}

func TestSaveTriageWrongStatus(t *testing.T) {
	store := NewProcessStore(&config.StoreConfig{})
	store.Create(newUploadedProcess("p1"))
	aggregator := NewTriageAggregator(store)

	err := aggregator.SaveTriage("p1", nil)
	if !errors.Is(err, ErrAlreadyInProgress) {
		t.Errorf("Expected rejection outside DIFF_READY, got %v", err)
	}
}

func TestSaveTriageUnknownProcess(t *testing.T) {
	aggregator := NewTriageAggregator(NewProcessStore(&config.StoreConfig{}))

	err := aggregator.SaveTriage("missing", nil)
	if !errors.Is(err, ErrProcessNotFound) {
		t.Errorf("Expected ErrProcessNotFound, got %v", err)
	}
}

package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/MrF3lix/archre/model"
)

// Orchestrator drives a process through its stages. Each stage-start is
// an atomic check-and-transition in the store, so a double-click or a
// replayed request can never dispatch the same expensive analysis call
// twice for one process. Remote failures are converted into persisted
// status and error kind; they never surface as errors to the caller.
type Orchestrator struct {
	store    *ProcessStore
	gateway  AnalysisGateway
	notifier *StatusNotifier
}

func NewOrchestrator(store *ProcessStore, gateway AnalysisGateway, notifier *StatusNotifier) *Orchestrator {
	return &Orchestrator{
		store:    store,
		gateway:  gateway,
		notifier: notifier,
	}
}

// StartDiffStage transitions UPLOADED -> PROCESSING_DIFF and dispatches
// the diff call asynchronously. Returns ErrAlreadyInProgress without
// dispatching anything when the process has already left UPLOADED.
func (o *Orchestrator) StartDiffStage(processID string) error {
	p, err := o.store.BeginDiffStage(processID)
	if err != nil {
		return err
	}

	o.publish(p.ID, model.StatusProcessingDiff, "")
	slog.Info("diff stage started",
		"process_id", p.ID,
		"contract_old", p.Documents.Old,
		"contract_new", p.Documents.New,
	)

	go o.runDiff(p)
	return nil
}

// StartReportStage transitions DIFF_READY -> PROCESSING_REPORT and
// dispatches the report call asynchronously. The triage snapshot is
// logically frozen from here on: saves are rejected once the process
// leaves DIFF_READY.
func (o *Orchestrator) StartReportStage(processID string) error {
	p, err := o.store.BeginReportStage(processID)
	if err != nil {
		return err
	}

	o.publish(p.ID, model.StatusProcessingReport, "")
	slog.Info("report stage started",
		"process_id", p.ID,
		"significant_changes", len(p.SignificantChanges),
	)

	go o.runReport(p)
	return nil
}

// ResetToPreviousStage is the manual operator retry path out of ERROR.
func (o *Orchestrator) ResetToPreviousStage(processID string) (string, error) {
	status, err := o.store.ResetFromError(processID)
	if err != nil {
		return "", err
	}

	o.publish(processID, status, "")
	slog.Info("process reset by operator", "process_id", processID, "status", status)
	return status, nil
}

// runDiff performs the remote diff call. It runs on a background
// context: once dispatched the call is not cancellable, a user
// navigating away must not abort it, and the result is persisted
// whenever it arrives.
func (o *Orchestrator) runDiff(p *model.Process) {
	result, err := o.gateway.Diff(context.Background(), p.ClientCountry, p.Documents.Old, p.Documents.New)
	if err != nil {
		o.failStage(p.ID, "diff", err)
		return
	}

	if err := o.store.CompleteDiff(p.ID, result); err != nil {
		slog.Error("failed to persist diff result", "process_id", p.ID, "error", err)
		return
	}

	o.publish(p.ID, model.StatusDiffReady, "")
	slog.Info("diff stage completed",
		"process_id", p.ID,
		"candidate_changes", len(result.SuggestionsForInvestigation),
	)
}

// runReport performs the remote report generation call with the
// investigation points built from the triaged changes and the raw diff
// artifact.
func (o *Orchestrator) runReport(p *model.Process) {
	points := make([]string, 0, len(p.SignificantChanges))
	for _, sc := range p.SignificantChanges {
		points = append(points, fmt.Sprintf("%s, EXPERT NOTE: %s", sc.ChangeText, sc.ExpertNote))
	}

	significantChangesJSON := ""
	if p.DiffResult != nil {
		if data, err := json.Marshal(p.DiffResult.SignificantChanges); err == nil {
			significantChangesJSON = string(data)
		}
	}

	result, err := o.gateway.GenerateReport(context.Background(), p.ClientCountry, points, significantChangesJSON)
	if err != nil {
		o.failStage(p.ID, "report", err)
		return
	}

	if err := o.store.CompleteReport(p.ID, result); err != nil {
		slog.Error("failed to persist report result", "process_id", p.ID, "error", err)
		return
	}

	o.publish(p.ID, model.StatusDone, "")
	if result.Produced {
		slog.Info("report stage completed", "process_id", p.ID)
	} else {
		slog.Warn("report stage completed without a report", "process_id", p.ID)
	}
}

// failStage records the failure on the process. Nothing is retried
// automatically: the analysis calls are costly and not known to be
// idempotent, so recovery is the operator's reset action.
func (o *Orchestrator) failStage(processID, stage string, err error) {
	kind := classifyRemoteError(err)
	if storeErr := o.store.Fail(processID, kind, err.Error()); storeErr != nil {
		slog.Error("failed to persist stage failure",
			"process_id", processID,
			"stage", stage,
			"error", storeErr,
		)
		return
	}

	o.publish(processID, model.StatusError, kind)
	slog.Error("stage failed",
		"process_id", processID,
		"stage", stage,
		"kind", kind,
		"error", err,
	)
}

func (o *Orchestrator) publish(processID, status, errorKind string) {
	o.notifier.Publish(StatusEvent{
		ProcessID: processID,
		Status:    status,
		ErrorKind: errorKind,
	})
}

func classifyRemoteError(err error) string {
	switch {
	case errors.Is(err, ErrRemoteTimeout):
		return model.ErrorKindRemoteTimeout
	case errors.Is(err, ErrRemoteMalformed):
		return model.ErrorKindRemoteMalformed
	default:
		return model.ErrorKindRemoteFailed
	}
}

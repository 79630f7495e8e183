package service

import (
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/MrF3lix/archre/config"
	"github.com/MrF3lix/archre/model"
)

// ProcessStore is an in-memory store for review processes.
// In production, this should be replaced with a database; every status
// mutation below is a compare-and-swap under one lock so the stage-start
// guards stay race-free when that happens.
type ProcessStore struct {
	processes    map[string]*model.Process
	mu           sync.RWMutex
	maxProcesses int // Maximum processes to keep, 0 = unlimited
}

// NewProcessStore creates a store with the configured retention bound.
func NewProcessStore(cfg *config.StoreConfig) *ProcessStore {
	maxProcesses := 0
	if cfg != nil && cfg.MaxProcesses > 0 {
		maxProcesses = cfg.MaxProcesses
	}
	slog.Info("process store initialized", "max_processes", maxProcesses)
	return &ProcessStore{
		processes:    make(map[string]*model.Process),
		maxProcesses: maxProcesses,
	}
}

// Create registers a new process record.
func (s *ProcessStore) Create(p *model.Process) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p.UpdatedAt = time.Now()
	s.processes[p.ID] = clone(p)

	s.cleanupIfNeeded()
}

// Get returns a copy of the process so callers cannot mutate shared
// state behind the store's back.
func (s *ProcessStore) Get(id string) *model.Process {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return clone(s.processes[id])
}

// GetByTenant returns all processes owned by the given tenant.
func (s *ProcessStore) GetByTenant(tenant string) []*model.Process {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*model.Process
	for _, p := range s.processes {
		if p.Tenant == tenant {
			result = append(result, clone(p))
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result
}

// Delete removes a process record.
func (s *ProcessStore) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.processes, id)
}

// BeginDiffStage atomically checks the diff-stage precondition and
// transitions UPLOADED -> PROCESSING_DIFF. It returns a snapshot of the
// process for the dispatched call. A process that has already left
// UPLOADED yields ErrAlreadyInProgress and no state change.
func (s *ProcessStore) BeginDiffStage(id string) (*model.Process, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.processes[id]
	if !ok {
		return nil, ErrProcessNotFound
	}
	if p.Status != model.StatusUploaded {
		return nil, ErrAlreadyInProgress
	}

	p.Status = model.StatusProcessingDiff
	p.UpdatedAt = time.Now()
	return clone(p), nil
}

// BeginReportStage atomically checks the report-stage precondition
// (DIFF_READY with saved triage) and transitions to PROCESSING_REPORT.
func (s *ProcessStore) BeginReportStage(id string) (*model.Process, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.processes[id]
	if !ok {
		return nil, ErrProcessNotFound
	}
	if p.Status != model.StatusDiffReady {
		return nil, ErrAlreadyInProgress
	}
	if p.SignificantChanges == nil {
		return nil, ErrTriageMissing
	}

	p.Status = model.StatusProcessingReport
	p.UpdatedAt = time.Now()
	return clone(p), nil
}

// CompleteDiff persists the diff artifact and transitions
// PROCESSING_DIFF -> DIFF_READY. The artifact is set exactly once.
func (s *ProcessStore) CompleteDiff(id string, result *model.DiffResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.processes[id]
	if !ok {
		return ErrProcessNotFound
	}
	if p.DiffResult != nil {
		return ErrDiffResultSet
	}
	if p.Status != model.StatusProcessingDiff {
		return ErrAlreadyInProgress
	}

	p.DiffResult = result
	p.Status = model.StatusDiffReady
	p.ErrorKind = ""
	p.ErrorMsg = ""
	p.UpdatedAt = time.Now()
	return nil
}

// CompleteReport persists the report artifact (which may be the explicit
// empty-report marker) and transitions PROCESSING_REPORT -> DONE.
func (s *ProcessStore) CompleteReport(id string, result *model.ReportResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.processes[id]
	if !ok {
		return ErrProcessNotFound
	}
	if p.ReportResult != nil {
		return ErrReportResultSet
	}
	if p.Status != model.StatusProcessingReport {
		return ErrAlreadyInProgress
	}

	p.ReportResult = result
	p.Status = model.StatusDone
	p.ErrorKind = ""
	p.ErrorMsg = ""
	p.UpdatedAt = time.Now()
	return nil
}

// Fail moves a non-terminal process to ERROR and records the failure
// kind and message so the UI can distinguish timeout from a run that
// produced nothing.
func (s *ProcessStore) Fail(id, kind, msg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.processes[id]
	if !ok {
		return ErrProcessNotFound
	}
	if model.IsTerminal(p.Status) {
		return ErrAlreadyInProgress
	}

	p.Status = model.StatusError
	p.ErrorKind = kind
	p.ErrorMsg = msg
	p.UpdatedAt = time.Now()
	return nil
}

// SaveTriage replaces the triage snapshot. Allowed only while the
// process sits in DIFF_READY; a save racing an in-flight stage is
// rejected here under the same lock the stage guards use.
func (s *ProcessStore) SaveTriage(id string, significant []model.SignificantChange, irrelevant []int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.processes[id]
	if !ok {
		return ErrProcessNotFound
	}
	if p.Status != model.StatusDiffReady {
		return ErrAlreadyInProgress
	}

	p.SignificantChanges = significant
	p.IrrelevantChanges = irrelevant
	p.UpdatedAt = time.Now()
	return nil
}

// SetReportDraft stores the user-owned draft text. The draft exists only
// once the report stage has completed and is never touched by the
// orchestrator afterwards.
func (s *ProcessStore) SetReportDraft(id, draft string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.processes[id]
	if !ok {
		return ErrProcessNotFound
	}
	if p.ReportResult == nil {
		return ErrDraftNotReady
	}

	p.ReportDraft = draft
	p.UpdatedAt = time.Now()
	return nil
}

// ResetFromError is the manual operator action that moves an ERROR
// process back to the last stable stage: DIFF_READY when a diff artifact
// exists, UPLOADED otherwise. Returns the new status.
func (s *ProcessStore) ResetFromError(id string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.processes[id]
	if !ok {
		return "", ErrProcessNotFound
	}
	if p.Status != model.StatusError {
		return "", ErrNotResettable
	}

	if p.DiffResult != nil {
		p.Status = model.StatusDiffReady
	} else {
		p.Status = model.StatusUploaded
	}
	p.ErrorKind = ""
	p.ErrorMsg = ""
	p.UpdatedAt = time.Now()
	return p.Status, nil
}

// Count returns the number of processes in the store
func (s *ProcessStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.processes)
}

// cleanupIfNeeded removes oldest processes if store exceeds maxProcesses
// Must be called with lock held
func (s *ProcessStore) cleanupIfNeeded() {
	if s.maxProcesses <= 0 {
		return // Unlimited
	}

	if len(s.processes) <= s.maxProcesses {
		return
	}

	processes := make([]*model.Process, 0, len(s.processes))
	for _, p := range s.processes {
		processes = append(processes, p)
	}
	sort.Slice(processes, func(i, j int) bool {
		return processes[i].CreatedAt.Before(processes[j].CreatedAt)
	})

	removeCount := len(processes) - s.maxProcesses
	for i := 0; i < removeCount; i++ {
		slog.Info("auto-cleaning old process",
			"process_id", processes[i].ID,
			"created_at", processes[i].CreatedAt,
		)
		delete(s.processes, processes[i].ID)
	}
}

// clone deep-copies the mutable parts of a process record.
func clone(p *model.Process) *model.Process {
	if p == nil {
		return nil
	}
	cp := *p
	if p.DiffResult != nil {
		dr := *p.DiffResult
		dr.SignificantChanges = copyStrings(p.DiffResult.SignificantChanges)
		dr.SuggestionsForInvestigation = copyStrings(p.DiffResult.SuggestionsForInvestigation)
		cp.DiffResult = &dr
	}
	// A non-nil empty triage is meaningful: it marks that triage was
	// saved, so copies must not collapse empty slices to nil.
	if p.SignificantChanges != nil {
		cp.SignificantChanges = make([]model.SignificantChange, len(p.SignificantChanges))
		copy(cp.SignificantChanges, p.SignificantChanges)
	}
	if p.IrrelevantChanges != nil {
		cp.IrrelevantChanges = make([]int, len(p.IrrelevantChanges))
		copy(cp.IrrelevantChanges, p.IrrelevantChanges)
	}
	if p.ReportResult != nil {
		rr := *p.ReportResult
		if p.ReportResult.Report != nil {
			rep := *p.ReportResult.Report
			rr.Report = &rep
		}
		cp.ReportResult = &rr
	}
	return &cp
}

func copyStrings(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}

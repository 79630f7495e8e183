package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/MrF3lix/archre/config"
	"github.com/MrF3lix/archre/model"
)

// AnalysisGateway is the boundary to the external analysis service. Both
// calls are synchronous with a bounded timeout and are never retried
// here; retry policy belongs to the orchestrator.
type AnalysisGateway interface {
	Diff(ctx context.Context, country, contractOld, contractNew string) (*model.DiffResult, error)
	GenerateReport(ctx context.Context, client string, investigationPoints []string, significantChangesJSON string) (*model.ReportResult, error)
}

// ReporterService calls the reporter HTTP API.
type ReporterService struct {
	config     *config.ReporterConfig
	httpClient *http.Client
}

// DiffRequest is the contract diff call payload.
type DiffRequest struct {
	Country     string `json:"country"`
	ContractOld string `json:"contract_old"`
	ContractNew string `json:"contract_new"`
}

// ReportRequest is the report generation call payload.
type ReportRequest struct {
	Client                 string   `json:"client"`
	InvestigationPoints    []string `json:"investigation_points"`
	SignificantChangesJSON string   `json:"significant_changes_json"`
}

type reportResponse struct {
	Report *model.Report `json:"report"`
}

// NewReporterService builds the gateway client. A missing API token is a
// configuration error: the reporter endpoint must never be called
// unauthenticated.
func NewReporterService(cfg *config.ReporterConfig) (*ReporterService, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("reporter base URL is not configured")
	}
	if cfg.APIToken == "" {
		return nil, fmt.Errorf("reporter API token is not configured")
	}

	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 120 * time.Second
	}

	return &ReporterService{
		config: cfg,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}, nil
}

// Diff asks the reporter service to compare two contract wordings. The
// document references must be resolvable by the backing document store.
func (s *ReporterService) Diff(ctx context.Context, country, contractOld, contractNew string) (*model.DiffResult, error) {
	body, err := s.post(ctx, "/contractdiff", DiffRequest{
		Country:     country,
		ContractOld: contractOld,
		ContractNew: contractNew,
	})
	if err != nil {
		return nil, err
	}

	var result model.DiffResult
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("%w: failed to parse diff response: %v", ErrRemoteMalformed, err)
	}
	if result.SuggestionsForInvestigation == nil {
		return nil, fmt.Errorf("%w: diff response has no suggestions_for_investigation", ErrRemoteMalformed)
	}

	return &result, nil
}

// GenerateReport asks the reporter service to draft an underwriting
// report from the triaged changes. A well-formed response without a
// report is not an error: it returns the explicit empty-report marker so
// the caller can tell "generation ran but produced nothing" from a
// failed call.
func (s *ReporterService) GenerateReport(ctx context.Context, client string, investigationPoints []string, significantChangesJSON string) (*model.ReportResult, error) {
	body, err := s.post(ctx, "/generate", ReportRequest{
		Client:                 client,
		InvestigationPoints:    investigationPoints,
		SignificantChangesJSON: significantChangesJSON,
	})
	if err != nil {
		return nil, err
	}

	var result reportResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("%w: failed to parse report response: %v", ErrRemoteMalformed, err)
	}
	if result.Report == nil {
		return &model.ReportResult{Produced: false}, nil
	}

	return &model.ReportResult{Produced: true, Report: result.Report}, nil
}

func (s *ReporterService) post(ctx context.Context, path string, payload any) ([]byte, error) {
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.config.BaseURL+path, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+s.config.APIToken)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		if isTimeout(err) {
			return nil, fmt.Errorf("%w: %v", ErrRemoteTimeout, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrRemoteFailed, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		if isTimeout(err) {
			return nil, fmt.Errorf("%w: %v", ErrRemoteTimeout, err)
		}
		return nil, fmt.Errorf("%w: failed to read response: %v", ErrRemoteFailed, err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: reporter returned status %d: %s", ErrRemoteFailed, resp.StatusCode, string(body))
	}

	return body, nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

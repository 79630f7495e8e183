package model

import (
	"time"
)

// Process tracks one underwriting review from wording upload through
// the drafted report.
type Process struct {
	ID                 string              `json:"id"`
	ClientRef          string              `json:"client_ref"`
	ClientCountry      string              `json:"client_country"`
	Tenant             string              `json:"tenant"`
	Documents          DocumentPair        `json:"documents"`
	Status             string              `json:"status"`
	DiffResult         *DiffResult         `json:"diff_result,omitempty"`
	SignificantChanges []SignificantChange `json:"significant_changes,omitempty"`
	IrrelevantChanges  []int               `json:"irrelevant_changes,omitempty"`
	ReportResult       *ReportResult       `json:"report_result,omitempty"`
	ReportDraft        string              `json:"report_draft,omitempty"`
	ErrorKind          string              `json:"error_kind,omitempty"`
	ErrorMsg           string              `json:"error_msg,omitempty"`
	CreatedAt          time.Time           `json:"created_at"`
	UpdatedAt          time.Time           `json:"updated_at"`
}

// DocumentPair is the ordered old/new wording pair. Both references are
// object names resolvable by the document store.
type DocumentPair struct {
	Old string `json:"old"`
	New string `json:"new"`
}

// DiffResult is the artifact returned by the contract diff call.
type DiffResult struct {
	SignificantChanges          []string `json:"significant_changes"`
	OverallImpression           string   `json:"overall_impression"`
	SuggestionsForInvestigation []string `json:"suggestions_for_investigation"`
}

// SignificantChange is one triaged candidate change the expert wants
// investigated further.
type SignificantChange struct {
	ChangeIndex        int    `json:"change_index"`
	ChangeText         string `json:"change_text"`
	InvestigateFurther bool   `json:"investigate_further"`
	ExpertNote         string `json:"expert_note"`
}

// Report is the structured underwriting report drafted by the report
// generation call.
type Report struct {
	QuotationLine       string   `json:"quotation_line"`
	Rationale           string   `json:"rationale"`
	KeyFindings         []string `json:"key_findings"`
	InvestigationPoints []string `json:"investigation_points"`
	MissingInformation  []string `json:"missing_information"`
	Markdown            string   `json:"report_markdown"`
}

// ReportResult wraps the report call outcome. Produced is false when the
// call completed at the transport level but the service drafted nothing;
// that marker is distinct from a failed call, which leaves the result nil.
type ReportResult struct {
	Produced bool    `json:"produced"`
	Report   *Report `json:"report,omitempty"`
}

// Process status constants
const (
	StatusUploaded         = "UPLOADED"
	StatusProcessingDiff   = "PROCESSING_DIFF"
	StatusDiffReady        = "DIFF_READY"
	StatusProcessingReport = "PROCESSING_REPORT"
	StatusDone             = "DONE"
	StatusError            = "ERROR"
)

// Error kind constants, persisted on the process when a stage fails
const (
	ErrorKindRemoteTimeout   = "REMOTE_TIMEOUT"
	ErrorKindRemoteMalformed = "REMOTE_MALFORMED_RESULT"
	ErrorKindRemoteFailed    = "REMOTE_FAILED"
)

// IsTerminal reports whether no further automatic transition leaves the
// given status.
func IsTerminal(status string) bool {
	return status == StatusDone || status == StatusError
}

// CanTransition reports whether moving from one status to another is a
// legal edge of the process state machine. The happy path is monotone;
// ERROR is reachable from any non-terminal state and leads back only via
// the operator reset edges.
func CanTransition(from, to string) bool {
	switch from {
	case StatusUploaded:
		return to == StatusProcessingDiff || to == StatusError
	case StatusProcessingDiff:
		return to == StatusDiffReady || to == StatusError
	case StatusDiffReady:
		return to == StatusProcessingReport || to == StatusError
	case StatusProcessingReport:
		return to == StatusDone || to == StatusError
	case StatusError:
		return to == StatusUploaded || to == StatusDiffReady
	default:
		return false
	}
}

package entity

import (
	"path/filepath"
	"time"

	"github.com/joseph-ayodele/invoice-reconciler/constants"
)

// StageTrace records how one pipeline stage went.
type StageTrace struct {
	Stage      constants.Stage       `json:"stage"`
	DurationMS int64                 `json:"duration_ms"`
	Confidence float64               `json:"confidence"`
	Status     constants.StageStatus `json:"status"`
	Details    map[string]any        `json:"details,omitempty"`
}

// ProcessingState is the accumulating record for one invoice run.
// Each run owns its state; stages write only the fields they are responsible for.
type ProcessingState struct {
	RunID        string    `json:"run_id"`
	DocumentPath string    `json:"document_path"`
	StartedAt    time.Time `json:"started_at"`
	FinishedAt   time.Time `json:"finished_at"`

	Invoice              *Invoice `json:"invoice,omitempty"`
	ExtractionConfidence float64  `json:"extraction_confidence"`
	DocumentQuality      string   `json:"document_quality"`
	ExtractionNotes      string   `json:"extraction_notes,omitempty"`
	RawText              string   `json:"-"`

	Match *MatchResult `json:"match,omitempty"`

	Discrepancies    []Discrepancy  `json:"discrepancies"`
	TotalVariance    *TotalVariance `json:"total_variance,omitempty"`
	DiscrepancyNotes string         `json:"discrepancy_notes,omitempty"`

	Action          constants.Action    `json:"recommended_action,omitempty"`
	RiskLevel       constants.RiskLevel `json:"risk_level,omitempty"`
	Confidence      float64             `json:"confidence"`
	ResolutionRule  string              `json:"resolution_rule,omitempty"`
	Reasoning       string              `json:"agent_reasoning,omitempty"`
	NarrativeSource string              `json:"narrative_source,omitempty"`

	EscalationReason string `json:"escalation_reason,omitempty"`

	Traces []StageTrace `json:"agent_execution_trace"`
	Errors []string     `json:"errors"`
}

func NewProcessingState(runID, path string, now time.Time) *ProcessingState {
	return &ProcessingState{
		RunID:         runID,
		DocumentPath:  path,
		StartedAt:     now,
		Discrepancies: []Discrepancy{},
		Traces:        []StageTrace{},
		Errors:        []string{},
	}
}

func (s *ProcessingState) AddError(msg string) {
	s.Errors = append(s.Errors, msg)
}

func (s *ProcessingState) AddTrace(t StageTrace) {
	s.Traces = append(s.Traces, t)
}

// Trace returns the first trace recorded for stage.
func (s *ProcessingState) Trace(stage constants.Stage) (StageTrace, bool) {
	for _, t := range s.Traces {
		if t.Stage == stage {
			return t, true
		}
	}
	return StageTrace{}, false
}

func (s *ProcessingState) FileName() string {
	return filepath.Base(s.DocumentPath)
}

// InvoiceID is the invoice number when known, else the document file name.
func (s *ProcessingState) InvoiceID() string {
	if s.Invoice != nil && s.Invoice.InvoiceNumber != "" {
		return s.Invoice.InvoiceNumber
	}
	return s.FileName()
}

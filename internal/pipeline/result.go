package pipeline

import (
	"math"
	"time"

	"github.com/joseph-ayodele/invoice-reconciler/constants"
	"github.com/joseph-ayodele/invoice-reconciler/internal/entity"
)

// Result is the output record written for each invoice.
type Result struct {
	InvoiceID                 string                  `json:"invoice_id"`
	RunID                     string                  `json:"run_id"`
	ProcessingTimestamp       string                  `json:"processing_timestamp"`
	ProcessingDurationSeconds float64                 `json:"processing_duration_seconds"`
	DocumentInfo              DocumentInfo            `json:"document_info"`
	ProcessingResults         ProcessingResults       `json:"processing_results"`
	AgentExecutionTrace       map[string]TraceSummary `json:"agent_execution_trace"`
	Errors                    []string                `json:"errors,omitempty"`
}

type DocumentInfo struct {
	Filename        string `json:"filename"`
	Path            string `json:"path,omitempty"`
	DocumentQuality string `json:"document_quality"`
}

type ProcessingResults struct {
	ExtractionConfidence float64               `json:"extraction_confidence"`
	DocumentQuality      string                `json:"document_quality"`
	ExtractionNotes      string                `json:"extraction_notes,omitempty"`
	ExtractedData        *entity.Invoice       `json:"extracted_data,omitempty"`
	MatchingResults      *entity.MatchResult   `json:"matching_results,omitempty"`
	Discrepancies        []entity.Discrepancy  `json:"discrepancies"`
	DiscrepancyNotes     string                `json:"discrepancy_notes,omitempty"`
	TotalVariance        *entity.TotalVariance `json:"total_variance,omitempty"`
	RecommendedAction    constants.Action      `json:"recommended_action"`
	RiskLevel            constants.RiskLevel   `json:"risk_level"`
	Confidence           float64               `json:"confidence"`
	ResolutionRule       string                `json:"resolution_rule,omitempty"`
	AgentReasoning       string                `json:"agent_reasoning"`
	NarrativeSource      string                `json:"narrative_source,omitempty"`
}

type TraceSummary struct {
	DurationMS int64                 `json:"duration_ms"`
	Confidence float64               `json:"confidence"`
	Status     constants.StageStatus `json:"status"`
}

// Format turns a finished run into its output record.
func Format(st *entity.ProcessingState) Result {
	finished := st.FinishedAt
	if finished.IsZero() {
		finished = time.Now()
	}

	traces := make(map[string]TraceSummary, len(st.Traces))
	for _, t := range st.Traces {
		traces[string(t.Stage)] = TraceSummary{DurationMS: t.DurationMS, Confidence: t.Confidence, Status: t.Status}
	}

	discrepancies := st.Discrepancies
	if discrepancies == nil {
		discrepancies = []entity.Discrepancy{}
	}

	r := Result{
		InvoiceID:                 st.InvoiceID(),
		RunID:                     st.RunID,
		ProcessingTimestamp:       finished.UTC().Format(time.RFC3339Nano),
		ProcessingDurationSeconds: math.Round(finished.Sub(st.StartedAt).Seconds()*100) / 100,
		DocumentInfo: DocumentInfo{
			Filename:        st.FileName(),
			Path:            st.DocumentPath,
			DocumentQuality: st.DocumentQuality,
		},
		ProcessingResults: ProcessingResults{
			ExtractionConfidence: st.ExtractionConfidence,
			DocumentQuality:      st.DocumentQuality,
			ExtractionNotes:      st.ExtractionNotes,
			ExtractedData:        st.Invoice,
			MatchingResults:      st.Match,
			Discrepancies:        discrepancies,
			DiscrepancyNotes:     st.DiscrepancyNotes,
			TotalVariance:        st.TotalVariance,
			RecommendedAction:    st.Action,
			RiskLevel:            st.RiskLevel,
			Confidence:           st.Confidence,
			ResolutionRule:       st.ResolutionRule,
			AgentReasoning:       st.Reasoning,
			NarrativeSource:      st.NarrativeSource,
		},
		AgentExecutionTrace: traces,
	}
	if len(st.Errors) > 0 {
		r.Errors = append([]string(nil), st.Errors...)
	}
	return r
}

// BatchSummary aggregates a set of results.
type BatchSummary struct {
	Processed int                      `json:"processed"`
	Failed    int                      `json:"failed"`
	Skipped   []string                 `json:"skipped,omitempty"`
	Actions   map[constants.Action]int `json:"actions"`
	Results   []Result                 `json:"results"`
}

// Summarize counts actions across results. A result with errors counts as failed.
func Summarize(results []Result, skipped []string) BatchSummary {
	s := BatchSummary{
		Processed: len(results),
		Skipped:   skipped,
		Actions:   map[constants.Action]int{},
		Results:   results,
	}
	for _, a := range constants.AllActions {
		s.Actions[a] = 0
	}
	for _, r := range results {
		s.Actions[r.ProcessingResults.RecommendedAction]++
		if len(r.Errors) > 0 {
			s.Failed++
		}
	}
	return s
}

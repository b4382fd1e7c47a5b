package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/invoice-reconciler/constants"
	"github.com/joseph-ayodele/invoice-reconciler/internal/common"
	"github.com/joseph-ayodele/invoice-reconciler/internal/discrepancy"
	"github.com/joseph-ayodele/invoice-reconciler/internal/entity"
	"github.com/joseph-ayodele/invoice-reconciler/internal/extract"
	"github.com/joseph-ayodele/invoice-reconciler/internal/narrate"
	"github.com/joseph-ayodele/invoice-reconciler/internal/resolution"
)

const (
	earlyEscalationConfidence = 0.95
	earlyEscalationRule       = "early_escalation"
)

// Matcher selects a purchase order for an invoice. A nil result is an internal fault.
type Matcher interface {
	Select(inv *entity.Invoice) *entity.MatchResult
}

// Processor sequences extraction, matching, discrepancy detection and resolution for
// one invoice at a time. It holds no per-invoice state and is safe for concurrent use
// as long as its collaborators are.
type Processor struct {
	extractor extract.Provider
	matcher   Matcher
	detector  *discrepancy.Detector
	policy    *resolution.Policy
	narrator  narrate.Narrator
	th        common.Thresholds
	logger    *slog.Logger
	now       func() time.Time
}

func NewProcessor(extractor extract.Provider, matcher Matcher, narrator narrate.Narrator, th common.Thresholds, logger *slog.Logger) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{
		extractor: extractor,
		matcher:   matcher,
		detector:  discrepancy.NewDetector(th, logger),
		policy:    resolution.NewPolicy(th, logger),
		narrator:  narrator,
		th:        th,
		logger:    logger,
		now:       time.Now,
	}
}

// Process runs one document through the pipeline. It always returns a state with a
// final action; failures are recorded on the state rather than returned.
func (p *Processor) Process(ctx context.Context, path string) *entity.ProcessingState {
	st := entity.NewProcessingState(uuid.NewString(), path, p.now())
	defer func() { st.FinishedAt = p.now() }()
	ctx = common.WithRunID(ctx, st.RunID)

	log := p.logger.With("run_id", st.RunID, "file", st.FileName())
	log.Info("pipeline.start")

	if err := p.runStage(ctx, st, constants.StageExtraction, p.extractStage); err != nil {
		st.AddError(err.Error())
	}
	if p.escalateAfterExtraction(st) {
		p.earlyEscalate(st)
		log.Warn("pipeline.early_escalation", "stage", constants.StageExtraction, "confidence", st.ExtractionConfidence)
		return st
	}

	err := p.runStage(ctx, st, constants.StageMatching, p.matchStage)
	if err == nil && st.Match == nil {
		err = common.LogicFault(string(constants.StageMatching), errors.New("matcher returned no result"))
	}
	if err != nil {
		st.AddError(err.Error())
		p.earlyEscalate(st)
		log.Warn("pipeline.early_escalation", "stage", constants.StageMatching, "error", err)
		return st
	}

	if err := p.runStage(ctx, st, constants.StageDiscrepancy, p.detectStage); err != nil {
		p.failSafe(st, constants.StageDiscrepancy, err)
		log.Error("pipeline.fault", "stage", constants.StageDiscrepancy, "error", err)
		return st
	}

	if err := p.runStage(ctx, st, constants.StageResolution, p.resolveStage); err != nil {
		p.failSafe(st, constants.StageResolution, err)
		log.Error("pipeline.fault", "stage", constants.StageResolution, "error", err)
		return st
	}

	log.Info("pipeline.done",
		"invoice", st.InvoiceID(),
		"action", st.Action,
		"risk", st.RiskLevel,
		"confidence", st.Confidence,
		"discrepancies", len(st.Discrepancies),
		"errors", len(st.Errors),
	)
	return st
}

// outcome is what a stage reports for its trace.
type outcome struct {
	status     constants.StageStatus
	confidence float64
	details    map[string]any
}

type stageFunc func(ctx context.Context, st *entity.ProcessingState) (outcome, error)

// runStage times fn, turns a panic into a logic fault and records the trace.
func (p *Processor) runStage(ctx context.Context, st *entity.ProcessingState, stage constants.Stage, fn stageFunc) (err error) {
	start := p.now()
	var out outcome
	func() {
		defer func() {
			if r := recover(); r != nil {
				err = common.LogicFault(string(stage), fmt.Errorf("panic: %v", r))
			}
		}()
		out, err = fn(ctx, st)
	}()
	if err != nil && out.status == "" {
		out.status = constants.StageError
	}

	st.AddTrace(entity.StageTrace{
		Stage:      stage,
		DurationMS: p.now().Sub(start).Milliseconds(),
		Confidence: out.confidence,
		Status:     out.status,
		Details:    out.details,
	})
	p.logger.Debug("pipeline.stage",
		"run_id", st.RunID,
		"stage", stage,
		"status", out.status,
		"confidence", out.confidence,
	)
	return err
}

func (p *Processor) escalateAfterExtraction(st *entity.ProcessingState) bool {
	return st.ExtractionConfidence < p.th.ExtractionAcceptableConfidence || st.Invoice == nil
}

func (p *Processor) extractStage(ctx context.Context, st *entity.ProcessingState) (outcome, error) {
	ext, err := p.extractor.Extract(ctx, st.DocumentPath)
	st.Invoice = ext.Invoice
	st.ExtractionConfidence = ext.Confidence
	st.DocumentQuality = ext.DocumentQuality
	st.ExtractionNotes = ext.Notes
	st.RawText = ext.RawText
	for _, e := range ext.Errors {
		st.AddError(e)
	}

	details := map[string]any{"document_quality": st.DocumentQuality}
	if ext.Method != "" {
		details["method"] = ext.Method
	}
	if err != nil {
		if st.ExtractionNotes == "" {
			st.ExtractionNotes = "Error during extraction: " + err.Error()
		}
		return outcome{status: constants.StageError, confidence: st.ExtractionConfidence, details: details}, err
	}

	status := constants.StageSuccess
	if st.Invoice == nil {
		status = constants.StageWarning
	}
	return outcome{status: status, confidence: st.ExtractionConfidence, details: details}, nil
}

func (p *Processor) matchStage(_ context.Context, st *entity.ProcessingState) (outcome, error) {
	st.Match = p.matcher.Select(st.Invoice)
	if st.Match == nil {
		return outcome{status: constants.StageError}, nil
	}
	status := constants.StageSuccess
	if !st.Match.Matched() {
		status = constants.StageWarning
	}
	return outcome{
		status:     status,
		confidence: st.Match.Confidence,
		details:    map[string]any{"match_method": string(st.Match.Method)},
	}, nil
}

func (p *Processor) detectStage(_ context.Context, st *entity.ProcessingState) (outcome, error) {
	rep, err := p.detector.Detect(st.Invoice, st.Match)
	if err != nil {
		return outcome{}, err
	}
	st.Discrepancies = rep.Discrepancies
	st.TotalVariance = rep.TotalVariance
	st.DiscrepancyNotes = rep.Notes

	out := outcome{
		status:     constants.StageSuccess,
		confidence: 0.99,
		details:    map[string]any{"discrepancies_found": len(rep.Discrepancies)},
	}
	if !rep.Matched {
		out.status = constants.StageWarning
		out.confidence = 0.85
	}
	return out, nil
}

func (p *Processor) resolveStage(ctx context.Context, st *entity.ProcessingState) (outcome, error) {
	d, err := p.policy.Decide(resolution.InputFromState(st))
	if err != nil {
		return outcome{}, err
	}
	st.Action = d.Action
	st.Confidence = d.Confidence
	st.RiskLevel = d.Risk
	st.ResolutionRule = d.Rule

	res := narrate.Narrate(ctx, p.narrator, st, p.logger)
	st.Reasoning = res.Text
	st.NarrativeSource = res.Source

	return outcome{
		status:     constants.StageSuccess,
		confidence: d.Confidence,
		details:    map[string]any{"recommended_action": string(d.Action), "rule": d.Rule},
	}, nil
}

// earlyEscalate ends the run without matching or detection results being decisive.
func (p *Processor) earlyEscalate(st *entity.ProcessingState) {
	st.Action = constants.ActionEscalate
	st.RiskLevel = constants.RiskCritical
	st.Confidence = earlyEscalationConfidence
	st.ResolutionRule = earlyEscalationRule

	switch {
	case st.ExtractionConfidence < p.th.ExtractionAcceptableConfidence:
		st.EscalationReason = fmt.Sprintf(
			"Early escalation triggered due to low extraction confidence (%.0f%%). Document quality: %s. "+
				"The system could not reliably extract invoice data. Human review required.",
			st.ExtractionConfidence*100, st.DocumentQuality)
	case st.Invoice == nil:
		st.EscalationReason = fmt.Sprintf(
			"Early escalation triggered because no invoice data was extracted (confidence %.0f%%). Document quality: %s. Human review required.",
			st.ExtractionConfidence*100, st.DocumentQuality)
	default:
		st.EscalationReason = "Early escalation triggered due to critical issues during processing. Human review required."
	}
	st.Reasoning = st.EscalationReason
	st.NarrativeSource = narrate.SourceTemplate

	st.AddTrace(entity.StageTrace{
		Stage:      constants.StageEarlyEscalation,
		Confidence: st.Confidence,
		Status:     constants.StageEscalated,
		Details:    map[string]any{"reason": "Critical issue detected"},
	})
}

// failSafe handles a fault in detection or resolution: escalate, never approve.
func (p *Processor) failSafe(st *entity.ProcessingState, stage constants.Stage, err error) {
	st.AddError(err.Error())
	d := resolution.Fallback()
	st.Action = d.Action
	st.Confidence = d.Confidence
	st.RiskLevel = d.Risk
	st.ResolutionRule = d.Rule
	st.Reasoning = fmt.Sprintf("Error during %s analysis: %v. Defaulting to human escalation for safety.",
		stageLabel(stage), err)
	st.NarrativeSource = narrate.SourceTemplate
}

func stageLabel(stage constants.Stage) string {
	switch stage {
	case constants.StageDiscrepancy:
		return "discrepancy"
	case constants.StageResolution:
		return "resolution"
	default:
		return string(stage)
	}
}

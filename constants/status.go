package constants

// StageStatus is the outcome recorded in a stage trace.
type StageStatus string

const (
	StageSuccess   StageStatus = "success"
	StageWarning   StageStatus = "warning"
	StageError     StageStatus = "error"
	StageEscalated StageStatus = "escalated"
)

// Stage names the pipeline steps as they appear in the execution trace.
type Stage string

const (
	StageExtraction      Stage = "extraction"
	StageMatching        Stage = "matching"
	StageDiscrepancy     Stage = "discrepancy_detection"
	StageResolution      Stage = "resolution"
	StageEarlyEscalation Stage = "early_escalation"
)

// AllStages lists every stage in execution order.
var AllStages = []Stage{
	StageExtraction,
	StageMatching,
	StageDiscrepancy,
	StageResolution,
	StageEarlyEscalation,
}

package constants

// Document quality labels reported by text extraction.
const (
	QualityExcellent  = "excellent"
	QualityGood       = "good"
	QualityAcceptable = "acceptable"
	QualityPoor       = "poor"
	QualityUnreadable = "unreadable"
	QualityStructured = "structured"
	QualityUnknown    = "unknown"
)

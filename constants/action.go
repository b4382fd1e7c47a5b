package constants

import "fmt"

// Action is the final recommendation for an invoice.
type Action string

const (
	ActionAutoApprove   Action = "auto_approve"
	ActionFlagForReview Action = "flag_for_review"
	ActionEscalate      Action = "escalate_to_human"
)

var AllActions = []Action{ActionAutoApprove, ActionFlagForReview, ActionEscalate}

// RiskLevel accompanies every recommendation.
type RiskLevel string

const (
	RiskNone     RiskLevel = "none"
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

var AllRiskLevels = []RiskLevel{RiskNone, RiskLow, RiskMedium, RiskHigh, RiskCritical}

// Label is the human form used in narratives and exports.
func (a Action) Label() string {
	switch a {
	case ActionAutoApprove:
		return "auto-approve"
	case ActionFlagForReview:
		return "flag for review"
	case ActionEscalate:
		return "escalate to human"
	default:
		return fmt.Sprintf("unknown action %q", string(a))
	}
}

func (a Action) Valid() bool {
	switch a {
	case ActionAutoApprove, ActionFlagForReview, ActionEscalate:
		return true
	default:
		return false
	}
}

func (r RiskLevel) Valid() bool {
	switch r {
	case RiskNone, RiskLow, RiskMedium, RiskHigh, RiskCritical:
		return true
	default:
		return false
	}
}

package resolution

import (
	"fmt"
	"log/slog"

	"github.com/joseph-ayodele/invoice-reconciler/constants"
	"github.com/joseph-ayodele/invoice-reconciler/internal/common"
	"github.com/joseph-ayodele/invoice-reconciler/internal/entity"
)

const (
	errorConfidence     = 0.5
	noMatchConfidence   = 0.3
	severeConfidence    = 0.95
	tooManyConfidence   = 0.90
	lowOnlyMaxCount     = 2
	lowOnlyMatchFloor   = 0.90
	autoApproveDiscount = 0.95
)

// Input is the slice of a processing run the policy reads.
type Input struct {
	Errors               []string
	ExtractionConfidence float64
	Match                *entity.MatchResult
	Discrepancies        []entity.Discrepancy
}

// InputFromState gathers the policy input from a run.
func InputFromState(st *entity.ProcessingState) Input {
	return Input{
		Errors:               st.Errors,
		ExtractionConfidence: st.ExtractionConfidence,
		Match:                st.Match,
		Discrepancies:        st.Discrepancies,
	}
}

// Decision is the policy outcome. Rule names the table row that fired.
type Decision struct {
	Action     constants.Action
	Confidence float64
	Risk       constants.RiskLevel
	Rule       string
}

// facts are derived once per decision so rules stay one-liners.
type facts struct {
	in        Input
	matchConf float64
	bySev     map[constants.Severity]int
	meanConf  float64
	th        common.Thresholds
}

type rule struct {
	name    string
	applies func(f facts) bool
	decide  func(f facts) Decision
}

// rules is evaluated top to bottom; the first applicable row wins.
// The final row always applies.
var rules = []rule{
	{
		name:    "non_fatal_errors",
		applies: func(f facts) bool { return len(f.in.Errors) > 0 },
		decide: func(f facts) Decision {
			return Decision{Action: constants.ActionEscalate, Confidence: errorConfidence, Risk: constants.RiskHigh}
		},
	},
	{
		name:    "low_extraction_confidence",
		applies: func(f facts) bool { return f.in.ExtractionConfidence < f.th.ExtractionAcceptableConfidence },
		decide: func(f facts) Decision {
			return Decision{Action: constants.ActionEscalate, Confidence: f.in.ExtractionConfidence, Risk: constants.RiskCritical}
		},
	},
	{
		name:    "no_po_match",
		applies: func(f facts) bool { return !f.in.Match.Matched() },
		decide: func(f facts) Decision {
			return Decision{Action: constants.ActionEscalate, Confidence: noMatchConfidence, Risk: constants.RiskHigh}
		},
	},
	{
		name:    "low_match_confidence",
		applies: func(f facts) bool { return f.matchConf < f.th.MatchAcceptableConfidence },
		decide: func(f facts) Decision {
			return Decision{Action: constants.ActionEscalate, Confidence: f.matchConf, Risk: constants.RiskHigh}
		},
	},
	{
		name: "clean_high_confidence",
		applies: func(f facts) bool {
			return len(f.in.Discrepancies) == 0 &&
				f.matchConf >= f.th.MatchHighConfidence &&
				f.in.ExtractionConfidence >= f.th.ExtractionHighConfidence
		},
		decide: func(f facts) Decision {
			return Decision{Action: constants.ActionAutoApprove, Confidence: min(f.matchConf, f.in.ExtractionConfidence), Risk: constants.RiskNone}
		},
	},
	{
		name:    "clean",
		applies: func(f facts) bool { return len(f.in.Discrepancies) == 0 },
		decide: func(f facts) Decision {
			return Decision{Action: constants.ActionAutoApprove, Confidence: min(f.matchConf, f.in.ExtractionConfidence) * autoApproveDiscount, Risk: constants.RiskLow}
		},
	},
	{
		name: "severe_discrepancy",
		applies: func(f facts) bool {
			return f.bySev[constants.SeverityCritical] > 0 || f.bySev[constants.SeverityHigh] > 0
		},
		decide: func(f facts) Decision {
			risk := constants.RiskHigh
			if f.bySev[constants.SeverityCritical] > 0 {
				risk = constants.RiskCritical
			}
			return Decision{Action: constants.ActionEscalate, Confidence: severeConfidence, Risk: risk}
		},
	},
	{
		name:    "too_many_discrepancies",
		applies: func(f facts) bool { return len(f.in.Discrepancies) >= f.th.MaxDiscrepanciesBeforeEscalate },
		decide: func(f facts) Decision {
			return Decision{Action: constants.ActionEscalate, Confidence: tooManyConfidence, Risk: constants.RiskHigh}
		},
	},
	{
		name:    "medium_discrepancy",
		applies: func(f facts) bool { return f.bySev[constants.SeverityMedium] > 0 },
		decide: func(f facts) Decision {
			return Decision{Action: constants.ActionFlagForReview, Confidence: f.meanConf, Risk: constants.RiskMedium}
		},
	},
	{
		name: "minor_discrepancies",
		applies: func(f facts) bool {
			return f.bySev[constants.SeverityLow] <= lowOnlyMaxCount && f.matchConf >= lowOnlyMatchFloor
		},
		decide: func(f facts) Decision {
			return Decision{Action: constants.ActionAutoApprove, Confidence: f.matchConf * autoApproveDiscount, Risk: constants.RiskLow}
		},
	},
	{
		name:    "low_discrepancies_review",
		applies: func(facts) bool { return true },
		decide: func(f facts) Decision {
			return Decision{Action: constants.ActionFlagForReview, Confidence: f.meanConf, Risk: constants.RiskLow}
		},
	},
}

// RuleNames lists the table in evaluation order.
func RuleNames() []string {
	out := make([]string, len(rules))
	for i, r := range rules {
		out[i] = r.name
	}
	return out
}

// Policy turns a run's confidences and findings into a final recommendation.
type Policy struct {
	th     common.Thresholds
	logger *slog.Logger
}

func NewPolicy(th common.Thresholds, logger *slog.Logger) *Policy {
	if logger == nil {
		logger = slog.Default()
	}
	return &Policy{th: th, logger: logger}
}

// Decide evaluates the rule table. It only fails on findings it cannot classify.
func (p *Policy) Decide(in Input) (Decision, error) {
	f, err := p.derive(in)
	if err != nil {
		return Decision{}, err
	}
	for _, r := range rules {
		if !r.applies(f) {
			continue
		}
		d := r.decide(f)
		d.Rule = r.name
		p.logger.Debug("resolution.decide",
			"rule", d.Rule,
			"action", d.Action,
			"risk", d.Risk,
			"confidence", d.Confidence,
		)
		return d, nil
	}
	return Decision{}, common.LogicFault("resolution", fmt.Errorf("no rule applied"))
}

func (p *Policy) derive(in Input) (facts, error) {
	f := facts{in: in, th: p.th, bySev: map[constants.Severity]int{}, meanConf: 1.0}
	if in.Match != nil {
		f.matchConf = in.Match.Confidence
	}

	sum := 0.0
	for i, d := range in.Discrepancies {
		switch d.Severity {
		case constants.SeverityLow, constants.SeverityMedium, constants.SeverityHigh, constants.SeverityCritical:
			f.bySev[d.Severity]++
		default:
			return facts{}, common.LogicFault("resolution",
				fmt.Errorf("discrepancy %d (%s) has unknown severity %d", i, d.Type, int(d.Severity)))
		}
		sum += d.Confidence
	}
	if n := len(in.Discrepancies); n > 0 {
		f.meanConf = sum / float64(n)
	}
	return f, nil
}

// Fallback is the decision recorded when the policy itself fails.
func Fallback() Decision {
	return Decision{Action: constants.ActionEscalate, Confidence: errorConfidence, Risk: constants.RiskHigh, Rule: "resolution_error"}
}

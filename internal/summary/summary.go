// Package summary renders a stored decision as the envelope shown to
// compliance reviewers in the frontend table.
package summary

import (
	"regexp"
	"strings"

	"github.com/davidahmann/geogate/internal/scoring"
	"github.com/davidahmann/geogate/pkg/types"
)

type ComplianceFlag string

const (
	FlagCompliant    ComplianceFlag = "compliant"
	FlagNoCompliance ComplianceFlag = "no-compliance"
	FlagNeedsReview  ComplianceFlag = "needs-review"
)

type ReviewedStatus string

const (
	StatusAuto          ReviewedStatus = "auto"
	StatusPending       ReviewedStatus = "pending"
	StatusHumanReviewed ReviewedStatus = "human-reviewed"
)

type UI struct {
	ComplianceFlag ComplianceFlag `json:"complianceFlag"`
	ReviewedStatus ReviewedStatus `json:"reviewedStatus"`
	RegulationTag  string         `json:"regulationTag,omitempty"`
}

type Envelope struct {
	FeatureID     string               `json:"feature_id"`
	DecisionID    string               `json:"decision_id"`
	Name          string               `json:"standardized_name"`
	Description   string               `json:"standardized_description"`
	Decision      types.Verdict        `json:"decision"`
	Confidence    float64              `json:"confidence"`
	Justification string               `json:"justification"`
	Conditions    []string             `json:"conditions"`
	Citations     []string             `json:"citations"`
	OpenQuestions []types.OpenQuestion `json:"open_questions"`
	UI            UI                   `json:"ui"`
}

// Build maps a feature and its decision to the frontend envelope. reviewed
// marks decisions produced by a human review.
func Build(feature types.FeatureRecord, decision types.DecisionEnvelope, reviewed bool) Envelope {
	rec := decision.Record
	ui := mapUI(rec.Decision, rec.HITLRecommended)
	if reviewed {
		ui.ReviewedStatus = StatusHumanReviewed
	}
	ui.RegulationTag = RegulationTag(feature.Name, feature.Description, rec.Citations)

	name := feature.Name
	if strings.TrimSpace(name) == "" {
		name = "Untitled Feature"
	}

	return Envelope{
		FeatureID:     feature.FeatureID,
		DecisionID:    decision.DecisionID,
		Name:          name,
		Description:   feature.Description,
		Decision:      rec.Decision,
		Confidence:    scoring.Round3(rec.Confidence),
		Justification: rec.Justification,
		Conditions:    append([]string{}, rec.Conditions...),
		Citations:     append([]string{}, rec.Citations...),
		OpenQuestions: append([]types.OpenQuestion{}, feature.Findings.OpenQuestions...),
		UI:            ui,
	}
}

func mapUI(v types.Verdict, hitl bool) UI {
	pendingIf := func(b bool) ReviewedStatus {
		if b {
			return StatusPending
		}
		return StatusAuto
	}
	switch v {
	case types.VerdictRequiresRegulation, types.VerdictApproveWithConditions:
		return UI{ComplianceFlag: FlagCompliant, ReviewedStatus: pendingIf(hitl)}
	case types.VerdictAutoApprove:
		return UI{ComplianceFlag: FlagNoCompliance, ReviewedStatus: StatusAuto}
	default:
		return UI{ComplianceFlag: FlagNeedsReview, ReviewedStatus: StatusPending}
	}
}

var billPattern = regexp.MustCompile(`(?i)\b(sb ?\d{3,})\b`)

// RegulationTag guesses the governing regulation for table display.
// Citations win over feature text; "" means no guess.
func RegulationTag(name, description string, citations []string) string {
	text := strings.ToLower(name + " " + description)
	cites := strings.ToLower(strings.Join(citations, " "))

	switch {
	case strings.Contains(cites, "ftc.gov") || strings.Contains(text, "coppa"):
		return "COPPA / FTC"
	case strings.Contains(cites, "europa.eu") || strings.Contains(text, "dsa"):
		return "EU DSA"
	case strings.Contains(cites, "gdpr"):
		return "GDPR"
	case strings.Contains(cites, "oag.utah.gov") || strings.Contains(text, "utah"):
		return "Utah Social Media Regulation Act"
	}
	if m := billPattern.FindStringSubmatch(text); m != nil {
		return strings.ReplaceAll(strings.ToUpper(m[1]), " ", "")
	}

	switch {
	case strings.Contains(text, "gdpr"):
		return "GDPR"
	case strings.Contains(text, "eu "):
		return "EU DSA"
	}
	return ""
}

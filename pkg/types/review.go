package types

import "encoding/json"

type TaskStatus string

const (
	TaskPending   TaskStatus = "pending"
	TaskResolved  TaskStatus = "resolved"
	TaskDismissed TaskStatus = "dismissed"
)

type Resolution string

const (
	ResolutionApprove   Resolution = "approve"
	ResolutionReject    Resolution = "reject"
	ResolutionCondition Resolution = "condition"
	ResolutionDrop      Resolution = "drop"
)

func (r Resolution) Valid() bool {
	switch r {
	case ResolutionApprove, ResolutionReject, ResolutionCondition, ResolutionDrop:
		return true
	default:
		return false
	}
}

func (r *Resolution) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	res := Resolution(raw)
	if !res.Valid() {
		return &ValidationError{Field: "resolution", Value: raw}
	}
	*r = res
	return nil
}

// ReviewTask is one item in the human review queue.
type ReviewTask struct {
	TaskID     string     `json:"task_id"`
	DecisionID string     `json:"decision_id"`
	FeatureID  string     `json:"feature_id"`
	SessionID  string     `json:"session_id"`
	Status     TaskStatus `json:"status"`
	Reasons    []string   `json:"reasons"`
	CreatedAt  string     `json:"created_at"`
	UpdatedAt  string     `json:"updated_at"`
}

// HITLResolution is a human answer to one open question or to the whole decision.
type HITLResolution struct {
	QuestionText string     `json:"question_text,omitempty"`
	Resolution   Resolution `json:"resolution"`
	Note         string     `json:"note,omitempty"`
}

type Review struct {
	ReviewID    string           `json:"review_id"`
	TaskID      string           `json:"task_id"`
	FeatureID   string           `json:"feature_id"`
	Reviewer    string           `json:"reviewer"`
	Reason      string           `json:"reason,omitempty"`
	Resolutions []HITLResolution `json:"resolutions"`
	DecisionID  string           `json:"decision_id,omitempty"`
	CreatedAt   string           `json:"created_at"`
}

package types

type OutcomeStatus string

// Receipt outcomes. A reviewed receipt belongs to the decision produced by a
// human review and points back at the escalated receipt it supersedes.
const (
	OutcomeDecided   OutcomeStatus = "decided"
	OutcomeEscalated OutcomeStatus = "escalated"
	OutcomeReviewed  OutcomeStatus = "reviewed"
)

type ReceiptActor struct {
	Kind    string `json:"kind"`
	Subject string `json:"subject"`
	Issuer  string `json:"issuer"`
}

type ReceiptPolicy struct {
	PolicyID      string `json:"policy_id"`
	PolicyVersion string `json:"policy_version"`
	PolicyHash    string `json:"policy_hash"`
}

type ReceiptReview struct {
	Required bool   `json:"required"`
	TaskID   string `json:"task_id,omitempty"`
	Status   string `json:"status,omitempty"`
}

type ReceiptOutcome struct {
	Status   OutcomeStatus `json:"status"`
	Decision Verdict       `json:"decision"`
}

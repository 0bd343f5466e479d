package notify

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/davidahmann/geogate/internal/ledger"
)

const (
	StatusPending = "pending"
	StatusSent    = "sent"
	// StatusSkipped marks notifications whose task was settled before delivery.
	StatusSkipped = "skipped"
)

// EscalationMessage tells reviewers that a decision is waiting in the queue.
type EscalationMessage struct {
	TaskID          string   `json:"task_id"`
	DecisionID      string   `json:"decision_id"`
	FeatureID       string   `json:"feature_id"`
	FeatureName     string   `json:"feature_name"`
	Verdict         string   `json:"verdict"`
	ConfidenceMilli int64    `json:"confidence_milli"`
	Reasons         []string `json:"reasons"`
}

// Text renders the message as a Slack mrkdwn line.
func (m EscalationMessage) Text() string {
	name := m.FeatureName
	if name == "" {
		name = m.FeatureID
	}
	var b strings.Builder
	fmt.Fprintf(&b, "*Review needed:* %s\nverdict `%s`, confidence %d.%03d", name, m.Verdict, m.ConfidenceMilli/1000, m.ConfidenceMilli%1000)
	if len(m.Reasons) > 0 {
		b.WriteString("\n> ")
		b.WriteString(strings.Join(m.Reasons, "\n> "))
	}
	fmt.Fprintf(&b, "\ntask `%s`", m.TaskID)
	return b.String()
}

// NewNotification builds the pending outbox row for msg, due immediately.
func NewNotification(channel string, msg EscalationMessage, now time.Time) (ledger.NotificationRecord, error) {
	body, err := json.Marshal(msg)
	if err != nil {
		return ledger.NotificationRecord{}, err
	}
	ts := now.UTC().Format(time.RFC3339)
	return ledger.NotificationRecord{
		NotificationID: "notify:" + uuid.NewString(),
		TaskID:         msg.TaskID,
		Channel:        channel,
		MessageJSON:    body,
		Status:         StatusPending,
		NextAttemptAt:  ts,
		CreatedAt:      ts,
		UpdatedAt:      ts,
	}, nil
}

package pgstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	_ "github.com/lib/pq"

	"github.com/davidahmann/geogate/internal/ledger"
)

var errInvalidJSON = errors.New("invalid json column")

// queryer is satisfied by both *sql.DB and *sql.Tx.
type queryer interface {
	Exec(query string, args ...any) (sql.Result, error)
	Query(query string, args ...any) (*sql.Rows, error)
	QueryRow(query string, args ...any) *sql.Row
}

type Store struct {
	db *sql.DB
}

func OpenPostgres(dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return New(db), nil
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) DB() *sql.DB { return s.db }

func (s *Store) WithTx(fn func(ledger.Tx) error) error {
	tx, err := s.db.BeginTx(context.Background(), &sql.TxOptions{})
	if err != nil {
		return err
	}
	if err := fn(&Tx{q: tx}); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func (s *Store) PutKey(key ledger.KeyRecord) error {
	return s.WithTx(func(tx ledger.Tx) error { return tx.PutKey(key) })
}
func (s *Store) GetKey(keyID string) (ledger.KeyRecord, bool) { return getKey(s.db, keyID) }

func (s *Store) PutNotification(rec ledger.NotificationRecord) error {
	return s.WithTx(func(tx ledger.Tx) error { return tx.PutNotification(rec) })
}
func (s *Store) GetNotification(id string) (ledger.NotificationRecord, bool) {
	return getNotification(s.db, id)
}

func (s *Store) PutPolicyVersion(policy ledger.PolicyVersionRecord) error {
	return s.WithTx(func(tx ledger.Tx) error { return tx.PutPolicyVersion(policy) })
}
func (s *Store) GetPolicyVersion(hash string) (ledger.PolicyVersionRecord, bool) {
	return getPolicyVersion(s.db, hash)
}

func (s *Store) PutFeature(feature ledger.FeatureRecord) error {
	return s.WithTx(func(tx ledger.Tx) error { return tx.PutFeature(feature) })
}
func (s *Store) GetFeature(id string) (ledger.FeatureRecord, bool) { return getFeature(s.db, id) }

func (s *Store) PutDecision(decision ledger.DecisionRecord) error {
	return s.WithTx(func(tx ledger.Tx) error { return tx.PutDecision(decision) })
}
func (s *Store) GetDecision(id string) (ledger.DecisionRecord, bool) { return getDecision(s.db, id) }

func (s *Store) PutReceipt(receipt ledger.ReceiptRecord) error {
	return s.WithTx(func(tx ledger.Tx) error { return tx.PutReceipt(receipt) })
}
func (s *Store) GetReceipt(id string) (ledger.ReceiptRecord, bool) {
	return getReceipt(s.db, "receipt_id", id)
}
func (s *Store) GetReceiptByDecision(decisionID string) (ledger.ReceiptRecord, bool) {
	return getReceipt(s.db, "decision_id", decisionID)
}
func (s *Store) GetReceiptByIdemKey(idemKey string) (ledger.ReceiptRecord, bool) {
	return getReceipt(s.db, "idem_key", idemKey)
}

func (s *Store) PutReviewTask(task ledger.ReviewTaskRecord) error {
	return s.WithTx(func(tx ledger.Tx) error { return tx.PutReviewTask(task) })
}
func (s *Store) GetReviewTask(id string) (ledger.ReviewTaskRecord, bool) {
	return getReviewTask(s.db, "task_id", id)
}
func (s *Store) GetReviewTaskByDecision(decisionID string) (ledger.ReviewTaskRecord, bool) {
	return getReviewTask(s.db, "decision_id", decisionID)
}

func (s *Store) PutReview(review ledger.ReviewRecord) error {
	return s.WithTx(func(tx ledger.Tx) error { return tx.PutReview(review) })
}
func (s *Store) GetReview(id string) (ledger.ReviewRecord, bool) { return getReview(s.db, id) }

func (s *Store) ListNotificationsDue(now string, limit int) ([]ledger.NotificationRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.Query(`SELECT `+notificationCols+`
FROM notification_outbox
WHERE status = 'pending' AND next_attempt_at <= $1
ORDER BY created_at ASC, notification_id ASC
LIMIT $2`, now, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []ledger.NotificationRecord{}
	for rows.Next() {
		rec, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *Store) ListDecisionsBySession(sessionID string) ([]ledger.DecisionRecord, error) {
	rows, err := s.db.Query(`SELECT `+decisionCols+` FROM decisions WHERE session_id = $1 ORDER BY created_at DESC, decision_id DESC`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []ledger.DecisionRecord{}
	for rows.Next() {
		rec, err := scanDecision(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *Store) ListReviewTasks(status string, limit int) ([]ledger.ReviewTaskRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	var (
		rows *sql.Rows
		err  error
	)
	if status == "" {
		rows, err = s.db.Query(`SELECT `+taskCols+` FROM review_tasks ORDER BY created_at ASC, task_id ASC LIMIT $1`, limit)
	} else {
		rows, err = s.db.Query(`SELECT `+taskCols+` FROM review_tasks WHERE status = $1 ORDER BY created_at ASC, task_id ASC LIMIT $2`, status, limit)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []ledger.ReviewTaskRecord{}
	for rows.Next() {
		rec, err := scanReviewTask(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *Store) ListReviewsByFeature(featureID string) ([]ledger.ReviewRecord, error) {
	rows, err := s.db.Query(`SELECT `+reviewCols+` FROM reviews WHERE feature_id = $1 ORDER BY created_at ASC, review_id ASC`, featureID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []ledger.ReviewRecord{}
	for rows.Next() {
		rec, err := scanReview(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

type Tx struct {
	q queryer
}

func (t *Tx) PutKey(key ledger.KeyRecord) error {
	_, err := t.q.Exec(`INSERT INTO keys(key_id, public_key, created_at, rotated_at)
VALUES($1,$2,$3,$4)
ON CONFLICT(key_id) DO NOTHING`, key.KeyID, key.PublicKey, key.CreatedAt, key.RotatedAt)
	return err
}
func (t *Tx) GetKey(keyID string) (ledger.KeyRecord, bool) { return getKey(t.q, keyID) }

func (t *Tx) PutNotification(rec ledger.NotificationRecord) error {
	if !json.Valid(rec.MessageJSON) {
		return errInvalidJSON
	}
	_, err := t.q.Exec(`INSERT INTO notification_outbox(notification_id, task_id, channel, message_json, status, attempt_count, next_attempt_at, last_error, sent_at, created_at, updated_at)
VALUES($1,$2,$3,$4::jsonb,$5,$6,$7,$8,$9,$10,$11)
ON CONFLICT(notification_id) DO UPDATE SET
  status=excluded.status,
  attempt_count=excluded.attempt_count,
  next_attempt_at=excluded.next_attempt_at,
  last_error=excluded.last_error,
  sent_at=excluded.sent_at,
  updated_at=excluded.updated_at`,
		rec.NotificationID, rec.TaskID, rec.Channel, string(rec.MessageJSON), rec.Status, rec.AttemptCount,
		rec.NextAttemptAt, rec.LastError, rec.SentAt, rec.CreatedAt, rec.UpdatedAt,
	)
	return err
}
func (t *Tx) GetNotification(id string) (ledger.NotificationRecord, bool) {
	return getNotification(t.q, id)
}

func (t *Tx) PutPolicyVersion(policy ledger.PolicyVersionRecord) error {
	_, err := t.q.Exec(`INSERT INTO policy_versions(policy_hash, policy_id, policy_version, policy_yaml, created_at)
VALUES($1,$2,$3,$4,$5)
ON CONFLICT(policy_hash) DO NOTHING`,
		policy.PolicyHash, policy.PolicyID, policy.PolicyVersion, policy.PolicyYAML, policy.CreatedAt)
	return err
}
func (t *Tx) GetPolicyVersion(hash string) (ledger.PolicyVersionRecord, bool) {
	return getPolicyVersion(t.q, hash)
}

func (t *Tx) PutFeature(feature ledger.FeatureRecord) error {
	if !json.Valid(feature.BodyJSON) {
		return errInvalidJSON
	}
	_, err := t.q.Exec(`INSERT INTO features(feature_id, session_id, name, body_json, created_at)
VALUES($1,$2,$3,$4::jsonb,$5)
ON CONFLICT(feature_id) DO NOTHING`,
		feature.FeatureID, feature.SessionID, feature.Name, string(feature.BodyJSON), feature.CreatedAt)
	return err
}
func (t *Tx) GetFeature(id string) (ledger.FeatureRecord, bool) { return getFeature(t.q, id) }

func (t *Tx) PutDecision(d ledger.DecisionRecord) error {
	if !json.Valid(d.BodyJSON) {
		return errInvalidJSON
	}
	_, err := t.q.Exec(`INSERT INTO decisions(decision_id, feature_id, session_id, policy_hash, verdict, confidence_milli, hitl_recommended, supersedes_decision_id, body_json, created_at)
VALUES($1,$2,$3,$4,$5,$6,$7,$8,$9::jsonb,$10)
ON CONFLICT(decision_id) DO NOTHING`,
		d.DecisionID, d.FeatureID, d.SessionID, d.PolicyHash, d.Verdict, d.ConfidenceMilli,
		d.HITLRecommended, d.SupersedesDecisionID, string(d.BodyJSON), d.CreatedAt)
	return err
}
func (t *Tx) GetDecision(id string) (ledger.DecisionRecord, bool) { return getDecision(t.q, id) }

func (t *Tx) PutReceipt(r ledger.ReceiptRecord) error {
	if r.ReceiptID == "" {
		return ledger.ErrMissingReceiptID
	}
	if !json.Valid(r.BodyJSON) {
		return errInvalidJSON
	}
	_, err := t.q.Exec(`INSERT INTO receipts(receipt_id, idem_key, created_at, supersedes_receipt_id, feature_id, decision_id, policy_hash, task_id, outcome_status, final, body_json, body_digest, key_id, sig)
VALUES($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
ON CONFLICT(receipt_id) DO NOTHING`,
		r.ReceiptID, r.IdemKey, r.CreatedAt, r.SupersedesReceiptID, r.FeatureID, r.DecisionID, r.PolicyHash,
		r.TaskID, r.OutcomeStatus, r.Final, string(r.BodyJSON), r.BodyDigest, r.KeyID, r.Sig)
	return err
}
func (t *Tx) GetReceipt(id string) (ledger.ReceiptRecord, bool) {
	return getReceipt(t.q, "receipt_id", id)
}
func (t *Tx) GetReceiptByDecision(decisionID string) (ledger.ReceiptRecord, bool) {
	return getReceipt(t.q, "decision_id", decisionID)
}
func (t *Tx) GetReceiptByIdemKey(idemKey string) (ledger.ReceiptRecord, bool) {
	return getReceipt(t.q, "idem_key", idemKey)
}

func (t *Tx) PutReviewTask(task ledger.ReviewTaskRecord) error {
	if !json.Valid(task.ReasonsJSON) {
		return errInvalidJSON
	}
	_, err := t.q.Exec(`INSERT INTO review_tasks(task_id, decision_id, feature_id, session_id, status, reasons_json, resolved_by, resolved_at, created_at, updated_at)
VALUES($1,$2,$3,$4,$5,$6::jsonb,$7,$8,$9,$10)
ON CONFLICT(task_id) DO UPDATE SET
  status=excluded.status,
  resolved_by=excluded.resolved_by,
  resolved_at=excluded.resolved_at,
  updated_at=excluded.updated_at`,
		task.TaskID, task.DecisionID, task.FeatureID, task.SessionID, task.Status, string(task.ReasonsJSON),
		task.ResolvedBy, task.ResolvedAt, task.CreatedAt, task.UpdatedAt)
	return err
}
func (t *Tx) GetReviewTask(id string) (ledger.ReviewTaskRecord, bool) {
	return getReviewTask(t.q, "task_id", id)
}
func (t *Tx) GetReviewTaskByDecision(decisionID string) (ledger.ReviewTaskRecord, bool) {
	return getReviewTask(t.q, "decision_id", decisionID)
}

func (t *Tx) PutReview(review ledger.ReviewRecord) error {
	if !json.Valid(review.BodyJSON) {
		return errInvalidJSON
	}
	_, err := t.q.Exec(`INSERT INTO reviews(review_id, task_id, feature_id, reviewer, decision_id, body_json, created_at)
VALUES($1,$2,$3,$4,$5,$6::jsonb,$7)
ON CONFLICT(review_id) DO NOTHING`,
		review.ReviewID, review.TaskID, review.FeatureID, review.Reviewer, review.DecisionID, string(review.BodyJSON), review.CreatedAt)
	return err
}
func (t *Tx) GetReview(id string) (ledger.ReviewRecord, bool) { return getReview(t.q, id) }

const (
	notificationCols = `notification_id, task_id, channel, message_json::text, status, attempt_count, next_attempt_at, last_error, sent_at, created_at, updated_at`
	decisionCols     = `decision_id, feature_id, session_id, policy_hash, verdict, confidence_milli, hitl_recommended, supersedes_decision_id, body_json::text, created_at`
	receiptCols      = `receipt_id, idem_key, created_at, supersedes_receipt_id, feature_id, decision_id, policy_hash, task_id, outcome_status, final, body_json, body_digest, key_id, sig`
	taskCols         = `task_id, decision_id, feature_id, session_id, status, reasons_json::text, resolved_by, resolved_at, created_at, updated_at`
	reviewCols       = `review_id, task_id, feature_id, reviewer, decision_id, body_json::text, created_at`
)

type scanner interface {
	Scan(dest ...any) error
}

func getKey(q queryer, keyID string) (ledger.KeyRecord, bool) {
	var rec ledger.KeyRecord
	row := q.QueryRow(`SELECT key_id, public_key, created_at, rotated_at FROM keys WHERE key_id = $1`, keyID)
	if err := row.Scan(&rec.KeyID, &rec.PublicKey, &rec.CreatedAt, &rec.RotatedAt); err != nil {
		return ledger.KeyRecord{}, false
	}
	return rec, true
}

func getPolicyVersion(q queryer, hash string) (ledger.PolicyVersionRecord, bool) {
	var rec ledger.PolicyVersionRecord
	row := q.QueryRow(`SELECT policy_hash, policy_id, policy_version, policy_yaml, created_at FROM policy_versions WHERE policy_hash = $1`, hash)
	if err := row.Scan(&rec.PolicyHash, &rec.PolicyID, &rec.PolicyVersion, &rec.PolicyYAML, &rec.CreatedAt); err != nil {
		return ledger.PolicyVersionRecord{}, false
	}
	return rec, true
}

func getNotification(q queryer, id string) (ledger.NotificationRecord, bool) {
	rec, err := scanNotification(q.QueryRow(`SELECT `+notificationCols+` FROM notification_outbox WHERE notification_id = $1`, id))
	if err != nil {
		return ledger.NotificationRecord{}, false
	}
	return rec, true
}

func scanNotification(row scanner) (ledger.NotificationRecord, error) {
	var rec ledger.NotificationRecord
	var msg string
	if err := row.Scan(&rec.NotificationID, &rec.TaskID, &rec.Channel, &msg, &rec.Status, &rec.AttemptCount, &rec.NextAttemptAt, &rec.LastError, &rec.SentAt, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
		return ledger.NotificationRecord{}, err
	}
	rec.MessageJSON = []byte(msg)
	return rec, nil
}

func getFeature(q queryer, id string) (ledger.FeatureRecord, bool) {
	var rec ledger.FeatureRecord
	var body string
	row := q.QueryRow(`SELECT feature_id, session_id, name, body_json::text, created_at FROM features WHERE feature_id = $1`, id)
	if err := row.Scan(&rec.FeatureID, &rec.SessionID, &rec.Name, &body, &rec.CreatedAt); err != nil {
		return ledger.FeatureRecord{}, false
	}
	rec.BodyJSON = []byte(body)
	return rec, true
}

func getDecision(q queryer, id string) (ledger.DecisionRecord, bool) {
	rec, err := scanDecision(q.QueryRow(`SELECT `+decisionCols+` FROM decisions WHERE decision_id = $1`, id))
	if err != nil {
		return ledger.DecisionRecord{}, false
	}
	return rec, true
}

func scanDecision(row scanner) (ledger.DecisionRecord, error) {
	var rec ledger.DecisionRecord
	var body string
	if err := row.Scan(&rec.DecisionID, &rec.FeatureID, &rec.SessionID, &rec.PolicyHash, &rec.Verdict, &rec.ConfidenceMilli, &rec.HITLRecommended, &rec.SupersedesDecisionID, &body, &rec.CreatedAt); err != nil {
		return ledger.DecisionRecord{}, err
	}
	rec.BodyJSON = []byte(body)
	return rec, nil
}

// getReceipt looks a receipt up by receipt_id or, for decision_id and
// idem_key, returns the earliest matching receipt.
func getReceipt(q queryer, column, value string) (ledger.ReceiptRecord, bool) {
	query := `SELECT ` + receiptCols + ` FROM receipts WHERE receipt_id = $1`
	switch column {
	case "decision_id", "idem_key":
		query = `SELECT ` + receiptCols + ` FROM receipts WHERE ` + column + ` = $1 ORDER BY created_at ASC, receipt_id ASC LIMIT 1`
	}
	var rec ledger.ReceiptRecord
	var body string
	row := q.QueryRow(query, value)
	if err := row.Scan(&rec.ReceiptID, &rec.IdemKey, &rec.CreatedAt, &rec.SupersedesReceiptID, &rec.FeatureID, &rec.DecisionID, &rec.PolicyHash, &rec.TaskID, &rec.OutcomeStatus, &rec.Final, &body, &rec.BodyDigest, &rec.KeyID, &rec.Sig); err != nil {
		return ledger.ReceiptRecord{}, false
	}
	rec.BodyJSON = []byte(body)
	return rec, true
}

func getReviewTask(q queryer, column, value string) (ledger.ReviewTaskRecord, bool) {
	query := `SELECT ` + taskCols + ` FROM review_tasks WHERE task_id = $1`
	if column == "decision_id" {
		query = `SELECT ` + taskCols + ` FROM review_tasks WHERE decision_id = $1 ORDER BY created_at ASC LIMIT 1`
	}
	rec, err := scanReviewTask(q.QueryRow(query, value))
	if err != nil {
		return ledger.ReviewTaskRecord{}, false
	}
	return rec, true
}

func scanReviewTask(row scanner) (ledger.ReviewTaskRecord, error) {
	var rec ledger.ReviewTaskRecord
	var reasons string
	if err := row.Scan(&rec.TaskID, &rec.DecisionID, &rec.FeatureID, &rec.SessionID, &rec.Status, &reasons, &rec.ResolvedBy, &rec.ResolvedAt, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
		return ledger.ReviewTaskRecord{}, err
	}
	rec.ReasonsJSON = []byte(reasons)
	return rec, nil
}

func getReview(q queryer, id string) (ledger.ReviewRecord, bool) {
	rec, err := scanReview(q.QueryRow(`SELECT `+reviewCols+` FROM reviews WHERE review_id = $1`, id))
	if err != nil {
		return ledger.ReviewRecord{}, false
	}
	return rec, true
}

func scanReview(row scanner) (ledger.ReviewRecord, error) {
	var rec ledger.ReviewRecord
	var body string
	if err := row.Scan(&rec.ReviewID, &rec.TaskID, &rec.FeatureID, &rec.Reviewer, &rec.DecisionID, &body, &rec.CreatedAt); err != nil {
		return ledger.ReviewRecord{}, err
	}
	rec.BodyJSON = []byte(body)
	return rec, nil
}

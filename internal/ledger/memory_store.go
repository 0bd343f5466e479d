package ledger

import (
	"sort"
	"sync"
)

type InMemoryStore struct {
	mu sync.Mutex

	keys          map[string]KeyRecord
	notifications map[string]NotificationRecord
	policies      map[string]PolicyVersionRecord
	features      map[string]FeatureRecord
	decisions     map[string]DecisionRecord
	receipts      map[string]ReceiptRecord
	tasks         map[string]ReviewTaskRecord
	reviews       map[string]ReviewRecord
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		keys:          make(map[string]KeyRecord),
		notifications: make(map[string]NotificationRecord),
		policies:      make(map[string]PolicyVersionRecord),
		features:      make(map[string]FeatureRecord),
		decisions:     make(map[string]DecisionRecord),
		receipts:      make(map[string]ReceiptRecord),
		tasks:         make(map[string]ReviewTaskRecord),
		reviews:       make(map[string]ReviewRecord),
	}
}

// WithTx holds the store lock for the whole callback. A callback error does
// not roll back writes already made.
func (s *InMemoryStore) WithTx(fn func(Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn((*memTx)(s))
}

type memTx InMemoryStore

func (s *InMemoryStore) tx() *memTx { return (*memTx)(s) }

func (s *InMemoryStore) PutKey(key KeyRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tx().PutKey(key)
}

func (s *InMemoryStore) GetKey(keyID string) (KeyRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tx().GetKey(keyID)
}

func (s *InMemoryStore) PutNotification(rec NotificationRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tx().PutNotification(rec)
}

func (s *InMemoryStore) GetNotification(notificationID string) (NotificationRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tx().GetNotification(notificationID)
}

func (s *InMemoryStore) ListNotificationsDue(now string, limit int) ([]NotificationRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []NotificationRecord{}
	for _, rec := range s.notifications {
		if rec.Status != "pending" || rec.NextAttemptAt > now {
			continue
		}
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt == out[j].CreatedAt {
			return out[i].NotificationID < out[j].NotificationID
		}
		return out[i].CreatedAt < out[j].CreatedAt
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *InMemoryStore) PutPolicyVersion(policy PolicyVersionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tx().PutPolicyVersion(policy)
}

func (s *InMemoryStore) GetPolicyVersion(policyHash string) (PolicyVersionRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tx().GetPolicyVersion(policyHash)
}

func (s *InMemoryStore) PutFeature(feature FeatureRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tx().PutFeature(feature)
}

func (s *InMemoryStore) GetFeature(featureID string) (FeatureRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tx().GetFeature(featureID)
}

func (s *InMemoryStore) PutDecision(decision DecisionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tx().PutDecision(decision)
}

func (s *InMemoryStore) GetDecision(decisionID string) (DecisionRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tx().GetDecision(decisionID)
}

func (s *InMemoryStore) ListDecisionsBySession(sessionID string) ([]DecisionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []DecisionRecord{}
	for _, rec := range s.decisions {
		if rec.SessionID == sessionID {
			out = append(out, rec)
		}
	}
	// Newest first.
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt == out[j].CreatedAt {
			return out[i].DecisionID > out[j].DecisionID
		}
		return out[i].CreatedAt > out[j].CreatedAt
	})
	return out, nil
}

func (s *InMemoryStore) PutReceipt(receipt ReceiptRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tx().PutReceipt(receipt)
}

func (s *InMemoryStore) GetReceipt(receiptID string) (ReceiptRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tx().GetReceipt(receiptID)
}

func (s *InMemoryStore) GetReceiptByDecision(decisionID string) (ReceiptRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tx().GetReceiptByDecision(decisionID)
}

func (s *InMemoryStore) GetReceiptByIdemKey(idemKey string) (ReceiptRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tx().GetReceiptByIdemKey(idemKey)
}

func (s *InMemoryStore) PutReviewTask(task ReviewTaskRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tx().PutReviewTask(task)
}

func (s *InMemoryStore) GetReviewTask(taskID string) (ReviewTaskRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tx().GetReviewTask(taskID)
}

func (s *InMemoryStore) GetReviewTaskByDecision(decisionID string) (ReviewTaskRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tx().GetReviewTaskByDecision(decisionID)
}

func (s *InMemoryStore) ListReviewTasks(status string, limit int) ([]ReviewTaskRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []ReviewTaskRecord{}
	for _, rec := range s.tasks {
		if status != "" && rec.Status != status {
			continue
		}
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt == out[j].CreatedAt {
			return out[i].TaskID < out[j].TaskID
		}
		return out[i].CreatedAt < out[j].CreatedAt
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *InMemoryStore) PutReview(review ReviewRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tx().PutReview(review)
}

func (s *InMemoryStore) GetReview(reviewID string) (ReviewRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tx().GetReview(reviewID)
}

func (s *InMemoryStore) ListReviewsByFeature(featureID string) ([]ReviewRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []ReviewRecord{}
	for _, rec := range s.reviews {
		if rec.FeatureID == featureID {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt == out[j].CreatedAt {
			return out[i].ReviewID < out[j].ReviewID
		}
		return out[i].CreatedAt < out[j].CreatedAt
	})
	return out, nil
}

func (t *memTx) PutKey(key KeyRecord) error {
	if _, ok := t.keys[key.KeyID]; ok {
		return nil
	}
	t.keys[key.KeyID] = key
	return nil
}

func (t *memTx) GetKey(keyID string) (KeyRecord, bool) {
	key, ok := t.keys[keyID]
	return key, ok
}

func (t *memTx) PutNotification(rec NotificationRecord) error {
	t.notifications[rec.NotificationID] = rec
	return nil
}

func (t *memTx) GetNotification(notificationID string) (NotificationRecord, bool) {
	rec, ok := t.notifications[notificationID]
	return rec, ok
}

func (t *memTx) PutPolicyVersion(policy PolicyVersionRecord) error {
	if _, ok := t.policies[policy.PolicyHash]; ok {
		return nil
	}
	t.policies[policy.PolicyHash] = policy
	return nil
}

func (t *memTx) GetPolicyVersion(policyHash string) (PolicyVersionRecord, bool) {
	policy, ok := t.policies[policyHash]
	return policy, ok
}

func (t *memTx) PutFeature(feature FeatureRecord) error {
	if _, ok := t.features[feature.FeatureID]; ok {
		return nil
	}
	t.features[feature.FeatureID] = feature
	return nil
}

func (t *memTx) GetFeature(featureID string) (FeatureRecord, bool) {
	feature, ok := t.features[featureID]
	return feature, ok
}

func (t *memTx) PutDecision(decision DecisionRecord) error {
	if _, ok := t.decisions[decision.DecisionID]; ok {
		return nil
	}
	t.decisions[decision.DecisionID] = decision
	return nil
}

func (t *memTx) GetDecision(decisionID string) (DecisionRecord, bool) {
	decision, ok := t.decisions[decisionID]
	return decision, ok
}

func (t *memTx) PutReceipt(receipt ReceiptRecord) error {
	if receipt.ReceiptID == "" {
		return ErrMissingReceiptID
	}
	if _, ok := t.receipts[receipt.ReceiptID]; ok {
		return nil
	}
	t.receipts[receipt.ReceiptID] = receipt
	return nil
}

func (t *memTx) GetReceipt(receiptID string) (ReceiptRecord, bool) {
	receipt, ok := t.receipts[receiptID]
	return receipt, ok
}

// GetReceiptByDecision returns the earliest receipt for a decision.
func (t *memTx) GetReceiptByDecision(decisionID string) (ReceiptRecord, bool) {
	var (
		found ReceiptRecord
		ok    bool
	)
	for _, receipt := range t.receipts {
		if receipt.DecisionID != decisionID {
			continue
		}
		if !ok || receipt.CreatedAt < found.CreatedAt {
			found, ok = receipt, true
		}
	}
	return found, ok
}

func (t *memTx) GetReceiptByIdemKey(idemKey string) (ReceiptRecord, bool) {
	var (
		found ReceiptRecord
		ok    bool
	)
	for _, receipt := range t.receipts {
		if receipt.IdemKey != idemKey {
			continue
		}
		if !ok || receipt.CreatedAt < found.CreatedAt {
			found, ok = receipt, true
		}
	}
	return found, ok
}

func (t *memTx) PutReviewTask(task ReviewTaskRecord) error {
	if existing, ok := t.tasks[task.TaskID]; ok {
		task.CreatedAt = existing.CreatedAt
	}
	t.tasks[task.TaskID] = task
	return nil
}

func (t *memTx) GetReviewTask(taskID string) (ReviewTaskRecord, bool) {
	task, ok := t.tasks[taskID]
	return task, ok
}

func (t *memTx) GetReviewTaskByDecision(decisionID string) (ReviewTaskRecord, bool) {
	for _, task := range t.tasks {
		if task.DecisionID == decisionID {
			return task, true
		}
	}
	return ReviewTaskRecord{}, false
}

func (t *memTx) PutReview(review ReviewRecord) error {
	if _, ok := t.reviews[review.ReviewID]; ok {
		return nil
	}
	t.reviews[review.ReviewID] = review
	return nil
}

func (t *memTx) GetReview(reviewID string) (ReviewRecord, bool) {
	review, ok := t.reviews[reviewID]
	return review, ok
}

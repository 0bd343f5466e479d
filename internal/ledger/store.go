package ledger

// Store is the durable ledger. Getters report presence with a bool; a storage
// failure on read is reported as absent.
type Store interface {
	Tx
	WithTx(fn func(Tx) error) error

	ListNotificationsDue(now string, limit int) ([]NotificationRecord, error)
	ListDecisionsBySession(sessionID string) ([]DecisionRecord, error)
	ListReviewTasks(status string, limit int) ([]ReviewTaskRecord, error)
	ListReviewsByFeature(featureID string) ([]ReviewRecord, error)
}

type Tx interface {
	PutKey(key KeyRecord) error
	GetKey(keyID string) (KeyRecord, bool)

	PutNotification(rec NotificationRecord) error
	GetNotification(notificationID string) (NotificationRecord, bool)

	PutPolicyVersion(policy PolicyVersionRecord) error
	GetPolicyVersion(policyHash string) (PolicyVersionRecord, bool)

	PutFeature(feature FeatureRecord) error
	GetFeature(featureID string) (FeatureRecord, bool)

	PutDecision(decision DecisionRecord) error
	GetDecision(decisionID string) (DecisionRecord, bool)

	PutReceipt(receipt ReceiptRecord) error
	GetReceipt(receiptID string) (ReceiptRecord, bool)
	GetReceiptByDecision(decisionID string) (ReceiptRecord, bool)
	GetReceiptByIdemKey(idemKey string) (ReceiptRecord, bool)

	PutReviewTask(task ReviewTaskRecord) error
	GetReviewTask(taskID string) (ReviewTaskRecord, bool)
	GetReviewTaskByDecision(decisionID string) (ReviewTaskRecord, bool)

	PutReview(review ReviewRecord) error
	GetReview(reviewID string) (ReviewRecord, bool)
}

type PolicyVersionRecord struct {
	PolicyHash    string
	PolicyID      string
	PolicyVersion string
	PolicyYAML    string
	CreatedAt     string
}

type KeyRecord struct {
	KeyID     string
	PublicKey []byte
	CreatedAt string
	RotatedAt *string
}

// NotificationRecord is one escalation message waiting in the outbox.
type NotificationRecord struct {
	NotificationID string
	TaskID         string
	Channel        string
	MessageJSON    []byte
	Status         string // pending | sent
	AttemptCount   int
	NextAttemptAt  string
	LastError      *string
	SentAt         *string
	CreatedAt      string
	UpdatedAt      string
}

type FeatureRecord struct {
	FeatureID string
	SessionID string
	Name      string
	BodyJSON  []byte
	CreatedAt string
}

type DecisionRecord struct {
	DecisionID           string
	FeatureID            string
	SessionID            string
	PolicyHash           string
	Verdict              string
	ConfidenceMilli      int64
	HITLRecommended      bool
	SupersedesDecisionID *string
	BodyJSON             []byte
	CreatedAt            string
}

type ReceiptRecord struct {
	ReceiptID           string
	IdemKey             string
	CreatedAt           string
	SupersedesReceiptID *string
	FeatureID           string
	DecisionID          string
	PolicyHash          string
	TaskID              *string
	OutcomeStatus       string
	Final               bool
	BodyJSON            []byte
	BodyDigest          string
	KeyID               string
	Sig                 []byte
}

// ReviewTaskRecord is a HITL queue entry. Status is pending | resolved | dismissed.
type ReviewTaskRecord struct {
	TaskID      string
	DecisionID  string
	FeatureID   string
	SessionID   string
	Status      string
	ReasonsJSON []byte
	ResolvedBy  *string
	ResolvedAt  *string
	CreatedAt   string
	UpdatedAt   string
}

type ReviewRecord struct {
	ReviewID   string
	TaskID     string
	FeatureID  string
	Reviewer   string
	DecisionID *string
	BodyJSON   []byte
	CreatedAt  string
}

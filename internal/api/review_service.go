package api

import (
	"context"
	"crypto/ed25519"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/davidahmann/geogate/internal/cache"
	"github.com/davidahmann/geogate/internal/decision"
	"github.com/davidahmann/geogate/internal/feature"
	"github.com/davidahmann/geogate/internal/intake"
	"github.com/davidahmann/geogate/internal/ledger"
	"github.com/davidahmann/geogate/internal/metrics"
	"github.com/davidahmann/geogate/internal/notify"
	"github.com/davidahmann/geogate/internal/policy"
	"github.com/davidahmann/geogate/internal/review"
	"github.com/davidahmann/geogate/pkg/types"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrInvalidReview = errors.New("invalid review")
)

// KeySigner signs receipts and exposes the key it signs with so the key can
// be registered in the ledger.
type KeySigner interface {
	ledger.Signer
	PublicKey() ed25519.PublicKey
}

type ServiceOptions struct {
	Policy   policy.LoadedPolicy
	Store    ledger.Store
	Signer   KeySigner
	Cache    cache.Cache
	CacheTTL time.Duration
	// NotifyChannel enables escalation notifications when non-empty.
	NotifyChannel string
	Logger        *zap.Logger
	Metrics       *metrics.Metrics
	Now           func() time.Time
}

// ReviewService runs decisions through the engine and records them, their
// receipts and the human review queue in the ledger.
type ReviewService struct {
	policy        policy.LoadedPolicy
	engine        review.Config
	store         ledger.Store
	signer        KeySigner
	idem          idemStore
	notifyChannel string
	log           *zap.Logger
	metrics       *metrics.Metrics
	now           func() time.Time
}

type TaskRef struct {
	TaskID string           `json:"task_id"`
	Status types.TaskStatus `json:"status"`
}

type DecideResponse struct {
	SessionID  string               `json:"session_id"`
	FeatureID  string               `json:"feature_id"`
	DecisionID string               `json:"decision_id"`
	ReceiptID  string               `json:"receipt_id"`
	Record     types.DecisionRecord `json:"record"`
	Escalated  bool                 `json:"escalated"`
	Task       *TaskRef             `json:"task,omitempty"`

	// Replayed is set when the response came from an earlier identical request.
	Replayed bool `json:"-"`
}

type ReviewRequest struct {
	TaskID      string                 `json:"task_id"`
	Reviewer    string                 `json:"reviewer"`
	Reason      string                 `json:"reason,omitempty"`
	Resolutions []types.HITLResolution `json:"resolutions"`
}

type ReviewResponse struct {
	ReviewID             string               `json:"review_id"`
	TaskID               string               `json:"task_id"`
	TaskStatus           types.TaskStatus     `json:"task_status"`
	DecisionID           string               `json:"decision_id"`
	SupersedesDecisionID string               `json:"supersedes_decision_id"`
	ReceiptID            string               `json:"receipt_id"`
	Record               types.DecisionRecord `json:"record"`
}

func NewReviewService(opts ServiceOptions) (*ReviewService, error) {
	if opts.Store == nil {
		return nil, fmt.Errorf("missing store")
	}
	if opts.Signer == nil {
		return nil, fmt.Errorf("missing signer")
	}
	if opts.Policy.Hash == "" {
		opts.Policy = policy.Builtin()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Cache != nil && opts.CacheTTL <= 0 {
		opts.CacheTTL = 24 * time.Hour
	}

	s := &ReviewService{
		policy:        opts.Policy,
		engine:        review.ConfigFromPolicy(opts.Policy.Policy),
		store:         opts.Store,
		signer:        opts.Signer,
		idem:          idemStore{cache: opts.Cache, ttl: opts.CacheTTL},
		notifyChannel: opts.NotifyChannel,
		log:           opts.Logger,
		metrics:       opts.Metrics,
		now:           opts.Now,
	}

	ts := s.timestamp()
	err := s.store.WithTx(func(tx ledger.Tx) error {
		if err := tx.PutKey(ledger.KeyRecord{
			KeyID:     s.signer.KeyID(),
			PublicKey: []byte(s.signer.PublicKey()),
			CreatedAt: ts,
		}); err != nil {
			return err
		}
		return tx.PutPolicyVersion(ledger.PolicyVersionRecord{
			PolicyHash:    s.policy.Hash,
			PolicyID:      s.policy.Policy.PolicyID,
			PolicyVersion: s.policy.Policy.PolicyVersion,
			PolicyYAML:    string(s.policy.Bytes),
			CreatedAt:     ts,
		})
	})
	if err != nil {
		return nil, fmt.Errorf("register key and policy: %w", err)
	}
	return s, nil
}

func (s *ReviewService) Policy() policy.LoadedPolicy {
	return s.policy
}

func (s *ReviewService) timestamp() string {
	return s.now().UTC().Format(time.RFC3339)
}

func (s *ReviewService) policyMeta() types.DecisionPolicy {
	return types.DecisionPolicy{
		PolicyID:      s.policy.Policy.PolicyID,
		PolicyVersion: s.policy.Policy.PolicyVersion,
		PolicyHash:    s.policy.Hash,
	}
}

// Decide corrects the request's draft verdict and records the outcome.
// Identical requests replay the first response.
func (s *ReviewService) Decide(ctx context.Context, actor types.ReceiptActor, raw intake.DecideRequest) (DecideResponse, error) {
	start := s.now()

	req, err := raw.Normalize()
	if err != nil {
		return DecideResponse{}, err
	}
	idemKey, err := req.Key(actor)
	if err != nil {
		return DecideResponse{}, err
	}

	if resp, ok, err := s.idem.Get(ctx, idemKey); err != nil {
		s.log.Warn("idempotency cache read failed", zap.String("idem_key", idemKey), zap.Error(err))
	} else if ok {
		s.metrics.ObserveReplay()
		resp.Replayed = true
		return resp, nil
	}

	if req.SessionID == "" {
		req.SessionID = uuid.NewString()
	}
	createdAt := s.timestamp()

	feat, err := feature.BuildFeature(req.SessionID, req.FeatureName, req.FeatureDescription, *req.Findings, createdAt)
	if err != nil {
		return DecideResponse{}, err
	}

	rec, trace, err := review.Decide(*req.Draft, req.Findings, s.engine)
	if err != nil {
		return DecideResponse{}, err
	}

	env, err := decision.BuildDecision(feat.FeatureID, req.SessionID, s.policyMeta(), rec, trace, "", createdAt)
	if err != nil {
		return DecideResponse{}, err
	}

	outcome, action := TransitionFromDecision(env.Record)
	resp := DecideResponse{
		SessionID:  req.SessionID,
		FeatureID:  feat.FeatureID,
		DecisionID: env.DecisionID,
		Record:     env.Record,
		Escalated:  action == ActionOpenReview,
	}

	err = s.store.WithTx(func(tx ledger.Tx) error {
		featRow, err := featureRow(feat)
		if err != nil {
			return err
		}
		if err := tx.PutFeature(featRow); err != nil {
			return err
		}
		decRow, err := decisionRow(env)
		if err != nil {
			return err
		}
		if err := tx.PutDecision(decRow); err != nil {
			return err
		}

		// A receipt under this key means the caller already recorded this
		// decision and the cache entry has expired.
		if prior, ok := tx.GetReceiptByIdemKey(idemKey); ok {
			resp.ReceiptID = prior.ReceiptID
			if task, ok := tx.GetReviewTaskByDecision(env.DecisionID); ok {
				resp.Task = &TaskRef{TaskID: task.TaskID, Status: types.TaskStatus(task.Status)}
			}
			resp.Replayed = true
			return nil
		}

		var reviewRef *types.ReceiptReview
		if existing, ok := tx.GetReviewTaskByDecision(env.DecisionID); ok && action == ActionOpenReview {
			// Another caller already escalated this decision; share its task.
			resp.Task = &TaskRef{TaskID: existing.TaskID, Status: types.TaskStatus(existing.Status)}
			reviewRef = &types.ReceiptReview{Required: true, TaskID: existing.TaskID, Status: existing.Status}
		} else if action == ActionOpenReview {
			task := types.ReviewTask{
				TaskID:     "task-" + uuid.NewString(),
				DecisionID: env.DecisionID,
				FeatureID:  feat.FeatureID,
				SessionID:  req.SessionID,
				Status:     types.TaskPending,
				Reasons:    env.Record.HITLReasons,
				CreatedAt:  createdAt,
				UpdatedAt:  createdAt,
			}
			row, err := taskRow(task, nil, nil)
			if err != nil {
				return err
			}
			if err := tx.PutReviewTask(row); err != nil {
				return err
			}
			resp.Task = &TaskRef{TaskID: task.TaskID, Status: task.Status}
			reviewRef = &types.ReceiptReview{Required: true, TaskID: task.TaskID, Status: string(task.Status)}

			if s.notifyChannel != "" {
				n, err := notify.NewNotification(s.notifyChannel, notify.EscalationMessage{
					TaskID:          task.TaskID,
					DecisionID:      env.DecisionID,
					FeatureID:       feat.FeatureID,
					FeatureName:     feat.Name,
					Verdict:         string(env.Record.Decision),
					ConfidenceMilli: decision.Milli(env.Record.Confidence),
					Reasons:         task.Reasons,
				}, s.now())
				if err != nil {
					return err
				}
				if err := tx.PutNotification(n); err != nil {
					return err
				}
			}
		}

		receipt, err := ledger.MakeReceipt(ledger.MakeReceiptInput{
			CreatedAt:       createdAt,
			IdemKey:         idemKey,
			FeatureID:       feat.FeatureID,
			DecisionID:      env.DecisionID,
			Actor:           actor,
			Policy:          types.ReceiptPolicy(s.policyMeta()),
			Review:          reviewRef,
			Outcome:         types.ReceiptOutcome{Status: outcome, Decision: env.Record.Decision},
			ConfidenceMilli: decision.Milli(env.Record.Confidence),
		}, s.signer)
		if err != nil {
			return err
		}
		resp.ReceiptID = receipt.ReceiptID
		return tx.PutReceipt(receipt.Record())
	})
	if err != nil {
		return DecideResponse{}, fmt.Errorf("record decision: %w", err)
	}

	replayed := resp.Replayed
	resp, err = s.idem.Put(ctx, idemKey, resp)
	if err != nil {
		s.log.Warn("idempotency cache write failed", zap.String("idem_key", idemKey), zap.Error(err))
	}
	resp.Replayed = replayed

	if !replayed {
		s.metrics.ObserveDecide(string(resp.Record.Decision), resp.Escalated, s.now().Sub(start))
	}
	s.log.Info("decision recorded",
		zap.String("session_id", resp.SessionID),
		zap.String("decision_id", resp.DecisionID),
		zap.String("verdict", string(resp.Record.Decision)),
		zap.Float64("confidence", resp.Record.Confidence),
		zap.Bool("escalated", resp.Escalated),
		zap.Bool("replayed", replayed))
	return resp, nil
}

// SubmitReview applies a human review to a pending task, re-runs the engine
// over the resolved findings and records the superseding decision.
func (s *ReviewService) SubmitReview(ctx context.Context, actor types.ReceiptActor, req ReviewRequest) (ReviewResponse, error) {
	req.TaskID = strings.TrimSpace(req.TaskID)
	req.Reviewer = strings.TrimSpace(req.Reviewer)
	if req.Reviewer == "" {
		req.Reviewer = actor.Subject
	}
	if req.TaskID == "" {
		return ReviewResponse{}, fmt.Errorf("%w: task_id is required", ErrInvalidReview)
	}
	if req.Reviewer == "" {
		return ReviewResponse{}, fmt.Errorf("%w: reviewer is required", ErrInvalidReview)
	}
	for i, r := range req.Resolutions {
		if !r.Resolution.Valid() {
			return ReviewResponse{}, fmt.Errorf("resolutions[%d]: %w", i, &types.ValidationError{Field: "resolution", Value: string(r.Resolution)})
		}
	}
	if err := ctx.Err(); err != nil {
		return ReviewResponse{}, err
	}

	createdAt := s.timestamp()
	var resp ReviewResponse

	err := s.store.WithTx(func(tx ledger.Tx) error {
		taskRec, ok := tx.GetReviewTask(req.TaskID)
		if !ok {
			return fmt.Errorf("task %s: %w", req.TaskID, ErrNotFound)
		}
		task := taskFromRow(taskRec)
		next, err := NextTaskStatus(task.Status, req.Resolutions)
		if err != nil {
			return err
		}

		decRow, ok := tx.GetDecision(task.DecisionID)
		if !ok {
			return fmt.Errorf("decision %s: %w", task.DecisionID, ErrNotFound)
		}
		prior, err := decisionFromRow(decRow)
		if err != nil {
			return err
		}
		featRow, ok := tx.GetFeature(task.FeatureID)
		if !ok {
			return fmt.Errorf("feature %s: %w", task.FeatureID, ErrNotFound)
		}
		feat, err := featureFromRow(featRow)
		if err != nil {
			return err
		}

		resolved, err := review.ApplyResolutions(feat.Findings, req.Resolutions)
		if err != nil {
			return err
		}

		draft := prior.Record.Clone()
		draft.Conditions = appendUnique(draft.Conditions, resolved.Conditions)
		rec, trace, err := review.Decide(draft, &resolved.Findings, s.engine)
		if err != nil {
			return err
		}

		env, err := decision.BuildDecision(prior.FeatureID, prior.SessionID, s.policyMeta(), rec, trace, prior.DecisionID, createdAt)
		if err != nil {
			return err
		}
		row, err := decisionRow(env)
		if err != nil {
			return err
		}
		if err := tx.PutDecision(row); err != nil {
			return err
		}

		var supersedes *string
		if r, ok := tx.GetReceiptByDecision(prior.DecisionID); ok {
			id := r.ReceiptID
			supersedes = &id
		}
		receipt, err := ledger.MakeReceipt(ledger.MakeReceiptInput{
			CreatedAt:           createdAt,
			IdemKey:             "review:" + req.TaskID,
			SupersedesReceiptID: supersedes,
			FeatureID:           prior.FeatureID,
			DecisionID:          env.DecisionID,
			Actor:               actor,
			Policy:              types.ReceiptPolicy(s.policyMeta()),
			Review:              &types.ReceiptReview{Required: true, TaskID: task.TaskID, Status: string(next)},
			Outcome:             types.ReceiptOutcome{Status: types.OutcomeReviewed, Decision: env.Record.Decision},
			ConfidenceMilli:     decision.Milli(env.Record.Confidence),
		}, s.signer)
		if err != nil {
			return err
		}
		if err := tx.PutReceipt(receipt.Record()); err != nil {
			return err
		}

		rv := types.Review{
			ReviewID:    "review-" + uuid.NewString(),
			TaskID:      task.TaskID,
			FeatureID:   task.FeatureID,
			Reviewer:    req.Reviewer,
			Reason:      strings.TrimSpace(req.Reason),
			Resolutions: append([]types.HITLResolution{}, req.Resolutions...),
			DecisionID:  env.DecisionID,
			CreatedAt:   createdAt,
		}
		rvRow, err := reviewRow(rv)
		if err != nil {
			return err
		}

		task.Status = next
		task.UpdatedAt = createdAt
		resolvedBy := req.Reviewer
		resolvedAt := createdAt
		updated, err := taskRow(task, &resolvedBy, &resolvedAt)
		if err != nil {
			return err
		}
		if err := tx.PutReviewTask(updated); err != nil {
			return err
		}
		if err := tx.PutReview(rvRow); err != nil {
			return err
		}

		resp = ReviewResponse{
			ReviewID:             rv.ReviewID,
			TaskID:               task.TaskID,
			TaskStatus:           next,
			DecisionID:           env.DecisionID,
			SupersedesDecisionID: prior.DecisionID,
			ReceiptID:            receipt.ReceiptID,
			Record:               env.Record,
		}
		return nil
	})
	if err != nil {
		return ReviewResponse{}, err
	}

	s.metrics.ObserveReview(string(resp.TaskStatus))
	s.log.Info("review recorded",
		zap.String("review_id", resp.ReviewID),
		zap.String("task_id", resp.TaskID),
		zap.String("task_status", string(resp.TaskStatus)),
		zap.String("decision_id", resp.DecisionID),
		zap.String("supersedes_decision_id", resp.SupersedesDecisionID),
		zap.String("reviewer", req.Reviewer))
	return resp, nil
}

func appendUnique(list []string, add []string) []string {
	out := append([]string{}, list...)
	for _, s := range add {
		dup := false
		for _, existing := range out {
			if strings.EqualFold(existing, s) {
				dup = true
				break
			}
		}
		if !dup {
			out = append(out, s)
		}
	}
	return out
}

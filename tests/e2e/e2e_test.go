//go:build e2e

package e2e

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/davidahmann/geogate/internal/api"
	"github.com/davidahmann/geogate/internal/auth"
	"github.com/davidahmann/geogate/internal/cache"
	"github.com/davidahmann/geogate/internal/crypto"
	"github.com/davidahmann/geogate/internal/ledger"
	"github.com/davidahmann/geogate/internal/ledger/sqlstore"
	"github.com/davidahmann/geogate/internal/notify"
	"github.com/davidahmann/geogate/internal/policy"
)

const escalatingBody = `{
  "session_id": "e2e-session",
  "feature_name": "Curfew login blocker",
  "feature_description": "Restricts overnight logins for Utah minors",
  "analysis_findings": {
    "findings": [
      {"key_point": "Utah curfew rule applies", "supports": "approve", "evidence": [
        {"kind": "web", "ref": "https://oag.utah.gov/social-media", "snippet": "curfew for minors"},
        {"kind": "doc", "ref": "doc:curfew#p2", "snippet": "login blocker"}
      ]}
    ],
    "open_questions": [
      {"text": "Which states require parental consent?", "category": "policy", "blocking": true}
    ]
  },
  "draft": {
    "decision": "auto_approve",
    "confidence": 0.8,
    "justification": "Utah curfew applies.",
    "conditions": [],
    "citations": ["https://oag.utah.gov/social-media"],
    "hitl_recommended": false,
    "hitl_reasons": []
  }
}`

func TestE2EDecideReviewVerify(t *testing.T) {
	store, err := sqlstore.OpenSQLite(filepath.Join(t.TempDir(), "ledger.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	defer store.Close()
	if err := ledger.Migrate(store.DB(), ledger.DBSQLite); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	loaded, err := policy.LoadPolicy("../../policies/geogate.yaml")
	if err != nil {
		t.Fatalf("policy: %v", err)
	}
	signer, err := crypto.NewEd25519Signer("", ed25519.NewKeyFromSeed(make([]byte, ed25519.SeedSize)))
	if err != nil {
		t.Fatalf("signer: %v", err)
	}
	service, err := api.NewReviewService(api.ServiceOptions{
		Policy:        loaded,
		Store:         store,
		Signer:        signer,
		Cache:         cache.NewMemoryCache(),
		NotifyChannel: "#geo-compliance",
	})
	if err != nil {
		t.Fatalf("service: %v", err)
	}

	srv := httptest.NewServer((&api.Handler{
		Auth:    auth.NewStaticAuthenticator([]string{"e2e:test-token"}),
		Service: service,
	}).Router())
	defer srv.Close()

	var decided api.DecideResponse
	call(t, http.MethodPost, srv.URL+"/v1/decide", escalatingBody, &decided)
	if !decided.Escalated || decided.Task == nil {
		t.Fatalf("expected escalation, got %+v", decided)
	}

	var again api.DecideResponse
	call(t, http.MethodPost, srv.URL+"/v1/decide", escalatingBody, &again)
	if again.ReceiptID != decided.ReceiptID {
		t.Fatalf("expected idempotent receipt_id, got %s vs %s", again.ReceiptID, decided.ReceiptID)
	}

	var hookCalls int32
	hook := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hookCalls, 1)
		w.WriteHeader(http.StatusOK)
	}))
	defer hook.Close()
	outbox := &notify.Outbox{Store: store, Poster: notify.NewWebhookPoster(hook.URL)}
	sent, err := outbox.ProcessDue(context.Background(), time.Now().Add(time.Minute), 10)
	if err != nil || sent != 1 || atomic.LoadInt32(&hookCalls) != 1 {
		t.Fatalf("expected one notification, sent=%d calls=%d err=%v", sent, hookCalls, err)
	}

	var reviewed api.ReviewResponse
	call(t, http.MethodPost, srv.URL+"/v1/reviews", `{"task_id":"`+decided.Task.TaskID+`","reviewer":"legal","resolutions":[{"question_text":"Which states require parental consent?","resolution":"condition"}]}`, &reviewed)
	if reviewed.TaskStatus != "resolved" || reviewed.SupersedesDecisionID != decided.DecisionID {
		t.Fatalf("unexpected review: %+v", reviewed)
	}

	for _, id := range []string{decided.ReceiptID, reviewed.ReceiptID} {
		var v api.VerifyResult
		call(t, http.MethodGet, srv.URL+"/v1/verify/"+id, "", &v)
		if !v.Valid {
			t.Fatalf("receipt %s should verify: %s", id, v.Error)
		}
	}

	var g api.GradeResult
	call(t, http.MethodGet, srv.URL+"/v1/decisions/"+reviewed.DecisionID+"/grade", "", &g)
	if g.Grade != "A" {
		t.Fatalf("expected grade A, got %+v", g)
	}
}

func call(t *testing.T, method, url, body string, out any) {
	t.Helper()

	req, err := http.NewRequest(method, url, bytes.NewBufferString(body))
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	req.Header.Set("Authorization", "Bearer test-token")
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("%s %s: status %d: %s", method, url, resp.StatusCode, raw)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		t.Fatalf("decode: %v", err)
	}
}

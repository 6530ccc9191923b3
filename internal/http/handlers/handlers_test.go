package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"assetforge/internal/domain"
	"assetforge/internal/events"
	"assetforge/internal/pipeline"
	"assetforge/internal/review"
)

type stubScheduler struct {
	enqueueErr error
	resetErr   error
	budget     domain.SessionBudget
	lastReq    pipeline.EnqueueRequest
}

func (s *stubScheduler) Enqueue(_ context.Context, req pipeline.EnqueueRequest) (domain.Asset, error) {
	s.lastReq = req
	if s.enqueueErr != nil {
		return domain.Asset{}, s.enqueueErr
	}
	return domain.Asset{
		ID:     "a1",
		Title:  req.Title,
		Kind:   req.Kind,
		Status: domain.AssetStatusQueued,
	}, nil
}

func (s *stubScheduler) Reset(context.Context, string) error { return s.resetErr }

func (s *stubScheduler) Budget() domain.SessionBudget { return s.budget }

type stubReviewer struct {
	decideErr error
	pending   []domain.Asset
	lastReq   review.DecisionRequest
}

func (s *stubReviewer) Decide(_ context.Context, req review.DecisionRequest) (domain.Asset, error) {
	s.lastReq = req
	if s.decideErr != nil {
		return domain.Asset{}, s.decideErr
	}
	return domain.Asset{ID: req.AssetID, Status: domain.AssetStatusApproved}, nil
}

func (s *stubReviewer) Pending() []domain.Asset { return s.pending }

type stubAssets struct {
	assets map[string]domain.Asset
}

func (s *stubAssets) Get(id string) (domain.Asset, error) {
	a, ok := s.assets[id]
	if !ok {
		return domain.Asset{}, domain.ErrNotFound
	}
	return a, nil
}

func (s *stubAssets) List(status domain.AssetStatus) []domain.Asset {
	var out []domain.Asset
	for _, a := range s.assets {
		if status == "" || a.Status == status {
			out = append(out, a)
		}
	}
	return out
}

type stubArtifacts struct {
	data map[string][]byte
}

func (s *stubArtifacts) Read(_ context.Context, key string) ([]byte, error) {
	d, ok := s.data[key]
	if !ok {
		return nil, errors.New("missing")
	}
	return d, nil
}

type handlerRig struct {
	app       *App
	scheduler *stubScheduler
	reviewer  *stubReviewer
	assets    *stubAssets
	artifacts *stubArtifacts
	bc        *events.Broadcaster
	router    chi.Router
}

func newHandlerRig(t *testing.T) *handlerRig {
	t.Helper()
	rig := &handlerRig{
		scheduler: &stubScheduler{},
		reviewer:  &stubReviewer{},
		assets:    &stubAssets{assets: map[string]domain.Asset{}},
		artifacts: &stubArtifacts{data: map[string][]byte{}},
		bc:        events.NewBroadcaster(16, zerolog.Nop()),
	}
	t.Cleanup(rig.bc.Close)

	rig.app = &App{
		Scheduler: rig.scheduler,
		Assets:    rig.assets,
		Review:    rig.reviewer,
		Events:    rig.bc,
		Artifacts: rig.artifacts,
		Logger:    zerolog.Nop(),
	}

	r := chi.NewRouter()
	r.Post("/v1/assets", rig.app.EnqueueAsset)
	r.Get("/v1/assets", rig.app.ListAssets)
	r.Get("/v1/assets/pending", rig.app.ListPending)
	r.Get("/v1/assets/{id}", rig.app.GetAsset)
	r.Get("/v1/assets/{id}/artifact", rig.app.GetArtifact)
	r.Get("/v1/assets/{id}/decisions", rig.app.ListAssetDecisions)
	r.Get("/v1/assets/{id}/jobs", rig.app.ListAssetJobs)
	r.Post("/v1/assets/{id}/decision", rig.app.DecideAsset)
	r.Post("/v1/assets/{id}/reset", rig.app.ResetAsset)
	r.Get("/v1/budget", rig.app.GetBudget)
	r.Get("/v1/events", rig.app.StreamEvents)
	r.Post("/v1/control", rig.app.SendControl)
	rig.router = r
	return rig
}

func (rig *handlerRig) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	rig.router.ServeHTTP(rec, req)
	return rec
}

func TestEnqueueAsset(t *testing.T) {
	rig := newHandlerRig(t)

	rec := rig.do(t, http.MethodPost, "/v1/assets", `{"title":"Morning Tea","kind":"icon","category":"everyday"}`)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202: %s", rec.Code, rec.Body.String())
	}
	var resp assetResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.ID != "a1" || resp.Status != "queued" {
		t.Errorf("resp = %+v", resp)
	}
	if rig.scheduler.lastReq.Title != "Morning Tea" || rig.scheduler.lastReq.Kind != domain.AssetKindIcon {
		t.Errorf("scheduler got %+v", rig.scheduler.lastReq)
	}
}

func TestEnqueueAssetValidation(t *testing.T) {
	rig := newHandlerRig(t)

	tests := []struct {
		name string
		body string
	}{
		{"missing title", `{"kind":"icon"}`},
		{"bad kind", `{"title":"x","kind":"banner"}`},
		{"broken json", `{`},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := rig.do(t, http.MethodPost, "/v1/assets", tc.body)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", rec.Code)
			}
		})
	}
}

func TestEnqueueAssetRefusals(t *testing.T) {
	rig := newHandlerRig(t)

	rig.scheduler.enqueueErr = domain.ErrEnqueueRefused
	rec := rig.do(t, http.MethodPost, "/v1/assets", `{"title":"x"}`)
	if rec.Code != http.StatusConflict {
		t.Fatalf("budget refusal status = %d, want 409", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "budget_exhausted") {
		t.Errorf("body = %s", rec.Body.String())
	}

	rig.scheduler.enqueueErr = domain.ErrPipelineAborted
	rec = rig.do(t, http.MethodPost, "/v1/assets", `{"title":"x"}`)
	if rec.Code != http.StatusConflict {
		t.Fatalf("abort refusal status = %d, want 409", rec.Code)
	}
}

func TestGetAsset(t *testing.T) {
	rig := newHandlerRig(t)
	rig.assets.assets["a1"] = domain.Asset{ID: "a1", Title: "t", Status: domain.AssetStatusPendingReview}

	rec := rig.do(t, http.MethodGet, "/v1/assets/a1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	rec = rig.do(t, http.MethodGet, "/v1/assets/nope", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("missing asset status = %d, want 404", rec.Code)
	}
}

func TestListAssetsFiltersByStatus(t *testing.T) {
	rig := newHandlerRig(t)
	rig.assets.assets["a1"] = domain.Asset{ID: "a1", Status: domain.AssetStatusQueued}
	rig.assets.assets["a2"] = domain.Asset{ID: "a2", Status: domain.AssetStatusFailed}

	rec := rig.do(t, http.MethodGet, "/v1/assets?status=failed", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp struct {
		Items []assetResponse `json:"items"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Items) != 1 || resp.Items[0].ID != "a2" {
		t.Errorf("items = %+v", resp.Items)
	}
}

func TestDecideAsset(t *testing.T) {
	rig := newHandlerRig(t)

	rec := rig.do(t, http.MethodPost, "/v1/assets/a1/decision", `{"decision":"approve","reviewer_id":"rev-1","reasoning":"clean lines"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	if rig.reviewer.lastReq.AssetID != "a1" || rig.reviewer.lastReq.Decision != domain.DecisionApprove {
		t.Errorf("reviewer got %+v", rig.reviewer.lastReq)
	}

	rig.reviewer.decideErr = domain.ErrInvalidTransition
	rec = rig.do(t, http.MethodPost, "/v1/assets/a1/decision", `{"decision":"approve"}`)
	if rec.Code != http.StatusConflict {
		t.Fatalf("double decision status = %d, want 409", rec.Code)
	}

	rig.reviewer.decideErr = domain.ErrNotFound
	rec = rig.do(t, http.MethodPost, "/v1/assets/nope/decision", `{"decision":"approve"}`)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("missing asset status = %d, want 404", rec.Code)
	}
}

func TestResetAsset(t *testing.T) {
	rig := newHandlerRig(t)
	rig.assets.assets["a1"] = domain.Asset{ID: "a1", Status: domain.AssetStatusQueued}

	rec := rig.do(t, http.MethodPost, "/v1/assets/a1/reset", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	rig.scheduler.resetErr = domain.ErrInvalidTransition
	rec = rig.do(t, http.MethodPost, "/v1/assets/a1/reset", "")
	if rec.Code != http.StatusConflict {
		t.Fatalf("non-failed reset status = %d, want 409", rec.Code)
	}
}

type stubDecisionArchive struct {
	decisions []domain.ReviewDecision
	err       error
}

func (s *stubDecisionArchive) ListByAsset(context.Context, string) ([]domain.ReviewDecision, error) {
	return s.decisions, s.err
}

type stubJobArchive struct {
	jobs []domain.GenerationJob
	err  error
}

func (s *stubJobArchive) ListByAsset(context.Context, string) ([]domain.GenerationJob, error) {
	return s.jobs, s.err
}

func TestListAssetDecisionsPrefersArchive(t *testing.T) {
	rig := newHandlerRig(t)
	rig.assets.assets["a1"] = domain.Asset{
		ID:        "a1",
		Status:    domain.AssetStatusApproved,
		Decisions: []domain.ReviewDecision{{ID: "mem-1", Decision: domain.DecisionApprove}},
	}
	rig.app.Decisions = &stubDecisionArchive{decisions: []domain.ReviewDecision{
		{ID: "db-1", Decision: domain.DecisionRegenerate},
		{ID: "db-2", Decision: domain.DecisionApprove},
	}}

	rec := rig.do(t, http.MethodGet, "/v1/assets/a1/decisions", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp struct {
		Items []decisionView `json:"items"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Items) != 2 || resp.Items[0].ID != "db-1" {
		t.Errorf("items = %+v, want the archived history", resp.Items)
	}
}

func TestListAssetDecisionsFallsBackToMemory(t *testing.T) {
	rig := newHandlerRig(t)
	rig.assets.assets["a1"] = domain.Asset{
		ID:        "a1",
		Status:    domain.AssetStatusApproved,
		Decisions: []domain.ReviewDecision{{ID: "mem-1", Decision: domain.DecisionApprove}},
	}
	rig.app.Decisions = &stubDecisionArchive{err: errors.New("connection refused")}

	rec := rig.do(t, http.MethodGet, "/v1/assets/a1/decisions", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "mem-1") {
		t.Errorf("body = %s, want in-memory decision", rec.Body.String())
	}

	rec = rig.do(t, http.MethodGet, "/v1/assets/nope/decisions", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("missing asset status = %d, want 404", rec.Code)
	}
}

func TestListAssetJobs(t *testing.T) {
	rig := newHandlerRig(t)
	rig.assets.assets["a1"] = domain.Asset{
		ID:     "a1",
		Status: domain.AssetStatusPendingReview,
		Jobs:   []domain.GenerationJob{{ID: "mem-j1", Attempt: 1}},
	}

	// Without an archive the in-memory attempt log is served.
	rec := rig.do(t, http.MethodGet, "/v1/assets/a1/jobs", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "mem-j1") {
		t.Errorf("body = %s", rec.Body.String())
	}

	rig.app.Jobs = &stubJobArchive{jobs: []domain.GenerationJob{
		{ID: "db-j1", Attempt: 1},
		{ID: "db-j2", Attempt: 2},
	}}
	rec = rig.do(t, http.MethodGet, "/v1/assets/a1/jobs", "")
	var resp struct {
		Items []jobView `json:"items"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Items) != 2 || resp.Items[1].ID != "db-j2" {
		t.Errorf("items = %+v, want the archived log", resp.Items)
	}
}

func TestGetBudget(t *testing.T) {
	rig := newHandlerRig(t)
	rig.scheduler.budget = domain.SessionBudget{Ceiling: 25, Spent: 5, Remaining: 20}

	rec := rig.do(t, http.MethodGet, "/v1/budget", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var got domain.SessionBudget
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Spent != 5 || got.Remaining != 20 {
		t.Errorf("budget = %+v", got)
	}
}

func TestGetArtifactPrefersPermanentKey(t *testing.T) {
	rig := newHandlerRig(t)
	rig.assets.assets["a1"] = domain.Asset{
		ID:           "a1",
		Status:       domain.AssetStatusApproved,
		PermanentKey: "library/icon/a1.png",
	}
	rig.artifacts.data["library/icon/a1.png"] = []byte("png-bytes")

	rec := rig.do(t, http.MethodGet, "/v1/assets/a1/artifact", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "image/png" {
		t.Errorf("Content-Type = %q", ct)
	}
	if rec.Body.String() != "png-bytes" {
		t.Errorf("body = %q", rec.Body.String())
	}
}

func TestGetArtifactWithoutKey(t *testing.T) {
	rig := newHandlerRig(t)
	rig.assets.assets["a1"] = domain.Asset{ID: "a1", Status: domain.AssetStatusQueued}

	rec := rig.do(t, http.MethodGet, "/v1/assets/a1/artifact", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestSendControl(t *testing.T) {
	rig := newHandlerRig(t)

	rec := rig.do(t, http.MethodPost, "/v1/control", `{"kind":"pause"}`)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	select {
	case cmd := <-rig.bc.Control():
		if cmd.Kind != events.CommandPause {
			t.Errorf("kind = %q", cmd.Kind)
		}
	case <-time.After(time.Second):
		t.Fatal("command never reached the queue")
	}

	rec = rig.do(t, http.MethodPost, "/v1/control", `{"kind":"skip"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("skip without asset_id status = %d, want 400", rec.Code)
	}

	rec = rig.do(t, http.MethodPost, "/v1/control", `{"kind":"explode"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("unknown kind status = %d, want 400", rec.Code)
	}
}

func TestStreamEventsDeliversInOrder(t *testing.T) {
	rig := newHandlerRig(t)

	srv := httptest.NewServer(rig.router)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/v1/events", nil)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("Content-Type = %q", ct)
	}

	rig.bc.Publish(domain.EventAssetEnqueued, "a1", nil)
	rig.bc.Publish(domain.EventStageChanged, "a1", map[string]any{"to": "generating"})

	buf := make([]byte, 4096)
	var collected strings.Builder
	for !strings.Contains(collected.String(), "stage_changed") {
		n, err := resp.Body.Read(buf)
		if n > 0 {
			collected.Write(buf[:n])
		}
		if err != nil {
			break
		}
	}
	body := collected.String()
	first := strings.Index(body, "asset_enqueued")
	second := strings.Index(body, "stage_changed")
	if first == -1 || second == -1 || first > second {
		t.Fatalf("events out of order or missing:\n%s", body)
	}
}

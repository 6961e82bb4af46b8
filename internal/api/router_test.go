package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sydlexius/trackmend/internal/api/middleware"
	"github.com/sydlexius/trackmend/internal/backup"
	"github.com/sydlexius/trackmend/internal/database"
	"github.com/sydlexius/trackmend/internal/dedupe"
	"github.com/sydlexius/trackmend/internal/engine"
	"github.com/sydlexius/trackmend/internal/event"
	"github.com/sydlexius/trackmend/internal/job"
	"github.com/sydlexius/trackmend/internal/logging"
	"github.com/sydlexius/trackmend/internal/maintenance"
	"github.com/sydlexius/trackmend/internal/scanner"
	"github.com/sydlexius/trackmend/internal/settings"
	"github.com/sydlexius/trackmend/internal/track"
	"github.com/sydlexius/trackmend/internal/wishlist"
)

const testLidarrToken = "lidarr-secret"

type testEnv struct {
	handler  http.Handler
	engine   *engine.Engine
	bus      *event.Bus
	settings *settings.Store
	root     string
}

func newTestEnv(t *testing.T, limiter *middleware.RateLimiter) *testEnv {
	t.Helper()

	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("opening test db: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		t.Fatalf("running migrations: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	root := t.TempDir()
	bus := event.NewBus(logger, 64)

	tracks := track.NewService(db)
	jobs := job.NewRegistry(logger, t.TempDir())
	jobs.SetStore(job.NewStore(db))
	jobs.SetEventBus(bus)
	sc := scanner.NewService(tracks, logger, scanner.Options{LibraryPath: root, Workers: 2})
	sc.SetEventBus(bus)

	eng := engine.New(engine.Deps{
		Tracks:      tracks,
		Wishlist:    wishlist.NewService(db),
		Jobs:        jobs,
		Scanner:     sc,
		Planner:     dedupe.NewPlanner(tracks, logger),
		EventBus:    bus,
		MatchConfig: track.DefaultMatchConfig(),
		Logger:      logger,
	})

	logManager, _ := logging.NewManager(logging.Config{Level: "info", Format: "text", Console: "none"})
	t.Cleanup(func() { _ = logManager.Close() })

	store := settings.NewStore(db)
	r := NewRouter(RouterDeps{
		Engine:         eng,
		LogManager:     logManager,
		Settings:       store,
		EventBus:       bus,
		Maintenance:    maintenance.NewService(db, ":memory:", store, logger),
		Backup:         backup.NewService(db, t.TempDir(), 3, logger),
		LidarrToken:    testLidarrToken,
		TriggerLimiter: limiter,
		Logger:         logger,
	})
	return &testEnv{handler: r.Handler(), engine: eng, bus: bus, settings: store, root: root}
}

func (env *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		rdr = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, rdr)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	env.handler.ServeHTTP(w, req)
	return w
}

func (env *testEnv) addFile(t *testing.T, rel string, size int) string {
	t.Helper()
	path := filepath.Join(env.root, rel)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, make([]byte, size), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func (env *testEnv) scan(t *testing.T) {
	t.Helper()
	if _, err := env.engine.Scan(testContext(t)); err != nil {
		t.Fatalf("scan: %v", err)
	}
}

func testContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(w.Body).Decode(&v); err != nil {
		t.Fatalf("decoding response: %v; body: %s", err, w.Body.String())
	}
	return v
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t, nil)
	w := env.do(t, http.MethodGet, "/api/v1/health", nil)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if w.Header().Get(middleware.RequestIDHeader) == "" {
		t.Error("missing request id header")
	}
	if w.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("missing security headers")
	}
	body := decode[map[string]string](t, w)
	if body["status"] != "ok" {
		t.Errorf("status = %q, want ok", body["status"])
	}
}

func TestListTracks(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.do(t, http.MethodGet, "/api/v1/tracks", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d; body: %s", w.Code, w.Body.String())
	}
	var empty struct {
		Tracks []track.Record `json:"tracks"`
		Total  int            `json:"total"`
	}
	if err := json.NewDecoder(w.Body).Decode(&empty); err != nil {
		t.Fatal(err)
	}
	if empty.Tracks == nil || empty.Total != 0 {
		t.Errorf("empty library = %+v", empty)
	}

	env.addFile(t, "Air/Moon Safari/01 La Femme d'Argent.flac", 10)
	env.addFile(t, "Air/Moon Safari/02 Sexy Boy.flac", 10)
	env.scan(t)

	w = env.do(t, http.MethodGet, "/api/v1/tracks?limit=1", nil)
	var page struct {
		Tracks []track.Record `json:"tracks"`
		Total  int            `json:"total"`
		Limit  int            `json:"limit"`
	}
	if err := json.NewDecoder(w.Body).Decode(&page); err != nil {
		t.Fatal(err)
	}
	if len(page.Tracks) != 1 || page.Total != 2 || page.Limit != 1 {
		t.Errorf("page = %+v", page)
	}

	w = env.do(t, http.MethodGet, "/api/v1/tracks/"+page.Tracks[0].ID, nil)
	if w.Code != http.StatusOK {
		t.Errorf("get track status = %d", w.Code)
	}
	w = env.do(t, http.MethodGet, "/api/v1/tracks/nope", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("missing track status = %d, want 404", w.Code)
	}
}

func TestMatch(t *testing.T) {
	env := newTestEnv(t, nil)
	env.addFile(t, "Portishead/Dummy/03 Sour Times.mp3", 10)
	env.scan(t)

	tests := []struct {
		name   string
		body   any
		status int
		method track.MatchMethod
	}{
		{"exact", track.Query{Artist: "portishead", Title: "SOUR TIMES"}, http.StatusOK, track.MatchMethodExactNormalized},
		{"partial", track.Query{Artist: "Portishead", Title: "Sour Times (Nobody Loves Me)"}, http.StatusOK, track.MatchMethodPartialFuzzy},
		{"none", track.Query{Artist: "Massive Attack", Title: "Teardrop"}, http.StatusNotFound, ""},
		{"empty", track.Query{}, http.StatusBadRequest, ""},
		{"unknown field", map[string]string{"song": "x"}, http.StatusBadRequest, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(t, http.MethodPost, "/api/v1/match", tt.body)
			if w.Code != tt.status {
				t.Fatalf("status = %d, want %d; body: %s", w.Code, tt.status, w.Body.String())
			}
			if tt.status != http.StatusOK {
				return
			}
			var resp struct {
				Match track.MatchResult `json:"match"`
				Track track.Record      `json:"track"`
			}
			if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
				t.Fatal(err)
			}
			if resp.Match.Method != tt.method {
				t.Errorf("Method = %q, want %q", resp.Match.Method, tt.method)
			}
			if resp.Track.Title != "Sour Times" {
				t.Errorf("Title = %q, want Sour Times", resp.Track.Title)
			}
		})
	}
}

func TestDuplicates_PreviewAndExecute(t *testing.T) {
	env := newTestEnv(t, nil)
	lossy := env.addFile(t, "Bjork/Homogenic/01 Hunter.mp3", 100)
	keeper := env.addFile(t, "Bjork/Homogenic/01 Hunter.flac", 900)
	env.scan(t)

	w := env.do(t, http.MethodGet, "/api/v1/duplicates", nil)
	report := decode[dedupe.Report](t, w)
	if len(report.Groups) != 1 || report.DuplicateCount != 1 || report.WastedBytes != 100 {
		t.Fatalf("report = %+v", report)
	}

	w = env.do(t, http.MethodPost, "/api/v1/duplicates/remove", map[string]bool{"execute": false})
	if w.Code != http.StatusOK {
		t.Fatalf("preview status = %d; body: %s", w.Code, w.Body.String())
	}
	plan := decode[dedupe.Plan](t, w)
	if !plan.DryRun || plan.FilesRemoved != 1 || plan.Items[0].Path != lossy {
		t.Errorf("plan = %+v", plan)
	}
	if _, err := os.Stat(lossy); err != nil {
		t.Fatalf("preview touched disk: %v", err)
	}

	w = env.do(t, http.MethodPost, "/api/v1/duplicates/remove", map[string]bool{"execute": true})
	if w.Code != http.StatusAccepted {
		t.Fatalf("execute status = %d; body: %s", w.Code, w.Body.String())
	}
	snap, err := env.engine.Jobs().Wait(testContext(t), job.KindDedupe)
	if err != nil || snap.State != job.StateComplete {
		t.Fatalf("dedupe job = %+v, %v", snap, err)
	}
	if _, err := os.Stat(lossy); !os.IsNotExist(err) {
		t.Errorf("duplicate still present: %v", err)
	}
	if _, err := os.Stat(keeper); err != nil {
		t.Errorf("keeper removed: %v", err)
	}
}

func TestWishlist_Lifecycle(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.do(t, http.MethodPost, "/api/v1/wishlist", map[string]string{"artist": "Moby"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("missing title status = %d, want 400", w.Code)
	}

	w = env.do(t, http.MethodPost, "/api/v1/wishlist", map[string]string{"artist": "Moby", "title": "Porcelain"})
	if w.Code != http.StatusCreated {
		t.Fatalf("create status = %d; body: %s", w.Code, w.Body.String())
	}
	item := decode[wishlist.Item](t, w)
	if item.Status != wishlist.StatusPending {
		t.Errorf("Status = %q, want pending", item.Status)
	}

	w = env.do(t, http.MethodPut, "/api/v1/wishlist/"+item.ID+"/status", map[string]string{"status": "downloading"})
	if w.Code != http.StatusOK {
		t.Fatalf("set status = %d; body: %s", w.Code, w.Body.String())
	}
	w = env.do(t, http.MethodPut, "/api/v1/wishlist/"+item.ID+"/status", map[string]string{"status": "completed"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("complete via status = %d, want 400", w.Code)
	}

	w = env.do(t, http.MethodGet, "/api/v1/wishlist?status=downloading", nil)
	if items := decode[[]wishlist.Item](t, w); len(items) != 1 || items[0].ID != item.ID {
		t.Errorf("downloading items = %+v", items)
	}
	w = env.do(t, http.MethodGet, "/api/v1/wishlist?status=pending", nil)
	if items := decode[[]wishlist.Item](t, w); len(items) != 0 {
		t.Errorf("pending items = %+v, want none", items)
	}
	w = env.do(t, http.MethodGet, "/api/v1/wishlist?status=bogus", nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("bogus status filter = %d, want 400", w.Code)
	}

	w = env.do(t, http.MethodDelete, "/api/v1/wishlist/"+item.ID, nil)
	if w.Code != http.StatusNoContent {
		t.Errorf("delete = %d, want 204", w.Code)
	}
	w = env.do(t, http.MethodGet, "/api/v1/wishlist/"+item.ID, nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("get deleted = %d, want 404", w.Code)
	}
}

func TestReconcile_CompletesWishlist(t *testing.T) {
	env := newTestEnv(t, nil)
	env.addFile(t, "Moby/Play/05 Porcelain.flac", 10)
	env.scan(t)

	w := env.do(t, http.MethodPost, "/api/v1/wishlist", map[string]string{"artist": "Moby", "title": "Porcelain"})
	item := decode[wishlist.Item](t, w)

	w = env.do(t, http.MethodPost, "/api/v1/reconcile", nil)
	if w.Code != http.StatusAccepted {
		t.Fatalf("reconcile status = %d; body: %s", w.Code, w.Body.String())
	}
	if _, err := env.engine.Jobs().Wait(testContext(t), job.KindReconcile); err != nil {
		t.Fatal(err)
	}

	w = env.do(t, http.MethodGet, "/api/v1/wishlist/"+item.ID, nil)
	got := decode[wishlist.Item](t, w)
	if got.Status != wishlist.StatusCompleted || got.MatchedTrackID == "" {
		t.Errorf("item after reconcile = %+v", got)
	}

	w = env.do(t, http.MethodPut, "/api/v1/wishlist/"+item.ID+"/status", map[string]string{"status": "pending"})
	if w.Code != http.StatusConflict {
		t.Errorf("reopen completed = %d, want 409", w.Code)
	}

	w = env.do(t, http.MethodGet, "/api/v1/jobs/reconcile", nil)
	var resp struct {
		Status  job.Snapshot   `json:"status"`
		History []job.Snapshot `json:"history"`
	}
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.Status.State != job.StateComplete || len(resp.History) != 1 {
		t.Errorf("job status = %+v", resp)
	}
}

func TestJobs_ConflictAndCancel(t *testing.T) {
	env := newTestEnv(t, nil)
	started := make(chan struct{})
	_, err := env.engine.Jobs().Start(context.Background(), job.KindScan, func(ctx context.Context) (any, error) {
		close(started)
		<-ctx.Done()
		return nil, ctx.Err()
	})
	if err != nil {
		t.Fatal(err)
	}
	<-started

	w := env.do(t, http.MethodPost, "/api/v1/scan", nil)
	if w.Code != http.StatusConflict {
		t.Errorf("second scan = %d, want 409", w.Code)
	}

	w = env.do(t, http.MethodDelete, "/api/v1/jobs/scan", nil)
	if w.Code != http.StatusAccepted {
		t.Fatalf("cancel = %d; body: %s", w.Code, w.Body.String())
	}
	snap, err := env.engine.Jobs().Wait(testContext(t), job.KindScan)
	if err != nil || snap.State != job.StateCancelled {
		t.Errorf("after cancel = %+v, %v", snap, err)
	}

	w = env.do(t, http.MethodDelete, "/api/v1/jobs/scan", nil)
	if w.Code != http.StatusConflict {
		t.Errorf("cancel idle = %d, want 409", w.Code)
	}
	w = env.do(t, http.MethodGet, "/api/v1/jobs/bogus", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("unknown kind = %d, want 404", w.Code)
	}
	w = env.do(t, http.MethodGet, "/api/v1/jobs", nil)
	if snaps := decode[[]job.Snapshot](t, w); len(snaps) != len(job.Kinds) {
		t.Errorf("jobs = %d, want %d", len(snaps), len(job.Kinds))
	}
}

func TestTriggerRateLimit(t *testing.T) {
	env := newTestEnv(t, middleware.NewRateLimiter(testContext(t), time.Hour, 1))
	w := env.do(t, http.MethodPost, "/api/v1/scan", nil)
	if w.Code != http.StatusAccepted {
		t.Fatalf("first scan = %d; body: %s", w.Code, w.Body.String())
	}
	if _, err := env.engine.Jobs().Wait(testContext(t), job.KindScan); err != nil {
		t.Fatal(err)
	}
	w = env.do(t, http.MethodPost, "/api/v1/scan", nil)
	if w.Code != http.StatusTooManyRequests {
		t.Errorf("second scan = %d, want 429", w.Code)
	}
	w = env.do(t, http.MethodGet, "/api/v1/tracks", nil)
	if w.Code != http.StatusOK {
		t.Errorf("reads are not limited, got %d", w.Code)
	}
}

func TestRecentEvents(t *testing.T) {
	env := newTestEnv(t, nil)
	env.bus.Publish(event.Event{Type: event.ScanCompleted, Data: map[string]any{"files": 3}})
	env.bus.Stop()
	env.bus.Start()

	w := env.do(t, http.MethodGet, "/api/v1/events", nil)
	events := decode[[]event.Event](t, w)
	if len(events) != 1 || events[0].Type != event.ScanCompleted {
		t.Errorf("events = %+v", events)
	}
}

func TestLoggingConfig(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.do(t, http.MethodPut, "/api/v1/logging", map[string]string{"level": "debug"})
	if w.Code != http.StatusOK {
		t.Fatalf("update = %d; body: %s", w.Code, w.Body.String())
	}
	cfg := decode[logging.Config](t, w)
	if cfg.Level != "debug" || cfg.Format != "text" {
		t.Errorf("config = %+v", cfg)
	}

	w = env.do(t, http.MethodPut, "/api/v1/logging", map[string]string{"level": "loud"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("invalid level = %d, want 400", w.Code)
	}
	w = env.do(t, http.MethodPut, "/api/v1/logging", map[string]string{"file_path": "/tmp/x.log"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("file path change = %d, want 400", w.Code)
	}

	w = env.do(t, http.MethodGet, "/api/v1/logging", nil)
	if got := decode[logging.Config](t, w); got.Level != "debug" {
		t.Errorf("Level = %q, want debug", got.Level)
	}
	if v := env.settings.String(context.Background(), settings.KeyLogLevel, ""); v != "debug" {
		t.Errorf("persisted level = %q, want debug", v)
	}
}

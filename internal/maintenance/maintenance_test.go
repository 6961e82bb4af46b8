package maintenance

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/sydlexius/trackmend/internal/database"
	"github.com/sydlexius/trackmend/internal/settings"
)

func setupTestService(t *testing.T) *Service {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	db, err := database.Open(dbPath)
	if err != nil {
		t.Fatalf("opening test db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if err := database.Migrate(db); err != nil {
		t.Fatalf("running migrations: %v", err)
	}
	return NewService(db, dbPath, settings.NewStore(db), slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestStatus(t *testing.T) {
	svc := setupTestService(t)

	st, err := svc.Status(context.Background())
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if st.DBFileSize <= 0 {
		t.Error("expected positive DB file size")
	}
	if st.PageSize <= 0 || st.PageCount <= 0 {
		t.Errorf("page info = %d x %d", st.PageCount, st.PageSize)
	}
	if st.SchemaVersion < 1 {
		t.Errorf("SchemaVersion = %d", st.SchemaVersion)
	}
	if st.LastOptimizeAt != "" {
		t.Errorf("LastOptimizeAt = %q, want empty", st.LastOptimizeAt)
	}
}

func TestOptimize_RecordsTimestamp(t *testing.T) {
	svc := setupTestService(t)
	ctx := context.Background()

	if err := svc.Optimize(ctx); err != nil {
		t.Fatalf("Optimize: %v", err)
	}
	st, err := svc.Status(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := time.Parse(time.RFC3339, st.LastOptimizeAt); err != nil {
		t.Errorf("LastOptimizeAt = %q: %v", st.LastOptimizeAt, err)
	}
}

func TestVacuum(t *testing.T) {
	svc := setupTestService(t)
	if err := svc.Vacuum(context.Background()); err != nil {
		t.Fatalf("Vacuum: %v", err)
	}
}

func TestStartScheduler_StopsOnCancel(t *testing.T) {
	svc := setupTestService(t)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		svc.StartScheduler(ctx, 10*time.Millisecond)
		close(done)
	}()

	deadline := time.After(5 * time.Second)
	for {
		st, err := svc.Status(context.Background())
		if err == nil && st.LastOptimizeAt != "" {
			break
		}
		select {
		case <-deadline:
			t.Fatal("scheduler never ran Optimize")
		case <-time.After(10 * time.Millisecond):
		}
	}

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("scheduler did not stop")
	}
}

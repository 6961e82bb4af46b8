package track

import (
	"context"
	"database/sql"
	"testing"

	"github.com/sydlexius/trackmend/internal/database"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("opening test db: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		t.Fatalf("running migrations: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func testRecord(artist, title, path string) *Record {
	return &Record{
		Artist:      artist,
		Title:       title,
		Album:       "Test Album",
		Format:      "flac",
		FileSize:    30 << 20,
		BitrateKbps: 1000,
		FilePath:    path,
	}
}

func TestCreateAndGetByID(t *testing.T) {
	db := setupTestDB(t)
	svc := NewService(db)
	ctx := context.Background()

	r := testRecord("Beyoncé", "Halo", "/music/Beyonce/Halo.flac")
	r.ISRC = "usum70901234"
	if err := svc.Create(ctx, r); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if r.ID == "" {
		t.Fatal("expected ID to be set after Create")
	}

	got, err := svc.GetByID(ctx, r.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Artist != "Beyoncé" {
		t.Errorf("Artist = %q, want Beyoncé", got.Artist)
	}
	if got.ISRC != "USUM70901234" {
		t.Errorf("ISRC = %q, want USUM70901234", got.ISRC)
	}
	if got.Format != "FLAC" {
		t.Errorf("Format = %q, want FLAC", got.Format)
	}
	if got.FileSize != 30<<20 {
		t.Errorf("FileSize = %d, want %d", got.FileSize, 30<<20)
	}
	if got.CreatedAt.IsZero() {
		t.Error("expected CreatedAt to be set")
	}
}

func TestCreate_MalformedISRCStoredEmpty(t *testing.T) {
	db := setupTestDB(t)
	svc := NewService(db)
	ctx := context.Background()

	r := testRecord("A", "B", "/music/a.flac")
	r.ISRC = "bogus"
	if err := svc.Create(ctx, r); err != nil {
		t.Fatalf("Create: %v", err)
	}
	got, err := svc.GetByID(ctx, r.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.ISRC != "" {
		t.Errorf("ISRC = %q, want empty", got.ISRC)
	}
}

func TestCreate_RequiresPath(t *testing.T) {
	db := setupTestDB(t)
	svc := NewService(db)
	if err := svc.Create(context.Background(), &Record{Artist: "A", Title: "B"}); err == nil {
		t.Fatal("expected error for missing file path")
	}
}

func TestGetByPath(t *testing.T) {
	db := setupTestDB(t)
	svc := NewService(db)
	ctx := context.Background()

	r := testRecord("Air", "Sexy Boy", "/music/Air/Sexy Boy.mp3")
	if err := svc.Create(ctx, r); err != nil {
		t.Fatalf("Create: %v", err)
	}

	got, err := svc.GetByPath(ctx, "/music/Air/Sexy Boy.mp3")
	if err != nil {
		t.Fatalf("GetByPath: %v", err)
	}
	if got == nil || got.ID != r.ID {
		t.Fatalf("GetByPath = %+v, want id %s", got, r.ID)
	}

	missing, err := svc.GetByPath(ctx, "/nope")
	if err != nil {
		t.Fatalf("GetByPath missing: %v", err)
	}
	if missing != nil {
		t.Errorf("expected nil for missing path, got %+v", missing)
	}
}

func TestUpsert(t *testing.T) {
	db := setupTestDB(t)
	svc := NewService(db)
	ctx := context.Background()

	r := testRecord("Air", "Sexy Boy", "/music/air.mp3")
	created, err := svc.Upsert(ctx, r)
	if err != nil {
		t.Fatalf("Upsert create: %v", err)
	}
	if !created {
		t.Error("expected first Upsert to create")
	}
	firstID := r.ID

	again := testRecord("Air", "Sexy Boy (Remastered)", "/music/air.mp3")
	created, err = svc.Upsert(ctx, again)
	if err != nil {
		t.Fatalf("Upsert update: %v", err)
	}
	if created {
		t.Error("expected second Upsert to update")
	}
	if again.ID != firstID {
		t.Errorf("ID = %q, want %q", again.ID, firstID)
	}

	n, err := svc.Count(ctx)
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if n != 1 {
		t.Errorf("Count = %d, want 1", n)
	}
	got, _ := svc.GetByID(ctx, firstID)
	if got.Title != "Sexy Boy (Remastered)" {
		t.Errorf("Title = %q, want updated title", got.Title)
	}
}

func TestSnapshot_InsertionOrder(t *testing.T) {
	db := setupTestDB(t)
	svc := NewService(db)
	ctx := context.Background()

	paths := []string{"/m/z.flac", "/m/a.flac", "/m/m.flac"}
	var ids []string
	for _, p := range paths {
		r := testRecord("Artist", p, p)
		if err := svc.Create(ctx, r); err != nil {
			t.Fatalf("Create: %v", err)
		}
		ids = append(ids, r.ID)
	}

	snap, err := svc.Snapshot(ctx)
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if len(snap) != 3 {
		t.Fatalf("len = %d, want 3", len(snap))
	}
	for i := range ids {
		if snap[i].ID != ids[i] {
			t.Errorf("snap[%d] = %q, want %q", i, snap[i].ID, ids[i])
		}
	}
}

func TestList(t *testing.T) {
	db := setupTestDB(t)
	svc := NewService(db)
	ctx := context.Background()

	for _, a := range []string{"Cocteau Twins", "Air", "Björk"} {
		if err := svc.Create(ctx, testRecord(a, "Song", "/m/"+a)); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}

	page, err := svc.List(ctx, 2, 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(page) != 2 || page[0].Artist != "Air" {
		t.Errorf("List page = %+v", page)
	}
}

func TestDelete(t *testing.T) {
	db := setupTestDB(t)
	svc := NewService(db)
	ctx := context.Background()

	r := testRecord("A", "B", "/m/a.flac")
	if err := svc.Create(ctx, r); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := svc.Delete(ctx, r.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := svc.Delete(ctx, r.ID); err == nil {
		t.Error("expected error deleting missing track")
	}
}

func TestDeleteMissing(t *testing.T) {
	db := setupTestDB(t)
	svc := NewService(db)
	ctx := context.Background()

	for _, p := range []string{"/music/keep.flac", "/music/gone.flac", "/other/untouched.flac"} {
		if err := svc.Create(ctx, testRecord("A", p, p)); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}

	removed, err := svc.DeleteMissing(ctx, "/music", map[string]bool{"/music/keep.flac": true})
	if err != nil {
		t.Fatalf("DeleteMissing: %v", err)
	}
	if removed != 1 {
		t.Errorf("removed = %d, want 1", removed)
	}
	n, _ := svc.Count(ctx)
	if n != 2 {
		t.Errorf("Count = %d, want 2", n)
	}
}

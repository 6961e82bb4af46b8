package scanner

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/bogem/id3v2"

	"github.com/sydlexius/trackmend/internal/database"
	"github.com/sydlexius/trackmend/internal/track"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

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

func writeFile(t *testing.T, path string, data []byte) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
}

// writeTaggedMP3 writes an ID3v2 tag followed by filler bytes.
func writeTaggedMP3(t *testing.T, path, artist, title, album, isrc string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	tag := id3v2.NewEmptyTag()
	tag.SetDefaultEncoding(id3v2.EncodingUTF8)
	tag.SetArtist(artist)
	tag.SetTitle(title)
	tag.SetAlbum(album)
	if isrc != "" {
		tag.AddTextFrame("TSRC", id3v2.EncodingUTF8, isrc)
	}
	if _, err := tag.WriteTo(f); err != nil {
		t.Fatalf("writing id3 tag: %v", err)
	}
	if _, err := f.Write(make([]byte, 1024)); err != nil {
		t.Fatal(err)
	}
}

func TestFromPath(t *testing.T) {
	root := filepath.FromSlash("/music")
	tests := []struct {
		path string
		want PathInfo
	}{
		{"/music/Radiohead/OK Computer/01 Airbag.flac", PathInfo{"Radiohead", "OK Computer", "Airbag"}},
		{"/music/Radiohead/OK Computer/02 - Paranoid Android.mp3", PathInfo{"Radiohead", "OK Computer", "Paranoid Android"}},
		{"/music/Radiohead/OK Computer/1-03 Subterranean Homesick Alien.mp3", PathInfo{"Radiohead", "OK Computer", "Subterranean Homesick Alien"}},
		{"/music/Smashing Pumpkins/Mellon Collie/1979.mp3", PathInfo{"Smashing Pumpkins", "Mellon Collie", "1979"}},
		{"/music/Daft Punk/One More Time.mp3", PathInfo{"Daft Punk", "", "One More Time"}},
		{"/music/Daft Punk - Aerodynamic.mp3", PathInfo{"Daft Punk", "", "Aerodynamic"}},
		{"/music/Loose.mp3", PathInfo{"", "", "Loose"}},
	}
	for _, tt := range tests {
		got := FromPath(root, filepath.FromSlash(tt.path))
		if got != tt.want {
			t.Errorf("FromPath(%q) = %+v, want %+v", tt.path, got, tt.want)
		}
	}
}

func TestReadRecord_ID3Tags(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "Misc", "Unknown", "track.mp3")
	writeTaggedMP3(t, path, "Beyoncé", "Halo", "I Am... Sasha Fierce", "USUM70901234")

	rec, fallback, err := ReadRecord(root, path)
	if err != nil {
		t.Fatalf("ReadRecord: %v", err)
	}
	if fallback {
		t.Error("expected tags to be used, not the path fallback")
	}
	if rec.Artist != "Beyoncé" || rec.Title != "Halo" || rec.Album != "I Am... Sasha Fierce" {
		t.Errorf("record = %+v", rec)
	}
	if rec.ISRC != "USUM70901234" {
		t.Errorf("ISRC = %q, want USUM70901234", rec.ISRC)
	}
	if rec.Format != "mp3" {
		t.Errorf("Format = %q, want mp3", rec.Format)
	}
	if rec.FileSize == 0 {
		t.Error("expected FileSize to be set")
	}
}

func TestReadRecord_UntaggedFallsBackToPath(t *testing.T) {
	root := t.TempDir()
	mp3 := filepath.Join(root, "Radiohead", "OK Computer", "01 Airbag.mp3")
	writeFile(t, mp3, make([]byte, 512))
	flac := filepath.Join(root, "Radiohead", "OK Computer", "01 Airbag.flac")
	writeFile(t, flac, []byte("not really flac"))
	m4a := filepath.Join(root, "Radiohead", "OK Computer", "01 Airbag.m4a")
	writeFile(t, m4a, make([]byte, 64))

	for _, path := range []string{mp3, flac, m4a} {
		rec, fallback, err := ReadRecord(root, path)
		if err != nil {
			t.Fatalf("ReadRecord(%s): %v", path, err)
		}
		if !fallback {
			t.Errorf("%s: expected path fallback", path)
		}
		if rec.Artist != "Radiohead" || rec.Album != "OK Computer" || rec.Title != "Airbag" {
			t.Errorf("%s: record = %+v", path, rec)
		}
	}
}

func TestReadRecord_Missing(t *testing.T) {
	if _, _, err := ReadRecord(t.TempDir(), "/definitely/not/here.mp3"); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestRun_SyncsLibrary(t *testing.T) {
	root := t.TempDir()
	svc := track.NewService(setupTestDB(t))
	ctx := context.Background()

	writeTaggedMP3(t, filepath.Join(root, "Beyonce", "Sasha Fierce", "01 Halo.mp3"), "Beyoncé", "Halo", "I Am... Sasha Fierce", "")
	writeFile(t, filepath.Join(root, "Radiohead", "OK Computer", "01 Airbag.flac"), []byte("x"))
	writeFile(t, filepath.Join(root, "Radiohead", "OK Computer", "cover.jpg"), []byte("x"))
	writeFile(t, filepath.Join(root, ".quarantine", "Radiohead", "OK Computer", "01 Airbag.mp3"), []byte("x"))

	scanner := NewService(svc, testLogger(), Options{LibraryPath: root, Workers: 2})
	result, err := scanner.Run(ctx)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Files != 2 || result.Added != 2 || result.Failed != 0 {
		t.Errorf("first scan = %+v", result)
	}

	second, err := scanner.Run(ctx)
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if second.Added != 0 || second.Updated != 2 {
		t.Errorf("second scan = %+v", second)
	}

	if err := os.Remove(filepath.Join(root, "Radiohead", "OK Computer", "01 Airbag.flac")); err != nil {
		t.Fatal(err)
	}
	third, err := scanner.Run(ctx)
	if err != nil {
		t.Fatalf("third Run: %v", err)
	}
	if third.Removed != 1 || third.Files != 1 {
		t.Errorf("third scan = %+v", third)
	}

	n, _ := svc.Count(ctx)
	if n != 1 {
		t.Errorf("Count = %d, want 1", n)
	}
}

func TestRun_PartialWalkKeepsRecords(t *testing.T) {
	root := t.TempDir()
	svc := track.NewService(setupTestDB(t))
	ctx := context.Background()

	writeFile(t, filepath.Join(root, "Beyonce", "Sasha Fierce", "01 Halo.mp3"), []byte("x"))
	writeFile(t, filepath.Join(root, "Radiohead", "OK Computer", "01 Airbag.flac"), []byte("x"))

	scanner := NewService(svc, testLogger(), Options{LibraryPath: root})
	if _, err := scanner.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}

	// Radiohead becomes unreadable.
	scanner.walkDir = func(dir string, fn fs.WalkDirFunc) error {
		return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
			if err == nil && d.IsDir() && d.Name() == "Radiohead" {
				if cbErr := fn(path, d, fs.ErrPermission); cbErr != nil {
					return cbErr
				}
				return filepath.SkipDir
			}
			return fn(path, d, err)
		})
	}
	result, err := scanner.Run(ctx)
	if err != nil {
		t.Fatalf("partial Run: %v", err)
	}
	if !result.Partial || result.Files != 1 || result.Removed != 0 {
		t.Errorf("partial scan = %+v, want partial with 1 file and nothing removed", result)
	}
	n, _ := svc.Count(ctx)
	if n != 2 {
		t.Errorf("Count = %d, want 2", n)
	}

	scanner.walkDir = filepath.WalkDir
	full, err := scanner.Run(ctx)
	if err != nil {
		t.Fatalf("full Run: %v", err)
	}
	if full.Partial || full.Removed != 0 || full.Files != 2 {
		t.Errorf("full scan = %+v", full)
	}
}

func TestRun_Canceled(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "A", "B", "01 C.mp3"), []byte("x"))
	scanner := NewService(track.NewService(setupTestDB(t)), testLogger(), Options{LibraryPath: root})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := scanner.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Run = %v, want context.Canceled", err)
	}
}

func TestRun_MissingRoot(t *testing.T) {
	scanner := NewService(track.NewService(setupTestDB(t)), testLogger(), Options{LibraryPath: "/does/not/exist"})
	result, err := scanner.Run(context.Background())
	if err == nil {
		t.Error("expected error for missing library root")
	}
	if result != nil {
		t.Errorf("result = %+v, want nil", result)
	}
}

func TestAccepts(t *testing.T) {
	s := NewService(nil, testLogger(), Options{LibraryPath: "/music", Extensions: []string{"flac", ".MP3"}})
	for path, want := range map[string]bool{
		"/music/a.flac": true,
		"/music/a.MP3":  true,
		"/music/a.ogg":  false,
		"/music/a":      false,
	} {
		if got := s.Accepts(path); got != want {
			t.Errorf("Accepts(%q) = %v, want %v", path, got, want)
		}
	}
}

package cache

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"lyrics-translator-go/models"
	"lyrics-translator-go/utils"

	bolt "go.etcd.io/bbolt"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

// setupTestStore creates a temporary store driven by a fake clock
func setupTestStore(t *testing.T, compression bool) (*Store, *fakeClock) {
	t.Helper()

	tmpDir := t.TempDir()
	clock := &fakeClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}

	store, err := Open(Options{
		DBPath:      filepath.Join(tmpDir, "test_cache.db"),
		BackupPath:  filepath.Join(tmpDir, "backups"),
		Compression: compression,
		Clock:       clock.Now,
	})
	if err != nil {
		t.Fatalf("Failed to open test store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	return store, clock
}

func rawValue(t *testing.T, s *Store, category Category, parts ...any) []byte {
	t.Helper()
	var out []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		if v := tx.Bucket(category.bucket()).Get([]byte(Fingerprint(parts...))); v != nil {
			out = append([]byte(nil), v...)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Failed to read raw value: %v", err)
	}
	return out
}

func writeRaw(t *testing.T, s *Store, category Category, data []byte, parts ...any) {
	t.Helper()
	err := s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(category.bucket()).Put([]byte(Fingerprint(parts...)), data)
	})
	if err != nil {
		t.Fatalf("Failed to write raw value: %v", err)
	}
}

func TestOpen(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "nested", "cache.db")
	backupPath := filepath.Join(tmpDir, "backups")

	store, err := Open(Options{DBPath: dbPath, BackupPath: backupPath, Compression: true})
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}
	defer store.Close()

	if store.dbPath != dbPath {
		t.Errorf("Expected dbPath %q, got %q", dbPath, store.dbPath)
	}
	if !store.compressionEnabled {
		t.Error("Expected compression to be enabled")
	}
	if _, err := os.Stat(backupPath); os.IsNotExist(err) {
		t.Error("Expected backup directory to be created")
	}
	for _, c := range Categories() {
		if got := store.TTL(c); got != DefaultTTLs()[c] {
			t.Errorf("Expected default TTL %v for %s, got %v", DefaultTTLs()[c], c, got)
		}
	}
}

func TestOpenRequiresPath(t *testing.T) {
	if _, err := Open(Options{}); err == nil {
		t.Error("Expected error for empty database path")
	}
}

func TestOpenTTLOverrides(t *testing.T) {
	store, err := Open(Options{
		DBPath: filepath.Join(t.TempDir(), "cache.db"),
		TTLs:   map[Category]time.Duration{CategoryWord: time.Hour, CategoryLyrics: 0},
	})
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}
	defer store.Close()

	if store.TTL(CategoryWord) != time.Hour {
		t.Errorf("Expected word TTL 1h, got %v", store.TTL(CategoryWord))
	}
	if store.TTL(CategoryLyrics) != DefaultLyricsTTL {
		t.Errorf("Expected zero override to be ignored, got %v", store.TTL(CategoryLyrics))
	}
}

func TestPutAndGet(t *testing.T) {
	store, _ := setupTestStore(t, false)

	want := Lyrics{Title: "Song", Artist: "Band", Lyrics: "la la la"}
	if err := store.Put(CategoryLyrics, want, "123"); err != nil {
		t.Fatalf("Failed to put value: %v", err)
	}

	got, found := store.Get(CategoryLyrics, time.Hour, "123")
	if !found {
		t.Fatal("Expected to find the entry")
	}
	if got != want {
		t.Errorf("Expected %+v, got %+v", want, got)
	}

	// integer and string parts render the same way
	if _, found := store.Get(CategoryLyrics, time.Hour, 123); !found {
		t.Error("Expected integer key part to match string key part")
	}
}

func TestNonASCIIRoundTrip(t *testing.T) {
	for _, compression := range []bool{false, true} {
		t.Run(fmt.Sprintf("compression=%v", compression), func(t *testing.T) {
			store, _ := setupTestStore(t, compression)

			lyrics := Lyrics{Title: "夜に駆ける", Artist: "YOASOBI", Lyrics: "沈むように溶けてゆくように\nSí, mirándote 🎶"}
			store.Set(CategoryLyrics, lyrics, "夜に駆ける", "YOASOBI")
			got, found := store.Get(CategoryLyrics, time.Hour, "夜に駆ける", "YOASOBI")
			if !found || got != lyrics {
				t.Errorf("Expected %+v, got %+v (found=%v)", lyrics, got, found)
			}

			gloss := WordGloss{Word: "mirándote", Translation: "looking at you", Context: "Sí, mirándote"}
			store.Set(CategoryWord, gloss, "mirándote", "Sí, mirándote", "English")
			g, found := Lookup[WordGloss](store, "mirándote", "Sí, mirándote", "English")
			if !found || g != gloss {
				t.Errorf("Expected %+v, got %+v (found=%v)", gloss, g, found)
			}
		})
	}
}

func TestLookupTyped(t *testing.T) {
	store, _ := setupTestStore(t, false)

	store.Set(CategoryTranslation, Translation{Translated: "hello", SourceLanguage: "es"}, "hola", "Artist", "en")

	got, found := Lookup[Translation](store, "hola", "Artist", "en")
	if !found {
		t.Fatal("Expected typed lookup to hit")
	}
	if got.Translated != "hello" || got.SourceLanguage != "es" {
		t.Errorf("Unexpected translation: %+v", got)
	}

	if _, found := Lookup[WordGloss](store, "hola", "Artist", "en"); found {
		t.Error("Expected lookup in another category to miss")
	}
}

func TestGetNonExistentKey(t *testing.T) {
	store, _ := setupTestStore(t, false)

	if _, found := store.Get(CategoryLyrics, time.Hour, "missing"); found {
		t.Error("Expected not to find non-existent key")
	}
	if _, found := store.Get(Category("bogus"), time.Hour, "missing"); found {
		t.Error("Expected unknown category to miss")
	}
}

func TestTTLBoundary(t *testing.T) {
	store, clock := setupTestStore(t, false)
	ttl := 2 * time.Hour

	store.Set(CategoryWord, WordGloss{Word: "casa", Translation: "house"}, "casa", "", "en")

	clock.Advance(ttl)
	if _, found := store.Get(CategoryWord, ttl, "casa", "", "en"); !found {
		t.Fatal("Expected entry aged exactly ttl to be fresh")
	}

	clock.Advance(time.Nanosecond)
	if _, found := store.Get(CategoryWord, ttl, "casa", "", "en"); found {
		t.Fatal("Expected entry older than ttl to be expired")
	}

	if raw := rawValue(t, store, CategoryWord, "casa", "", "en"); raw != nil {
		t.Error("Expected expired entry to be deleted")
	}
}

func TestZeroTTLDisablesExpiry(t *testing.T) {
	store, clock := setupTestStore(t, false)

	store.Set(CategoryWord, WordGloss{Word: "casa", Translation: "house"}, "casa")
	clock.Advance(10 * 365 * 24 * time.Hour)

	if _, found := store.Get(CategoryWord, 0, "casa"); !found {
		t.Error("Expected zero ttl to skip the age check")
	}
}

func TestOverwriteRefreshesTimestamp(t *testing.T) {
	store, clock := setupTestStore(t, false)
	ttl := time.Hour

	store.Set(CategoryLyrics, Lyrics{Title: "A", Lyrics: "first"}, "k")
	clock.Advance(50 * time.Minute)
	store.Set(CategoryLyrics, Lyrics{Title: "A", Lyrics: "second"}, "k")
	clock.Advance(50 * time.Minute)

	got, found := store.Get(CategoryLyrics, ttl, "k")
	if !found {
		t.Fatal("Expected overwritten entry to still be fresh")
	}
	if got.(Lyrics).Lyrics != "second" {
		t.Errorf("Expected latest value, got %q", got.(Lyrics).Lyrics)
	}
}

func TestCorruptEntrySelfHeals(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"garbage", []byte("not json at all")},
		{"truncated zstd frame", []byte{0x28, 0xb5, 0x2f, 0xfd, 0x00}},
		{"missing payload", []byte(`{"created_at":"2024-03-01T12:00:00Z"}`)},
		{"missing timestamp", []byte(`{"payload":{"title":"A","artist":"","lyrics":"x"}}`)},
		{"unknown field", []byte(`{"created_at":"2024-03-01T12:00:00Z","payload":{"title":"A","artist":"","lyrics":"x","extra":1}}`)},
		{"invalid payload", []byte(`{"created_at":"2024-03-01T12:00:00Z","payload":{"title":"","artist":"","lyrics":""}}`)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, _ := setupTestStore(t, false)
			writeRaw(t, store, CategoryLyrics, tt.data, "bad")

			if _, found := store.Get(CategoryLyrics, time.Hour, "bad"); found {
				t.Fatal("Expected corrupt entry to be a miss")
			}
			if raw := rawValue(t, store, CategoryLyrics, "bad"); raw != nil {
				t.Error("Expected corrupt entry to be deleted")
			}

			// the key is usable again
			store.Set(CategoryLyrics, Lyrics{Title: "A", Lyrics: "x"}, "bad")
			if _, found := store.Get(CategoryLyrics, time.Hour, "bad"); !found {
				t.Error("Expected fresh write after corruption to be readable")
			}
		})
	}
}

func TestCategoryIsolation(t *testing.T) {
	store, _ := setupTestStore(t, false)

	store.Set(CategoryLyrics, Lyrics{Title: "A", Lyrics: "original"}, "same", "key")
	store.Set(CategoryTranslation, Translation{Translated: "translated"}, "same", "key")

	lyrics, found := store.Get(CategoryLyrics, time.Hour, "same", "key")
	if !found || lyrics.(Lyrics).Lyrics != "original" {
		t.Errorf("Expected lyrics entry to be untouched, got %+v", lyrics)
	}
	tr, found := store.Get(CategoryTranslation, time.Hour, "same", "key")
	if !found || tr.(Translation).Translated != "translated" {
		t.Errorf("Expected translation entry, got %+v", tr)
	}
}

func TestPutRejectsInvalidPayloads(t *testing.T) {
	store, _ := setupTestStore(t, false)

	if err := store.Put(CategoryLyrics, Translation{Translated: "x"}, "k"); err == nil {
		t.Error("Expected error for payload of the wrong category")
	}
	if err := store.Put(CategoryLyrics, Lyrics{}, "k"); err == nil {
		t.Error("Expected error for payload that fails validation")
	}
	if err := store.Put(CategoryLyrics, nil, "k"); err == nil {
		t.Error("Expected error for nil payload")
	}
	if err := store.Put(Category("bogus"), Lyrics{Title: "A", Lyrics: "x"}, "k"); err == nil {
		t.Error("Expected error for unknown category")
	}

	// Set swallows the error and leaves nothing behind
	store.Set(CategoryLyrics, Lyrics{}, "k")
	if raw := rawValue(t, store, CategoryLyrics, "k"); raw != nil {
		t.Error("Expected rejected payload not to be stored")
	}
}

func TestCatalogRoundTrip(t *testing.T) {
	store, _ := setupTestStore(t, true)

	songs := Catalog{Kind: CatalogSongs, Songs: []models.ReconciledSong{
		{ID: 10, Title: "One", Artist: "X", TrackNumber: models.IntPtr(1)},
		{ID: 11, Title: "Two", Artist: "X"},
	}}
	store.Set(CategoryCatalog, songs, "songs", "artist-1", "Album")

	got, found := Lookup[Catalog](store, "songs", "artist-1", "Album")
	if !found {
		t.Fatal("Expected catalog hit")
	}
	if len(got.Songs) != 2 || got.Songs[0].TrackNumber == nil || *got.Songs[0].TrackNumber != 1 || got.Songs[1].TrackNumber != nil {
		t.Errorf("Unexpected songs after round trip: %+v", got.Songs)
	}
}

func TestDelete(t *testing.T) {
	store, _ := setupTestStore(t, false)

	store.Set(CategoryWord, WordGloss{Word: "a", Translation: "b"}, "a")
	if err := store.Delete(CategoryWord, "a"); err != nil {
		t.Fatalf("Failed to delete: %v", err)
	}
	if _, found := store.Get(CategoryWord, time.Hour, "a"); found {
		t.Error("Expected deleted entry to be gone")
	}
}

func TestClear(t *testing.T) {
	store, _ := setupTestStore(t, false)

	store.Set(CategoryLyrics, Lyrics{Title: "A", Lyrics: "x"}, "1")
	store.Set(CategoryTranslation, Translation{Translated: "y"}, "1")
	store.Set(CategoryCatalog, Catalog{Kind: CatalogAlbums}, "albums", "1", "A")

	if err := store.Clear(CategoryCatalog); err != nil {
		t.Fatalf("Failed to clear catalog: %v", err)
	}
	stats, err := store.Stats()
	if err != nil {
		t.Fatalf("Failed to read stats: %v", err)
	}
	if stats[CategoryCatalog].Count != 0 {
		t.Errorf("Expected catalog to be empty, got %d", stats[CategoryCatalog].Count)
	}
	if stats[CategoryLyrics].Count != 1 || stats[CategoryTranslation].Count != 1 {
		t.Errorf("Expected other categories untouched, got %+v", stats)
	}

	// clearing an already empty category is fine
	if err := store.Clear(CategoryCatalog); err != nil {
		t.Errorf("Expected clearing empty category to succeed: %v", err)
	}

	if err := store.Clear(); err != nil {
		t.Fatalf("Failed to clear all: %v", err)
	}
	stats, _ = store.Stats()
	for c, cs := range stats {
		if cs.Count != 0 {
			t.Errorf("Expected %s to be empty after full clear, got %d", c, cs.Count)
		}
	}

	if err := store.Clear(Category("bogus")); err == nil {
		t.Error("Expected error when clearing unknown category")
	}
}

func TestStats(t *testing.T) {
	store, _ := setupTestStore(t, false)

	stats, err := store.Stats()
	if err != nil {
		t.Fatalf("Failed to read stats: %v", err)
	}
	if len(stats) != len(Categories()) {
		t.Errorf("Expected stats for %d categories, got %d", len(Categories()), len(stats))
	}

	for i := 0; i < 3; i++ {
		store.Set(CategoryWord, WordGloss{Word: "w", Translation: "t"}, i)
	}
	stats, _ = store.Stats()
	if stats[CategoryWord].Count != 3 {
		t.Errorf("Expected 3 word entries, got %d", stats[CategoryWord].Count)
	}
	if stats[CategoryWord].SizeBytes <= 0 {
		t.Error("Expected word entries to occupy space")
	}
}

func TestCompression(t *testing.T) {
	store, _ := setupTestStore(t, true)

	text := strings.Repeat("never gonna give you up\n", 200)
	store.Set(CategoryLyrics, Lyrics{Title: "Song", Lyrics: text}, "big")

	raw := rawValue(t, store, CategoryLyrics, "big")
	if !utils.IsCompressed(raw) {
		t.Fatal("Expected stored record to be zstd compressed")
	}
	if len(raw) >= len(text) {
		t.Errorf("Expected compressed record (%d bytes) to be smaller than text (%d bytes)", len(raw), len(text))
	}

	got, found := store.Get(CategoryLyrics, time.Hour, "big")
	if !found || got.(Lyrics).Lyrics != text {
		t.Error("Expected compressed entry to round trip")
	}

	// uncompressed records stay readable after enabling compression
	writeRaw(t, store, CategoryLyrics, []byte(`{"created_at":"2024-03-01T12:00:00Z","payload":{"title":"Old","artist":"","lyrics":"plain"}}`), "old")
	got, found = store.Get(CategoryLyrics, time.Hour, "old")
	if !found || got.(Lyrics).Lyrics != "plain" {
		t.Errorf("Expected plain record to be readable, got %+v", got)
	}
}

func TestObserver(t *testing.T) {
	var results []string
	clock := &fakeClock{now: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)}
	store, err := Open(Options{
		DBPath: filepath.Join(t.TempDir(), "cache.db"),
		Clock:  clock.Now,
		Observer: func(_ Category, result string) {
			results = append(results, result)
		},
	})
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}
	defer store.Close()

	store.Get(CategoryWord, time.Hour, "x")
	store.Set(CategoryWord, WordGloss{Word: "x", Translation: "y"}, "x")
	store.Get(CategoryWord, time.Hour, "x")
	clock.Advance(2 * time.Hour)
	store.Get(CategoryWord, time.Hour, "x")

	want := []string{resultMiss, resultHit, resultExpired}
	if strings.Join(results, ",") != strings.Join(want, ",") {
		t.Errorf("Expected results %v, got %v", want, results)
	}
}

func TestBackup(t *testing.T) {
	store, clock := setupTestStore(t, false)

	store.Set(CategoryLyrics, Lyrics{Title: "A", Lyrics: "x"}, "1")

	path, err := store.Backup()
	if err != nil {
		t.Fatalf("Failed to create backup: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("Expected backup file to exist: %v", err)
	}

	// the snapshot is a usable database
	backup, err := Open(Options{DBPath: path})
	if err != nil {
		t.Fatalf("Failed to open backup: %v", err)
	}
	if _, found := backup.Get(CategoryLyrics, 0, "1"); !found {
		t.Error("Expected backup to contain the entry")
	}
	backup.Close()

	clock.Advance(time.Second)
	if _, err := store.BackupAndClear(); err != nil {
		t.Fatalf("Failed to backup and clear: %v", err)
	}
	stats, _ := store.Stats()
	if stats[CategoryLyrics].Count != 0 {
		t.Error("Expected cache to be cleared after BackupAndClear")
	}

	backups, err := store.ListBackups()
	if err != nil {
		t.Fatalf("Failed to list backups: %v", err)
	}
	if len(backups) != 2 {
		t.Fatalf("Expected 2 backups, got %d", len(backups))
	}
	if backups[0].FileName <= backups[1].FileName {
		t.Errorf("Expected newest backup first, got %s then %s", backups[0].FileName, backups[1].FileName)
	}
	if backups[0].Size <= 0 || backups[0].SizeHuman == "" {
		t.Errorf("Expected backup size to be reported, got %d %q", backups[0].Size, backups[0].SizeHuman)
	}

	if err := store.DeleteBackup(backups[1].FileName); err != nil {
		t.Fatalf("Failed to delete backup: %v", err)
	}
	backups, _ = store.ListBackups()
	if len(backups) != 1 {
		t.Errorf("Expected 1 backup after delete, got %d", len(backups))
	}
}

func TestBackupSameInstant(t *testing.T) {
	store, _ := setupTestStore(t, false)

	first, err := store.Backup()
	if err != nil {
		t.Fatalf("Failed to create backup: %v", err)
	}
	second, err := store.Backup()
	if err != nil {
		t.Fatalf("Failed to create second backup: %v", err)
	}
	if first == second {
		t.Fatalf("Expected distinct backup files, got %s twice", first)
	}
	backups, _ := store.ListBackups()
	if len(backups) != 2 {
		t.Errorf("Expected 2 backups, got %d", len(backups))
	}
}

func TestDeleteBackupValidation(t *testing.T) {
	store, _ := setupTestStore(t, false)

	for _, name := range []string{"", "../cache.db", "notes.txt", "missing.db"} {
		if err := store.DeleteBackup(name); err == nil {
			t.Errorf("Expected error deleting %q", name)
		}
	}
}

func TestBackupWithoutDirectory(t *testing.T) {
	store, err := Open(Options{DBPath: filepath.Join(t.TempDir(), "cache.db")})
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}
	defer store.Close()

	if _, err := store.Backup(); err == nil {
		t.Error("Expected error when no backup directory is configured")
	}
	backups, err := store.ListBackups()
	if err != nil || len(backups) != 0 {
		t.Errorf("Expected empty backup list, got %v, %v", backups, err)
	}
}

func TestEndToEndTranslationCaching(t *testing.T) {
	store, clock := setupTestStore(t, false)

	lyricsKey := []any{"123", "Artist"}
	store.Set(CategoryLyrics, Lyrics{Title: "Song", Artist: "Artist", Lyrics: "Hola mundo"}, lyricsKey...)
	store.Set(CategoryTranslation, Translation{Translated: "Hello world", SourceLanguage: "es"}, "123", "Artist", "en")

	clock.Advance(24 * time.Hour)

	if _, found := Lookup[Lyrics](store, lyricsKey...); !found {
		t.Error("Expected lyrics within default TTL")
	}
	if _, found := Lookup[Translation](store, "123", "Artist", "en"); !found {
		t.Error("Expected translation within default TTL")
	}
	if _, found := Lookup[Translation](store, "123", "Artist", "fr"); found {
		t.Error("Expected a different target language to miss")
	}

	clock.Advance(DefaultTranslationTTL)
	if _, found := Lookup[Translation](store, "123", "Artist", "en"); found {
		t.Error("Expected translation past its TTL to miss")
	}
}

func TestSetGetClearScenario(t *testing.T) {
	store, _ := setupTestStore(t, false)

	store.Set(CategoryLyrics, Lyrics{Title: "X"}, "123", "ArtistY")

	got, found := store.Get(CategoryLyrics, 720*time.Hour, "123", "ArtistY")
	if !found {
		t.Fatal("Expected entry right after set")
	}
	if got.(Lyrics).Title != "X" {
		t.Errorf("Expected title X, got %q", got.(Lyrics).Title)
	}

	if err := store.Clear(CategoryLyrics); err != nil {
		t.Fatalf("Failed to clear: %v", err)
	}
	if _, found := store.Get(CategoryLyrics, 720*time.Hour, "123", "ArtistY"); found {
		t.Error("Expected entry to be gone after clear")
	}
}

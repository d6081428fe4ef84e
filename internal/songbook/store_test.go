package songbook

import (
	stderrors "errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/openchord/capo/core/errors"
)

const sampleSong = "{title: Amazing Grace}\n" +
	"{artist: Traditional}\n" +
	"{key: G}\n" +
	"\n" +
	"{start_of_verse}\n" +
	"[G]Amazing grace, how [C]sweet the sound\n" +
	"{end_of_verse}\n"

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestAddAndGet(t *testing.T) {
	store := openTestStore(t)

	added, err := store.Add(sampleSong)
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if added.ID == "" {
		t.Error("song has no ID")
	}
	if added.Title != "Amazing Grace" {
		t.Errorf("title = %q", added.Title)
	}
	if added.Artist != "Traditional" {
		t.Errorf("artist = %q", added.Artist)
	}
	if added.Key != "G" {
		t.Errorf("key = %q", added.Key)
	}
	if added.FirstLine != "Amazing grace, how sweet the sound" {
		t.Errorf("first line = %q", added.FirstLine)
	}
	if added.ContentHash == "" {
		t.Error("content hash empty")
	}

	got, err := store.Get(added.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Content != sampleSong {
		t.Error("content did not round-trip through storage")
	}
	if got.ContentHash != added.ContentHash {
		t.Error("hash changed between Add and Get")
	}
}

func TestAddUntitled(t *testing.T) {
	store := openTestStore(t)
	sng, err := store.Add("[C]no title here\n")
	if err != nil {
		t.Fatal(err)
	}
	if sng.Title != "Untitled" {
		t.Errorf("title = %q", sng.Title)
	}
}

func TestAddDuplicate(t *testing.T) {
	store := openTestStore(t)
	if _, err := store.Add(sampleSong); err != nil {
		t.Fatal(err)
	}
	_, err := store.Add(sampleSong)
	if !stderrors.Is(err, errors.ErrAlreadyExists) {
		t.Errorf("duplicate Add err = %v, want ErrAlreadyExists", err)
	}
}

func TestAddMalformed(t *testing.T) {
	store := openTestStore(t)
	_, err := store.Add("{title: broken\n")
	if !stderrors.Is(err, errors.ErrMalformedInput) {
		t.Errorf("err = %v, want malformed input", err)
	}
	if n, _ := store.Count(); n != 0 {
		t.Errorf("count = %d after failed add", n)
	}
}

func TestGetNotFound(t *testing.T) {
	store := openTestStore(t)
	_, err := store.Get("missing")
	if !stderrors.Is(err, errors.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestList(t *testing.T) {
	store := openTestStore(t)
	for _, title := range []string{"Charlie", "Alpha", "Bravo"} {
		if _, err := store.Add("{title: " + title + "}\nline\n"); err != nil {
			t.Fatal(err)
		}
	}

	songs, err := store.List()
	if err != nil {
		t.Fatal(err)
	}
	if len(songs) != 3 {
		t.Fatalf("got %d songs", len(songs))
	}
	// Ordered by title, content stripped.
	want := []string{"Alpha", "Bravo", "Charlie"}
	for i, sng := range songs {
		if sng.Title != want[i] {
			t.Errorf("song[%d] title = %q, want %q", i, sng.Title, want[i])
		}
		if sng.Content != "" {
			t.Errorf("song[%d] listing carries content", i)
		}
	}
}

func TestSearch(t *testing.T) {
	store := openTestStore(t)
	if _, err := store.Add("{title: Amazing Grace}\nAmazing grace how sweet\n"); err != nil {
		t.Fatal(err)
	}
	if _, err := store.Add("{title: Other Song}\nunrelated words entirely\n"); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		query string
		want  int
	}{
		{"amazing", 1}, // case-insensitive title match
		{"GRACE", 1},
		{"sweet", 1}, // first-line match
		{"song", 1},
		{"nothing matches this", 0},
		{"", 2},
	}

	for _, tt := range tests {
		songs, err := store.Search(tt.query)
		if err != nil {
			t.Fatal(err)
		}
		if len(songs) != tt.want {
			t.Errorf("Search(%q) returned %d songs, want %d", tt.query, len(songs), tt.want)
		}
	}
}

func TestUpdate(t *testing.T) {
	store := openTestStore(t)
	sng, err := store.Add(sampleSong)
	if err != nil {
		t.Fatal(err)
	}

	updated, err := store.Update(sng.ID, "{title: New Title}\n{key: D}\nnew line\n")
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if updated.Title != "New Title" || updated.Key != "D" {
		t.Errorf("updated = %+v", updated)
	}
	if updated.ContentHash == sng.ContentHash {
		t.Error("hash unchanged after content update")
	}

	if _, err := store.Update("missing", "x\n"); !stderrors.Is(err, errors.ErrNotFound) {
		t.Errorf("Update(missing) err = %v", err)
	}
}

func TestRemove(t *testing.T) {
	store := openTestStore(t)
	sng, err := store.Add(sampleSong)
	if err != nil {
		t.Fatal(err)
	}

	if err := store.Remove(sng.ID); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if _, err := store.Get(sng.ID); !stderrors.Is(err, errors.ErrNotFound) {
		t.Errorf("Get after Remove err = %v", err)
	}
	if err := store.Remove(sng.ID); !stderrors.Is(err, errors.ErrNotFound) {
		t.Errorf("second Remove err = %v", err)
	}
}

func TestStoreTranspose(t *testing.T) {
	store := openTestStore(t)
	sng, err := store.Add(sampleSong)
	if err != nil {
		t.Fatal(err)
	}

	updated, summary, err := store.Transpose(sng.ID, 2)
	if err != nil {
		t.Fatalf("Transpose failed: %v", err)
	}
	if updated.Key != "A" {
		t.Errorf("key = %q, want A", updated.Key)
	}
	if summary.Chords != 2 {
		t.Errorf("summary = %+v", summary)
	}
	if !strings.Contains(updated.Content, "[A]Amazing") {
		t.Errorf("content not transposed:\n%s", updated.Content)
	}

	// Transposing back returns to the original key.
	back, _, err := store.Transpose(sng.ID, -2)
	if err != nil {
		t.Fatal(err)
	}
	if back.Key != "G" {
		t.Errorf("key after round trip = %q", back.Key)
	}
}

func TestPlaylists(t *testing.T) {
	store := openTestStore(t)
	s1, err := store.Add("{title: One}\na\n")
	if err != nil {
		t.Fatal(err)
	}
	s2, err := store.Add("{title: Two}\nb\n")
	if err != nil {
		t.Fatal(err)
	}

	pl, err := store.CreatePlaylist("Sunday Set")
	if err != nil {
		t.Fatalf("CreatePlaylist failed: %v", err)
	}
	if err := store.AddToPlaylist(pl.ID, s2.ID); err != nil {
		t.Fatal(err)
	}
	if err := store.AddToPlaylist(pl.ID, s1.ID); err != nil {
		t.Fatal(err)
	}

	got, err := store.GetPlaylist(pl.ID)
	if err != nil {
		t.Fatalf("GetPlaylist failed: %v", err)
	}
	if got.Name != "Sunday Set" {
		t.Errorf("name = %q", got.Name)
	}
	// Insertion order preserved.
	if len(got.SongIDs) != 2 || got.SongIDs[0] != s2.ID || got.SongIDs[1] != s1.ID {
		t.Errorf("song IDs = %v", got.SongIDs)
	}

	if err := store.AddToPlaylist(pl.ID, "missing"); !stderrors.Is(err, errors.ErrNotFound) {
		t.Errorf("AddToPlaylist(missing song) err = %v", err)
	}
	if _, err := store.GetPlaylist("missing"); !stderrors.Is(err, errors.ErrNotFound) {
		t.Errorf("GetPlaylist(missing) err = %v", err)
	}
}

func TestCount(t *testing.T) {
	store := openTestStore(t)
	if n, _ := store.Count(); n != 0 {
		t.Errorf("initial count = %d", n)
	}
	if _, err := store.Add(sampleSong); err != nil {
		t.Fatal(err)
	}
	if n, _ := store.Count(); n != 1 {
		t.Errorf("count = %d", n)
	}
	if got := store.String(); got != "songbook(1 songs)" {
		t.Errorf("String() = %q", got)
	}
}

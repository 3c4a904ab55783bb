package contentstore

import (
	"context"
	"path/filepath"
	"testing"

	"lectern/internal/content"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := OpenPath(filepath.Join(t.TempDir(), "content.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestCreateAssignsIDAndDefaults(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	item, err := store.Create(ctx, &content.Item{
		Title:    "Cell Biology Intro",
		Category: content.CategoryVideo,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if item.ID == "" {
		t.Fatal("expected generated ID")
	}
	if item.Status != content.ItemDraft {
		t.Fatalf("status = %s, want draft", item.Status)
	}
}

func TestGetMissingReturnsNil(t *testing.T) {
	store := openTestStore(t)
	item, err := store.Get(context.Background(), "nope")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if item != nil {
		t.Fatalf("expected nil, got %+v", item)
	}
}

func TestUpdateRoundTrips(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	item, err := store.Create(ctx, &content.Item{
		Title:     "Photosynthesis",
		Category:  content.CategoryVideo,
		SourceRef: "media/photo.mp4",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	item.Transcript = "full transcript"
	item.HasCaptions = true
	item.DurationSeconds = 600
	item.Status = content.ItemPublished
	if err := store.Update(ctx, item); err != nil {
		t.Fatalf("update: %v", err)
	}

	reloaded, err := store.Get(ctx, item.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if reloaded.Transcript != "full transcript" || !reloaded.HasCaptions {
		t.Fatalf("transcript fields lost: %+v", reloaded)
	}
	if reloaded.DurationSeconds != 600 {
		t.Fatalf("duration = %v, want 600", reloaded.DurationSeconds)
	}
	if reloaded.Status != content.ItemPublished {
		t.Fatalf("status = %s, want published", reloaded.Status)
	}
}

func TestSetTextAlternative(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	item, _ := store.Create(ctx, &content.Item{
		Title:    "Diagram",
		Category: content.CategoryImage,
	})
	if err := store.SetTextAlternative(ctx, item.ID, "a labeled cell diagram"); err != nil {
		t.Fatalf("set text alternative: %v", err)
	}

	reloaded, _ := store.Get(ctx, item.ID)
	if !reloaded.HasTextAlternative || reloaded.TextAlternative != "a labeled cell diagram" {
		t.Fatalf("text alternative not persisted: %+v", reloaded)
	}
}

func TestSetTextAlternativeMissingItem(t *testing.T) {
	store := openTestStore(t)
	if err := store.SetTextAlternative(context.Background(), "missing", "alt"); err == nil {
		t.Fatal("expected error for missing item")
	}
}

func TestListByCategory(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	_, _ = store.Create(ctx, &content.Item{Title: "A", Category: content.CategoryVideo})
	_, _ = store.Create(ctx, &content.Item{Title: "B", Category: content.CategoryText})
	_, _ = store.Create(ctx, &content.Item{Title: "C", Category: content.CategoryVideo})

	videos, err := store.List(ctx, content.CategoryVideo)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(videos) != 2 {
		t.Fatalf("video count = %d, want 2", len(videos))
	}
	all, _ := store.List(ctx, "")
	if len(all) != 3 {
		t.Fatalf("all count = %d, want 3", len(all))
	}
}

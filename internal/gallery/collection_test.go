package gallery

import (
	"fmt"
	"strings"
	"testing"

	"povgallery/internal/entity"
)

func seedScenes(t *testing.T, c *Collection, count int) {
	t.Helper()
	scenes := make([]entity.Scene, 0, count)
	for i := 0; i < count; i++ {
		scenes = append(scenes, entity.Scene{
			ID:          c.NextID() + uint(i),
			Description: fmt.Sprintf("scene %d", i+1),
			Category:    "Neon",
		})
	}
	c.Append(scenes)
}

func TestAppendAssignsContiguousIDs(t *testing.T) {
	c := NewCollection()
	seedScenes(t, c, 12)

	if c.Len() != 12 {
		t.Fatalf("expected length 12, got %d", c.Len())
	}

	all := c.All()
	for i, scene := range all {
		if scene.ID != uint(i+1) {
			t.Fatalf("expected id %d at position %d, got %d", i+1, i, scene.ID)
		}
	}

	if c.NextID() != 13 {
		t.Fatalf("expected next id 13, got %d", c.NextID())
	}
}

func TestAppendSkipsDuplicateIDs(t *testing.T) {
	c := NewCollection()
	c.Append([]entity.Scene{{ID: 1, Description: "first"}})
	c.Append([]entity.Scene{{ID: 1, Description: "impostor"}, {ID: 2, Description: "second"}})

	if c.Len() != 2 {
		t.Fatalf("expected length 2, got %d", c.Len())
	}
	scene, ok := c.Get(1)
	if !ok || scene.Description != "first" {
		t.Fatalf("expected original record to survive, got %+v", scene)
	}
}

func TestToggleFavoriteAffectsOnlyTarget(t *testing.T) {
	c := NewCollection()
	seedScenes(t, c, 5)

	updated, ok := c.ToggleFavorite(3)
	if !ok {
		t.Fatal("expected toggle to succeed")
	}
	if !updated.IsFavorite {
		t.Fatal("expected record 3 to be favorite")
	}

	for _, scene := range c.All() {
		if scene.ID == 3 {
			continue
		}
		if scene.IsFavorite {
			t.Fatalf("record %d should not be favorite", scene.ID)
		}
	}

	// 再次翻转回到未收藏
	updated, _ = c.ToggleFavorite(3)
	if updated.IsFavorite {
		t.Fatal("expected second toggle to clear the flag")
	}
}

func TestFavoritesViewPreservesOrder(t *testing.T) {
	c := NewCollection()
	seedScenes(t, c, 12)

	for _, id := range []uint{2, 7, 11} {
		if _, ok := c.ToggleFavorite(id); !ok {
			t.Fatalf("toggle %d failed", id)
		}
	}

	scenes, meta := c.Page(entity.SceneQuery{Page: 1, FavoritesOnly: true})
	if meta.Total != 3 {
		t.Fatalf("expected 3 favorites, got %d", meta.Total)
	}
	if meta.PageCount != 1 {
		t.Fatalf("expected 1 page, got %d", meta.PageCount)
	}

	want := []uint{2, 7, 11}
	if len(scenes) != len(want) {
		t.Fatalf("expected %d scenes, got %d", len(want), len(scenes))
	}
	for i, scene := range scenes {
		if scene.ID != want[i] {
			t.Fatalf("expected id %d at position %d, got %d", want[i], i, scene.ID)
		}
	}
}

func TestPagination(t *testing.T) {
	tests := []struct {
		name          string
		total         int
		page          int
		wantLen       int
		wantPageCount int64
	}{
		{name: "empty collection", total: 0, page: 1, wantLen: 0, wantPageCount: 0},
		{name: "single partial page", total: 7, page: 1, wantLen: 7, wantPageCount: 1},
		{name: "exact multiple", total: 30, page: 3, wantLen: 10, wantPageCount: 3},
		{name: "last page remainder", total: 25, page: 3, wantLen: 5, wantPageCount: 3},
		{name: "page out of range", total: 25, page: 9, wantLen: 0, wantPageCount: 3},
		{name: "zero page treated as first", total: 12, page: 0, wantLen: 10, wantPageCount: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewCollection()
			seedScenes(t, c, tt.total)

			scenes, meta := c.Page(entity.SceneQuery{Page: tt.page})
			if len(scenes) != tt.wantLen {
				t.Fatalf("expected %d scenes, got %d", tt.wantLen, len(scenes))
			}
			if meta.PageCount != tt.wantPageCount {
				t.Fatalf("expected page count %d, got %d", tt.wantPageCount, meta.PageCount)
			}
			if meta.PageSize != entity.PageSize {
				t.Fatalf("expected page size %d, got %d", entity.PageSize, meta.PageSize)
			}
		})
	}
}

func TestBeginImageGuardsPendingRequests(t *testing.T) {
	c := NewCollection()
	seedScenes(t, c, 1)

	if _, ok := c.BeginImage(1, ImageKindThumbnail); !ok {
		t.Fatal("expected first thumbnail request to start")
	}
	if _, ok := c.BeginImage(1, ImageKindThumbnail); ok {
		t.Fatal("expected second thumbnail request to be rejected while pending")
	}

	// 高清图请求独立于缩略图请求
	if _, ok := c.BeginImage(1, ImageKindHighRes); !ok {
		t.Fatal("expected highres request to start independently")
	}

	scene, _ := c.FinishImage(1, ImageKindThumbnail, "https://example.com/t.png")
	if scene.IsGeneratingThumbnail {
		t.Fatal("expected pending flag cleared after finish")
	}
	if scene.ThumbnailURL != "https://example.com/t.png" {
		t.Fatalf("unexpected thumbnail url %q", scene.ThumbnailURL)
	}

	if _, ok := c.BeginImage(1, ImageKindThumbnail); !ok {
		t.Fatal("expected new request to start after previous resolved")
	}
}

func TestAbortImageKeepsExistingURL(t *testing.T) {
	c := NewCollection()
	seedScenes(t, c, 1)

	c.BeginImage(1, ImageKindThumbnail)
	c.FinishImage(1, ImageKindThumbnail, "https://example.com/t.png")

	c.BeginImage(1, ImageKindThumbnail)
	scene, ok := c.AbortImage(1, ImageKindThumbnail)
	if !ok {
		t.Fatal("expected abort to succeed")
	}
	if scene.IsGeneratingThumbnail {
		t.Fatal("expected pending flag cleared after abort")
	}
	if scene.ThumbnailURL != "https://example.com/t.png" {
		t.Fatal("abort must not clear an existing url")
	}
}

func TestHydrateClearsTransientFlags(t *testing.T) {
	c := NewCollection()
	c.Hydrate([]entity.Scene{
		{ID: 1, Description: "a", IsGeneratingThumbnail: true},
		{ID: 2, Description: "b", IsGeneratingHighRes: true},
	})

	for _, scene := range c.All() {
		if scene.IsGeneratingThumbnail || scene.IsGeneratingHighRes {
			t.Fatalf("record %d kept a transient flag after hydrate", scene.ID)
		}
	}
	if c.NextID() != 3 {
		t.Fatalf("expected next id 3, got %d", c.NextID())
	}
}

func TestExportText(t *testing.T) {
	c := NewCollection()
	c.Append([]entity.Scene{
		{ID: 1, Category: "Neon", Description: "rain-soaked street"},
		{ID: 2, Category: "Space", Description: "drifting past a derelict station"},
	})

	got := c.ExportText()
	lines := strings.Split(got, "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}
	if lines[0] != "1. [Neon] rain-soaked street" {
		t.Fatalf("unexpected first line %q", lines[0])
	}
	if lines[1] != "2. [Space] drifting past a derelict station" {
		t.Fatalf("unexpected second line %q", lines[1])
	}
}

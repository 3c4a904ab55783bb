package strategy

import (
	"testing"

	"lectern/internal/content"
)

func TestRegistryCoversAllCategories(t *testing.T) {
	registry := NewRegistry(DefaultLimits())
	for _, category := range content.AllCategories() {
		s, known := registry.ForCategory(category)
		if !known {
			t.Errorf("category %s unresolved", category)
		}
		if s.Category() != category {
			t.Errorf("category %s resolved to %s strategy", category, s.Category())
		}
	}
}

func TestRegistryUnknownCategoryFallsBackToText(t *testing.T) {
	registry := NewRegistry(DefaultLimits())
	s, known := registry.ForCategory(content.Category("hologram"))
	if known {
		t.Fatal("unknown category reported as known")
	}
	if s.Category() != content.CategoryText {
		t.Fatalf("fallback strategy = %s, want text", s.Category())
	}
}

func TestRegistryMIMEResolution(t *testing.T) {
	registry := NewRegistry(DefaultLimits())
	cases := []struct {
		mime  string
		want  content.Category
		known bool
	}{
		{"image/png", content.CategoryImage, true},
		{"video/mp4", content.CategoryVideo, true},
		{"audio/ogg; codecs=opus", content.CategoryAudio, true},
		{"application/pdf", content.CategoryDocument, true},
		{"text/x-python", content.CategoryCode, true},
		{"application/wasm", content.CategoryInteractive, true},
		{"text/markdown", content.CategoryText, true},
		{"application/octet-stream", content.CategoryText, false},
	}
	for _, tc := range cases {
		t.Run(tc.mime, func(t *testing.T) {
			s, known := registry.ForMIME(tc.mime)
			if known != tc.known {
				t.Fatalf("known = %v, want %v", known, tc.known)
			}
			if s.Category() != tc.want {
				t.Fatalf("resolved %s, want %s", s.Category(), tc.want)
			}
		})
	}
}

func TestRegistryMIMECacheIsStable(t *testing.T) {
	registry := NewRegistry(DefaultLimits())
	first, _ := registry.ForMIME("image/webp")
	second, _ := registry.ForMIME("image/webp")
	if first != second {
		t.Fatal("repeated MIME lookups returned different strategies")
	}
}

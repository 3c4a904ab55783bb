package strategy

import (
	"strings"
	"sync"

	"lectern/internal/content"
)

// Registry resolves a content category or MIME type to its strategy. It is
// constructed explicitly and passed by reference; there is no package-level
// instance. MIME lookups are cached after first resolution.
type Registry struct {
	byCategory map[content.Category]Strategy
	fallback   Strategy

	mu        sync.RWMutex
	mimeCache map[string]mimeResolution
}

type mimeResolution struct {
	strategy Strategy
	known    bool
}

// NewRegistry builds a registry with one strategy per known category.
func NewRegistry(limits Limits) *Registry {
	text := newTextStrategy(limits)
	strategies := []Strategy{
		text,
		newImageStrategy(limits),
		newAudioStrategy(limits),
		newVideoStrategy(limits),
		newDocumentStrategy(limits),
		newCodeStrategy(limits),
		newInteractiveStrategy(limits),
	}
	byCategory := make(map[content.Category]Strategy, len(strategies))
	for _, s := range strategies {
		byCategory[s.Category()] = s
	}
	return &Registry{
		byCategory: byCategory,
		fallback:   text,
		mimeCache:  make(map[string]mimeResolution),
	}
}

// ForCategory returns the strategy for a category. Unknown categories resolve
// to the text strategy; the second return value reports whether the category
// was recognized so callers can log the fallback.
func (r *Registry) ForCategory(category content.Category) (Strategy, bool) {
	if s, ok := r.byCategory[category]; ok {
		return s, true
	}
	return r.fallback, false
}

// ForItem resolves the strategy for an item's category.
func (r *Registry) ForItem(item *content.Item) (Strategy, bool) {
	return r.ForCategory(item.Category)
}

// ForMIME maps a MIME type to a strategy. Unknown types resolve to the text
// strategy, matching the category fallback.
func (r *Registry) ForMIME(mimeType string) (Strategy, bool) {
	normalized := strings.ToLower(strings.TrimSpace(mimeType))
	if idx := strings.IndexByte(normalized, ';'); idx >= 0 {
		normalized = strings.TrimSpace(normalized[:idx])
	}
	if normalized == "" {
		return r.fallback, false
	}

	r.mu.RLock()
	cached, ok := r.mimeCache[normalized]
	r.mu.RUnlock()
	if ok {
		return cached.strategy, cached.known
	}

	category, known := categoryForMIME(normalized)
	strategy, _ := r.ForCategory(category)

	r.mu.Lock()
	r.mimeCache[normalized] = mimeResolution{strategy: strategy, known: known}
	r.mu.Unlock()
	return strategy, known
}

func categoryForMIME(mimeType string) (content.Category, bool) {
	switch {
	case strings.HasPrefix(mimeType, "image/"):
		return content.CategoryImage, true
	case strings.HasPrefix(mimeType, "audio/"):
		return content.CategoryAudio, true
	case strings.HasPrefix(mimeType, "video/"):
		return content.CategoryVideo, true
	}
	switch mimeType {
	case "application/pdf", "application/msword",
		"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
		"application/epub+zip":
		return content.CategoryDocument, true
	case "text/x-python", "text/x-go", "text/x-java", "text/x-c",
		"application/javascript", "application/typescript":
		return content.CategoryCode, true
	case "application/wasm", "application/x-widget", "text/x-notebook":
		return content.CategoryInteractive, true
	case "text/plain", "text/markdown", "text/html":
		return content.CategoryText, true
	}
	return content.CategoryText, false
}

package cache

import (
	"fmt"
	"strings"
	"time"
)

// Category is an isolated partition of the cache with its own expiration policy.
type Category string

const (
	CategoryLyrics      Category = "lyrics"
	CategoryTranslation Category = "translation"
	CategoryWord        Category = "word"
	CategoryCatalog     Category = "catalog"
)

// Default time-to-live per category
const (
	DefaultLyricsTTL      = 720 * time.Hour
	DefaultTranslationTTL = 720 * time.Hour
	DefaultWordTTL        = 720 * time.Hour
	DefaultCatalogTTL     = 168 * time.Hour
)

// Categories lists every category in a fixed order.
func Categories() []Category {
	return []Category{CategoryLyrics, CategoryTranslation, CategoryWord, CategoryCatalog}
}

// Valid reports whether c is one of the known categories.
func (c Category) Valid() bool {
	switch c {
	case CategoryLyrics, CategoryTranslation, CategoryWord, CategoryCatalog:
		return true
	}
	return false
}

func (c Category) bucket() []byte {
	return []byte(c)
}

func (c Category) String() string {
	return string(c)
}

// ParseCategory maps a user-supplied name onto a Category. Plural forms and the
// legacy "spotify" name for the catalog partition are accepted.
func ParseCategory(name string) (Category, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "lyrics":
		return CategoryLyrics, nil
	case "translation", "translations":
		return CategoryTranslation, nil
	case "word", "words":
		return CategoryWord, nil
	case "catalog", "spotify":
		return CategoryCatalog, nil
	}
	return "", fmt.Errorf("unknown cache category: %q", name)
}

// DefaultTTLs returns the default expiration policy.
func DefaultTTLs() map[Category]time.Duration {
	return map[Category]time.Duration{
		CategoryLyrics:      DefaultLyricsTTL,
		CategoryTranslation: DefaultTranslationTTL,
		CategoryWord:        DefaultWordTTL,
		CategoryCatalog:     DefaultCatalogTTL,
	}
}

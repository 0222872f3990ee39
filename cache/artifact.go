package cache

import (
	"bytes"
	"errors"
	"fmt"

	"lyrics-translator-go/models"

	"github.com/goccy/go-json"
)

// Artifact is a cached payload. Each category has exactly one artifact type and
// records are decoded into that type and validated before being returned.
type Artifact interface {
	Category() Category
	Validate() error
}

// Lyrics is the lyrics-category artifact.
type Lyrics struct {
	Title  string `json:"title"`
	Artist string `json:"artist"`
	Lyrics string `json:"lyrics"`
}

func (Lyrics) Category() Category { return CategoryLyrics }

func (l Lyrics) Validate() error {
	if l.Title == "" && l.Lyrics == "" {
		return errors.New("lyrics: missing title and text")
	}
	return nil
}

// Translation is the translation-category artifact.
type Translation struct {
	Translated     string `json:"translated"`
	SourceLanguage string `json:"source_language"`
}

func (Translation) Category() Category { return CategoryTranslation }

func (t Translation) Validate() error {
	if t.Translated == "" {
		return errors.New("translation: missing translated text")
	}
	return nil
}

// WordGloss is the word-category artifact.
type WordGloss struct {
	Word        string `json:"word"`
	Translation string `json:"translation"`
	Context     string `json:"context"`
}

func (WordGloss) Category() Category { return CategoryWord }

func (w WordGloss) Validate() error {
	if w.Word == "" || w.Translation == "" {
		return errors.New("word: missing word or translation")
	}
	return nil
}

// CatalogKind distinguishes the listings stored in the catalog category.
type CatalogKind string

const (
	CatalogAlbums  CatalogKind = "albums"
	CatalogSingles CatalogKind = "singles"
	CatalogSongs   CatalogKind = "songs"
)

// Catalog is the catalog-category artifact: an album listing, the singles/EPs
// bucket of an artist, or a reconciled song list.
type Catalog struct {
	Kind   CatalogKind             `json:"kind"`
	Albums []models.AlbumListing   `json:"albums,omitempty"`
	Songs  []models.ReconciledSong `json:"songs,omitempty"`
}

func (Catalog) Category() Category { return CategoryCatalog }

func (c Catalog) Validate() error {
	switch c.Kind {
	case CatalogAlbums, CatalogSingles:
		if len(c.Songs) > 0 {
			return fmt.Errorf("catalog %s: unexpected songs", c.Kind)
		}
		for i, a := range c.Albums {
			if a.ID == "" {
				return fmt.Errorf("catalog %s: album %d has no id", c.Kind, i)
			}
		}
	case CatalogSongs:
		if len(c.Albums) > 0 {
			return errors.New("catalog songs: unexpected albums")
		}
		for i, s := range c.Songs {
			if s.ID <= 0 {
				return fmt.Errorf("catalog songs: song %d has no id", i)
			}
		}
	default:
		return fmt.Errorf("catalog: unknown kind %q", c.Kind)
	}
	return nil
}

// decodeArtifact decodes a payload into the artifact type owned by category.
// Unknown fields are rejected so a payload written under another schema is
// treated as corrupt rather than half-read.
func decodeArtifact(category Category, payload []byte) (Artifact, error) {
	var (
		artifact Artifact
		err      error
	)
	switch category {
	case CategoryLyrics:
		var v Lyrics
		err = strictUnmarshal(payload, &v)
		artifact = v
	case CategoryTranslation:
		var v Translation
		err = strictUnmarshal(payload, &v)
		artifact = v
	case CategoryWord:
		var v WordGloss
		err = strictUnmarshal(payload, &v)
		artifact = v
	case CategoryCatalog:
		var v Catalog
		err = strictUnmarshal(payload, &v)
		artifact = v
	default:
		return nil, fmt.Errorf("unknown category %q", category)
	}
	if err != nil {
		return nil, err
	}
	if err := artifact.Validate(); err != nil {
		return nil, err
	}
	return artifact, nil
}

func strictUnmarshal(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return err
	}
	if dec.More() {
		return errors.New("trailing data after payload")
	}
	return nil
}

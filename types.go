package main

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
)

// Context keys for request-scoped values
type contextKey string

const rateLimitTypeKey contextKey = "rateLimitType"

// songID accepts a lyrics-catalog id sent either as a JSON number or as a numeric string.
type songID int

func (id *songID) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		*id = 0
		return nil
	}
	s := string(data)
	if unquoted, err := strconv.Unquote(s); err == nil {
		s = unquoted
	}
	s = strings.TrimSpace(s)
	if s == "" {
		*id = 0
		return nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return fmt.Errorf("song_id must be a number, got %s", data)
	}
	*id = songID(n)
	return nil
}

// translateRequest is the body of POST /api/translate
type translateRequest struct {
	SongID         songID `json:"song_id"`
	SongName       string `json:"song_name"`
	ArtistName     string `json:"artist_name"`
	TargetLanguage string `json:"target_language"`
}

// translateWordRequest is the body of POST /api/translate-word.
// Pointers tell a missing field apart from an empty one.
type translateWordRequest struct {
	Word           *string `json:"word"`
	Context        *string `json:"context"`
	TargetLanguage string  `json:"target_language"`
}

// clearCacheRequest is the optional body of POST /api/cache/clear
type clearCacheRequest struct {
	CacheType *string `json:"cache_type"`
}

// decodeBody decodes an optional JSON body. An empty body leaves v untouched.
func decodeBody(body []byte, v any) error {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	return json.Unmarshal(body, v)
}

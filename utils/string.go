package utils

import (
	"bytes"
	"strings"

	"github.com/klauspost/compress/zstd"
)

// zstdMagic opens every zstd frame.
var zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}

// EncodeAll and DecodeAll are safe for concurrent use, so one of each is shared.
var (
	encoder, _ = zstd.NewWriter(nil,
		zstd.WithEncoderLevel(zstd.SpeedBetterCompression),
		zstd.WithZeroFrames(true), // empty input still yields a frame
	)
	decoder, _ = zstd.NewReader(nil)
)

// Compress encodes the input as a single zstd frame.
func Compress(input []byte) ([]byte, error) {
	return encoder.EncodeAll(input, make([]byte, 0, len(input)/2)), nil
}

// Decompress reverses Compress.
func Decompress(input []byte) ([]byte, error) {
	return decoder.DecodeAll(input, nil)
}

// IsCompressed reports whether data starts with the zstd frame magic.
func IsCompressed(data []byte) bool {
	return bytes.HasPrefix(data, zstdMagic)
}

// NormalizeName lowercases and trims a name and collapses inner whitespace runs.
func NormalizeName(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

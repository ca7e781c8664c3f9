package utils

import "unicode/utf8"

// SniffLength is the number of leading bytes sampled when classifying content.
const SniffLength = 8000

// IsBinary reports whether the provided byte slice appears to contain binary data.
// Data is binary when it holds a null byte or is not valid UTF-8.
func IsBinary(data []byte) bool {
	if len(data) == 0 {
		return false
	}
	sample := data
	if len(sample) > SniffLength {
		sample = sample[:SniffLength]
	}
	for _, sampleByte := range sample {
		if sampleByte == 0 {
			return true
		}
	}
	if utf8.Valid(sample) {
		return false
	}
	// The sample may end mid-rune; tolerate a truncated trailing sequence.
	trimmed := sample
	for len(trimmed) > 0 && len(sample)-len(trimmed) < utf8.UTFMax {
		lastRune, runeSize := utf8.DecodeLastRune(trimmed)
		if lastRune != utf8.RuneError || runeSize != 1 {
			break
		}
		trimmed = trimmed[:len(trimmed)-1]
	}
	return !utf8.Valid(trimmed)
}

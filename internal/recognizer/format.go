package recognizer

import (
	"path/filepath"
	"strings"
)

var contentTypeSuffix = map[string]string{
	"audio/webm":  ".webm",
	"audio/ogg":   ".ogg",
	"audio/opus":  ".ogg",
	"audio/mp4":   ".m4a",
	"audio/m4a":   ".m4a",
	"audio/x-m4a": ".m4a",
	"audio/mpeg":  ".mp3",
	"audio/wav":   ".wav",
	"audio/x-wav": ".wav",
}

// ResolveSuffix picks the container suffix the decoder should assume for an
// upload. A filename extension wins over the content type; unknown inputs
// fall back to ".wav".
func ResolveSuffix(filename, contentType string) string {
	if ext := filepath.Ext(filename); ext != "" {
		return ext
	}

	ct := contentType
	if i := strings.Index(ct, ";"); i >= 0 {
		ct = ct[:i]
	}
	if suffix, ok := contentTypeSuffix[strings.TrimSpace(strings.ToLower(ct))]; ok {
		return suffix
	}
	return ".wav"
}

package recognizer

import (
	"context"
	"fmt"
	"log/slog"
	"os"
)

// Word is a single recognized token with optional timing. Start and End are
// seconds into the source audio and are nil when the model could not align
// the token.
type Word struct {
	Word  string   `json:"word"`
	Start *float64 `json:"start"`
	End   *float64 `json:"end"`
}

// Request holds one whole-file recognition request. Filename and ContentType
// are hints used only to pick a container suffix for the decoder.
type Request struct {
	Data        []byte
	Filename    string
	ContentType string
	Language    string
}

// Result is the full transcription of one audio file. Words are in temporal
// order and may be empty.
type Result struct {
	Text  string
	Words []Word
}

// Engine is the interface for speech recognition backends.
type Engine interface {
	Recognize(ctx context.Context, req Request) (*Result, error)
	Name() string
	// Model returns the identifier recorded on transcripts produced by this
	// engine.
	Model() string
	Close() error
}

// DecodeError means the audio container could not be read.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string { return fmt.Sprintf("decode audio: %v", e.Err) }
func (e *DecodeError) Unwrap() error { return e.Err }

// InferenceError means the model failed while transcribing decodable audio.
type InferenceError struct {
	Err error
}

func (e *InferenceError) Error() string { return fmt.Sprintf("inference: %v", e.Err) }
func (e *InferenceError) Unwrap() error { return e.Err }

// writeTempAudio materializes audio bytes into a uniquely named file whose
// suffix tells the decoder which container it is looking at. The returned
// cleanup never fails the request; removal errors are only logged.
func writeTempAudio(data []byte, suffix string) (string, func(), error) {
	f, err := os.CreateTemp("", "recognize-*"+suffix)
	if err != nil {
		return "", nil, fmt.Errorf("create temp audio: %w", err)
	}
	path := f.Name()
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(path)
		return "", nil, fmt.Errorf("write temp audio: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return "", nil, fmt.Errorf("close temp audio: %w", err)
	}

	cleanup := func() {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			slog.Warn("failed to remove temp audio", "path", path, "error", err)
		}
	}
	return path, cleanup, nil
}

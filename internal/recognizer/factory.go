package recognizer

import (
	"fmt"

	"github.com/zhikangxie107/transcribe/internal/config"
)

// New creates the configured recognition backend.
func New(cfg config.RecognizerConfig) (Engine, error) {
	switch cfg.Backend {
	case "", "local":
		return NewLocalEngine(LocalConfig{
			Model:        cfg.Model,
			PythonBin:    cfg.PythonBin,
			Device:       cfg.Device,
			ChunkSeconds: cfg.ChunkSeconds,
		})
	case "openai":
		return NewOpenAIEngine(OpenAIConfig{
			APIKey:  cfg.OpenAIKey,
			BaseURL: cfg.OpenAIBaseURL,
			Model:   cfg.Model,
		}), nil
	default:
		return nil, fmt.Errorf("unsupported recognizer backend: %s (supported: local, openai)", cfg.Backend)
	}
}

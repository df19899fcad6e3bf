package recognizer

import (
	"context"
	"errors"
	"net/http"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIConfig holds configuration for the hosted Whisper backend.
type OpenAIConfig struct {
	APIKey  string
	BaseURL string // default: api.openai.com; also works with compatible servers
	Model   string // default: "whisper-1"
}

// OpenAIEngine transcribes audio through the OpenAI transcription API (or a
// compatible endpoint) with word-level timestamp granularity.
type OpenAIEngine struct {
	cfg    OpenAIConfig
	client *openai.Client
}

func NewOpenAIEngine(cfg OpenAIConfig) *OpenAIEngine {
	if cfg.Model == "" {
		cfg.Model = "whisper-1"
	}
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	return &OpenAIEngine{
		cfg:    cfg,
		client: openai.NewClientWithConfig(clientCfg),
	}
}

func (o *OpenAIEngine) Name() string  { return "openai-whisper" }
func (o *OpenAIEngine) Model() string { return "openai/" + o.cfg.Model }

func (o *OpenAIEngine) Recognize(ctx context.Context, req Request) (*Result, error) {
	suffix := ResolveSuffix(req.Filename, req.ContentType)
	path, cleanup, err := writeTempAudio(req.Data, suffix)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	resp, err := o.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    o.cfg.Model,
		FilePath: path,
		Language: req.Language,
		Format:   openai.AudioResponseFormatVerboseJSON,
		TimestampGranularities: []openai.TranscriptionTimestampGranularity{
			openai.TranscriptionTimestampGranularityWord,
		},
	})
	if err != nil {
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) && apiErr.HTTPStatusCode == http.StatusBadRequest {
			return nil, &DecodeError{Err: err}
		}
		return nil, &InferenceError{Err: err}
	}

	words := make([]Word, 0, len(resp.Words))
	for _, w := range resp.Words {
		token := strings.TrimSpace(w.Word)
		if token == "" {
			continue
		}
		start, end := w.Start, w.End
		words = append(words, Word{Word: token, Start: &start, End: &end})
	}

	return &Result{Text: resp.Text, Words: words}, nil
}

func (o *OpenAIEngine) Close() error { return nil }

package transcript

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/zhikangxie107/transcribe/internal/cache"
	"github.com/zhikangxie107/transcribe/internal/recognizer"
)

// Store is the persistence boundary the service works against.
type Store interface {
	Create(ctx context.Context, owner string, fields CreateFields) (*Transcript, error)
	Get(ctx context.Context, id uuid.UUID, owner string) (*Transcript, error)
	List(ctx context.Context, owner string) ([]Transcript, error)
	Update(ctx context.Context, id uuid.UUID, owner string, fields UpdateFields) error
	Delete(ctx context.Context, id uuid.UUID, owner string) error
}

// RecognitionRequest is one transcription upload. TargetID selects attach
// mode: the recognized text overwrites an existing record instead of creating
// a new one.
type RecognitionRequest struct {
	Audio       []byte
	Filename    string
	ContentType string
	Language    string
	TargetID    *uuid.UUID
}

const cacheTTL = 5 * time.Minute

// Service composes the recognition engine and the store into the
// transcribe-and-persist workflows, plus the plain CRUD the handlers expose.
type Service struct {
	store  Store
	engine recognizer.Engine
	cache  *cache.Cache // optional
}

func NewService(store Store, engine recognizer.Engine, c *cache.Cache) *Service {
	return &Service{store: store, engine: engine, cache: c}
}

// Transcribe runs exactly one recognition call and persists the result. In
// attach mode the target is checked first so an unknown or foreign id fails
// before any inference runs. Nothing is written unless recognition succeeds.
func (s *Service) Transcribe(ctx context.Context, owner string, req RecognitionRequest) (*Transcript, error) {
	if len(req.Audio) == 0 {
		return nil, ErrEmptyAudio
	}

	if req.TargetID != nil {
		if _, err := s.store.Get(ctx, *req.TargetID, owner); err != nil {
			return nil, err
		}
	}

	result, err := s.engine.Recognize(ctx, recognizer.Request{
		Data:        req.Audio,
		Filename:    req.Filename,
		ContentType: req.ContentType,
		Language:    req.Language,
	})
	if err != nil {
		return nil, err
	}
	words := fromEngineWords(result.Words)

	if req.TargetID != nil {
		fields := UpdateFields{
			Text:     &result.Text,
			Words:    &words,
			Filename: &req.Filename,
		}
		if err := s.store.Update(ctx, *req.TargetID, owner, fields); err != nil {
			s.logStoreFailure(owner, err)
			return nil, err
		}
		s.invalidate(ctx, owner, *req.TargetID)
		return s.store.Get(ctx, *req.TargetID, owner)
	}

	model := s.engine.Model()
	fields := CreateFields{
		Text:  result.Text,
		Words: words,
		Model: &model,
	}
	if req.Filename != "" {
		fields.Filename = &req.Filename
	}
	t, err := s.store.Create(ctx, owner, fields)
	if err != nil {
		s.logStoreFailure(owner, err)
		return nil, err
	}
	s.invalidate(ctx, owner)
	return t, nil
}

// logStoreFailure marks the partial-failure window where recognition
// succeeded but persistence did not; the recognized text is lost unless the
// caller retries.
func (s *Service) logStoreFailure(owner string, err error) {
	if errors.Is(err, ErrNotFound) {
		return
	}
	slog.Error("store write failed after successful recognition",
		"owner", owner, "engine", s.engine.Name(), "error", err)
}

func (s *Service) Create(ctx context.Context, owner string, fields CreateFields) (*Transcript, error) {
	t, err := s.store.Create(ctx, owner, fields)
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, owner)
	return t, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID, owner string) (*Transcript, error) {
	key := transcriptKey(owner, id)
	if s.cache != nil {
		var cached Transcript
		if ok, err := s.cache.Get(ctx, key, &cached); err == nil && ok {
			return &cached, nil
		}
	}

	t, err := s.store.Get(ctx, id, owner)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		if err := s.cache.Set(ctx, key, t, cacheTTL); err != nil {
			slog.Warn("cache set failed", "key", key, "error", err)
		}
	}
	return t, nil
}

func (s *Service) List(ctx context.Context, owner string) ([]Transcript, error) {
	key := listKey(owner)
	if s.cache != nil {
		var cached []Transcript
		if ok, err := s.cache.Get(ctx, key, &cached); err == nil && ok {
			return cached, nil
		}
	}

	transcripts, err := s.store.List(ctx, owner)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		if err := s.cache.Set(ctx, key, transcripts, cacheTTL); err != nil {
			slog.Warn("cache set failed", "key", key, "error", err)
		}
	}
	return transcripts, nil
}

func (s *Service) Update(ctx context.Context, id uuid.UUID, owner string, fields UpdateFields) (*Transcript, error) {
	if err := s.store.Update(ctx, id, owner, fields); err != nil {
		return nil, err
	}
	s.invalidate(ctx, owner, id)
	return s.store.Get(ctx, id, owner)
}

func (s *Service) Delete(ctx context.Context, id uuid.UUID, owner string) error {
	if err := s.store.Delete(ctx, id, owner); err != nil {
		return err
	}
	s.invalidate(ctx, owner, id)
	return nil
}

func (s *Service) invalidate(ctx context.Context, owner string, ids ...uuid.UUID) {
	if s.cache == nil {
		return
	}
	keys := []string{listKey(owner)}
	for _, id := range ids {
		keys = append(keys, transcriptKey(owner, id))
	}
	if err := s.cache.Delete(ctx, keys...); err != nil {
		slog.Warn("cache invalidation failed", "owner", owner, "error", err)
	}
}

func transcriptKey(owner string, id uuid.UUID) string {
	return fmt.Sprintf("transcript:%s:%s", owner, id)
}

func listKey(owner string) string {
	return "transcripts:" + owner
}

func fromEngineWords(in []recognizer.Word) []Word {
	words := make([]Word, 0, len(in))
	for _, w := range in {
		words = append(words, Word{Word: w.Word, Start: w.Start, End: w.End})
	}
	return words
}

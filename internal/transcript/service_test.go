package transcript

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/zhikangxie107/transcribe/internal/recognizer"
)

type fakeEngine struct {
	result *recognizer.Result
	err    error
	calls  int
}

func (f *fakeEngine) Recognize(ctx context.Context, req recognizer.Request) (*recognizer.Result, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func (f *fakeEngine) Name() string  { return "fake" }
func (f *fakeEngine) Model() string { return "fake/model-1" }
func (f *fakeEngine) Close() error  { return nil }

// fakeStore mirrors the repository's ownership semantics in memory.
type fakeStore struct {
	records     map[uuid.UUID]*Transcript
	createErr   error
	createCalls int
	updateCalls int
}

func newFakeStore() *fakeStore {
	return &fakeStore{records: make(map[uuid.UUID]*Transcript)}
}

func (f *fakeStore) Create(ctx context.Context, owner string, fields CreateFields) (*Transcript, error) {
	f.createCalls++
	if f.createErr != nil {
		return nil, f.createErr
	}
	words := fields.Words
	if words == nil {
		words = []Word{}
	}
	t := &Transcript{
		ID:        uuid.New(),
		OwnerID:   owner,
		Text:      fields.Text,
		Words:     words,
		Filename:  fields.Filename,
		Model:     fields.Model,
		CreatedAt: time.Now(),
	}
	f.records[t.ID] = t
	copied := *t
	return &copied, nil
}

func (f *fakeStore) Get(ctx context.Context, id uuid.UUID, owner string) (*Transcript, error) {
	t, ok := f.records[id]
	if !ok || t.OwnerID != owner {
		return nil, ErrNotFound
	}
	copied := *t
	return &copied, nil
}

func (f *fakeStore) List(ctx context.Context, owner string) ([]Transcript, error) {
	out := []Transcript{}
	for _, t := range f.records {
		if t.OwnerID == owner {
			out = append(out, *t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (f *fakeStore) Update(ctx context.Context, id uuid.UUID, owner string, fields UpdateFields) error {
	f.updateCalls++
	t, ok := f.records[id]
	if !ok || t.OwnerID != owner {
		return ErrNotFound
	}
	if fields.Text != nil {
		t.Text = *fields.Text
	}
	if fields.Words != nil {
		t.Words = *fields.Words
	}
	if fields.Filename != nil {
		t.Filename = fields.Filename
	}
	return nil
}

func (f *fakeStore) Delete(ctx context.Context, id uuid.UUID, owner string) error {
	t, ok := f.records[id]
	if !ok {
		return nil
	}
	if t.OwnerID != owner {
		return ErrNotFound
	}
	delete(f.records, id)
	return nil
}

func ptr(v float64) *float64 { return &v }

func recognized() *recognizer.Result {
	return &recognizer.Result{
		Text: "hello world",
		Words: []recognizer.Word{
			{Word: "hello", Start: ptr(0.0), End: ptr(0.5)},
			{Word: "world", Start: ptr(0.5), End: ptr(1.0)},
		},
	}
}

func TestTranscribeCreateMode(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	engine := &fakeEngine{result: recognized()}
	svc := NewService(store, engine, nil)

	got, err := svc.Transcribe(context.Background(), "u1", RecognitionRequest{
		Audio:    []byte("audio"),
		Filename: "a.wav",
	})
	require.NoError(t, err)
	require.Equal(t, 1, engine.calls)
	require.Equal(t, "u1", got.OwnerID)
	require.Equal(t, "hello world", got.Text)
	require.Len(t, got.Words, 2)
	require.NotNil(t, got.Filename)
	require.Equal(t, "a.wav", *got.Filename)
	require.NotNil(t, got.Model)
	require.Equal(t, "fake/model-1", *got.Model)
	require.False(t, got.CreatedAt.IsZero())
}

func TestTranscribeEmptyAudioRejectedBeforeRecognition(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	engine := &fakeEngine{result: recognized()}
	svc := NewService(store, engine, nil)

	target := uuid.New()
	for _, req := range []RecognitionRequest{
		{Audio: nil},
		{Audio: []byte{}, TargetID: &target},
	} {
		_, err := svc.Transcribe(context.Background(), "u1", req)
		require.ErrorIs(t, err, ErrEmptyAudio)
	}
	require.Zero(t, engine.calls)
	require.Zero(t, store.createCalls)
}

func TestTranscribeAttachPreservesIdentity(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	engine := &fakeEngine{result: recognized()}
	svc := NewService(store, engine, nil)

	model := "fake/model-0"
	existing, err := store.Create(context.Background(), "u1", CreateFields{Text: "old", Model: &model})
	require.NoError(t, err)

	got, err := svc.Transcribe(context.Background(), "u1", RecognitionRequest{
		Audio:    []byte("audio"),
		Filename: "new.mp3",
		TargetID: &existing.ID,
	})
	require.NoError(t, err)
	require.Equal(t, 1, engine.calls)
	require.Equal(t, existing.ID, got.ID)
	require.Equal(t, existing.OwnerID, got.OwnerID)
	require.Equal(t, existing.CreatedAt, got.CreatedAt)
	require.Equal(t, "hello world", got.Text)
	require.Equal(t, "new.mp3", *got.Filename)
	// Fields outside the recognition payload stay put.
	require.Equal(t, "fake/model-0", *got.Model)
}

func TestTranscribeAttachUnknownTargetSkipsRecognition(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	engine := &fakeEngine{result: recognized()}
	svc := NewService(store, engine, nil)

	target := uuid.New()
	_, err := svc.Transcribe(context.Background(), "u1", RecognitionRequest{
		Audio:    []byte("audio"),
		TargetID: &target,
	})
	require.ErrorIs(t, err, ErrNotFound)
	require.Zero(t, engine.calls)
}

func TestTranscribeAttachForeignOwnerIsNotFound(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	engine := &fakeEngine{result: recognized()}
	svc := NewService(store, engine, nil)

	existing, err := store.Create(context.Background(), "u2", CreateFields{Text: "theirs"})
	require.NoError(t, err)

	_, err = svc.Transcribe(context.Background(), "u1", RecognitionRequest{
		Audio:    []byte("audio"),
		TargetID: &existing.ID,
	})
	require.ErrorIs(t, err, ErrNotFound)
	require.Zero(t, engine.calls)

	unchanged, err := store.Get(context.Background(), existing.ID, "u2")
	require.NoError(t, err)
	require.Equal(t, "theirs", unchanged.Text)
}

func TestTranscribeRecognitionFailureWritesNothing(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	engine := &fakeEngine{err: &recognizer.DecodeError{Err: errors.New("bad container")}}
	svc := NewService(store, engine, nil)

	_, err := svc.Transcribe(context.Background(), "u1", RecognitionRequest{Audio: []byte("junk")})
	var decodeErr *recognizer.DecodeError
	require.ErrorAs(t, err, &decodeErr)
	require.Zero(t, store.createCalls)
	require.Zero(t, store.updateCalls)
}

func TestTranscribeStoreFailureSurfaces(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	store.createErr = errors.New("connection reset")
	engine := &fakeEngine{result: recognized()}
	svc := NewService(store, engine, nil)

	_, err := svc.Transcribe(context.Background(), "u1", RecognitionRequest{Audio: []byte("audio")})
	require.Error(t, err)
	require.Equal(t, 1, engine.calls)
}

func TestOwnershipIsolation(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	svc := NewService(store, &fakeEngine{result: recognized()}, nil)
	ctx := context.Background()

	created, err := svc.Create(ctx, "alice", CreateFields{Text: "mine"})
	require.NoError(t, err)

	_, err = svc.Get(ctx, created.ID, "bob")
	require.ErrorIs(t, err, ErrNotFound)

	text := "stolen"
	_, err = svc.Update(ctx, created.ID, "bob", UpdateFields{Text: &text})
	require.ErrorIs(t, err, ErrNotFound)

	require.ErrorIs(t, svc.Delete(ctx, created.ID, "bob"), ErrNotFound)

	// Deleting as the owner works and stays idempotent.
	require.NoError(t, svc.Delete(ctx, created.ID, "alice"))
	require.NoError(t, svc.Delete(ctx, created.ID, "alice"))
}

func TestListIsNewestFirst(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	svc := NewService(store, &fakeEngine{result: recognized()}, nil)
	ctx := context.Background()

	first, err := store.Create(ctx, "u1", CreateFields{Text: "first"})
	require.NoError(t, err)
	store.records[first.ID].CreatedAt = time.Now().Add(-time.Hour)

	_, err = store.Create(ctx, "u1", CreateFields{Text: "second"})
	require.NoError(t, err)
	_, err = store.Create(ctx, "other", CreateFields{Text: "not yours"})
	require.NoError(t, err)

	listed, err := svc.List(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, listed, 2)
	require.Equal(t, "second", listed[0].Text)
	require.Equal(t, "first", listed[1].Text)
}

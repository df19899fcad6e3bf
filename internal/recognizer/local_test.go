package recognizer

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// writeStub creates a fake helper executable so engine tests exercise the
// real pipe protocol without a Python runtime or model weights.
func writeStub(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("stub helpers require sh")
	}
	path := filepath.Join(t.TempDir(), "stub.sh")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755))
	return path
}

func newStubEngine(t *testing.T, body string) *LocalEngine {
	t.Helper()
	engine, err := NewLocalEngine(LocalConfig{
		Model:     "tiny",
		PythonBin: writeStub(t, body),
		Device:    "cpu",
	})
	require.NoError(t, err)
	t.Cleanup(func() { engine.Close() })
	return engine
}

const okStub = `echo '{"event":"ready"}'
while read -r line; do
  echo '{"text":" hello world","words":[{"word":" hello","start":0.0,"end":0.5},{"word":"   ","start":0.5,"end":0.6},{"word":"world","start":null,"end":null}]}'
done
`

func TestLocalEngineRecognize(t *testing.T) {
	engine := newStubEngine(t, okStub)

	res, err := engine.Recognize(context.Background(), Request{
		Data:     []byte("not really audio"),
		Filename: "a.wav",
	})
	require.NoError(t, err)
	require.Equal(t, " hello world", res.Text)

	// Blank tokens are dropped; unaligned tokens survive with nil offsets.
	require.Len(t, res.Words, 2)
	require.Equal(t, "hello", res.Words[0].Word)
	require.NotNil(t, res.Words[0].Start)
	require.Equal(t, 0.0, *res.Words[0].Start)
	require.Equal(t, 0.5, *res.Words[0].End)
	require.Equal(t, "world", res.Words[1].Word)
	require.Nil(t, res.Words[1].Start)
	require.Nil(t, res.Words[1].End)
}

func TestLocalEngineDecodeError(t *testing.T) {
	engine := newStubEngine(t, `echo '{"event":"ready"}'
while read -r line; do
  echo '{"error":"Invalid data found when processing input","error_kind":"decode"}'
done
`)

	_, err := engine.Recognize(context.Background(), Request{Data: []byte("junk"), Filename: "a.webm"})
	var decodeErr *DecodeError
	require.ErrorAs(t, err, &decodeErr)
}

func TestLocalEngineInferenceError(t *testing.T) {
	engine := newStubEngine(t, `echo '{"event":"ready"}'
while read -r line; do
  echo '{"error":"CUDA out of memory","error_kind":"inference"}'
done
`)

	_, err := engine.Recognize(context.Background(), Request{Data: []byte("x"), Filename: "a.wav"})
	var inferErr *InferenceError
	require.ErrorAs(t, err, &inferErr)
}

func TestLocalEngineHelperCrashSurfacesInferenceError(t *testing.T) {
	engine := newStubEngine(t, `echo '{"event":"ready"}'
read -r line
exit 7
`)

	_, err := engine.Recognize(context.Background(), Request{Data: []byte("x"), Filename: "a.wav"})
	var inferErr *InferenceError
	require.ErrorAs(t, err, &inferErr)

	// The next call restarts the helper instead of reusing the dead one.
	_, err = engine.Recognize(context.Background(), Request{Data: []byte("x"), Filename: "a.wav"})
	require.ErrorAs(t, err, &inferErr)
}

func TestLocalEngineRejectsBadGreeting(t *testing.T) {
	stub := writeStub(t, `echo 'loading model, please wait'`)
	_, err := NewLocalEngine(LocalConfig{Model: "tiny", PythonBin: stub, Device: "cpu"})
	require.Error(t, err)
}

// echoStub reflects the request line back as the transcript text so tests can
// observe what the engine sent.
const echoStub = `echo '{"event":"ready"}'
while read -r line; do
  escaped=$(printf '%s' "$line" | sed 's/\\/\\\\/g; s/"/\\"/g')
  printf '{"text":"%s","words":[]}\n' "$escaped"
done
`

func TestLocalEngineForwardsLanguageAndSuffix(t *testing.T) {
	engine := newStubEngine(t, echoStub)

	res, err := engine.Recognize(context.Background(), Request{
		Data:     []byte("x"),
		Filename: "voice.ogg",
		Language: "lt",
	})
	require.NoError(t, err)
	require.Contains(t, res.Text, `"language":"lt"`)
	require.Contains(t, res.Text, ".ogg")
}

func TestLocalEngineRemovesTempAudio(t *testing.T) {
	engine := newStubEngine(t, echoStub)

	res, err := engine.Recognize(context.Background(), Request{
		Data:     []byte("x"),
		Filename: "voice.wav",
	})
	require.NoError(t, err)

	var sent helperRequest
	require.NoError(t, json.Unmarshal([]byte(res.Text), &sent))
	require.True(t, strings.HasSuffix(sent.AudioPath, ".wav"))
	require.NoFileExists(t, sent.AudioPath)
}

func TestCollectWords(t *testing.T) {
	t.Parallel()

	start, end := 1.0, 1.5
	words := collectWords([]helperWord{
		{Word: " one ", Start: &start, End: &end},
		{Word: "\t"},
		{Word: "two"},
	})

	require.Len(t, words, 2)
	require.Equal(t, "one", words[0].Word)
	require.Equal(t, 1.0, *words[0].Start)
	require.Equal(t, "two", words[1].Word)
	require.Nil(t, words[1].Start)
}

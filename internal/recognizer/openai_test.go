package recognizer

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOpenAIEngineRecognize(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/audio/transcriptions", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(32<<20))
		require.Equal(t, "whisper-1", r.FormValue("model"))
		require.Equal(t, "verbose_json", r.FormValue("response_format"))
		require.Equal(t, "de", r.FormValue("language"))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"task": "transcribe",
			"language": "german",
			"duration": 1.2,
			"text": "guten tag",
			"words": [
				{"word": "guten", "start": 0.0, "end": 0.6},
				{"word": " ", "start": 0.6, "end": 0.65},
				{"word": "tag", "start": 0.65, "end": 1.1}
			]
		}`))
	}))
	defer srv.Close()

	engine := NewOpenAIEngine(OpenAIConfig{APIKey: "test", BaseURL: srv.URL + "/v1"})

	res, err := engine.Recognize(context.Background(), Request{
		Data:     []byte("fake audio"),
		Filename: "greeting.mp3",
		Language: "de",
	})
	require.NoError(t, err)
	require.Equal(t, "guten tag", res.Text)
	require.Len(t, res.Words, 2)
	require.Equal(t, "guten", res.Words[0].Word)
	require.Equal(t, 0.0, *res.Words[0].Start)
	require.Equal(t, "tag", res.Words[1].Word)
	require.Equal(t, 1.1, *res.Words[1].End)
}

func TestOpenAIEngineMapsBadRequestToDecodeError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error": {"message": "Invalid file format.", "type": "invalid_request_error"}}`))
	}))
	defer srv.Close()

	engine := NewOpenAIEngine(OpenAIConfig{APIKey: "test", BaseURL: srv.URL + "/v1"})

	_, err := engine.Recognize(context.Background(), Request{Data: []byte("junk"), Filename: "junk.wav"})
	var decodeErr *DecodeError
	require.ErrorAs(t, err, &decodeErr)
}

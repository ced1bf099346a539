package tts

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCleanText(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "empty input",
			in:   "",
			want: "",
		},
		{
			name: "plain text untouched",
			in:   "a pod is the smallest deployable unit",
			want: "a pod is the smallest deployable unit",
		},
		{
			name: "code block replaced",
			in:   "run this:\n```\nkubectl get pods\n```\ndone",
			want: "run this: [code block] done",
		},
		{
			name: "inline code unwrapped",
			in:   "use `kubectl` here",
			want: "use kubectl here",
		},
		{
			name: "markdown stripped",
			in:   "**bold** and *italic* and ## header",
			want: "bold and italic and header",
		},
		{
			name: "urls replaced",
			in:   "see https://kubernetes.io/docs for more",
			want: "see [link] for more",
		},
		{
			name: "whitespace collapsed",
			in:   "too   many\n\nspaces",
			want: "too many spaces",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CleanText(tt.in))
		})
	}
}

func TestCleanText_TruncatesLongInput(t *testing.T) {
	long := strings.Repeat("a", maxTextLength+500)
	got := CleanText(long)
	assert.Len(t, got, maxTextLength+3)
	assert.True(t, strings.HasSuffix(got, "..."))
}

func TestSynthesize_Success(t *testing.T) {
	audio := []byte{0xff, 0xf3, 0x01, 0x02}
	var gotAuth string
	var gotBody map[string]interface{}

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		assert.Equal(t, "/audio/speech", r.URL.Path)
		w.Write(audio)
	}))
	defer ts.Close()

	client := NewClient(Config{BaseURL: ts.URL, APIKey: "test-key", Logger: zerolog.Nop()})

	result := client.Synthesize(context.Background(), "hello there", false)

	assert.True(t, result.Success)
	assert.Equal(t, base64.StdEncoding.EncodeToString(audio), result.AudioBase64)
	assert.Equal(t, "mp3", result.Format)
	assert.Equal(t, "en", result.Language)
	assert.Equal(t, len("hello there"), result.TextLength)
	assert.Empty(t, result.Error)

	assert.Equal(t, "Bearer test-key", gotAuth)
	assert.Equal(t, "tts-1", gotBody["model"])
	assert.Equal(t, "alloy", gotBody["voice"])
	assert.Equal(t, "hello there", gotBody["input"])
	assert.InDelta(t, 1.0, gotBody["speed"].(float64), 0.001)
}

func TestSynthesize_SlowSpeed(t *testing.T) {
	var gotBody map[string]interface{}
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.Write([]byte{1})
	}))
	defer ts.Close()

	client := NewClient(Config{BaseURL: ts.URL, APIKey: "k", Logger: zerolog.Nop()})
	result := client.Synthesize(context.Background(), "hello", true)

	assert.True(t, result.Success)
	assert.InDelta(t, 0.8, gotBody["speed"].(float64), 0.001)
}

func TestSynthesize_Guards(t *testing.T) {
	unconfigured := NewClient(Config{BaseURL: "http://unused", Logger: zerolog.Nop()})
	result := unconfigured.Synthesize(context.Background(), "hello", false)
	assert.False(t, result.Success)
	assert.Equal(t, "API key not configured", result.Error)

	client := NewClient(Config{BaseURL: "http://unused", APIKey: "k", Logger: zerolog.Nop()})

	result = client.Synthesize(context.Background(), "   ", false)
	assert.False(t, result.Success)
	assert.Equal(t, "No text provided for TTS conversion", result.Error)
}

func TestSynthesize_APIError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":{"message":"input too long"}}`))
	}))
	defer ts.Close()

	client := NewClient(Config{BaseURL: ts.URL, APIKey: "k", Logger: zerolog.Nop()})
	result := client.Synthesize(context.Background(), "hello", false)

	assert.False(t, result.Success)
	assert.Equal(t, "API error: 400 - input too long", result.Error)
}

func TestSynthesize_ConnectionFailure(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	ts.Close()

	client := NewClient(Config{BaseURL: ts.URL, APIKey: "k", Logger: zerolog.Nop()})
	result := client.Synthesize(context.Background(), "hello", false)

	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "API request failed")
}

func TestConfigured(t *testing.T) {
	assert.True(t, NewClient(Config{APIKey: "k"}).Configured())
	assert.False(t, NewClient(Config{}).Configured())
}

func TestLanguageSupport(t *testing.T) {
	assert.True(t, IsLanguageSupported("en"))
	assert.True(t, IsLanguageSupported("English"))
	assert.False(t, IsLanguageSupported("fr"))
	assert.Equal(t, map[string]string{"en": "English"}, SupportedLanguages())
}

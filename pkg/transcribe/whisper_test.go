package transcribe

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCleanTimestamps(t *testing.T) {
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
			name: "no timestamps",
			in:   "plain text",
			want: "plain text",
		},
		{
			name: "strips segment prefixes and joins",
			in:   "[00:00:00.000 --> 00:00:07.080] hello there\n[00:00:07.080 --> 00:00:09.120] how are you",
			want: "hello there how are you",
		},
		{
			name: "drops lines left empty after stripping",
			in:   "[00:00:00.000 --> 00:00:02.000] \n[00:00:02.000 --> 00:00:04.000] words",
			want: "words",
		},
		{
			name: "timestamp mid-line is untouched",
			in:   "spoke at [00:00:01.000 --> 00:00:02.000] noon",
			want: "spoke at [00:00:01.000 --> 00:00:02.000] noon",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CleanTimestamps(tt.in))
		})
	}
}

func TestTranscribe_Success(t *testing.T) {
	var gotPath, gotAuth, gotModel, gotLanguage, gotFilename string
	var gotAudio []byte

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, r.ParseMultipartForm(1<<20))
		gotModel = r.FormValue("model")
		gotLanguage = r.FormValue("language")
		file, header, err := r.FormFile("file")
		require.NoError(t, err)
		defer file.Close()
		gotFilename = header.Filename
		buf := make([]byte, header.Size)
		file.Read(buf)
		gotAudio = buf

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{
			"text":     "[00:00:00.000 --> 00:00:02.000] what is a pod",
			"language": "en",
		})
	}))
	defer ts.Close()

	client := NewClient(Config{BaseURL: ts.URL, APIKey: "test-key", Model: "whisper-1", Logger: zerolog.Nop()})

	result := client.Transcribe(context.Background(), []byte{1, 2, 3}, "voice.wav", "en")

	assert.True(t, result.Success)
	assert.Equal(t, "what is a pod", result.Text)
	assert.Equal(t, "en", result.Language)
	assert.Empty(t, result.Error)

	assert.Equal(t, "/audio/transcriptions", gotPath)
	assert.Equal(t, "Bearer test-key", gotAuth)
	assert.Equal(t, "whisper-1", gotModel)
	assert.Equal(t, "en", gotLanguage)
	assert.Equal(t, "voice.wav", gotFilename)
	assert.Equal(t, []byte{1, 2, 3}, gotAudio)
}

func TestTranscribe_MissingLanguageReportedUnknown(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"text": "hello"})
	}))
	defer ts.Close()

	client := NewClient(Config{BaseURL: ts.URL, Model: "whisper-1", Logger: zerolog.Nop()})

	result := client.Transcribe(context.Background(), []byte{1}, "voice.wav", "")

	assert.True(t, result.Success)
	assert.Equal(t, "unknown", result.Language)
}

func TestTranscribe_EmptyAudio(t *testing.T) {
	client := NewClient(Config{BaseURL: "http://unused", Model: "whisper-1", Logger: zerolog.Nop()})

	result := client.Transcribe(context.Background(), nil, "voice.wav", "")

	assert.False(t, result.Success)
	assert.Equal(t, "No audio data provided", result.Error)
}

func TestTranscribe_APIError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":{"message":"unsupported audio format"}}`))
	}))
	defer ts.Close()

	client := NewClient(Config{BaseURL: ts.URL, Model: "whisper-1", Logger: zerolog.Nop()})

	result := client.Transcribe(context.Background(), []byte{1}, "voice.xyz", "")

	assert.False(t, result.Success)
	assert.Equal(t, "API Error: unsupported audio format", result.Error)
}

func TestTranscribe_ConnectionFailure(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	ts.Close()

	client := NewClient(Config{BaseURL: ts.URL, Model: "whisper-1", Logger: zerolog.Nop()})

	result := client.Transcribe(context.Background(), []byte{1}, "voice.wav", "")

	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "API Error:")
}

func TestExtractErrorDetail(t *testing.T) {
	assert.Equal(t, "boom", extractErrorDetail([]byte(`{"error":{"message":"boom"}}`)))
	assert.Equal(t, "flat error", extractErrorDetail([]byte(`{"error":"flat error"}`)))
	assert.Equal(t, "plain body", extractErrorDetail([]byte("plain body")))
}

func TestSupportedFormats(t *testing.T) {
	formats := SupportedFormats()
	assert.Contains(t, formats, ".wav")
	assert.Contains(t, formats, ".mp3")
	assert.Contains(t, formats, ".webm")
}

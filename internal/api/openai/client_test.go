package openai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zorojean/lifekline/internal/apperr"
	platformhttp "github.com/zorojean/lifekline/internal/platform/http"
	"github.com/zorojean/lifekline/models"
)

func newTestClient() *Client {
	return NewClient(platformhttp.NewClient(platformhttp.ClientOptions{Timeout: 2 * time.Second, RequestsPerSec: 100}), Options{Temperature: 0.7, MaxTokens: 100})
}

func TestNormalizeSettings(t *testing.T) {
	tests := []struct {
		name      string
		in        models.APISettings
		wantField string
		want      models.APISettings
	}{
		{
			name: "trims and strips trailing slashes",
			in:   models.APISettings{Model: " gpt-4o ", BaseURL: " https://api.example.com/v1// ", APIKey: " sk-abc "},
			want: models.APISettings{Model: "gpt-4o", BaseURL: "https://api.example.com/v1", APIKey: "sk-abc"},
		},
		{name: "blank key", in: models.APISettings{Model: "m", BaseURL: "u", APIKey: "  "}, wantField: "apiKey"},
		{name: "blank url", in: models.APISettings{Model: "m", BaseURL: "///", APIKey: "k"}, wantField: "apiBaseUrl"},
		{name: "blank model", in: models.APISettings{BaseURL: "u", APIKey: "k"}, wantField: "modelName"},
		{name: "non ascii key", in: models.APISettings{Model: "m", BaseURL: "u", APIKey: "sk-测试123"}, wantField: "apiKey"},
		{name: "full width char", in: models.APISettings{Model: "m", BaseURL: "u", APIKey: "sk－abc"}, wantField: "apiKey"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeSettings(tt.in)
			if tt.wantField == "" {
				require.NoError(t, err)
				assert.Equal(t, tt.want, got)
				return
			}
			var cfgErr *apperr.ConfigError
			require.True(t, errors.As(err, &cfgErr), "got %v", err)
			assert.Equal(t, tt.wantField, cfgErr.Field)
			assert.NotEmpty(t, cfgErr.Message)
		})
	}
}

func TestCompleteRejectsNonASCIIKeyBeforeNetwork(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	}))
	defer srv.Close()

	_, err := newTestClient().Complete(context.Background(),
		models.APISettings{Model: "m", BaseURL: srv.URL, APIKey: "sk-测试123"},
		models.GenerationRequest{System: "s", User: "u"})

	assert.Equal(t, apperr.KindConfig, apperr.Kind(err))
	assert.Zero(t, atomic.LoadInt32(&calls))
}

func TestCompleteSendsChatRequest(t *testing.T) {
	var got chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"{\"chartPoints\":[]}"}}]}`))
	}))
	defer srv.Close()

	content, err := newTestClient().Complete(context.Background(),
		models.APISettings{Model: "gpt-test", BaseURL: srv.URL + "/v1/", APIKey: "sk-test"},
		models.GenerationRequest{System: "system text", User: "user text"})

	require.NoError(t, err)
	assert.Equal(t, `{"chartPoints":[]}`, content)
	assert.Equal(t, "gpt-test", got.Model)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, chatMessage{Role: "system", Content: "system text"}, got.Messages[0])
	assert.Equal(t, chatMessage{Role: "user", Content: "user text"}, got.Messages[1])
	require.NotNil(t, got.ResponseFormat)
	assert.Equal(t, "json_object", got.ResponseFormat.Type)
	assert.Equal(t, 100, got.MaxTokens)
}

func TestCompleteErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		kind   apperr.ErrorKind
	}{
		{"http error", http.StatusUnauthorized, `{"error":{"message":"invalid api key"}}`, apperr.KindTransport},
		{"no choices", http.StatusOK, `{"choices":[]}`, apperr.KindEmpty},
		{"blank content", http.StatusOK, `{"choices":[{"message":{"content":"  "}}]}`, apperr.KindEmpty},
		{"garbage envelope", http.StatusOK, `<html>gateway</html>`, apperr.KindMalformed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := newTestClient().Complete(context.Background(),
				models.APISettings{Model: "m", BaseURL: srv.URL, APIKey: "sk"},
				models.GenerationRequest{System: "s", User: "u"})

			assert.Equal(t, tt.kind, apperr.Kind(err))
			if tt.kind == apperr.KindTransport {
				var transportErr *apperr.TransportError
				require.True(t, errors.As(err, &transportErr))
				assert.Equal(t, tt.status, transportErr.StatusCode)
				assert.Contains(t, err.Error(), "invalid api key")
			}
		})
	}
}

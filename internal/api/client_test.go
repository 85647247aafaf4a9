package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/notification-center/internal/model"
)

func staticTokens(token string) TokenSource {
	return func() (string, error) { return token, nil }
}

func envelopeResponse(code int, message string, data interface{}) []byte {
	raw, _ := json.Marshal(data)
	out, _ := json.Marshal(map[string]interface{}{
		"code":    code,
		"message": message,
		"data":    json.RawMessage(raw),
	})
	return out
}

func TestList_sends_filter_and_decodes_envelope(t *testing.T) {
	var gotQuery map[string][]string
	var gotAuth string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query()
		gotAuth = r.Header.Get("Authorization")
		w.Write(envelopeResponse(0, "ok", ListResult{
			Notifications: []model.Notification{{ID: "1", Title: "hi"}},
			UnreadCount:   4,
			Total:         31,
			Page:          2,
			Size:          20,
		}))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, staticTokens("tok-123"))

	warn := model.TypeWarning
	result, err := client.List(context.Background(), model.ListFilter{
		Type:       &warn,
		UnreadOnly: true,
		SortBy:     "created_at",
		SortOrder:  model.SortDesc,
		Page:       2,
		Size:       20,
	})
	require.NoError(t, err)

	assert.Equal(t, "Bearer tok-123", gotAuth)
	assert.Equal(t, []string{"warning"}, gotQuery["type"])
	assert.Equal(t, []string{"true"}, gotQuery["unread_only"])
	assert.Equal(t, []string{"2"}, gotQuery["page"])

	require.Len(t, result.Notifications, 1)
	assert.Equal(t, "1", result.Notifications[0].ID)
	assert.Equal(t, 4, result.UnreadCount)
	assert.Equal(t, 31, result.Total)
}

func TestNonZeroEnvelopeCode_is_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(envelopeResponse(4004, "notification not found", nil))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, staticTokens("tok"))
	err := client.MarkRead(context.Background(), "ghost")
	require.Error(t, err)
	require.True(t, IsAPIError(err))

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 4004, apiErr.Code)
}

func TestUnauthorized_is_AuthError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, staticTokens("expired"))
	_, err := client.UnreadCount(context.Background())
	require.Error(t, err)
	assert.True(t, IsAuthError(err))
}

func TestMissingCredential_is_AuthError_without_request(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer srv.Close()

	client := NewClient(srv.URL, func() (string, error) {
		return "", assert.AnError
	})
	err := client.MarkAllRead(context.Background())
	require.Error(t, err)
	assert.True(t, IsAuthError(err))
	assert.False(t, called)
}

func TestServerError_is_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, staticTokens("tok"))
	err := client.Delete(context.Background(), "1")
	require.Error(t, err)
	assert.True(t, IsAPIError(err))
}

func TestRateLimit_is_retried(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts == 1 {
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write(envelopeResponse(0, "ok", map[string]int{"count": 3}))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, staticTokens("tok"))
	count, err := client.UnreadCount(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, count)
	assert.Equal(t, 2, attempts)
}

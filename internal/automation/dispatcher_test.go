package automation

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stealthtrack/internal/logger"
)

func testDispatcher(timeout time.Duration, bodyCap int) *Dispatcher {
	return NewDispatcher(timeout, bodyCap, logger.NopLogger())
}

func TestDispatchSuccess(t *testing.T) {
	var gotBody map[string]string
	var gotContentType string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotContentType = r.Header.Get("Content-Type")
		body, _ := io.ReadAll(r.Body)
		json.Unmarshal(body, &gotBody)
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"received":true}`))
	}))
	defer server.Close()

	d := testDispatcher(5*time.Second, 4096)
	payload := map[string]string{"email": "lead@example.com"}
	result := d.Dispatch(context.Background(), server.URL, payload)

	assert.True(t, result.Success)
	require.NotNil(t, result.HTTPStatus)
	assert.Equal(t, http.StatusOK, *result.HTTPStatus)
	assert.Nil(t, result.Error)
	require.NotNil(t, result.ResponseBody)
	assert.Equal(t, `{"received":true}`, *result.ResponseBody)
	assert.GreaterOrEqual(t, result.DurationMs, int64(0))

	assert.Equal(t, "application/json", gotContentType)
	assert.Equal(t, payload, gotBody)
}

func TestDispatchNon2xxIsSemanticFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		w.Write([]byte("nope"))
	}))
	defer server.Close()

	d := testDispatcher(5*time.Second, 4096)
	result := d.Dispatch(context.Background(), server.URL, map[string]string{})

	assert.False(t, result.Success)
	require.NotNil(t, result.HTTPStatus)
	assert.Equal(t, http.StatusTeapot, *result.HTTPStatus)
	// A received non-2xx is not a transport error.
	assert.Nil(t, result.Error)
	require.NotNil(t, result.ResponseBody)
	assert.Equal(t, "nope", *result.ResponseBody)
}

func TestDispatchTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(300 * time.Millisecond)
	}))
	defer server.Close()

	d := testDispatcher(50*time.Millisecond, 4096)
	result := d.Dispatch(context.Background(), server.URL, map[string]string{})

	assert.False(t, result.Success)
	assert.Nil(t, result.HTTPStatus)
	require.NotNil(t, result.Error)
	assert.Equal(t, "timeout", *result.Error)
	assert.Nil(t, result.ResponseBody)
	assert.GreaterOrEqual(t, result.DurationMs, int64(0))
}

func TestDispatchConnectionRefused(t *testing.T) {
	// Bind and immediately close to get a port nothing listens on.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	d := testDispatcher(2*time.Second, 4096)
	result := d.Dispatch(context.Background(), url, map[string]string{})

	assert.False(t, result.Success)
	assert.Nil(t, result.HTTPStatus)
	require.NotNil(t, result.Error)
	assert.NotEqual(t, "timeout", *result.Error)
}

func TestDispatchResponseBodyCapped(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(strings.Repeat("x", 10000)))
	}))
	defer server.Close()

	d := testDispatcher(5*time.Second, 1024)
	result := d.Dispatch(context.Background(), server.URL, map[string]string{})

	assert.True(t, result.Success)
	require.NotNil(t, result.ResponseBody)
	assert.Len(t, *result.ResponseBody, 1024)
}

func TestDispatchEmptyBodyIsNil(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	d := testDispatcher(5*time.Second, 4096)
	result := d.Dispatch(context.Background(), server.URL, map[string]string{})

	assert.True(t, result.Success)
	assert.Nil(t, result.ResponseBody, "absent body must be nil, not empty string")
}

func TestDispatchInvalidURL(t *testing.T) {
	d := testDispatcher(time.Second, 4096)
	result := d.Dispatch(context.Background(), "://not-a-url", map[string]string{})

	assert.False(t, result.Success)
	assert.Nil(t, result.HTTPStatus)
	assert.NotNil(t, result.Error)
}

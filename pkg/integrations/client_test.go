package integrations

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/matzehuels/planbridge/pkg/cache"
	"github.com/matzehuels/planbridge/pkg/errors"
	"github.com/matzehuels/planbridge/pkg/httputil"
)

func newTestClient(t *testing.T, server *httptest.Server, headers map[string]string) *Client {
	t.Helper()
	c, err := cache.NewFileCache(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	client := NewClient(c, "test", time.Hour, headers)
	if server != nil {
		client.SetHTTPClient(server.Client())
	}
	return client
}

func TestNewClient(t *testing.T) {
	headers := map[string]string{"Authorization": "Bearer token"}
	client := NewClient(nil, "test", time.Hour, headers)

	if client.http == nil {
		t.Error("NewClient() http client is nil")
	}
	if _, ok := client.cache.(*cache.NullCache); !ok {
		t.Error("NewClient(nil cache) should fall back to NullCache")
	}
	if client.headers["Authorization"] != "Bearer token" {
		t.Error("NewClient() headers not set correctly")
	}
}

func TestClientGet(t *testing.T) {
	type response struct {
		Message string `json:"message"`
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("expected GET, got %s", r.Method)
		}
		if r.Header.Get("X-Version") != "1" {
			t.Errorf("default header missing")
		}
		json.NewEncoder(w).Encode(response{Message: "hello"})
	}))
	defer server.Close()

	client := newTestClient(t, server, map[string]string{"X-Version": "1"})

	var resp response
	if err := client.Get(context.Background(), server.URL, &resp); err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if resp.Message != "hello" {
		t.Errorf("Get() message = %q, want %q", resp.Message, "hello")
	}
}

func TestClientGetWithHeadersOverridesDefaults(t *testing.T) {
	var received string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		received = r.Header.Get("X-Override")
		json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	}))
	defer server.Close()

	client := newTestClient(t, server, map[string]string{"X-Override": "default"})

	var resp map[string]string
	err := client.GetWithHeaders(context.Background(), server.URL, map[string]string{"X-Override": "overridden"}, &resp)
	if err != nil {
		t.Fatalf("GetWithHeaders() error: %v", err)
	}
	if received != "overridden" {
		t.Errorf("header = %q, want %q", received, "overridden")
	}
}

func TestClientPostAndWrite(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		w.Header().Set("Content-Type", ContentJSON)
		json.NewEncoder(w).Encode(map[string]string{
			"method":       r.Method,
			"content_type": r.Header.Get("Content-Type"),
			"body":         string(body),
		})
	}))
	defer server.Close()

	client := newTestClient(t, server, nil)
	ctx := context.Background()

	var got map[string]string
	if err := client.Post(ctx, server.URL, map[string]string{"query": "SELECT"}, &got); err != nil {
		t.Fatal(err)
	}
	if got["method"] != "POST" || got["content_type"] != ContentJSON || got["body"] != `{"query":"SELECT"}` {
		t.Errorf("Post() sent %v", got)
	}

	ops := []map[string]string{{"op": "add", "path": "/fields/System.Title", "value": "x"}}
	if err := client.Write(ctx, http.MethodPatch, server.URL, ContentJSONPatch, ops, &got); err != nil {
		t.Fatal(err)
	}
	if got["method"] != "PATCH" || got["content_type"] != ContentJSONPatch {
		t.Errorf("Write() sent %v", got)
	}

	if err := client.Do(ctx, http.MethodDelete, server.URL, "", nil, nil, nil); err != nil {
		t.Errorf("Do() with nil v: %v", err)
	}
}

func TestClientWriteDoesNotRetryServerErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client := newTestClient(t, server, nil)
	err := client.Write(context.Background(), http.MethodPost, server.URL, ContentJSON, map[string]int{}, nil)
	if !stderrors.Is(err, ErrNetwork) {
		t.Errorf("Write() error = %v, want ErrNetwork", err)
	}
	if httputil.IsRetryable(err) {
		t.Error("Write() should strip the retryable marker")
	}
	if calls.Load() != 1 {
		t.Errorf("calls = %d, want 1", calls.Load())
	}
}

func TestClientWriteRetriesRateLimit(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(`{"id": 7}`))
	}))
	defer server.Close()

	client := newTestClient(t, server, nil)
	var got struct{ ID int }
	if err := client.Write(context.Background(), http.MethodPost, server.URL, ContentJSON, struct{}{}, &got); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if got.ID != 7 || calls.Load() != 2 {
		t.Errorf("got %+v after %d calls", got, calls.Load())
	}
}

func TestClientErrorMessage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"message": "TF401320: Rule Error for field Title"}`))
	}))
	defer server.Close()

	client := newTestClient(t, server, nil)
	err := client.Get(context.Background(), server.URL, &struct{}{})
	if !stderrors.Is(err, ErrBadRequest) {
		t.Fatalf("error = %v, want ErrBadRequest", err)
	}
	if got := err.Error(); got != "INVALID_INPUT: request rejected: status 400: TF401320: Rule Error for field Title" {
		t.Errorf("error = %q", got)
	}
}

func TestClientCached(t *testing.T) {
	client := newTestClient(t, nil, nil)
	ctx := context.Background()

	type testData struct {
		Value string `json:"value"`
	}

	fetches := 0
	fetch := func(v *testData) func() error {
		return func() error {
			fetches++
			*v = testData{Value: "fetched"}
			return nil
		}
	}

	var first testData
	if err := client.Cached(ctx, "key", false, &first, fetch(&first)); err != nil {
		t.Fatalf("Cached() error: %v", err)
	}
	var second testData
	if err := client.Cached(ctx, "key", false, &second, fetch(&second)); err != nil {
		t.Fatalf("Cached() error: %v", err)
	}
	if fetches != 1 || second.Value != "fetched" {
		t.Errorf("fetches = %d, second = %+v; want a cache hit", fetches, second)
	}

	var third testData
	if err := client.Cached(ctx, "key", true, &third, fetch(&third)); err != nil {
		t.Fatal(err)
	}
	if fetches != 2 {
		t.Errorf("refresh should bypass the cache, fetches = %d", fetches)
	}
}

func TestClientCachedFetchError(t *testing.T) {
	client := newTestClient(t, nil, nil)

	fetches := 0
	var value string
	err := client.Cached(context.Background(), "missing", false, &value, func() error {
		fetches++
		return ErrNotFound
	})
	if !stderrors.Is(err, ErrNotFound) || fetches != 1 {
		t.Errorf("err = %v after %d fetches", err, fetches)
	}
}

func TestCheckStatus(t *testing.T) {
	tests := []struct {
		name      string
		code      int
		header    http.Header
		want      error
		wantCode  errors.Code
		retryable bool
	}{
		{name: "200 OK", code: 200},
		{name: "201 Created", code: 201},
		{name: "404", code: 404, want: ErrNotFound, wantCode: errors.ErrCodeNotFound},
		{name: "401", code: 401, want: ErrUnauthorized, wantCode: errors.ErrCodeUnauthorized},
		{name: "403", code: 403, want: ErrUnauthorized, wantCode: errors.ErrCodeUnauthorized},
		{name: "409", code: 409, want: ErrConflict, wantCode: errors.ErrCodeConflict},
		{name: "400", code: 400, want: ErrBadRequest, wantCode: errors.ErrCodeInvalidInput},
		{name: "429", code: 429, header: http.Header{"Retry-After": {"2"}}, wantCode: errors.ErrCodeRateLimited, retryable: true},
		{name: "500", code: 500, want: ErrNetwork, wantCode: errors.ErrCodeNetwork, retryable: true},
		{name: "503", code: 503, want: ErrNetwork, wantCode: errors.ErrCodeNetwork, retryable: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := checkStatus(tt.code, tt.header)
			if tt.wantCode == "" {
				if err != nil {
					t.Errorf("checkStatus() unexpected error: %v", err)
				}
				return
			}
			if tt.want != nil && !stderrors.Is(err, tt.want) {
				t.Errorf("checkStatus() = %v, want %v", err, tt.want)
			}
			if got := errors.GetCode(err); got != tt.wantCode {
				t.Errorf("code = %v, want %v", got, tt.wantCode)
			}
			if httputil.IsRetryable(err) != tt.retryable {
				t.Errorf("retryable = %v, want %v", httputil.IsRetryable(err), tt.retryable)
			}
		})
	}

	var re *httputil.RetryableError
	if err := checkStatus(429, http.Header{"Retry-After": {"2"}}); !stderrors.As(err, &re) || re.After != 2*time.Second {
		t.Errorf("429 should carry Retry-After, got %v", err)
	}
}

func TestJoinURL(t *testing.T) {
	got := JoinURL("https://dev.azure.com/", "contoso", "My Project", "_apis")
	if got != "https://dev.azure.com/contoso/My%20Project/_apis" {
		t.Errorf("JoinURL() = %q", got)
	}
}

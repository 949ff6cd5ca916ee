package airtableapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

func newTestSession(t *testing.T, h http.HandlerFunc, retries int) (*Session, *Client) {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	c, err := New(Options{BaseURL: srv.URL + "/", RequestsPerSecond: 1000, MaxRetries: retries, RetryDelay: time.Millisecond})
	require.NoError(t, err)
	c.sleep = func(context.Context, time.Duration) error { return nil }
	return c.As(oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "tok", TokenType: "Bearer"})), c
}

func TestNew_ValidatesBaseURL(t *testing.T) {
	for _, raw := range []string{"", "::", "ftp://x", "http://"} {
		_, err := New(Options{BaseURL: raw})
		require.Error(t, err, raw)
	}
}

func TestSession_Whoami(t *testing.T) {
	s, _ := newTestSession(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v0/meta/whoami", r.URL.Path)
		require.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"id":"usr1","email":"a@example.com","scopes":["data.records:write"]}`))
	}, 0)

	u, err := s.Whoami(context.Background())
	require.NoError(t, err)
	require.Equal(t, "usr1", u.ID)
	require.Equal(t, "a@example.com", u.Email)
}

func TestSession_ListBasesPaginates(t *testing.T) {
	var calls int32
	s, _ := newTestSession(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		switch r.URL.Query().Get("offset") {
		case "":
			_, _ = w.Write([]byte(`{"bases":[{"id":"app1","name":"One","permissionLevel":"create"}],"offset":"p2"}`))
		case "p2":
			_, _ = w.Write([]byte(`{"bases":[{"id":"app2","name":"Two","permissionLevel":"edit"}]}`))
		default:
			t.Fatalf("offset=%q", r.URL.Query().Get("offset"))
		}
	}, 0)

	bases, err := s.ListBases(context.Background())
	require.NoError(t, err)
	require.Len(t, bases, 2)
	require.Equal(t, "app2", bases[1].ID)
	require.EqualValues(t, 2, atomic.LoadInt32(&calls))
}

func TestSession_ListTables(t *testing.T) {
	s, _ := newTestSession(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v0/meta/bases/app1/tables", r.URL.Path)
		_, _ = w.Write([]byte(`{"tables":[{"id":"tbl1","name":"People","primaryFieldId":"fld1","fields":[
			{"id":"fld1","name":"Name","type":"singleLineText"},
			{"id":"fld2","name":"Role","type":"singleSelect","options":{"choices":[{"id":"sel1","name":"Dev","color":"blueLight2"}]}}
		]}]}`))
	}, 0)

	tables, err := s.ListTables(context.Background(), "app1")
	require.NoError(t, err)
	require.Len(t, tables, 1)
	f, ok := tables[0].Field("fld2")
	require.True(t, ok)
	require.Equal(t, "singleSelect", f.Type)
	require.NotNil(t, f.Options["choices"])

	_, err = s.ListTables(context.Background(), " ")
	require.Error(t, err)
}

func TestSession_CreateRecord(t *testing.T) {
	s, _ := newTestSession(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/v0/app1/tbl1", r.URL.Path)
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))
		var body struct {
			Fields   map[string]any `json:"fields"`
			Typecast bool           `json:"typecast"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.True(t, body.Typecast)
		require.Equal(t, "Ada", body.Fields["fld1"])
		_, _ = w.Write([]byte(`{"id":"rec1","createdTime":"2026-10-19T00:00:00.000Z","fields":{"fld1":"Ada"}}`))
	}, 0)

	rec, err := s.CreateRecord(context.Background(), "app1", "tbl1", map[string]any{"fld1": "Ada"})
	require.NoError(t, err)
	require.Equal(t, "rec1", rec.ID)
}

func TestSession_RetriesThrottled(t *testing.T) {
	var calls int32
	s, _ := newTestSession(t, func(w http.ResponseWriter, _ *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"errors":[{"error":"RATE_LIMIT_REACHED"}]}`))
			return
		}
		_, _ = w.Write([]byte(`{"id":"usr1"}`))
	}, 3)

	u, err := s.Whoami(context.Background())
	require.NoError(t, err)
	require.Equal(t, "usr1", u.ID)
	require.EqualValues(t, 3, atomic.LoadInt32(&calls))
}

func TestSession_GivesUpAfterRetries(t *testing.T) {
	var calls int32
	s, _ := newTestSession(t, func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusTooManyRequests)
	}, 1)

	_, err := s.Whoami(context.Background())
	require.True(t, IsStatus(err, http.StatusTooManyRequests))
	require.EqualValues(t, 2, atomic.LoadInt32(&calls))
}

func TestSession_DecodesErrors(t *testing.T) {
	cases := []struct {
		body    string
		status  int
		errType string
		message string
	}{
		{body: `{"error":{"type":"INVALID_VALUE_FOR_COLUMN","message":"Field \"Age\" cannot accept \"x\""}}`, status: 422, errType: "INVALID_VALUE_FOR_COLUMN", message: `Field "Age" cannot accept "x"`},
		{body: `{"error":"NOT_FOUND"}`, status: 404, errType: "NOT_FOUND"},
		{body: `gateway down`, status: 502, message: "gateway down"},
	}
	for _, tc := range cases {
		s, _ := newTestSession(t, func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(tc.status)
			_, _ = w.Write([]byte(tc.body))
		}, 0)
		_, err := s.CreateRecord(context.Background(), "app1", "tbl1", map[string]any{})
		apiErr, ok := errors.AsType[*APIError](err)
		require.True(t, ok, "err=%v", err)
		require.Equal(t, tc.status, apiErr.StatusCode)
		require.Equal(t, tc.errType, apiErr.Type)
		require.Equal(t, tc.message, apiErr.Message)
	}
}

func TestRetryAfter(t *testing.T) {
	resp := &http.Response{Header: http.Header{}}
	require.Equal(t, time.Second, retryAfter(resp, time.Second))
	resp.Header.Set("Retry-After", "30")
	require.Equal(t, 30*time.Second, retryAfter(resp, time.Second))
	resp.Header.Set("Retry-After", "soon")
	require.Equal(t, time.Second, retryAfter(resp, time.Second))
}

package airtableapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	"go.uber.org/ratelimit"
	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/jacksonlee411/tableform/modules/airtable/domain/types"
)

type Options struct {
	BaseURL           string
	RequestsPerSecond int
	MaxRetries        int
	RetryDelay        time.Duration
	Transport         http.RoundTripper
	Timeout           time.Duration
}

type Client struct {
	baseURL    string
	limiter    ratelimit.Limiter
	maxRetries int
	retryDelay time.Duration
	transport  http.RoundTripper
	timeout    time.Duration
	sleep      func(ctx context.Context, d time.Duration) error
}

// APIError is a non-2xx answer from Airtable.
type APIError struct {
	StatusCode int
	Type       string
	Message    string
}

func (e *APIError) Error() string {
	msg := strings.TrimSpace(e.Message)
	if msg == "" {
		msg = e.Type
	}
	if msg == "" {
		msg = http.StatusText(e.StatusCode)
	}
	return fmt.Sprintf("airtable: http %d: %s", e.StatusCode, msg)
}

func IsStatus(err error, status int) bool {
	apiErr, ok := errors.AsType[*APIError](err)
	return ok && apiErr.StatusCode == status
}

func New(opts Options) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		return nil, errors.New("airtable: missing api base url")
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, errors.New("airtable: invalid api base url")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, errors.New("airtable: invalid api base url scheme")
	}
	if u.Host == "" {
		return nil, errors.New("airtable: invalid api base url host")
	}

	rps := opts.RequestsPerSecond
	if rps <= 0 {
		rps = 5
	}
	retryDelay := opts.RetryDelay
	if retryDelay <= 0 {
		retryDelay = time.Second
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	transport := opts.Transport
	if transport == nil {
		transport = http.DefaultTransport
	}

	return &Client{
		baseURL:    baseURL,
		limiter:    ratelimit.New(rps, ratelimit.Per(time.Second)),
		maxRetries: max(opts.MaxRetries, 0),
		retryDelay: retryDelay,
		transport:  transport,
		timeout:    timeout,
		sleep:      sleepCtx,
	}, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Session issues calls on behalf of one connected account.
type Session struct {
	c    *Client
	http *http.Client
}

func (c *Client) As(ts oauth2.TokenSource) *Session {
	return &Session{
		c: c,
		http: &http.Client{
			Timeout:   c.timeout,
			Transport: &oauth2.Transport{Source: ts, Base: c.transport},
		},
	}
}

func (s *Session) Whoami(ctx context.Context) (types.User, error) {
	var out types.User
	if err := s.do(ctx, http.MethodGet, "/v0/meta/whoami", nil, nil, &out); err != nil {
		return types.User{}, err
	}
	if out.ID == "" {
		return types.User{}, errors.New("airtable: whoami returned no user id")
	}
	return out, nil
}

// ListBases follows offset pagination until every base is returned.
func (s *Session) ListBases(ctx context.Context) ([]types.Base, error) {
	bases := []types.Base{}
	offset := ""
	for {
		q := url.Values{}
		if offset != "" {
			q.Set("offset", offset)
		}
		var page struct {
			Bases  []types.Base `json:"bases"`
			Offset string       `json:"offset"`
		}
		if err := s.do(ctx, http.MethodGet, "/v0/meta/bases", q, nil, &page); err != nil {
			return nil, err
		}
		bases = append(bases, page.Bases...)
		if page.Offset == "" || page.Offset == offset {
			return bases, nil
		}
		offset = page.Offset
	}
}

func (s *Session) ListTables(ctx context.Context, baseID string) ([]types.Table, error) {
	baseID = strings.TrimSpace(baseID)
	if baseID == "" {
		return nil, errors.New("airtable: base id is required")
	}
	var out struct {
		Tables []types.Table `json:"tables"`
	}
	if err := s.do(ctx, http.MethodGet, "/v0/meta/bases/"+url.PathEscape(baseID)+"/tables", nil, nil, &out); err != nil {
		return nil, err
	}
	if out.Tables == nil {
		out.Tables = []types.Table{}
	}
	return out.Tables, nil
}

// CreateRecord appends one row. Cell values are coerced by Airtable
// (typecast), so select answers may name options that do not exist yet.
func (s *Session) CreateRecord(ctx context.Context, baseID string, tableID string, fields map[string]any) (types.CreatedRecord, error) {
	baseID = strings.TrimSpace(baseID)
	tableID = strings.TrimSpace(tableID)
	if baseID == "" || tableID == "" {
		return types.CreatedRecord{}, errors.New("airtable: base id and table id are required")
	}
	body := map[string]any{"fields": fields, "typecast": true}
	var out types.CreatedRecord
	if err := s.do(ctx, http.MethodPost, "/v0/"+url.PathEscape(baseID)+"/"+url.PathEscape(tableID), nil, body, &out); err != nil {
		return types.CreatedRecord{}, err
	}
	return out, nil
}

func (s *Session) do(ctx context.Context, method string, path string, query url.Values, body any, out any) error {
	var payload []byte
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		payload = b
	}
	target := s.c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	l := ctxzap.Extract(ctx)
	for attempt := 0; ; attempt++ {
		s.c.limiter.Take()

		req, err := http.NewRequestWithContext(ctx, method, target, bytes.NewReader(payload))
		if err != nil {
			return err
		}
		req.Header.Set("Accept", "application/json")
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := s.http.Do(req)
		if err != nil {
			return err
		}

		if retryable(resp.StatusCode) && attempt < s.c.maxRetries {
			wait := retryAfter(resp, time.Duration(attempt+1)*s.c.retryDelay)
			_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
			resp.Body.Close()
			l.Warn("airtable: throttled, retrying",
				zap.String("method", method),
				zap.String("path", path),
				zap.Int("status", resp.StatusCode),
				zap.Int("attempt", attempt+1),
				zap.Duration("wait", wait),
			)
			if err := s.c.sleep(ctx, wait); err != nil {
				return err
			}
			continue
		}

		err = decode(resp, out)
		resp.Body.Close()
		return err
	}
}

func retryable(status int) bool {
	return status == http.StatusTooManyRequests || status == http.StatusServiceUnavailable
}

func retryAfter(resp *http.Response, fallback time.Duration) time.Duration {
	raw := strings.TrimSpace(resp.Header.Get("Retry-After"))
	if raw == "" {
		return fallback
	}
	secs, err := strconv.Atoi(raw)
	if err != nil || secs <= 0 {
		return fallback
	}
	return time.Duration(secs) * time.Second
}

func decode(resp *http.Response, out any) error {
	if resp.StatusCode/100 != 2 {
		return readAPIError(resp)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func readAPIError(resp *http.Response) error {
	const maxBody = 4096
	b, _ := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	apiErr := &APIError{StatusCode: resp.StatusCode}

	var envelope struct {
		Error json.RawMessage `json:"error"`
	}
	if err := json.Unmarshal(b, &envelope); err != nil || len(envelope.Error) == 0 {
		apiErr.Message = strings.TrimSpace(string(b))
		return apiErr
	}
	var detail struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(envelope.Error, &detail); err == nil {
		apiErr.Type = detail.Type
		apiErr.Message = detail.Message
		return apiErr
	}
	var code string
	if err := json.Unmarshal(envelope.Error, &code); err == nil {
		apiErr.Type = code
	}
	return apiErr
}

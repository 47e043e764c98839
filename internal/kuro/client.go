// Package kuro is the HTTP client of the Kuro game companion API.
//
// Every endpoint goes through one CallFunc chain: the base transport posts a
// form and decodes the response envelope, and middleware layered on top adds
// logging, captcha solving and login status classification.
package kuro

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/HibiKier/wuthering-waves/internal/domain"
	"github.com/HibiKier/wuthering-waves/internal/metrics"
	"github.com/HibiKier/wuthering-waves/pkg/captcha"
	"github.com/HibiKier/wuthering-waves/pkg/notify"
)

const (
	DefaultBaseURL = "https://api.kurobbs.com"
	// GameID identifies Wuthering Waves among the games of a companion account.
	GameID = 3

	KuroVersion = "2.5.0"
)

// Request is one form POST to the companion API.
type Request struct {
	Endpoint string
	Header   http.Header
	Form     url.Values
	// PlayerID enables login status classification of the response when set.
	PlayerID string
}

func (r *Request) clone() *Request {
	form := url.Values{}
	for k, v := range r.Form {
		form[k] = append([]string(nil), v...)
	}
	return &Request{Endpoint: r.Endpoint, Header: r.Header.Clone(), Form: form, PlayerID: r.PlayerID}
}

// Response is the decoded envelope {code, msg, success, data}. A JSON string
// in data that itself holds JSON is replaced by the decoded document.
type Response struct {
	URL     string
	Code    int
	Msg     string
	Success bool
	Data    json.RawMessage
}

// OK reports whether the call succeeded at the business level.
func (r *Response) OK() bool {
	return r.Success || domain.IsSuccessCode(r.Code)
}

// DataString returns data when it is a plain JSON string.
func (r *Response) DataString() string {
	var s string
	if len(r.Data) > 0 && r.Data[0] == '"' && json.Unmarshal(r.Data, &s) == nil {
		return s
	}
	return ""
}

// Err returns nil for a successful response and an *domain.APIError otherwise.
func (r *Response) Err() error {
	if r.OK() {
		return nil
	}
	return domain.NewAPIError(r.URL, r.Code, r.Msg)
}

func decodeData[T any](resp *Response) (T, error) {
	var out T
	if len(resp.Data) == 0 || string(resp.Data) == "null" {
		return out, fmt.Errorf("failed to decode %s: empty data", resp.URL)
	}
	if err := json.Unmarshal(resp.Data, &out); err != nil {
		return out, fmt.Errorf("failed to decode %s: %w", resp.URL, err)
	}
	return out, nil
}

// CallFunc performs one logical call.
type CallFunc func(ctx context.Context, req *Request) (*Response, error)

// Middleware decorates a CallFunc.
type Middleware func(next CallFunc) CallFunc

// Chain applies middleware so that the first one listed is the outermost.
func Chain(call CallFunc, mws ...Middleware) CallFunc {
	for i := len(mws) - 1; i >= 0; i-- {
		call = mws[i](call)
	}
	return call
}

// Options configures a Client.
type Options struct {
	BaseURL    string
	HTTPClient *http.Client
	Timeout    time.Duration
	Platform   string
	// MaxAttempts bounds transport level retries of one request.
	MaxAttempts   uint
	RetryInterval time.Duration

	Solver          captcha.Solver
	CaptchaAttempts int

	Notifier notify.Notifier
	// OnExpired runs when a response says the session of a player expired.
	OnExpired ExpiredHook
	Metrics   *metrics.Metrics
}

type Client struct {
	http        *http.Client
	baseURL     string
	platform    string
	maxAttempts uint
	retryEvery  time.Duration
	metrics     *metrics.Metrics
	call        CallFunc
}

func New(opts Options) *Client {
	c := &Client{
		http:        opts.HTTPClient,
		baseURL:     strings.TrimRight(opts.BaseURL, "/"),
		platform:    opts.Platform,
		maxAttempts: opts.MaxAttempts,
		retryEvery:  opts.RetryInterval,
		metrics:     opts.Metrics,
	}
	if c.http == nil {
		timeout := opts.Timeout
		if timeout == 0 {
			timeout = 15 * time.Second
		}
		c.http = &http.Client{Timeout: timeout}
	}
	if c.baseURL == "" {
		c.baseURL = DefaultBaseURL
	}
	if c.platform == "" {
		c.platform = "ios"
	}
	if c.maxAttempts == 0 {
		c.maxAttempts = 3
	}
	if c.retryEvery == 0 {
		c.retryEvery = 500 * time.Millisecond
	}
	if c.metrics == nil {
		c.metrics = metrics.Discard()
	}
	notifier := opts.Notifier
	if notifier == nil {
		notifier = notify.LogNotifier{}
	}

	c.call = Chain(c.post,
		WithLogging(c.metrics),
		CheckLoginStatus(LoginHooks{OnExpired: opts.OnExpired, Notifier: notifier}, c.metrics),
		WithCaptchaRetry(opts.Solver, opts.CaptchaAttempts, c.metrics),
	)
	return c
}

// Platform is the source reported to the API, stored on bound sessions.
func (c *Client) Platform() string {
	return c.platform
}

// post is the base transport: it retries network failures and 5xx
// responses with exponential backoff and decodes the envelope.
func (c *Client) post(ctx context.Context, req *Request) (*Response, error) {
	endpoint := c.baseURL + req.Endpoint
	body := req.Form.Encode()

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.retryEvery

	resp, err := backoff.Retry(ctx, func() (*Response, error) {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(body))
		if err != nil {
			return nil, backoff.Permanent(err)
		}
		httpReq.Header = req.Header.Clone()
		if httpReq.Header == nil {
			httpReq.Header = http.Header{}
		}
		httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded; charset=utf-8")

		httpResp, err := c.http.Do(httpReq)
		if err != nil {
			return nil, err
		}
		defer httpResp.Body.Close()

		raw, err := io.ReadAll(httpResp.Body)
		if err != nil {
			return nil, err
		}

		if httpResp.StatusCode >= 500 || httpResp.StatusCode == http.StatusTooManyRequests {
			return nil, &domain.TransportError{URL: endpoint, StatusCode: httpResp.StatusCode, Err: errors.New(http.StatusText(httpResp.StatusCode))}
		}
		if httpResp.StatusCode >= 400 {
			return nil, backoff.Permanent(&domain.TransportError{URL: endpoint, StatusCode: httpResp.StatusCode, Err: errors.New(http.StatusText(httpResp.StatusCode))})
		}

		return decodeEnvelope(endpoint, raw), nil
	}, backoff.WithBackOff(b), backoff.WithMaxTries(c.maxAttempts))
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		var transportErr *domain.TransportError
		if errors.As(err, &transportErr) {
			return nil, transportErr
		}
		return nil, &domain.TransportError{URL: endpoint, Err: err}
	}

	return resp, nil
}

type envelope struct {
	Code    int             `json:"code"`
	Msg     string          `json:"msg"`
	Success *bool           `json:"success"`
	Data    json.RawMessage `json:"data"`
}

func decodeEnvelope(endpoint string, raw []byte) *Response {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		text := string(raw)
		quoted, _ := json.Marshal(text)
		return &Response{URL: endpoint, Code: domain.CodeUnknown, Msg: text, Success: false, Data: quoted}
	}

	resp := &Response{URL: endpoint, Code: env.Code, Msg: env.Msg, Success: true, Data: env.Data}
	// Some endpoints omit the success flag.
	if env.Success != nil {
		resp.Success = *env.Success
	}

	if s := resp.DataString(); s != "" {
		trimmed := bytes.TrimSpace([]byte(s))
		if len(trimmed) > 0 && (trimmed[0] == '{' || trimmed[0] == '[') && json.Valid(trimmed) {
			resp.Data = trimmed
		}
	}

	return resp
}

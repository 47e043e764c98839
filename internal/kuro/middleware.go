package kuro

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/HibiKier/wuthering-waves/internal/domain"
	"github.com/HibiKier/wuthering-waves/internal/metrics"
	"github.com/HibiKier/wuthering-waves/pkg/captcha"
	"github.com/HibiKier/wuthering-waves/pkg/notify"
)

// WithLogging logs every call with its business code and latency. Headers
// and form values are never logged since they carry tokens.
func WithLogging(m *metrics.Metrics) Middleware {
	return func(next CallFunc) CallFunc {
		return func(ctx context.Context, req *Request) (*Response, error) {
			start := time.Now()
			resp, err := next(ctx, req)
			elapsed := time.Since(start)

			if err != nil {
				m.RemoteRequests.WithLabelValues(req.Endpoint, "error").Inc()
				log.Warn().
					Err(err).
					Str("component", "kuro").
					Str("endpoint", req.Endpoint).
					Str("player_id", req.PlayerID).
					Dur("latency", elapsed).
					Msg("companion API call failed")
				return nil, err
			}

			outcome := "ok"
			if !resp.OK() {
				outcome = "rejected"
			}
			m.RemoteRequests.WithLabelValues(req.Endpoint, outcome).Inc()
			log.Debug().
				Str("component", "kuro").
				Str("endpoint", req.Endpoint).
				Str("player_id", req.PlayerID).
				Int("code", resp.Code).
				Bool("success", resp.Success).
				Dur("latency", elapsed).
				Msg("companion API call")
			return resp, nil
		}
	}
}

// captchaChallenge reports whether a rejected response asks for a slider.
func captchaChallenge(resp *Response) bool {
	if resp.Success || len(resp.Data) == 0 || resp.Data[0] != '{' {
		return false
	}
	var data map[string]json.RawMessage
	if err := json.Unmarshal(resp.Data, &data); err != nil {
		return false
	}
	raw, ok := data["geeTest"]
	if !ok {
		return false
	}
	s := strings.TrimSpace(string(raw))
	return s != "" && s != "null" && s != "false" && s != "0" && s != `""`
}

// WithCaptchaRetry solves a slider challenge with solver and repeats the
// request carrying the solution in geeTestData. Each challenge gets up to
// attempts solves; a challenge that survives them fails the call. Without a
// solver the rejected response is returned unchanged.
func WithCaptchaRetry(solver captcha.Solver, attempts int, m *metrics.Metrics) Middleware {
	if attempts <= 0 {
		attempts = 3
	}
	return func(next CallFunc) CallFunc {
		return func(ctx context.Context, req *Request) (*Response, error) {
			resp, err := next(ctx, req)
			if err != nil || solver == nil {
				return resp, err
			}

			for challenges := 0; captchaChallenge(resp); challenges++ {
				if challenges >= attempts {
					m.CaptchaTotal.WithLabelValues("exhausted").Inc()
					return nil, domain.NewAPIError(resp.URL, domain.CodeUnknown, "captcha challenge repeated after solving")
				}

				solution, err := solve(ctx, solver, attempts, req.Endpoint, m)
				if err != nil {
					return nil, err
				}

				retry := req.clone()
				retry.Form.Set("geeTestData", solution)
				resp, err = next(ctx, retry)
				if err != nil {
					return nil, err
				}
			}
			return resp, nil
		}
	}
}

func solve(ctx context.Context, solver captcha.Solver, attempts int, endpoint string, m *metrics.Metrics) (string, error) {
	var lastErr error
	for i := 0; i < attempts; i++ {
		solution, err := solver.Solve(ctx)
		if err == nil {
			m.CaptchaTotal.WithLabelValues("solved").Inc()
			return solution, nil
		}
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		lastErr = err
		log.Warn().
			Err(err).
			Str("component", "kuro").
			Str("endpoint", endpoint).
			Str("solver", solver.Name()).
			Int("attempt", i+1).
			Msg("captcha solve failed")
	}
	m.CaptchaTotal.WithLabelValues("failed").Inc()
	return "", fmt.Errorf("%w: %w", domain.NewAPIError(endpoint, domain.CodeUnknown, "captcha solve failed"), lastErr)
}

// ExpiredHook is told about sessions the API reports as expired. token is
// the session token the rejected request carried.
type ExpiredHook func(ctx context.Context, playerID, token string) error

// LoginHooks are the side effects of login status classification.
type LoginHooks struct {
	OnExpired ExpiredHook
	Notifier  notify.Notifier
}

var unboundMessages = map[string]struct{}{
	"请求成功":       {},
	"系统繁忙，请稍后再试": {},
}

// ClassifyLoginStatus maps a non-success response to a login status. The
// second value reports that the host itself is being blocked.
func ClassifyLoginStatus(resp *Response) (domain.LoginStatus, bool) {
	msg := resp.Msg
	if _, ok := unboundMessages[msg]; ok {
		return domain.LoginStatusUnbound, false
	}
	if strings.Contains(msg, "重新登录") || strings.Contains(msg, "登录已过期") {
		return domain.LoginStatusExpired, false
	}
	if strings.Contains(msg, "访问被阻断") {
		return domain.LoginStatusRateLimited, true
	}
	if data := resp.DataString(); strings.Contains(data, "RABC") || strings.Contains(data, "access denied") {
		return domain.LoginStatusRateLimited, true
	}
	return domain.LoginStatusUnknown, false
}

// CheckLoginStatus turns every non-success response of a call that names a
// player into a *domain.LoginStatusError. Expired sessions trigger
// OnExpired; blocked hosts and unknown failures alert the superusers.
func CheckLoginStatus(hooks LoginHooks, m *metrics.Metrics) Middleware {
	return func(next CallFunc) CallFunc {
		return func(ctx context.Context, req *Request) (*Response, error) {
			resp, err := next(ctx, req)
			if err != nil || req.PlayerID == "" || domain.IsSuccessCode(resp.Code) {
				return resp, err
			}

			status, blocked := ClassifyLoginStatus(resp)
			m.ProbeTotal.WithLabelValues(string(status)).Inc()
			logger := log.With().Str("component", "kuro").Str("player_id", req.PlayerID).Str("endpoint", req.Endpoint).Logger()

			switch {
			case status == domain.LoginStatusExpired:
				if hooks.OnExpired != nil {
					if err := hooks.OnExpired(ctx, req.PlayerID, req.Header.Get("token")); err != nil {
						logger.Error().Err(err).Msg("failed to expire session")
					}
				}
			case blocked:
				alert(ctx, hooks.Notifier, domain.CodeMessage(domain.CodeAccessBlocked), logger)
			case status == domain.LoginStatusUnknown && resp.Msg != "":
				alert(ctx, hooks.Notifier, resp.Msg, logger)
			}

			logger.Warn().Str("status", string(status)).Int("code", resp.Code).Msg("login status check failed")
			return nil, &domain.LoginStatusError{PlayerID: req.PlayerID, Status: status, Message: resp.Msg}
		}
	}
}

func alert(ctx context.Context, n notify.Notifier, message string, logger zerolog.Logger) {
	if n == nil {
		return
	}
	if err := n.NotifySuperusers(ctx, message); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error().Err(err).Msg("failed to alert superusers")
	}
}

package captcha

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

const (
	TTOCRProvider = "ttocr"

	defaultTTOCREndpoint = "http://api.ttocr.com/api/recognize"
	// DefaultCaptchaID is the GeeTest id of the companion app login slider.
	DefaultCaptchaID = "ec4aa4174277d822d73f2442a165a2cd"
	ttocrSliderItem  = 42
)

// TTOCRSolver delegates slider challenges to the ttocr recognition service.
type TTOCRSolver struct {
	client    *http.Client
	endpoint  string
	appKey    string
	captchaID string
}

type ttocrResponse struct {
	Status   int    `json:"status"`
	Msg      string `json:"msg"`
	ResultID string `json:"resultid"`
}

func NewTTOCRSolver(cfg Config) (Solver, error) {
	if cfg.AppKey == "" {
		return nil, fmt.Errorf("%w: ttocr app key is required", ErrNotConfigured)
	}

	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = defaultTTOCREndpoint
	}
	captchaID := cfg.CaptchaID
	if captchaID == "" {
		captchaID = DefaultCaptchaID
	}

	return &TTOCRSolver{
		client:    cfg.httpClient(),
		endpoint:  endpoint,
		appKey:    cfg.AppKey,
		captchaID: captchaID,
	}, nil
}

func (s *TTOCRSolver) Name() string {
	return TTOCRProvider
}

func (s *TTOCRSolver) Solve(ctx context.Context) (string, error) {
	form := url.Values{}
	form.Set("appkey", s.appKey)
	form.Set("gt", s.captchaID)
	form.Set("itemid", strconv.Itoa(ttocrSliderItem))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("failed to create captcha request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", &SolveError{Provider: TTOCRProvider, Message: "request failed", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", &SolveError{Provider: TTOCRProvider, Message: fmt.Sprintf("unexpected status %d", resp.StatusCode)}
	}

	var body ttocrResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", &SolveError{Provider: TTOCRProvider, Message: "invalid response", Err: err}
	}

	if body.Status != 1 {
		return "", &SolveError{Provider: TTOCRProvider, Message: body.Msg}
	}

	return body.ResultID, nil
}

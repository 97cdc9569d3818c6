// Package gds builds flight-order requests and submits them to the GDS
// booking API.
package gds

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

	"flight-booking-orchestrator/internal/models"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"
)

const (
	tokenPath = "/v1/security/oauth2/token"
	orderPath = "/v1/booking/flight-orders"

	maxResponseBody = 1 << 20
	tokenSkew       = 60 * time.Second
)

// ResponseRecorder archives raw provider responses. Keys are write-once.
type ResponseRecorder interface {
	SaveRawResponse(ctx context.Context, resp *models.RawResponse) error
}

type Options struct {
	BaseURL      string
	ClientID     string
	ClientSecret string
	Timeout      time.Duration
	RateLimit    float64
	Burst        int
	Cache        TokenCache
	Recorder     ResponseRecorder
	Logger       *zap.Logger
	HTTPClient   *http.Client
}

type Client struct {
	baseURL      string
	clientID     string
	clientSecret string
	httpClient   *http.Client
	cache        TokenCache
	recorder     ResponseRecorder
	limiter      *rate.Limiter
	group        singleflight.Group
	logger       *zap.Logger
	now          func() time.Time
}

// OrderConfirmation is the useful part of a successful flight-order response.
type OrderConfirmation struct {
	OrderID   string `json:"orderId"`
	Reference string `json:"reference"`
	Status    int    `json:"status"`
}

func NewClient(opts Options) *Client {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	cache := opts.Cache
	if cache == nil {
		cache = NewMemoryTokenCache()
	}
	limit := rate.Limit(opts.RateLimit)
	if opts.RateLimit <= 0 {
		limit = rate.Inf
	}
	burst := opts.Burst
	if burst <= 0 {
		burst = 1
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Client{
		baseURL:      strings.TrimRight(opts.BaseURL, "/"),
		clientID:     opts.ClientID,
		clientSecret: opts.ClientSecret,
		httpClient:   httpClient,
		cache:        cache,
		recorder:     opts.Recorder,
		limiter:      rate.NewLimiter(limit, burst),
		logger:       logger,
		now:          time.Now,
	}
}

func (c *Client) tokenKey() string {
	return c.clientID
}

// Token returns a cached access token or fetches a new one. Concurrent
// callers share a single in-flight refresh.
func (c *Client) Token(ctx context.Context) (string, error) {
	token, ok, err := c.cache.Get(ctx, c.tokenKey())
	if err != nil {
		c.logger.Warn("Token cache read failed", zap.Error(err))
	}
	if ok {
		return token, nil
	}

	v, err, _ := c.group.Do(c.tokenKey(), func() (any, error) {
		return c.fetchToken(ctx)
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (c *Client) fetchToken(ctx context.Context) (string, error) {
	form := url.Values{
		"grant_type":    {"client_credentials"},
		"client_id":     {c.clientID},
		"client_secret": {c.clientSecret},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+tokenPath, strings.NewReader(form.Encode()))
	if err != nil {
		return "", &AuthFailureError{Err: err}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", &AuthFailureError{Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return "", &AuthFailureError{Status: resp.StatusCode, Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		return "", &AuthFailureError{Status: resp.StatusCode, Err: errors.New(truncate(string(body), 200))}
	}

	var tr struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.Unmarshal(body, &tr); err != nil {
		return "", &AuthFailureError{Status: resp.StatusCode, Err: fmt.Errorf("failed to decode token: %w", err)}
	}
	if tr.AccessToken == "" {
		return "", &AuthFailureError{Status: resp.StatusCode, Err: errors.New("token response has no access_token")}
	}

	if ttl := time.Duration(tr.ExpiresIn)*time.Second - tokenSkew; ttl > 0 {
		if err := c.cache.Set(ctx, c.tokenKey(), tr.AccessToken, ttl); err != nil {
			c.logger.Warn("Token cache write failed", zap.Error(err))
		}
	}
	c.logger.Debug("Fetched access token", zap.Int("expiresIn", tr.ExpiresIn))
	return tr.AccessToken, nil
}

// CreateOrder submits the booking payload once. It returns an
// *AuthFailureError, *ProviderRejection or *UnknownProviderError on failure.
func (c *Client) CreateOrder(ctx context.Context, attemptID string, payload *OrderRequest) (*OrderConfirmation, error) {
	token, err := c.Token(ctx)
	if err != nil {
		return nil, err
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode order request: %w", err)
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, &UnknownProviderError{Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+orderPath, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/vnd.amadeus+json")
	req.Header.Set("Accept", "application/vnd.amadeus+json, application/json")

	start := c.now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("Flight order request failed", zap.String("attemptID", attemptID), zap.Error(err))
		return nil, &UnknownProviderError{Err: err}
	}
	defer resp.Body.Close()

	respBody, readErr := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	c.record(ctx, attemptID, resp.StatusCode, respBody)
	if readErr != nil {
		return nil, &UnknownProviderError{Status: resp.StatusCode, Err: readErr}
	}

	logger := c.logger.With(
		zap.String("attemptID", attemptID),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", c.now().Sub(start)),
	)

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		conf, err := parseConfirmation(respBody)
		if err != nil {
			logger.Warn("Unusable flight order response", zap.Error(err))
			return nil, &UnknownProviderError{Status: resp.StatusCode, Body: truncate(string(respBody), 500), Err: err}
		}
		conf.Status = resp.StatusCode
		logger.Info("Flight order created", zap.String("orderID", conf.OrderID), zap.String("reference", conf.Reference))
		return conf, nil
	}

	errs := parseErrors(resp.StatusCode, respBody)
	if resp.StatusCode == http.StatusUnauthorized {
		if err := c.cache.Delete(ctx, c.tokenKey()); err != nil {
			logger.Warn("Token cache delete failed", zap.Error(err))
		}
	}
	if len(errs) == 0 {
		logger.Warn("Flight order failed without error details")
		return nil, &UnknownProviderError{Status: resp.StatusCode, Body: truncate(string(respBody), 500)}
	}
	for _, pe := range errs {
		logger.Warn("Flight order rejected",
			zap.Int("code", pe.Code),
			zap.String("family", pe.Family),
			zap.String("message", pe.Message),
			zap.String("path", pe.Path),
		)
	}
	return nil, &ProviderRejection{Status: resp.StatusCode, Errors: errs}
}

func (c *Client) record(ctx context.Context, attemptID string, status int, body []byte) {
	if c.recorder == nil {
		return
	}
	now := c.now().UTC()
	raw := &models.RawResponse{
		Key:        fmt.Sprintf("%s-%s", attemptID, now.Format("20060102T150405.000000000")),
		AttemptID:  attemptID,
		StatusCode: status,
		Body:       string(body),
		RecordedAt: now,
	}
	if err := c.recorder.SaveRawResponse(ctx, raw); err != nil {
		c.logger.Warn("Failed to archive provider response", zap.String("key", raw.Key), zap.Error(err))
	}
}

func parseConfirmation(body []byte) (*OrderConfirmation, error) {
	var env struct {
		Data struct {
			ID                string `json:"id"`
			AssociatedRecords []struct {
				Reference string `json:"reference"`
			} `json:"associatedRecords"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("failed to decode order response: %w", err)
	}
	if env.Data.ID == "" {
		return nil, errors.New("order response has no id")
	}
	conf := &OrderConfirmation{OrderID: env.Data.ID}
	if len(env.Data.AssociatedRecords) > 0 {
		conf.Reference = env.Data.AssociatedRecords[0].Reference
	}
	if conf.Reference == "" {
		return nil, errors.New("order response has no booking reference")
	}
	return conf, nil
}

// flexInt accepts both 477 and "477".
type flexInt int

func (f *flexInt) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "" || s == "null" {
		*f = 0
		return nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return err
	}
	*f = flexInt(n)
	return nil
}

func parseErrors(status int, body []byte) []models.ProviderError {
	var env struct {
		Errors []struct {
			Status flexInt `json:"status"`
			Code   flexInt `json:"code"`
			Title  string  `json:"title"`
			Detail string  `json:"detail"`
			Source struct {
				Pointer   string `json:"pointer"`
				Parameter string `json:"parameter"`
			} `json:"source"`
		} `json:"errors"`
	}
	if err := json.Unmarshal(body, &env); err != nil {
		return nil
	}

	out := make([]models.ProviderError, 0, len(env.Errors))
	for _, e := range env.Errors {
		if e.Code == 0 && e.Title == "" && e.Detail == "" {
			continue
		}
		entryStatus := int(e.Status)
		if entryStatus == 0 {
			entryStatus = status
		}
		msg := e.Title
		if e.Detail != "" {
			if msg != "" {
				msg += ": "
			}
			msg += e.Detail
		}
		path := e.Source.Pointer
		if path == "" {
			path = e.Source.Parameter
		}
		out = append(out, models.ProviderError{
			Status:  entryStatus,
			Code:    int(e.Code),
			Family:  string(FamilyOf(int(e.Code))),
			Message: msg,
			Path:    path,
		})
	}
	return out
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

package instagram

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"igarchive/pkg/auth"
	"igarchive/pkg/codec"
	"igarchive/pkg/config"
	errs "igarchive/pkg/errors"
	"igarchive/pkg/logger"
	"igarchive/pkg/models"
	"igarchive/pkg/ratelimit"
)

// maxBodySize caps how much of a response body is read
const maxBodySize = 32 << 20

// Client fetches timeline pages from Instagram's GraphQL endpoint
type Client struct {
	httpClient *http.Client
	headers    map[string]string
	baseURL    string
	docID      string
	credential *auth.Credential
	limiter    ratelimit.Limiter
	logger     logger.Logger
}

// NewClient creates a client for the endpoint described by cfg. Credentials
// present in cfg are applied; requests are not paced until SetLimiter is called.
func NewClient(cfg config.InstagramConfig, timeout time.Duration, log logger.Logger) *Client {
	if log == nil {
		log = logger.GetLogger()
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = BaseURL
	}
	docID := cfg.DocID
	if docID == "" {
		docID = DefaultDocID
	}
	userAgent := cfg.UserAgent
	if userAgent == "" {
		userAgent = config.DefaultConfig().Instagram.UserAgent
	}

	c := &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		headers: map[string]string{
			"User-Agent":      userAgent,
			"Accept":          "*/*",
			"Accept-Language": "en-US,en;q=0.9",
			"X-IG-App-ID":     "936619743392459",
			"Sec-Fetch-Dest":  "empty",
			"Sec-Fetch-Mode":  "cors",
			"Sec-Fetch-Site":  "same-origin",
		},
		baseURL: baseURL,
		docID:   docID,
		limiter: ratelimit.Unlimited{},
		logger:  log,
	}

	if cfg.Token != "" || cfg.SessionID != "" {
		c.credential = &auth.Credential{
			Name:      "config",
			Token:     cfg.Token,
			SessionID: cfg.SessionID,
			CSRFToken: cfg.CSRFToken,
		}
	}

	return c
}

// SetHeader sets a custom header for the client
func (c *Client) SetHeader(key, value string) {
	c.headers[key] = value
}

// SetCredential replaces the credential applied to every request.
// A credential carrying its own user agent overrides the configured one.
func (c *Client) SetCredential(cred *auth.Credential) {
	c.credential = cred
	if cred != nil && cred.UserAgent != "" {
		c.headers["User-Agent"] = cred.UserAgent
	}
}

// HasCredential reports whether requests will be authenticated
func (c *Client) HasCredential() bool {
	return !c.credential.IsEmpty()
}

// SetLimiter sets the request pacer
func (c *Client) SetLimiter(l ratelimit.Limiter) {
	if l == nil {
		l = ratelimit.Unlimited{}
	}
	c.limiter = l
}

// SetHTTPClient replaces the underlying HTTP client
func (c *Client) SetHTTPClient(h *http.Client) {
	c.httpClient = h
}

// BaseURL returns the endpoint base URL
func (c *Client) BaseURL() string {
	return c.baseURL
}

// FetchPage fetches one page of target's timeline starting after cursor
// (nil for the newest post). batchSize is sent as is.
func (c *Client) FetchPage(ctx context.Context, target string, cursor *string, batchSize int) (*models.Page, error) {
	if strings.TrimSpace(target) == "" {
		return nil, errs.Configf("target username is required")
	}
	if !IsValidUsername(target) {
		return nil, errs.Configf("invalid username %q", target)
	}
	if batchSize <= 0 {
		return nil, errs.Configf("batch size must be positive, got %d", batchSize)
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	reqURL, err := GetTimelineURL(c.baseURL, c.docID, target, cursor, batchSize)
	if err != nil {
		return nil, errs.Wrap(errs.ErrorTypeConfig, err, "failed to build request URL")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, errs.Wrap(errs.ErrorTypeConfig, err, "failed to create request")
	}

	c.logger.DebugWithFields("fetching timeline page", map[string]interface{}{
		"target":     target,
		"cursor":     models.CursorString(cursor),
		"batch_size": batchSize,
	})

	resp, err := c.doRequest(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, &errs.Error{
			Type:    errs.ErrorTypeNetwork,
			Message: "failed to read response body",
			Code:    resp.StatusCode,
			Err:     err,
		}
	}

	if err := c.checkResponse(resp, body); err != nil {
		return nil, err
	}

	var parsed TimelineResponse
	if err := codec.Unmarshal(bytes.NewReader(body), &parsed); err != nil {
		c.logger.ErrorWithFields("failed to parse JSON response", map[string]interface{}{
			"target":       target,
			"status":       resp.StatusCode,
			"error":        err.Error(),
			"body_preview": preview(body),
		})
		return nil, &errs.Error{
			Type:    errs.ErrorTypeParsing,
			Message: "failed to parse timeline response",
			Code:    resp.StatusCode,
			Err:     err,
		}
	}

	if parsed.LoginRequired() {
		return nil, errs.New(errs.ErrorTypeAuth, http.StatusUnauthorized, "Instagram requires authentication to view this timeline")
	}

	if parsed.Data == nil || parsed.Data.Connection == nil {
		msg := "response has no timeline connection"
		if parsed.Message != "" {
			msg = fmt.Sprintf("%s (%s)", msg, parsed.Message)
		}
		c.logger.WarnWithFields("malformed timeline response", map[string]interface{}{
			"target":       target,
			"body_preview": preview(body),
		})
		return nil, errs.New(errs.ErrorTypeParsing, resp.StatusCode, "%s", msg)
	}

	page := parsed.Data.Connection.ToPage()

	c.logger.DebugWithFields("fetched timeline page", map[string]interface{}{
		"target":      target,
		"records":     page.Len(),
		"has_more":    page.HasMore,
		"next_cursor": page.NextCursor,
	})

	return page, nil
}

// doRequest performs an HTTP request with the configured headers and credential
func (c *Client) doRequest(req *http.Request) (*http.Response, error) {
	for key, value := range c.headers {
		req.Header.Set(key, value)
	}
	c.applyCredential(req)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	duration := time.Since(start)

	if err != nil {
		c.logger.WarnWithFields("HTTP request failed", map[string]interface{}{
			"method":   req.Method,
			"url":      req.URL.Path,
			"error":    err.Error(),
			"duration": duration,
		})
		return nil, errs.Wrap(errs.ErrorTypeNetwork, err, "request failed")
	}

	logger.LogRequest(c.logger, req.Method, req.URL.Path, resp.StatusCode, float64(duration.Microseconds())/1000)

	return resp, nil
}

// applyCredential adds the bearer token and session cookies, if any
func (c *Client) applyCredential(req *http.Request) {
	if c.credential == nil {
		return
	}

	if c.credential.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.credential.Token)
	}

	var cookies []string
	if c.credential.SessionID != "" {
		cookies = append(cookies, "sessionid="+c.credential.SessionID)
	}
	if c.credential.CSRFToken != "" {
		cookies = append(cookies, "csrftoken="+c.credential.CSRFToken)
		req.Header.Set("X-CSRFToken", c.credential.CSRFToken)
	}
	if len(cookies) > 0 {
		req.Header.Set("Cookie", strings.Join(cookies, "; "))
	}
}

// checkResponse maps the HTTP status (and login redirects) to a typed error
func (c *Client) checkResponse(resp *http.Response, body []byte) error {
	if resp.Request != nil && strings.HasPrefix(resp.Request.URL.Path, "/accounts/login") {
		c.logger.WarnWithFields("redirected to login page", map[string]interface{}{
			"status": resp.StatusCode,
		})
		return errs.New(errs.ErrorTypeAuth, http.StatusUnauthorized, "redirected to the login page")
	}

	status := resp.StatusCode
	switch {
	case status >= 200 && status < 300:
		return nil
	case status == http.StatusUnauthorized, status == http.StatusForbidden:
		return errs.New(errs.ErrorTypeAuth, status, "authentication required")
	case status == http.StatusNotFound:
		return errs.New(errs.ErrorTypeNotFound, status, "resource not found")
	case status == http.StatusTooManyRequests:
		retryAfter := parseRetryAfter(resp.Header.Get("Retry-After"), time.Now())
		logger.LogRateLimit(c.logger, GraphQLEndpoint, int(retryAfter.Seconds()))
		c.throttle()
		return &errs.Error{
			Type:       errs.ErrorTypeRateLimit,
			Message:    "rate limit exceeded",
			Code:       status,
			RetryAfter: retryAfter,
		}
	case status >= 500:
		return errs.New(errs.ErrorTypeServerError, status, "server error")
	}

	var parsed TimelineResponse
	if err := codec.Unmarshal(bytes.NewReader(body), &parsed); err == nil && parsed.LoginRequired() {
		return errs.New(errs.ErrorTypeAuth, status, "authentication required")
	}

	c.logger.ErrorWithFields("unexpected API error", map[string]interface{}{
		"status":       status,
		"body_preview": preview(body),
	})
	return errs.New(errs.ErrorTypeUnknown, status, "unexpected status code: %d", status)
}

// throttle halves the request rate of an adjustable limiter
func (c *Client) throttle() {
	tb, ok := c.limiter.(*ratelimit.TokenBucket)
	if !ok {
		return
	}

	rpm, burst := tb.Limits()
	if rpm <= 1 {
		return
	}
	tb.UpdateLimits(rpm/2, burst)
	c.logger.WarnWithFields("Slowing down requests", map[string]interface{}{
		"requests_per_minute": rpm / 2,
	})
}

// parseRetryAfter reads a Retry-After header given in seconds or as an HTTP date
func parseRetryAfter(value string, now time.Time) time.Duration {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(value); err == nil {
		if seconds < 0 {
			return 0
		}
		return time.Duration(seconds) * time.Second
	}
	if at, err := http.ParseTime(value); err == nil && at.After(now) {
		return at.Sub(now)
	}
	return 0
}

func preview(body []byte) string {
	s := string(body)
	if len(s) > 200 {
		s = s[:200] + "..."
	}
	return s
}

package agents

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	// KindHTTP — вид HTTP агента.
	KindHTTP = "http"

	defaultHTTPTimeout = 30 * time.Second
	maxResponseBody    = 10 * 1024 * 1024 // 10 MB
)

// Ключи параметров HTTP агента.
const (
	paramMethod          = "method"
	paramURL             = "url"
	paramHeaders         = "headers"
	paramBody            = "body"
	paramFollowRedirects = "follow_redirects"
	paramAllowErrors     = "allow_errors"
)

// HTTPAgent — агент, выполняющий HTTP запрос (webhook, внешний API).
//
// Параметры:
//
//	{
//	    "method": "POST",
//	    "url": "https://hooks.example.com/review",
//	    "headers": {"Authorization": "Bearer ..."},
//	    "body": {"summary": "${review.output}"},
//	    "follow_redirects": true,
//	    "allow_errors": false
//	}
//
// Output:
//
//	{
//	    "status_code": 200,
//	    "headers": {"Content-Type": "application/json", ...},
//	    "body": {...}  // JSON или строка
//	}
//
// Статус >= 400 считается ошибкой (HTTPError), если allow_errors не задан.
type HTTPAgent struct {
	client *http.Client
}

// NewHTTPAgent создаёт новый HTTPAgent.
func NewHTTPAgent() *HTTPAgent {
	return &HTTPAgent{
		client: &http.Client{Timeout: defaultHTTPTimeout},
	}
}

// Kind возвращает вид агента.
func (a *HTTPAgent) Kind() string {
	return KindHTTP
}

// Description возвращает описание агента.
func (a *HTTPAgent) Description() string {
	return "Performs an HTTP request and returns status, headers and body"
}

// Invoke выполняет HTTP запрос.
func (a *HTTPAgent) Invoke(ctx context.Context, req *Request) (*Response, error) {
	cfg, err := parseHTTPParams(req.Parameters)
	if err != nil {
		return nil, err
	}

	httpReq, err := a.buildRequest(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	client := a.client
	if !cfg.FollowRedirects {
		c := *a.client
		c.CheckRedirect = func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		}
		client = &c
	}

	resp, err := client.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %v", ErrAgentCancelled, ctx.Err())
		}
		return nil, fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	output, raw, err := parseHTTPResponse(resp)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode >= http.StatusBadRequest && !cfg.AllowErrors {
		return nil, &HTTPError{
			StatusCode: resp.StatusCode,
			Status:     http.StatusText(resp.StatusCode),
			Body:       truncate(raw, 512),
		}
	}

	return &Response{Output: output}, nil
}

type httpParams struct {
	Method          string
	URL             string
	Headers         map[string]string
	Body            any
	FollowRedirects bool
	AllowErrors     bool
}

func parseHTTPParams(params map[string]any) (*httpParams, error) {
	cfg := &httpParams{
		Method:          strings.ToUpper(GetString(params, paramMethod)),
		URL:             GetString(params, paramURL),
		Headers:         GetMapString(params, paramHeaders),
		Body:            params[paramBody],
		FollowRedirects: GetBool(params, paramFollowRedirects, true),
		AllowErrors:     GetBool(params, paramAllowErrors, false),
	}

	if cfg.URL == "" {
		return nil, fmt.Errorf("%w: %s: url is required", ErrInvalidParameters, KindHTTP)
	}
	if cfg.Method == "" {
		cfg.Method = http.MethodGet
	}
	if cfg.Headers == nil {
		cfg.Headers = make(map[string]string)
	}

	return cfg, nil
}

func (a *HTTPAgent) buildRequest(ctx context.Context, cfg *httpParams) (*http.Request, error) {
	var bodyReader io.Reader

	if cfg.Body != nil {
		bodyBytes, err := serializeBody(cfg.Body)
		if err != nil {
			return nil, fmt.Errorf("serialize body: %w", err)
		}
		bodyReader = bytes.NewReader(bodyBytes)

		if _, ok := cfg.Headers["Content-Type"]; !ok {
			cfg.Headers["Content-Type"] = "application/json"
		}
	}

	req, err := http.NewRequestWithContext(ctx, cfg.Method, cfg.URL, bodyReader)
	if err != nil {
		return nil, err
	}
	for key, value := range cfg.Headers {
		req.Header.Set(key, value)
	}

	return req, nil
}

func serializeBody(body any) ([]byte, error) {
	switch v := body.(type) {
	case string:
		return []byte(v), nil
	case []byte:
		return v, nil
	default:
		return json.Marshal(v)
	}
}

// parseHTTPResponse возвращает Output и сырое тело ответа.
func parseHTTPResponse(resp *http.Response) (map[string]any, string, error) {
	bodyBytes, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return nil, "", fmt.Errorf("read response body: %w", err)
	}

	var body any
	if strings.Contains(resp.Header.Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(bodyBytes, &body); err != nil {
			body = string(bodyBytes)
		}
	} else {
		body = string(bodyBytes)
	}

	headers := make(map[string]string, len(resp.Header))
	for key := range resp.Header {
		headers[key] = resp.Header.Get(key)
	}

	return map[string]any{
		"status_code": resp.StatusCode,
		"headers":     headers,
		"body":        body,
	}, string(bodyBytes), nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// HTTPError — ответ с кодом ошибки.
type HTTPError struct {
	StatusCode int
	Status     string
	Body       string
}

// Error реализует интерфейс error.
func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Status)
}

// IsHTTPError проверяет, является ли ошибка HTTP ошибкой.
func IsHTTPError(err error) bool {
	var httpErr *HTTPError
	return errors.As(err, &httpErr)
}

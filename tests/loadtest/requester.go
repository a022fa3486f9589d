package main

import (
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

type RequestResult struct {
	Success        bool
	StatusCode     int
	Duration       time.Duration
	BytesReceived  int
	RewriteSource  string
	URLsRewritten  int
	RequestID      string
	Error          string
	ExpectedStatus int
	IsMismatch     bool
	Host           string
	URL            string
}

// buildRequest dials the gateway address but carries the target URL's host,
// which is how the gateway resolves tenants.
func buildRequest(gateway string, targetURL string, userAgent string) (*http.Request, error) {
	parsed, err := url.Parse(targetURL)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequest("GET", gateway+parsed.RequestURI(), nil)
	if err != nil {
		return nil, err
	}

	req.Host = parsed.Host
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("X-Request-ID", uuid.New().String())

	return req, nil
}

func executeRequest(client *http.Client, req *http.Request, expectedStatus int, host string, targetURL string) *RequestResult {
	start := time.Now()

	resp, err := client.Do(req)
	elapsed := time.Since(start)

	if err != nil {
		return &RequestResult{
			Success:        false,
			Error:          categorizeError(err),
			Duration:       elapsed,
			ExpectedStatus: expectedStatus,
			Host:           host,
			URL:            targetURL,
		}
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return &RequestResult{
			Success:        false,
			Error:          "body_read_error",
			Duration:       elapsed,
			StatusCode:     resp.StatusCode,
			RequestID:      resp.Header.Get("X-Request-ID"),
			ExpectedStatus: expectedStatus,
			Host:           host,
			URL:            targetURL,
		}
	}

	urlsRewritten := 0
	if countStr := resp.Header.Get("X-Rewrite-Count"); countStr != "" {
		if n, err := strconv.Atoi(countStr); err == nil {
			urlsRewritten = n
		}
	}

	isMismatch := false
	if expectedStatus > 0 && expectedStatus != resp.StatusCode {
		isMismatch = true
	}

	return &RequestResult{
		Success:        true,
		StatusCode:     resp.StatusCode,
		Duration:       elapsed,
		BytesReceived:  len(bodyBytes),
		RewriteSource:  resp.Header.Get("X-Rewrite-Source"),
		URLsRewritten:  urlsRewritten,
		RequestID:      resp.Header.Get("X-Request-ID"),
		ExpectedStatus: expectedStatus,
		IsMismatch:     isMismatch,
		Host:           host,
		URL:            targetURL,
	}
}

func categorizeError(err error) string {
	errStr := err.Error()

	if os.IsTimeout(err) || strings.Contains(errStr, "timeout") {
		return "timeout"
	}

	if strings.Contains(errStr, "connection refused") || strings.Contains(errStr, "connection reset") {
		return "connection_refused"
	}

	if strings.Contains(errStr, "no such host") {
		return "dns_error"
	}

	return "network_error_other"
}

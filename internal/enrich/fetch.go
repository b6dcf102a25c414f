package enrich

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"syscall"
	"time"
)

// ErrRetriesExhausted wraps the last transient error of a fetch that used
// every attempt.
var ErrRetriesExhausted = errors.New("retries exhausted")

// response is a fully read HTTP response. body is only read for 200.
type response struct {
	status      int
	contentType string
	body        []byte
	truncated   bool     // body was cut at MaxBodyBytes
	url         *url.URL // final URL after redirects
}

// IsTransient reports whether err is worth retrying: timeouts, connection
// resets and refusals, DNS failures and truncated bodies. Cancellation is
// never transient.
func IsTransient(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
		return true
	}
	if errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNABORTED) ||
		errors.Is(err, syscall.EPIPE) {
		return true
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded)
}

// fetch GETs uri, retrying transient failures up to Retries attempts in
// total. Non-200 responses are returned, not treated as errors.
func (r *run) fetch(ctx context.Context, uri string) (*response, error) {
	var lastErr error
	for attempt := 1; attempt <= r.opts.Retries; attempt++ {
		resp, err := r.get(ctx, uri)
		if err == nil {
			return resp, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if !IsTransient(err) {
			return nil, err
		}
		lastErr = err
		r.logger.Warn("transient fetch error",
			"uri", uri, "attempt", attempt, "remaining", r.opts.Retries-attempt, "error", err)
		if attempt == r.opts.Retries {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Duration(attempt) * r.opts.RetryDelay):
		}
	}
	return nil, fmt.Errorf("%w: %s: %w", ErrRetriesExhausted, uri, lastErr)
}

func (r *run) get(ctx context.Context, uri string) (*response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
	if err != nil {
		return nil, err
	}
	if r.opts.UserAgent != "" {
		req.Header.Set("User-Agent", r.opts.UserAgent)
	}
	r.logger.Debug("get", "uri", uri)
	resp, err := r.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	out := &response{
		status:      resp.StatusCode,
		contentType: resp.Header.Get("Content-Type"),
		url:         req.URL,
	}
	if resp.Request != nil && resp.Request.URL != nil {
		out.url = resp.Request.URL
	}
	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
		return out, nil
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, r.opts.MaxBodyBytes+1))
	if err != nil {
		return nil, err
	}
	if int64(len(body)) > r.opts.MaxBodyBytes {
		body, out.truncated = body[:r.opts.MaxBodyBytes], true
	}
	out.body = body
	return out, nil
}

package sms

import (
	"bytes"
	"context"
	crand "crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"rentdesk/internal/adapters/observability"
)

const maxAttempts = 4

var (
	ErrUnauthorized = errors.New("sms: unauthorized")
	ErrRejected     = errors.New("sms: message rejected")
)

// Client talks to the SMS gateway's JSON API.
type Client struct {
	base   string
	hc     *http.Client
	key    string
	sender string
	rl     *rate.Limiter
}

func New(base, key, sender string, rps int) (*Client, error) {
	if key == "" {
		return nil, fmt.Errorf("sms API key is required")
	}
	if base == "" {
		return nil, fmt.Errorf("sms base URL is required")
	}
	if rps <= 0 {
		rps = 5
	}
	return &Client{
		base:   strings.TrimRight(base, "/"),
		hc:     &http.Client{Timeout: 20 * time.Second},
		key:    key,
		sender: sender,
		rl:     rate.NewLimiter(rate.Limit(rps), rps),
	}, nil
}

type sendRequest struct {
	From    string `json:"from,omitempty"`
	To      string `json:"to"`
	Message string `json:"message"`
}

type sendResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// Send submits one message and returns the gateway's message id.
// Retries on 429 and transient 5xx, honoring Retry-After when provided. Every
// attempt carries the same Idempotency-Key so a retried POST is not delivered twice.
func (c *Client) Send(ctx context.Context, to, body string) (string, error) {
	if err := c.rl.Wait(ctx); err != nil {
		return "", err
	}
	payload, err := json.Marshal(sendRequest{From: c.sender, To: to, Message: body})
	if err != nil {
		return "", err
	}
	idem := uuid.NewString()
	url := c.base + "/messages"

	var lastErr error
	for i := 0; i < maxAttempts; i++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
		if err != nil {
			return "", err
		}
		req.Header.Set("X-API-Key", c.key)
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json")
		req.Header.Set("Idempotency-Key", idem)
		req.Header.Set("User-Agent", "rentdesk/1.0")

		start := time.Now()
		resp, err := c.hc.Do(req)
		if err != nil {
			observability.ObserveExternal("sms", "messages", 0, time.Since(start))
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			lastErr = err
			if i < maxAttempts-1 && sleepCtx(ctx, backoff(i)) {
				continue
			}
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			return "", lastErr
		}
		observability.ObserveExternal("sms", "messages", resp.StatusCode, time.Since(start))

		switch resp.StatusCode {
		case http.StatusOK, http.StatusCreated, http.StatusAccepted:
			var out sendResponse
			err := json.NewDecoder(resp.Body).Decode(&out)
			resp.Body.Close()
			if err != nil {
				return "", fmt.Errorf("decode sms response: %w", err)
			}
			return out.ID, nil

		case http.StatusUnauthorized, http.StatusForbidden:
			resp.Body.Close()
			return "", ErrUnauthorized

		case http.StatusTooManyRequests, http.StatusInternalServerError,
			http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			wait := retryAfter(resp)
			resp.Body.Close()
			if wait == 0 {
				wait = backoff(i)
			}
			lastErr = fmt.Errorf("sms gateway %d", resp.StatusCode)
			if i < maxAttempts-1 && sleepCtx(ctx, wait) {
				continue
			}
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			return "", lastErr

		default:
			b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			resp.Body.Close()
			return "", fmt.Errorf("%w: status %d: %s", ErrRejected, resp.StatusCode, strings.TrimSpace(string(b)))
		}
	}
	return "", lastErr
}

// LogSender writes messages to the log instead of a gateway. Used when no
// gateway key is configured.
type LogSender struct{}

func (LogSender) Send(_ context.Context, to, body string) (string, error) {
	id := "log-" + uuid.NewString()
	log.Info().Str("to", to).Int("len", len(body)).Str("ref", id).Msg("sms (log only)")
	return id, nil
}

// sleepCtx waits for d or returns early if ctx is done.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// retryAfter parses Retry-After (seconds or HTTP-date). Returns 0 if absent or invalid.
func retryAfter(resp *http.Response) time.Duration {
	h := resp.Header.Get("Retry-After")
	if h == "" {
		return 0
	}
	if secs, err := strconv.Atoi(strings.TrimSpace(h)); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(h); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}

// backoff doubles from 200ms per attempt with up to +50% jitter.
func backoff(i int) time.Duration {
	base := time.Duration(1<<i) * 200 * time.Millisecond
	var b [1]byte
	if _, err := crand.Read(b[:]); err != nil {
		return base
	}
	f := float64(b[0]) / 255.0
	return base + time.Duration(0.5*f*float64(base))
}

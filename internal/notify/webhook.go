// Package notify posts review completion events to a webhook.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/park285/chess-review/pkg/reviewdto"
)

var ErrWebhookStatus = errors.New("webhook returned error status")

// HeaderProvider allows injecting per-request headers
type HeaderProvider func() map[string]string

type Webhook struct {
	url     string
	http    *fasthttp.Client
	headers HeaderProvider
	logger  *zap.Logger

	defaultTimeout time.Duration
	retryMax       int
	backoffBase    time.Duration
}

type Option func(*Webhook)

func WithTimeout(d time.Duration) Option {
	return func(w *Webhook) { w.defaultTimeout = d }
}

func WithHeaderProvider(h HeaderProvider) Option {
	return func(w *Webhook) { w.headers = h }
}

func WithRetry(max int) Option {
	return func(w *Webhook) { w.retryMax = max }
}

func WithBackoff(base time.Duration) Option {
	return func(w *Webhook) { w.backoffBase = base }
}

func WithLogger(l *zap.Logger) Option {
	return func(w *Webhook) { w.logger = l }
}

func NewWebhook(url string, opts ...Option) *Webhook {
	w := &Webhook{
		url:            strings.TrimSpace(url),
		http:           &fasthttp.Client{ReadTimeout: 10 * time.Second, WriteTimeout: 10 * time.Second, MaxConnsPerHost: 16},
		logger:         zap.NewNop(),
		defaultTimeout: 10 * time.Second,
		retryMax:       3,
		backoffBase:    100 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// NotifyReview posts n as JSON, retrying transport errors and 5xx answers.
func (w *Webhook) NotifyReview(ctx context.Context, n reviewdto.ReviewNotification) error {
	if w == nil || w.url == "" {
		return nil
	}
	payload, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer func() {
		fasthttp.ReleaseRequest(req)
		fasthttp.ReleaseResponse(resp)
	}()

	req.Header.SetMethod(fasthttp.MethodPost)
	req.SetRequestURI(w.url)
	req.Header.SetContentType("application/json")
	if w.headers != nil {
		for k, v := range w.headers() {
			if strings.TrimSpace(k) != "" && strings.TrimSpace(v) != "" {
				req.Header.Set(k, v)
			}
		}
	}
	req.SetBody(payload)

	attempts := w.retryMax
	if attempts <= 0 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			if lastErr != nil {
				return lastErr
			}
			return err
		}
		err := w.http.DoDeadline(req, resp, w.computeDeadline(ctx))
		if err == nil {
			status := resp.StatusCode()
			if status >= 200 && status < 300 {
				w.logger.Debug("webhook_delivered", zap.String("job", n.ID), zap.Int("attempt", attempt))
				return nil
			}
			err = fmt.Errorf("%w: status=%d body=%s", ErrWebhookStatus, status, truncate(string(resp.Body()), 512))
			if !shouldRetryStatus(status) {
				return err
			}
		} else {
			err = fmt.Errorf("webhook request failed: %w", err)
		}
		lastErr = err
		if attempt == attempts {
			break
		}
		w.logger.Debug("webhook_retry", zap.String("job", n.ID), zap.Int("attempt", attempt), zap.Error(err))
		if sleepErr := sleepWithContext(ctx, w.backoff(attempt)); sleepErr != nil {
			return lastErr
		}
	}
	return lastErr
}

func (w *Webhook) computeDeadline(ctx context.Context) time.Time {
	clientDL := time.Now().Add(w.defaultTimeout)
	if dl, ok := ctx.Deadline(); ok && dl.Before(clientDL) {
		return dl
	}
	return clientDL
}

func (w *Webhook) backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if attempt > 6 {
		attempt = 6
	}
	return time.Duration(1<<uint(attempt-1)) * w.backoffBase
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func shouldRetryStatus(code int) bool {
	switch code {
	case 500, 502, 503, 504:
		return true
	default:
		return false
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

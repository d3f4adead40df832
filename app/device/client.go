package device

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"tombola/config"
	"tombola/logger"
	"tombola/metrics"
)

const maxBody = 1 << 20

// Client talks to the camera and drum controllers. It keeps no recording
// state; every call is a single bounded attempt.
type Client struct {
	http          *http.Client
	cameras       [2]string
	qty           int
	cameraTimeout time.Duration
	drumURL       string
	drumTimeout   time.Duration
	apiKey        string
	storage       string
	format        string
	logger        *logger.Logger
	metrics       *metrics.Metrics
}

func NewClient(conf config.Config, logger *logger.Logger, metrics *metrics.Metrics) *Client {
	return &Client{
		http:          &http.Client{},
		cameras:       conf.Camera.Controllers,
		qty:           conf.Camera.Qty,
		cameraTimeout: conf.Camera.Timeout,
		drumURL:       conf.Drum.URL,
		drumTimeout:   conf.Drum.Timeout,
		apiKey:        conf.Drum.APIKey,
		storage:       conf.Camera.Storage,
		format:        conf.Camera.Format,
		logger:        logger,
		metrics:       metrics,
	}
}

func (c *Client) do(ctx context.Context, method, url string, payload any, timeout time.Duration) Outcome {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return Outcome{Kind: Malformed, Err: err}
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return Outcome{Kind: ConnectionError, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("api-key", c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return classify(err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return classify(err)
	}

	if resp.StatusCode != http.StatusOK {
		return Outcome{Kind: Rejected, StatusCode: resp.StatusCode, Body: data}
	}

	return Outcome{Kind: Success, StatusCode: resp.StatusCode, Body: data}
}

func classify(err error) Outcome {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return Outcome{Kind: TimedOut, Err: err}
	}
	return Outcome{Kind: ConnectionError, Err: err}
}

// report logs the outcome at the severity its kind calls for and counts it.
func (c *Client) report(target, action string, o Outcome, extras ...any) {
	c.metrics.ObserveDeviceCall(target, action, o.Kind.String())

	extras = append(extras, "target", target, "action", action)
	switch o.Kind {
	case Success:
		c.logger.LogDebug("device call completed", extras...)
	case Rejected:
		extras = append(extras, "status_code", o.StatusCode)
		c.logger.LogWarning(fmt.Errorf("status %d", o.StatusCode), fmt.Sprintf("Failed to %s - check %s status", action, target), extras...)
	case TimedOut:
		c.logger.LogError(o.Err, fmt.Sprintf("Timeout when calling %s on %s", action, target), extras...)
	case ConnectionError:
		extras = append(extras, "unclassified", true)
		c.logger.LogError(o.Err, fmt.Sprintf("Connection failure when calling %s on %s", action, target), extras...)
	case Malformed:
		c.logger.LogError(o.Err, fmt.Sprintf("Malformed response to %s from %s", action, target), extras...)
	case Skipped:
		c.logger.LogInfo(fmt.Sprintf("%s not installed, skipping %s", target, action), extras...)
	}
}

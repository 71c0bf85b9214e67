package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"chatguard/internal/metrics"

	"github.com/sirupsen/logrus"
)

// Client screens message text for phishing and spam. Classify never fails
// observably; see Result.
type Client interface {
	Classify(ctx context.Context, text string) Result
}

type HTTPClient struct {
	baseURL string
	timeout time.Duration
	client  *http.Client
	logger  *logrus.Logger
}

// NewClient builds a client for the prediction service at baseURL. The
// timeout bounds each Classify call; a single attempt is made per message so
// pipeline latency stays predictable.
func NewClient(baseURL string, timeout time.Duration, httpClient *http.Client, logger *logrus.Logger) Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}

	if logger == nil {
		logger = logrus.New()
		logger.SetLevel(logrus.WarnLevel)
	}

	return &HTTPClient{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		timeout: timeout,
		client:  httpClient,
		logger:  logger,
	}
}

// Classify sends text to the prediction endpoint and returns the resolved
// flags. Every failure path, transport error, timeout, non-200 status or
// unparsable body, resolves to an unflagged result (fail-open): the message
// is delivered unflagged rather than dropped.
func (c *HTTPClient) Classify(ctx context.Context, text string) Result {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	result, err := c.predict(ctx, text)
	if err != nil {
		metrics.IncrementCounter("classifier_failures", nil, "Classification calls resolved unflagged")
		c.logger.WithError(err).Warn("Classification failed, delivering message unflagged")
		return Result{}
	}

	return result
}

func (c *HTTPClient) predict(ctx context.Context, text string) (Result, error) {
	jsonData, err := json.Marshal(predictRequest{Message: text})
	if err != nil {
		return Result{}, fmt.Errorf("failed to marshal request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/predict", c.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewBuffer(jsonData))
	if err != nil {
		return Result{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("failed to send request: %w", err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			c.logger.WithError(closeErr).Debug("Failed to close response body")
		}
	}()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return Result{}, fmt.Errorf("classifier API error: status %d, body: %s", resp.StatusCode, string(bodyBytes))
	}

	var prediction predictResponse
	if err := json.NewDecoder(resp.Body).Decode(&prediction); err != nil {
		return Result{}, fmt.Errorf("failed to decode response: %w", err)
	}

	return Result{
		IsPhishing: bool(prediction.IsPhising),
		IsSpam:     bool(prediction.IsSpam),
	}, nil
}

package ai

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"sort"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"

	"github.com/aldoetobex/legal-consult-backend/internal/metrics"
	"github.com/aldoetobex/legal-consult-backend/pkg/apperr"
)

// AI backend endpoints.
const (
	EndpointChat        = "/chat"
	EndpointAskExisting = "/ask-existing"
	EndpointAskUpload   = "/ask-upload"
	EndpointAskContext  = "/ask-context"
	EndpointDefendCase  = "/defend-case"
)

// maxReplyBytes caps how much of a backend reply is read.
const maxReplyBytes = 8 << 20

// Reply is a raw backend response.
type Reply struct {
	Status int
	Body   []byte
}

// Text returns the first non-empty string among keys.
func (r *Reply) Text(keys ...string) string {
	for _, k := range keys {
		if v := gjson.GetBytes(r.Body, k); v.Exists() && v.String() != "" {
			return v.String()
		}
	}
	return ""
}

// Client talks to the AI backend over multipart HTTP.
type Client struct {
	baseURL string
	http    *http.Client
	logger  log.FieldLogger
}

func NewClient(baseURL string, timeout time.Duration, logger log.FieldLogger) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

// PostFields sends fields as a multipart form.
func (c *Client) PostFields(ctx context.Context, endpoint string, fields map[string]string) (*Reply, error) {
	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)

	// deterministic field order
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if err := w.WriteField(k, fields[k]); err != nil {
			return nil, apperr.Internal("Failed to build AI request", err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, apperr.Internal("Failed to build AI request", err)
	}

	return c.Forward(ctx, endpoint, w.FormDataContentType(), body)
}

// Forward relays body to endpoint unchanged and returns the reply whatever
// its status. Only transport failures are errors.
func (c *Client) Forward(ctx context.Context, endpoint, contentType string, body io.Reader) (*Reply, error) {
	start := time.Now()
	reply, err := c.do(ctx, endpoint, contentType, body)

	result := metrics.Result(err)
	if err == nil && reply.Status >= 300 {
		result = "error"
	}
	metrics.AIRequests.WithLabelValues(endpoint, result).Inc()
	metrics.AIDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())

	if err != nil {
		c.logger.WithError(err).WithField("endpoint", endpoint).Error("ai backend unreachable")
		return nil, apperr.Downstream("Failed to get AI response", err)
	}
	return reply, nil
}

func (c *Client) do(ctx context.Context, endpoint, contentType string, body io.Reader) (*Reply, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")

	res, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	b, err := io.ReadAll(io.LimitReader(res.Body, maxReplyBytes))
	if err != nil {
		return nil, err
	}
	return &Reply{Status: res.StatusCode, Body: b}, nil
}

// Check turns a non-2xx reply into a downstream error carrying the
// backend's message, or fallback when it sent none.
func (r *Reply) Check(fallback string) error {
	if r.Status >= 200 && r.Status < 300 {
		return nil
	}
	msg := r.Text("error", "detail")
	if msg == "" {
		msg = fallback
	}
	return apperr.Downstream(msg, fmt.Errorf("ai backend status %d", r.Status))
}

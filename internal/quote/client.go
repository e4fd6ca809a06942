// Package quote fetches the motivational quote shown next to the POS pages
// and optionally translates it.
package quote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/fairyhunter13/pos-session-service/internal/obs"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
)

var tracer = otel.Tracer("quote")

// Quote is one quote as returned by the quotes API, plus its translation.
type Quote struct {
	ID         int       `json:"id"`
	Text       string    `json:"quote"`
	Author     string    `json:"author"`
	Translated string    `json:"translated,omitempty"`
	Lang       string    `json:"lang,omitempty"`
	FetchedAt  time.Time `json:"fetched_at"`
}

// Client talks to the quotes API and the translation API.
type Client struct {
	http          *http.Client
	quoteBase     string
	translateBase string
}

// NewClient returns a client with a per-request timeout.
func NewClient(quoteBase, translateBase string, timeout time.Duration) *Client {
	return &Client{
		http:          &http.Client{Timeout: timeout},
		quoteBase:     strings.TrimRight(quoteBase, "/"),
		translateBase: strings.TrimRight(translateBase, "/"),
	}
}

// Fetch returns quote id.
func (c *Client) Fetch(ctx context.Context, id int) (Quote, error) {
	var q Quote
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("%s/quotes/%d", c.quoteBase, id), nil, &q); err != nil {
		return Quote{}, fmt.Errorf("fetch quote %d: %w", id, err)
	}
	if q.Text == "" {
		return Quote{}, fmt.Errorf("fetch quote %d: empty quote", id)
	}
	q.FetchedAt = time.Now().UTC()
	return q, nil
}

type translateRequest struct {
	Q      string `json:"q"`
	Source string `json:"source"`
	Target string `json:"target"`
	Format string `json:"format"`
}

type translateResponse struct {
	TranslatedText string `json:"translatedText"`
}

// Translate translates English text into target.
func (c *Client) Translate(ctx context.Context, text, target string) (string, error) {
	var out translateResponse
	body := translateRequest{Q: text, Source: "en", Target: target, Format: "text"}
	if err := c.do(ctx, http.MethodPost, c.translateBase+"/translate", body, &out); err != nil {
		return "", fmt.Errorf("translate to %s: %w", target, err)
	}
	if out.TranslatedText == "" {
		return "", fmt.Errorf("translate to %s: empty translation", target)
	}
	return out.TranslatedText, nil
}

func (c *Client) do(ctx context.Context, method, url string, in, out any) error {
	ctx, span := tracer.Start(ctx, "quote.http "+method)
	defer span.End()
	span.SetAttributes(attribute.String("http.method", method), attribute.String("http.url", url))

	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "request failed")
		return err
	}
	defer resp.Body.Close()
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))
	obs.L(ctx).Info("outbound_request", "method", method, "url", url, "status", resp.StatusCode,
		"latency_ms", float64(time.Since(start).Microseconds())/1000.0)
	if resp.StatusCode/100 != 2 {
		span.SetStatus(codes.Error, resp.Status)
		return fmt.Errorf("unexpected status %s", resp.Status)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

package afisha

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const maxResponseBytes = 8 << 20

// StrapiClient reads performances from a Strapi REST collection.
type StrapiClient struct {
	BaseURL    string
	Token      string
	Collection string
	HTTPClient *http.Client
	Logger     *slog.Logger
}

func NewStrapiClient(baseURL string) *StrapiClient {
	return &StrapiClient{
		BaseURL:    baseURL,
		Collection: "performances",
		HTTPClient: &http.Client{
			Timeout: 15 * time.Second,
		},
		Logger: slog.Default(),
	}
}

// Endpoint returns the collection URL without a query string.
func (c *StrapiClient) Endpoint() string {
	return strings.TrimRight(c.BaseURL, "/") + "/api/" + c.Collection
}

// FetchPage implements Source. Failures are *TransportError or *DecodeError.
func (c *StrapiClient) FetchPage(ctx context.Context, q Query, page int) (Page, error) {
	if c.BaseURL == "" {
		return Page{}, &TransportError{Err: errors.New("strapi base URL is empty")}
	}

	endpoint := c.Endpoint()
	reqURL := endpoint + "?" + encodeQuery(q.Values(page))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return Page{}, &TransportError{URL: endpoint, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}

	start := time.Now()
	c.logger().Debug("strapi fetch start", "url", endpoint, "page", page, "page_size", q.PageSize)

	resp, err := c.httpClient().Do(req)
	if err != nil {
		return Page{}, &TransportError{URL: endpoint, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return Page{}, &TransportError{URL: endpoint, StatusCode: resp.StatusCode, Err: fmt.Errorf("read body: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Page{}, &TransportError{URL: endpoint, StatusCode: resp.StatusCode, Err: errors.New(statusMessage(resp.Status, body))}
	}

	result, err := ParseCollectionJSON(body)
	if err != nil {
		return Page{}, err
	}

	c.logger().Debug("strapi fetch success",
		"url", endpoint,
		"page", result.Pagination.Page,
		"items", len(result.Items),
		"total", result.Pagination.Total,
		"elapsed", time.Since(start),
	)
	return result, nil
}

func (c *StrapiClient) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return http.DefaultClient
}

func (c *StrapiClient) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return slog.Default()
}

// encodeQuery is url.Values.Encode with brackets and '$' left readable, the
// way Strapi's qs serializer emits them.
func encodeQuery(v url.Values) string {
	s := v.Encode()
	return strings.NewReplacer("%5B", "[", "%5D", "]", "%24", "$").Replace(s)
}

// statusMessage extracts Strapi's error message from a failure body.
func statusMessage(status string, body []byte) string {
	msg := strings.TrimSpace(string(body))
	if len(msg) > 200 {
		msg = msg[:200]
	}
	if msg == "" {
		return status
	}
	return status + ": " + msg
}

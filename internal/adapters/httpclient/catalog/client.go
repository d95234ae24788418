package catalog

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/tidwall/gjson"

	"github.com/Overland-East-Bay/policy-onboarding-api/internal/domain"
	"github.com/Overland-East-Bay/policy-onboarding-api/internal/ports/out/catalog"
)

const maxBody = 1 << 20

// Client fetches the coverage list from a remote endpoint.
//
// The endpoint may answer with a bare array or with {"coverages":[...]}. Items accept
// either id/name or Id/Name; items without an id are skipped.
type Client struct {
	httpClient *http.Client
	endpoint   string
	log        *slog.Logger
}

var _ catalog.Source = (*Client)(nil)

func NewClient(endpoint string, timeout time.Duration, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		endpoint:   endpoint,
		log:        logger,
	}
}

func (c *Client) ListCoverages(ctx context.Context) ([]domain.Coverage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build catalog request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch coverage catalog: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, fmt.Errorf("read coverage catalog: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		c.log.WarnContext(ctx, "coverage catalog HTTP error",
			slog.Int("status_code", resp.StatusCode),
			slog.String("response_body", truncate(body, 256)))
		return nil, fmt.Errorf("coverage catalog returned HTTP %d", resp.StatusCode)
	}
	return ParseCoverages(body)
}

// ParseCoverages reads a coverage list body.
func ParseCoverages(body []byte) ([]domain.Coverage, error) {
	if !gjson.ValidBytes(body) {
		return nil, errors.New("coverage catalog is not valid JSON")
	}
	root := gjson.ParseBytes(body)
	if !root.IsArray() {
		root = root.Get("coverages")
	}
	if !root.IsArray() {
		return nil, errors.New("coverage catalog has no coverage list")
	}

	out := make([]domain.Coverage, 0)
	root.ForEach(func(_, item gjson.Result) bool {
		id := first(item, "id", "Id").String()
		if id == "" {
			return true
		}
		out = append(out, domain.Coverage{
			ID:   domain.CoverageID(id),
			Name: first(item, "name", "Name").String(),
		})
		return true
	})
	return out, nil
}

func first(item gjson.Result, paths ...string) gjson.Result {
	for _, p := range paths {
		if v := item.Get(p); v.Exists() {
			return v
		}
	}
	return gjson.Result{}
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}

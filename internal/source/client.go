package source

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// Upstream pages can be large but a calendar payload has no business
// being bigger than this.
const maxPayloadBytes = 10 << 20

const userAgent = "Mozilla/5.0 (compatible; SchoolCalendarBot/1.0)"

// Client executes source strategies against the district site with a
// bounded timeout. A slow upstream is a transport failure, not a hang.
type Client struct {
	http *http.Client
	log  *slog.Logger
}

// Payload is the raw outcome of one successful strategy attempt.
type Payload struct {
	Body        []byte
	ContentType string
	Status      int
}

// NewClient builds a client with the given per-request timeout.
func NewClient(timeout time.Duration, log *slog.Logger) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		http: &http.Client{Timeout: timeout},
		log:  log,
	}
}

// Fetch runs one strategy for the given window. Any non-2xx status is
// returned as an error, which callers treat as "no data from this
// attempt" rather than a fatal condition.
func (c *Client) Fetch(ctx context.Context, st Strategy, p Params) (Payload, error) {
	reqURL, err := p.Expand(st.URL)
	if err != nil {
		return Payload{}, err
	}

	var body io.Reader
	if st.Body != "" {
		expanded, err := p.Expand(st.Body)
		if err != nil {
			return Payload{}, err
		}
		body = strings.NewReader(expanded)
	}

	method := st.Method
	if method == "" {
		method = http.MethodGet
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, body)
	if err != nil {
		return Payload{}, fmt.Errorf("build request for %s: %w", st.Name, err)
	}

	req.Header.Set("User-Agent", userAgent)
	for k, v := range st.Headers {
		req.Header.Set(k, v)
	}

	c.log.Debug("strategy attempt", slog.String("strategy", st.Name), slog.String("url", reqURL))

	resp, err := c.http.Do(req)
	if err != nil {
		return Payload{}, fmt.Errorf("strategy %s: %w", st.Name, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxPayloadBytes))
	if err != nil {
		return Payload{}, fmt.Errorf("strategy %s: read body: %w", st.Name, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Payload{}, fmt.Errorf("strategy %s: status %d", st.Name, resp.StatusCode)
	}

	ct := resp.Header.Get("Content-Type")
	if ct == "" {
		ct = st.ContentType
	}

	return Payload{Body: data, ContentType: ct, Status: resp.StatusCode}, nil
}

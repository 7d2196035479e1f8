package online

import (
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/poiesic/geosearch/classify"
	"github.com/poiesic/geosearch/core"
	"golang.org/x/time/rate"
)

const maxResponseBytes = 32 << 20

// Option configures an online client.
type Option func(*options)

type options struct {
	httpClient *http.Client
	classifier *classify.Classifier
	logger     *slog.Logger
}

// WithHTTPClient sets the HTTP client. Default is a client with the
// configured timeout.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) {
		o.httpClient = c
	}
}

// WithClassifier sets the classifier used to categorize Overpass results.
func WithClassifier(c *classify.Classifier) Option {
	return func(o *options) {
		o.classifier = c
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

func buildOptions(cfg *Config, opts []Option) options {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.httpClient == nil {
		o.httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	if o.classifier == nil {
		o.classifier = classify.Default
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	return o
}

// httpClient sends rate limited requests with the configured User-Agent.
type httpClient struct {
	client    *http.Client
	userAgent string
	limiter   *rate.Limiter
}

func newHTTPClient(cfg *Config, o options) *httpClient {
	c := &httpClient{client: o.httpClient, userAgent: cfg.UserAgent}
	if cfg.RequestsPerSecond > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), max(cfg.Burst, 1))
	}
	return c
}

// do sends req and returns the body of a 200 response.
func (c *httpClient) do(req *http.Request) ([]byte, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(req.Context()); err != nil {
			return nil, err
		}
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, &StatusError{URL: req.URL.Redacted(), StatusCode: resp.StatusCode}
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
}

// displayName joins the parts of an online result the way region
// databases do.
func displayName(name, number, street, city, state, postcode, country string) string {
	var parts []string
	if name != "" {
		parts = append(parts, name)
	}
	switch {
	case street != "" && number != "":
		parts = append(parts, number+" "+street)
	case street != "":
		parts = append(parts, street)
	}
	for _, p := range []string{city, state, country, postcode} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ", ")
}

// shortName returns name, or "number street" when the place is unnamed.
func shortName(name, number, street string) string {
	if name != "" {
		return name
	}
	return strings.TrimSpace(number + " " + street)
}

// keepValid drops places that fail validation.
func keepValid(places []*core.Place, logger *slog.Logger, provider string) []*core.Place {
	out := places[:0]
	for _, p := range places {
		if err := core.ValidatePlace(p); err != nil {
			logger.Debug("dropping invalid online result", "provider", provider, "id", p.ID, "err", err)
			continue
		}
		out = append(out, p)
	}
	return out
}

package online

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Config holds configuration for the online service clients.
type Config struct {
	// PhotonURL is the base URL of the Photon geocoder. Empty disables Photon.
	// Example: "https://photon.komoot.io"
	PhotonURL string

	// NominatimURL is the base URL of the Nominatim geocoder. Empty disables Nominatim.
	// Example: "https://nominatim.openstreetmap.org"
	NominatimURL string

	// OverpassURL is the Overpass interpreter endpoint. Empty disables nearby lookups.
	// Example: "https://overpass-api.de/api/interpreter"
	OverpassURL string

	// UserAgent identifies the application to the public services, which
	// reject anonymous clients.
	UserAgent string

	// RequestsPerSecond limits requests per client. Zero disables limiting.
	// Default: 1, the public Nominatim usage policy.
	RequestsPerSecond float64

	// Burst is the number of requests allowed at once. Default: 1
	Burst int

	// Timeout bounds a single HTTP request.
	// Default: 30s
	Timeout time.Duration

	// MaxAttempts is the number of Overpass attempts on overload responses.
	// Default: 3
	MaxAttempts int

	// RetryDelay is the delay before the first Overpass retry; it doubles
	// on each further retry.
	// Default: 3s
	RetryDelay time.Duration
}

// ConfigOption is a functional option for configuring a Config.
type ConfigOption func(*Config)

// WithPhotonURL sets the Photon base URL.
func WithPhotonURL(u string) ConfigOption {
	return func(c *Config) {
		c.PhotonURL = u
	}
}

// WithNominatimURL sets the Nominatim base URL.
func WithNominatimURL(u string) ConfigOption {
	return func(c *Config) {
		c.NominatimURL = u
	}
}

// WithOverpassURL sets the Overpass interpreter endpoint.
func WithOverpassURL(u string) ConfigOption {
	return func(c *Config) {
		c.OverpassURL = u
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) ConfigOption {
	return func(c *Config) {
		c.UserAgent = ua
	}
}

// WithRateLimit sets the per-client request rate and burst.
func WithRateLimit(rps float64, burst int) ConfigOption {
	return func(c *Config) {
		c.RequestsPerSecond = rps
		c.Burst = burst
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) ConfigOption {
	return func(c *Config) {
		c.Timeout = d
	}
}

// WithRetry sets the Overpass retry policy.
func WithRetry(maxAttempts int, delay time.Duration) ConfigOption {
	return func(c *Config) {
		c.MaxAttempts = maxAttempts
		c.RetryDelay = delay
	}
}

// DefaultConfig returns a Config pointing at the public OpenStreetMap services.
func DefaultConfig() *Config {
	return &Config{
		PhotonURL:         "https://photon.komoot.io",
		NominatimURL:      "https://nominatim.openstreetmap.org",
		OverpassURL:       "https://overpass-api.de/api/interpreter",
		UserAgent:         "geosearch/1.0",
		RequestsPerSecond: 1,
		Burst:             1,
		Timeout:           30 * time.Second,
		MaxAttempts:       3,
		RetryDelay:        3 * time.Second,
	}
}

// NewConfig creates a Config with the default values and applies the provided options.
//
// Example:
//
//	cfg := NewConfig(
//	    WithPhotonURL("http://localhost:2322"),
//	    WithNominatimURL(""),
//	)
func NewConfig(opts ...ConfigOption) *Config {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// Normalize trims trailing slashes from the geocoder base URLs.
func (c *Config) Normalize() {
	c.PhotonURL = strings.TrimRight(c.PhotonURL, "/")
	c.NominatimURL = strings.TrimRight(c.NominatimURL, "/")
}

// Validate checks that the configuration is valid and complete.
// It automatically normalizes the configuration before validation.
func (c *Config) Validate() error {
	c.Normalize()

	for name, raw := range map[string]string{
		"PhotonURL":    c.PhotonURL,
		"NominatimURL": c.NominatimURL,
		"OverpassURL":  c.OverpassURL,
	} {
		if raw == "" {
			continue
		}
		u, err := url.Parse(raw)
		if err != nil {
			return fmt.Errorf("online config: %s: %w", name, err)
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return fmt.Errorf("online config: %s must be an http(s) URL: %q", name, raw)
		}
	}
	if c.UserAgent == "" {
		return errors.New("online config: UserAgent is required")
	}
	if c.RequestsPerSecond < 0 {
		return errors.New("online config: RequestsPerSecond must not be negative")
	}
	if c.Timeout <= 0 {
		return errors.New("online config: Timeout must be positive")
	}
	if c.MaxAttempts < 1 {
		return errors.New("online config: MaxAttempts must be at least 1")
	}
	return nil
}

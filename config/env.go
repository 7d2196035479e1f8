package config

import (
	"fmt"
	"strconv"
	"time"
)

// EnvPrefix prefixes every environment variable read by ApplyEnv.
const EnvPrefix = "GEOSEARCH_"

// LookupFunc matches os.LookupEnv.
type LookupFunc func(key string) (string, bool)

// ApplyEnv overrides c with the GEOSEARCH_* variables lookup reports.
func (c *Config) ApplyEnv(lookup LookupFunc) error {
	e := envReader{lookup: lookup}

	e.setString("CACHE_DIR", &c.CacheDir)
	e.setInt64("CACHE_QUOTA", &c.CacheQuota)
	e.setString("CATALOG_URL", &c.CatalogURL)

	e.setInt("SUFFICIENCY_THRESHOLD", &c.Search.SufficiencyThreshold)
	e.setFloat("DEDUP_TOLERANCE", &c.Search.DedupTolerance)
	e.setDuration("ONLINE_TIMEOUT", &c.Search.OnlineTimeout)
	e.setInt("POOL_SIZE", &c.Search.PoolSize)

	e.setBool("ONLINE_ENABLED", &c.Online.Enabled)
	e.setString("PHOTON_URL", &c.Online.PhotonURL)
	e.setString("NOMINATIM_URL", &c.Online.NominatimURL)
	e.setString("OVERPASS_URL", &c.Online.OverpassURL)
	e.setString("USER_AGENT", &c.Online.UserAgent)
	e.setFloat("REQUESTS_PER_SECOND", &c.Online.RequestsPerSecond)

	e.setString("REDIS_ADDR", &c.Redis.Addr)
	e.setString("REDIS_PASSWORD", &c.Redis.Password)
	e.setInt("REDIS_DB", &c.Redis.DB)
	e.setDuration("REDIS_TTL", &c.Redis.TTL)

	e.setString("HTTP_ADDR", &c.HTTP.Addr)
	return e.err
}

// envReader keeps the first parse error.
type envReader struct {
	lookup LookupFunc
	err    error
}

func (e *envReader) get(key string) (string, bool) {
	if e.err != nil {
		return "", false
	}
	return e.lookup(EnvPrefix + key)
}

func (e *envReader) fail(key, value string, err error) {
	e.err = fmt.Errorf("config: %s%s=%q: %w", EnvPrefix, key, value, err)
}

func (e *envReader) setString(key string, dst *string) {
	if v, ok := e.get(key); ok {
		*dst = v
	}
}

func (e *envReader) setInt(key string, dst *int) {
	if v, ok := e.get(key); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			e.fail(key, v, err)
			return
		}
		*dst = n
	}
}

func (e *envReader) setInt64(key string, dst *int64) {
	if v, ok := e.get(key); ok {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			e.fail(key, v, err)
			return
		}
		*dst = n
	}
}

func (e *envReader) setFloat(key string, dst *float64) {
	if v, ok := e.get(key); ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			e.fail(key, v, err)
			return
		}
		*dst = f
	}
}

func (e *envReader) setBool(key string, dst *bool) {
	if v, ok := e.get(key); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			e.fail(key, v, err)
			return
		}
		*dst = b
	}
}

func (e *envReader) setDuration(key string, dst *time.Duration) {
	if v, ok := e.get(key); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			e.fail(key, v, err)
			return
		}
		*dst = d
	}
}

package online

import (
	"log/slog"
)

// provider implements Provider over the public OpenStreetMap services.
type provider struct {
	geocoder  Geocoder
	poiSource POISource
	logger    *slog.Logger
}

// NewProvider creates the clients enabled in cfg: a Chain of Photon then
// Nominatim, and Overpass. Services with an empty URL are left out.
//
// Returns the Provider interface so callers do not depend on the concrete
// clients.
func NewProvider(cfg *Config, opts ...Option) (Provider, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	o := buildOptions(cfg, opts)
	p := &provider{logger: o.logger.With("component", "online-provider")}

	var geocoders []Geocoder
	if cfg.PhotonURL != "" {
		photon, err := NewPhoton(cfg, opts...)
		if err != nil {
			return nil, err
		}
		geocoders = append(geocoders, photon)
	}
	if cfg.NominatimURL != "" {
		nominatim, err := NewNominatim(cfg, opts...)
		if err != nil {
			return nil, err
		}
		geocoders = append(geocoders, nominatim)
	}
	switch len(geocoders) {
	case 0:
	case 1:
		p.geocoder = geocoders[0]
	default:
		p.geocoder = NewChain(o.logger, geocoders...)
	}

	if cfg.OverpassURL != "" {
		overpass, err := NewOverpass(cfg, opts...)
		if err != nil {
			return nil, err
		}
		p.poiSource = overpass
	}
	return p, nil
}

func (p *provider) Geocoder() Geocoder {
	return p.geocoder
}

func (p *provider) POISource() POISource {
	return p.poiSource
}

// Close is a no-op; the HTTP clients hold no resources that need release.
func (p *provider) Close() error {
	p.logger.Debug("closing online provider")
	return nil
}

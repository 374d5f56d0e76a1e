// Package places searches Google Places and resolves user-submitted
// restaurants against the results.
package places

import (
	"context"
	"net/http"
	"strings"
	"time"

	"googlemaps.github.io/maps"

	"menu-allergen-scanner/internal/models"
	"menu-allergen-scanner/pkg/circuit"
	"menu-allergen-scanner/pkg/config"
	errs "menu-allergen-scanner/pkg/errors"
	"menu-allergen-scanner/pkg/geography"
	"menu-allergen-scanner/pkg/logging"
	"menu-allergen-scanner/pkg/metrics"
)

const system = "google_places"

// SearchAPI is the subset of *maps.Client the client calls.
type SearchAPI interface {
	TextSearch(ctx context.Context, r *maps.TextSearchRequest) (maps.PlacesSearchResponse, error)
	PlaceDetails(ctx context.Context, r *maps.PlaceDetailsRequest) (maps.PlaceDetailsResult, error)
}

// Query is a text search, optionally biased to a location.
type Query struct {
	Text         string
	Location     *geography.Coordinate
	RadiusMeters uint
}

type Client struct {
	api     SearchAPI
	cfg     config.PlacesConfig
	breaker *circuit.Breaker
	reg     *metrics.Registry
	log     *logging.ComponentLogger
}

// NewClient returns a ConfigError when the Maps API key is missing.
func NewClient(cfg config.PlacesConfig, breaker *circuit.Breaker, reg *metrics.Registry, logger *logging.Logger) (*Client, error) {
	const op = "places.NewClient"
	if cfg.APIKey == "" {
		return nil, errs.MissingKey(op, "GOOGLE_MAPS_API_KEY")
	}
	opts := []maps.ClientOption{maps.WithAPIKey(cfg.APIKey)}
	if cfg.Timeout > 0 {
		opts = append(opts, maps.WithHTTPClient(&http.Client{Timeout: cfg.Timeout}))
	}
	mc, err := maps.NewClient(opts...)
	if err != nil {
		return nil, errs.NewConfig(op, "GOOGLE_MAPS_API_KEY", err.Error())
	}
	return NewWithAPI(mc, cfg, breaker, reg, logger), nil
}

// NewWithAPI wires an existing SearchAPI. A nil reg uses metrics.Default.
func NewWithAPI(api SearchAPI, cfg config.PlacesConfig, breaker *circuit.Breaker, reg *metrics.Registry, logger *logging.Logger) *Client {
	if reg == nil {
		reg = metrics.Default
	}
	if logger == nil {
		logger = logging.Nop()
	}
	if cfg.MaxCandidates <= 0 {
		cfg.MaxCandidates = 20
	}
	return &Client{api: api, cfg: cfg, breaker: breaker, reg: reg, log: logger.WithComponent("places")}
}

func (c *Client) run(ctx context.Context, op func(ctx context.Context) error) error {
	call := func(ctx context.Context) error {
		start := time.Now()
		err := op(ctx)
		c.reg.ObserveExternal(system, start, err)
		return err
	}
	if c.breaker == nil {
		return call(ctx)
	}
	return c.breaker.Do(ctx, call, nil)
}

// Search runs a text search and returns at most MaxCandidates places in
// Google's order.
func (c *Client) Search(ctx context.Context, q Query) ([]models.Place, error) {
	const op = "places.Client.Search"

	text := strings.TrimSpace(q.Text)
	if text == "" {
		return nil, errs.NewValidation(op, "query is required", nil)
	}
	req := &maps.TextSearchRequest{Query: text, Language: c.cfg.Language}
	if q.Location != nil {
		if !q.Location.Valid() {
			return nil, errs.NewValidation(op, "location is out of range", nil)
		}
		req.Location = &maps.LatLng{Lat: q.Location.Lat, Lng: q.Location.Lng}
		req.Radius = q.RadiusMeters
		if req.Radius == 0 {
			req.Radius = c.cfg.RadiusMeters
		}
	}

	var resp maps.PlacesSearchResponse
	err := c.run(ctx, func(ctx context.Context) error {
		var serr error
		resp, serr = c.api.TextSearch(ctx, req)
		if serr != nil {
			return errs.NewExternal(op, system, "text search failed", serr)
		}
		return nil
	})
	if err != nil {
		c.log.WithContext(ctx).Error("places search failed", err, logging.String("query", text))
		return nil, err
	}

	n := len(resp.Results)
	if n > c.cfg.MaxCandidates {
		n = c.cfg.MaxCandidates
	}
	out := make([]models.Place, 0, n)
	for _, r := range resp.Results[:n] {
		out = append(out, convertResult(r))
	}
	return out, nil
}

// Website looks up the website of a place. An empty string means none is listed.
func (c *Client) Website(ctx context.Context, placeID string) (string, error) {
	const op = "places.Client.Website"
	if placeID == "" {
		return "", errs.NewValidation(op, "place id is required", nil)
	}
	var details maps.PlaceDetailsResult
	err := c.run(ctx, func(ctx context.Context) error {
		var derr error
		details, derr = c.api.PlaceDetails(ctx, &maps.PlaceDetailsRequest{
			PlaceID: placeID,
			Fields:  []maps.PlaceDetailsFieldMask{maps.PlaceDetailsFieldMaskWebsite},
		})
		if derr != nil {
			return errs.NewExternal(op, system, "place details failed", derr)
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return details.Website, nil
}

func convertResult(r maps.PlacesSearchResult) models.Place {
	p := models.Place{
		PlaceID: r.PlaceID,
		Name:    r.Name,
		Address: r.FormattedAddress,
		Types:   r.Types,
		Rating:  float64(r.Rating),
	}
	loc := geography.Coordinate{Lat: r.Geometry.Location.Lat, Lng: r.Geometry.Location.Lng}
	// Google omits geometry only on malformed results; (0,0) is treated as missing here.
	if !loc.IsZero() {
		p.Location = &loc
	}
	return p
}

package api

import (
	"net/http"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"

	"menu-allergen-scanner/internal/constants"
	"menu-allergen-scanner/internal/models"
	"menu-allergen-scanner/internal/places"
	errs "menu-allergen-scanner/pkg/errors"
	"menu-allergen-scanner/pkg/geography"
	"menu-allergen-scanner/pkg/logging"
)

type placesSearchResponse struct {
	Query   string               `json:"query"`
	Results []places.RankedPlace `json:"results"`
	Count   int                  `json:"count"`
}

// handlePlacesSearch: GET /api/places/search?query=&lat=&lng=&radius=&min_tier=
func (s *server) handlePlacesSearch(w http.ResponseWriter, r *http.Request) {
	const op = "api.handlePlacesSearch"
	q := r.URL.Query()

	query := strings.TrimSpace(q.Get("query"))
	if query == "" {
		s.writeError(w, r, errs.NewValidation(op, "query is required", nil))
		return
	}
	origin, err := parseLocation(op, q.Get("lat"), q.Get("lng"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var radius uint64
	if v := q.Get("radius"); v != "" {
		if radius, err = strconv.ParseUint(v, 10, 32); err != nil || radius > 50000 {
			s.writeError(w, r, errs.NewValidation(op, "radius must be 0..50000 meters", err))
			return
		}
	}
	minTier := 0
	if v := q.Get("min_tier"); v != "" {
		if minTier, err = strconv.Atoi(v); err != nil || minTier < 0 || minTier > 100 {
			s.writeError(w, r, errs.NewValidation(op, "min_tier must be 0..100", err))
			return
		}
	}

	found, err := s.Places.Search(r.Context(), places.Query{Text: query, Location: origin, RadiusMeters: uint(radius)})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	ranked := places.Rank(query, origin, found, minTier)
	writeJSON(w, http.StatusOK, placesSearchResponse{Query: query, Results: ranked, Count: len(ranked)})
}

// parseLocation returns nil when both values are empty.
func parseLocation(op, lat, lng string) (*geography.Coordinate, error) {
	if lat == "" && lng == "" {
		return nil, nil
	}
	la, err1 := strconv.ParseFloat(lat, 64)
	ln, err2 := strconv.ParseFloat(lng, 64)
	c := geography.Coordinate{Lat: la, Lng: ln}
	if err1 != nil || err2 != nil || !c.Valid() {
		return nil, errs.NewValidation(op, "lat and lng must be valid coordinates", nil)
	}
	return &c, nil
}

// handleResolve looks up the submitted place and its logo concurrently. A
// logo failure is logged and leaves the logo empty; a places failure fails
// the request.
func (s *server) handleResolve(w http.ResponseWriter, r *http.Request) {
	const op = "api.handleResolve"
	var target models.Place
	if err := decodeJSON(w, r, constants.MaxJSONBodyBytes, &target); err != nil {
		s.writeError(w, r, err)
		return
	}
	if strings.TrimSpace(target.Name) == "" {
		s.writeError(w, r, errs.NewValidation(op, "name is required", nil))
		return
	}
	if target.Location != nil && !target.Location.Valid() {
		s.writeError(w, r, errs.NewValidation(op, "location is out of range", nil))
		return
	}
	// (0,0) is what clients send when they have no fix
	if target.Location != nil && target.Location.IsZero() {
		target.Location = nil
	}

	settings := s.Settings.Matching()
	gate := s.gate()
	var (
		place *models.PlaceLookup
		logo  *models.LogoLookup
	)
	g, ctx := errgroup.WithContext(r.Context())
	g.Go(func() error {
		var err error
		place, err = s.Places.Resolve(ctx, target, gate)
		return err
	})
	g.Go(func() error {
		l, err := s.Logo.Lookup(ctx, target.Name, target.Website, settings.Logo.MinNameTier)
		if err != nil {
			if ctx.Err() == nil {
				s.log.WithContext(ctx).Warn("logo lookup failed", logging.String("error", err.Error()))
			}
			return nil
		}
		logo = l
		return nil
	})
	if err := g.Wait(); err != nil {
		s.writeError(w, r, err)
		return
	}

	// the matched place may list a website the submitted record did not have
	if (logo == nil || logo.Status != models.StatusFound) && place.Found && place.Place.Website != "" {
		if l, err := s.Logo.Lookup(r.Context(), place.Place.Name, place.Place.Website, settings.Logo.MinNameTier); err == nil {
			logo = l
		}
	}
	writeJSON(w, http.StatusOK, models.RestaurantResolution{Place: place, Logo: logo})
}

// handleLogo: GET /api/logo?name=&website=
func (s *server) handleLogo(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	l, err := s.Logo.Lookup(r.Context(), q.Get("name"), q.Get("website"), s.Settings.Matching().Logo.MinNameTier)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, l)
}

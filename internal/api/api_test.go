package api

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"menu-allergen-scanner/internal/constants"
	"menu-allergen-scanner/internal/matching"
	"menu-allergen-scanner/internal/models"
	"menu-allergen-scanner/internal/places"
	"menu-allergen-scanner/internal/vision"
	"menu-allergen-scanner/pkg/circuit"
	"menu-allergen-scanner/pkg/config"
	errs "menu-allergen-scanner/pkg/errors"
	"menu-allergen-scanner/pkg/geography"
	"menu-allergen-scanner/pkg/metrics"
)

type fakeAnalyzer struct {
	result *models.MenuAnalysis
	err    error
	last   vision.Request
}

func (f *fakeAnalyzer) Analyze(_ context.Context, req vision.Request) (*models.MenuAnalysis, error) {
	f.last = req
	return f.result, f.err
}

type fakePlaces struct {
	found      []models.Place
	lookup     *models.PlaceLookup
	err        error
	lastGate   matching.RestaurantGate
	lastQ      places.Query
	lastTarget models.Place
}

func (f *fakePlaces) Search(_ context.Context, q places.Query) ([]models.Place, error) {
	f.lastQ = q
	return f.found, f.err
}

func (f *fakePlaces) Resolve(_ context.Context, target models.Place, gate matching.RestaurantGate) (*models.PlaceLookup, error) {
	f.lastTarget = target
	f.lastGate = gate
	return f.lookup, f.err
}

type fakeLogo struct {
	mu       sync.Mutex
	byDomain map[string]*models.LogoLookup
	err      error
	calls    []string
}

func (f *fakeLogo) Lookup(_ context.Context, name, website string, _ int) (*models.LogoLookup, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, name+"|"+website)
	if f.err != nil {
		return nil, f.err
	}
	if l, ok := f.byDomain[website]; ok {
		return l, nil
	}
	return &models.LogoLookup{Status: models.StatusNotFound}, nil
}

type fakeSettings struct {
	cfg      *config.Config
	matching config.MatchingSettings
}

func (f *fakeSettings) Current() *config.Config { return f.cfg }
func (f *fakeSettings) Matching() config.MatchingSettings { return f.matching }

func newSettings() *fakeSettings {
	cfg := &config.Config{MaxImageBytes: 1 << 16, MatchNameThreshold: 0.4, MatchDistanceMeters: 1000}
	cfg.Logo.MinNameTier = 70
	return &fakeSettings{cfg: cfg, matching: cfg.Matching()}
}

type testEnv struct {
	analyzer *fakeAnalyzer
	places   *fakePlaces
	logo     *fakeLogo
	settings *fakeSettings
	reg      *metrics.Registry
	handler  http.Handler
}

func newEnv() *testEnv {
	e := &testEnv{
		analyzer: &fakeAnalyzer{},
		places:   &fakePlaces{},
		logo:     &fakeLogo{byDomain: map[string]*models.LogoLookup{}},
		settings: newSettings(),
		reg:      metrics.NewRegistry(),
	}
	e.handler = NewRouter(Deps{
		Analyzer: e.analyzer,
		Places:   e.places,
		Logo:     e.logo,
		Settings: e.settings,
		Metrics:  e.reg,
	})
	return e
}

func (e *testEnv) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		if err := json.NewEncoder(&buf).Encode(b); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
}

var pngBase64 = base64.StdEncoding.EncodeToString([]byte("\x89PNG\r\n\x1a\n0000"))

func TestScan_FlagsUserAllergens(t *testing.T) {
	e := newEnv()
	e.analyzer.result = &models.MenuAnalysis{
		Status:   models.AnalysisMenu,
		Provider: "openai",
		Items: []models.MenuItem{
			{Name: "Margherita", AllergenIngredients: map[string][]string{"gluten": {"dough"}, "milk": {"mozzarella"}}},
			{Name: "Salad", AllergenIngredients: map[string][]string{}},
		},
	}

	rec := e.do(t, http.MethodPost, "/api/menu/scan", map[string]interface{}{
		"image":          pngBase64,
		"restaurantName": "Luigi's",
		"allergens":      []string{"Milk", "peanut"},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", rec.Code, rec.Body.String())
	}
	var got struct {
		Status  string               `json:"status"`
		Items   []models.MenuItem    `json:"items"`
		Flagged []models.FlaggedItem `json:"flagged"`
	}
	decode(t, rec, &got)
	if got.Status != "menu" || len(got.Items) != 2 {
		t.Errorf("response = %+v", got)
	}
	if len(got.Flagged) != 1 || got.Flagged[0].Index != 0 || got.Flagged[0].Allergens[0] != "Milk" {
		t.Errorf("flagged = %+v", got.Flagged)
	}
	if e.analyzer.last.RestaurantHint != "Luigi's" || e.analyzer.last.Image.MIMEType != "image/png" {
		t.Errorf("analyzer request = %+v", e.analyzer.last)
	}
	if rec.Header().Get(requestIDHeader) == "" {
		t.Error("missing request id header")
	}
}

func TestScan_ErrorStatuses(t *testing.T) {
	tests := []struct {
		name    string
		body    interface{}
		err     error
		status  int
		errKind string
	}{
		{"empty body", "", nil, http.StatusBadRequest, "validation"},
		{"bad json", "{", nil, http.StatusBadRequest, "validation"},
		{"bad image", map[string]string{"image": "???"}, nil, http.StatusBadRequest, "validation"},
		{"breaker open", map[string]string{"image": pngBase64}, circuit.ErrOpen, http.StatusServiceUnavailable, "unavailable"},
		{"model garbage", map[string]string{"image": pngBase64}, errs.NewParse("t", "openai", "bad", "", nil), http.StatusBadGateway, "parse"},
		{"upstream down", map[string]string{"image": pngBase64}, errs.NewExternal("t", "openai", "down", nil), http.StatusBadGateway, "external"},
		{"timeout", map[string]string{"image": pngBase64}, errs.NewExternal("t", "openai", "slow", context.DeadlineExceeded), http.StatusGatewayTimeout, "timeout"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEnv()
			e.analyzer.err = tt.err
			rec := e.do(t, http.MethodPost, "/api/menu/scan", tt.body)
			if rec.Code != tt.status {
				t.Fatalf("status = %d, want %d (%s)", rec.Code, tt.status, rec.Body.String())
			}
			var body errorBody
			decode(t, rec, &body)
			if body.Error.Kind != tt.errKind || body.RequestID == "" {
				t.Errorf("error body = %+v", body)
			}
		})
	}
}

func TestScan_BodyTooLarge(t *testing.T) {
	e := newEnv()
	e.settings.cfg.MaxImageBytes = 16
	huge := strings.Repeat("A", constants.MaxJSONBodyBytes+64)
	rec := e.do(t, http.MethodPost, "/api/menu/scan", `{"image": "`+huge+`"}`)
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("status = %d, want 413", rec.Code)
	}
}

func TestMenuMatch_AppliesMinScore(t *testing.T) {
	e := newEnv()
	e.settings.matching.Menu.MinScore = 0.5
	body := map[string]interface{}{
		"source": []models.MenuItem{
			{Name: "Margherita Pizza", AllergenIngredients: map[string][]string{"gluten": {"dough"}}},
			{Name: "Tiramisu"},
		},
		"target": []models.MenuItem{
			{Name: "Pizza Margherita", AllergenIngredients: map[string][]string{"gluten": {"base"}}},
			{Name: "Caesar Salad"},
		},
	}
	rec := e.do(t, http.MethodPost, "/api/menu/match", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	var got menuMatchResponse
	decode(t, rec, &got)
	if len(got.Matches) != 1 || got.Matches[0].SourceIndex != 0 || got.Matches[0].TargetIndex != 0 {
		t.Errorf("matches = %+v", got.Matches)
	}
	if len(got.Unmatched) != 1 || got.Unmatched[0] != 1 {
		t.Errorf("unmatched = %v", got.Unmatched)
	}
	if v := testutil.ToFloat64(e.reg.MatchDecisions.WithLabelValues("menu", "found")); v != 1 {
		t.Errorf("menu found metric = %v", v)
	}
}

func TestSimilarity(t *testing.T) {
	e := newEnv()
	item := models.MenuItem{Name: "Pad Thai", AllergenIngredients: map[string][]string{"peanut": {"peanuts"}}}
	rec := e.do(t, http.MethodPost, "/api/menu/similarity", map[string]interface{}{"source": item, "target": item})
	var got similarityResponse
	decode(t, rec, &got)
	if got.Score != 1 || got.NameSimilarity != 1 || got.AllergenOverlap != 1 {
		t.Errorf("similarity = %+v", got)
	}

	rec = e.do(t, http.MethodPost, "/api/menu/similarity", map[string]interface{}{"source": item})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("missing target: status = %d", rec.Code)
	}
}

func TestPlacesSearch(t *testing.T) {
	e := newEnv()
	e.places.found = []models.Place{
		{Name: "Pizza Hut"},
		{Name: "Pizza Palace", Location: &geography.Coordinate{Lat: 1, Lng: 1}},
		{Name: "Taco Town"},
	}
	rec := e.do(t, http.MethodGet, "/api/places/search?query=pizza+palace&lat=1&lng=1&radius=500", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	var got placesSearchResponse
	decode(t, rec, &got)
	if got.Count != 2 || got.Results[0].Name != "Pizza Palace" || got.Results[0].Tier != 100 {
		t.Errorf("results = %+v", got.Results)
	}
	if e.places.lastQ.RadiusMeters != 500 || e.places.lastQ.Location == nil {
		t.Errorf("query = %+v", e.places.lastQ)
	}

	for _, path := range []string{
		"/api/places/search",
		"/api/places/search?query=x&lat=100&lng=0",
		"/api/places/search?query=x&lat=1",
		"/api/places/search?query=x&radius=-1",
		"/api/places/search?query=x&min_tier=101",
	} {
		if rec := e.do(t, http.MethodGet, path, nil); rec.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", path, rec.Code)
		}
	}
}

func TestResolve_ZeroLocationIsTreatedAsMissing(t *testing.T) {
	e := newEnv()
	e.places.lookup = models.NotFoundPlace(0)

	rec := e.do(t, http.MethodPost, "/api/restaurants/resolve", models.Place{Name: "Joe's Pizza", Location: &geography.Coordinate{}})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	if e.places.lastTarget.Location != nil {
		t.Errorf("target location = %v, want nil", e.places.lastTarget.Location)
	}
}

func TestResolve_UsesLiveGateAndPlaceWebsite(t *testing.T) {
	e := newEnv()
	one := 1.0
	e.settings.matching.Restaurant.MaxDistanceMeters = 250
	e.places.lookup = &models.PlaceLookup{
		Status: models.StatusFound, Found: true, Score: &one, Candidates: 3,
		Place: &models.Place{Name: "Joe's Pizza", Website: "https://joes.example"},
	}
	e.logo.byDomain["https://joes.example"] = &models.LogoLookup{Status: models.StatusFound, Domain: "joes.example", LogoURL: "https://img/joes.example"}

	rec := e.do(t, http.MethodPost, "/api/restaurants/resolve", models.Place{Name: "Joe's Pizza", Location: &geography.Coordinate{Lat: 1, Lng: 2}})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	var got models.RestaurantResolution
	decode(t, rec, &got)
	if got.Place == nil || !got.Place.Found {
		t.Fatalf("place = %+v", got.Place)
	}
	if got.Logo == nil || got.Logo.Domain != "joes.example" {
		t.Errorf("logo = %+v", got.Logo)
	}
	if e.places.lastGate.MaxDistanceMeters != 250 || e.places.lastGate.MinNameSimilarity != 0.4 {
		t.Errorf("gate = %+v", e.places.lastGate)
	}
	if len(e.logo.calls) != 2 {
		t.Errorf("logo calls = %v, want name lookup then website lookup", e.logo.calls)
	}
}

func TestResolve_LogoFailureIsNotFatal(t *testing.T) {
	e := newEnv()
	e.places.lookup = models.NotFoundPlace(0)
	e.logo.err = errs.NewExternal("t", "logo", "down", nil)

	rec := e.do(t, http.MethodPost, "/api/restaurants/resolve", models.Place{Name: "Nowhere"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	var got models.RestaurantResolution
	decode(t, rec, &got)
	if got.Place.Status != models.StatusNotFound || got.Logo != nil {
		t.Errorf("resolution = %+v", got)
	}
}

func TestResolve_PlacesFailureFails(t *testing.T) {
	e := newEnv()
	e.places.err = errs.NewExternal("t", "google_places", "down", errors.New("500"))
	rec := e.do(t, http.MethodPost, "/api/restaurants/resolve", models.Place{Name: "Joe's"})
	if rec.Code != http.StatusBadGateway {
		t.Errorf("status = %d, want 502", rec.Code)
	}
	if rec := e.do(t, http.MethodPost, "/api/restaurants/resolve", models.Place{}); rec.Code != http.StatusBadRequest {
		t.Errorf("missing name: status = %d", rec.Code)
	}
}

func TestLogoEndpoint(t *testing.T) {
	e := newEnv()
	e.logo.byDomain["joes.example"] = &models.LogoLookup{Status: models.StatusFound, Domain: "joes.example"}
	rec := e.do(t, http.MethodGet, "/api/logo?name=Joe&website=joes.example", nil)
	var got models.LogoLookup
	decode(t, rec, &got)
	if got.Status != models.StatusFound {
		t.Errorf("logo = %+v", got)
	}
}

func TestRequestID_PassesThroughAndNotFound(t *testing.T) {
	e := newEnv()
	req := httptest.NewRequest(http.MethodGet, "/nope", nil)
	req.Header.Set(requestIDHeader, "abc-123")
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	if rec.Header().Get(requestIDHeader) != "abc-123" {
		t.Errorf("request id = %q", rec.Header().Get(requestIDHeader))
	}
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d", rec.Code)
	}
}

func TestRecoverer(t *testing.T) {
	e := newEnv()
	e.analyzer.result = nil
	rec := e.do(t, http.MethodPost, "/api/menu/scan", map[string]string{"image": pngBase64})
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
}

package logo

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"menu-allergen-scanner/internal/cache"
	"menu-allergen-scanner/internal/models"
	"menu-allergen-scanner/pkg/config"
	errs "menu-allergen-scanner/pkg/errors"
	"menu-allergen-scanner/pkg/metrics"
)

// recorder counts suggest calls and keeps the last query.
type recorder struct {
	mu    sync.Mutex
	hits  int
	query string
}

func (r *recorder) seen() (int, string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.hits, r.query
}

func newSuggestServer(t *testing.T, status int, body string, rec *recorder) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec.mu.Lock()
		rec.hits++
		rec.query = r.URL.Query().Get("query")
		rec.mu.Unlock()
		if got := r.Header.Get("Authorization"); got != "Bearer k" {
			t.Errorf("Authorization = %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestClient(t *testing.T, baseURL string, c cache.Cache) *Client {
	t.Helper()
	cl, err := NewClient(config.LogoConfig{
		BaseURL:     baseURL,
		ImageURL:    "https://img.example.com/",
		APIKey:      "k",
		MinNameTier: 70,
	}, Options{Cache: c, CacheTTL: time.Hour, Registry: metrics.NewRegistry()})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return cl
}

const suggestions = `[
 {"name": "Cafe Central Group", "domain": "central-group.example", "logo": ""},
 {"name": "Café Central", "domain": "cafecentral.example", "logo": "https://logos.example/cafecentral.png"}
]`

func TestLookup_RanksSuggestions(t *testing.T) {
	rec := &recorder{}
	srv := newSuggestServer(t, http.StatusOK, suggestions, rec)
	c := newTestClient(t, srv.URL, nil)

	got, err := c.Lookup(context.Background(), "Café  Central", "", 0)
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if _, query := rec.seen(); query != "Cafe Central" {
		t.Errorf("query = %q, want folded name", query)
	}
	if got.Status != models.StatusFound || got.Domain != "central-group.example" {
		t.Errorf("lookup = %+v", got)
	}
	if got.LogoURL != "https://img.example.com/central-group.example" {
		t.Errorf("LogoURL = %q, want image url fallback", got.LogoURL)
	}
}

func TestLookup_WebsiteSkipsSuggest(t *testing.T) {
	rec := &recorder{}
	srv := newSuggestServer(t, http.StatusOK, "[]", rec)
	c := newTestClient(t, srv.URL, nil)

	got, err := c.Lookup(context.Background(), "Joe's", "https://www.joes.example/menu", 0)
	if err != nil {
		t.Fatal(err)
	}
	if got.Domain != "joes.example" || got.LogoURL != "https://img.example.com/joes.example" {
		t.Errorf("lookup = %+v", got)
	}
	if hits, _ := rec.seen(); hits != 0 {
		t.Errorf("suggest API called %d times", hits)
	}
}

func TestLookup_WebsiteDomainBeatsNameTier(t *testing.T) {
	srv := newSuggestServer(t, http.StatusOK, `[
 {"name": "Luigi's Trattoria", "domain": "luigis.example", "logo": "https://logos.example/l.png"},
 {"name": "LT Group", "domain": "lt-group.example", "logo": "https://logos.example/lt.png"}
]`, &recorder{})
	c, err := NewClient(config.LogoConfig{BaseURL: srv.URL, APIKey: "k", MinNameTier: 70, MaxSuggestion: 5}, Options{Registry: metrics.NewRegistry()})
	if err != nil {
		t.Fatal(err)
	}

	got, err := c.Lookup(context.Background(), "Luigi's Trattoria", "http://www.lt-group.example/", 0)
	if err != nil {
		t.Fatal(err)
	}
	if got.Domain != "lt-group.example" || got.LogoURL != "https://logos.example/lt.png" {
		t.Errorf("lookup = %+v", got)
	}
}

func TestLookup_NotFoundBelowTier(t *testing.T) {
	srv := newSuggestServer(t, http.StatusOK, `[{"name": "Burger Barn", "domain": "bb.example"}]`, &recorder{})
	c := newTestClient(t, srv.URL, nil)

	got, err := c.Lookup(context.Background(), "Pizza Palace", "", 0)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != models.StatusNotFound || got.LogoURL != "" {
		t.Errorf("lookup = %+v", got)
	}
}

func TestLookup_CachesSuggestions(t *testing.T) {
	rec := &recorder{}
	srv := newSuggestServer(t, http.StatusOK, suggestions, rec)
	mem := cache.NewMemory(10, time.Hour, 0)
	defer mem.Close()
	c := newTestClient(t, srv.URL, mem)

	for i := 0; i < 3; i++ {
		if _, err := c.Lookup(context.Background(), "Café Central", "", 0); err != nil {
			t.Fatal(err)
		}
	}
	if hits, _ := rec.seen(); hits != 1 {
		t.Errorf("suggest API hits = %d, want 1", hits)
	}
}

func TestLookup_Errors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		kind   error
	}{
		{"server error", http.StatusInternalServerError, "oops", errs.ErrExternal},
		{"not an array", http.StatusOK, `{"error": "quota"}`, errs.ErrParse},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newSuggestServer(t, tt.status, tt.body, &recorder{})
			c := newTestClient(t, srv.URL, nil)
			if _, err := c.Lookup(context.Background(), "Pizza", "", 0); !errs.Is(err, tt.kind) {
				t.Errorf("err = %v, want %T", err, tt.kind)
			}
		})
	}

	c := newTestClient(t, "http://127.0.0.1:1", nil)
	if _, err := c.Lookup(context.Background(), " ", "", 0); !errs.Is(err, errs.ErrValidation) {
		t.Errorf("empty name: err = %v", err)
	}
}

func TestBest_SkipsSuggestionsWithoutDomain(t *testing.T) {
	got := Best("pizza", []Suggestion{{Name: "Pizza"}, {Name: "Pizza Co", Domain: "pizzaco.example"}}, 70)
	if got.Status != models.StatusFound || got.Domain != "pizzaco.example" {
		t.Errorf("Best = %+v", got)
	}
}

func TestNewClient_RequiresBaseURL(t *testing.T) {
	if _, err := NewClient(config.LogoConfig{}, Options{}); !errs.Is(err, errs.ErrConfig) {
		t.Errorf("err = %v, want config error", err)
	}
}

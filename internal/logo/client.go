// Package logo finds a restaurant's logo through a company-suggest API.
package logo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"menu-allergen-scanner/internal/cache"
	"menu-allergen-scanner/internal/matching"
	"menu-allergen-scanner/internal/models"
	"menu-allergen-scanner/pkg/circuit"
	"menu-allergen-scanner/pkg/config"
	errs "menu-allergen-scanner/pkg/errors"
	"menu-allergen-scanner/pkg/logging"
	"menu-allergen-scanner/pkg/metrics"
	"menu-allergen-scanner/pkg/utils"
)

const system = "logo"

// maxBody bounds the suggest response we are willing to read.
const maxBody = 1 << 20

// Suggestion is one entry of the suggest API reply.
type Suggestion struct {
	Name   string `json:"name"`
	Domain string `json:"domain"`
	Logo   string `json:"logo"`
}

// Options holds optional collaborators; nil fields disable the concern.
type Options struct {
	HTTPClient *http.Client
	Cache      cache.Cache
	CacheTTL   time.Duration
	Breaker    *circuit.Breaker
	Registry   *metrics.Registry
	Logger     *logging.Logger
}

type Client struct {
	cfg      config.LogoConfig
	http     *http.Client
	cache    cache.Cache
	cacheTTL time.Duration
	breaker  *circuit.Breaker
	reg      *metrics.Registry
	log      *logging.ComponentLogger
}

// NewClient returns a ConfigError when no suggest endpoint is configured.
func NewClient(cfg config.LogoConfig, opts Options) (*Client, error) {
	const op = "logo.NewClient"
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, errs.MissingKey(op, "LOGO_API_BASE_URL")
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, errs.NewConfig(op, "LOGO_API_BASE_URL", "invalid url: "+err.Error())
	}
	if opts.HTTPClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 5 * time.Second
		}
		opts.HTTPClient = &http.Client{Timeout: timeout}
	}
	if opts.Registry == nil {
		opts.Registry = metrics.Default
	}
	if opts.Logger == nil {
		opts.Logger = logging.Nop()
	}
	if cfg.MaxSuggestion <= 0 {
		cfg.MaxSuggestion = 5
	}
	return &Client{
		cfg:      cfg,
		http:     opts.HTTPClient,
		cache:    opts.Cache,
		cacheTTL: opts.CacheTTL,
		breaker:  opts.Breaker,
		reg:      opts.Registry,
		log:      opts.Logger.WithComponent("logo"),
	}, nil
}

// Lookup finds a logo for the restaurant called name. A known website gives
// the logo URL directly when an image endpoint is configured. Otherwise a
// suggestion hosted on the website wins, then the best by name tier at or
// above minTier. minTier <= 0 uses the configured tier.
func (c *Client) Lookup(ctx context.Context, name, website string, minTier int) (*models.LogoLookup, error) {
	const op = "logo.Client.Lookup"

	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errs.NewValidation(op, "restaurant name is required", nil)
	}
	if minTier <= 0 {
		minTier = c.cfg.MinNameTier
	}

	if domain := utils.ExtractDomain(website); domain != "" && c.cfg.ImageURL != "" {
		c.reg.ObserveMatch("logo", true)
		return &models.LogoLookup{
			Status:  models.StatusFound,
			Name:    name,
			Domain:  domain,
			LogoURL: c.imageURL(domain),
		}, nil
	}

	suggestions, err := c.suggest(ctx, name)
	if err != nil {
		return nil, err
	}
	out := forSite(website, suggestions)
	if out == nil {
		out = Best(name, suggestions, minTier)
	}
	if out.Status == models.StatusFound && out.LogoURL == "" {
		out.LogoURL = c.imageURL(out.Domain)
	}
	c.reg.ObserveMatch("logo", out.Status == models.StatusFound)
	return out, nil
}

// Best ranks suggestions against name with diacritics folded on both sides.
func Best(name string, suggestions []Suggestion, minTier int) *models.LogoLookup {
	cands := make([]matching.Candidate, len(suggestions))
	for i, s := range suggestions {
		cands[i] = matching.Candidate{Name: utils.FoldDiacritics(s.Name)}
	}
	ranked := matching.RankByName(utils.FoldDiacritics(name), cands, minTier)
	for _, r := range ranked {
		s := suggestions[r.Index]
		if s.Domain == "" && s.Logo == "" {
			continue
		}
		return &models.LogoLookup{Status: models.StatusFound, Name: s.Name, Domain: s.Domain, LogoURL: s.Logo}
	}
	return &models.LogoLookup{Status: models.StatusNotFound}
}

// forSite returns the suggestion hosted on website, whatever its name tier.
func forSite(website string, suggestions []Suggestion) *models.LogoLookup {
	if website == "" {
		return nil
	}
	for _, s := range suggestions {
		if utils.SameDomain(s.Domain, website) {
			return &models.LogoLookup{Status: models.StatusFound, Name: s.Name, Domain: s.Domain, LogoURL: s.Logo}
		}
	}
	return nil
}

func (c *Client) imageURL(domain string) string {
	if domain == "" || c.cfg.ImageURL == "" {
		return ""
	}
	return strings.TrimSuffix(c.cfg.ImageURL, "/") + "/" + domain
}

func (c *Client) suggest(ctx context.Context, name string) ([]Suggestion, error) {
	const op = "logo.Client.suggest"

	query := utils.FoldDiacritics(name)
	key := "logo:" + utils.CacheKeyPart(name)
	if c.cache != nil {
		if v, ok, err := cache.GetJSON[[]Suggestion](ctx, c.cache, key); err == nil && ok {
			return v, nil
		}
	}

	var out []Suggestion
	call := func(ctx context.Context) error {
		start := time.Now()
		s, err := c.fetch(ctx, query)
		c.reg.ObserveExternal(system, start, err)
		out = s
		return err
	}
	var err error
	if c.breaker != nil {
		err = c.breaker.Do(ctx, call, nil)
	} else {
		err = call(ctx)
	}
	if err != nil {
		c.log.WithContext(ctx).Error("logo suggest failed", err, logging.String("query", query))
		return nil, err
	}
	if len(out) > c.cfg.MaxSuggestion {
		out = out[:c.cfg.MaxSuggestion]
	}

	if c.cache != nil {
		if err := cache.SetJSON(ctx, c.cache, key, out, c.cacheTTL); err != nil {
			c.log.WithContext(ctx).Warn("logo cache write failed", logging.String("error", err.Error()), logging.String("op", op))
		}
	}
	return out, nil
}

func (c *Client) fetch(ctx context.Context, query string) ([]Suggestion, error) {
	const op = "logo.Client.fetch"

	u, err := url.Parse(c.cfg.BaseURL)
	if err != nil {
		return nil, errs.NewConfig(op, "LOGO_API_BASE_URL", err.Error())
	}
	q := u.Query()
	q.Set("query", query)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, errs.NewExternal(op, system, "build request", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errs.NewExternal(op, system, "request failed", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, errs.NewExternal(op, system, "read body", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, errs.NewExternal(op, system, fmt.Sprintf("unexpected status %d", resp.StatusCode), nil)
	}

	var out []Suggestion
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, errs.NewParse(op, system, "suggest reply is not a json array", string(body), err)
	}
	return out, nil
}

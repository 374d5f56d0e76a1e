package vision

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
	"time"

	"menu-allergen-scanner/internal/cache"
	"menu-allergen-scanner/internal/models"
	"menu-allergen-scanner/internal/prompts"
	"menu-allergen-scanner/pkg/circuit"
	errs "menu-allergen-scanner/pkg/errors"
	"menu-allergen-scanner/pkg/logging"
	"menu-allergen-scanner/pkg/metrics"
)

// Request is one menu photo to analyze.
type Request struct {
	Image          Image
	RestaurantHint string
	Language       string
	UserAllergens  []string
}

// Analyzer renders the prompts, calls the reader under a breaker and caches
// parsed results by image and prompt hash.
type Analyzer struct {
	reader   MenuReader
	prompts  *prompts.Manager
	cache    cache.Cache
	cacheTTL time.Duration
	breaker  *circuit.Breaker
	costs    *CostTracker
	reg      *metrics.Registry
	log      *logging.ComponentLogger
}

// Options holds the optional collaborators of an Analyzer. Nil fields disable
// the concern (no cache, no breaker); a nil Registry uses metrics.Default.
type Options struct {
	Cache    cache.Cache
	CacheTTL time.Duration
	Breaker  *circuit.Breaker
	Costs    *CostTracker
	Registry *metrics.Registry
	Logger   *logging.Logger
}

func NewAnalyzer(reader MenuReader, pm *prompts.Manager, opts Options) *Analyzer {
	if opts.Registry == nil {
		opts.Registry = metrics.Default
	}
	if opts.Costs == nil {
		opts.Costs = NewCostTracker(nil)
	}
	if opts.Logger == nil {
		opts.Logger = logging.Nop()
	}
	return &Analyzer{
		reader:   reader,
		prompts:  pm,
		cache:    opts.Cache,
		cacheTTL: opts.CacheTTL,
		breaker:  opts.Breaker,
		costs:    opts.Costs,
		reg:      opts.Registry,
		log:      opts.Logger.WithComponent("vision"),
	}
}

// Provider names the configured reader.
func (a *Analyzer) Provider() string { return a.reader.Name() }

// CostStats returns usage accumulated since start.
func (a *Analyzer) CostStats() CostStats { return a.costs.GetStats() }

// Analyze reads the menu in req.Image.
func (a *Analyzer) Analyze(ctx context.Context, req Request) (*models.MenuAnalysis, error) {
	const op = "vision.Analyzer.Analyze"
	if len(req.Image.Data) == 0 {
		return nil, errs.NewValidation(op, "image is required", nil)
	}
	log := a.log.WithContext(ctx)

	system, err := a.prompts.Render(prompts.MenuSystem, prompts.MenuSystemData{Allergens: prompts.StandardAllergens})
	if err != nil {
		return nil, err
	}
	user, err := a.prompts.Render(prompts.MenuUser, prompts.MenuUserData{
		RestaurantHint: strings.TrimSpace(req.RestaurantHint),
		Language:       strings.TrimSpace(req.Language),
		UserAllergens:  normalizeList(req.UserAllergens),
	})
	if err != nil {
		return nil, err
	}

	key := a.cacheKey(req.Image, system, user)
	if a.cache != nil {
		cached, ok, cerr := cache.GetJSON[models.MenuAnalysis](ctx, a.cache, key)
		if cerr != nil {
			log.Warn("scan cache read failed", logging.String("error", cerr.Error()))
		}
		if ok {
			cached.Cached = true
			return &cached, nil
		}
	}

	var completion Completion
	call := func(ctx context.Context) error {
		start := time.Now()
		c, rerr := a.reader.ReadMenu(ctx, system, user, req.Image)
		a.reg.ObserveExternal(a.reader.Name(), start, rerr)
		if rerr != nil {
			return rerr
		}
		completion = c
		return nil
	}
	if a.breaker != nil {
		err = a.breaker.Do(ctx, call, nil)
	} else {
		err = call(ctx)
	}
	if err != nil {
		log.Error("menu read failed", err, logging.String("provider", a.reader.Name()))
		return nil, err
	}

	a.costs.AddUsage(a.reader.Name(), completion.Usage)
	a.reg.AITokens.WithLabelValues(a.reader.Name(), "prompt").Add(float64(completion.Usage.PromptTokens))
	a.reg.AITokens.WithLabelValues(a.reader.Name(), "completion").Add(float64(completion.Usage.CompletionTokens))

	analysis, err := ParseMenuResponse(a.reader.Name(), completion.Text)
	if err != nil {
		log.Warn("unparseable model reply", logging.String("provider", a.reader.Name()), logging.String("error", err.Error()))
		return nil, err
	}
	analysis.Provider = a.reader.Name()

	if a.cache != nil {
		if cerr := cache.SetJSON(ctx, a.cache, key, analysis, a.cacheTTL); cerr != nil {
			log.Warn("scan cache write failed", logging.String("error", cerr.Error()))
		}
	}
	log.Info("menu analyzed",
		logging.String("status", string(analysis.Status)),
		logging.Int("items", len(analysis.Items)),
		logging.Int("prompt_tokens", completion.Usage.PromptTokens),
		logging.Int("completion_tokens", completion.Usage.CompletionTokens))
	return analysis, nil
}

func (a *Analyzer) cacheKey(img Image, system, user string) string {
	h := sha256.New()
	h.Write([]byte(a.reader.Name() + "\x00" + a.reader.Model() + "\x00"))
	h.Write([]byte(system + "\x00" + user + "\x00"))
	h.Write(img.Data)
	return "scan:" + hex.EncodeToString(h.Sum(nil))
}

func normalizeList(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		n := models.NormalizeAllergen(s)
		if n == "" {
			continue
		}
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

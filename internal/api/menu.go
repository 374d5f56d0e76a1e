package api

import (
	"fmt"
	"net/http"

	"menu-allergen-scanner/internal/constants"
	"menu-allergen-scanner/internal/matching"
	"menu-allergen-scanner/internal/models"
	"menu-allergen-scanner/internal/vision"
	errs "menu-allergen-scanner/pkg/errors"
)

type scanRequest struct {
	Image          string   `json:"image"`
	RestaurantName string   `json:"restaurantName,omitempty"`
	Language       string   `json:"language,omitempty"`
	Allergens      []string `json:"allergens"`
}

type scanResponse struct {
	*models.MenuAnalysis
	Flagged []models.FlaggedItem `json:"flagged"`
}

// handleScan analyzes a base64 menu photo and flags the diner's allergens.
func (s *server) handleScan(w http.ResponseWriter, r *http.Request) {
	const op = "api.handleScan"
	maxImage := s.Settings.Current().MaxImageBytes

	// base64 inflates by 4/3; leave room for the other fields
	limit := maxImage/3*4 + 4 + constants.MaxJSONBodyBytes
	var req scanRequest
	if err := decodeJSON(w, r, limit, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if len(req.Allergens) > constants.MaxUserAllergens {
		s.writeError(w, r, errs.NewValidation(op, fmt.Sprintf("at most %d allergens", constants.MaxUserAllergens), nil))
		return
	}
	img, err := vision.DecodeImage(req.Image, maxImage)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	analysis, err := s.Analyzer.Analyze(r.Context(), vision.Request{
		Image:          img,
		RestaurantHint: req.RestaurantName,
		Language:       req.Language,
		UserAllergens:  req.Allergens,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	flagged := matching.FlagAllergens(analysis.Items, req.Allergens)
	if flagged == nil {
		flagged = []models.FlaggedItem{}
	}
	writeJSON(w, http.StatusOK, scanResponse{MenuAnalysis: analysis, Flagged: flagged})
}

type menuMatchRequest struct {
	Source []models.MenuItem `json:"source"`
	Target []models.MenuItem `json:"target"`
}

type menuMatchResponse struct {
	Matches   []models.MenuMatch `json:"matches"`
	Unmatched []int              `json:"unmatched"`
	MinScore  float64            `json:"min_score"`
}

// handleMenuMatch pairs each source item with its best target item. Matches
// scoring under the configured minimum are reported as unmatched.
func (s *server) handleMenuMatch(w http.ResponseWriter, r *http.Request) {
	const op = "api.handleMenuMatch"
	var req menuMatchRequest
	if err := decodeJSON(w, r, constants.MaxJSONBodyBytes, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if len(req.Source) > constants.MaxMenuItems || len(req.Target) > constants.MaxMenuItems {
		s.writeError(w, r, errs.NewValidation(op, fmt.Sprintf("at most %d items per list", constants.MaxMenuItems), nil))
		return
	}

	minScore := s.Settings.Matching().Menu.MinScore
	resp := menuMatchResponse{Matches: []models.MenuMatch{}, Unmatched: []int{}, MinScore: minScore}
	matched := make(map[int]bool, len(req.Source))
	for _, m := range matching.BestMenuMatches(req.Source, req.Target) {
		if m.Score < minScore {
			continue
		}
		matched[m.SourceIndex] = true
		resp.Matches = append(resp.Matches, m)
	}
	for i := range req.Source {
		found := matched[i]
		if !found {
			resp.Unmatched = append(resp.Unmatched, i)
		}
		if s.Metrics != nil {
			s.Metrics.ObserveMatch("menu", found)
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

type similarityRequest struct {
	Source *models.MenuItem `json:"source"`
	Target *models.MenuItem `json:"target"`
}

type similarityResponse struct {
	Score           float64 `json:"score"`
	NameSimilarity  float64 `json:"name_similarity"`
	AllergenOverlap float64 `json:"allergen_overlap"`
}

func (s *server) handleSimilarity(w http.ResponseWriter, r *http.Request) {
	const op = "api.handleSimilarity"
	var req similarityRequest
	if err := decodeJSON(w, r, constants.MaxJSONBodyBytes, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if req.Source == nil || req.Target == nil {
		s.writeError(w, r, errs.NewValidation(op, "source and target are required", nil))
		return
	}
	writeJSON(w, http.StatusOK, similarityResponse{
		Score:           matching.MenuItemSimilarity(*req.Source, *req.Target),
		NameSimilarity:  matching.NameSimilarity(req.Target.Name, req.Source.Name),
		AllergenOverlap: matching.AllergenOverlap(*req.Source, *req.Target),
	})
}

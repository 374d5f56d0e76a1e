package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"menu-allergen-scanner/internal/matching"
	"menu-allergen-scanner/internal/models"
	"menu-allergen-scanner/internal/places"
	"menu-allergen-scanner/pkg/config"
	"menu-allergen-scanner/pkg/geography"
)

type settingsFunc func() (config.MatchingSettings, error)

func newRootCmd(out io.Writer) *cobra.Command {
	root := &cobra.Command{
		Use:   "matchctl",
		Short: "Run the menu and restaurant matchers offline",
		Long: `
matchctl runs the matching code the API uses on items and places read from
JSON files ("-" reads stdin) and prints the result as JSON.

$ matchctl similarity "Pizza Palace Downtown" "palace pizza"
{"tier":90,"score":0.9}
`,
		SilenceUsage: true,
	}
	root.SetOut(out)

	var matchingFile string
	root.PersistentFlags().StringVar(&matchingFile, "matching", "", "YAML file with matching thresholds")
	settings := func() (config.MatchingSettings, error) {
		base := config.Load().Matching()
		if matchingFile == "" {
			return base, nil
		}
		return config.LoadMatching(matchingFile, base)
	}

	root.AddCommand(
		newSimilarityCmd(),
		newDistanceCmd(),
		newMenuCmd(settings),
		newRestaurantCmd(settings),
	)
	return root
}

type similarityResult struct {
	Tier  int     `json:"tier"`
	Score float64 `json:"score"`
}

func newSimilarityCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "similarity CANDIDATE QUERY",
		Short: "Score a candidate name against a query",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			tier := matching.TieredSimilarity(args[0], args[1])
			return printJSON(cmd, similarityResult{Tier: tier, Score: matching.NameSimilarity(args[0], args[1])})
		},
	}
}

type distanceResult struct {
	Meters float64 `json:"meters"`
	Km     float64 `json:"km"`
}

func newDistanceCmd() *cobra.Command {
	var from, to string
	cmd := &cobra.Command{
		Use:   "distance --from LAT,LNG --to LAT,LNG",
		Short: "Great-circle distance between two coordinates",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := parseCoordinate(from)
			if err != nil {
				return fmt.Errorf("--from: %w", err)
			}
			b, err := parseCoordinate(to)
			if err != nil {
				return fmt.Errorf("--to: %w", err)
			}
			m := geography.Between(a, b)
			return printJSON(cmd, distanceResult{Meters: m, Km: m / 1000})
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "origin as LAT,LNG")
	cmd.Flags().StringVar(&to, "to", "", "destination as LAT,LNG")
	_ = cmd.MarkFlagRequired("from")
	_ = cmd.MarkFlagRequired("to")
	return cmd
}

func parseCoordinate(s string) (geography.Coordinate, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return geography.Coordinate{}, fmt.Errorf("want LAT,LNG, got %q", s)
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return geography.Coordinate{}, fmt.Errorf("latitude: %w", err)
	}
	lng, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return geography.Coordinate{}, fmt.Errorf("longitude: %w", err)
	}
	c := geography.Coordinate{Lat: lat, Lng: lng}
	if !c.Valid() {
		return geography.Coordinate{}, fmt.Errorf("%q is out of range", s)
	}
	return c, nil
}

type menuResult struct {
	Matches   []models.MenuMatch `json:"matches"`
	Unmatched []int              `json:"unmatched"`
}

func newMenuCmd(settings settingsFunc) *cobra.Command {
	var minScore float64
	cmd := &cobra.Command{
		Use:   "menu SOURCE.json TARGET.json",
		Short: "Pair each source menu item with its closest target item",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var source, target []models.MenuItem
			if err := readJSON(cmd, args[0], &source); err != nil {
				return err
			}
			if err := readJSON(cmd, args[1], &target); err != nil {
				return err
			}
			if !cmd.Flags().Changed("min-score") {
				s, err := settings()
				if err != nil {
					return err
				}
				minScore = s.Menu.MinScore
			}

			res := menuResult{Matches: []models.MenuMatch{}, Unmatched: []int{}}
			matched := make(map[int]bool)
			for _, m := range matching.BestMenuMatches(source, target) {
				if m.Score >= minScore {
					matched[m.SourceIndex] = true
					res.Matches = append(res.Matches, m)
				}
			}
			for i := range source {
				if !matched[i] {
					res.Unmatched = append(res.Unmatched, i)
				}
			}
			return printJSON(cmd, res)
		},
	}
	cmd.Flags().Float64Var(&minScore, "min-score", 0, "drop matches scoring below this")
	return cmd
}

func newRestaurantCmd(settings settingsFunc) *cobra.Command {
	var minName, maxDistance float64
	cmd := &cobra.Command{
		Use:   "restaurant TARGET.json CANDIDATES.json",
		Short: "Match a restaurant record against candidate places",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var target models.Place
			var candidates []models.Place
			if err := readJSON(cmd, args[0], &target); err != nil {
				return err
			}
			if err := readJSON(cmd, args[1], &candidates); err != nil {
				return err
			}
			s, err := settings()
			if err != nil {
				return err
			}
			gate := matching.RestaurantGate{
				MinNameSimilarity: s.Restaurant.MinNameSimilarity,
				MaxDistanceMeters: s.Restaurant.MaxDistanceMeters,
			}
			if cmd.Flags().Changed("min-name") {
				gate.MinNameSimilarity = minName
			}
			if cmd.Flags().Changed("max-distance") {
				gate.MaxDistanceMeters = maxDistance
			}
			return printJSON(cmd, places.Match(target, candidates, gate))
		},
	}
	cmd.Flags().Float64Var(&minName, "min-name", matching.DefaultMinNameSimilarity, "minimum name similarity, 0..1")
	cmd.Flags().Float64Var(&maxDistance, "max-distance", matching.DefaultMaxDistanceMeters, "maximum distance in meters")
	return cmd
}

func readJSON(cmd *cobra.Command, path string, v interface{}) error {
	var r io.Reader = cmd.InOrStdin()
	if path != "-" {
		f, err := os.Open(filepath.Clean(path))
		if err != nil {
			return err
		}
		defer f.Close()
		r = f
	}
	if err := json.NewDecoder(r).Decode(v); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}

func printJSON(cmd *cobra.Command, v interface{}) error {
	return json.NewEncoder(cmd.OutOrStdout()).Encode(v)
}

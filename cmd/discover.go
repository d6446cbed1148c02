package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/wom-group/openings-cli/internal/config"
	"github.com/wom-group/openings-cli/internal/dates"
	"github.com/wom-group/openings-cli/internal/export"
	"github.com/wom-group/openings-cli/internal/model"
	"github.com/wom-group/openings-cli/internal/pipeline"
	"github.com/wom-group/openings-cli/internal/store"
	"github.com/wom-group/openings-cli/pkg/nominatim"
	"github.com/wom-group/openings-cli/pkg/overpass"
	"github.com/wom-group/openings-cli/pkg/places"
	"github.com/wom-group/openings-cli/pkg/registry"
)

var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "Run a venue discovery query",
	Long:  "Queries the geo-tag source (always), then optionally place search and the business registry, and writes the merged result list.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		applyDiscoverFlags(cmd, cfg)
		if err := cfg.Validate("discover"); err != nil {
			return err
		}

		qc, err := buildQueryContext(cmd, cfg)
		if err != nil {
			return err
		}

		noStore, _ := cmd.Flags().GetBool("no-store")
		var st store.Store
		if !noStore {
			st, err = initStore(ctx)
			if err != nil {
				return err
			}
			defer st.Close() //nolint:errcheck
		}

		p := buildPipeline(cfg, qc, st)

		var run *model.Run
		if st != nil {
			run, err = st.CreateRun(ctx, qc.City, qc.Cutoff, runParams(qc))
			if err != nil {
				return err
			}
		}

		result, err := p.Run(ctx, qc)
		if err != nil {
			if st != nil && run != nil {
				if ferr := st.FailRun(ctx, run.ID); ferr != nil {
					zap.L().Warn("could not mark run failed", zap.Error(ferr))
				}
			}
			return err
		}

		if st != nil && run != nil {
			if err := st.SaveRecords(ctx, run.ID, result.Records); err != nil {
				return err
			}
			if err := st.CompleteRun(ctx, run.ID, result.SourceCounts, len(result.Records)); err != nil {
				return err
			}
		}

		out, closeOut, err := openOutput(cmd)
		if err != nil {
			return err
		}
		defer closeOut()

		format, _ := cmd.Flags().GetString("format")
		if err := export.Write(out, format, result.Records); err != nil {
			return err
		}

		printSummary(os.Stderr, run, result)
		return nil
	},
}

func init() {
	discoverCmd.Flags().String("city", "", "city to search (default from config)")
	discoverCmd.Flags().Int("months-back", 0, "recency window in months (default from config)")
	discoverCmd.Flags().StringSlice("amenities", nil, "amenity values to match (default from config)")
	discoverCmd.Flags().Bool("use-newer-proxy", false, "also keep dateless venues edited after the cutoff (medium confidence)")
	discoverCmd.Flags().Bool("reverse-geocode", false, "backfill missing addresses via Nominatim")
	discoverCmd.Flags().Bool("places", false, "include Google Places text search candidates")
	discoverCmd.Flags().Bool("registry", false, "include business registry registrations")
	discoverCmd.Flags().String("registry-url", "", "pin the registry base URL, skipping endpoint discovery")
	discoverCmd.Flags().StringSlice("business-line-codes", nil, "registry business line codes (default from config)")
	discoverCmd.Flags().Bool("strict-restaurants", false, "restrict all sources to restaurants only")
	discoverCmd.Flags().Int("max-results", 0, "cap on registry results (default from config, 0 = unlimited)")
	discoverCmd.Flags().String("format", "", "output format: csv or jsonl (default from config)")
	discoverCmd.Flags().StringP("output", "o", "", "output file (default stdout)")
	discoverCmd.Flags().Bool("no-store", false, "skip persisting the run to the local database")

	rootCmd.AddCommand(discoverCmd)
}

// applyDiscoverFlags folds explicitly-set flags over the config defaults,
// so Validate sees the effective values.
func applyDiscoverFlags(cmd *cobra.Command, cfg *config.Config) {
	if cmd.Flags().Changed("city") {
		cfg.Discover.City, _ = cmd.Flags().GetString("city")
	}
	if cmd.Flags().Changed("months-back") {
		cfg.Discover.MonthsBack, _ = cmd.Flags().GetInt("months-back")
	}
	if cmd.Flags().Changed("amenities") {
		cfg.Discover.Amenities, _ = cmd.Flags().GetStringSlice("amenities")
	}
	if cmd.Flags().Changed("business-line-codes") {
		cfg.Discover.BusinessLineCodes, _ = cmd.Flags().GetStringSlice("business-line-codes")
	}
	if cmd.Flags().Changed("max-results") {
		cfg.Discover.MaxResults, _ = cmd.Flags().GetInt("max-results")
	}
	if cmd.Flags().Changed("format") {
		cfg.Export.Format, _ = cmd.Flags().GetString("format")
	}
	if cmd.Flags().Changed("registry-url") {
		cfg.Registry.BaseURL, _ = cmd.Flags().GetString("registry-url")
	}
}

func buildQueryContext(cmd *cobra.Command, cfg *config.Config) (pipeline.QueryContext, error) {
	useNewerProxy, _ := cmd.Flags().GetBool("use-newer-proxy")
	reverseGeocode, _ := cmd.Flags().GetBool("reverse-geocode")
	usePlaces, _ := cmd.Flags().GetBool("places")
	useRegistry, _ := cmd.Flags().GetBool("registry")
	strict, _ := cmd.Flags().GetBool("strict-restaurants")

	if reverseGeocode && cfg.Nominatim.UserAgent == "" {
		return pipeline.QueryContext{}, eris.New("discover: nominatim.user_agent is required for --reverse-geocode")
	}
	if usePlaces && cfg.Places.Key == "" {
		return pipeline.QueryContext{}, eris.New("discover: places.key is required for --places")
	}

	return pipeline.QueryContext{
		City:              cfg.Discover.City,
		Cutoff:            dates.SubtractMonths(time.Now().UTC(), cfg.Discover.MonthsBack),
		Amenities:         cfg.Discover.Amenities,
		RegisteredOffice:  cfg.Discover.City,
		BusinessLineCodes: cfg.Discover.BusinessLineCodes,
		PageSize:          cfg.Discover.PageSize,
		MaxResults:        cfg.Discover.MaxResults,
		UseNewerProxy:     useNewerProxy,
		ReverseGeocode:    reverseGeocode,
		UsePlaceSearch:    usePlaces,
		UseRegistry:       useRegistry,
		StrictRestaurants: strict,
	}, nil
}

func buildPipeline(cfg *config.Config, qc pipeline.QueryContext, st store.Store) *pipeline.Pipeline {
	var overpassOpts []overpass.Option
	if len(cfg.Overpass.Mirrors) > 0 {
		overpassOpts = append(overpassOpts, overpass.WithMirrors(cfg.Overpass.Mirrors))
	}

	opts := []pipeline.PipelineOption{}

	if qc.ReverseGeocode {
		nomOpts := []nominatim.Option{nominatim.WithRateLimit(rate.Limit(cfg.Nominatim.RPS))}
		if cfg.Nominatim.BaseURL != "" {
			nomOpts = append(nomOpts, nominatim.WithBaseURL(cfg.Nominatim.BaseURL))
		}
		opts = append(opts, pipeline.WithNominatim(nominatim.NewClient(cfg.Nominatim.UserAgent, nomOpts...)))

		if st != nil {
			opts = append(opts, pipeline.WithReverseCache(store.NewGeocodeCache(st)))
		}
	}

	if qc.UsePlaceSearch {
		var placeOpts []places.Option
		if cfg.Places.BaseURL != "" {
			placeOpts = append(placeOpts, places.WithBaseURL(cfg.Places.BaseURL))
		}
		opts = append(opts, pipeline.WithPlaces(places.NewClient(cfg.Places.Key, placeOpts...)))
	}

	if qc.UseRegistry {
		if cfg.Registry.BaseURL != "" {
			opts = append(opts, pipeline.WithRegistryEndpoint(registry.FixedEndpoint(cfg.Registry.BaseURL)))
		} else {
			opts = append(opts, pipeline.WithRegistryResolver(registry.NewResolver()))
		}
	}

	return pipeline.New(overpass.NewClient(overpassOpts...), opts...)
}

func runParams(qc pipeline.QueryContext) model.RunParams {
	return model.RunParams{
		MonthsBack:        monthsBetween(qc.Cutoff, time.Now().UTC()),
		Amenities:         qc.Amenities,
		BusinessLineCodes: qc.BusinessLineCodes,
		UseNewerProxy:     qc.UseNewerProxy,
		ReverseGeocode:    qc.ReverseGeocode,
		UsePlaceSearch:    qc.UsePlaceSearch,
		UseRegistry:       qc.UseRegistry,
		StrictRestaurants: qc.StrictRestaurants,
	}
}

// monthsBetween reports whole months from a to b, for recording the
// effective recency window.
func monthsBetween(a, b time.Time) int {
	months := int(b.Year()-a.Year())*12 + int(b.Month()-a.Month())
	if b.Day() < a.Day() {
		months--
	}
	if months < 0 {
		return 0
	}
	return months
}

func initStore(ctx context.Context) (store.Store, error) {
	st, err := store.NewSQLite(cfg.Store.Path)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close() //nolint:errcheck
		return nil, err
	}
	return st, nil
}

func openOutput(cmd *cobra.Command) (io.Writer, func(), error) {
	path, _ := cmd.Flags().GetString("output")
	if path == "" {
		return os.Stdout, func() {}, nil
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, nil, eris.Wrapf(err, "discover: create output %s", path)
	}
	return f, func() { _ = f.Close() }, nil
}

func printSummary(out io.Writer, run *model.Run, result *pipeline.Result) {
	if run != nil {
		fmt.Fprintf(out, "Run %s complete.\n", run.ID)
	}
	fmt.Fprintf(out, "Records: %d\n", len(result.Records))
	for _, src := range []model.Source{model.SourceOpenStreetMap, model.SourceGooglePlaces, model.SourceRegistry} {
		if n, ok := result.SourceCounts[src]; ok {
			fmt.Fprintf(out, "  %s: %d\n", src, n)
		}
	}
	for _, src := range result.SkippedSources {
		fmt.Fprintf(out, "  %s: skipped\n", src)
	}
}

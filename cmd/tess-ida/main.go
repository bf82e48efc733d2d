// Package main provides the CLI for the TESS IDA batch pipeline: downloading
// monthly instrument files from the archive, transforming them into
// structured artifacts, and combining artifacts over month ranges.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/couchcryptid/tess-ida-etl/internal/config"
	"github.com/couchcryptid/tess-ida-etl/internal/domain"
	"github.com/couchcryptid/tess-ida-etl/internal/ephem"
	"github.com/couchcryptid/tess-ida-etl/internal/fetch"
	"github.com/couchcryptid/tess-ida-etl/internal/observability"
	"github.com/couchcryptid/tess-ida-etl/internal/pipeline"
	"github.com/couchcryptid/tess-ida-etl/internal/store"
)

// version is stamped by the release build.
var version = "dev"

// Command represents a CLI command.
type Command struct {
	Name        string
	Description string
	Run         func(app *App, args []string) error
}

// App carries the process-wide collaborators every command shares.
type App struct {
	ctx     context.Context
	cfg     *config.Config
	logger  *slog.Logger
	metrics *observability.Metrics
}

func main() {
	commands := map[string]*Command{
		"get": {
			Name:        "get",
			Description: "Download monthly files (single | range | set)",
			Run:         getCmd,
		},
		"transform": {
			Name:        "transform",
			Description: "Transform downloaded files into artifacts (single | range)",
			Run:         transformCmd,
		},
		"combine": {
			Name:        "combine",
			Description: "Combine a station's artifacts over a month range",
			Run:         combineCmd,
		},
		"pipeline": {
			Name:        "pipeline",
			Description: "Download, transform, and combine in one run (single | range)",
			Run:         pipelineCmd,
		},
		"location": {
			Name:        "location",
			Description: "Manage station reference coordinates (add | update | delete | list)",
			Run:         locationCmd,
		},
		"admin": {
			Name:        "admin",
			Description: "State database administration (create)",
			Run:         adminCmd,
		},
		"version": {
			Name:        "version",
			Description: "Show version information",
			Run:         versionCmd,
		},
	}

	if len(os.Args) < 2 {
		printUsage(commands)
		os.Exit(0)
	}
	cmdName := os.Args[1]
	if cmdName == "help" || cmdName == "-h" || cmdName == "--help" {
		printUsage(commands)
		os.Exit(0)
	}
	cmd, ok := commands[cmdName]
	if !ok {
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmdName)
		printUsage(commands)
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.MetricsAddr != "" {
		srv := observability.NewServer(cfg.MetricsAddr, logger)
		go func() {
			if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server error", "error", err)
			}
		}()
		defer func() {
			if err := srv.Shutdown(context.Background()); err != nil {
				logger.Error("metrics server shutdown error", "error", err)
			}
		}()
	}

	app := &App{ctx: ctx, cfg: cfg, logger: logger, metrics: metrics}
	if err := cmd.Run(app, os.Args[2:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage(commands map[string]*Command) {
	fmt.Println("tess-ida - TESS photometer IDA file pipeline")
	fmt.Println()
	fmt.Println("Usage: tess-ida <command> [subcommand] [options]")
	fmt.Println()
	fmt.Println("Commands:")
	for _, name := range []string{"get", "transform", "combine", "pipeline", "location", "admin", "version"} {
		if c, ok := commands[name]; ok {
			fmt.Printf("  %-10s %s\n", c.Name, c.Description)
		}
	}
	fmt.Println()
	fmt.Println("Run 'tess-ida <command> <subcommand> -h' for help on a specific command.")
}

func (app *App) fetchClient() (*fetch.Client, error) {
	return fetch.NewClient(app.cfg.IDAURL, app.cfg.IDABaseDir, app.cfg.FetchTimeout,
		app.cfg.FetchConcurrent, app.logger, app.metrics)
}

// openStore opens the state database, warning once when none is configured.
func (app *App) openStore() (*store.Store, error) {
	s, err := store.Open(app.cfg.DatabaseFile)
	if err != nil {
		return nil, err
	}
	if !s.Enabled() {
		app.logger.Warn("DATABASE_FILE not set: running without change-detection cache or reference coordinates")
	}
	return s, nil
}

func (app *App) transformer(s *store.Store, fix bool) *pipeline.Transformer {
	return pipeline.NewTransformer(s, ephem.New(), fix, app.logger, app.metrics)
}

// monthFlags registers -since/-until with the conventional defaults:
// previous month through current month.
func monthFlags(fs *flag.FlagSet) (since, until *string) {
	since = fs.String("since", domain.PreviousMonth().String(), "first month, YYYY-MM")
	until = fs.String("until", domain.CurrentMonth().String(), "last month, YYYY-MM")
	return since, until
}

func parseMonthFlag(name, value string) (domain.Month, error) {
	m, err := domain.ParseMonth(value)
	if err != nil {
		return domain.Month{}, fmt.Errorf("-%s: %w", name, err)
	}
	return m, nil
}

func requireStation(name string) error {
	if name == "" {
		return errors.New("-name is required (e.g. -name stars289)")
	}
	return nil
}

func subcommand(args []string, allowed ...string) (string, []string, error) {
	if len(args) == 0 {
		return "", nil, fmt.Errorf("missing subcommand (one of: %s)", strings.Join(allowed, ", "))
	}
	for _, a := range allowed {
		if args[0] == a {
			return args[0], args[1:], nil
		}
	}
	return "", nil, fmt.Errorf("unknown subcommand %q (one of: %s)", args[0], strings.Join(allowed, ", "))
}

func getCmd(app *App, args []string) error {
	sub, rest, err := subcommand(args, "single", "range", "set")
	if err != nil {
		return err
	}

	switch sub {
	case "single":
		fs := flag.NewFlagSet("get single", flag.ExitOnError)
		name := fs.String("name", "", "station name")
		monthStr := fs.String("month", domain.PreviousMonth().String(), "month to fetch, YYYY-MM")
		exact := fs.String("exact", "", "exact archive file name (overrides -month)")
		if err := fs.Parse(rest); err != nil {
			return err
		}
		if err := requireStation(*name); err != nil {
			return err
		}
		client, err := app.fetchClient()
		if err != nil {
			return err
		}
		if *exact != "" {
			_, err := client.FetchExact(app.ctx, *name, *exact)
			return err
		}
		m, err := parseMonthFlag("month", *monthStr)
		if err != nil {
			return err
		}
		_, err = client.FetchMonth(app.ctx, *name, m)
		return err

	case "range":
		fs := flag.NewFlagSet("get range", flag.ExitOnError)
		name := fs.String("name", "", "station name")
		sinceStr, untilStr := monthFlags(fs)
		if err := fs.Parse(rest); err != nil {
			return err
		}
		if err := requireStation(*name); err != nil {
			return err
		}
		since, until, err := parseRange(*sinceStr, *untilStr)
		if err != nil {
			return err
		}
		client, err := app.fetchClient()
		if err != nil {
			return err
		}
		written, skipped, err := client.FetchRange(app.ctx, *name, since, until)
		app.logger.Info("download done", "station", *name, "written", written, "skipped", skipped)
		return err

	default: // set
		fs := flag.NewFlagSet("get set", flag.ExitOnError)
		from := fs.Int("from", 0, "first station number of a range selector")
		to := fs.Int("to", 0, "last station number of a range selector")
		list := fs.String("list", "", "comma-separated station numbers")
		nearLon := fs.Float64("near-longitude", 0, "reference longitude for a proximity selector")
		nearLat := fs.Float64("near-latitude", 0, "reference latitude for a proximity selector")
		radius := fs.Float64("radius", 0, "proximity radius in km (enables the proximity selector)")
		sinceStr, untilStr := monthFlags(fs)
		if err := fs.Parse(rest); err != nil {
			return err
		}
		since, until, err := parseRange(*sinceStr, *untilStr)
		if err != nil {
			return err
		}
		sel, err := buildSelector(*from, *to, *list, *nearLon, *nearLat, *radius)
		if err != nil {
			return err
		}
		client, err := app.fetchClient()
		if err != nil {
			return err
		}
		written, skipped, err := client.FetchSet(app.ctx, sel, since, until)
		app.logger.Info("download done", "written", written, "skipped", skipped)
		return err
	}
}

func parseRange(sinceStr, untilStr string) (since, until domain.Month, err error) {
	if since, err = parseMonthFlag("since", sinceStr); err != nil {
		return
	}
	until, err = parseMonthFlag("until", untilStr)
	return
}

func buildSelector(from, to int, list string, nearLon, nearLat, radius float64) (fetch.Selector, error) {
	switch {
	case radius > 0:
		return fetch.Near{Longitude: nearLon, Latitude: nearLat, RadiusKm: radius}, nil
	case list != "":
		var ids fetch.IDList
		for _, tok := range strings.Split(list, ",") {
			id, err := strconv.Atoi(strings.TrimSpace(tok))
			if err != nil {
				return nil, fmt.Errorf("-list: bad station number %q", tok)
			}
			ids = append(ids, id)
		}
		return ids, nil
	case from > 0 || to > 0:
		return fetch.IDRange{From: from, To: to}, nil
	default:
		return nil, errors.New("no selector: use -from/-to, -list, or -radius with -near-longitude/-near-latitude")
	}
}

func transformCmd(app *App, args []string) error {
	sub, rest, err := subcommand(args, "single", "range")
	if err != nil {
		return err
	}

	fs := flag.NewFlagSet("transform "+sub, flag.ExitOnError)
	name := fs.String("name", "", "station name")
	fix := fs.Bool("fix", false, "substitute reference coordinates for unresolved header positions")
	var monthStr *string
	var sinceStr, untilStr *string
	if sub == "single" {
		monthStr = fs.String("month", domain.PreviousMonth().String(), "month to transform, YYYY-MM")
	} else {
		sinceStr, untilStr = monthFlags(fs)
	}
	if err := fs.Parse(rest); err != nil {
		return err
	}
	if err := requireStation(*name); err != nil {
		return err
	}

	s, err := app.openStore()
	if err != nil {
		return err
	}
	defer s.Close()
	tr := app.transformer(s, *fix)

	if sub == "single" {
		m, err := parseMonthFlag("month", *monthStr)
		if err != nil {
			return err
		}
		fileName := domain.MonthlyFileName(*name, m)
		rawPath := filepath.Join(domain.StationDir(app.cfg.IDABaseDir, *name), fileName)
		outPath := filepath.Join(domain.StationDir(app.cfg.ECSVBaseDir, *name), domain.ArtifactName(fileName))
		_, err = tr.TransformOne(app.ctx, rawPath, outPath)
		var noCoords *domain.NoCoordinatesError
		if errors.As(err, &noCoords) {
			app.logger.Warn("skipping file without coordinates", "file", fileName, "error", err)
			return nil
		}
		return err
	}

	since, until, err := parseRange(*sinceStr, *untilStr)
	if err != nil {
		return err
	}
	written, skipped, err := tr.TransformRange(app.ctx, app.cfg.IDABaseDir, app.cfg.ECSVBaseDir, *name, since, until)
	app.logger.Info("transform done", "station", *name, "written", written, "skipped", skipped)
	return err
}

func combineCmd(app *App, args []string) error {
	fs := flag.NewFlagSet("combine", flag.ExitOnError)
	name := fs.String("name", "", "station name")
	out := fs.String("out", "", "output file name (default <station>_<YYYYMM>-<YYYYMM>.ecsv)")
	sinceStr, untilStr := monthFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := requireStation(*name); err != nil {
		return err
	}
	since, until, err := parseRange(*sinceStr, *untilStr)
	if err != nil {
		return err
	}

	combiner := pipeline.NewCombiner(app.logger, app.metrics)
	_, err = combiner.Combine(app.cfg.ECSVBaseDir, *name, since, until, *out)
	return err
}

func pipelineCmd(app *App, args []string) error {
	sub, rest, err := subcommand(args, "single", "range")
	if err != nil {
		return err
	}

	fs := flag.NewFlagSet("pipeline "+sub, flag.ExitOnError)
	name := fs.String("name", "", "station name")
	fix := fs.Bool("fix", false, "substitute reference coordinates for unresolved header positions")
	skipDownload := fs.Bool("skip-download", false, "transform already-downloaded files only")
	var monthStr *string
	var sinceStr, untilStr *string
	var combine *bool
	if sub == "single" {
		monthStr = fs.String("month", domain.PreviousMonth().String(), "month to process, YYYY-MM")
	} else {
		sinceStr, untilStr = monthFlags(fs)
		combine = fs.Bool("combine", false, "combine the range after transforming")
	}
	if err := fs.Parse(rest); err != nil {
		return err
	}
	if err := requireStation(*name); err != nil {
		return err
	}

	var client *fetch.Client
	if !*skipDownload {
		if client, err = app.fetchClient(); err != nil {
			return err
		}
	}
	s, err := app.openStore()
	if err != nil {
		return err
	}
	defer s.Close()

	p := pipeline.New(client, app.transformer(s, *fix),
		pipeline.NewCombiner(app.logger, app.metrics),
		app.cfg.IDABaseDir, app.cfg.ECSVBaseDir, app.logger, app.metrics)

	if sub == "single" {
		m, err := parseMonthFlag("month", *monthStr)
		if err != nil {
			return err
		}
		return p.RunSingle(app.ctx, *name, m)
	}

	since, until, err := parseRange(*sinceStr, *untilStr)
	if err != nil {
		return err
	}
	return p.RunRange(app.ctx, *name, since, until, *combine)
}

func locationCmd(app *App, args []string) error {
	sub, rest, err := subcommand(args, "add", "update", "delete", "list")
	if err != nil {
		return err
	}
	if app.cfg.DatabaseFile == "" {
		return errors.New("location commands need DATABASE_FILE to be set")
	}
	s, err := store.Open(app.cfg.DatabaseFile)
	if err != nil {
		return err
	}
	defer s.Close()

	fs := flag.NewFlagSet("location "+sub, flag.ExitOnError)
	var name *string
	var lat, lon, height *float64
	if sub != "list" {
		name = fs.String("name", "", "station name")
	}
	if sub == "add" || sub == "update" {
		lat = fs.Float64("latitude", 0, "station latitude, degrees north")
		lon = fs.Float64("longitude", 0, "station longitude, degrees east")
		height = fs.Float64("height", 0, "station height above sea level, meters")
	}
	if err := fs.Parse(rest); err != nil {
		return err
	}

	switch sub {
	case "add":
		if err := requireStation(*name); err != nil {
			return err
		}
		return s.AddCoords(app.ctx, *name, domain.Position{Latitude: *lat, Longitude: *lon, Height: *height})
	case "update":
		if err := requireStation(*name); err != nil {
			return err
		}
		if err := s.UpdateCoords(app.ctx, *name, domain.Position{Latitude: *lat, Longitude: *lon, Height: *height}); err != nil {
			return err
		}
		app.logger.Warn("coordinates updated: existing artifacts for this station carry stale ephemeris columns until re-transformed",
			"station", *name)
		return nil
	case "delete":
		if err := requireStation(*name); err != nil {
			return err
		}
		return s.DeleteCoords(app.ctx, *name)
	default: // list
		coords, err := s.ListCoords(app.ctx)
		if err != nil {
			return err
		}
		for _, sc := range coords {
			fmt.Printf("%-12s %11.6f %11.6f %8.1f\n",
				sc.Name, sc.Position.Latitude, sc.Position.Longitude, sc.Position.Height)
		}
		return nil
	}
}

func adminCmd(app *App, args []string) error {
	_, _, err := subcommand(args, "create")
	if err != nil {
		return err
	}
	if app.cfg.DatabaseFile == "" {
		return errors.New("admin create needs DATABASE_FILE to be set")
	}
	s, err := store.Open(app.cfg.DatabaseFile)
	if err != nil {
		return err
	}
	app.logger.Info("state database ready", "file", app.cfg.DatabaseFile)
	return s.Close()
}

func versionCmd(_ *App, _ []string) error {
	fmt.Printf("tess-ida %s\n", version)
	return nil
}

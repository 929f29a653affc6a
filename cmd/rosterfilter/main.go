// Command rosterfilter filters a student roster from the command line.
//
// It prints the matching students as a table and, with -out, writes them to
// an Excel workbook:
//
//	rosterfilter -in roster.csv -out filtered.xlsx
//	rosterfilter -in roster.xlsx -exclude "Maths,Physics" -include-tutored
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/joho/godotenv"

	"github.com/JonMunkholm/rosterfilter/internal/catalog"
	"github.com/JonMunkholm/rosterfilter/internal/config"
	"github.com/JonMunkholm/rosterfilter/internal/core"
	"github.com/JonMunkholm/rosterfilter/internal/logging"
)

func main() {
	// Load overrides nothing already set in the environment.
	_ = godotenv.Load()

	os.Exit(run(os.Args[1:], os.LookupEnv, os.Stdout, os.Stderr))
}

// options are the parsed command-line flags.
type options struct {
	in             string
	out            string
	catalogPath    string
	exclude        string
	excludeSet     bool
	includeTutored bool
}

func parseFlags(args []string, stderr io.Writer) (*options, error) {
	fs := flag.NewFlagSet("rosterfilter", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var opts options
	fs.StringVar(&opts.in, "in", "", "roster to read (.csv or .xlsx)")
	fs.StringVar(&opts.out, "out", "", "workbook to write (.xlsx); omit to only print")
	fs.StringVar(&opts.catalogPath, "catalog", "", "YAML course catalog (default: ROSTER_CATALOG or built-in)")
	fs.StringVar(&opts.exclude, "exclude", "", "comma-separated course titles to exclude; overrides the catalog")
	fs.BoolVar(&opts.includeTutored, "include-tutored", false, "keep students who already have a personal tutor")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	fs.Visit(func(f *flag.Flag) {
		if f.Name == "exclude" {
			opts.excludeSet = true
		}
	})

	if opts.in == "" {
		fs.Usage()
		return nil, errors.New("-in is required")
	}
	if fs.NArg() > 0 {
		return nil, fmt.Errorf("unexpected arguments: %v", fs.Args())
	}
	return &opts, nil
}

// run executes one filter pass and returns the process exit code.
func run(args []string, lookup config.LookupFunc, stdout, stderr io.Writer) int {
	opts, err := parseFlags(args, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		fmt.Fprintln(stderr, "rosterfilter:", err)
		return 2
	}

	cfg, err := config.LoadFrom(lookup)
	if err != nil {
		fmt.Fprintln(stderr, "rosterfilter:", err)
		return 1
	}
	slog.SetDefault(logging.New(stderr, cfg.Logging.Level, cfg.Logging.Format))

	filter, err := filterFor(opts, cfg)
	if err != nil {
		fmt.Fprintln(stderr, "rosterfilter:", err)
		return 1
	}

	rs, stats, err := core.ReadFile(opts.in, filter, core.ColumnMap(cfg.Columns))
	if err != nil {
		fmt.Fprintln(stderr, core.FormatUserError(err))
		slog.Debug("read failed", "path", opts.in, "error", err)
		return 1
	}
	core.Sort(rs)

	slog.Info("roster filtered",
		"source", opts.in,
		"rows_read", stats.RowsRead,
		"included", stats.Included,
		"duplicates", stats.Duplicates,
	)

	if err := core.WriteTable(stdout, rs); err != nil {
		fmt.Fprintln(stderr, "rosterfilter:", err)
		return 1
	}

	if opts.out == "" {
		return 0
	}
	summary, err := core.Export(rs, opts.out)
	if err != nil {
		fmt.Fprintln(stderr, core.FormatUserError(err))
		slog.Debug("export failed", "path", opts.out, "error", err)
		return 1
	}
	fmt.Fprintf(stderr, "wrote %d students to %s\n", summary.Rows, opts.out)
	return 0
}

// filterFor builds the filter: -exclude when given, otherwise the catalog.
// The tutor filter is on unless -include-tutored is set.
func filterFor(opts *options, cfg *config.Config) (core.FilterConfig, error) {
	requireNoTutor := !opts.includeTutored

	if opts.excludeSet {
		return core.NewFilterConfig(catalog.ParseList(opts.exclude), requireNoTutor), nil
	}

	path := opts.catalogPath
	if path == "" {
		path = cfg.Roster.CatalogPath
	}
	cat, err := catalog.Load(path)
	if err != nil {
		return core.FilterConfig{}, err
	}
	return core.NewFilterConfig(cat.Courses(), requireNoTutor), nil
}

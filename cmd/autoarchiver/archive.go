package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/nao1215/autoarchiver/internal/config"
	applog "github.com/nao1215/autoarchiver/internal/log"
	"github.com/nao1215/autoarchiver/internal/module"
	"github.com/nao1215/autoarchiver/internal/modules"
	"github.com/nao1215/autoarchiver/internal/pipeline"
)

// stepFlags maps the step replacement flags to their capability.
var stepFlags = []struct {
	flag       string
	capability module.Capability
}{
	{"feeders", module.CapFeeder},
	{"extractors", module.CapExtractor},
	{"enrichers", module.CapEnricher},
	{"databases", module.CapDatabase},
	{"storages", module.CapStorage},
	{"formatters", module.CapFormatter},
}

// archiveOptions is what the archive command collects from its flags.
type archiveOptions struct {
	configPath   string
	store        bool
	modulePaths  []string
	steps        map[module.Capability][]string
	workers      int
	allowPrivate *bool
	verbose      bool
	urls         []string
	overrides    map[string]string
}

// NewArchiveCmd creates the archive command.
func NewArchiveCmd(overrides map[string]string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "archive [url...]",
		Short: "Archive URLs with the configured modules",
		Long: `Archive feeds URLs through the steps of the orchestration document.

URLs given as arguments are passed to the CLI feeder. When the document does
not exist it is created from the default template. When it lists no steps,
the CLI feeder and every module that needs no setup are used.

Examples:
  # Archive a page with the default document
  autoarchiver archive https://example.com/article

  # Use a specific document and override a module option
  autoarchiver archive -c archive.yaml --local_storage.save_to=/tmp/archive https://example.com

  # Replace the storages and formatter of the document for this run
  autoarchiver archive --storages local_storage --formatters json_formatter https://example.com

  # Read URLs from a CSV file and store the overrides in the document
  autoarchiver archive --feeders csv_feeder --csv_feeder.files urls.csv --store`,
		Args: cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := archiveOptionsFromFlags(cmd, args, overrides)
			if err != nil {
				return err
			}
			return runArchiveCmd(cmd, opts)
		},
	}

	cmd.Flags().StringP("config", "c", "",
		"Orchestration document (default: orchestration.yaml in the current or XDG config directory)")
	cmd.Flags().BoolP("store", "s", false,
		"Write the command line overrides back to the document")
	cmd.Flags().StringSlice("module-paths", nil,
		"Extra directories searched for modules")
	for _, sf := range stepFlags {
		cmd.Flags().StringSlice(sf.flag, nil,
			fmt.Sprintf("Replace steps.%s for this run", sf.flag))
	}
	cmd.Flags().IntP("workers", "w", 0,
		"Number of items processed concurrently (default: workers from the document)")
	cmd.Flags().Bool("allow-private-urls", false,
		"Allow localhost and private network URLs")

	return cmd
}

// archiveOptionsFromFlags collects the flag values of cmd.
func archiveOptionsFromFlags(cmd *cobra.Command, args []string, overrides map[string]string) (*archiveOptions, error) {
	opts := &archiveOptions{
		steps:     make(map[module.Capability][]string),
		urls:      args,
		overrides: overrides,
		verbose:   getVerboseFlag(cmd),
	}

	var err error
	if opts.configPath, err = cmd.Flags().GetString("config"); err != nil {
		return nil, err
	}
	if opts.store, err = cmd.Flags().GetBool("store"); err != nil {
		return nil, err
	}
	if opts.modulePaths, err = cmd.Flags().GetStringSlice("module-paths"); err != nil {
		return nil, err
	}
	for _, sf := range stepFlags {
		if !cmd.Flags().Changed(sf.flag) {
			continue
		}
		names, err := cmd.Flags().GetStringSlice(sf.flag)
		if err != nil {
			return nil, err
		}
		opts.steps[sf.capability] = names
	}
	if opts.workers, err = cmd.Flags().GetInt("workers"); err != nil {
		return nil, err
	}
	if cmd.Flags().Changed("allow-private-urls") {
		allow, err := cmd.Flags().GetBool("allow-private-urls")
		if err != nil {
			return nil, err
		}
		opts.allowPrivate = &allow
	}
	return opts, nil
}

// getVerboseFlag retrieves the verbose flag from the command or its parent.
func getVerboseFlag(cmd *cobra.Command) bool {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		verbose, err = cmd.Root().PersistentFlags().GetBool("verbose")
		if err != nil {
			return false
		}
	}
	return verbose
}

// runArchiveCmd runs the archive with signal handling. Only setup failures
// are returned; failed or aborted items are reported in the summary.
func runArchiveCmd(cmd *cobra.Command, opts *archiveOptions) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	start := time.Now()
	summary, err := runArchive(ctx, opts, cmd.ErrOrStderr())
	if summary != nil {
		fmt.Fprintln(cmd.OutOrStdout(), renderSummary(summary))
		fmt.Fprintf(cmd.OutOrStdout(), "Processed %d item(s) in %s\n",
			summary.Processed, time.Since(start).Round(time.Millisecond))
	}
	if errors.Is(err, pipeline.ErrAborted) {
		fmt.Fprintln(cmd.ErrOrStderr(), "Run interrupted; unfinished items were recorded as aborted.")
		return nil
	}
	return err
}

// runArchive resolves the configuration, assembles the steps and runs them.
// Logs go to logOut.
func runArchive(ctx context.Context, opts *archiveOptions, logOut io.Writer) (*pipeline.Summary, error) {
	bootstrap := applog.NewSecureLogger(logOut, opts.verbose)

	doc, docPath, created, err := loadDocument(opts.configPath)
	if err != nil {
		return nil, err
	}

	reg := module.New(module.WithLogger(bootstrap), module.WithTable(modules.Table()))
	if err := reg.Discover(moduleRoots(doc, opts.modulePaths)...); err != nil {
		return nil, fmt.Errorf("%w: %w", module.ErrSetup, err)
	}

	resolverOpts := []config.ResolverOption{config.WithOverrides(withURLs(opts.overrides, opts.urls))}
	for c, names := range opts.steps {
		resolverOpts = append(resolverOpts, config.WithSteps(c, names))
	}
	resolver := config.NewResolver(reg.Manifests(), doc, resolverOpts...)
	resolved, err := resolver.Resolve()
	if err != nil {
		return nil, err
	}

	cfg := config.NewConfig()
	cfg.ConfigFilePath = docPath
	cfg.Store = opts.store
	cfg.Verbose = opts.verbose
	cfg.ModulePaths = append(cfg.ModulePaths, opts.modulePaths...)
	if err := resolved.ApplyTo(cfg); err != nil {
		return nil, err
	}
	if opts.workers > 0 {
		cfg.Workers = opts.workers
	}
	if opts.allowPrivate != nil {
		cfg.AllowPrivateURLs = *opts.allowPrivate
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: configuration error: %w", module.ErrSetup, err)
	}

	logger, closeLog, err := applog.New(applog.Options{
		Level:   cfg.LogLevel,
		Verbose: cfg.Verbose,
		Format:  cfg.LogFormat,
		File:    cfg.LogFile,
		Writer:  logOut,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", module.ErrSetup, err)
	}
	defer func() { _ = closeLog() }() //nolint:errcheck // log file close on exit
	reg.SetLogger(logger)

	if resolved.Simple {
		logger.Info("no steps configured, using every module that needs no setup",
			"steps", resolved.Steps.Modules())
	}
	if err := saveDocument(doc, docPath, created, cfg.Store, resolver, logger); err != nil {
		return nil, err
	}

	reg.Configure(resolved.Modules)
	steps, err := pipeline.Assemble(ctx, reg, resolved.Steps)
	if err != nil {
		_ = reg.Cleanup() //nolint:errcheck // already failing
		return nil, err
	}

	orch := pipeline.New(steps,
		pipeline.WithLogger(logger),
		pipeline.WithWorkers(cfg.Workers),
		pipeline.WithAllowPrivateURLs(cfg.AllowPrivateURLs),
		pipeline.WithCleanup(reg.Cleanup),
	)
	return orch.Run(ctx)
}

// loadDocument reads the orchestration document. A missing document is
// replaced by the template, which is reported as created so it gets saved.
func loadDocument(configPath string) (*config.Document, string, bool, error) {
	path := config.FindConfigFile(configPath)
	if path == "" {
		path = configPath
		if path == "" {
			path = config.DefaultConfigFile
		}
		return config.DefaultDocument(), path, true, nil
	}
	doc, err := config.LoadDocument(path)
	if err != nil {
		return nil, "", false, fmt.Errorf("%w: failed to load %s: %w", module.ErrSetup, path, err)
	}
	return doc, path, false, nil
}

// saveDocument writes the document when it was just created or when the
// overrides are to be stored.
func saveDocument(doc *config.Document, path string, created, store bool, resolver *config.Resolver, logger *slog.Logger) error {
	if !created && !store {
		return nil
	}
	if store {
		if err := resolver.StoreInto(doc); err != nil {
			return fmt.Errorf("%w: failed to store overrides: %w", module.ErrSetup, err)
		}
	}
	if err := doc.Save(path); err != nil {
		return fmt.Errorf("%w: %w", module.ErrSetup, err)
	}
	logger.Info("saved orchestration document", "path", path, "created", created)
	return nil
}

// moduleRoots returns the built-in root followed by the document's
// module_paths and the extra paths, without duplicates.
func moduleRoots(doc *config.Document, extra []string) []module.Root {
	roots := []module.Root{modules.Root()}
	seen := make(map[string]bool)
	for _, p := range append(config.ModulePaths(doc), extra...) {
		if p == "" || seen[p] {
			continue
		}
		seen[p] = true
		roots = append(roots, module.Root{Name: p, FS: os.DirFS(p)})
	}
	return roots
}

// withURLs adds the positional URLs to the cli_feeder.urls override.
func withURLs(overrides map[string]string, urls []string) map[string]string {
	out := make(map[string]string, len(overrides)+1)
	for k, v := range overrides {
		out[k] = v
	}
	if len(urls) == 0 {
		return out
	}
	joined := strings.Join(urls, ",")
	if prev := out["cli_feeder.urls"]; prev != "" {
		joined = prev + "," + joined
	}
	out["cli_feeder.urls"] = joined
	return out
}

// renderSummary formats the outcomes as a table.
func renderSummary(s *pipeline.Summary) string {
	if s.Processed == 0 {
		return "No work: the feeder produced no items."
	}
	rows := make([]table.Row, 0, len(s.Outcomes))
	total := 0
	for i, o := range s.Outcomes {
		u, status, media := "", "", 0
		if o.Item != nil {
			u, _ = o.Item.URL()
			status = o.Item.Status
			media = len(o.Item.AllMedia())
		}
		state := o.State.String()
		if o.Cached {
			state += " (cached)"
		}
		total += media
		rows = append(rows, table.Row{i + 1, u, state, status, media})
	}
	return summaryTable(s, rows, total)
}

package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/couchcryptid/weather-lookup-service/internal/adapter/sqlite"
	"github.com/couchcryptid/weather-lookup-service/internal/cache"
	"github.com/couchcryptid/weather-lookup-service/internal/config"
	"github.com/couchcryptid/weather-lookup-service/internal/domain"
	"github.com/couchcryptid/weather-lookup-service/internal/lookup"
	"github.com/couchcryptid/weather-lookup-service/internal/observability"
	"github.com/couchcryptid/weather-lookup-service/internal/service"
)

func newRootCmd(out, errOut io.Writer) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "lookupctl",
		Short:         "Inspect weather lookup files",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	cmd.PersistentFlags().String("entities", "", "entity config file (defaults to LOOKUP_CONFIG)")
	cmd.PersistentFlags().StringP("output", "o", "table", "output format: table or json")

	cmd.AddCommand(
		newParseCmd(),
		newShowCmd(),
		newScanCmd(),
		newPeriodCmd(),
		newAccessorsCmd(),
		newLatestCmd(),
	)
	return cmd
}

func printerFor(cmd *cobra.Command) *printer {
	format, _ := cmd.Flags().GetString("output")
	return &printer{format: format, w: cmd.OutOrStdout()}
}

// configFor loads the environment config with command-line overrides applied.
func configFor(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if path, _ := cmd.Flags().GetString("entities"); path != "" {
		cfg.LookupConfig = path
	}
	return cfg, nil
}

// loggerFor logs to the command's stderr so logs never mix with its output.
func loggerFor(cmd *cobra.Command, cfg *config.Config) *slog.Logger {
	return observability.NewCLILogger(cfg, cmd.ErrOrStderr())
}

// registryFor builds loaders from the environment and entity config.
func registryFor(cmd *cobra.Command) (*domain.Registry, *slog.Logger, error) {
	cfg, err := configFor(cmd)
	if err != nil {
		return nil, nil, err
	}
	entities, err := config.LoadEntities(cfg.LookupConfig)
	if err != nil {
		return nil, nil, err
	}
	logger := loggerFor(cmd, cfg)
	reg, err := service.NewRegistry(cfg, entities, cache.NewMemory(time.Minute), logger, domain.NopObserver{})
	if err != nil {
		return nil, nil, err
	}
	return reg, logger, nil
}

func newParseCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "parse <file>",
		Short: "Normalize and parse a single lookup file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := configFor(cmd)
			if err != nil {
				return err
			}
			name, _ := cmd.Flags().GetString("format")
			charset, _ := cmd.Flags().GetString("charset")

			format, ok := lookup.FormatOf(args[0])
			if name != "" {
				f, err := lookup.ParseFormat(name)
				if err != nil {
					return err
				}
				format, ok = f, true
			}
			if !ok {
				return fmt.Errorf("cannot infer format of %s; pass --format", args[0])
			}
			s, err := lookup.NewSanitizer(charset)
			if err != nil {
				return err
			}

			n, err := lookup.ReadFile(args[0], format, s)
			if err != nil {
				return err
			}
			if n.Replaced > 0 {
				loggerFor(cmd, cfg).Warn("replaced invalid byte sequences", "file", args[0], "count", n.Replaced, "charset", s.Charset())
			}
			vars, err := lookup.Parse(n.Text)
			if err != nil {
				return err
			}
			return printerFor(cmd).vars(vars)
		},
	}
	cmd.Flags().String("format", "", "lookup format: php, ruby_hash or lookup")
	cmd.Flags().String("charset", "UTF-8", "charset the file is encoded in")
	return cmd
}

func newShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <entity> <stem>",
		Short: "Load a lookup through its entity, dependents included",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, _, err := registryFor(cmd)
			if err != nil {
				return err
			}
			ev, err := reg.Lookup(cmd.Context(), domain.LookupRef{Entity: args[0], Stem: args[1]})
			if err != nil {
				return err
			}
			return printerFor(cmd).event(ev)
		},
	}
}

func newScanCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "scan <entity>",
		Short: "Load every lookup of an entity and summarize it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, logger, err := registryFor(cmd)
			if err != nil {
				return err
			}
			l, err := reg.Loader(args[0])
			if err != nil {
				return err
			}
			var events []domain.LookupEvent
			err = l.EachLookup(cmd.Context(), func(r *domain.Record, stem string) error {
				ev, err := domain.NewLookupEvent(cmd.Context(), r)
				if err != nil {
					logger.Error("skipping unreadable lookup", "entity", args[0], "stem", stem, "error", err)
					return nil
				}
				events = append(events, ev)
				return nil
			})
			if err != nil {
				return err
			}

			p := printerFor(cmd)
			if p.format == "json" {
				return p.json(events)
			}
			rows := make([][]string, 0, len(events))
			for _, ev := range events {
				rows = append(rows, []string{ev.Stem, ev.IssuedAt.Format(time.RFC3339), strconv.Itoa(len(ev.Vars))})
			}
			p.table([]string{"STEM", "ISSUED", "VARS"}, rows)
			return nil
		},
	}
}

func newPeriodCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "period <entity> <stem> <accessor> <key> <i>",
		Short: "Read one period variable of a lookup",
		Args:  cobra.ExactArgs(5),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := domain.ParseAccessor(args[2])
			if err != nil {
				return err
			}
			i, err := strconv.Atoi(args[4])
			if err != nil {
				return fmt.Errorf("period index: %w", err)
			}
			reg, _, err := registryFor(cmd)
			if err != nil {
				return err
			}
			rec, err := reg.Record(cmd.Context(), domain.LookupRef{Entity: args[0], Stem: args[1]})
			if err != nil {
				return err
			}
			v, err := domain.NewProjection(rec, a).Per(cmd.Context(), args[3], i)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), v)
			return err
		},
	}
}

func newAccessorsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "accessors",
		Short: "List period accessors and the variables they read",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var rows [][]string
			for _, a := range domain.Accessors() {
				rows = append(rows, []string{string(a), a.VarName("<key>", 1)})
			}
			printerFor(cmd).table([]string{"ACCESSOR", "EXAMPLE"}, rows)
			return nil
		},
	}
}

func newLatestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "latest <entity>",
		Short: "Show the most recently issued persisted record of an entity",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, _, err := registryFor(cmd)
			if err != nil {
				return err
			}
			l, err := reg.Loader(args[0])
			if err != nil {
				return err
			}
			path, _ := cmd.Flags().GetString("store")
			if path == "" {
				cfg, err := configFor(cmd)
				if err != nil {
					return err
				}
				path = cfg.StorePath
			}
			if path == "" {
				return errors.New("no record store; pass --store or set STORE_PATH")
			}
			store, err := sqlite.Open(path)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			stored, err := store.FindLatest(cmd.Context(), l.Entity().Name)
			if err != nil {
				return fmt.Errorf("%s: %w", l.Entity().Name, err)
			}
			ev, err := domain.NewLookupEvent(cmd.Context(), l.Restore(stored))
			if err != nil {
				return err
			}
			return printerFor(cmd).event(ev)
		},
	}
	cmd.Flags().String("store", "", "SQLite record store (defaults to STORE_PATH)")
	return cmd
}

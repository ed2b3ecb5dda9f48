package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/Clark-Hu/movie-of-the-day/internal/app"
	"github.com/Clark-Hu/movie-of-the-day/internal/cache"
	"github.com/Clark-Hu/movie-of-the-day/internal/calendar"
	"github.com/Clark-Hu/movie-of-the-day/internal/config"
	"github.com/Clark-Hu/movie-of-the-day/internal/facts"
	"github.com/Clark-Hu/movie-of-the-day/internal/kvstore"
	motdlog "github.com/Clark-Hu/movie-of-the-day/internal/log"
	"github.com/Clark-Hu/movie-of-the-day/internal/repository"
	"github.com/Clark-Hu/movie-of-the-day/internal/settings"
)

const commandTimeout = 30 * time.Second

// needsAnnotation lists the credentials a command needs, as "db", "tmdb" or both
// comma separated. Commands without it run against the local store only.
const needsAnnotation = "motdctl/needs"

// cli carries the loaded configuration between the root and its subcommands.
type cli struct {
	cfg config.Config
}

func newRootCmd() *cobra.Command {
	c := &cli{}
	root := &cobra.Command{
		Use:          "motdctl",
		Short:        "Operate the movie of the day service",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadFor(requirements(cmd))
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			motdlog.Configure(motdlog.Config{Level: cfg.LogLevel, Output: os.Stderr, Service: "motdctl"})
			c.cfg = cfg
			return nil
		},
	}

	root.AddCommand(c.todayCmd(), c.archiveCmd(), c.settingsCmd(), c.cacheCmd(), c.factsCmd())
	return root
}

// requirements reads needsAnnotation from cmd or its nearest annotated parent.
func requirements(cmd *cobra.Command) config.Requirement {
	for p := cmd; p != nil; p = p.Parent() {
		needs, ok := p.Annotations[needsAnnotation]
		if !ok {
			continue
		}
		req := config.RequireNone
		for _, n := range strings.Split(needs, ",") {
			switch strings.TrimSpace(n) {
			case "db":
				req |= config.RequireDB
			case "tmdb":
				req |= config.RequireTMDB
			}
		}
		return req
	}
	return config.RequireNone
}

func (c *cli) todayCmd() *cobra.Command {
	return &cobra.Command{
		Use:         "today",
		Short:       "Print today's movie, selecting one if needed",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{needsAnnotation: "db,tmdb"},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout)
			defer cancel()

			container, err := app.Wire(ctx, c.cfg)
			if err != nil {
				return err
			}
			defer container.Close()

			movie, err := container.Engine.EnsureTodaysSelection(ctx)
			if err != nil {
				return fmt.Errorf("select movie of the day: %w", err)
			}
			state := container.Engine.State()
			return writeJSON(cmd.OutOrStdout(), map[string]any{
				"dateKey": state.DateKey,
				"movie":   movie,
				"funFact": facts.Random(movie, time.Now(), nil),
			})
		},
	}
}

func (c *cli) archiveCmd() *cobra.Command {
	var offset, limit int
	cmd := &cobra.Command{
		Use:         "archive",
		Short:       "List previously selected movies, newest first",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{needsAnnotation: "db,tmdb"},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout)
			defer cancel()

			container, err := app.Wire(ctx, c.cfg)
			if err != nil {
				return err
			}
			defer container.Close()

			page, err := container.Repo.Archive.List(ctx, offset, limit)
			if err != nil {
				return fmt.Errorf("list archive: %w", err)
			}
			return writeJSON(cmd.OutOrStdout(), page)
		},
	}
	cmd.Flags().IntVar(&offset, "offset", 0, "number of entries to skip")
	cmd.Flags().IntVar(&limit, "limit", repository.DefaultPageSize, "page size")
	return cmd
}

func (c *cli) settingsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Show or change the stored user settings",
	}

	show := &cobra.Command{
		Use:   "show",
		Short: "Print the current settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withSettings(cmd, func(ctx context.Context, s *settings.Store) error {
				prefs, err := s.Load(ctx)
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), prefs)
			})
		},
	}

	var country, darkMode string
	set := &cobra.Command{
		Use:   "set",
		Short: "Update the country and/or dark mode preference",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("country") && !cmd.Flags().Changed("dark-mode") {
				return fmt.Errorf("nothing to update: pass --country or --dark-mode")
			}
			return c.withSettings(cmd, func(ctx context.Context, s *settings.Store) error {
				prefs, err := s.Load(ctx)
				if err != nil {
					return err
				}
				if cmd.Flags().Changed("country") {
					prefs.Country = country
				}
				if cmd.Flags().Changed("dark-mode") {
					dark, err := strconv.ParseBool(darkMode)
					if err != nil {
						return fmt.Errorf("invalid --dark-mode value %q", darkMode)
					}
					prefs.DarkMode = dark
				}
				saved, err := s.Save(ctx, prefs)
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), saved)
			})
		},
	}
	set.Flags().StringVar(&country, "country", "", "ISO 3166-1 alpha-2 country code")
	set.Flags().StringVar(&darkMode, "dark-mode", "", "true or false")

	reset := &cobra.Command{
		Use:   "reset",
		Short: "Restore default settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withSettings(cmd, func(ctx context.Context, s *settings.Store) error {
				if err := s.Reset(ctx); err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), settings.Defaults())
			})
		},
	}

	cmd.AddCommand(show, set, reset)
	return cmd
}

func (c *cli) cacheCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage cached metadata",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Remove every cache entry; settings are kept",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withBackend(cmd, func(ctx context.Context, backend kvstore.Backend) error {
				cc := cache.New(backend, calendar.SystemClock{}, motdlog.WithComponent("cache"))
				removed, err := cc.ClearAll(ctx)
				if err != nil {
					return fmt.Errorf("clear cache: %w", err)
				}
				return writeJSON(cmd.OutOrStdout(), map[string]int{"removed": removed})
			})
		},
	})
	return cmd
}

func (c *cli) factsCmd() *cobra.Command {
	return &cobra.Command{
		Use:         "facts <movieID>",
		Short:       "Print every trivia line for a movie",
		Args:        cobra.ExactArgs(1),
		Annotations: map[string]string{needsAnnotation: "tmdb"},
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil || id <= 0 {
				return fmt.Errorf("invalid movie id %q", args[0])
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout)
			defer cancel()

			client, err := app.NewTMDBClient(c.cfg)
			if err != nil {
				return err
			}
			movie, err := client.GetDetails(ctx, id)
			if err != nil {
				return fmt.Errorf("fetch movie %d: %w", id, err)
			}
			for _, fact := range facts.Generate(movie, time.Now()) {
				if _, err := fmt.Fprintln(cmd.OutOrStdout(), fact); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

func (c *cli) withBackend(cmd *cobra.Command, fn func(context.Context, kvstore.Backend) error) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout)
	defer cancel()

	backend, err := app.OpenBackend(ctx, c.cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := backend.Close(); err != nil {
			app.Logger().Warn().Err(err).Msg("close kv backend")
		}
	}()
	return fn(ctx, backend)
}

func (c *cli) withSettings(cmd *cobra.Command, fn func(context.Context, *settings.Store) error) error {
	return c.withBackend(cmd, func(ctx context.Context, backend kvstore.Backend) error {
		return fn(ctx, settings.New(backend, motdlog.WithComponent("settings")))
	})
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

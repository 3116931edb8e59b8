package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sakif/climate-crew/internal/apperror"
	"github.com/sakif/climate-crew/internal/config"
	"github.com/sakif/climate-crew/internal/geo"
	sqliteRepo "github.com/sakif/climate-crew/internal/repository/sqlite"
	"github.com/sakif/climate-crew/internal/service"
)

// rootOptions are the persistent flags shared by every subcommand.
type rootOptions struct {
	configPath string
	dbPath     string
	verbose    bool
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:          "crewctl",
		Short:        "Operate a Climate Crew database",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "YAML config file (default: config.yaml)")
	root.PersistentFlags().StringVar(&opts.dbPath, "db", "", "SQLite database path (overrides config)")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Log service activity to stderr")

	root.AddCommand(
		newMigrateCmd(opts),
		newLeaderboardCmd(opts),
		newAssignCmd(opts),
		newCompleteCmd(opts),
		newFitCmd(),
	)
	return root
}

// env is what a store-backed subcommand needs. close must be deferred.
type env struct {
	cfg    config.Config
	db     *sqliteRepo.DB
	tasks  *service.TaskService
	board  *service.LeaderboardService
	logger *slog.Logger
}

func (o *rootOptions) open(cmd *cobra.Command) (*env, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, err
	}
	if o.dbPath != "" {
		cfg.Database.Path = o.dbPath
	}

	level := slog.LevelWarn
	if o.verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))

	db, err := sqliteRepo.New(cfg.Database.Path, cfg.Database.QueryTimeout)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", cfg.Database.Path, err)
	}

	return &env{
		cfg:    cfg,
		db:     db,
		tasks:  service.NewTaskService(db, logger, service.WithReward(cfg.Tasks.Reward)),
		board:  service.NewLeaderboardService(db, logger),
		logger: logger,
	}, nil
}

func (e *env) close() { e.db.Close() }

// resolveUser accepts a username or a user ID.
func (e *env) resolveUser(ctx context.Context, ref string) (string, error) {
	u, err := e.db.GetUserByUsername(ctx, ref)
	if err == nil {
		return u.ID, nil
	}
	if !errors.Is(err, apperror.ErrNotFound) {
		return "", err
	}
	u, err = e.db.GetUserByID(ctx, ref)
	if err != nil {
		return "", fmt.Errorf("no user with username or ID %q", ref)
	}
	return u.ID, nil
}

func newMigrateCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or upgrade the database schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			// Opening the store applies pending migrations.
			e, err := opts.open(cmd)
			if err != nil {
				return err
			}
			defer e.close()
			fmt.Fprintf(cmd.OutOrStdout(), "database %s is up to date\n", e.cfg.Database.Path)
			return nil
		},
	}
}

func newLeaderboardCmd(opts *rootOptions) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "leaderboard",
		Short: "Print the ranking by points",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := opts.open(cmd)
			if err != nil {
				return err
			}
			defer e.close()

			entries, err := e.board.Top(cmd.Context(), limit)
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "RANK\tUSER\tPOINTS\tCOMPLETED")
			for _, en := range entries {
				fmt.Fprintf(tw, "%d\t%s\t%d\t%d\n", en.Rank, en.Username, en.Points, en.CompletedCount)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "Number of entries (0 for all)")
	return cmd
}

func newAssignCmd(opts *rootOptions) *cobra.Command {
	var points int
	cmd := &cobra.Command{
		Use:   "assign <user> <task text...>",
		Short: "Replace a user's current task",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := opts.open(cmd)
			if err != nil {
				return err
			}
			defer e.close()

			userID, err := e.resolveUser(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			text := strings.Join(args[1:], " ")
			if !e.tasks.AssignTask(cmd.Context(), userID, text, points) {
				return fmt.Errorf("task not assigned to %s", args[0])
			}
			fmt.Fprintf(cmd.OutOrStdout(), "assigned to %s: %s\n", args[0], text)
			return nil
		},
	}
	cmd.Flags().IntVar(&points, "points", service.DefaultReward, "Points offered for the task (informational)")
	return cmd
}

func newCompleteCmd(opts *rootOptions) *cobra.Command {
	var points int
	cmd := &cobra.Command{
		Use:   "complete <user>",
		Short: "Mark a user's task completed and credit points",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := opts.open(cmd)
			if err != nil {
				return err
			}
			defer e.close()

			userID, err := e.resolveUser(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			reward := e.tasks.Reward()
			if cmd.Flags().Changed("points") {
				reward = points
			}

			state, err := e.tasks.CompleteTask(cmd.Context(), userID, reward)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s now has %d points (%d completed)\n",
				args[0], state.Points, state.CompletedCount)
			return nil
		},
	}
	cmd.Flags().IntVar(&points, "points", 0, "Points to credit (default: configured reward)")
	return cmd
}

func newFitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "fit <lat,lng>...",
		Short: "Compute the map viewport for a set of coordinates",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			points := make([]geo.Located, 0, len(args))
			for _, arg := range args {
				p, err := parseLatLng(arg)
				if err != nil {
					return err
				}
				points = append(points, p)
			}

			vp, ok := geo.Fit(points)
			if !ok {
				return errors.New("no coordinates to fit")
			}
			printViewport(cmd.OutOrStdout(), vp)
			return nil
		},
	}
}

func parseLatLng(s string) (geo.Point, error) {
	latStr, lngStr, ok := strings.Cut(s, ",")
	if !ok {
		return geo.Point{}, fmt.Errorf("%q: want lat,lng", s)
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(latStr), 64)
	if err != nil {
		return geo.Point{}, fmt.Errorf("%q: bad latitude: %w", s, err)
	}
	lng, err := strconv.ParseFloat(strings.TrimSpace(lngStr), 64)
	if err != nil {
		return geo.Point{}, fmt.Errorf("%q: bad longitude: %w", s, err)
	}
	return geo.Point{Lat: lat, Lng: lng}, nil
}

func printViewport(w io.Writer, vp geo.Viewport) {
	fmt.Fprintf(w, "center %.6f,%.6f zoom %d\n", vp.Center.Lat, vp.Center.Lng, vp.Zoom)
}

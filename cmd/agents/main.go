// Path: cmd/agents/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/AhmadSaeedZaidi/viralvelocity-sub000/internal/agents"
	"github.com/AhmadSaeedZaidi/viralvelocity-sub000/internal/archive"
	"github.com/AhmadSaeedZaidi/viralvelocity-sub000/internal/capture"
	"github.com/AhmadSaeedZaidi/viralvelocity-sub000/internal/config"
	"github.com/AhmadSaeedZaidi/viralvelocity-sub000/internal/events"
	"github.com/AhmadSaeedZaidi/viralvelocity-sub000/internal/resiliency"
	"github.com/AhmadSaeedZaidi/viralvelocity-sub000/internal/store"
	"github.com/AhmadSaeedZaidi/viralvelocity-sub000/internal/vault"
	"github.com/AhmadSaeedZaidi/viralvelocity-sub000/internal/youtube"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
)

const interruptExitCode = 130

var (
	batchSize int
	dryRun    bool
	ghost     bool
	startYear int
	endYear   int

	rootCmd = &cobra.Command{
		Use:           "viralvelocity",
		Short:         "Video metadata collection pipeline agents",
		Long:          `Each subcommand runs one agent cycle: claim a bounded batch, process it sequentially, report a summary, exit. A periodic external scheduler provides the cadence.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	hunterCmd = &cobra.Command{
		Use:   "hunter",
		Short: "Run one discovery cycle over the search queue",
		RunE:  runHunter,
	}
	trackerCmd = &cobra.Command{
		Use:   "tracker",
		Short: "Run one statistics refresh cycle",
		Long:  `Standard mode serves the 3-zone staleness query over live videos. With --ghost, the adaptive watchlist drives tracking and metrics go straight to the vault.`,
		RunE:  runTracker,
	}
	janitorCmd = &cobra.Command{
		Use:   "janitor",
		Short: "Archive aged stats to the vault and clean up processed videos",
		RunE:  runJanitor,
	}
	archeologistCmd = &cobra.Command{
		Use:   "archeologist",
		Short: "Backfill top historical videos month by month (quota heavy)",
		RunE:  runArcheologist,
	}
	scribeCmd = &cobra.Command{
		Use:   "scribe",
		Short: "Archive transcripts for pending videos",
		RunE:  runScribe,
	}
	painterCmd = &cobra.Command{
		Use:   "painter",
		Short: "Archive visual evidence frames for pending videos",
		RunE:  runPainter,
	}
)

func init() {
	rootCmd.PersistentFlags().IntVar(&batchSize, "batch-size", 10, "maximum items per cycle")
	trackerCmd.Flags().BoolVar(&ghost, "ghost", false, "track via the adaptive watchlist instead of the videos table")
	janitorCmd.Flags().BoolVar(&dryRun, "dry-run", false, "report what would change without mutating anything")
	archeologistCmd.Flags().IntVar(&startYear, "start-year", time.Now().UTC().Year()-1, "first year of the campaign")
	archeologistCmd.Flags().IntVar(&endYear, "end-year", time.Now().UTC().Year()-1, "last year of the campaign (inclusive)")

	rootCmd.AddCommand(hunterCmd, trackerCmd, janitorCmd, archeologistCmd, scribeCmd, painterCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := rootCmd.ExecuteContext(ctx)
	if err == nil {
		return
	}

	slog.Error("agent cycle failed", "error", err)
	if errors.Is(err, context.Canceled) && ctx.Err() != nil {
		os.Exit(interruptExitCode)
	}
	os.Exit(resiliency.ExitCode(err))
}

// app holds the shared resources an agent cycle needs. Everything is
// constructed once at startup and torn down on exit.
type app struct {
	cfg       *config.Config
	pool      *pgxpool.Pool
	vault     vault.Vault
	repo      *store.Repository
	watchlist *store.WatchlistRepository
	broker    *events.Broker
	log       *slog.Logger
}

func newApp(ctx context.Context) (*app, error) {
	log := slog.New(slog.NewJSONHandler(os.Stderr, nil))
	slog.SetDefault(log)

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	pool, err := store.OpenPool(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}

	v, err := vault.New(ctx, cfg.Vault)
	if err != nil {
		pool.Close()
		return nil, err
	}

	return &app{
		cfg:       cfg,
		pool:      pool,
		vault:     v,
		repo:      store.NewRepository(pool, log),
		watchlist: store.NewWatchlistRepository(pool, log),
		broker:    events.NewBroker(),
		log:       log,
	}, nil
}

func (a *app) close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.vault.Close(ctx); err != nil {
		a.log.Warn("vault close failed", "error", err)
	}
	a.pool.Close()
}

// executor builds the key-rotation executor for one agent role.
func (a *app) executor(role, agent string) (*resiliency.Executor, error) {
	rings := a.cfg.API.KeyRings()
	ring, err := resiliency.NewKeyRing(role, rings[role])
	if err != nil {
		return nil, fmt.Errorf("key pool for role %s: %w", role, err)
	}
	return resiliency.NewExecutor(ring, agent, a.log), nil
}

// watchSummaries logs every cycle summary an agent publishes.
func (a *app) watchSummaries(agent string) <-chan events.Event {
	return a.broker.Subscribe(events.SummaryTopic(agent))
}

func drainSummaries(log *slog.Logger, agent string, ch <-chan events.Event) {
	for {
		select {
		case ev := <-ch:
			log.Info("cycle summary", "agent", agent, "summary", ev.Data)
		default:
			return
		}
	}
}

func runHunter(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	exec, err := a.executor(config.RoleHunting, "hunter")
	if err != nil {
		return err
	}

	ch := a.watchSummaries("hunter")
	client := youtube.NewClient(a.cfg.API, "hunter")
	hunter := agents.NewHunter(a.repo, a.watchlist, client, a.vault, exec, a.broker, batchSize, a.log)

	_, err = hunter.Run(ctx)
	drainSummaries(a.log, "hunter", ch)
	return err
}

func runTracker(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	exec, err := a.executor(config.RoleTracking, "tracker")
	if err != nil {
		return err
	}

	ch := a.watchSummaries("tracker")
	client := youtube.NewClient(a.cfg.API, "tracker")
	tracker := agents.NewTracker(a.repo, a.watchlist, client, a.vault, exec, a.broker, batchSize, a.log)
	tracker.Ghost = ghost

	_, err = tracker.Run(ctx)
	drainSummaries(a.log, "tracker", ch)
	return err
}

func runJanitor(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	ch := a.watchSummaries("janitor")
	archiver := archive.NewArchiver(a.repo, a.vault, a.cfg.Janitor.ArchiveBatch, a.log)
	janitor := agents.NewJanitor(archiver, a.repo, a.cfg.Janitor, a.broker, a.log)

	_, err = janitor.Run(ctx, dryRun)
	drainSummaries(a.log, "janitor", ch)
	return err
}

func runArcheologist(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	exec, err := a.executor(config.RoleArcheology, "archeologist")
	if err != nil {
		return err
	}

	ch := a.watchSummaries("archeologist")
	client := youtube.NewClient(a.cfg.API, "archeologist")
	archeologist := agents.NewArcheologist(a.repo, client, exec, a.broker, a.log)

	_, err = archeologist.Run(ctx, startYear, endYear)
	drainSummaries(a.log, "archeologist", ch)
	return err
}

func runScribe(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	ch := a.watchSummaries("scribe")
	scribe := agents.NewScribe(a.repo, capture.NewTimedTextSource("scribe"), a.vault, a.broker, batchSize, a.log)

	_, err = scribe.Run(ctx)
	drainSummaries(a.log, "scribe", ch)
	return err
}

func runPainter(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	ch := a.watchSummaries("painter")
	painter := agents.NewPainter(a.repo, capture.NewThumbnailSource("painter"), a.vault, a.broker, batchSize, a.log)

	_, err = painter.Run(ctx)
	drainSummaries(a.log, "painter", ch)
	return err
}

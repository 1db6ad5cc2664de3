package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/transitlens-data/internal/artifacts"
	"github.com/transitlens-data/internal/common/config"
	"github.com/transitlens-data/internal/common/logger"
	"github.com/transitlens-data/internal/common/maintenance"
	"github.com/transitlens-data/internal/common/webhook"
	gtfs_realtime "github.com/transitlens-data/internal/gtfs-realtime"
	"github.com/transitlens-data/internal/gtfs-realtime/snapshot"
	"github.com/transitlens-data/internal/gtfs-static/scraper"
	"github.com/transitlens-data/internal/gtfs-static/store"
	"github.com/transitlens-data/internal/query"
)

const usage = `transitlens <command> [flags]

Commands:
  fetch-static      download and extract the static GTFS archive
  fetch-realtime    capture one realtime snapshot
  watch             run the periodic refresh, capture and cleanup loops
  load-static       load the static tables and report row counts
  load-snapshot     decode a snapshot and report row counts
  stats             summarize a snapshot
  active-routes     group active vehicles by route (-route narrows to one)
  vehicle <id>      show one vehicle's position
  nearby <id> <radius_m>
                    list vehicles within a radius of a vehicle
  integrity         run static referential and quality checks
`

// app bundles the long-lived pieces every subcommand needs.
type app struct {
	cfg       *config.Config
	providers *config.ProviderFile
	log       logger.Logger
}

func main() {
	// .env is optional; the environment may already be set
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	log := logger.WithLevel(
		logger.New(
			logger.ConsoleWriter(),
			logger.FileWriter(cfg.Logging.FilePath),
		),
		logger.ParseLogLevel(cfg.Logging.Level),
	)

	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	providers, err := config.LoadProviders(cfg.ProvidersPath)
	if err != nil {
		log.Fatal("Failed to load providers file", "path", cfg.ProvidersPath, "error", err)
	}

	a := &app{cfg: cfg, providers: providers, log: log}

	cmd, args := os.Args[1], os.Args[2:]
	switch cmd {
	case "fetch-static":
		err = a.fetchStatic(args)
	case "fetch-realtime":
		err = a.fetchRealtime(args)
	case "watch":
		err = a.watch(args)
	case "load-static":
		err = a.loadStatic(args)
	case "load-snapshot":
		err = a.loadSnapshot(args)
	case "stats":
		err = a.stats(args)
	case "active-routes":
		err = a.activeRoutes(args)
	case "vehicle":
		err = a.vehicle(args)
	case "nearby":
		err = a.nearby(args)
	case "integrity":
		err = a.integrity(args)
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n%s", cmd, usage)
		os.Exit(2)
	}

	if err != nil {
		log.Error("Command failed", "command", cmd, "error", err)
		os.Exit(1)
	}
}

func (a *app) notifier() *webhook.Client {
	return webhook.NewClient(a.cfg.WebhookURL)
}

func (a *app) repository() *snapshot.Repository {
	return snapshot.NewRepository(
		a.providers.Provider.Realtime.OutDir,
		fileSetFromEndpoints(a.providers.Provider.Realtime.Endpoints),
		a.log,
	)
}

// fileSetFromEndpoints maps configured endpoint names onto the snapshot
// member files; families without a configured endpoint keep the defaults so
// loading still finds hand-placed files.
func fileSetFromEndpoints(endpoints []config.Endpoint) snapshot.FileSet {
	fs := snapshot.DefaultFileSet()
	for _, ep := range endpoints {
		switch strings.ToLower(ep.Name) {
		case "vehicle_positions", "vehiclepositions":
			fs.VehiclePositions = ep.OutputFilename()
		case "trip_updates", "tripupdates":
			fs.TripUpdates = ep.OutputFilename()
		case "alerts", "service_alerts":
			fs.Alerts = ep.OutputFilename()
		}
	}
	return fs
}

func (a *app) loadStaticSet() (query.StaticSet, error) {
	st := store.New(a.log)
	tables, err := st.Load(
		a.providers.Provider.Static.OutDir,
		a.providers.Provider.Static.Extract.Files,
	)
	if err != nil {
		return nil, err
	}
	return query.StaticSet(tables), nil
}

// selectSnapshot resolves and loads the snapshot for a query command, with
// precedence explicit flag > TRANSITLENS_SNAPSHOT pin > latest.
func (a *app) selectSnapshot(explicit string) (*snapshot.Snapshot, error) {
	repo := a.repository()
	dir, err := repo.Select(explicit, a.cfg.SnapshotPin)
	if err != nil {
		return nil, err
	}
	return repo.Load(dir)
}

func snapshotFlag(fs *flag.FlagSet) *string {
	return fs.String("snapshot", "", "snapshot id or path (default: pinned or latest)")
}

func (a *app) fetchStatic(args []string) error {
	fs := flag.NewFlagSet("fetch-static", flag.ExitOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}

	pipeline := scraper.NewPipeline(a.providers.Provider.Static, nil, a.log)
	result, err := pipeline.Run(context.Background())
	if err != nil {
		return err
	}
	fmt.Printf("extracted %d files to %s\n", len(result.Extracted), a.providers.Provider.Static.OutDir)
	for _, name := range result.Extracted {
		fmt.Println("  " + name)
	}
	for _, name := range result.Missing {
		fmt.Println("  (not in archive) " + name)
	}
	return nil
}

func (a *app) fetchRealtime(args []string) error {
	fs := flag.NewFlagSet("fetch-realtime", flag.ExitOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}

	fetcher := snapshot.NewFetcher(a.providers.Provider.Realtime, a.log)
	dir, err := fetcher.Fetch(context.Background())
	if err != nil {
		return err
	}
	fmt.Println(dir)
	return nil
}

// watch runs all three background loops until SIGINT/SIGTERM.
func (a *app) watch(args []string) error {
	fs := flag.NewFlagSet("watch", flag.ExitOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	notifier := a.notifier()
	var wg sync.WaitGroup

	staticScheduler := scraper.NewScheduler(
		a.providers.Provider.Static,
		a.cfg.StaticRefresh.CheckInterval,
		notifier,
		a.log,
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := staticScheduler.Start(ctx); err != nil {
			a.log.Error("Static scheduler error", "error", err)
		}
	}()

	rtManager := gtfs_realtime.NewManager(
		a.providers.Provider.Realtime,
		a.cfg.Capture.Interval,
		notifier,
		a.log,
	)
	if err := rtManager.Start(ctx); err != nil {
		a.log.Error("Realtime capture manager error", "error", err)
	}
	defer rtManager.Stop()

	cleanup := maintenance.NewCleanupScheduler(
		maintenance.New(
			a.providers.Provider.Realtime.OutDir,
			a.providers.Paths.ArtifactsDir,
			a.log,
		),
		a.log,
		maintenance.SchedulerConfig{
			CleanupInterval: a.cfg.Retention.CleanupInterval,
			SnapshotsKeep:   a.cfg.Retention.SnapshotsKeep,
			ArtifactMaxAge:  a.cfg.Retention.ArtifactMaxAge,
			PinnedSnapshot:  a.cfg.SnapshotPin,
		},
	)
	if err := cleanup.Start(ctx); err != nil {
		a.log.Error("Cleanup scheduler error", "error", err)
	}
	defer cleanup.Stop()

	a.log.Info("Watch mode running",
		"static_check_interval", a.cfg.StaticRefresh.CheckInterval,
		"capture_interval", a.cfg.Capture.Interval)

	<-sigChan
	a.log.Info("Shutdown signal received")
	cancel()
	wg.Wait()
	a.log.Info("Watch mode stopped")
	return nil
}

func (a *app) loadStatic(args []string) error {
	fs := flag.NewFlagSet("load-static", flag.ExitOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}

	static, err := a.loadStaticSet()
	if err != nil {
		return err
	}
	for name, t := range static {
		fmt.Printf("%-20s %d rows, %d columns\n", name, t.NumRows(), len(t.Columns))
	}
	return nil
}

func (a *app) loadSnapshot(args []string) error {
	fs := flag.NewFlagSet("load-snapshot", flag.ExitOnError)
	snapFlag := snapshotFlag(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	explicit := *snapFlag
	if explicit == "" && fs.NArg() > 0 {
		explicit = fs.Arg(0)
	}

	snap, err := a.selectSnapshot(explicit)
	if err != nil {
		return err
	}
	fmt.Printf("snapshot %s\n", snap.ID)
	fmt.Printf("  vehicle_positions: %d\n", len(snap.VehiclePositions))
	fmt.Printf("  trip_updates:      %d\n", len(snap.TripUpdates))
	fmt.Printf("  stop_time_updates: %d\n", len(snap.StopTimeUpdates))
	fmt.Printf("  alerts:            %d\n", len(snap.Alerts))
	return nil
}

func (a *app) stats(args []string) error {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	snapFlag := snapshotFlag(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	snap, err := a.selectSnapshot(*snapFlag)
	if err != nil {
		return err
	}
	fmt.Print(query.RenderStats(query.Stats(snap)))
	return nil
}

func (a *app) activeRoutes(args []string) error {
	fs := flag.NewFlagSet("active-routes", flag.ExitOnError)
	snapFlag := snapshotFlag(fs)
	maxRoutes := fs.Int("max-routes", 0, "limit the number of routes shown (0 = all)")
	maxVehicles := fs.Int("max-vehicles", 0, "limit vehicles listed per route (0 = all)")
	routeID := fs.String("route", "", "show only this route")
	export := fs.Bool("export", false, "also export the enriched vehicle table as an artifact")
	if err := fs.Parse(args); err != nil {
		return err
	}

	snap, err := a.selectSnapshot(*snapFlag)
	if err != nil {
		return err
	}
	static, err := a.loadStaticSet()
	if err != nil {
		return err
	}

	result := query.ActiveRoutes(snap, static, query.ActiveRoutesOptions{
		MaxRoutes:           *maxRoutes,
		MaxVehiclesPerRoute: *maxVehicles,
		RouteID:             *routeID,
	}, a.log)
	fmt.Print(query.RenderActiveRoutes(result))

	if *export {
		aw := artifacts.NewWriter(a.providers.Paths.ArtifactsDir)
		ref, err := aw.WriteTable(
			query.EnrichedVehicleTable(snap, static),
			"enriched_vehicle_positions",
			"vehicle positions with route names joined from the static tables",
		)
		if err != nil {
			return err
		}
		fmt.Printf("artifact: %s (%d rows)\n", ref.Path, ref.Rows)
	}
	return nil
}

func (a *app) vehicle(args []string) error {
	fs := flag.NewFlagSet("vehicle", flag.ExitOnError)
	snapFlag := snapshotFlag(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 1 {
		return fmt.Errorf("usage: transitlens vehicle <vehicle_id>")
	}

	snap, err := a.selectSnapshot(*snapFlag)
	if err != nil {
		return err
	}
	row, err := query.VehicleByID(snap, fs.Arg(0))
	if err != nil {
		return err
	}

	fmt.Printf("vehicle %s (snapshot %s)\n", row.DisplayID(), snap.ID)
	if row.HasPosition() {
		fmt.Printf("  position: %.6f, %.6f\n", *row.Lat, *row.Lon)
	} else {
		fmt.Println("  position: (absent)")
	}
	if row.TripID != nil {
		fmt.Printf("  trip:     %s\n", *row.TripID)
	}
	if row.RouteID != nil {
		fmt.Printf("  route:    %s\n", *row.RouteID)
	}
	if row.VehicleTimestamp != nil {
		fmt.Printf("  updated:  %d\n", *row.VehicleTimestamp)
	}
	return nil
}

func (a *app) nearby(args []string) error {
	fs := flag.NewFlagSet("nearby", flag.ExitOnError)
	snapFlag := snapshotFlag(fs)
	limit := fs.Int("limit", 0, "maximum results (0 = all)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 2 {
		return fmt.Errorf("usage: transitlens nearby <vehicle_id> <radius_m>")
	}
	radius, err := strconv.ParseFloat(fs.Arg(1), 64)
	if err != nil || radius < 0 {
		return fmt.Errorf("invalid radius: %s", fs.Arg(1))
	}

	snap, err := a.selectSnapshot(*snapFlag)
	if err != nil {
		return err
	}
	result, err := query.NearVehicle(snap, fs.Arg(0), radius, *limit)
	if err != nil {
		return err
	}

	fmt.Printf("%d vehicles within %.0fm of %s (%d considered)\n",
		len(result.Nearby), radius, fs.Arg(0), result.CountConsidered)
	for _, v := range result.Nearby {
		fmt.Printf("  %-20s %8.1fm\n", v.VehicleID, v.DistanceM)
	}
	return nil
}

func (a *app) integrity(args []string) error {
	fs := flag.NewFlagSet("integrity", flag.ExitOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}

	static, err := a.loadStaticSet()
	if err != nil {
		return err
	}
	aw := artifacts.NewWriter(a.providers.Paths.ArtifactsDir)
	report, err := query.Integrity(static, aw, a.log)
	if err != nil {
		return err
	}
	fmt.Print(query.RenderIntegrity(report))
	return nil
}

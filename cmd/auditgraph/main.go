package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"auditgraph/config"
	"auditgraph/internal/artifact"
	"auditgraph/internal/assembler"
	"auditgraph/internal/cache"
	"auditgraph/internal/checkpoint"
	"auditgraph/internal/input"
	"auditgraph/internal/logger"
	"auditgraph/internal/metrics"
	"auditgraph/internal/output/graphjson"
	"auditgraph/internal/pipeline"
	"auditgraph/internal/procseed"
	"auditgraph/internal/reporter"
	"auditgraph/internal/store"
	"auditgraph/internal/syscalls"
)

func findConfigFile(configArg string) string {
	if configArg != "" {
		path := configArg
		if _, err := os.Stat(path); err == nil {
			return path
		}
		log.Printf("Warning: config file not found at %s, trying default locations", path)
	}

	if _, err := os.Stat("auditgraph.yml"); err == nil {
		return "auditgraph.yml"
	}

	exePath, err := os.Executable()
	if err == nil {
		exeDir := filepath.Dir(exePath)
		path := filepath.Join(exeDir, "auditgraph.yml")
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return "auditgraph.yml"
}

func applyDefaults(cfg *config.Config) {
	if cfg.Audit.Input.Mode == "" {
		cfg.Audit.Input.Mode = "file"
	}
	if cfg.Audit.Input.ProcPath == "" {
		cfg.Audit.Input.ProcPath = "/proc"
	}
	if len(cfg.Audit.Input.Bridge) == 0 {
		cfg.Audit.Input.Bridge = []string{"auditctl-bridge"}
	}

	if cfg.Audit.Graph.Versioning.ExcludePrefixes == nil {
		cfg.Audit.Graph.Versioning.ExcludePrefixes = []string{"/dev/"}
	}

	applyCacheDefaults(&cfg.Audit.Buffers.Events)
	applyCacheDefaults(&cfg.Audit.Buffers.Artifacts)

	if cfg.Audit.Stores.Mode == "" {
		cfg.Audit.Stores.Mode = "sqlite"
	}
	if cfg.Audit.Stores.SQLite.Dir == "" {
		cfg.Audit.Stores.SQLite.Dir = "state"
	}
	if cfg.Audit.Stores.Redis.Addr == "" {
		cfg.Audit.Stores.Redis.Addr = "127.0.0.1:6379"
	}

	if cfg.Audit.Checkpoint.Path == "" {
		cfg.Audit.Checkpoint.Path = "state/checkpoint.json"
	}

	if cfg.Audit.Output.File.Path == "" {
		cfg.Audit.Output.File.Path = "output/provenance.jsonl"
	}

	if cfg.Audit.Metrics.Addr == "" {
		cfg.Audit.Metrics.Addr = "127.0.0.1:9090"
	}

	if cfg.Audit.Pipeline.WaitForLog == nil {
		waitForLog := true
		cfg.Audit.Pipeline.WaitForLog = &waitForLog
	}
	if cfg.Audit.Pipeline.DrainTimeout <= 0 {
		cfg.Audit.Pipeline.DrainTimeout = 30 * time.Second
	}

	if cfg.Audit.Logging.Level == "" {
		cfg.Audit.Logging.Level = "info"
	}
}

func applyCacheDefaults(cc *config.CacheConfig) {
	if cc.MaxEntries <= 0 {
		cc.MaxEntries = 100000
	}
	if cc.ExpectedItems == 0 {
		cc.ExpectedItems = 1000000
	}
	if cc.FalsePositiveRate <= 0 {
		cc.FalsePositiveRate = 0.000001
	}
	if cc.Hash == "" {
		cc.Hash = "fnv1a"
	}
}

func openStore(cfg *config.Config, name string) (store.Store, error) {
	switch cfg.Audit.Stores.Mode {
	case "redis":
		return store.OpenRedis(store.RedisConfig{
			Addr:      cfg.Audit.Stores.Redis.Addr,
			Password:  cfg.Audit.Stores.Redis.Password,
			DB:        cfg.Audit.Stores.Redis.DB,
			KeyPrefix: cfg.Audit.Stores.Redis.KeyPrefix + name,
		})
	default:
		return store.OpenSQLite(cfg.Audit.Stores.SQLite.Dir, name)
	}
}

func run(args []string) {
	configArg := ""
	if len(args) > 0 {
		configArg = args[0]
	}

	configPath := findConfigFile(configArg)

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	applyDefaults(cfg)

	if err := logger.Init(cfg.Audit.Logging.Enabled, cfg.Audit.Logging.Level, cfg.Audit.Logging.File, cfg.Audit.Logging.Console); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	logger.Infof("AuditGraph starting")
	logger.Infof("Config loaded from: %s", configPath)

	if cfg.Audit.Metrics.Enabled {
		metrics.Serve(cfg.Audit.Metrics.Addr)
	}

	eventStore, err := openStore(cfg, "events")
	if err != nil {
		logger.Errorf("Failed to open event overflow store: %v", err)
		log.Fatalf("Failed to open event overflow store: %v", err)
	}
	defer eventStore.Close()

	artifactStore, err := openStore(cfg, "artifacts")
	if err != nil {
		logger.Errorf("Failed to open artifact overflow store: %v", err)
		log.Fatalf("Failed to open artifact overflow store: %v", err)
	}
	defer artifactStore.Close()

	eventBuffer, err := cache.New[map[string]string](cache.Options{
		MaxEntries:        cfg.Audit.Buffers.Events.MaxEntries,
		ExpectedItems:     cfg.Audit.Buffers.Events.ExpectedItems,
		FalsePositiveRate: cfg.Audit.Buffers.Events.FalsePositiveRate,
		HashName:          cfg.Audit.Buffers.Events.Hash,
	}, eventStore)
	if err != nil {
		log.Fatalf("Failed to create event buffer: %v", err)
	}

	artifactCache, err := cache.New[*artifact.Properties](cache.Options{
		MaxEntries:        cfg.Audit.Buffers.Artifacts.MaxEntries,
		ExpectedItems:     cfg.Audit.Buffers.Artifacts.ExpectedItems,
		FalsePositiveRate: cfg.Audit.Buffers.Artifacts.FalsePositiveRate,
		HashName:          cfg.Audit.Buffers.Artifacts.Hash,
	}, artifactStore)
	if err != nil {
		log.Fatalf("Failed to create artifact cache: %v", err)
	}

	writer, err := graphjson.NewWriter(cfg.Audit.Output.File.Path)
	if err != nil {
		logger.Errorf("Failed to create graph writer: %v", err)
		log.Fatalf("Failed to create graph writer: %v", err)
	}

	// A replayed log may come from any machine, so the arch must be
	// stated; live capture audits the local kernel.
	var arch syscalls.Arch
	switch {
	case cfg.Audit.Input.Arch != "":
		arch = syscalls.ParseArch(cfg.Audit.Input.Arch)
	case cfg.Audit.Input.Mode == "live":
		arch = syscalls.HostArch()
	default:
		log.Fatalf("audit.input.arch is required for file replay")
	}

	rep := reporter.New(reporter.Config{
		Arch:                   arch,
		Simplify:               cfg.Audit.Graph.Simplify,
		Units:                  cfg.Audit.Graph.Units,
		FileIO:                 cfg.Audit.Graph.FileIO,
		NetIO:                  cfg.Audit.Graph.NetIO,
		Memory:                 cfg.Audit.Graph.Memory,
		UnixSockets:            cfg.Audit.Graph.UnixSockets,
		NetSocketVersioning:    cfg.Audit.Graph.NetSocketVersioning,
		OnlySuccessful:         cfg.Audit.Graph.OnlySuccessful,
		VersionExcludePrefixes: cfg.Audit.Graph.Versioning.ExcludePrefixes,
	}, artifactCache, writer)

	if cfg.Audit.Checkpoint.Enabled {
		cp, err := checkpoint.Load(cfg.Audit.Checkpoint.Path)
		switch {
		case err == nil:
			rep.ImportState(cp.Reporter)
			if err := eventBuffer.RestoreFilter(cp.EventFilter.Data, cp.EventFilter.HashName); err != nil {
				logger.Warnf("Event filter not restored: %v", err)
			}
			if err := artifactCache.RestoreFilter(cp.ArtifactFilter.Data, cp.ArtifactFilter.HashName); err != nil {
				logger.Warnf("Artifact filter not restored: %v", err)
			}
			logger.Infof("Checkpoint restored from %s (saved %s)", cfg.Audit.Checkpoint.Path, cp.SavedAt)
		case errors.Is(err, checkpoint.ErrNotFound):
			logger.Infof("No checkpoint at %s, starting cold", cfg.Audit.Checkpoint.Path)
		default:
			logger.Errorf("Failed to load checkpoint: %v", err)
			log.Fatalf("Failed to load checkpoint: %v", err)
		}
	}

	if cfg.Audit.Input.SeedProc {
		if err := procseed.Seed(cfg.Audit.Input.ProcPath, rep); err != nil {
			logger.Errorf("Failed to seed from proc: %v", err)
		}
	}

	asm := assembler.New(eventBuffer, rep.HandleEvent)

	var feed input.Feed
	switch cfg.Audit.Input.Mode {
	case "file":
		feed, err = input.NewFileFeed(cfg.Audit.Input.Path, cfg.Audit.Input.Sort)
		if err != nil {
			logger.Errorf("Failed to open audit log: %v", err)
			log.Fatalf("Failed to open audit log: %v", err)
		}
		logger.Infof("Input mode: file (%s)", cfg.Audit.Input.Path)
	case "live":
		feed, err = input.NewLiveFeed(cfg.Audit.Input.Bridge[0], cfg.Audit.Input.Bridge[1:]...)
		if err != nil {
			logger.Errorf("Failed to start audit bridge: %v", err)
			log.Fatalf("Failed to start audit bridge: %v", err)
		}
		logger.Infof("Input mode: live (%v)", cfg.Audit.Input.Bridge)
	default:
		log.Fatalf("Unknown input mode: %s", cfg.Audit.Input.Mode)
	}

	pipe := pipeline.NewAuditPipeline(feed, asm, cfg.Audit.Pipeline.DrainTimeout, *cfg.Audit.Pipeline.WaitForLog)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	doneCh := make(chan error, 1)
	go func() {
		doneCh <- pipe.Run(ctx)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigCh:
		logger.Infof("Shutting down")
		cancel()
		if err := <-doneCh; err != nil && err != context.Canceled {
			logger.Errorf("Pipeline error: %v", err)
		}
	case err := <-doneCh:
		if err != nil && err != context.Canceled {
			logger.Errorf("Pipeline error: %v", err)
		}
	}

	if cfg.Audit.Checkpoint.Enabled {
		saveCheckpoint(cfg, rep, eventBuffer, artifactCache)
	}

	if err := pipe.Close(); err != nil {
		logger.Errorf("Error closing pipeline: %v", err)
	}
	if err := writer.Close(); err != nil {
		logger.Errorf("Error closing graph writer: %v", err)
	}

	logger.Infof("AuditGraph stopped")
}

func saveCheckpoint(cfg *config.Config, rep *reporter.Reporter, eventBuffer *cache.BoundedCache[map[string]string], artifactCache *cache.BoundedCache[*artifact.Properties]) {
	if err := eventBuffer.Flush(); err != nil {
		logger.Errorf("Failed to flush event buffer for checkpoint: %v", err)
	}
	if err := artifactCache.Flush(); err != nil {
		logger.Errorf("Failed to flush artifact cache for checkpoint: %v", err)
	}

	eventFilter, err := eventBuffer.FilterBytes()
	if err != nil {
		logger.Errorf("Failed to serialize event filter: %v", err)
		return
	}
	artifactFilter, err := artifactCache.FilterBytes()
	if err != nil {
		logger.Errorf("Failed to serialize artifact filter: %v", err)
		return
	}

	cp := &checkpoint.Checkpoint{
		Reporter: rep.ExportState(),
		EventFilter: checkpoint.FilterState{
			HashName: eventBuffer.HashName(),
			Data:     eventFilter,
		},
		ArtifactFilter: checkpoint.FilterState{
			HashName: artifactCache.HashName(),
			Data:     artifactFilter,
		},
	}
	if err := checkpoint.Save(cfg.Audit.Checkpoint.Path, cp); err != nil {
		logger.Errorf("Failed to save checkpoint: %v", err)
	}
}

func main() {
	run(os.Args[1:])
}

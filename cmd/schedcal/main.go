package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"schedcal/internal/cache"
	"schedcal/internal/config"
	appLog "schedcal/internal/log"
	"schedcal/internal/metrics"
	"schedcal/internal/schedule"
	"schedcal/internal/store/memory"
	"schedcal/internal/store/postgres"
	"schedcal/internal/web"
)

const version = "0.1.0"

type flagConfig struct {
	configPath string
	envFile    string
	listen     string
}

// scheduleStore is what both storage backends provide.
type scheduleStore interface {
	schedule.Fetcher
	web.Directory
}

func main() {
	flags := parseFlags()

	if err := config.LoadDotEnv(flags.envFile); err != nil {
		appLog.Error("failed to load env file", err, "path", flags.envFile)
		os.Exit(1)
	}

	conf, err := loadConfig(flags.configPath, config.Load)
	if err != nil {
		appLog.Error("failed to load config", err, "config_path", flags.configPath)
		os.Exit(1)
	}
	conf.ApplyEnv()

	// CLI --listen overrides config file and environment if provided.
	if flags.listen != "" {
		conf.Listen = flags.listen
	}

	appLog.SetLevel(appLog.ParseLevel(conf.LogLevel))
	appLog.Info("schedcal starting", "version", version)
	appLog.Info("effective config",
		"listen", conf.Listen,
		"log_level", conf.LogLevel,
		"database", conf.Database.URL != "",
		"redis", conf.Redis.Addr != "",
		"cache_ttl", conf.Cache.TTL.String(),
		"max_occurrences_per_event", conf.Engine.MaxOccurrencesPerEvent,
		"max_parallel_days", conf.Engine.MaxParallelDays,
		"metrics", conf.Metrics.Enabled,
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, conf); err != nil {
		appLog.Error("schedcal stopped with error", err)
		os.Exit(1)
	}
	appLog.Info("schedcal exiting")
}

// loadConfig accepts the defaults returned alongside a failed first-run
// write, e.g. when the default path is not writable.
func loadConfig(path string, load func(string) (*config.Config, error)) (*config.Config, error) {
	conf, err := load(path)
	if err != nil {
		if conf == nil {
			return nil, err
		}
		appLog.Error("failed to write default config; continuing with defaults", err, "config_path", path)
	}
	return conf, nil
}

func run(ctx context.Context, conf *config.Config) error {
	var (
		sink           metrics.Sink = metrics.NewNoopSink()
		metricsHandler http.Handler
	)
	if conf.Metrics.Enabled {
		reg := prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		sink = metrics.NewPrometheusSink(reg)
		metricsHandler = promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
	}

	st, closeStore, err := openStore(ctx, conf)
	if err != nil {
		return err
	}
	defer closeStore()

	respCache, closeCache, err := openCache(ctx, conf)
	if err != nil {
		return err
	}
	defer closeCache()

	engine := schedule.NewEngine(st,
		schedule.WithMetrics(sink),
		schedule.WithMaxOccurrencesPerEvent(conf.Engine.MaxOccurrencesPerEvent),
		schedule.WithMaxParallelDays(conf.Engine.MaxParallelDays),
	)

	srv := web.NewServer(engine, st, web.Options{
		Cache:          respCache,
		CacheTTL:       conf.Cache.TTL,
		Metrics:        sink,
		MetricsHandler: metricsHandler,
		MetricsPath:    conf.Metrics.Path,
		ServiceName:    "schedcal",
	})

	return web.StartServer(ctx, conf.Listen, srv.Handler())
}

func openStore(ctx context.Context, conf *config.Config) (scheduleStore, func(), error) {
	if conf.Database.URL == "" {
		appLog.Info("database url not set; using in-memory schedule store")
		return memory.New(), func() {}, nil
	}

	pool, err := postgres.Connect(ctx, conf.Database.URL, conf.Database.MaxConns)
	if err != nil {
		return nil, nil, err
	}
	appLog.Info("connected to database", "max_conns", conf.Database.MaxConns)
	return postgres.New(pool, conf.Database.QueryTimeout), pool.Close, nil
}

func openCache(ctx context.Context, conf *config.Config) (cache.Store, func(), error) {
	if conf.Cache.TTL <= 0 {
		appLog.Info("response cache disabled")
		return nil, func() {}, nil
	}

	if conf.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr: conf.Redis.Addr,
			DB:   conf.Redis.DB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("redis ping: %w", err)
		}
		appLog.Info("response cache backed by redis", "addr", conf.Redis.Addr)
		return cache.NewRedis(client), func() { _ = client.Close() }, nil
	}

	mem := cache.NewMemory()
	janitor, err := cache.StartJanitor(conf.Cache.Sweep, mem)
	if err != nil {
		return nil, nil, err
	}
	appLog.Info("response cache in memory", "sweep", conf.Cache.Sweep)
	return mem, func() { <-janitor.Stop().Done() }, nil
}

func parseFlags() flagConfig {
	var cfg flagConfig

	flag.StringVar(&cfg.configPath, "config", "/etc/schedcal/config.yaml", "Path to config file")
	flag.StringVar(&cfg.envFile, "env-file", ".env", "Optional dotenv file loaded before the config")
	flag.StringVar(&cfg.listen, "listen", "", "HTTP listen address (overrides config if set)")

	flag.Parse()

	return cfg
}

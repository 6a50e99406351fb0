package main

import (
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	redis "github.com/redis/go-redis/v9"

	"seatwatch/internal/api"
	"seatwatch/internal/cache"
	"seatwatch/internal/config"
	"seatwatch/internal/lease"
	"seatwatch/internal/metrics"
	"seatwatch/internal/monitor"
	"seatwatch/internal/notify"
	"seatwatch/internal/regiojet"
	"seatwatch/internal/store"
)

func main() {
	cfg, err := config.Load("")
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	metrics.RegisterDefault()

	var st store.Store
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		log.Printf("no DATABASE_URL set, using in-memory store")
		st = store.NewMemory()
	} else {
		sp, err := store.NewPostgres(cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("failed to connect to postgres: %v", err)
		}
		if err := sp.MigrateDir("db/migrations"); err != nil {
			log.Fatalf("migrations failed: %v", err)
		}
		st = sp
	}

	var rdb *redis.Client
	if cfg.RedisURL != "" {
		opt, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			log.Fatalf("invalid REDIS_URL: %v", err)
		}
		rdb = redis.NewClient(opt)
	}

	var cacheStore cache.Store
	var leases lease.Lease
	var broker api.EventBroker
	if rdb != nil {
		cacheStore = cache.NewRedisStore(rdb)
		leases = lease.NewRedis(rdb)
		broker = api.NewRedisBroker(rdb)
	} else {
		cacheStore = cache.NewMemoryStore()
		leases = lease.NewMemory()
		broker = api.NewBroker()
	}

	client := regiojet.NewClient(cfg.Regiojet.APIBaseURL, cfg.Regiojet.BookingBaseURL, cfg.Regiojet.Timeout)
	locations := cache.NewLocations(cacheStore, client.FetchLocations, cfg.Cache.LocationTTL, cfg.Cache.MemoTTL)

	tz, err := time.LoadLocation(cfg.Notify.Timezone)
	if err != nil {
		log.Printf("unknown timezone %q, falling back to UTC", cfg.Notify.Timezone)
		tz = time.UTC
	}
	dispatcher := notify.NewDispatcher(st, locations, tz)

	var sender notify.Sender
	if cfg.SMTP.Host != "" {
		sender = &notify.SMTPSender{
			Host: cfg.SMTP.Host, Port: cfg.SMTP.Port,
			User: cfg.SMTP.User, Password: cfg.SMTP.Password,
			From: cfg.SMTP.From, FromName: cfg.SMTP.FromName,
		}
	} else {
		log.Printf("no SMTP_HOST set, logging notifications instead of sending")
		sender = logSender{}
	}

	svc := monitor.NewService(st, client, locations)
	srv := api.NewServer(st, svc, client, locations, broker)

	scheduler := monitor.NewScheduler(st, client, dispatcher, leases,
		cfg.Monitor.CheckInterval, cfg.Monitor.LeaseTTL, cfg.Monitor.CheckRateLimit)
	scheduler.Events = srv
	sweeper := monitor.NewSweeper(st, cfg.Monitor.SweepInterval)
	sweeper.Events = srv
	worker := notify.NewWorker(st, sender, cfg.Notify.MaxAttempts)

	scheduler.Start()
	sweeper.Start()
	worker.Start()

	mux := http.NewServeMux()
	mux.HandleFunc("/v1/routes/monitor", srv.MonitorHandler)
	mux.HandleFunc("/v1/routes/monitor/", srv.CancelHandler)
	mux.HandleFunc("/v1/routes/monitored", srv.MonitoredRoutesHandler)
	mux.HandleFunc("/v1/routes/available", srv.AvailableRoutesHandler)
	mux.HandleFunc("/v1/routes/", srv.RestartHandler) // /v1/routes/{id}/restart
	mux.HandleFunc("/v1/locations", srv.LocationsHandler)
	mux.HandleFunc("/v1/events", srv.EventsHandler)
	mux.HandleFunc("/healthz", srv.HealthzHandler)
	mux.HandleFunc("/readyz", srv.ReadyzHandler)
	mux.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

	httpSrv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           logMiddleware(mux),
		ReadHeaderTimeout: 5 * time.Second,
	}
	log.Printf("API listening on %s", cfg.ListenAddr)
	if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("server error: %v", err)
	}
}

// logSender is the dev fallback when SMTP is not configured.
type logSender struct{}

func (logSender) Send(to, subject, _ string) error {
	log.Printf("notify: would send %q to %s", subject, to)
	return nil
}

func logMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		log.Printf("%s %s %s %v", r.RemoteAddr, r.Method, r.URL.Path, time.Since(start))
	})
}

package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"syscall"
	"time"

	"headset-hub/internal/audit"
	"headset-hub/internal/auth"
	"headset-hub/internal/config"
	"headset-hub/internal/headset"
	"headset-hub/internal/httpapi"
	"headset-hub/internal/jabrachrome"
	"headset-hub/internal/jabranative"
	"headset-hub/internal/plantronics"
	"headset-hub/internal/sennheiser"
	"headset-hub/pkg/logger"
	"headset-hub/pkg/utils"

	"github.com/gin-gonic/gin"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/redis/go-redis/v9"
)

func main() {
	// Root context that cancels on shutdown
	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}
	cfg.ApplyVendorDefaults()

	log := logger.New(cfg.App.Env)
	slog.SetDefault(log)

	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	authManager, err := auth.NewManager(cfg.Auth)
	if err != nil {
		log.Error("auth init failed", "err", err)
		os.Exit(1)
	}

	// Audit storage: Postgres when configured, in-memory otherwise.
	var auditRepo audit.Repository = audit.NewMemoryRepo()
	if cfg.HasDB() {
		db, err := utils.OpenPostgres(rootCtx, "pgx", cfg.PostgresDSN(), utils.PostgresPoolConfig{})
		if err != nil {
			log.Error("postgres init failed", "err", err)
			os.Exit(1)
		}
		defer db.Close()
		auditRepo = audit.NewPostgresRepo(db)
	}
	auditSvc := audit.NewService(auditRepo, log)

	// Extension bridge transport: Redis relay when configured. Without
	// Redis there is no path to the extension, so the adapter gets a
	// bridge that rejects posts outright and fails connects fast.
	var rdb *redis.Client
	var chromeBridge jabrachrome.Bridge = jabrachrome.UnavailableBridge{}
	if cfg.HasRedis() {
		rdb, err = utils.OpenRedis(rootCtx, utils.RedisConfig{Addr: cfg.RedisAddr()})
		if err != nil {
			log.Error("redis init failed", "err", err)
			os.Exit(1)
		}
		defer rdb.Close()

		chromeBridge, err = jabrachrome.NewRedisBridge(rootCtx, rdb, "headset-hub", log)
		if err != nil {
			log.Error("extension bridge init failed", "err", err)
			os.Exit(1)
		}
	}
	defer chromeBridge.Close()

	bus := headset.NewBus(64, log)
	defer bus.Close()

	board := headset.NewSwitchboard(bus,
		headset.Options{
			ConnectTimeout: cfg.Vendors.ConnectTimeout,
			Logger:         log,
			Audit:          auditSvc,
		},
		plantronics.New(plantronics.NewClient(cfg.Vendors.PlantronicsBaseURL, log), bus, log, plantronics.Options{
			PluginName: cfg.Vendors.PlantronicsPlugin,
		}),
		sennheiser.New(bus, log, sennheiser.Options{
			URL: cfg.Vendors.SennheiserWSURL,
		}),
		jabrachrome.New(bus, log, chromeBridge, jabrachrome.Options{
			ConnectTimeout: cfg.Vendors.ConnectTimeout,
		}),
		jabranative.New(bus, log, jabraHost(rootCtx, cfg, log), jabranative.Options{
			AssetURL: cfg.Vendors.JabraAssetURL,
		}),
	)

	// Device attach/detach events feed the audit trail.
	go auditDeviceEvents(rootCtx, bus, auditSvc)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.Middleware(log))

	h := httpapi.Handlers{
		Auth:  authManager,
		Board: board,
		Bus:   bus,
		Redis: rdb,
		Log:   log,
	}
	registerRoutes(r, h, auth.RequireAccessToken(authManager))

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("api listening", "addr", srv.Addr, "env", cfg.App.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", "err", err)
			stop()
		}
	}()

	<-rootCtx.Done()
	log.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	board.Shutdown(shutdownCtx)

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", "err", err)
	}

	_ = logger.ShutdownFlush(shutdownCtx, 2*time.Second)
}

// jabraHost launches the configured native messaging host and wires its
// stdio as the callback bridge. Without a configured command the adapter
// gets a host that refuses registration.
func jabraHost(ctx context.Context, cfg config.Config, log *slog.Logger) jabranative.HostBridge {
	if cfg.Vendors.JabraHostCmd == "" {
		return jabranative.UnavailableHost{}
	}

	cmd := exec.CommandContext(ctx, cfg.Vendors.JabraHostCmd)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		log.Error("native host stdin failed", "err", err)
		return jabranative.UnavailableHost{}
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		log.Error("native host stdout failed", "err", err)
		return jabranative.UnavailableHost{}
	}
	if err := cmd.Start(); err != nil {
		log.Error("native host start failed", "cmd", cfg.Vendors.JabraHostCmd, "err", err)
		return jabranative.UnavailableHost{}
	}
	go func() {
		if err := cmd.Wait(); err != nil {
			log.Warn("native host exited", "err", err)
		}
	}()
	return jabranative.NewPipeBridge(stdout, stdin, log)
}

// auditDeviceEvents mirrors attach/detach events into the audit trail.
func auditDeviceEvents(ctx context.Context, bus *headset.Bus, svc *audit.Service) {
	events, cancel := bus.Subscribe()
	defer cancel()

	for {
		select {
		case ev, open := <-events:
			if !open {
				return
			}
			if ev.Kind != headset.KindDeviceAttachedChanged {
				continue
			}
			deviceID := ""
			if ev.Device != nil {
				deviceID = ev.Device.ID
			}
			svc.LogDeviceAttached(ctx, ev.Vendor, deviceID, ev.Attached)
		case <-ctx.Done():
			return
		}
	}
}

package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redquill/redquill/src/opserver/catalog"
	"github.com/redquill/redquill/src/opserver/config"
	"github.com/redquill/redquill/src/opserver/data"
	"github.com/redquill/redquill/src/opserver/engine"
	"github.com/redquill/redquill/src/opserver/notify"
	"github.com/redquill/redquill/src/opserver/webserver"
)

func main() {
	// Connect to database first
	mysqlDSN := os.Getenv("MYSQL_DSN")
	if mysqlDSN == "" {
		mysqlDSN = "redquill:redquill@tcp(127.0.0.1:3306)/redquill"
	}
	db := data.MustMySQL(mysqlDSN)
	if err := data.Migrate(db); err != nil {
		log.Fatalf("migrate: %v", err)
	}

	// Load config with database
	cfg := config.Load(db)
	rdb := data.MustRedis(cfg.RedisURL)

	cat, err := catalog.Load(cfg.AbilityDir, cfg.ProfileDir)
	if err != nil {
		log.Fatalf("catalog: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	notifiers := engine.MultiNotifier{data.NewStreamNotifier(rdb)}
	if cfg.DiscordToken != "" && cfg.DiscordChannelID != "" {
		dn, err := notify.NewDiscordNotifier(cfg.DiscordToken, cfg.DiscordChannelID)
		if err != nil {
			log.Printf("Warning: discord notifier disabled: %v", err)
		} else {
			defer dn.Close()
			notifiers = append(notifiers, dn)
		}
	}

	engineLog := log.New(os.Stdout, "[engine] ", log.LstdFlags|log.Lmsgprefix)
	manager := engine.NewManager(cat, data.NewGormStore(db), engineLog, notifiers, engine.Config{
		DefaultLinkTimeout: cfg.LinkTimeout,
		DeadBeaconWindows:  cfg.DeadWindows,
	})

	// Start timeout and liveness sweeps
	go engine.SweepService(ctx, manager, cfg.SweepInterval)

	router := webserver.New(cfg, manager, cat, rdb)

	httpSrv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Starting HTTP server on port %s", cfg.Port)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("http: %v", err)
		}
	}()

	log.Printf("RedQuill operation server listening on %s (%d abilities, %d profiles)",
		cfg.Port, len(cat.Abilities()), len(cat.Profiles()))

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	cancel()
	shutCtx, cancelShut := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShut()
	_ = httpSrv.Shutdown(shutCtx)
}

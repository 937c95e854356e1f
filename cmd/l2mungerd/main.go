package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"example.com/l2munger/internal/common"
	"example.com/l2munger/internal/config"
	"example.com/l2munger/internal/ledger"
	"example.com/l2munger/internal/server"
)

func main() {
	configPath := flag.String("config", "", "path to configuration file")
	addr := flag.String("addr", "", "listen address (overrides config port)")
	pollingDir := flag.String("polling-dir", "", "polling directory (overrides config)")
	readTimeout := flag.Duration("read-timeout", 60*time.Second, "HTTP read timeout")
	writeTimeout := flag.Duration("write-timeout", 60*time.Second, "HTTP write timeout")
	flag.Parse()

	cfg, err := config.LoadOrDefault(*configPath)
	if err != nil {
		common.Fatalf("load config: %v", err)
	}
	if cfg.Logs.Filename == "l2munger.log" {
		cfg.Logs.Filename = "l2mungerd.log"
	}
	logCloser, err := common.SetupLogging(os.Stdout, cfg.Logs)
	if err != nil {
		common.Fatalf("setup logging: %v", err)
	}
	defer logCloser.Close()
	if *pollingDir != "" {
		cfg.PollingDir = *pollingDir
	}
	listenAddr := cfg.ListenAddr()
	if *addr != "" {
		listenAddr = *addr
	}

	var runs *ledger.Ledger
	if cfg.Ledger != "" {
		runs, err = ledger.Open(cfg.Ledger)
		if err != nil {
			common.Fatalf("ledger: %v", err)
		}
		defer runs.Close()
	}
	clock, err := cfg.Server.Clock()
	if err != nil {
		common.Fatalf("playback clock: %v", err)
	}

	srv, err := server.NewServer(server.Options{
		PollingDir:   cfg.PollingDir,
		Clock:        clock,
		InitialFiles: cfg.Server.InitialFiles,
		Ledger:       runs,
	})
	if err != nil {
		common.Fatalf("server init: %v", err)
	}
	defer srv.Close()

	router, err := server.NewRouter(srv)
	if err != nil {
		common.Fatalf("router init: %v", err)
	}
	httpServer := &http.Server{
		Addr:         listenAddr,
		Handler:      router,
		ReadTimeout:  *readTimeout,
		WriteTimeout: *writeTimeout,
	}

	common.Logf("l2mungerd serving %s on %s (clock %s, %.0fx)", cfg.PollingDir, listenAddr,
		clock.Now().Format("2006-01-02 15:04:05"), clock.Speed())
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			common.Fatalf("listen: %v", err)
		}
	}()

	<-shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		common.Warnf("shutdown: %v", err)
	}
	common.Logf("l2mungerd stopped")
}

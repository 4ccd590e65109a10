package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	configFile := "config.toml"
	if len(os.Args) > 1 {
		configFile = os.Args[1]
	}

	cfg, err := loadConfig(configFile)
	if err != nil {
		fmt.Printf("Error loading config: %s\n", err)
		os.Exit(1)
	}

	sm, err := newManager(cfg)
	if err != nil {
		fmt.Printf("Error preloading streams: %s\n", err)
		os.Exit(1)
	}

	srv := &http.Server{
		Addr:    cfg.Server.Address,
		Handler: setupRouter(sm, cfg),
	}

	go func() {
		log.Printf("listening on %s", cfg.Server.Address)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	log.Printf("shutting down")
	sm.CloseAll()
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout.Duration)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("shutdown: %v", err)
	}
}

// newManager builds the streams manager and creates the configured streams.
func newManager(cfg Config) (*StreamsManager, error) {
	sm := NewStreamsManager(cfg.Streams.DefaultCapacity, cfg.Streams.SubscriberQueueSize)
	for _, p := range cfg.Preload {
		if err := sm.CreateStream(p.Name, p.Capacity); err != nil {
			return nil, fmt.Errorf("stream %q: %w", p.Name, err)
		}
	}
	return sm, nil
}

// Package main runs a mock workflow-creation service so commit can be tried
// locally without the real service.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/langdag/dagbuilder/internal/mockservice"
)

func main() {
	cfg := parseFlags()

	server := mockservice.NewServer(cfg)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-stop
		fmt.Println("\nShutting down mock workflow service...")
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.HTTPServer().Shutdown(ctx)
	}()

	fmt.Printf("Mock workflow service starting on http://localhost:%d\n", cfg.Port)
	fmt.Printf("Mode: %s | Delay: %s\n", cfg.Mode, cfg.Delay)

	if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("Server error: %v", err)
	}
}

func parseFlags() *mockservice.Config {
	cfg := &mockservice.Config{}
	flag.IntVar(&cfg.Port, "port", 8080, "port to listen on")
	flag.StringVar(&cfg.Mode, "mode", "ok", "response mode: ok, error")
	flag.DurationVar(&cfg.Delay, "delay", 0, "delay before responding")
	flag.IntVar(&cfg.ErrorCode, "error-code", 500, "HTTP error code (for mode=error)")
	flag.StringVar(&cfg.ErrorMessage, "error-message", "internal server error", "error message (for mode=error)")
	flag.Parse()
	return cfg
}

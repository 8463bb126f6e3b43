package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"agro-assistant-be/internal/bootstrap"
	"agro-assistant-be/internal/config"
	"agro-assistant-be/internal/server"
	"agro-assistant-be/internal/tracer"
	"agro-assistant-be/pkg/database"
)

func main() {
	cfg := config.Load()

	shutdownTracer := tracer.InitTracer()
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracer(ctx); err != nil {
			log.Printf("Tracer shutdown error: %v", err)
		}
	}()

	db, err := database.NewGormDBFromDSN(cfg.Database.Connection)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	container := bootstrap.NewContainer(db, cfg)

	// The job queue must be running before the API accepts messages.
	queueCtx, cancelQueue := context.WithCancel(context.Background())
	defer cancelQueue()
	if err := container.JobQueue.Start(queueCtx); err != nil {
		log.Fatalf("Failed to start job queue: %v", err)
	}

	srv := server.New(cfg, container)

	go func() {
		if err := srv.Run(); err != nil {
			log.Fatalf("Server stopped: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down...")

	if err := srv.Shutdown(); err != nil {
		log.Printf("HTTP shutdown error: %v", err)
	}

	// Close drains in-flight completions; the worker context stays
	// live until they finish so retries and handlers are not cut off.
	if err := container.JobQueue.Close(); err != nil {
		log.Printf("Queue shutdown error: %v", err)
	}
	cancelQueue()

	if container.NatsPublisher != nil {
		container.NatsPublisher.Close()
	}
	if container.NatsSub != nil {
		container.NatsSub.Close()
	}

	log.Println("Shutdown complete")
}

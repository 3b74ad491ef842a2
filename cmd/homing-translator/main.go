package main

import (
	"context"
	"database/sql"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"

	"github.com/navarch/homing/internal/config"
	"github.com/navarch/homing/internal/data"
	"github.com/navarch/homing/internal/messaging"
	"github.com/navarch/homing/internal/runner"
	"github.com/navarch/homing/internal/store"
	"github.com/navarch/homing/internal/translator"
)

func main() {
	cfg, err := config.LoadWorker("translator")
	if err != nil {
		log.Fatalf("config load: %v", err)
	}

	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db open: %v", err)
	}
	defer db.Close()
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)
	if err := db.Ping(); err != nil {
		log.Fatalf("db ping: %v", err)
	}

	st := store.NewPGStore(db)
	rpc := messaging.NewClient(st, messaging.ClientConfig{
		ResponseTimeout: cfg.MessagingTimeout,
	})
	client := data.NewRPCClient(rpc)

	worker := runner.NewTranslatorWorker(st, translator.New(client), runner.Config{
		PollInterval:   cfg.PollInterval,
		Owner:          cfg.Owner,
		MaxCounter:     cfg.MaxCounter,
		ReclaimTimeout: cfg.ReclaimTimeout,
		Concurrent:     cfg.Concurrent,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		stop := make(chan os.Signal, 1)
		signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
		<-stop
		cancel()
	}()

	log.Printf("translator worker %s starting", cfg.Owner)
	worker.Run(ctx)
}

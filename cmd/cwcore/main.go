package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"checkweigh/core/config"
	"checkweigh/core/devstate"
	"checkweigh/core/messaging"
	"checkweigh/core/modelhub"
	"checkweigh/core/registry"
	"checkweigh/core/store"
	"checkweigh/core/validation"
	"checkweigh/core/www"
)

var Version = "dev"

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	configPath := flag.String("config", "cwcore.yaml", "path to config file")
	port := flag.Int("port", 0, "HTTP port (overrides config)")
	flag.Parse()

	if *showVersion {
		fmt.Printf("cwcore %s\n", Version)
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if *port > 0 {
		cfg.Web.Port = *port
	}

	db, err := store.Open(&cfg.Database)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	defer db.Close()
	log.Printf("cwcore: database open (%s)", cfg.Database.Driver)

	// Redis
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Address,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	var redisStore *devstate.RedisStore
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Printf("cwcore: redis not available (%v), running without live state", err)
	} else {
		log.Printf("cwcore: redis connected (%s)", cfg.Redis.Address)
		redisStore = devstate.NewRedisStore(redisClient)
	}
	cancel()
	defer redisClient.Close()

	devices := devstate.NewManager(db, redisStore)
	reg := registry.New(db, cfg.Registry.SharedSecret)
	val := validation.New(db, cfg.Validation.ToleranceGrams)
	hub := modelhub.New(cfg.Model.Dir)

	// Messaging (device status in, model notices out)
	var notifier www.ModelNotifier
	msgClient := messaging.NewClient(&cfg.Messaging)
	defer msgClient.Close()
	if err := msgClient.Connect(); err != nil {
		log.Printf("cwcore: messaging connect: %v, running HTTP-only", err)
	} else {
		consumer := messaging.NewConsumer(msgClient, cfg.Messaging.StatusTopic, messaging.NewCoreHandler(devices))
		if err := consumer.Start(); err != nil {
			log.Printf("cwcore: status subscribe: %v", err)
		} else {
			log.Printf("cwcore: listening for device status on %s", cfg.Messaging.StatusTopic)
		}
		notifier = messaging.NewNotifier(msgClient, cfg.Messaging.ModelTopic)
	}

	router := www.NewRouter(db, reg, val, hub, devices, notifier, cfg.Web.SessionSecret)
	addr := fmt.Sprintf("%s:%d", cfg.Web.Host, cfg.Web.Port)
	server := &http.Server{Addr: addr, Handler: router}

	go func() {
		log.Printf("CheckWeigh Core %s listening on %s", Version, addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("http server: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Println("Shutting down...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("http server shutdown: %v", err)
	}
}

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

	"checkweigh/edge/camera"
	"checkweigh/edge/capture"
	"checkweigh/edge/classify"
	"checkweigh/edge/config"
	"checkweigh/edge/coreapi"
	"checkweigh/edge/identity"
	"checkweigh/edge/modelsync"
	"checkweigh/edge/scale"
	"checkweigh/edge/store"
	"checkweigh/edge/telemetry"
	"checkweigh/edge/www"
)

const version = "1.0.0"

func main() {
	configPath := flag.String("config", "cwedge.yaml", "path to config file")
	debug := flag.Bool("debug", false, "enable debug logging")
	port := flag.Int("port", 0, "HTTP port (overrides config)")
	flag.Parse()

	if *debug {
		log.SetFlags(log.LstdFlags | log.Lshortfile)
	}

	// Load config
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	if *port > 0 {
		cfg.Web.Port = *port
	}

	// Open local database (attempt log + telemetry outbox)
	db, err := store.Open(cfg.DatabasePath)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	defer db.Close()

	// Core API client + device identity
	core := coreapi.New(cfg.CoreURL, cfg.TLSSkipVerify)
	id := identity.New(cfg.CredentialFile, cfg.DeviceName)
	bootCtx, cancelBoot := context.WithTimeout(context.Background(), 30*time.Second)
	if err := id.Bootstrap(bootCtx, core, cfg.SharedSecret); err != nil {
		cancelBoot()
		log.Fatalf("bootstrap identity: %v", err)
	}
	cancelBoot()
	log.Printf("cwedge: device %s is %s", id.DeviceName(), id.State())

	// Scale sampler
	sensor := &scale.StaticSensor{Raw: cfg.Scale.StaticRaw}
	sampler, err := scale.NewSampler(sensor, scale.Calibration{
		X0:             cfg.Scale.X0,
		X1:             cfg.Scale.X1,
		ReferenceGrams: cfg.Scale.ReferenceGrams,
	}, cfg.Scale.SamplesPerRead, cfg.Scale.Interval)
	if err != nil {
		log.Fatalf("scale: %v", err)
	}
	sampler.Start()
	defer sampler.Stop()

	// Classifier with hot-reloadable model
	syncer := modelsync.New(core, nil, cfg.Model.Dir, cfg.Model.ReconcileInterval)
	classifier := classify.NewReloadable(syncer.ModelPath(), classify.CommandLoader(cfg.Classifier.Command))
	syncer.SetReloader(classifier)
	if _, err := os.Stat(syncer.ModelPath()); err == nil {
		// A model from a previous run is usable right away, even if
		// the core is unreachable.
		if err := classifier.Reload(); err != nil {
			log.Printf("load installed model: %v", err)
		}
	}
	syncer.Start()
	defer syncer.Stop()

	// Camera
	var cam camera.Camera
	if cfg.Camera.ImageFile != "" {
		cam = &camera.FileCamera{Path: cfg.Camera.ImageFile}
	} else {
		cam = &camera.CommandCamera{
			Command:    cfg.Camera.Command,
			OutputPath: cfg.Camera.OutputPath,
			Width:      cfg.Camera.Width,
			Height:     cfg.Camera.Height,
		}
	}

	orch := capture.New(sampler, cam, classifier, core, id, db)

	// Telemetry (heartbeats + model notices); outbox covers broker outages
	tel := telemetry.NewClient(&cfg.Telemetry, cfg.ClientID())
	defer tel.Close()
	if err := tel.Connect(); err != nil {
		log.Printf("telemetry connect: %v (will retry via outbox)", err)
	}
	hb := telemetry.NewHeartbeater(tel, db, cfg.DeviceName, version, cfg.Telemetry.StatusTopic, cfg.Telemetry.HeartbeatInterval, sampler, syncer)
	hb.Start()
	defer hb.Stop()

	drainer := telemetry.NewOutboxDrainer(db, tel, cfg.Telemetry.OutboxDrainInterval)
	drainer.Start()
	defer drainer.Stop()

	sub := telemetry.NewSubscriber(tel, cfg.Telemetry.ModelTopic, cfg.DeviceName, syncer)
	if err := sub.Start(); err != nil {
		log.Printf("model notice subscribe: %v", err)
	}

	// HTTP server
	router := www.NewRouter(sampler, orch, core, id, db)
	addr := fmt.Sprintf("%s:%d", cfg.Web.Host, cfg.Web.Port)
	server := &http.Server{Addr: addr, Handler: router}

	go func() {
		log.Printf("CheckWeigh Edge listening on %s", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("http server: %v", err)
		}
	}()

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Println("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Printf("http server shutdown: %v", err)
	}
}

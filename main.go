package main

import (
	"context"
	"log"
	"os"
	"time"

	"htrweb/pkg/htr"
	"htrweb/pkg/tracing"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

var jwtSecret []byte // loaded from env HTR_SECRET (fallback to dev default)

type config struct {
	addr         string
	engineBin    string
	timeout      time.Duration
	demo         bool
	lang         string
	otlpEndpoint string
}

func main() {
	// Auto-load ./.env if present before reading vars
	_ = godotenv.Load()
	secret := os.Getenv("HTR_SECRET")
	if secret == "" {
		secret = "dev-insecure-secret-change" // development fallback
	}
	jwtSecret = []byte(secret)

	cfg := loadConfig()

	shutdown, err := tracing.Setup(context.Background(), cfg.otlpEndpoint)
	if err != nil {
		log.Printf("tracing disabled: %v", err)
		shutdown = func(context.Context) error { return nil }
	}
	defer func() {
		_ = shutdown(context.Background())
	}()

	// Engine availability is probed once at startup; a binary installed later
	// needs a restart to be picked up.
	avail := htr.Detect(cfg.engineBin)
	switch {
	case cfg.demo:
		log.Println("demo mode: serving canned transcriptions, engine never invoked")
	case !avail.EngineUsable():
		log.Println("no usable recognition engine found, serving canned transcriptions")
	case avail.Subprocess:
		log.Printf("recognition engine: %s", avail.BinPath)
	}

	srv := &server{cfg: cfg, avail: avail, sessions: newSessionStore(sessionMaxIdle)}
	go srv.sessions.janitor(context.Background(), time.Minute)

	r := gin.Default()
	setupRoutes(r, srv)

	if err := r.Run(cfg.addr); err != nil {
		log.Fatal(err)
	}
}

func loadConfig() config {
	cfg := config{
		addr:         ":8080",
		engineBin:    htr.DefaultEngineBin,
		timeout:      htr.DefaultTimeout,
		lang:         os.Getenv("HTR_LANG"),
		otlpEndpoint: os.Getenv("HTR_OTLP_ENDPOINT"),
	}
	if v := os.Getenv("HTR_ADDR"); v != "" {
		cfg.addr = v
	}
	if v := os.Getenv("HTR_BIN"); v != "" {
		cfg.engineBin = v
	}
	if v := os.Getenv("HTR_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			log.Printf("bad HTR_TIMEOUT %q, keeping %s: %v", v, cfg.timeout, err)
		} else {
			cfg.timeout = d
		}
	}
	switch os.Getenv("HTR_DEMO") {
	case "1", "true", "yes":
		cfg.demo = true
	}
	return cfg
}

// Command fhirguard runs the rule engine either as an HTTP service
// ("serve") or as a one-shot CLI over a single resource document
// ("anonymize").
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/savegress/fhirguard/internal/api"
	"github.com/savegress/fhirguard/internal/audit"
	"github.com/savegress/fhirguard/internal/budget"
	"github.com/savegress/fhirguard/internal/config"
	"github.com/savegress/fhirguard/internal/engine"
	"github.com/savegress/fhirguard/internal/ruleconfig"
	"github.com/savegress/fhirguard/pkg/fhirtree"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "serve":
		runServe(os.Args[2:])
	case "anonymize":
		runAnonymize(os.Args[2:])
	case "-h", "--help", "help":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "fhirguard: unknown command %q\n", os.Args[1])
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage:
  fhirguard serve [-config path]
  fhirguard anonymize -config path -resource path`)
}

func loadConfig(path string) *config.Config {
	if path == "" {
		path = os.Getenv("FHIRGUARD_CONFIG")
	}
	if path != "" {
		cfg, err := config.Load(path)
		if err != nil {
			log.Printf("failed to load config from %s: %v, using defaults", path, err)
			return config.LoadFromEnv()
		}
		return cfg
	}
	return config.LoadFromEnv()
}

func runServe(args []string) {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	configPath := fs.String("config", "", "path to YAML service configuration")
	fs.Parse(args)

	log.Println("starting fhirguard...")
	cfg := loadConfig(*configPath)

	auditLogger := audit.NewLogger(&cfg.Audit)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := auditLogger.Start(ctx); err != nil {
		log.Fatalf("failed to start audit logger: %v", err)
	}

	server := api.NewServer(cfg, auditLogger)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      server.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("fhirguard API listening on port %d", cfg.Server.Port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("http server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("shutting down fhirguard...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("http server shutdown error: %v", err)
	}

	auditLogger.Stop()

	log.Println("fhirguard stopped")
}

func runAnonymize(args []string) {
	fs := flag.NewFlagSet("anonymize", flag.ExitOnError)
	configPath := fs.String("config", "", "path to a rule configuration document (JSON)")
	resourcePath := fs.String("resource", "", "path to a FHIR resource document (JSON), or - for stdin")
	fs.Parse(args)

	if *configPath == "" || *resourcePath == "" {
		usage()
		os.Exit(1)
	}

	rawConfig, err := os.ReadFile(*configPath)
	if err != nil {
		log.Fatalf("failed to read rule configuration: %v", err)
	}

	rawResource, err := readResource(*resourcePath)
	if err != nil {
		log.Fatalf("failed to read resource document: %v", err)
	}

	doc, err := ruleconfig.Parse(rawConfig)
	if err != nil {
		log.Fatalf("invalid rule configuration: %v", err)
	}

	root, err := fhirtree.FromJSON(rawResource)
	if err != nil {
		log.Fatalf("invalid resource document: %v", err)
	}

	eng := engine.New(doc, budget.New())
	out, res := eng.AnonymizeResource(context.Background(), root)

	encoded, err := out.ToJSON()
	if err != nil {
		log.Fatalf("failed to encode result resource: %v", err)
	}

	var pretty map[string]any
	if err := json.Unmarshal(encoded, &pretty); err != nil {
		log.Fatalf("failed to re-decode result resource: %v", err)
	}
	formatted, err := json.MarshalIndent(pretty, "", "  ")
	if err != nil {
		log.Fatalf("failed to format result resource: %v", err)
	}
	fmt.Println(string(formatted))

	for _, e := range res.Errors {
		fmt.Fprintf(os.Stderr, "error: %v\n", e)
	}
	if len(res.Errors) > 0 {
		os.Exit(1)
	}
}

func readResource(path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(path)
}

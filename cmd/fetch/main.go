package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"marketquotes/internal/app"
	"marketquotes/internal/config"
	"marketquotes/internal/logger"
	"marketquotes/internal/quote"
	"marketquotes/internal/validate"
)

func main() {
	var (
		endpoint   string
		symbolsCSV string
		configPath string
		timeout    time.Duration
		verbose    bool
	)
	flag.StringVar(&endpoint, "endpoint", "stocks", "endpoint: stocks, bonds, forex, mutual-funds or derivatives")
	flag.StringVar(&symbolsCSV, "symbols", "", "comma-separated identifiers")
	flag.StringVar(&configPath, "config", os.Getenv("CONFIG_FILE"), "path to config.yaml (optional)")
	flag.DurationVar(&timeout, "timeout", 15*time.Second, "overall timeout")
	flag.BoolVar(&verbose, "v", false, "log provider attempts to stderr")
	flag.Parse()

	log := logger.New()
	log.SetOutput(os.Stderr)

	_ = godotenv.Load()
	cfg, err := config.Load(configPath)
	if err != nil {
		log.WithError(err).Fatal("config")
	}
	level := "error"
	if verbose {
		level = "debug"
	}
	if err := log.Configure(level, "text", "stderr", 0); err != nil {
		log.WithError(err).Fatal("logger")
	}

	symbols := validate.SplitCSV(symbolsCSV)
	if len(symbols) == 0 {
		fmt.Fprintln(os.Stderr, "usage: fetch -endpoint bonds -symbols GOI2030,GOI2035")
		os.Exit(2)
	}

	a, err := app.New(cfg, log, app.Options{})
	if err != nil {
		log.WithError(err).Fatal("app")
	}
	svc, ok := a.Service(endpoint)
	if !ok {
		log.WithFields(logger.Fields{"endpoint": endpoint}).Fatal("unknown endpoint")
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	var out any
	if len(symbols) == 1 {
		out, err = svc.Get(ctx, "cli", symbols[0])
	} else {
		out, err = svc.Batch(ctx, "cli", symbols)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", strings.ReplaceAll(quote.KindOf(err).String(), "_", " "), err)
		os.Exit(1)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(out); err != nil {
		log.WithError(err).Fatal("encode")
	}
}

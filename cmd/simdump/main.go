package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"maps"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"marketquotes/internal/config"
	"marketquotes/internal/logger"
	"marketquotes/internal/provider"
	"marketquotes/internal/simulator"
	"marketquotes/internal/validate"
)

type row struct {
	Date          string          `json:"date"`
	Price         decimal.Decimal `json:"price"`
	ChangePercent decimal.Decimal `json:"change_percent"`
}

type series struct {
	Symbol string `json:"symbol"`
	Kind   string `json:"kind"`
	Rows   []row  `json:"rows"`
}

func main() {
	var (
		kind       string
		symbolsCSV string
		from       string
		days       int
		outPath    string
		cfgPath    string
	)
	flag.StringVar(&kind, "kind", "bond", "bond, forex or derivative")
	flag.StringVar(&symbolsCSV, "symbols", "", "comma-separated identifiers")
	flag.StringVar(&from, "from", time.Now().UTC().Format(simulator.DateLayout), "first date (YYYY-MM-DD)")
	flag.IntVar(&days, "days", 7, "number of consecutive days")
	flag.StringVar(&outPath, "out", "", "output JSON file path (stdout when empty)")
	flag.StringVar(&cfgPath, "config", "", "path to config.yaml (optional)")
	flag.Parse()

	log := logger.New()
	log.SetOutput(os.Stderr)

	_ = godotenv.Load()
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.WithError(err).Fatal("config")
	}
	loc, err := cfg.Location()
	if err != nil {
		log.WithError(err).Fatal("timezone")
	}
	start, err := time.ParseInLocation(simulator.DateLayout, from, loc)
	if err != nil {
		log.WithError(err).Fatal("from")
	}
	if days <= 0 || days > 3660 {
		log.WithFields(logger.Fields{"days": days}).Fatal("days must be between 1 and 3660")
	}

	rules, k, err := rulesFor(kind)
	if err != nil {
		log.WithError(err).Fatal("kind")
	}
	raws := validate.SplitCSV(symbolsCSV)
	members, err := rules.List(raws, len(raws))
	if err != nil {
		log.WithError(err).Fatal("symbols")
	}

	rates := maps.Clone(simulator.DefaultForexRates)
	for pair, rate := range cfg.Simulator.ForexRates {
		rates[simulator.NormalizePair(pair)] = rate
	}
	sim := simulator.New(simulator.Config{Kind: k, Location: loc, Rates: rates})

	out := make([]series, 0, len(members))
	for _, m := range members {
		s := series{Symbol: m.ID, Kind: string(k), Rows: make([]row, 0, days)}
		for d := 0; d < days; d++ {
			day := start.AddDate(0, 0, d)
			q, err := sim.At(m.ID, day, day)
			if err != nil {
				log.WithError(err).Fatal("simulate")
			}
			s.Rows = append(s.Rows, row{Date: day.Format(simulator.DateLayout), Price: q.Price, ChangePercent: q.ChangePercent})
		}
		out = append(out, s)
	}

	var w io.Writer = os.Stdout
	if outPath != "" {
		f, err := os.Create(outPath)
		if err != nil {
			log.WithError(err).Fatal("create output")
		}
		defer f.Close()
		w = f
	}
	bw := bufio.NewWriter(w)
	enc := json.NewEncoder(bw)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		log.WithError(err).Fatal("encode")
	}
	if err := bw.Flush(); err != nil {
		log.WithError(err).Fatal("flush")
	}
	if outPath != "" {
		fmt.Fprintf(os.Stderr, "wrote %d series to %s\n", len(out), outPath)
	}
}

func rulesFor(kind string) (validate.Rules, provider.Kind, error) {
	switch provider.Kind(kind) {
	case provider.KindBond:
		return validate.Bond, provider.KindBond, nil
	case provider.KindForex:
		return validate.Forex, provider.KindForex, nil
	case provider.KindDerivative:
		return validate.Derivative, provider.KindDerivative, nil
	default:
		return validate.Rules{}, "", fmt.Errorf("unsupported kind %q", kind)
	}
}

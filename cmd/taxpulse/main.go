package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/viant/afs"

	"github.com/jgtolentino/TaxPulse-PH-Pack/internal/adapter/rulepack"
	"github.com/jgtolentino/TaxPulse-PH-Pack/internal/domain"
	"github.com/jgtolentino/TaxPulse-PH-Pack/internal/logger"
	"github.com/jgtolentino/TaxPulse-PH-Pack/internal/usecase/assessment"
	"github.com/jgtolentino/TaxPulse-PH-Pack/internal/usecase/formula"
)

// jsonTransactionSource extracts a transaction batch from a JSON file
// (an array of field-name -> scalar objects). It stands in for the ledger
// extraction collaborator during local runs.
type jsonTransactionSource struct {
	url string
	fs  afs.Service
}

func (s *jsonTransactionSource) Extract(ctx context.Context) ([]domain.Transaction, error) {
	data, err := s.fs.DownloadWithURL(ctx, s.url)
	if err != nil {
		return nil, fmt.Errorf("reading transactions %s: %w", s.url, err)
	}
	var batch []domain.Transaction
	if err := json.Unmarshal(data, &batch); err != nil {
		return nil, fmt.Errorf("parsing transactions %s: %w", s.url, err)
	}
	return batch, nil
}

var _ domain.TransactionSource = (*jsonTransactionSource)(nil)

func main() {
	var (
		packURL      = flag.String("pack", envOr("TAXPULSE_PACK", "packs/ph"), "tax pack base URL or directory")
		ruleFiles    = flag.String("rules", "vat.rules.yaml", "comma-separated rule files to apply, in order")
		ratesFile    = flag.String("rates", "ph_rates_2025.json", "rate table file")
		mappingFile  = flag.String("mapping", "vat_2550Q.mapping.yaml", "form mapping file")
		transactions = flag.String("transactions", "", "JSON file holding the transaction batch (required)")
		verbose      = flag.Bool("v", false, "enable debug diagnostics")
	)
	flag.Parse()

	log := logger.New().Level(zerolog.InfoLevel)
	if *verbose {
		log = log.Level(zerolog.DebugLevel)
	}

	if *transactions == "" {
		log.Error().Msg("-transactions is required")
		flag.Usage()
		os.Exit(2)
	}

	ctx := logger.WithContext(context.Background(), log)

	// 1. Extract the transaction batch
	source := &jsonTransactionSource{url: *transactions, fs: afs.New()}
	batch, err := source.Extract(ctx)
	if err != nil {
		log.Error().Err(err).Msg("failed to read transactions")
		os.Exit(1)
	}

	// 2. Assemble the engine over the pack
	loader := rulepack.New(*packURL)
	engine := formula.NewEngine(log)
	service := assessment.NewService(loader, engine, log)

	// 3. Run the assessment
	result, err := service.Run(ctx, assessment.Input{
		RuleFiles:    splitList(*ruleFiles),
		RatesFile:    *ratesFile,
		MappingFile:  *mappingFile,
		Transactions: batch,
	})
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrUnknownOperator) {
			log.Error().Err(err).Msg("pack configuration error")
		} else {
			log.Error().Err(err).Msg("assessment failed")
		}
		os.Exit(1)
	}

	// 4. Emit the form return on stdout for the downstream collaborator
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(result); err != nil {
		log.Error().Err(err).Msg("failed to encode result")
		os.Exit(1)
	}
}

func splitList(value string) []string {
	var parts []string
	for _, part := range strings.Split(value, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	return parts
}

func envOr(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

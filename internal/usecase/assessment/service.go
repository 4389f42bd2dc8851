// Package assessment orchestrates one full engine run: pack sources in,
// form line values out.
package assessment

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/jgtolentino/TaxPulse-PH-Pack/internal/adapter/rulepack"
	"github.com/jgtolentino/TaxPulse-PH-Pack/internal/domain"
	"github.com/jgtolentino/TaxPulse-PH-Pack/internal/usecase/formula"
	"github.com/jgtolentino/TaxPulse-PH-Pack/internal/usecase/rules"
)

// Input describes one assessment run: which pack files to use and the
// transaction batch to assess.
type Input struct {
	// RuleFiles are applied in the given order (e.g. VAT rules, then EWT).
	RuleFiles []string
	// RatesFile names the rate table the rules resolve rate codes against.
	RatesFile string
	// MappingFile names the form mapping producing the report lines.
	MappingFile string
	// Transactions is the batch under assessment.
	Transactions []domain.Transaction
}

// Service runs assessments. It owns no evaluation state: the loader holds
// the pack caches and the formula engine is stateless, so a single Service
// may serve concurrent runs.
type Service struct {
	Loader *rulepack.Loader
	Engine *formula.Engine

	log zerolog.Logger
}

// NewService creates an assessment service on top of a pack loader.
func NewService(loader *rulepack.Loader, engine *formula.Engine, log zerolog.Logger) *Service {
	return &Service{
		Loader: loader,
		Engine: engine,
		log:    log,
	}
}

// Run executes one assessment.
// Logic:
//  1. Load every declared rule file, the rate table and the form mapping
//     (configuration errors abort the run and bubble to the caller)
//  2. For each transaction, apply each rule set in order and merge the
//     resulting bucket contributions into the batch totals
//  3. Run the aggregation pass: priority >= 200 rules from all rule files,
//     in rule-file order, rewrite derived buckets
//  4. Evaluate the form mapping over the final buckets
//
// The returned FormReturn carries the run id, final buckets, form lines and
// per-transaction matched-rule provenance. Run never mutates its input.
func (s *Service) Run(ctx context.Context, input Input) (*domain.FormReturn, error) {
	if len(input.RuleFiles) == 0 {
		return nil, errors.New("assessment requires at least one rule file")
	}

	ruleSets := make([][]domain.Rule, 0, len(input.RuleFiles))
	for _, name := range input.RuleFiles {
		ruleSet, err := s.Loader.LoadRules(ctx, name)
		if err != nil {
			return nil, err
		}
		ruleSets = append(ruleSets, ruleSet)
	}

	var rates *domain.RateTable
	if input.RatesFile != "" {
		loaded, err := s.Loader.LoadRates(ctx, input.RatesFile)
		if err != nil {
			return nil, err
		}
		rates = loaded
	}

	var mapping *domain.FormMapping
	if input.MappingFile != "" {
		loaded, err := s.Loader.LoadMapping(ctx, input.MappingFile)
		if err != nil {
			return nil, err
		}
		mapping = loaded
	}

	runID := uuid.New()
	log := s.log.With().Stringer("run_id", runID).Logger()

	buckets := make(map[string]float64)
	traces := make([]domain.TransactionTrace, 0, len(input.Transactions))

	for i, txn := range input.Transactions {
		trace := domain.TransactionTrace{Index: i}
		for _, ruleSet := range ruleSets {
			result, err := rules.Apply(ruleSet, txn, rates)
			if err != nil {
				return nil, err
			}
			for bucket, amount := range result.Buckets {
				buckets[bucket] += amount
			}
			for _, matched := range result.MatchedRules {
				trace.MatchedRules = append(trace.MatchedRules, matched.Name)
			}
		}
		traces = append(traces, trace)
	}

	for _, ruleSet := range ruleSets {
		buckets = s.Engine.EvaluateAggregationRules(ruleSet, buckets)
	}

	formLines := make(map[string]float64)
	if mapping != nil {
		formLines = s.Engine.EvaluateFormLines(mapping, buckets)
	}

	log.Info().
		Int("transactions", len(input.Transactions)).
		Int("buckets", len(buckets)).
		Int("form_lines", len(formLines)).
		Msg("assessment completed")

	return &domain.FormReturn{
		RunID:     runID,
		Buckets:   buckets,
		FormLines: formLines,
		Traces:    traces,
	}, nil
}

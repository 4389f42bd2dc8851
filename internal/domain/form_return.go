package domain

import "github.com/google/uuid"

// TransactionTrace records which rules matched one transaction of a batch,
// in evaluation order, for audit and traceability.
type TransactionTrace struct {
	Index        int      `json:"index"`
	MatchedRules []string `json:"matched_rules"`
}

// FormReturn is the engine's terminal output for one assessment run:
// final bucket totals and computed form line values, plus per-transaction
// rule provenance. It is handed to the external reporting, persistence and
// sync collaborators; the engine itself never stores or transmits it.
type FormReturn struct {
	RunID     uuid.UUID          `json:"run_id"`
	Buckets   map[string]float64 `json:"buckets"`
	FormLines map[string]float64 `json:"form_lines"`
	Traces    []TransactionTrace `json:"traces,omitempty"`
}

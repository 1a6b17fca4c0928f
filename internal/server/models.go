package server

import (
	"time"

	"kasiski/internal/health"
	"kasiski/internal/kasiski"
	"kasiski/internal/report"
)

// AnalyzeRequest is the body of POST /analyze.
type AnalyzeRequest struct {
	Ciphertext string `json:"ciphertext" binding:"required"`
	// Language overrides the configured reference table.
	Language string `json:"language"`
	// Save records the run in history when the service has a store.
	Save *bool `json:"save"`
}

// AnalyzeResponse carries the analysis result and the history ID when the
// run was recorded.
type AnalyzeResponse struct {
	RunID int64 `json:"run_id,omitempty"`
	*kasiski.Result
}

// CipherRequest is the body of POST /encode and POST /decode.
type CipherRequest struct {
	Text string `json:"text" binding:"required"`
	Key  string `json:"key" binding:"required"`
}

// CipherResponse is the transformed text.
type CipherResponse struct {
	Text string `json:"text"`
}

// TableInfo describes one built-in reference table.
type TableInfo struct {
	Name            string             `json:"name"`
	SelfCorrelation float64            `json:"self_correlation"`
	Frequencies     map[string]float64 `json:"frequencies"`
}

// HistoryResponse lists recorded runs, newest first.
type HistoryResponse struct {
	Runs  []report.RunView `json:"runs"`
	Count int              `json:"count"`
}

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Status     string                        `json:"status"`
	Version    string                        `json:"version"`
	Table      string                        `json:"table"`
	History    bool                          `json:"history"`
	Uptime     string                        `json:"uptime"`
	Components map[string]health.CheckResult `json:"components,omitempty"`
	Time       time.Time                     `json:"time"`
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error string `json:"error"`
}

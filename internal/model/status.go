package model

import (
	"fmt"
	"strings"
)

const (
	StatusFinished = "FINISHED"
	StatusFailed   = "FAILED"
)

const (
	IndexerManager = "manager"
	IndexerCDXJ    = "cdxj"
)

const (
	FailurePolicyFailFast = "fail-fast"
	FailurePolicyContinue = "continue"
)

var indexerAliases = map[string]string{
	"":             IndexerManager,
	"a":            IndexerManager,
	"manager":      IndexerManager,
	"wb-manager":   IndexerManager,
	"pywb":         IndexerManager,
	"b":            IndexerCDXJ,
	"cdxj":         IndexerCDXJ,
	"cdxj-indexer": IndexerCDXJ,
	"external":     IndexerCDXJ,
}

var failurePolicies = map[string]string{
	"":          FailurePolicyFailFast,
	"fail-fast": FailurePolicyFailFast,
	"failfast":  FailurePolicyFailFast,
	"strict":    FailurePolicyFailFast,
	"continue":  FailurePolicyContinue,
}

// NormalizeIndexerMode maps the INDEXER values accepted by the old scripts onto
// the two supported indexing modes.
func NormalizeIndexerMode(raw string) (string, error) {
	mode, ok := indexerAliases[strings.ToLower(strings.TrimSpace(raw))]
	if !ok {
		return "", fmt.Errorf("invalid indexer %q (expected manager or cdxj)", strings.TrimSpace(raw))
	}
	return mode, nil
}

func NormalizeFailurePolicy(raw string) (string, error) {
	policy, ok := failurePolicies[strings.ToLower(strings.TrimSpace(raw))]
	if !ok {
		return "", fmt.Errorf("invalid failure policy %q (expected fail-fast or continue)", strings.TrimSpace(raw))
	}
	return policy, nil
}

func IsKnownStatus(status string) bool {
	return status == StatusFinished || status == StatusFailed
}

// StatusFromLog is the only place a run outcome is decided: the log content wins
// over the downloader's exit code.
func StatusFromLog(hasCompletionMarker bool) string {
	if hasCompletionMarker {
		return StatusFinished
	}
	return StatusFailed
}

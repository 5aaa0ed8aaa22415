package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed identity.
// Version suffix enables future algorithm migration.
const (
	DomainCommand    = "formula/command/v1"
	DomainConfig     = "formula/config/v1"
	DomainDiagnostic = "formula/diagnostic/v1"
)

// hashWithDomain computes SHA-256(domain + 0x00 + data).
// The null byte separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

func incrementsValue(incs []IncrementRecord) []any {
	out := make([]any, len(incs))
	for i, inc := range incs {
		out[i] = map[string]any{
			"symbol":   inc.Symbol,
			"kind":     inc.Kind,
			"arity":    inc.Arity,
			"auto_gen": inc.AutoGen,
			"count":    inc.Count,
		}
	}
	return out
}

// CommandID computes the content-addressed ID of a command at position seq of
// run runID. The ID ignores the record's own ID field.
func CommandID(rec CommandRecord) (string, error) {
	obj := map[string]any{
		"run_id":     rec.RunID,
		"seq":        rec.Seq,
		"kind":       rec.Kind,
		"message":    rec.Message,
		"increments": incrementsValue(rec.Increments),
	}

	canonical, err := MarshalCanonical(obj)
	if err != nil {
		return "", fmt.Errorf("CommandID: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainCommand, canonical), nil
}

// ConfigHash computes the identity of an executor configuration snapshot.
// budget must already be in symbol order.
func ConfigHash(state string, depth int, budget []IncrementRecord) (string, error) {
	obj := map[string]any{
		"state":  state,
		"depth":  depth,
		"budget": incrementsValue(budget),
	}

	canonical, err := MarshalCanonical(obj)
	if err != nil {
		return "", fmt.Errorf("ConfigHash: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainConfig, canonical), nil
}

// DiagnosticID computes the identity of a diagnostic. Positions are excluded
// so that reformatting a spec does not change the IDs of its findings.
func DiagnosticID(rec DiagnosticRecord) (string, error) {
	obj := map[string]any{
		"module":  rec.Module,
		"code":    rec.Code,
		"field":   rec.Field,
		"message": rec.Message,
	}

	canonical, err := MarshalCanonical(obj)
	if err != nil {
		return "", fmt.Errorf("DiagnosticID: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainDiagnostic, canonical), nil
}

// MustCommandID is like CommandID but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustCommandID(rec CommandRecord) string {
	id, err := CommandID(rec)
	if err != nil {
		panic(err)
	}
	return id
}

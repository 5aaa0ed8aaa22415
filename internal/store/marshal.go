package store

import (
	"encoding/json"
	"fmt"

	"github.com/roach88/formula/internal/ir"
)

// marshalIncrements converts increments to canonical JSON TEXT for storage.
func marshalIncrements(incs []ir.IncrementRecord) (string, error) {
	values := make([]any, len(incs))
	for i, inc := range incs {
		values[i] = map[string]any{
			"symbol":   inc.Symbol,
			"kind":     inc.Kind,
			"arity":    inc.Arity,
			"auto_gen": inc.AutoGen,
			"count":    inc.Count,
		}
	}

	data, err := ir.MarshalCanonical(values)
	if err != nil {
		return "", fmt.Errorf("marshal increments: %w", err)
	}
	return string(data), nil
}

// unmarshalIncrements parses canonical JSON TEXT back into increments.
// An empty array yields nil so that round-tripped records compare equal
// to records built without increments.
func unmarshalIncrements(data string) ([]ir.IncrementRecord, error) {
	if data == "" || data == "[]" {
		return nil, nil
	}

	var incs []ir.IncrementRecord
	if err := json.Unmarshal([]byte(data), &incs); err != nil {
		return nil, fmt.Errorf("unmarshal increments: %w", err)
	}
	return incs, nil
}

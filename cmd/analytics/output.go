package main

import (
	"encoding/json"
	"fmt"
	"os"

	jmespath "github.com/jmespath-community/go-jmespath"
)

// printJSON writes v as indented JSON, filtered by --query when set.
func (a *app) printJSON(v any) error {
	var data any
	switch raw := v.(type) {
	case json.RawMessage:
		if err := json.Unmarshal(raw, &data); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	case []byte:
		if err := json.Unmarshal(raw, &data); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	default:
		// Round trip so the query sees plain maps and slices.
		b, err := json.Marshal(v)
		if err != nil {
			return err
		}
		if err := json.Unmarshal(b, &data); err != nil {
			return err
		}
	}

	if a.query != "" {
		result, err := jmespath.Search(a.query, data)
		if err != nil {
			return fmt.Errorf("query %q: %w", a.query, err)
		}
		data = result
	}

	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	return enc.Encode(data)
}

func (a *app) println(format string, args ...any) {
	fmt.Fprintf(a.out, format+"\n", args...)
}

func writeFile(path string, data []byte) error {
	return os.WriteFile(path, data, 0o600)
}

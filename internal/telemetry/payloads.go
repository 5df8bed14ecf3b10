package telemetry

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tidwall/gjson"
)

// PersistPayload writes raw to <artifacts>/payloads/<id>.<kind>.json when
// payload persistence is on. kind is "request" or "response".
func PersistPayload(id, kind string, raw []byte) {
	if !PersistPayloadsEnabled() || len(raw) == 0 {
		return
	}
	id = sanitize(id)
	if id == "" {
		id = "unknown"
	}

	dir := filepath.Join(ArtifactsDir(), "payloads")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "telemetry: mkdir %s: %v\n", dir, err)
		return
	}
	path := filepath.Join(dir, id+"."+sanitize(kind)+".json")
	if err := os.WriteFile(path, raw, 0o600); err != nil {
		fmt.Fprintf(os.Stderr, "telemetry: write %s: %v\n", path, err)
	}
}

// sanitize keeps identifiers usable as a single file name component.
func sanitize(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		}
		return -1
	}, s)
}

// UsageFields pulls token usage out of a raw Responses API body.
// Missing counters are omitted.
func UsageFields(raw string) map[string]any {
	out := map[string]any{}
	if raw == "" {
		return out
	}
	usage := gjson.Get(raw, "usage")
	if !usage.Exists() {
		return out
	}
	for key, path := range map[string]string{
		"input_tokens":     "input_tokens",
		"output_tokens":    "output_tokens",
		"total_tokens":     "total_tokens",
		"cached_tokens":    "input_tokens_details.cached_tokens",
		"reasoning_tokens": "output_tokens_details.reasoning_tokens",
	} {
		if v := usage.Get(path); v.Exists() {
			out[key] = v.Int()
		}
	}
	return out
}

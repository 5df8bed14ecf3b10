package telemetry

import (
	"os"
)

// DefaultArtifactsDir holds events and payloads when CHAT_ARTIFACTS_DIR is unset.
const DefaultArtifactsDir = ".chat"

// Settings are read on every call so values loaded from .env after process
// start still take effect.

// ObserveEnabled reports whether JSONL event emission is on (CHAT_OBSERVE_JSON=1).
func ObserveEnabled() bool {
	return os.Getenv("CHAT_OBSERVE_JSON") == "1"
}

// PersistPayloadsEnabled reports whether raw request and response payloads are
// written to disk. An explicit CHAT_PERSIST_API_PAYLOADS wins; otherwise it
// follows ObserveEnabled.
func PersistPayloadsEnabled() bool {
	if v, ok := os.LookupEnv("CHAT_PERSIST_API_PAYLOADS"); ok && v != "" {
		return v == "1"
	}
	return ObserveEnabled()
}

// ArtifactsDir returns the directory for events.jsonl and payloads/.
func ArtifactsDir() string {
	if v := os.Getenv("CHAT_ARTIFACTS_DIR"); v != "" {
		return v
	}
	return DefaultArtifactsDir
}

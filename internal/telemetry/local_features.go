package telemetry

import (
	"context"

	"github.com/petasbytes/go-chat/internal/metrics"
)

// EmitLocalFeatures records size features of the prompt without its text.
func EmitLocalFeatures(ctx context.Context, prompt string) {
	if !ObserveEnabled() {
		return
	}
	turnID, _ := TurnIDFromContext(ctx)
	Emit("local_features", map[string]any{
		"turn_id":          turnID,
		"features_version": "1",
		"prompt":           metrics.CountFeatures(prompt).Map(),
	})
}

package runner

import (
	"context"
	"encoding/json"
	"errors"
	"maps"
	"strings"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/responses"

	"github.com/petasbytes/go-chat/internal/metrics"
	"github.com/petasbytes/go-chat/internal/provider"
	"github.com/petasbytes/go-chat/internal/reply"
	"github.com/petasbytes/go-chat/internal/telemetry"
	"github.com/petasbytes/go-chat/memory"
)

// Request is everything one exchange needs.
type Request struct {
	Prompt    string
	Model     string
	WebSearch bool
	// State is the prior conversation; the zero State starts a new one.
	State memory.State
}

// Result is the outcome of a successful exchange.
type Result struct {
	Reply reply.Reply
	// State continues the conversation on the next invocation.
	State memory.State
}

type Runner struct {
	Client *openai.Client
}

func New(client *openai.Client) *Runner {
	return &Runner{Client: client}
}

// Params builds the Responses API request for req.
func Params(req Request) responses.ResponseNewParams {
	model := req.Model
	if model == "" {
		model = provider.DefaultModel
	}
	params := responses.ResponseNewParams{
		Model: model,
		Input: responses.ResponseNewParamsInputUnion{OfString: openai.String(req.Prompt)},
		Store: openai.Bool(true),
	}
	if req.WebSearch {
		params.Tools = []responses.ToolUnionParam{{
			OfWebSearchPreview: &responses.WebSearchPreviewToolParam{
				Type: responses.WebSearchPreviewToolTypeWebSearchPreview,
			},
		}}
	}
	if req.State.Continues() {
		params.PreviousResponseID = openai.String(req.State.Handle)
	}
	return params
}

// Run sends req and returns the reply together with the state to persist.
// Any failure is returned as a *CallError, except ErrEmptyPrompt which is
// detected before the network call.
func (r *Runner) Run(ctx context.Context, req Request) (Result, error) {
	if strings.TrimSpace(req.Prompt) == "" {
		return Result{}, ErrEmptyPrompt
	}
	if req.Model == "" {
		req.Model = provider.DefaultModel
	}

	ctx, turnID := telemetry.EnsureTurnID(ctx)
	params := Params(req)

	telemetry.EmitLocalFeatures(ctx, req.Prompt)
	telemetry.Emit("request_sent", map[string]any{
		"turn_id":    turnID,
		"model":      req.Model,
		"web_search": req.WebSearch,
		"continued":  req.State.Continues(),
	})
	if telemetry.PersistPayloadsEnabled() {
		if b, err := json.Marshal(params); err == nil {
			telemetry.PersistPayload(turnID, "request", b)
		}
	}

	start := time.Now()
	resp, err := r.Client.Responses.New(ctx, params)
	elapsed := time.Since(start).Milliseconds()
	if err == nil && (resp == nil || resp.ID == "") {
		err = &CallError{Kind: KindMalformed, Err: errors.New("response carries no id")}
	}
	if err != nil {
		ce := classify(err)
		telemetry.Emit("request_failed", map[string]any{
			"turn_id":     turnID,
			"kind":        string(ce.Kind),
			"status_code": ce.StatusCode,
			"duration_ms": elapsed,
		})
		return Result{}, ce
	}

	rep := reply.FromResponse(resp)
	raw := resp.RawJSON()
	telemetry.PersistPayload(turnID, "response", []byte(raw))

	shape := metrics.CountReply(rep)
	fields := map[string]any{
		"turn_id":              turnID,
		"response_id":          rep.ID,
		"previous_response_id": rep.PreviousID,
		"duration_ms":          elapsed,
		"items":                shape.Items,
		"item_types":           shape.ItemTypes,
		"parts":                shape.Parts,
		"text_parts":           shape.TextParts,
	}
	maps.Copy(fields, telemetry.UsageFields(raw))
	telemetry.Emit("response_received", fields)

	return Result{Reply: rep, State: memory.State{Handle: rep.ID}}, nil
}

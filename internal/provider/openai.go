package provider

import (
	"errors"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

// DefaultModel is used when neither config nor flags name a model.
const DefaultModel = openai.ChatModelGPT4oMini

// ErrMissingAPIKey is returned when no credential was supplied.
var ErrMissingAPIKey = errors.New("OpenAI API key is required")

// NewOpenAIClient returns a client for apiKey. An empty baseURL keeps the SDK
// default endpoint. Automatic retries are disabled: every failure surfaces once.
func NewOpenAIClient(apiKey, baseURL string, opts ...option.RequestOption) (*openai.Client, error) {
	if apiKey == "" {
		return nil, ErrMissingAPIKey
	}
	base := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}
	if baseURL != "" {
		base = append(base, option.WithBaseURL(baseURL))
	}
	c := openai.NewClient(append(base, opts...)...)
	return &c, nil
}

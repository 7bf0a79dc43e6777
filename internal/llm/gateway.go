// Package llm is the two-tier gateway to the Gemini API. The cheap
// model handles per-article scoring, entity extraction and narrative
// discovery; the capable model writes cluster summaries. Every call
// goes through the response cache and the cost tracker.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"google.golang.org/genai"

	"cryptopulse/internal/config"
	"cryptopulse/internal/llmcache"
	"cryptopulse/internal/logger"
)

// Gateway routes prompts to the right model tier.
type Gateway struct {
	gClient        *genai.Client
	cheapModel     string
	capableModel   string
	fallbackModels []string
	timeout        time.Duration
	batchTimeout   time.Duration

	cache *llmcache.Cache
	costs *llmcache.CostTracker
}

// NewGateway creates a gateway from config. The API key is required.
func NewGateway(cfg config.LLM, cache *llmcache.Cache, costs *llmcache.CostTracker) (*Gateway, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini API key is required, set GEMINI_API_KEY")
	}

	ctx := context.Background()
	gClient, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &Gateway{
		gClient:        gClient,
		cheapModel:     cfg.CheapModel,
		capableModel:   cfg.CapableModel,
		fallbackModels: cfg.FallbackModels,
		timeout:        cfg.RequestTimeout(),
		batchTimeout:   cfg.BatchRequestTimeout(),
		cache:          cache,
		costs:          costs,
	}, nil
}

// ErrUnparseable marks responses the JSON parser could not repair.
// Operations translate it into an empty structured result; the raw
// response is never cached.
var ErrUnparseable = errors.New("unparseable model response")

// generateJSON runs one prompt through the cache and the model and
// decodes the JSON response into v. Responses that fail to decode are
// not cached and surface as ErrUnparseable.
func (g *Gateway) generateJSON(ctx context.Context, operation, model, prompt string, v any) error {
	key := llmcache.Key(model, prompt)

	response, cached, err := g.cache.Do(key, model, func() (string, error) {
		raw, err := g.callWithFallback(ctx, operation, model, prompt)
		if err != nil {
			return "", err
		}
		var probe any
		if err := DecodeJSON(raw, &probe); err != nil {
			return "", fmt.Errorf("%w: %v", ErrUnparseable, err)
		}
		return raw, nil
	})
	if err != nil {
		return err
	}
	if cached {
		g.costs.RecordCacheHit(operation, model, key)
	}
	if err := DecodeJSON(response, v); err != nil {
		return fmt.Errorf("%w: %v", ErrUnparseable, err)
	}
	return nil
}

// callWithFallback calls the requested model, walking the fallback list
// when access is denied. Other errors are returned as-is.
func (g *Gateway) callWithFallback(ctx context.Context, operation, model, prompt string) (string, error) {
	response, err := g.call(ctx, operation, model, prompt)
	if err == nil {
		return response, nil
	}
	if !isAccessDenied(err) {
		return "", err
	}

	logger.Warn("model access denied, trying fallbacks", "model", model, "operation", operation)
	for _, fallback := range g.fallbackModels {
		if fallback == model {
			continue
		}
		response, ferr := g.call(ctx, operation, fallback, prompt)
		if ferr == nil {
			return response, nil
		}
		if !isAccessDenied(ferr) {
			return "", ferr
		}
		err = ferr
	}
	return "", fmt.Errorf("all models denied access: %w", err)
}

func (g *Gateway) call(ctx context.Context, operation, model, prompt string) (string, error) {
	contents := []*genai.Content{{
		Parts: []*genai.Part{{Text: prompt}},
		Role:  "user",
	}}

	resp, err := g.gClient.Models.GenerateContent(ctx, model, contents, nil)
	if err != nil {
		return "", fmt.Errorf("failed to generate content: %w", err)
	}

	text := resp.Text()
	if text == "" {
		return "", fmt.Errorf("empty response from model %s", model)
	}

	g.costs.RecordCall(operation, model,
		llmcache.EstimateTokenCount(prompt), llmcache.EstimateTokenCount(text))
	return text, nil
}

// isAccessDenied matches the API's permission errors, which surface as
// HTTP 403 or PERMISSION_DENIED in the error text.
func isAccessDenied(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "403") || strings.Contains(msg, "PERMISSION_DENIED")
}

// withTimeout bounds a single call.
func (g *Gateway) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, g.timeout)
}

// withBatchTimeout bounds a batched call.
func (g *Gateway) withBatchTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, g.batchTimeout)
}

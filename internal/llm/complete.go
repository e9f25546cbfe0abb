package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	openai "github.com/sashabaranov/go-openai"

	"github.com/hyperifyio/itinerary/internal/cache"
)

// Request is a single system+user round trip.
type Request struct {
	Model       string
	System      string
	User        string
	Temperature float32
	// JSON asks the backend for a JSON object response when it supports it.
	JSON bool
}

// ErrCacheMiss is returned in cache-only mode when no cached answer exists.
var ErrCacheMiss = errors.New("llm cache-only: not found")

// Completer sends Requests through a Client, optionally through an on-disk
// response cache keyed by model and prompt.
type Completer struct {
	Client    Client
	Cache     *cache.LLMCache
	CacheOnly bool
	Verbose   bool
}

// Complete returns the first choice's content. Call errors are returned
// wrapped; nothing is retried.
func (c *Completer) Complete(ctx context.Context, stage string, req Request) (string, error) {
	if c == nil || c.Client == nil || strings.TrimSpace(req.Model) == "" {
		return "", errors.New("llm not configured")
	}
	if c.Cache != nil {
		if e, ok, _ := c.Cache.Get(ctx, stage, cache.Key(req.Model, req.System, req.User)); ok {
			log.Debug().Str("stage", stage).Time("saved", e.Saved).Msg("llm cache hit")
			return e.Content, nil
		}
	}
	if c.CacheOnly {
		return "", ErrCacheMiss
	}
	if c.Verbose {
		// prompt sizes only; raw itinerary text stays out of the logs
		log.Debug().Str("stage", stage).Str("model", req.Model).Int("system_len", len(req.System)).Int("user_len", len(req.User)).Msg("llm prompt")
	}
	creq := openai.ChatCompletionRequest{
		Model: req.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: req.System},
			{Role: openai.ChatMessageRoleUser, Content: req.User},
		},
		Temperature: req.Temperature,
		N:           1,
	}
	if req.JSON {
		creq.ResponseFormat = &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject}
	}
	resp, err := c.Client.CreateChatCompletion(ctx, creq)
	if err != nil {
		return "", fmt.Errorf("%s call: %w", stage, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%s call: no choices", stage)
	}
	return FirstContent(resp), nil
}

// Remember stores a response that parsed successfully so re-runs are stable.
func (c *Completer) Remember(ctx context.Context, stage string, req Request, content string) {
	if c == nil || c.Cache == nil {
		return
	}
	e := cache.Entry{Stage: stage, Model: req.Model, Content: content}
	if err := c.Cache.Save(ctx, cache.Key(req.Model, req.System, req.User), e); err != nil {
		log.Debug().Err(err).Str("stage", stage).Msg("llm cache save failed")
	}
}

// DecodeJSON unmarshals model output into v, tolerating Markdown code fences
// and prose around the JSON value.
func DecodeJSON(content string, v any) error {
	s := strings.TrimSpace(content)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```JSON")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	s = strings.TrimSpace(s)
	if s == "" {
		return errors.New("empty response")
	}
	if err := json.Unmarshal([]byte(s), v); err == nil {
		return nil
	} else if i, j := strings.IndexAny(s, "{["), strings.LastIndexAny(s, "}]"); i >= 0 && j > i {
		if err2 := json.Unmarshal([]byte(s[i:j+1]), v); err2 == nil {
			return nil
		}
		return err
	} else {
		return err
	}
}

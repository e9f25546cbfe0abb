package structure

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/hyperifyio/itinerary/internal/budget"
	"github.com/hyperifyio/itinerary/internal/extract"
	"github.com/hyperifyio/itinerary/internal/llm"
	"github.com/hyperifyio/itinerary/internal/trip"
)

// ErrUnparseable matches any UnparseableError via errors.Is.
var ErrUnparseable = errors.New("unparseable structuring response")

// UnparseableError reports a model answer that is not the expected JSON.
// Raw carries the untouched response text for diagnosis.
type UnparseableError struct {
	Raw string
	Err error
}

func (e *UnparseableError) Error() string {
	if e.Err == nil {
		return ErrUnparseable.Error()
	}
	return ErrUnparseable.Error() + ": " + e.Err.Error()
}

func (e *UnparseableError) Unwrap() error { return e.Err }

func (e *UnparseableError) Is(target error) bool { return target == ErrUnparseable }

// LLMExtractor structures pasted text with one chat-completion round trip.
// It performs no retries and no validation beyond decoding the JSON. Fields
// the model leaves out stay at their zero values; malformed or unknown ones
// are carried through in Day.Extra.
type LLMExtractor struct {
	Completer *llm.Completer
	Model     string
	// SystemPrompt, when non-empty, replaces the built-in structuring prompt.
	SystemPrompt string
}

var _ extract.Extractor = (*LLMExtractor)(nil)

func (e *LLMExtractor) Name() string { return "llm" }

// Extract implements extract.Extractor.
func (e *LLMExtractor) Extract(ctx context.Context, raw string) ([]trip.Day, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, extract.ErrMissingInput
	}
	system := structureSystemPrompt
	if strings.TrimSpace(e.SystemPrompt) != "" {
		system = e.SystemPrompt
	}
	req := llm.Request{Model: e.Model, System: system, User: buildUserPrompt(raw), Temperature: 0.1, JSON: true}
	if tokens := budget.EstimatePromptTokens(req.System, req.User); !budget.Fits(e.Model, budget.ReserveFor(e.Model), tokens) {
		log.Warn().Str("model", e.Model).Int("prompt_tokens", tokens).Int("context", budget.ModelContextTokens(e.Model)).
			Msg("itinerary may not fit the model context; the answer could be cut short")
	}
	content, err := e.Completer.Complete(ctx, "structure", req)
	if err != nil {
		return nil, err
	}
	days, err := decodeDays(content)
	if err != nil {
		log.Warn().Err(err).Int("response_len", len(content)).Msg("structuring response did not parse")
		return nil, &UnparseableError{Raw: content, Err: err}
	}
	e.Completer.Remember(ctx, "structure", req, content)
	log.Info().Int("days", len(days)).Msg("structured itinerary")
	return days, nil
}

// decodeDays accepts {"days": [...]} and, from less obedient models, a bare
// array of days. Only the outer shape is checked: day entries decode
// leniently, and entries that are not objects are skipped.
func decodeDays(content string) ([]trip.Day, error) {
	var top json.RawMessage
	if err := llm.DecodeJSON(content, &top); err != nil {
		return nil, err
	}
	list := bytes.TrimSpace(top)
	if len(list) > 0 && list[0] == '{' {
		var wrapped map[string]json.RawMessage
		if err := json.Unmarshal(list, &wrapped); err != nil {
			return nil, err
		}
		d, ok := wrapped["days"]
		if !ok {
			return nil, errors.New(`missing "days"`)
		}
		list = bytes.TrimSpace(d)
	}
	var entries []json.RawMessage
	if err := json.Unmarshal(list, &entries); err != nil {
		return nil, fmt.Errorf(`"days" is not a list: %w`, err)
	}
	days := make([]trip.Day, 0, len(entries))
	for i, raw := range entries {
		var d trip.Day
		if err := json.Unmarshal(raw, &d); err != nil {
			log.Warn().Int("index", i).Err(err).Msg("skipping day entry that is not an object")
			continue
		}
		days = append(days, d)
	}
	return days, nil
}

// TripInfoExtractor pulls costs, flights, visa and similar details out of
// pasted text. Missing details come back as nulls.
type TripInfoExtractor struct {
	Completer    *llm.Completer
	Model        string
	SystemPrompt string
}

func (e *TripInfoExtractor) Extract(ctx context.Context, raw string) (trip.TripInfo, error) {
	if strings.TrimSpace(raw) == "" {
		return trip.TripInfo{}, extract.ErrMissingInput
	}
	system := tripInfoSystemPrompt
	if strings.TrimSpace(e.SystemPrompt) != "" {
		system = e.SystemPrompt
	}
	req := llm.Request{Model: e.Model, System: system, User: buildUserPrompt(raw), Temperature: 0.1, JSON: true}
	content, err := e.Completer.Complete(ctx, "trip-info", req)
	if err != nil {
		return trip.TripInfo{}, err
	}
	var out struct {
		TripInfo *json.RawMessage `json:"tripInfo"`
	}
	if err := llm.DecodeJSON(content, &out); err != nil {
		return trip.TripInfo{}, &UnparseableError{Raw: content, Err: err}
	}
	body := []byte(content)
	if out.TripInfo != nil {
		body = *out.TripInfo
	}
	var info trip.TripInfo
	if err := llm.DecodeJSON(string(body), &info); err != nil {
		return trip.TripInfo{}, &UnparseableError{Raw: content, Err: err}
	}
	e.Completer.Remember(ctx, "trip-info", req, content)
	return info, nil
}

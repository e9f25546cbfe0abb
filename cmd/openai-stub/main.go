package main

import (
	"encoding/json"
	"net/http"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type chatRequest struct {
	Model    string `json:"model"`
	Messages []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
}

var dayHeader = regexp.MustCompile(`(?i)\bday\s+(\d{1,2})\b`)

// stubDays echoes one day per "Day N" marker in the pasted text so local runs
// produce something shaped like a real answer.
func stubDays(user string) []map[string]any {
	days := []map[string]any{}
	seen := map[int]bool{}
	for _, m := range dayHeader.FindAllStringSubmatch(user, -1) {
		n, _ := strconv.Atoi(m[1])
		if seen[n] {
			continue
		}
		seen[n] = true
		days = append(days, map[string]any{
			"day":   n,
			"title": "Day " + m[1],
			"segments": []map[string]any{{
				"id":    "day" + m[1] + "-morning-stub",
				"type":  "activity",
				"title": "Stub activity",
			}},
		})
	}
	if len(days) == 0 {
		days = append(days, map[string]any{"day": 1, "title": "Stub day", "segments": []any{}})
	}
	return days
}

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	model := os.Getenv("MODEL_ID")
	if strings.TrimSpace(model) == "" {
		model = "test-model"
	}
	addr := os.Getenv("ADDR")
	if strings.TrimSpace(addr) == "" {
		addr = ":8081"
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/v1/models", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]any{{"id": model, "object": "model"}},
		})
	})
	mux.HandleFunc("/v1/chat/completions", func(w http.ResponseWriter, r *http.Request) {
		defer r.Body.Close()
		var req chatRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		sys, user := "", ""
		if len(req.Messages) > 0 {
			sys = strings.TrimSpace(req.Messages[0].Content)
		}
		if len(req.Messages) > 1 {
			user = req.Messages[1].Content
		}
		var answer any
		switch {
		case strings.Contains(sys, "travel itineraries"):
			answer = map[string]any{"days": stubDays(user)}
		case strings.Contains(sys, "practical trip details"):
			answer = map[string]any{"tripInfo": map[string]any{"tripName": "Stub trip", "visa": nil}}
		case strings.Contains(sys, "travel researcher"):
			answer = map[string]any{"pois": []map[string]any{{"name": "Stub landmark", "summary": "Placeholder", "confidence": "low"}}}
		default:
			answer = map[string]any{}
		}
		b, _ := json.Marshal(answer)
		log.Debug().Int("bytes", len(b)).Msg("chat completion")
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":      "stub",
			"object":  "chat.completion",
			"model":   model,
			"choices": []map[string]any{{"index": 0, "message": map[string]any{"role": "assistant", "content": string(b)}, "finish_reason": "stop"}},
		})
	})

	log.Info().Str("addr", addr).Str("model", model).Msg("openai stub listening")
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Fatal().Err(err).Msg("stub server")
	}
}

// Stateless HTTP relay that proxies text and speech generation for clients
// without realtime transport support. POST /api/chat takes {"message": ...}
// and returns {"text": ..., "audio": <url>}; generated audio is held in
// memory and served by URL for the lifetime of the process.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/ymodry/rtcvoice"
)

const (
	defaultChatModel = "gpt-3.5-turbo"
	defaultTTSModel  = "tts-1"
	defaultTTSVoice  = rtcvoice.VoiceAlloy
	systemPrompt     = "You are a helpful AI assistant. Respond concisely and clearly."
)

type chatRequest struct {
	Message string `json:"message"`
}

type chatResponse struct {
	Text  string `json:"text"`
	Audio string `json:"audio"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// audioStore holds generated speech in memory, keyed by opaque ID. Nothing
// persists beyond the process: the relay is stateless by design.
type audioStore struct {
	mu    sync.Mutex
	clips map[string][]byte
}

func newAudioStore() *audioStore {
	return &audioStore{clips: make(map[string][]byte)}
}

func (s *audioStore) put(b []byte) string {
	id := uuid.NewString()
	s.mu.Lock()
	s.clips[id] = b
	s.mu.Unlock()
	return id
}

func (s *audioStore) get(id string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.clips[id]
	return b, ok
}

type relay struct {
	apiKey    string
	baseURL   string
	chatModel string
	ttsModel  string
	ttsVoice  string
	client    *http.Client
	retry     rtcvoice.RetryConfig
	audio     *audioStore
}

func main() {
	rl := &relay{
		apiKey:    must("OPENAI_API_KEY"),
		baseURL:   env("OPENAI_BASE_URL", "https://api.openai.com/v1"),
		chatModel: env("RELAY_CHAT_MODEL", defaultChatModel),
		ttsModel:  env("RELAY_TTS_MODEL", defaultTTSModel),
		ttsVoice:  env("RELAY_TTS_VOICE", defaultTTSVoice),
		client:    &http.Client{Timeout: 60 * time.Second},
		retry:     rtcvoice.DefaultRetryConfig(),
		audio:     newAudioStore(),
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Post("/api/chat", rl.handleChat)
	r.Get("/api/audio/{id}", rl.handleAudio)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	addr := env("ADDR", ":8081")
	log.Println("relay on", addr)
	log.Fatal(http.ListenAndServe(addr, r))
}

func (rl *relay) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Message == "" {
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "Internal server error"})
		return
	}

	text, err := rl.generateResponse(r.Context(), req.Message)
	if err != nil {
		log.Println("chat error:", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "Internal server error"})
		return
	}

	clip, err := rl.generateSpeech(r.Context(), text)
	if err != nil {
		log.Println("tts error:", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "Internal server error"})
		return
	}

	id := rl.audio.put(clip)
	writeJSON(w, http.StatusOK, chatResponse{Text: text, Audio: "/api/audio/" + id})
}

func (rl *relay) handleAudio(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	clip, ok := rl.audio.get(id)
	if !ok {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "audio/mpeg")
	_, _ = w.Write(clip)
}

// generateResponse calls the upstream chat completion endpoint. Upstream
// calls are idempotent request/response, so bounded retry applies here
// (unlike session negotiation, which is fail-fast).
func (rl *relay) generateResponse(ctx context.Context, message string) (string, error) {
	payload, _ := json.Marshal(map[string]any{
		"model": rl.chatModel,
		"messages": []map[string]string{
			{"role": "system", "content": systemPrompt},
			{"role": "user", "content": message},
		},
		"temperature": 0.7,
		"max_tokens":  150,
	})

	var text string
	err := rtcvoice.WithRetry(ctx, rl.retry, func() error {
		body, err := rl.post(ctx, "/chat/completions", "application/json", payload)
		if err != nil {
			return err
		}
		var out struct {
			Choices []struct {
				Message struct {
					Content string `json:"content"`
				} `json:"message"`
			} `json:"choices"`
		}
		if err := json.Unmarshal(body, &out); err != nil {
			return err
		}
		if len(out.Choices) == 0 {
			return fmt.Errorf("chat completion returned no choices")
		}
		text = out.Choices[0].Message.Content
		return nil
	})
	return text, err
}

// generateSpeech calls the upstream speech synthesis endpoint and returns
// the audio bytes.
func (rl *relay) generateSpeech(ctx context.Context, text string) ([]byte, error) {
	payload, _ := json.Marshal(map[string]any{
		"model": rl.ttsModel,
		"voice": rl.ttsVoice,
		"input": text,
	})

	var clip []byte
	err := rtcvoice.WithRetry(ctx, rl.retry, func() error {
		body, err := rl.post(ctx, "/audio/speech", "application/json", payload)
		if err != nil {
			return err
		}
		clip = body
		return nil
	})
	return clip, err
}

func (rl *relay) post(ctx context.Context, path, contentType string, payload []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, rl.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+rl.apiKey)
	req.Header.Set("Content-Type", contentType)

	resp, err := rl.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode/100 != 2 {
		return nil, fmt.Errorf("upstream %s: status %d: %s", path, resp.StatusCode, excerpt(body))
	}
	return body, nil
}

func excerpt(b []byte) string {
	const max = 256
	if len(b) > max {
		return string(b[:max]) + "..."
	}
	return string(b)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Failed to encode response: %v", err)
	}
}

func must(k string) string {
	v := os.Getenv(k)
	if v == "" {
		log.Fatalf("missing env %s", k)
	}
	return v
}

func env(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

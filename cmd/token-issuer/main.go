// Minimal server that mints ephemeral realtime credentials for clients.
// Serves POST /session -> {"client_secret":{"value":"..."}} by creating a
// short-lived session against the upstream realtime API, so the long-lived
// API key never reaches the client. Features: optional OIDC verification
// for callers and simple CORS.
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
	"strings"
	"time"

	"github.com/MicahParks/keyfunc/v2"
	oidc "github.com/coreos/go-oidc/v3/oidc"
	"github.com/golang-jwt/jwt/v5"

	"github.com/ymodry/rtcvoice"
)

type sessionResponse struct {
	ClientSecret struct {
		Value string `json:"value"`
	} `json:"client_secret"`
}

type server struct {
	upstream string
	apiKey   string
	model    string
	voice    string

	// OIDC config
	tokenType string // "id" (ID token) or "access" (JWT access token)
	issuer    string
	audience  string
	verifier  *oidc.IDTokenVerifier
	jwks      *keyfunc.JWKS

	// CORS
	allowedOrigins []string
}

func main() {
	s := &server{
		upstream: env("REALTIME_SESSIONS_URL", "https://api.openai.com/v1/realtime/sessions"),
		apiKey:   must("OPENAI_API_KEY"),
		model:    env("REALTIME_MODEL", rtcvoice.DefaultModel),
		voice:    env("REALTIME_VOICE", rtcvoice.VoiceAlloy),
	}

	// OIDC setup
	if iss := os.Getenv("OIDC_ISSUER"); iss != "" {
		aud := must("OIDC_AUDIENCE")
		s.issuer = iss
		s.audience = aud
		s.tokenType = env("OIDC_TOKEN_TYPE", "access") // "id" or "access"

		prov, err := oidc.NewProvider(context.Background(), iss)
		if err != nil {
			log.Fatalf("oidc provider: %v", err)
		}

		if s.tokenType == "id" {
			s.verifier = prov.Verifier(&oidc.Config{ClientID: aud})
			log.Println("OIDC (ID token) enabled", iss, "aud", aud)
		} else {
			// Access token: load JWKS
			var disc struct {
				JWKSURI string `json:"jwks_uri"`
			}
			if err := prov.Claims(&disc); err != nil || disc.JWKSURI == "" {
				log.Fatalf("failed to discover jwks_uri: %v", err)
			}
			jwks, err := keyfunc.Get(disc.JWKSURI, keyfunc.Options{
				RefreshInterval: time.Hour,
				RefreshTimeout:  10 * time.Second,
			})
			if err != nil {
				log.Fatalf("jwks: %v", err)
			}
			s.jwks = jwks
			log.Println("OIDC (access token) enabled", iss, "aud", aud)
		}
	} else {
		log.Println("OIDC disabled")
	}

	if ao := os.Getenv("CORS_ALLOWED_ORIGINS"); ao != "" {
		s.allowedOrigins = splitCSV(ao)
		log.Println("CORS allowed origins:", s.allowedOrigins)
	}

	mux := http.NewServeMux()
	mux.Handle("/session", s.cors(s.auth(http.HandlerFunc(s.handleSession))))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(200)
		if _, err := w.Write([]byte("ok")); err != nil {
			log.Printf("Failed to write health check response: %v", err)
		}
	})

	addr := env("ADDR", ":8080")
	log.Println("token-issuer on", addr)
	log.Fatal(http.ListenAndServe(addr, mux))
}

func (s *server) handleSession(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 15*time.Second)
	defer cancel()

	secret, err := s.mint(ctx)
	if err != nil {
		log.Println("mint error:", err)
		http.Error(w, "mint failed", http.StatusBadGateway)
		return
	}

	var out sessionResponse
	out.ClientSecret.Value = secret
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(out); err != nil {
		log.Printf("Failed to encode session response: %v", err)
	}
}

// mint creates a short-lived upstream session and extracts its client
// secret.
func (s *server) mint(ctx context.Context) (string, error) {
	payload, _ := json.Marshal(map[string]any{"model": s.model, "voice": s.voice})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.upstream, bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("mint session: status %d: %s", resp.StatusCode, body)
	}

	var sr sessionResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		return "", err
	}
	if sr.ClientSecret.Value == "" {
		return "", fmt.Errorf("mint session: response missing client_secret.value")
	}
	return sr.ClientSecret.Value, nil
}

// Middleware: OIDC auth
func (s *server) auth(next http.Handler) http.Handler {
	if s.issuer == "" {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth := r.Header.Get("Authorization")
		if !strings.HasPrefix(strings.ToLower(auth), "bearer ") {
			http.Error(w, "missing bearer", http.StatusUnauthorized)
			return
		}
		raw := strings.TrimSpace(auth[len("Bearer "):])
		if s.tokenType == "id" {
			if s.verifier == nil {
				http.Error(w, "verifier not initialized", http.StatusInternalServerError)
				return
			}
			if _, err := s.verifier.Verify(r.Context(), raw); err != nil {
				http.Error(w, "invalid token", http.StatusUnauthorized)
				return
			}
		} else {
			if s.jwks == nil {
				http.Error(w, "jwks not initialized", http.StatusInternalServerError)
				return
			}
			tok, err := jwt.Parse(raw, s.jwks.Keyfunc, jwt.WithAudience(s.audience), jwt.WithIssuer(s.issuer))
			if err != nil || !tok.Valid {
				http.Error(w, "invalid token", http.StatusUnauthorized)
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

// Middleware: CORS
func (s *server) cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" && (len(s.allowedOrigins) == 0 || contains(s.allowedOrigins, origin) || contains(s.allowedOrigins, "*")) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Vary", "Origin")
			w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// helpers
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

func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func contains(a []string, v string) bool {
	for _, x := range a {
		if x == v {
			return true
		}
	}
	return false
}

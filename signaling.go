package rtcvoice

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// CredentialSource obtains the short-lived credential that authenticates a
// negotiation attempt. Each credential is single-use: a failed negotiation
// consumes it.
type CredentialSource interface {
	Credential(ctx context.Context) (string, error)
}

// HTTPCredentialSource fetches the credential from the external credential
// collaborator: POST <endpoint> must return {"client_secret":{"value":"..."}}.
type HTTPCredentialSource struct {
	endpoint string
	client   *http.Client
}

// NewHTTPCredentialSource creates a credential source for the given
// endpoint. A nil client gets a dedicated one bounded by timeout.
func NewHTTPCredentialSource(endpoint string, timeout time.Duration, client *http.Client) *HTTPCredentialSource {
	if client == nil {
		client = &http.Client{Timeout: timeout}
	}
	return &HTTPCredentialSource{endpoint: endpoint, client: client}
}

// Credential performs the one-shot credential fetch. Any non-success status
// or missing client_secret field is a CredentialError.
func (s *HTTPCredentialSource) Credential(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, nil)
	if err != nil {
		return "", NewCredentialError(s.endpoint, 0, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", NewCredentialError(s.endpoint, 0, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return "", NewCredentialError(s.endpoint, resp.StatusCode, nil)
	}

	var payload struct {
		ClientSecret struct {
			Value string `json:"value"`
		} `json:"client_secret"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", NewCredentialError(s.endpoint, 0, err)
	}
	if payload.ClientSecret.Value == "" {
		return "", NewCredentialError(s.endpoint, 0, errors.New("response missing client_secret.value"))
	}
	return payload.ClientSecret.Value, nil
}

// SignalingClient performs the one-shot transport handshake: it exchanges a
// local SDP offer for a remote answer at the negotiation endpoint,
// authenticated by the bearer credential.
//
// There is no retry. A failed negotiation is surfaced to the
// SessionController, which owns the failure policy; repeated attempts would
// each consume a fresh credential and a fresh capture grant.
type SignalingClient struct {
	baseURL string
	model   string
	client  *http.Client
}

// NewSignalingClient creates a signaling client for the negotiation
// endpoint parameterized by the given model. A nil client gets a dedicated
// one bounded by timeout.
func NewSignalingClient(baseURL, model string, timeout time.Duration, client *http.Client) *SignalingClient {
	if client == nil {
		client = &http.Client{Timeout: timeout}
	}
	return &SignalingClient{baseURL: baseURL, model: model, client: client}
}

// Negotiate posts the raw offer SDP and reads back the answer SDP.
// voiceID is passed through unvalidated; unknown values are rejected by the
// remote endpoint. Fails with NegotiationError on non-success status or an
// empty answer body.
func (c *SignalingClient) Negotiate(ctx context.Context, offerSDP, credential, voiceID string) (string, error) {
	url := fmt.Sprintf("%s?model=%s&voice=%s", c.baseURL, c.model, voiceID)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, strings.NewReader(offerSDP))
	if err != nil {
		return "", NewNegotiationError(url, 0, "", err)
	}
	req.Header.Set("Authorization", "Bearer "+credential)
	req.Header.Set("Content-Type", "application/sdp")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", NewNegotiationError(url, 0, "", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", NewNegotiationError(url, resp.StatusCode, "", err)
	}
	if resp.StatusCode/100 != 2 {
		return "", NewNegotiationError(url, resp.StatusCode, excerpt(body), errors.New("SDP exchange rejected"))
	}
	answer := string(body)
	if strings.TrimSpace(answer) == "" {
		return "", NewNegotiationError(url, resp.StatusCode, "", errors.New("empty answer SDP"))
	}
	return answer, nil
}

func excerpt(b []byte) string {
	const max = 256
	if len(b) > max {
		return string(b[:max]) + "..."
	}
	return string(b)
}

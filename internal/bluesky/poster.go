package bluesky

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const Platform = "bluesky"

type Poster struct {
	defaultService string
	client         *http.Client
}

type Option func(*Poster)

func WithHTTPClient(client *http.Client) Option {
	return func(p *Poster) {
		p.client = client
	}
}

func NewPoster(defaultService string, opts ...Option) *Poster {
	p := &Poster{
		defaultService: strings.TrimSuffix(defaultService, "/"),
		client:         &http.Client{Timeout: 15 * time.Second},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

type Account struct {
	Identifier  string
	AppPassword string
	ServiceURL  string
}

// Post publishes one feed post on the account's PDS and returns the record's
// AT-URI and CID.
func (p *Poster) Post(ctx context.Context, account Account, text string) (string, string, error) {
	service := strings.TrimSuffix(account.ServiceURL, "/")
	if service == "" {
		service = p.defaultService
	}
	session, err := p.createSession(ctx, service, account)
	if err != nil {
		return "", "", err
	}
	return p.createRecord(ctx, service, session, text)
}

type sessionResponse struct {
	AccessJwt string `json:"accessJwt"`
	DID       string `json:"did"`
}

func (p *Poster) createSession(ctx context.Context, service string, account Account) (*sessionResponse, error) {
	payload := map[string]string{
		"identifier": account.Identifier,
		"password":   account.AppPassword,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, service+"/xrpc/com.atproto.server.createSession", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		msg, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("bluesky session failed: %s: %s", resp.Status, strings.TrimSpace(string(msg)))
	}
	var out sessionResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}
	if out.AccessJwt == "" || out.DID == "" {
		return nil, fmt.Errorf("bluesky session response missing token or did")
	}
	return &out, nil
}

func (p *Poster) createRecord(ctx context.Context, service string, session *sessionResponse, text string) (string, string, error) {
	payload := map[string]interface{}{
		"repo":       session.DID,
		"collection": "app.bsky.feed.post",
		"record": map[string]interface{}{
			"$type":     "app.bsky.feed.post",
			"text":      text,
			"createdAt": time.Now().UTC().Format(time.RFC3339),
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, service+"/xrpc/com.atproto.repo.createRecord", bytes.NewReader(body))
	if err != nil {
		return "", "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+session.AccessJwt)
	resp, err := p.client.Do(req)
	if err != nil {
		return "", "", err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		msg, _ := io.ReadAll(resp.Body)
		return "", "", fmt.Errorf("bluesky post failed: %s: %s", resp.Status, strings.TrimSpace(string(msg)))
	}
	var out struct {
		URI string `json:"uri"`
		CID string `json:"cid"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", "", err
	}
	return out.URI, out.CID, nil
}

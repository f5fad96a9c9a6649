package github

import (
	"context"
	"crypto/rsa"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/hashicorp/golang-lru/v2/expirable"
)

const (
	appJWTTTL = 9 * time.Minute
	// Installation tokens live for an hour; cache them a bit shorter so a
	// cached token is never handed out moments before it expires.
	tokenCacheTTL  = 50 * time.Minute
	tokenCacheSize = 256
)

type Client struct {
	apiBase    string
	appID      int64
	privateKey *rsa.PrivateKey
	client     *http.Client
	tokens     *expirable.LRU[int64, string]
}

type Option func(*Client)

func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.client = client
	}
}

func WithAPIBase(base string) Option {
	return func(c *Client) {
		c.apiBase = strings.TrimSuffix(base, "/")
	}
}

func New(appID int64, privateKeyFile string, opts ...Option) (*Client, error) {
	pem, err := os.ReadFile(privateKeyFile)
	if err != nil {
		return nil, fmt.Errorf("read private key: %w", err)
	}
	key, err := jwtlib.ParseRSAPrivateKeyFromPEM(pem)
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}
	c := &Client{
		apiBase:    "https://api.github.com",
		appID:      appID,
		privateKey: key,
		client:     &http.Client{Timeout: 15 * time.Second},
		tokens:     expirable.NewLRU[int64, string](tokenCacheSize, nil, tokenCacheTTL),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// FetchFile returns the raw content of one file at the repository's default
// branch, authenticated with the installation's token.
func (c *Client) FetchFile(ctx context.Context, installationID int64, owner, repo, path string) ([]byte, error) {
	token, err := c.installationToken(ctx, installationID)
	if err != nil {
		return nil, err
	}
	target := fmt.Sprintf("%s/repos/%s/%s/contents/%s", c.apiBase, url.PathEscape(owner), url.PathEscape(repo), escapePath(path))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/vnd.github.raw+json")
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	defer func() { _ = resp.Body.Close() }()
	if err := classifyStatus(resp); err != nil {
		return nil, err
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	return body, nil
}

// ListMarkdownFiles walks the repository's default branch and returns every
// blob path with a markdown extension. Used for full resyncs, where there is
// no commit payload to diff against.
func (c *Client) ListMarkdownFiles(ctx context.Context, installationID int64, owner, repo string) ([]string, error) {
	token, err := c.installationToken(ctx, installationID)
	if err != nil {
		return nil, err
	}
	branch, err := c.defaultBranch(ctx, token, owner, repo)
	if err != nil {
		return nil, err
	}
	target := fmt.Sprintf("%s/repos/%s/%s/git/trees/%s?recursive=1", c.apiBase, url.PathEscape(owner), url.PathEscape(repo), url.PathEscape(branch))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/vnd.github+json")
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	defer func() { _ = resp.Body.Close() }()
	if err := classifyStatus(resp); err != nil {
		return nil, err
	}
	var out struct {
		Tree []struct {
			Path string `json:"path"`
			Type string `json:"type"`
		} `json:"tree"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	paths := make([]string, 0)
	for _, entry := range out.Tree {
		if entry.Type != "blob" {
			continue
		}
		if IsMarkdownPath(entry.Path) {
			paths = append(paths, entry.Path)
		}
	}
	return paths, nil
}

func IsMarkdownPath(path string) bool {
	lower := strings.ToLower(path)
	return strings.HasSuffix(lower, ".md") || strings.HasSuffix(lower, ".markdown")
}

func (c *Client) defaultBranch(ctx context.Context, token, owner, repo string) (string, error) {
	target := fmt.Sprintf("%s/repos/%s/%s", c.apiBase, url.PathEscape(owner), url.PathEscape(repo))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/vnd.github+json")
	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	defer func() { _ = resp.Body.Close() }()
	if err := classifyStatus(resp); err != nil {
		return "", err
	}
	var out struct {
		DefaultBranch string `json:"default_branch"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	if out.DefaultBranch == "" {
		return "main", nil
	}
	return out.DefaultBranch, nil
}

func (c *Client) installationToken(ctx context.Context, installationID int64) (string, error) {
	if token, ok := c.tokens.Get(installationID); ok {
		return token, nil
	}
	appJWT, err := c.signAppJWT()
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrAuth, err)
	}
	target := fmt.Sprintf("%s/app/installations/%d/access_tokens", c.apiBase, installationID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+appJWT)
	req.Header.Set("Accept", "application/vnd.github+json")
	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("%w: token exchange %s: %s", ErrAuth, resp.Status, strings.TrimSpace(string(body)))
	}
	var out struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	if out.Token == "" {
		return "", fmt.Errorf("%w: empty installation token", ErrAuth)
	}
	c.tokens.Add(installationID, out.Token)
	return out.Token, nil
}

func (c *Client) signAppJWT() (string, error) {
	now := time.Now()
	claims := jwtlib.RegisteredClaims{
		Issuer:    fmt.Sprint(c.appID),
		IssuedAt:  jwtlib.NewNumericDate(now.Add(-time.Minute)),
		ExpiresAt: jwtlib.NewNumericDate(now.Add(appJWTTTL)),
	}
	token := jwtlib.NewWithClaims(jwtlib.SigningMethodRS256, claims)
	return token.SignedString(c.privateKey)
}

func classifyStatus(resp *http.Response) error {
	switch {
	case resp.StatusCode >= http.StatusOK && resp.StatusCode < http.StatusMultipleChoices:
		return nil
	case resp.StatusCode == http.StatusNotFound:
		return ErrContentNotFound
	case resp.StatusCode == http.StatusUnauthorized:
		return fmt.Errorf("%w: %s", ErrAuth, resp.Status)
	case resp.StatusCode == http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s", ErrRateLimited, resp.Status)
	case resp.StatusCode == http.StatusForbidden:
		if resp.Header.Get("X-RateLimit-Remaining") == "0" || resp.Header.Get("Retry-After") != "" {
			return fmt.Errorf("%w: %s", ErrRateLimited, resp.Status)
		}
		return fmt.Errorf("%w: %s", ErrAuth, resp.Status)
	case resp.StatusCode >= http.StatusInternalServerError:
		return fmt.Errorf("%w: upstream %s", ErrNetwork, resp.Status)
	default:
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("%w: unexpected status %s: %s", ErrNetwork, resp.Status, strings.TrimSpace(string(body)))
	}
}

func escapePath(path string) string {
	parts := strings.Split(path, "/")
	for i, part := range parts {
		parts[i] = url.PathEscape(part)
	}
	return strings.Join(parts, "/")
}

// Package linkedin talks to LinkedIn: the OAuth authorization and token
// endpoints, the OpenID userinfo endpoint and the UGC posts API.
package linkedin

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/jonathan/recruit-engine/internal/config"
	"golang.org/x/oauth2"
)

// Default LinkedIn endpoints.
const (
	DefaultAuthURL    = "https://www.linkedin.com/oauth/v2/authorization"
	DefaultTokenURL   = "https://www.linkedin.com/oauth/v2/accessToken"
	DefaultAPIBaseURL = "https://api.linkedin.com"
)

// DefaultTimeout bounds every call to LinkedIn.
const DefaultTimeout = 15 * time.Second

// maxBodyBytes caps how much of a response body is read.
const maxBodyBytes = 64 << 10

// APIError is a non-2xx answer from the LinkedIn API.
type APIError struct {
	Endpoint   string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("linkedin %s returned status %d: %s", e.Endpoint, e.StatusCode, e.Body)
}

// UpstreamStatus returns the HTTP status LinkedIn answered with.
func (e *APIError) UpstreamStatus() int { return e.StatusCode }

// UpstreamBody returns the (truncated) response body.
func (e *APIError) UpstreamBody() string { return e.Body }

// Options overrides endpoints and transport, mainly for tests.
type Options struct {
	AuthURL    string
	TokenURL   string
	APIBaseURL string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// DefaultOptions returns the production endpoints with DefaultTimeout.
func DefaultOptions() *Options {
	return &Options{
		AuthURL:    DefaultAuthURL,
		TokenURL:   DefaultTokenURL,
		APIBaseURL: DefaultAPIBaseURL,
		Timeout:    DefaultTimeout,
	}
}

// Client is the LinkedIn OAuth provider and API client.
type Client struct {
	oauth      *oauth2.Config
	httpClient *http.Client
	apiBaseURL string
}

// New creates a Client from the OAuth registration in cfg.
func New(cfg *config.LinkedInConfig, opts *Options) *Client {
	if opts == nil {
		opts = DefaultOptions()
	}
	defaults := DefaultOptions()
	if opts.AuthURL == "" {
		opts.AuthURL = defaults.AuthURL
	}
	if opts.TokenURL == "" {
		opts.TokenURL = defaults.TokenURL
	}
	if opts.APIBaseURL == "" {
		opts.APIBaseURL = defaults.APIBaseURL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaults.Timeout
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: opts.Timeout}
	}

	if cfg == nil {
		cfg = &config.LinkedInConfig{}
	}
	scopes := cfg.Scopes
	if len(scopes) == 0 {
		scopes = config.LinkedInScopes
	}

	return &Client{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURI,
			Scopes:       scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:   opts.AuthURL,
				TokenURL:  opts.TokenURL,
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		httpClient: httpClient,
		apiBaseURL: strings.TrimRight(opts.APIBaseURL, "/"),
	}
}

// AuthCodeURL builds the authorization URL carrying response_type=code,
// client_id, redirect_uri, scope and state.
func (c *Client) AuthCodeURL(state string) string {
	return c.oauth.AuthCodeURL(state)
}

// Exchange trades an authorization code for an access token. The returned
// token's Expiry is derived from expires_in. Failures from the token
// endpoint are *oauth2.RetrieveError.
func (c *Client) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
	return c.oauth.Exchange(ctx, code)
}

type userInfo struct {
	Sub   string `json:"sub"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// FetchAccountID returns the member id (the OpenID "sub" claim).
func (c *Client) FetchAccountID(ctx context.Context, accessToken string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.apiBaseURL+"/v2/userinfo", nil)
	if err != nil {
		return "", fmt.Errorf("failed to create userinfo request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	body, _, err := c.do(req, "userinfo")
	if err != nil {
		return "", err
	}

	var info userInfo
	if err := json.Unmarshal(body, &info); err != nil {
		return "", fmt.Errorf("failed to parse userinfo response: %w", err)
	}
	if info.Sub == "" {
		return "", fmt.Errorf("userinfo response has no sub")
	}
	return info.Sub, nil
}

type ugcPost struct {
	Author          string                     `json:"author"`
	LifecycleState  string                     `json:"lifecycleState"`
	SpecificContent map[string]ugcShareContent `json:"specificContent"`
	Visibility      map[string]string          `json:"visibility"`
}

type ugcShareContent struct {
	ShareCommentary    ugcText `json:"shareCommentary"`
	ShareMediaCategory string  `json:"shareMediaCategory"`
}

type ugcText struct {
	Text string `json:"text"`
}

// PublishPost publishes text as a public post authored by accountID and
// returns LinkedIn's post id.
func (c *Client) PublishPost(ctx context.Context, accessToken, accountID, text string) (string, error) {
	payload := ugcPost{
		Author:         "urn:li:person:" + accountID,
		LifecycleState: "PUBLISHED",
		SpecificContent: map[string]ugcShareContent{
			"com.linkedin.ugc.ShareContent": {
				ShareCommentary:    ugcText{Text: text},
				ShareMediaCategory: "NONE",
			},
		},
		Visibility: map[string]string{
			"com.linkedin.ugc.MemberNetworkVisibility": "PUBLIC",
		},
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal post: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiBaseURL+"/v2/ugcPosts", bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("failed to create publish request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Restli-Protocol-Version", "2.0.0")

	body, header, err := c.do(req, "ugcPosts")
	if err != nil {
		return "", err
	}

	if id := header.Get("X-Restli-Id"); id != "" {
		return id, nil
	}
	var created struct {
		ID string `json:"id"`
	}
	if len(body) > 0 {
		if err := json.Unmarshal(body, &created); err != nil {
			return "", fmt.Errorf("failed to parse publish response: %w", err)
		}
	}
	if created.ID == "" {
		return "", fmt.Errorf("publish response has no post id")
	}
	return created.ID, nil
}

// do executes req and returns the body of a 2xx response, or *APIError.
func (c *Client) do(req *http.Request, endpoint string) ([]byte, http.Header, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("linkedin %s request failed: %w", endpoint, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read linkedin %s response: %w", endpoint, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, nil, &APIError{
			Endpoint:   endpoint,
			StatusCode: resp.StatusCode,
			Body:       truncate(string(body), 2048),
		}
	}
	return body, resp.Header, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

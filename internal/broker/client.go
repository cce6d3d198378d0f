// Package broker implements the KIS Open API client used for quotes, daily
// bars, rankings and order routing. Paper and real modes differ only by base
// URL and transaction ID prefix.
package broker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

// Client is the KIS Open API HTTP client. Token issuance is guarded by a
// mutex; request pacing assumes a single caller goroutine.
type Client struct {
	httpClient *http.Client
	baseURL    string
	appKey     string
	appSecret  string
	cano       string // account number, first 8 digits
	acntPrdtCd string // account product code, last 2 digits
	paper      bool
	logger     *log.Logger

	mu          sync.Mutex
	token       string
	tokenExpiry time.Time
	lastCall    time.Time
	minInterval time.Duration
}

// NewClient creates a broker client. accountNo is the full account number,
// "12345678-01".
func NewClient(baseURL, appKey, appSecret, accountNo string, paper bool, logger *log.Logger) (*Client, error) {
	cano, prdtCd, err := splitAccountNo(accountNo)
	if err != nil {
		return nil, err
	}
	return &Client{
		httpClient:  &http.Client{Timeout: 10 * time.Second},
		baseURL:     strings.TrimRight(baseURL, "/"),
		appKey:      appKey,
		appSecret:   appSecret,
		cano:        cano,
		acntPrdtCd:  prdtCd,
		paper:       paper,
		logger:      logger,
		minInterval: 100 * time.Millisecond,
	}, nil
}

func splitAccountNo(accountNo string) (cano, prdtCd string, err error) {
	parts := strings.SplitN(accountNo, "-", 2)
	if len(parts) != 2 || len(parts[0]) != 8 || len(parts[1]) != 2 {
		return "", "", fmt.Errorf("account number %q is not of the form 12345678-01", accountNo)
	}
	return parts[0], parts[1], nil
}

// apiResponse is the common KIS response envelope. rt_cd "0" is success.
type apiResponse struct {
	RtCd    string          `json:"rt_cd"`
	MsgCd   string          `json:"msg_cd"`
	Msg1    string          `json:"msg1"`
	Output  json.RawMessage `json:"output"`
	Output1 json.RawMessage `json:"output1"`
	Output2 json.RawMessage `json:"output2"`
}

func (r *apiResponse) success() bool {
	return r.RtCd == "0"
}

func (r *apiResponse) err(what string) error {
	return fmt.Errorf("%s failed [%s]: %s", what, r.MsgCd, r.Msg1)
}

// ensureToken issues or reuses the OAuth access token.
func (c *Client) ensureToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token != "" && time.Now().Before(c.tokenExpiry) {
		return c.token, nil
	}

	body, err := json.Marshal(map[string]string{
		"grant_type": "client_credentials",
		"appkey":     c.appKey,
		"appsecret":  c.appSecret,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal token request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/oauth2/tokenP", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to request token: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		text, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("token request returned HTTP %d: %s", resp.StatusCode, text)
	}

	var out struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int64  `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("failed to decode token response: %w", err)
	}
	if out.AccessToken == "" {
		return "", fmt.Errorf("token response carried no access token")
	}

	c.token = out.AccessToken
	expiresIn := out.ExpiresIn
	if expiresIn <= 0 {
		expiresIn = 86400
	}
	// Renew a minute early.
	c.tokenExpiry = time.Now().Add(time.Duration(expiresIn-60) * time.Second)
	if c.logger != nil {
		c.logger.Printf("access token issued, valid until %s", c.tokenExpiry.Format(time.RFC3339))
	}
	return c.token, nil
}

// ApprovalKey issues the websocket approval key. Unlike the access token it
// is not cached; the streamer requests one per session.
func (c *Client) ApprovalKey(ctx context.Context) (string, error) {
	body, err := json.Marshal(map[string]string{
		"grant_type": "client_credentials",
		"appkey":     c.appKey,
		"secretkey":  c.appSecret,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal approval request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/oauth2/Approval", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to build approval request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to request approval key: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		text, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("approval request returned HTTP %d: %s", resp.StatusCode, text)
	}

	var out struct {
		ApprovalKey string `json:"approval_key"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("failed to decode approval response: %w", err)
	}
	if out.ApprovalKey == "" {
		return "", fmt.Errorf("approval response carried no key")
	}
	return out.ApprovalKey, nil
}

// trIDFor converts live transaction IDs to their paper-trading variants:
// leading T/J/C becomes V.
func (c *Client) trIDFor(trID string) string {
	if c.paper && len(trID) > 0 && strings.ContainsRune("TJC", rune(trID[0])) {
		return "V" + trID[1:]
	}
	return trID
}

// throttle enforces the minimum spacing between API calls.
func (c *Client) throttle() {
	c.mu.Lock()
	wait := c.minInterval - time.Since(c.lastCall)
	c.lastCall = time.Now().Add(wait)
	c.mu.Unlock()
	if wait > 0 {
		time.Sleep(wait)
	}
}

func (c *Client) get(ctx context.Context, path, trID string, params url.Values) (*apiResponse, error) {
	token, err := c.ensureToken(ctx)
	if err != nil {
		return nil, err
	}
	c.throttle()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	c.setHeaders(req, token, trID)

	return c.do(req, path)
}

func (c *Client) post(ctx context.Context, path, trID string, body map[string]string) (*apiResponse, error) {
	token, err := c.ensureToken(ctx)
	if err != nil {
		return nil, err
	}
	c.throttle()

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request body: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	c.setHeaders(req, token, trID)

	return c.do(req, path)
}

func (c *Client) setHeaders(req *http.Request, token, trID string) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("authorization", "Bearer "+token)
	req.Header.Set("appkey", c.appKey)
	req.Header.Set("appsecret", c.appSecret)
	req.Header.Set("tr_id", c.trIDFor(trID))
	req.Header.Set("custtype", "P")
}

func (c *Client) do(req *http.Request, path string) (*apiResponse, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request %s failed: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		text, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("%s returned HTTP %d: %s", path, resp.StatusCode, text)
	}

	var out apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode %s response: %w", path, err)
	}
	if !out.success() && c.logger != nil {
		c.logger.Printf("api failure %s [%s]: %s", path, out.MsgCd, out.Msg1)
	}
	return &out, nil
}

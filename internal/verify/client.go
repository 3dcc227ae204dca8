package verify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/compose-network/evm-bridge/internal/logger"
	"github.com/ethereum/go-ethereum/common"
	"github.com/hashicorp/go-retryablehttp"
)

const (
	codeFormatStandardJSON = "solidity-standard-json-input"

	statusOK = "1"

	defaultPollInterval = 5 * time.Second
	defaultMaxPolls     = 24
)

// ErrAlreadyVerified is returned by Submit when the explorer already holds
// the source of the contract.
var ErrAlreadyVerified = errors.New("contract is already verified")

type (
	// Request describes one contract to verify.
	Request struct {
		Address common.Address
		// ContractName is the fully qualified "<source>:<name>".
		ContractName string
		// CompilerVersion is the solc long version, e.g. v0.8.28+commit.7893614a.
		CompilerVersion string
		// Input is the solc standard-JSON input the bytecode was built from.
		Input           json.RawMessage
		ConstructorArgs []byte
	}

	// Client talks to an etherscan compatible verification API. Blockscout
	// exposes the same API.
	Client struct {
		http         *retryablehttp.Client
		apiURL       string
		apiKey       string
		pollInterval time.Duration
		maxPolls     int
		logger       *slog.Logger
	}

	Option func(*Client)

	apiResponse struct {
		Status  string          `json:"status"`
		Message string          `json:"message"`
		Result  json.RawMessage `json:"result"`
	}

	sourceCodeResult struct {
		SourceCode   string `json:"SourceCode"`
		ContractName string `json:"ContractName"`
	}
)

// WithPolling changes how often and how long verification status is polled.
func WithPolling(interval time.Duration, maxPolls int) Option {
	return func(c *Client) {
		c.pollInterval = interval
		c.maxPolls = maxPolls
	}
}

// WithRetries overrides the retry budget of the underlying HTTP client.
func WithRetries(retries int, waitMin, waitMax time.Duration) Option {
	return func(c *Client) {
		c.http.RetryMax = retries
		c.http.RetryWaitMin = waitMin
		c.http.RetryWaitMax = waitMax
	}
}

func NewClient(apiURL, apiKey string, opts ...Option) *Client {
	log := logger.Named("explorer_client").With("api_url", apiURL)

	httpClient := retryablehttp.NewClient()
	httpClient.RetryMax = 4
	httpClient.Logger = log

	c := &Client{
		http:         httpClient,
		apiURL:       apiURL,
		apiKey:       apiKey,
		pollInterval: defaultPollInterval,
		maxPolls:     defaultMaxPolls,
		logger:       log,
	}
	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Verify submits req and waits for the explorer verdict. A contract that is
// already verified is not an error.
func (c *Client) Verify(ctx context.Context, req Request) error {
	verified, err := c.IsVerified(ctx, req.Address)
	if err != nil {
		return err
	}
	if verified {
		c.logger.With("address", req.Address.Hex()).Info("contract already verified")
		return nil
	}

	guid, err := c.Submit(ctx, req)
	if errors.Is(err, ErrAlreadyVerified) {
		c.logger.With("address", req.Address.Hex()).Info("contract already verified")
		return nil
	}
	if err != nil {
		return err
	}

	return c.WaitForStatus(ctx, guid)
}

// IsVerified reports whether the explorer already has source for address.
func (c *Client) IsVerified(ctx context.Context, address common.Address) (bool, error) {
	params := c.params("getsourcecode")
	params.Set("address", address.Hex())

	response, err := c.do(ctx, http.MethodGet, params)
	if err != nil {
		return false, err
	}
	if response.Status != statusOK {
		// explorers answer NOTOK for addresses they have never indexed
		return false, nil
	}

	var results []sourceCodeResult
	if err := json.Unmarshal(response.Result, &results); err != nil {
		return false, fmt.Errorf("failed to decode getsourcecode result: %w", err)
	}

	return len(results) > 0 && results[0].SourceCode != "", nil
}

// Submit sends the verification request and returns the explorer's job id.
func (c *Client) Submit(ctx context.Context, req Request) (string, error) {
	if len(req.Input) == 0 {
		return "", errors.New("compiler input is required")
	}
	if req.CompilerVersion == "" {
		return "", errors.New("compiler version is required")
	}

	params := c.params("verifysourcecode")
	params.Set("contractaddress", req.Address.Hex())
	params.Set("sourceCode", string(req.Input))
	params.Set("codeformat", codeFormatStandardJSON)
	params.Set("contractname", req.ContractName)
	params.Set("compilerversion", req.CompilerVersion)
	// the misspelling is part of the API
	params.Set("constructorArguements", common.Bytes2Hex(req.ConstructorArgs))

	response, err := c.do(ctx, http.MethodPost, params)
	if err != nil {
		return "", err
	}

	result := response.resultString()
	if response.Status != statusOK {
		if isAlreadyVerified(result) {
			return "", ErrAlreadyVerified
		}
		return "", fmt.Errorf("verification of %s was rejected: %s", req.Address.Hex(), result)
	}

	c.logger.With("address", req.Address.Hex(), "guid", result).Info("verification request submitted")

	return result, nil
}

// WaitForStatus polls the verification job until it passes or fails.
func (c *Client) WaitForStatus(ctx context.Context, guid string) error {
	params := c.params("checkverifystatus")
	params.Set("guid", guid)

	for range c.maxPolls {
		response, err := c.do(ctx, http.MethodGet, params)
		if err != nil {
			return err
		}

		result := response.resultString()
		switch {
		case isAlreadyVerified(result):
			return nil
		case response.Status == statusOK:
			return nil
		case isPending(result):
			c.logger.With("guid", guid).Debug("verification pending")
		default:
			return fmt.Errorf("verification %s failed: %s", guid, result)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.pollInterval):
		}
	}

	return fmt.Errorf("verification %s is still pending after %d checks", guid, c.maxPolls)
}

func (c *Client) params(action string) url.Values {
	params := url.Values{}
	params.Set("module", "contract")
	params.Set("action", action)
	if c.apiKey != "" {
		params.Set("apikey", c.apiKey)
	}

	return params
}

func (c *Client) do(ctx context.Context, method string, params url.Values) (*apiResponse, error) {
	var (
		resp *http.Response
		err  error
	)
	switch method {
	case http.MethodPost:
		// a submission the explorer already accepted must not be sent twice,
		// so posts skip the retry policy
		var req *http.Request
		req, err = http.NewRequestWithContext(ctx, method, c.apiURL, strings.NewReader(params.Encode()))
		if err != nil {
			return nil, fmt.Errorf("failed to build %s request: %w", params.Get("action"), err)
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		resp, err = c.http.HTTPClient.Do(req)
	default:
		var req *retryablehttp.Request
		req, err = retryablehttp.NewRequestWithContext(ctx, method, c.apiURL+"?"+params.Encode(), nil)
		if err != nil {
			return nil, fmt.Errorf("failed to build %s request: %w", params.Get("action"), err)
		}
		resp, err = c.http.Do(req)
	}
	if err != nil {
		return nil, fmt.Errorf("%s request failed: %w", params.Get("action"), err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s response: %w", params.Get("action"), err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s request returned %s: %s", params.Get("action"), resp.Status, strings.TrimSpace(string(body)))
	}

	var response apiResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, fmt.Errorf("failed to decode %s response: %w", params.Get("action"), err)
	}

	return &response, nil
}

func (r *apiResponse) resultString() string {
	var s string
	if err := json.Unmarshal(r.Result, &s); err != nil {
		return string(r.Result)
	}

	return s
}

func isAlreadyVerified(result string) bool {
	result = strings.ToLower(result)
	return strings.Contains(result, "already verified")
}

func isPending(result string) bool {
	return strings.Contains(strings.ToLower(result), "pending")
}

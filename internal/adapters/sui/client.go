package sui

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/david-jerry/heroku-suibison/pkg/metrics"
	"github.com/david-jerry/heroku-suibison/pkg/retry"
)

const (
	defaultTimeout   = 30 * time.Second
	defaultGasBudget = "5000000"

	transferEndpoint = "/wallet/se-transactions"
)

// Config holds the node and wallet-service endpoints.
type Config struct {
	RPCURL           string
	WalletServiceURL string
	GasBudget        string
	Timeout          time.Duration
	MaxRetries       int
}

// Client speaks JSON-RPC to a Sui fullnode for reads and HTTP to the wallet
// service for anything that signs and moves money.
type Client struct {
	config     Config
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker
	retrier    *retry.Retrier
	logger     *zap.Logger
}

// NewClient creates a Sui gateway client.
func NewClient(config Config, logger *zap.Logger) *Client {
	if config.Timeout == 0 {
		config.Timeout = defaultTimeout
	}
	if config.GasBudget == "" {
		config.GasBudget = defaultGasBudget
	}
	if config.MaxRetries <= 0 {
		config.MaxRetries = 3
	}
	config.RPCURL = strings.TrimRight(config.RPCURL, "/")
	config.WalletServiceURL = strings.TrimRight(config.WalletServiceURL, "/")

	httpClient := &http.Client{
		Timeout: config.Timeout,
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{
				MinVersion: tls.VersionTLS12,
			},
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
		},
	}

	st := gobreaker.Settings{
		Name:        "SuiGateway",
		MaxRequests: 5,
		Interval:    10 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 5
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Info("Circuit breaker state changed",
				zap.String("name", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	}

	policy := retry.DefaultPolicy()
	policy.MaxRetries = config.MaxRetries
	policy.RetryableFunc = IsRetryable

	return &Client{
		config:     config,
		httpClient: httpClient,
		breaker:    gobreaker.NewCircuitBreaker(st),
		retrier:    retry.NewRetrier(policy, logger),
		logger:     logger,
	}
}

// GetBalance returns the spendable SUI balance of address in whole SUI.
func (c *Client) GetBalance(ctx context.Context, address string) (decimal.Decimal, error) {
	var balance CoinBalance
	err := c.rpcCall(ctx, "suix_getBalance", []interface{}{address, SuiCoinType}, &balance)
	if err != nil {
		return decimal.Zero, fmt.Errorf("get balance for %s: %w", address, err)
	}
	return FromBaseUnits(balance.TotalBalance)
}

// GetCoins lists the SUI coin objects owned by address.
func (c *Client) GetCoins(ctx context.Context, address string) ([]Coin, error) {
	var page coinPage
	err := c.rpcCall(ctx, "suix_getAllCoins", []interface{}{address}, &page)
	if err != nil {
		return nil, fmt.Errorf("get coins for %s: %w", address, err)
	}

	coins := make([]Coin, 0, len(page.Data))
	for _, coin := range page.Data {
		if coin.CoinType == SuiCoinType {
			coins = append(coins, coin)
		}
	}
	return coins, nil
}

// PaySui transfers amount from the owner wallet to recipient through the
// wallet service. Unlike the sweep used on deposit, this call is made exactly
// once: funds leave custody here, so a failure surfaces to the caller
// instead of being retried.
func (c *Client) PaySui(ctx context.Context, ownerAddress, ownerPhrase, recipient string, amount decimal.Decimal) (*ExecuteResult, error) {
	coins, err := c.GetCoins(ctx, ownerAddress)
	if err != nil {
		return nil, err
	}
	if len(coins) == 0 {
		return nil, ErrInsufficientCoins
	}

	body := map[string]interface{}{
		"signer":     ownerAddress,
		"phrase":     ownerPhrase,
		"recipient":  recipient,
		"amount":     ToBaseUnits(amount),
		"gas_budget": c.config.GasBudget,
		"coins":      coinIDs(coins),
		"mode":       "pay_sui",
	}
	return c.walletCallOnce(ctx, transferEndpoint, body)
}

// PayAllSui sweeps the owner wallet's entire balance to recipient.
func (c *Client) PayAllSui(ctx context.Context, ownerAddress, ownerPhrase, recipient string) (*ExecuteResult, error) {
	coins, err := c.GetCoins(ctx, ownerAddress)
	if err != nil {
		return nil, err
	}
	if len(coins) == 0 {
		return nil, ErrInsufficientCoins
	}

	body := map[string]interface{}{
		"signer":     ownerAddress,
		"phrase":     ownerPhrase,
		"recipient":  recipient,
		"gas_budget": c.config.GasBudget,
		"coins":      coinIDs(coins),
		"mode":       "pay_all_sui",
	}
	return c.walletCall(ctx, transferEndpoint, body)
}

func coinIDs(coins []Coin) []string {
	ids := make([]string, len(coins))
	for i, coin := range coins {
		ids[i] = coin.CoinObjectID
	}
	return ids
}

// rpcCall performs a read-only JSON-RPC call against the fullnode, with
// breaker and bounded retry.
func (c *Client) rpcCall(ctx context.Context, method string, params []interface{}, out interface{}) error {
	request := rpcRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  method,
		Params:  params,
	}

	err := c.retrier.Do(ctx, func() error {
		_, err := c.breaker.Execute(func() (interface{}, error) {
			return nil, c.doRPC(ctx, request, out)
		})
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return fmt.Errorf("%w: circuit open", ErrGatewayUnreachable)
		}
		return err
	})

	if err != nil {
		metrics.GatewayRequests.WithLabelValues(method, "failure").Inc()
		return err
	}
	metrics.GatewayRequests.WithLabelValues(method, "success").Inc()
	return nil
}

func (c *Client) doRPC(ctx context.Context, request rpcRequest, out interface{}) error {
	payload, err := json.Marshal(request)
	if err != nil {
		return fmt.Errorf("marshal rpc request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.RPCURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create rpc request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrGatewayUnreachable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: reading response: %v", ErrGatewayUnreachable, err)
	}
	if resp.StatusCode >= 500 {
		return fmt.Errorf("%w: node returned %d", ErrGatewayUnreachable, resp.StatusCode)
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("%w: node returned %d: %s", ErrGatewayRejected, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var rpcResp rpcResponse
	if err := json.Unmarshal(body, &rpcResp); err != nil {
		return fmt.Errorf("unmarshal rpc response: %w", err)
	}
	if rpcResp.Error != nil {
		return fmt.Errorf("%w: rpc error %d: %s", ErrGatewayRejected, rpcResp.Error.Code, rpcResp.Error.Message)
	}
	if out != nil {
		if err := json.Unmarshal(rpcResp.Result, out); err != nil {
			return fmt.Errorf("unmarshal rpc result: %w", err)
		}
	}
	return nil
}

// walletCall posts a signing request to the wallet service. Each logical
// transfer carries one idempotency key so retries cannot double-spend.
func (c *Client) walletCall(ctx context.Context, endpoint string, body map[string]interface{}) (*ExecuteResult, error) {
	idempotencyKey := uuid.NewString()
	url := c.config.WalletServiceURL + endpoint

	var result *ExecuteResult
	err := c.retrier.Do(ctx, func() error {
		res, err := c.breaker.Execute(func() (interface{}, error) {
			return c.doWalletRequest(ctx, url, idempotencyKey, body)
		})
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return fmt.Errorf("%w: circuit open", ErrGatewayUnreachable)
		}
		if err != nil {
			return err
		}
		result = res.(*ExecuteResult)
		return nil
	})

	if err != nil {
		metrics.GatewayRequests.WithLabelValues(endpoint, "failure").Inc()
		c.logger.Error("Wallet service call failed",
			zap.String("endpoint", endpoint),
			zap.String("idempotency_key", idempotencyKey),
			zap.Error(err))
		return nil, err
	}

	metrics.GatewayRequests.WithLabelValues(endpoint, "success").Inc()
	c.logger.Info("Wallet service call completed",
		zap.String("endpoint", endpoint),
		zap.String("idempotency_key", idempotencyKey),
		zap.String("digest", result.Digest))
	return result, nil
}

// walletCallOnce posts a signing request with a single attempt and no retry.
func (c *Client) walletCallOnce(ctx context.Context, endpoint string, body map[string]interface{}) (*ExecuteResult, error) {
	idempotencyKey := uuid.NewString()
	url := c.config.WalletServiceURL + endpoint

	res, err := c.breaker.Execute(func() (interface{}, error) {
		return c.doWalletRequest(ctx, url, idempotencyKey, body)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		err = fmt.Errorf("%w: circuit open", ErrGatewayUnreachable)
	}
	if err != nil {
		metrics.GatewayRequests.WithLabelValues(endpoint, "failure").Inc()
		c.logger.Error("Wallet service call failed",
			zap.String("endpoint", endpoint),
			zap.String("idempotency_key", idempotencyKey),
			zap.Error(err))
		return nil, err
	}

	result := res.(*ExecuteResult)
	metrics.GatewayRequests.WithLabelValues(endpoint, "success").Inc()
	c.logger.Info("Wallet service call completed",
		zap.String("endpoint", endpoint),
		zap.String("idempotency_key", idempotencyKey),
		zap.String("digest", result.Digest))
	return result, nil
}

func (c *Client) doWalletRequest(ctx context.Context, url, idempotencyKey string, body map[string]interface{}) (*ExecuteResult, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal wallet request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create wallet request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Idempotency-Key", idempotencyKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGatewayUnreachable, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading response: %v", ErrGatewayUnreachable, err)
	}
	if resp.StatusCode >= 500 {
		return nil, fmt.Errorf("%w: wallet service returned %d", ErrGatewayUnreachable, resp.StatusCode)
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("%w: wallet service returned %d: %s", ErrGatewayRejected, resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	result := &ExecuteResult{Raw: respBody}
	if len(respBody) > 0 {
		if err := json.Unmarshal(respBody, result); err != nil {
			return nil, fmt.Errorf("unmarshal wallet response: %w", err)
		}
		result.Raw = respBody
	}
	return result, nil
}

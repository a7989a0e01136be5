package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"xandpulse/config"
	"xandpulse/models"
)

const methodPodsWithStats = "get-pods-with-stats"

// PRPCClient speaks JSON-RPC 2.0 to pNode pRPC endpoints.
type PRPCClient struct {
	httpClient *http.Client
	maxRetries int
}

func NewPRPCClient(cfg *config.Config) *PRPCClient {
	timeout := 10 * time.Second
	if t := cfg.PRPCTimeoutDuration(); t > 0 && t <= 15*time.Second {
		timeout = t
	}

	return &PRPCClient{
		maxRetries: cfg.PRPC.MaxRetries,
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     30 * time.Second,
				DialContext: (&net.Dialer{
					Timeout:   5 * time.Second,
					KeepAlive: 30 * time.Second,
				}).DialContext,
			},
		},
	}
}

// CallPRPC posts one request to http://{nodeAddr}/rpc, retrying 5xx and 429
// answers with a doubling delay.
func (c *PRPCClient) CallPRPC(ctx context.Context, nodeAddr string, method string, params interface{}) (*models.RPCResponse, error) {
	jsonData, err := json.Marshal(models.RPCRequest{
		JSONRPC: "2.0",
		Method:  method,
		Params:  params,
		ID:      1,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("http://%s/rpc", nodeAddr)

	var resp *http.Response
	delay := 200 * time.Millisecond
	maxRetries := c.maxRetries
	if maxRetries <= 0 {
		maxRetries = 1
	}

	for i := 0; i < maxRetries; i++ {
		httpReq, reqErr := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonData))
		if reqErr != nil {
			err = fmt.Errorf("failed to create request: %w", reqErr)
			break
		}
		httpReq.Header.Set("Content-Type", "application/json")

		resp, err = c.httpClient.Do(httpReq)
		if err == nil {
			if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
				resp.Body.Close()
				err = fmt.Errorf("server error: %d", resp.StatusCode)
			} else {
				break
			}
		}

		if isNonRetryableError(err) || i == maxRetries-1 {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}

	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("http error %d from %s %s", resp.StatusCode, method, nodeAddr)
	}

	var rpcResp models.RPCResponse
	if err := json.NewDecoder(resp.Body).Decode(&rpcResp); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	if rpcResp.Error != nil {
		return &rpcResp, fmt.Errorf("rpc error %d: %s", rpcResp.Error.Code, rpcResp.Error.Message)
	}

	return &rpcResp, nil
}

// GetPodsWithStats returns every pod the seed knows about through gossip.
func (c *PRPCClient) GetPodsWithStats(ctx context.Context, nodeAddr string) (*models.PodsWithStatsResponse, error) {
	resp, err := c.CallPRPC(ctx, nodeAddr, methodPodsWithStats, nil)
	if err != nil {
		return nil, fmt.Errorf("%s failed for %s: %w", methodPodsWithStats, nodeAddr, err)
	}

	var pods models.PodsWithStatsResponse
	if err := json.Unmarshal(resp.Result, &pods); err != nil {
		return nil, fmt.Errorf("failed to unmarshal pods from %s: %w", nodeAddr, err)
	}
	return &pods, nil
}

func (c *PRPCClient) GetVersion(ctx context.Context, nodeAddr string) (*models.VersionResponse, error) {
	resp, err := c.CallPRPC(ctx, nodeAddr, "get-version", nil)
	if err != nil {
		return nil, err
	}

	var verResp models.VersionResponse
	if err := json.Unmarshal(resp.Result, &verResp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal version result: %w", err)
	}
	return &verResp, nil
}

func isNonRetryableError(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	for _, msg := range []string{
		"Parse error",
		"Invalid Request",
		"Method not found",
		"connection refused",
	} {
		if strings.Contains(errStr, msg) {
			return true
		}
	}
	return false
}

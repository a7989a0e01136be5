package models

import "encoding/json"

// JSON-RPC 2.0 Request
type RPCRequest struct {
	JSONRPC string      `json:"jsonrpc"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params,omitempty"`
	ID      int         `json:"id"`
}

// JSON-RPC 2.0 Response
type RPCResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
	ID      int             `json:"id"`
}

type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// get-pods-with-stats
type PodsWithStatsResponse struct {
	Pods       []PodWithStats `json:"pods"`
	TotalCount int            `json:"total_count"`
}

type PodWithStats struct {
	Address             string  `json:"address"`
	Pubkey              string  `json:"pubkey"`
	RpcPort             int     `json:"rpc_port"`
	IsPublic            bool    `json:"is_public"`
	Version             string  `json:"version"`
	LastSeenTimestamp   int64   `json:"last_seen_timestamp"`
	StorageCommitted    int64   `json:"storage_committed"`
	StorageUsed         int64   `json:"storage_used"`
	StorageUsagePercent float64 `json:"storage_usage_percent"`
	Uptime              int64   `json:"uptime"`
}

type VersionResponse struct {
	Version string `json:"version"`
}

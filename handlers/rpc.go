package handlers

import (
	"math/rand"
	"net"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"xandpulse/models"
)

// ProxyRPC forwards a JSON-RPC 2.0 call to a random online pNode and relays
// its answer. A second node is tried once if the first is unreachable.
func (h *Handler) ProxyRPC(c echo.Context) error {
	var req models.RPCRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.RPCError{Code: -32700, Message: "Parse error"})
	}
	if req.JSONRPC != "2.0" || req.Method == "" {
		return c.JSON(http.StatusBadRequest, models.RPCError{Code: -32600, Message: "Invalid Request"})
	}
	if h.PRPC == nil {
		return c.JSON(http.StatusServiceUnavailable, models.RPCError{Code: -32000, Message: "RPC proxy disabled"})
	}

	nodes, _, found := h.Cache.GetNodes(true)
	if !found || len(nodes) == 0 {
		return c.JSON(http.StatusServiceUnavailable, models.RPCError{Code: -32000, Message: "No nodes available"})
	}

	var candidates []string
	for _, n := range nodes {
		if n.Status == models.StatusOnline && n.Address != "" {
			candidates = append(candidates, h.rpcAddress(n.Address))
		}
	}
	if len(candidates) == 0 {
		return c.JSON(http.StatusServiceUnavailable, models.RPCError{Code: -32000, Message: "No reachable nodes"})
	}

	ctx := c.Request().Context()
	target := candidates[rand.Intn(len(candidates))]
	resp, err := h.PRPC.CallPRPC(ctx, target, req.Method, req.Params)
	if resp == nil && err != nil && len(candidates) > 1 {
		log.Warnf("⚠️  RPC proxy to %s failed: %v", target, err)
		target = candidates[rand.Intn(len(candidates))]
		resp, err = h.PRPC.CallPRPC(ctx, target, req.Method, req.Params)
	}

	// A JSON-RPC level error still carries a response worth relaying.
	if resp != nil {
		resp.ID = req.ID
		return c.JSON(http.StatusOK, resp)
	}
	log.Warnf("⚠️  RPC proxy to %s failed: %v", target, err)
	return c.JSON(http.StatusBadGateway, models.RPCError{Code: -32603, Message: "Internal proxied error"})
}

// rpcAddress swaps the gossip port of addr for the pRPC port.
func (h *Handler) rpcAddress(addr string) string {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		host = addr
	}
	if h.RPCPort <= 0 {
		return addr
	}
	return net.JoinHostPort(host, strconv.Itoa(h.RPCPort))
}

package handlers

import (
	"errors"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"xandpulse/models"
	"xandpulse/services"
)

type Handler struct {
	Cache     *services.CacheService
	Benchmark *services.BenchmarkService
	PRPC      *services.PRPCClient
	RPCPort   int
	Database  DatabaseStatus
	StartedAt time.Time
}

func NewHandler(cache *services.CacheService, benchmark *services.BenchmarkService, prpc *services.PRPCClient, rpcPort int) *Handler {
	return &Handler{
		Cache:     cache,
		Benchmark: benchmark,
		PRPC:      prpc,
		RPCPort:   rpcPort,
		StartedAt: time.Now(),
	}
}

// currentNodes prefers fresh cache entries and falls back to stale ones.
func (h *Handler) currentNodes(c echo.Context) ([]*models.NodeSnapshot, bool) {
	nodes, stale, found := h.Cache.GetNodes(false)
	if !found {
		nodes, stale, found = h.Cache.GetNodes(true)
	}
	if stale {
		c.Response().Header().Set("X-Data-Stale", "true")
	}
	return nodes, found
}

func findNode(nodes []*models.NodeSnapshot, id string) *models.NodeSnapshot {
	for _, n := range nodes {
		if n.ID == id || n.PublicKey == id || n.Address == id {
			return n
		}
	}
	return nil
}

// GetNodes godoc
// @Summary Get all nodes with pagination
// @Tags nodes
// @Param page query int false "Page number (default: 1)"
// @Param limit query int false "Items per page (default: 50, max: 500)"
// @Param status query string false "Filter by status (online, degraded, offline)"
// @Param sort query string false "Sort field (uptime, health, credits, storage)"
// @Param order query string false "Sort order (asc, desc) (default: desc)"
// @Router /api/nodes [get]
func (h *Handler) GetNodes(c echo.Context) error {
	page, _ := strconv.Atoi(c.QueryParam("page"))
	if page < 1 {
		page = 1
	}

	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	if limit < 1 {
		limit = 50
	}
	if limit > 500 {
		limit = 500
	}

	statusFilter := models.NodeStatus(c.QueryParam("status"))
	sortOrder := c.QueryParam("order")
	if sortOrder == "" {
		sortOrder = "desc"
	}

	nodes, _ := h.currentNodes(c)

	filtered := make([]*models.NodeSnapshot, 0, len(nodes))
	for _, node := range nodes {
		if statusFilter != "" && node.Status != statusFilter {
			continue
		}
		filtered = append(filtered, node)
	}

	sortNodes(filtered, c.QueryParam("sort"), sortOrder)

	total := len(filtered)
	totalPages := (total + limit - 1) / limit
	if totalPages < 1 {
		totalPages = 1
	}

	startIdx := (page - 1) * limit
	endIdx := startIdx + limit
	if startIdx >= total {
		startIdx, endIdx = 0, 0
		page = 1
	}
	if endIdx > total {
		endIdx = total
	}

	pageNodes := make([]*models.NodeSnapshot, 0)
	if startIdx < endIdx {
		pageNodes = filtered[startIdx:endIdx]
	}

	return c.JSON(http.StatusOK, NodesResponse{
		Nodes: pageNodes,
		Pagination: PaginationMeta{
			Page:       page,
			Limit:      limit,
			TotalItems: total,
			TotalPages: totalPages,
			HasNext:    page < totalPages,
			HasPrev:    page > 1,
		},
	})
}

// GetNode godoc
// @Summary Get a single node by id, pubkey or address
// @Tags nodes
// @Router /api/nodes/{id} [get]
func (h *Handler) GetNode(c echo.Context) error {
	nodes, _ := h.currentNodes(c)
	node := findNode(nodes, c.Param("id"))
	if node == nil {
		return c.JSON(http.StatusNotFound, ErrorResponse{Error: "Node not found"})
	}
	return c.JSON(http.StatusOK, node)
}

// GetBenchmark godoc
// @Summary Benchmark a node against the current network
// @Tags nodes
// @Router /api/nodes/{id}/benchmark [get]
func (h *Handler) GetBenchmark(c echo.Context) error {
	nodes, _ := h.currentNodes(c)
	result, err := h.Benchmark.BenchmarkNode(findNode(nodes, c.Param("id")), nodes)
	if errors.Is(err, services.ErrInsufficientData) {
		return c.JSON(http.StatusNotFound, ErrorResponse{Error: err.Error()})
	}
	if err != nil {
		return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
	}
	return c.JSON(http.StatusOK, result)
}

// GetSimilarNodes - GET /api/nodes/:id/similar?above=2&below=1
func (h *Handler) GetSimilarNodes(c echo.Context) error {
	nodes, _ := h.currentNodes(c)
	node := findNode(nodes, c.Param("id"))
	if node == nil {
		return c.JSON(http.StatusNotFound, ErrorResponse{Error: "Node not found"})
	}

	above := intQuery(c, "above", -1)
	below := intQuery(c, "below", -1)
	similar := h.Benchmark.FindSimilarNodes(node, nodes, above, below)

	return c.JSON(http.StatusOK, map[string]interface{}{
		"node_id": node.ID,
		"count":   len(similar),
		"similar": similar,
	})
}

// CompareNodes - GET /api/compare?a=ID&b=ID
func (h *Handler) CompareNodes(c echo.Context) error {
	a, b := c.QueryParam("a"), c.QueryParam("b")
	if a == "" || b == "" {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "query parameters a and b are required"})
	}

	nodes, _ := h.currentNodes(c)
	comparison, err := h.Benchmark.CompareNodes(findNode(nodes, a), findNode(nodes, b), nodes)
	if errors.Is(err, services.ErrInsufficientData) {
		return c.JSON(http.StatusNotFound, ErrorResponse{Error: err.Error()})
	}
	if err != nil {
		return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
	}
	return c.JSON(http.StatusOK, comparison)
}

func intQuery(c echo.Context, name string, def int) int {
	raw := c.QueryParam(name)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return v
}

func sortNodes(nodes []*models.NodeSnapshot, field, order string) {
	asc := order == "asc"

	statusWeight := func(s models.NodeStatus) int {
		switch s {
		case models.StatusOnline:
			return 3
		case models.StatusDegraded:
			return 2
		case models.StatusOffline:
			return 1
		default:
			return 0
		}
	}

	sort.SliceStable(nodes, func(i, j int) bool {
		var less bool
		switch field {
		case "uptime":
			less = nodes[i].Uptime < nodes[j].Uptime
		case "health":
			less = nodes[i].HealthScore < nodes[j].HealthScore
		case "credits":
			less = nodes[i].Credits < nodes[j].Credits
		case "storage":
			less = nodes[i].Storage.Total < nodes[j].Storage.Total
		default:
			if statusWeight(nodes[i].Status) != statusWeight(nodes[j].Status) {
				less = statusWeight(nodes[i].Status) < statusWeight(nodes[j].Status)
			} else {
				less = nodes[i].Uptime < nodes[j].Uptime
			}
		}
		if asc {
			return less
		}
		return !less
	})
}

// NodesResponse represents the paginated nodes response
type NodesResponse struct {
	Nodes      []*models.NodeSnapshot `json:"nodes"`
	Pagination PaginationMeta         `json:"pagination"`
}

type PaginationMeta struct {
	Page       int  `json:"page"`
	Limit      int  `json:"limit"`
	TotalItems int  `json:"total_items"`
	TotalPages int  `json:"total_pages"`
	HasNext    bool `json:"has_next"`
	HasPrev    bool `json:"has_prev"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error string `json:"error"`
}

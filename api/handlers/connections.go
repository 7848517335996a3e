package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/wsbridge/backend/internal/model"
	"github.com/wsbridge/backend/internal/repository"
)

// ErrorResponse is the JSON envelope for API errors.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail carries a machine-readable code and a human-readable message.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// sendError sends an error response with the appropriate status code.
func sendError(c *gin.Context, statusCode int, code, message string) {
	c.JSON(statusCode, ErrorResponse{
		Error: ErrorDetail{
			Code:    code,
			Message: message,
		},
	})
}

// ConnectionsHandler serves the connection audit trail.
type ConnectionsHandler struct {
	repo *repository.ConnectionRepository
}

// NewConnectionsHandler creates a new ConnectionsHandler.
func NewConnectionsHandler(repo *repository.ConnectionRepository) *ConnectionsHandler {
	return &ConnectionsHandler{repo: repo}
}

// List handles GET /api/connections - lists recent connection records.
func (h *ConnectionsHandler) List(c *gin.Context) {
	limit := 50
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > 500 {
			sendError(c, http.StatusBadRequest, "VALIDATION_ERROR", "limit must be an integer between 1 and 500")
			return
		}
		limit = n
	}

	records, err := h.repo.ListRecent(c.Request.Context(), limit)
	if err != nil {
		sendError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list connections: "+err.Error())
		return
	}

	c.JSON(http.StatusOK, gin.H{"connections": records})
}

// Get handles GET /api/connections/:id - fetches one connection record.
func (h *ConnectionsHandler) Get(c *gin.Context) {
	id := c.Param("id")

	rec, err := h.repo.GetByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, model.ErrRecordNotFound) {
			sendError(c, http.StatusNotFound, "NOT_FOUND", "Connection "+id+" not found")
			return
		}
		sendError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to get connection: "+err.Error())
		return
	}

	c.JSON(http.StatusOK, rec)
}

// RegisterRoutes registers the audit trail routes on a Gin router group.
func (h *ConnectionsHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/connections", h.List)
	rg.GET("/connections/:id", h.Get)
}

package http

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/graph-gophers/graphql-go"
	"github.com/sirupsen/logrus"

	"library-api/internal/auth"
)

// Handler wires HTTP routes to the GraphQL schema.
type Handler struct {
	schema *graphql.Schema
	gate   *auth.Gate
	logger *logrus.Logger
	ws     *subscriptionServer
}

func NewHandler(schema *graphql.Schema, gate *auth.Gate, logger *logrus.Logger) *Handler {
	if logger == nil {
		logger = logrus.New()
	}
	return &Handler{
		schema: schema,
		gate:   gate,
		logger: logger,
		ws:     newSubscriptionServer(schema, gate, logger),
	}
}

func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.Use(requestID(), requestLogger(h.logger), corsMiddleware())

	router.GET("/health", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, gin.H{"ok": "ok"})
	})

	gql := router.Group("/graphql", h.authMiddleware())
	{
		gql.POST("", h.query)
		gql.GET("", h.query)
		gql.GET("/ws", h.ws.serve)
	}
}

type graphqlRequest struct {
	Query         string                 `json:"query" binding:"required"`
	OperationName string                 `json:"operationName"`
	Variables     map[string]interface{} `json:"variables"`
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

func (h *Handler) query(c *gin.Context) {
	req, err := bindGraphQLRequest(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse(err.Error(), nil))
		return
	}

	resp := h.schema.Exec(c.Request.Context(), req.Query, req.OperationName, req.Variables)
	if len(resp.Errors) > 0 {
		h.logger.WithFields(logrus.Fields{
			"request_id": c.GetString(requestIDKey),
			"operation":  req.OperationName,
			"errors":     len(resp.Errors),
		}).Debug("graphql response carries errors")
	}
	c.JSON(http.StatusOK, resp)
}

func bindGraphQLRequest(c *gin.Context) (graphqlRequest, error) {
	var req graphqlRequest
	if c.Request.Method == http.MethodGet {
		req.Query = c.Query("query")
		req.OperationName = c.Query("operationName")
		if raw := strings.TrimSpace(c.Query("variables")); raw != "" {
			if err := json.Unmarshal([]byte(raw), &req.Variables); err != nil {
				return req, err
			}
		}
		if req.Query == "" {
			return req, errMissingQuery
		}
		return req, nil
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		return req, err
	}
	return req, nil
}

// errorResponse renders a GraphQL error envelope outside schema execution.
func errorResponse(message string, extensions map[string]interface{}) gin.H {
	entry := gin.H{"message": message}
	if len(extensions) > 0 {
		entry["extensions"] = extensions
	}
	return gin.H{"errors": []gin.H{entry}}
}

package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"ofs-bridge/internal/config"
	"ofs-bridge/internal/model"
	"ofs-bridge/internal/transport/ws"
)

// PayloadTooLargeError rejects a body above the configured maximum before
// any connection to the remote service is made.
type PayloadTooLargeError struct {
	Limit int64
}

func (e *PayloadTooLargeError) Error() string {
	return fmt.Sprintf("request body exceeds %d bytes", e.Limit)
}

// Exchanger relays one command document.
type Exchanger interface {
	Exchange(ctx context.Context, doc []byte) ([]byte, int, error)
}

// History lists journaled exchanges.
type History interface {
	RecentExchanges(ctx context.Context, limit int) ([]model.Exchange, error)
}

type Handler struct {
	Bridge  Exchanger
	Journal History
	Cfg     *config.RelayConfig
}

// NewHandler wires the relay routes. journal may be nil.
func NewHandler(b Exchanger, journal History, cfg *config.RelayConfig) *Handler {
	return &Handler{Bridge: b, Journal: journal, Cfg: cfg}
}

// CORSMiddleware lets the browser console call the relay from any configured
// origin and answers preflight requests.
func (h *Handler) CORSMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if allowed := h.allowedOrigin(c.GetHeader("Origin")); allowed != "" {
			c.Header("Access-Control-Allow-Origin", allowed)
			if allowed != "*" {
				c.Header("Vary", "Origin")
			}
		}
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

func (h *Handler) allowedOrigin(origin string) string {
	for _, o := range h.Cfg.AllowOrigins {
		if o == "*" {
			return "*"
		}
		if origin != "" && o == origin {
			return origin
		}
	}
	return ""
}

func (h *Handler) SetupRoutes(r *gin.Engine) {
	r.Use(h.CORSMiddleware())

	r.POST(h.Cfg.Route, h.HandleSend)
	r.GET("/healthz", h.HandleHealth)
	r.GET("/exchanges", h.HandleExchanges)

	wsServer := ws.NewServer(h.Bridge, h.Cfg.MaxPayload)
	r.GET("/ws", gin.WrapH(wsServer))

	if h.Cfg.WebRoot != "" {
		r.Static("/ui", h.Cfg.WebRoot)
	}
}

// HandleSend relays the request body to the remote service and writes back
// exactly the bytes it answered with.
func (h *Handler) HandleSend(c *gin.Context) {
	body, err := h.readBody(c)
	if err != nil {
		var tooLarge *PayloadTooLargeError
		if errors.As(err, &tooLarge) {
			c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, gin.H{"error": err.Error()})
			return
		}
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !json.Valid(body) {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "request body is not valid JSON"})
		return
	}

	resp, status, err := h.Bridge.Exchange(c.Request.Context(), body)
	if err != nil {
		log.Printf("[relay] %s: %v", h.Cfg.RemoteAddr, err)
		c.AbortWithStatusJSON(status, gin.H{"error": err.Error()})
		return
	}
	c.Data(http.StatusOK, contentType(resp), resp)
}

func (h *Handler) readBody(c *gin.Context) ([]byte, error) {
	limit := h.Cfg.MaxPayload
	if c.Request.ContentLength > limit {
		return nil, &PayloadTooLargeError{Limit: limit}
	}
	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, limit))
	if err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			return nil, &PayloadTooLargeError{Limit: limit}
		}
		return nil, fmt.Errorf("reading request body: %w", err)
	}
	return body, nil
}

func contentType(b []byte) string {
	if json.Valid(b) {
		return "application/json; charset=utf-8"
	}
	return "text/plain; charset=utf-8"
}

func (h *Handler) HandleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "remote": h.Cfg.RemoteAddr})
}

// HandleExchanges lists journaled exchanges, most recent first.
func (h *Handler) HandleExchanges(c *gin.Context) {
	if h.Journal == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "journal disabled"})
		return
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil || limit < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a non-negative integer"})
		return
	}
	rows, err := h.Journal.RecentExchanges(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if rows == nil {
		rows = []model.Exchange{}
	}
	c.JSON(http.StatusOK, gin.H{"exchanges": rows})
}

// NewEngine builds the gin engine with logging, recovery and relay routes.
func NewEngine(h *Handler, mode string) *gin.Engine {
	if mode != "" {
		gin.SetMode(mode)
	}
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())
	h.SetupRoutes(r)
	return r
}

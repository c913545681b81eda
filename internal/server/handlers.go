package server

import (
	"embed"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/DreamCats/equipid/internal/imaging"
	"github.com/DreamCats/equipid/internal/query"
)

//go:embed static/index.html
var staticFS embed.FS

type identifyRequest struct {
	Image string `json:"image"`
}

func (s *Server) index(c *gin.Context) {
	page, err := staticFS.ReadFile("static/index.html")
	if err != nil {
		c.String(http.StatusInternalServerError, "page unavailable")
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", page)
}

func (s *Server) healthz(c *gin.Context) {
	if err := s.identify.Ready(); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleIdentify(c *gin.Context) {
	if err := s.identify.Ready(); err != nil {
		s.logger.Error("identify rejected", "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Server is not ready. Embedding provider or catalog not loaded."})
		return
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.maxBody)
	var req identifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "Request body too large."})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON body."})
		return
	}
	if req.Image == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No image data provided."})
		return
	}

	data, err := imaging.ParseDataURI(req.Image)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Could not process image: " + err.Error()})
		return
	}

	matches, err := s.identify.Identify(c.Request.Context(), data)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, matches)
	case errors.Is(err, query.ErrInvalidImage):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Could not process image: " + err.Error()})
	default:
		s.logger.Error("identify failed", "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

func (s *Server) searchItems(c *gin.Context) {
	q := c.Query("q")
	if q == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Query parameter q is required."})
		return
	}
	limit := 10
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer."})
			return
		}
		limit = n
	}

	hits, err := s.items.Search(q, limit)
	if err != nil {
		s.logger.Error("item search failed", "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, hits)
}

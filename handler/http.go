package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"session-capture/dto"
	"session-capture/service"
	"session-capture/storage"
)

// HTTP wires the pipeline services to the gin router.
type HTTP struct {
	Ingest           service.IngestService
	Reassembly       service.ReassemblyService
	Retrieval        service.RetrievalService
	ReassembleSecret string
}

func (h *HTTP) Register(r *gin.Engine) {
	api := r.Group("/api/v1")
	api.POST("/chunks", h.uploadChunk)
	api.POST("/reassemble", h.reassemble)
	api.GET("/sessions", h.listSessions)
	api.GET("/session", h.lookupSession)
	api.GET("/download", h.download)
}

func (h *HTTP) uploadChunk(c *gin.Context) {
	var req dto.UploadChunkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	resp, err := h.Ingest.StoreChunk(c.Request.Context(), req)
	if err != nil {
		if errors.Is(err, service.ErrValidation) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store chunk"})
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *HTTP) reassemble(c *gin.Context) {
	if h.ReassembleSecret == "" || c.GetHeader("X-Reassemble-Secret") != h.ReassembleSecret {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid reassemble secret"})
		return
	}

	summary, err := h.Reassembly.Run(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "reassembly sweep failed"})
		return
	}
	c.JSON(http.StatusOK, summary)
}

func (h *HTTP) listSessions(c *gin.Context) {
	recordingId := c.Query("recordingId")
	if recordingId == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "recordingId is required"})
		return
	}

	sessions, err := h.Retrieval.Sessions(c.Request.Context(), recordingId)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list sessions"})
		return
	}
	c.JSON(http.StatusOK, dto.SessionListResponse{Type: "sessions", Sessions: sessions})
}

func (h *HTTP) lookupSession(c *gin.Context) {
	recordingId := c.Query("recordingId")
	sessionId := c.Query("sessionId")
	if recordingId == "" || sessionId == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "recordingId and sessionId are required"})
		return
	}

	resp, err := h.Retrieval.Session(c.Request.Context(), recordingId, sessionId)
	if err != nil {
		if errors.Is(err, service.ErrSessionNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to look up session"})
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *HTTP) download(c *gin.Context) {
	key := c.Query("key")
	if key == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "key is required"})
		return
	}

	data, err := h.Retrieval.Download(c.Request.Context(), key)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrValidation):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		case errors.Is(err, storage.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "object not found"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read object"})
		}
		return
	}
	c.Data(http.StatusOK, "application/json", data)
}

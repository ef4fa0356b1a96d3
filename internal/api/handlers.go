// Package api wires up the Gin HTTP router with all handler functions for
// a replica: the document surface (create/read/insert/update/delete), the
// broadcast ingress peers deliver to, and cluster membership management.
package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/hayley-d/collaborative-coding-backend/internal/broadcast"
	"github.com/hayley-d/collaborative-coding-backend/internal/cluster"
	"github.com/hayley-d/collaborative-coding-backend/internal/controller"
	"github.com/hayley-d/collaborative-coding-backend/internal/s4vector"
)

// Handler holds all dependencies injected from main.
type Handler struct {
	controller *controller.Controller
	membership *cluster.Membership
	selfID     string
}

// NewHandler creates a Handler.
func NewHandler(c *controller.Controller, m *cluster.Membership, selfID string) *Handler {
	return &Handler{controller: c, membership: m, selfID: selfID}
}

// Register mounts all routes on r.
func (h *Handler) Register(r *gin.Engine) {
	docs := r.Group("/documents")
	docs.POST("", h.CreateDocument)
	docs.GET("/:id", h.ReadDocument)
	docs.POST("/:id/insert", h.Insert)
	docs.POST("/:id/update", h.Update)
	docs.POST("/:id/delete", h.Delete)

	// Broadcast ingress — delivered by peers, never called by clients.
	r.POST("/broadcast", h.Broadcast)

	clusterGroup := r.Group("/cluster")
	clusterGroup.POST("/join", h.Join)
	clusterGroup.POST("/leave", h.Leave)
	clusterGroup.GET("/nodes", h.ListNodes)
}

// ─── Document handlers ───────────────────────────────────────────────────────

// CreateDocument handles POST /documents
func (h *Handler) CreateDocument(c *gin.Context) {
	id := uuid.NewString()
	ssn := h.controller.CreateDocument(id)
	c.JSON(http.StatusCreated, gin.H{"document_id": id, "ssn": ssn})
}

// ReadDocument handles GET /documents/:id
func (h *Handler) ReadDocument(c *gin.Context) {
	docID := c.Param("id")

	values, err := h.controller.Read(docID)
	if err == controller.ErrDocumentNotFound {
		c.JSON(http.StatusNotFound, gin.H{"error": "document not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	out := make([]string, len(values))
	for i, v := range values {
		out[i] = string(v)
	}
	c.JSON(http.StatusOK, gin.H{"document_id": docID, "values": out})
}

type insertBody struct {
	Value   string             `json:"value" binding:"required"`
	LeftID  *s4vector.S4Vector `json:"left_id"`
	RightID *s4vector.S4Vector `json:"right_id"`
}

// Insert handles POST /documents/:id/insert
func (h *Handler) Insert(c *gin.Context) {
	docID := c.Param("id")

	var body insertBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	id, err := h.controller.Insert(c.Request.Context(), docID, []byte(body.Value), body.LeftID, body.RightID)
	h.respondOperation(c, docID, id, err)
}

type updateBody struct {
	ID    s4vector.S4Vector `json:"id" binding:"required"`
	Value string            `json:"value" binding:"required"`
}

// Update handles POST /documents/:id/update
func (h *Handler) Update(c *gin.Context) {
	docID := c.Param("id")

	var body updateBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	id, err := h.controller.Update(c.Request.Context(), docID, body.ID, []byte(body.Value))
	h.respondOperation(c, docID, id, err)
}

type deleteBody struct {
	ID s4vector.S4Vector `json:"id" binding:"required"`
}

// Delete handles POST /documents/:id/delete
func (h *Handler) Delete(c *gin.Context) {
	docID := c.Param("id")

	var body deleteBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	id, err := h.controller.Delete(c.Request.Context(), docID, body.ID)
	h.respondOperation(c, docID, id, err)
}

func (h *Handler) respondOperation(c *gin.Context, docID string, id s4vector.S4Vector, err error) {
	if err == controller.ErrPending {
		c.JSON(http.StatusAccepted, gin.H{"id": id, "pending": true})
		return
	}
	if err == controller.ErrDocumentNotFound {
		c.JSON(http.StatusNotFound, gin.H{"error": "document not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id, "pending": false})
}

// ─── Broadcast ingress ────────────────────────────────────────────────────────

// Broadcast handles POST /broadcast — delivery of a peer's accepted
// operation. Applying is idempotent, so redelivery from an at-least-once
// transport is safe.
func (h *Handler) Broadcast(c *gin.Context) {
	var env broadcast.Envelope
	if err := c.ShouldBindJSON(&env); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.controller.ApplyRemote(env.Record.DocumentID, env); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}

// ─── Cluster management handlers ─────────────────────────────────────────────

// Join handles POST /cluster/join
// Body: {"id": "<nodeID>", "address": "<host:port>"}
func (h *Handler) Join(c *gin.Context) {
	var node cluster.Node
	if err := c.ShouldBindJSON(&node); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.membership.Join(node); err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"joined": node.ID})
}

// Leave handles POST /cluster/leave
// Body: {"id": "<nodeID>"}
func (h *Handler) Leave(c *gin.Context) {
	var body struct {
		ID string `json:"id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.membership.Leave(body.ID); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"left": body.ID})
}

// ListNodes handles GET /cluster/nodes
func (h *Handler) ListNodes(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"nodes": h.membership.All()})
}

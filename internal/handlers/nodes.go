package handlers

import (
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"

	"github.com/daygraph/daygraph/internal/middleware"
	"github.com/daygraph/daygraph/internal/models"
	"github.com/daygraph/daygraph/internal/session"
	"github.com/daygraph/daygraph/internal/store"
	"github.com/daygraph/daygraph/internal/validation"
)

const (
	// MaxTitleLength is the maximum length for node titles
	MaxTitleLength = 500
	// MaxDescriptionLength is the maximum length for node descriptions
	MaxDescriptionLength = 10000
	// MaxUpdateTextLength is the maximum length for node update text
	MaxUpdateTextLength = 10000
)

// NodeHandler handles node graph requests
type NodeHandler struct {
	sessions *session.Manager
}

// NewNodeHandler creates a new node handler
func NewNodeHandler(sessions *session.Manager) *NodeHandler {
	return &NodeHandler{sessions: sessions}
}

// RegisterRoutes registers node routes on the given router.
// The router should already have the /nodes prefix.
func (h *NodeHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("", h.ListNodes).Methods("GET")
	r.HandleFunc("", h.CreateNode).Methods("POST")
	r.HandleFunc("/{id}", h.GetNode).Methods("GET")
	r.HandleFunc("/{id}", h.UpdateNode).Methods("PATCH")
	r.HandleFunc("/{id}", h.DeleteNode).Methods("DELETE")
	r.HandleFunc("/{id}/complete", h.CompleteNode).Methods("POST")
	r.HandleFunc("/{id}/updates", h.AddUpdate).Methods("POST")
	r.HandleFunc("/{id}/updates/{updateID}", h.DeleteUpdate).Methods("DELETE")
	r.HandleFunc("/{id}/link", h.LinkNode).Methods("POST")
	r.HandleFunc("/{id}/unlink", h.UnlinkNode).Methods("POST")
	r.HandleFunc("/{id}/ancestors", h.Ancestors).Methods("GET")
	r.HandleFunc("/{id}/descendants", h.Descendants).Methods("GET")
	r.HandleFunc("/{id}/breadcrumb", h.Breadcrumb).Methods("GET")
	r.HandleFunc("/{id}/repair", h.Repair).Methods("POST")
}

// sessionFor resolves the caller's session from the request identity.
func sessionFor(w http.ResponseWriter, r *http.Request, sessions *session.Manager) (*session.Session, bool) {
	identity := middleware.IdentityFromContext(r)
	if identity == nil {
		respondJSONError(w, http.StatusUnauthorized, "Unauthorized", "Identity not found in context")
		return nil, false
	}
	sess, err := sessions.Session(r.Context(), identity.OwnerID)
	if err != nil {
		respondStoreError(w, err)
		return nil, false
	}
	return sess, true
}

// validateStruct runs the shared validator, answering the request on failure.
func validateStruct(w http.ResponseWriter, req any) bool {
	if err := validation.Validate.Struct(req); err != nil {
		if validationErrors, ok := err.(validator.ValidationErrors); ok {
			for _, fieldError := range validationErrors {
				respondJSONError(w, http.StatusBadRequest, "Bad Request", fmt.Sprintf("Validation failed: %s", fieldError.Error()))
				return false
			}
		}
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "Validation failed")
		return false
	}
	return true
}

// CreateNodeRequest represents a create node request
type CreateNodeRequest struct {
	Title       string   `json:"title" validate:"omitempty,max=500"`
	Description string   `json:"description" validate:"omitempty,max=10000"`
	Type        string   `json:"node_type" validate:"omitempty,node_type"`
	Tags        []string `json:"tags"`

	Urgency    *int    `json:"urgency" validate:"omitempty,min=1,max=10"`
	Importance *int    `json:"importance" validate:"omitempty,min=1,max=10"`
	DueDate    *string `json:"due_date"`

	ParentID *string `json:"parent_id"`

	TaskType   string             `json:"task_type"`
	Recurrence *models.Recurrence `json:"recurrence"`
}

// UpdateNodeRequest represents a partial node update
type UpdateNodeRequest struct {
	Title       *string   `json:"title" validate:"omitempty,max=500"`
	Description *string   `json:"description" validate:"omitempty,max=10000"`
	Type        *string   `json:"node_type" validate:"omitempty,node_type"`
	Tags        *[]string `json:"tags"`

	Urgency    *int    `json:"urgency" validate:"omitempty,min=1,max=10"`
	Importance *int    `json:"importance" validate:"omitempty,min=1,max=10"`
	DueDate    *string `json:"due_date"`

	TaskType   *string            `json:"task_type"`
	Recurrence *models.Recurrence `json:"recurrence"`

	ClearDueDate    bool `json:"clear_due_date"`
	ClearRecurrence bool `json:"clear_recurrence"`
}

// AddUpdateRequest represents a request to append a node update
type AddUpdateRequest struct {
	Kind string `json:"kind" validate:"omitempty,update_kind"`
	Text string `json:"text" validate:"required,min=1,max=10000"`
}

// LinkRequest represents a link or unlink request
type LinkRequest struct {
	ParentID string `json:"parent_id" validate:"required"`
}

// ListNodes lists all nodes for the authenticated owner
func (h *NodeHandler) ListNodes(w http.ResponseWriter, r *http.Request) {
	sess, ok := sessionFor(w, r, h.sessions)
	if !ok {
		return
	}

	nodes := sess.Nodes().Nodes()

	if t := r.URL.Query().Get("node_type"); t != "" {
		if !validation.ValidNodeType(t) {
			respondJSONError(w, http.StatusBadRequest, "Bad Request", "Invalid node_type filter")
			return
		}
		filtered := make([]*models.Node, 0, len(nodes))
		for _, n := range nodes {
			if n.Type == models.NodeType(t) {
				filtered = append(filtered, n)
			}
		}
		nodes = filtered
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"nodes": nodes,
		"total": len(nodes),
	})
}

// CreateNode creates a new node, optionally linked under a parent
func (h *NodeHandler) CreateNode(w http.ResponseWriter, r *http.Request) {
	sess, ok := sessionFor(w, r, h.sessions)
	if !ok {
		return
	}

	var req CreateNodeRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if !validateStruct(w, &req) {
		return
	}

	draft := store.NodeDraft{
		Title:       req.Title,
		Description: req.Description,
		Type:        models.NodeType(req.Type),
		Tags:        req.Tags,
		Urgency:     req.Urgency,
		Importance:  req.Importance,
		DueDate:     req.DueDate,
		TaskType:    models.TaskType(req.TaskType),
		Recurrence:  req.Recurrence,
	}

	ctx := r.Context()
	id, err := sess.Nodes().Create(ctx, draft)
	if err != nil {
		respondStoreError(w, err)
		return
	}

	if req.ParentID != nil && *req.ParentID != "" {
		if err := sess.Nodes().LinkAsChild(ctx, *req.ParentID, id); err != nil {
			respondStoreError(w, err)
			return
		}
	}

	respondJSON(w, http.StatusCreated, sess.Nodes().Get(id))
}

// GetNode retrieves a node by ID
func (h *NodeHandler) GetNode(w http.ResponseWriter, r *http.Request) {
	sess, ok := sessionFor(w, r, h.sessions)
	if !ok {
		return
	}

	node := sess.Nodes().Get(mux.Vars(r)["id"])
	if node == nil {
		respondJSONError(w, http.StatusNotFound, "Not Found", "Node not found")
		return
	}

	respondJSON(w, http.StatusOK, node)
}

// UpdateNode applies a partial update to a node
func (h *NodeHandler) UpdateNode(w http.ResponseWriter, r *http.Request) {
	sess, ok := sessionFor(w, r, h.sessions)
	if !ok {
		return
	}

	var req UpdateNodeRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if !validateStruct(w, &req) {
		return
	}

	patch := models.NodePatch{
		Title:           req.Title,
		Description:     req.Description,
		Tags:            req.Tags,
		Urgency:         req.Urgency,
		Importance:      req.Importance,
		DueDate:         req.DueDate,
		Recurrence:      req.Recurrence,
		ClearDueDate:    req.ClearDueDate,
		ClearRecurrence: req.ClearRecurrence,
	}
	if req.Type != nil {
		t := models.NodeType(*req.Type)
		patch.Type = &t
	}
	if req.TaskType != nil {
		tt := models.TaskType(*req.TaskType)
		patch.TaskType = &tt
	}

	id := mux.Vars(r)["id"]
	if err := sess.Nodes().Update(r.Context(), id, patch); err != nil {
		respondStoreError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, sess.Nodes().Get(id))
}

// DeleteNode deletes a node and detaches its relationships
func (h *NodeHandler) DeleteNode(w http.ResponseWriter, r *http.Request) {
	sess, ok := sessionFor(w, r, h.sessions)
	if !ok {
		return
	}

	if err := sess.Nodes().Delete(r.Context(), mux.Vars(r)["id"]); err != nil {
		respondStoreError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{"deleted": true})
}

// CompleteNode marks a node completed
func (h *NodeHandler) CompleteNode(w http.ResponseWriter, r *http.Request) {
	sess, ok := sessionFor(w, r, h.sessions)
	if !ok {
		return
	}

	id := mux.Vars(r)["id"]
	if err := sess.Nodes().Complete(r.Context(), id); err != nil {
		respondStoreError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, sess.Nodes().Get(id))
}

// AddUpdate appends an annotation to a node
func (h *NodeHandler) AddUpdate(w http.ResponseWriter, r *http.Request) {
	sess, ok := sessionFor(w, r, h.sessions)
	if !ok {
		return
	}

	var req AddUpdateRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if !validateStruct(w, &req) {
		return
	}

	kind := models.UpdateKind(req.Kind)
	if kind == "" {
		kind = models.UpdateKindNote
	}

	identity := middleware.IdentityFromContext(r)
	author := ""
	if identity != nil {
		author = identity.Name
	}

	id := mux.Vars(r)["id"]
	updateID, err := sess.Nodes().AddUpdate(r.Context(), id, kind, req.Text, author)
	if err != nil {
		respondStoreError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, map[string]any{"update_id": updateID})
}

// DeleteUpdate removes an annotation from a node
func (h *NodeHandler) DeleteUpdate(w http.ResponseWriter, r *http.Request) {
	sess, ok := sessionFor(w, r, h.sessions)
	if !ok {
		return
	}

	vars := mux.Vars(r)
	if err := sess.Nodes().DeleteUpdate(r.Context(), vars["id"], vars["updateID"]); err != nil {
		respondStoreError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{"deleted": true})
}

// LinkNode links the node under the given parent
func (h *NodeHandler) LinkNode(w http.ResponseWriter, r *http.Request) {
	sess, ok := sessionFor(w, r, h.sessions)
	if !ok {
		return
	}

	var req LinkRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if !validateStruct(w, &req) {
		return
	}

	childID := mux.Vars(r)["id"]
	if err := sess.Nodes().LinkAsChild(r.Context(), req.ParentID, childID); err != nil {
		respondStoreError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, sess.Nodes().Get(childID))
}

// UnlinkNode removes the relationship between the node and the given parent
func (h *NodeHandler) UnlinkNode(w http.ResponseWriter, r *http.Request) {
	sess, ok := sessionFor(w, r, h.sessions)
	if !ok {
		return
	}

	var req LinkRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if !validateStruct(w, &req) {
		return
	}

	childID := mux.Vars(r)["id"]
	if err := sess.Nodes().UnlinkNodes(r.Context(), req.ParentID, childID); err != nil {
		respondStoreError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, sess.Nodes().Get(childID))
}

// Ancestors returns the chain of parents above the node
func (h *NodeHandler) Ancestors(w http.ResponseWriter, r *http.Request) {
	sess, ok := sessionFor(w, r, h.sessions)
	if !ok {
		return
	}

	id := mux.Vars(r)["id"]
	if sess.Nodes().Get(id) == nil {
		respondJSONError(w, http.StatusNotFound, "Not Found", "Node not found")
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{"ancestors": sess.Nodes().Ancestors(id)})
}

// Descendants returns the subtree below the node
func (h *NodeHandler) Descendants(w http.ResponseWriter, r *http.Request) {
	sess, ok := sessionFor(w, r, h.sessions)
	if !ok {
		return
	}

	id := mux.Vars(r)["id"]
	if sess.Nodes().Get(id) == nil {
		respondJSONError(w, http.StatusNotFound, "Not Found", "Node not found")
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{"descendants": sess.Nodes().Descendants(id)})
}

// Breadcrumb returns the root-first path down to the node
func (h *NodeHandler) Breadcrumb(w http.ResponseWriter, r *http.Request) {
	sess, ok := sessionFor(w, r, h.sessions)
	if !ok {
		return
	}

	id := mux.Vars(r)["id"]
	if sess.Nodes().Get(id) == nil {
		respondJSONError(w, http.StatusNotFound, "Not Found", "Node not found")
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{"breadcrumb": sess.Nodes().Breadcrumb(id)})
}

// Repair reconciles one-sided relationship references on a node
func (h *NodeHandler) Repair(w http.ResponseWriter, r *http.Request) {
	sess, ok := sessionFor(w, r, h.sessions)
	if !ok {
		return
	}

	repaired, err := sess.Nodes().RepairConsistency(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		respondStoreError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{"repaired": repaired})
}

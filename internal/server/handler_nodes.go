package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/me/quarry/pkg/model"
)

func (s *Server) handleGetTree(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	respondOK(w, reqID, s.tree.Deflate())
}

func (s *Server) handleCreateNode(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())

	// Pre-seeding the priority lets an absent field default to 1 while
	// an explicit "priority": 0 survives the decode.
	req := model.CreateNodeRequest{Config: model.SourceConfig{Priority: model.DefaultPriority}}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, reqID, http.StatusBadRequest, model.NewValidationError("invalid JSON body"))
		return
	}

	parentID, ok := parseOptionalID(req.ParentID)
	if !ok {
		respondError(w, reqID, http.StatusBadRequest, model.NewValidationError("invalid parent_id"))
		return
	}

	node, err := s.tree.Attach(parentID, req.Kind, req.Config)
	if err != nil {
		s.respondTreeError(w, reqID, err)
		return
	}
	s.persistTree(r)
	respondCreated(w, reqID, node.Deflate())
}

func (s *Server) handleGetNode(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, reqID, http.StatusBadRequest, model.NewValidationError("invalid node id"))
		return
	}
	node, ok := s.tree.Get(id)
	if !ok {
		respondError(w, reqID, http.StatusNotFound, model.NewNotFoundError("Node", id.String()))
		return
	}
	respondOK(w, reqID, node.Deflate())
}

func (s *Server) handleUpdateNode(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, reqID, http.StatusBadRequest, model.NewValidationError("invalid node id"))
		return
	}

	cfg := model.SourceConfig{Priority: model.DefaultPriority}
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		respondError(w, reqID, http.StatusBadRequest, model.NewValidationError("invalid JSON body"))
		return
	}

	if err := s.tree.SetConfig(id, cfg); err != nil {
		s.respondTreeError(w, reqID, err)
		return
	}
	s.persistTree(r)
	node, _ := s.tree.Get(id)
	respondOK(w, reqID, node.Deflate())
}

func (s *Server) handleMoveNode(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, reqID, http.StatusBadRequest, model.NewValidationError("invalid node id"))
		return
	}

	var req model.MoveNodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, reqID, http.StatusBadRequest, model.NewValidationError("invalid JSON body"))
		return
	}
	parentID, ok := parseOptionalID(req.ParentID)
	if !ok {
		respondError(w, reqID, http.StatusBadRequest, model.NewValidationError("invalid parent_id"))
		return
	}

	if err := s.tree.Move(id, parentID); err != nil {
		s.respondTreeError(w, reqID, err)
		return
	}
	s.persistTree(r)
	respondOK(w, reqID, s.tree.Deflate())
}

func (s *Server) handleDeleteNode(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, reqID, http.StatusBadRequest, model.NewValidationError("invalid node id"))
		return
	}

	if err := s.tree.Detach(id); err != nil {
		s.respondTreeError(w, reqID, err)
		return
	}
	s.persistTree(r)
	respondOK(w, reqID, map[string]string{"deleted": id.String()})
}

// respondTreeError maps tree and validation errors onto HTTP statuses:
// cycles are conflicts, unknown nodes are 404s, bad configs are 400s.
func (s *Server) respondTreeError(w http.ResponseWriter, reqID string, err error) {
	var cycleErr *model.CycleError
	if errors.As(err, &cycleErr) {
		respondError(w, reqID, http.StatusConflict, model.NewConflictError(cycleErr.Error()))
		return
	}
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		status := http.StatusBadRequest
		switch apiErr.Code {
		case model.ErrNotFound:
			status = http.StatusNotFound
		case model.ErrConflict:
			status = http.StatusConflict
		case model.ErrInternal:
			status = http.StatusInternalServerError
		}
		respondError(w, reqID, status, apiErr)
		return
	}
	respondError(w, reqID, http.StatusBadRequest, model.NewValidationError(err.Error()))
}

// parseOptionalID parses a node ID, treating "" as the zero ID (root).
func parseOptionalID(s string) (uuid.UUID, bool) {
	if s == "" {
		return uuid.Nil, true
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}

package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/sanonone/kektorgraph/pkg/core"
	"github.com/sanonone/kektorgraph/pkg/engine"
	"github.com/sanonone/kektorgraph/pkg/graphvalue"
	"github.com/sanonone/kektorgraph/pkg/kgerr"
)

// maxBodyBytes caps request bodies.
const maxBodyBytes = 8 << 20

// registerHTTPHandlers sets up the routes of the REST API.
func (s *Server) registerHTTPHandlers(mux *http.ServeMux) {
	mux.HandleFunc("GET /stats", s.handleStats)

	// --- Schema and graph ---
	mux.HandleFunc("GET /schema", s.handleSchema)
	mux.HandleFunc("POST /schema/types", s.handleDefineType)
	mux.HandleFunc("POST /graph/entities", s.handleUpsertEntity)
	mux.HandleFunc("GET /graph/entities/{id}", s.handleGetEntity)
	mux.HandleFunc("DELETE /graph/entities/{id}", s.handleDeleteEntity)
	mux.HandleFunc("POST /graph/relationships", s.handleLink)
	mux.HandleFunc("DELETE /graph/relationships/{id}", s.handleUnlink)

	// --- Cursors ---
	mux.HandleFunc("POST /query", s.handleQuery)
	mux.HandleFunc("POST /search", s.handleSearch)
	mux.HandleFunc("POST /cursors/{id}/next", s.handleCursorNext)
	mux.HandleFunc("DELETE /cursors/{id}", s.handleCursorClose)

	// --- Analytics ---
	mux.HandleFunc("POST /analytics/centrality", s.handleCentrality)
	mux.HandleFunc("POST /analytics/paths", s.handlePaths)
	mux.HandleFunc("GET /tasks/{id}", s.handleGetTask)
	mux.HandleFunc("GET /tasks/{id}/result", s.handleTaskResult)

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		s.writeHTTPError(w, http.StatusNotFound, kgerr.CodeInvalidState, "endpoint not found", nil)
	})
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	s.writeHTTPResponse(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	entities, relationships := s.Engine.Graph.Stats()
	s.writeHTTPResponse(w, http.StatusOK, statsResponse{
		Entities:      entities,
		Relationships: relationships,
		OpenCursors:   s.Engine.OpenSessions(),
	})
}

// --- Schema and graph ---

func (s *Server) handleSchema(w http.ResponseWriter, r *http.Request) {
	s.writeHTTPResponse(w, http.StatusOK, s.Engine.Schema())
}

func (s *Server) handleDefineType(w http.ResponseWriter, r *http.Request) {
	var t core.NamedType
	if !s.decodeBody(w, r, &t) {
		return
	}
	if err := s.Engine.DefineType(t); err != nil {
		s.writeEngineError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleUpsertEntity(w http.ResponseWriter, r *http.Request) {
	var rec core.EntityRecord
	if !s.decodeBody(w, r, &rec) {
		return
	}
	stored, err := s.Engine.UpsertEntity(rec)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	s.writeHTTPResponse(w, http.StatusOK, stored)
}

func (s *Server) handleGetEntity(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	rec, ok := s.Engine.Entity(graphvalue.ParseIdentifier(id))
	if !ok {
		s.writeHTTPError(w, http.StatusNotFound, kgerr.CodeInvalidState, fmt.Sprintf("entity %q not found", id), nil)
		return
	}
	s.writeHTTPResponse(w, http.StatusOK, rec)
}

func (s *Server) handleDeleteEntity(w http.ResponseWriter, r *http.Request) {
	if err := s.Engine.DeleteEntity(graphvalue.ParseIdentifier(r.PathValue("id"))); err != nil {
		s.writeEngineError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleLink(w http.ResponseWriter, r *http.Request) {
	var rec core.RelationshipRecord
	if !s.decodeBody(w, r, &rec) {
		return
	}
	stored, err := s.Engine.Link(rec)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	s.writeHTTPResponse(w, http.StatusOK, stored)
}

func (s *Server) handleUnlink(w http.ResponseWriter, r *http.Request) {
	if err := s.Engine.Unlink(graphvalue.ParseIdentifier(r.PathValue("id"))); err != nil {
		s.writeEngineError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- Cursors ---

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req engine.QueryRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	id, err := s.Engine.SubmitQuery(r.Context(), req)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	s.writeHTTPResponse(w, http.StatusCreated, CursorResponse{CursorID: id})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req engine.SearchRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	id, err := s.Engine.SubmitSearch(r.Context(), req)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	s.writeHTTPResponse(w, http.StatusCreated, CursorResponse{CursorID: id})
}

func (s *Server) handleCursorNext(w http.ResponseWriter, r *http.Request) {
	rows, done, err := s.Engine.NextBatch(r.PathValue("id"))
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	if rows == nil {
		rows = []graphvalue.Row{}
	}
	s.writeHTTPResponse(w, http.StatusOK, BatchResponse{Rows: rows, Done: done})
}

func (s *Server) handleCursorClose(w http.ResponseWriter, r *http.Request) {
	s.Engine.CloseSession(r.PathValue("id"))
	w.WriteHeader(http.StatusNoContent)
}

// --- Analytics ---

func (s *Server) handleCentrality(w http.ResponseWriter, r *http.Request) {
	var req CentralityRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	if err := s.Engine.ValidateCentrality(req.Config, req.Subgraph); err != nil {
		s.writeEngineError(w, err)
		return
	}
	task := s.startTask("centrality", func(ctx context.Context) (any, error) {
		return s.Engine.ComputeCentrality(ctx, req.Config, req.Subgraph)
	})
	s.writeHTTPResponse(w, http.StatusAccepted, task.Snapshot())
}

func (s *Server) handlePaths(w http.ResponseWriter, r *http.Request) {
	var req PathsRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	if err := s.Engine.ValidatePaths(req.Config); err != nil {
		s.writeEngineError(w, err)
		return
	}
	task := s.startTask("paths", func(ctx context.Context) (any, error) {
		return s.Engine.FindPaths(ctx, req.Config)
	})
	s.writeHTTPResponse(w, http.StatusAccepted, task.Snapshot())
}

func (s *Server) lookupTask(w http.ResponseWriter, r *http.Request) (*Task, bool) {
	id := r.PathValue("id")
	task, ok := s.taskManager.GetTask(id)
	if !ok {
		s.writeHTTPError(w, http.StatusNotFound, kgerr.CodeInvalidState, fmt.Sprintf("task %q not found", id), nil)
	}
	return task, ok
}

func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	if task, ok := s.lookupTask(w, r); ok {
		s.writeHTTPResponse(w, http.StatusOK, task.Snapshot())
	}
}

func (s *Server) handleTaskResult(w http.ResponseWriter, r *http.Request) {
	task, ok := s.lookupTask(w, r)
	if !ok {
		return
	}
	result, status := task.Result()
	switch status {
	case TaskStatusCompleted:
		s.writeHTTPResponse(w, http.StatusOK, result)
	case TaskStatusFailed:
		view := task.Snapshot()
		s.writeHTTPError(w, statusForCode(view.ErrorCode), view.ErrorCode, view.Error, nil)
	default:
		s.writeHTTPError(w, http.StatusConflict, kgerr.CodeInvalidState, fmt.Sprintf("task %s is %s", task.ID, status), nil)
	}
}

// --- HTTP response helpers ---

// decodeBody reads a JSON body into out and writes the error response when
// it cannot.
func (s *Server) decodeBody(w http.ResponseWriter, r *http.Request, out any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		s.writeHTTPError(w, http.StatusBadRequest, kgerr.CodeValidation, "invalid JSON body: "+err.Error(), nil)
		return false
	}
	return true
}

func (s *Server) writeHTTPResponse(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Error("Failed to encode HTTP response", "error", err)
	}
}

func (s *Server) writeHTTPError(w http.ResponseWriter, statusCode int, code, message string, names []string) {
	s.writeHTTPResponse(w, statusCode, ErrorResponse{Error: message, Code: code, Names: names})
}

// writeEngineError maps an engine error onto its status and wire code.
func (s *Server) writeEngineError(w http.ResponseWriter, err error) {
	code := kgerr.Code(err)
	status := statusForCode(code)
	if status == http.StatusInternalServerError {
		slog.Error("Request failed", "error", err)
	}
	s.writeHTTPError(w, status, code, err.Error(), kgerr.Names(err))
}

func statusForCode(code string) int {
	switch code {
	case kgerr.CodeValidation, kgerr.CodeQuery:
		return http.StatusBadRequest
	case kgerr.CodeUnsupported:
		return http.StatusUnprocessableEntity
	case kgerr.CodeInvalidState:
		return http.StatusNotFound
	case kgerr.CodeCancelled, kgerr.CodeTimedOut:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

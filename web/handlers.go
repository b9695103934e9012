package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/jinzheng8115/smartanychat/config"
	"github.com/jinzheng8115/smartanychat/storage"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeSuccess(w http.ResponseWriter) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "success"})
}

// roleErrorStatus maps role CRUD failures to HTTP status codes
func roleErrorStatus(err error) int {
	switch {
	case errors.Is(err, config.ErrRoleNotFound):
		return http.StatusNotFound
	case errors.Is(err, config.ErrRoleExists):
		return http.StatusConflict
	case errors.Is(err, config.ErrDefaultRole):
		return http.StatusForbidden
	default:
		return http.StatusBadRequest
	}
}

// handleGetConfig returns the current configuration with API keys masked
func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	cfg, err := s.store.Load()
	if err != nil {
		s.logger.Error("Failed to load config", "error", err)
		http.Error(w, "Failed to load configuration", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, cfg.Redacted())
}

// handlePutConfig replaces the configuration. Masked API keys keep their
// stored value.
func (s *Server) handlePutConfig(w http.ResponseWriter, r *http.Request) {
	var next config.Config
	if err := json.NewDecoder(r.Body).Decode(&next); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	var invalid error
	_, err := s.store.Update(func(cfg *config.Config) error {
		next.KeepSecrets(cfg)
		if err := next.Validate(); err != nil {
			invalid = err
			return err
		}
		*cfg = next
		return nil
	})
	if invalid != nil {
		http.Error(w, invalid.Error(), http.StatusBadRequest)
		return
	}
	if err != nil {
		s.logger.Error("Failed to save config", "error", err)
		http.Error(w, "Failed to save configuration", http.StatusInternalServerError)
		return
	}

	s.logger.Info("Configuration updated from web UI")
	writeSuccess(w)
}

// handleListRoles returns all roles and the current one
func (s *Server) handleListRoles(w http.ResponseWriter, r *http.Request) {
	cfg, err := s.store.Load()
	if err != nil {
		s.logger.Error("Failed to load config", "error", err)
		http.Error(w, "Failed to load roles", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"roles":   cfg.Roles,
		"current": cfg.ActiveRole().Name,
	})
}

func (s *Server) handleAddRole(w http.ResponseWriter, r *http.Request) {
	var role config.Role
	if err := json.NewDecoder(r.Body).Decode(&role); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	s.updateRoles(w, http.StatusCreated, func(cfg *config.Config) error {
		return cfg.AddRole(role)
	})
}

func (s *Server) handleUpdateRole(w http.ResponseWriter, r *http.Request) {
	var role config.Role
	if err := json.NewDecoder(r.Body).Decode(&role); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	name := r.PathValue("name")
	s.updateRoles(w, http.StatusOK, func(cfg *config.Config) error {
		return cfg.UpdateRole(name, role)
	})
}

func (s *Server) handleDeleteRole(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	s.updateRoles(w, http.StatusOK, func(cfg *config.Config) error {
		return cfg.DeleteRole(name)
	})
}

func (s *Server) handleSelectRole(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	s.updateRoles(w, http.StatusOK, func(cfg *config.Config) error {
		return cfg.SetCurrentRole(name)
	})
}

// updateRoles applies a role change and answers with the new role list
func (s *Server) updateRoles(w http.ResponseWriter, status int, fn func(*config.Config) error) {
	var roleErr error
	cfg, err := s.store.Update(func(cfg *config.Config) error {
		roleErr = fn(cfg)
		return roleErr
	})
	if roleErr != nil {
		http.Error(w, roleErr.Error(), roleErrorStatus(roleErr))
		return
	}
	if err != nil {
		s.logger.Error("Failed to save roles", "error", err)
		http.Error(w, "Failed to save roles", http.StatusInternalServerError)
		return
	}

	writeJSON(w, status, map[string]interface{}{
		"roles":   cfg.Roles,
		"current": cfg.ActiveRole().Name,
	})
}

// handleGetHistory returns paginated completion history
func (s *Server) handleGetHistory(w http.ResponseWriter, r *http.Request) {
	limit := 50 // default
	offset := 0

	if l, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && l > 0 {
		limit = min(l, 500)
	}
	if o, err := strconv.Atoi(r.URL.Query().Get("offset")); err == nil && o >= 0 {
		offset = o
	}

	records, err := s.db.ListRecords(limit, offset)
	if err != nil {
		s.logger.Error("Failed to get records", "error", err)
		http.Error(w, "Failed to get history", http.StatusInternalServerError)
		return
	}

	total, err := s.db.CountRecords()
	if err != nil {
		s.logger.Error("Failed to get record count", "error", err)
		http.Error(w, "Failed to get history", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"records": records,
		"total":   total,
		"limit":   limit,
		"offset":  offset,
	})
}

// handleDeleteHistory deletes a record by ID
func (s *Server) handleDeleteHistory(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		http.Error(w, "Invalid ID", http.StatusBadRequest)
		return
	}

	if err := s.db.DeleteRecord(id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			http.Error(w, "Record not found", http.StatusNotFound)
			return
		}
		s.logger.Error("Failed to delete record", "error", err, "id", id)
		http.Error(w, "Failed to delete record", http.StatusInternalServerError)
		return
	}

	writeSuccess(w)
}

// handleClearConversation forgets the conversation history of the agent
func (s *Server) handleClearConversation(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	fn := s.onClear
	s.mu.RUnlock()

	if fn == nil {
		http.Error(w, "Agent not running", http.StatusServiceUnavailable)
		return
	}
	fn()
	writeSuccess(w)
}

// handleStats returns statistics for the specified time range
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	days := 7 // default to 7 days
	if d, err := strconv.Atoi(r.URL.Query().Get("days")); err == nil && d > 0 {
		days = d
	}

	overall, err := s.db.OverallStats(days)
	if err != nil {
		s.logger.Error("Failed to get overall stats", "error", err)
		http.Error(w, "Failed to get statistics", http.StatusInternalServerError)
		return
	}

	daily, err := s.db.DailyStats(days)
	if err != nil {
		s.logger.Error("Failed to get daily stats", "error", err)
		http.Error(w, "Failed to get statistics", http.StatusInternalServerError)
		return
	}

	actions, err := s.db.ActionStats(days)
	if err != nil {
		s.logger.Error("Failed to get action stats", "error", err)
		http.Error(w, "Failed to get statistics", http.StatusInternalServerError)
		return
	}

	providers, err := s.db.ProviderStats(days)
	if err != nil {
		s.logger.Error("Failed to get provider stats", "error", err)
		http.Error(w, "Failed to get statistics", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"days":      days,
		"overall":   overall,
		"daily":     daily,
		"actions":   actions,
		"providers": providers,
	})
}

// handleStatus returns the current agent status
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": s.Status(),
	})
}

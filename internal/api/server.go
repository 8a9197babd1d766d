// Package api is the HTTP boundary of the daemon. It authenticates
// nothing itself: the tenant identity arrives in the X-User-Id header,
// set by the upstream gateway after token verification. What the
// boundary does own is field validation and page-size clamping, so the
// core behind it can trust its inputs.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"vmforge"
	"vmforge/config"
	"vmforge/internal/machine"
	"vmforge/pkg/client"
)

const userHeader = "X-User-Id"

type Server struct {
	manager *machine.Manager
	query   *machine.Query
	cfg     config.API
	log     *slog.Logger
}

func New(manager *machine.Manager, query *machine.Query, cfg config.API) *Server {
	return &Server{
		manager: manager,
		query:   query,
		cfg:     cfg,
		log:     slog.With("component", "api"),
	}
}

// Handler returns the daemon's HTTP routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/machines", s.handleCreate)
	mux.HandleFunc("GET /api/machines", s.handleList)
	mux.HandleFunc("GET /api/machines/{id}", s.handleGet)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.Handle("GET /metrics", metricsHandler())
	return mux
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	owner := r.Header.Get(userHeader)
	if owner == "" {
		writeError(w, http.StatusUnauthorized, "user identity required")
		return
	}

	var req client.CreateMachineRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}
	if msg := validateCreate(req); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	sum, err := s.manager.Create(r.Context(), owner, vmforge.MachineSpec{
		Hostname: req.Hostname,
		Password: req.Password,
		CPUCores: req.CPUCores,
		MemoryGB: req.MemorySize,
		DiskGB:   req.DiskSize,
		OS:       req.OS,
	})
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toWire(sum))
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	owner := r.Header.Get(userHeader)
	if owner == "" {
		writeError(w, http.StatusUnauthorized, "user identity required")
		return
	}

	page, err := positiveQueryInt(r, "page", 1)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	limit, err := positiveQueryInt(r, "limit", s.cfg.PageSize)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	// The core performs no clamping; the boundary enforces the cap.
	if limit > s.cfg.MaxPageSize {
		limit = s.cfg.MaxPageSize
	}

	result, err := s.query.List(r.Context(), owner, page, limit)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	data := make([]client.MachineSummary, len(result.Items))
	for i, item := range result.Items {
		data[i] = toWire(item)
	}
	writeJSON(w, http.StatusOK, client.MachineList{
		Data: data,
		Pagination: client.Pagination{
			Page:            result.Page,
			Limit:           result.PageSize,
			Total:           result.Total,
			TotalPages:      result.TotalPages,
			HasNextPage:     result.HasNext,
			HasPreviousPage: result.HasPrevious,
		},
	})
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	owner := r.Header.Get(userHeader)
	if owner == "" {
		writeError(w, http.StatusUnauthorized, "user identity required")
		return
	}

	sum, err := s.query.Get(r.Context(), owner, r.PathValue("id"))
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toWire(sum))
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// writeDomainError maps core sentinels onto HTTP statuses. Anything
// unrecognized is a persistence problem and is reported retryable.
func (s *Server) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, machine.ErrDuplicateHostname):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, machine.ErrNotFound):
		writeError(w, http.StatusNotFound, "machine not found")
	default:
		s.log.Error("request failed", "method", r.Method, "path", r.URL.Path, "err", err)
		writeError(w, http.StatusServiceUnavailable, "service temporarily unavailable, retry later")
	}
}

// Bounds from the public API contract. Enforced only here; everything
// behind the boundary assumes they hold.
func validateCreate(req client.CreateMachineRequest) string {
	switch {
	case len(req.Hostname) < 3 || len(req.Hostname) > 255:
		return "hostname must be between 3 and 255 characters"
	case len(req.Password) < 8 || len(req.Password) > 255:
		return "password must be between 8 and 255 characters"
	case req.CPUCores < 1 || req.CPUCores > 64:
		return "cpuCores must be between 1 and 64"
	case req.MemorySize < 1 || req.MemorySize > 512:
		return "memorySize must be between 1 and 512 GB"
	case req.DiskSize < 10 || req.DiskSize > 10000:
		return "diskSize must be between 10 and 10000 GB"
	case len(req.OS) < 3 || len(req.OS) > 100:
		return "os must be between 3 and 100 characters"
	}
	return ""
}

func positiveQueryInt(r *http.Request, key string, fallback int) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 1 {
		return 0, fmt.Errorf("%s must be a positive integer", key)
	}
	return v, nil
}

func toWire(sum vmforge.MachineSummary) client.MachineSummary {
	return client.MachineSummary{
		ID:             sum.ID,
		Hostname:       sum.Hostname,
		CPUCores:       sum.CPUCores,
		MemorySize:     sum.MemoryGB,
		DiskSize:       sum.DiskGB,
		OS:             sum.OS,
		Status:         string(sum.Status),
		NetworkAddress: nullable(sum.NetworkAddress),
		FailureReason:  nullable(sum.FailureReason),
		CreatedAt:      sum.CreatedAt,
		UpdatedAt:      sum.UpdatedAt,
	}
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, client.ErrorResponse{Error: msg})
}

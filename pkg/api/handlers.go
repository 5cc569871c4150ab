package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/cuemby/catena/pkg/manager"
	"github.com/cuemby/catena/pkg/storage"
	"github.com/cuemby/catena/pkg/types"
	"github.com/gorilla/mux"
)

// query parameters that are not filters
var listParams = map[string]bool{"sort_key": true, "sort_dir": true, "marker": true, "limit": true}

// CloudRequest is the body of POST /v1/clouds
type CloudRequest struct {
	Type           string         `json:"type"`
	Name           string         `json:"name"`
	Authentication map[string]any `json:"authentication"`
	Config         map[string]any `json:"config"`
}

// ChainRequest is the body of POST /v1/chains
type ChainRequest struct {
	CloudID     string         `json:"cloud_id"`
	Name        string         `json:"name"`
	ChainConfig map[string]any `json:"chain_config"`
	CloudConfig map[string]any `json:"cloud_config"`
}

func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: malformed JSON body: %v", types.ErrValidation, err)
	}
	return nil
}

func listOptions(r *http.Request) (storage.ListOptions, error) {
	q := r.URL.Query()
	opts := storage.ListOptions{
		SortKey: q.Get("sort_key"),
		SortDir: q.Get("sort_dir"),
		Marker:  q.Get("marker"),
	}
	if limit := q.Get("limit"); limit != "" {
		n, err := strconv.Atoi(limit)
		if err != nil || n < 0 {
			return opts, fmt.Errorf("%w: invalid limit %q", types.ErrValidation, limit)
		}
		opts.Limit = n
	}
	for key := range q {
		if listParams[key] {
			continue
		}
		if opts.Filters == nil {
			opts.Filters = make(map[string]string)
		}
		opts.Filters[key] = q.Get(key)
	}
	return opts, nil
}

// Clouds

func (s *Server) handleCloudsList(w http.ResponseWriter, r *http.Request) {
	opts, err := listOptions(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	clouds, err := s.svc.GetClouds(r.Context(), opts)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, clouds)
}

func (s *Server) handleCloudCreate(w http.ResponseWriter, r *http.Request) {
	var req CloudRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	view, err := s.svc.CreateCloud(r.Context(), req.Type, req.Name, req.Authentication, req.Config)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, view)
}

func (s *Server) handleCloudTypes(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.svc.GetCloudTypes())
}

func (s *Server) handleCloudQuery(query func(context.Context, string) ([]string, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		out, err := query(r.Context(), mux.Vars(r)["cloud_id"])
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, out)
	}
}

// Chains

func (s *Server) handleChainsList(w http.ResponseWriter, r *http.Request) {
	opts, err := listOptions(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	chains, err := s.svc.GetChains(r.Context(), opts)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, chains)
}

func (s *Server) handleChainCreate(w http.ResponseWriter, r *http.Request) {
	var req ChainRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if req.CloudID == "" {
		s.writeError(w, r, fmt.Errorf("%w: must specify a cloud_id", types.ErrValidation))
		return
	}
	view, err := s.svc.CreateChain(r.Context(), req.CloudID, req.Name, req.ChainConfig, req.CloudConfig)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, view)
}

func (s *Server) handleChainGet(w http.ResponseWriter, r *http.Request) {
	view, err := s.svc.GetChain(r.Context(), mux.Vars(r)["chain_id"])
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleChainDelete(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.DeleteChain(r.Context(), mux.Vars(r)["chain_id"]); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{})
}

// Nodes

func (s *Server) handleNodesList(w http.ResponseWriter, r *http.Request) {
	opts, err := listOptions(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	nodes, err := s.svc.GetNodes(r.Context(), mux.Vars(r)["chain_id"], opts)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nodes)
}

func (s *Server) handleNodeCreate(w http.ResponseWriter, r *http.Request) {
	var req manager.NodeRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	view, err := s.svc.CreateNode(r.Context(), mux.Vars(r)["chain_id"], req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, view)
}

func (s *Server) handleNodeGet(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	view, err := s.svc.GetNode(r.Context(), vars["chain_id"], vars["node_id"])
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleNodeDelete(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	if err := s.svc.DeleteNode(r.Context(), vars["chain_id"], vars["node_id"]); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{})
}

func (s *Server) handleBackends(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.svc.GetBackendInfo())
}

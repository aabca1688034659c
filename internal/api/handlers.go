// SPDX-License-Identifier: MIT

package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"gonum.org/v1/gonum/mat"

	"github.com/photonlab/abel/internal/basis"
	"github.com/photonlab/abel/internal/imaging"
	"github.com/photonlab/abel/internal/jobs"
	"github.com/photonlab/abel/internal/radial"
	"github.com/photonlab/abel/internal/transform"
)

func (s *Server) decodeTransform(w http.ResponseWriter, r *http.Request) (*TransformRequest, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	var req TransformRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "malformed JSON body: "+err.Error())
		return nil, false
	}
	return &req, true
}

// checkFrameBound rejects requests whose effective frame would exceed the
// configured maximum. Basis generation cost grows steeply with the frame, so
// the bound applies to every path that can trigger it, not just the explicit
// basis endpoint.
func (s *Server) checkFrameBound(w http.ResponseWriter, img *mat.Dense, opts transform.Options) bool {
	rows, cols := img.Dims()
	frame := rows
	if cols > frame {
		frame = cols
	}
	if opts.FrameSize > frame {
		frame = opts.FrameSize
	}
	if frame > s.cfg.MaxFrameSize {
		writeBadRequest(w, "image frame exceeds the configured maximum frame size")
		return false
	}
	return true
}

func (s *Server) handleTransform(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeTransform(w, r)
	if !ok {
		return
	}
	opts, err := req.options(s.cfg.DefaultMethod, s.cfg.PixelSize)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	img, err := req.matrix()
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	if !s.checkFrameBound(w, img, opts) {
		return
	}

	start := time.Now()
	recon, err := transform.Apply(r.Context(), s.reg, img, opts)
	if err != nil {
		writeError(w, err)
		return
	}
	rows, cols := recon.Dims()
	writeJSON(w, http.StatusOK, TransformResponse{
		Method:    opts.Method,
		Direction: string(opts.Direction),
		Shape:     [2]int{rows, cols},
		Rows:      rowsFromDense(recon),
		ElapsedMS: time.Since(start).Milliseconds(),
	})
}

func (s *Server) handleSubmitJob(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeTransform(w, r)
	if !ok {
		return
	}
	opts, err := req.options(s.cfg.DefaultMethod, s.cfg.PixelSize)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	img, err := req.matrix()
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	if !s.checkFrameBound(w, img, opts) {
		return
	}

	job := s.manager.Submit(img, opts)
	writeJSON(w, http.StatusAccepted, jobResponse(job, false))
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	job, ok := s.manager.Get(chi.URLParam(r, "id"))
	if !ok {
		writeNotFound(w)
		return
	}
	writeJSON(w, http.StatusOK, jobResponse(job, true))
}

func (s *Server) handleListJobs(w http.ResponseWriter, _ *http.Request) {
	list := s.manager.List()
	out := make([]JobResponse, 0, len(list))
	for _, job := range list {
		out = append(out, jobResponse(job, false))
	}
	writeJSON(w, http.StatusOK, map[string]any{"jobs": out})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeJSON(w, http.StatusOK, map[string]any{"history": []jobs.HistoryEntry{}})
		return
	}
	entries, err := s.history.Recent(r.Context(), 100)
	if err != nil {
		writeError(w, err)
		return
	}
	if entries == nil {
		entries = []jobs.HistoryEntry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"history": entries})
}

func (s *Server) handleSpeeds(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	var req SpeedsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "malformed JSON body: "+err.Error())
		return
	}
	img, err := denseFromRows(req.Rows)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	origin := imaging.MidOrigin(img)
	if req.Origin != nil {
		origin = imaging.Origin{Col: req.Origin.Col, Row: req.Origin.Row}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"speeds": radial.SpeedDistribution(img, origin),
	})
}

func (s *Server) handleListBasis(w http.ResponseWriter, r *http.Request) {
	keys, err := s.store.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	if keys == nil {
		keys = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"basis": keys})
}

func (s *Server) handleGenerateBasis(w http.ResponseWriter, r *http.Request) {
	var req BasisRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "malformed JSON body: "+err.Error())
		return
	}
	if req.N < 3 || !imaging.IsOdd(req.N) {
		writeBadRequest(w, "n must be odd and at least 3")
		return
	}
	if req.N > s.cfg.MaxFrameSize {
		writeBadRequest(w, "n exceeds the configured maximum frame size")
		return
	}

	set, err := basis.Cached(r.Context(), s.store, req.N, req.Nbf)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"key": basis.Key(set.N, set.Nbf),
		"n":   set.N,
		"nbf": set.Nbf,
	})
}

func (s *Server) handleDeleteBasis(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	if err := s.store.Delete(r.Context(), key); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.healthM.Health(r.Context()))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	resp := s.healthM.Ready(r.Context())
	code := http.StatusOK
	if !resp.Ready {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, resp)
}

func jobResponse(job jobs.Job, includeResult bool) JobResponse {
	resp := JobResponse{
		ID:        job.ID,
		Method:    job.Method,
		Direction: job.Direction,
		State:     string(job.State),
		Error:     job.Error,
		Shape:     [2]int{job.Rows, job.Cols},
		Created:   job.Created.UTC().Format(time.RFC3339),
	}
	if !job.Finished.IsZero() {
		resp.Finished = job.Finished.UTC().Format(time.RFC3339)
	}
	if includeResult && job.State == jobs.StateDone && job.Result != nil {
		resp.Rows = rowsFromDense(job.Result)
	}
	return resp
}

// Copyright 2011 The LevelDB-Go and Pebble Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package debug exposes a read-only HTTP introspection surface over a
// manifest.VersionSet: a JSON snapshot of the current Version's per-level
// layout, and a Prometheus registry of compaction-activity gauges and
// counters. It never drives a mutation.
package debug

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pdlfs/pdlfs-common/manifest"
)

// levelStats describes one level of the current Version, rendered by
// GET /versions.
type levelStats struct {
	Level           int     `json:"level"`
	FileCount       int     `json:"file_count"`
	Bytes           uint64  `json:"bytes"`
	CompactionScore float64 `json:"compaction_score,omitempty"`
}

type versionsResponse struct {
	CompactionLevel int          `json:"compaction_level"`
	CompactionScore float64      `json:"compaction_score"`
	Levels          []levelStats `json:"levels"`
}

// Server wraps a chi.Router exposing read-only VersionSet introspection.
type Server struct {
	vs     *manifest.VersionSet
	router chi.Router

	registry       *prometheus.Registry
	levelScore     *prometheus.GaugeVec
	levelFileCount *prometheus.GaugeVec
	applyCounter   prometheus.Counter
}

// NewServer returns a Server introspecting vs. It registers an ApplyHook on
// vs so applyCounter tracks every completed LogAndApply; callers must not
// also install their own hook on the same VersionSet.
func NewServer(vs *manifest.VersionSet) *Server {
	s := &Server{
		vs:       vs,
		registry: prometheus.NewRegistry(),
		levelScore: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "manifest_level_compaction_score",
			Help: "Compaction score of the current Version, by level.",
		}, []string{"level"}),
		levelFileCount: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "manifest_level_file_count",
			Help: "Number of files at each level of the current Version.",
		}, []string{"level"}),
		applyCounter: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "manifest_log_and_apply_total",
			Help: "Number of LogAndApply calls that installed a new Version.",
		}),
	}
	s.registry.MustRegister(s.levelScore, s.levelFileCount, s.applyCounter)
	vs.SetApplyHook(func() { s.applyCounter.Inc() })

	r := chi.NewRouter()
	r.Get("/versions", s.handleVersions)
	r.Get("/files/{number}", s.handleFile)
	r.Get("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}).ServeHTTP)
	s.router = r
	return s
}

// ServeHTTP implements http.Handler, so a Server can be mounted directly
// into a larger router or passed to http.ListenAndServe.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// fileResponse describes one table file, rendered by GET /files/{number}.
type fileResponse struct {
	Number       uint64 `json:"number"`
	Size         uint64 `json:"size"`
	SeqOff       uint64 `json:"seq_off"`
	AllowedSeeks int64  `json:"allowed_seeks"`
	Smallest     string `json:"smallest"`
	Largest      string `json:"largest"`
}

// handleFile resolves a file number through the VersionSet's lock-free
// registry, so the probe never contends with an in-flight LogAndApply.
func (s *Server) handleFile(w http.ResponseWriter, r *http.Request) {
	n, err := strconv.ParseUint(chi.URLParam(r, "number"), 10, 64)
	if err != nil {
		http.Error(w, "bad file number", http.StatusBadRequest)
		return
	}
	f, ok := s.vs.LookupFile(n)
	if !ok {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(fileResponse{
		Number:       f.Number,
		Size:         f.Size,
		SeqOff:       f.SeqOff,
		AllowedSeeks: f.AllowedSeeks,
		Smallest:     f.Smallest.String(),
		Largest:      f.Largest.String(),
	})
}

func (s *Server) handleVersions(w http.ResponseWriter, r *http.Request) {
	v := s.vs.Current()
	defer s.vs.ReleaseVersion(v)

	resp := versionsResponse{
		CompactionLevel: v.CompactionLevel,
		CompactionScore: v.CompactionScore,
	}
	for level, files := range v.Files {
		var bytes uint64
		for _, f := range files {
			bytes += f.Size
		}
		levelLabel := strconv.Itoa(level)
		s.levelFileCount.WithLabelValues(levelLabel).Set(float64(len(files)))
		score := 0.0
		if level == v.CompactionLevel {
			score = v.CompactionScore
		}
		s.levelScore.WithLabelValues(levelLabel).Set(score)
		if len(files) == 0 && level != v.CompactionLevel {
			continue
		}
		resp.Levels = append(resp.Levels, levelStats{
			Level:           level,
			FileCount:       len(files),
			Bytes:           bytes,
			CompactionScore: score,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}


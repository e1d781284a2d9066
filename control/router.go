// Package control exposes the running pipeline over HTTP: statistics, the
// profile catalog, recommendations, recent detections and algorithm switches.
package control

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/khaledhikmat/vs-detect/detect"
	"github.com/khaledhikmat/vs-detect/model"
	"github.com/khaledhikmat/vs-detect/pipeline"
	"github.com/khaledhikmat/vs-detect/service/data"
	"github.com/khaledhikmat/vs-detect/service/lgr"
)

// Pipeline is what the handlers need from a running pipeline.
type Pipeline interface {
	Stats() model.PipelineStats
	Algorithm() model.AlgorithmKind
	LastError() string
	RequestAlgorithm(kind model.AlgorithmKind) <-chan error
}

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type AlgorithmResponse struct {
	Algorithm model.AlgorithmKind `json:"algorithm"`
	Name      string              `json:"name"`
	Status    string              `json:"status,omitempty"`
	LastError string              `json:"lastError,omitempty"`
}

type Server struct {
	pipeline   Pipeline
	catalog    *detect.Catalog
	dataSvc    data.IService
	switchWait time.Duration
}

// NewRouter builds the HTTP surface. dataSvc and ws may be nil; their routes
// are then not registered.
func NewRouter(p Pipeline, catalog *detect.Catalog, dataSvc data.IService, ws http.Handler, switchWait time.Duration) *mux.Router {
	if catalog == nil {
		catalog = detect.DefaultCatalog()
	}
	s := &Server{pipeline: p, catalog: catalog, dataSvc: dataSvc, switchWait: switchWait}

	r := mux.NewRouter()
	r.HandleFunc("/healthz", s.handleHealth).Methods("GET")
	r.HandleFunc("/stats", s.handleStats).Methods("GET")
	r.HandleFunc("/profiles", s.handleProfiles).Methods("GET")
	r.HandleFunc("/profiles/{name}", s.handleProfile).Methods("GET")
	r.HandleFunc("/recommend", s.handleRecommend).Methods("GET")
	r.HandleFunc("/algorithm", s.handleAlgorithm).Methods("GET")
	r.HandleFunc("/algorithm/{name}", s.handleSwitch).Methods("PUT", "POST")
	if dataSvc != nil {
		r.HandleFunc("/detections", s.handleDetections).Methods("GET")
	}
	if ws != nil {
		r.Handle("/ws", ws)
	}
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	sendJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStats(w http.ResponseWriter, _ *http.Request) {
	sendJSON(w, http.StatusOK, s.pipeline.Stats())
}

func (s *Server) handleProfiles(w http.ResponseWriter, _ *http.Request) {
	sendJSON(w, http.StatusOK, s.catalog.Profiles())
}

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	kind, ok := s.kindVar(w, r)
	if !ok {
		return
	}
	p := s.catalog.Profile(kind)
	if p.Empty() {
		sendErrorResponse(w, "unknown_profile", "no profile for "+kind.String(), http.StatusNotFound)
		return
	}
	sendJSON(w, http.StatusOK, p)
}

func (s *Server) handleRecommend(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	realTime, _ := strconv.ParseBool(q.Get("realtime"))
	accuracy, _ := strconv.ParseBool(q.Get("accuracy"))
	width, _ := strconv.Atoi(q.Get("w"))
	height, _ := strconv.Atoi(q.Get("h"))

	kind := detect.Recommend(s.catalog.Profiles(), model.Size{Width: width, Height: height}, realTime, accuracy)
	sendJSON(w, http.StatusOK, AlgorithmResponse{Algorithm: kind, Name: kind.String()})
}

func (s *Server) handleAlgorithm(w http.ResponseWriter, _ *http.Request) {
	kind := s.pipeline.Algorithm()
	sendJSON(w, http.StatusOK, AlgorithmResponse{
		Algorithm: kind,
		Name:      kind.String(),
		LastError: s.pipeline.LastError(),
	})
}

// handleSwitch queues an algorithm switch and waits a bounded time for the
// processing stage to apply it. A switch still pending at the deadline is
// reported as 202.
func (s *Server) handleSwitch(w http.ResponseWriter, r *http.Request) {
	kind, ok := s.kindVar(w, r)
	if !ok {
		return
	}

	done := s.pipeline.RequestAlgorithm(kind)
	timer := time.NewTimer(s.switchWait)
	defer timer.Stop()

	select {
	case err := <-done:
		if err != nil {
			lgr.Logger.WarnContext(r.Context(), "algorithm switch rejected",
				slog.String("algorithm", kind.String()),
				slog.Any("error", err),
			)
			sendErrorResponse(w, switchErrorCode(err), err.Error(), switchErrorStatus(err))
			return
		}
		sendJSON(w, http.StatusOK, AlgorithmResponse{Algorithm: kind, Name: kind.String(), Status: "active"})
	case <-timer.C:
		sendJSON(w, http.StatusAccepted, AlgorithmResponse{Algorithm: kind, Name: kind.String(), Status: "pending"})
	case <-r.Context().Done():
	}
}

func (s *Server) handleDetections(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			sendErrorResponse(w, "invalid_request", "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = n
	}

	records, err := s.dataSvc.RetrieveRecentDetections(limit)
	if err != nil {
		sendErrorResponse(w, "storage_error", err.Error(), http.StatusInternalServerError)
		return
	}
	if records == nil {
		records = []model.DetectionRecord{}
	}
	sendJSON(w, http.StatusOK, records)
}

func (s *Server) kindVar(w http.ResponseWriter, r *http.Request) (model.AlgorithmKind, bool) {
	name := mux.Vars(r)["name"]
	kind, ok := model.ParseAlgorithm(name)
	if !ok {
		sendErrorResponse(w, "unknown_algorithm", "unknown algorithm "+strconv.Quote(name), http.StatusBadRequest)
		return model.AlgorithmUnknown, false
	}
	return kind, true
}

func switchErrorStatus(err error) int {
	switch {
	case errors.Is(err, pipeline.ErrStopped):
		return http.StatusServiceUnavailable
	case errors.Is(err, pipeline.ErrSwitchBusy):
		return http.StatusConflict
	case errors.Is(err, detect.ErrUnsupportedAlgorithm), errors.Is(err, detect.ErrModelLoad):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func switchErrorCode(err error) string {
	switch {
	case errors.Is(err, pipeline.ErrStopped):
		return "pipeline_stopped"
	case errors.Is(err, pipeline.ErrSwitchBusy):
		return "switch_pending"
	case errors.Is(err, detect.ErrUnsupportedAlgorithm):
		return "unsupported_algorithm"
	case errors.Is(err, detect.ErrModelLoad):
		return "model_load_error"
	default:
		return "switch_error"
	}
}

func sendJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		lgr.Logger.Warn("encode response failed", slog.Any("error", err))
	}
}

func sendErrorResponse(w http.ResponseWriter, code, message string, status int) {
	sendJSON(w, status, ErrorResponse{Code: code, Message: message})
}

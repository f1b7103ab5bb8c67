package api

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/okian/hurdletime/internal/adapters/export"
	"github.com/okian/hurdletime/internal/domain/model"
	"github.com/okian/hurdletime/internal/domain/stats"
)

type healthResponse struct {
	Status string `json:"status"`
}

// handleHealth answers GET /healthz.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{Status: "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	st, err := s.deps.Status(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// handleConnect blocks until the sensor is connected or the attempt fails.
func (s *Server) handleConnect(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Connect(r.Context()); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.handleStatus(w, r)
}

func (s *Server) handleDisconnect(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Disconnect(r.Context()); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.handleStatus(w, r)
}

type startRaceRequest struct {
	AthleteID string `json:"athleteId"`
	Hurdles   int    `json:"hurdles"`
}

func (s *Server) handleStartRace(w http.ResponseWriter, r *http.Request) {
	var req startRaceRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	snap, err := s.deps.StartRace(r.Context(), req.AthleteID, req.Hurdles)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

type finishRaceResponse struct {
	Session *sessionView `json:"session"`
}

func (s *Server) handleFinishRace(w http.ResponseWriter, r *http.Request) {
	session, err := s.deps.FinishRace(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var resp finishRaceResponse
	if session != nil {
		v := newSessionView(*session)
		resp.Session = &v
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleListAthletes(w http.ResponseWriter, r *http.Request) {
	athletes, err := s.deps.Athletes(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, athletes)
}

type addAthleteRequest struct {
	Name     string `json:"name"`
	Category string `json:"category"`
}

func (s *Server) handleAddAthlete(w http.ResponseWriter, r *http.Request) {
	var req addAthleteRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	a, err := s.deps.AddAthlete(r.Context(), req.Name, req.Category)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, a)
}

func (s *Server) handleRemoveAthlete(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.RemoveAthlete(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type statsResponse struct {
	AthleteID string  `json:"athleteId"`
	Count     int     `json:"count"`
	Best      uint32  `json:"best"`
	Average   float64 `json:"average"`
	HasData   bool    `json:"hasData"`
	BestText  string  `json:"bestText,omitempty"`
}

func (s *Server) handleAthleteStats(w http.ResponseWriter, r *http.Request) {
	st, err := s.deps.Stats(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	resp := statsResponse{
		AthleteID: st.AthleteID,
		Count:     st.Count,
		Best:      st.Best,
		Average:   st.Average,
		HasData:   st.HasData,
	}
	if st.HasData {
		resp.BestText = stats.FormatMillis(st.Best)
	}
	writeJSON(w, http.StatusOK, resp)
}

// sessionView adds per-hurdle deltas to a stored session.
type sessionView struct {
	model.TrainingSession
	Deltas []uint32 `json:"deltas"`
}

func newSessionView(s model.TrainingSession) sessionView {
	return sessionView{TrainingSession: s, Deltas: stats.SplitDeltas(s.HurdleTimes)}
}

func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := s.deps.Sessions(r.Context(), r.URL.Query().Get("athleteId"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	out := make([]sessionView, len(sessions))
	for i, session := range sessions {
		out[i] = newSessionView(session)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	entries, err := s.deps.Leaderboard(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if limit := r.URL.Query().Get("limit"); limit != "" {
		n, err := strconv.Atoi(limit)
		if err != nil || n < 1 {
			s.writeError(w, r, badRequest(fmt.Errorf("invalid limit %q", limit)))
			return
		}
		entries = entries[:min(n, len(entries))]
	}
	writeJSON(w, http.StatusOK, entries)
}

// handleExport streams the data set as a downloadable JSON file.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	doc, err := s.deps.Export(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", export.FileName(doc.ExportDate)))
	w.WriteHeader(http.StatusOK)
	_ = export.Encode(w, doc)
}

type importResponse struct {
	Athletes int `json:"athletes"`
	Sessions int `json:"sessions"`
}

func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	doc, err := export.Decode(http.MaxBytesReader(w, r.Body, maxImportBytes))
	if err != nil {
		s.writeError(w, r, badRequest(err))
		return
	}
	if err := s.deps.Import(r.Context(), doc); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, importResponse{Athletes: len(doc.Athletes), Sessions: len(doc.Sessions)})
}

func (s *Server) handleSimRun(w http.ResponseWriter, r *http.Request) {
	hurdles := 0
	if v := strings.TrimSpace(r.URL.Query().Get("hurdles")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			s.writeError(w, r, badRequest(fmt.Errorf("invalid hurdles %q", v)))
			return
		}
		hurdles = n
	}
	if err := s.deps.SimulateRun(hurdles); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) handleSimDrop(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.DropLink(); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

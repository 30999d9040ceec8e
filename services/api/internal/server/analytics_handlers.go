package server

import (
	"net/http"

	"arview/pkg/domain"
	"arview/services/api/internal/app"
)

type scanRecordedResponse struct {
	ID string `json:"id"`
}

func (s *Server) handleRecordScan(w http.ResponseWriter, r *http.Request) {
	if !s.allowRate(w, r, s.scanLimiter, "too many scan events") {
		return
	}
	var req app.RecordScanInput
	if !decodeJSON(w, r, &req) {
		return
	}
	event, err := s.app.RecordScan(r.Context(), req)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, scanRecordedResponse{ID: event.ID})
}

func (s *Server) handleUpdateDuration(w http.ResponseWriter, r *http.Request) {
	if !s.allowRate(w, r, s.scanLimiter, "too many scan events") {
		return
	}
	var req app.UpdateDurationInput
	if !decodeJSON(w, r, &req) {
		return
	}
	event, err := s.app.UpdateScanDuration(r.Context(), req)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, event)
}

func (s *Server) handleItemAnalytics(w http.ResponseWriter, r *http.Request, user domain.User) {
	res, err := s.app.ItemAnalytics(r.Context(), r.PathValue("id"), user.ID)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleOverview(w http.ResponseWriter, r *http.Request, user domain.User) {
	res, err := s.app.MerchantOverview(r.Context(), user.ID)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

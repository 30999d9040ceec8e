package server

import (
	"net/http"

	"arview/pkg/domain"
	"arview/services/api/internal/app"
)

type itemListResponse struct {
	Items []domain.ItemWithScans `json:"items"`
	Total int                    `json:"total"`
}

func (s *Server) handleCreateItem(w http.ResponseWriter, r *http.Request, user domain.User) {
	var req app.CreateItemInput
	if !decodeJSON(w, r, &req) {
		return
	}
	item, err := s.app.CreateItem(r.Context(), user.ID, req)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, item)
}

func (s *Server) handleListItems(w http.ResponseWriter, r *http.Request, user domain.User) {
	items, err := s.app.ListItems(r.Context(), user.ID)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, itemListResponse{Items: items, Total: len(items)})
}

func (s *Server) handleItemBySlug(w http.ResponseWriter, r *http.Request) {
	item, err := s.app.ItemBySlug(r.Context(), r.PathValue("slug"))
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (s *Server) handleGetItem(w http.ResponseWriter, r *http.Request, user domain.User) {
	item, err := s.app.ItemWithStats(r.Context(), r.PathValue("id"), user.ID)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (s *Server) handleUpdateItem(w http.ResponseWriter, r *http.Request, user domain.User) {
	var req app.UpdateItemInput
	if !decodeJSON(w, r, &req) {
		return
	}
	item, err := s.app.UpdateItem(r.Context(), r.PathValue("id"), user.ID, req)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (s *Server) handleDeleteItem(w http.ResponseWriter, r *http.Request, user domain.User) {
	if err := s.app.DeleteItem(r.Context(), r.PathValue("id"), user.ID); err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "Item deleted successfully"})
}

package server

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"arview/pkg/domain"
	"arview/pkg/qrcode"
)

func (s *Server) handleItemQR(w http.ResponseWriter, r *http.Request, user domain.User) {
	q := r.URL.Query()
	opts := qrcode.Options{
		Format: qrcode.Format(strings.ToLower(q.Get("format"))),
		Level:  qrcode.Level(strings.ToUpper(q.Get("errorCorrectionLevel"))),
	}
	if raw := q.Get("size"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "REQUEST_INVALID", "size must be an integer")
			return
		}
		opts.Size = n
	}
	img, err := s.app.ItemQRCode(r.Context(), r.PathValue("id"), user.ID, opts)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", img.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", img.Filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(img.Data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(img.Data)
}

func (s *Server) handleItemQRPreview(w http.ResponseWriter, r *http.Request, user domain.User) {
	p, err := s.app.ItemQRPreview(r.Context(), r.PathValue("id"), user.ID)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

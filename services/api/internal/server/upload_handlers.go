package server

import (
	"errors"
	"net/http"
	"net/url"

	"arview/pkg/domain"
	"arview/services/api/internal/app"
)

// multipart framing on top of the largest accepted file.
const multipartOverhead = 1 << 20

func (s *Server) handlePresign(w http.ResponseWriter, r *http.Request, user domain.User) {
	var req app.PresignInput
	if !decodeJSON(w, r, &req) {
		return
	}
	res, err := s.app.PresignUpload(r.Context(), user.ID, req)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleDirectUpload(w http.ResponseWriter, r *http.Request, user domain.User) {
	r.Body = http.MaxBytesReader(w, r.Body, app.MaxDirectUploadBytes+multipartOverhead)
	if err := r.ParseMultipartForm(8 << 20); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, http.StatusBadRequest, "UPLOAD_FILE_TOO_LARGE", "file too large")
			return
		}
		writeError(w, http.StatusBadRequest, "UPLOAD_INVALID_FORM", "invalid form data")
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "UPLOAD_FILE_REQUIRED", "file is required")
		return
	}
	defer file.Close()

	res, err := s.app.DirectUpload(r.Context(), user.ID, app.DirectUploadInput{
		FileName:    header.Filename,
		FileType:    app.FileType(r.FormValue("fileType")),
		ContentType: header.Header.Get("Content-Type"),
		Size:        header.Size,
		Body:        file,
	})
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleDeleteUpload(w http.ResponseWriter, r *http.Request, user domain.User) {
	key, err := url.PathUnescape(r.PathValue("key"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "REQUEST_INVALID", "invalid key")
		return
	}
	if err := s.app.DeleteUpload(r.Context(), user.ID, key); err != nil {
		s.audit(r, "api.upload.delete", "fail", "user_id", user.ID, "key", key)
		writeAppError(w, r, err)
		return
	}
	s.audit(r, "api.upload.delete", "success", "user_id", user.ID, "key", key)
	writeJSON(w, http.StatusOK, messageResponse{Message: "File deleted successfully"})
}

package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/ahrav/credcheck/internal/domain"
	"github.com/ahrav/credcheck/internal/logging"
)

// Multipart field names of a verification request.
const (
	FieldCertificate  = "certificate"
	FieldCredentialID = "credentialId"
	FieldSkillTitle   = "skillTitle"
)

// multipartMemory is the part of a multipart body kept in memory before
// spilling to disk.
const multipartMemory = 1 << 20

// imageTypes are the certificate formats the pipeline can decode.
var imageTypes = []string{
	"image/png",
	"image/jpeg",
	"image/gif",
	"image/webp",
	"image/bmp",
	"image/tiff",
}

// skippedTypes are accepted certificate formats that are not verified.
var skippedTypes = []string{"application/pdf"}

// VerifyResponse is the body of a verification response.
type VerifyResponse struct {
	// VerificationSkipped is true for accepted certificates the pipeline
	// does not inspect, such as PDFs. Result is nil then.
	VerificationSkipped bool   `json:"verificationSkipped"`
	MimeType            string `json:"mimeType"`

	Result *domain.VerificationResult `json:"result,omitempty"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error     string   `json:"error"`
	Details   []string `json:"details,omitempty"`
	RequestID string   `json:"requestId,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	reqID := chimw.GetReqID(r.Context())
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, reqID, http.StatusRequestEntityTooLarge,
				fmt.Sprintf("certificate exceeds %d bytes", s.cfg.MaxUploadBytes), nil)
			return
		}
		writeError(w, reqID, http.StatusBadRequest, "invalid multipart form", nil)
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	credentialID := strings.TrimSpace(r.FormValue(FieldCredentialID))
	skillTitle := strings.TrimSpace(r.FormValue(FieldSkillTitle))

	file, _, err := r.FormFile(FieldCertificate)
	if err != nil {
		writeError(w, reqID, http.StatusBadRequest, "certificate file is required", nil)
		return
	}
	defer file.Close()

	mtype, err := mimetype.DetectReader(file)
	if err != nil {
		writeError(w, reqID, http.StatusBadRequest, "certificate could not be read", nil)
		return
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		writeError(w, reqID, http.StatusInternalServerError, "certificate could not be read", nil)
		return
	}

	switch {
	case mimetype.EqualsAny(mtype.String(), skippedTypes...):
		s.logger.Info("certificate verification skipped",
			logging.String("request_id", reqID),
			logging.String("mime_type", mtype.String()),
		)
		writeJSON(w, http.StatusOK, VerifyResponse{VerificationSkipped: true, MimeType: mtype.String()})
		return
	case !mimetype.EqualsAny(mtype.String(), imageTypes...):
		writeError(w, reqID, http.StatusUnsupportedMediaType,
			fmt.Sprintf("unsupported certificate type %s", mtype.String()), nil)
		return
	}

	path, err := s.store(file, mtype.Extension())
	if err != nil {
		s.logger.Error("failed to store certificate", logging.String("request_id", reqID), logging.Err(err))
		writeError(w, reqID, http.StatusInternalServerError, "certificate could not be stored", nil)
		return
	}
	defer s.remove(path)

	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.RequestTimeout)
	defer cancel()

	result, err := s.verifier.VerifyCertificateCredential(ctx, path, credentialID, skillTitle)
	if err != nil {
		var verr *domain.ValidationError
		switch {
		case errors.As(err, &verr):
			writeError(w, reqID, http.StatusBadRequest, "invalid verification request", verr.Errors)
		case errors.Is(err, domain.ErrExtractionFailed) && result != nil:
			writeJSON(w, http.StatusUnprocessableEntity, VerifyResponse{MimeType: mtype.String(), Result: result})
		default:
			writeError(w, reqID, http.StatusInternalServerError, "verification failed", nil)
		}
		return
	}

	writeJSON(w, http.StatusOK, VerifyResponse{MimeType: mtype.String(), Result: result})
}

// store copies an upload to a uniquely named file in the upload directory.
func (s *Server) store(src multipart.File, ext string) (string, error) {
	dir := s.cfg.UploadDir
	if dir == "" {
		dir = os.TempDir()
	}
	path := filepath.Join(dir, "certificate_"+uuid.NewString()+ext)

	dst, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return "", fmt.Errorf("create upload file: %w", err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		_ = dst.Close()
		_ = os.Remove(path)
		return "", fmt.Errorf("write upload file: %w", err)
	}
	if err := dst.Close(); err != nil {
		_ = os.Remove(path)
		return "", fmt.Errorf("close upload file: %w", err)
	}
	return path, nil
}

func (s *Server) remove(path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		s.logger.Warn("failed to remove certificate upload", logging.String("path", path), logging.Err(err))
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, reqID string, status int, msg string, details []string) {
	writeJSON(w, status, ErrorResponse{Error: msg, Details: details, RequestID: reqID})
}

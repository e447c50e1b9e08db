package httpapi

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/adityaahir3105/FinDocs/internal/auth"
	"github.com/adityaahir3105/FinDocs/internal/obs"
	"github.com/adityaahir3105/FinDocs/internal/storage"
	"github.com/adityaahir3105/FinDocs/internal/submission"
)

const multipartMemory = 8 << 20

func (a *API) handleSubmit(w http.ResponseWriter, r *http.Request) {
	sess, ok := auth.SessionFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, msgUnauthenticated)
		return
	}

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, r, http.StatusRequestEntityTooLarge,
				fmt.Sprintf("Total upload size exceeds %dMB limit.", a.submissions.Limits().MaxTotalSize>>20))
			return
		}
		writeError(w, r, http.StatusBadRequest, "Invalid multipart form")
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	in := submission.Input{
		CustomerName:  formValue(r.MultipartForm, "customerName"),
		MobileNumber:  formValue(r.MultipartForm, "mobileNumber"),
		VehicleNumber: formValue(r.MultipartForm, "vehicleNumber"),
		BankName:      formValue(r.MultipartForm, "bankName"),
	}
	docs, err := a.readDocuments(r.MultipartForm)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), a.opts.SubmitTimeout)
	defer cancel()

	provider, err := a.storage.ForAccessToken(ctx, sess.AccessToken())
	if err != nil {
		a.handleStorageError(w, r, err)
		return
	}

	owner := submission.Owner{UserID: sess.Envelope.UserID, Email: sess.Envelope.Email}
	res, err := a.submissions.Submit(ctx, provider, owner, in, docs)
	if err != nil {
		a.handleSubmitError(w, r, err)
		return
	}
	writeData(w, r, http.StatusOK, res)
}

func formValue(form *multipart.Form, key string) string {
	if vs := form.Value[key]; len(vs) > 0 {
		return vs[0]
	}
	return ""
}

// readDocuments accepts at most one file per known document field. Unknown file fields are
// rejected rather than ignored.
func (a *API) readDocuments(form *multipart.Form) ([]submission.Document, error) {
	maxFile := a.submissions.Limits().MaxFileSize
	for key := range form.File {
		if _, ok := submission.ParseDocumentType(key); !ok {
			return nil, fmt.Errorf("Unexpected file field: %s", key)
		}
	}
	docs := make([]submission.Document, 0, len(form.File))
	for _, dt := range submission.DocumentOrder {
		headers := form.File[string(dt)]
		if len(headers) == 0 {
			continue
		}
		if len(headers) > 1 {
			return nil, fmt.Errorf("Only one file allowed for %s", dt)
		}
		fh := headers[0]
		if fh.Size > maxFile {
			return nil, fmt.Errorf("File too large for %s. Maximum size is %dMB.", dt, maxFile>>20)
		}
		f, err := fh.Open()
		if err != nil {
			return nil, fmt.Errorf("Could not read %s", dt)
		}
		data, err := io.ReadAll(io.LimitReader(f, maxFile+1))
		_ = f.Close()
		if err != nil {
			return nil, fmt.Errorf("Could not read %s", dt)
		}
		docs = append(docs, submission.Document{
			Type:     dt,
			MimeType: strings.TrimSpace(fh.Header.Get("Content-Type")),
			Data:     data,
		})
	}
	return docs, nil
}

func (a *API) handleHistory(w http.ResponseWriter, r *http.Request) {
	sess, ok := auth.SessionFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, msgUnauthenticated)
		return
	}
	provider, err := a.storage.ForAccessToken(r.Context(), sess.AccessToken())
	if err != nil {
		a.handleStorageError(w, r, err)
		return
	}
	items, err := storage.ListSubmissions(r.Context(), provider)
	if err != nil {
		a.handleStorageError(w, r, err)
		return
	}
	writeData(w, r, http.StatusOK, items)
}

func (a *API) handleSubmitError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		verr  *submission.ValidationError
		sec   *submission.SecurityRejection
		stage *submission.StageError
	)
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, withRequestID(r, map[string]any{
			"success": false,
			"message": verr.FirstMessage(),
			"errors":  verr.Fields,
		}))
	case errors.As(err, &sec):
		writeError(w, r, http.StatusBadRequest,
			fmt.Sprintf("Invalid file content for %s. File signature does not match declared type.", sec.Document))
	case errors.As(err, &stage):
		code, body := storageFailure(r, stage.Err)
		if stage.FolderID != "" {
			uploaded := stage.Uploaded
			if uploaded == nil {
				uploaded = []string{}
			}
			obs.WithContext(r.Context()).Warn("submission partially stored",
				zap.String("submission_id", stage.SubmissionID),
				zap.String("stage", string(stage.Stage)),
				zap.String("folder_link", stage.FolderLink),
				zap.Strings("uploaded", uploaded))
			// Whatever reached storage stays there; tell the caller where.
			body["submissionId"] = stage.SubmissionID
			body["folderLink"] = stage.FolderLink
			body["uploadedFiles"] = uploaded
			body["stage"] = stage.Stage
		}
		writeJSON(w, code, withRequestID(r, body))
	default:
		a.handleStorageError(w, r, err)
	}
}

// handleStorageError maps provider and deadline failures to status codes.
func (a *API) handleStorageError(w http.ResponseWriter, r *http.Request, err error) {
	code, body := storageFailure(r, err)
	writeJSON(w, code, withRequestID(r, body))
}

func storageFailure(r *http.Request, err error) (int, map[string]any) {
	log := obs.WithContext(r.Context())
	body := map[string]any{"success": false}
	switch {
	case errors.Is(err, storage.ErrUnsupportedOperation):
		body["message"] = "Submission history only available with Google Drive storage"
		return http.StatusBadRequest, body
	case errors.Is(err, storage.ErrProviderAuth):
		log.Warn("storage provider rejected credentials", zap.Error(err))
		body["message"] = "Storage access was rejected. Please login again."
		body["reauthenticate"] = true
		return http.StatusUnauthorized, body
	case errors.Is(err, storage.ErrProviderQuota):
		log.Warn("storage provider quota exceeded", zap.Error(err))
		body["message"] = "Storage provider limit reached. Please try again later."
		body["retryable"] = true
		return http.StatusTooManyRequests, body
	case errors.Is(err, context.DeadlineExceeded):
		log.Warn("submission timed out", zap.Error(err))
		body["message"] = "Storage provider did not respond in time"
		return http.StatusGatewayTimeout, body
	case errors.Is(err, storage.ErrProviderIO):
		log.Error("storage provider failure", zap.Error(err))
		body["message"] = "Failed to process submission. Please try again."
		return http.StatusBadGateway, body
	default:
		log.Error("request failed", zap.Error(err))
		body["message"] = "Failed to process submission. Please try again."
		return http.StatusInternalServerError, body
	}
}

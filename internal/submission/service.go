package submission

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/adityaahir3105/FinDocs/internal/audit"
	"github.com/adityaahir3105/FinDocs/internal/ids"
	"github.com/adityaahir3105/FinDocs/internal/obs"
	"github.com/adityaahir3105/FinDocs/internal/storage"
)

// MetadataFileName is the record written next to the documents.
const MetadataFileName = "submission.json"

// Service runs a submission from validation to the metadata record.
type Service struct {
	validator Validator
	limits    Limits
	now       func() time.Time
	newID     func() string
}

// Option configures Service.
type Option func(*Service)

// WithLimits overrides the document size limits.
func WithLimits(l Limits) Option {
	return func(s *Service) { s.limits = l.withDefaults() }
}

// WithClock overrides the time source.
func WithClock(fn func() time.Time) Option {
	return func(s *Service) {
		if fn != nil {
			s.now = fn
		}
	}
}

// WithIDGenerator overrides submission id generation.
func WithIDGenerator(fn func() string) Option {
	return func(s *Service) {
		if fn != nil {
			s.newID = fn
		}
	}
}

func NewService(opts ...Option) *Service {
	s := &Service{
		limits: DefaultLimits(),
		now:    time.Now,
		newID:  ids.SubmissionID,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Limits returns the configured size limits.
func (s *Service) Limits() Limits { return s.limits }

// Submit validates input and docs, then creates the folder, uploads the present documents in
// DocumentOrder and writes the metadata record when p supports it. Nothing is created when
// validation fails. Failures after the folder exists return *StageError and leave what was
// created in place. ctx is checked before every document.
func (s *Service) Submit(ctx context.Context, p storage.Provider, owner Owner, in Input, docs []Document) (Result, error) {
	log := obs.WithContext(ctx).With(zap.String("provider", p.Name()))

	normalized, err := s.validator.ValidateInput(in)
	var verr *ValidationError
	if err != nil && !errors.As(err, &verr) {
		return Result{}, err
	}
	if derr := ValidateDocuments(docs, s.limits); derr != nil {
		var sec *SecurityRejection
		if errors.As(derr, &sec) {
			obs.SubmissionOutcome("security")
			audit.Warn(ctx, "submission.security_rejection", map[string]any{
				"user_id":       owner.UserID,
				"document_type": string(sec.Document),
				"declared_type": sec.DeclaredType,
			})
			return Result{}, sec
		}
		var dverr *ValidationError
		if errors.As(derr, &dverr) {
			verr = mergeValidation(verr, dverr)
		} else {
			return Result{}, derr
		}
	}
	if verr != nil {
		obs.SubmissionOutcome("validation")
		log.Info("submission rejected by validation", zap.Strings("fields", fieldNames(verr)))
		return Result{}, verr
	}

	byType := make(map[DocumentType]Document, len(docs))
	for _, d := range docs {
		byType[d.Type] = d
	}

	id := s.newID()
	at := s.now().UTC()
	log = log.With(zap.String("submission_id", id))
	log.Debug("submission state", zap.String("stage", string(StageValidating)))

	folder, err := p.CreateFolder(ctx, storage.FolderName(normalized.CustomerName, normalized.VehicleNumber, at, id))
	if err != nil {
		obs.SubmissionOutcome("failed")
		log.Warn("folder creation failed", zap.Error(err))
		return Result{}, &StageError{Stage: StageFolderCreated, SubmissionID: id, Err: err}
	}
	log.Debug("submission state", zap.String("stage", string(StageFolderCreated)), zap.String("folder_id", folder.ID))

	uploaded := make([]string, 0, len(docs))
	present := make([]DocumentType, 0, len(docs))
	fail := func(stage Stage, err error) (Result, error) {
		obs.SubmissionOutcome("partial")
		log.Warn("submission failed after folder creation",
			zap.String("stage", string(stage)),
			zap.Strings("uploaded", uploaded),
			zap.Error(err))
		_ = audit.LogEvent(ctx, "submission.partial_failure", map[string]any{
			"submission_id": id,
			"stage":         string(stage),
			"folder_link":   folder.Link,
			"uploaded":      uploaded,
		})
		return Result{}, &StageError{
			Stage:        stage,
			SubmissionID: id,
			FolderID:     folder.ID,
			FolderLink:   folder.Link,
			Uploaded:     append([]string(nil), uploaded...),
			Err:          err,
		}
	}

	for _, dt := range DocumentOrder {
		d, ok := byType[dt]
		if !ok {
			continue
		}
		if err := ctx.Err(); err != nil {
			return fail(StageUploadingDocuments, err)
		}
		name := CanonicalFileName(dt, d.MimeType)
		if _, err := p.UploadFile(ctx, folder.ID, name, d.MimeType, d.Data); err != nil {
			return fail(StageUploadingDocuments, err)
		}
		obs.DocumentUploaded(string(dt))
		uploaded = append(uploaded, name)
		present = append(present, dt)
		log.Debug("submission state", zap.String("stage", string(StageUploadingDocuments)), zap.String("file", name))
	}

	ts := formatTimestamp(at)
	if rw, ok := p.(storage.RecordWriter); ok {
		if err := ctx.Err(); err != nil {
			return fail(StageMetadataWritten, err)
		}
		rec := Record{
			SubmissionID:      id,
			CustomerName:      normalized.CustomerName,
			MobileNumber:      normalized.MobileNumber,
			VehicleNumber:     normalized.VehicleNumber,
			BankName:          normalized.BankName,
			Timestamp:         ts,
			UploadedFiles:     uploaded,
			DocumentsUploaded: present,
			UserEmail:         owner.Email,
		}
		if _, err := rw.UploadRecord(ctx, folder.ID, MetadataFileName, rec); err != nil {
			return fail(StageMetadataWritten, err)
		}
		log.Debug("submission state", zap.String("stage", string(StageMetadataWritten)))
	}

	obs.SubmissionOutcome("done")
	log.Info("submission completed", zap.Int("documents", len(uploaded)))
	_ = audit.LogEvent(ctx, "submission.created", map[string]any{
		"submission_id": id,
		"provider":      p.Name(),
		"documents":     len(uploaded),
		"user_email":    owner.Email,
	})
	log.Debug("submission state", zap.String("stage", string(StageDone)))

	return Result{
		SubmissionID:  id,
		FolderLink:    folder.Link,
		UploadedFiles: uploaded,
		CustomerName:  normalized.CustomerName,
		VehicleNumber: normalized.VehicleNumber,
		BankName:      normalized.BankName,
		Timestamp:     ts,
	}, nil
}

func mergeValidation(a, b *ValidationError) *ValidationError {
	if a == nil {
		return b
	}
	for k, msgs := range b.Fields {
		for _, m := range msgs {
			a.add(k, m)
		}
	}
	return a
}

func fieldNames(v *ValidationError) []string {
	out := make([]string, 0, len(v.Fields))
	for k := range v.Fields {
		out = append(out, k)
	}
	return out
}

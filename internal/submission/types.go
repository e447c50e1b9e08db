// Package submission validates customer records with their documents and stores them as one
// folder per submission through a storage.Provider.
package submission

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// DocumentType is one of the five supported documents.
type DocumentType string

const (
	DocAadhaar   DocumentType = "aadhaar"
	DocPAN       DocumentType = "pan"
	DocRC        DocumentType = "rc"
	DocInvoice   DocumentType = "invoice"
	DocInsurance DocumentType = "insurance"
)

// DocumentOrder is the fixed upload order.
var DocumentOrder = []DocumentType{DocAadhaar, DocPAN, DocRC, DocInvoice, DocInsurance}

var canonicalLabels = map[DocumentType]string{
	DocAadhaar:   "Aadhaar",
	DocPAN:       "PAN",
	DocRC:        "RC",
	DocInvoice:   "Invoice",
	DocInsurance: "Insurance",
}

// ParseDocumentType maps a form field name to its document type.
func ParseDocumentType(s string) (DocumentType, bool) {
	dt := DocumentType(s)
	_, ok := canonicalLabels[dt]
	return dt, ok
}

// Label is the canonical filename stem, e.g. "Aadhaar".
func (d DocumentType) Label() string { return canonicalLabels[d] }

const (
	MimeJPEG = "image/jpeg"
	MimePNG  = "image/png"
	MimePDF  = "application/pdf"
)

var extensions = map[string]string{
	MimeJPEG: ".jpg",
	MimePNG:  ".png",
	MimePDF:  ".pdf",
}

// CanonicalFileName returns e.g. "Aadhaar.jpg" for an aadhaar JPEG.
func CanonicalFileName(d DocumentType, mimeType string) string {
	return d.Label() + extensions[mimeType]
}

// Input holds the four customer fields as received from the form.
type Input struct {
	CustomerName  string `json:"customerName" validate:"required,min=2,max=100"`
	MobileNumber  string `json:"mobileNumber" validate:"required,mobile_in"`
	VehicleNumber string `json:"vehicleNumber" validate:"required,plate_in"`
	BankName      string `json:"bankName" validate:"required,min=2,max=100"`
}

// Document is one uploaded file.
type Document struct {
	Type     DocumentType
	MimeType string
	Data     []byte
}

// Owner identifies the submitting user.
type Owner struct {
	UserID string
	Email  string
}

// Result is returned to the caller after a successful submission.
type Result struct {
	SubmissionID  string   `json:"submissionId"`
	FolderLink    string   `json:"folderLink"`
	UploadedFiles []string `json:"uploadedFiles"`
	CustomerName  string   `json:"customerName"`
	VehicleNumber string   `json:"vehicleNumber"`
	BankName      string   `json:"bankName"`
	Timestamp     string   `json:"timestamp"`
}

// Record is the metadata file stored next to the documents.
type Record struct {
	SubmissionID      string         `json:"submissionId"`
	CustomerName      string         `json:"customerName"`
	MobileNumber      string         `json:"mobileNumber"`
	VehicleNumber     string         `json:"vehicleNumber"`
	BankName          string         `json:"bankName"`
	Timestamp         string         `json:"timestamp"`
	UploadedFiles     []string       `json:"uploadedFiles"`
	DocumentsUploaded []DocumentType `json:"documentsUploaded"`
	UserEmail         string         `json:"userEmail"`
}

const timestampLayout = "2006-01-02T15:04:05.000Z07:00"

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

// Stage names a step of the submission sequence.
type Stage string

const (
	StageValidating         Stage = "validating"
	StageFolderCreated      Stage = "folder_created"
	StageUploadingDocuments Stage = "uploading_documents"
	StageMetadataWritten    Stage = "metadata_written"
	StageDone               Stage = "done"
)

// ValidationError carries per-field messages keyed by JSON field or document name.
type ValidationError struct {
	Fields map[string][]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+strings.Join(e.Fields[k], "; "))
	}
	return "submission: validation failed: " + strings.Join(parts, ", ")
}

func (e *ValidationError) add(field, msg string) {
	if e.Fields == nil {
		e.Fields = map[string][]string{}
	}
	e.Fields[field] = append(e.Fields[field], msg)
}

// FirstMessage returns one message suitable for a summary line.
func (e *ValidationError) FirstMessage() string {
	for _, doc := range DocumentOrder {
		if msgs := e.Fields[string(doc)]; len(msgs) > 0 {
			return msgs[0]
		}
	}
	for _, k := range []string{"customerName", "mobileNumber", "vehicleNumber", "bankName", "documents"} {
		if msgs := e.Fields[k]; len(msgs) > 0 {
			return msgs[0]
		}
	}
	return "Validation failed"
}

// SecurityRejection means a document's content does not match its declared type.
type SecurityRejection struct {
	Document     DocumentType
	DeclaredType string
}

func (e *SecurityRejection) Error() string {
	return fmt.Sprintf("submission: content of %s does not match declared type %s", e.Document, e.DeclaredType)
}

// StageError reports a provider failure after validation, with whatever had been created.
type StageError struct {
	Stage        Stage
	SubmissionID string
	FolderID     string
	FolderLink   string
	Uploaded     []string
	Err          error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("submission %s: %s: %v", e.SubmissionID, e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

package submission

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adityaahir3105/FinDocs/internal/storage"
)

type call struct {
	op       string
	folderID string
	name     string
	mimeType string
}

// fakeProvider records every call and can fail the n-th upload.
type fakeProvider struct {
	mu        sync.Mutex
	calls     []call
	records   map[string]any
	failAfter int
	failErr   error
	onUpload  func()
}

func (f *fakeProvider) Name() string { return "fake" }

func (f *fakeProvider) CreateFolder(_ context.Context, name string) (storage.Folder, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call{op: "folder", name: name})
	return storage.Folder{ID: "folder-1", Name: name, Link: "https://drive/folder-1"}, nil
}

func (f *fakeProvider) UploadFile(_ context.Context, folderID, name, mimeType string, _ []byte) (storage.File, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	uploads := 0
	for _, c := range f.calls {
		if c.op == "file" {
			uploads++
		}
	}
	if f.failErr != nil && uploads == f.failAfter {
		return storage.File{}, f.failErr
	}
	f.calls = append(f.calls, call{op: "file", folderID: folderID, name: name, mimeType: mimeType})
	if f.onUpload != nil {
		f.onUpload()
	}
	return storage.File{ID: name, Name: name}, nil
}

type recordingProvider struct {
	fakeProvider
}

func (r *recordingProvider) UploadRecord(_ context.Context, folderID, name string, record any) (storage.File, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, call{op: "record", folderID: folderID, name: name})
	if r.records == nil {
		r.records = map[string]any{}
	}
	r.records[name] = record
	return storage.File{ID: name, Name: name}, nil
}

func fixedService() *Service {
	return NewService(
		WithClock(func() time.Time { return time.Date(2024, 5, 6, 7, 8, 9, 123456789, time.UTC) }),
		WithIDGenerator(func() string { return "AB12CD34" }),
	)
}

func TestSubmitWithoutDocumentsWritesFolderAndRecord(t *testing.T) {
	p := &recordingProvider{}
	res, err := fixedService().Submit(context.Background(), p, Owner{UserID: "u1", Email: "u@example.com"}, validInput(), nil)
	require.NoError(t, err)

	require.Len(t, p.calls, 2)
	assert.Equal(t, "folder", p.calls[0].op)
	assert.Equal(t, "Ravi_Kumar_MH12AB1234_20240506_AB12CD34", p.calls[0].name)
	assert.Equal(t, "record", p.calls[1].op)
	assert.Equal(t, MetadataFileName, p.calls[1].name)

	assert.NotNil(t, res.UploadedFiles)
	assert.Empty(t, res.UploadedFiles)
	assert.Equal(t, "AB12CD34", res.SubmissionID)
	assert.Equal(t, "https://drive/folder-1", res.FolderLink)
	assert.Equal(t, "2024-05-06T07:08:09.123Z", res.Timestamp)

	rec := p.records[MetadataFileName].(Record)
	assert.Equal(t, "u@example.com", rec.UserEmail)
	assert.Equal(t, "9876543210", rec.MobileNumber)
	assert.Empty(t, rec.DocumentsUploaded)
}

func TestSubmitUploadsInFixedOrder(t *testing.T) {
	p := &recordingProvider{}
	docs := []Document{
		{Type: DocInsurance, MimeType: MimePDF, Data: []byte("%PDF-1")},
		{Type: DocAadhaar, MimeType: MimeJPEG, Data: []byte{0xFF, 0xD8, 0xFF, 0xDB}},
		{Type: DocRC, MimeType: MimePNG, Data: pngOf(8)},
	}
	in := validInput()
	in.VehicleNumber = "mh 12 ab 1234"

	res, err := fixedService().Submit(context.Background(), p, Owner{Email: "u@example.com"}, in, docs)
	require.NoError(t, err)
	assert.Equal(t, []string{"Aadhaar.jpg", "RC.png", "Insurance.pdf"}, res.UploadedFiles)
	assert.Equal(t, "MH12AB1234", res.VehicleNumber)

	var uploads []string
	for _, c := range p.calls {
		if c.op == "file" {
			assert.Equal(t, "folder-1", c.folderID)
			uploads = append(uploads, c.name)
		}
	}
	assert.Equal(t, res.UploadedFiles, uploads)

	rec := p.records[MetadataFileName].(Record)
	assert.Equal(t, []DocumentType{DocAadhaar, DocRC, DocInsurance}, rec.DocumentsUploaded)
}

func TestSubmitSkipsRecordForProvidersWithoutRecordWriter(t *testing.T) {
	p := &fakeProvider{}
	_, err := fixedService().Submit(context.Background(), p, Owner{}, validInput(),
		[]Document{{Type: DocPAN, MimeType: MimePDF, Data: []byte("%PDF-1")}})
	require.NoError(t, err)
	require.Len(t, p.calls, 2)
	assert.Equal(t, "PAN.pdf", p.calls[1].name)
}

func TestSubmitRejectsBeforeAnyProviderCall(t *testing.T) {
	t.Run("validation", func(t *testing.T) {
		p := &recordingProvider{}
		in := validInput()
		in.MobileNumber = "1234567890"
		_, err := fixedService().Submit(context.Background(), p, Owner{}, in, nil)
		var verr *ValidationError
		require.True(t, errors.As(err, &verr))
		assert.Empty(t, p.calls)
	})

	t.Run("security rejection wins over field errors", func(t *testing.T) {
		p := &recordingProvider{}
		in := validInput()
		in.BankName = ""
		_, err := fixedService().Submit(context.Background(), p, Owner{UserID: "u1"}, in,
			[]Document{{Type: DocAadhaar, MimeType: MimeJPEG, Data: []byte("%PDF-1.4")}})
		var sec *SecurityRejection
		require.True(t, errors.As(err, &sec))
		assert.Empty(t, p.calls)
	})

	t.Run("aggregate size", func(t *testing.T) {
		p := &recordingProvider{}
		svc := NewService(WithLimits(Limits{MaxFileSize: 100, MaxTotalSize: 150}))
		docs := []Document{
			{Type: DocPAN, MimeType: MimePNG, Data: pngOf(99)},
			{Type: DocRC, MimeType: MimePNG, Data: pngOf(99)},
		}
		_, err := svc.Submit(context.Background(), p, Owner{}, validInput(), docs)
		var verr *ValidationError
		require.True(t, errors.As(err, &verr))
		assert.Empty(t, p.calls)
	})
}

func TestSubmitPartialFailureKeepsUploadedFiles(t *testing.T) {
	quota := &storage.ProviderError{Provider: "fake", Op: "upload_file", Kind: storage.ErrProviderQuota, Err: errors.New("slow down")}
	p := &recordingProvider{fakeProvider{failAfter: 1, failErr: quota}}
	docs := []Document{
		{Type: DocAadhaar, MimeType: MimeJPEG, Data: []byte{0xFF, 0xD8, 0xFF, 0xDB}},
		{Type: DocPAN, MimeType: MimePDF, Data: []byte("%PDF-1")},
		{Type: DocRC, MimeType: MimePDF, Data: []byte("%PDF-1")},
	}

	_, err := fixedService().Submit(context.Background(), p, Owner{}, validInput(), docs)
	var stage *StageError
	require.True(t, errors.As(err, &stage))
	assert.Equal(t, StageUploadingDocuments, stage.Stage)
	assert.Equal(t, []string{"Aadhaar.jpg"}, stage.Uploaded)
	assert.Equal(t, "https://drive/folder-1", stage.FolderLink)
	assert.ErrorIs(t, err, storage.ErrProviderQuota)
	assert.Nil(t, p.records, "no metadata after a failed upload")
}

func TestSubmitStopsOnCancellationBetweenDocuments(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	p := &recordingProvider{}
	p.onUpload = cancel
	docs := []Document{
		{Type: DocAadhaar, MimeType: MimeJPEG, Data: []byte{0xFF, 0xD8, 0xFF, 0xDB}},
		{Type: DocPAN, MimeType: MimePDF, Data: []byte("%PDF-1")},
	}

	_, err := fixedService().Submit(ctx, p, Owner{}, validInput(), docs)
	var stage *StageError
	require.True(t, errors.As(err, &stage))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, []string{"Aadhaar.jpg"}, stage.Uploaded)
}

package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

const (
	folderMimeType = "application/vnd.google-apps.folder"

	appPropertyCreatedBy = "createdBy"
	appPropertyType      = "type"
	appName              = "FinDocs"
	appTypeSubmission    = "submission"

	listPageSize = 100
)

var submissionFolderQuery = fmt.Sprintf(
	"mimeType='%s' and appProperties has { key='%s' and value='%s' } and trashed=false",
	folderMimeType, appPropertyCreatedBy, appName,
)

// Drive stores submissions in the user's Google Drive through the delegated access token.
type Drive struct {
	svc *drive.Service
}

// NewDrive builds a Drive client bound to one access token. Extra options are appended after
// the token source, so tests may replace the transport and endpoint.
func NewDrive(ctx context.Context, accessToken string, opts ...option.ClientOption) (*Drive, error) {
	if strings.TrimSpace(accessToken) == "" {
		return nil, &ProviderError{Provider: ProviderDrive, Op: "init", Kind: ErrProviderAuth, Err: errors.New("missing access token")}
	}
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken, TokenType: "Bearer"})
	all := append([]option.ClientOption{option.WithTokenSource(ts)}, opts...)
	svc, err := drive.NewService(ctx, all...)
	if err != nil {
		return nil, newProviderError(ProviderDrive, "init", ErrProviderIO, err)
	}
	return &Drive{svc: svc}, nil
}

func (d *Drive) Name() string { return ProviderDrive }

func (d *Drive) CreateFolder(ctx context.Context, name string) (Folder, error) {
	meta := &drive.File{
		Name:     name,
		MimeType: folderMimeType,
		AppProperties: map[string]string{
			appPropertyCreatedBy: appName,
			appPropertyType:      appTypeSubmission,
		},
	}
	f, err := d.svc.Files.Create(meta).Fields("id, name, webViewLink").Context(ctx).Do()
	if err != nil {
		return Folder{}, classifyDriveError("create_folder", err)
	}
	link := f.WebViewLink
	if link == "" {
		link = "https://drive.google.com/drive/folders/" + f.Id
	}
	return Folder{ID: f.Id, Name: f.Name, Link: link}, nil
}

func (d *Drive) UploadFile(ctx context.Context, folderID, fileName, mimeType string, data []byte) (File, error) {
	meta := &drive.File{
		Name:    fileName,
		Parents: []string{folderID},
	}
	f, err := d.svc.Files.Create(meta).
		Media(bytes.NewReader(data), googleapi.ContentType(mimeType)).
		Fields("id, name, webViewLink").
		Context(ctx).
		Do()
	if err != nil {
		return File{}, classifyDriveError("upload_file", err)
	}
	link := f.WebViewLink
	if link == "" {
		link = "https://drive.google.com/file/d/" + f.Id
	}
	return File{ID: f.Id, Name: f.Name, Link: link}, nil
}

// UploadRecord stores record as indented JSON.
func (d *Drive) UploadRecord(ctx context.Context, folderID, name string, record any) (File, error) {
	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return File{}, fmt.Errorf("storage: encode record: %w", err)
	}
	return d.UploadFile(ctx, folderID, name, "application/json", data)
}

// ListSubmissionFolders returns the newest folders tagged by this application. Only the first
// page is read.
func (d *Drive) ListSubmissionFolders(ctx context.Context) ([]FolderInfo, error) {
	res, err := d.svc.Files.List().
		Q(submissionFolderQuery).
		OrderBy("createdTime desc").
		PageSize(listPageSize).
		Fields("files(id, name, webViewLink, createdTime, appProperties)").
		Context(ctx).
		Do()
	if err != nil {
		return nil, classifyDriveError("list_folders", err)
	}
	out := make([]FolderInfo, 0, len(res.Files))
	for _, f := range res.Files {
		info := FolderInfo{
			ID:            f.Id,
			Name:          f.Name,
			Link:          f.WebViewLink,
			AppProperties: f.AppProperties,
		}
		if info.Link == "" {
			info.Link = "https://drive.google.com/drive/folders/" + f.Id
		}
		if ts, err := time.Parse(time.RFC3339, f.CreatedTime); err == nil {
			info.CreatedAt = ts.UTC()
		}
		out = append(out, info)
	}
	return out, nil
}

var quotaReasons = map[string]bool{
	"storageQuotaExceeded":  true,
	"userRateLimitExceeded": true,
	"rateLimitExceeded":     true,
	"quotaExceeded":         true,
	"dailyLimitExceeded":    true,
}

func classifyDriveError(op string, err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		switch {
		case gerr.Code == http.StatusUnauthorized:
			return newProviderError(ProviderDrive, op, ErrProviderAuth, err)
		case gerr.Code == http.StatusTooManyRequests:
			return newProviderError(ProviderDrive, op, ErrProviderQuota, err)
		case gerr.Code == http.StatusForbidden:
			for _, item := range gerr.Errors {
				if quotaReasons[item.Reason] {
					return newProviderError(ProviderDrive, op, ErrProviderQuota, err)
				}
			}
		}
		return newProviderError(ProviderDrive, op, ErrProviderIO, err)
	}
	var rerr *oauth2.RetrieveError
	if errors.As(err, &rerr) {
		return newProviderError(ProviderDrive, op, ErrProviderAuth, err)
	}
	return newProviderError(ProviderDrive, op, ErrProviderIO, err)
}

package storage

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	maxCustomerNameLen = 50
	fallbackCustomer   = "Customer"
	folderDateLayout   = "20060102"
	createdTimeLayout  = "2006-01-02T15:04:05.000Z07:00"
)

var (
	customerDisallowed = regexp.MustCompile(`[^A-Za-z0-9\s\-_]`)
	customerSeparators = regexp.MustCompile(`[\s_]+`)
	vehicleDisallowed  = regexp.MustCompile(`[^A-Za-z0-9]`)
)

// Summary is one entry of a user's submission history.
type Summary struct {
	SubmissionID string `json:"submissionId"`
	FolderName   string `json:"folderName"`
	FolderID     string `json:"folderId"`
	FolderLink   string `json:"folderLink"`
	// CreatedAt is empty when the provider reported no usable creation time.
	CreatedAt string `json:"createdTime"`
}

// SanitizeCustomerName projects name onto letters, digits and hyphens joined by single
// underscores, at most 50 characters long. Applying it twice gives the same result.
func SanitizeCustomerName(name string) string {
	s := customerDisallowed.ReplaceAllString(name, "")
	s = customerSeparators.ReplaceAllString(s, "_")
	s = strings.Trim(s, "_")
	if utf8.RuneCountInString(s) > maxCustomerNameLen {
		s = string([]rune(s)[:maxCustomerNameLen])
		s = strings.TrimRight(s, "_")
	}
	if s == "" {
		return fallbackCustomer
	}
	return s
}

// SanitizeVehicleNumber keeps only ASCII letters and digits.
func SanitizeVehicleNumber(v string) string {
	return vehicleDisallowed.ReplaceAllString(v, "")
}

// FolderName builds name_vehicle_YYYYMMDD_ID. The submission id is always the final
// underscore-separated segment.
func FolderName(customer, vehicle string, at time.Time, submissionID string) string {
	return strings.Join([]string{
		SanitizeCustomerName(customer),
		SanitizeVehicleNumber(vehicle),
		at.UTC().Format(folderDateLayout),
		submissionID,
	}, "_")
}

// SubmissionIDFromFolder extracts the id from a folder name, falling back to the provider's
// folder id when the name carries none.
func SubmissionIDFromFolder(name, fallbackID string) string {
	i := strings.LastIndex(name, "_")
	if i < 0 || i == len(name)-1 {
		return fallbackID
	}
	return name[i+1:]
}

// ListSubmissions derives the submission history from the provider's folder listing.
func ListSubmissions(ctx context.Context, p Provider) ([]Summary, error) {
	lister, ok := p.(SubmissionLister)
	if !ok {
		return nil, fmt.Errorf("%w: %s cannot list submissions", ErrUnsupportedOperation, p.Name())
	}
	folders, err := lister.ListSubmissionFolders(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Summary, 0, len(folders))
	for _, f := range folders {
		out = append(out, Summary{
			SubmissionID: SubmissionIDFromFolder(f.Name, f.ID),
			FolderName:   f.Name,
			FolderID:     f.ID,
			FolderLink:   f.Link,
			CreatedAt:    formatCreatedTime(f.CreatedAt),
		})
	}
	return out, nil
}

func formatCreatedTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(createdTimeLayout)
}

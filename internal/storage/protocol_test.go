package storage

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeCustomerName(t *testing.T) {
	cases := map[string]string{
		"Ravi Kumar":        "Ravi_Kumar",
		"  Ravi   Kumar  ":  "Ravi_Kumar",
		"O'Brien, Jr.":      "OBrien_Jr",
		"Anne-Marie\tSmith": "Anne-Marie_Smith",
		"@@@":               "Customer",
		"":                  "Customer",
		"a__b":              "a_b",
		"Ünïcödé Name":      "ncd_Name",
	}
	for in, want := range cases {
		assert.Equal(t, want, SanitizeCustomerName(in), in)
	}
}

func TestSanitizeCustomerNameIsIdempotentAndBounded(t *testing.T) {
	inputs := []string{
		"Ravi Kumar",
		strings.Repeat("abcde ", 30),
		strings.Repeat("x", 49) + " y",
		"_leading and trailing_",
		"tabs\tand\nnewlines",
		"!!",
	}
	for _, in := range inputs {
		once := SanitizeCustomerName(in)
		assert.LessOrEqual(t, len(once), 50, in)
		assert.NotEmpty(t, once)
		assert.Equal(t, once, SanitizeCustomerName(once), in)
	}
}

func TestSanitizeVehicleNumber(t *testing.T) {
	assert.Equal(t, "MH12AB1234", SanitizeVehicleNumber("MH-12 AB/1234"))
	assert.Equal(t, "", SanitizeVehicleNumber("--"))
}

func TestFolderNameEmbedsSubmissionID(t *testing.T) {
	at := time.Date(2024, 3, 9, 23, 30, 0, 0, time.FixedZone("IST", 5*3600+1800))
	name := FolderName("Ravi Kumar", "MH12AB1234", at, "AB12CD34")
	assert.Equal(t, "Ravi_Kumar_MH12AB1234_20240309_AB12CD34", name)
	assert.Equal(t, "AB12CD34", SubmissionIDFromFolder(name, "folder-id"))
}

func TestSubmissionIDFromFolder(t *testing.T) {
	assert.Equal(t, "ID9", SubmissionIDFromFolder("a_b_20240101_ID9", "fid"))
	assert.Equal(t, "fid", SubmissionIDFromFolder("nounderscore", "fid"))
	assert.Equal(t, "fid", SubmissionIDFromFolder("trailing_", "fid"))
}

type listingProvider struct {
	Local
	folders []FolderInfo
	err     error
}

func (p *listingProvider) Name() string { return "listing" }

func (p *listingProvider) ListSubmissionFolders(context.Context) ([]FolderInfo, error) {
	return p.folders, p.err
}

func TestListSubmissions(t *testing.T) {
	ctx := context.Background()

	t.Run("unsupported", func(t *testing.T) {
		l, err := NewLocal(t.TempDir())
		require.NoError(t, err)
		_, err = ListSubmissions(ctx, l)
		require.ErrorIs(t, err, ErrUnsupportedOperation)
	})

	t.Run("empty", func(t *testing.T) {
		got, err := ListSubmissions(ctx, &listingProvider{})
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Empty(t, got)
	})

	t.Run("order and extraction", func(t *testing.T) {
		p := &listingProvider{folders: []FolderInfo{
			{ID: "f2", Name: "B_X1_20240202_NEW", Link: "l2"},
			{ID: "f1", Name: "legacy", Link: "l1"},
		}}
		got, err := ListSubmissions(ctx, p)
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, "NEW", got[0].SubmissionID)
		assert.Equal(t, "f1", got[1].SubmissionID)
		assert.Equal(t, "l1", got[1].FolderLink)
	})

	t.Run("created time", func(t *testing.T) {
		p := &listingProvider{folders: []FolderInfo{
			{ID: "f2", Name: "B_X1_20240202_NEW", CreatedAt: time.Date(2024, 2, 2, 10, 0, 0, 0, time.UTC)},
			{ID: "f1", Name: "A_X1_20240101_OLD"},
		}}
		got, err := ListSubmissions(ctx, p)
		require.NoError(t, err)
		assert.Equal(t, "2024-02-02T10:00:00.000Z", got[0].CreatedAt)
		assert.Empty(t, got[1].CreatedAt, "unknown creation time is blank, never the zero date")

		raw, err := json.Marshal(got[1])
		require.NoError(t, err)
		assert.Contains(t, string(raw), `"createdTime":""`)
	})

	t.Run("provider error surfaces", func(t *testing.T) {
		boom := &ProviderError{Provider: "listing", Op: "list_folders", Kind: ErrProviderQuota, Err: errors.New("slow down")}
		_, err := ListSubmissions(ctx, &listingProvider{err: boom})
		require.ErrorIs(t, err, ErrProviderQuota)
	})
}

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"net/textproto"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

// 1x1 transparent PNG.
var tinyPNG = []byte{
	0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a, 0x00, 0x00, 0x00, 0x0d,
	0x49, 0x48, 0x44, 0x52, 0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x01,
	0x08, 0x06, 0x00, 0x00, 0x00, 0x1f, 0x15, 0xc4, 0x89, 0x00, 0x00, 0x00,
	0x0d, 0x49, 0x44, 0x41, 0x54, 0x78, 0x9c, 0x63, 0x00, 0x01, 0x00, 0x00,
	0x05, 0x00, 0x01, 0x0d, 0x0a, 0x2d, 0xb4, 0x00, 0x00, 0x00, 0x00, 0x49,
	0x45, 0x4e, 0x44, 0xae, 0x42, 0x60, 0x82,
}

var (
	baseURL string
	email   string
	timeout time.Duration
)

var rootCmd = &cobra.Command{
	Use:   "smoke-submit",
	Short: "End-to-end check of the submission API against local storage",
	Long: `smoke-submit signs in through the development login, uploads a one-pixel
PNG as the Aadhaar document and verifies the response. The server must run
with DEV_LOGIN_ENABLED=true outside production.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
		defer cancel()
		return run(ctx)
	},
}

func init() {
	rootCmd.Flags().StringVar(&baseURL, "url", envOr("FINDOCS_URL", "http://localhost:3001"), "API base URL")
	rootCmd.Flags().StringVar(&email, "email", "smoke@example.com", "development login email")
	rootCmd.Flags().DurationVar(&timeout, "timeout", 30*time.Second, "overall deadline")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type submitResult struct {
	SubmissionID  string   `json:"submissionId"`
	FolderLink    string   `json:"folderLink"`
	UploadedFiles []string `json:"uploadedFiles"`
}

func run(ctx context.Context) error {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return err
	}
	client := &http.Client{Jar: jar}
	base := strings.TrimRight(baseURL, "/")

	login, _ := json.Marshal(map[string]string{"email": email, "name": "Smoke Test"})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, base+"/api/auth/dev", bytes.NewReader(login))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if _, err := call(client, req); err != nil {
		return fmt.Errorf("dev login: %w", err)
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range map[string]string{
		"customerName":  "Smoke Test",
		"mobileNumber":  "9876543210",
		"vehicleNumber": "KA01AB1234",
		"bankName":      "Smoke Bank",
	} {
		if err := mw.WriteField(k, v); err != nil {
			return err
		}
	}
	h := textproto.MIMEHeader{}
	h.Set("Content-Disposition", `form-data; name="aadhaar"; filename="aadhaar.png"`)
	h.Set("Content-Type", "image/png")
	part, err := mw.CreatePart(h)
	if err != nil {
		return err
	}
	if _, err := part.Write(tinyPNG); err != nil {
		return err
	}
	if err := mw.Close(); err != nil {
		return err
	}

	req, err = http.NewRequestWithContext(ctx, http.MethodPost, base+"/api/submit", &body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	env, err := call(client, req)
	if err != nil {
		return fmt.Errorf("submit: %w", err)
	}

	var res submitResult
	if err := json.Unmarshal(env.Data, &res); err != nil {
		return fmt.Errorf("decode result: %w", err)
	}
	if len(res.UploadedFiles) != 1 || res.UploadedFiles[0] != "Aadhaar.png" {
		return fmt.Errorf("unexpected uploaded files %v", res.UploadedFiles)
	}
	fmt.Printf("smoke submit passed: submission=%s folder=%s\n", res.SubmissionID, res.FolderLink)
	return nil
}

func call(client *http.Client, req *http.Request) (envelope, error) {
	resp, err := client.Do(req)
	if err != nil {
		return envelope{}, err
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return envelope{}, err
	}
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return envelope{}, fmt.Errorf("status %d: %s", resp.StatusCode, raw)
	}
	if resp.StatusCode != http.StatusOK || !env.Success {
		return env, fmt.Errorf("status %d: %s", resp.StatusCode, env.Message)
	}
	return env, nil
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

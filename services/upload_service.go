package services

import (
	"context"
	"crypto/sha1"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"event-hub/config"
	"event-hub/internal/status"
	"event-hub/utils"
)

// UploadService forwards in-memory images to the Cloudinary REST API and
// hands back the hosted URL.
type UploadService struct {
	baseURL   string
	cloudName string
	apiKey    string
	apiSecret string
	folder    string

	breaker *utils.CircuitBreaker
	hc      *http.Client
}

func NewUploadService(cfg *config.Config) *UploadService {
	return &UploadService{
		baseURL:   cfg.CloudinaryBaseURL,
		cloudName: cfg.CloudinaryCloudName,
		apiKey:    cfg.CloudinaryAPIKey,
		apiSecret: cfg.CloudinaryAPISecret,
		folder:    cfg.CloudinaryFolder,
		breaker:   utils.NewCircuitBreaker("cloudinary"),
		hc: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Upload sends a single file as a base64 data URI and returns the public
// URL of the hosted image.
func (s *UploadService) Upload(ctx context.Context, data []byte, mimeType string) (string, error) {
	if len(data) == 0 {
		return "", status.ErrNoFileProvided
	}

	publicID, err := utils.GenerateCode(8)
	if err != nil {
		return "", err
	}

	form := url.Values{}
	form.Set("file", fmt.Sprintf("data:%s;base64,%s", mimeType, base64.StdEncoding.EncodeToString(data)))
	form.Set("api_key", s.apiKey)
	form.Set("timestamp", fmt.Sprintf("%d", time.Now().Unix()))
	form.Set("folder", s.folder)
	form.Set("public_id", publicID)
	form.Set("signature", signUploadParams(form, s.apiSecret))

	result, err := s.breaker.Execute(ctx, func() (any, error) {
		return s.doUpload(ctx, form)
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", status.ErrUploadFailed, err)
	}

	return result.(string), nil
}

func (s *UploadService) doUpload(ctx context.Context, form url.Values) (string, error) {
	endpoint := fmt.Sprintf("%s/%s/image/upload", s.baseURL, s.cloudName)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.hc.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("cloudinary responded %d: %s", resp.StatusCode, body)
	}

	var uploaded struct {
		SecureURL string `json:"secure_url"`
	}
	if err := json.Unmarshal(body, &uploaded); err != nil {
		return "", err
	}
	if uploaded.SecureURL == "" {
		return "", fmt.Errorf("cloudinary response missing secure_url")
	}

	return uploaded.SecureURL, nil
}

// signUploadParams builds the signed-upload digest: every param except
// file, api_key and signature, sorted by name, joined with '&' and suffixed
// with the API secret.
func signUploadParams(form url.Values, secret string) string {
	keys := make([]string, 0, len(form))
	for key := range form {
		if key == "file" || key == "api_key" || key == "signature" {
			continue
		}
		keys = append(keys, key)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, key := range keys {
		pairs = append(pairs, fmt.Sprintf("%s=%s", key, form.Get(key)))
	}

	sum := sha1.Sum([]byte(strings.Join(pairs, "&") + secret))
	return hex.EncodeToString(sum[:])
}

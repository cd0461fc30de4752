package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

/*
Supabase wraps the Storage REST API.

Notes on authorization:
  - With a legacy service_role JWT, send both `apikey` and `Authorization: Bearer <token>`.
  - A Secret API Key (sb_secret_...) that is not a JWT is accepted through `apikey` alone;
    the Authorization header is harmless there.
  - The bucket must be public for the returned object URLs to be fetchable.
*/
type Supabase struct {
	baseURL string // e.g. https://<project>.supabase.co
	apiKey  string // service_role JWT or secret API key
	bucket  string
	client  *http.Client
}

func NewSupabase(baseURL, apiKey, bucket string) (*Supabase, error) {
	if baseURL == "" || apiKey == "" || bucket == "" {
		return nil, errors.New("supabase storage needs SUPABASE_URL, SUPABASE_SERVICE_KEY and SUPABASE_BUCKET")
	}
	return &Supabase{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		bucket:  bucket,
		client:  &http.Client{Timeout: 60 * time.Second},
	}, nil
}

func (s *Supabase) Name() string { return ProviderSupabase }

func (s *Supabase) authorize(req *http.Request) {
	req.Header.Set("apikey", s.apiKey)
	req.Header.Set("Authorization", "Bearer "+s.apiKey)
}

// Upload sends a new object to POST /storage/v1/object/{bucket}/{key} and
// returns its public URL.
func (s *Supabase) Upload(ctx context.Context, key string, r io.Reader, contentType string, size int64) (string, error) {
	url := fmt.Sprintf("%s/storage/v1/object/%s/%s", s.baseURL, s.bucket, key)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, r)
	if err != nil {
		return "", err
	}
	req.ContentLength = size
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("x-upsert", "false")
	s.authorize(req)

	res, err := s.client.Do(req)
	if err != nil {
		return "", err
	}
	defer res.Body.Close()

	if res.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return "", fmt.Errorf("supabase upload error: %s | %s", res.Status, string(body))
	}
	return fmt.Sprintf("%s/storage/v1/object/public/%s/%s", s.baseURL, s.bucket, key), nil
}

// Delete removes an object by key via DELETE /storage/v1/object/{bucket}/{key}.
// A 404 counts as success.
func (s *Supabase) Delete(ctx context.Context, key string) error {
	url := fmt.Sprintf("%s/storage/v1/object/%s/%s", s.baseURL, s.bucket, key)

	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, url, nil)
	if err != nil {
		return err
	}
	s.authorize(req)

	res, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusNotFound {
		return nil
	}
	if res.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return fmt.Errorf("supabase delete error: %s | %s", res.Status, string(b))
	}
	return nil
}

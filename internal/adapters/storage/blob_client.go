// Package storage implements ports.BlobStorage.
package storage

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"
	"github.com/thoknuts/nda-sm-platform/internal/core/ports"
)

// ErrObjectNotFound is returned by Get for a missing object.
var ErrObjectNotFound = errors.New("object not found")

// BlobClient talks to an object storage REST API:
//
//	POST   /object/{bucket}/{path}       upload
//	GET    /object/{bucket}/{path}       download
//	DELETE /object/{bucket}/{path}       remove
//	POST   /object/sign/{bucket}/{path}  signed download URL
type BlobClient struct {
	http    *resty.Client
	baseURL string
	buckets map[string]string // logical name -> deployed name
	log     zerolog.Logger
}

var _ ports.BlobStorage = (*BlobClient)(nil)

type apiError struct {
	StatusCode string `json:"statusCode"`
	Error      string `json:"error"`
	Message    string `json:"message"`
}

type signRequest struct {
	ExpiresIn int `json:"expiresIn"`
}

type signResponse struct {
	SignedURL string `json:"signedURL"`
}

// NewBlobClient creates a client for the storage API at baseURL.
func NewBlobClient(baseURL, serviceKey string, baseLogger *zerolog.Logger) *BlobClient {
	baseURL = strings.TrimRight(baseURL, "/")
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(30 * time.Second).
		SetRetryCount(3).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(5 * time.Second).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return err != nil || r.StatusCode() >= http.StatusInternalServerError
		}).
		SetError(&apiError{})
	if serviceKey != "" {
		client.SetAuthToken(serviceKey).SetHeader("apikey", serviceKey)
	}

	return &BlobClient{
		http:    client,
		baseURL: baseURL,
		buckets: make(map[string]string),
		log:     baseLogger.With().Str("component", "blob_client").Logger(),
	}
}

// MapBucket stores objects of a logical bucket under another bucket name.
func (c *BlobClient) MapBucket(logical, deployed string) *BlobClient {
	if deployed != "" && deployed != logical {
		c.buckets[logical] = deployed
	}
	return c
}

func (c *BlobClient) objectPath(bucket, path string) string {
	if deployed, ok := c.buckets[bucket]; ok {
		bucket = deployed
	}
	segments := strings.Split(path, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return url.PathEscape(bucket) + "/" + strings.Join(segments, "/")
}

func responseError(op string, resp *resty.Response) error {
	msg := resp.Status()
	if e, ok := resp.Error().(*apiError); ok && e != nil {
		if e.Message != "" {
			msg = e.Message
		} else if e.Error != "" {
			msg = e.Error
		}
	}
	return fmt.Errorf("storage %s failed (%d): %s", op, resp.StatusCode(), msg)
}

// isConflict reports an "already exists" answer, which some deployments send
// with a 400 status and the real code in the body.
func isConflict(resp *resty.Response) bool {
	if resp.StatusCode() == http.StatusConflict {
		return true
	}
	e, ok := resp.Error().(*apiError)
	return ok && e != nil && e.StatusCode == "409"
}

// Put uploads data. Existing objects are never overwritten.
func (c *BlobClient) Put(ctx context.Context, bucket, path string, data []byte, contentType string) error {
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", contentType).
		SetHeader("x-upsert", "false").
		SetBody(data).
		Post("/object/" + c.objectPath(bucket, path))
	if err != nil {
		return fmt.Errorf("storage upload: %w", err)
	}
	if resp.IsError() {
		// A retry that conflicts found the object stored by an attempt whose
		// response was lost.
		if isConflict(resp) && resp.Request.Attempt > 1 {
			c.log.Warn().Str("bucket", bucket).Str("path", path).Int("attempt", resp.Request.Attempt).Msg("Upload already stored by an earlier attempt")
			return nil
		}
		return responseError("upload", resp)
	}
	c.log.Debug().Str("bucket", bucket).Str("path", path).Int("bytes", len(data)).Msg("Object uploaded")
	return nil
}

// Get downloads an object.
func (c *BlobClient) Get(ctx context.Context, bucket, path string) ([]byte, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		Get("/object/" + c.objectPath(bucket, path))
	if err != nil {
		return nil, fmt.Errorf("storage download: %w", err)
	}
	if resp.StatusCode() == http.StatusNotFound {
		return nil, ErrObjectNotFound
	}
	if resp.IsError() {
		return nil, responseError("download", resp)
	}
	return resp.Body(), nil
}

// Delete removes an object. Deleting a missing object succeeds.
func (c *BlobClient) Delete(ctx context.Context, bucket, path string) error {
	resp, err := c.http.R().
		SetContext(ctx).
		Delete("/object/" + c.objectPath(bucket, path))
	if err != nil {
		return fmt.Errorf("storage delete: %w", err)
	}
	if resp.StatusCode() == http.StatusNotFound {
		return nil
	}
	if resp.IsError() {
		return responseError("delete", resp)
	}
	return nil
}

// SignedURL returns an absolute URL valid for ttl.
func (c *BlobClient) SignedURL(ctx context.Context, bucket, path string, ttl time.Duration) (string, error) {
	var out signResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(signRequest{ExpiresIn: int(ttl.Seconds())}).
		SetResult(&out).
		Post("/object/sign/" + c.objectPath(bucket, path))
	if err != nil {
		return "", fmt.Errorf("storage sign: %w", err)
	}
	if resp.StatusCode() == http.StatusNotFound {
		return "", ErrObjectNotFound
	}
	if resp.IsError() {
		return "", responseError("sign", resp)
	}
	if out.SignedURL == "" {
		return "", errors.New("storage sign: empty signed url")
	}
	if strings.HasPrefix(out.SignedURL, "http://") || strings.HasPrefix(out.SignedURL, "https://") {
		return out.SignedURL, nil
	}
	return c.baseURL + "/" + strings.TrimLeft(out.SignedURL, "/"), nil
}

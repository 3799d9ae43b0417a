package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"path"
	"path/filepath"
	"strings"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"github.com/google/uuid"
)

var ErrNotConfigured = errors.New("image storage is not configured")

// ImageStorage is the object store holding uploaded post images. folder is
// the logical container (e.g. "post-images").
type ImageStorage interface {
	// UploadImage uploads the image and returns its public URL.
	UploadImage(ctx context.Context, r io.Reader, folder, fileName string) (string, error)
	// DeleteImage removes the image behind fileURL. It reports whether
	// something was actually deleted.
	DeleteImage(ctx context.Context, fileURL, folder string) (bool, error)
}

type Config struct {
	URL       string
	CloudName string
	APIKey    string
	APISecret string
}

func (c Config) configured() bool {
	return c.URL != "" || (c.CloudName != "" && c.APIKey != "" && c.APISecret != "")
}

type cloudinaryStorage struct {
	cld *cloudinary.Cloudinary
}

// NewCloudinaryStorage creates the Cloudinary-backed ImageStorage. It fails
// with ErrNotConfigured when no credentials were supplied.
func NewCloudinaryStorage(cfg Config) (ImageStorage, error) {
	if !cfg.configured() {
		return nil, ErrNotConfigured
	}

	var (
		cld *cloudinary.Cloudinary
		err error
	)
	if cfg.URL != "" {
		cld, err = cloudinary.NewFromURL(cfg.URL)
	} else {
		cld, err = cloudinary.NewFromParams(cfg.CloudName, cfg.APIKey, cfg.APISecret)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to initialize cloudinary client: %w", err)
	}

	cld.Config.URL.Secure = true

	return &cloudinaryStorage{cld: cld}, nil
}

func (s *cloudinaryStorage) UploadImage(ctx context.Context, r io.Reader, folder, fileName string) (string, error) {
	// Blob names are random; only the extension of the client file survives.
	ext := strings.ToLower(filepath.Ext(fileName))
	publicID := uuid.NewString()

	params := uploader.UploadParams{
		Folder:         folder,
		PublicID:       publicID,
		UniqueFilename: api.Bool(false),
		Overwrite:      api.Bool(false),
	}

	switch ext {
	case ".jpg", ".jpeg", ".png", ".bmp", ".tiff", ".gif", ".webp":
		params.Format = "webp"
		params.Transformation = "q_auto"
	}

	resp, err := s.cld.Upload.Upload(ctx, r, params)
	if err != nil {
		return "", fmt.Errorf("failed to upload image to cloudinary: %w", err)
	}
	if resp.Error.Message != "" {
		return "", fmt.Errorf("cloudinary upload failed: %s", resp.Error.Message)
	}
	if resp.SecureURL == "" {
		return "", fmt.Errorf("cloudinary upload succeeded but secure URL is empty")
	}

	return resp.SecureURL, nil
}

func (s *cloudinaryStorage) DeleteImage(ctx context.Context, fileURL, folder string) (bool, error) {
	publicID := ExtractPublicID(fileURL)
	if publicID == "" {
		return false, fmt.Errorf("could not extract public ID from URL: %s", fileURL)
	}
	if folder != "" && !strings.HasPrefix(publicID, folder+"/") {
		return false, nil
	}

	resp, err := s.cld.Upload.Destroy(ctx, uploader.DestroyParams{
		PublicID:   publicID,
		Invalidate: api.Bool(true),
	})
	if err != nil {
		return false, fmt.Errorf("failed to delete image from cloudinary: %w", err)
	}

	switch resp.Result {
	case "ok":
		return true, nil
	case "not found":
		return false, nil
	default:
		return false, fmt.Errorf("cloudinary destroy api returned result: %s", resp.Result)
	}
}

// ExtractPublicID returns "folder/name" for a Cloudinary delivery URL such as
// https://res.cloudinary.com/demo/image/upload/v123/post-images/abc.webp.
func ExtractPublicID(fileURL string) string {
	u, err := url.Parse(fileURL)
	if err != nil || u.Path == "" {
		return ""
	}

	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	uploadIndex := -1
	for i, p := range parts {
		if p == "upload" {
			uploadIndex = i
			break
		}
	}
	if uploadIndex == -1 || uploadIndex+1 >= len(parts) {
		return ""
	}

	rest := parts[uploadIndex+1:]
	if isVersionSegment(rest[0]) {
		rest = rest[1:]
	}
	if len(rest) == 0 {
		return ""
	}

	joined := path.Join(rest...)
	return strings.TrimSuffix(joined, path.Ext(joined))
}

func isVersionSegment(s string) bool {
	if len(s) < 2 || s[0] != 'v' {
		return false
	}
	for _, r := range s[1:] {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

type unconfigured struct{}

// Unconfigured is used when no storage credentials exist: uploads fail,
// deletes are no-ops.
func Unconfigured() ImageStorage { return unconfigured{} }

func (unconfigured) UploadImage(context.Context, io.Reader, string, string) (string, error) {
	return "", ErrNotConfigured
}

func (unconfigured) DeleteImage(context.Context, string, string) (bool, error) {
	return false, nil
}

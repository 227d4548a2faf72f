package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
)

var ErrArchiveDisabled = errors.New("image archive is not configured")

// ImageArchive keeps a copy of submitted palm and face photos in Cloudinary.
type ImageArchive struct {
	cld    *cloudinary.Cloudinary
	folder string
}

func NewImageArchive(cloudName, apiKey, apiSecret, folder string) (*ImageArchive, error) {
	cld, err := cloudinary.NewFromParams(cloudName, apiKey, apiSecret)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Cloudinary: %w", err)
	}
	return &ImageArchive{cld: cld, folder: folder}, nil
}

// Folder returns the Cloudinary folder for a reading domain, e.g. "astroguide/palm".
func (a *ImageArchive) Folder(domain string) string {
	if a == nil {
		return ""
	}
	return path.Join(a.folder, domain)
}

// Upload stores data under the domain folder and returns its secure URL.
func (a *ImageArchive) Upload(ctx context.Context, domain string, data []byte) (string, error) {
	if a == nil || a.cld == nil {
		return "", ErrArchiveDisabled
	}
	res, err := a.cld.Upload.Upload(ctx, bytes.NewReader(data), uploader.UploadParams{
		Folder:       a.Folder(domain),
		ResourceType: "image",
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload to Cloudinary: %w", err)
	}
	if res.Error.Message != "" {
		return "", fmt.Errorf("cloudinary rejected upload: %s", res.Error.Message)
	}
	return res.SecureURL, nil
}

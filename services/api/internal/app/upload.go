package app

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"regexp"
	"slices"
	"strings"

	"github.com/google/uuid"

	"arview/internal/util"
	"arview/pkg/imaging"
	"arview/pkg/storage"
)

type FileType string

const (
	FileGLB       FileType = "glb"
	FileUSDZ      FileType = "usdz"
	FileThumbnail FileType = "thumbnail"
)

const (
	maxModelBytes     = 15 << 20
	maxThumbnailBytes = 2 << 20

	// MaxDirectUploadBytes is the largest body any file type accepts.
	MaxDirectUploadBytes = maxModelBytes
)

type fileRule struct {
	maxBytes     int64
	contentTypes []string
	folder       string
}

var fileRules = map[FileType]fileRule{
	FileGLB:       {maxModelBytes, []string{"model/gltf-binary", "application/octet-stream"}, "models"},
	FileUSDZ:      {maxModelBytes, []string{"model/vnd.usdz+zip", "application/octet-stream"}, "models"},
	FileThumbnail: {maxThumbnailBytes, []string{"image/webp", "image/png", "image/jpeg"}, "thumbnails"},
}

var unsafeFileChars = regexp.MustCompile(`[^a-zA-Z0-9.-]`)

type PresignInput struct {
	FileName    string   `json:"fileName"`
	FileType    FileType `json:"fileType"`
	ContentType string   `json:"contentType,omitempty"`
}

func (in PresignInput) Validate() ValidationResult {
	var r ValidationResult
	if r.required("fileName", in.FileName) {
		r.length("fileName", in.FileName, 1, 255)
	}
	rule, ok := fileRules[in.FileType]
	if !ok {
		r.Add("fileType", "must be one of glb, usdz, thumbnail")
	} else if in.ContentType != "" && !slices.Contains(rule.contentTypes, in.ContentType) {
		r.Add("contentType", "must be one of %s", strings.Join(rule.contentTypes, ", "))
	}
	return r
}

type PresignResult struct {
	UploadURL string `json:"uploadUrl"`
	PublicURL string `json:"publicUrl"`
	Key       string `json:"key"`
	ExpiresIn int    `json:"expiresIn"`
}

// DirectUploadInput is a file proxied through the API.
type DirectUploadInput struct {
	FileName    string
	FileType    FileType
	ContentType string
	Size        int64
	Body        io.Reader
}

type UploadResult struct {
	PublicURL string `json:"publicUrl"`
	Key       string `json:"key"`
}

// PresignUpload reserves a key under the merchant's prefix and returns a
// URL the browser can PUT the file to.
func (a *App) PresignUpload(ctx context.Context, merchantID string, in PresignInput) (PresignResult, error) {
	if err := in.Validate().Err(); err != nil {
		return PresignResult{}, err
	}
	key := objectKey(merchantID, in.FileType, in.FileName)
	uploadURL, err := a.objects.PresignPut(ctx, key, a.presignExpiry)
	if err != nil {
		return PresignResult{}, fmt.Errorf("presign upload: %w", err)
	}
	return PresignResult{
		UploadURL: uploadURL,
		PublicURL: storage.PublicURL(a.publicAssetURL, key),
		Key:       key,
		ExpiresIn: int(a.presignExpiry.Seconds()),
	}, nil
}

// DirectUpload stores a file sent through the API. Thumbnails are
// re-encoded as bounded JPEGs first.
func (a *App) DirectUpload(ctx context.Context, merchantID string, in DirectUploadInput) (UploadResult, error) {
	if in.Body == nil {
		return UploadResult{}, invalid("file", "is required")
	}
	rule, ok := fileRules[in.FileType]
	if !ok {
		return UploadResult{}, invalid("fileType", "must be one of glb, usdz, thumbnail")
	}
	if in.Size > rule.maxBytes {
		return UploadResult{}, invalid("file", "exceeds maximum size of %d MB", rule.maxBytes>>20)
	}
	contentType := in.ContentType
	if contentType == "" {
		contentType = rule.contentTypes[0]
	}
	if !slices.Contains(rule.contentTypes, contentType) {
		return UploadResult{}, invalid("file", "content type %s is not allowed for %s", contentType, in.FileType)
	}

	body, size, fileName := in.Body, in.Size, in.FileName
	if in.FileType == FileThumbnail {
		res, err := imaging.ProcessThumbnail(io.LimitReader(in.Body, rule.maxBytes+1))
		if err != nil {
			return UploadResult{}, invalid("file", "%v", err)
		}
		body, size, contentType = bytes.NewReader(res.Data), int64(len(res.Data)), res.MIME
		fileName = strings.TrimSuffix(fileName, path.Ext(fileName)) + ".jpg"
	}

	key := objectKey(merchantID, in.FileType, fileName)
	if err := a.objects.Put(ctx, key, body, size, contentType); err != nil {
		return UploadResult{}, fmt.Errorf("upload file: %w", err)
	}
	return UploadResult{PublicURL: storage.PublicURL(a.publicAssetURL, key), Key: key}, nil
}

// DeleteUpload removes an object under the merchant's own prefix. Storage
// failures are logged, not returned.
func (a *App) DeleteUpload(ctx context.Context, merchantID, key string) error {
	key = strings.TrimLeft(strings.TrimSpace(key), "/")
	if key == "" {
		return invalid("key", "is required")
	}
	if !strings.HasPrefix(key, merchantID+"/") || strings.Contains(key, "..") {
		return ErrForbidden
	}
	if err := a.objects.Delete(ctx, key); err != nil {
		util.LoggerFromContext(ctx).Warn("delete upload failed", "key", key, "error", err)
	}
	return nil
}

func objectKey(merchantID string, ft FileType, fileName string) string {
	name := unsafeFileChars.ReplaceAllString(path.Base(fileName), "_")
	return fmt.Sprintf("%s/%s/%s-%s", merchantID, fileRules[ft].folder, uuid.NewString(), name)
}

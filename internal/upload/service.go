// Package upload stores submission attachments in R2-compatible object
// storage and generates signed URLs for direct browser uploads.
package upload

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/nabeul-archive/poemap/internal/validate"
)

// Allowed MIME types for uploads
const (
	MIMEImageJPEG = "image/jpeg"
	MIMEImagePNG  = "image/png"
	MIMEAudioMPEG = "audio/mpeg"
	MIMEAudioWAV  = "audio/wav"
	MIMEVideoMP4  = "video/mp4"
)

// Storage folders, one per attachment kind.
const (
	FolderPoets      = "poets"
	FolderAudio      = "audio"
	FolderVideos     = "videos"
	FolderMurals     = "murals"
	FolderThumbnails = "thumbnails"
)

// Validation errors
var (
	ErrUnsupportedType = errors.New("unsupported content type")
	ErrFileTooLarge    = errors.New("file size exceeds maximum allowed")
	ErrInvalidFolder   = errors.New("invalid storage folder")
	ErrEmptyFilename   = errors.New("empty filename")
)

// AllowedMIMETypes maps allowed MIME types to their file extensions
var AllowedMIMETypes = map[string]string{
	MIMEImageJPEG: ".jpg",
	MIMEImagePNG:  ".png",
	MIMEAudioMPEG: ".mp3",
	MIMEAudioWAV:  ".wav",
	MIMEVideoMP4:  ".mp4",
}

var allowedFolders = map[string]bool{
	FolderPoets:      true,
	FolderAudio:      true,
	FolderVideos:     true,
	FolderMurals:     true,
	FolderThumbnails: true,
}

// SignedURLRequest represents a request for a signed upload URL.
type SignedURLRequest struct {
	ContentType string // MIME type of the file
	SizeBytes   int64  // Size of the file in bytes
	Folder      string // Target folder; one of poets, audio, videos
	Filename    string // Original filename, sanitized into the object key
}

// SignedURLResponse represents the response containing the signed URL and metadata.
type SignedURLResponse struct {
	URL       string    `json:"url"`        // Pre-signed PUT URL
	Key       string    `json:"key"`        // Object key in R2
	PublicURL string    `json:"public_url"` // URL the object is served from
	ExpiresAt time.Time `json:"expires_at"` // URL expiration time
}

// Service handles attachment storage in R2.
type Service struct {
	s3Client      *s3.Client
	presignClient *s3.PresignClient
	bucketName    string
	publicBaseURL string
	maxSizeBytes  int64
	urlExpiry     time.Duration
	timeNow       func() time.Time // For testability
}

// ServiceConfig holds configuration for the upload service.
type ServiceConfig struct {
	BucketName       string
	AccessKeyID      string
	SecretAccessKey  string
	Endpoint         string
	PublicBaseURL    string // Base URL objects are served from (CDN or public bucket)
	MaxSizeMB        int
	URLExpiryMinutes int // Default: 5 minutes
}

// NewService creates a new upload service with the given configuration.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.BucketName == "" {
		return nil, errors.New("bucket name is required")
	}
	if cfg.AccessKeyID == "" {
		return nil, errors.New("access key ID is required")
	}
	if cfg.SecretAccessKey == "" {
		return nil, errors.New("secret access key is required")
	}
	if cfg.Endpoint == "" {
		return nil, errors.New("endpoint is required")
	}
	if cfg.PublicBaseURL == "" {
		return nil, errors.New("public base URL is required")
	}

	// Default values
	if cfg.MaxSizeMB <= 0 {
		cfg.MaxSizeMB = 50
	}
	if cfg.URLExpiryMinutes <= 0 {
		cfg.URLExpiryMinutes = 5
	}

	// Create S3 client with R2-compatible configuration
	s3Client := s3.New(s3.Options{
		Region: "auto", // R2 uses auto region
		Credentials: aws.NewCredentialsCache(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID,
			cfg.SecretAccessKey,
			"", // No session token for R2
		)),
		BaseEndpoint: aws.String(cfg.Endpoint),
		UsePathStyle: true, // R2 requires path-style addressing
	})

	presignClient := s3.NewPresignClient(s3Client)

	return &Service{
		s3Client:      s3Client,
		presignClient: presignClient,
		bucketName:    cfg.BucketName,
		publicBaseURL: strings.TrimRight(cfg.PublicBaseURL, "/"),
		maxSizeBytes:  int64(cfg.MaxSizeMB) * 1024 * 1024,
		urlExpiry:     time.Duration(cfg.URLExpiryMinutes) * time.Minute,
		timeNow:       time.Now,
	}, nil
}

// ValidateContentType checks if the content type is allowed.
func ValidateContentType(contentType string) error {
	allowed := make([]string, 0, len(AllowedMIMETypes))
	for mime := range AllowedMIMETypes {
		allowed = append(allowed, mime)
	}
	if _, err := validate.MIMEType(contentType, allowed); err != nil {
		return fmt.Errorf("%w: %s", ErrUnsupportedType, contentType)
	}
	return nil
}

// ValidateFileSize checks if the file size is within limits.
func (s *Service) ValidateFileSize(sizeBytes int64) error {
	err := validate.FileSize(sizeBytes, validate.FileConstraints{MaxSizeBytes: s.maxSizeBytes})
	switch {
	case err == nil:
		return nil
	case errors.Is(err, validate.ErrFileTooLarge):
		return ErrFileTooLarge
	default:
		return err
	}
}

// ObjectKey builds the timestamped object key for an attachment.
// Pattern: {folder}/{unix-ts}_{sanitized-name}
func (s *Service) ObjectKey(folder, filename string) (string, error) {
	if !allowedFolders[folder] {
		return "", ErrInvalidFolder
	}
	name := sanitizeFilename(filename)
	if name == "" {
		return "", ErrEmptyFilename
	}
	return fmt.Sprintf("%s/%d_%s", folder, s.timeNow().Unix(), name), nil
}

// sanitizeFilename removes potentially dangerous characters from filenames.
func sanitizeFilename(s string) string {
	// Only allow alphanumeric, dots, hyphens, and underscores
	var result strings.Builder
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '.' || r == '-' || r == '_' {
			result.WriteRune(r)
		}
	}
	return strings.Trim(result.String(), ".")
}

// MaxSizeBytes returns the configured per-file upload limit.
func (s *Service) MaxSizeBytes() int64 {
	return s.maxSizeBytes
}

// PublicURL returns the serving URL for an object key.
func (s *Service) PublicURL(key string) string {
	return s.publicBaseURL + "/" + key
}

// UploadObject stores an attachment and returns its public URL.
func (s *Service) UploadObject(ctx context.Context, folder, filename string, data []byte) (string, error) {
	if err := s.ValidateFileSize(int64(len(data))); err != nil {
		return "", err
	}
	key, err := s.ObjectKey(folder, filename)
	if err != nil {
		return "", err
	}

	_, err = s.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucketName),
		Key:    aws.String(key),
		Body:   bytes.NewReader(data),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload object: %w", err)
	}
	return s.PublicURL(key), nil
}

// GenerateSignedURL generates a pre-signed PUT URL for direct upload to R2.
func (s *Service) GenerateSignedURL(ctx context.Context, req SignedURLRequest) (*SignedURLResponse, error) {
	// Validate content type
	if err := ValidateContentType(req.ContentType); err != nil {
		return nil, err
	}

	// Validate file size
	if err := s.ValidateFileSize(req.SizeBytes); err != nil {
		return nil, err
	}

	key, err := s.ObjectKey(req.Folder, req.Filename)
	if err != nil {
		return nil, err
	}

	// Create presigned PUT request
	putObjectInput := &s3.PutObjectInput{
		Bucket:        aws.String(s.bucketName),
		Key:           aws.String(key),
		ContentType:   aws.String(req.ContentType),
		ContentLength: aws.Int64(req.SizeBytes),
	}

	presignedReq, err := s.presignClient.PresignPutObject(ctx, putObjectInput, func(opts *s3.PresignOptions) {
		opts.Expires = s.urlExpiry
	})
	if err != nil {
		return nil, fmt.Errorf("failed to presign request: %w", err)
	}

	expiresAt := s.timeNow().Add(s.urlExpiry)

	return &SignedURLResponse{
		URL:       presignedReq.URL,
		Key:       key,
		PublicURL: s.PublicURL(key),
		ExpiresAt: expiresAt,
	}, nil
}

// GetS3Client returns the S3 client used by the service.
// This can be used by other services that need to interact with R2.
func (s *Service) GetS3Client() *s3.Client {
	return s.s3Client
}

// GetBucketName returns the bucket name used by the service.
func (s *Service) GetBucketName() string {
	return s.bucketName
}

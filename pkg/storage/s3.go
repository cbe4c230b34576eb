package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"go.uber.org/zap"
)

const (
	// MaxUploadSize is the maximum allowed media upload (500MB).
	MaxUploadSize = 500 * 1024 * 1024
	// FolderVideos is the object prefix for source media.
	FolderVideos = "videos"
	// FolderFrames is the object prefix for extracted frames.
	FolderFrames = "frames"
	// FolderDocuments is the object prefix for uploaded documents.
	FolderDocuments = "documents"
	// MaxDocumentSize is the maximum allowed document upload (25MB).
	MaxDocumentSize = 25 * 1024 * 1024
)

// Allowed media MIME types and extensions for uploads.
var (
	AllowedMediaTypes = map[string]string{
		"video/mp4":       ".mp4",
		"video/quicktime": ".mp4",
		"video/webm":      ".webm",
		"audio/mpeg":      ".mp3",
		"audio/mp4":       ".m4a",
		"audio/wav":       ".wav",
		"audio/x-wav":     ".wav",
		"audio/webm":      ".webm",
		"audio/ogg":       ".ogg",
	}
	AllowedMediaExtensions = map[string]string{
		".mp4":  "video/mp4",
		".mov":  "video/quicktime",
		".webm": "video/webm",
		".mp3":  "audio/mpeg",
		".m4a":  "audio/mp4",
		".wav":  "audio/wav",
		".ogg":  "audio/ogg",
	}
	AllowedDocumentExtensions = map[string]string{
		".docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
		".txt":  "text/plain",
		".md":   "text/markdown",
	}
)

// S3Config holds S3 client configuration.
type S3Config struct {
	Region               string
	AccessKeyID          string
	SecretAccessKey      string
	VideoBucket          string
	FramesBucket         string
	PresignExpireMinutes int
}

// S3 provides object storage operations for media and frames.
type S3 struct {
	client   *s3.Client
	uploader *manager.Uploader
	cfg      S3Config
	logger   *zap.Logger
}

// NewS3 creates an S3 client using credentials from config or the default
// chain (AWS_ACCESS_KEY_ID, AWS_SECRET_ACCESS_KEY).
func NewS3(ctx context.Context, cfg S3Config, logger *zap.Logger) (*S3, error) {
	accessKey := cfg.AccessKeyID
	secretKey := cfg.SecretAccessKey
	if accessKey == "" || secretKey == "" {
		accessKey = os.Getenv("AWS_ACCESS_KEY_ID")
		secretKey = os.Getenv("AWS_SECRET_ACCESS_KEY")
	}
	opts := []func(*config.LoadOptions) error{
		config.WithRegion(cfg.Region),
	}
	if accessKey != "" && secretKey != "" {
		opts = append(opts, config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			accessKey, secretKey, "",
		)))
		if logger != nil {
			logger.Info("S3 client configured", zap.String("region", cfg.Region), zap.String("video_bucket", cfg.VideoBucket))
		}
	} else if logger != nil {
		logger.Warn("S3 client using default credential chain (AWS_ACCESS_KEY_ID/AWS_SECRET_ACCESS_KEY not set)")
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg)
	uploader := manager.NewUploader(client, func(u *manager.Uploader) {
		u.PartSize = 5 * 1024 * 1024 // 5MB parts for streaming
	})
	return &S3{
		client:   client,
		uploader: uploader,
		cfg:      cfg,
		logger:   logger,
	}, nil
}

// ValidateMediaType returns true if the content type and/or extension are
// allowed for media uploads.
func ValidateMediaType(contentType, filename string) bool {
	ext := strings.ToLower(path.Ext(filename))
	if contentType != "" {
		if _, ok := AllowedMediaTypes[strings.ToLower(contentType)]; ok {
			return true
		}
	}
	if ext != "" {
		if _, ok := AllowedMediaExtensions[ext]; ok {
			return true
		}
	}
	return false
}

// ContentTypeForFilename returns the MIME type for a media filename extension.
func ContentTypeForFilename(filename string) string {
	ext := strings.ToLower(path.Ext(filename))
	if ct, ok := AllowedMediaExtensions[ext]; ok {
		return ct
	}
	return "application/octet-stream"
}

// VideoKey returns the object key for source media: videos/{video_id}/{filename}.
func VideoKey(videoID, filename string) string {
	return path.Join(FolderVideos, videoID, path.Base(filename))
}

// FrameKey returns the object key for a frame: frames/{video_id}/{filename}.
func FrameKey(videoID, filename string) string {
	return path.Join(FolderFrames, videoID, path.Base(filename))
}

// DocumentKey returns the object key for a document: documents/{document_id}/{filename}.
func DocumentKey(documentID, filename string) string {
	return path.Join(FolderDocuments, documentID, path.Base(filename))
}

// ValidateDocumentType returns true if the filename extension is an allowed
// document format.
func ValidateDocumentType(filename string) bool {
	_, ok := AllowedDocumentExtensions[strings.ToLower(path.Ext(filename))]
	return ok
}

// GeneratePresignedDownloadURL returns a pre-signed GET URL for download.
func (s *S3) GeneratePresignedDownloadURL(ctx context.Context, bucket, key string, expires time.Duration) (string, error) {
	presignClient := s3.NewPresignClient(s.client)
	req, err := presignClient.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	}, func(opts *s3.PresignOptions) {
		opts.Expires = expires
	})
	if err != nil {
		return "", fmt.Errorf("presign get: %w", err)
	}
	return req.URL, nil
}

// PresignExpire returns the configured presign duration.
func (s *S3) PresignExpire() time.Duration {
	if s.cfg.PresignExpireMinutes <= 0 {
		return 15 * time.Minute
	}
	return time.Duration(s.cfg.PresignExpireMinutes) * time.Minute
}

// VideoBucket returns the source media bucket name.
func (s *S3) VideoBucket() string { return s.cfg.VideoBucket }

// FramesBucket returns the frames bucket name.
func (s *S3) FramesBucket() string { return s.cfg.FramesBucket }

// PublicObjectURL returns the public URL for an object (no signing; use when
// the bucket is public).
func (s *S3) PublicObjectURL(bucket, key string) string {
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", bucket, s.cfg.Region, key)
}

// Upload streams a reader to S3. Set publicRead for objects served via direct
// URL (frames).
func (s *S3) Upload(ctx context.Context, bucket, key, contentType string, body io.Reader, contentLength int64, publicRead bool) (string, error) {
	var contentLengthPtr *int64
	if contentLength > 0 {
		contentLengthPtr = &contentLength
	}
	input := &s3.PutObjectInput{
		Bucket:        aws.String(bucket),
		Key:           aws.String(key),
		Body:          body,
		ContentType:   aws.String(contentType),
		ContentLength: contentLengthPtr,
	}
	if publicRead {
		input.ACL = types.ObjectCannedACLPublicRead
	}
	_, err := s.uploader.Upload(ctx, input)
	if err != nil {
		return "", fmt.Errorf("upload: %w", err)
	}
	return s.PublicObjectURL(bucket, key), nil
}

// UploadFile opens and streams a local file to S3.
func (s *S3) UploadFile(ctx context.Context, bucket, key, contentType, localPath string, publicRead bool) (string, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", localPath, err)
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return "", fmt.Errorf("stat %s: %w", localPath, err)
	}
	return s.Upload(ctx, bucket, key, contentType, f, info.Size(), publicRead)
}

// UploadFrame stores an extracted frame in the frames bucket and returns its
// public URL. Satisfies media.FrameUploader.
func (s *S3) UploadFrame(ctx context.Context, videoID, filename, localPath string) (string, error) {
	return s.UploadFile(ctx, s.cfg.FramesBucket, FrameKey(videoID, filename), "image/jpeg", localPath, true)
}

// DeleteObject removes an object from S3.
func (s *S3) DeleteObject(ctx context.Context, bucket, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("delete object: %w", err)
	}
	return nil
}

// DeleteVideo removes a media object from the video bucket.
func (s *S3) DeleteVideo(ctx context.Context, key string) error {
	return s.DeleteObject(ctx, s.cfg.VideoBucket, key)
}

// DeleteFrame removes a frame object from the frames bucket.
func (s *S3) DeleteFrame(ctx context.Context, videoID, filename string) error {
	return s.DeleteObject(ctx, s.cfg.FramesBucket, FrameKey(videoID, filename))
}

// HeadObject returns object metadata if it exists.
func (s *S3) HeadObject(ctx context.Context, bucket, key string) (*s3.HeadObjectOutput, error) {
	return s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
}

// GetObjectStream returns the object body and content type for streaming.
// Caller must close the body.
func (s *S3) GetObjectStream(ctx context.Context, bucket, key string) (body io.ReadCloser, contentType string, err error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, "", err
	}
	ct := ""
	if out.ContentType != nil {
		ct = *out.ContentType
	}
	return out.Body, ct, nil
}

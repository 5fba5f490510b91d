package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"path/filepath"
	"strconv"

	"github.com/gabriel-vasile/mimetype"
	"github.com/gin-gonic/gin"
	attachmentdomain "github.com/smallbiznis/encore/internal/attachment/domain"
	"github.com/smallbiznis/encore/internal/identity"
	"github.com/smallbiznis/encore/internal/observability/logger"
	"github.com/smallbiznis/encore/internal/ratelimit"
	"go.uber.org/zap"
)

const (
	fieldBankSlip    = "bankSlip"
	fieldInfoFile    = "infoFile"
	fieldReceiptFile = "receiptFile"

	rateLimitReasonUploadRate = "upload-rate"

	// multipart envelope allowance on top of the file size limit
	multipartOverhead = 1 << 20
)

// UploadRateLimit throttles multipart uploads per acting user when redis is configured.
func (s *Server) UploadRateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.uploadLimiter.Enabled() {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		result, err := s.uploadLimiter.Allow(ctx, userKey(ctx))
		if err != nil {
			logger.FromContext(ctx).Warn("upload rate limit check failed", zap.Error(err))
			AbortWithError(c, ErrServiceUnavailable)
			return
		}
		if !result.Allowed {
			denyUploadRateLimit(c, result)
			return
		}
		c.Next()
	}
}

func denyUploadRateLimit(c *gin.Context, result *ratelimit.RateLimitResult) {
	ctx := c.Request.Context()
	logger.FromContext(ctx).Warn("upload rate limit exceeded",
		zap.String("reason", rateLimitReasonUploadRate),
		zap.String("endpoint", normalizeRateLimitEndpoint(c)),
	)

	retryAfter := int(math.Ceil(result.RetryAfter.Seconds()))
	if retryAfter < 1 {
		retryAfter = 1
	}
	c.Header("Retry-After", strconv.Itoa(retryAfter))
	c.Header("X-Rate-Limited-Reason", rateLimitReasonUploadRate)
	AbortWithError(c, ErrRateLimited)
}

func normalizeRateLimitEndpoint(c *gin.Context) string {
	if endpoint := c.FullPath(); endpoint != "" {
		return endpoint
	}
	if c.Request != nil && c.Request.URL != nil && c.Request.URL.Path != "" {
		return c.Request.URL.Path
	}
	return "unknown"
}

// limitBody caps the whole request so an oversized multipart body is never buffered.
func (s *Server) limitBody() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.cfg.Upload.MaxBytes+multipartOverhead)
		c.Next()
	}
}

// readUpload loads the optional multipart file under field. A nil file means none was sent.
func (s *Server) readUpload(c *gin.Context, field string) (*attachmentdomain.File, error) {
	header, err := c.FormFile(field)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
			return nil, nil
		}
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return nil, ErrFileTooLarge
		}
		return nil, ErrInvalidRequest
	}
	if header.Size > s.cfg.Upload.MaxBytes {
		return nil, ErrFileTooLarge
	}

	f, err := header.Open()
	if err != nil {
		return nil, fmt.Errorf("open upload: %w", err)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, s.cfg.Upload.MaxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	if int64(len(data)) > s.cfg.Upload.MaxBytes {
		return nil, ErrFileTooLarge
	}
	if len(data) == 0 {
		return nil, ErrInvalidRequest
	}

	contentType, ok := s.sniffAllowed(data)
	if !ok {
		logger.FromContext(c.Request.Context()).Info("upload rejected",
			zap.String("field", field),
			zap.String("content_type", contentType),
		)
		return nil, ErrUnsupportedFile
	}

	return &attachmentdomain.File{
		Name:        filepath.Base(header.Filename),
		ContentType: contentType,
		Data:        data,
	}, nil
}

// sniffAllowed detects the content type from the bytes; the client supplied header is ignored.
func (s *Server) sniffAllowed(data []byte) (string, bool) {
	detected := mimetype.Detect(data)
	for _, allowed := range s.cfg.Upload.AllowedTypes {
		if detected.Is(allowed) {
			return allowed, true
		}
	}
	return detected.String(), false
}

func userKey(ctx context.Context) string {
	if user, ok := identity.UserFromContext(ctx); ok {
		return user.ID.String()
	}
	return ""
}

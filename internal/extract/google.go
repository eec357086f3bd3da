package extract

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"google.golang.org/api/option"
)

// GoogleConfig configures the Google Cloud engines.
type GoogleConfig struct {
	ProjectID        string
	Location         string
	ProcessorID      string
	ProcessorVersion string

	// CredentialsJSON takes precedence over CredentialsFile. With neither set
	// the client falls back to application default credentials.
	CredentialsJSON string
	CredentialsFile string

	// Timeout bounds one engine call; zero means no limit beyond the request.
	Timeout time.Duration
}

// HasCredentials reports whether explicit credentials are configured.
func (c GoogleConfig) HasCredentials() bool {
	return c.CredentialsJSON != "" || c.CredentialsFile != ""
}

func (c GoogleConfig) clientOptions() []option.ClientOption {
	var opts []option.ClientOption
	if c.CredentialsJSON != "" {
		opts = append(opts, option.WithCredentialsJSON([]byte(c.CredentialsJSON)))
	} else if c.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(c.CredentialsFile))
	}
	return opts
}

func (c GoogleConfig) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.Timeout)
}

// classifyAPIError maps a Google API error to one of the package errors.
func classifyAPIError(op string, err error, service string) error {
	errStr := err.Error()

	switch {
	case errors.Is(err, context.DeadlineExceeded) || strings.Contains(errStr, "DeadlineExceeded"):
		return WrapExtractError(op, ErrEngineTimeout, service)
	case errors.Is(err, context.Canceled) || strings.Contains(errStr, "Canceled"):
		return WrapExtractError(op, err, service+" call was canceled")
	case strings.Contains(errStr, "PERMISSION_DENIED") || strings.Contains(errStr, "PermissionDenied") ||
		strings.Contains(errStr, "UNAUTHENTICATED") || strings.Contains(errStr, "Unauthenticated"):
		return WrapExtractError(op, ErrInvalidCredentials, service)
	case strings.Contains(errStr, "QUOTA_EXCEEDED") || strings.Contains(errStr, "ResourceExhausted"):
		return WrapExtractError(op, ErrQuotaExceeded, service)
	case strings.Contains(errStr, "NOT_FOUND") || strings.Contains(errStr, "NotFound"):
		return WrapExtractError(op, ErrProcessorNotFound, service)
	case strings.Contains(errStr, "INVALID_ARGUMENT") || strings.Contains(errStr, "InvalidArgument"):
		return WrapExtractError(op, ErrInvalidPDF, "document format not supported or corrupted")
	default:
		return WrapExtractError(op, err, fmt.Sprintf("%s error", service))
	}
}

// readPDF loads a PDF for an engine that takes inline content.
func readPDF(op, path string, limit int) ([]byte, error) {
	data, err := readFile(path)
	if err != nil {
		return nil, WrapExtractError(op, err, "reading document")
	}
	if len(data) > limit {
		return nil, WrapExtractError(op, ErrDocumentTooLarge, fmt.Sprintf("file size: %d bytes", len(data)))
	}
	if !hasPDFMagic(data) {
		return nil, WrapExtractError(op, ErrInvalidPDF, "missing PDF header")
	}
	return data, nil
}

package service

import "errors"

var (
	ErrNotFound         = errors.New("not found")
	ErrFileNotFound     = errors.New("file not found")
	ErrLinkNotFound     = errors.New("short link not found")
	ErrLinkExpired      = errors.New("short link has expired")
	ErrPasswordRequired = errors.New("password required")
	ErrInvalidPassword  = errors.New("invalid password")
	ErrUnauthorized     = errors.New("unauthorized")
	ErrForbidden        = errors.New("forbidden")
	ErrNoFiles          = errors.New("no files in upload")
	ErrInvalidInput     = errors.New("invalid input")
)

// UploadRejectedError reports a file refused by the type filters. Message
// names the offending file.
type UploadRejectedError struct {
	Filename string
	Reason   string
	// UnsupportedType is set when the sniffed content type was refused.
	UnsupportedType bool
}

func (e *UploadRejectedError) Error() string {
	return e.Filename + ": " + e.Reason
}

package apperrors

import "errors"

var (
	ErrNotFound          = errors.New("not found")
	ErrInvalidInput      = errors.New("invalid input")
	ErrConflict          = errors.New("conflict")
	ErrUnknownSource     = errors.New("unknown source")
	ErrNoData            = errors.New("no data")
	ErrIncompleteFetch   = errors.New("incomplete fetch")
	ErrTooManyRedirects  = errors.New("too many redirects")
	ErrMissingRedirect   = errors.New("redirect without location header")
	ErrDownloadTimeout   = errors.New("download timeout")
	ErrQualityGateFailed = errors.New("quality score below threshold")
)

package model

// ErrorKind classifies download failures for user-facing reporting.
type ErrorKind string

const (
	ErrorKindNone              ErrorKind = ""
	ErrorKindValidation        ErrorKind = "validation_error"
	ErrorKindSizeLimitExceeded ErrorKind = "size_limit_exceeded"
	ErrorKindUnavailable       ErrorKind = "unavailable"
	ErrorKindNotFound          ErrorKind = "not_found"
	ErrorKindTransfer          ErrorKind = "transfer_error"
	ErrorKindUnknown           ErrorKind = "unknown_error"
)

// DownloadResult is the outcome of a single download operation. All failures
// cross the orchestrator boundary as a result value, never as an error.
type DownloadResult struct {
	Success      bool
	FilePath     string
	FileSize     int64
	Kind         ErrorKind
	ErrorMessage string
}

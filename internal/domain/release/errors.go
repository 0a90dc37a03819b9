package release

import "errors"

var (
	// ErrInvalidVersion is returned for a malformed version triple.
	ErrInvalidVersion = errors.New("invalid version")
	// ErrInvalidInput is returned for bad arguments other than the version.
	ErrInvalidInput = errors.New("invalid input")
	// ErrInvalidPathType is returned when a path exists but has the wrong type.
	ErrInvalidPathType = errors.New("invalid path type")
	// ErrDirectory is returned when the output directory is missing or unusable.
	ErrDirectory = errors.New("output directory error")
	// ErrAlreadyExists is returned when the release folder exists and clobbering is disabled.
	ErrAlreadyExists = errors.New("release folder already exists")
	// ErrNetwork is returned on connection failures, timeouts and non-success HTTP statuses.
	ErrNetwork = errors.New("network error")
	// ErrExtraction is returned for corrupt or unsupported archive content.
	ErrExtraction = errors.New("extraction error")
	// ErrPermission is returned when ownership cannot be changed for lack of privilege.
	ErrPermission = errors.New("permission error")
)

// Process exit codes. Codes 1 through 5 are relied upon by wrapper scripts.
const (
	ExitOK            = 0
	ExitDirectory     = 1
	ExitPermission    = 2
	ExitInvalidType   = 3
	ExitInvalidInput  = 4
	ExitAlreadyExists = 5
	ExitNetwork       = 6
	ExitExtraction    = 7
	exitUnclassified  = 1
)

// ExitCode maps an error returned by the fetcher onto a process exit code.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, ErrPermission):
		return ExitPermission
	case errors.Is(err, ErrInvalidPathType):
		return ExitInvalidType
	case errors.Is(err, ErrInvalidVersion), errors.Is(err, ErrInvalidInput):
		return ExitInvalidInput
	case errors.Is(err, ErrAlreadyExists):
		return ExitAlreadyExists
	case errors.Is(err, ErrNetwork):
		return ExitNetwork
	case errors.Is(err, ErrExtraction):
		return ExitExtraction
	case errors.Is(err, ErrDirectory):
		return ExitDirectory
	default:
		return exitUnclassified
	}
}

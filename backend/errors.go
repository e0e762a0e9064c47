package backend

import "github.com/pkg/errors"

var (
	// ErrNotReady means the backend has not produced a value for the request yet.
	ErrNotReady = errors.New("backend value not ready")
	// ErrClosed is returned by calls on a closed client.
	ErrClosed = errors.New("backend client closed")
)

// wire error codes
const (
	codeNotReady = "not_ready"
	codeClosed   = "closed"
)

func errorFromCode(code string) error {
	switch code {
	case "":
		return nil
	case codeNotReady:
		return ErrNotReady
	case codeClosed:
		return ErrClosed
	default:
		return errors.Errorf("backend error: %s", code)
	}
}

func codeFromError(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNotReady):
		return codeNotReady
	case errors.Is(err, ErrClosed):
		return codeClosed
	default:
		return err.Error()
	}
}

package firestore

import (
	"errors"
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/tholdem/uniqn-sync/pkg/records"
)

// BackendError is returned to listeners when a snapshot stream fails.
type BackendError struct {
	Collection records.Collection
	Code       codes.Code
	Transient  bool
	Err        error
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Collection, e.Code, e.Err)
}

func (e *BackendError) Unwrap() error {
	return e.Err
}

func newBackendError(col records.Collection, err error) *BackendError {
	code := status.Code(err)
	return &BackendError{
		Collection: col,
		Code:       code,
		Transient:  transient(code),
		Err:        err,
	}
}

func transient(code codes.Code) bool {
	switch code {
	case codes.Unavailable, codes.DeadlineExceeded, codes.ResourceExhausted, codes.Aborted:
		return true
	}
	return false
}

// IsTransient reports whether err is a backend failure that may succeed
// when retried.
func IsTransient(err error) bool {
	var be *BackendError
	if errors.As(err, &be) {
		return be.Transient
	}
	return false
}

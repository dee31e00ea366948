package remote

import (
	"errors"
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// ErrPermission marks failures the user should see as "you don't have
// permission" rather than a generic network error.
var ErrPermission = errors.New("permission denied")

// ErrUnavailable marks failures caused by the store being unreachable.
var ErrUnavailable = errors.New("store unavailable")

// Classify maps a Firestore client error onto the layer's error taxonomy so
// callers can produce distinct user-facing messages. Unrecognized errors
// pass through unchanged.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	st, ok := status.FromError(err)
	if !ok {
		return err
	}
	switch st.Code() {
	case codes.PermissionDenied, codes.Unauthenticated:
		return fmt.Errorf("%w: %s", ErrPermission, st.Message())
	case codes.Unavailable, codes.DeadlineExceeded:
		return fmt.Errorf("%w: %s", ErrUnavailable, st.Message())
	default:
		return err
	}
}

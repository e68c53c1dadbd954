package dockerclient

import (
	"context"
	"errors"
	"strings"

	"github.com/docker/docker/errdefs"

	"dockerpilot/internal/apierrors"
)

// mapDaemonError classifies a raw Docker SDK error into one of the tagged
// kinds C2 promises, following the same "wrap every daemon call into a
// typed, retryable-or-not error" discipline the teacher's runner package
// uses for its RuntimeError.
func mapDaemonError(op string, err error) error {
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return apierrors.New(op, apierrors.KindTimeout, err)
	case errdefs.IsNotFound(err):
		return apierrors.New(op, apierrors.KindNotFound, err)
	case errdefs.IsConflict(err):
		return apierrors.New(op, apierrors.KindConflict, err)
	case errdefs.IsUnauthorized(err), errdefs.IsForbidden(err):
		return apierrors.New(op, apierrors.KindImagePullDenied, err)
	case errdefs.IsUnavailable(err), errdefs.IsSystem(err):
		return apierrors.New(op, apierrors.KindDaemonUnavailable, err)
	case isConnectionRefused(err):
		return apierrors.New(op, apierrors.KindDaemonUnavailable, err)
	default:
		return apierrors.New(op, apierrors.KindDaemonError, err)
	}
}

func isNotFoundErr(err error) bool {
	return apierrors.Is(err, apierrors.KindNotFound)
}

func isConnectionRefused(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "no such host") ||
		strings.Contains(msg, "cannot connect to the Docker daemon")
}

package database

import (
	"context"
	"database/sql/driver"
	"errors"
	"net"
	"strings"

	"gorm.io/gorm"

	apperrors "github.com/kbukum/remworker/errors"
)

// transientMessages catch driver errors that carry no typed sentinel,
// such as sqlite lock contention and postgres connection limits.
var transientMessages = []string{
	"connection refused",
	"connection reset",
	"broken pipe",
	"database is locked",
	"deadlock",
	"too many connections",
}

// IsRetryableError reports whether err is likely to clear on its own.
func IsRetryableError(err error) bool {
	if err == nil {
		return false
	}
	var netErr net.Error
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, context.DeadlineExceeded) || errors.As(err, &netErr) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, m := range transientMessages {
		if strings.Contains(msg, m) {
			return true
		}
	}
	return false
}

// FromDatabase maps a GORM error on resource/id into the service errors.
func FromDatabase(err error, resource, id string) *apperrors.AppError {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return apperrors.NotFound(resource, id).WithCause(err)
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return apperrors.Conflict(resource + " " + id + " already exists").WithCause(err)
	}
	e := apperrors.DatabaseError(err)
	e.Retryable = IsRetryableError(err)
	return e
}

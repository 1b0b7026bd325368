package repository

import (
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/ManuelReschke/PayFox/internal/pkg/apperror"
)

var (
	// ErrDuplicateKey is returned when a unique index rejects a write.
	ErrDuplicateKey = errors.New("duplicate key")
	// ErrStaleWrite is returned when a guarded update matched no row because
	// the stored status changed in between.
	ErrStaleWrite = errors.New("stale write")
)

// translate maps gorm errors onto the repository error contract.
func translate(err error, what string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperror.NotFound(what + " not found")
	}
	if isDuplicate(err) {
		return ErrDuplicateKey
	}
	return apperror.Internal("database error on "+what, err)
}

func isDuplicate(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") || strings.Contains(msg, "Duplicate entry")
}

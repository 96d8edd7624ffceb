package repository

import (
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"
)

var (
	// ErrNotFound is returned when a lookup matches no row
	ErrNotFound = errors.New("record not found")
	// ErrConflict is returned when a write collides with existing state
	ErrConflict = errors.New("conflict")
	// ErrValidation marks caller input that can never succeed as sent
	ErrValidation = errors.New("validation failed")
	// ErrForbidden marks actions the current state of the account disallows
	ErrForbidden = errors.New("forbidden")
	// ErrGuardFailed is returned when a guarded update matched no row
	ErrGuardFailed = fmt.Errorf("%w: guarded update matched no row", ErrConflict)
)

// translate maps gorm errors onto repository sentinels
func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case isUniqueViolation(err):
		return fmt.Errorf("%w: %v", ErrConflict, err)
	default:
		return err
	}
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "duplicate key value")
}

// guarded turns a RowsAffected result into ErrGuardFailed when nothing matched
func guarded(res *gorm.DB) error {
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrGuardFailed
	}
	return nil
}

// Package repository implements the data access layer for the application.
package repository

import (
	"errors"
	"strings"

	"murmur/internal/database"
	"murmur/internal/models"

	"gorm.io/gorm"
)

// notFoundOr maps gorm.ErrRecordNotFound to a NOT_FOUND AppError and wraps anything else as internal.
func notFoundOr(err error, resource string, id interface{}) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.NewNotFoundError(resource, id)
	}
	return models.NewInternalError(err)
}

// conflictOr maps unique violations to a CONFLICT AppError.
func conflictOr(err error, message string) error {
	if database.IsUniqueViolation(err) {
		return models.NewConflictError(message)
	}
	return models.NewInternalError(err)
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// containsPattern builds a lowercase LIKE pattern matching q anywhere, with wildcards in q escaped.
func containsPattern(q string) string {
	return "%" + likeEscaper.Replace(strings.ToLower(q)) + "%"
}

package database

import (
	"errors"
	"strings"

	apperrors "github.com/glefebvre/reelvault/internal/errors"
	"github.com/glefebvre/reelvault/internal/models"
	"gorm.io/gorm"
)

// LikeEscape is the ESCAPE clause matching ContainsPattern
const LikeEscape = `ESCAPE '\'`

var likeReplacer = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// ContainsPattern folds s with models.FoldSearch and escapes LIKE wildcards so that
// it matches literally anywhere in a folded search column compared with LIKE ? ESCAPE '\'
func ContainsPattern(s string) string {
	return "%" + likeReplacer.Replace(models.FoldSearch(s)) + "%"
}

// IsDuplicate reports a unique index violation
func IsDuplicate(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey)
}

// IsNotFound reports a missing row
func IsNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}

// Translate maps a gorm error to an app error. Missing rows become NOT_FOUND for resource/id.
func Translate(err error, resource, id string) error {
	switch {
	case err == nil:
		return nil
	case IsNotFound(err):
		return apperrors.NotFoundError(resource, id)
	case IsDuplicate(err):
		return apperrors.ConflictError(resource + " already exists")
	default:
		return apperrors.DatabaseError(resource+" query failed", err)
	}
}

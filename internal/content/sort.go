package content

import (
	"slices"
	"strings"

	"github.com/glefebvre/reelvault/internal/database"
	apperrors "github.com/glefebvre/reelvault/internal/errors"
	"github.com/samber/lo"
	"gorm.io/gorm/clause"
)

// DefaultSort orders listings newest release first
const DefaultSort = "-releaseDate"

// sortColumns maps public sort field names onto columns
var sortColumns = map[string]string{
	"releaseDate": "release_date",
	"rating":      "rating",
	"title":       "title",
	"createdAt":   "created_at",
}

// SortFields lists the accepted sort field names
func SortFields() []string {
	fields := lo.Keys(sortColumns)
	slices.Sort(fields)
	return fields
}

// ParseSort turns "field" or "-field" into an ORDER BY with id as tiebreaker
func ParseSort(sort string) (clause.OrderBy, error) {
	sort = strings.TrimSpace(sort)
	if sort == "" {
		sort = DefaultSort
	}

	desc := strings.HasPrefix(sort, "-")
	field := strings.TrimPrefix(sort, "-")

	column, ok := sortColumns[field]
	if !ok {
		return clause.OrderBy{}, apperrors.Validationf("sort must be one of: %s (prefix with - for descending)", strings.Join(SortFields(), ", "))
	}

	return clause.OrderBy{Columns: []clause.OrderByColumn{
		{Column: clause.Column{Name: column}, Desc: desc},
		{Column: clause.Column{Name: "id"}},
	}}, nil
}

// relevanceOrder ranks title matches of the whole query above tag-only matches
func relevanceOrder(q string) clause.OrderBy {
	return clause.OrderBy{Expression: clause.Expr{
		SQL:                "CASE WHEN search_title LIKE ? " + database.LikeEscape + " THEN 0 ELSE 1 END, release_date DESC, id ASC",
		Vars:               []interface{}{database.ContainsPattern(q)},
		WithoutParentheses: true,
	}}
}

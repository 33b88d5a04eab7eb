package validation

import (
	"testing"

	apperrors "github.com/glefebvre/reelvault/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	Title   string   `json:"title" validate:"required,max=10"`
	Genres  []string `json:"genres" validate:"min=1,dive,required"`
	Type    string   `json:"type" validate:"oneof=movie webseries anime"`
	Poster  string   `json:"posterUrl" validate:"required,url"`
	Rating  *float64 `json:"rating" validate:"omitempty,gte=0,lte=10"`
	Ignored string   `json:"-"`
}

func validSample() sample {
	return sample{Title: "Dune", Genres: []string{"Sci-Fi"}, Type: "movie", Poster: "https://e/p.jpg"}
}

func TestStruct_Valid(t *testing.T) {
	assert.NoError(t, Struct(validSample()))
}

func TestStruct_Messages(t *testing.T) {
	high := 11.5

	tests := []struct {
		name    string
		mutate  func(*sample)
		message string
		field   string
	}{
		{"missing title", func(s *sample) { s.Title = "" }, "title is required", "title"},
		{"long title", func(s *sample) { s.Title = "a very long title" }, "title must be at most 10 characters", "title"},
		{"no genres", func(s *sample) { s.Genres = nil }, "genres must contain at least 1 item(s)", "genres"},
		{"blank genre", func(s *sample) { s.Genres = []string{""} }, "genres[0] is required", "genres[0]"},
		{"bad type", func(s *sample) { s.Type = "series" }, "type must be one of: movie, webseries, anime", "type"},
		{"bad url", func(s *sample) { s.Poster = "not a url" }, "posterUrl must be a valid URL", "posterUrl"},
		{"rating range", func(s *sample) { s.Rating = &high }, "rating must be at most 10", "rating"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := validSample()
			tt.mutate(&s)

			err := Struct(s)
			require.Error(t, err)
			assert.True(t, apperrors.IsValidationError(err))

			var appErr *apperrors.AppError
			require.ErrorAs(t, err, &appErr)
			assert.Equal(t, tt.message, appErr.Message)
			assert.Equal(t, []string{tt.field}, appErr.Context["fields"])
		})
	}
}

func TestStruct_MultipleFailures(t *testing.T) {
	err := Struct(sample{Genres: []string{"x"}, Type: "movie"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "title is required; posterUrl is required")
}

func TestVar(t *testing.T) {
	assert.NoError(t, Var("status", "pending", "oneof=pending approved"))

	err := Var("status", "closed", "oneof=pending approved")
	require.Error(t, err)
	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "status must be one of: pending, approved", appErr.Message)
}

func TestStruct_NotAStruct(t *testing.T) {
	err := Struct(42)
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeInternal, apperrors.GetErrorCode(err))
}

func TestCleanList(t *testing.T) {
	assert.Equal(t, []string{"Drama", "Sci-Fi"}, CleanList([]string{" Drama ", "", "  ", "Sci-Fi"}))
	assert.Equal(t, []string{}, CleanList(nil))
	assert.Equal(t, []string{"b", "a", "b"}, CleanList([]string{"b", "a", "b"}))
}

func TestTrimOptional(t *testing.T) {
	assert.Nil(t, TrimOptional(nil))

	blank := "   "
	assert.Nil(t, TrimOptional(&blank))

	value := "  Denis Villeneuve "
	got := TrimOptional(&value)
	require.NotNil(t, got)
	assert.Equal(t, "Denis Villeneuve", *got)
}

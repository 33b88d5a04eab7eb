package availability

import (
	"context"
	"testing"

	apperrors "github.com/glefebvre/reelvault/internal/errors"
	"github.com/glefebvre/reelvault/internal/logger"
	"github.com/glefebvre/reelvault/internal/models"
	"github.com/glefebvre/reelvault/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validInput() Input {
	return Input{
		Label:      "HD",
		Language:   "English",
		SourceType: models.SourceOfficial,
		URL:        "https://cdn/x.mp4",
	}
}

func TestCreate(t *testing.T) {
	db := testutil.TestDB(t)
	svc := NewService(db, logger.Discard())
	ctx := context.Background()
	c := testutil.CreateContent(t, db)

	in := validInput()
	in.Size = "1.2GB"
	q := models.Quality1080p
	in.Quality = &q

	row, err := svc.Create(ctx, c.ID, in)
	require.NoError(t, err)
	assert.NotZero(t, row.ID)
	assert.Equal(t, c.ID, row.ContentID)
	require.NotNil(t, row.SizeBytes)
	assert.Equal(t, int64(1_200_000_000), *row.SizeBytes)
	assert.Equal(t, models.Quality1080p, *row.Quality)

	_, err = svc.Create(ctx, 9999, validInput())
	assert.True(t, apperrors.IsNotFound(err))
}

func TestCreate_Validation(t *testing.T) {
	db := testutil.TestDB(t)
	svc := NewService(db, logger.Discard())
	c := testutil.CreateContent(t, db)
	badQuality := models.Quality("8K")

	tests := []struct {
		name   string
		mutate func(*Input)
	}{
		{"missing label", func(in *Input) { in.Label = "  " }},
		{"missing language", func(in *Input) { in.Language = "" }},
		{"bad source", func(in *Input) { in.SourceType = "Torrent" }},
		{"missing url", func(in *Input) { in.URL = "" }},
		{"bad url", func(in *Input) { in.URL = "cdn/x.mp4" }},
		{"bad quality", func(in *Input) { in.Quality = &badQuality }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := validInput()
			tt.mutate(&in)
			_, err := svc.Create(context.Background(), c.ID, in)
			require.Error(t, err)
			assert.True(t, apperrors.IsValidationError(err), err.Error())
		})
	}
}

func TestListForContent(t *testing.T) {
	db := testutil.TestDB(t)
	svc := NewService(db, logger.Discard())
	ctx := context.Background()

	a := testutil.CreateContent(t, db)
	b := testutil.CreateContent(t, db)
	first := testutil.CreateAvailability(t, db, a.ID)
	testutil.CreateAvailability(t, db, b.ID)
	second := testutil.CreateAvailability(t, db, a.ID)

	rows, err := svc.ListForContent(ctx, a.ID)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, first.ID, rows[0].ID)
	assert.Equal(t, second.ID, rows[1].ID)

	empty := testutil.CreateContent(t, db)
	rows, err = svc.ListForContent(ctx, empty.ID)
	require.NoError(t, err)
	assert.NotNil(t, rows)
	assert.Empty(t, rows)

	_, err = svc.ListForContent(ctx, 9999)
	assert.True(t, apperrors.IsNotFound(err))
}

func TestReplace(t *testing.T) {
	db := testutil.TestDB(t)
	svc := NewService(db, logger.Discard())
	ctx := context.Background()

	c := testutil.CreateContent(t, db)
	row := testutil.CreateAvailability(t, db, c.ID)

	in := validInput()
	in.Label = "4K HDR"
	in.URL = "https://t.me/NewBot?start=42"
	in.Size = "unknown"

	updated, err := svc.Replace(ctx, c.ID, row.ID, in)
	require.NoError(t, err)
	assert.Equal(t, "4K HDR", updated.Label)
	assert.Equal(t, "https://t.me/NewBot?start=42", updated.URL)
	assert.Nil(t, updated.SizeBytes)
	assert.Equal(t, c.ID, updated.ContentID)
}

func TestReplaceAndDelete_CrossContent(t *testing.T) {
	db := testutil.TestDB(t)
	svc := NewService(db, logger.Discard())
	ctx := context.Background()

	a := testutil.CreateContent(t, db)
	b := testutil.CreateContent(t, db)
	rowOfB := testutil.CreateAvailability(t, db, b.ID)

	_, err := svc.Replace(ctx, a.ID, rowOfB.ID, validInput())
	require.Error(t, err)
	assert.True(t, apperrors.IsNotFound(err))

	err = svc.Delete(ctx, a.ID, rowOfB.ID)
	assert.True(t, apperrors.IsNotFound(err))

	testutil.AssertCount(t, db, &models.Availability{}, 1, "row of another content must survive")

	require.NoError(t, svc.Delete(ctx, b.ID, rowOfB.ID))
	testutil.AssertCount(t, db, &models.Availability{}, 0, "row deleted through its own content")

	err = svc.Delete(ctx, b.ID, rowOfB.ID)
	assert.True(t, apperrors.IsNotFound(err))
}

func TestDeleteForContent(t *testing.T) {
	db := testutil.TestDB(t)
	svc := NewService(db, logger.Discard())
	ctx := context.Background()

	a := testutil.CreateContent(t, db)
	b := testutil.CreateContent(t, db)
	for i := 0; i < 3; i++ {
		testutil.CreateAvailability(t, db, a.ID)
	}
	testutil.CreateAvailability(t, db, b.ID)

	n, err := svc.DeleteForContent(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	n, err = svc.DeleteForContent(ctx, a.ID)
	require.NoError(t, err)
	assert.Zero(t, n)

	testutil.AssertCount(t, db, &models.Availability{}, 1, "only the other content's row remains")
}

func TestParseSize(t *testing.T) {
	tests := []struct {
		in   string
		want *int64
	}{
		{"1.2GB", ptr(1_200_000_000)},
		{"700 MiB", ptr(734_003_200)},
		{"42", ptr(42)},
		{"", nil},
		{"huge", nil},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseSize(tt.in))
		})
	}
}

func ptr(v int64) *int64 {
	return &v
}

func TestInputOf_ReplaceKeepsFields(t *testing.T) {
	db := testutil.TestDB(t)
	svc := NewService(db, logger.Discard())
	ctx := context.Background()
	c := testutil.CreateContent(t, db)

	in := validInput()
	in.Size = "700 MiB"
	region := "EU"
	in.Region = &region
	row, err := svc.Create(ctx, c.ID, in)
	require.NoError(t, err)

	next := InputOf(*row)
	next.URL = "https://mirror.example.com/x.mp4"
	updated, err := svc.Replace(ctx, c.ID, row.ID, next)
	require.NoError(t, err)

	assert.Equal(t, "https://mirror.example.com/x.mp4", updated.URL)
	assert.Equal(t, "700 MiB", updated.Size)
	require.NotNil(t, updated.Region)
	assert.Equal(t, "EU", *updated.Region)
	assert.Equal(t, row.Label, updated.Label)
}

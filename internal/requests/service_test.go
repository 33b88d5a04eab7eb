package requests

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	apperrors "github.com/glefebvre/reelvault/internal/errors"
	"github.com/glefebvre/reelvault/internal/logger"
	"github.com/glefebvre/reelvault/internal/models"
	"github.com/glefebvre/reelvault/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var fixedNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func newService(t *testing.T) (*Service, *gorm.DB) {
	t.Helper()
	db := testutil.TestDB(t)
	return NewService(db, logger.Discard(), WithClock(func() time.Time { return fixedNow })), db
}

func dune() Input {
	return Input{ContentName: "Dune", YearOfRelease: 2021, RequestedBy: "paul", ContentType: models.ContentTypeMovie}
}

func TestCreate_Defaults(t *testing.T) {
	svc, _ := newService(t)

	req, err := svc.Create(context.Background(), dune(), "203.0.113.7")
	require.NoError(t, err)
	assert.NotZero(t, req.ID)
	assert.Equal(t, models.RequestPending, req.Status)
	assert.Equal(t, models.PriorityMedium, req.Priority)
	require.NotNil(t, req.CreatedIP)
	assert.Equal(t, "203.0.113.7", *req.CreatedIP)
	assert.Equal(t, "dune|2021|movie", req.DedupeKey)

	noIP, err := svc.Create(context.Background(), Input{
		ContentName: "Arrival", YearOfRelease: 2016, RequestedBy: "louise", ContentType: models.ContentTypeMovie,
	}, "")
	require.NoError(t, err)
	assert.Nil(t, noIP.CreatedIP)
}

func TestCreate_Duplicate(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, dune(), "")
	require.NoError(t, err)

	_, err = svc.Create(ctx, dune(), "")
	require.Error(t, err)
	assert.True(t, apperrors.IsConflict(err))

	variant := dune()
	variant.ContentName = "  DUNE "
	variant.RequestedBy = "someone else"
	_, err = svc.Create(ctx, variant, "")
	assert.True(t, apperrors.IsConflict(err), "comparison ignores case and surrounding spaces")

	other := dune()
	other.ContentType = models.ContentTypeAnime
	_, err = svc.Create(ctx, other, "")
	assert.NoError(t, err, "a different content type is a different request")

	remake := dune()
	remake.YearOfRelease = 1984
	_, err = svc.Create(ctx, remake, "")
	assert.NoError(t, err)
}

func TestCreate_ConcurrentDuplicate(t *testing.T) {
	svc, db := newService(t)
	const workers = 8

	errs := make([]error, workers)
	var wg sync.WaitGroup
	for i := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			in := dune()
			in.RequestedBy = fmt.Sprintf("fan %d", i)
			_, errs[i] = svc.Create(context.Background(), in, "")
		}()
	}
	wg.Wait()

	created := 0
	for _, err := range errs {
		if err == nil {
			created++
			continue
		}
		assert.Equal(t, apperrors.CodeConflict, apperrors.GetErrorCode(err), err.Error())
	}
	assert.Equal(t, 1, created)

	var count int64
	require.NoError(t, db.Model(&models.ContentRequest{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestCreate_Validation(t *testing.T) {
	svc, _ := newService(t)

	tests := []struct {
		name   string
		mutate func(*Input)
	}{
		{"missing name", func(in *Input) { in.ContentName = "   " }},
		{"missing requester", func(in *Input) { in.RequestedBy = "" }},
		{"missing year", func(in *Input) { in.YearOfRelease = 0 }},
		{"too old", func(in *Input) { in.YearOfRelease = 1887 }},
		{"too far ahead", func(in *Input) { in.YearOfRelease = 2030 }},
		{"bad type", func(in *Input) { in.ContentType = "documentary" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := dune()
			tt.mutate(&in)
			_, err := svc.Create(context.Background(), in, "")
			require.Error(t, err)
			assert.True(t, apperrors.IsValidationError(err), err.Error())
		})
	}

	edge := dune()
	edge.YearOfRelease = 2029
	_, err := svc.Create(context.Background(), edge, "")
	assert.NoError(t, err, "current year + 5 is accepted")

	first := dune()
	first.ContentName = "Roundhay Garden Scene"
	first.YearOfRelease = MinYear
	_, err = svc.Create(context.Background(), first, "")
	assert.NoError(t, err)
}

func TestList_Filters(t *testing.T) {
	svc, db := newService(t)
	ctx := context.Background()

	testutil.CreateRequest(t, db, func(r *models.ContentRequest) {
		r.ContentName = "Akira"
		r.ContentType = models.ContentTypeAnime
		r.Priority = models.PriorityHigh
	})
	testutil.CreateRequest(t, db, func(r *models.ContentRequest) {
		r.ContentName = "Severance"
		r.ContentType = models.ContentTypeWebSeries
		r.Status = models.RequestApproved
		r.RequestedBy = "mark"
	})
	testutil.CreateRequest(t, db, func(r *models.ContentRequest) {
		r.ContentName = "Heat"
		r.RequestedBy = "Marky Mark"
	})
	testutil.CreateRequest(t, db, func(r *models.ContentRequest) {
		r.ContentName = "Amélie"
		r.RequestedBy = "Zoë"
	})

	tests := []struct {
		name   string
		filter ListFilter
		want   []string
	}{
		{"status", ListFilter{Status: "approved"}, []string{"Severance"}},
		{"type", ListFilter{ContentType: "anime"}, []string{"Akira"}},
		{"priority", ListFilter{Priority: "high"}, []string{"Akira"}},
		{"search requester", ListFilter{Search: "MARK", SortBy: "contentName", SortOrder: "asc"}, []string{"Heat", "Severance"}},
		{"search name", ListFilter{Search: "kir"}, []string{"Akira"}},
		{"search accented name", ListFilter{Search: "AMÉLIE"}, []string{"Amélie"}},
		{"search accented requester", ListFilter{Search: "zoë"}, []string{"Amélie"}},
		{"sort by name desc", ListFilter{SortBy: "contentName"}, []string{"Severance", "Heat", "Amélie", "Akira"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page, err := svc.List(ctx, tt.filter)
			require.NoError(t, err)
			assert.Equal(t, tt.want, names(page.Data))
			assert.Equal(t, int64(len(tt.want)), page.Pagination.Total)
		})
	}
}

func TestList_Invalid(t *testing.T) {
	svc, _ := newService(t)

	filters := []ListFilter{
		{Status: "closed"},
		{ContentType: "series"},
		{Priority: "urgent"},
		{SortBy: "requestedBy"},
		{SortOrder: "sideways"},
		{PageRequest: models.PageRequest{Page: -1}},
	}

	for i, f := range filters {
		t.Run(fmt.Sprint(i), func(t *testing.T) {
			_, err := svc.List(context.Background(), f)
			assert.True(t, apperrors.IsValidationError(err))
		})
	}
}

func TestList_Pagination(t *testing.T) {
	svc, db := newService(t)

	for i := 0; i < 12; i++ {
		testutil.CreateRequest(t, db)
	}

	page, err := svc.List(context.Background(), ListFilter{PageRequest: models.PageRequest{Page: 2, Limit: 5}})
	require.NoError(t, err)
	assert.Len(t, page.Data, 5)
	assert.Equal(t, models.Pagination{Total: 12, Page: 2, Pages: 3, Limit: 5}, page.Pagination)
}

func TestPatchFields(t *testing.T) {
	svc, db := newService(t)
	ctx := context.Background()

	existing := testutil.CreateRequest(t, db)

	status := models.RequestApproved
	notes := "  adding next week "
	updated, err := svc.PatchFields(ctx, existing.ID, Patch{Status: &status, AdminNotes: &notes})
	require.NoError(t, err)
	assert.Equal(t, models.RequestApproved, updated.Status)
	assert.Equal(t, models.PriorityMedium, updated.Priority)
	require.NotNil(t, updated.AdminNotes)
	assert.Equal(t, "adding next week", *updated.AdminNotes)
	assert.Equal(t, existing.ContentName, updated.ContentName)

	// any status may follow any other
	back := models.RequestPending
	updated, err = svc.PatchFields(ctx, existing.ID, Patch{Status: &back})
	require.NoError(t, err)
	assert.Equal(t, models.RequestPending, updated.Status)

	empty := ""
	updated, err = svc.PatchFields(ctx, existing.ID, Patch{AdminNotes: &empty})
	require.NoError(t, err)
	assert.Nil(t, updated.AdminNotes)

	_, err = svc.PatchFields(ctx, existing.ID, Patch{})
	assert.True(t, apperrors.IsValidationError(err))

	bad := models.RequestStatus("closed")
	_, err = svc.PatchFields(ctx, existing.ID, Patch{Status: &bad})
	assert.True(t, apperrors.IsValidationError(err))

	_, err = svc.PatchFields(ctx, 9999, Patch{Status: &status})
	assert.True(t, apperrors.IsNotFound(err))
}

func TestDuplicateStatus_DoesNotBlockOthers(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	req, err := svc.Create(ctx, dune(), "")
	require.NoError(t, err)

	dup := models.RequestDuplicate
	_, err = svc.PatchFields(ctx, req.ID, Patch{Status: &dup})
	require.NoError(t, err)

	_, err = svc.Create(ctx, dune(), "")
	assert.True(t, apperrors.IsConflict(err), "the unique key still applies")
}

func TestGetAndDelete(t *testing.T) {
	svc, db := newService(t)
	ctx := context.Background()

	existing := testutil.CreateRequest(t, db)

	got, err := svc.Get(ctx, existing.ID)
	require.NoError(t, err)
	assert.Equal(t, existing.ContentName, got.ContentName)

	require.NoError(t, svc.Delete(ctx, existing.ID))

	_, err = svc.Get(ctx, existing.ID)
	assert.True(t, apperrors.IsNotFound(err))
	assert.True(t, apperrors.IsNotFound(svc.Delete(ctx, existing.ID)))
}

func names(items []models.ContentRequest) []string {
	out := make([]string, 0, len(items))
	for _, r := range items {
		out = append(out, r.ContentName)
	}
	return out
}

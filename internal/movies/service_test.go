package movies

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Clark-Hu/theater-api/internal/domain"
	"github.com/Clark-Hu/theater-api/internal/errs"
	"github.com/Clark-Hu/theater-api/internal/repository"
)

var fixedNow = time.Date(2024, time.March, 10, 18, 30, 0, 0, time.UTC)

func newTestService(t testing.TB) (*Service, *repository.InMemoryMoviesRepository) {
	t.Helper()
	repo := repository.NewInMemoryMoviesRepository()
	svc := NewService(repo, zerolog.Nop(), WithClock(func() time.Time { return fixedNow }))
	return svc, repo
}

func validCreate(name string) domain.MovieCreate {
	return domain.MovieCreate{
		Name:      name,
		Date:      time.Date(2010, time.July, 16, 0, 0, 0, 0, time.UTC),
		Score:     87,
		Genre:     "Action, Science Fiction",
		Overview:  "A thief who steals corporate secrets through dream-sharing.",
		Crew:      "Leonardo DiCaprio, Cobb",
		OrigTitle: name,
		Status:    "Released",
		OrigLang:  "English",
		Budget:    160_000_000,
		Revenue:   836_800_000,
		Country:   "US",
	}
}

func mustCreate(t testing.TB, svc *Service, name string) domain.Movie {
	t.Helper()
	movie, err := svc.Create(context.Background(), validCreate(name))
	require.NoError(t, err)
	return movie
}

func ptr[T any](v T) *T { return &v }

func TestCreate_RoundTrip(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	input := validCreate("Inception")
	created, err := svc.Create(ctx, input)
	require.NoError(t, err)
	assert.Positive(t, created.ID)

	got, err := svc.GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)
	assert.Equal(t, input.Name, got.Name)
	assert.True(t, input.Date.Equal(got.Date))
	assert.Equal(t, input.Score, got.Score)
	assert.Equal(t, input.Genre, got.Genre)
	assert.Equal(t, input.Overview, got.Overview)
	assert.Equal(t, input.Crew, got.Crew)
	assert.Equal(t, input.OrigTitle, got.OrigTitle)
	assert.Equal(t, input.Status, got.Status)
	assert.Equal(t, input.OrigLang, got.OrigLang)
	assert.Equal(t, input.Budget, got.Budget)
	assert.Equal(t, input.Revenue, got.Revenue)
	assert.Equal(t, input.Country, got.Country)
}

func TestCreate_Validation(t *testing.T) {
	today := time.Date(2024, time.March, 10, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		mutate  func(*domain.MovieCreate)
		wantMsg string
	}{
		{"name too long", func(m *domain.MovieCreate) { m.Name = strings.Repeat("a", 256) }, msgNameTooLong},
		{"date one year and a day ahead", func(m *domain.MovieCreate) { m.Date = today.AddDate(0, 0, 366) }, msgDateTooFar},
		{"score above range", func(m *domain.MovieCreate) { m.Score = 150 }, msgScoreRange},
		{"score below range", func(m *domain.MovieCreate) { m.Score = -0.1 }, msgScoreRange},
		{"negative budget", func(m *domain.MovieCreate) { m.Budget = -1 }, msgBudgetNegative},
		{"negative revenue", func(m *domain.MovieCreate) { m.Revenue = -1 }, msgRevenueNegative},
		{
			name: "first failing rule wins",
			mutate: func(m *domain.MovieCreate) {
				m.Score = 101
				m.Budget = -5
				m.Revenue = -5
			},
			wantMsg: msgScoreRange,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, repo := newTestService(t)
			input := validCreate("Inception")
			tt.mutate(&input)

			_, err := svc.Create(context.Background(), input)
			require.Error(t, err)
			assert.Equal(t, errs.EINVALID, errs.ErrorCode(err))
			assert.Equal(t, tt.wantMsg, errs.ErrorMessage(err))

			count, err := repo.Count(context.Background())
			require.NoError(t, err)
			assert.Zero(t, count, "nothing may be persisted on validation failure")
		})
	}
}

func TestCreate_Boundaries(t *testing.T) {
	today := time.Date(2024, time.March, 10, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		mutate func(*domain.MovieCreate)
	}{
		{"name of exactly 255 characters", func(m *domain.MovieCreate) { m.Name = strings.Repeat("é", 255) }},
		{"date exactly one year ahead", func(m *domain.MovieCreate) { m.Date = today.AddDate(0, 0, 365) }},
		{"date far in the past", func(m *domain.MovieCreate) { m.Date = time.Date(1895, 12, 28, 0, 0, 0, 0, time.UTC) }},
		{"score 100", func(m *domain.MovieCreate) { m.Score = 100 }},
		{"score 0", func(m *domain.MovieCreate) { m.Score = 0 }},
		{"zero budget and revenue", func(m *domain.MovieCreate) { m.Budget, m.Revenue = 0, 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _ := newTestService(t)
			input := validCreate("Boundary")
			tt.mutate(&input)

			_, err := svc.Create(context.Background(), input)
			assert.NoError(t, err)
		})
	}
}

func TestCreate_Duplicate(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	mustCreate(t, svc, "Heat")

	_, err := svc.Create(ctx, validCreate("Heat"))
	require.Error(t, err)
	assert.Equal(t, errs.ECONFLICT, errs.ErrorCode(err))
	assert.Equal(t, "A movie with the name 'Heat' and release date '2010-07-16' already exists.", errs.ErrorMessage(err))

	sameNameOtherDate := validCreate("Heat")
	sameNameOtherDate.Date = time.Date(1995, 12, 15, 0, 0, 0, 0, time.UTC)
	_, err = svc.Create(ctx, sameNameOtherDate)
	assert.NoError(t, err)
}

func TestCreate_NormalizesDate(t *testing.T) {
	svc, _ := newTestService(t)

	input := validCreate("Normalized")
	input.Date = time.Date(2010, time.July, 16, 23, 59, 0, 0, time.UTC)
	created, err := svc.Create(context.Background(), input)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2010, time.July, 16, 0, 0, 0, 0, time.UTC), created.Date)
}

func TestGetByID_NotFound(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.GetByID(context.Background(), 42)
	require.Error(t, err)
	assert.Equal(t, errs.ENOTFOUND, errs.ErrorCode(err))
	assert.Equal(t, msgMovieNotFound, errs.ErrorMessage(err))
}

func TestList_Pagination(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	for i := 1; i <= 25; i++ {
		mustCreate(t, svc, fmt.Sprintf("Movie %02d", i))
	}

	first, err := svc.List(ctx, 1, 10)
	require.NoError(t, err)
	assert.Len(t, first.Movies, 10)
	assert.Equal(t, int64(25), first.TotalItems)
	assert.Equal(t, 3, first.TotalPages)
	assert.Nil(t, first.PrevPage)
	require.NotNil(t, first.NextPage)
	assert.Equal(t, "/api/v1/theater/movies/?page=2&per_page=10", *first.NextPage)
	assert.Equal(t, "Movie 01", first.Movies[0].Name)

	middle, err := svc.List(ctx, 2, 10)
	require.NoError(t, err)
	require.NotNil(t, middle.PrevPage)
	require.NotNil(t, middle.NextPage)
	assert.Equal(t, "/api/v1/theater/movies/?page=1&per_page=10", *middle.PrevPage)
	assert.Equal(t, "/api/v1/theater/movies/?page=3&per_page=10", *middle.NextPage)
	assert.Equal(t, "Movie 11", middle.Movies[0].Name)

	last, err := svc.List(ctx, 3, 10)
	require.NoError(t, err)
	assert.Len(t, last.Movies, 5)
	assert.NotNil(t, last.PrevPage)
	assert.Nil(t, last.NextPage)

	for _, perPage := range []int{1, 10, MaxPerPage} {
		_, err = svc.List(ctx, math.MaxInt, perPage)
		assert.Equal(t, errs.ENOTFOUND, errs.ErrorCode(err), "page=MaxInt per_page=%d", perPage)
	}
	_, err = svc.List(ctx, 922337203685477581, 20)
	require.Error(t, err)
	assert.Equal(t, errs.ENOTFOUND, errs.ErrorCode(err))
	assert.Equal(t, msgNoMovies, errs.ErrorMessage(err))
}

func TestList_Properties(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	const total = 23
	for i := 0; i < total; i++ {
		mustCreate(t, svc, fmt.Sprintf("Prop %d", i))
	}

	for perPage := 1; perPage <= MaxPerPage; perPage++ {
		wantPages := (total + perPage - 1) / perPage
		for page := 1; page <= wantPages; page++ {
			result, err := svc.List(ctx, page, perPage)
			require.NoError(t, err, "page=%d per_page=%d", page, perPage)
			assert.LessOrEqual(t, len(result.Movies), perPage)
			assert.Equal(t, wantPages, result.TotalPages)
			assert.Equal(t, page == 1, result.PrevPage == nil)
			assert.Equal(t, page == wantPages, result.NextPage == nil)
		}

		_, err := svc.List(ctx, wantPages+1, perPage)
		assert.Equal(t, errs.ENOTFOUND, errs.ErrorCode(err), "page beyond total for per_page=%d", perPage)
	}
}

func TestList_EmptyStoreIsNotFound(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.List(context.Background(), 1, 10)
	require.Error(t, err)
	assert.Equal(t, errs.ENOTFOUND, errs.ErrorCode(err))
	assert.Equal(t, msgNoMovies, errs.ErrorMessage(err))
}

func TestList_InvalidParams(t *testing.T) {
	svc, _ := newTestService(t)
	cases := [][2]int{{0, 10}, {1, 0}, {1, 21}, {-3, 5}}
	for _, c := range cases {
		_, err := svc.List(context.Background(), c[0], c[1])
		assert.Equal(t, errs.EINVALID, errs.ErrorCode(err), "page=%d per_page=%d", c[0], c[1])
	}
}

func TestUpdate_PartialLeavesOtherFields(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	created := mustCreate(t, svc, "Partial")

	require.NoError(t, svc.Update(ctx, created.ID, domain.MovieUpdate{Score: ptr(50.0)}))

	got, err := svc.GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, 50.0, got.Score)

	expected := created
	expected.Score = 50
	assert.Equal(t, expected, got)
}

func TestUpdate_AppliesEveryUpdatableField(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	created := mustCreate(t, svc, "Everything")
	newDate := time.Date(2011, time.January, 2, 0, 0, 0, 0, time.UTC)

	err := svc.Update(ctx, created.ID, domain.MovieUpdate{
		Name:     ptr("Everything Renamed"),
		Date:     &newDate,
		Score:    ptr(12.5),
		Overview: ptr("new overview"),
		Status:   ptr("Post Production"),
		Budget:   ptr(1.0),
		Revenue:  ptr(2.0),
	})
	require.NoError(t, err)

	got, err := svc.GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Everything Renamed", got.Name)
	assert.True(t, newDate.Equal(got.Date))
	assert.Equal(t, 12.5, got.Score)
	assert.Equal(t, "new overview", got.Overview)
	assert.Equal(t, "Post Production", got.Status)
	assert.Equal(t, 1.0, got.Budget)
	assert.Equal(t, 2.0, got.Revenue)
	assert.Equal(t, created.Genre, got.Genre)
	assert.Equal(t, created.Crew, got.Crew)
	assert.Equal(t, created.OrigTitle, got.OrigTitle)
	assert.Equal(t, created.OrigLang, got.OrigLang)
	assert.Equal(t, created.Country, got.Country)
}

func TestUpdate_Validation(t *testing.T) {
	tests := []struct {
		name   string
		update domain.MovieUpdate
	}{
		{"score above range", domain.MovieUpdate{Score: ptr(100.5)}},
		{"negative budget", domain.MovieUpdate{Budget: ptr(-1.0)}},
		{"negative revenue", domain.MovieUpdate{Revenue: ptr(-0.01)}},
		{"name too long", domain.MovieUpdate{Name: ptr(strings.Repeat("x", 256))}},
		{"valid field with invalid field", domain.MovieUpdate{Status: ptr("Released"), Score: ptr(-1.0)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _ := newTestService(t)
			ctx := context.Background()
			created := mustCreate(t, svc, "Validate")

			err := svc.Update(ctx, created.ID, tt.update)
			require.Error(t, err)
			assert.Equal(t, errs.EINVALID, errs.ErrorCode(err))
			assert.Equal(t, msgInvalidInput, errs.ErrorMessage(err))

			got, err := svc.GetByID(ctx, created.ID)
			require.NoError(t, err)
			assert.Equal(t, created, got, "failed update must not write")
		})
	}
}

func TestUpdate_NotFoundBeforeValidation(t *testing.T) {
	svc, _ := newTestService(t)

	err := svc.Update(context.Background(), 999, domain.MovieUpdate{Score: ptr(500.0)})
	assert.Equal(t, errs.ENOTFOUND, errs.ErrorCode(err))
}

func TestUpdate_EmptyIsNoop(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	created := mustCreate(t, svc, "Noop")

	require.NoError(t, svc.Update(ctx, created.ID, domain.MovieUpdate{}))
	got, err := svc.GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created, got)
}

func TestUpdate_RenameCollisionIsConflict(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	mustCreate(t, svc, "First")
	second := mustCreate(t, svc, "Second")

	err := svc.Update(ctx, second.ID, domain.MovieUpdate{Name: ptr("First")})
	assert.Equal(t, errs.ECONFLICT, errs.ErrorCode(err))
}

func TestDelete(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	created := mustCreate(t, svc, "Doomed")

	require.NoError(t, svc.Delete(ctx, created.ID))

	_, err := svc.GetByID(ctx, created.ID)
	assert.Equal(t, errs.ENOTFOUND, errs.ErrorCode(err))

	err = svc.Delete(ctx, created.ID)
	assert.Equal(t, errs.ENOTFOUND, errs.ErrorCode(err))
}

type failingRepo struct {
	repository.InMemoryMoviesRepository
	err error
}

func (f *failingRepo) List(ctx context.Context, offset, limit int) ([]domain.Movie, error) {
	return nil, f.err
}

func (f *failingRepo) FindByNameAndDate(ctx context.Context, name string, date time.Time) (domain.Movie, error) {
	return domain.Movie{}, f.err
}

func TestStoreFailuresAreInternal(t *testing.T) {
	boom := errors.New("connection reset")
	repo := &failingRepo{err: boom}
	svc := NewService(repo, zerolog.Nop(), WithClock(func() time.Time { return fixedNow }))

	_, err := svc.List(context.Background(), 1, 10)
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, errs.EINTERNAL, errs.ErrorCode(err))

	_, err = svc.Create(context.Background(), validCreate("Unlucky"))
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, errs.EINTERNAL, errs.ErrorCode(err))
}

type failingCountRepo struct {
	*repository.InMemoryMoviesRepository
	err error
}

func (f failingCountRepo) Count(ctx context.Context) (int64, error) {
	return 0, f.err
}

func TestList_CountFailureIsWrappedOnce(t *testing.T) {
	repo := repository.NewInMemoryMoviesRepository()
	svc := NewService(failingCountRepo{InMemoryMoviesRepository: repo, err: errors.New("connection reset")},
		zerolog.Nop(), WithClock(func() time.Time { return fixedNow }))
	mustCreate(t, svc, "Counted")

	_, err := svc.List(context.Background(), 1, 10)
	require.Error(t, err)
	assert.Equal(t, errs.EINTERNAL, errs.ErrorCode(err))
	assert.Equal(t, "count movies: connection reset", err.Error())
}

func TestTotalPages(t *testing.T) {
	tests := []struct {
		total   int64
		perPage int
		want    int
	}{
		{0, 10, 0},
		{1, 10, 1},
		{10, 10, 1},
		{11, 10, 2},
		{41, 20, 3},
		{5, 0, 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, TotalPages(tt.total, tt.perPage), "TotalPages(%d, %d)", tt.total, tt.perPage)
	}
}

// Package movies implements the movie catalogue use cases: lookup, paginated
// listing, validated creation, partial update and deletion.
package movies

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"github.com/Clark-Hu/theater-api/internal/domain"
	"github.com/Clark-Hu/theater-api/internal/errs"
	"github.com/Clark-Hu/theater-api/internal/metrics"
	"github.com/Clark-Hu/theater-api/internal/repository"
)

const (
	MaxNameLength  = 255
	DefaultPage    = 1
	DefaultPerPage = 10
	MaxPerPage     = 20

	// ListPath is the public path the prev/next links point at.
	ListPath = "/api/v1/theater/movies/"

	maxScore         = 100
	futureWindowDays = 365
)

// Client-facing messages.
const (
	msgMovieNotFound   = "Movie with the given ID was not found."
	msgNoMovies        = "No movies found."
	msgNameTooLong     = "Name must not exceed 255 characters."
	msgDateTooFar      = "Movie date must not be more than one year in the future."
	msgScoreRange      = "Score must be between 0 and 100."
	msgBudgetNegative  = "Budget must be a non-negative number."
	msgRevenueNegative = "Revenue must be a non-negative number."
	msgInvalidInput    = "Invalid input data."
	msgInvalidPaging   = "page must be >= 1 and per_page must be between 1 and 20."
)

// Repository is the data store the service depends on.
type Repository interface {
	GetByID(ctx context.Context, id int64) (domain.Movie, error)
	List(ctx context.Context, offset, limit int) ([]domain.Movie, error)
	Count(ctx context.Context) (int64, error)
	FindByNameAndDate(ctx context.Context, name string, date time.Time) (domain.Movie, error)
	Create(ctx context.Context, params domain.MovieCreate) (domain.Movie, error)
	Update(ctx context.Context, id int64, update domain.MovieUpdate) error
	Delete(ctx context.Context, id int64) error
}

// Service validates movie requests and shapes paginated results.
type Service struct {
	repo Repository
	log  zerolog.Logger
	now  func() time.Time
}

// Option customises a Service.
type Option func(*Service)

// WithClock overrides the clock used for the release date window.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// NewService wires the movie service with its repository.
func NewService(repo Repository, log zerolog.Logger, opts ...Option) *Service {
	s := &Service{
		repo: repo,
		log:  log.With().Str("component", "movie-service").Logger(),
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GetByID returns the movie with the given id.
func (s *Service) GetByID(ctx context.Context, id int64) (_ domain.Movie, err error) {
	defer s.observe("get", &err)

	movie, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.Movie{}, errs.Errorf(errs.ENOTFOUND, msgMovieNotFound)
		}
		return domain.Movie{}, fmt.Errorf("get movie %d: %w", id, err)
	}
	return movie, nil
}

// List returns one page of movies ordered by id. An empty page is reported as not found.
func (s *Service) List(ctx context.Context, page, perPage int) (_ domain.MoviePage, err error) {
	defer s.observe("list", &err)

	if page < 1 || perPage < 1 || perPage > MaxPerPage {
		return domain.MoviePage{}, errs.Errorf(errs.EINVALID, msgInvalidPaging)
	}

	// No store holds more than MaxInt rows, so an offset past MaxInt is always an empty page.
	if page-1 > math.MaxInt/perPage {
		return domain.MoviePage{}, errs.Errorf(errs.ENOTFOUND, msgNoMovies)
	}
	offset := (page - 1) * perPage
	items, err := s.repo.List(ctx, offset, perPage)
	if err != nil {
		return domain.MoviePage{}, fmt.Errorf("list movies: %w", err)
	}
	if len(items) == 0 {
		return domain.MoviePage{}, errs.Errorf(errs.ENOTFOUND, msgNoMovies)
	}

	total, err := s.repo.Count(ctx)
	if err != nil {
		return domain.MoviePage{}, fmt.Errorf("count movies: %w", err)
	}
	totalPages := TotalPages(total, perPage)

	result := domain.MoviePage{
		Movies:     items,
		TotalPages: totalPages,
		TotalItems: total,
	}
	if page > 1 {
		link := PageLink(page-1, perPage)
		result.PrevPage = &link
	}
	if page < totalPages {
		link := PageLink(page+1, perPage)
		result.NextPage = &link
	}
	return result, nil
}

// Create validates the input and stores a new movie.
func (s *Service) Create(ctx context.Context, input domain.MovieCreate) (_ domain.Movie, err error) {
	defer s.observe("create", &err)

	input.Date = normalizeDate(input.Date)
	if err := s.validateCreate(input); err != nil {
		return domain.Movie{}, err
	}

	_, err = s.repo.FindByNameAndDate(ctx, input.Name, input.Date)
	switch {
	case err == nil:
		return domain.Movie{}, duplicateError(input.Name, input.Date)
	case !errors.Is(err, repository.ErrNotFound):
		return domain.Movie{}, fmt.Errorf("check duplicate movie: %w", err)
	}

	movie, err := s.repo.Create(ctx, input)
	if err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return domain.Movie{}, duplicateError(input.Name, input.Date)
		}
		return domain.Movie{}, fmt.Errorf("create movie: %w", err)
	}

	s.log.Info().Int64("movie_id", movie.ID).Str("name", movie.Name).Msg("movie created")
	return movie, nil
}

// Update applies the present fields of update to an existing movie.
func (s *Service) Update(ctx context.Context, id int64, update domain.MovieUpdate) (err error) {
	defer s.observe("update", &err)

	if _, err := s.repo.GetByID(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return errs.Errorf(errs.ENOTFOUND, msgMovieNotFound)
		}
		return fmt.Errorf("get movie %d: %w", id, err)
	}

	if err := validateUpdate(update); err != nil {
		return err
	}
	if update.Date != nil {
		d := normalizeDate(*update.Date)
		update.Date = &d
	}

	if err := s.repo.Update(ctx, id, update); err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			return errs.Errorf(errs.ENOTFOUND, msgMovieNotFound)
		case errors.Is(err, repository.ErrConflict):
			return errs.Errorf(errs.ECONFLICT, "A movie with the same name and release date already exists.")
		}
		return fmt.Errorf("update movie %d: %w", id, err)
	}

	s.log.Info().Int64("movie_id", id).Msg("movie updated")
	return nil
}

// Delete removes a movie permanently.
func (s *Service) Delete(ctx context.Context, id int64) (err error) {
	defer s.observe("delete", &err)

	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return errs.Errorf(errs.ENOTFOUND, msgMovieNotFound)
		}
		return fmt.Errorf("delete movie %d: %w", id, err)
	}

	s.log.Info().Int64("movie_id", id).Msg("movie deleted")
	return nil
}

func (s *Service) validateCreate(input domain.MovieCreate) error {
	if utf8.RuneCountInString(input.Name) > MaxNameLength {
		return errs.Errorf(errs.EINVALID, msgNameTooLong)
	}
	if input.Date.After(s.latestReleaseDate()) {
		return errs.Errorf(errs.EINVALID, msgDateTooFar)
	}
	if !validScore(input.Score) {
		return errs.Errorf(errs.EINVALID, msgScoreRange)
	}
	if !nonNegative(input.Budget) {
		return errs.Errorf(errs.EINVALID, msgBudgetNegative)
	}
	if !nonNegative(input.Revenue) {
		return errs.Errorf(errs.EINVALID, msgRevenueNegative)
	}
	return nil
}

func validateUpdate(update domain.MovieUpdate) error {
	invalid := (update.Score != nil && !validScore(*update.Score)) ||
		(update.Budget != nil && !nonNegative(*update.Budget)) ||
		(update.Revenue != nil && !nonNegative(*update.Revenue)) ||
		(update.Name != nil && utf8.RuneCountInString(*update.Name) > MaxNameLength)
	if invalid {
		return errs.Errorf(errs.EINVALID, msgInvalidInput)
	}
	return nil
}

// latestReleaseDate is today (UTC) plus one year; the bound is inclusive.
func (s *Service) latestReleaseDate() time.Time {
	return normalizeDate(s.now().UTC()).AddDate(0, 0, futureWindowDays)
}

func (s *Service) observe(operation string, err *error) {
	outcome := "ok"
	if *err != nil {
		outcome = errs.ErrorCode(*err)
		if outcome == errs.EINTERNAL {
			s.log.Error().Err(*err).Str("operation", operation).Msg("movie operation failed")
		}
	}
	metrics.MovieOperationsTotal.WithLabelValues(operation, outcome).Inc()
}

// TotalPages is ceil(total/perPage).
func TotalPages(total int64, perPage int) int {
	if perPage <= 0 {
		return 0
	}
	return int((total + int64(perPage) - 1) / int64(perPage))
}

// PageLink formats the path of a list page.
func PageLink(page, perPage int) string {
	return fmt.Sprintf("%s?page=%d&per_page=%d", ListPath, page, perPage)
}

func duplicateError(name string, date time.Time) error {
	return errs.Errorf(errs.ECONFLICT,
		"A movie with the name '%s' and release date '%s' already exists.",
		name, date.Format(domain.DateLayout))
}

func normalizeDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// NaN never satisfies the comparisons below.
func validScore(v float64) bool {
	return v >= 0 && v <= maxScore
}

func nonNegative(v float64) bool {
	return v >= 0 && !math.IsInf(v, 1)
}

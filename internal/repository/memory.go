package repository

import (
	"context"
	"sync"
	"time"

	"github.com/Clark-Hu/theater-api/internal/domain"
)

// InMemoryMoviesRepository is a thread-safe movie store useful for tests and local demos.
// It mirrors the Postgres semantics: ids ascend, (name, date) is unique.
type InMemoryMoviesRepository struct {
	mu     sync.RWMutex
	nextID int64
	movies []domain.Movie
}

// NewInMemoryMoviesRepository returns an empty in-memory store.
func NewInMemoryMoviesRepository() *InMemoryMoviesRepository {
	return &InMemoryMoviesRepository{nextID: 1}
}

// GetByID fetches a movie by its identifier.
func (r *InMemoryMoviesRepository) GetByID(ctx context.Context, id int64) (domain.Movie, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if i := r.indexOf(id); i >= 0 {
		return r.movies[i], nil
	}
	return domain.Movie{}, ErrNotFound
}

// List returns up to limit movies starting at offset, ordered by id.
// A negative offset yields an empty page.
func (r *InMemoryMoviesRepository) List(ctx context.Context, offset, limit int) ([]domain.Movie, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if offset < 0 || offset >= len(r.movies) || limit <= 0 {
		return []domain.Movie{}, nil
	}
	end := offset + limit
	if end > len(r.movies) || end < offset {
		end = len(r.movies)
	}
	out := make([]domain.Movie, end-offset)
	copy(out, r.movies[offset:end])
	return out, nil
}

// Count returns the number of stored movies.
func (r *InMemoryMoviesRepository) Count(ctx context.Context) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return int64(len(r.movies)), nil
}

// FindByNameAndDate fetches the movie with the given name and release date.
func (r *InMemoryMoviesRepository) FindByNameAndDate(ctx context.Context, name string, date time.Time) (domain.Movie, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, m := range r.movies {
		if m.Name == name && m.Date.Equal(date) {
			return m, nil
		}
	}
	return domain.Movie{}, ErrNotFound
}

// Create stores a new movie under the next id. A duplicate (name, date) yields ErrConflict.
func (r *InMemoryMoviesRepository) Create(ctx context.Context, params domain.MovieCreate) (domain.Movie, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.duplicate(-1, params.Name, params.Date) {
		return domain.Movie{}, ErrConflict
	}

	movie := domain.Movie{
		ID:        r.nextID,
		Name:      params.Name,
		Date:      params.Date,
		Score:     params.Score,
		Genre:     params.Genre,
		Overview:  params.Overview,
		Crew:      params.Crew,
		OrigTitle: params.OrigTitle,
		Status:    params.Status,
		OrigLang:  params.OrigLang,
		Budget:    params.Budget,
		Revenue:   params.Revenue,
		Country:   params.Country,
	}
	r.nextID++
	r.movies = append(r.movies, movie)
	return movie, nil
}

// Update applies the present fields of update to the movie with the given id.
func (r *InMemoryMoviesRepository) Update(ctx context.Context, id int64, update domain.MovieUpdate) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	i := r.indexOf(id)
	if i < 0 {
		return ErrNotFound
	}
	updated := update.Apply(r.movies[i])
	if r.duplicate(id, updated.Name, updated.Date) {
		return ErrConflict
	}
	r.movies[i] = updated
	return nil
}

// Delete removes a movie permanently.
func (r *InMemoryMoviesRepository) Delete(ctx context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	i := r.indexOf(id)
	if i < 0 {
		return ErrNotFound
	}
	r.movies = append(r.movies[:i], r.movies[i+1:]...)
	return nil
}

// indexOf expects the caller to hold the lock.
func (r *InMemoryMoviesRepository) indexOf(id int64) int {
	for i, m := range r.movies {
		if m.ID == id {
			return i
		}
	}
	return -1
}

func (r *InMemoryMoviesRepository) duplicate(skipID int64, name string, date time.Time) bool {
	for _, m := range r.movies {
		if m.ID != skipID && m.Name == name && m.Date.Equal(date) {
			return true
		}
	}
	return false
}

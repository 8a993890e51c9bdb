package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Clark-Hu/theater-api/internal/domain"
)

const uniqueViolation = "23505"

// MoviesRepository provides persistence helpers for movie entities.
type MoviesRepository struct {
	pool *pgxpool.Pool
}

const movieColumns = `
    id,
    name,
    date,
    score,
    genre,
    overview,
    crew,
    orig_title,
    status,
    orig_lang,
    budget,
    revenue,
    country
`

// GetByID fetches a movie by its identifier.
func (r *MoviesRepository) GetByID(ctx context.Context, id int64) (domain.Movie, error) {
	query := fmt.Sprintf(`SELECT %s FROM movies WHERE id = $1`, movieColumns)
	movie, err := scanMovie(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Movie{}, ErrNotFound
		}
		return domain.Movie{}, err
	}
	return movie, nil
}

// List returns up to limit movies starting at offset, ordered by id.
func (r *MoviesRepository) List(ctx context.Context, offset, limit int) ([]domain.Movie, error) {
	query := fmt.Sprintf(`SELECT %s FROM movies ORDER BY id ASC OFFSET $1 LIMIT $2`, movieColumns)
	rows, err := r.pool.Query(ctx, query, offset, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]domain.Movie, 0, limit)
	for rows.Next() {
		movie, err := scanMovie(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, movie)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

// Count returns the total number of stored movies.
func (r *MoviesRepository) Count(ctx context.Context) (int64, error) {
	var total int64
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM movies`).Scan(&total); err != nil {
		return 0, err
	}
	return total, nil
}

// FindByNameAndDate fetches the movie with the given name and release date.
func (r *MoviesRepository) FindByNameAndDate(ctx context.Context, name string, date time.Time) (domain.Movie, error) {
	query := fmt.Sprintf(`SELECT %s FROM movies WHERE name = $1 AND date = $2`, movieColumns)
	movie, err := scanMovie(r.pool.QueryRow(ctx, query, name, date))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Movie{}, ErrNotFound
		}
		return domain.Movie{}, err
	}
	return movie, nil
}

// Create inserts a new movie row and returns the stored entity.
func (r *MoviesRepository) Create(ctx context.Context, params domain.MovieCreate) (domain.Movie, error) {
	query := fmt.Sprintf(`
        INSERT INTO movies (name, date, score, genre, overview, crew, orig_title, status, orig_lang, budget, revenue, country)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
        RETURNING %s
    `, movieColumns)

	row := r.pool.QueryRow(ctx, query,
		params.Name, params.Date, params.Score, params.Genre, params.Overview, params.Crew,
		params.OrigTitle, params.Status, params.OrigLang, params.Budget, params.Revenue, params.Country)
	movie, err := scanMovie(row)
	if err != nil {
		return domain.Movie{}, mapWriteError(err)
	}
	return movie, nil
}

// Update writes the fields present in update. An empty update only checks existence.
func (r *MoviesRepository) Update(ctx context.Context, id int64, update domain.MovieUpdate) error {
	if update.IsEmpty() {
		_, err := r.GetByID(ctx, id)
		return err
	}

	set := make([]string, 0, 7)
	args := make([]interface{}, 0, 8)
	arg := func(value interface{}) string {
		args = append(args, value)
		return fmt.Sprintf("$%d", len(args))
	}

	if update.Name != nil {
		set = append(set, "name = "+arg(*update.Name))
	}
	if update.Date != nil {
		set = append(set, "date = "+arg(*update.Date))
	}
	if update.Score != nil {
		set = append(set, "score = "+arg(*update.Score))
	}
	if update.Overview != nil {
		set = append(set, "overview = "+arg(*update.Overview))
	}
	if update.Status != nil {
		set = append(set, "status = "+arg(*update.Status))
	}
	if update.Budget != nil {
		set = append(set, "budget = "+arg(*update.Budget))
	}
	if update.Revenue != nil {
		set = append(set, "revenue = "+arg(*update.Revenue))
	}

	query := fmt.Sprintf(`UPDATE movies SET %s WHERE id = %s`, strings.Join(set, ", "), arg(id))
	tag, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return mapWriteError(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes a movie permanently.
func (r *MoviesRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM movies WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanMovie(row pgx.Row) (domain.Movie, error) {
	var movie domain.Movie
	err := row.Scan(
		&movie.ID,
		&movie.Name,
		&movie.Date,
		&movie.Score,
		&movie.Genre,
		&movie.Overview,
		&movie.Crew,
		&movie.OrigTitle,
		&movie.Status,
		&movie.OrigLang,
		&movie.Budget,
		&movie.Revenue,
		&movie.Country,
	)
	if err != nil {
		return domain.Movie{}, err
	}
	movie.Date = movie.Date.UTC()
	return movie, nil
}

func mapWriteError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return fmt.Errorf("%w: %s", ErrConflict, pgErr.ConstraintName)
	}
	return err
}

package main

import (
	"context"
	"encoding/csv"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/Clark-Hu/theater-api/internal/config"
	"github.com/Clark-Hu/theater-api/internal/domain"
	"github.com/Clark-Hu/theater-api/internal/errs"
	"github.com/Clark-Hu/theater-api/internal/logger"
	"github.com/Clark-Hu/theater-api/internal/movies"
	"github.com/Clark-Hu/theater-api/internal/repository"
	"github.com/Clark-Hu/theater-api/internal/store"
)

// csvDateLayout is the release date format of the IMDB dataset.
const csvDateLayout = "01/02/2006"

var requiredColumns = []string{
	"names", "date_x", "score", "genre", "overview", "crew",
	"orig_title", "status", "orig_lang", "budget_x", "revenue", "country",
}

type movieCreator interface {
	Create(ctx context.Context, input domain.MovieCreate) (domain.Movie, error)
}

type importStats struct {
	Read      int
	Imported  int
	Invalid   int
	Duplicate int
}

func main() {
	var (
		csvPath string
		limit   int
	)
	flag.StringVar(&csvPath, "csv", "imdb_movies.csv", "Path to the IMDB movies CSV")
	flag.IntVar(&limit, "limit", 0, "Limit number of rows to import (0 = all)")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		bootLog := zerolog.New(os.Stderr).With().Timestamp().Logger()
		bootLog.Fatal().Err(err).Msg("config error")
	}
	log := logger.New(cfg).With().Str("component", "seed").Logger()

	stats, err := run(context.Background(), cfg, csvPath, limit, log)
	if err != nil {
		log.Fatal().Err(err).Msg("import failed")
	}

	log.Info().
		Int("read", stats.Read).
		Int("imported", stats.Imported).
		Int("invalid", stats.Invalid).
		Int("duplicate", stats.Duplicate).
		Msg("import completed")
}

// run opens the store and the CSV, closing both before returning.
func run(ctx context.Context, cfg config.Config, csvPath string, limit int, log zerolog.Logger) (importStats, error) {
	file, err := os.Open(csvPath)
	if err != nil {
		return importStats{}, fmt.Errorf("open csv %s: %w", csvPath, err)
	}
	defer file.Close()

	st, err := store.New(ctx, cfg.DBURL, store.Options{
		MaxConns:               int32(cfg.DBMaxConns),
		MinConns:               int32(cfg.DBMinConns),
		ConnTimeout:            time.Duration(cfg.DBConnTimeoutSecs) * time.Second,
		StatementCacheCapacity: cfg.DBStatementCache,
		Logger:                 log,
	})
	if err != nil {
		return importStats{}, fmt.Errorf("connect database: %w", err)
	}
	defer st.Close()

	if err := st.Migrate(ctx); err != nil {
		return importStats{}, fmt.Errorf("run migrations: %w", err)
	}

	service := movies.NewService(repository.New(st).Movies, log)
	return importMovies(ctx, service, file, limit, log)
}

// importMovies creates one movie per CSV row through the service, so every row passes the API's
// validation and duplicate checks. Rejected rows are counted and skipped.
func importMovies(ctx context.Context, svc movieCreator, r io.Reader, limit int, log zerolog.Logger) (importStats, error) {
	var stats importStats

	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	header, err := reader.Read()
	if err != nil {
		return stats, fmt.Errorf("read header: %w", err)
	}
	columns, err := indexColumns(header)
	if err != nil {
		return stats, err
	}

	for limit <= 0 || stats.Read < limit {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return stats, fmt.Errorf("read row %d: %w", stats.Read+1, err)
		}
		stats.Read++

		input, err := parseRecord(columns, record)
		if err != nil {
			stats.Invalid++
			log.Debug().Err(err).Int("row", stats.Read).Msg("skipping unparsable row")
			continue
		}

		if _, err := svc.Create(ctx, input); err != nil {
			switch errs.ErrorCode(err) {
			case errs.EINVALID:
				stats.Invalid++
				log.Debug().Str("name", input.Name).Str("reason", errs.ErrorMessage(err)).Msg("skipping invalid movie")
			case errs.ECONFLICT:
				stats.Duplicate++
			default:
				return stats, fmt.Errorf("create %q: %w", input.Name, err)
			}
			continue
		}
		stats.Imported++
	}
	return stats, nil
}

func indexColumns(header []string) (map[string]int, error) {
	columns := make(map[string]int, len(header))
	for i, name := range header {
		columns[strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))] = i
	}
	var missing []string
	for _, name := range requiredColumns {
		if _, ok := columns[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("csv is missing columns: %s", strings.Join(missing, ", "))
	}
	return columns, nil
}

func parseRecord(columns map[string]int, record []string) (domain.MovieCreate, error) {
	field := func(name string) string {
		i := columns[name]
		if i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	name := field("names")
	if name == "" {
		return domain.MovieCreate{}, errors.New("empty name")
	}
	date, err := time.Parse(csvDateLayout, field("date_x"))
	if err != nil {
		return domain.MovieCreate{}, fmt.Errorf("date_x: %w", err)
	}
	score, err := parseNumber(field("score"))
	if err != nil {
		return domain.MovieCreate{}, fmt.Errorf("score: %w", err)
	}
	budget, err := parseNumber(field("budget_x"))
	if err != nil {
		return domain.MovieCreate{}, fmt.Errorf("budget_x: %w", err)
	}
	revenue, err := parseNumber(field("revenue"))
	if err != nil {
		return domain.MovieCreate{}, fmt.Errorf("revenue: %w", err)
	}

	return domain.MovieCreate{
		Name:      name,
		Date:      date,
		Score:     score,
		Genre:     field("genre"),
		Overview:  field("overview"),
		Crew:      field("crew"),
		OrigTitle: field("orig_title"),
		Status:    field("status"),
		OrigLang:  field("orig_lang"),
		Budget:    budget,
		Revenue:   revenue,
		Country:   field("country"),
	}, nil
}

// parseNumber accepts plain and thousands-separated numbers; an empty cell is zero.
func parseNumber(raw string) (float64, error) {
	raw = strings.ReplaceAll(raw, ",", "")
	if raw == "" {
		return 0, nil
	}
	return strconv.ParseFloat(raw, 64)
}

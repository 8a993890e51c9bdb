package httpserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/Clark-Hu/theater-api/internal/domain"
	"github.com/Clark-Hu/theater-api/internal/errs"
	"github.com/Clark-Hu/theater-api/internal/movies"
)

const maxRequestBody = 1 << 20 // 1 MiB

const (
	codeBadRequest    = "BAD_REQUEST"
	codeNotFound      = "NOT_FOUND"
	codeConflict      = "CONFLICT"
	codeInternalError = "INTERNAL_ERROR"
)

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type detailResponse struct {
	Detail string `json:"detail"`
}

// Every field is required on create; pointers tell a missing field apart from a zero value.
type movieCreateRequest struct {
	Name      *string  `json:"name" validate:"required"`
	Date      *string  `json:"date" validate:"required,datetime=2006-01-02"`
	Score     *float64 `json:"score" validate:"required"`
	Genre     *string  `json:"genre" validate:"required"`
	Overview  *string  `json:"overview" validate:"required"`
	Crew      *string  `json:"crew" validate:"required"`
	OrigTitle *string  `json:"orig_title" validate:"required"`
	Status    *string  `json:"status" validate:"required"`
	OrigLang  *string  `json:"orig_lang" validate:"required"`
	Budget    *float64 `json:"budget" validate:"required"`
	Revenue   *float64 `json:"revenue" validate:"required"`
	Country   *string  `json:"country" validate:"required"`
}

type movieUpdateRequest struct {
	Name     *string  `json:"name"`
	Date     *string  `json:"date" validate:"omitempty,datetime=2006-01-02"`
	Score    *float64 `json:"score"`
	Overview *string  `json:"overview"`
	Status   *string  `json:"status"`
	Budget   *float64 `json:"budget"`
	Revenue  *float64 `json:"revenue"`
}

type movieResponse struct {
	ID        int64   `json:"id"`
	Name      string  `json:"name"`
	Date      string  `json:"date"`
	Score     float64 `json:"score"`
	Genre     string  `json:"genre"`
	Overview  string  `json:"overview"`
	Crew      string  `json:"crew"`
	OrigTitle string  `json:"orig_title"`
	Status    string  `json:"status"`
	OrigLang  string  `json:"orig_lang"`
	Budget    float64 `json:"budget"`
	Revenue   float64 `json:"revenue"`
	Country   string  `json:"country"`
}

type movieListResponse struct {
	Movies     []movieResponse `json:"movies"`
	PrevPage   *string         `json:"prev_page"`
	NextPage   *string         `json:"next_page"`
	TotalPages int             `json:"total_pages"`
	TotalItems int64           `json:"total_items"`
}

func (s *Server) handleGetMovie(w http.ResponseWriter, r *http.Request) {
	id, err := decodeIDParam(r)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, codeBadRequest, err.Error())
		return
	}

	movie, err := s.movies.GetByID(r.Context(), id)
	if err != nil {
		s.respondServiceError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, toMovieResponse(movie))
}

func (s *Server) handleListMovies(w http.ResponseWriter, r *http.Request) {
	page, perPage, err := parsePagination(r.URL.Query())
	if err != nil {
		s.respondError(w, http.StatusBadRequest, codeBadRequest, err.Error())
		return
	}

	result, err := s.movies.List(r.Context(), page, perPage)
	if err != nil {
		s.respondServiceError(w, err)
		return
	}

	items := make([]movieResponse, 0, len(result.Movies))
	for _, movie := range result.Movies {
		items = append(items, toMovieResponse(movie))
	}
	s.respondJSON(w, http.StatusOK, movieListResponse{
		Movies:     items,
		PrevPage:   result.PrevPage,
		NextPage:   result.NextPage,
		TotalPages: result.TotalPages,
		TotalItems: result.TotalItems,
	})
}

// parsePagination reads page and per_page, falling back to the defaults when absent.
func parsePagination(query url.Values) (page, perPage int, err error) {
	page, perPage = movies.DefaultPage, movies.DefaultPerPage

	if val := strings.TrimSpace(query.Get("page")); val != "" {
		page, err = strconv.Atoi(val)
		if err != nil || page < 1 {
			return 0, 0, fmt.Errorf("page must be an integer >= 1")
		}
	}
	if val := strings.TrimSpace(query.Get("per_page")); val != "" {
		perPage, err = strconv.Atoi(val)
		if err != nil || perPage < 1 || perPage > movies.MaxPerPage {
			return 0, 0, fmt.Errorf("per_page must be an integer between 1 and %d", movies.MaxPerPage)
		}
	}
	return page, perPage, nil
}

func (s *Server) handleCreateMovie(w http.ResponseWriter, r *http.Request) {
	var req movieCreateRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		s.respondDecodeError(w, err)
		return
	}
	if err := s.validate.Struct(req); err != nil {
		s.respondValidationError(w, err)
		return
	}

	date, err := time.Parse(domain.DateLayout, *req.Date)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, codeBadRequest, "date must follow YYYY-MM-DD format")
		return
	}

	movie, err := s.movies.Create(r.Context(), domain.MovieCreate{
		Name:      *req.Name,
		Date:      date,
		Score:     *req.Score,
		Genre:     *req.Genre,
		Overview:  *req.Overview,
		Crew:      *req.Crew,
		OrigTitle: *req.OrigTitle,
		Status:    *req.Status,
		OrigLang:  *req.OrigLang,
		Budget:    *req.Budget,
		Revenue:   *req.Revenue,
		Country:   *req.Country,
	})
	if err != nil {
		s.respondServiceError(w, err)
		return
	}

	w.Header().Set("Location", fmt.Sprintf("%s%d/", movies.ListPath, movie.ID))
	s.respondJSON(w, http.StatusCreated, toMovieResponse(movie))
}

func (s *Server) handleUpdateMovie(w http.ResponseWriter, r *http.Request) {
	id, err := decodeIDParam(r)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, codeBadRequest, err.Error())
		return
	}

	var req movieUpdateRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		s.respondDecodeError(w, err)
		return
	}
	if err := s.validate.Struct(req); err != nil {
		s.respondValidationError(w, err)
		return
	}

	update := domain.MovieUpdate{
		Name:     req.Name,
		Score:    req.Score,
		Overview: req.Overview,
		Status:   req.Status,
		Budget:   req.Budget,
		Revenue:  req.Revenue,
	}
	if req.Date != nil {
		date, err := time.Parse(domain.DateLayout, *req.Date)
		if err != nil {
			s.respondError(w, http.StatusBadRequest, codeBadRequest, "date must follow YYYY-MM-DD format")
			return
		}
		update.Date = &date
	}

	if err := s.movies.Update(r.Context(), id, update); err != nil {
		s.respondServiceError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, detailResponse{Detail: "Movie updated successfully."})
}

func (s *Server) handleDeleteMovie(w http.ResponseWriter, r *http.Request) {
	id, err := decodeIDParam(r)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, codeBadRequest, err.Error())
		return
	}

	if err := s.movies.Delete(r.Context(), id); err != nil {
		s.respondServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Unknown fields are ignored.
func decodeJSONBody(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(dst)
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload != nil {
		if err := json.NewEncoder(w).Encode(payload); err != nil {
			s.logger.Error().Err(err).Msg("failed to encode response")
		}
	}
}

func (s *Server) respondError(w http.ResponseWriter, status int, code, message string) {
	s.respondJSON(w, status, errorResponse{
		Code:    code,
		Message: message,
	})
}

// respondServiceError maps application error codes onto HTTP statuses.
func (s *Server) respondServiceError(w http.ResponseWriter, err error) {
	switch errs.ErrorCode(err) {
	case errs.EINVALID:
		s.respondError(w, http.StatusBadRequest, codeBadRequest, errs.ErrorMessage(err))
	case errs.ENOTFOUND:
		s.respondError(w, http.StatusNotFound, codeNotFound, errs.ErrorMessage(err))
	case errs.ECONFLICT:
		s.respondError(w, http.StatusConflict, codeConflict, errs.ErrorMessage(err))
	default:
		s.logger.Error().Err(err).Msg("movie request failed")
		s.respondError(w, http.StatusInternalServerError, codeInternalError, "Internal server error.")
	}
}

func (s *Server) respondDecodeError(w http.ResponseWriter, err error) {
	var syntaxError *json.SyntaxError
	var typeError *json.UnmarshalTypeError
	var maxBytesError *http.MaxBytesError
	switch {
	case errors.As(err, &syntaxError), errors.Is(err, io.ErrUnexpectedEOF):
		s.respondError(w, http.StatusBadRequest, codeBadRequest, "Malformed JSON payload")
	case errors.As(err, &typeError):
		s.respondError(w, http.StatusBadRequest, codeBadRequest, fmt.Sprintf("Invalid value for field %s", typeError.Field))
	case errors.Is(err, io.EOF):
		s.respondError(w, http.StatusBadRequest, codeBadRequest, "Request body cannot be empty")
	case errors.As(err, &maxBytesError):
		s.respondError(w, http.StatusBadRequest, codeBadRequest, "Request body is too large")
	default:
		s.respondError(w, http.StatusBadRequest, codeBadRequest, "Unable to parse request body")
	}
}

func (s *Server) respondValidationError(w http.ResponseWriter, err error) {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		s.respondError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body")
		return
	}

	missing := make([]string, 0, len(validationErrors))
	invalid := make([]string, 0, len(validationErrors))
	for _, fe := range validationErrors {
		if fe.Tag() == "required" {
			missing = append(missing, fe.Field())
		} else {
			invalid = append(invalid, fe.Field())
		}
	}

	parts := make([]string, 0, 2)
	if len(missing) > 0 {
		parts = append(parts, "missing fields: "+strings.Join(missing, ", "))
	}
	if len(invalid) > 0 {
		parts = append(parts, "invalid fields: "+strings.Join(invalid, ", "))
	}
	s.respondError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body; "+strings.Join(parts, "; "))
}

func toMovieResponse(movie domain.Movie) movieResponse {
	return movieResponse{
		ID:        movie.ID,
		Name:      movie.Name,
		Date:      movie.Date.Format(domain.DateLayout),
		Score:     movie.Score,
		Genre:     movie.Genre,
		Overview:  movie.Overview,
		Crew:      movie.Crew,
		OrigTitle: movie.OrigTitle,
		Status:    movie.Status,
		OrigLang:  movie.OrigLang,
		Budget:    movie.Budget,
		Revenue:   movie.Revenue,
		Country:   movie.Country,
	}
}

func decodeIDParam(r *http.Request) (int64, error) {
	raw := chi.URLParam(r, "id")
	if raw == "" {
		return 0, fmt.Errorf("missing id parameter")
	}
	// Ids are BIGSERIAL, so zero or negative ids parse and then resolve to not found.
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("id must be an integer")
	}
	return id, nil
}

package domain

import "time"

// DateLayout is the wire and display format of a movie release date.
const DateLayout = "2006-01-02"

// Movie represents the canonical movie entity in the database/service.
type Movie struct {
	ID        int64
	Name      string
	Date      time.Time
	Score     float64
	Genre     string
	Overview  string
	Crew      string
	OrigTitle string
	Status    string
	OrigLang  string
	Budget    float64
	Revenue   float64
	Country   string
}

// MovieCreate carries every field required to create a movie. The store assigns the ID.
type MovieCreate struct {
	Name      string
	Date      time.Time
	Score     float64
	Genre     string
	Overview  string
	Crew      string
	OrigTitle string
	Status    string
	OrigLang  string
	Budget    float64
	Revenue   float64
	Country   string
}

// MovieUpdate is a partial update; nil fields are left unchanged.
// Genre, crew, original title, original language and country cannot be updated.
type MovieUpdate struct {
	Name     *string
	Date     *time.Time
	Score    *float64
	Overview *string
	Status   *string
	Budget   *float64
	Revenue  *float64
}

// IsEmpty reports whether the update carries no fields.
func (u MovieUpdate) IsEmpty() bool {
	return u.Name == nil && u.Date == nil && u.Score == nil && u.Overview == nil &&
		u.Status == nil && u.Budget == nil && u.Revenue == nil
}

// Apply returns a copy of m with the present fields of u applied.
func (u MovieUpdate) Apply(m Movie) Movie {
	if u.Name != nil {
		m.Name = *u.Name
	}
	if u.Date != nil {
		m.Date = *u.Date
	}
	if u.Score != nil {
		m.Score = *u.Score
	}
	if u.Overview != nil {
		m.Overview = *u.Overview
	}
	if u.Status != nil {
		m.Status = *u.Status
	}
	if u.Budget != nil {
		m.Budget = *u.Budget
	}
	if u.Revenue != nil {
		m.Revenue = *u.Revenue
	}
	return m
}

// MoviePage is one page of movies plus navigation metadata.
type MoviePage struct {
	Movies     []Movie
	PrevPage   *string
	NextPage   *string
	TotalPages int
	TotalItems int64
}

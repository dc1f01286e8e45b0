package models

import "time"

// GroupLang is the language cohort a student belongs to.
type GroupLang string

const (
	GroupRussian GroupLang = "ru"
	GroupTajik   GroupLang = "tj"
)

// Valid reports whether the value is one of the known cohorts.
func (g GroupLang) Valid() bool {
	return g == GroupRussian || g == GroupTajik
}

const (
	MinCourse = 1
	MaxCourse = 6
)

// User represents a registered bot user stored in the users table.
// Course and GroupLang stay NULL until the registration flow completes.
type User struct {
	UserID       int64      `db:"user_id" json:"user_id"`
	Username     *string    `db:"username" json:"username,omitempty"`
	FullName     string     `db:"full_name" json:"full_name"`
	Course       *int       `db:"course" json:"course,omitempty"`
	GroupLang    *GroupLang `db:"group_lang" json:"group_lang,omitempty"`
	RegisteredAt time.Time  `db:"registered_at" json:"registered_at"`
}

// Registered reports whether the registration flow has been completed.
func (u *User) Registered() bool {
	return u != nil && u.Course != nil && u.GroupLang != nil
}

// AudienceFilter selects broadcast recipients. Nil fields mean "all".
type AudienceFilter struct {
	Course    *int
	GroupLang *GroupLang
}

// UserStats summarises the user base for /admin_stats.
type UserStats struct {
	Total     int               `json:"total"`
	ByCourse  map[int]int       `json:"by_course"`
	ByGroup   map[GroupLang]int `json:"by_group"`
	Materials int               `json:"materials"`
}

// Package models holds the domain types shared across the engine.
package models

// Course sentinel values stored in the findings table. The compat schema
// keeps both in the negative region so exported reports stay stable.
const (
	// CourseNotInCourse marks content that lives outside any course
	// (site-level blocks, user profiles, ...).
	CourseNotInCourse int64 = -1
	// CourseUnknown marks records whose owning course could not be
	// resolved with the known table heuristics.
	CourseUnknown int64 = -2
)

// Finding is one persisted detection of a legacy video URL inside one
// column of one host record. Unique per (Table, Column, RecordID, URL).
type Finding struct {
	ID       int64  `json:"id"`
	Table    string `json:"table"`
	Column   string `json:"column"`
	RecordID int64  `json:"record_id"`
	URL      string `json:"url"`
	Replaced bool   `json:"replaced"`
	Course   int64  `json:"course"`
}

// InCourse reports whether the finding was attributed to a real course.
func (f Finding) InCourse() bool {
	return f.Course > 0
}

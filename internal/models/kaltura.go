package models

import "strings"

// FullNameSeparator is the separator Kaltura uses in materialized
// category paths, eg "Moodle>site>channels>2-50".
const FullNameSeparator = ">"

// Category is a node of the remote Kaltura taxonomy.
type Category struct {
	ID           int64  `json:"id"`
	ParentID     int64  `json:"parentId"`
	Name         string `json:"name"`
	FullName     string `json:"fullName"`
	Description  string `json:"description"`
	Tags         string `json:"tags"`
	ReferenceID  string `json:"referenceId"`
	EntriesCount int    `json:"entriesCount"`
}

// ChildFullName returns the full name a direct child with the given name
// would have under this category.
func (c Category) ChildFullName(name string) string {
	return c.FullName + FullNameSeparator + name
}

// MediaEntry is the remote media object resolved from a legacy reference id.
type MediaEntry struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	ReferenceID string `json:"referenceId"`
	Duration    int    `json:"duration"`
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	DownloadURL string `json:"downloadUrl"`
	MsDuration  int64  `json:"msDuration"`
}

// AspectRatio returns width/height, falling back to 16:9 when the entry
// carries no dimensions.
func (e MediaEntry) AspectRatio() float64 {
	if e.Width > 0 && e.Height > 0 {
		return float64(e.Width) / float64(e.Height)
	}
	return 16.0 / 9.0
}

// CategoryEntry links a media entry to a category.
type CategoryEntry struct {
	CategoryID int64  `json:"categoryId"`
	EntryID    string `json:"entryId"`
}

// UIConf is a Kaltura player configuration object.
type UIConf struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// CategoryDepth returns the number of path components of a full name.
func CategoryDepth(fullName string) int {
	if fullName == "" {
		return 0
	}
	return len(strings.Split(fullName, FullNameSeparator))
}

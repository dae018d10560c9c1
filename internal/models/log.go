package models

// Audit log levels. Values are part of the exported report format.
const (
	LevelInfo      = 1
	LevelOperation = 2
	LevelWarning   = 3
	LevelError     = 4
)

// Operation codes recorded with LevelOperation entries.
const (
	OpCreateCategory     = "CREATE_CATEGORY"
	OpRenameCategory     = "RENAME_CATEGORY"
	OpMoveCategory       = "MOVE_CATEGORY"
	OpCopyCategory       = "COPY_CATEGORY"
	OpDeleteCategory     = "DELETE_CATEGORY"
	OpAddMediaToCategory = "ADD_MEDIA_TO_CATEGORY"
)

// LogEntry is one append-only audit record. One execution is one run of
// scan, replace or module migration; Entry is the ordinal of the item
// being processed within that execution.
type LogEntry struct {
	ID        int64  `json:"id"`
	Execution int64  `json:"execution"`
	Testing   bool   `json:"testing"`
	Level     int    `json:"level"`
	Time      int64  `json:"time"`
	Entry     int64  `json:"entry"`
	Message   string `json:"message"`
	Code      string `json:"code"`
	ID1       string `json:"id1"`
	ID2       string `json:"id2"`
}

package models

import "fmt"

// CourseModule is a legacy SwitchCast activity being migrated. ExtID links
// it to the remote category holding its media.
type CourseModule struct {
	ID      int64
	Course  int64
	Name    string
	ExtID   string
	Section int64
}

// TargetCategoryName builds the reserved channel-category name for a
// module: "<courseID>-<moduleID>".
func TargetCategoryName(courseID, moduleID int64) string {
	return fmt.Sprintf("%d-%d", courseID, moduleID)
}

// TaskStatus is the coarse state of the single background task slot.
type TaskStatus string

const (
	TaskStatusIdle      TaskStatus = ""
	TaskStatusScheduled TaskStatus = "scheduled"
	TaskStatusRunning   TaskStatus = "running"
	TaskStatusCompleted TaskStatus = "completed"
	TaskStatusFailed    TaskStatus = "failed"
)

// Task names accepted by the background runner.
const (
	TaskScan           = "scan"
	TaskReplaceAll     = "replaceall"
	TaskReplaceModules = "replaceallmodules"
)

// EmbedStyle selects how the rewriter renders the replacement embed code.
type EmbedStyle string

const (
	// EmbedStyleScript renders a self-contained script/div embed with
	// inline pixel sizing.
	EmbedStyleScript EmbedStyle = "script"
	// EmbedStyleLink renders an anchor placeholder the host's Kaltura
	// content filter expands client-side.
	EmbedStyleLink EmbedStyle = "link"
)

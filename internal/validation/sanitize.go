package validation

import (
	"strings"

	"github.com/nhle/supertodo/internal/model"
)

// SanitizeSubtasks drops subtasks whose trimmed title is empty, keeps the
// relative order of the rest, and defaults a missing status to pending.
// It runs on writes only; stored subtasks are returned to readers as is.
func SanitizeSubtasks(in []model.SubtaskInput) []model.Subtask {
	out := make([]model.Subtask, 0, len(in))
	for _, s := range in {
		if strings.TrimSpace(s.Title) == "" {
			continue
		}
		status := model.Status(s.Status)
		if status == "" {
			status = model.StatusPending
		}
		out = append(out, model.Subtask{Title: s.Title, Status: status})
	}
	return out
}

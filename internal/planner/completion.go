package planner

import "kairos/internal/models/task"

// CompletionPercent: доля completed в списке дня ученика, 0..100.
// Пустой список даёт 0; округление половины вверх.
func CompletionPercent(tasks []task.Task, studentID string) int {
	worklist := Worklist(tasks, studentID)
	if len(worklist) == 0 {
		return 0
	}

	completed := 0
	for _, t := range worklist {
		if t.Status == task.StatusCompleted {
			completed++
		}
	}

	n := len(worklist)
	return (200*completed + n) / (2 * n)
}

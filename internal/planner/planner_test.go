package planner_test

import (
	"testing"
	"time"

	"kairos/internal/models/rhythm"
	"kairos/internal/models/task"
	"kairos/internal/planner"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleTasks() []task.Task {
	return []task.Task{
		{ID: "1", StudentID: "emma", Subject: task.SubjectMath, Status: task.StatusToday},
		{ID: "2", StudentID: "emma", Subject: task.SubjectPoetry, Status: task.StatusCompleted},
		{ID: "3", StudentID: "emma", Subject: "Custom Block", Status: task.StatusBank},
		{ID: "4", StudentID: "leo", Subject: task.SubjectRecitation, Status: task.StatusToday},
		{ID: "5", StudentID: "emma", Subject: task.SubjectReading, Status: task.StatusBank},
		{ID: "6", StudentID: "leo", Subject: "Custom Block", Status: task.StatusToday},
	}
}

func ids(tasks []task.Task) []string {
	res := make([]string, 0, len(tasks))
	for _, t := range tasks {
		res = append(res, t.ID)
	}
	return res
}

// TestFilterByRhythm_Identity проверяет отсутствие фильтрации без активного ритма
func TestFilterByRhythm_Identity(t *testing.T) {
	tasks := sampleTasks()
	rhythms := []rhythm.Rhythm{{ID: "r1", Name: "Academic Block"}}

	assert.Equal(t, tasks, planner.FilterByRhythm(tasks, "", rhythms, planner.DefaultRhythmSubjects))
	assert.Equal(t, tasks, planner.FilterByRhythm(tasks, "missing", rhythms, planner.DefaultRhythmSubjects))
}

func TestFilterByRhythm_BuiltinTable(t *testing.T) {
	rhythms := []rhythm.Rhythm{
		{ID: "r1", Name: "Academic Block"},
		{ID: "r2", Name: "Recitation Time"},
	}

	got := planner.FilterByRhythm(sampleTasks(), "r1", rhythms, planner.DefaultRhythmSubjects)
	assert.Equal(t, []string{"1", "5"}, ids(got))

	got = planner.FilterByRhythm(sampleTasks(), "r2", rhythms, planner.DefaultRhythmSubjects)
	assert.Equal(t, []string{"2", "4"}, ids(got))
}

// TestFilterByRhythm_Fallback проверяет совпадение по имени ритма вне таблицы
func TestFilterByRhythm_Fallback(t *testing.T) {
	rhythms := []rhythm.Rhythm{{ID: "r9", Name: "Custom Block"}}

	got := planner.FilterByRhythm(sampleTasks(), "r9", rhythms, planner.DefaultRhythmSubjects)
	assert.Equal(t, []string{"3", "6"}, ids(got))
	for _, tk := range got {
		assert.Equal(t, task.Subject("Custom Block"), tk.Subject)
	}
}

func TestFilterByRhythm_Stable(t *testing.T) {
	rhythms := []rhythm.Rhythm{{ID: "r1", Name: "Morning Basket"}}
	tasks := sampleTasks()

	first := planner.FilterByRhythm(tasks, "r1", rhythms, planner.DefaultRhythmSubjects)
	second := planner.FilterByRhythm(tasks, "r1", rhythms, planner.DefaultRhythmSubjects)
	assert.Equal(t, first, second)
}

func TestCountByDay(t *testing.T) {
	tasks := []task.Task{
		{StudentID: "emma", DueDate: task.DatePtr("2025-01-14")},
		{StudentID: "emma", DueDate: task.DatePtr("2025-01-14")},
		{StudentID: "emma", DueDate: task.DatePtr("2025-01-31")},
		{StudentID: "emma", DueDate: task.DatePtr("2025-02-01")},
		{StudentID: "emma", DueDate: task.DatePtr("2024-01-14")},
		{StudentID: "emma", DueDate: nil},
		{StudentID: "emma", DueDate: task.DatePtr("not-a-date")},
		{StudentID: "leo", DueDate: task.DatePtr("2025-01-14")},
	}

	got := planner.CountByDay(tasks, "emma", 2025, time.January)
	assert.Equal(t, map[int]int{14: 2, 31: 1}, got)
}

// TestCountByDay_TimezoneIndependent: результат не зависит от time.Local
func TestCountByDay_TimezoneIndependent(t *testing.T) {
	tasks := []task.Task{{StudentID: "emma", DueDate: task.DatePtr("2025-01-14")}}

	saved := time.Local
	defer func() { time.Local = saved }()

	for _, offset := range []int{-12, -8, -5, 0, 5, 9, 14} {
		time.Local = time.FixedZone("test", offset*3600)
		got := planner.CountByDay(tasks, "emma", 2025, time.January)
		assert.Equal(t, 1, got[14], "offset %d", offset)
		assert.Len(t, got, 1)
	}
}

func TestTasksOn(t *testing.T) {
	tasks := []task.Task{
		{ID: "a", StudentID: "emma", DueDate: task.DatePtr("2025-01-14")},
		{ID: "b", StudentID: "emma", DueDate: task.DatePtr("2025-01-15")},
		{ID: "c", StudentID: "leo", DueDate: task.DatePtr("2025-01-14")},
		{ID: "d", StudentID: "emma"},
	}

	assert.Equal(t, []string{"a"}, ids(planner.TasksOn(tasks, "emma", "2025-01-14")))
	assert.Empty(t, planner.TasksOn(tasks, "emma", "2025-1-14"))
}

func TestIsToday(t *testing.T) {
	loc := time.FixedZone("UTC-8", -8*3600)
	now := time.Date(2025, time.January, 14, 23, 0, 0, 0, loc)

	assert.True(t, planner.IsToday(2025, time.January, 14, now))
	assert.False(t, planner.IsToday(2025, time.January, 15, now))
	assert.False(t, planner.IsToday(2024, time.January, 14, now))
}

func TestBuildMonth(t *testing.T) {
	tasks := []task.Task{
		{ID: "a", StudentID: "emma", DueDate: task.DatePtr("2024-02-29")},
		{ID: "b", StudentID: "emma", DueDate: task.DatePtr("2024-02-03")},
	}
	now := time.Date(2024, time.February, 3, 10, 0, 0, 0, time.Local)

	m := planner.BuildMonth(tasks, "emma", 2024, time.February, "2024-02-29", now)

	require.Len(t, m.Days, 29)
	assert.Equal(t, 1, m.Days[28].Count)
	assert.True(t, m.Days[28].Selected)
	assert.True(t, m.Days[2].Today)
	assert.Equal(t, []string{"a"}, ids(m.SelectedDay))
}

// TestCompletionPercent проверяет граничные случаи процента выполнения
func TestCompletionPercent(t *testing.T) {
	tests := []struct {
		name     string
		statuses []task.Status
		expected int
	}{
		{name: "empty worklist", statuses: nil, expected: 0},
		{name: "only bank", statuses: []task.Status{task.StatusBank, task.StatusBank}, expected: 0},
		{name: "one of three", statuses: []task.Status{task.StatusToday, task.StatusToday, task.StatusCompleted}, expected: 33},
		{name: "two of three", statuses: []task.Status{task.StatusCompleted, task.StatusToday, task.StatusCompleted}, expected: 67},
		{name: "half up", statuses: []task.Status{task.StatusCompleted, task.StatusToday, task.StatusToday, task.StatusToday, task.StatusToday, task.StatusToday, task.StatusToday, task.StatusToday}, expected: 13},
		{name: "bank ignored", statuses: []task.Status{task.StatusCompleted, task.StatusBank}, expected: 100},
		{name: "all done", statuses: []task.Status{task.StatusCompleted}, expected: 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tasks := []task.Task{{StudentID: "other", Status: task.StatusToday}}
			for _, s := range tt.statuses {
				tasks = append(tasks, task.Task{StudentID: "emma", Status: s})
			}
			assert.Equal(t, tt.expected, planner.CompletionPercent(tasks, "emma"))
		})
	}
}

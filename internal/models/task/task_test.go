package task_test

import (
	"testing"
	"time"

	"kairos/internal/models/task"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestTask_Toggle проверяет связь status и completedAt
func TestTask_Toggle(t *testing.T) {
	now := time.Date(2025, time.January, 14, 9, 30, 0, 0, time.Local)

	t.Run("today -> completed sets completedAt", func(t *testing.T) {
		tk := &task.Task{Status: task.StatusToday}
		tk.Toggle(now)

		assert.Equal(t, task.StatusCompleted, tk.Status)
		require.NotNil(t, tk.CompletedAt)
		assert.True(t, tk.CompletedAt.Equal(now))
	})

	t.Run("completed -> today clears completedAt", func(t *testing.T) {
		done := now.Add(-time.Hour)
		tk := &task.Task{Status: task.StatusCompleted, CompletedAt: &done}
		tk.Toggle(now)

		assert.Equal(t, task.StatusToday, tk.Status)
		assert.Nil(t, tk.CompletedAt)
	})

	t.Run("round trip keeps invariant", func(t *testing.T) {
		tk := &task.Task{Status: task.StatusToday}
		for i := 0; i < 4; i++ {
			tk.Toggle(now)
			assert.Equal(t, tk.Status == task.StatusCompleted, tk.CompletedAt != nil)
		}
	})
}

// TestTask_MoveToToday проверяет сброс даты при переносе из банка
func TestTask_MoveToToday(t *testing.T) {
	tests := []struct {
		name    string
		dueDate *string
	}{
		{name: "with due date", dueDate: task.DatePtr("2025-01-20")},
		{name: "without due date", dueDate: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tk := &task.Task{Status: task.StatusBank, DueDate: tt.dueDate}
			tk.MoveToToday()

			assert.Equal(t, task.StatusToday, tk.Status)
			assert.Nil(t, tk.DueDate)
		})
	}
}

func TestTask_ReturnToBank(t *testing.T) {
	tk := &task.Task{Status: task.StatusToday, DueDate: task.DatePtr("2025-01-20")}
	tk.ReturnToBank()

	assert.Equal(t, task.StatusBank, tk.Status)
	assert.Equal(t, "2025-01-20", *tk.DueDate)
	assert.Nil(t, tk.CompletedAt)
}

func TestFormatDate_UsesLocalFields(t *testing.T) {
	// 23:30 в UTC-8 это уже следующий день по UTC
	loc := time.FixedZone("UTC-8", -8*3600)
	ts := time.Date(2025, time.January, 14, 23, 30, 0, 0, loc)

	assert.Equal(t, "2025-01-14", task.FormatDate(ts))
	assert.Equal(t, "2025-01-15", task.FormatDate(ts.UTC()))
}

func TestParseDate(t *testing.T) {
	tests := []struct {
		input string
		year  int
		month time.Month
		day   int
		ok    bool
	}{
		{input: "2025-01-14", year: 2025, month: time.January, day: 14, ok: true},
		{input: "2024-12-31", year: 2024, month: time.December, day: 31, ok: true},
		{input: "2025-13-01", ok: false},
		{input: "2025/01/14", ok: false},
		{input: "", ok: false},
		{input: "tomorrow", ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			y, m, d, ok := task.ParseDate(tt.input)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.year, y)
				assert.Equal(t, tt.month, m)
				assert.Equal(t, tt.day, d)
			}
		})
	}
}

func TestTask_Apply(t *testing.T) {
	tk := &task.Task{Title: "Old", Subject: task.SubjectMath, Type: task.TypeLesson, Duration: "20", DueDate: task.DatePtr("2025-01-01")}

	empty := ""
	tk.Apply(
		task.WithTitle(""),
		task.WithSubject(task.SubjectPoetry),
		task.WithType("Nap"),
		task.WithDuration("15"),
		task.WithDueDate(&empty),
	)

	assert.Equal(t, "Old", tk.Title)
	assert.Equal(t, task.SubjectPoetry, tk.Subject)
	assert.Equal(t, task.TypeLesson, tk.Type)
	assert.Equal(t, "15", tk.Duration)
	assert.Nil(t, tk.DueDate)
}

func TestParseStatus(t *testing.T) {
	s, err := task.ParseStatus("today")
	require.NoError(t, err)
	assert.Equal(t, task.StatusToday, s)

	_, err = task.ParseStatus("archived")
	assert.Error(t, err)
}

package planner

import (
	"fmt"
	"time"

	"kairos/internal/models/task"
)

// CountByDay считает задачи ученика по дням отображаемого месяца.
// Год и месяц берутся из литерала dueDate, без разбора через часовой пояс.
func CountByDay(tasks []task.Task, studentID string, year int, month time.Month) map[int]int {
	counts := make(map[int]int)
	for _, t := range tasks {
		if t.StudentID != studentID || !t.HasDueDate() {
			continue
		}
		y, m, d, ok := task.ParseDate(*t.DueDate)
		if !ok {
			continue
		}
		if y == year && m == month {
			counts[d]++
		}
	}
	return counts
}

// TasksOn: точное строковое совпадение dueDate
func TasksOn(tasks []task.Task, studentID, date string) []task.Task {
	res := make([]task.Task, 0)
	for _, t := range tasks {
		if t.StudentID == studentID && t.DueOn(date) {
			res = append(res, t)
		}
	}
	return res
}

// IsToday сравнивает день, месяц и год с локальной датой now покомпонентно.
func IsToday(year int, month time.Month, day int, now time.Time) bool {
	return day == now.Day() && month == now.Month() && year == now.Year()
}

func DaysInMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

func DayString(year int, month time.Month, day int) string {
	return fmt.Sprintf("%04d-%02d-%02d", year, int(month), day)
}

type Day struct {
	Day      int    `json:"day"`
	Date     string `json:"date"`
	Count    int    `json:"count"`
	Today    bool   `json:"today"`
	Selected bool   `json:"selected"`
}

type Month struct {
	Year         int         `json:"year"`
	Month        int         `json:"month"`
	Days         []Day       `json:"days"`
	SelectedDate string      `json:"selected_date,omitempty"`
	SelectedDay  []task.Task `json:"selected_tasks"`
}

// BuildMonth собирает сетку месяца без ведущих пустых ячеек: это забота отображения.
func BuildMonth(tasks []task.Task, studentID string, year int, month time.Month, selected string, now time.Time) Month {
	counts := CountByDay(tasks, studentID, year, month)
	total := DaysInMonth(year, month)

	days := make([]Day, 0, total)
	for d := 1; d <= total; d++ {
		date := DayString(year, month, d)
		days = append(days, Day{
			Day:      d,
			Date:     date,
			Count:    counts[d],
			Today:    IsToday(year, month, d, now),
			Selected: date == selected,
		})
	}

	res := Month{
		Year:         year,
		Month:        int(month),
		Days:         days,
		SelectedDate: selected,
		SelectedDay:  []task.Task{},
	}
	if selected != "" {
		res.SelectedDay = TasksOn(tasks, studentID, selected)
	}
	return res
}

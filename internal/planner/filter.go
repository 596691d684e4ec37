package planner

import (
	"kairos/internal/models/rhythm"
	"kairos/internal/models/task"
)

// DefaultRhythmSubjects связывает встроенные ритмы с предметами.
var DefaultRhythmSubjects = map[string][]task.Subject{
	"Morning Basket":  {task.SubjectCopywork, task.SubjectRecitation, task.SubjectComposer, task.SubjectHymn, task.SubjectPoetry, task.SubjectHistory},
	"Nature Study":    {task.SubjectNature, task.SubjectArtist, task.SubjectHandicrafts, task.SubjectService},
	"Recitation Time": {task.SubjectRecitation, task.SubjectPoetry},
	"Academic Block":  {task.SubjectMath, task.SubjectReading},
	"Habit Training":  {task.SubjectHabit, task.SubjectService},
	"Service":         {task.SubjectService},
}

// SubjectsFor возвращает предметы ритма; неизвестное имя само становится предметом.
func SubjectsFor(r rhythm.Rhythm, table map[string][]task.Subject) []task.Subject {
	if subjects, ok := table[r.Name]; ok {
		return subjects
	}
	return []task.Subject{task.Subject(r.Name)}
}

// FilterByRhythm оставляет задачи с предметами активного ритма, порядок входа сохраняется.
// Пустой или неизвестный activeRhythmID возвращает вход как есть.
func FilterByRhythm(tasks []task.Task, activeRhythmID string, rhythms []rhythm.Rhythm, table map[string][]task.Subject) []task.Task {
	if activeRhythmID == "" {
		return tasks
	}

	var active *rhythm.Rhythm
	for i := range rhythms {
		if rhythms[i].ID == activeRhythmID {
			active = &rhythms[i]
			break
		}
	}
	if active == nil {
		return tasks
	}

	include := make(map[task.Subject]struct{})
	for _, s := range SubjectsFor(*active, table) {
		include[s] = struct{}{}
	}

	res := make([]task.Task, 0, len(tasks))
	for _, t := range tasks {
		if _, ok := include[t.Subject]; ok {
			res = append(res, t)
		}
	}
	return res
}

func ForStudent(tasks []task.Task, studentID string) []task.Task {
	res := make([]task.Task, 0)
	for _, t := range tasks {
		if t.StudentID == studentID {
			res = append(res, t)
		}
	}
	return res
}

func WithStatus(tasks []task.Task, statuses ...task.Status) []task.Task {
	res := make([]task.Task, 0)
	for _, t := range tasks {
		for _, s := range statuses {
			if t.Status == s {
				res = append(res, t)
				break
			}
		}
	}
	return res
}

// Worklist: задачи ученика со статусом today или completed
func Worklist(tasks []task.Task, studentID string) []task.Task {
	return WithStatus(ForStudent(tasks, studentID), task.StatusToday, task.StatusCompleted)
}

func Bank(tasks []task.Task, studentID string) []task.Task {
	return WithStatus(ForStudent(tasks, studentID), task.StatusBank)
}

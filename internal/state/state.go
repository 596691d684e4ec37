// Package state хранит состояние экрана планировщика как значение.
// Каждое действие пользователя или снимок хранилища становится отдельным переходом,
// возвращающий новое состояние; исходное не меняется.
package state

import (
	"slices"
	"time"

	"kairos/internal/models/rhythm"
	"kairos/internal/models/student"
	"kairos/internal/models/task"
	"kairos/internal/planner"
	repo "kairos/internal/repository"
)

type ViewMode string

const ViewToday ViewMode = "today"
const ViewBank ViewMode = "bank"
const ViewCalendar ViewMode = "calendar"

type State struct {
	Students []student.Student
	Rhythms  []rhythm.Rhythm
	Tasks    []task.Task

	ActiveStudentID string
	ActiveRhythmID  string
	ViewMode        ViewMode

	SelectedDate string
	DisplayYear  int
	DisplayMonth time.Month

	RhythmSubjects map[string][]task.Subject
}

// New открывает календарь на месяце now и выбирает сегодняшнюю дату.
func New(now time.Time) State {
	return State{
		ViewMode:       ViewToday,
		SelectedDate:   task.FormatDate(now),
		DisplayYear:    now.Year(),
		DisplayMonth:   now.Month(),
		RhythmSubjects: planner.DefaultRhythmSubjects,
	}
}

// --- снимки хранилища ---

// ReceiveStudents заменяет список; если активный ученик не выбран, берётся первый.
func (s State) ReceiveStudents(students []student.Student) State {
	s.Students = slices.Clone(students)
	if s.ActiveStudentID == "" && len(s.Students) > 0 {
		s.ActiveStudentID = s.Students[0].ID
	}
	return s
}

func (s State) ReceiveRhythms(rhythms []rhythm.Rhythm) State {
	s.Rhythms = slices.Clone(rhythms)
	return s
}

func (s State) ReceiveTasks(tasks []task.Task) State {
	s.Tasks = slices.Clone(tasks)
	return s
}

// Apply направляет снимок в переход соответствующей коллекции
func (s State) Apply(snap repo.Snapshot) State {
	switch snap.Collection {
	case repo.CollectionProfiles:
		return s.ReceiveStudents(snap.Students)
	case repo.CollectionRhythms:
		return s.ReceiveRhythms(snap.Rhythms)
	case repo.CollectionAssignments:
		return s.ReceiveTasks(snap.Tasks)
	}
	return s
}

// --- выбор пользователя ---

func (s State) SelectStudent(id string) State {
	s.ActiveStudentID = id
	return s
}

// SelectRhythm: пустой id снимает фильтр
func (s State) SelectRhythm(id string) State {
	s.ActiveRhythmID = id
	return s
}

func (s State) SetViewMode(mode ViewMode) State {
	s.ViewMode = mode
	return s
}

func (s State) SelectDate(date string) State {
	s.SelectedDate = date
	return s
}

func (s State) ShowMonth(year int, month time.Month) State {
	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	s.DisplayYear, s.DisplayMonth = first.Year(), first.Month()
	return s
}

func (s State) NextMonth() State {
	return s.ShowMonth(s.DisplayYear, s.DisplayMonth+1)
}

func (s State) PrevMonth() State {
	return s.ShowMonth(s.DisplayYear, s.DisplayMonth-1)
}

// --- оптимистичные изменения задач ---

func (s State) updateTask(id string, fn func(*task.Task)) State {
	tasks := slices.Clone(s.Tasks)
	for i := range tasks {
		if tasks[i].ID == id {
			fn(&tasks[i])
		}
	}
	s.Tasks = tasks
	return s
}

func (s State) ToggleTask(id string, now time.Time) State {
	return s.updateTask(id, func(t *task.Task) {
		if t.InWorklist() {
			t.Toggle(now)
		}
	})
}

func (s State) MoveToToday(id string) State {
	return s.updateTask(id, func(t *task.Task) {
		if t.Status == task.StatusBank {
			t.MoveToToday()
		}
	})
}

// SickDay возвращает все today-задачи активного ученика в банк.
func (s State) SickDay() State {
	tasks := slices.Clone(s.Tasks)
	for i := range tasks {
		if tasks[i].StudentID == s.ActiveStudentID && tasks[i].Status == task.StatusToday {
			tasks[i].ReturnToBank()
		}
	}
	s.Tasks = tasks
	return s
}

func (s State) RemoveTask(id string) State {
	s.Tasks = slices.DeleteFunc(slices.Clone(s.Tasks), func(t task.Task) bool {
		return t.ID == id
	})
	return s
}

// --- производные представления ---

func (s State) ActiveStudent() *student.Student {
	for i := range s.Students {
		if s.Students[i].ID == s.ActiveStudentID {
			st := s.Students[i]
			return &st
		}
	}
	return nil
}

func (s State) ActiveRhythm() *rhythm.Rhythm {
	for i := range s.Rhythms {
		if s.Rhythms[i].ID == s.ActiveRhythmID {
			r := s.Rhythms[i]
			return &r
		}
	}
	return nil
}

func (s State) filter(tasks []task.Task) []task.Task {
	return planner.FilterByRhythm(tasks, s.ActiveRhythmID, s.Rhythms, s.RhythmSubjects)
}

// TodayTasks: список дня активного ученика с учётом ритма
func (s State) TodayTasks() []task.Task {
	return s.filter(planner.Worklist(s.Tasks, s.ActiveStudentID))
}

func (s State) BankTasks() []task.Task {
	return s.filter(planner.Bank(s.Tasks, s.ActiveStudentID))
}

// Completion считается по нефильтрованному списку дня.
func (s State) Completion() int {
	return planner.CompletionPercent(s.Tasks, s.ActiveStudentID)
}

func (s State) Calendar(now time.Time) planner.Month {
	return planner.BuildMonth(s.Tasks, s.ActiveStudentID, s.DisplayYear, s.DisplayMonth, s.SelectedDate, now)
}

type View struct {
	Student    *student.Student `json:"student"`
	Rhythm     *rhythm.Rhythm   `json:"rhythm,omitempty"`
	ViewMode   ViewMode         `json:"view_mode"`
	Today      []task.Task      `json:"today"`
	Bank       []task.Task      `json:"bank"`
	Completion int              `json:"completion"`
	Calendar   planner.Month    `json:"calendar"`
}

func (s State) View(now time.Time) View {
	return View{
		Student:    s.ActiveStudent(),
		Rhythm:     s.ActiveRhythm(),
		ViewMode:   s.ViewMode,
		Today:      s.TodayTasks(),
		Bank:       s.BankTasks(),
		Completion: s.Completion(),
		Calendar:   s.Calendar(now),
	}
}

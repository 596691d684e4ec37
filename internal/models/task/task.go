package task

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

type Task struct {
	ID          string     `json:"id" firestore:"-"`
	Title       string     `json:"title" firestore:"title"`
	Subject     Subject    `json:"subject" firestore:"subject"`
	Type        Type       `json:"type" firestore:"type"`
	Duration    string     `json:"duration" firestore:"duration"`
	StudentID   string     `json:"studentId" firestore:"studentId"`
	Status      Status     `json:"status" firestore:"status"`
	DueDate     *string    `json:"dueDate" firestore:"dueDate"`
	CompletedAt *time.Time `json:"completedAt" firestore:"completedAt"`
	CreatedAt   time.Time  `json:"createdAt" firestore:"createdAt"`
}

type Status string
type Type string
type Subject string

const StatusBank Status = "bank"
const StatusToday Status = "today"
const StatusCompleted Status = "completed"

const TypeLesson Type = "Lesson"
const TypeChore Type = "Chore"

const (
	SubjectMath          Subject = "Math"
	SubjectReading       Subject = "Reading"
	SubjectCopywork      Subject = "Copywork"
	SubjectRecitation    Subject = "Recitation"
	SubjectPoetry        Subject = "Poetry"
	SubjectComposer      Subject = "Composer Study"
	SubjectArtist        Subject = "Artist Study"
	SubjectHymn          Subject = "Solfa/Hymn"
	SubjectHistory       Subject = "History"
	SubjectNature        Subject = "Nature Study"
	SubjectHandicrafts   Subject = "Handicrafts"
	SubjectHabit         Subject = "Habit Training"
	SubjectService       Subject = "Service"
	SubjectUncategorized Subject = "Uncategorized"
)

// BuiltinSubjects в порядке формы создания задачи
var BuiltinSubjects = []Subject{
	SubjectMath, SubjectReading,
	SubjectCopywork, SubjectRecitation, SubjectPoetry, SubjectComposer, SubjectArtist, SubjectHymn, SubjectHistory,
	SubjectNature, SubjectHandicrafts,
	SubjectHabit, SubjectService,
}

const DefaultDuration = "20"

func (s Status) Valid() bool {
	switch s {
	case StatusBank, StatusToday, StatusCompleted:
		return true
	}
	return false
}

func (t Type) Valid() bool {
	return t == TypeLesson || t == TypeChore
}

// Builtin сообщает, входит ли предмет во встроенный список.
// Произвольные предметы допустимы (импорт CSV, пользовательские ритмы).
func (s Subject) Builtin() bool {
	for _, b := range BuiltinSubjects {
		if b == s {
			return true
		}
	}
	return false
}

func ParseStatus(raw string) (Status, error) {
	s := Status(raw)
	if !s.Valid() {
		return "", fmt.Errorf("unknown status %q", raw)
	}
	return s, nil
}

func ParseType(raw string) (Type, error) {
	t := Type(raw)
	if !t.Valid() {
		return "", fmt.Errorf("unknown type %q", raw)
	}
	return t, nil
}

// InWorklist: задача в списке дня (today или completed)
func (t *Task) InWorklist() bool {
	return t.Status == StatusToday || t.Status == StatusCompleted
}

// Toggle переключает today <-> completed. completedAt выставляется
// только для completed и очищается при возврате.
func (t *Task) Toggle(now time.Time) {
	if t.Status == StatusCompleted {
		t.Status = StatusToday
		t.CompletedAt = nil
		return
	}
	t.Complete(now)
}

func (t *Task) Complete(now time.Time) {
	t.Status = StatusCompleted
	completedAt := now
	t.CompletedAt = &completedAt
}

// MoveToToday переносит задачу из банка в список дня; дата всегда сбрасывается.
func (t *Task) MoveToToday() {
	t.Status = StatusToday
	t.DueDate = nil
	t.CompletedAt = nil
}

func (t *Task) ReturnToBank() {
	t.Status = StatusBank
	t.CompletedAt = nil
}

func (t *Task) HasDueDate() bool {
	return t.DueDate != nil && *t.DueDate != ""
}

func (t *Task) DueOn(date string) bool {
	return t.HasDueDate() && *t.DueDate == date
}

// FormatDate строит YYYY-MM-DD из локальных полей t, без перевода в UTC.
func FormatDate(t time.Time) string {
	return fmt.Sprintf("%04d-%02d-%02d", t.Year(), int(t.Month()), t.Day())
}

// ParseDate разбирает литерал YYYY-MM-DD покомпонентно, без часовых поясов.
func ParseDate(s string) (year int, month time.Month, day int, ok bool) {
	parts := strings.Split(s, "-")
	if len(parts) != 3 {
		return 0, 0, 0, false
	}

	y, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, 0, false
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 1 || m > 12 {
		return 0, 0, 0, false
	}
	d, err := strconv.Atoi(parts[2])
	if err != nil || d < 1 || d > 31 {
		return 0, 0, 0, false
	}

	return y, time.Month(m), d, true
}

func DatePtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// Package seed строит демонстрационный набор данных для нового аккаунта.
package seed

import (
	"fmt"
	"math"
	"time"

	"kairos/internal/models/rhythm"
	"kairos/internal/models/student"
	"kairos/internal/models/task"
	"kairos/internal/planner"
)

// Source задаёт источник случайности, подходит *rand.Rand из math/rand/v2.
type Source interface {
	Float64() float64
}

// CompletionThreshold: задача на сегодня считается выполненной при Float64() > порога
const CompletionThreshold = 0.6

type Plan struct {
	Rhythms  []rhythm.Rhythm
	Students []student.Student
	// Tasks ссылаются на учеников по индексу в Students через StudentID ("0", "1", ...)
	Tasks []task.Task
}

func intPtr(v int) *int { return &v }

func DefaultRhythms() []rhythm.Rhythm {
	return []rhythm.Rhythm{
		{Name: "Morning Basket", Icon: rhythm.IconCoffee, Color: student.ColorOrange},
		{Name: "Nature Study", Icon: rhythm.IconLeaf, Color: student.ColorGreen},
		{Name: "Recitation Time", Icon: rhythm.IconBookOpen, Color: student.ColorBlue},
		{Name: "Academic Block", Icon: rhythm.IconBrain, Color: student.ColorGreen},
		{Name: "Habit Training", Icon: rhythm.IconSparkles, Color: student.ColorPink},
	}
}

func DefaultStudents() []student.Student {
	return []student.Student{
		{DisplayName: "Frank", Age: intPtr(9), Color: student.ColorBlue},
		{DisplayName: "Leo", Age: intPtr(7), Color: student.ColorGreen},
		{DisplayName: "Maya", Age: intPtr(4), Color: student.ColorPink},
	}
}

const (
	frank = "0"
	leo   = "1"
	maya  = "2"
)

// Generate строит план на текущий месяц now: только будни, все задачи в банке,
// кроме задач на сегодня, которые случайно становятся today или completed.
func Generate(now time.Time, src Source) Plan {
	year, month := now.Year(), now.Month()
	today := task.FormatDate(now)

	var tasks []task.Task
	for day := 1; day <= planner.DaysInMonth(year, month); day++ {
		date := time.Date(year, month, day, 0, 0, 0, 0, now.Location())
		weekday := date.Weekday()
		if weekday == time.Saturday || weekday == time.Sunday {
			continue
		}
		tasks = append(tasks, dayPlan(day, weekday, task.FormatDate(date))...)
	}

	for i := range tasks {
		tasks[i].Status = task.StatusBank
		tasks[i].CreatedAt = now
		if tasks[i].DueOn(today) {
			if src.Float64() > CompletionThreshold {
				tasks[i].Complete(now)
			} else {
				tasks[i].Status = task.StatusToday
			}
		}
	}

	return Plan{
		Rhythms:  DefaultRhythms(),
		Students: DefaultStudents(),
		Tasks:    tasks,
	}
}

func lesson(title string, subject task.Subject, duration, studentKey, date string) task.Task {
	return task.Task{
		Title:     title,
		Subject:   subject,
		Type:      task.TypeLesson,
		Duration:  duration,
		StudentID: studentKey,
		DueDate:   task.DatePtr(date),
	}
}

func chore(title string, subject task.Subject, duration, studentKey, date string) task.Task {
	t := lesson(title, subject, duration, studentKey, date)
	t.Type = task.TypeChore
	return t
}

func dayPlan(i int, weekday time.Weekday, date string) []task.Task {
	natureDay := weekday == time.Tuesday || weekday == time.Thursday
	outdoorDay := weekday == time.Monday || weekday == time.Wednesday || weekday == time.Friday

	// Frank, 9 лет
	res := []task.Task{
		lesson("Hymn: Amazing Grace", task.SubjectHymn, "10", frank, date),
		lesson(fmt.Sprintf("Bible: Judges Ch %d", i), task.SubjectReading, "15", frank, date),
		lesson("Composer: Bach - Cello Suite", task.SubjectComposer, "10", frank, date),
		lesson("Recitation: Psalm 100", task.SubjectRecitation, "5", frank, date),
		lesson(fmt.Sprintf("Math: Exercise %d", i+20), task.SubjectMath, "30", frank, date),
		lesson(fmt.Sprintf("Latin: Lesson %d", ceilDiv(i, 3)), task.SubjectMath, "20", frank, date),
		lesson(fmt.Sprintf("Literature: Robinson Crusoe Ch %d", ceilDiv(i, 2)), task.SubjectReading, "20", frank, date),
	}
	if natureDay {
		res = append(res, lesson("Nature Journal: Oak Trees", task.SubjectNature, "20", frank, date))
	}

	// Leo, 7 лет
	res = append(res,
		lesson("Hymn: Amazing Grace (Chorus)", task.SubjectHymn, "10", leo, date),
		lesson("Poetry: A.A. Milne", task.SubjectPoetry, "10", leo, date),
		lesson("Recitation: The Caterpillar", task.SubjectRecitation, "5", leo, date),
		lesson(fmt.Sprintf("Copywork: Poem Line %d", i), task.SubjectCopywork, "10", leo, date),
		lesson(fmt.Sprintf("Phonics: Letter Sound '%c'", rune('a'+i%26)), task.SubjectReading, "15", leo, date),
		lesson("Math: Counting Beans", task.SubjectMath, "15", leo, date),
	)
	if natureDay {
		res = append(res, lesson("Nature Hunt: Insects", task.SubjectNature, "15", leo, date))
	}

	// Maya, 4 года
	res = append(res,
		chore("Habit: Brush Teeth", task.SubjectHabit, "5", maya, date),
		chore("Habit: Put Away Shoes", task.SubjectHabit, "5", maya, date),
		lesson("Picture Study: Van Gogh Sunflowers", task.SubjectArtist, "5", maya, date),
		lesson("Read Aloud: Beatrix Potter", task.SubjectReading, "15", maya, date),
	)
	if outdoorDay {
		res = append(res, lesson("Nature: Outdoor Play", task.SubjectNature, "30", maya, date))
	}

	return res
}

func ceilDiv(a, b int) int {
	return int(math.Ceil(float64(a) / float64(b)))
}

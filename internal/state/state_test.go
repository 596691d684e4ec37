package state_test

import (
	"testing"
	"time"

	"kairos/internal/models/rhythm"
	"kairos/internal/models/student"
	"kairos/internal/models/task"
	repo "kairos/internal/repository"
	"kairos/internal/state"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2024, time.March, 15, 9, 30, 0, 0, time.Local)

func fixture() state.State {
	return state.New(now).
		ReceiveStudents([]student.Student{{ID: "s1", DisplayName: "Emma"}, {ID: "s2", DisplayName: "Leo"}}).
		ReceiveRhythms([]rhythm.Rhythm{{ID: "r1", Name: "Morning Basket"}}).
		ReceiveTasks([]task.Task{
			{ID: "t1", StudentID: "s1", Subject: task.SubjectPoetry, Status: task.StatusToday},
			{ID: "t2", StudentID: "s1", Subject: task.SubjectMath, Status: task.StatusCompleted},
			{ID: "t3", StudentID: "s1", Subject: task.SubjectReading, Status: task.StatusBank, DueDate: task.DatePtr("2024-03-20")},
			{ID: "t4", StudentID: "s2", Subject: task.SubjectMath, Status: task.StatusToday},
		})
}

func TestNew(t *testing.T) {
	st := state.New(now)
	assert.Equal(t, "2024-03-15", st.SelectedDate)
	assert.Equal(t, 2024, st.DisplayYear)
	assert.Equal(t, time.March, st.DisplayMonth)
	assert.Equal(t, state.ViewToday, st.ViewMode)
}

func TestReceiveStudents_SelectsFirst(t *testing.T) {
	st := fixture()
	assert.Equal(t, "s1", st.ActiveStudentID)

	// уже выбранный ученик не сбрасывается новым снимком
	st = st.SelectStudent("s2").ReceiveStudents([]student.Student{{ID: "s1"}, {ID: "s2"}})
	assert.Equal(t, "s2", st.ActiveStudentID)
}

func TestTransitionsDoNotMutateOriginal(t *testing.T) {
	original := fixture()
	next := original.ToggleTask("t1", now)

	assert.Equal(t, task.StatusToday, original.Tasks[0].Status)
	assert.Equal(t, task.StatusCompleted, next.Tasks[0].Status)
	require.NotNil(t, next.Tasks[0].CompletedAt)
}

func TestToggleIgnoresBank(t *testing.T) {
	st := fixture().ToggleTask("t3", now)
	assert.Equal(t, task.StatusBank, st.Tasks[2].Status)
}

func TestMoveToToday(t *testing.T) {
	st := fixture().MoveToToday("t3")
	assert.Equal(t, task.StatusToday, st.Tasks[2].Status)
	assert.Nil(t, st.Tasks[2].DueDate)
}

func TestSickDay_OnlyActiveStudentToday(t *testing.T) {
	st := fixture().SickDay()

	assert.Equal(t, task.StatusBank, st.Tasks[0].Status)
	assert.Equal(t, task.StatusCompleted, st.Tasks[1].Status)
	assert.Equal(t, task.StatusToday, st.Tasks[3].Status)
}

func TestRemoveTask(t *testing.T) {
	st := fixture().RemoveTask("t2")
	assert.Len(t, st.Tasks, 3)
}

func TestMonthNavigation(t *testing.T) {
	st := state.New(time.Date(2024, time.December, 3, 0, 0, 0, 0, time.Local))

	st = st.NextMonth()
	assert.Equal(t, 2025, st.DisplayYear)
	assert.Equal(t, time.January, st.DisplayMonth)

	st = st.PrevMonth().PrevMonth()
	assert.Equal(t, 2024, st.DisplayYear)
	assert.Equal(t, time.November, st.DisplayMonth)
}

func TestView(t *testing.T) {
	view := fixture().View(now)

	require.NotNil(t, view.Student)
	assert.Equal(t, "Emma", view.Student.DisplayName)
	assert.Nil(t, view.Rhythm)
	assert.Len(t, view.Today, 2)
	assert.Len(t, view.Bank, 1)
	assert.Equal(t, 50, view.Completion)
}

func TestView_RhythmFilterKeepsCompletionUnfiltered(t *testing.T) {
	view := fixture().SelectRhythm("r1").View(now)

	require.NotNil(t, view.Rhythm)
	require.Len(t, view.Today, 1)
	assert.Equal(t, "t1", view.Today[0].ID)
	assert.Empty(t, view.Bank)
	assert.Equal(t, 50, view.Completion)
}

func TestApply(t *testing.T) {
	st := state.New(now).
		Apply(repo.Snapshot{Collection: repo.CollectionProfiles, Students: []student.Student{{ID: "a"}}}).
		Apply(repo.Snapshot{Collection: repo.CollectionAssignments, Tasks: []task.Task{{ID: "x"}}}).
		Apply(repo.Snapshot{Collection: repo.CollectionRhythms, Rhythms: []rhythm.Rhythm{{ID: "r"}}})

	assert.Equal(t, "a", st.ActiveStudentID)
	assert.Len(t, st.Tasks, 1)
	assert.Len(t, st.Rhythms, 1)
}

package inmemory_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"kairos/internal/logger"
	"kairos/internal/models/rhythm"
	"kairos/internal/models/student"
	"kairos/internal/models/task"
	"kairos/internal/repository"
	"kairos/internal/repository/inmemory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	logger.Init(true)
	m.Run()
}

// TestStorage_HealthCheck тестирует проверку здоровья
func TestStorage_HealthCheck(t *testing.T) {
	storage := inmemory.NewStorage()
	assert.NoError(t, storage.HealthCheck(context.Background()))
}

// TestStorage_TaskCRUD тестирует полный цикл задачи
func TestStorage_TaskCRUD(t *testing.T) {
	ctx := context.Background()
	storage := inmemory.NewStorage()

	tk := &task.Task{Title: "Fractions", Subject: task.SubjectMath, Status: task.StatusBank, StudentID: "s1"}
	require.NoError(t, storage.CreateTask(ctx, "acc", tk))
	assert.NotEmpty(t, tk.ID)
	assert.False(t, tk.CreatedAt.IsZero())

	got, err := storage.GetTask(ctx, "acc", tk.ID)
	require.NoError(t, err)
	assert.Equal(t, "Fractions", got.Title)

	got.MoveToToday()
	require.NoError(t, storage.UpdateTask(ctx, "acc", got))

	got, err = storage.GetTask(ctx, "acc", tk.ID)
	require.NoError(t, err)
	assert.Equal(t, task.StatusToday, got.Status)

	require.NoError(t, storage.DeleteTask(ctx, "acc", tk.ID))
	_, err = storage.GetTask(ctx, "acc", tk.ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)

	// повторное удаление не ошибка
	assert.NoError(t, storage.DeleteTask(ctx, "acc", tk.ID))
}

func TestStorage_UpdateMissing(t *testing.T) {
	ctx := context.Background()
	storage := inmemory.NewStorage()

	assert.ErrorIs(t, storage.UpdateTask(ctx, "acc", &task.Task{ID: "nope"}), repository.ErrNotFound)
	assert.ErrorIs(t, storage.UpdateStudent(ctx, "acc", &student.Student{ID: "nope"}), repository.ErrNotFound)
	assert.ErrorIs(t, storage.UpdateRhythm(ctx, "acc", &rhythm.Rhythm{ID: "nope"}), repository.ErrNotFound)
}

// TestStorage_AccountIsolation проверяет изоляцию коллекций аккаунтов
func TestStorage_AccountIsolation(t *testing.T) {
	ctx := context.Background()
	storage := inmemory.NewStorage()

	require.NoError(t, storage.CreateStudent(ctx, "a", &student.Student{DisplayName: "Emma", Color: student.ColorPink}))
	require.NoError(t, storage.CreateStudent(ctx, "b", &student.Student{DisplayName: "Leo", Color: student.ColorBlue}))

	a, err := storage.ListStudents(ctx, "a")
	require.NoError(t, err)
	require.Len(t, a, 1)
	assert.Equal(t, "Emma", a[0].DisplayName)

	empty, err := storage.ListRhythms(ctx, "nobody")
	require.NoError(t, err)
	assert.Empty(t, empty)

	_, err = storage.GetStudent(ctx, "b", a[0].ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)

	accounts, err := storage.Accounts(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, accounts)
}

func TestStorage_ListKeepsCreationOrder(t *testing.T) {
	ctx := context.Background()
	storage := inmemory.NewStorage()

	for i := 0; i < 5; i++ {
		require.NoError(t, storage.CreateRhythm(ctx, "acc", &rhythm.Rhythm{Name: fmt.Sprintf("R%d", i), Icon: rhythm.IconSun}))
	}
	list, err := storage.ListRhythms(ctx, "acc")
	require.NoError(t, err)
	require.NoError(t, storage.DeleteRhythm(ctx, "acc", list[2].ID))

	list, err = storage.ListRhythms(ctx, "acc")
	require.NoError(t, err)
	names := []string{}
	for _, r := range list {
		names = append(names, r.Name)
	}
	assert.Equal(t, []string{"R0", "R1", "R3", "R4"}, names)
}

// TestStorage_Subscribe проверяет доставку снимков после изменений
func TestStorage_Subscribe(t *testing.T) {
	ctx := context.Background()
	storage := inmemory.NewStorage()

	var mtx sync.Mutex
	var snaps []repository.Snapshot
	unsubscribe, err := storage.Subscribe(ctx, "acc", repository.CollectionAssignments, func(s repository.Snapshot) {
		mtx.Lock()
		defer mtx.Unlock()
		snaps = append(snaps, s)
	})
	require.NoError(t, err)

	require.NoError(t, storage.CreateTask(ctx, "acc", &task.Task{Title: "A"}))
	require.NoError(t, storage.CreateTask(ctx, "other", &task.Task{Title: "B"}))
	require.NoError(t, storage.CreateStudent(ctx, "acc", &student.Student{DisplayName: "Emma"}))

	unsubscribe()
	require.NoError(t, storage.CreateTask(ctx, "acc", &task.Task{Title: "C"}))

	mtx.Lock()
	defer mtx.Unlock()
	require.Len(t, snaps, 2)
	assert.Empty(t, snaps[0].Tasks)
	require.Len(t, snaps[1].Tasks, 1)
	assert.Equal(t, "A", snaps[1].Tasks[0].Title)
}

// TestStorage_ConcurrentWrites проверяет потокобезопасность
func TestStorage_ConcurrentWrites(t *testing.T) {
	ctx := context.Background()
	storage := inmemory.NewStorage()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = storage.CreateTask(ctx, "acc", &task.Task{Title: fmt.Sprintf("T%d", i)})
		}(i)
	}
	wg.Wait()

	tasks, err := storage.ListTasks(ctx, "acc")
	require.NoError(t, err)
	assert.Len(t, tasks, 50)
}

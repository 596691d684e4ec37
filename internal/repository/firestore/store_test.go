package firestore_test

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"kairos/internal/logger"
	"kairos/internal/models/student"
	"kairos/internal/models/task"
	"kairos/internal/repository"
	store "kairos/internal/repository/firestore"

	"cloud.google.com/go/firestore"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeAppID(t *testing.T) {
	assert.Equal(t, "kairos-app_v1", store.SanitizeAppID("kairos-app_v1"))
	assert.Equal(t, "my_app_1_0", store.SanitizeAppID("my/app 1.0"))
}

// newEmulatorStorage поднимает хранилище поверх эмулятора Firestore
func newEmulatorStorage(t *testing.T) *store.Storage {
	t.Helper()
	if os.Getenv("FIRESTORE_EMULATOR_HOST") == "" {
		t.Skip("FIRESTORE_EMULATOR_HOST не задан")
	}
	logger.Init(true)

	client, err := firestore.NewClient(context.Background(), "demo-kairos")
	require.NoError(t, err)

	s := store.NewWithClient(client, "test-"+uuid.New().String())
	t.Cleanup(s.Close)
	return s
}

func TestStorage_TaskCRUD(t *testing.T) {
	s := newEmulatorStorage(t)
	ctx := context.Background()

	due := "2024-05-02"
	tk := &task.Task{Title: "Poem", Subject: task.SubjectPoetry, Type: task.TypeLesson, Status: task.StatusBank, DueDate: &due}
	require.NoError(t, s.CreateTask(ctx, "uid", tk))
	assert.NotEmpty(t, tk.ID)

	got, err := s.GetTask(ctx, "uid", tk.ID)
	require.NoError(t, err)
	assert.Equal(t, "Poem", got.Title)
	require.NotNil(t, got.DueDate)
	assert.Equal(t, due, *got.DueDate)

	got.MoveToToday()
	require.NoError(t, s.UpdateTask(ctx, "uid", got))

	got, err = s.GetTask(ctx, "uid", tk.ID)
	require.NoError(t, err)
	assert.Equal(t, task.StatusToday, got.Status)
	assert.Nil(t, got.DueDate)

	require.NoError(t, s.DeleteTask(ctx, "uid", tk.ID))
	_, err = s.GetTask(ctx, "uid", tk.ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)

	assert.ErrorIs(t, s.UpdateTask(ctx, "uid", got), repository.ErrNotFound)
}

func TestStorage_Accounts(t *testing.T) {
	s := newEmulatorStorage(t)
	ctx := context.Background()

	require.NoError(t, s.CreateStudent(ctx, "u1", &student.Student{DisplayName: "Maya", Color: student.ColorPink}))
	require.NoError(t, s.CreateStudent(ctx, "u2", &student.Student{DisplayName: "Leo", Color: student.ColorGreen}))

	accounts, err := s.Accounts(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"u1", "u2"}, accounts)
}

func TestStorage_Subscribe(t *testing.T) {
	s := newEmulatorStorage(t)
	ctx := context.Background()

	var mtx sync.Mutex
	var snaps []repository.Snapshot
	unsubscribe, err := s.Subscribe(ctx, "uid", repository.CollectionProfiles, func(snap repository.Snapshot) {
		mtx.Lock()
		defer mtx.Unlock()
		snaps = append(snaps, snap)
	})
	require.NoError(t, err)
	defer unsubscribe()

	mtx.Lock()
	require.Len(t, snaps, 1)
	assert.Empty(t, snaps[0].Students)
	mtx.Unlock()

	require.NoError(t, s.CreateStudent(ctx, "uid", &student.Student{DisplayName: "Frank", Color: student.ColorBlue}))

	assert.Eventually(t, func() bool {
		mtx.Lock()
		defer mtx.Unlock()
		last := snaps[len(snaps)-1]
		return len(last.Students) == 1 && last.Students[0].DisplayName == "Frank"
	}, 5*time.Second, 50*time.Millisecond)
}

package inmemory

import (
	"context"
	"sort"
	"sync"
	"time"

	"kairos/internal/logger"
	"kairos/internal/models/rhythm"
	"kairos/internal/models/student"
	"kairos/internal/models/task"
	repo "kairos/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// collection хранит документы и порядок их создания
type collection[T any] struct {
	docs map[string]T
	ids  []string
}

func newCollection[T any]() *collection[T] {
	return &collection[T]{docs: make(map[string]T), ids: []string{}}
}

func (c *collection[T]) put(id string, doc T) {
	if _, ok := c.docs[id]; !ok {
		c.ids = append(c.ids, id)
	}
	c.docs[id] = doc
}

func (c *collection[T]) get(id string) (T, bool) {
	doc, ok := c.docs[id]
	return doc, ok
}

func (c *collection[T]) remove(id string) {
	if _, ok := c.docs[id]; !ok {
		return
	}
	delete(c.docs, id)
	for ind, val := range c.ids {
		if val == id {
			c.ids = append(c.ids[:ind], c.ids[ind+1:]...)
			break
		}
	}
}

func (c *collection[T]) list() []T {
	res := make([]T, 0, len(c.ids))
	for _, id := range c.ids {
		res = append(res, c.docs[id])
	}
	return res
}

type account struct {
	students *collection[student.Student]
	rhythms  *collection[rhythm.Rhythm]
	tasks    *collection[task.Task]
}

type Storage struct {
	accounts map[string]*account
	mtx      *sync.RWMutex
	hub      *repo.Hub
}

func NewStorage() *Storage {
	return &Storage{
		accounts: make(map[string]*account),
		mtx:      &sync.RWMutex{},
		hub:      repo.NewHub(),
	}
}

func (s *Storage) HealthCheck(ctx context.Context) error {
	logger.Info("Repository: Соединение стабильно")
	return nil
}

func (s *Storage) Close() {}

// accountFor вызывается под блокировкой записи
func (s *Storage) accountFor(id string) *account {
	acc, ok := s.accounts[id]
	if !ok {
		acc = &account{
			students: newCollection[student.Student](),
			rhythms:  newCollection[rhythm.Rhythm](),
			tasks:    newCollection[task.Task](),
		}
		s.accounts[id] = acc
	}
	return acc
}

func (s *Storage) readAccount(id string) (*account, bool) {
	acc, ok := s.accounts[id]
	return acc, ok
}

func (s *Storage) notify(ctx context.Context, accountID string, c repo.Collection) {
	if err := s.hub.Notify(ctx, accountID, c, s.snapshot); err != nil {
		logger.Warn("Repository: Не удалось разослать снимок", zap.Error(err))
	}
}

func (s *Storage) snapshot(ctx context.Context, accountID string, c repo.Collection) (repo.Snapshot, error) {
	snap := repo.Snapshot{Collection: c}
	var err error
	switch c {
	case repo.CollectionProfiles:
		snap.Students, err = s.ListStudents(ctx, accountID)
	case repo.CollectionRhythms:
		snap.Rhythms, err = s.ListRhythms(ctx, accountID)
	case repo.CollectionAssignments:
		snap.Tasks, err = s.ListTasks(ctx, accountID)
	}
	return snap, err
}

func (s *Storage) Subscribe(ctx context.Context, accountID string, c repo.Collection, fn repo.SnapshotFunc) (func(), error) {
	return s.hub.Subscribe(ctx, accountID, c, fn, s.snapshot)
}

func (s *Storage) Accounts(ctx context.Context) ([]string, error) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	res := make([]string, 0, len(s.accounts))
	for id := range s.accounts {
		res = append(res, id)
	}
	sort.Strings(res)
	return res, nil
}

// --- ученики ---

func (s *Storage) ListStudents(ctx context.Context, accountID string) ([]student.Student, error) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	acc, ok := s.readAccount(accountID)
	if !ok {
		return []student.Student{}, nil
	}
	return acc.students.list(), nil
}

func (s *Storage) GetStudent(ctx context.Context, accountID, id string) (*student.Student, error) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	acc, ok := s.readAccount(accountID)
	if !ok {
		return nil, repo.ErrNotFound
	}
	doc, ok := acc.students.get(id)
	if !ok {
		return nil, repo.ErrNotFound
	}
	return &doc, nil
}

func (s *Storage) CreateStudent(ctx context.Context, accountID string, st *student.Student) error {
	s.mtx.Lock()
	if st.ID == "" {
		st.ID = uuid.New().String()
	}
	s.accountFor(accountID).students.put(st.ID, *st)
	s.mtx.Unlock()

	s.notify(ctx, accountID, repo.CollectionProfiles)
	return nil
}

func (s *Storage) UpdateStudent(ctx context.Context, accountID string, st *student.Student) error {
	s.mtx.Lock()
	acc := s.accountFor(accountID)
	if _, ok := acc.students.get(st.ID); !ok {
		s.mtx.Unlock()
		return repo.ErrNotFound
	}
	acc.students.put(st.ID, *st)
	s.mtx.Unlock()

	s.notify(ctx, accountID, repo.CollectionProfiles)
	return nil
}

func (s *Storage) DeleteStudent(ctx context.Context, accountID, id string) error {
	s.mtx.Lock()
	s.accountFor(accountID).students.remove(id)
	s.mtx.Unlock()

	s.notify(ctx, accountID, repo.CollectionProfiles)
	return nil
}

// --- ритмы ---

func (s *Storage) ListRhythms(ctx context.Context, accountID string) ([]rhythm.Rhythm, error) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	acc, ok := s.readAccount(accountID)
	if !ok {
		return []rhythm.Rhythm{}, nil
	}
	return acc.rhythms.list(), nil
}

func (s *Storage) GetRhythm(ctx context.Context, accountID, id string) (*rhythm.Rhythm, error) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	acc, ok := s.readAccount(accountID)
	if !ok {
		return nil, repo.ErrNotFound
	}
	doc, ok := acc.rhythms.get(id)
	if !ok {
		return nil, repo.ErrNotFound
	}
	return &doc, nil
}

func (s *Storage) CreateRhythm(ctx context.Context, accountID string, r *rhythm.Rhythm) error {
	s.mtx.Lock()
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	s.accountFor(accountID).rhythms.put(r.ID, *r)
	s.mtx.Unlock()

	s.notify(ctx, accountID, repo.CollectionRhythms)
	return nil
}

func (s *Storage) UpdateRhythm(ctx context.Context, accountID string, r *rhythm.Rhythm) error {
	s.mtx.Lock()
	acc := s.accountFor(accountID)
	if _, ok := acc.rhythms.get(r.ID); !ok {
		s.mtx.Unlock()
		return repo.ErrNotFound
	}
	acc.rhythms.put(r.ID, *r)
	s.mtx.Unlock()

	s.notify(ctx, accountID, repo.CollectionRhythms)
	return nil
}

func (s *Storage) DeleteRhythm(ctx context.Context, accountID, id string) error {
	s.mtx.Lock()
	s.accountFor(accountID).rhythms.remove(id)
	s.mtx.Unlock()

	s.notify(ctx, accountID, repo.CollectionRhythms)
	return nil
}

// --- задачи ---

func (s *Storage) ListTasks(ctx context.Context, accountID string) ([]task.Task, error) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	acc, ok := s.readAccount(accountID)
	if !ok {
		return []task.Task{}, nil
	}
	return acc.tasks.list(), nil
}

func (s *Storage) GetTask(ctx context.Context, accountID, id string) (*task.Task, error) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	acc, ok := s.readAccount(accountID)
	if !ok {
		return nil, repo.ErrNotFound
	}
	doc, ok := acc.tasks.get(id)
	if !ok {
		return nil, repo.ErrNotFound
	}
	return &doc, nil
}

func (s *Storage) CreateTask(ctx context.Context, accountID string, t *task.Task) error {
	s.mtx.Lock()
	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now()
	}
	s.accountFor(accountID).tasks.put(t.ID, *t)
	s.mtx.Unlock()

	s.notify(ctx, accountID, repo.CollectionAssignments)
	return nil
}

func (s *Storage) UpdateTask(ctx context.Context, accountID string, t *task.Task) error {
	s.mtx.Lock()
	acc := s.accountFor(accountID)
	if _, ok := acc.tasks.get(t.ID); !ok {
		s.mtx.Unlock()
		return repo.ErrNotFound
	}
	acc.tasks.put(t.ID, *t)
	s.mtx.Unlock()

	s.notify(ctx, accountID, repo.CollectionAssignments)
	return nil
}

func (s *Storage) DeleteTask(ctx context.Context, accountID, id string) error {
	s.mtx.Lock()
	s.accountFor(accountID).tasks.remove(id)
	s.mtx.Unlock()

	s.notify(ctx, accountID, repo.CollectionAssignments)
	return nil
}

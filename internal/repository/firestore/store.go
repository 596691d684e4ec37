package firestore

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"sync"
	"time"

	"kairos/internal/logger"
	"kairos/internal/models/rhythm"
	"kairos/internal/models/student"
	"kairos/internal/models/task"
	repo "kairos/internal/repository"

	"cloud.google.com/go/firestore"
	firebase "firebase.google.com/go"
	"go.uber.org/zap"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const slowQuery = time.Millisecond * 300

var unsafeAppID = regexp.MustCompile(`[^a-zA-Z0-9_-]`)

// SanitizeAppID приводит идентификатор приложения к виду, допустимому в пути документа
func SanitizeAppID(appID string) string {
	return unsafeAppID.ReplaceAllString(appID, "_")
}

// Storage хранит данные по пути artifacts/{appId}/users/{uid}/{collection}
type Storage struct {
	client *firestore.Client
	appID  string
}

func New(ctx context.Context, app *firebase.App, appID string) (*Storage, error) {
	client, err := app.Firestore(ctx)
	if err != nil {
		logger.Error("Repository: Ошибка создания клиента Firestore", err)
		return nil, fmt.Errorf("клиент firestore: %w", err)
	}
	logger.Info("Repository: Успешное подключение к Firestore", zap.String("app_id", SanitizeAppID(appID)))
	return NewWithClient(client, appID), nil
}

func NewWithClient(client *firestore.Client, appID string) *Storage {
	return &Storage{client: client, appID: SanitizeAppID(appID)}
}

func (s *Storage) Close() {
	if err := s.client.Close(); err != nil {
		logger.Warn("Repository: Ошибка закрытия клиента Firestore", zap.Error(err))
		return
	}
	logger.Info("Repository: Клиент Firestore закрыт")
}

func (s *Storage) HealthCheck(ctx context.Context) error {
	_, err := s.users().Limit(1).Documents(ctx).GetAll()
	if err != nil {
		logger.Error("Repository: Firestore недоступен", err)
		return fmt.Errorf("проверка firestore: %w", err)
	}
	logger.Info("Repository: Соединение стабильно")
	return nil
}

func (s *Storage) users() *firestore.CollectionRef {
	return s.client.Collection("artifacts").Doc(s.appID).Collection("users")
}

func (s *Storage) collection(accountID string, c repo.Collection) *firestore.CollectionRef {
	return s.users().Doc(accountID).Collection(string(c))
}

func warnSlow(op string, start time.Time) {
	if time.Since(start) > slowQuery {
		logger.Warn("Repository: Медленный запрос", zap.String("op", op), zap.Duration("ms", time.Since(start)))
	}
}

// Accounts перечисляет пользователей, включая «отсутствующие» документы с подколлекциями
func (s *Storage) Accounts(ctx context.Context) ([]string, error) {
	refs, err := s.users().DocumentRefs(ctx).GetAll()
	if err != nil {
		logger.Error("Repository: Не удалось получить аккаунты", err)
		return nil, fmt.Errorf("получение аккаунтов: %w", err)
	}
	res := make([]string, 0, len(refs))
	for _, ref := range refs {
		res = append(res, ref.ID)
	}
	sort.Strings(res)
	return res, nil
}

func decodeAll[T any](docs []*firestore.DocumentSnapshot, setID func(*T, string)) []T {
	res := make([]T, 0, len(docs))
	for _, doc := range docs {
		var v T
		if err := doc.DataTo(&v); err != nil {
			logger.Warn("Repository: Ошибка декодирования документа", zap.String("id", doc.Ref.ID), zap.Error(err))
			continue
		}
		setID(&v, doc.Ref.ID)
		res = append(res, v)
	}
	return res
}

func list[T any](ctx context.Context, coll *firestore.CollectionRef, setID func(*T, string)) ([]T, error) {
	start := time.Now()
	docs, err := coll.Documents(ctx).GetAll()
	if err != nil {
		logger.Error("Repository: Не удалось прочитать коллекцию", err, zap.String("path", coll.Path))
		return nil, fmt.Errorf("чтение %s: %w", coll.ID, err)
	}
	warnSlow("list "+coll.ID, start)
	return decodeAll(docs, setID), nil
}

func get[T any](ctx context.Context, coll *firestore.CollectionRef, id string, setID func(*T, string)) (*T, error) {
	start := time.Now()
	doc, err := coll.Doc(id).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, repo.ErrNotFound
		}
		logger.Error("Repository: Не удалось прочитать документ", err, zap.String("id", id))
		return nil, fmt.Errorf("чтение %s/%s: %w", coll.ID, id, err)
	}
	var v T
	if err := doc.DataTo(&v); err != nil {
		return nil, fmt.Errorf("декодирование %s/%s: %w", coll.ID, id, err)
	}
	setID(&v, doc.Ref.ID)
	warnSlow("get "+coll.ID, start)
	return &v, nil
}

// create назначает идентификатор Firestore, если он не задан
func create(ctx context.Context, coll *firestore.CollectionRef, id string, doc any) (string, error) {
	start := time.Now()
	ref := coll.NewDoc()
	if id != "" {
		ref = coll.Doc(id)
	}
	if _, err := ref.Set(ctx, doc); err != nil {
		logger.Error("Repository: Не удалось создать документ", err, zap.String("path", coll.Path))
		return "", fmt.Errorf("создание в %s: %w", coll.ID, err)
	}
	warnSlow("create "+coll.ID, start)
	return ref.ID, nil
}

// update перезаписывает документ целиком; последний записавший выигрывает
func update(ctx context.Context, coll *firestore.CollectionRef, id string, doc any) error {
	start := time.Now()
	ref := coll.Doc(id)
	if _, err := ref.Get(ctx); err != nil {
		if status.Code(err) == codes.NotFound {
			return repo.ErrNotFound
		}
		return fmt.Errorf("чтение %s/%s: %w", coll.ID, id, err)
	}
	if _, err := ref.Set(ctx, doc); err != nil {
		logger.Error("Repository: Не удалось обновить документ", err, zap.String("id", id))
		return fmt.Errorf("обновление %s/%s: %w", coll.ID, id, err)
	}
	warnSlow("update "+coll.ID, start)
	return nil
}

func remove(ctx context.Context, coll *firestore.CollectionRef, id string) error {
	if _, err := coll.Doc(id).Delete(ctx); err != nil {
		logger.Error("Repository: Не удалось удалить документ", err, zap.String("id", id))
		return fmt.Errorf("удаление %s/%s: %w", coll.ID, id, err)
	}
	return nil
}

func setStudentID(st *student.Student, id string) { st.ID = id }
func setRhythmID(r *rhythm.Rhythm, id string)     { r.ID = id }
func setTaskID(t *task.Task, id string)           { t.ID = id }

// --- ученики ---

func (s *Storage) ListStudents(ctx context.Context, accountID string) ([]student.Student, error) {
	return list(ctx, s.collection(accountID, repo.CollectionProfiles), setStudentID)
}

func (s *Storage) GetStudent(ctx context.Context, accountID, id string) (*student.Student, error) {
	return get(ctx, s.collection(accountID, repo.CollectionProfiles), id, setStudentID)
}

func (s *Storage) CreateStudent(ctx context.Context, accountID string, st *student.Student) error {
	id, err := create(ctx, s.collection(accountID, repo.CollectionProfiles), st.ID, st)
	if err != nil {
		return err
	}
	st.ID = id
	return nil
}

func (s *Storage) UpdateStudent(ctx context.Context, accountID string, st *student.Student) error {
	return update(ctx, s.collection(accountID, repo.CollectionProfiles), st.ID, st)
}

func (s *Storage) DeleteStudent(ctx context.Context, accountID, id string) error {
	return remove(ctx, s.collection(accountID, repo.CollectionProfiles), id)
}

// --- ритмы ---

func (s *Storage) ListRhythms(ctx context.Context, accountID string) ([]rhythm.Rhythm, error) {
	return list(ctx, s.collection(accountID, repo.CollectionRhythms), setRhythmID)
}

func (s *Storage) GetRhythm(ctx context.Context, accountID, id string) (*rhythm.Rhythm, error) {
	return get(ctx, s.collection(accountID, repo.CollectionRhythms), id, setRhythmID)
}

func (s *Storage) CreateRhythm(ctx context.Context, accountID string, r *rhythm.Rhythm) error {
	id, err := create(ctx, s.collection(accountID, repo.CollectionRhythms), r.ID, r)
	if err != nil {
		return err
	}
	r.ID = id
	return nil
}

func (s *Storage) UpdateRhythm(ctx context.Context, accountID string, r *rhythm.Rhythm) error {
	return update(ctx, s.collection(accountID, repo.CollectionRhythms), r.ID, r)
}

func (s *Storage) DeleteRhythm(ctx context.Context, accountID, id string) error {
	return remove(ctx, s.collection(accountID, repo.CollectionRhythms), id)
}

// --- задачи ---

func (s *Storage) ListTasks(ctx context.Context, accountID string) ([]task.Task, error) {
	return list(ctx, s.collection(accountID, repo.CollectionAssignments), setTaskID)
}

func (s *Storage) GetTask(ctx context.Context, accountID, id string) (*task.Task, error) {
	return get(ctx, s.collection(accountID, repo.CollectionAssignments), id, setTaskID)
}

func (s *Storage) CreateTask(ctx context.Context, accountID string, t *task.Task) error {
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now()
	}
	id, err := create(ctx, s.collection(accountID, repo.CollectionAssignments), t.ID, t)
	if err != nil {
		return err
	}
	t.ID = id
	return nil
}

func (s *Storage) UpdateTask(ctx context.Context, accountID string, t *task.Task) error {
	return update(ctx, s.collection(accountID, repo.CollectionAssignments), t.ID, t)
}

func (s *Storage) DeleteTask(ctx context.Context, accountID, id string) error {
	return remove(ctx, s.collection(accountID, repo.CollectionAssignments), id)
}

// --- подписки ---

func toSnapshot(c repo.Collection, docs []*firestore.DocumentSnapshot) repo.Snapshot {
	snap := repo.Snapshot{Collection: c}
	switch c {
	case repo.CollectionProfiles:
		snap.Students = decodeAll(docs, setStudentID)
	case repo.CollectionRhythms:
		snap.Rhythms = decodeAll(docs, setRhythmID)
	case repo.CollectionAssignments:
		snap.Tasks = decodeAll(docs, setTaskID)
	}
	return snap
}

// Subscribe использует нативные слушатели Firestore: первый снимок доставляется до возврата
func (s *Storage) Subscribe(ctx context.Context, accountID string, c repo.Collection, fn repo.SnapshotFunc) (func(), error) {
	if accountID == "" {
		return nil, repo.ErrEmptyAccount
	}

	listenCtx, cancel := context.WithCancel(context.Background())
	it := s.collection(accountID, c).Snapshots(listenCtx)

	first, err := it.Next()
	if err != nil {
		cancel()
		it.Stop()
		return nil, fmt.Errorf("начальный снимок %s: %w", c, err)
	}
	docs, err := first.Documents.GetAll()
	if err != nil {
		cancel()
		it.Stop()
		return nil, fmt.Errorf("начальный снимок %s: %w", c, err)
	}
	fn(toSnapshot(c, docs))

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			qs, err := it.Next()
			if err != nil {
				if !errors.Is(err, iterator.Done) && status.Code(err) != codes.Canceled && listenCtx.Err() == nil {
					logger.Error("Repository: Слушатель Firestore остановлен", err, zap.String("collection", string(c)))
				}
				return
			}
			docs, err := qs.Documents.GetAll()
			if err != nil {
				logger.Warn("Repository: Ошибка чтения снимка", zap.Error(err))
				continue
			}
			fn(toSnapshot(c, docs))
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			cancel()
			it.Stop()
			<-done
		})
	}, nil
}

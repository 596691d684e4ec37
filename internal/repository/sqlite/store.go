package sqlite

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"kairos/internal/logger"
	"kairos/internal/models/rhythm"
	"kairos/internal/models/student"
	"kairos/internal/models/task"
	repo "kairos/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// строки таблиц; порядок выдачи задаётся автоинкрементным Seq
type studentRow struct {
	Seq         uint   `gorm:"primaryKey;autoIncrement"`
	AccountID   string `gorm:"size:128;uniqueIndex:idx_student_doc;not null"`
	DocID       string `gorm:"size:64;uniqueIndex:idx_student_doc;not null"`
	DisplayName string `gorm:"size:255;not null"`
	Age         *int
	Color       string `gorm:"size:16;not null"`
}

type rhythmRow struct {
	Seq       uint   `gorm:"primaryKey;autoIncrement"`
	AccountID string `gorm:"size:128;uniqueIndex:idx_rhythm_doc;not null"`
	DocID     string `gorm:"size:64;uniqueIndex:idx_rhythm_doc;not null"`
	Name      string `gorm:"size:255;not null"`
	Icon      string `gorm:"size:32;not null"`
	Color     string `gorm:"size:16;not null"`
}

type taskRow struct {
	Seq         uint   `gorm:"primaryKey;autoIncrement"`
	AccountID   string `gorm:"size:128;uniqueIndex:idx_task_doc;not null"`
	DocID       string `gorm:"size:64;uniqueIndex:idx_task_doc;not null"`
	Title       string `gorm:"size:255;not null"`
	Subject     string `gorm:"size:255;not null"`
	Type        string `gorm:"size:16;not null"`
	Duration    string `gorm:"size:16;not null"`
	StudentID   string `gorm:"size:64;index"`
	Status      string `gorm:"size:16;not null"`
	DueDate     *string
	CompletedAt *time.Time
	CreatedAt   time.Time
}

func (studentRow) TableName() string { return "students" }
func (rhythmRow) TableName() string  { return "rhythms" }
func (taskRow) TableName() string    { return "tasks" }

func fromStudent(accountID string, st *student.Student) studentRow {
	return studentRow{AccountID: accountID, DocID: st.ID, DisplayName: st.DisplayName, Age: st.Age, Color: string(st.Color)}
}

func (r studentRow) model() student.Student {
	return student.Student{ID: r.DocID, DisplayName: r.DisplayName, Age: r.Age, Color: student.Color(r.Color)}
}

func fromRhythm(accountID string, rh *rhythm.Rhythm) rhythmRow {
	return rhythmRow{AccountID: accountID, DocID: rh.ID, Name: rh.Name, Icon: string(rh.Icon), Color: string(rh.Color)}
}

func (r rhythmRow) model() rhythm.Rhythm {
	return rhythm.Rhythm{ID: r.DocID, Name: r.Name, Icon: rhythm.Icon(r.Icon), Color: student.Color(r.Color)}
}

func fromTask(accountID string, t *task.Task) taskRow {
	return taskRow{
		AccountID:   accountID,
		DocID:       t.ID,
		Title:       t.Title,
		Subject:     string(t.Subject),
		Type:        string(t.Type),
		Duration:    t.Duration,
		StudentID:   t.StudentID,
		Status:      string(t.Status),
		DueDate:     t.DueDate,
		CompletedAt: t.CompletedAt,
		CreatedAt:   t.CreatedAt,
	}
}

func (r taskRow) model() task.Task {
	return task.Task{
		ID:          r.DocID,
		Title:       r.Title,
		Subject:     task.Subject(r.Subject),
		Type:        task.Type(r.Type),
		Duration:    r.Duration,
		StudentID:   r.StudentID,
		Status:      task.Status(r.Status),
		DueDate:     r.DueDate,
		CompletedAt: r.CompletedAt,
		CreatedAt:   r.CreatedAt,
	}
}

// zapWriter направляет сообщения gorm в общий логгер
type zapWriter struct{}

func (zapWriter) Printf(format string, args ...any) {
	logger.Warn("Repository: " + strings.TrimSpace(fmt.Sprintf(format, args...)))
}

type Storage struct {
	db  *gorm.DB
	hub *repo.Hub
}

// New открывает файл SQLite и применяет AutoMigrate
func New(dsn string) (*Storage, error) {
	if dsn == "" {
		dsn = "kairos.db"
	}
	if err := ensureDir(dsn); err != nil {
		return nil, err
	}

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.New(zapWriter{}, gormlogger.Config{
			SlowThreshold:             time.Millisecond * 100,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		}),
	})
	if err != nil {
		logger.Error("Repository: Ошибка открытия SQLite", err)
		return nil, fmt.Errorf("открытие sqlite: %w", err)
	}

	if err := db.AutoMigrate(&studentRow{}, &rhythmRow{}, &taskRow{}); err != nil {
		logger.Error("Repository: Ошибка миграции SQLite", err)
		return nil, fmt.Errorf("миграция sqlite: %w", err)
	}

	logger.Info("Repository: SQLite готов", zap.String("dsn", dsn))
	return &Storage{db: db, hub: repo.NewHub()}, nil
}

func ensureDir(dsn string) error {
	if strings.Contains(dsn, ":memory:") || strings.Contains(dsn, "mode=memory") {
		return nil
	}
	clean := strings.Split(strings.TrimPrefix(dsn, "file:"), "?")[0]
	dir := filepath.Dir(clean)
	if dir == "." || dir == "" {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("создание каталога %q: %w", dir, err)
	}
	return nil
}

func (s *Storage) Close() {
	sqlDB, err := s.db.DB()
	if err != nil {
		return
	}
	if err := sqlDB.Close(); err != nil {
		logger.Warn("Repository: Ошибка закрытия SQLite", zap.Error(err))
		return
	}
	logger.Info("Repository: SQLite закрыт")
}

func (s *Storage) HealthCheck(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("получение соединения: %w", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		logger.Error("Repository: Неудачная проверка ping", err)
		return fmt.Errorf("проверка соединения ping: %w", err)
	}
	logger.Info("Repository: Соединение стабильно")
	return nil
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
	var res []string
	err := s.db.WithContext(ctx).Raw(`SELECT account_id FROM students
		UNION SELECT account_id FROM rhythms
		UNION SELECT account_id FROM tasks
		ORDER BY account_id`).Scan(&res).Error
	if err != nil {
		return nil, fmt.Errorf("получение аккаунтов: %w", err)
	}
	if res == nil {
		res = []string{}
	}
	return res, nil
}

func docScope(accountID, id string) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("account_id = ? AND doc_id = ?", accountID, id)
	}
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return repo.ErrNotFound
	}
	return err
}

// --- ученики ---

func (s *Storage) ListStudents(ctx context.Context, accountID string) ([]student.Student, error) {
	var rows []studentRow
	if err := s.db.WithContext(ctx).Where("account_id = ?", accountID).Order("seq").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("получение учеников: %w", err)
	}
	res := make([]student.Student, 0, len(rows))
	for _, r := range rows {
		res = append(res, r.model())
	}
	return res, nil
}

func (s *Storage) GetStudent(ctx context.Context, accountID, id string) (*student.Student, error) {
	var row studentRow
	if err := s.db.WithContext(ctx).Scopes(docScope(accountID, id)).First(&row).Error; err != nil {
		return nil, notFound(err)
	}
	st := row.model()
	return &st, nil
}

func (s *Storage) CreateStudent(ctx context.Context, accountID string, st *student.Student) error {
	if st.ID == "" {
		st.ID = uuid.New().String()
	}
	row := fromStudent(accountID, st)
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("добавление ученика: %w", err)
	}
	s.notify(ctx, accountID, repo.CollectionProfiles)
	return nil
}

func (s *Storage) UpdateStudent(ctx context.Context, accountID string, st *student.Student) error {
	res := s.db.WithContext(ctx).Model(&studentRow{}).Scopes(docScope(accountID, st.ID)).
		Select("display_name", "age", "color").
		Updates(fromStudent(accountID, st))
	if res.Error != nil {
		return fmt.Errorf("обновление ученика: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return repo.ErrNotFound
	}
	s.notify(ctx, accountID, repo.CollectionProfiles)
	return nil
}

func (s *Storage) DeleteStudent(ctx context.Context, accountID, id string) error {
	if err := s.db.WithContext(ctx).Scopes(docScope(accountID, id)).Delete(&studentRow{}).Error; err != nil {
		return fmt.Errorf("удаление ученика: %w", err)
	}
	s.notify(ctx, accountID, repo.CollectionProfiles)
	return nil
}

// --- ритмы ---

func (s *Storage) ListRhythms(ctx context.Context, accountID string) ([]rhythm.Rhythm, error) {
	var rows []rhythmRow
	if err := s.db.WithContext(ctx).Where("account_id = ?", accountID).Order("seq").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("получение ритмов: %w", err)
	}
	res := make([]rhythm.Rhythm, 0, len(rows))
	for _, r := range rows {
		res = append(res, r.model())
	}
	return res, nil
}

func (s *Storage) GetRhythm(ctx context.Context, accountID, id string) (*rhythm.Rhythm, error) {
	var row rhythmRow
	if err := s.db.WithContext(ctx).Scopes(docScope(accountID, id)).First(&row).Error; err != nil {
		return nil, notFound(err)
	}
	r := row.model()
	return &r, nil
}

func (s *Storage) CreateRhythm(ctx context.Context, accountID string, r *rhythm.Rhythm) error {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	row := fromRhythm(accountID, r)
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("добавление ритма: %w", err)
	}
	s.notify(ctx, accountID, repo.CollectionRhythms)
	return nil
}

func (s *Storage) UpdateRhythm(ctx context.Context, accountID string, r *rhythm.Rhythm) error {
	res := s.db.WithContext(ctx).Model(&rhythmRow{}).Scopes(docScope(accountID, r.ID)).
		Select("name", "icon", "color").
		Updates(fromRhythm(accountID, r))
	if res.Error != nil {
		return fmt.Errorf("обновление ритма: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return repo.ErrNotFound
	}
	s.notify(ctx, accountID, repo.CollectionRhythms)
	return nil
}

func (s *Storage) DeleteRhythm(ctx context.Context, accountID, id string) error {
	if err := s.db.WithContext(ctx).Scopes(docScope(accountID, id)).Delete(&rhythmRow{}).Error; err != nil {
		return fmt.Errorf("удаление ритма: %w", err)
	}
	s.notify(ctx, accountID, repo.CollectionRhythms)
	return nil
}

// --- задачи ---

func (s *Storage) ListTasks(ctx context.Context, accountID string) ([]task.Task, error) {
	var rows []taskRow
	if err := s.db.WithContext(ctx).Where("account_id = ?", accountID).Order("seq").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("получение задач: %w", err)
	}
	res := make([]task.Task, 0, len(rows))
	for _, r := range rows {
		res = append(res, r.model())
	}
	return res, nil
}

func (s *Storage) GetTask(ctx context.Context, accountID, id string) (*task.Task, error) {
	var row taskRow
	if err := s.db.WithContext(ctx).Scopes(docScope(accountID, id)).First(&row).Error; err != nil {
		return nil, notFound(err)
	}
	t := row.model()
	return &t, nil
}

func (s *Storage) CreateTask(ctx context.Context, accountID string, t *task.Task) error {
	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now()
	}
	row := fromTask(accountID, t)
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("добавление задачи: %w", err)
	}
	s.notify(ctx, accountID, repo.CollectionAssignments)
	return nil
}

// UpdateTask пишет все поля, включая nil в due_date и completed_at
func (s *Storage) UpdateTask(ctx context.Context, accountID string, t *task.Task) error {
	res := s.db.WithContext(ctx).Model(&taskRow{}).Scopes(docScope(accountID, t.ID)).
		Select("title", "subject", "type", "duration", "student_id", "status", "due_date", "completed_at").
		Updates(fromTask(accountID, t))
	if res.Error != nil {
		return fmt.Errorf("обновление задачи: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return repo.ErrNotFound
	}
	s.notify(ctx, accountID, repo.CollectionAssignments)
	return nil
}

func (s *Storage) DeleteTask(ctx context.Context, accountID, id string) error {
	if err := s.db.WithContext(ctx).Scopes(docScope(accountID, id)).Delete(&taskRow{}).Error; err != nil {
		return fmt.Errorf("удаление задачи: %w", err)
	}
	s.notify(ctx, accountID, repo.CollectionAssignments)
	return nil
}

package postgres

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"kairos/internal/logger"
	"kairos/internal/models/rhythm"
	"kairos/internal/models/student"
	"kairos/internal/models/task"
	repo "kairos/internal/repository"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

const slowQuery = time.Millisecond * 100

type Storage struct {
	pool *pgxpool.Pool
	hub  *repo.Hub

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

type PoolOption func(*pgxpool.Config)

func WithPoolSize(minConns, maxConns int32) PoolOption {
	return func(c *pgxpool.Config) {
		if maxConns > 0 {
			c.MaxConns = maxConns
		}
		if minConns > 0 && minConns <= c.MaxConns {
			c.MinConns = minConns
		}
	}
}

func WithIdleTimeout(d time.Duration) PoolOption {
	return func(c *pgxpool.Config) {
		if d > 0 {
			c.MaxConnIdleTime = d
		}
	}
}

func New(ctx context.Context, connString string, options ...PoolOption) (*Storage, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		logger.Error("Repository: Ошибка загрузки конфига", err)
		return nil, fmt.Errorf("загрузка конфига: %w", err)
	}

	config.MaxConns = 10
	config.MinConns = 2
	config.MaxConnIdleTime = time.Minute * 5
	for _, opt := range options {
		opt(config)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		logger.Error("Repository: Ошибка создания пула", err)
		return nil, fmt.Errorf("создание пула: %w", err)
	}

	err = pool.Ping(ctx)
	if err != nil {
		pool.Close()
		logger.Error("Repository: Неудачная проверка ping", err)
		return nil, fmt.Errorf("проверка соединения ping: %w", err)
	}

	listenCtx, cancel := context.WithCancel(context.Background())
	s := &Storage{pool: pool, hub: repo.NewHub(), cancel: cancel}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.listen(listenCtx)
	}()

	logger.Info("Repository: Успешное создание подключения к PostgreSQL")
	return s, nil
}

func (s *Storage) Close() {
	s.cancel()
	s.wg.Wait()
	s.pool.Close()
	logger.Info("Repository: Закрытие всех соединений PostgreSQL")
}

func (s *Storage) HealthCheck(ctx context.Context) error {
	err := s.pool.Ping(ctx)
	if err != nil {
		logger.Error("Repository: Неудачная проверка ping", err)
		return fmt.Errorf("проверка соединения ping: %w", err)
	}
	logger.Info("Repository: Соединение стабильно")
	return nil
}

func warnSlow(op string, start time.Time) {
	if time.Since(start) > slowQuery {
		logger.Warn("Repository: Медленный запрос", zap.String("op", op), zap.Duration("ms", time.Since(start)))
	}
}

func (s *Storage) exec(ctx context.Context, op, query string, args ...any) (int64, error) {
	start := time.Now()
	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		logger.Error("Repository: Ошибка запроса", err, zap.String("op", op), zap.Duration("ms", time.Since(start)))
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	warnSlow(op, start)
	return tag.RowsAffected(), nil
}

func (s *Storage) Accounts(ctx context.Context) ([]string, error) {
	start := time.Now()
	query := `SELECT account_id FROM students
			UNION SELECT account_id FROM rhythms
			UNION SELECT account_id FROM tasks
			ORDER BY account_id`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		logger.Error("Repository: Не удалось получить аккаунты", err)
		return nil, fmt.Errorf("получение аккаунтов: %w", err)
	}
	res, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("итерация по строкам: %w", err)
	}
	warnSlow("accounts", start)
	return res, nil
}

// --- ученики ---

func (s *Storage) ListStudents(ctx context.Context, accountID string) ([]student.Student, error) {
	start := time.Now()
	query := `SELECT id, display_name, age, color
			FROM students
			WHERE account_id = $1
			ORDER BY seq`

	rows, err := s.pool.Query(ctx, query, accountID)
	if err != nil {
		logger.Error("Repository: Не удалось получить учеников", err, zap.Duration("ms", time.Since(start)))
		return nil, fmt.Errorf("получение учеников: %w", err)
	}
	defer rows.Close()

	res := []student.Student{}
	for rows.Next() {
		var st student.Student
		if err := rows.Scan(&st.ID, &st.DisplayName, &st.Age, &st.Color); err != nil {
			logger.Warn("Repository: Ошибка сканирования ученика", zap.Error(err))
			continue
		}
		res = append(res, st)
	}
	if err := rows.Err(); err != nil {
		logger.Error("Repository: Ошибка итерации по строкам", err)
		return nil, fmt.Errorf("итерация по строкам: %w", err)
	}
	warnSlow("list students", start)
	return res, nil
}

func (s *Storage) GetStudent(ctx context.Context, accountID, id string) (*student.Student, error) {
	start := time.Now()
	query := `SELECT id, display_name, age, color
			FROM students
			WHERE account_id = $1 AND id = $2`

	st := &student.Student{}
	err := s.pool.QueryRow(ctx, query, accountID, id).Scan(&st.ID, &st.DisplayName, &st.Age, &st.Color)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repo.ErrNotFound
		}
		logger.Error("Repository: Не удалось получить ученика", err, zap.Duration("ms", time.Since(start)))
		return nil, fmt.Errorf("получение ученика: %w", err)
	}
	warnSlow("get student", start)
	return st, nil
}

func (s *Storage) CreateStudent(ctx context.Context, accountID string, st *student.Student) error {
	if st.ID == "" {
		st.ID = uuid.New().String()
	}
	query := `INSERT INTO students (account_id, id, display_name, age, color)
			VALUES ($1, $2, $3, $4, $5)`
	_, err := s.exec(ctx, "добавление ученика", query, accountID, st.ID, st.DisplayName, st.Age, st.Color)
	return err
}

func (s *Storage) UpdateStudent(ctx context.Context, accountID string, st *student.Student) error {
	query := `UPDATE students
			SET display_name = $3,
				age = $4,
				color = $5
			WHERE account_id = $1 AND id = $2`
	n, err := s.exec(ctx, "обновление ученика", query, accountID, st.ID, st.DisplayName, st.Age, st.Color)
	if err != nil {
		return err
	}
	if n == 0 {
		return repo.ErrNotFound
	}
	return nil
}

func (s *Storage) DeleteStudent(ctx context.Context, accountID, id string) error {
	_, err := s.exec(ctx, "удаление ученика", `DELETE FROM students WHERE account_id = $1 AND id = $2`, accountID, id)
	return err
}

// --- ритмы ---

func (s *Storage) ListRhythms(ctx context.Context, accountID string) ([]rhythm.Rhythm, error) {
	start := time.Now()
	query := `SELECT id, name, icon, color
			FROM rhythms
			WHERE account_id = $1
			ORDER BY seq`

	rows, err := s.pool.Query(ctx, query, accountID)
	if err != nil {
		logger.Error("Repository: Не удалось получить ритмы", err, zap.Duration("ms", time.Since(start)))
		return nil, fmt.Errorf("получение ритмов: %w", err)
	}
	defer rows.Close()

	res := []rhythm.Rhythm{}
	for rows.Next() {
		var r rhythm.Rhythm
		if err := rows.Scan(&r.ID, &r.Name, &r.Icon, &r.Color); err != nil {
			logger.Warn("Repository: Ошибка сканирования ритма", zap.Error(err))
			continue
		}
		res = append(res, r)
	}
	if err := rows.Err(); err != nil {
		logger.Error("Repository: Ошибка итерации по строкам", err)
		return nil, fmt.Errorf("итерация по строкам: %w", err)
	}
	warnSlow("list rhythms", start)
	return res, nil
}

func (s *Storage) GetRhythm(ctx context.Context, accountID, id string) (*rhythm.Rhythm, error) {
	start := time.Now()
	query := `SELECT id, name, icon, color
			FROM rhythms
			WHERE account_id = $1 AND id = $2`

	r := &rhythm.Rhythm{}
	err := s.pool.QueryRow(ctx, query, accountID, id).Scan(&r.ID, &r.Name, &r.Icon, &r.Color)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repo.ErrNotFound
		}
		logger.Error("Repository: Не удалось получить ритм", err, zap.Duration("ms", time.Since(start)))
		return nil, fmt.Errorf("получение ритма: %w", err)
	}
	warnSlow("get rhythm", start)
	return r, nil
}

func (s *Storage) CreateRhythm(ctx context.Context, accountID string, r *rhythm.Rhythm) error {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	query := `INSERT INTO rhythms (account_id, id, name, icon, color)
			VALUES ($1, $2, $3, $4, $5)`
	_, err := s.exec(ctx, "добавление ритма", query, accountID, r.ID, r.Name, r.Icon, r.Color)
	return err
}

func (s *Storage) UpdateRhythm(ctx context.Context, accountID string, r *rhythm.Rhythm) error {
	query := `UPDATE rhythms
			SET name = $3,
				icon = $4,
				color = $5
			WHERE account_id = $1 AND id = $2`
	n, err := s.exec(ctx, "обновление ритма", query, accountID, r.ID, r.Name, r.Icon, r.Color)
	if err != nil {
		return err
	}
	if n == 0 {
		return repo.ErrNotFound
	}
	return nil
}

func (s *Storage) DeleteRhythm(ctx context.Context, accountID, id string) error {
	_, err := s.exec(ctx, "удаление ритма", `DELETE FROM rhythms WHERE account_id = $1 AND id = $2`, accountID, id)
	return err
}

// --- задачи ---

const taskColumns = `id, title, subject, type, duration, student_id, status, due_date, completed_at, created_at`

func scanTask(row pgx.Row, t *task.Task) error {
	return row.Scan(
		&t.ID,
		&t.Title,
		&t.Subject,
		&t.Type,
		&t.Duration,
		&t.StudentID,
		&t.Status,
		&t.DueDate,
		&t.CompletedAt,
		&t.CreatedAt,
	)
}

func (s *Storage) ListTasks(ctx context.Context, accountID string) ([]task.Task, error) {
	start := time.Now()
	query := `SELECT ` + taskColumns + `
			FROM tasks
			WHERE account_id = $1
			ORDER BY seq`

	rows, err := s.pool.Query(ctx, query, accountID)
	if err != nil {
		logger.Error("Repository: Не удалось получить задачи", err, zap.Duration("ms", time.Since(start)))
		return nil, fmt.Errorf("получение задач: %w", err)
	}
	defer rows.Close()

	res := []task.Task{}
	for rows.Next() {
		var t task.Task
		if err := scanTask(rows, &t); err != nil {
			logger.Warn("Repository: Ошибка сканирования задачи", zap.Error(err))
			continue
		}
		res = append(res, t)
	}
	if err := rows.Err(); err != nil {
		logger.Error("Repository: Ошибка итерации по строкам", err)
		return nil, fmt.Errorf("итерация по строкам: %w", err)
	}
	warnSlow("list tasks", start)
	return res, nil
}

func (s *Storage) GetTask(ctx context.Context, accountID, id string) (*task.Task, error) {
	start := time.Now()
	query := `SELECT ` + taskColumns + `
			FROM tasks
			WHERE account_id = $1 AND id = $2`

	t := &task.Task{}
	if err := scanTask(s.pool.QueryRow(ctx, query, accountID, id), t); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repo.ErrNotFound
		}
		logger.Error("Repository: Не удалось получить задачу", err, zap.Duration("ms", time.Since(start)))
		return nil, fmt.Errorf("получение задачи: %w", err)
	}
	warnSlow("get task", start)
	return t, nil
}

func (s *Storage) CreateTask(ctx context.Context, accountID string, t *task.Task) error {
	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now()
	}
	query := `INSERT INTO tasks
				(account_id, id, title, subject, type, duration, student_id, status, due_date, completed_at, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`
	_, err := s.exec(ctx, "добавление задачи", query,
		accountID,
		t.ID,
		t.Title,
		t.Subject,
		t.Type,
		t.Duration,
		t.StudentID,
		t.Status,
		t.DueDate,
		t.CompletedAt,
		t.CreatedAt,
	)
	return err
}

func (s *Storage) UpdateTask(ctx context.Context, accountID string, t *task.Task) error {
	query := `UPDATE tasks
			SET title = $3,
				subject = $4,
				type = $5,
				duration = $6,
				student_id = $7,
				status = $8,
				due_date = $9,
				completed_at = $10
			WHERE account_id = $1 AND id = $2`
	n, err := s.exec(ctx, "обновление задачи", query,
		accountID,
		t.ID,
		t.Title,
		t.Subject,
		t.Type,
		t.Duration,
		t.StudentID,
		t.Status,
		t.DueDate,
		t.CompletedAt,
	)
	if err != nil {
		return err
	}
	if n == 0 {
		return repo.ErrNotFound
	}
	return nil
}

func (s *Storage) DeleteTask(ctx context.Context, accountID, id string) error {
	_, err := s.exec(ctx, "удаление задачи", `DELETE FROM tasks WHERE account_id = $1 AND id = $2`, accountID, id)
	return err
}

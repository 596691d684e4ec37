// Package importer превращает CSV-текст в записи задач без записи в хранилище.
//
// Разбор намеренно простой: строки делятся по переводу строки, поля по
// разделителю, кавычки не поддерживаются. Поле с запятой сдвигает
// оставшиеся колонки.
package importer

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"kairos/internal/models/student"
	"kairos/internal/models/task"
)

const Delimiter = ","

const (
	ColumnTitle       = "title"
	ColumnSubject     = "subject"
	ColumnDuration    = "duration"
	ColumnStudentName = "studentName"
	ColumnDueDate     = "dueDate"
)

var RequiredColumns = []string{ColumnTitle, ColumnSubject, ColumnDuration, ColumnStudentName}

var (
	ErrEmptyInput     = errors.New("Failed to read or parse CSV file.")
	ErrNotParsed      = errors.New("CSV file has not been parsed.")
	ErrNoValidRecords = errors.New("No valid records to import.")
	ErrMissingColumns = errors.New("missing required CSV columns")
)

type Record struct {
	Title       string       `json:"title"`
	Subject     task.Subject `json:"subject"`
	Duration    string       `json:"duration"`
	StudentName string       `json:"studentName"`
	StudentID   string       `json:"studentId,omitempty"`
	DueDate     *string      `json:"dueDate"`
	Line        int          `json:"line"`
	IsValid     bool         `json:"isValid"`
}

type Result struct {
	Records []Record `json:"records"`
	Errors  []string `json:"errors"`
}

// Valid возвращает только валидные записи в исходном порядке.
func (r Result) Valid() []Record {
	res := make([]Record, 0, len(r.Records))
	for _, rec := range r.Records {
		if rec.IsValid {
			res = append(res, rec)
		}
	}
	return res
}

type MissingColumnsError struct {
	Columns []string
}

func (e *MissingColumnsError) Error() string {
	return fmt.Sprintf("Missing required CSV columns: %s. Please use lowercase column names.", strings.Join(e.Columns, ", "))
}

func (e *MissingColumnsError) Unwrap() error {
	return ErrMissingColumns
}

// Parse разбирает text по списку учеников. Ошибка заголовка даёт ноль записей
// и одно сообщение; ошибки строк попадают в Result.Errors.
func Parse(text string, students []student.Student) (Result, error) {
	lines := splitLines(text)
	if len(lines) == 0 {
		return Result{Records: []Record{}, Errors: []string{ErrEmptyInput.Error()}}, ErrEmptyInput
	}

	header := splitFields(lines[0])
	if missing := missingColumns(header); len(missing) > 0 {
		err := &MissingColumnsError{Columns: missing}
		return Result{Records: []Record{}, Errors: []string{err.Error()}}, err
	}

	index := studentIndex(students)

	records := make([]Record, 0, len(lines)-1)
	for i, line := range lines[1:] {
		values := splitFields(line)
		row := make(map[string]string, len(header))
		for col, name := range header {
			if col < len(values) {
				row[name] = values[col]
			}
		}
		records = append(records, toRecord(row, i, index))
	}

	errs := make([]string, 0)
	for _, rec := range records {
		if !rec.IsValid {
			errs = append(errs, fmt.Sprintf("Line %d: Cannot find student '%s'. Record skipped.", rec.Line, rec.StudentName))
		}
	}

	return Result{Records: records, Errors: errs}, nil
}

func toRecord(row map[string]string, position int, index map[string]string) Record {
	title := row[ColumnTitle]
	if title == "" {
		title = fmt.Sprintf("Task %d", position+1)
	}
	subject := task.Subject(row[ColumnSubject])
	if subject == "" {
		subject = task.SubjectUncategorized
	}
	duration := row[ColumnDuration]
	if duration == "" {
		duration = task.DefaultDuration
	}

	name := row[ColumnStudentName]
	studentID := index[strings.ToLower(name)]

	return Record{
		Title:       title,
		Subject:     subject,
		Duration:    duration,
		StudentName: name,
		StudentID:   studentID,
		DueDate:     task.DatePtr(row[ColumnDueDate]),
		Line:        position + 2,
		IsValid:     studentID != "" && title != "",
	}
}

// Commit передаёт валидные записи в persist. Сам импорт в хранилище не ходит.
// result без записей значит, что Parse не вызывался: ErrNotParsed.
func Commit(ctx context.Context, result *Result, persist func(context.Context, []Record) error) (int, error) {
	if result == nil || result.Records == nil {
		return 0, ErrNotParsed
	}

	valid := result.Valid()
	if len(valid) == 0 {
		return 0, ErrNoValidRecords
	}

	if err := persist(ctx, valid); err != nil {
		return 0, err
	}
	return len(valid), nil
}

func splitLines(text string) []string {
	res := make([]string, 0)
	for _, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		res = append(res, line)
	}
	return res
}

func splitFields(line string) []string {
	fields := strings.Split(line, Delimiter)
	for i := range fields {
		fields[i] = strings.TrimSpace(fields[i])
	}
	return fields
}

func missingColumns(header []string) []string {
	present := make(map[string]bool, len(header))
	for _, h := range header {
		present[h] = true
	}

	missing := make([]string, 0)
	for _, req := range RequiredColumns {
		if !present[req] {
			missing = append(missing, req)
		}
	}
	return missing
}

// studentIndex: имя в нижнем регистре -> id. При совпадении имён побеждает последний.
func studentIndex(students []student.Student) map[string]string {
	index := make(map[string]string, len(students))
	for _, s := range students {
		index[strings.ToLower(s.DisplayName)] = s.ID
	}
	return index
}

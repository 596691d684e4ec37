package task

import "strings"

type TaskOption func(*Task)

// Apply пропускает nil-опции: конструкторы возвращают nil для пустых значений.
func (t *Task) Apply(options ...TaskOption) {
	for _, opt := range options {
		if opt != nil {
			opt(t)
		}
	}
}

func WithTitle(title string) TaskOption {
	if strings.TrimSpace(title) == "" {
		return nil
	}
	return func(task *Task) {
		task.Title = title
	}
}

func WithSubject(subject Subject) TaskOption {
	if subject == "" {
		return nil
	}
	return func(task *Task) {
		task.Subject = subject
	}
}

func WithType(taskType Type) TaskOption {
	if !taskType.Valid() {
		return nil
	}
	return func(task *Task) {
		task.Type = taskType
	}
}

func WithDuration(duration string) TaskOption {
	if duration == "" {
		return nil
	}
	return func(task *Task) {
		task.Duration = duration
	}
}

func WithStudent(studentID string) TaskOption {
	if studentID == "" {
		return nil
	}
	return func(task *Task) {
		task.StudentID = studentID
	}
}

// WithDueDate: пустая строка снимает дату
func WithDueDate(dueDate *string) TaskOption {
	if dueDate == nil {
		return nil
	}
	return func(task *Task) {
		task.DueDate = DatePtr(*dueDate)
	}
}

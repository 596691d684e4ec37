package dto

type StudentRequest struct {
	DisplayName string `json:"display_name" validate:"required,max=80"`
	Age         *int   `json:"age,omitempty" validate:"omitempty,min=0,max=120"`
	Color       string `json:"color,omitempty" validate:"omitempty,oneof=green yellow pink blue orange"`
}

type RhythmRequest struct {
	Name  string `json:"name" validate:"required,max=80"`
	Icon  string `json:"icon,omitempty" validate:"omitempty,oneof=Coffee Leaf Sun BookOpen Users Sparkles Zap Brain"`
	Color string `json:"color,omitempty" validate:"omitempty,oneof=green yellow pink blue orange"`
}

type CreateTaskRequest struct {
	Title     string  `json:"title" validate:"required,max=200"`
	Subject   string  `json:"subject,omitempty" validate:"max=80"`
	Type      string  `json:"type,omitempty" validate:"omitempty,oneof=Lesson Chore"`
	Duration  string  `json:"duration,omitempty" validate:"max=20"`
	StudentID string  `json:"studentId" validate:"required"`
	DueDate   *string `json:"dueDate,omitempty" validate:"omitempty,datetime=2006-01-02"`
}

// UpdateTaskRequest: отсутствующее поле не меняется, пустой dueDate снимает дату
type UpdateTaskRequest struct {
	Title     *string `json:"title,omitempty" validate:"omitempty,min=1,max=200"`
	Subject   *string `json:"subject,omitempty" validate:"omitempty,max=80"`
	Type      *string `json:"type,omitempty" validate:"omitempty,oneof=Lesson Chore"`
	Duration  *string `json:"duration,omitempty" validate:"omitempty,max=20"`
	StudentID *string `json:"studentId,omitempty"`
	DueDate   *string `json:"dueDate,omitempty" validate:"omitempty,datetime=2006-01-02"`
}

type CountResponse struct {
	Count int `json:"count"`
}

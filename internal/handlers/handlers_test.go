package handlers_test

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"kairos/internal/auth"
	"kairos/internal/handlers"
	"kairos/internal/logger"
	"kairos/internal/middleware"
	"kairos/internal/models/student"
	"kairos/internal/models/task"
	"kairos/internal/repository/inmemory"
	"kairos/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const acc = "local"

var fixedNow = time.Date(2024, time.March, 15, 10, 0, 0, 0, time.Local)

var _ handlers.Service = (*service.PlannerService)(nil)

func TestMain(m *testing.M) {
	logger.Init(true)
	m.Run()
}

// MockSummarizer - мок клиента отчётов
type MockSummarizer struct {
	mock.Mock
}

func (m *MockSummarizer) Summarize(ctx context.Context, st student.Student, completed []task.Task) string {
	args := m.Called(ctx, st, completed)
	return args.String(0)
}

// downStore отвечает на health check ошибкой
type downStore struct {
	*inmemory.Storage
}

func (downStore) HealthCheck(context.Context) error { return errors.New("connection refused") }

type env struct {
	router  http.Handler
	store   *inmemory.Storage
	summary *MockSummarizer
}

func newEnv(t *testing.T, verifier auth.Verifier) *env {
	t.Helper()
	store := inmemory.NewStorage()
	summary := &MockSummarizer{}
	svc := service.NewPlannerService(store, summary, service.WithClock(func() time.Time { return fixedNow }))

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	handlers.NewHandler(svc).Routes(r, middleware.Authenticate(verifier), middleware.Timeout(5*time.Second))
	return &env{router: r, store: store, summary: summary}
}

func (e *env) do(t *testing.T, method, target, contentType, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func (e *env) json(t *testing.T, method, target, body string) *httptest.ResponseRecorder {
	return e.do(t, method, target, "application/json", body)
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func (e *env) addStudent(t *testing.T, name string) student.Student {
	t.Helper()
	w := e.json(t, "POST", "/students", `{"display_name":"`+name+`","color":"blue"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return decode[student.Student](t, w)
}

func (e *env) addTask(t *testing.T, studentID, title string) task.Task {
	t.Helper()
	w := e.json(t, "POST", "/tasks", `{"title":"`+title+`","subject":"Math","studentId":"`+studentID+`"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return decode[task.Task](t, w)
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	return decode[map[string]any](t, w)["error"].(string)
}

func TestHandler_HealthCheck(t *testing.T) {
	e := newEnv(t, auth.Static(acc))
	w := e.do(t, "GET", "/health", "", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "kairos")

	svc := service.NewPlannerService(downStore{inmemory.NewStorage()}, &MockSummarizer{})
	r := chi.NewRouter()
	handlers.NewHandler(svc).Routes(r, middleware.Authenticate(auth.Static(acc)), middleware.Timeout(time.Second))
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestHandler_RequiresToken(t *testing.T) {
	v, err := auth.NewJWTVerifier("secret", "")
	require.NoError(t, err)
	e := newEnv(t, v)

	// health открыт
	assert.Equal(t, http.StatusOK, e.do(t, "GET", "/health", "", "").Code)
	assert.Equal(t, http.StatusUnauthorized, e.do(t, "GET", "/students", "", "").Code)

	token, err := v.Issue("acc-9", time.Hour)
	require.NoError(t, err)
	req := httptest.NewRequest("GET", "/students", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestHandler_CreateStudent(t *testing.T) {
	tests := []struct {
		name           string
		body           string
		contentType    string
		expectedStatus int
		expectedError  string
	}{
		{
			name:           "success",
			body:           `{"display_name":"Emma","age":9,"color":"pink"}`,
			contentType:    "application/json",
			expectedStatus: http.StatusCreated,
		},
		{
			name:           "error - invalid content type",
			body:           `{}`,
			contentType:    "text/plain",
			expectedStatus: http.StatusUnsupportedMediaType,
			expectedError:  "UNSUPPORTED_MEDIA_TYPE",
		},
		{
			name:           "error - invalid JSON",
			body:           `{invalid json}`,
			contentType:    "application/json",
			expectedStatus: http.StatusBadRequest,
			expectedError:  "INVALID_BODY",
		},
		{
			name:           "error - unknown field",
			body:           `{"display_name":"Emma","grade":3}`,
			contentType:    "application/json",
			expectedStatus: http.StatusBadRequest,
			expectedError:  "INVALID_BODY",
		},
		{
			name:           "error - missing name",
			body:           `{"color":"pink"}`,
			contentType:    "application/json",
			expectedStatus: http.StatusBadRequest,
			expectedError:  "VALIDATION_ERROR",
		},
		{
			name:           "error - unknown color",
			body:           `{"display_name":"Emma","color":"sage"}`,
			contentType:    "application/json",
			expectedStatus: http.StatusBadRequest,
			expectedError:  "VALIDATION_ERROR",
		},
		{
			name:           "error - markup only name",
			body:           `{"display_name":"<script></script>"}`,
			contentType:    "application/json",
			expectedStatus: http.StatusBadRequest,
			expectedError:  "VALIDATION_ERROR",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEnv(t, auth.Static(acc))
			w := e.do(t, "POST", "/students", tt.contentType, tt.body)

			assert.Equal(t, tt.expectedStatus, w.Code, w.Body.String())
			if tt.expectedError != "" {
				assert.Equal(t, tt.expectedError, errorCode(t, w))
			}
		})
	}
}

func TestHandler_ValidationDetailsUseJSONNames(t *testing.T) {
	e := newEnv(t, auth.Static(acc))
	w := e.json(t, "POST", "/tasks", `{"title":"x","dueDate":"15/03/2024"}`)

	require.Equal(t, http.StatusBadRequest, w.Code)
	details := decode[map[string]any](t, w)["details"].(map[string]any)
	assert.Equal(t, "required", details["studentId"])
	assert.Equal(t, "datetime", details["dueDate"])
}

func TestHandler_DestructiveNeedsConfirm(t *testing.T) {
	e := newEnv(t, auth.Static(acc))
	st := e.addStudent(t, "Emma")
	tk := e.addTask(t, st.ID, "Fractions")

	for _, target := range []string{
		"/students/" + st.ID,
		"/students/" + st.ID + "/with-tasks",
		"/tasks/" + tk.ID,
	} {
		w := e.do(t, "DELETE", target, "", "")
		assert.Equal(t, http.StatusPreconditionRequired, w.Code, target)
		assert.Equal(t, "CONFIRMATION_REQUIRED", errorCode(t, w))
	}
	assert.Equal(t, http.StatusPreconditionRequired, e.do(t, "POST", "/students/"+st.ID+"/sick-day", "", "").Code)

	// ничего не удалено
	assert.Equal(t, http.StatusOK, e.do(t, "GET", "/students/"+st.ID, "", "").Code)
	assert.Equal(t, http.StatusOK, e.do(t, "GET", "/tasks/"+tk.ID, "", "").Code)

	w := e.do(t, "DELETE", "/students/"+st.ID+"/with-tasks?confirm=true", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, int(decode[map[string]any](t, w)["count"].(float64)))
	assert.Equal(t, http.StatusNotFound, e.do(t, "GET", "/tasks/"+tk.ID, "", "").Code)
}

func TestHandler_TaskLifecycle(t *testing.T) {
	e := newEnv(t, auth.Static(acc))
	st := e.addStudent(t, "Emma")

	w := e.json(t, "POST", "/tasks", `{"title":"<b>Fractions</b> & decimals","studentId":"`+st.ID+`","dueDate":"2024-03-20"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	tk := decode[task.Task](t, w)
	assert.Equal(t, "Fractions & decimals", tk.Title)
	assert.Equal(t, task.StatusBank, tk.Status)
	assert.Equal(t, task.SubjectUncategorized, tk.Subject)

	// из банка переключать нельзя
	w = e.do(t, "POST", "/tasks/"+tk.ID+"/toggle", "", "")
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, service.CodeInvalidTransition, errorCode(t, w))

	w = e.do(t, "POST", "/tasks/"+tk.ID+"/today", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	tk = decode[task.Task](t, w)
	assert.Equal(t, task.StatusToday, tk.Status)
	assert.Nil(t, tk.DueDate)

	w = e.do(t, "POST", "/tasks/"+tk.ID+"/toggle", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	tk = decode[task.Task](t, w)
	assert.Equal(t, task.StatusCompleted, tk.Status)
	require.NotNil(t, tk.CompletedAt)

	w = e.json(t, "PUT", "/tasks/"+tk.ID, `{"title":"Long division","duration":"45","dueDate":"2024-04-01"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	tk = decode[task.Task](t, w)
	assert.Equal(t, "Long division", tk.Title)
	assert.Equal(t, "45", tk.Duration)
	require.NotNil(t, tk.DueDate)
	assert.Equal(t, "2024-04-01", *tk.DueDate)

	w = e.json(t, "PUT", "/tasks/"+tk.ID, `{"dueDate":""}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Nil(t, decode[task.Task](t, w).DueDate)

	w = e.do(t, "GET", "/tasks?status=completed&student="+st.ID, "", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]task.Task](t, w), 1)

	assert.Equal(t, http.StatusBadRequest, e.do(t, "GET", "/tasks?status=done", "", "").Code)
	assert.Equal(t, http.StatusNoContent, e.do(t, "DELETE", "/tasks/"+tk.ID+"?confirm=true", "", "").Code)
	assert.Equal(t, http.StatusNotFound, e.do(t, "POST", "/tasks/"+tk.ID+"/toggle", "", "").Code)
}

func TestHandler_CreateTaskUnknownStudent(t *testing.T) {
	e := newEnv(t, auth.Static(acc))
	w := e.json(t, "POST", "/tasks", `{"title":"Fractions","studentId":"ghost"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, service.CodeValidation, errorCode(t, w))
}

func TestHandler_SickDay(t *testing.T) {
	e := newEnv(t, auth.Static(acc))
	st := e.addStudent(t, "Emma")
	for _, title := range []string{"a", "b"} {
		tk := e.addTask(t, st.ID, title)
		require.Equal(t, http.StatusOK, e.do(t, "POST", "/tasks/"+tk.ID+"/today", "", "").Code)
	}

	w := e.do(t, "POST", "/students/"+st.ID+"/sick-day?confirm=true", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 2, int(decode[map[string]any](t, w)["count"].(float64)))

	w = e.do(t, "GET", "/tasks?status=bank", "", "")
	assert.Len(t, decode[[]task.Task](t, w), 2)
}

func TestHandler_Rhythms(t *testing.T) {
	e := newEnv(t, auth.Static(acc))

	w := e.json(t, "POST", "/rhythms", `{"name":"Morning Basket","icon":"Coffee","color":"yellow"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	id := decode[map[string]any](t, w)["id"].(string)

	assert.Equal(t, http.StatusBadRequest, e.json(t, "POST", "/rhythms", `{"name":"x","icon":"Rocket"}`).Code)
	assert.Equal(t, http.StatusOK, e.json(t, "PUT", "/rhythms/"+id, `{"name":"Afternoon"}`).Code)
	assert.Equal(t, http.StatusNotFound, e.json(t, "PUT", "/rhythms/missing", `{"name":"Afternoon"}`).Code)
	assert.Equal(t, http.StatusPreconditionRequired, e.do(t, "DELETE", "/rhythms/"+id, "", "").Code)
	assert.Equal(t, http.StatusNoContent, e.do(t, "DELETE", "/rhythms/"+id+"?confirm=true", "", "").Code)

	w = e.do(t, "GET", "/rhythms", "", "")
	assert.Empty(t, decode[[]map[string]any](t, w))
}

func TestHandler_Import(t *testing.T) {
	e := newEnv(t, auth.Static(acc))
	e.addStudent(t, "Emma")
	csv := "title,subject,duration,studentName,dueDate\n" +
		"Fractions,Math,30,emma,2024-03-20\n" +
		"Poems,Poetry,15,Nobody,\n"

	w := e.do(t, "POST", "/import/preview", "text/csv", csv)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	preview := decode[map[string]any](t, w)
	assert.Len(t, preview["records"], 2)
	assert.Len(t, preview["errors"], 1)

	// предпросмотр ничего не пишет
	assert.Empty(t, decode[[]task.Task](t, e.do(t, "GET", "/tasks", "", "")))

	w = e.do(t, "POST", "/import", "text/csv; charset=utf-8", csv)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, 1, int(decode[map[string]any](t, w)["imported"].(float64)))

	w = e.do(t, "POST", "/import", "text/csv", "name,subject\nx,y\n")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, service.CodeImportInvalidHeader, errorCode(t, w))

	w = e.do(t, "POST", "/import", "text/csv", "title,subject,duration,studentName\nx,y,1,Nobody\n")
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, service.CodeNoValidRecords, errorCode(t, w))

	assert.Equal(t, http.StatusUnsupportedMediaType, e.json(t, "POST", "/import", `{}`).Code)
}

func TestHandler_Seed(t *testing.T) {
	e := newEnv(t, auth.Static(acc))

	w := e.do(t, "POST", "/seed", "", "")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	report := decode[service.SeedReport](t, w)
	assert.Equal(t, 3, report.Students)
	assert.Positive(t, report.Tasks)

	w = e.do(t, "POST", "/seed", "", "")
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, service.CodeAlreadySeeded, errorCode(t, w))
}

func TestHandler_DashboardAndCalendar(t *testing.T) {
	e := newEnv(t, auth.Static(acc))
	st := e.addStudent(t, "Emma")
	tk := e.addTask(t, st.ID, "Fractions")
	e.do(t, "POST", "/tasks/"+tk.ID+"/today", "", "")
	e.addTask(t, st.ID, "Reading")

	w := e.do(t, "GET", "/students/"+st.ID+"/dashboard", "", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	view := decode[map[string]any](t, w)
	assert.Len(t, view["today"], 1)
	assert.Len(t, view["bank"], 1)
	assert.Equal(t, float64(0), view["completion"])

	w = e.do(t, "GET", "/students/"+st.ID+"/calendar?year=2024&month=2", "", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Len(t, decode[map[string]any](t, w)["days"], 29)

	tests := []struct {
		name   string
		target string
		status int
	}{
		{name: "month without year", target: "/students/" + st.ID + "/dashboard?month=3", status: http.StatusBadRequest},
		{name: "month out of range", target: "/students/" + st.ID + "/dashboard?year=2024&month=13", status: http.StatusBadRequest},
		{name: "bad date", target: "/students/" + st.ID + "/dashboard?date=2024/03/01", status: http.StatusBadRequest},
		{name: "unknown student", target: "/students/ghost/dashboard", status: http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.status, e.do(t, "GET", tt.target, "", "").Code)
		})
	}
}

func TestHandler_ProgressAndReport(t *testing.T) {
	e := newEnv(t, auth.Static(acc))
	st := e.addStudent(t, "Emma")
	tk := e.addTask(t, st.ID, "Fractions")
	e.do(t, "POST", "/tasks/"+tk.ID+"/today", "", "")
	e.do(t, "POST", "/tasks/"+tk.ID+"/toggle", "", "")

	w := e.do(t, "GET", "/students/"+st.ID+"/progress", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	progress := decode[service.Progress](t, w)
	assert.Equal(t, 100, progress.Completion)

	e.summary.On("Summarize", mock.Anything, mock.MatchedBy(func(s student.Student) bool { return s.ID == st.ID }), mock.Anything).
		Return("Emma loves numbers.")

	w = e.do(t, "POST", "/students/"+st.ID+"/report", "", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	report := decode[service.Report](t, w)
	assert.Equal(t, "Emma loves numbers.", report.Summary)
	assert.Len(t, report.Completed, 1)
	e.summary.AssertExpectations(t)
}

func TestHandler_Events(t *testing.T) {
	e := newEnv(t, auth.Static(acc))
	st := e.addStudent(t, "Emma")

	srv := httptest.NewServer(e.router)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, "GET", srv.URL+"/events?student="+st.ID, nil)
	require.NoError(t, err)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/event-stream")

	seen := map[string]bool{}
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() && !(seen["snapshot"] && seen["view"]) {
		line := scanner.Text()
		if name, ok := strings.CutPrefix(line, "event:"); ok {
			seen[strings.TrimSpace(name)] = true
		}
	}
	assert.True(t, seen["snapshot"])
	assert.True(t, seen["view"])
}

// Package summary пишет короткий повествовательный отчёт об успехах ученика
// через Gemini generateContent. Любая ошибка превращается в запасной текст.
package summary

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"kairos/internal/logger"
	"kairos/internal/models/student"
	"kairos/internal/models/task"

	"github.com/microcosm-cc/bluemonday"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

const (
	NoTasks     = "No tasks completed yet."
	NoSummary   = "Could not generate summary."
	Unavailable = "AI service temporarily unavailable."
)

const DefaultEndpoint = "https://generativelanguage.googleapis.com/v1beta"
const DefaultModel = "gemini-2.5-flash-preview-09-2025"

type Config struct {
	APIKey   string
	Model    string
	Endpoint string
	Timeout  time.Duration
}

type Client struct {
	cfg    Config
	http   *http.Client
	policy *bluemonday.Policy
}

func New(cfg Config) *Client {
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = time.Second * 20
	}
	return &Client{
		cfg: cfg,
		http: &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
			Timeout:   cfg.Timeout,
		},
		policy: bluemonday.StrictPolicy(),
	}
}

// Prompt собирает запрос к модели по имени ученика и названиям выполненных задач
func Prompt(studentName string, completed []task.Task) string {
	titles := make([]string, 0, len(completed))
	for _, t := range completed {
		titles = append(titles, t.Title)
	}
	return fmt.Sprintf(`Act as a warm and observant homeschool educator.
Write a 2-sentence narrative progress summary for a student named %s.
They have completed the following books and tasks: %s.
Focus on: curiosity, habit formation, and engagement with learning.
Tone: Gentle, encouraging, and thoughtful.`, studentName, strings.Join(titles, ", "))
}

type part struct {
	Text string `json:"text"`
}

type content struct {
	Parts []part `json:"parts"`
}

type generateRequest struct {
	Contents []content `json:"contents"`
}

type generateResponse struct {
	Candidates []struct {
		Content content `json:"content"`
	} `json:"candidates"`
}

func (c *Client) Summarize(ctx context.Context, st student.Student, completed []task.Task) string {
	if len(completed) == 0 {
		return NoTasks
	}
	if c.cfg.APIKey == "" {
		logger.Warn("Summary: Ключ API не задан")
		return Unavailable
	}

	text, err := c.generate(ctx, Prompt(st.DisplayName, completed))
	if err != nil {
		logger.Error("Summary: Ошибка обращения к модели", err, zap.String("student_id", st.ID))
		return Unavailable
	}

	// bluemonday экранирует сущности, а отчёт уходит как обычный текст
	text = strings.TrimSpace(html.UnescapeString(c.policy.Sanitize(text)))
	if text == "" {
		return NoSummary
	}
	return text
}

// generate возвращает текст первого кандидата или пустую строку
func (c *Client) generate(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(generateRequest{Contents: []content{{Parts: []part{{Text: prompt}}}}})
	if err != nil {
		return "", fmt.Errorf("сериализация запроса: %w", err)
	}

	endpoint := fmt.Sprintf("%s/models/%s:generateContent?%s",
		strings.TrimRight(c.cfg.Endpoint, "/"),
		url.PathEscape(c.cfg.Model),
		url.Values{"key": {c.cfg.APIKey}}.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("создание запроса: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("запрос к модели: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError {
		return "", fmt.Errorf("модель ответила %d", resp.StatusCode)
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("чтение ответа: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		logger.Warn("Summary: Модель отклонила запрос", zap.Int("status", resp.StatusCode))
		return "", nil
	}

	var parsed generateResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		logger.Warn("Summary: Некорректный ответ модели", zap.Error(err))
		return "", nil
	}
	logger.Info("Summary: Отчёт получен", zap.Duration("ms", time.Since(start)))

	if len(parsed.Candidates) == 0 || len(parsed.Candidates[0].Content.Parts) == 0 {
		return "", nil
	}
	return parsed.Candidates[0].Content.Parts[0].Text, nil
}

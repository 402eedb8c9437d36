// Package interpreter реализует клиент внешнего сервиса интерпретации:
// по структурированному нумерологическому профилю сервис возвращает
// связный текст для отчёта или прогноза.
package interpreter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Request представляет запрос на интерпретацию профиля.
type Request struct {
	ReportType string `json:"report_type"` // full, compatibility, weekly
	Profile    any    `json:"profile"`
	Lang       string `json:"lang"`
}

// Response представляет ответ сервиса интерпретации.
type Response struct {
	Text map[string]string `json:"text"` // секции отчёта по ключам
}

type Client struct {
	url        string
	httpClient *http.Client
}

// NewClient создаёт клиент сервиса интерпретации.
func NewClient(url string, timeout time.Duration) *Client {
	return &Client{
		url:        url,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Interpret отправляет профиль на интерпретацию и возвращает текст.
func (c *Client) Interpret(ctx context.Context, req Request) (*Response, error) {
	const op = "interpreter.Interpret"

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s: unexpected status: %s", op, resp.Status)
	}

	var result Response
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &result, nil
}

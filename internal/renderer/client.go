// Package renderer реализует клиент сервиса рендеринга документов:
// из профиля и текста интерпретации сервис собирает PDF и возвращает
// ссылку на готовый файл.
package renderer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Request представляет запрос на рендеринг отчёта.
type Request struct {
	FIO        string            `json:"fio"`
	ReportType string            `json:"report_type"`
	Profile    any               `json:"profile"`
	Text       map[string]string `json:"text"`
	Lang       string            `json:"lang"`
}

// Response представляет ответ сервиса рендеринга.
type Response struct {
	PDFURL string `json:"pdf_url"`
}

type Client struct {
	url        string
	httpClient *http.Client
}

// NewClient создаёт клиент сервиса рендеринга.
func NewClient(url string, timeout time.Duration) *Client {
	return &Client{
		url:        url,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Render отправляет данные отчёта на рендеринг и возвращает ссылку на PDF.
func (c *Client) Render(ctx context.Context, req Request) (string, error) {
	const op = "renderer.Render"

	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%s: unexpected status: %s", op, resp.Status)
	}

	var result Response
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return result.PDFURL, nil
}

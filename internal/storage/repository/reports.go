package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/magabrotheeeer/numerology-bot/internal/models"
)

// CreateReport сохраняет сгенерированный отчёт и возвращает его ID.
func (s *Storage) CreateReport(ctx context.Context, report models.Report) (int64, error) {
	const op = "storage.CreateReport"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `INSERT INTO reports (user_id, report_type, core_json)
			  VALUES ($1, $2, $3)
			  RETURNING id`
	var newID int64
	err := s.DB.QueryRowContext(ctx, query,
		report.UserID, report.ReportType, report.CoreJSON).Scan(&newID)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return newID, nil
}

// UpdateReportPDF записывает ссылку на отрендеренный документ.
func (s *Storage) UpdateReportPDF(ctx context.Context, reportID int64, pdfURL string) error {
	const op = "storage.UpdateReportPDF"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE reports SET pdf_url = $2 WHERE id = $1`
	result, err := s.DB.ExecContext(ctx, query, reportID, pdfURL)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("%s: report %d not found", op, reportID)
	}
	return nil
}

// GetLatestUserReport возвращает последний отчёт пользователя указанного
// типа с готовым PDF.
func (s *Storage) GetLatestUserReport(ctx context.Context, userID int64, reportType string) (*models.Report, error) {
	const op = "storage.GetLatestUserReport"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT id, user_id, report_type, core_json, pdf_url, created_at
			  FROM reports
			  WHERE user_id = $1 AND report_type = $2 AND pdf_url IS NOT NULL
			  ORDER BY created_at DESC
			  LIMIT 1`
	var r models.Report
	var pdfURL sql.NullString
	err := s.DB.QueryRowContext(ctx, query, userID, reportType).Scan(
		&r.ID, &r.UserID, &r.ReportType, &r.CoreJSON, &pdfURL, &r.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, models.ErrReportNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if pdfURL.Valid {
		r.PDFURL = &pdfURL.String
	}
	return &r, nil
}

// CountReportsByUser возвращает число отчётов пользователя указанного типа.
func (s *Storage) CountReportsByUser(ctx context.Context, userID int64, reportType string) (int, error) {
	const op = "storage.CountReportsByUser"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT count(*) FROM reports WHERE user_id = $1 AND report_type = $2`
	var count int
	if err := s.DB.QueryRowContext(ctx, query, userID, reportType).Scan(&count); err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return count, nil
}

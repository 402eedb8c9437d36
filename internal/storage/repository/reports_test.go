package repository

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/numerology-bot/internal/models"
)

func TestStorage_GetLatestUserReport(t *testing.T) {
	storage, cleanup := setupTestDatabase(t)
	defer cleanup()
	factory := NewTestDataFactory(storage)

	ctx := context.Background()
	userID := factory.CreateUser(t, 100)

	_, err := storage.GetLatestUserReport(ctx, userID, models.ReportTypeFull)
	require.ErrorIs(t, err, models.ErrReportNotFound)

	// Отчёт без pdf_url считается незавершённым и не возвращается
	unfinishedID, err := storage.CreateReport(ctx, models.Report{
		UserID:     userID,
		ReportType: models.ReportTypeFull,
		CoreJSON:   json.RawMessage(`{"life_path":7}`),
	})
	require.NoError(t, err)

	_, err = storage.GetLatestUserReport(ctx, userID, models.ReportTypeFull)
	require.ErrorIs(t, err, models.ErrReportNotFound)

	err = storage.UpdateReportPDF(ctx, unfinishedID, "https://files.example/first.pdf")
	require.NoError(t, err)

	secondID, err := storage.CreateReport(ctx, models.Report{
		UserID:     userID,
		ReportType: models.ReportTypeFull,
		CoreJSON:   json.RawMessage(`{"life_path":7}`),
	})
	require.NoError(t, err)
	_, err = storage.DB.Exec(`UPDATE reports SET created_at = now() + interval '1 minute' WHERE id = $1`, secondID)
	require.NoError(t, err)
	err = storage.UpdateReportPDF(ctx, secondID, "https://files.example/second.pdf")
	require.NoError(t, err)

	got, err := storage.GetLatestUserReport(ctx, userID, models.ReportTypeFull)
	require.NoError(t, err)
	assert.Equal(t, secondID, got.ID)
	require.NotNil(t, got.PDFURL)
	assert.Equal(t, "https://files.example/second.pdf", *got.PDFURL)

	// Тип отчёта фильтруется
	_, err = storage.GetLatestUserReport(ctx, userID, models.ReportTypeCompatibility)
	require.ErrorIs(t, err, models.ErrReportNotFound)
}

func TestStorage_CountReportsByUser(t *testing.T) {
	storage, cleanup := setupTestDatabase(t)
	defer cleanup()
	factory := NewTestDataFactory(storage)

	ctx := context.Background()
	userID := factory.CreateUser(t, 100)
	otherID := factory.CreateUser(t, 200)

	count, err := storage.CountReportsByUser(ctx, userID, models.ReportTypeFull)
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	for range 2 {
		_, err = storage.CreateReport(ctx, models.Report{
			UserID:     userID,
			ReportType: models.ReportTypeFull,
			CoreJSON:   json.RawMessage(`{}`),
		})
		require.NoError(t, err)
	}
	_, err = storage.CreateReport(ctx, models.Report{
		UserID:     otherID,
		ReportType: models.ReportTypeFull,
		CoreJSON:   json.RawMessage(`{}`),
	})
	require.NoError(t, err)

	count, err = storage.CountReportsByUser(ctx, userID, models.ReportTypeFull)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	count, err = storage.CountReportsByUser(ctx, userID, models.ReportTypeCompatibility)
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

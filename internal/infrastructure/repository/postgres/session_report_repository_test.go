package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/ayurmitra/ayurmitra/internal/core/domain"
)

func newReportRepoWithMock(t *testing.T) (*SessionReportRepository, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	return &SessionReportRepository{db: db}, mock, func() { _ = db.Close() }
}

func TestSaveReportInsertsAllColumns(t *testing.T) {
	repo, mock, done := newReportRepoWithMock(t)
	defer done()

	started := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	ended := started.Add(6 * time.Minute)
	report := &domain.SessionReport{
		ID:             "rep-1",
		SessionID:      "sess-1",
		StartedAt:      started,
		EndedAt:        ended,
		Turns:          7,
		GatheringTurns: 4,
		Outcome:        domain.OutcomeDiagnosed,
		FinalDiagnosis: "Amavata",
		Confidence:     0.72,
		Uncertainty:    domain.UncertaintyModerate,
		SafetyAlerts:   0,
		Profile:        domain.PatientProfile{Age: 52, Gender: "female"},
	}

	mock.ExpectExec("INSERT INTO session_reports").
		WithArgs(
			"rep-1", "sess-1", started, ended, 7, 4, string(domain.OutcomeDiagnosed),
			"Amavata", 0.72, string(domain.UncertaintyModerate),
			sqlmock.AnyArg(), 0, "", sqlmock.AnyArg(),
		).
		WillReturnResult(sqlmock.NewResult(1, 1))

	if err := repo.SaveReport(context.Background(), report); err != nil {
		t.Fatalf("SaveReport() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestSaveReportEscalatedCarriesReasonAndFlags(t *testing.T) {
	repo, mock, done := newReportRepoWithMock(t)
	defer done()

	started := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	report := &domain.SessionReport{
		ID:               "rep-2",
		SessionID:        "sess-2",
		StartedAt:        started,
		EndedAt:          started.Add(time.Minute),
		Turns:            2,
		GatheringTurns:   2,
		Outcome:          domain.OutcomeEscalated,
		RedFlags:         []string{"crushing chest pain"},
		SafetyAlerts:     1,
		EscalationReason: "matched risk concepts: cardiac_chest_pain",
	}

	mock.ExpectExec("INSERT INTO session_reports").
		WithArgs(
			"rep-2", "sess-2", started, report.EndedAt, 2, 2, string(domain.OutcomeEscalated),
			"", 0.0, "",
			sqlmock.AnyArg(), 1, "matched risk concepts: cardiac_chest_pain", sqlmock.AnyArg(),
		).
		WillReturnResult(sqlmock.NewResult(1, 1))

	if err := repo.SaveReport(context.Background(), report); err != nil {
		t.Fatalf("SaveReport() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestSaveReportPropagatesInsertError(t *testing.T) {
	repo, mock, done := newReportRepoWithMock(t)
	defer done()

	mock.ExpectExec("INSERT INTO session_reports").
		WillReturnError(errors.New("connection refused"))

	err := repo.SaveReport(context.Background(), &domain.SessionReport{ID: "rep-3"})
	if err == nil {
		t.Fatalf("expected error")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

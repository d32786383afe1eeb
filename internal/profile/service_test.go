package profile

import (
	"context"
	"testing"
	"time"

	"backend-birdtours/internal/shared/apperr"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v3"
)

var profileCols = []string{"id", "email", "full_name", "phone", "experience_level", "dietary_requirements",
	"emergency_contact_name", "emergency_contact_phone", "travel_notes", "created_at", "updated_at"}

func newMock(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("mock pool: %v", err)
	}
	t.Cleanup(mock.Close)
	return mock
}

func profileRows(id, name, level string) *pgxmock.Rows {
	now := time.Now()
	return pgxmock.NewRows(profileCols).
		AddRow(id, "ada@example.com", name, "+44 1234", level, "vegetarian", "Grace", "+44 5678", "", now, now)
}

func TestGetAndUpdateProfile(t *testing.T) {
	mock := newMock(t)
	mock.ExpectQuery(`FROM user_profiles WHERE id`).
		WithArgs("user-1").
		WillReturnRows(profileRows("user-1", "Ada", "beginner"))

	level := ExperienceAdvanced
	name := " Ada Lovelace "
	mock.ExpectQuery(`UPDATE user_profiles`).
		WithArgs("user-1", "Ada Lovelace", "+44 1234", "advanced", "vegetarian", "Grace", "+44 5678", "").
		WillReturnRows(profileRows("user-1", "Ada Lovelace", "advanced"))

	p, err := NewService(mock, nil).Update(context.Background(), "user-1", ProfilePatch{FullName: &name, ExperienceLevel: &level})
	if err != nil {
		t.Fatalf("update profile: %v", err)
	}
	if p.FullName != "Ada Lovelace" || p.ExperienceLevel != ExperienceAdvanced {
		t.Fatalf("unexpected profile %+v", p)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestUpdateProfileRejectsUnknownLevel(t *testing.T) {
	mock := newMock(t)
	mock.ExpectQuery(`FROM user_profiles WHERE id`).
		WithArgs("user-1").
		WillReturnRows(profileRows("user-1", "Ada", "beginner"))

	level := ExperienceLevel("legendary")
	_, err := NewService(mock, nil).Update(context.Background(), "user-1", ProfilePatch{ExperienceLevel: &level})
	if !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestGetMissingProfile(t *testing.T) {
	mock := newMock(t)
	mock.ExpectQuery(`FROM user_profiles WHERE id`).
		WithArgs("ghost").
		WillReturnError(pgx.ErrNoRows)

	if _, err := NewService(mock, nil).Get(context.Background(), "ghost"); !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestDeleteProfile(t *testing.T) {
	mock := newMock(t)
	mock.ExpectExec(`DELETE FROM user_profiles`).
		WithArgs("user-1").
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectExec(`DELETE FROM user_profiles`).
		WithArgs("user-2").
		WillReturnResult(pgxmock.NewResult("DELETE", 0))

	svc := NewService(mock, nil)
	if err := svc.Delete(context.Background(), "user-1"); err != nil {
		t.Fatalf("delete profile: %v", err)
	}
	if err := svc.Delete(context.Background(), "user-2"); !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

package workflow

import (
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/photoproos/studio_backend/internal/testdb"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

func newMockMySQL(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = sqlDB.Close() })

	db, err := gorm.Open(mysql.New(mysql.Config{Conn: sqlDB, SkipInitializeWithVersion: true}), &gorm.Config{})
	if err != nil {
		t.Fatalf("gorm.Open: %v", err)
	}
	return db, mock
}

func TestRecurringRunnerLock_AcquireAndRelease(t *testing.T) {
	db, mock := newMockMySQL(t)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT GET_LOCK(?, ?)")).
		WithArgs("recurring-runner", 0).
		WillReturnRows(sqlmock.NewRows([]string{"ok"}).AddRow(1))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT RELEASE_LOCK(?)")).
		WithArgs("recurring-runner").
		WillReturnRows(sqlmock.NewRows([]string{"ok"}).AddRow(1))

	if err := AcquireRecurringRunnerLock(db, 0); err != nil {
		t.Fatalf("AcquireRecurringRunnerLock: %v", err)
	}
	ReleaseRecurringRunnerLock(db)

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestRecurringRunnerLock_HeldElsewhere(t *testing.T) {
	db, mock := newMockMySQL(t)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT GET_LOCK(?, ?)")).
		WithArgs("recurring-runner", 5).
		WillReturnRows(sqlmock.NewRows([]string{"ok"}).AddRow(0))

	if err := AcquireRecurringRunnerLock(db, 5); err != ErrRunnerLockNotAcquired {
		t.Fatalf("err = %v, want ErrRunnerLockNotAcquired", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestRecurringRunnerLock_NoopOutsideMySQL(t *testing.T) {
	db := testdb.Open(t)
	if err := AcquireRecurringRunnerLock(db, 0); err != nil {
		t.Fatalf("sqlite acquire: %v", err)
	}
	ReleaseRecurringRunnerLock(db)
}

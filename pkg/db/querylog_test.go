package db

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func openLogged(t *testing.T, slow time.Duration) (*gorm.DB, *bytes.Buffer) {
	t.Helper()
	buf := &bytes.Buffer{}
	logg := logger.New(logger.Options{ServiceName: "test", Output: buf})
	conn, err := gorm.Open(sqlite.Open("file:ql_"+uuid.NewString()+"?mode=memory&cache=shared"), &gorm.Config{
		Logger:                 newQueryLogger(logg, slow),
		SkipDefaultTransaction: true,
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := conn.AutoMigrate(&testModel{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	buf.Reset()
	return conn, buf
}

func TestQueryLoggerReportsFailures(t *testing.T) {
	conn, buf := openLogged(t, 0)

	var row testModel
	if err := conn.First(&row, "name = ?", "missing").Error; err == nil {
		t.Fatal("expected record not found")
	}
	if buf.Len() != 0 {
		t.Fatalf("record not found should not be logged, got %s", buf.String())
	}

	_ = conn.Exec("SELECT * FROM no_such_table").Error
	if !strings.Contains(buf.String(), "db.query_failed") {
		t.Fatalf("expected failure log, got %s", buf.String())
	}
}

func TestQueryLoggerReportsSlowQueries(t *testing.T) {
	conn, buf := openLogged(t, time.Nanosecond)
	if err := conn.Create(&testModel{Name: "slow"}).Error; err != nil {
		t.Fatalf("insert: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "db.slow_query") || !strings.Contains(out, "duration_ms") {
		t.Fatalf("expected slow query log, got %s", out)
	}
}

func TestQueryLoggerSilentMode(t *testing.T) {
	buf := &bytes.Buffer{}
	q := newQueryLogger(logger.New(logger.Options{Output: buf}), time.Nanosecond).LogMode(gormlogger.Silent)
	q.Trace(context.Background(), time.Now().Add(-time.Second), func() (string, int64) { return "SELECT 1", 1 }, nil)
	if buf.Len() != 0 {
		t.Fatalf("silent mode should not log, got %s", buf.String())
	}
}

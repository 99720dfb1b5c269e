package database

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/frahmantamala/meter-fleet/internal"
	assignmentDatamodel "github.com/frahmantamala/meter-fleet/internal/core/datamodel/assignment"
	meterDatamodel "github.com/frahmantamala/meter-fleet/internal/core/datamodel/meter"
	telemetryDatamodel "github.com/frahmantamala/meter-fleet/internal/core/datamodel/telemetry"
	userDatamodel "github.com/frahmantamala/meter-fleet/internal/core/datamodel/user"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const (
	pgxDriver    = "pgx"
	sqliteDriver = "sqlite3"
)

// DB bundles the gorm handle used by repositories and the sqlx handle used for
// raw reads. Both share one connection pool.
type DB struct {
	Gorm *gorm.DB
	SQL  *sqlx.DB
}

func (d *DB) Close() error {
	return d.SQL.Close()
}

// Models lists every table the application owns, in dependency order.
func Models() []interface{} {
	return []interface{}{
		&userDatamodel.User{},
		&meterDatamodel.Meter{},
		&assignmentDatamodel.UserAssignment{},
		&assignmentDatamodel.MeterAssignment{},
		&telemetryDatamodel.MeterData{},
	}
}

func Open(cfg internal.DatabaseConfig, lg *slog.Logger) (*DB, error) {
	switch cfg.Driver {
	case internal.DatabaseDriverSQLite:
		gdb, err := OpenSQLite(cfg.Source)
		if err != nil {
			return nil, err
		}
		sqlDB, err := gdb.DB()
		if err != nil {
			return nil, err
		}
		return &DB{Gorm: gdb, SQL: sqlx.NewDb(sqlDB, sqliteDriver)}, nil
	default:
		return openPostgres(cfg, lg)
	}
}

func openPostgres(cfg internal.DatabaseConfig, lg *slog.Logger) (*DB, error) {
	dbConn, err := sqlx.Connect(pgxDriver, cfg.Source)
	if err != nil {
		return nil, fmt.Errorf("failed to open db connection: %w", err)
	}

	dbConn.SetMaxIdleConns(cfg.MaxIdleConns)
	dbConn.SetMaxOpenConns(cfg.MaxOpenConns)
	dbConn.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	dbConn.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	// verify connection; close underlying *sql.DB on failure
	if err := dbConn.Ping(); err != nil {
		_ = dbConn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	gdb, err := gorm.Open(postgres.New(postgres.Config{Conn: dbConn.DB}), &gorm.Config{
		Logger: newGormLogger(lg),
	})
	if err != nil {
		_ = dbConn.Close()
		return nil, fmt.Errorf("failed to open gorm: %w", err)
	}

	return &DB{Gorm: gdb, SQL: dbConn}, nil
}

// OpenSQLite opens a SQLite database and migrates it from the gorm models.
// An empty dsn gives a private in-memory database.
func OpenSQLite(dsn string) (*gorm.DB, error) {
	if dsn == "" || dsn == ":memory:" {
		dsn = fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	}

	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}

	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, err
	}
	// sqlite allows one writer; a single connection also keeps in-memory databases alive
	sqlDB.SetMaxOpenConns(1)

	if err := gdb.Exec("PRAGMA foreign_keys = ON").Error; err != nil {
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	if err := gdb.AutoMigrate(Models()...); err != nil {
		return nil, fmt.Errorf("failed to migrate sqlite: %w", err)
	}
	return gdb, nil
}

func newGormLogger(lg *slog.Logger) gormlogger.Interface {
	if lg == nil {
		return gormlogger.Default.LogMode(gormlogger.Warn)
	}
	return gormlogger.New(slog.NewLogLogger(lg.Handler(), slog.LevelWarn), gormlogger.Config{
		SlowThreshold:             200 * time.Millisecond,
		LogLevel:                  gormlogger.Warn,
		IgnoreRecordNotFoundError: true,
	})
}

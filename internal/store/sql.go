package store

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"time"

	"github.com/go-sql-driver/mysql"

	apperrors "muwi-backup/internal/errors"
	"muwi-backup/internal/logging"
)

const (
	// DriverMySQL names the SQL store driver.
	DriverMySQL = "mysql"

	// DefaultRecordTable is the table holding every collection.
	DefaultRecordTable = "muwi_records"
)

var tableNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]{0,63}$`)

// SQLConfig configures the MySQL record store.
type SQLConfig struct {
	Host           string        `mapstructure:"host" yaml:"host"`
	Port           int           `mapstructure:"port" yaml:"port"`
	Username       string        `mapstructure:"username" yaml:"username"`
	Password       string        `mapstructure:"password" yaml:"password"`
	Database       string        `mapstructure:"database" yaml:"database"`
	Table          string        `mapstructure:"table" yaml:"table"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout" yaml:"connect_timeout"`
	MaxOpenConns   int           `mapstructure:"max_open_conns" yaml:"max_open_conns"`
	CreateSchema   bool          `mapstructure:"create_schema" yaml:"create_schema"`
}

// SetDefaults fills unset fields.
func (c *SQLConfig) SetDefaults() {
	if c.Host == "" {
		c.Host = "localhost"
	}
	if c.Port == 0 {
		c.Port = 3306
	}
	if c.Table == "" {
		c.Table = DefaultRecordTable
	}
	if c.ConnectTimeout == 0 {
		c.ConnectTimeout = 30 * time.Second
	}
	if c.MaxOpenConns == 0 {
		c.MaxOpenConns = 10
	}
}

// Validate checks the configuration.
func (c *SQLConfig) Validate() error {
	if c.Username == "" {
		return fmt.Errorf("mysql username is required")
	}
	if c.Database == "" {
		return fmt.Errorf("mysql database is required")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid mysql port: %d", c.Port)
	}
	if !tableNamePattern.MatchString(c.Table) {
		return fmt.Errorf("invalid record table name: %q", c.Table)
	}
	return nil
}

// DSN builds the driver data source name.
func (c *SQLConfig) DSN() string {
	cfg := mysql.NewConfig()
	cfg.User = c.Username
	cfg.Passwd = c.Password
	cfg.Net = "tcp"
	cfg.Addr = fmt.Sprintf("%s:%d", c.Host, c.Port)
	cfg.DBName = c.Database
	cfg.ParseTime = true
	cfg.Timeout = c.ConnectTimeout
	cfg.Params = map[string]string{"charset": "utf8mb4"}
	return cfg.FormatDSN()
}

// SQLStore keeps every collection in one MySQL table keyed by (collection, id).
type SQLStore struct {
	db     *sql.DB
	table  string
	logger *logging.Logger
}

// OpenSQLStore connects to MySQL with retries and optionally creates the record table.
func OpenSQLStore(ctx context.Context, config SQLConfig, logger *logging.Logger) (*SQLStore, error) {
	if logger == nil {
		logger = logging.NewDefaultLogger()
	}
	config.SetDefaults()
	if err := config.Validate(); err != nil {
		return nil, apperrors.NewAppError(apperrors.ErrorTypeValidation, "invalid mysql store configuration", err)
	}

	ctx, cancel := context.WithTimeout(ctx, config.ConnectTimeout)
	defer cancel()

	logger.WithField("dsn", logging.SanitizeDSN(config.DSN())).Debug("Opening MySQL record store")

	start := time.Now()
	var db *sql.DB
	err := apperrors.NewDefaultRetryHandler().Retry(ctx, func() error {
		var openErr error
		db, openErr = sql.Open(DriverMySQL, config.DSN())
		if openErr != nil {
			return apperrors.WrapError(openErr, "failed to open database connection")
		}

		db.SetMaxOpenConns(config.MaxOpenConns)
		db.SetMaxIdleConns(config.MaxOpenConns / 2)
		db.SetConnMaxLifetime(5 * time.Minute)

		if pingErr := db.PingContext(ctx); pingErr != nil {
			db.Close()
			return pingErr
		}
		return nil
	})

	target := fmt.Sprintf("%s:%d/%s", config.Host, config.Port, config.Database)
	logger.LogStoreConnection(DriverMySQL, target, err == nil, time.Since(start), err)
	if err != nil {
		return nil, err
	}

	s := NewSQLStore(db, config.Table, logger)
	if config.CreateSchema {
		if err := s.EnsureSchema(ctx); err != nil {
			db.Close()
			return nil, err
		}
	}
	return s, nil
}

// NewSQLStore wraps an open database handle.
func NewSQLStore(db *sql.DB, table string, logger *logging.Logger) *SQLStore {
	if logger == nil {
		logger = logging.NewDefaultLogger()
	}
	if table == "" {
		table = DefaultRecordTable
	}
	return &SQLStore{db: db, table: table, logger: logger}
}

// EnsureSchema creates the record table when it does not exist.
func (s *SQLStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, s.schemaSQL()); err != nil {
		return apperrors.WrapError(err, "failed to create record table")
	}
	return nil
}

// All returns every record of the collection ordered by id.
func (s *SQLStore) All(ctx context.Context, collection string) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx, s.selectSQL(), collection)
	if err != nil {
		return nil, apperrors.WrapError(err, fmt.Sprintf("failed to read collection %s", collection))
	}
	defer rows.Close()

	records := make([]Record, 0)
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, apperrors.WrapError(err, fmt.Sprintf("failed to scan collection %s", collection))
		}
		record, err := decodeRecord(data)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.WrapError(err, fmt.Sprintf("failed to read collection %s", collection))
	}
	return records, nil
}

// Count returns the number of records in the collection.
func (s *SQLStore) Count(ctx context.Context, collection string) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, s.countSQL(), collection).Scan(&count); err != nil {
		return 0, apperrors.WrapError(err, fmt.Sprintf("failed to count collection %s", collection))
	}
	return count, nil
}

// Apply executes the batch inside one database transaction.
func (s *SQLStore) Apply(ctx context.Context, batch *Batch) (err error) {
	if batch == nil {
		return fmt.Errorf("batch cannot be nil")
	}

	start := time.Now()
	defer func() {
		s.logger.LogStoreTransaction(DriverMySQL, len(batch.Ops), batch.Len(), time.Since(start), err)
	}()

	ops, err := encodeBatch(batch)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return apperrors.WrapError(err, "failed to begin transaction")
	}

	if err = s.applyInTx(ctx, tx, ops); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			s.logger.WithField("error", rbErr.Error()).Warn("Transaction rollback failed")
		}
		return err
	}

	if err = tx.Commit(); err != nil {
		return apperrors.WrapError(err, "failed to commit transaction")
	}
	return nil
}

func (s *SQLStore) applyInTx(ctx context.Context, tx *sql.Tx, ops []encodedOp) error {
	for _, op := range ops {
		switch op.kind {
		case OpClear:
			if _, err := tx.ExecContext(ctx, s.deleteSQL(), op.collection); err != nil {
				return apperrors.WrapError(err, fmt.Sprintf("failed to clear collection %s", op.collection))
			}
		case OpPut:
			for _, e := range op.entries {
				if _, err := tx.ExecContext(ctx, s.upsertSQL(), op.collection, e.id, string(e.value)); err != nil {
					return apperrors.WrapError(err, fmt.Sprintf("failed to write %s record %s", op.collection, e.id))
				}
			}
		}
	}
	return nil
}

// Close closes the database handle.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

// Statement builders

func (s *SQLStore) schemaSQL() string {
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS `%s` ("+
		"collection VARCHAR(64) NOT NULL, "+
		"id VARCHAR(191) CHARACTER SET utf8mb4 COLLATE utf8mb4_bin NOT NULL, "+
		"data JSON NOT NULL, "+
		"PRIMARY KEY (collection, id)"+
		") ENGINE=InnoDB DEFAULT CHARSET=utf8mb4", s.table)
}

func (s *SQLStore) selectSQL() string {
	return fmt.Sprintf("SELECT data FROM `%s` WHERE collection = ? ORDER BY id", s.table)
}

func (s *SQLStore) countSQL() string {
	return fmt.Sprintf("SELECT COUNT(*) FROM `%s` WHERE collection = ?", s.table)
}

func (s *SQLStore) deleteSQL() string {
	return fmt.Sprintf("DELETE FROM `%s` WHERE collection = ?", s.table)
}

func (s *SQLStore) upsertSQL() string {
	return fmt.Sprintf("INSERT INTO `%s` (collection, id, data) VALUES (?, ?, ?) "+
		"ON DUPLICATE KEY UPDATE data = VALUES(data)", s.table)
}

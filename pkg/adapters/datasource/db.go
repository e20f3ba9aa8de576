package datasource

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ekaya-inc/emistr-mcp/pkg/apperrors"
	"github.com/ekaya-inc/emistr-mcp/pkg/logging"
	"github.com/ekaya-inc/emistr-mcp/pkg/retry"
	sqlguard "github.com/ekaya-inc/emistr-mcp/pkg/sql"
)

const (
	DefaultMaxOpenConns   = 10
	DefaultAcquireTimeout = 10 * time.Second
	DefaultQueryTimeout   = 30 * time.Second
)

// DB is the bounded connection pool of the production database.
// Operations lease one connection through WithConn for all of their queries.
type DB struct {
	db             *sql.DB
	dialect        Dialect
	schema         string
	acquireTimeout time.Duration
	queryTimeout   time.Duration
	logger         *zap.Logger
}

// Open connects to the configured database and verifies the connection,
// retrying transient failures.
func Open(ctx context.Context, cfg Config, logger *zap.Logger) (*DB, error) {
	dialect := GetDialect(cfg.Driver)
	if dialect == nil {
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}

	dsn, err := dialect.DSN(cfg)
	if err != nil {
		return nil, fmt.Errorf("build %s connection string: %w", cfg.Driver, err)
	}

	sqlDB, err := sql.Open(dialect.DriverName(), dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", cfg.Driver, err)
	}

	db := New(sqlDB, dialect, cfg, logger)
	db.logger.Debug("Opening database pool",
		zap.String("driver", cfg.Driver),
		zap.String("dsn", logging.SanitizeConnectionString(dsn)))

	err = retry.DoIfRetryable(ctx, retry.DefaultConfig(), func() error {
		pingCtx, cancel := context.WithTimeout(ctx, db.acquireTimeout)
		defer cancel()
		return sqlDB.PingContext(pingCtx)
	})
	if err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("connect to %s: %s", cfg.Driver, logging.SanitizeError(err))
	}

	db.logger.Info("Database connection pool ready",
		zap.String("driver", cfg.Driver),
		zap.String("schema", db.schema),
		zap.Int("max_open_conns", cfg.MaxOpenConns))
	return db, nil
}

// New wraps an already opened *sql.DB. Zero pool settings in cfg fall back
// to the package defaults.
func New(sqlDB *sql.DB, dialect Dialect, cfg Config, logger *zap.Logger) *DB {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxOpenConns <= 0 {
		cfg.MaxOpenConns = DefaultMaxOpenConns
	}
	if cfg.AcquireTimeout <= 0 {
		cfg.AcquireTimeout = DefaultAcquireTimeout
	}
	if cfg.QueryTimeout <= 0 {
		cfg.QueryTimeout = DefaultQueryTimeout
	}

	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	schema := cfg.Schema
	if schema == "" {
		schema = dialect.DefaultSchema(cfg)
	}

	return &DB{
		db:             sqlDB,
		dialect:        dialect,
		schema:         schema,
		acquireTimeout: cfg.AcquireTimeout,
		queryTimeout:   cfg.QueryTimeout,
		logger:         logger.Named("datasource"),
	}
}

func (d *DB) Dialect() Dialect { return d.dialect }

// Schema is the catalog schema that holds the production tables.
func (d *DB) Schema() string { return d.schema }

// WithConn leases one connection for the duration of fn. Acquisition is
// bounded by the acquire timeout and the whole call by the query timeout.
// The connection is released on every exit path, including a panic in fn.
func (d *DB) WithConn(ctx context.Context, fn func(ctx context.Context, q Querier) error) error {
	ctx, cancel := context.WithTimeout(ctx, d.queryTimeout)
	defer cancel()

	acquireCtx, acquireCancel := context.WithTimeout(ctx, d.acquireTimeout)
	conn, err := d.db.Conn(acquireCtx)
	acquireCancel()
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return apperrors.Database(fmt.Errorf("acquire connection: pool exhausted after %s: %w", d.acquireTimeout, err))
		}
		return apperrors.Database(fmt.Errorf("acquire connection: %w", err))
	}
	defer func() {
		if cerr := conn.Close(); cerr != nil {
			d.logger.Warn("Failed to release connection", zap.String("error", logging.SanitizeError(cerr)))
		}
	}()

	return fn(ctx, &Conn{conn: conn, dialect: d.dialect, logger: d.logger})
}

// Ping checks that the database is reachable.
func (d *DB) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, d.acquireTimeout)
	defer cancel()
	return d.db.PingContext(ctx)
}

// Stats exposes pool statistics for health reporting.
func (d *DB) Stats() sql.DBStats {
	return d.db.Stats()
}

func (d *DB) Close() error {
	return d.db.Close()
}

// Conn is a leased connection. It is only valid inside WithConn.
type Conn struct {
	conn    *sql.Conn
	dialect Dialect
	logger  *zap.Logger
}

var _ Querier = (*Conn)(nil)

// Query runs a read query on the leased connection and normalizes every
// value before returning. Anything but a single read statement is refused.
func (c *Conn) Query(ctx context.Context, query string, args ...any) ([]Row, error) {
	if err := sqlguard.EnsureReadOnly(query); err != nil {
		return nil, apperrors.Internal(err)
	}
	bound, boundArgs := c.dialect.Rebind(query, args)

	rows, err := c.conn.QueryContext(ctx, bound, boundArgs...)
	if err != nil {
		return nil, fmt.Errorf("execute query: %w", err)
	}
	defer rows.Close()

	colTypes, err := rows.ColumnTypes()
	if err != nil {
		return nil, fmt.Errorf("read column types: %w", err)
	}
	names := make([]string, len(colTypes))
	dbTypes := make([]string, len(colTypes))
	for i, ct := range colTypes {
		names[i] = ct.Name()
		dbTypes[i] = ct.DatabaseTypeName()
	}

	result := make([]Row, 0)
	for rows.Next() {
		values := make([]any, len(names))
		ptrs := make([]any, len(names))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		result = append(result, c.normalizeRow(names, dbTypes, values))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return result, nil
}

// normalizeRow never fails; a value that cannot be converted becomes nil.
func (c *Conn) normalizeRow(names, dbTypes []string, values []any) Row {
	out := make([]any, len(values))
	for i, v := range values {
		nv, err := NormalizeValue(dbTypes[i], v)
		if err != nil {
			c.logger.Debug("Value normalization failed, using null",
				zap.String("column", names[i]),
				zap.String("db_type", dbTypes[i]),
				zap.Error(err))
			nv = nil
		}
		out[i] = nv
	}
	return MakeRow(names, out)
}

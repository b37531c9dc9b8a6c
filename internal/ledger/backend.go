// Package ledger records projection results in a SQL database.
//
// Two drivers are supported. The sqlite driver keeps an embedded database
// file under the configured data directory; the postgres driver connects
// through pgx. Both share one schema and one set of statements, written
// with ? placeholders and rebound for postgres.
package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" database/sql driver
	"go.uber.org/zap"
	_ "modernc.org/sqlite" // registers the "sqlite" database/sql driver

	"github.com/mesh-intelligence/standproj/internal/projection"
	"github.com/mesh-intelligence/standproj/pkg/types"
)

var _ projection.Ledger = (*Backend)(nil)

// DatabaseFile is the sqlite database name inside the data directory.
const DatabaseFile = "ledger.db"

// Backend errors.
var (
	ErrAlreadyAttached = errors.New("ledger already attached")
	ErrDetached        = errors.New("ledger not attached")
)

var sqlOpen = sql.Open

// Backend is a ledger database connection. It implements
// projection.Ledger and is safe for concurrent use.
type Backend struct {
	mu       sync.RWMutex
	attached bool
	config   types.LedgerConfig
	db       *sql.DB
	postgres bool
	logger   *zap.Logger
}

// NewBackend returns a detached Backend. Call Attach before use.
func NewBackend(logger *zap.Logger) *Backend {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Backend{logger: logger.Named("ledger")}
}

// Attach opens the database described by config and applies the schema.
func (b *Backend) Attach(ctx context.Context, config types.LedgerConfig) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.attached {
		return ErrAlreadyAttached
	}
	if err := config.Validate(); err != nil {
		return err
	}

	driver, dsn, err := dataSource(config)
	if err != nil {
		return err
	}
	db, err := sqlOpen(driver, dsn)
	if err != nil {
		return fmt.Errorf("open %s ledger: %w", config.Driver, err)
	}
	if config.Driver == types.LedgerSQLite {
		// One writer at a time avoids SQLITE_BUSY under parallel polygons.
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return fmt.Errorf("ping %s ledger: %w", config.Driver, err)
	}
	for _, stmt := range schemaDDL {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			db.Close()
			return fmt.Errorf("apply ledger schema: %w", err)
		}
	}

	b.db = db
	b.config = config
	b.postgres = config.Driver == types.LedgerPostgres
	b.attached = true
	b.logger.Debug("attached", zap.String("driver", config.Driver))
	return nil
}

// Detach closes the database. It is idempotent.
func (b *Backend) Detach() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.attached {
		return nil
	}
	err := b.db.Close()
	b.db = nil
	b.attached = false
	return err
}

func dataSource(config types.LedgerConfig) (driver, dsn string, err error) {
	switch config.Driver {
	case types.LedgerPostgres:
		return "pgx", config.DSN, nil
	default:
		if config.DSN != "" {
			return "sqlite", config.DSN, nil
		}
		dir := config.DataDir
		if dir == "" {
			dir = "."
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", "", fmt.Errorf("create ledger data dir: %w", err)
		}
		return "sqlite", filepath.Join(dir, DatabaseFile), nil
	}
}

// conn returns the open database under a read lock. The caller must call
// the returned release function.
func (b *Backend) conn() (*sql.DB, func(), error) {
	b.mu.RLock()
	if !b.attached {
		b.mu.RUnlock()
		return nil, nil, ErrDetached
	}
	return b.db, b.mu.RUnlock, nil
}

// bind rewrites ? placeholders to $n for postgres.
func (b *Backend) bind(query string) string {
	if !b.postgres {
		return query
	}
	return rebind(query)
}

func rebind(query string) string {
	var sb strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			sb.WriteByte('$')
			sb.WriteString(strconv.Itoa(n))
			continue
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

package store

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"notifyd/internal/notification"
	"notifyd/internal/registry"
	"notifyd/pkg/logx"
)

//go:embed migrations.sql
var migrationsFS embed.FS

type sqliteStore struct {
	db       *sql.DB
	statuses *registry.Statuses
	log      logx.Logger
}

func openSQLite(cfg Config, statuses *registry.Statuses, log logx.Logger) (Store, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if cfg.BusyTimeout > 0 {
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", cfg.BusyTimeout.Milliseconds()))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	st := &sqliteStore{db: db, statuses: statuses, log: log}
	if err := st.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return st, nil
}

func (s *sqliteStore) migrate(ctx context.Context) error {
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, string(b))
	return err
}

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *sqliteStore) Save(ctx context.Context, n *notification.Notification) error {
	return s.saveWith(ctx, s.db, n)
}

func (s *sqliteStore) saveWith(ctx context.Context, ex execer, n *notification.Notification) error {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	statusMeta, err := marshalStatusMeta(n.StatusMeta)
	if err != nil {
		return err
	}
	_, err = ex.ExecContext(ctx,
		`INSERT INTO notification(id, notification_type, recipient_ref, date_scheduled, status, metadata, date_time_processed, status_meta)
		 VALUES(?,?,?,?,?,?,?,?)
		 ON CONFLICT(id) DO UPDATE SET
		   notification_type=excluded.notification_type,
		   recipient_ref=excluded.recipient_ref,
		   date_scheduled=excluded.date_scheduled,
		   status=excluded.status,
		   metadata=excluded.metadata,
		   date_time_processed=excluded.date_time_processed,
		   status_meta=excluded.status_meta`,
		n.ID, n.Type, n.RecipientRef, n.DateScheduled.String(), n.Status.Name,
		nullStr(string(n.Metadata)), nullTime(n.DateTimeProcessed), nullStr(statusMeta),
	)
	return err
}

func (s *sqliteStore) SaveAll(ctx context.Context, ns []*notification.Notification) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	for _, n := range ns {
		if err := s.saveWith(ctx, tx, n); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

const selectColumns = `id, notification_type, recipient_ref, date_scheduled, status, metadata, date_time_processed, status_meta`

func (s *sqliteStore) Get(ctx context.Context, id string) (*notification.Notification, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+selectColumns+` FROM notification WHERE id = ?`, id)
	n, err := s.scan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return n, err
}

func (s *sqliteStore) FindPending(ctx context.Context, status notification.Status, onOrBefore notification.Date) ([]*notification.Notification, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+selectColumns+` FROM notification
		 WHERE status = ? AND date_scheduled <= ?
		 ORDER BY date_scheduled, id`,
		status.Name, onOrBefore.String())
	if err != nil {
		return nil, err
	}
	return s.collect(rows)
}

func (s *sqliteStore) FindAwaitingProvider(ctx context.Context, status notification.Status) ([]*notification.Notification, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+selectColumns+` FROM notification
		 WHERE status = ?
		   AND json_extract(status_meta, '$.dispatchResult.deliveryDetails.status') = ?
		 ORDER BY date_scheduled, id`,
		status.Name, providerQueuedState)
	if err != nil {
		return nil, err
	}
	return s.collect(rows)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (s *sqliteStore) scan(r rowScanner) (*notification.Notification, error) {
	var (
		n           notification.Notification
		dateSched   string
		statusName  string
		metadata    sql.NullString
		processedAt sql.NullString
		statusMeta  sql.NullString
	)
	if err := r.Scan(&n.ID, &n.Type, &n.RecipientRef, &dateSched, &statusName,
		&metadata, &processedAt, &statusMeta); err != nil {
		return nil, err
	}

	d, err := notification.ParseDate(dateSched)
	if err != nil {
		return nil, err
	}
	n.DateScheduled = d
	n.Status = reconstituteStatus(s.statuses, statusName)
	if metadata.Valid {
		n.Metadata = json.RawMessage(metadata.String)
	}
	if processedAt.Valid {
		t, err := time.Parse(time.RFC3339Nano, processedAt.String)
		if err != nil {
			return nil, err
		}
		n.DateTimeProcessed = t
	}
	if statusMeta.Valid {
		var sm notification.StatusMeta
		if err := json.Unmarshal([]byte(statusMeta.String), &sm); err != nil {
			return nil, fmt.Errorf("decode status metadata for %s: %w", n.ID, err)
		}
		n.StatusMeta = &sm
	}
	return &n, nil
}

func (s *sqliteStore) collect(rows *sql.Rows) ([]*notification.Notification, error) {
	defer rows.Close()
	var out []*notification.Notification
	for rows.Next() {
		n, err := s.scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

func marshalStatusMeta(sm *notification.StatusMeta) (string, error) {
	if sm == nil {
		return "", nil
	}
	b, err := json.Marshal(sm)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func nullStr(v string) any {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	return v
}

func nullTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.Format(time.RFC3339Nano)
}

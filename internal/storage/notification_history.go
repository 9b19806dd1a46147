package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/t77yq/roma-console/internal/model"
)

const sendTimeout = 5 * time.Second

// NotificationFilter narrows List and Count; zero fields match everything
type NotificationFilter struct {
	Level model.NotificationLevel
	Since time.Time
}

// NotificationHistory defines the interface for notification history storage
type NotificationHistory interface {
	// Store persists a notification
	Store(ctx context.Context, n *model.Notification) error

	// Get retrieves a notification by ID, or nil if it does not exist
	Get(ctx context.Context, id string) (*model.Notification, error)

	// List retrieves notifications, newest first
	List(ctx context.Context, filter NotificationFilter, offset, limit int) ([]*model.Notification, error)

	// Count returns the number of notifications matching the filter
	Count(ctx context.Context, filter NotificationFilter) (int, error)

	// DeleteBefore deletes notifications older than before
	DeleteBefore(ctx context.Context, before time.Time) (int64, error)

	Close() error
}

// SQLiteNotificationHistory implements NotificationHistory using SQLite
type SQLiteNotificationHistory struct {
	logger *zap.Logger
	db     *sql.DB
}

// NewSQLiteNotificationHistory opens (or creates) the journal at dbPath
func NewSQLiteNotificationHistory(dbPath string, logger *zap.Logger) (*SQLiteNotificationHistory, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	storage := &SQLiteNotificationHistory{
		logger: logger.Named("notification-history"),
		db:     db,
	}

	if err := storage.initialize(); err != nil {
		db.Close()
		return nil, err
	}

	return storage, nil
}

func (s *SQLiteNotificationHistory) initialize() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS notification_history (
			id TEXT PRIMARY KEY,
			level TEXT NOT NULL,
			kind TEXT,
			message TEXT NOT NULL,
			operation TEXT,
			created_at DATETIME NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_notification_history_level ON notification_history(level);
		CREATE INDEX IF NOT EXISTS idx_notification_history_created_at ON notification_history(created_at);
	`)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	return nil
}

// Send implements notify.Channel
func (s *SQLiteNotificationHistory) Send(n *model.Notification) error {
	ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
	defer cancel()
	return s.Store(ctx, n)
}

// Store implements NotificationHistory.Store
func (s *SQLiteNotificationHistory) Store(ctx context.Context, n *model.Notification) error {
	createdAt := n.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO notification_history (
			id, level, kind, message, operation, created_at
		) VALUES (?, ?, ?, ?, ?, ?)`,
		n.ID,
		string(n.Level),
		sql.NullString{String: n.Kind, Valid: n.Kind != ""},
		n.Message,
		sql.NullString{String: n.Operation, Valid: n.Operation != ""},
		createdAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to store notification: %w", err)
	}
	return nil
}

// Get implements NotificationHistory.Get
func (s *SQLiteNotificationHistory) Get(ctx context.Context, id string) (*model.Notification, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, level, kind, message, operation, created_at
		FROM notification_history
		WHERE id = ?`, id)

	n, err := scanNotification(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to scan notification: %w", err)
	}
	return n, nil
}

// List implements NotificationHistory.List
func (s *SQLiteNotificationHistory) List(ctx context.Context, filter NotificationFilter, offset, limit int) ([]*model.Notification, error) {
	where, args := filter.clause()
	query := "SELECT id, level, kind, message, operation, created_at FROM notification_history" +
		where + " ORDER BY created_at DESC, rowid DESC LIMIT ? OFFSET ?"
	args = append(args, limit, offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	defer rows.Close()

	notifications := make([]*model.Notification, 0)
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}
		notifications = append(notifications, n)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}

	return notifications, nil
}

// Count implements NotificationHistory.Count
func (s *SQLiteNotificationHistory) Count(ctx context.Context, filter NotificationFilter) (int, error) {
	where, args := filter.clause()

	var count int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM notification_history"+where, args...).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count notifications: %w", err)
	}
	return count, nil
}

// DeleteBefore implements NotificationHistory.DeleteBefore
func (s *SQLiteNotificationHistory) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx, "DELETE FROM notification_history WHERE created_at < ?", before.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to delete notifications: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get affected rows: %w", err)
	}

	s.logger.Info("Deleted old notifications",
		zap.Time("before", before),
		zap.Int64("deleted", affected))

	return affected, nil
}

// Close closes the database connection
func (s *SQLiteNotificationHistory) Close() error {
	return s.db.Close()
}

func (f NotificationFilter) clause() (string, []interface{}) {
	var conditions []string
	var args []interface{}

	if f.Level != "" {
		conditions = append(conditions, "level = ?")
		args = append(args, string(f.Level))
	}
	if !f.Since.IsZero() {
		conditions = append(conditions, "created_at >= ?")
		args = append(args, f.Since.UTC())
	}

	if len(conditions) == 0 {
		return "", args
	}
	where := " WHERE " + conditions[0]
	for _, c := range conditions[1:] {
		where += " AND " + c
	}
	return where, args
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanNotification(row scanner) (*model.Notification, error) {
	var n model.Notification
	var level string
	var kind, operation sql.NullString

	if err := row.Scan(&n.ID, &level, &kind, &n.Message, &operation, &n.CreatedAt); err != nil {
		return nil, err
	}

	n.Level = model.NotificationLevel(level)
	n.Kind = kind.String
	n.Operation = operation.String
	return &n, nil
}

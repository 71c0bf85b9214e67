package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"chatguard/internal/migrations"
	"chatguard/internal/models"
	"chatguard/internal/security"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"
)

// ErrStoreUnavailable is returned by store operations while the backing
// connection is down. Callers must treat it as transient: the reconnect
// supervisor restores service in the background without operator action.
var ErrStoreUnavailable = errors.New("message store unavailable")

// Store is the durable, append-only message record. It assigns IDs and
// default timestamps on insert, which is the only point at which a message
// becomes canonical.
type Store struct {
	mu             sync.RWMutex // guards db handle against reconnect-vs-use races
	db             *sql.DB
	dbPath         string
	ready          atomic.Bool
	reconnect      chan struct{}
	reconnectDelay time.Duration
	logger         *logrus.Logger
}

func New(dbPath string, reconnectDelay time.Duration, logger *logrus.Logger) (*Store, error) {
	if err := security.ValidateFilePath(dbPath); err != nil {
		return nil, fmt.Errorf("invalid database path: %w", err)
	}

	if logger == nil {
		logger = logrus.New()
	}

	db, err := open(dbPath)
	if err != nil {
		return nil, err
	}

	s := &Store{
		db:             db,
		dbPath:         dbPath,
		reconnect:      make(chan struct{}, 1),
		reconnectDelay: reconnectDelay,
		logger:         logger,
	}
	s.ready.Store(true)
	return s, nil
}

func open(dbPath string) (*sql.DB, error) {
	file, err := os.OpenFile(dbPath, os.O_RDWR|os.O_CREATE, 0600)
	if err != nil {
		return nil, fmt.Errorf("failed to create database file: %w", err)
	}
	if err := file.Close(); err != nil {
		return nil, fmt.Errorf("failed to close database file: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			return nil, fmt.Errorf("failed to ping database: %w (close error: %v)", err, closeErr)
		}
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	schema, err := migrations.GetInitialSchema()
	if err != nil {
		if closeErr := db.Close(); closeErr != nil {
			return nil, fmt.Errorf("failed to read schema: %w (close error: %v)", err, closeErr)
		}
		return nil, fmt.Errorf("failed to read schema: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			return nil, fmt.Errorf("failed to initialize schema: %w (close error: %v)", err, closeErr)
		}
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return db, nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}

// Ready reports whether the store can currently serve calls.
func (s *Store) Ready() bool {
	return s.ready.Load()
}

// StartReconnectSupervisor runs the background reconnect loop until ctx is
// cancelled. On a disconnect signal it reopens the connection indefinitely,
// pausing a fixed delay between attempts, and flips the readiness flag back
// once a reopen succeeds.
func (s *Store) StartReconnectSupervisor(ctx context.Context) {
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-s.reconnect:
			}

			attempt := 0
			for {
				select {
				case <-ctx.Done():
					return
				default:
				}

				attempt++
				if err := s.reopen(); err != nil {
					s.logger.WithError(err).WithField("attempt", attempt).
						Warn("Store reconnect attempt failed")

					select {
					case <-ctx.Done():
						return
					case <-time.After(s.reconnectDelay):
					}
					continue
				}

				s.ready.Store(true)
				s.logger.WithField("attempt", attempt).Info("Store reconnected")
				break
			}
		}
	}()
}

func (s *Store) reopen() error {
	db, err := open(s.dbPath)
	if err != nil {
		return err
	}

	s.mu.Lock()
	old := s.db
	s.db = db
	s.mu.Unlock()

	if old != nil {
		if err := old.Close(); err != nil {
			s.logger.WithError(err).Debug("Failed to close stale store handle")
		}
	}
	return nil
}

// markDisconnected flips the readiness flag and wakes the supervisor. The
// reconnect channel is buffered so repeated failures collapse into one
// pending signal.
func (s *Store) markDisconnected() {
	if s.ready.CompareAndSwap(true, false) {
		s.logger.Warn("Store connection lost, scheduling reconnect")
	}
	select {
	case s.reconnect <- struct{}{}:
	default:
	}
}

func (s *Store) handle() (*sql.DB, error) {
	if !s.ready.Load() {
		return nil, ErrStoreUnavailable
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.db, nil
}

// InsertMessage persists msg and returns the canonical record: a copy with
// the store-assigned ID and, when the caller supplied none, an insertion
// timestamp. The caller's message is never mutated.
func (s *Store) InsertMessage(ctx context.Context, msg *models.ChatMessage) (*models.ChatMessage, error) {
	db, err := s.handle()
	if err != nil {
		return nil, err
	}

	canonical := *msg
	canonical.ID = uuid.NewString()
	if canonical.Timestamp.IsZero() {
		canonical.Timestamp = time.Now().UTC()
	}

	query := `
		INSERT INTO messages (id, user, message, timestamp, is_phishing, is_spam)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	err = retryableDBOperation(ctx, func() error {
		_, execErr := db.ExecContext(ctx, query,
			canonical.ID,
			canonical.User,
			canonical.Message,
			canonical.Timestamp,
			canonical.IsPhishing,
			canonical.IsSpam,
		)
		return execErr
	}, "insert message")
	if err != nil {
		return nil, s.classifyError(err, "failed to insert message")
	}

	return &canonical, nil
}

// ListMessages returns all persisted messages in ascending timestamp order,
// with insertion order breaking ties.
func (s *Store) ListMessages(ctx context.Context) ([]models.ChatMessage, error) {
	db, err := s.handle()
	if err != nil {
		return nil, err
	}

	query := `
		SELECT id, user, message, timestamp, is_phishing, is_spam
		FROM messages
		ORDER BY timestamp ASC, seq ASC
	`

	var messages []models.ChatMessage
	err = retryableDBOperation(ctx, func() error {
		rows, queryErr := db.QueryContext(ctx, query)
		if queryErr != nil {
			return queryErr
		}
		defer func() {
			if closeErr := rows.Close(); closeErr != nil {
				s.logger.WithError(closeErr).Debug("Failed to close rows")
			}
		}()

		result := make([]models.ChatMessage, 0)
		for rows.Next() {
			var msg models.ChatMessage
			if scanErr := rows.Scan(&msg.ID, &msg.User, &msg.Message, &msg.Timestamp, &msg.IsPhishing, &msg.IsSpam); scanErr != nil {
				return scanErr
			}
			result = append(result, msg)
		}
		if rowsErr := rows.Err(); rowsErr != nil {
			return rowsErr
		}

		messages = result
		return nil
	}, "list messages")
	if err != nil {
		return nil, s.classifyError(err, "failed to list messages")
	}

	return messages, nil
}

// ClearMessages removes every persisted message. The single DELETE runs in
// one implicit transaction, so concurrent readers never observe a partial
// history.
func (s *Store) ClearMessages(ctx context.Context) (int64, error) {
	db, err := s.handle()
	if err != nil {
		return 0, err
	}

	var cleared int64
	err = retryableDBOperation(ctx, func() error {
		result, execErr := db.ExecContext(ctx, `DELETE FROM messages`)
		if execErr != nil {
			return execErr
		}
		cleared, execErr = result.RowsAffected()
		return execErr
	}, "clear messages")
	if err != nil {
		return 0, s.classifyError(err, "failed to clear messages")
	}

	return cleared, nil
}

// classifyError marks the store disconnected when err looks like a lost
// connection, so the supervisor can begin reconnecting while callers see
// ErrStoreUnavailable.
func (s *Store) classifyError(err error, msg string) error {
	if isConnectionError(err) {
		s.markDisconnected()
		return fmt.Errorf("%s: %w", msg, ErrStoreUnavailable)
	}
	return fmt.Errorf("%s: %w", msg, err)
}

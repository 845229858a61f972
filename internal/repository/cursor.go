package repository

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"bazaar-service/internal/domain"
	"bazaar-service/pkg/database"
)

var (
	ErrCursorCreate   = errors.New("cursor creation failed")
	ErrCursorFetch    = errors.New("cursor fetch failed")
	ErrCursorNotFound = fmt.Errorf("%w: unknown cursor", ErrCursorFetch)
)

// CursorManager declares named holdable cursors and fetches bounded
// batches from them. Each cursor pins the pooled connection it was
// declared on until the cursor is closed, since a cursor only exists
// in its own session. Idle cursors are swept after a TTL so pinned
// connections cannot accumulate forever.
type CursorManager struct {
	db            *database.Manager
	logger        *slog.Logger
	ttl           time.Duration
	sweepInterval time.Duration

	mu       sync.Mutex
	sessions map[string]*cursorSession

	done     chan struct{}
	stopOnce sync.Once
}

type cursorSession struct {
	mu       sync.Mutex
	conn     *pgxpool.Conn // nil once the cursor has been closed
	lastUsed time.Time
}

func NewCursorManager(db *database.Manager, ttl, sweepInterval time.Duration, log *slog.Logger) *CursorManager {
	m := &CursorManager{
		db:            db,
		logger:        log,
		ttl:           ttl,
		sweepInterval: sweepInterval,
		sessions:      make(map[string]*cursorSession),
		done:          make(chan struct{}),
	}

	if ttl > 0 && sweepInterval > 0 {
		go m.sweepLoop()
	}

	return m
}

// Declare opens a holdable cursor over the filtered ad set and returns
// its generated name.
func (m *CursorManager) Declare(ctx context.Context, filter domain.AdFilter) (string, error) {
	clauses, err := buildClauses(filter)
	if err != nil {
		return "", err
	}

	conn, err := m.db.Acquire(ctx)
	if err != nil {
		return "", err
	}

	name := newCursorName()
	where, args := renderWhere(clauses, 1)

	if _, err := conn.Exec(ctx, declareSQL(name, where), args...); err != nil {
		conn.Release()
		return "", fmt.Errorf("%w: %v", ErrCursorCreate, err)
	}

	m.mu.Lock()
	m.sessions[name] = &cursorSession{conn: conn, lastUsed: time.Now()}
	m.mu.Unlock()

	return name, nil
}

// Fetch advances the named cursor by up to count rows. Fewer rows than
// requested, including none at all, means the cursor is near or at its
// end and is not an error. count caps the batch at 255 by type.
func (m *CursorManager) Fetch(ctx context.Context, name string, count uint8) ([]domain.Ad, error) {
	if count == 0 {
		return []domain.Ad{}, nil
	}

	sess := m.lookup(name)
	if sess == nil {
		return nil, fmt.Errorf("%w %q", ErrCursorNotFound, name)
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	// The sweeper or an explicit Close may have won the session lock
	// between lookup and here and already released the connection.
	if sess.conn == nil {
		return nil, fmt.Errorf("%w %q", ErrCursorNotFound, name)
	}

	rows, err := sess.conn.Query(ctx, fetchSQL(name, count))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCursorFetch, err)
	}

	ads, err := scanAds(rows)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCursorFetch, err)
	}

	sess.lastUsed = time.Now()
	return ads, nil
}

// Close releases the named cursor and its pinned connection.
func (m *CursorManager) Close(ctx context.Context, name string) error {
	m.mu.Lock()
	sess, ok := m.sessions[name]
	if ok {
		delete(m.sessions, name)
	}
	m.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w %q", ErrCursorNotFound, name)
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	if sess.conn == nil {
		return fmt.Errorf("%w %q", ErrCursorNotFound, name)
	}

	_, err := sess.conn.Exec(ctx, "CLOSE "+name)
	sess.conn.Release()
	sess.conn = nil
	if err != nil {
		return fmt.Errorf("close cursor %s: %w", name, err)
	}
	return nil
}

// Shutdown stops the sweeper and closes every remaining cursor.
func (m *CursorManager) Shutdown() {
	m.stopOnce.Do(func() { close(m.done) })

	m.mu.Lock()
	names := make([]string, 0, len(m.sessions))
	for name := range m.sessions {
		names = append(names, name)
	}
	m.mu.Unlock()

	for _, name := range names {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := m.Close(ctx, name); err != nil {
			m.logger.Error("failed to close cursor on shutdown", "cursor", name, "error", err.Error())
		}
		cancel()
	}
}

func (m *CursorManager) lookup(name string) *cursorSession {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessions[name]
}

func (m *CursorManager) sweepLoop() {
	ticker := time.NewTicker(m.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			m.sweep()
		}
	}
}

func (m *CursorManager) sweep() {
	cutoff := time.Now().Add(-m.ttl)

	m.mu.Lock()
	var expired []string
	for name, sess := range m.sessions {
		sess.mu.Lock()
		idle := sess.lastUsed.Before(cutoff)
		sess.mu.Unlock()
		if idle {
			expired = append(expired, name)
		}
	}
	m.mu.Unlock()

	for _, name := range expired {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := m.Close(ctx, name); err != nil {
			m.logger.Error("failed to close expired cursor", "cursor", name, "error", err.Error())
		} else {
			m.logger.Info("closed expired cursor", "cursor", name)
		}
		cancel()
	}
}

// newCursorName derives an unpredictable identifier from a random
// UUID, prefixed so it always starts with a letter.
func newCursorName() string {
	hex := strings.ReplaceAll(uuid.NewString(), "-", "")
	return "c_" + hex[:10]
}

func declareSQL(name, where string) string {
	return fmt.Sprintf("DECLARE %s CURSOR WITH HOLD FOR SELECT %s FROM ads%s", name, adColumns, where)
}

func fetchSQL(name string, count uint8) string {
	return fmt.Sprintf("FETCH FORWARD %d FROM %s", count, name)
}

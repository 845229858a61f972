package repository

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNewCursorName(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		name := newCursorName()

		assert.True(t, strings.HasPrefix(name, "c_"), name)
		assert.Len(t, name, 12)
		for _, r := range name[2:] {
			assert.Contains(t, "0123456789abcdef", string(r), name)
		}

		assert.False(t, seen[name], "cursor name collision: %s", name)
		seen[name] = true
	}
}

func TestFetchSQL(t *testing.T) {
	assert.Equal(t, "FETCH FORWARD 2 FROM c_abc", fetchSQL("c_abc", 2))
	assert.Equal(t, "FETCH FORWARD 255 FROM c_abc", fetchSQL("c_abc", 255))
}

func TestDeclareSQLWithoutFilter(t *testing.T) {
	sql := declareSQL("c_abc", "")
	assert.Equal(t, "DECLARE c_abc CURSOR WITH HOLD FOR SELECT "+adColumns+" FROM ads", sql)
}

func TestFetchUnknownCursor(t *testing.T) {
	m := NewCursorManager(nil, 0, 0, discardLogger())

	_, err := m.Fetch(context.Background(), "c_missing", 5)
	require.ErrorIs(t, err, ErrCursorNotFound)
	require.ErrorIs(t, err, ErrCursorFetch)
}

func TestFetchZeroCount(t *testing.T) {
	m := NewCursorManager(nil, 0, 0, discardLogger())

	// A zero fetch never touches storage, so even an unknown name
	// yields an empty result.
	ads, err := m.Fetch(context.Background(), "c_missing", 0)
	require.NoError(t, err)
	assert.Empty(t, ads)
}

func TestCloseUnknownCursor(t *testing.T) {
	m := NewCursorManager(nil, 0, 0, discardLogger())

	err := m.Close(context.Background(), "c_missing")
	require.ErrorIs(t, err, ErrCursorNotFound)
}

func TestFetchReleasedSession(t *testing.T) {
	m := NewCursorManager(nil, 0, 0, discardLogger())

	// A session whose connection is already released, as the sweeper
	// leaves behind when it wins the race against a concurrent Fetch.
	m.sessions["c_0000000000"] = &cursorSession{}

	_, err := m.Fetch(context.Background(), "c_0000000000", 5)
	require.ErrorIs(t, err, ErrCursorNotFound)
}

func TestConcurrentFetchAndClose(t *testing.T) {
	m := NewCursorManager(nil, 0, 0, discardLogger())
	m.sessions["c_0000000000"] = &cursorSession{}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := m.Fetch(context.Background(), "c_0000000000", 5)
			assert.ErrorIs(t, err, ErrCursorNotFound)
		}()
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		err := m.Close(context.Background(), "c_0000000000")
		assert.ErrorIs(t, err, ErrCursorNotFound)
	}()
	wg.Wait()
}

func TestShutdownWithoutCursors(t *testing.T) {
	m := NewCursorManager(nil, 0, 0, discardLogger())
	m.Shutdown()
	m.Shutdown() // idempotent
}

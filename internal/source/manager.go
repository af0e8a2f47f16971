package source

import (
	"context"
	"fmt"
	"sync"
	"time"
)

type Status struct {
	Connected   bool
	Alive       bool
	Driver      string
	DSN         string
	ConnectedAt time.Time
}

// Manager owns the single active Source. Connect and Disconnect are
// serialized; callers borrow the active Source through Acquire and hand it
// back with the returned release func. A replaced or disconnected Source is
// closed once its last borrower has released it.
type Manager struct {
	openers map[string]Opener
	now     func() time.Time

	connectMu sync.Mutex

	mu          sync.Mutex
	current     *lease
	driver      string
	dsn         string
	connectedAt time.Time
}

type lease struct {
	src     Source
	refs    int
	retired bool
}

func NewManager(openers map[string]Opener) *Manager {
	registered := make(map[string]Opener, len(openers))
	for scheme, opener := range openers {
		if opener != nil {
			registered[scheme] = opener
		}
	}
	return &Manager{
		openers: registered,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Connect opens a Source for dsn and replaces the active one. The previous
// Source stays in service until the new one has been opened successfully.
func (m *Manager) Connect(ctx context.Context, dsn string) (Status, error) {
	scheme, err := Scheme(dsn)
	if err != nil {
		return Status{}, err
	}
	opener, ok := m.openers[scheme]
	if !ok {
		return Status{}, fmt.Errorf("%w: %q", ErrUnsupportedScheme, scheme)
	}

	m.connectMu.Lock()
	defer m.connectMu.Unlock()

	next, err := opener(ctx, dsn)
	if err != nil {
		return Status{}, fmt.Errorf("connect %s: %w", Redact(dsn), err)
	}

	m.mu.Lock()
	previous := m.current
	m.current = &lease{src: next}
	m.driver = scheme
	m.dsn = Redact(dsn)
	m.connectedAt = m.now()
	status := m.statusLocked()
	closeNow := m.retireLocked(previous)
	m.mu.Unlock()

	if closeNow {
		_ = previous.src.Close()
	}
	status.Alive = true
	return status, nil
}

// Disconnect drops the active Source. While requests still hold it the close
// is deferred to the last release and Disconnect reports success.
func (m *Manager) Disconnect() error {
	m.connectMu.Lock()
	defer m.connectMu.Unlock()

	m.mu.Lock()
	previous := m.current
	m.current = nil
	m.driver = ""
	m.dsn = ""
	m.connectedAt = time.Time{}
	closeNow := m.retireLocked(previous)
	m.mu.Unlock()

	if previous == nil {
		return ErrNotConnected
	}
	if !closeNow {
		return nil
	}
	if err := previous.src.Close(); err != nil {
		return fmt.Errorf("close source: %w", err)
	}
	return nil
}

// Acquire borrows the active Source. release must be called exactly once when
// the caller is done; further calls are no-ops.
func (m *Manager) Acquire() (Source, func(), error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		return nil, func() {}, ErrNotConnected
	}
	held := m.current
	held.refs++

	var once sync.Once
	release := func() {
		once.Do(func() { m.release(held) })
	}
	return held.src, release, nil
}

func (m *Manager) release(held *lease) {
	m.mu.Lock()
	held.refs--
	closeNow := held.retired && held.refs == 0
	m.mu.Unlock()

	if closeNow {
		_ = held.src.Close()
	}
}

// retireLocked marks l as replaced and reports whether nobody borrows it, in
// which case the caller closes it after dropping the lock.
func (m *Manager) retireLocked(l *lease) bool {
	if l == nil {
		return false
	}
	l.retired = true
	return l.refs == 0
}

// IsAlive reports whether the active Source answers a round trip.
func (m *Manager) IsAlive(ctx context.Context) bool {
	return m.HealthCheck(ctx) == nil
}

func (m *Manager) Status(ctx context.Context) Status {
	m.mu.Lock()
	status := m.statusLocked()
	m.mu.Unlock()

	if status.Connected {
		status.Alive = m.IsAlive(ctx)
	}
	return status
}

// HealthCheck fails when nothing is connected or the active Source does not
// answer.
func (m *Manager) HealthCheck(ctx context.Context) error {
	current, release, err := m.Acquire()
	defer release()
	if err != nil {
		return err
	}
	if err := current.Ping(ctx); err != nil {
		return fmt.Errorf("ping source: %w", err)
	}
	return nil
}

func (m *Manager) Close() error {
	err := m.Disconnect()
	if err == ErrNotConnected {
		return nil
	}
	return err
}

func (m *Manager) statusLocked() Status {
	return Status{
		Connected:   m.current != nil,
		Driver:      m.driver,
		DSN:         m.dsn,
		ConnectedAt: m.connectedAt,
	}
}

package stream

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"backend-birdtours/internal/shared/retry"

	"github.com/jackc/pgx/v5/pgconn"
)

type fakeConn struct {
	mu            sync.Mutex
	execs         []string
	notifications chan *pgconn.Notification
	execErr       error
}

func (f *fakeConn) Exec(_ context.Context, sql string, _ ...any) (pgconn.CommandTag, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.execs = append(f.execs, sql)
	return pgconn.NewCommandTag("LISTEN"), f.execErr
}

func (f *fakeConn) WaitForNotification(ctx context.Context) (*pgconn.Notification, error) {
	select {
	case n, ok := <-f.notifications:
		if !ok {
			return nil, errors.New("conn closed")
		}
		return n, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func noSleep(context.Context, time.Duration) error { return nil }

func TestListenerPublishesNotifications(t *testing.T) {
	hub := NewHub(nil, nil)
	client := hub.Register(UserTopic("user-1"))
	defer hub.Unregister(client)

	conn := &fakeConn{notifications: make(chan *pgconn.Notification, 4)}
	released := make(chan struct{}, 1)
	acquire := func(context.Context) (NotificationConn, func(), error) {
		return conn, func() { released <- struct{}{} }, nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	l := NewListener("trip_bookings_changes", acquire, hub, nil, retry.WithSleep(noSleep))
	errCh := make(chan error, 1)
	go func() { errCh <- l.Run(ctx) }()

	conn.notifications <- &pgconn.Notification{Channel: "trip_bookings_changes", Payload: "not json"}
	conn.notifications <- &pgconn.Notification{Channel: "trip_bookings_changes", Payload: `{"table":"trip_bookings","type":"UPDATE","record":{}}`}
	conn.notifications <- &pgconn.Notification{Channel: "trip_bookings_changes", Payload: `{"table":"trip_bookings","type":"UPDATE","user_id":"user-1","record":{"id":"b-1","status":"confirmed"}}`}

	var ev ChangeEvent
	if err := json.Unmarshal(receive(t, client), &ev); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if ev.Type != EventUpdate || ev.UserID != "user-1" {
		t.Fatalf("unexpected event: %+v", ev)
	}

	cancel()
	if err := <-errCh; err != nil {
		t.Fatalf("run: %v", err)
	}
	<-released

	conn.mu.Lock()
	defer conn.mu.Unlock()
	if len(conn.execs) != 1 || conn.execs[0] != `LISTEN "trip_bookings_changes"` {
		t.Fatalf("unexpected listen statement: %v", conn.execs)
	}
}

func TestListenerReconnects(t *testing.T) {
	hub := NewHub(nil, nil)
	client := hub.Register(UserTopic("user-9"))
	defer hub.Unregister(client)

	var mu sync.Mutex
	attempts := 0
	second := &fakeConn{notifications: make(chan *pgconn.Notification, 1)}
	acquire := func(context.Context) (NotificationConn, func(), error) {
		mu.Lock()
		defer mu.Unlock()
		attempts++
		switch attempts {
		case 1:
			return nil, nil, errors.New("connection refused")
		case 2:
			closed := &fakeConn{notifications: make(chan *pgconn.Notification)}
			close(closed.notifications)
			return closed, func() {}, nil
		}
		return second, func() {}, nil
	}

	var delays []time.Duration
	sleep := func(_ context.Context, d time.Duration) error {
		mu.Lock()
		delays = append(delays, d)
		mu.Unlock()
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	l := NewListener("changes", acquire, hub, nil, retry.WithSleep(sleep))
	go func() { _ = l.Run(ctx) }()

	second.notifications <- &pgconn.Notification{Payload: `{"table":"trip_bookings","type":"INSERT","user_id":"user-9","record":{"id":"b-9"}}`}
	receive(t, client)

	mu.Lock()
	defer mu.Unlock()
	if attempts < 3 {
		t.Fatalf("expected reconnect attempts, got %d", attempts)
	}
	// the closed connection counted as a successful LISTEN, so backoff restarts
	if len(delays) < 2 || delays[0] != time.Second || delays[1] != time.Second {
		t.Fatalf("unexpected backoff: %v", delays)
	}
}

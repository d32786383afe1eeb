package stream

import (
	"context"
	"encoding/json"
	"errors"

	"backend-birdtours/internal/logging"
	"backend-birdtours/internal/shared/retry"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"
)

// NotificationConn is the part of *pgx.Conn the listener needs.
type NotificationConn interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	WaitForNotification(ctx context.Context) (*pgconn.Notification, error)
}

// AcquireFunc hands out a dedicated connection and its release callback.
type AcquireFunc func(ctx context.Context) (NotificationConn, func(), error)

// PoolAcquirer takes LISTEN connections from pool.
func PoolAcquirer(pool *pgxpool.Pool) AcquireFunc {
	return func(ctx context.Context) (NotificationConn, func(), error) {
		conn, err := pool.Acquire(ctx)
		if err != nil {
			return nil, nil, err
		}
		return conn.Conn(), conn.Release, nil
	}
}

// Listener turns NOTIFY payloads emitted by the store's change triggers into
// hub events. The expected payload is a JSON ChangeEvent.
type Listener struct {
	channel string
	acquire AcquireFunc
	hub     *Hub
	logger  *logrus.Logger
	retry   []retry.Option
}

func NewListener(channel string, acquire AcquireFunc, hub *Hub, logger *logrus.Logger, opts ...retry.Option) *Listener {
	return &Listener{
		channel: channel,
		acquire: acquire,
		hub:     hub,
		logger:  logging.OrDiscard(logger),
		retry:   opts,
	}
}

// Run listens until ctx is done, reconnecting with capped exponential
// backoff after connection loss.
func (l *Listener) Run(ctx context.Context) error {
	policy := retry.NewPolicy(l.retry...)
	failures := 0
	for {
		connected, err := l.listenOnce(ctx)
		if ctx.Err() != nil {
			return nil
		}
		if connected {
			failures = 0
		}
		delay := policy.Delay(failures)
		failures++
		l.logger.WithError(err).WithFields(logrus.Fields{
			"channel":  l.channel,
			"delay_ms": delay.Milliseconds(),
		}).Warn("change feed interrupted, reconnecting")
		if err := policy.Sleep(ctx, delay); err != nil {
			return nil
		}
	}
}

func (l *Listener) listenOnce(ctx context.Context) (bool, error) {
	conn, release, err := l.acquire(ctx)
	if err != nil {
		return false, err
	}
	defer release()

	if _, err := conn.Exec(ctx, "LISTEN "+pgx.Identifier{l.channel}.Sanitize()); err != nil {
		return false, err
	}

	l.logger.WithField("channel", l.channel).Info("listening for booking changes")
	for {
		n, err := conn.WaitForNotification(ctx)
		if err != nil {
			return true, err
		}
		l.handle(ctx, n)
	}
}

func (l *Listener) handle(ctx context.Context, n *pgconn.Notification) {
	var ev ChangeEvent
	if err := json.Unmarshal([]byte(n.Payload), &ev); err != nil {
		l.logger.WithError(err).WithField("channel", n.Channel).Warn("discarding malformed change payload")
		return
	}
	if ev.UserID == "" || ev.Table == "" {
		l.logger.WithError(errors.New("missing table or user_id")).Warn("discarding change payload")
		return
	}
	l.hub.PublishEvent(ctx, ev)
}

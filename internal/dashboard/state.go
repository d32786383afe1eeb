// Package dashboard keeps a customer's bookings and stats in memory for one
// connected surface and folds realtime changes into them.
package dashboard

import (
	"context"
	"encoding/json"
	"sync"

	"backend-birdtours/internal/booking"
	"backend-birdtours/internal/logging"
	"backend-birdtours/internal/stream"

	"github.com/sirupsen/logrus"
)

type Phase string

const (
	PhaseIdle    Phase = "idle"
	PhaseLoading Phase = "loading"
	PhaseLoaded  Phase = "loaded"
)

// Store is the booking data access the state needs. *booking.Service
// implements it.
type Store interface {
	List(ctx context.Context, userID string, status booking.Status) ([]booking.Booking, error)
	Stats(ctx context.Context, userID string) (booking.Stats, error)
	Create(ctx context.Context, userID string, req booking.CreateRequest) (booking.Booking, error)
	Update(ctx context.Context, userID, id string, patch booking.Patch) (booking.Booking, error)
	Delete(ctx context.Context, userID, id string) error
}

// Subscriber hands out hub registrations. *stream.Hub implements it.
type Subscriber interface {
	Register(topic string) *stream.Client
	Unregister(client *stream.Client)
}

type Snapshot struct {
	Phase    Phase             `json:"phase"`
	UserID   string            `json:"user_id"`
	Filter   booking.Status    `json:"filter,omitempty"`
	Bookings []booking.Booking `json:"bookings"`
	Stats    booking.Stats     `json:"stats"`
	Error    string            `json:"error,omitempty"`
}

// State moves idle -> loading -> loaded and back to loading on every
// mutation. A failed operation records Err and keeps whatever was loaded.
type State struct {
	store  Store
	hub    Subscriber
	logger *logrus.Logger

	mu       sync.Mutex
	userID   string
	filter   booking.Status
	phase    Phase
	bookings []booking.Booking
	stats    booking.Stats
	err      error
	onChange func()

	sub       *stream.Client
	subDone   chan struct{}
	subCancel context.CancelFunc
}

func NewState(store Store, hub Subscriber, userID string, logger *logrus.Logger) *State {
	return &State{
		store:    store,
		hub:      hub,
		logger:   logging.OrDiscard(logger),
		userID:   userID,
		phase:    PhaseIdle,
		bookings: []booking.Booking{},
		stats:    booking.ComputeStats(nil),
	}
}

// OnChange registers fn to run after every state change. fn must not call
// back into the state synchronously.
func (s *State) OnChange(fn func()) {
	s.mu.Lock()
	s.onChange = fn
	s.mu.Unlock()
}

func (s *State) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		Phase:    s.phase,
		UserID:   s.userID,
		Filter:   s.filter,
		Bookings: append([]booking.Booking(nil), s.bookings...),
		Stats:    s.stats,
	}
	if snap.Bookings == nil {
		snap.Bookings = []booking.Booking{}
	}
	if s.err != nil {
		snap.Error = s.err.Error()
	}
	return snap
}

func (s *State) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// LoadBookings replaces the list with the user's bookings in status (all
// when empty). The filter sticks for later reloads.
func (s *State) LoadBookings(ctx context.Context, status booking.Status) error {
	prev, userID := s.begin()

	bookings, err := s.store.List(ctx, userID, status)

	s.mu.Lock()
	if err == nil && userID == s.userID {
		s.bookings = bookings
		s.filter = status
	}
	s.finish(prev, err)
	return err
}

func (s *State) LoadStats(ctx context.Context) error {
	prev, userID := s.begin()

	stats, err := s.store.Stats(ctx, userID)

	s.mu.Lock()
	if err == nil && userID == s.userID {
		s.stats = stats
	}
	s.finish(prev, err)
	return err
}

// Reload fetches list and stats under the current filter.
func (s *State) Reload(ctx context.Context) error {
	s.mu.Lock()
	filter := s.filter
	s.mu.Unlock()

	if err := s.LoadBookings(ctx, filter); err != nil {
		return err
	}
	return s.LoadStats(ctx)
}

func (s *State) CreateBooking(ctx context.Context, req booking.CreateRequest) (booking.Booking, error) {
	prev, userID := s.begin()
	b, err := s.store.Create(ctx, userID, req)
	if err != nil {
		s.mu.Lock()
		s.finish(prev, err)
		return booking.Booking{}, err
	}
	return b, s.Reload(ctx)
}

func (s *State) UpdateBooking(ctx context.Context, id string, patch booking.Patch) (booking.Booking, error) {
	prev, userID := s.begin()
	b, err := s.store.Update(ctx, userID, id, patch)
	if err != nil {
		s.mu.Lock()
		s.finish(prev, err)
		return booking.Booking{}, err
	}
	return b, s.Reload(ctx)
}

func (s *State) DeleteBooking(ctx context.Context, id string) error {
	prev, userID := s.begin()
	if err := s.store.Delete(ctx, userID, id); err != nil {
		s.mu.Lock()
		s.finish(prev, err)
		return err
	}
	return s.Reload(ctx)
}

// Apply folds one change event into the list by booking id: unknown ids are
// appended, known ids replaced, deletes removed. Events for other tables or
// users are ignored. Apply leaves stats alone; the subscription refetches
// them once a burst of applied events has been folded in.
func (s *State) Apply(ev stream.ChangeEvent) bool {
	if ev.Table != booking.Table {
		return false
	}
	var b booking.Booking
	if err := json.Unmarshal(ev.Record, &b); err != nil || b.ID == "" {
		s.logger.WithError(err).Warn("dashboard: ignoring undecodable booking event")
		return false
	}

	s.mu.Lock()
	if ev.UserID != s.userID {
		s.mu.Unlock()
		return false
	}

	idx := -1
	for i := range s.bookings {
		if s.bookings[i].ID == b.ID {
			idx = i
			break
		}
	}

	keep := ev.Type != stream.EventDelete && (s.filter == "" || b.Status == s.filter)
	switch {
	case !keep && idx >= 0:
		s.bookings = append(s.bookings[:idx], s.bookings[idx+1:]...)
	case keep && idx >= 0:
		s.bookings[idx] = b
	case keep:
		s.bookings = append(s.bookings, b)
	}
	s.unlockAndNotify()
	return true
}

// Subscribe starts folding hub events for the current user into the state.
// Calling it again replaces the previous subscription.
func (s *State) Subscribe() {
	s.Unsubscribe()

	s.mu.Lock()
	client := s.hub.Register(stream.UserTopic(s.userID))
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	s.sub = client
	s.subDone = done
	s.subCancel = cancel
	s.mu.Unlock()

	go func() {
		defer close(done)
		s.consume(ctx, client.Send)
	}()
}

// consume applies queued events and then refetches stats once, so a burst of
// changes costs a single Stats call.
func (s *State) consume(ctx context.Context, send <-chan []byte) {
	for msg := range send {
		applied := s.applyMessage(msg)
	drain:
		for {
			select {
			case next, ok := <-send:
				if !ok {
					break drain
				}
				applied = s.applyMessage(next) || applied
			default:
				break drain
			}
		}
		if applied && ctx.Err() == nil {
			if err := s.LoadStats(ctx); err != nil {
				s.logger.WithError(err).Warn("dashboard: stats refresh after realtime event failed")
			}
		}
	}
}

func (s *State) applyMessage(msg []byte) bool {
	var ev stream.ChangeEvent
	if err := json.Unmarshal(msg, &ev); err != nil {
		return false
	}
	return s.Apply(ev)
}

// Unsubscribe stops realtime updates and waits for the consumer to exit.
func (s *State) Unsubscribe() {
	s.mu.Lock()
	client, done, cancel := s.sub, s.subDone, s.subCancel
	s.sub, s.subDone, s.subCancel = nil, nil, nil
	s.mu.Unlock()

	if client == nil {
		return
	}
	cancel()
	s.hub.Unregister(client)
	<-done
}

// SetUser switches the state to another user: the old subscription is
// dropped, loaded data cleared and a new subscription opened.
func (s *State) SetUser(userID string) {
	s.Unsubscribe()

	s.mu.Lock()
	s.userID = userID
	s.filter = ""
	s.phase = PhaseIdle
	s.bookings = []booking.Booking{}
	s.stats = booking.ComputeStats(nil)
	s.err = nil
	s.unlockAndNotify()

	s.Subscribe()
}

func (s *State) Close() {
	s.Unsubscribe()
}

func (s *State) begin() (Phase, string) {
	s.mu.Lock()
	prev := s.phase
	if prev == PhaseLoading {
		prev = PhaseLoaded
		if len(s.bookings) == 0 && s.err == nil {
			prev = PhaseIdle
		}
	}
	s.phase = PhaseLoading
	userID := s.userID
	s.unlockAndNotify()
	return prev, userID
}

// finish must be called with s.mu held and releases it.
func (s *State) finish(prev Phase, err error) {
	if err != nil {
		s.err = err
		s.phase = prev
	} else {
		s.err = nil
		s.phase = PhaseLoaded
	}
	s.unlockAndNotify()
}

// unlockAndNotify releases s.mu, then runs the change callback.
func (s *State) unlockAndNotify() {
	fn := s.onChange
	s.mu.Unlock()
	if fn != nil {
		fn()
	}
}

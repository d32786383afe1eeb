package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"backend-birdtours/internal/booking"
	"backend-birdtours/internal/shared/apperr"
	"backend-birdtours/internal/stream"
)

type fakeStore struct {
	mu        sync.Mutex
	bookings  map[string][]booking.Booking
	failNext  error
	listCalls int
	statCalls int
}

func newFakeStore() *fakeStore {
	return &fakeStore{bookings: map[string][]booking.Booking{}}
}

func (f *fakeStore) takeFailure() error {
	err := f.failNext
	f.failNext = nil
	return err
}

func (f *fakeStore) List(_ context.Context, userID string, status booking.Status) ([]booking.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++
	if err := f.takeFailure(); err != nil {
		return nil, err
	}
	out := []booking.Booking{}
	for _, b := range f.bookings[userID] {
		if status == "" || b.Status == status {
			out = append(out, b)
		}
	}
	return out, nil
}

func (f *fakeStore) Stats(_ context.Context, userID string) (booking.Stats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statCalls++
	if err := f.takeFailure(); err != nil {
		return booking.Stats{}, err
	}
	return booking.ComputeStats(f.bookings[userID]), nil
}

func (f *fakeStore) Create(_ context.Context, userID string, req booking.CreateRequest) (booking.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.takeFailure(); err != nil {
		return booking.Booking{}, err
	}
	b := booking.Booking{
		ID:            "booking-new",
		UserID:        userID,
		TripID:        req.TripID,
		Status:        booking.StatusSaved,
		PaymentStatus: booking.PaymentPending,
		TotalAmount:   req.TotalAmount,
	}
	f.bookings[userID] = append(f.bookings[userID], b)
	return b, nil
}

func (f *fakeStore) Update(_ context.Context, userID, id string, patch booking.Patch) (booking.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.takeFailure(); err != nil {
		return booking.Booking{}, err
	}
	for i, b := range f.bookings[userID] {
		if b.ID == id {
			if patch.Status != nil {
				b.Status = *patch.Status
			}
			f.bookings[userID][i] = b
			return b, nil
		}
	}
	return booking.Booking{}, apperr.NotFound("")
}

func (f *fakeStore) Delete(_ context.Context, userID, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.takeFailure(); err != nil {
		return err
	}
	list := f.bookings[userID]
	for i, b := range list {
		if b.ID == id {
			f.bookings[userID] = append(list[:i], list[i+1:]...)
			return nil
		}
	}
	return apperr.NotFound("")
}

func (f *fakeStore) fail(err error) {
	f.mu.Lock()
	f.failNext = err
	f.mu.Unlock()
}

func (f *fakeStore) calls() (int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.listCalls, f.statCalls
}

func bookingEvent(t *testing.T, typ stream.EventType, userID string, b booking.Booking) stream.ChangeEvent {
	t.Helper()
	return stream.NewChangeEvent(booking.Table, typ, userID, b)
}

func TestReloadWithNoBookings(t *testing.T) {
	state := NewState(newFakeStore(), stream.NewHub(nil, nil), "user-1", nil)
	if state.Snapshot().Phase != PhaseIdle {
		t.Fatalf("expected idle before load")
	}

	if err := state.Reload(context.Background()); err != nil {
		t.Fatalf("reload: %v", err)
	}
	snap := state.Snapshot()
	if snap.Phase != PhaseLoaded || snap.Error != "" {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
	if snap.Bookings == nil || len(snap.Bookings) != 0 {
		t.Fatalf("expected empty bookings, got %v", snap.Bookings)
	}
	if snap.Stats.Total != 0 || snap.Stats.TotalSpent != 0 || snap.Stats.ByStatus[booking.StatusSaved] != 0 {
		t.Fatalf("expected zero stats, got %+v", snap.Stats)
	}
}

func TestFailureKeepsLoadedData(t *testing.T) {
	store := newFakeStore()
	store.bookings["user-1"] = []booking.Booking{{ID: "b1", UserID: "user-1", Status: booking.StatusInquiry, TotalAmount: 900}}

	state := NewState(store, stream.NewHub(nil, nil), "user-1", nil)
	if err := state.Reload(context.Background()); err != nil {
		t.Fatalf("reload: %v", err)
	}

	store.fail(apperr.Normalize(errors.New("fetch failed")))
	if err := state.LoadBookings(context.Background(), ""); err == nil {
		t.Fatalf("expected load failure")
	}

	snap := state.Snapshot()
	if snap.Error == "" || state.Err() == nil {
		t.Fatalf("expected error to be recorded")
	}
	if len(snap.Bookings) != 1 || snap.Phase != PhaseLoaded {
		t.Fatalf("expected stale data to be kept, got %+v", snap)
	}
	if snap.Stats.TotalSpent != 900 {
		t.Fatalf("expected stats to be kept, got %+v", snap.Stats)
	}

	if err := state.Reload(context.Background()); err != nil || state.Err() != nil {
		t.Fatalf("expected successful reload to clear error: %v", err)
	}
}

func TestMutationsRefetchListAndStats(t *testing.T) {
	store := newFakeStore()
	state := NewState(store, stream.NewHub(nil, nil), "user-1", nil)

	b, err := state.CreateBooking(context.Background(), booking.CreateRequest{TripID: "trip-1", TotalAmount: 1200})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	lists, stats := store.calls()
	if lists != 1 || stats != 1 {
		t.Fatalf("expected one list and one stats fetch, got %d/%d", lists, stats)
	}
	snap := state.Snapshot()
	if len(snap.Bookings) != 1 || snap.Stats.TotalSpent != 1200 {
		t.Fatalf("unexpected snapshot after create %+v", snap)
	}

	cancelled := booking.StatusCancelled
	if _, err := state.UpdateBooking(context.Background(), b.ID, booking.Patch{Status: &cancelled}); err != nil {
		t.Fatalf("update: %v", err)
	}
	if state.Snapshot().Stats.TotalSpent != 0 {
		t.Fatalf("expected cancelled booking to drop out of spend")
	}

	if err := state.DeleteBooking(context.Background(), b.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	lists, stats = store.calls()
	if lists != 3 || stats != 3 {
		t.Fatalf("expected a refetch per mutation, got %d/%d", lists, stats)
	}

	if err := state.DeleteBooking(context.Background(), "missing"); !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if state.Snapshot().Error == "" {
		t.Fatalf("expected failed mutation to record error")
	}
}

func TestApplyUpsertsById(t *testing.T) {
	state := NewState(newFakeStore(), stream.NewHub(nil, nil), "user-1", nil)

	b := booking.Booking{ID: "b1", UserID: "user-1", Status: booking.StatusSaved}
	if !state.Apply(bookingEvent(t, stream.EventInsert, "user-1", b)) {
		t.Fatalf("expected event to apply")
	}
	if got := state.Snapshot().Bookings; len(got) != 1 || got[0].ID != "b1" {
		t.Fatalf("expected unknown id to be appended, got %v", got)
	}

	b.Status = booking.StatusInquiry
	state.Apply(bookingEvent(t, stream.EventUpdate, "user-1", b))
	if got := state.Snapshot().Bookings; len(got) != 1 || got[0].Status != booking.StatusInquiry {
		t.Fatalf("expected known id to be replaced, got %v", got)
	}

	if state.Apply(bookingEvent(t, stream.EventInsert, "user-2", booking.Booking{ID: "b2"})) {
		t.Fatalf("expected other user's event to be ignored")
	}
	if state.Apply(stream.NewChangeEvent("chat_messages", stream.EventInsert, "user-1", map[string]string{"id": "m1"})) {
		t.Fatalf("expected other tables to be ignored")
	}

	state.Apply(bookingEvent(t, stream.EventDelete, "user-1", b))
	if got := state.Snapshot().Bookings; len(got) != 0 {
		t.Fatalf("expected delete to remove booking, got %v", got)
	}
}

func TestApplyDecodesTriggerPayload(t *testing.T) {
	state := NewState(newFakeStore(), stream.NewHub(nil, nil), "user-1", nil)

	ev := stream.ChangeEvent{
		Table:  booking.Table,
		Type:   stream.EventInsert,
		UserID: "user-1",
		Record: json.RawMessage(`{"id":"b-9","user_id":"user-1","trip_id":"trip-1","reference_number":null,` +
			`"status":"saved","payment_status":"pending","participants":2,"total_amount":1200.5,` +
			`"departure_date":"2025-05-01","return_date":"2025-05-08","special_requests":null,` +
			`"created_at":"2026-05-01T09:00:00.123456+00:00","updated_at":"2026-05-01T09:00:00.123456+00:00"}`),
	}
	if !state.Apply(ev) {
		t.Fatalf("expected row_to_json payload to apply")
	}
	got := state.Snapshot().Bookings
	if len(got) != 1 || got[0].DepartureDate == nil || got[0].DepartureDate.String() != "2025-05-01" {
		t.Fatalf("unexpected bookings %+v", got)
	}
	if got[0].ReturnDate == nil || got[0].ReturnDate.String() != "2025-05-08" {
		t.Fatalf("unexpected return date %v", got[0].ReturnDate)
	}
}

func TestApplyRespectsFilter(t *testing.T) {
	state := NewState(newFakeStore(), stream.NewHub(nil, nil), "user-1", nil)
	if err := state.LoadBookings(context.Background(), booking.StatusInquiry); err != nil {
		t.Fatalf("load: %v", err)
	}

	state.Apply(bookingEvent(t, stream.EventInsert, "user-1", booking.Booking{ID: "b1", Status: booking.StatusSaved}))
	if len(state.Snapshot().Bookings) != 0 {
		t.Fatalf("expected booking outside filter to be skipped")
	}

	state.Apply(bookingEvent(t, stream.EventUpdate, "user-1", booking.Booking{ID: "b1", Status: booking.StatusInquiry}))
	state.Apply(bookingEvent(t, stream.EventUpdate, "user-1", booking.Booking{ID: "b1", Status: booking.StatusConfirmed}))
	if len(state.Snapshot().Bookings) != 0 {
		t.Fatalf("expected booking leaving the filter to be removed")
	}
}

func TestSubscribeAppliesHubEvents(t *testing.T) {
	hub := stream.NewHub(nil, nil)
	state := NewState(newFakeStore(), hub, "user-1", nil)

	changed := make(chan struct{}, 8)
	state.OnChange(func() {
		select {
		case changed <- struct{}{}:
		default:
		}
	})
	state.Subscribe()
	defer state.Close()

	if hub.Subscribers(stream.UserTopic("user-1")) != 1 {
		t.Fatalf("expected subscription on user topic")
	}

	hub.PublishEvent(context.Background(), bookingEvent(t, stream.EventInsert, "user-1", booking.Booking{ID: "b9", Status: booking.StatusSaved}))

	deadline := time.After(2 * time.Second)
	for len(state.Snapshot().Bookings) == 0 {
		select {
		case <-changed:
		case <-deadline:
			t.Fatalf("timed out waiting for realtime event")
		}
	}
}

func TestSubscribeRefreshesStats(t *testing.T) {
	store := newFakeStore()
	hub := stream.NewHub(nil, nil)
	state := NewState(store, hub, "user-1", nil)
	if err := state.Reload(context.Background()); err != nil {
		t.Fatalf("reload: %v", err)
	}
	state.Subscribe()
	defer state.Close()

	b := booking.Booking{ID: "b1", UserID: "user-1", Status: booking.StatusConfirmed, TotalAmount: 750}
	store.mu.Lock()
	store.bookings["user-1"] = []booking.Booking{b}
	store.mu.Unlock()
	hub.PublishEvent(context.Background(), bookingEvent(t, stream.EventInsert, "user-1", b))

	deadline := time.Now().Add(2 * time.Second)
	for state.Snapshot().Stats.TotalSpent != 750 {
		if time.Now().After(deadline) {
			t.Fatalf("expected stats refetch after event, got %+v", state.Snapshot().Stats)
		}
		time.Sleep(10 * time.Millisecond)
	}
	if len(state.Snapshot().Bookings) != 1 {
		t.Fatalf("expected event applied to list")
	}

	_, statsBefore := store.calls()
	hub.PublishEvent(context.Background(), stream.NewChangeEvent("chat_messages", stream.EventInsert, "user-1", map[string]string{"id": "m1"}))
	time.Sleep(50 * time.Millisecond)
	if _, stats := store.calls(); stats != statsBefore {
		t.Fatalf("expected ignored events not to refetch stats")
	}
}

func TestSetUserResubscribes(t *testing.T) {
	hub := stream.NewHub(nil, nil)
	state := NewState(newFakeStore(), hub, "user-1", nil)
	state.Subscribe()
	state.Apply(bookingEvent(t, stream.EventInsert, "user-1", booking.Booking{ID: "b1"}))

	state.SetUser("user-2")
	defer state.Close()

	if hub.Subscribers(stream.UserTopic("user-1")) != 0 || hub.Subscribers(stream.UserTopic("user-2")) != 1 {
		t.Fatalf("expected subscription to move to the new user")
	}
	snap := state.Snapshot()
	if snap.UserID != "user-2" || len(snap.Bookings) != 0 || snap.Phase != PhaseIdle {
		t.Fatalf("expected cleared state for new user, got %+v", snap)
	}

	state.Close()
	if hub.Subscribers(stream.UserTopic("user-2")) != 0 {
		t.Fatalf("expected close to unsubscribe")
	}
}

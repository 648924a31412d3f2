package application

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/example/room-reservation/internal/events"
	"github.com/example/room-reservation/internal/interval"
	"github.com/example/room-reservation/internal/persistence"
	"github.com/example/room-reservation/internal/testfixtures"
)

type publisherStub struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *publisherStub) Publish(_ context.Context, event events.Event) {
	p.mu.Lock()
	p.events = append(p.events, event)
	p.mu.Unlock()
}

func (p *publisherStub) byType(typ events.Type) []events.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	var matched []events.Event
	for _, event := range p.events {
		if event.Type == typ {
			matched = append(matched, event)
		}
	}
	return matched
}

type bookingHarness struct {
	store     *testfixtures.MemStore
	clock     *testfixtures.Clock
	publisher *publisherStub
	service   *BookingService
	room      persistence.Room
	requester persistence.User
}

func newBookingHarness(t *testing.T) *bookingHarness {
	t.Helper()

	store := testfixtures.NewMemStore()
	room := testfixtures.NewRoomFixture()
	requester := testfixtures.NewUserFixture()
	store.AddRoom(room)
	store.AddUser(requester)

	clock := testfixtures.NewClock(time.Time{})
	publisher := &publisherStub{}
	ids := testfixtures.NewIDGenerator("resv")

	service := NewBookingService(store, store, store, publisher,
		ids.NextFunc(), clock.NowFunc(), 30*time.Minute, nil)

	return &bookingHarness{
		store:     store,
		clock:     clock,
		publisher: publisher,
		service:   service,
		room:      room,
		requester: requester,
	}
}

func (h *bookingHarness) window(startOffset, length time.Duration) (time.Time, time.Time) {
	start := h.clock.Now().Add(startOffset)
	return start, start.Add(length)
}

func TestBookingService_CreateReservation_InsertsPending(t *testing.T) {
	t.Parallel()

	h := newBookingHarness(t)
	start, end := h.window(time.Hour, time.Hour)

	reservation, err := h.service.CreateReservation(context.Background(), CreateReservationParams{
		Principal: Principal{UserID: h.requester.ID},
		Input: ReservationInput{
			RoomID:           h.room.ID,
			Start:            start,
			End:              end,
			Purpose:          "  design review  ",
			ParticipantCount: 4,
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if reservation.Status != persistence.StatusPending {
		t.Fatalf("expected pending status, got %s", reservation.Status)
	}
	if reservation.Purpose != "design review" {
		t.Fatalf("expected trimmed purpose, got %q", reservation.Purpose)
	}

	stored, err := h.store.GetReservation(context.Background(), reservation.ID)
	if err != nil {
		t.Fatalf("reservation not persisted: %v", err)
	}
	if stored.RequesterID != h.requester.ID {
		t.Fatalf("unexpected requester %q", stored.RequesterID)
	}

	created := h.publisher.byType(events.TypeReservationCreated)
	if len(created) != 1 {
		t.Fatalf("expected one created event, got %d", len(created))
	}
	if created[0].Reservation.ID != reservation.ID {
		t.Fatalf("event references wrong reservation %q", created[0].Reservation.ID)
	}
}

func TestBookingService_CreateReservation_RejectsOverlap(t *testing.T) {
	t.Parallel()

	h := newBookingHarness(t)
	start, end := h.window(time.Hour, time.Hour)

	params := CreateReservationParams{
		Principal: Principal{UserID: h.requester.ID},
		Input:     ReservationInput{RoomID: h.room.ID, Start: start, End: end},
	}
	if _, err := h.service.CreateReservation(context.Background(), params); err != nil {
		t.Fatalf("first reservation failed: %v", err)
	}

	// Shifted but overlapping window for the same room.
	params.Input.Start = start.Add(30 * time.Minute)
	params.Input.End = end.Add(30 * time.Minute)
	_, err := h.service.CreateReservation(context.Background(), params)
	if !errors.Is(err, ErrSlotTaken) {
		t.Fatalf("expected ErrSlotTaken, got %v", err)
	}
}

func TestBookingService_CreateReservation_AllowsTouchingWindows(t *testing.T) {
	t.Parallel()

	h := newBookingHarness(t)
	start, end := h.window(time.Hour, time.Hour)

	params := CreateReservationParams{
		Principal: Principal{UserID: h.requester.ID},
		Input:     ReservationInput{RoomID: h.room.ID, Start: start, End: end},
	}
	if _, err := h.service.CreateReservation(context.Background(), params); err != nil {
		t.Fatalf("first reservation failed: %v", err)
	}

	// A window starting exactly where the first ends must be accepted.
	params.Input.Start = end
	params.Input.End = end.Add(time.Hour)
	if _, err := h.service.CreateReservation(context.Background(), params); err != nil {
		t.Fatalf("touching window rejected: %v", err)
	}
}

func TestBookingService_CreateReservation_ValidatesWindow(t *testing.T) {
	t.Parallel()

	h := newBookingHarness(t)
	now := h.clock.Now()

	cases := []struct {
		name  string
		start time.Time
		end   time.Time
		kind  interval.Kind
	}{
		{"inverted", now.Add(2 * time.Hour), now.Add(time.Hour), interval.KindInverted},
		{"too short", now.Add(time.Hour), now.Add(time.Hour + 15*time.Minute), interval.KindTooShort},
		{"in the past", now.Add(-time.Hour), now.Add(time.Hour), interval.KindInThePast},
		{"malformed", time.Time{}, now.Add(time.Hour), interval.KindMalformed},
	}

	for _, tc := range cases {
		_, err := h.service.CreateReservation(context.Background(), CreateReservationParams{
			Principal: Principal{UserID: h.requester.ID},
			Input:     ReservationInput{RoomID: h.room.ID, Start: tc.start, End: tc.end},
		})
		if interval.KindOf(err) != tc.kind {
			t.Fatalf("%s: expected %s, got %v", tc.name, tc.kind, err)
		}
	}
}

func TestBookingService_CreateReservation_RejectsUnknownReferences(t *testing.T) {
	t.Parallel()

	h := newBookingHarness(t)
	start, end := h.window(time.Hour, time.Hour)

	_, err := h.service.CreateReservation(context.Background(), CreateReservationParams{
		Principal: Principal{UserID: h.requester.ID},
		Input:     ReservationInput{RoomID: "no-such-room", Start: start, End: end},
	})
	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected ValidationError for unknown room, got %v", err)
	}
	if _, ok := vErr.FieldErrors["room_id"]; !ok {
		t.Fatalf("expected room_id field error, got %v", vErr.FieldErrors)
	}

	_, err = h.service.CreateReservation(context.Background(), CreateReservationParams{
		Principal: Principal{UserID: "no-such-user"},
		Input:     ReservationInput{RoomID: h.room.ID, Start: start, End: end},
	})
	if !errors.As(err, &vErr) {
		t.Fatalf("expected ValidationError for unknown requester, got %v", err)
	}
	if _, ok := vErr.FieldErrors["requester_id"]; !ok {
		t.Fatalf("expected requester_id field error, got %v", vErr.FieldErrors)
	}
}

func TestBookingService_CreateBatch_ExpandsSlotsAcrossDates(t *testing.T) {
	t.Parallel()

	h := newBookingHarness(t)
	from := h.clock.Now().AddDate(0, 0, 1)
	to := from.AddDate(0, 0, 2)

	created, err := h.service.CreateBatch(context.Background(), CreateBatchParams{
		Principal: Principal{UserID: h.requester.ID},
		Input: BatchInput{
			RoomID:   h.room.ID,
			Slots:    []Slot{{Start: "09:00", End: "10:00"}, {Start: "14:00", End: "15:30"}},
			FromDate: from,
			ToDate:   to,
			Purpose:  "training",
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(created) != 6 {
		t.Fatalf("expected 6 reservations (2 slots x 3 days), got %d", len(created))
	}

	groupID := created[0].GroupID
	if groupID == nil {
		t.Fatal("expected group id on batch members")
	}
	for _, reservation := range created {
		if reservation.GroupID == nil || *reservation.GroupID != *groupID {
			t.Fatal("all batch members must share the group id")
		}
		if reservation.Status != persistence.StatusPending {
			t.Fatalf("expected pending member, got %s", reservation.Status)
		}
	}

	stored, err := h.store.ListReservations(context.Background(),
		persistence.ReservationFilter{GroupID: *groupID})
	if err != nil {
		t.Fatalf("listing group failed: %v", err)
	}
	if len(stored) != 6 {
		t.Fatalf("expected 6 persisted members, got %d", len(stored))
	}

	if got := len(h.publisher.byType(events.TypeReservationCreated)); got != 6 {
		t.Fatalf("expected 6 created events, got %d", got)
	}
}

func TestBookingService_CreateBatch_IsAtomicOnConflict(t *testing.T) {
	t.Parallel()

	h := newBookingHarness(t)
	from := h.clock.Now().AddDate(0, 0, 1)
	to := from.AddDate(0, 0, 4)

	// Occupy one slot in the middle of the range.
	day3 := from.AddDate(0, 0, 2)
	blocker := testfixtures.NewReservationFixture(h.room.ID, h.requester.ID,
		testfixtures.WithWindow(
			time.Date(day3.Year(), day3.Month(), day3.Day(), 9, 30, 0, 0, day3.Location()),
			time.Date(day3.Year(), day3.Month(), day3.Day(), 10, 30, 0, 0, day3.Location()),
		))
	h.store.AddReservation(blocker)

	_, err := h.service.CreateBatch(context.Background(), CreateBatchParams{
		Principal: Principal{UserID: h.requester.ID},
		Input: BatchInput{
			RoomID:   h.room.ID,
			Slots:    []Slot{{Start: "09:00", End: "10:00"}},
			FromDate: from,
			ToDate:   to,
		},
	})
	if !errors.Is(err, ErrSlotTaken) {
		t.Fatalf("expected ErrSlotTaken, got %v", err)
	}

	// Nothing from the batch may have been inserted.
	all, err := h.store.ListReservations(context.Background(),
		persistence.ReservationFilter{RoomID: h.room.ID})
	if err != nil {
		t.Fatalf("listing failed: %v", err)
	}
	if len(all) != 1 || all[0].ID != blocker.ID {
		t.Fatalf("expected only the blocker to remain, got %d reservations", len(all))
	}
	if got := len(h.publisher.byType(events.TypeReservationCreated)); got != 0 {
		t.Fatalf("expected no created events, got %d", got)
	}
}

func TestBookingService_CreateBatch_RejectsOversizedRange(t *testing.T) {
	t.Parallel()

	h := newBookingHarness(t)
	from := h.clock.Now().AddDate(0, 0, 1)

	_, err := h.service.CreateBatch(context.Background(), CreateBatchParams{
		Principal: Principal{UserID: h.requester.ID},
		Input: BatchInput{
			RoomID:   h.room.ID,
			Slots:    []Slot{{Start: "09:00", End: "10:00"}},
			FromDate: from,
			ToDate:   from.AddDate(0, 0, maxBatchDays),
		},
	})
	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if _, ok := vErr.FieldErrors["dates"]; !ok {
		t.Fatalf("expected dates field error, got %v", vErr.FieldErrors)
	}
}

func TestBookingService_CreateBatch_RejectsMalformedSlots(t *testing.T) {
	t.Parallel()

	h := newBookingHarness(t)
	from := h.clock.Now().AddDate(0, 0, 1)

	_, err := h.service.CreateBatch(context.Background(), CreateBatchParams{
		Principal: Principal{UserID: h.requester.ID},
		Input: BatchInput{
			RoomID:   h.room.ID,
			Slots:    []Slot{{Start: "9 am", End: "10:00"}},
			FromDate: from,
			ToDate:   from,
		},
	})
	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if _, ok := vErr.FieldErrors["slots[0]"]; !ok {
		t.Fatalf("expected slots[0] field error, got %v", vErr.FieldErrors)
	}
}

func TestBookingService_CreateBatch_RejectsOverlappingSlots(t *testing.T) {
	t.Parallel()

	h := newBookingHarness(t)
	from := h.clock.Now().AddDate(0, 0, 1)

	_, err := h.service.CreateBatch(context.Background(), CreateBatchParams{
		Principal: Principal{UserID: h.requester.ID},
		Input: BatchInput{
			RoomID:   h.room.ID,
			Slots:    []Slot{{Start: "09:00", End: "10:00"}, {Start: "09:30", End: "10:30"}},
			FromDate: from,
			ToDate:   from,
		},
	})
	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if _, ok := vErr.FieldErrors["slots"]; !ok {
		t.Fatalf("expected slots field error, got %v", vErr.FieldErrors)
	}
}

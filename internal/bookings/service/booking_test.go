package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	bookingserrors "hallbook/internal/bookings/errors"
	"hallbook/internal/bookings/validator"
	"hallbook/pkg/auth"
	apperrors "hallbook/pkg/errors"
	"hallbook/pkg/model"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

func assertCode(t *testing.T, err error, code string) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s error, got nil", code)
	}
	if got := apperrors.AsAppError(err).Code; got != code {
		t.Fatalf("expected code %s, got %s (%v)", code, got, err)
	}
}

// staleBookings overrides single repository calls on top of the in-memory store.
type staleBookings struct {
	memBookings
	findByID     func(ctx context.Context, id string) (*model.Booking, error)
	updateStatus func(ctx context.Context, id string, from, to model.BookingStatus, paid bool, at time.Time) error
}

func (r staleBookings) FindByID(ctx context.Context, id string) (*model.Booking, error) {
	if r.findByID != nil {
		return r.findByID(ctx, id)
	}
	return r.memBookings.FindByID(ctx, id)
}

func (r staleBookings) UpdateStatus(ctx context.Context, id string, from, to model.BookingStatus, paid bool, at time.Time) error {
	if r.updateStatus != nil {
		return r.updateStatus(ctx, id, from, to, paid, at)
	}
	return r.memBookings.UpdateStatus(ctx, id, from, to, paid, at)
}

func (f *fixture) withBookings(t *testing.T, repo staleBookings) BookingService {
	t.Helper()
	v := validator.NewBookingValidator(f.cfg.Location, f.cfg.Log)
	svc := NewBookingService(repo, memHalls{f.store}, memUsers{f.store}, v, f.notifier, f.cfg).(*bookingService)
	svc.now = func() time.Time { return time.Date(2025, 11, 21, 9, 0, 0, 0, time.UTC) }
	return svc
}

// ────────────────────────────────────────────────
// Create
// ────────────────────────────────────────────────

func TestCreate_Success(t *testing.T) {
	f := newFixture(t)

	b := f.book(t, f.consumerPrincipal(), f.hall.ID, "2025-12-01")

	if b.ID == "" {
		t.Fatal("expected booking id")
	}
	if b.Status != model.BookingStatusShortlisted {
		t.Errorf("expected shortlisted, got %s", b.Status)
	}
	if b.Day != "2025-12-01" {
		t.Errorf("expected day 2025-12-01, got %s", b.Day)
	}
	if b.PaymentAcknowledged {
		t.Error("new booking must not be payment acknowledged")
	}
	want := time.Date(2025, 12, 1, 0, 0, 0, 0, f.cfg.Location)
	if !b.Date.Equal(want) {
		t.Errorf("expected date %v, got %v", want, b.Date)
	}
	if len(f.store.bookedDates(f.hall.ID)) != 0 {
		t.Error("shortlisting must not touch the hall calendar")
	}

	sent := f.notifier.all()
	if len(sent) != 1 {
		t.Fatalf("expected 1 notification, got %d", len(sent))
	}
	n := sent[0]
	if n.To != f.owner.Email || n.Kind != model.NotificationBookingCreated {
		t.Errorf("unexpected notification %+v", n)
	}
	if n.Data.ActionURL != "https://hallbook.test/confirm-booking" {
		t.Errorf("unexpected action url %q", n.Data.ActionURL)
	}
	if n.Data.ConsumerName != "consumer" || n.Data.OwnerName != "owner" || n.Data.HallName != f.hall.Name {
		t.Errorf("unexpected notification data %+v", n.Data)
	}
}

func TestCreate_AcceptsRFC3339Date(t *testing.T) {
	f := newFixture(t)

	b := f.book(t, f.consumerPrincipal(), f.hall.ID, "2025-12-01T15:30:00+05:30")
	if b.Day != "2025-12-01" {
		t.Errorf("expected day 2025-12-01, got %s", b.Day)
	}
}

func TestCreate_Errors(t *testing.T) {
	tests := []struct {
		name      string
		principal func(f *fixture) auth.Principal
		hallID    func(f *fixture) string
		date      string
		code      string
	}{
		{
			name:      "owner cannot book",
			principal: (*fixture).ownerPrincipal,
			hallID:    func(f *fixture) string { return f.hall.ID },
			date:      "2025-12-01",
			code:      apperrors.CodeForbidden,
		},
		{
			name:      "missing date",
			principal: (*fixture).consumerPrincipal,
			hallID:    func(f *fixture) string { return f.hall.ID },
			date:      "",
			code:      apperrors.CodeValidation,
		},
		{
			name:      "garbage date",
			principal: (*fixture).consumerPrincipal,
			hallID:    func(f *fixture) string { return f.hall.ID },
			date:      "next tuesday",
			code:      apperrors.CodeValidation,
		},
		{
			name:      "malformed hall id",
			principal: (*fixture).consumerPrincipal,
			hallID:    func(*fixture) string { return "hall-1" },
			date:      "2025-12-01",
			code:      apperrors.CodeValidation,
		},
		{
			name:      "unknown hall",
			principal: (*fixture).consumerPrincipal,
			hallID:    func(*fixture) string { return primitive.NewObjectID().Hex() },
			date:      "2025-12-01",
			code:      apperrors.CodeNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			_, err := f.svc.Create(context.Background(), tt.principal(f), &model.CreateBookingRequest{
				HallID: tt.hallID(f),
				Date:   tt.date,
			})
			assertCode(t, err, tt.code)
			if len(f.notifier.all()) != 0 {
				t.Error("failed create must not notify")
			}
		})
	}
}

func TestCreate_DatesAreNotCheckedAgainstTodayByDefault(t *testing.T) {
	for _, date := range []string{"2025-12-01", "2020-01-15"} {
		t.Run(date, func(t *testing.T) {
			f := newFixture(t)
			b := f.book(t, f.consumerPrincipal(), f.hall.ID, date)
			if b.Day != date || b.Status != model.BookingStatusShortlisted {
				t.Errorf("unexpected booking %+v", b)
			}
		})
	}
}

func TestCreate_RejectPastDatesWhenEnabled(t *testing.T) {
	f := newFixture(t)
	v := validator.NewBookingValidator(f.cfg.Location, f.cfg.Log)
	v.RejectPastDates(true)
	v.SetNow(func() time.Time { return time.Date(2025, 11, 20, 12, 0, 0, 0, f.cfg.Location) })
	svc := NewBookingService(memBookings{f.store}, memHalls{f.store}, memUsers{f.store}, v, f.notifier, f.cfg)

	_, err := svc.Create(context.Background(), f.consumerPrincipal(), &model.CreateBookingRequest{HallID: f.hall.ID, Date: "2025-11-19"})
	assertCode(t, err, apperrors.CodeValidation)

	if _, err := svc.Create(context.Background(), f.consumerPrincipal(), &model.CreateBookingRequest{HallID: f.hall.ID, Date: "2025-11-20"}); err != nil {
		t.Fatalf("today should be bookable: %v", err)
	}
}

func TestCreate_SameDayConflict(t *testing.T) {
	f := newFixture(t)
	other := f.store.addUser("second", auth.RoleConsumer)

	f.book(t, f.consumerPrincipal(), f.hall.ID, "2025-12-01")

	_, err := f.svc.Create(context.Background(), auth.Principal{UserID: other.ID, Role: auth.RoleConsumer},
		&model.CreateBookingRequest{HallID: f.hall.ID, Date: "2025-12-01T20:00:00+05:30"})
	assertCode(t, err, apperrors.CodeConflict)
	if got := apperrors.AsAppError(err).Details["day"]; got != "2025-12-01" {
		t.Errorf("expected day detail, got %v", got)
	}

	// a different day on the same hall is free
	f.book(t, auth.Principal{UserID: other.ID, Role: auth.RoleConsumer}, f.hall.ID, "2025-12-02")
}

func TestCreate_ConcurrentRequestsYieldOneBooking(t *testing.T) {
	f := newFixture(t)
	const workers = 8

	consumers := make([]auth.Principal, workers)
	for i := range consumers {
		u := f.store.addUser("c", auth.RoleConsumer)
		consumers[i] = auth.Principal{UserID: u.ID, Role: auth.RoleConsumer}
	}

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		conflicts int
	)
	start := make(chan struct{})
	for _, p := range consumers {
		wg.Add(1)
		go func(p auth.Principal) {
			defer wg.Done()
			<-start
			_, err := f.svc.Create(context.Background(), p, &model.CreateBookingRequest{HallID: f.hall.ID, Date: "2025-12-01"})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case apperrors.HasCode(err, apperrors.CodeConflict):
				conflicts++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(p)
	}
	close(start)
	wg.Wait()

	if successes != 1 || conflicts != workers-1 {
		t.Fatalf("expected 1 success and %d conflicts, got %d and %d", workers-1, successes, conflicts)
	}
}

// ────────────────────────────────────────────────
// Decide
// ────────────────────────────────────────────────

func TestDecide_ConfirmAddsDateOnce(t *testing.T) {
	f := newFixture(t)
	b := f.book(t, f.consumerPrincipal(), f.hall.ID, "2025-12-01")
	ctx := context.Background()

	first, err := f.svc.Decide(ctx, f.ownerPrincipal(), b.ID, &model.DecideRequest{PaymentReceived: boolPtr(true)})
	if err != nil {
		t.Fatalf("Decide: %v", err)
	}
	if !first.Changed || first.Booking.Status != model.BookingStatusConfirmed || !first.Booking.PaymentAcknowledged {
		t.Fatalf("unexpected decision %+v", first)
	}
	if first.Message != "Booking confirmed and date added to the hall calendar" {
		t.Errorf("unexpected message %q", first.Message)
	}

	second, err := f.svc.Decide(ctx, f.ownerPrincipal(), b.ID, &model.DecideRequest{PaymentReceived: boolPtr(true)})
	if err != nil {
		t.Fatalf("repeat Decide: %v", err)
	}
	if second.Changed || second.Message != "Booking already confirmed" {
		t.Errorf("unexpected repeat decision %+v", second)
	}

	dates := f.store.bookedDates(f.hall.ID)
	if len(dates) != 1 {
		t.Fatalf("expected date once, got %v", dates)
	}
	if !dates[0].Equal(time.Date(2025, 12, 1, 0, 0, 0, 0, f.cfg.Location)) {
		t.Errorf("unexpected booked date %v", dates[0])
	}

	stored := f.store.booking(b.ID)
	if !stored.UpdatedAt.Equal(time.Date(2025, 11, 21, 9, 0, 0, 0, time.UTC)) {
		t.Errorf("expected updatedAt from the decision clock, got %v", stored.UpdatedAt)
	}

	sent := f.notifier.all()
	if len(sent) != 3 {
		t.Fatalf("expected create + 2 decision notifications, got %d", len(sent))
	}
	for _, n := range sent[1:] {
		if n.Kind != model.NotificationBookingConfirmed || n.To != f.consumer.Email {
			t.Errorf("unexpected notification %+v", n)
		}
		if n.Data.ActionURL != "https://api.hallbook.test/booking/"+b.ID+"/receipt" {
			t.Errorf("unexpected receipt url %q", n.Data.ActionURL)
		}
	}
}

func TestDecide_RejectLeavesCalendarAlone(t *testing.T) {
	f := newFixture(t)
	b := f.book(t, f.consumerPrincipal(), f.hall.ID, "2025-12-01")

	d, err := f.svc.Decide(context.Background(), f.ownerPrincipal(), b.ID, &model.DecideRequest{PaymentReceived: boolPtr(false)})
	if err != nil {
		t.Fatalf("Decide: %v", err)
	}
	if d.Booking.Status != model.BookingStatusRejected || d.Booking.PaymentAcknowledged {
		t.Errorf("unexpected booking %+v", d.Booking)
	}
	if d.Message != "Booking rejected" {
		t.Errorf("unexpected message %q", d.Message)
	}
	if len(f.store.bookedDates(f.hall.ID)) != 0 {
		t.Error("rejection must not touch the hall calendar")
	}

	again, err := f.svc.Decide(context.Background(), f.ownerPrincipal(), b.ID, &model.DecideRequest{PaymentReceived: boolPtr(false)})
	if err != nil {
		t.Fatalf("repeat Decide: %v", err)
	}
	if again.Changed || again.Message != "Booking already rejected" {
		t.Errorf("unexpected repeat decision %+v", again)
	}

	last := f.notifier.all()[2]
	if last.Kind != model.NotificationBookingRejected || last.Data.ActionURL != "https://hallbook.test" {
		t.Errorf("unexpected rejection notification %+v", last)
	}
}

func TestDecide_CrossTerminalIsInvalidState(t *testing.T) {
	tests := []struct {
		name   string
		first  bool
		second bool
	}{
		{name: "confirmed then rejected", first: true, second: false},
		{name: "rejected then confirmed", first: false, second: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			b := f.book(t, f.consumerPrincipal(), f.hall.ID, "2025-12-01")
			ctx := context.Background()

			first, err := f.svc.Decide(ctx, f.ownerPrincipal(), b.ID, &model.DecideRequest{PaymentReceived: boolPtr(tt.first)})
			if err != nil {
				t.Fatalf("Decide: %v", err)
			}
			datesBefore := len(f.store.bookedDates(f.hall.ID))

			_, err = f.svc.Decide(ctx, f.ownerPrincipal(), b.ID, &model.DecideRequest{PaymentReceived: boolPtr(tt.second)})
			assertCode(t, err, apperrors.CodeInvalidState)

			if got := f.store.booking(b.ID).Status; got != first.Booking.Status {
				t.Errorf("status changed to %s", got)
			}
			if got := len(f.store.bookedDates(f.hall.ID)); got != datesBefore {
				t.Errorf("calendar changed from %d to %d entries", datesBefore, got)
			}
		})
	}
}

func TestDecide_Errors(t *testing.T) {
	f := newFixture(t)
	b := f.book(t, f.consumerPrincipal(), f.hall.ID, "2025-12-01")
	stranger := f.store.addUser("stranger", auth.RoleOwner)

	tests := []struct {
		name      string
		principal auth.Principal
		id        string
		req       *model.DecideRequest
		code      string
	}{
		{
			name:      "missing paymentReceived",
			principal: f.ownerPrincipal(),
			id:        b.ID,
			req:       &model.DecideRequest{},
			code:      apperrors.CodeInvalidInput,
		},
		{
			name:      "malformed id",
			principal: f.ownerPrincipal(),
			id:        "abc",
			req:       &model.DecideRequest{PaymentReceived: boolPtr(true)},
			code:      apperrors.CodeInvalidInput,
		},
		{
			name:      "unknown booking",
			principal: f.ownerPrincipal(),
			id:        primitive.NewObjectID().Hex(),
			req:       &model.DecideRequest{PaymentReceived: boolPtr(true)},
			code:      apperrors.CodeNotFound,
		},
		{
			name:      "owner of another hall",
			principal: auth.Principal{UserID: stranger.ID, Role: auth.RoleOwner},
			id:        b.ID,
			req:       &model.DecideRequest{PaymentReceived: boolPtr(true)},
			code:      apperrors.CodeForbidden,
		},
		{
			name:      "the consumer themselves",
			principal: f.consumerPrincipal(),
			id:        b.ID,
			req:       &model.DecideRequest{PaymentReceived: boolPtr(true)},
			code:      apperrors.CodeForbidden,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Decide(context.Background(), tt.principal, tt.id, tt.req)
			assertCode(t, err, tt.code)
		})
	}

	if got := f.store.booking(b.ID); got.Status != model.BookingStatusShortlisted || got.PaymentAcknowledged {
		t.Errorf("failed decisions changed the booking: %+v", got)
	}
	if len(f.store.bookedDates(f.hall.ID)) != 0 {
		t.Error("failed decisions changed the calendar")
	}
}

func TestDecide_ConfirmBlocksLaterBookings(t *testing.T) {
	f := newFixture(t)
	b := f.book(t, f.consumerPrincipal(), f.hall.ID, "2025-12-01")

	if _, err := f.svc.Decide(context.Background(), f.ownerPrincipal(), b.ID, &model.DecideRequest{PaymentReceived: boolPtr(true)}); err != nil {
		t.Fatalf("Decide: %v", err)
	}

	other := f.store.addUser("second", auth.RoleConsumer)
	_, err := f.svc.Create(context.Background(), auth.Principal{UserID: other.ID, Role: auth.RoleConsumer},
		&model.CreateBookingRequest{HallID: f.hall.ID, Date: "2025-12-01"})
	assertCode(t, err, apperrors.CodeConflict)
}

func TestDecide_RejectFreesTheDay(t *testing.T) {
	f := newFixture(t)
	b := f.book(t, f.consumerPrincipal(), f.hall.ID, "2025-12-01")

	if _, err := f.svc.Decide(context.Background(), f.ownerPrincipal(), b.ID, &model.DecideRequest{PaymentReceived: boolPtr(false)}); err != nil {
		t.Fatalf("Decide: %v", err)
	}

	other := f.store.addUser("second", auth.RoleConsumer)
	next := f.book(t, auth.Principal{UserID: other.ID, Role: auth.RoleConsumer}, f.hall.ID, "2025-12-01")
	if next.Status != model.BookingStatusShortlisted {
		t.Errorf("expected shortlisted, got %s", next.Status)
	}
}

func TestDecide_RepairsMissingCalendarEntry(t *testing.T) {
	f := newFixture(t)
	b := f.book(t, f.consumerPrincipal(), f.hall.ID, "2025-12-01")

	// status committed without the calendar write
	if err := (memBookings{f.store}).UpdateStatus(context.Background(), b.ID,
		model.BookingStatusShortlisted, model.BookingStatusConfirmed, true, time.Now()); err != nil {
		t.Fatal(err)
	}

	d, err := f.svc.Decide(context.Background(), f.ownerPrincipal(), b.ID, &model.DecideRequest{PaymentReceived: boolPtr(true)})
	if err != nil {
		t.Fatalf("Decide: %v", err)
	}
	if d.Changed {
		t.Error("status was already confirmed")
	}
	if len(f.store.bookedDates(f.hall.ID)) != 1 {
		t.Error("expected calendar entry to be repaired")
	}
}

func TestDecide_FailedCalendarWriteRollsBack(t *testing.T) {
	f := newFixture(t)
	b := f.book(t, f.consumerPrincipal(), f.hall.ID, "2025-12-01")
	f.store.appendErr = errors.New("write conflict")

	_, err := f.svc.Decide(context.Background(), f.ownerPrincipal(), b.ID, &model.DecideRequest{PaymentReceived: boolPtr(true)})
	assertCode(t, err, apperrors.CodeInternal)

	if got := f.store.booking(b.ID); got.Status != model.BookingStatusShortlisted || got.PaymentAcknowledged {
		t.Errorf("status change survived a failed transaction: %+v", got)
	}
	if len(f.notifier.all()) != 1 {
		t.Error("failed decision must not notify")
	}
}

func TestDecide_ConcurrentConfirmations(t *testing.T) {
	f := newFixture(t)
	b := f.book(t, f.consumerPrincipal(), f.hall.ID, "2025-12-01")
	const workers = 6

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		changed int
	)
	start := make(chan struct{})
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			d, err := f.svc.Decide(context.Background(), f.ownerPrincipal(), b.ID, &model.DecideRequest{PaymentReceived: boolPtr(true)})
			if err != nil {
				t.Errorf("Decide: %v", err)
				return
			}
			if d.Booking.Status != model.BookingStatusConfirmed {
				t.Errorf("unexpected status %s", d.Booking.Status)
			}
			if d.Changed {
				mu.Lock()
				changed++
				mu.Unlock()
			}
		}()
	}
	close(start)
	wg.Wait()

	if changed != 1 {
		t.Errorf("expected exactly one state change, got %d", changed)
	}
	if got := len(f.store.bookedDates(f.hall.ID)); got != 1 {
		t.Errorf("expected one calendar entry, got %d", got)
	}
}

func TestDecide_StaleReadIsReevaluated(t *testing.T) {
	tests := []struct {
		name        string
		actual      model.BookingStatus
		paymentAck  bool
		wantCode    string
		wantMessage string
	}{
		{
			name:        "concurrent confirm converges",
			actual:      model.BookingStatusConfirmed,
			paymentAck:  true,
			wantMessage: "Booking already confirmed",
		},
		{
			name:     "concurrent reject conflicts",
			actual:   model.BookingStatusRejected,
			wantCode: apperrors.CodeInvalidState,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			b := f.book(t, f.consumerPrincipal(), f.hall.ID, "2025-12-01")
			stale := *b

			if err := (memBookings{f.store}).UpdateStatus(context.Background(), b.ID,
				model.BookingStatusShortlisted, tt.actual, tt.paymentAck, time.Now()); err != nil {
				t.Fatal(err)
			}

			reads := 0
			repo := staleBookings{memBookings: memBookings{f.store}}
			repo.findByID = func(ctx context.Context, id string) (*model.Booking, error) {
				reads++
				if reads == 1 {
					c := stale
					return &c, nil
				}
				return memBookings{f.store}.FindByID(ctx, id)
			}
			svc := f.withBookings(t, repo)

			d, err := svc.Decide(context.Background(), f.ownerPrincipal(), b.ID, &model.DecideRequest{PaymentReceived: boolPtr(true)})
			if tt.wantCode != "" {
				assertCode(t, err, tt.wantCode)
				return
			}
			if err != nil {
				t.Fatalf("Decide: %v", err)
			}
			if d.Changed || d.Message != tt.wantMessage {
				t.Errorf("unexpected decision %+v", d)
			}
			if reads != 2 {
				t.Errorf("expected a single re-read, got %d reads", reads)
			}
		})
	}
}

func TestDecide_PersistentStaleWriteIsConflict(t *testing.T) {
	f := newFixture(t)
	b := f.book(t, f.consumerPrincipal(), f.hall.ID, "2025-12-01")

	calls := 0
	repo := staleBookings{memBookings: memBookings{f.store}}
	repo.updateStatus = func(context.Context, string, model.BookingStatus, model.BookingStatus, bool, time.Time) error {
		calls++
		return bookingserrors.ErrStaleTransition
	}
	svc := f.withBookings(t, repo)

	_, err := svc.Decide(context.Background(), f.ownerPrincipal(), b.ID, &model.DecideRequest{PaymentReceived: boolPtr(false)})
	assertCode(t, err, apperrors.CodeConflict)
	if calls != 2 {
		t.Errorf("expected 2 attempts, got %d", calls)
	}
}

// ────────────────────────────────────────────────
// Reads
// ────────────────────────────────────────────────

func TestGetByID_Access(t *testing.T) {
	f := newFixture(t)
	b := f.book(t, f.consumerPrincipal(), f.hall.ID, "2025-12-01")
	stranger := f.store.addUser("stranger", auth.RoleConsumer)

	for _, p := range []auth.Principal{f.consumerPrincipal(), f.ownerPrincipal()} {
		view, err := f.svc.GetByID(context.Background(), p, b.ID)
		if err != nil {
			t.Fatalf("GetByID as %s: %v", p.Role, err)
		}
		if view.ID != b.ID || view.Hall == nil || view.Hall.Name != f.hall.Name {
			t.Errorf("unexpected view %+v", view)
		}
		if view.Hall.Address != "12 Residency Road, Jammu" {
			t.Errorf("unexpected address %q", view.Hall.Address)
		}
		if view.Consumer == nil || view.Consumer.Email != f.consumer.Email {
			t.Errorf("expected consumer summary, got %+v", view.Consumer)
		}
	}

	_, err := f.svc.GetByID(context.Background(), auth.Principal{UserID: stranger.ID, Role: auth.RoleConsumer}, b.ID)
	assertCode(t, err, apperrors.CodeForbidden)

	_, err = f.svc.GetByID(context.Background(), f.consumerPrincipal(), primitive.NewObjectID().Hex())
	assertCode(t, err, apperrors.CodeNotFound)
}

func TestListForOwner(t *testing.T) {
	f := newFixture(t)
	second := f.store.addHall("Lake View Lawns", f.owner.ID)
	otherOwner := f.store.addUser("other-owner", auth.RoleOwner)
	foreign := f.store.addHall("Elsewhere", otherOwner.ID)

	b1 := f.book(t, f.consumerPrincipal(), f.hall.ID, "2025-12-01")
	b2 := f.book(t, f.consumerPrincipal(), second.ID, "2025-12-02")
	f.book(t, f.consumerPrincipal(), foreign.ID, "2025-12-03")

	views, err := f.svc.ListForOwner(context.Background(), f.ownerPrincipal())
	if err != nil {
		t.Fatalf("ListForOwner: %v", err)
	}
	if len(views) != 2 {
		t.Fatalf("expected 2 bookings, got %d", len(views))
	}
	if views[0].ID != b2.ID || views[1].ID != b1.ID {
		t.Errorf("expected newest first, got %s, %s", views[0].ID, views[1].ID)
	}
	for _, v := range views {
		if v.Consumer == nil || v.Consumer.Name != "consumer" {
			t.Errorf("expected consumer summary on %s", v.ID)
		}
		if v.Hall == nil {
			t.Errorf("expected hall summary on %s", v.ID)
		}
	}

	_, err = f.svc.ListForOwner(context.Background(), f.consumerPrincipal())
	assertCode(t, err, apperrors.CodeForbidden)
}

func TestListForOwner_NoHalls(t *testing.T) {
	f := newFixture(t)
	lonely := f.store.addUser("lonely", auth.RoleOwner)

	views, err := f.svc.ListForOwner(context.Background(), auth.Principal{UserID: lonely.ID, Role: auth.RoleOwner})
	if err != nil {
		t.Fatalf("ListForOwner: %v", err)
	}
	if views == nil || len(views) != 0 {
		t.Errorf("expected empty non-nil list, got %#v", views)
	}
}

func TestListForConsumer(t *testing.T) {
	f := newFixture(t)
	f.book(t, f.consumerPrincipal(), f.hall.ID, "2025-12-01")
	f.book(t, f.consumerPrincipal(), f.hall.ID, "2025-12-05")

	other := f.store.addUser("second", auth.RoleConsumer)
	f.book(t, auth.Principal{UserID: other.ID, Role: auth.RoleConsumer}, f.hall.ID, "2025-12-09")

	views, err := f.svc.ListForConsumer(context.Background(), f.consumerPrincipal())
	if err != nil {
		t.Fatalf("ListForConsumer: %v", err)
	}
	if len(views) != 2 {
		t.Fatalf("expected 2 bookings, got %d", len(views))
	}
	for _, v := range views {
		if v.ConsumerID != f.consumer.ID {
			t.Errorf("leaked booking %s of %s", v.ID, v.ConsumerID)
		}
		if v.Hall == nil || v.Hall.Name != f.hall.Name {
			t.Errorf("expected hall summary on %s", v.ID)
		}
	}

	_, err = f.svc.ListForConsumer(context.Background(), f.ownerPrincipal())
	assertCode(t, err, apperrors.CodeForbidden)
}

func TestReceiptURL(t *testing.T) {
	if got := ReceiptURL("https://api.example.com", "abc"); got != "https://api.example.com/booking/abc/receipt" {
		t.Errorf("unexpected url %q", got)
	}
}

// ────────────────────────────────────────────────
// Notifications
// ────────────────────────────────────────────────

// blockingUsers fails the test if a lookup happens while open is false.
type blockingUsers struct {
	memUsers
	t    *testing.T
	open *bool
}

func (r blockingUsers) FindByID(ctx context.Context, id string) (*model.User, error) {
	if !*r.open {
		r.t.Errorf("user lookup for %s ran on the request path", id)
	}
	return r.memUsers.FindByID(ctx, id)
}

func (r blockingUsers) FindByIDs(ctx context.Context, ids []string) (map[string]*model.User, error) {
	if !*r.open {
		r.t.Errorf("user lookup for %v ran on the request path", ids)
	}
	return r.memUsers.FindByIDs(ctx, ids)
}

func TestNotifications_RecipientLookupIsDeferred(t *testing.T) {
	f := newFixture(t)
	f.notifier.deferred = true
	open := false
	svc := NewBookingService(memBookings{f.store}, memHalls{f.store}, blockingUsers{memUsers{f.store}, t, &open},
		validator.NewBookingValidator(f.cfg.Location, f.cfg.Log), f.notifier, f.cfg)

	b, err := svc.Create(context.Background(), f.consumerPrincipal(), &model.CreateBookingRequest{HallID: f.hall.ID, Date: "2025-12-01"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := svc.Decide(context.Background(), f.ownerPrincipal(), b.ID, &model.DecideRequest{PaymentReceived: boolPtr(true)}); err != nil {
		t.Fatalf("Decide: %v", err)
	}
	if got := len(f.notifier.all()); got != 0 {
		t.Fatalf("expected nothing sent before the background task runs, got %d", got)
	}

	open = true
	f.notifier.flush()

	sent := f.notifier.all()
	if len(sent) != 2 {
		t.Fatalf("expected 2 notifications, got %d", len(sent))
	}
	if sent[0].To != f.owner.Email || sent[0].Data.ConsumerName != f.consumer.Name {
		t.Errorf("unexpected owner notification %+v", sent[0])
	}
	if sent[1].To != f.consumer.Email || sent[1].Kind != model.NotificationBookingConfirmed {
		t.Errorf("unexpected consumer notification %+v", sent[1])
	}
}

func TestNotifications_MissingRecipientSkipsQuietly(t *testing.T) {
	f := newFixture(t)
	b := f.book(t, f.consumerPrincipal(), f.hall.ID, "2025-12-01")

	f.store.mu.Lock()
	delete(f.store.users, f.consumer.ID)
	f.store.mu.Unlock()

	d, err := f.svc.Decide(context.Background(), f.ownerPrincipal(), b.ID, &model.DecideRequest{PaymentReceived: boolPtr(false)})
	if err != nil {
		t.Fatalf("Decide: %v", err)
	}
	if d.Booking.Status != model.BookingStatusRejected {
		t.Errorf("status = %s, want rejected", d.Booking.Status)
	}
	if got := len(f.notifier.all()); got != 1 {
		t.Errorf("expected only the create notification, got %d", got)
	}
}

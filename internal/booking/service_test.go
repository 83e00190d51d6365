package booking

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/carelink/telehealth-api/internal/availability"
	"github.com/carelink/telehealth-api/internal/doctor"
	"github.com/carelink/telehealth-api/internal/patient"
)

// -- Mocks --

type mockRepo struct {
	mu     sync.Mutex
	appts  map[uuid.UUID]*Appointment
	events []EventLog
}

func newMockRepo() *mockRepo {
	return &mockRepo{appts: make(map[uuid.UUID]*Appointment)}
}

func (m *mockRepo) GetByID(_ context.Context, id uuid.UUID) (*Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.appts[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (m *mockRepo) GetDetail(ctx context.Context, id uuid.UUID) (*Detail, error) {
	a, err := m.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return &Detail{Appointment: *a, DoctorName: "Dr. Mock", PatientName: "Pat Mock"}, nil
}

func isActive(s Status) bool {
	return s == StatusScheduled || s == StatusInProgress
}

func (m *mockRepo) HasActiveOverlap(_ context.Context, doctorID uuid.UUID, start, end time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.appts {
		if a.DoctorID == doctorID && isActive(a.Status) && availability.Overlaps(start, end, a.SlotStart, a.SlotEnd) {
			return true, nil
		}
	}
	return false, nil
}

// Create enforces the partial uniqueness constraint the real schema carries:
// one active appointment per (doctor, date, slot start), checked and
// inserted under one lock.
func (m *mockRepo) Create(_ context.Context, appt *Appointment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.appts {
		if a.DoctorID == appt.DoctorID && isActive(a.Status) &&
			a.Date.Equal(appt.Date) && a.SlotStart.Equal(appt.SlotStart) {
			return ErrSlotTaken
		}
	}
	now := time.Now()
	appt.CreatedAt = now
	appt.UpdatedAt = now
	cp := *appt
	m.appts[appt.ID] = &cp
	return nil
}

func (m *mockRepo) UpdateStatus(_ context.Context, id uuid.UUID, from []Status, to Status) (*Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.appts[id]
	if !ok {
		return nil, ErrNotFound
	}
	matched := false
	for _, f := range from {
		if a.Status == f {
			matched = true
			break
		}
	}
	if !matched {
		return nil, ErrNotFound
	}
	a.Status = to
	a.UpdatedAt = time.Now()
	cp := *a
	return &cp, nil
}

func (m *mockRepo) Complete(_ context.Context, id uuid.UUID, prescription, notes string) (*Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.appts[id]
	if !ok || !isActive(a.Status) {
		return nil, ErrNotFound
	}
	a.Status = StatusCompleted
	a.Prescription = prescription
	a.Notes = notes
	a.UpdatedAt = time.Now()
	cp := *a
	return &cp, nil
}

func (m *mockRepo) AttachFeedback(_ context.Context, id uuid.UUID, rating int, feedback string, at time.Time) (*Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.appts[id]
	if !ok || a.Status != StatusCompleted || a.Rating != nil {
		return nil, ErrNotFound
	}
	a.Rating = &rating
	a.Feedback = feedback
	a.FeedbackAt = &at
	cp := *a
	return &cp, nil
}

func (m *mockRepo) ListByDoctor(_ context.Context, doctorID uuid.UUID, statuses []Status) ([]Detail, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Detail
	for _, a := range m.appts {
		if a.DoctorID != doctorID {
			continue
		}
		if len(statuses) > 0 && !statusIn(a.Status, statuses) {
			continue
		}
		out = append(out, Detail{Appointment: *a})
	}
	return out, nil
}

func (m *mockRepo) ListByPatient(_ context.Context, patientID uuid.UUID, statuses []Status) ([]Detail, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Detail
	for _, a := range m.appts {
		if a.PatientID != patientID {
			continue
		}
		if len(statuses) > 0 && !statusIn(a.Status, statuses) {
			continue
		}
		out = append(out, Detail{Appointment: *a})
	}
	return out, nil
}

func statusIn(s Status, set []Status) bool {
	for _, x := range set {
		if s == x {
			return true
		}
	}
	return false
}

func (m *mockRepo) ListActiveBetween(_ context.Context, doctorID uuid.UUID, from, to time.Time) ([]Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Appointment
	for _, a := range m.appts {
		if a.DoctorID == doctorID && isActive(a.Status) && availability.Overlaps(from, to, a.SlotStart, a.SlotEnd) {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (m *mockRepo) ListUpcoming(_ context.Context, doctorID uuid.UUID, after time.Time, limit int) ([]Detail, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Detail
	for _, a := range m.appts {
		if a.DoctorID == doctorID && isActive(a.Status) && a.SlotStart.After(after) && len(out) < limit {
			out = append(out, Detail{Appointment: *a})
		}
	}
	return out, nil
}

func (m *mockRepo) RatedCompletedRatings(_ context.Context, doctorID uuid.UUID) ([]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []int
	for _, a := range m.appts {
		if a.DoctorID == doctorID && a.Status == StatusCompleted && a.Rating != nil {
			out = append(out, *a.Rating)
		}
	}
	return out, nil
}

func (m *mockRepo) ListReviews(_ context.Context, doctorID uuid.UUID, limit int) ([]Review, error) {
	var out []Review
	ratings, _ := m.RatedCompletedRatings(context.Background(), doctorID)
	for _, r := range ratings {
		if len(out) >= limit {
			break
		}
		out = append(out, Review{Rating: r})
	}
	return out, nil
}

func (m *mockRepo) DoctorStats(_ context.Context, doctorID uuid.UUID) (*DashboardStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stats := &DashboardStats{}
	patients := make(map[uuid.UUID]bool)
	for _, a := range m.appts {
		if a.DoctorID != doctorID {
			continue
		}
		patients[a.PatientID] = true
		if a.Status == StatusCompleted {
			stats.CompletedCount++
			stats.TotalRevenue += a.ConsultationFee
		}
	}
	stats.TotalPatients = len(patients)
	return stats, nil
}

func (m *mockRepo) InsertEvent(_ context.Context, ev EventLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, ev)
	return nil
}

func (m *mockRepo) countActiveAt(doctorID uuid.UUID, start time.Time) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, a := range m.appts {
		if a.DoctorID == doctorID && isActive(a.Status) && a.SlotStart.Equal(start) {
			n++
		}
	}
	return n
}

type mockDoctors struct {
	mu      sync.Mutex
	doctors map[uuid.UUID]*doctor.Doctor

	lastAverage float64
	lastTotal   int
}

func newMockDoctors() *mockDoctors {
	return &mockDoctors{doctors: make(map[uuid.UUID]*doctor.Doctor)}
}

func (m *mockDoctors) GetByID(_ context.Context, id uuid.UUID) (*doctor.Doctor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.doctors[id]
	if !ok {
		return nil, doctor.ErrNotFound
	}
	cp := *d
	return &cp, nil
}

func (m *mockDoctors) SetRating(_ context.Context, id uuid.UUID, average float64, total int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.doctors[id]
	if !ok {
		return doctor.ErrNotFound
	}
	d.AverageRating = average
	d.TotalRatings = total
	m.lastAverage = average
	m.lastTotal = total
	return nil
}

type mockPatients struct {
	patients map[uuid.UUID]*patient.Patient
}

func (m *mockPatients) GetByID(_ context.Context, id uuid.UUID) (*patient.Patient, error) {
	p, ok := m.patients[id]
	if !ok {
		return nil, patient.ErrNotFound
	}
	return p, nil
}

type nopCache struct{}

func (nopCache) GetDaySlots(context.Context, uuid.UUID, time.Time) ([]availability.Slot, bool) {
	return nil, false
}
func (nopCache) SetDaySlots(context.Context, uuid.UUID, time.Time, []availability.Slot) {}
func (nopCache) InvalidateDay(context.Context, uuid.UUID, time.Time)                    {}

// spyCache records invalidations so tests can assert the slot-freeing
// mutations hit the cache.
type spyCache struct {
	nopCache
	mu          sync.Mutex
	invalidated []time.Time
}

func (c *spyCache) InvalidateDay(_ context.Context, _ uuid.UUID, day time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.invalidated = append(c.invalidated, day)
}

func (c *spyCache) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.invalidated)
}

// -- Fixture --

type fixture struct {
	svc       *Service
	repo      *mockRepo
	doctors   *mockDoctors
	doctorID  uuid.UUID
	patientID uuid.UUID
}

var slotStart = time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

func newFixture(t *testing.T) *fixture {
	t.Helper()

	repo := newMockRepo()
	docs := newMockDoctors()
	pats := &mockPatients{patients: make(map[uuid.UUID]*patient.Patient)}

	doctorID := uuid.New()
	docs.doctors[doctorID] = &doctor.Doctor{
		ID:              doctorID,
		Name:            "Dr. Mock",
		ConsultationFee: 500,
		Availability: availability.Config{
			StartDate:           time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
			EndDate:             time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC),
			DailyWindows:        []availability.Window{{Start: "09:00", End: "12:00"}},
			SlotDurationMinutes: 30,
		},
	}

	patientID := uuid.New()
	pats.patients[patientID] = &patient.Patient{ID: patientID, Name: "Pat Mock"}

	svc := NewService(repo, docs, pats, nopCache{}, zerolog.Nop())

	return &fixture{
		svc:       svc,
		repo:      repo,
		doctors:   docs,
		doctorID:  doctorID,
		patientID: patientID,
	}
}

func (f *fixture) bookReq() BookRequest {
	return BookRequest{
		DoctorID:         f.doctorID,
		PatientID:        f.patientID,
		SlotStart:        slotStart,
		SlotEnd:          slotStart.Add(30 * time.Minute),
		ConsultationType: TypeVideo,
		Symptoms:         "persistent cough",
	}
}

// -- Booking --

func TestBook(t *testing.T) {
	f := newFixture(t)

	appt, err := f.svc.Book(context.Background(), f.bookReq())
	if err != nil {
		t.Fatalf("Book: %v", err)
	}

	if appt.Status != StatusScheduled {
		t.Errorf("status = %s, want scheduled", appt.Status)
	}
	if appt.RoomID == "" {
		t.Errorf("room id not assigned")
	}
	if appt.PaymentStatus != PaymentPaid {
		t.Errorf("payment status = %s, want paid", appt.PaymentStatus)
	}
	// Fees come from the doctor record, never from the caller.
	if appt.ConsultationFee != 500 || appt.PlatformFee != 50 || appt.TotalAmount != 550 {
		t.Errorf("fees = %d/%d/%d, want 500/50/550", appt.ConsultationFee, appt.PlatformFee, appt.TotalAmount)
	}
	if !appt.Date.Equal(time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("date = %v, want slot day", appt.Date)
	}
}

func TestBookValidation(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name   string
		mutate func(*BookRequest)
	}{
		{"end before start", func(r *BookRequest) { r.SlotEnd = r.SlotStart.Add(-time.Minute) }},
		{"end equals start", func(r *BookRequest) { r.SlotEnd = r.SlotStart }},
		{"blank symptoms", func(r *BookRequest) { r.Symptoms = "   " }},
		{"unknown type", func(r *BookRequest) { r.ConsultationType = "telepathy" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := f.bookReq()
			tt.mutate(&req)
			if _, err := f.svc.Book(context.Background(), req); !errors.Is(err, ErrInvalidBooking) {
				t.Errorf("got %v, want ErrInvalidBooking", err)
			}
		})
	}

	if got := f.repo.countActiveAt(f.doctorID, slotStart); got != 0 {
		t.Errorf("rejected requests persisted %d appointments", got)
	}
}

func TestBookOverlapConflict(t *testing.T) {
	f := newFixture(t)

	if _, err := f.svc.Book(context.Background(), f.bookReq()); err != nil {
		t.Fatalf("first booking: %v", err)
	}

	// Overlapping but not identical interval conflicts.
	req := f.bookReq()
	req.SlotStart = slotStart.Add(15 * time.Minute)
	req.SlotEnd = slotStart.Add(45 * time.Minute)
	if _, err := f.svc.Book(context.Background(), req); !errors.Is(err, ErrSlotTaken) {
		t.Errorf("overlapping booking: got %v, want ErrSlotTaken", err)
	}

	// Back-to-back does not conflict.
	req = f.bookReq()
	req.SlotStart = slotStart.Add(30 * time.Minute)
	req.SlotEnd = slotStart.Add(60 * time.Minute)
	if _, err := f.svc.Book(context.Background(), req); err != nil {
		t.Errorf("back-to-back booking: %v", err)
	}
}

func TestBookCancelledSlotRebookable(t *testing.T) {
	f := newFixture(t)
	f.svc.now = func() time.Time { return slotStart.Add(time.Minute) }

	appt, err := f.svc.Book(context.Background(), f.bookReq())
	if err != nil {
		t.Fatalf("Book: %v", err)
	}
	if _, err := f.svc.Cancel(context.Background(), Actor{ID: f.doctorID, Role: RoleDoctor}, appt.ID); err != nil {
		t.Fatalf("Cancel: %v", err)
	}

	// The freed interval is bookable again.
	if _, err := f.svc.Book(context.Background(), f.bookReq()); err != nil {
		t.Fatalf("rebooking cancelled slot: %v", err)
	}
}

func TestConcurrentBookingSingleWinner(t *testing.T) {
	f := newFixture(t)

	const n = 16
	var wg sync.WaitGroup
	results := make(chan error, n)

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.Book(context.Background(), f.bookReq())
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	wins, conflicts := 0, 0
	for err := range results {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, ErrSlotTaken):
			conflicts++
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}

	if wins != 1 {
		t.Errorf("wins = %d, want exactly 1", wins)
	}
	if conflicts != n-1 {
		t.Errorf("conflicts = %d, want %d", conflicts, n-1)
	}
	if got := f.repo.countActiveAt(f.doctorID, slotStart); got != 1 {
		t.Errorf("persisted active appointments = %d, want 1", got)
	}
}

// The uniqueness key includes the appointment's day, so the day must not
// depend on the offset the client happened to send. 19:00Z and 00:30+05:30
// name the same instant but different local calendar days.
func TestBookSameInstantDifferentOffsets(t *testing.T) {
	f := newFixture(t)

	instant := time.Date(2026, 3, 1, 19, 0, 0, 0, time.UTC)
	ist := time.FixedZone("IST", 5*3600+30*60)

	starts := []time.Time{instant, instant.In(ist)}

	const n = 8
	var wg sync.WaitGroup
	results := make(chan error, n)

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(start time.Time) {
			defer wg.Done()
			req := f.bookReq()
			req.SlotStart = start
			req.SlotEnd = start.Add(30 * time.Minute)
			_, err := f.svc.Book(context.Background(), req)
			results <- err
		}(starts[i%len(starts)])
	}
	wg.Wait()
	close(results)

	wins, conflicts := 0, 0
	for err := range results {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, ErrSlotTaken):
			conflicts++
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}

	if wins != 1 {
		t.Errorf("wins = %d, want exactly 1", wins)
	}
	if conflicts != n-1 {
		t.Errorf("conflicts = %d, want %d", conflicts, n-1)
	}
	if got := f.repo.countActiveAt(f.doctorID, instant); got != 1 {
		t.Errorf("persisted active appointments = %d, want 1", got)
	}

	// The stored day is the instant's UTC day regardless of offset.
	wantDay := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	f.repo.mu.Lock()
	for _, a := range f.repo.appts {
		if !a.Date.Equal(wantDay) {
			t.Errorf("date = %v, want %v", a.Date, wantDay)
		}
	}
	f.repo.mu.Unlock()
}

// -- Lifecycle --

func (f *fixture) mustBook(t *testing.T) *Appointment {
	t.Helper()
	appt, err := f.svc.Book(context.Background(), f.bookReq())
	if err != nil {
		t.Fatalf("Book: %v", err)
	}
	return appt
}

func TestJoin(t *testing.T) {
	f := newFixture(t)
	appt := f.mustBook(t)
	patientActor := Actor{ID: f.patientID, Role: RolePatient}
	doctorActor := Actor{ID: f.doctorID, Role: RoleDoctor}

	joined, err := f.svc.Join(context.Background(), patientActor, appt.ID)
	if err != nil {
		t.Fatalf("Join: %v", err)
	}
	if joined.Status != StatusInProgress {
		t.Errorf("status = %s, want in_progress", joined.Status)
	}
	if joined.RoomID != appt.RoomID {
		t.Errorf("room id changed on join")
	}

	// Second participant joining is a no-op, same handle.
	again, err := f.svc.Join(context.Background(), doctorActor, appt.ID)
	if err != nil {
		t.Fatalf("second Join: %v", err)
	}
	if again.Status != StatusInProgress || again.RoomID != appt.RoomID {
		t.Errorf("second join: status=%s room=%s", again.Status, again.RoomID)
	}

	// Strangers cannot join.
	if _, err := f.svc.Join(context.Background(), Actor{ID: uuid.New(), Role: RolePatient}, appt.ID); !errors.Is(err, ErrNotParticipant) {
		t.Errorf("stranger join: got %v, want ErrNotParticipant", err)
	}
}

func TestComplete(t *testing.T) {
	f := newFixture(t)
	appt := f.mustBook(t)
	doctorActor := Actor{ID: f.doctorID, Role: RoleDoctor}

	// Patients cannot end a consultation.
	if _, err := f.svc.Complete(context.Background(), Actor{ID: f.patientID, Role: RolePatient}, appt.ID, "", ""); !errors.Is(err, ErrNotParticipant) {
		t.Fatalf("patient complete: got %v, want ErrNotParticipant", err)
	}

	done, err := f.svc.Complete(context.Background(), doctorActor, appt.ID, "rest and fluids", "follow up in a week")
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if done.Status != StatusCompleted {
		t.Errorf("status = %s, want completed", done.Status)
	}
	if done.Prescription != "rest and fluids" || done.Notes != "follow up in a week" {
		t.Errorf("prescription/notes not attached")
	}

	// Completed is terminal.
	if _, err := f.svc.Complete(context.Background(), doctorActor, appt.ID, "", ""); !errors.Is(err, ErrWrongStatus) {
		t.Errorf("completing twice: got %v, want ErrWrongStatus", err)
	}
	f.svc.now = func() time.Time { return slotStart.Add(time.Hour) }
	if _, err := f.svc.Cancel(context.Background(), doctorActor, appt.ID); !errors.Is(err, ErrWrongStatus) {
		t.Errorf("cancelling completed: got %v, want ErrWrongStatus", err)
	}
}

// Every mutation that takes or frees a slot must drop the cached day
// listing, or clients see stale availability until the TTL expires.
func TestSlotMutationsInvalidateCache(t *testing.T) {
	f := newFixture(t)
	spy := &spyCache{}
	f.svc.cache = spy
	doctorActor := Actor{ID: f.doctorID, Role: RoleDoctor}

	appt := f.mustBook(t)
	if got := spy.count(); got != 1 {
		t.Fatalf("invalidations after book = %d, want 1", got)
	}

	if _, err := f.svc.Complete(context.Background(), doctorActor, appt.ID, "", ""); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if got := spy.count(); got != 2 {
		t.Errorf("invalidations after complete = %d, want 2", got)
	}

	appt = f.mustBook(t)
	f.svc.now = func() time.Time { return slotStart.Add(time.Minute) }
	if _, err := f.svc.Cancel(context.Background(), doctorActor, appt.ID); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if got := spy.count(); got != 4 {
		t.Errorf("invalidations after cancel = %d, want 4", got)
	}

	wantDay := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	for _, day := range spy.invalidated {
		if !day.Equal(wantDay) {
			t.Errorf("invalidated day = %v, want %v", day, wantDay)
		}
	}
}

func TestCancelGuards(t *testing.T) {
	f := newFixture(t)
	appt := f.mustBook(t)
	doctorActor := Actor{ID: f.doctorID, Role: RoleDoctor}

	// Before the scheduled start cancellation is refused.
	f.svc.now = func() time.Time { return slotStart.Add(-time.Hour) }
	if _, err := f.svc.Cancel(context.Background(), doctorActor, appt.ID); !errors.Is(err, ErrWrongStatus) {
		t.Fatalf("early cancel: got %v, want ErrWrongStatus", err)
	}

	// Patients cannot cancel at all.
	f.svc.now = func() time.Time { return slotStart.Add(time.Hour) }
	if _, err := f.svc.Cancel(context.Background(), Actor{ID: f.patientID, Role: RolePatient}, appt.ID); !errors.Is(err, ErrNotParticipant) {
		t.Fatalf("patient cancel: got %v, want ErrNotParticipant", err)
	}

	cancelled, err := f.svc.Cancel(context.Background(), doctorActor, appt.ID)
	if err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if cancelled.Status != StatusCancelled {
		t.Errorf("status = %s, want cancelled", cancelled.Status)
	}

	// Cancelled is terminal.
	if _, err := f.svc.Join(context.Background(), doctorActor, appt.ID); !errors.Is(err, ErrWrongStatus) {
		t.Errorf("joining cancelled: got %v, want ErrWrongStatus", err)
	}
}

// -- Feedback --

func TestSubmitFeedback(t *testing.T) {
	f := newFixture(t)
	doctorActor := Actor{ID: f.doctorID, Role: RoleDoctor}
	patientActor := Actor{ID: f.patientID, Role: RolePatient}

	// Two earlier completed, rated consultations: ratings 4 and 5.
	for i, r := range []int{4, 5} {
		req := f.bookReq()
		req.SlotStart = slotStart.Add(time.Duration(i+1) * time.Hour)
		req.SlotEnd = req.SlotStart.Add(30 * time.Minute)
		appt, err := f.svc.Book(context.Background(), req)
		if err != nil {
			t.Fatalf("book %d: %v", i, err)
		}
		if _, err := f.svc.Complete(context.Background(), doctorActor, appt.ID, "", ""); err != nil {
			t.Fatalf("complete %d: %v", i, err)
		}
		if _, err := f.svc.SubmitFeedback(context.Background(), patientActor, appt.ID, r, "fine"); err != nil {
			t.Fatalf("feedback %d: %v", i, err)
		}
	}

	appt := f.mustBook(t)

	// Feedback requires completion first.
	if _, err := f.svc.SubmitFeedback(context.Background(), patientActor, appt.ID, 3, ""); !errors.Is(err, ErrWrongStatus) {
		t.Fatalf("feedback on scheduled: got %v, want ErrWrongStatus", err)
	}

	if _, err := f.svc.Complete(context.Background(), doctorActor, appt.ID, "", ""); err != nil {
		t.Fatalf("Complete: %v", err)
	}

	// Rating bounds are validated before anything else.
	for _, bad := range []int{0, 6, -1} {
		if _, err := f.svc.SubmitFeedback(context.Background(), patientActor, appt.ID, bad, ""); !errors.Is(err, ErrInvalidRating) {
			t.Errorf("rating %d: got %v, want ErrInvalidRating", bad, err)
		}
	}

	// Doctors cannot rate their own consultations.
	if _, err := f.svc.SubmitFeedback(context.Background(), doctorActor, appt.ID, 3, ""); !errors.Is(err, ErrNotParticipant) {
		t.Fatalf("doctor feedback: got %v, want ErrNotParticipant", err)
	}

	rated, err := f.svc.SubmitFeedback(context.Background(), patientActor, appt.ID, 3, "okay")
	if err != nil {
		t.Fatalf("SubmitFeedback: %v", err)
	}
	if rated.Rating == nil || *rated.Rating != 3 {
		t.Errorf("rating not attached")
	}

	// [4, 5, 3] -> 4.0, over three ratings.
	if f.doctors.lastAverage != 4.0 || f.doctors.lastTotal != 3 {
		t.Errorf("aggregate = %.1f over %d, want 4.0 over 3", f.doctors.lastAverage, f.doctors.lastTotal)
	}

	// Exactly once.
	if _, err := f.svc.SubmitFeedback(context.Background(), patientActor, appt.ID, 5, "changed my mind"); !errors.Is(err, ErrAlreadyRated) {
		t.Errorf("second feedback: got %v, want ErrAlreadyRated", err)
	}
}

func TestRatingRounding(t *testing.T) {
	f := newFixture(t)
	doctorActor := Actor{ID: f.doctorID, Role: RoleDoctor}
	patientActor := Actor{ID: f.patientID, Role: RolePatient}

	// [5, 4, 4] -> 4.333... -> 4.3
	for i, r := range []int{5, 4, 4} {
		req := f.bookReq()
		req.SlotStart = slotStart.Add(time.Duration(i) * time.Hour)
		req.SlotEnd = req.SlotStart.Add(30 * time.Minute)
		appt, err := f.svc.Book(context.Background(), req)
		if err != nil {
			t.Fatalf("book %d: %v", i, err)
		}
		if _, err := f.svc.Complete(context.Background(), doctorActor, appt.ID, "", ""); err != nil {
			t.Fatalf("complete %d: %v", i, err)
		}
		if _, err := f.svc.SubmitFeedback(context.Background(), patientActor, appt.ID, r, ""); err != nil {
			t.Fatalf("feedback %d: %v", i, err)
		}
	}

	if f.doctors.lastAverage != 4.3 {
		t.Errorf("average = %v, want 4.3", f.doctors.lastAverage)
	}
}

// -- Availability --

func TestAvailableSlotsExcludesBooked(t *testing.T) {
	f := newFixture(t)

	if _, err := f.svc.Book(context.Background(), f.bookReq()); err != nil {
		t.Fatalf("Book: %v", err)
	}

	slots, err := f.svc.AvailableSlots(context.Background(), f.doctorID, slotStart)
	if err != nil {
		t.Fatalf("AvailableSlots: %v", err)
	}

	// Six morning slots, one taken.
	if len(slots) != 5 {
		t.Fatalf("open slots = %d, want 5", len(slots))
	}
	for _, s := range slots {
		if s.Start.Equal(slotStart) {
			t.Errorf("booked slot still listed as open")
		}
	}
}

func TestGetOwnership(t *testing.T) {
	f := newFixture(t)
	appt := f.mustBook(t)

	if _, err := f.svc.Get(context.Background(), Actor{ID: f.patientID, Role: RolePatient}, appt.ID); err != nil {
		t.Fatalf("owner Get: %v", err)
	}
	if _, err := f.svc.Get(context.Background(), Actor{ID: uuid.New(), Role: RolePatient}, appt.ID); !errors.Is(err, ErrNotParticipant) {
		t.Errorf("stranger Get: got %v, want ErrNotParticipant", err)
	}
	if _, err := f.svc.Get(context.Background(), Actor{ID: f.patientID, Role: RolePatient}, uuid.New()); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing Get: got %v, want ErrNotFound", err)
	}
}

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hansika-eng/clockdin/internal/db"
	"github.com/hansika-eng/clockdin/internal/mailer"
	"github.com/hansika-eng/clockdin/internal/redis"
)

type mockReminderRepo struct {
	created []*db.Reminder
	err     error
}

func (m *mockReminderRepo) CreateReminder(ctx context.Context, rem *db.Reminder) error {
	if m.err != nil {
		return m.err
	}
	m.created = append(m.created, rem)
	return nil
}

func (m *mockReminderRepo) GetReminder(ctx context.Context, id uuid.UUID) (*db.Reminder, error) {
	for _, rem := range m.created {
		if rem.ID == id {
			return rem, nil
		}
	}
	return nil, db.ErrNotFound
}

type mockEventRepo struct {
	events map[uuid.UUID]*db.Event
}

func newMockEventRepo(events ...*db.Event) *mockEventRepo {
	m := &mockEventRepo{events: make(map[uuid.UUID]*db.Event)}
	for _, ev := range events {
		m.events[ev.ID] = ev
	}
	return m
}

func (m *mockEventRepo) GetEvent(ctx context.Context, id uuid.UUID) (*db.Event, error) {
	ev, ok := m.events[id]
	if !ok {
		return nil, db.ErrNotFound
	}
	return ev, nil
}

func (m *mockEventRepo) ListEvents(ctx context.Context, limit, offset int) ([]*db.Event, error) {
	var out []*db.Event
	for _, ev := range m.events {
		out = append(out, ev)
	}
	return out, nil
}

type mockUserRepo struct {
	users     map[string]*db.User // by email
	bookmarks map[uuid.UUID][]uuid.UUID
}

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{
		users:     make(map[string]*db.User),
		bookmarks: make(map[uuid.UUID][]uuid.UUID),
	}
}

func (m *mockUserRepo) CreateUser(ctx context.Context, u *db.User) error {
	if _, exists := m.users[u.Email]; exists {
		return db.ErrDuplicateEmail
	}
	m.users[u.Email] = u
	return nil
}

func (m *mockUserRepo) GetUserByEmail(ctx context.Context, email string) (*db.User, error) {
	u, ok := m.users[email]
	if !ok {
		return nil, db.ErrNotFound
	}
	return u, nil
}

func (m *mockUserRepo) GetUser(ctx context.Context, id uuid.UUID) (*db.User, error) {
	for _, u := range m.users {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, db.ErrNotFound
}

func (m *mockUserRepo) AddBookmark(ctx context.Context, userID, eventID uuid.UUID) error {
	for _, id := range m.bookmarks[userID] {
		if id == eventID {
			return nil
		}
	}
	m.bookmarks[userID] = append(m.bookmarks[userID], eventID)
	return nil
}

func (m *mockUserRepo) RemoveBookmark(ctx context.Context, userID, eventID uuid.UUID) error {
	ids := m.bookmarks[userID]
	for i, id := range ids {
		if id == eventID {
			m.bookmarks[userID] = append(ids[:i], ids[i+1:]...)
			return nil
		}
	}
	return nil
}

func (m *mockUserRepo) ListBookmarks(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	return m.bookmarks[userID], nil
}

type mockNotificationRepo struct {
	created []*db.Notification
	marked  int
}

func (m *mockNotificationRepo) CreateNotification(ctx context.Context, n *db.Notification) error {
	m.created = append(m.created, n)
	return nil
}

func (m *mockNotificationRepo) ListNotificationsByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*db.Notification, error) {
	var out []*db.Notification
	for _, n := range m.created {
		if n.UserID == userID {
			out = append(out, n)
		}
	}
	return out, nil
}

func (m *mockNotificationRepo) MarkAllRead(ctx context.Context, userID uuid.UUID) (int, error) {
	return m.marked, nil
}

type mockRepair struct {
	fixed int
	err   error
}

func (m *mockRepair) Run(ctx context.Context) (int, error) {
	return m.fixed, m.err
}

type mockChatbot struct {
	reply string
	err   error
}

func (m *mockChatbot) Reply(ctx context.Context, message string) (string, error) {
	return m.reply, m.err
}

type testEnv struct {
	handler       *Handler
	router        *chi.Mux
	reminders     *mockReminderRepo
	events        *mockEventRepo
	users         *mockUserRepo
	notifications *mockNotificationRepo
	repair        *mockRepair
}

func newTestEnv(t *testing.T, opts Options) *testEnv {
	t.Helper()

	env := &testEnv{
		reminders:     &mockReminderRepo{},
		events:        newMockEventRepo(),
		users:         newMockUserRepo(),
		notifications: &mockNotificationRepo{},
		repair:        &mockRepair{},
	}
	env.handler = NewHandler(zap.NewNop(), env.reminders, env.events, env.users, env.notifications, env.repair, "test-secret", opts)

	r := chi.NewRouter()
	r.Route("/v1", func(r chi.Router) {
		r.Post("/auth/register", env.handler.Register)
		r.Post("/auth/login", env.handler.Login)
		r.Get("/events", env.handler.ListEvents)
		r.Get("/events/{id}", env.handler.GetEvent)
		r.Post("/chatbot", env.handler.Chat)
		r.Post("/admin/notifications/repair", env.handler.RunRepair)
		r.Group(func(r chi.Router) {
			r.Use(env.handler.RequireAuth)
			r.Post("/reminders", env.handler.CreateReminder)
			r.Get("/notifications", env.handler.ListNotifications)
			r.Post("/notifications", env.handler.CreateNotification)
			r.Post("/notifications/read", env.handler.MarkNotificationsRead)
			r.Post("/bookmarks", env.handler.AddBookmark)
			r.Delete("/bookmarks/{eventID}", env.handler.RemoveBookmark)
		})
	})
	env.router = r

	return env
}

func (env *testEnv) request(t *testing.T, method, path string, body any, token string) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}

	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	return rec
}

func (env *testEnv) registerUser(t *testing.T, email string) string {
	t.Helper()

	rec := env.request(t, http.MethodPost, "/v1/auth/register", RegisterRequest{
		Name:     "Test User",
		Email:    email,
		Password: "hunter22",
	}, "")
	if rec.Code != http.StatusCreated {
		t.Fatalf("register failed: %d %s", rec.Code, rec.Body)
	}

	var resp AuthResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode auth response: %v", err)
	}
	return resp.Token
}

func TestRegisterAndLogin(t *testing.T) {
	env := newTestEnv(t, Options{})

	token := env.registerUser(t, "alice@example.com")
	if token == "" {
		t.Fatal("expected a token from register")
	}

	rec := env.request(t, http.MethodPost, "/v1/auth/login", LoginRequest{
		Email:    "alice@example.com",
		Password: "hunter22",
	}, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("login: got %d, body %s", rec.Code, rec.Body)
	}

	var resp AuthResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.User.Email != "alice@example.com" {
		t.Errorf("unexpected user: %+v", resp.User)
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	env := newTestEnv(t, Options{})
	env.registerUser(t, "alice@example.com")

	rec := env.request(t, http.MethodPost, "/v1/auth/register", RegisterRequest{
		Name:     "Other Alice",
		Email:    "alice@example.com",
		Password: "different",
	}, "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("got %d, want 400", rec.Code)
	}

	var resp ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Type != "duplicate_email" {
		t.Errorf("unexpected error type: %q", resp.Type)
	}
}

func TestRegisterMissingFields(t *testing.T) {
	env := newTestEnv(t, Options{})

	rec := env.request(t, http.MethodPost, "/v1/auth/register", RegisterRequest{Email: "no-password@example.com"}, "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("got %d, want 400", rec.Code)
	}
}

func TestLoginWrongPassword(t *testing.T) {
	env := newTestEnv(t, Options{})
	env.registerUser(t, "alice@example.com")

	rec := env.request(t, http.MethodPost, "/v1/auth/login", LoginRequest{
		Email:    "alice@example.com",
		Password: "wrong",
	}, "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("got %d, want 400", rec.Code)
	}
}

func TestRequireAuth(t *testing.T) {
	env := newTestEnv(t, Options{})

	cases := []struct {
		name  string
		token string
	}{
		{"missing token", ""},
		{"garbage token", "not-a-jwt"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := env.request(t, http.MethodGet, "/v1/notifications", nil, tc.token)
			if rec.Code != http.StatusUnauthorized {
				t.Errorf("got %d, want 401", rec.Code)
			}
		})
	}
}

func TestRequireAuthRejectsForeignSignature(t *testing.T) {
	env := newTestEnv(t, Options{})

	other := NewHandler(zap.NewNop(), env.reminders, env.events, env.users, env.notifications, env.repair, "other-secret", Options{})
	token, err := other.issueToken(uuid.New())
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	rec := env.request(t, http.MethodGet, "/v1/notifications", nil, token)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("got %d, want 401", rec.Code)
	}
}

func TestCreateReminder(t *testing.T) {
	env := newTestEnv(t, Options{})
	token := env.registerUser(t, "alice@example.com")

	ev := &db.Event{ID: uuid.New(), Title: "Go Meetup"}
	env.events.events[ev.ID] = ev

	rec := env.request(t, http.MethodPost, "/v1/reminders", ReminderRequest{
		EventID:   ev.ID.String(),
		Recipient: "alice@example.com",
		TriggerAt: time.Now().Add(time.Hour),
	}, token)
	if rec.Code != http.StatusCreated {
		t.Fatalf("got %d, body %s", rec.Code, rec.Body)
	}

	if len(env.reminders.created) != 1 {
		t.Fatalf("expected 1 reminder created, got %d", len(env.reminders.created))
	}
	rem := env.reminders.created[0]
	if rem.Channel != mailer.ChannelEmail {
		t.Errorf("channel should default to email, got %q", rem.Channel)
	}
	if rem.EventID != ev.ID {
		t.Errorf("unexpected event id: %s", rem.EventID)
	}
}

func TestCreateReminderValidation(t *testing.T) {
	env := newTestEnv(t, Options{})
	token := env.registerUser(t, "alice@example.com")

	ev := &db.Event{ID: uuid.New(), Title: "Go Meetup"}
	env.events.events[ev.ID] = ev

	cases := []struct {
		name string
		req  ReminderRequest
		want int
	}{
		{
			"missing recipient",
			ReminderRequest{EventID: ev.ID.String(), TriggerAt: time.Now()},
			http.StatusBadRequest,
		},
		{
			"missing trigger time",
			ReminderRequest{EventID: ev.ID.String(), Recipient: "a@example.com"},
			http.StatusBadRequest,
		},
		{
			"bad channel",
			ReminderRequest{EventID: ev.ID.String(), Recipient: "a@example.com", Channel: "fax", TriggerAt: time.Now()},
			http.StatusBadRequest,
		},
		{
			"event id not a uuid",
			ReminderRequest{EventID: "nope", Recipient: "a@example.com", TriggerAt: time.Now()},
			http.StatusBadRequest,
		},
		{
			"unknown event",
			ReminderRequest{EventID: uuid.NewString(), Recipient: "a@example.com", TriggerAt: time.Now()},
			http.StatusNotFound,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := env.request(t, http.MethodPost, "/v1/reminders", tc.req, token)
			if rec.Code != tc.want {
				t.Errorf("got %d, want %d (body %s)", rec.Code, tc.want, rec.Body)
			}
		})
	}

	if len(env.reminders.created) != 0 {
		t.Errorf("no reminders should have been created, got %d", len(env.reminders.created))
	}
}

func newTestIdempotency(t *testing.T) *redis.IdempotencyService {
	t.Helper()

	mr := miniredis.RunT(t)
	port, err := strconv.Atoi(mr.Port())
	if err != nil {
		t.Fatalf("miniredis port: %v", err)
	}
	client, err := redis.New(context.Background(), redis.Config{Host: mr.Host(), Port: port}, zap.NewNop())
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })

	return redis.NewIdempotencyService(client, zap.NewNop())
}

func TestCreateReminderIdempotencyReplay(t *testing.T) {
	env := newTestEnv(t, Options{Idempotency: newTestIdempotency(t)})
	token := env.registerUser(t, "alice@example.com")

	ev := &db.Event{ID: uuid.New(), Title: "Go Meetup"}
	env.events.events[ev.ID] = ev

	body := ReminderRequest{
		EventID:   ev.ID.String(),
		Recipient: "alice@example.com",
		TriggerAt: time.Now().Add(time.Hour),
	}

	send := func() *httptest.ResponseRecorder {
		var buf bytes.Buffer
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode: %v", err)
		}
		req := httptest.NewRequest(http.MethodPost, "/v1/reminders", &buf)
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set("Idempotency-Key", "retry-42")
		rec := httptest.NewRecorder()
		env.router.ServeHTTP(rec, req)
		return rec
	}

	first := send()
	if first.Code != http.StatusCreated {
		t.Fatalf("first: got %d, body %s", first.Code, first.Body)
	}

	second := send()
	if second.Code != http.StatusCreated {
		t.Fatalf("second: got %d, body %s", second.Code, second.Body)
	}
	if second.Header().Get("X-Idempotency-Replayed") != "true" {
		t.Error("expected replay header on second request")
	}

	if len(env.reminders.created) != 1 {
		t.Errorf("replay must not create a second reminder, got %d", len(env.reminders.created))
	}

	var firstResp, secondResp ReminderResponse
	if err := json.Unmarshal(first.Body.Bytes(), &firstResp); err != nil {
		t.Fatalf("decode first: %v", err)
	}
	if err := json.Unmarshal(second.Body.Bytes(), &secondResp); err != nil {
		t.Fatalf("decode second: %v", err)
	}
	if firstResp.ID != secondResp.ID {
		t.Errorf("replay returned a different id: %q vs %q", firstResp.ID, secondResp.ID)
	}
}

func TestGetEvent(t *testing.T) {
	env := newTestEnv(t, Options{})

	ev := &db.Event{ID: uuid.New(), Title: "Go Meetup"}
	env.events.events[ev.ID] = ev

	rec := env.request(t, http.MethodGet, "/v1/events/"+ev.ID.String(), nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("got %d", rec.Code)
	}

	rec = env.request(t, http.MethodGet, "/v1/events/"+uuid.NewString(), nil, "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown event: got %d, want 404", rec.Code)
	}

	rec = env.request(t, http.MethodGet, "/v1/events/not-a-uuid", nil, "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad id: got %d, want 400", rec.Code)
	}
}

func TestListEventsEmptyIsArray(t *testing.T) {
	env := newTestEnv(t, Options{})

	rec := env.request(t, http.MethodGet, "/v1/events", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("got %d", rec.Code)
	}
	if got := rec.Body.String(); got != "[]\n" {
		t.Errorf("empty list must encode as [], got %q", got)
	}
}

func TestCreateNotificationDefaults(t *testing.T) {
	env := newTestEnv(t, Options{})
	token := env.registerUser(t, "alice@example.com")

	rec := env.request(t, http.MethodPost, "/v1/notifications", NotificationRequest{
		Message: "Your event starts soon",
	}, token)
	if rec.Code != http.StatusCreated {
		t.Fatalf("got %d, body %s", rec.Code, rec.Body)
	}

	if len(env.notifications.created) != 1 {
		t.Fatal("expected notification created")
	}
	n := env.notifications.created[0]
	if n.Kind != db.KindReminder {
		t.Errorf("kind should default to reminder, got %q", n.Kind)
	}
	if n.OccurredAt == nil || n.OccurredAt.IsZero() {
		t.Error("occurred_at should default to now")
	}
}

func TestCreateNotificationRejectsUnknownKind(t *testing.T) {
	env := newTestEnv(t, Options{})
	token := env.registerUser(t, "alice@example.com")

	rec := env.request(t, http.MethodPost, "/v1/notifications", NotificationRequest{
		Message: "hello",
		Kind:    "carrier-pigeon",
	}, token)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("got %d, want 400", rec.Code)
	}
}

func TestMarkNotificationsRead(t *testing.T) {
	env := newTestEnv(t, Options{})
	env.notifications.marked = 3
	token := env.registerUser(t, "alice@example.com")

	rec := env.request(t, http.MethodPost, "/v1/notifications/read", nil, token)
	if rec.Code != http.StatusOK {
		t.Fatalf("got %d", rec.Code)
	}

	var resp map[string]int
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp["updated"] != 3 {
		t.Errorf("updated: got %d, want 3", resp["updated"])
	}
}

func TestBookmarkLifecycle(t *testing.T) {
	env := newTestEnv(t, Options{})
	token := env.registerUser(t, "alice@example.com")

	eventID := uuid.New()

	rec := env.request(t, http.MethodPost, "/v1/bookmarks", BookmarkRequest{EventID: eventID.String()}, token)
	if rec.Code != http.StatusOK {
		t.Fatalf("add: got %d, body %s", rec.Code, rec.Body)
	}

	var ids []uuid.UUID
	if err := json.Unmarshal(rec.Body.Bytes(), &ids); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(ids) != 1 || ids[0] != eventID {
		t.Errorf("expected [%s], got %v", eventID, ids)
	}

	rec = env.request(t, http.MethodDelete, fmt.Sprintf("/v1/bookmarks/%s", eventID), nil, token)
	if rec.Code != http.StatusOK {
		t.Fatalf("remove: got %d", rec.Code)
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &ids); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(ids) != 0 {
		t.Errorf("expected empty list after removal, got %v", ids)
	}
}

func TestRunRepair(t *testing.T) {
	env := newTestEnv(t, Options{})
	env.repair.fixed = 7

	rec := env.request(t, http.MethodPost, "/v1/admin/notifications/repair", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("got %d", rec.Code)
	}

	var resp RepairResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.RecordsFixed != 7 {
		t.Errorf("records_fixed: got %d, want 7", resp.RecordsFixed)
	}
}

func TestRunRepairError(t *testing.T) {
	env := newTestEnv(t, Options{})
	env.repair.err = errors.New("pool closed")

	rec := env.request(t, http.MethodPost, "/v1/admin/notifications/repair", nil, "")
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("got %d, want 500", rec.Code)
	}
}

func TestChat(t *testing.T) {
	env := newTestEnv(t, Options{Chatbot: &mockChatbot{reply: "The event starts at 6pm."}})

	rec := env.request(t, http.MethodPost, "/v1/chatbot", ChatRequest{Message: "When does it start?"}, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("got %d, body %s", rec.Code, rec.Body)
	}

	var resp ChatResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Reply != "The event starts at 6pm." {
		t.Errorf("unexpected reply: %q", resp.Reply)
	}
}

func TestChatUnconfigured(t *testing.T) {
	env := newTestEnv(t, Options{})

	rec := env.request(t, http.MethodPost, "/v1/chatbot", ChatRequest{Message: "hello"}, "")
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("got %d, want 503", rec.Code)
	}
}

func TestChatUpstreamFailure(t *testing.T) {
	env := newTestEnv(t, Options{Chatbot: &mockChatbot{err: errors.New("upstream 500")}})

	rec := env.request(t, http.MethodPost, "/v1/chatbot", ChatRequest{Message: "hello"}, "")
	if rec.Code != http.StatusBadGateway {
		t.Errorf("got %d, want 502", rec.Code)
	}
}

func TestChatMissingMessage(t *testing.T) {
	env := newTestEnv(t, Options{Chatbot: &mockChatbot{reply: "hi"}})

	rec := env.request(t, http.MethodPost, "/v1/chatbot", ChatRequest{}, "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("got %d, want 400", rec.Code)
	}
}

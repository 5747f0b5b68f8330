package handler

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GreenShadeZhang/BotSharp-UI/internal/hub"
	"github.com/GreenShadeZhang/BotSharp-UI/internal/interceptor"
	"github.com/GreenShadeZhang/BotSharp-UI/internal/middleware"
	"github.com/GreenShadeZhang/BotSharp-UI/internal/model"
	"github.com/GreenShadeZhang/BotSharp-UI/internal/notify"
	"github.com/GreenShadeZhang/BotSharp-UI/internal/session"
	"github.com/GreenShadeZhang/BotSharp-UI/internal/transport"
)

const testSecret = "companion-secret"

type fakeChannel struct {
	mu      sync.Mutex
	state   transport.State
	conv    string
	streams int
}

func (c *fakeChannel) State() transport.State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *fakeChannel) ConversationID() string { return c.conv }

func (c *fakeChannel) ActiveStreams() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.streams
}

func (c *fakeChannel) setState(s transport.State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

func (c *fakeChannel) setStreams(n int) {
	c.mu.Lock()
	c.streams = n
	c.mu.Unlock()
}

type fakeAuth struct {
	mu            sync.Mutex
	authenticated bool
	loggedOut     bool
	logoutErr     error
}

func (a *fakeAuth) IsAuthenticated(context.Context) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.authenticated
}

func (a *fakeAuth) UserInfo(context.Context) *model.UserInfo {
	return &model.UserInfo{Sub: "u1", Name: "Ada"}
}

func (a *fakeAuth) Logout(context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.loggedOut = true
	return a.logoutErr
}

func (a *fakeAuth) set(fn func(a *fakeAuth)) {
	a.mu.Lock()
	fn(a)
	a.mu.Unlock()
}

type fakeFlow struct {
	mu          sync.Mutex
	callbackErr error
	code, state string
}

func (f *fakeFlow) LoginURL(context.Context) (string, error) {
	return "https://sso.example.com/auth?state=s1", nil
}

func (f *fakeFlow) HandleCallback(_ context.Context, code, state string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.code, f.state = code, state
	return f.callbackErr
}

func (f *fakeFlow) fail(err error) {
	f.mu.Lock()
	f.callbackErr = err
	f.mu.Unlock()
}

func (f *fakeFlow) last() (string, string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.code, f.state
}

type nopConn struct{}

func (nopConn) Close(context.Context) error { return nil }

type anonymous struct{}

func (anonymous) CurrentToken(context.Context) string { return "" }

type fixture struct {
	server  *httptest.Server
	center  *notify.Center
	flags   *interceptor.Flags
	channel *fakeChannel
	auth    *fakeAuth
	flow    *fakeFlow
	hub     *hub.Channel
	sink    func() transport.Sink
	logins  atomic.Int32
}

func newFixture(t *testing.T, secret string) *fixture {
	t.Helper()

	f := &fixture{
		center:  notify.NewCenter(),
		flags:   interceptor.NewFlags(),
		channel: &fakeChannel{state: transport.StateOpen, conv: "c1"},
		auth:    &fakeAuth{authenticated: true},
		flow:    &fakeFlow{},
	}

	var mu sync.Mutex
	var sink transport.Sink
	f.hub = hub.NewChannel(transport.DialerFunc(func(_ context.Context, _ transport.Target, s transport.Sink) (transport.Conn, error) {
		mu.Lock()
		sink = s
		mu.Unlock()
		return nopConn{}, nil
	}), "ws://hub.local/chatHub", anonymous{}, nil)
	f.sink = func() transport.Sink {
		mu.Lock()
		defer mu.Unlock()
		return sink
	}

	router := NewRouter(RouterConfig{
		Health:            NewHealthHandler(f.channel),
		Status:            NewStatusHandler(f.flags, f.channel, f.auth, f.center),
		Notifications:     NewNotificationHandler(f.center, nil),
		Auth:              NewAuthHandler(f.flow, f.auth, func(context.Context) { f.logins.Add(1) }, nil),
		Events:            NewEventsHandler(f.hub, f.center, nil),
		Secret:            secret,
		CORSOrigins:       []string{"http://localhost:*"},
		RateLimitRequests: 1000,
		RateLimitWindow:   time.Minute,
	})
	f.server = httptest.NewServer(router)
	t.Cleanup(f.server.Close)
	return f
}

func (f *fixture) do(t *testing.T, method, path, token string) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequest(method, f.server.URL+path, nil)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	client := &http.Client{CheckRedirect: func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse }}
	resp, err := client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var buf strings.Builder
	_, err = bufio.NewReader(resp.Body).WriteTo(&buf)
	require.NoError(t, err)
	return resp, []byte(buf.String())
}

func signedToken(t *testing.T, subject string, scopes ...string) string {
	t.Helper()
	claims := middleware.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		Scopes: scopes,
	}
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return s
}

func TestHealthAndReady(t *testing.T) {
	f := newFixture(t, "")

	resp, body := f.do(t, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"status":"healthy"}`, string(body))
	assert.NotEmpty(t, resp.Header.Get("X-Correlation-ID"))

	resp, body = f.do(t, http.MethodGet, "/ready", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"status":"ready","conversation_id":"c1"}`, string(body))

	f.channel.setState(transport.StateReconnecting)
	resp, body = f.do(t, http.MethodGet, "/ready", "")
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.JSONEq(t, `{"status":"not ready","reason":"hub reconnecting"}`, string(body))
}

func TestMetricsEndpoint(t *testing.T) {
	f := newFixture(t, "")
	f.do(t, http.MethodGet, "/health", "")

	resp, body := f.do(t, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "companion_requests_total")
}

func TestStatus(t *testing.T) {
	f := newFixture(t, "")
	f.channel.setStreams(2)
	f.flags.SetLoading(true)
	f.center.Add(context.Background(), model.Notification{Message: "a"})

	resp, body := f.do(t, http.MethodGet, "/status", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var got StatusResponse
	require.NoError(t, json.Unmarshal(body, &got))
	assert.True(t, got.Loading)
	assert.False(t, got.GlobalError)
	assert.Equal(t, "open", got.Channel)
	assert.Equal(t, "c1", got.ConversationID)
	assert.Equal(t, 2, got.ActiveStreams)
	assert.True(t, got.Authenticated)
	require.NotNil(t, got.User)
	assert.Equal(t, "Ada", got.User.Name)
	assert.Equal(t, 1, got.UnreadCount)

	f.auth.set(func(a *fakeAuth) { a.authenticated = false })
	_, body = f.do(t, http.MethodGet, "/status", "")
	got = StatusResponse{}
	require.NoError(t, json.Unmarshal(body, &got))
	assert.Nil(t, got.User)
}

func TestNotifications(t *testing.T) {
	f := newFixture(t, "")
	ctx := context.Background()
	a := f.center.Add(ctx, model.Notification{Message: "a"})
	b := f.center.Add(ctx, model.Notification{Message: "b"})

	resp, body := f.do(t, http.MethodGet, "/notifications", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var st notify.State
	require.NoError(t, json.Unmarshal(body, &st))
	require.Len(t, st.Items, 2)
	assert.Equal(t, b, st.Items[0].ID)
	assert.Equal(t, 2, st.UnreadCount)

	resp, body = f.do(t, http.MethodPost, "/notifications/"+a+"/read", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"unread_count":1}`, string(body))

	_, body = f.do(t, http.MethodGet, "/notifications?unread=true", "")
	st = notify.State{}
	require.NoError(t, json.Unmarshal(body, &st))
	require.Len(t, st.Items, 1)
	assert.Equal(t, b, st.Items[0].ID)

	resp, _ = f.do(t, http.MethodPost, "/notifications/not-a-uuid/read", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = f.do(t, http.MethodPost, "/notifications/00000000-0000-0000-0000-000000000000/read", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = f.do(t, http.MethodDelete, "/notifications/"+b, "")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Zero(t, f.center.UnreadCount())

	resp, _ = f.do(t, http.MethodDelete, "/notifications/"+b, "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	f.center.Add(ctx, model.Notification{Message: "c"})
	resp, body = f.do(t, http.MethodPost, "/notifications/read-all", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"unread_count":0}`, string(body))
	assert.Zero(t, f.center.UnreadCount())

	resp, _ = f.do(t, http.MethodDelete, "/notifications", "")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Empty(t, f.center.Snapshot().Items)
}

func TestCompanionAuth(t *testing.T) {
	f := newFixture(t, testSecret)
	id := f.center.Add(context.Background(), model.Notification{Message: "a"})

	resp, _ := f.do(t, http.MethodGet, "/status", "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = f.do(t, http.MethodGet, "/status", "garbage")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	reader := signedToken(t, "ui")
	resp, _ = f.do(t, http.MethodGet, "/notifications", reader)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = f.do(t, http.MethodPost, "/notifications/"+id+"/read", reader)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	writer := signedToken(t, "ui", middleware.ScopeNotificationsWrite)
	resp, _ = f.do(t, http.MethodPost, "/notifications/"+id+"/read", writer)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	// health and the login callback stay open
	resp, _ = f.do(t, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp, _ = f.do(t, http.MethodGet, "/auth/callback?code=c&state=s", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestAuthCallback(t *testing.T) {
	f := newFixture(t, "")

	resp, _ := f.do(t, http.MethodGet, "/auth/callback?code=abc", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, body := f.do(t, http.MethodGet, "/auth/callback?error=access_denied&error_description=nope", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, string(body), "access_denied")

	resp, body = f.do(t, http.MethodGet, "/auth/callback?code=abc&state=s1", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"status":"authenticated"}`, string(body))
	code, state := f.flow.last()
	assert.Equal(t, "abc", code)
	assert.Equal(t, "s1", state)
	assert.Equal(t, int32(1), f.logins.Load())

	f.flow.fail(session.ErrStateMismatch)
	resp, _ = f.do(t, http.MethodGet, "/auth/callback?code=abc&state=forged", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	f.flow.fail(errors.New("token endpoint unavailable"))
	resp, _ = f.do(t, http.MethodGet, "/auth/callback?code=abc&state=s1", "")
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	assert.Equal(t, int32(1), f.logins.Load())
}

func TestAuthLoginAndLogout(t *testing.T) {
	f := newFixture(t, "")

	resp, _ := f.do(t, http.MethodGet, "/auth/login", "")
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "https://sso.example.com/auth?state=s1", resp.Header.Get("Location"))

	resp, _ = f.do(t, http.MethodPost, "/auth/logout", "")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	f.auth.set(func(a *fakeAuth) { assert.True(t, a.loggedOut) })

	f.auth.set(func(a *fakeAuth) { a.logoutErr = errors.New("store unavailable") })
	resp, _ = f.do(t, http.MethodPost, "/auth/logout", "")
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
}

type sseReader struct {
	r *bufio.Reader
}

func (s *sseReader) next(t *testing.T) (string, string) {
	t.Helper()
	var name, data string
	for {
		line, err := s.r.ReadString('\n')
		require.NoError(t, err)
		line = strings.TrimRight(line, "\n")
		switch {
		case strings.HasPrefix(line, "event: "):
			name = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			data = strings.TrimPrefix(line, "data: ")
		case line == "" && name != "":
			return name, data
		}
	}
}

func TestEventsStream(t *testing.T) {
	f := newFixture(t, "")
	f.hub.Start(context.Background(), "c1")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.server.URL+"/events", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	events := &sseReader{r: bufio.NewReader(resp.Body)}

	name, data := events.next(t)
	assert.Equal(t, "notifications", name)
	assert.JSONEq(t, `{"items":[],"unread_count":0}`, data)

	f.sink().Deliver(string(hub.KindClientMessage), []byte(`{"conversation_id":"c1","message_id":"m1","text":"hi","sender":{"role":"user"}}`))
	name, data = events.next(t)
	assert.Equal(t, string(hub.KindClientMessage), name)
	var ev struct {
		ConversationID string            `json:"conversation_id"`
		Payload        model.ChatMessage `json:"payload"`
	}
	require.NoError(t, json.Unmarshal([]byte(data), &ev))
	assert.Equal(t, "c1", ev.ConversationID)
	assert.Equal(t, "hi", ev.Payload.Text)

	f.sink().StateChanged(transport.StateReconnecting, errors.New("socket closed"))
	name, data = events.next(t)
	assert.Equal(t, "state", name)
	assert.JSONEq(t, `{"state":"reconnecting"}`, data)

	f.center.Add(context.Background(), model.Notification{Message: "ping"})
	name, data = events.next(t)
	assert.Equal(t, "notifications", name)
	assert.Contains(t, data, `"unread_count":1`)
}

package server

import (
	"net"
	"strings"
	"testing"
	"time"

	"github.com/NicolasHaas/gotalk/pkg/auth"
	"github.com/NicolasHaas/gotalk/pkg/crypto"
	"github.com/NicolasHaas/gotalk/pkg/datastore"
	"github.com/NicolasHaas/gotalk/pkg/model"
	"github.com/NicolasHaas/gotalk/pkg/protocol"
)

// startTestServer runs a full server on an ephemeral port with two seeded
// accounts: alice (admin) and bob (user), both with password "secret-password".
func startTestServer(t *testing.T) (*Server, string) {
	t.Helper()

	st := datastore.NewMemory()
	hash, err := crypto.HashPassword("secret-password")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if _, err := st.InsertUser("alice", hash, "Alice", model.RoleAdmin); err != nil {
		t.Fatalf("InsertUser: %v", err)
	}
	if _, err := st.InsertUser("bob", hash, "Bob", model.RoleUser); err != nil {
		t.Fatalf("InsertUser: %v", err)
	}

	cfg := DefaultConfig()
	cfg.Addr = "127.0.0.1:0"
	cfg.MetricsAddr = ""

	srv := New(cfg, Dependencies{Store: st})
	if err := srv.provider.Initialize(); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if err := srv.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(srv.Shutdown)

	return srv, srv.ln.Addr().String()
}

type testClient struct {
	t    *testing.T
	conn net.Conn
}

func dialTestClient(t *testing.T, addr string) *testClient {
	t.Helper()
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatalf("dial %s: %v", addr, err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return &testClient{t: t, conn: conn}
}

func (c *testClient) send(line string) {
	c.t.Helper()
	if err := protocol.WriteFrame(c.conn, line); err != nil {
		c.t.Fatalf("send %q: %v", line, err)
	}
}

func (c *testClient) recv() string {
	c.t.Helper()
	_ = c.conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	text, err := protocol.ReadFrame(c.conn)
	if err != nil {
		c.t.Fatalf("recv: %v", err)
	}
	return text
}

// login drives the handshake: prompt, credentials, /authok, help hint.
func (c *testClient) login(login, password string) {
	c.t.Helper()
	if got := c.recv(); !strings.HasPrefix(got, "Before working") {
		c.t.Fatalf("first frame = %q, want the authentication prompt", got)
	}
	c.send("/auth " + login + " " + password)
	if got := c.recv(); !strings.HasPrefix(got, protocol.TokenAuthOK+" ") {
		c.t.Fatalf("auth reply = %q, want %q prefix", got, protocol.TokenAuthOK)
	}
	if got := c.recv(); !strings.Contains(got, "/help") {
		c.t.Fatalf("post-auth frame = %q, want the /help hint", got)
	}
}

func TestEndToEndAuthAndBroadcast(t *testing.T) {
	_, addr := startTestServer(t)

	alice := dialTestClient(t, addr)
	alice.login("alice", "secret-password")

	bob := dialTestClient(t, addr)
	bob.login("bob", "secret-password")

	alice.send("hello from alice")

	if got := bob.recv(); !strings.HasSuffix(got, "Alice : hello from alice") {
		t.Errorf("bob received %q, want suffix %q", got, "Alice : hello from alice")
	}
	// The sender receives their own broadcast too.
	if got := alice.recv(); !strings.HasSuffix(got, "Alice : hello from alice") {
		t.Errorf("alice received %q, want suffix %q", got, "Alice : hello from alice")
	}
}

func TestEndToEndBadCredentialsRepromptsThenExit(t *testing.T) {
	_, addr := startTestServer(t)
	c := dialTestClient(t, addr)

	if got := c.recv(); !strings.HasPrefix(got, "Before working") {
		t.Fatalf("first frame = %q, want the authentication prompt", got)
	}
	c.send("/auth alice wrong-password")
	if got := c.recv(); got != "Invalid login or password" {
		t.Fatalf("reply = %q, want invalid-credentials message", got)
	}
	// The prompt is resent before the next attempt.
	if got := c.recv(); !strings.HasPrefix(got, "Before working") {
		t.Fatalf("frame after failed auth = %q, want the prompt again", got)
	}

	// /exit during the handshake terminates instead of re-prompting.
	c.send("/exit")
	if got := c.recv(); got != protocol.TokenExitOK {
		t.Fatalf("exit reply = %q, want %q", got, protocol.TokenExitOK)
	}
}

func TestEndToEndSecondLoginSameAccountRejected(t *testing.T) {
	_, addr := startTestServer(t)

	first := dialTestClient(t, addr)
	first.login("alice", "secret-password")

	second := dialTestClient(t, addr)
	if got := second.recv(); !strings.HasPrefix(got, "Before working") {
		t.Fatalf("first frame = %q, want the authentication prompt", got)
	}
	second.send("/auth alice secret-password")
	if got := second.recv(); got != "Account is already in use" {
		t.Errorf("reply = %q, want busy-account message", got)
	}
}

func TestEndToEndRegistration(t *testing.T) {
	srv, addr := startTestServer(t)

	c := dialTestClient(t, addr)
	if got := c.recv(); !strings.HasPrefix(got, "Before working") {
		t.Fatalf("first frame = %q, want the authentication prompt", got)
	}
	c.send("/reg carol hunter2-long Carol")
	if got := c.recv(); got != protocol.TokenRegOK+" Carol" {
		t.Fatalf("reg reply = %q, want %q", got, protocol.TokenRegOK+" Carol")
	}
	if got := c.recv(); !strings.Contains(got, "/help") {
		t.Fatalf("post-reg frame = %q, want the /help hint", got)
	}

	if got := srv.metrics.UsersRegistered.Load(); got != 1 {
		t.Errorf("UsersRegistered = %d, want 1", got)
	}

	// The fresh account can message immediately.
	c.send("/getRole")
	if got := c.recv(); got != "Your role/roles: [USER]" {
		t.Errorf("role reply = %q, want %q", got, "Your role/roles: [USER]")
	}
}

func TestEndToEndDirectMessageAndKick(t *testing.T) {
	_, addr := startTestServer(t)

	alice := dialTestClient(t, addr)
	alice.login("alice", "secret-password")
	bob := dialTestClient(t, addr)
	bob.login("bob", "secret-password")

	alice.send("/w Bob you there?")
	if got := bob.recv(); !strings.HasSuffix(got, "Alice : you there?") {
		t.Errorf("bob received %q, want suffix %q", got, "Alice : you there?")
	}
	// Sender gets the echo copy.
	if got := alice.recv(); !strings.HasSuffix(got, "Alice : you there?") {
		t.Errorf("alice received %q, want suffix %q", got, "Alice : you there?")
	}

	// Bob is a plain user and cannot kick.
	bob.send("/kick Alice")
	if got := bob.recv(); got != "You are not an administrator and cannot remove users from the chat." {
		t.Fatalf("non-admin kick reply = %q", got)
	}

	// Alice is an admin and can.
	alice.send("/kick Bob")
	if got := bob.recv(); got != "You have been disconnected from the server by the administrator." {
		t.Errorf("kick notice = %q", got)
	}
	if got := bob.recv(); got != protocol.TokenExitOK {
		t.Errorf("kick exit token = %q, want %q", got, protocol.TokenExitOK)
	}
	if got := alice.recv(); got != "Client with nickname Bob disconnected from chat" {
		t.Errorf("admin confirmation = %q", got)
	}
}

// fakeProvider authenticates any credentials as a user named after the login.
type fakeProvider struct{}

func (fakeProvider) Initialize() error { return nil }

func (fakeProvider) Authenticate(sess auth.Session, login, _ string) bool {
	user := model.NewUser(1, login, "", login, model.NewRoleSet(model.RoleUser))
	if err := sess.Bind(user); err != nil {
		return false
	}
	sess.Send(protocol.TokenAuthOK + " " + login)
	return true
}

func (fakeProvider) Register(auth.Session, string, string, string, model.Role) bool {
	return false
}

func TestCustomProviderOverride(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Addr = "127.0.0.1:0"
	cfg.MetricsAddr = ""

	srv := New(cfg, Dependencies{Store: datastore.NewMemory(), Provider: fakeProvider{}})
	if err := srv.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(srv.Shutdown)

	c := dialTestClient(t, srv.ln.Addr().String())
	if got := c.recv(); !strings.HasPrefix(got, "Before working") {
		t.Fatalf("first frame = %q, want the authentication prompt", got)
	}
	c.send("/auth anyone anything")
	if got := c.recv(); got != protocol.TokenAuthOK+" anyone" {
		t.Errorf("auth reply = %q, want %q", got, protocol.TokenAuthOK+" anyone")
	}
}

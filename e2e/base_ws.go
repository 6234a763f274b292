package e2e

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"sodeclick-chat/auth"
	"sodeclick-chat/domain"
	"sodeclick-chat/domain/event"
	"sodeclick-chat/repositories"
	"testing"
	"time"

	"github.com/gookit/color"
	"github.com/gorilla/websocket"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

type BaseWsSuite struct {
	suite.Suite
	Config Config
	signer auth.TokenSigner
}

// SetupSuite loads the environment configuration and seeds the users when
// a database is reachable.
func (s *BaseWsSuite) SetupSuite() {
	var err error
	s.Config, err = LoadConfig()
	s.Require().NoError(err)
	if s.Config.ChatAddr == "" {
		s.T().Skip("CHAT_ADDR is not set")
	}
	s.signer = auth.NewTokenSigner(s.Config.JWTSecret, s.Config.JWTIssuer)

	if s.Config.DatabaseURL == "" {
		return
	}
	db, err := sql.Open("postgres", s.Config.DatabaseURL)
	s.Require().NoError(err)
	defer db.Close()
	users := repositories.NewUserRepository(db)
	ctx := context.Background()
	s.Require().NoError(users.Migrate(ctx))
	for _, u := range []domain.User{
		{ID: s.Config.AliceID, DisplayName: "Alice", Role: domain.UserRole, Tier: domain.MemberTier, Age: 29, Active: true},
		{ID: s.Config.BobID, DisplayName: "Bob", Role: domain.UserRole, Tier: domain.GoldTier, Age: 31, Active: true},
	} {
		s.Require().NoError(users.SaveUser(ctx, u))
	}
}

func (s *BaseWsSuite) Token(userID string) string {
	token, err := s.signer.GenerateToken(userID, time.Hour)
	s.Require().NoError(err)
	return token
}

// Frame is an outbound event as read by a client.
type Frame struct {
	Event   event.Name      `json:"event"`
	Channel string          `json:"channel"`
	Data    json.RawMessage `json:"data"`
}

// Client is one websocket connection that logs every frame.
type Client struct {
	t       func() *testing.T
	name    string
	conn    *websocket.Conn
	debug   bool
	colours bool
}

// Connect opens a websocket to the server, printing a header for the step.
func (s *BaseWsSuite) Connect(name string) *Client {
	header := fmt.Sprintf("  ====== %s ======", name)
	if s.Config.Colours {
		header = color.New(color.BgBlack, color.FgGreen).Render(header)
	}
	s.T().Log(header)

	h := http.Header{}
	h.Set("Origin", s.Config.Origin)
	conn, _, err := websocket.DefaultDialer.Dial("ws://"+s.Config.ChatAddr+"/ws", h)
	s.Require().NoError(err, "Failed to connect to chat server at "+s.Config.ChatAddr)
	client := &Client{t: s.T, name: name, conn: conn, debug: s.Config.DebugJSON, colours: s.Config.Colours}
	s.T().Cleanup(func() { _ = conn.Close() })
	return client
}

func (c *Client) Send(name event.Name, data any) {
	t := c.t()
	t.Helper()
	raw, err := json.Marshal(map[string]any{"event": name, "data": data})
	require.NoError(t, err)
	if c.debug {
		t.Logf("%s -> %s", c.name, raw)
	}
	require.NoError(t, c.conn.WriteMessage(websocket.TextMessage, raw))
}

// Expect reads frames until one named name arrives, failing on an error
// frame or after the timeout.
func (c *Client) Expect(name event.Name, timeout time.Duration) Frame {
	t := c.t()
	t.Helper()
	deadline := time.Now().Add(timeout)
	for {
		require.NoError(t, c.conn.SetReadDeadline(deadline))
		var f Frame
		require.NoError(t, c.conn.ReadJSON(&f), "%s waiting for %s", c.name, name)
		if c.debug {
			t.Logf("%s <- %s %s", c.name, f.Event, f.Data)
		}
		if f.Event == event.Error && name != event.Error {
			line := fmt.Sprintf("%s received an error: %s", c.name, f.Data)
			if c.colours {
				line = color.Red.Render(line)
			}
			t.Fatal(line)
		}
		if f.Event == name {
			return f
		}
	}
}

func Decode[T any](t *testing.T, f Frame) T {
	t.Helper()
	var payload T
	require.NoError(t, json.Unmarshal(f.Data, &payload))
	return payload
}

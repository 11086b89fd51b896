package rooms

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/outfoxed-dev/mafia-server/internal/config"
	"github.com/outfoxed-dev/mafia-server/internal/domain/room"
	"github.com/outfoxed-dev/mafia-server/internal/engine"
	"github.com/outfoxed-dev/mafia-server/internal/platform/clock"
	"github.com/outfoxed-dev/mafia-server/internal/platform/logger"
	"github.com/outfoxed-dev/mafia-server/internal/platform/metrics"
	"github.com/outfoxed-dev/mafia-server/internal/platform/random"
	"github.com/outfoxed-dev/mafia-server/internal/protocol"
)

type stubConn struct {
	msgs []protocol.Message
}

func (c *stubConn) Send(m protocol.Message) bool {
	c.msgs = append(c.msgs, m)
	return true
}

func (c *stubConn) count(typ string) int {
	n := 0
	for _, m := range c.msgs {
		if m.Type == typ {
			n++
		}
	}
	return n
}

func newTestManager(t *testing.T) (*Manager, *clock.Manual) {
	t.Helper()
	clk := clock.NewManual(time.Date(2026, 3, 1, 18, 0, 0, 0, time.UTC))
	m := NewManager(config.Default(), logger.NewNop(), metrics.New(), clk, random.NewSource(7), nil)
	t.Cleanup(m.Shutdown)
	return m, clk
}

// flush waits for all pending commands on a room's loop.
func (m *Manager) flush(t *testing.T, code string) {
	t.Helper()
	st, err := m.lookup(code)
	if err != nil {
		t.Fatalf("flush: %v", err)
	}
	st.loop.Run(func() {})
}

func TestCreateAndJoin(t *testing.T) {
	m, _ := newTestManager(t)
	host := &stubConn{}
	view, err := m.CreateRoom("u1", "alice", "", "Test Room", room.VisibilityPublic, nil, host)
	if err != nil {
		t.Fatal(err)
	}
	if len(view.Code) != room.CodeLength || view.HostID != "u1" {
		t.Fatalf("view = %+v", view)
	}

	joiner := &stubConn{}
	got, isReconnect, err := m.JoinRoom(view.Code, "u2", "bob", "", joiner)
	if err != nil || isReconnect {
		t.Fatalf("join: %v reconnect=%v", err, isReconnect)
	}
	if len(got.Players) != 2 {
		t.Fatalf("players = %d", len(got.Players))
	}
	if host.count(protocol.EventRoomPlayerJoined) != 1 {
		t.Fatal("host missed the join event")
	}
}

func TestJoinAcceptsLowercasePaddedCode(t *testing.T) {
	m, _ := newTestManager(t)
	view, _ := m.CreateRoom("u1", "alice", "", "Room", room.VisibilityPublic, nil, &stubConn{})
	sloppy := "  " + strings.ToLower(view.Code) + " "
	_, _, err := m.JoinRoom(sloppy, "u2", "bob", "", &stubConn{})
	if err != nil {
		t.Fatalf("join with sloppy code: %v", err)
	}
}

func TestJoinUnknownCode(t *testing.T) {
	m, _ := newTestManager(t)
	_, _, err := m.JoinRoom("ZZZZZZ", "u1", "alice", "", &stubConn{})
	if protocol.CodeOf(err) != protocol.ErrRoomNotFound {
		t.Fatalf("err = %v", err)
	}
}

func TestJoinFullRoom(t *testing.T) {
	m, _ := newTestManager(t)
	s := room.DefaultSettings()
	s.MaxPlayers = 3
	view, _ := m.CreateRoom("u1", "alice", "", "Room", room.VisibilityPublic, &s, &stubConn{})
	for i, id := range []string{"u2", "u3"} {
		if _, _, err := m.JoinRoom(view.Code, id, "p", "", &stubConn{}); err != nil {
			t.Fatalf("join %d: %v", i, err)
		}
	}
	_, _, err := m.JoinRoom(view.Code, "u4", "late", "", &stubConn{})
	if protocol.CodeOf(err) != protocol.ErrRoomFull {
		t.Fatalf("err = %v", err)
	}
}

func TestRejoinIsReconnect(t *testing.T) {
	m, _ := newTestManager(t)
	view, _ := m.CreateRoom("u1", "alice", "", "Room", room.VisibilityPublic, nil, &stubConn{})
	m.JoinRoom(view.Code, "u2", "bob", "", &stubConn{})

	fresh := &stubConn{}
	_, isReconnect, err := m.JoinRoom(view.Code, "u2", "bob", "", fresh)
	if err != nil || !isReconnect {
		t.Fatalf("rejoin: %v reconnect=%v", err, isReconnect)
	}
	if fresh.count(protocol.EventRoomUpdated) == 0 {
		t.Fatal("reconnect snapshot missing room state")
	}
}

func TestHostTransferOnLeave(t *testing.T) {
	m, _ := newTestManager(t)
	view, _ := m.CreateRoom("u1", "alice", "", "Room", room.VisibilityPublic, nil, &stubConn{})
	bob := &stubConn{}
	m.JoinRoom(view.Code, "u2", "bob", "", bob)

	if err := m.LeaveRoom(view.Code, "u1"); err != nil {
		t.Fatal(err)
	}
	st, _ := m.lookup(view.Code)
	st.loop.Run(func() {
		if st.room.HostID != "u2" {
			t.Errorf("host = %s", st.room.HostID)
		}
	})
}

func TestKickRules(t *testing.T) {
	m, _ := newTestManager(t)
	view, _ := m.CreateRoom("u1", "alice", "", "Room", room.VisibilityPublic, nil, &stubConn{})
	m.JoinRoom(view.Code, "u2", "bob", "", &stubConn{})

	if err := m.KickPlayer(view.Code, "u2", "u1"); protocol.CodeOf(err) != protocol.ErrNotAuthorized {
		t.Fatalf("non-host kick: %v", err)
	}
	if err := m.KickPlayer(view.Code, "u1", "u1"); protocol.CodeOf(err) != protocol.ErrInvalidTarget {
		t.Fatalf("self kick: %v", err)
	}
	if err := m.KickPlayer(view.Code, "u1", "u2"); err != nil {
		t.Fatalf("kick: %v", err)
	}
	st, _ := m.lookup(view.Code)
	st.loop.Run(func() {
		if st.room.Len() != 1 {
			t.Errorf("players = %d", st.room.Len())
		}
	})
}

func TestUpdateSettingsHostOnlyAndFrozenInGame(t *testing.T) {
	m, _ := newTestManager(t)
	view, _ := m.CreateRoom("u1", "alice", "", "Room", room.VisibilityPublic, nil, &stubConn{})
	m.JoinRoom(view.Code, "u2", "bob", "", &stubConn{})
	m.JoinRoom(view.Code, "u3", "carol", "", &stubConn{})

	s := room.DefaultSettings()
	s.TiePolicy = room.TieRandom
	if err := m.UpdateSettings(view.Code, "u2", s); protocol.CodeOf(err) != protocol.ErrNotAuthorized {
		t.Fatalf("non-host settings: %v", err)
	}
	if err := m.UpdateSettings(view.Code, "u1", s); err != nil {
		t.Fatalf("settings: %v", err)
	}

	if err := m.StartGame(view.Code, "u1"); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := m.UpdateSettings(view.Code, "u1", s); protocol.CodeOf(err) != protocol.ErrRoomInGame {
		t.Fatalf("in-game settings: %v", err)
	}
}

func TestListPublicRooms(t *testing.T) {
	m, _ := newTestManager(t)
	pub, _ := m.CreateRoom("u1", "alice", "", "Open Table", room.VisibilityPublic, nil, &stubConn{})
	m.CreateRoom("u2", "bob", "", "Secret", room.VisibilityPrivate, nil, &stubConn{})

	list := m.ListPublicRooms()
	if len(list) != 1 || list[0].Code != pub.Code {
		t.Fatalf("list = %+v", list)
	}

	// An in-game room drops out of the listing.
	m.JoinRoom(pub.Code, "u3", "carol", "", &stubConn{})
	m.JoinRoom(pub.Code, "u4", "dave", "", &stubConn{})
	if err := m.StartGame(pub.Code, "u1"); err != nil {
		t.Fatal(err)
	}
	if list := m.ListPublicRooms(); len(list) != 0 {
		t.Fatalf("list = %+v", list)
	}
}

func TestStartGameValidation(t *testing.T) {
	m, _ := newTestManager(t)
	view, _ := m.CreateRoom("u1", "alice", "", "Room", room.VisibilityPublic, nil, &stubConn{})

	if err := m.StartGame(view.Code, "u1"); protocol.CodeOf(err) != protocol.ErrNotEnoughPlayers {
		t.Fatalf("start with 1 player: %v", err)
	}
	m.JoinRoom(view.Code, "u2", "bob", "", &stubConn{})
	m.JoinRoom(view.Code, "u3", "carol", "", &stubConn{})
	if err := m.StartGame(view.Code, "u2"); protocol.CodeOf(err) != protocol.ErrNotAuthorized {
		t.Fatalf("non-host start: %v", err)
	}
	if err := m.StartGame(view.Code, "u1"); err != nil {
		t.Fatal(err)
	}
	if err := m.StartGame(view.Code, "u1"); protocol.CodeOf(err) != protocol.ErrRoomInGame {
		t.Fatalf("double start: %v", err)
	}
	// No new members mid-game.
	if _, _, err := m.JoinRoom(view.Code, "u4", "late", "", &stubConn{}); protocol.CodeOf(err) != protocol.ErrRoomInGame {
		t.Fatalf("mid-game join: %v", err)
	}
}

func TestDisconnectGraceEviction(t *testing.T) {
	m, clk := newTestManager(t)
	view, _ := m.CreateRoom("u1", "alice", "", "Room", room.VisibilityPublic, nil, &stubConn{})
	bob := &stubConn{}
	m.JoinRoom(view.Code, "u2", "bob", "", bob)

	m.HandleDisconnect(view.Code, "u2", bob)
	m.flush(t, view.Code)

	// Still a member inside the grace window.
	clk.Advance(30 * time.Second)
	m.flush(t, view.Code)
	st, _ := m.lookup(view.Code)
	st.loop.Run(func() {
		if st.room.Len() != 2 {
			t.Errorf("players = %d before grace expiry", st.room.Len())
		}
	})

	// Lobby grace is 60s; crossing it evicts.
	clk.Advance(31 * time.Second)
	m.flush(t, view.Code)
	st.loop.Run(func() {
		if st.room.Len() != 1 {
			t.Errorf("players = %d after grace expiry", st.room.Len())
		}
	})
}

func TestReconnectCancelsEviction(t *testing.T) {
	m, clk := newTestManager(t)
	view, _ := m.CreateRoom("u1", "alice", "", "Room", room.VisibilityPublic, nil, &stubConn{})
	bob := &stubConn{}
	m.JoinRoom(view.Code, "u2", "bob", "", bob)

	m.HandleDisconnect(view.Code, "u2", bob)
	clk.Advance(30 * time.Second)
	if _, isReconnect, err := m.JoinRoom(view.Code, "u2", "bob", "", &stubConn{}); err != nil || !isReconnect {
		t.Fatalf("reconnect: %v %v", err, isReconnect)
	}

	clk.Advance(2 * time.Minute)
	m.flush(t, view.Code)
	st, _ := m.lookup(view.Code)
	st.loop.Run(func() {
		if st.room.Len() != 2 {
			t.Errorf("players = %d, reconnect should cancel eviction", st.room.Len())
		}
	})
}

func TestEmptyRoomDestroyedAfterGrace(t *testing.T) {
	m, clk := newTestManager(t)
	view, _ := m.CreateRoom("u1", "alice", "", "Room", room.VisibilityPublic, nil, &stubConn{})

	if err := m.LeaveRoom(view.Code, "u1"); err != nil {
		t.Fatal(err)
	}
	if m.RoomCount() != 1 {
		t.Fatal("room destroyed before grace")
	}
	clk.Advance(config.Default().EmptyRoomGrace + time.Second)
	if m.RoomCount() != 0 {
		t.Fatal("room not destroyed after grace")
	}
	if _, err := m.lookup(view.Code); protocol.CodeOf(err) != protocol.ErrRoomNotFound {
		t.Fatalf("lookup after destroy: %v", err)
	}
}

func TestJoinDuringDestroyGraceKeepsRoom(t *testing.T) {
	m, clk := newTestManager(t)
	view, _ := m.CreateRoom("u1", "alice", "", "Room", room.VisibilityPublic, nil, &stubConn{})
	m.JoinRoom(view.Code, "u2", "bob", "", &stubConn{})
	m.LeaveRoom(view.Code, "u1")
	m.LeaveRoom(view.Code, "u2")

	// A join inside the grace window cancels destruction.
	if _, _, err := m.JoinRoom(view.Code, "u3", "carol", "", &stubConn{}); err != nil {
		t.Fatal(err)
	}
	clk.Advance(time.Minute)
	if m.RoomCount() != 1 {
		t.Fatal("room destroyed despite a live member")
	}
}

func TestLobbyChat(t *testing.T) {
	m, _ := newTestManager(t)
	view, _ := m.CreateRoom("u1", "alice", "", "Room", room.VisibilityPublic, nil, &stubConn{})
	bob := &stubConn{}
	m.JoinRoom(view.Code, "u2", "bob", "", bob)

	if err := m.DayChat(view.Code, "u1", "hello"); err != nil {
		t.Fatal(err)
	}
	delivered := false
	for _, msg := range bob.msgs {
		if msg.Type != protocol.EventDayChat {
			continue
		}
		var cm protocol.ChatMessage
		if json.Unmarshal(msg.Payload, &cm) == nil && cm.Content == "hello" && cm.SenderID == "u1" {
			delivered = true
		}
	}
	if !delivered {
		t.Fatal("chat not delivered")
	}
	if err := m.DayChat(view.Code, "u1", ""); err == nil {
		t.Fatal("empty message accepted")
	}
	if err := m.DayChat(view.Code, "u9", "hi"); protocol.CodeOf(err) != protocol.ErrRoomNotFound {
		t.Fatalf("outsider chat: %v", err)
	}
	if err := m.MafiaChat(view.Code, "u1", "psst"); protocol.CodeOf(err) != protocol.ErrNotAuthorized {
		t.Fatalf("lobby mafia chat: %v", err)
	}
}

func TestCodesAreUniqueAcrossRooms(t *testing.T) {
	m, _ := newTestManager(t)
	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		v, err := m.CreateRoom("host", "alice", "", "Room", room.VisibilityPrivate, nil, &stubConn{})
		if err != nil {
			t.Fatal(err)
		}
		if seen[v.Code] {
			t.Fatalf("duplicate code %s", v.Code)
		}
		seen[v.Code] = true
	}
}

// A join can land between the empty-room grace firing and the teardown body
// running. The repopulated room must stay indexed and usable.
func TestDestroyRacedByJoinKeepsRoom(t *testing.T) {
	m, _ := newTestManager(t)
	view, err := m.CreateRoom("u1", "alice", "", "Room", room.VisibilityPublic, nil, &stubConn{})
	if err != nil {
		t.Fatal(err)
	}
	m.mu.Lock()
	st := m.byCode[view.Code]
	m.mu.Unlock()

	// Teardown runs against a room that is no longer empty.
	m.destroyRoom(st)

	if m.RoomCount() != 1 {
		t.Fatalf("RoomCount = %d, want 1", m.RoomCount())
	}
	if _, _, err := m.JoinRoom(view.Code, "u2", "bob", "", &stubConn{}); err != nil {
		t.Fatalf("room unusable after raced teardown: %v", err)
	}
}

// Chat length limits count characters, not bytes.
func TestChatCountsRunesNotBytes(t *testing.T) {
	m, _ := newTestManager(t)
	view, _ := m.CreateRoom("u1", "alice", "", "Room", room.VisibilityPublic, nil, &stubConn{})

	long := strings.Repeat("ñ", 500) // 1000 bytes, 500 characters
	if err := m.DayChat(view.Code, "u1", long); err != nil {
		t.Fatalf("500-character message rejected: %v", err)
	}
	err := m.DayChat(view.Code, "u1", strings.Repeat("ñ", 501))
	if protocol.CodeOf(err) != protocol.ErrInvalidName {
		t.Fatalf("err = %v, want length rejection", err)
	}
}

// Server exit settles running games as a draw instead of dropping them cold.
func TestShutdownAbortsRunningGames(t *testing.T) {
	m, _ := newTestManager(t)
	host := &stubConn{}
	view, err := m.CreateRoom("u1", "alice", "", "Room", room.VisibilityPublic, nil, host)
	if err != nil {
		t.Fatal(err)
	}
	m.JoinRoom(view.Code, "u2", "bob", "", &stubConn{})
	m.JoinRoom(view.Code, "u3", "carol", "", &stubConn{})
	if err := m.StartGame(view.Code, "u1"); err != nil {
		t.Fatal(err)
	}

	m.Shutdown()
	if host.count(protocol.EventRoomError) != 1 {
		t.Fatal("no room:error on shutdown")
	}
	var end protocol.GameEndPayload
	for _, msg := range host.msgs {
		if msg.Type == protocol.EventGameEnd {
			if err := json.Unmarshal(msg.Payload, &end); err != nil {
				t.Fatal(err)
			}
		}
	}
	if end.Winner != engine.WinnerDraw {
		t.Fatalf("winner = %q, want a draw", end.Winner)
	}
}

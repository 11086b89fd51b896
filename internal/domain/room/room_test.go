package room

import (
	"errors"
	"testing"
	"time"
)

var t0 = time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)

func makeRoom(t *testing.T) *Room {
	t.Helper()
	r, err := New("room-1", "ABC123", "Friday Night", VisibilityPublic,
		Player{ID: "host", Username: "Hosty"}, DefaultSettings(), t0)
	if err != nil {
		t.Fatal(err)
	}
	return r
}

func TestNewRoomSeedsHost(t *testing.T) {
	r := makeRoom(t)
	if r.HostID != "host" {
		t.Fatalf("host = %q", r.HostID)
	}
	p, ok := r.Player("host")
	if !ok || !p.IsHost || !p.IsConnected || p.Status != StatusAlive {
		t.Fatalf("host seat = %+v", p)
	}
}

func TestNewRoomRejectsBadName(t *testing.T) {
	_, err := New("r", "ABC123", "", VisibilityPublic, Player{ID: "h"}, DefaultSettings(), t0)
	if !errors.Is(err, ErrInvalidName) {
		t.Fatalf("err = %v", err)
	}
	long := make([]byte, 31)
	for i := range long {
		long[i] = 'x'
	}
	_, err = New("r", "ABC123", string(long), VisibilityPublic, Player{ID: "h"}, DefaultSettings(), t0)
	if !errors.Is(err, ErrInvalidName) {
		t.Fatalf("err = %v", err)
	}
}

func TestAddPlayerDuplicate(t *testing.T) {
	r := makeRoom(t)
	if err := r.AddPlayer(Player{ID: "p1", Username: "one"}, t0); err != nil {
		t.Fatal(err)
	}
	if err := r.AddPlayer(Player{ID: "p1", Username: "one"}, t0); !errors.Is(err, ErrAlreadyMember) {
		t.Fatalf("err = %v", err)
	}
}

func TestAddPlayerCapacity(t *testing.T) {
	r := makeRoom(t)
	r.Settings.MaxPlayers = 3
	_ = r.AddPlayer(Player{ID: "p1"}, t0)
	_ = r.AddPlayer(Player{ID: "p2"}, t0)
	if err := r.AddPlayer(Player{ID: "p3"}, t0); !errors.Is(err, ErrRoomFull) {
		t.Fatalf("err = %v", err)
	}
}

func TestAddPlayerDuringGame(t *testing.T) {
	r := makeRoom(t)
	r.IsGameActive = true
	if err := r.AddPlayer(Player{ID: "p1"}, t0); !errors.Is(err, ErrGameInProgress) {
		t.Fatalf("err = %v", err)
	}
}

func TestHostTransferInsertionOrder(t *testing.T) {
	r := makeRoom(t)
	_ = r.AddPlayer(Player{ID: "p1"}, t0.Add(time.Second))
	_ = r.AddPlayer(Player{ID: "p2"}, t0.Add(2*time.Second))

	newHost, err := r.RemovePlayer("host")
	if err != nil {
		t.Fatal(err)
	}
	if newHost != "p1" || r.HostID != "p1" {
		t.Fatalf("host moved to %q", newHost)
	}
	p, _ := r.Player("p1")
	if !p.IsHost {
		t.Error("p1 seat not flagged as host")
	}
}

func TestHostTransferSkipsDisconnected(t *testing.T) {
	r := makeRoom(t)
	_ = r.AddPlayer(Player{ID: "p1"}, t0)
	_ = r.AddPlayer(Player{ID: "p2"}, t0)
	r.MarkDisconnected("p1", t0.Add(time.Minute))

	newHost, _ := r.RemovePlayer("host")
	if newHost != "p2" {
		t.Fatalf("host moved to %q, want the connected p2", newHost)
	}
}

func TestHostTransferFallsBackWhenAllDisconnected(t *testing.T) {
	r := makeRoom(t)
	_ = r.AddPlayer(Player{ID: "p1"}, t0)
	_ = r.AddPlayer(Player{ID: "p2"}, t0)
	r.MarkDisconnected("p1", t0)
	r.MarkDisconnected("p2", t0)

	newHost, _ := r.RemovePlayer("host")
	if newHost != "p1" {
		t.Fatalf("host moved to %q, want earliest-joined p1", newHost)
	}
}

func TestRemoveLastPlayerEmptiesRoom(t *testing.T) {
	r := makeRoom(t)
	if _, err := r.RemovePlayer("host"); err != nil {
		t.Fatal(err)
	}
	if !r.IsEmpty() || r.HostID != "" {
		t.Fatalf("room not emptied: host=%q len=%d", r.HostID, r.Len())
	}
	if _, err := r.RemovePlayer("host"); !errors.Is(err, ErrNotMember) {
		t.Fatalf("err = %v", err)
	}
}

func TestDisconnectReconnectRoundTrip(t *testing.T) {
	r := makeRoom(t)
	_ = r.AddPlayer(Player{ID: "p1"}, t0)

	when := t0.Add(5 * time.Minute)
	if !r.MarkDisconnected("p1", when) {
		t.Fatal("disconnect failed")
	}
	p, _ := r.Player("p1")
	if p.IsConnected || p.DisconnectedSince == nil || !p.DisconnectedSince.Equal(when) {
		t.Fatalf("seat after disconnect = %+v", p)
	}
	if r.ConnectedCount() != 1 {
		t.Fatalf("connected = %d", r.ConnectedCount())
	}

	if !r.Reconnect("p1") {
		t.Fatal("reconnect failed")
	}
	if !p.IsConnected || p.DisconnectedSince != nil {
		t.Fatalf("seat after reconnect = %+v", p)
	}
}

func TestSettingsValidate(t *testing.T) {
	s := DefaultSettings()
	if err := s.Validate(3, 20); err != nil {
		t.Fatalf("defaults invalid: %v", err)
	}
	s.MaxPlayers = 25
	if err := s.Validate(3, 20); err == nil {
		t.Error("over-capacity settings accepted")
	}
	s = DefaultSettings()
	s.TiePolicy = "COIN_FLIP"
	if err := s.Validate(3, 20); err == nil {
		t.Error("unknown tie policy accepted")
	}
	s = DefaultSettings()
	s.Timers.Voting = 2
	if err := s.Validate(3, 20); err == nil {
		t.Error("out-of-range timer accepted")
	}
}

func TestPublicViewHidesDisconnectTime(t *testing.T) {
	r := makeRoom(t)
	r.MarkDisconnected("host", t0)
	views := r.PublicViews()
	if len(views) != 1 {
		t.Fatal("missing view")
	}
	if views[0].DisconnectedSince != nil {
		t.Error("disconnect timestamp leaked into public view")
	}
}

package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/outfoxed-dev/mafia-server/internal/domain/role"
	"github.com/outfoxed-dev/mafia-server/internal/engine"
)

func openTestStore(t *testing.T) *GameStore {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "mafia.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleRecord(id string, endedAt time.Time) engine.Record {
	return engine.Record{
		GameID:   id,
		RoomID:   "room-1",
		RoomCode: "ABC123",
		Participants: []engine.ParticipantRecord{
			{PlayerID: "p1", Username: "alice", Role: role.Mafia, Team: role.TeamMafia},
			{PlayerID: "p2", Username: "bob", Role: role.Villager, Team: role.TeamTown},
			{PlayerID: "p3", Username: "carol", Role: role.Detective, Team: role.TeamTown},
		},
		Winner:         "TOWN_WINS",
		WinningPlayers: []string{"p2", "p3"},
		DayCount:       3,
		StartedAt:      endedAt.Add(-20 * time.Minute),
		EndedAt:        endedAt,
	}
}

func TestRecordAndListGames(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 20, 0, 0, 0, time.UTC)
	if err := s.RecordGame(ctx, sampleRecord("g1", base)); err != nil {
		t.Fatal(err)
	}
	if err := s.RecordGame(ctx, sampleRecord("g2", base.Add(time.Hour))); err != nil {
		t.Fatal(err)
	}

	games, err := s.RecentGames(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(games) != 2 {
		t.Fatalf("games = %d", len(games))
	}
	if games[0].GameID != "g2" {
		t.Fatalf("newest first, got %s", games[0].GameID)
	}
	if games[0].Players != 3 || games[0].Winner != "TOWN_WINS" || games[0].DayCount != 3 {
		t.Fatalf("summary = %+v", games[0])
	}
}

func TestRecentGamesHonorsLimit(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 20, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		rec := sampleRecord(string(rune('a'+i)), base.Add(time.Duration(i)*time.Minute))
		if err := s.RecordGame(ctx, rec); err != nil {
			t.Fatal(err)
		}
	}
	games, err := s.RecentGames(ctx, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(games) != 2 {
		t.Fatalf("games = %d", len(games))
	}
}

func TestStatsFor(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 20, 0, 0, 0, time.UTC)
	s.RecordGame(ctx, sampleRecord("g1", base))
	s.RecordGame(ctx, sampleRecord("g2", base.Add(time.Hour)))

	st, err := s.StatsFor(ctx, "p2")
	if err != nil {
		t.Fatal(err)
	}
	if st.Games != 2 || st.Wins != 2 {
		t.Fatalf("stats = %+v", st)
	}

	st, err = s.StatsFor(ctx, "p1")
	if err != nil {
		t.Fatal(err)
	}
	if st.Games != 2 || st.Wins != 0 {
		t.Fatalf("mafia stats = %+v", st)
	}

	st, err = s.StatsFor(ctx, "nobody")
	if err != nil {
		t.Fatal(err)
	}
	if st.Games != 0 || st.Wins != 0 {
		t.Fatalf("unknown player stats = %+v", st)
	}
}

// Consecutive games in one room are distinct rows keyed by game id.
func TestSameRoomRecordsConsecutiveGames(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 20, 0, 0, 0, time.UTC)

	first := sampleRecord("g1", base)
	second := sampleRecord("g2", base.Add(time.Hour))
	second.Winner = "MAFIA_WINS"
	second.WinningPlayers = []string{"p1"}
	if err := s.RecordGame(ctx, first); err != nil {
		t.Fatal(err)
	}
	if err := s.RecordGame(ctx, second); err != nil {
		t.Fatalf("second game in the same room: %v", err)
	}

	games, err := s.RecentGames(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(games) != 2 {
		t.Fatalf("games = %d, want both recorded", len(games))
	}
	if games[0].GameID != "g2" || games[0].Winner != "MAFIA_WINS" {
		t.Fatalf("summary = %+v", games[0])
	}

	st, err := s.StatsFor(ctx, "p1")
	if err != nil {
		t.Fatal(err)
	}
	if st.Games != 2 || st.Wins != 1 {
		t.Fatalf("stats = %+v", st)
	}
}

func TestDuplicateGameRejected(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 20, 0, 0, 0, time.UTC)
	if err := s.RecordGame(ctx, sampleRecord("g1", base)); err != nil {
		t.Fatal(err)
	}
	if err := s.RecordGame(ctx, sampleRecord("g1", base)); err == nil {
		t.Fatal("duplicate game id accepted")
	}
}

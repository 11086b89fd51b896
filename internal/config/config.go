// Package config holds server configuration: network addresses, auth
// material, resource bounds and the phase timer table. Values come from
// compiled defaults, optionally overridden by a .env file and the process
// environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Phase timer bounds for per-room overrides, in seconds.
const (
	MinPhaseSeconds = 5
	MaxPhaseSeconds = 600
)

// Timers is the per-phase duration table in seconds.
type Timers struct {
	RoleReveal    int `json:"roleReveal"`
	MafiaAction   int `json:"mafiaAction"`
	DonAction     int `json:"donAction"`
	DetectiveAct  int `json:"detectiveAction"`
	DoctorAction  int `json:"doctorAction"`
	VigilanteAct  int `json:"vigilanteAction"`
	OtherAction   int `json:"otherAction"`
	NightTotal    int `json:"nightTotal"`
	DayDiscussion int `json:"dayDiscussion"`
	Voting        int `json:"voting"`
	Resolution    int `json:"resolution"`
}

// DefaultTimers returns the stock phase durations.
func DefaultTimers() Timers {
	return Timers{
		RoleReveal:    10,
		MafiaAction:   40,
		DonAction:     25,
		DetectiveAct:  25,
		DoctorAction:  25,
		VigilanteAct:  20,
		OtherAction:   25,
		NightTotal:    90,
		DayDiscussion: 120,
		Voting:        45,
		Resolution:    10,
	}
}

// Validate checks every duration is inside the allowed override range.
func (t Timers) Validate() error {
	for _, v := range []int{
		t.RoleReveal, t.MafiaAction, t.DonAction, t.DetectiveAct,
		t.DoctorAction, t.VigilanteAct, t.OtherAction, t.NightTotal,
		t.DayDiscussion, t.Voting, t.Resolution,
	} {
		if v < MinPhaseSeconds || v > MaxPhaseSeconds {
			return fmt.Errorf("phase duration %ds outside [%d, %d]", v, MinPhaseSeconds, MaxPhaseSeconds)
		}
	}
	return nil
}

// Config is the full server configuration.
type Config struct {
	Addr        string
	Debug       bool
	JWTSecret   string
	AllowGuests bool
	DBPath      string

	MinPlayers int
	MaxPlayers int

	LobbyDisconnectGrace  time.Duration
	InGameDisconnectGrace time.Duration
	EmptyRoomGrace        time.Duration

	// Per-connection outbound queue; overflow disconnects the client.
	SendQueueSize int
	// Intent rate limit: sustained per second plus burst.
	IntentRate  float64
	IntentBurst int

	PublicChatBuffer int
	MafiaChatBuffer  int

	Timers Timers
}

// Default returns production defaults.
func Default() Config {
	return Config{
		Addr:                  ":8080",
		Debug:                 false,
		JWTSecret:             "",
		AllowGuests:           true,
		DBPath:                "mafia.db",
		MinPlayers:            3,
		MaxPlayers:            20,
		LobbyDisconnectGrace:  60 * time.Second,
		InGameDisconnectGrace: 120 * time.Second,
		EmptyRoomGrace:        30 * time.Second,
		SendQueueSize:         256,
		IntentRate:            5,
		IntentBurst:           20,
		PublicChatBuffer:      100,
		MafiaChatBuffer:       50,
		Timers:                DefaultTimers(),
	}
}

// Load builds the configuration from defaults, a .env file if present, and
// the process environment.
func Load() (Config, error) {
	// Missing .env is fine; explicit files are the development convention.
	_ = godotenv.Load()

	cfg := Default()
	if v := os.Getenv("MAFIA_ADDR"); v != "" {
		cfg.Addr = v
	}
	if v := os.Getenv("MAFIA_DEBUG"); v != "" {
		cfg.Debug = v == "1" || v == "true"
	}
	if v := os.Getenv("MAFIA_JWT_SECRET"); v != "" {
		cfg.JWTSecret = v
	}
	if v := os.Getenv("MAFIA_ALLOW_GUESTS"); v != "" {
		cfg.AllowGuests = v == "1" || v == "true"
	}
	if v := os.Getenv("MAFIA_DB_PATH"); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv("MAFIA_MAX_PLAYERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < cfg.MinPlayers {
			return cfg, fmt.Errorf("invalid MAFIA_MAX_PLAYERS %q", v)
		}
		cfg.MaxPlayers = n
	}
	if err := cfg.Timers.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

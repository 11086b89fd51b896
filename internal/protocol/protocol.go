// Package protocol defines the wire contract: the message envelope, the
// intent and event kind tags, and their payload shapes. Both the WebSocket
// transport and the game core speak these types; neither owns the other.
package protocol

import "encoding/json"

// Message is the envelope for every frame in both directions. CorrelationID
// is set by clients on intents that expect an acknowledgement; the matching
// Ack carries it back.
type Message struct {
	Type          string          `json:"type"`
	Payload       json.RawMessage `json:"payload,omitempty"`
	CorrelationID string          `json:"correlationId,omitempty"`
}

// Client to server intent kinds.
const (
	IntentRoomCreate     = "room:create"
	IntentRoomJoin       = "room:join"
	IntentRoomLeave      = "room:leave"
	IntentRoomKick       = "room:kick"
	IntentRoomSettings   = "room:updateSettings"
	IntentGameStart      = "game:start"
	IntentNightAction    = "night:action"
	IntentVoteCast       = "vote:cast"
	IntentRemovalRequest = "vote:requestRemoval"
	IntentDayChat        = "day:chat"
	IntentMafiaChat      = "mafia:chat"
	IntentReconnect      = "player:reconnect"
)

// Server to client event kinds.
const (
	EventRoomUpdated      = "room:updated"
	EventRoomPlayerJoined = "room:playerJoined"
	EventRoomPlayerLeft   = "room:playerLeft"
	EventRoomPlayerKicked = "room:playerKicked"
	EventRoomError        = "room:error"

	EventGameStarted     = "game:started"
	EventGameRoleReveal  = "game:roleReveal"
	EventGameStateUpdate = "game:stateUpdate"
	EventGamePhaseChange = "game:phaseChange"
	EventGameEnd         = "game:end"

	EventTimerUpdate       = "timer:update"
	EventTimerRoleSpecific = "timer:roleSpecific"

	EventNightActionRequired  = "night:actionRequired"
	EventNightActionConfirmed = "night:actionConfirmed"
	EventNightResult          = "night:result"
	EventNightDetectiveResult = "night:detectiveResult"
	EventNightDonResult       = "night:donResult"
	EventNightSpyResult       = "night:spyResult"

	EventVoteStarted       = "vote:started"
	EventVoteUpdate        = "vote:update"
	EventVoteResult        = "vote:result"
	EventVoteRemovalNotice = "vote:removalNotice"

	EventPlayerEliminated   = "player:eliminated"
	EventPlayerSilenced     = "player:silenced"
	EventPlayerDisconnected = "player:disconnected"
	EventPlayerReconnected  = "player:reconnected"

	EventDayChat         = "day:chat"
	EventMafiaChat       = "mafia:chat"
	EventMafiaVoteUpdate = "mafia:voteUpdate"

	EventAck   = "ack"
	EventError = "error"
)

// Intent payloads.

type RoomCreatePayload struct {
	Name       string          `json:"name"`
	Visibility string          `json:"visibility"`
	Avatar     string          `json:"avatar,omitempty"`
	Settings   json.RawMessage `json:"settings,omitempty"`
}

type RoomJoinPayload struct {
	Code     string `json:"code"`
	Username string `json:"username"`
	Avatar   string `json:"avatar,omitempty"`
}

type RoomCodePayload struct {
	Code string `json:"code"`
}

type RoomTargetPayload struct {
	Code     string `json:"code"`
	TargetID string `json:"targetId"`
}

type RoomSettingsPayload struct {
	Code     string          `json:"code"`
	Settings json.RawMessage `json:"settings"`
}

type ChatPayload struct {
	Code    string `json:"code"`
	Content string `json:"content"`
}

// Ack is the reply to a correlated intent.
type Ack struct {
	Success bool        `json:"success"`
	Room    interface{} `json:"room,omitempty"`
	Error   *ErrorBody  `json:"error,omitempty"`
}

// ErrorBody rides inside acks and error events.
type ErrorBody struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

// Event payloads.

type RoleRevealPayload struct {
	Role      string   `json:"role"`
	Team      string   `json:"team"`
	Teammates []string `json:"teammates,omitempty"`
}

type PhaseChangePayload struct {
	Phase     string `json:"phase"`
	Timer     int    `json:"timer"`
	DayNumber int    `json:"dayNumber"`
}

type TimerUpdatePayload struct {
	Remaining int    `json:"remaining"`
	Phase     string `json:"phase"`
}

type RoleTimerPayload struct {
	Remaining int    `json:"remaining"`
	ForRole   string `json:"forRole"`
}

type ActionRequiredPayload struct {
	Role         string   `json:"role"`
	Timer        int      `json:"timer"`
	ValidTargets []string `json:"validTargets"`
}

type ActionConfirmedPayload struct {
	ActionType string `json:"actionType"`
}

type DetectiveResultPayload struct {
	TargetID string `json:"targetId"`
	IsGuilty bool   `json:"isGuilty"`
}

type DonResultPayload struct {
	TargetID    string `json:"targetId"`
	IsDetective bool   `json:"isDetective"`
}

type SpyResultPayload struct {
	MafiaVoters []string `json:"mafiaVoters"`
}

// NightResultPayload carries only globally public facts.
type NightResultPayload struct {
	Deaths      []DeathNotice `json:"deaths"`
	AnyoneSaved bool          `json:"anyoneSaved"`
	DayNumber   int           `json:"dayNumber"`
}

type DeathNotice struct {
	PlayerID string `json:"playerId"`
	Role     string `json:"role,omitempty"`
	Cause    string `json:"cause"`
}

type VoteStartedPayload struct {
	Timer      int      `json:"timer"`
	Candidates []string `json:"candidates"`
}

type VoteUpdatePayload struct {
	Votes    map[string]string `json:"votes"`
	HasVoted []string          `json:"hasVoted"`
}

type VoteResultPayload struct {
	EliminatedID   string         `json:"eliminatedId,omitempty"`
	EliminatedRole string         `json:"eliminatedRole,omitempty"`
	VoteCounts     map[string]int `json:"voteCounts"`
}

type EliminatedPayload struct {
	PlayerID string `json:"playerId"`
	Role     string `json:"role,omitempty"`
	Reason   string `json:"reason"`
}

type GameEndPayload struct {
	Winner         string   `json:"winner"`
	WinningTeam    string   `json:"winningTeam"`
	WinningPlayers []string `json:"winningPlayers"`
}

type PlayerIDPayload struct {
	PlayerID string `json:"playerId"`
}

// ChatMessage is the broadcast shape for day, mafia and system chat.
type ChatMessage struct {
	ID             string `json:"id"`
	RoomID         string `json:"roomId"`
	SenderID       string `json:"senderId"`
	SenderUsername string `json:"senderUsername"`
	Content        string `json:"content"`
	Kind           string `json:"kind"`
	TimestampMs    int64  `json:"timestampMs"`
}

// Chat kinds.
const (
	ChatKindPlayer = "PLAYER"
	ChatKindMafia  = "MAFIA"
	ChatKindSystem = "SYSTEM"
)

// MustMarshal encodes a payload that is known to serialize. The payload
// structs above contain only marshalable fields.
func MustMarshal(v interface{}) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return b
}

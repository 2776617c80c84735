package turnnet

import "fmt"

// MessageType discriminates the payload carried by an Envelope.
type MessageType uint32

// Known message types. Values are part of the wire contract with the server.
const (
	TypeUnknown              MessageType = 0
	TypeLogin                MessageType = 1
	TypeHeartbeat            MessageType = 2
	TypeMatchRequest         MessageType = 3
	TypeMatchSuccess         MessageType = 4
	TypeBattleReady          MessageType = 5
	TypeBattleStart          MessageType = 6
	TypeBattleAction         MessageType = 7
	TypeBattleUpdate         MessageType = 8
	TypeBattleEnd            MessageType = 9
	TypeBattleRejoin         MessageType = 10
	TypeBattleRejoinResponse MessageType = 11
	TypeBattleSurrender      MessageType = 12
)

// String returns the string representation of the message type.
func (t MessageType) String() string {
	switch t {
	case TypeLogin:
		return "Login"
	case TypeHeartbeat:
		return "Heartbeat"
	case TypeMatchRequest:
		return "MatchRequest"
	case TypeMatchSuccess:
		return "MatchSuccess"
	case TypeBattleReady:
		return "BattleReady"
	case TypeBattleStart:
		return "BattleStart"
	case TypeBattleAction:
		return "BattleAction"
	case TypeBattleUpdate:
		return "BattleUpdate"
	case TypeBattleEnd:
		return "BattleEnd"
	case TypeBattleRejoin:
		return "BattleRejoin"
	case TypeBattleRejoinResponse:
		return "BattleRejoinResponse"
	case TypeBattleSurrender:
		return "BattleSurrender"
	default:
		return fmt.Sprintf("MessageType(%d)", uint32(t))
	}
}

// Known reports whether t is one of the message types defined above.
func (t MessageType) Known() bool {
	return t >= TypeLogin && t <= TypeBattleSurrender
}

// Envelope is one application-level message: a type tag, the session token
// and exactly one payload matching the tag.
//
// Login carries LoginRequest when sent and LoginResponse when received; every
// other type has a single payload variant. Payloads of types this client does
// not know decode into *RawPayload.
type Envelope struct {
	Type    MessageType
	Token   string
	Payload Payload
}

// Payload is the closed set of envelope bodies.
type Payload interface {
	isPayload()
}

// Validate reports whether the payload is a variant the message type allows.
// A nil payload is accepted for every type.
func (e *Envelope) Validate() error {
	if e.Payload == nil {
		return nil
	}
	if _, raw := e.Payload.(*RawPayload); raw || !e.Type.Known() {
		return nil
	}
	if !payloadMatches(e.Type, e.Payload) {
		return &FramingError{Reason: fmt.Sprintf("%s: %s carries %T", ErrMsgPayloadMismatch, e.Type, e.Payload)}
	}
	return nil
}

func payloadMatches(t MessageType, p Payload) bool {
	switch p.(type) {
	case *LoginRequest, *LoginResponse:
		return t == TypeLogin
	case *Heartbeat:
		return t == TypeHeartbeat
	case *MatchRequest:
		return t == TypeMatchRequest
	case *MatchSuccessResponse:
		return t == TypeMatchSuccess
	case *BattleReadyRequest:
		return t == TypeBattleReady
	case *BattleStartResponse:
		return t == TypeBattleStart
	case *BattleActionRequest:
		return t == TypeBattleAction
	case *BattleUpdateResponse:
		return t == TypeBattleUpdate
	case *BattleEndResponse:
		return t == TypeBattleEnd
	case *BattleRejoinRequest:
		return t == TypeBattleRejoin
	case *BattleRejoinResponse:
		return t == TypeBattleRejoinResponse
	case *BattleSurrenderRequest:
		return t == TypeBattleSurrender
	}
	return false
}

// RawPayload holds an undecoded body this client does not know. Field is the
// envelope field number the body arrived in.
type RawPayload struct {
	Field uint32
	Bytes []byte
}

// LoginRequest authenticates the long-lived connection. The token travels in
// the envelope; username and password are left empty after an HTTP login.
type LoginRequest struct {
	Username string
	Password string
}

type LoginResponse struct {
	Success bool
	Message string
}

// Heartbeat is the keep-alive tick. ClientTime is unix milliseconds.
type Heartbeat struct {
	ClientTime int64
}

type MatchRequest struct {
	UserID int64
}

// OpponentInfo describes the matched opponent.
type OpponentInfo struct {
	UserID    int64
	Nickname  string
	EloRating int32
}

type MatchSuccessResponse struct {
	BattleID string
	Opponent *OpponentInfo
}

type BattleReadyRequest struct {
	BattleID string
	UserID   int64
}

// PlayerState is a full snapshot of one combatant.
type PlayerState struct {
	UserID    int64
	Nickname  string
	CurrentHP int32
	MaxHP     int32
	IsAlive   bool
	// Cooldowns maps skill id to remaining rounds.
	Cooldowns map[int32]int32
}

type BattleStartResponse struct {
	BattleID           string
	Player1            *PlayerState
	Player2            *PlayerState
	CurrentActorUserID int64
	CurrentRound       int32
}

// Action types for BattleActionRequest.
const (
	ActionSkill  int32 = 1
	ActionDefend int32 = 2
	ActionItem   int32 = 3
)

type BattleActionRequest struct {
	BattleID   string
	UserID     int64
	ActionType int32
	// ParamID is the skill id or the item id depending on ActionType.
	ParamID int32
}

// BattleUpdateResponse carries the snapshot after one action plus the delta
// that produced it. The delta only makes sense once the previous snapshot
// has been presented.
type BattleUpdateResponse struct {
	BattleID        string
	CurrentRound    int32
	ActorUserID     int64
	TargetUserID    int64
	SkillID         int32
	SkillName       string
	Damage          int32
	Heal            int32
	NextActorUserID int64
	Player1         *PlayerState
	Player2         *PlayerState
}

type BattleEndResponse struct {
	BattleID  string
	WinnerID  int64
	EndReason string
}

type BattleRejoinRequest struct {
	UserID int64
}

// BattleRejoinResponse reports whether an unfinished battle exists. When
// Success is false the other fields are empty.
type BattleRejoinResponse struct {
	Success            bool
	BattleID           string
	Player1            *PlayerState
	Player2            *PlayerState
	CurrentActorUserID int64
	CurrentRound       int32
}

// AsStart converts a rejoin snapshot into the shape of a battle start.
func (r *BattleRejoinResponse) AsStart() *BattleStartResponse {
	return &BattleStartResponse{
		BattleID:           r.BattleID,
		Player1:            r.Player1,
		Player2:            r.Player2,
		CurrentActorUserID: r.CurrentActorUserID,
		CurrentRound:       r.CurrentRound,
	}
}

type BattleSurrenderRequest struct {
	BattleID string
	UserID   int64
}

func (*RawPayload) isPayload()             {}
func (*LoginRequest) isPayload()           {}
func (*LoginResponse) isPayload()          {}
func (*Heartbeat) isPayload()              {}
func (*MatchRequest) isPayload()           {}
func (*MatchSuccessResponse) isPayload()   {}
func (*BattleReadyRequest) isPayload()     {}
func (*BattleStartResponse) isPayload()    {}
func (*BattleActionRequest) isPayload()    {}
func (*BattleUpdateResponse) isPayload()   {}
func (*BattleEndResponse) isPayload()      {}
func (*BattleRejoinRequest) isPayload()    {}
func (*BattleRejoinResponse) isPayload()   {}
func (*BattleSurrenderRequest) isPayload() {}

package protocol

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/otaku1603/turnnet"
)

// Envelope field numbers. The payload is a oneof: each variant has its own
// field so that request and response bodies of the same type stay distinct.
const (
	fieldType  protowire.Number = 1
	fieldToken protowire.Number = 2

	fieldLoginRequest           protowire.Number = 10
	fieldLoginResponse          protowire.Number = 11
	fieldHeartbeat              protowire.Number = 12
	fieldMatchRequest           protowire.Number = 13
	fieldMatchSuccessResponse   protowire.Number = 14
	fieldBattleReadyRequest     protowire.Number = 15
	fieldBattleStartResponse    protowire.Number = 16
	fieldBattleActionRequest    protowire.Number = 17
	fieldBattleUpdateResponse   protowire.Number = 18
	fieldBattleEndResponse      protowire.Number = 19
	fieldBattleRejoinRequest    protowire.Number = 20
	fieldBattleRejoinResponse   protowire.Number = 21
	fieldBattleSurrenderRequest protowire.Number = 22

	// first field number available to payloads
	firstPayloadField protowire.Number = 10
)

// EncodeEnvelope serializes env into the protobuf wire format.
func EncodeEnvelope(env *turnnet.Envelope) ([]byte, error) {
	return AppendEnvelope(nil, env)
}

// AppendEnvelope appends the serialized env to dst.
func AppendEnvelope(dst []byte, env *turnnet.Envelope) ([]byte, error) {
	if env == nil {
		return nil, &turnnet.FramingError{Reason: "nil envelope"}
	}
	if err := env.Validate(); err != nil {
		return nil, err
	}
	if raw, ok := env.Payload.(*turnnet.RawPayload); ok {
		if n := protowire.Number(raw.Field); n < firstPayloadField || n > protowire.MaxValidNumber {
			return nil, &turnnet.FramingError{Reason: fmt.Sprintf("raw payload field %d out of range", raw.Field)}
		}
	}

	e := encoder{b: dst}
	e.uint(fieldType, uint64(env.Type))
	e.string(fieldToken, env.Token)
	if env.Payload != nil {
		num, body := marshalPayload(env.Payload)
		e.message(num, body)
	}
	return e.b, nil
}

// DecodeEnvelope parses a serialized envelope. The returned payload does not
// alias data except for *turnnet.RawPayload, whose Bytes do.
func DecodeEnvelope(data []byte) (*turnnet.Envelope, error) {
	env := &turnnet.Envelope{}
	err := walk(data, func(f field) error {
		switch {
		case f.num == fieldType && f.typ == protowire.VarintType:
			env.Type = turnnet.MessageType(f.v)
		case f.num == fieldToken && f.typ == protowire.BytesType:
			env.Token = string(f.b)
		case f.num >= firstPayloadField && f.typ == protowire.BytesType:
			p, err := unmarshalPayload(f.num, f.b)
			if err != nil {
				return err
			}
			env.Payload = p
		}
		return nil
	})
	if err != nil {
		return nil, &turnnet.FramingError{Reason: turnnet.ErrMsgMalformedEnvelope, Err: err}
	}
	if err := env.Validate(); err != nil {
		return nil, err
	}
	return env, nil
}

func marshalPayload(p turnnet.Payload) (protowire.Number, []byte) {
	var e encoder
	switch v := p.(type) {
	case *turnnet.LoginRequest:
		e.string(1, v.Username)
		e.string(2, v.Password)
		return fieldLoginRequest, e.b
	case *turnnet.LoginResponse:
		e.bool(1, v.Success)
		e.string(2, v.Message)
		return fieldLoginResponse, e.b
	case *turnnet.Heartbeat:
		e.int64(1, v.ClientTime)
		return fieldHeartbeat, e.b
	case *turnnet.MatchRequest:
		e.int64(1, v.UserID)
		return fieldMatchRequest, e.b
	case *turnnet.MatchSuccessResponse:
		e.string(1, v.BattleID)
		if v.Opponent != nil {
			e.message(2, marshalOpponent(v.Opponent))
		}
		return fieldMatchSuccessResponse, e.b
	case *turnnet.BattleReadyRequest:
		e.string(1, v.BattleID)
		e.int64(2, v.UserID)
		return fieldBattleReadyRequest, e.b
	case *turnnet.BattleStartResponse:
		e.string(1, v.BattleID)
		e.player(2, v.Player1)
		e.player(3, v.Player2)
		e.int64(4, v.CurrentActorUserID)
		e.int32(5, v.CurrentRound)
		return fieldBattleStartResponse, e.b
	case *turnnet.BattleActionRequest:
		e.string(1, v.BattleID)
		e.int64(2, v.UserID)
		e.int32(3, v.ActionType)
		e.int32(4, v.ParamID)
		return fieldBattleActionRequest, e.b
	case *turnnet.BattleUpdateResponse:
		e.string(1, v.BattleID)
		e.int32(2, v.CurrentRound)
		e.int64(3, v.ActorUserID)
		e.int64(4, v.TargetUserID)
		e.int32(5, v.SkillID)
		e.string(6, v.SkillName)
		e.int32(7, v.Damage)
		e.int32(8, v.Heal)
		e.int64(9, v.NextActorUserID)
		e.player(10, v.Player1)
		e.player(11, v.Player2)
		return fieldBattleUpdateResponse, e.b
	case *turnnet.BattleEndResponse:
		e.string(1, v.BattleID)
		e.int64(2, v.WinnerID)
		e.string(3, v.EndReason)
		return fieldBattleEndResponse, e.b
	case *turnnet.BattleRejoinRequest:
		e.int64(1, v.UserID)
		return fieldBattleRejoinRequest, e.b
	case *turnnet.BattleRejoinResponse:
		e.bool(1, v.Success)
		e.string(2, v.BattleID)
		e.player(3, v.Player1)
		e.player(4, v.Player2)
		e.int64(5, v.CurrentActorUserID)
		e.int32(6, v.CurrentRound)
		return fieldBattleRejoinResponse, e.b
	case *turnnet.BattleSurrenderRequest:
		e.string(1, v.BattleID)
		e.int64(2, v.UserID)
		return fieldBattleSurrenderRequest, e.b
	case *turnnet.RawPayload:
		return protowire.Number(v.Field), v.Bytes
	}
	panic(fmt.Sprintf("protocol: unhandled payload %T", p))
}

func unmarshalPayload(num protowire.Number, b []byte) (turnnet.Payload, error) {
	switch num {
	case fieldLoginRequest:
		v := &turnnet.LoginRequest{}
		return v, walk(b, func(f field) error {
			switch f.num {
			case 1:
				v.Username = f.str()
			case 2:
				v.Password = f.str()
			}
			return nil
		})
	case fieldLoginResponse:
		v := &turnnet.LoginResponse{}
		return v, walk(b, func(f field) error {
			switch f.num {
			case 1:
				v.Success = f.bool()
			case 2:
				v.Message = f.str()
			}
			return nil
		})
	case fieldHeartbeat:
		v := &turnnet.Heartbeat{}
		return v, walk(b, func(f field) error {
			if f.num == 1 {
				v.ClientTime = f.int64()
			}
			return nil
		})
	case fieldMatchRequest:
		v := &turnnet.MatchRequest{}
		return v, walk(b, func(f field) error {
			if f.num == 1 {
				v.UserID = f.int64()
			}
			return nil
		})
	case fieldMatchSuccessResponse:
		v := &turnnet.MatchSuccessResponse{}
		return v, walk(b, func(f field) error {
			switch f.num {
			case 1:
				v.BattleID = f.str()
			case 2:
				o, err := unmarshalOpponent(f.b)
				v.Opponent = o
				return err
			}
			return nil
		})
	case fieldBattleReadyRequest:
		v := &turnnet.BattleReadyRequest{}
		return v, walk(b, func(f field) error {
			switch f.num {
			case 1:
				v.BattleID = f.str()
			case 2:
				v.UserID = f.int64()
			}
			return nil
		})
	case fieldBattleStartResponse:
		v := &turnnet.BattleStartResponse{}
		return v, walk(b, func(f field) (err error) {
			switch f.num {
			case 1:
				v.BattleID = f.str()
			case 2:
				v.Player1, err = unmarshalPlayer(f.b)
			case 3:
				v.Player2, err = unmarshalPlayer(f.b)
			case 4:
				v.CurrentActorUserID = f.int64()
			case 5:
				v.CurrentRound = f.int32()
			}
			return err
		})
	case fieldBattleActionRequest:
		v := &turnnet.BattleActionRequest{}
		return v, walk(b, func(f field) error {
			switch f.num {
			case 1:
				v.BattleID = f.str()
			case 2:
				v.UserID = f.int64()
			case 3:
				v.ActionType = f.int32()
			case 4:
				v.ParamID = f.int32()
			}
			return nil
		})
	case fieldBattleUpdateResponse:
		v := &turnnet.BattleUpdateResponse{}
		return v, walk(b, func(f field) (err error) {
			switch f.num {
			case 1:
				v.BattleID = f.str()
			case 2:
				v.CurrentRound = f.int32()
			case 3:
				v.ActorUserID = f.int64()
			case 4:
				v.TargetUserID = f.int64()
			case 5:
				v.SkillID = f.int32()
			case 6:
				v.SkillName = f.str()
			case 7:
				v.Damage = f.int32()
			case 8:
				v.Heal = f.int32()
			case 9:
				v.NextActorUserID = f.int64()
			case 10:
				v.Player1, err = unmarshalPlayer(f.b)
			case 11:
				v.Player2, err = unmarshalPlayer(f.b)
			}
			return err
		})
	case fieldBattleEndResponse:
		v := &turnnet.BattleEndResponse{}
		return v, walk(b, func(f field) error {
			switch f.num {
			case 1:
				v.BattleID = f.str()
			case 2:
				v.WinnerID = f.int64()
			case 3:
				v.EndReason = f.str()
			}
			return nil
		})
	case fieldBattleRejoinRequest:
		v := &turnnet.BattleRejoinRequest{}
		return v, walk(b, func(f field) error {
			if f.num == 1 {
				v.UserID = f.int64()
			}
			return nil
		})
	case fieldBattleRejoinResponse:
		v := &turnnet.BattleRejoinResponse{}
		return v, walk(b, func(f field) (err error) {
			switch f.num {
			case 1:
				v.Success = f.bool()
			case 2:
				v.BattleID = f.str()
			case 3:
				v.Player1, err = unmarshalPlayer(f.b)
			case 4:
				v.Player2, err = unmarshalPlayer(f.b)
			case 5:
				v.CurrentActorUserID = f.int64()
			case 6:
				v.CurrentRound = f.int32()
			}
			return err
		})
	case fieldBattleSurrenderRequest:
		v := &turnnet.BattleSurrenderRequest{}
		return v, walk(b, func(f field) error {
			switch f.num {
			case 1:
				v.BattleID = f.str()
			case 2:
				v.UserID = f.int64()
			}
			return nil
		})
	}
	return &turnnet.RawPayload{Field: uint32(num), Bytes: b}, nil
}

func marshalOpponent(o *turnnet.OpponentInfo) []byte {
	var e encoder
	e.int64(1, o.UserID)
	e.string(2, o.Nickname)
	e.int32(3, o.EloRating)
	return e.b
}

func unmarshalOpponent(b []byte) (*turnnet.OpponentInfo, error) {
	o := &turnnet.OpponentInfo{}
	return o, walk(b, func(f field) error {
		switch f.num {
		case 1:
			o.UserID = f.int64()
		case 2:
			o.Nickname = f.str()
		case 3:
			o.EloRating = f.int32()
		}
		return nil
	})
}

func marshalPlayer(p *turnnet.PlayerState) []byte {
	var e encoder
	e.int64(1, p.UserID)
	e.string(2, p.Nickname)
	e.int32(3, p.CurrentHP)
	e.int32(4, p.MaxHP)
	e.bool(5, p.IsAlive)
	// map<int32,int32> entries; order is irrelevant on the wire
	for skill, rounds := range p.Cooldowns {
		var entry encoder
		entry.int32(1, skill)
		entry.int32(2, rounds)
		e.message(6, entry.b)
	}
	return e.b
}

func unmarshalPlayer(b []byte) (*turnnet.PlayerState, error) {
	p := &turnnet.PlayerState{}
	return p, walk(b, func(f field) error {
		switch f.num {
		case 1:
			p.UserID = f.int64()
		case 2:
			p.Nickname = f.str()
		case 3:
			p.CurrentHP = f.int32()
		case 4:
			p.MaxHP = f.int32()
		case 5:
			p.IsAlive = f.bool()
		case 6:
			var k, v int32
			err := walk(f.b, func(ef field) error {
				switch ef.num {
				case 1:
					k = ef.int32()
				case 2:
					v = ef.int32()
				}
				return nil
			})
			if err != nil {
				return err
			}
			if p.Cooldowns == nil {
				p.Cooldowns = make(map[int32]int32)
			}
			p.Cooldowns[k] = v
		}
		return nil
	})
}

// encoder appends proto3 fields, omitting scalar defaults.
type encoder struct {
	b []byte
}

func (e *encoder) uint(num protowire.Number, v uint64) {
	if v == 0 {
		return
	}
	e.b = protowire.AppendTag(e.b, num, protowire.VarintType)
	e.b = protowire.AppendVarint(e.b, v)
}

func (e *encoder) int64(num protowire.Number, v int64) { e.uint(num, uint64(v)) }

func (e *encoder) int32(num protowire.Number, v int32) { e.uint(num, uint64(int64(v))) }

func (e *encoder) bool(num protowire.Number, v bool) { e.uint(num, protowire.EncodeBool(v)) }

func (e *encoder) string(num protowire.Number, s string) {
	if s == "" {
		return
	}
	e.b = protowire.AppendTag(e.b, num, protowire.BytesType)
	e.b = protowire.AppendString(e.b, s)
}

// message always emits the field so that an empty sub-message stays present.
func (e *encoder) message(num protowire.Number, body []byte) {
	e.b = protowire.AppendTag(e.b, num, protowire.BytesType)
	e.b = protowire.AppendBytes(e.b, body)
}

func (e *encoder) player(num protowire.Number, p *turnnet.PlayerState) {
	if p != nil {
		e.message(num, marshalPlayer(p))
	}
}

// field is one decoded (tag, value) pair. Exactly one of v and b is set,
// according to typ.
type field struct {
	num protowire.Number
	typ protowire.Type
	v   uint64
	b   []byte
}

func (f field) int64() int64 { return int64(f.v) }

func (f field) int32() int32 { return int32(f.v) }

func (f field) bool() bool { return protowire.DecodeBool(f.v) }

func (f field) str() string { return string(f.b) }

// walk calls fn for every varint and length-delimited field in b and skips
// the rest. A truncated or malformed field stops the walk with an error.
func walk(b []byte, fn func(f field) error) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return protowire.ParseError(n)
		}
		b = b[n:]

		f := field{num: num, typ: typ}
		switch typ {
		case protowire.VarintType:
			f.v, n = protowire.ConsumeVarint(b)
		case protowire.BytesType:
			f.b, n = protowire.ConsumeBytes(b)
		default:
			n = protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return protowire.ParseError(n)
			}
			b = b[n:]
			continue
		}
		if n < 0 {
			return protowire.ParseError(n)
		}
		b = b[n:]

		if err := fn(f); err != nil {
			return err
		}
	}
	return nil
}

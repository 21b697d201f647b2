package tl

import (
	"errors"
	"fmt"
)

// Service-level constructors.
const (
	CrcMsgContainer        uint32 = 0x73f1f8dc
	CrcRPCResult           uint32 = 0xf35c6d01
	CrcRPCError            uint32 = 0x2144ca19
	CrcMsgsAck             uint32 = 0x62d6b459
	CrcBadMsgNotification  uint32 = 0xa7eff811
	CrcBadServerSalt       uint32 = 0xedab447b
	CrcNewSessionCreated   uint32 = 0x9ec20908
	CrcPing                uint32 = 0x7abe77ec
	CrcPong                uint32 = 0x347773c5
	CrcPingDelayDisconnect uint32 = 0xf3427b8c
	CrcGzipPacked          uint32 = 0x3072cfa1
	CrcGetFutureSalts      uint32 = 0xb921bd04
	CrcFutureSalts         uint32 = 0xae500895
	CrcFutureSalt          uint32 = 0x0949d9dc
	CrcDestroySession      uint32 = 0xe7512126
	CrcDestroySessionOk    uint32 = 0xe22045fc
	CrcDestroySessionNone  uint32 = 0x62d350c9
	CrcAuthBindTempAuthKey uint32 = 0xcdd42a05
	CrcBindAuthKeyInner    uint32 = 0x75a3f765
	CrcInvokeWithLayer     uint32 = 0xda9b0d0d
	CrcInitConnection      uint32 = 0xc1cd5ea9
)

// MaxContainerMessages bounds the number of messages in one container.
const MaxContainerMessages = 1024

var ErrContainerTooLarge = errors.New("tl: container holds too many messages")

// Message is one entry of a container. Body holds the encoded inner object
// so that one undecodable entry does not spoil its siblings.
type Message struct {
	MsgID int64
	SeqNo int32
	Body  []byte
}

// Object decodes the message body.
func (m *Message) Object() (Object, error) {
	return Decode(m.Body)
}

type MsgContainer struct {
	Messages []*Message
}

func (*MsgContainer) CRC() uint32 { return CrcMsgContainer }

func (c *MsgContainer) Encode(e *Encoder) {
	e.PutUint32(CrcMsgContainer)
	e.PutInt32(int32(len(c.Messages)))
	for _, m := range c.Messages {
		e.PutInt64(m.MsgID)
		e.PutInt32(m.SeqNo)
		e.PutInt32(int32(len(m.Body)))
		e.PutRaw(m.Body)
	}
}

func (c *MsgContainer) Decode(d *Decoder) error {
	n, err := d.Int32()
	if err != nil {
		return err
	}
	if n < 0 || n > MaxContainerMessages {
		return ErrContainerTooLarge
	}
	c.Messages = make([]*Message, n)
	for i := range c.Messages {
		m := new(Message)
		if m.MsgID, err = d.Int64(); err != nil {
			return err
		}
		if m.SeqNo, err = d.Int32(); err != nil {
			return err
		}
		size, err := d.Int32()
		if err != nil {
			return err
		}
		if size < 0 || size%WordLen != 0 {
			return ErrInvalidLength
		}
		body, err := d.take(int(size))
		if err != nil {
			return err
		}
		m.Body = append([]byte(nil), body...)
		c.Messages[i] = m
	}
	return nil
}

type RPCResult struct {
	ReqMsgID int64
	Result   Object
}

func (*RPCResult) CRC() uint32 { return CrcRPCResult }

func (r *RPCResult) Encode(e *Encoder) {
	e.PutUint32(CrcRPCResult)
	e.PutInt64(r.ReqMsgID)
	e.PutObject(r.Result)
}

func (r *RPCResult) Decode(d *Decoder) (err error) {
	if r.ReqMsgID, err = d.Int64(); err != nil {
		return err
	}
	r.Result, err = d.Object()
	return err
}

// RPCError is both the wire object and the Go error returned by handlers.
type RPCError struct {
	Code    int32
	Message string
}

func NewRPCError(code int32, message string) *RPCError {
	return &RPCError{Code: code, Message: message}
}

// Is matches errors with the same code and message, so that values built
// by separate constructor calls compare equal under errors.Is.
func (e *RPCError) Is(target error) bool {
	t, ok := target.(*RPCError)
	if !ok || e == nil || t == nil {
		return false
	}
	return e.Code == t.Code && e.Message == t.Message
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

func (*RPCError) CRC() uint32 { return CrcRPCError }

func (r *RPCError) Encode(e *Encoder) {
	e.PutUint32(CrcRPCError)
	e.PutInt32(r.Code)
	e.PutString(r.Message)
}

func (r *RPCError) Decode(d *Decoder) (err error) {
	if r.Code, err = d.Int32(); err != nil {
		return err
	}
	r.Message, err = d.String()
	return err
}

type MsgsAck struct {
	MsgIDs []int64
}

func (*MsgsAck) CRC() uint32 { return CrcMsgsAck }

func (m *MsgsAck) Encode(e *Encoder) {
	e.PutUint32(CrcMsgsAck)
	e.PutInt64Vector(m.MsgIDs)
}

func (m *MsgsAck) Decode(d *Decoder) (err error) {
	m.MsgIDs, err = d.Int64Vector()
	return err
}

type BadMsgNotification struct {
	BadMsgID    int64
	BadMsgSeqNo int32
	ErrorCode   int32
}

func (*BadMsgNotification) CRC() uint32 { return CrcBadMsgNotification }

func (b *BadMsgNotification) Encode(e *Encoder) {
	e.PutUint32(CrcBadMsgNotification)
	e.PutInt64(b.BadMsgID)
	e.PutInt32(b.BadMsgSeqNo)
	e.PutInt32(b.ErrorCode)
}

func (b *BadMsgNotification) Decode(d *Decoder) (err error) {
	if b.BadMsgID, err = d.Int64(); err != nil {
		return err
	}
	if b.BadMsgSeqNo, err = d.Int32(); err != nil {
		return err
	}
	b.ErrorCode, err = d.Int32()
	return err
}

type BadServerSalt struct {
	BadMsgID      int64
	BadMsgSeqNo   int32
	ErrorCode     int32
	NewServerSalt int64
}

func (*BadServerSalt) CRC() uint32 { return CrcBadServerSalt }

func (b *BadServerSalt) Encode(e *Encoder) {
	e.PutUint32(CrcBadServerSalt)
	e.PutInt64(b.BadMsgID)
	e.PutInt32(b.BadMsgSeqNo)
	e.PutInt32(b.ErrorCode)
	e.PutInt64(b.NewServerSalt)
}

func (b *BadServerSalt) Decode(d *Decoder) (err error) {
	if b.BadMsgID, err = d.Int64(); err != nil {
		return err
	}
	if b.BadMsgSeqNo, err = d.Int32(); err != nil {
		return err
	}
	if b.ErrorCode, err = d.Int32(); err != nil {
		return err
	}
	b.NewServerSalt, err = d.Int64()
	return err
}

type NewSessionCreated struct {
	FirstMsgID int64
	UniqueID   int64
	ServerSalt int64
}

func (*NewSessionCreated) CRC() uint32 { return CrcNewSessionCreated }

func (n *NewSessionCreated) Encode(e *Encoder) {
	e.PutUint32(CrcNewSessionCreated)
	e.PutInt64(n.FirstMsgID)
	e.PutInt64(n.UniqueID)
	e.PutInt64(n.ServerSalt)
}

func (n *NewSessionCreated) Decode(d *Decoder) (err error) {
	if n.FirstMsgID, err = d.Int64(); err != nil {
		return err
	}
	if n.UniqueID, err = d.Int64(); err != nil {
		return err
	}
	n.ServerSalt, err = d.Int64()
	return err
}

type Ping struct {
	PingID int64
}

func (*Ping) CRC() uint32 { return CrcPing }

func (p *Ping) Encode(e *Encoder) {
	e.PutUint32(CrcPing)
	e.PutInt64(p.PingID)
}

func (p *Ping) Decode(d *Decoder) (err error) {
	p.PingID, err = d.Int64()
	return err
}

type Pong struct {
	MsgID  int64
	PingID int64
}

func (*Pong) CRC() uint32 { return CrcPong }

func (p *Pong) Encode(e *Encoder) {
	e.PutUint32(CrcPong)
	e.PutInt64(p.MsgID)
	e.PutInt64(p.PingID)
}

func (p *Pong) Decode(d *Decoder) (err error) {
	if p.MsgID, err = d.Int64(); err != nil {
		return err
	}
	p.PingID, err = d.Int64()
	return err
}

// PingDelayDisconnect asks the server to close the connection if no further
// ping arrives within DisconnectDelay seconds.
type PingDelayDisconnect struct {
	PingID          int64
	DisconnectDelay int32
}

func (*PingDelayDisconnect) CRC() uint32 { return CrcPingDelayDisconnect }

func (p *PingDelayDisconnect) Encode(e *Encoder) {
	e.PutUint32(CrcPingDelayDisconnect)
	e.PutInt64(p.PingID)
	e.PutInt32(p.DisconnectDelay)
}

func (p *PingDelayDisconnect) Decode(d *Decoder) (err error) {
	if p.PingID, err = d.Int64(); err != nil {
		return err
	}
	p.DisconnectDelay, err = d.Int32()
	return err
}

type GzipPacked struct {
	Data []byte
}

func (*GzipPacked) CRC() uint32 { return CrcGzipPacked }

func (g *GzipPacked) Encode(e *Encoder) {
	e.PutUint32(CrcGzipPacked)
	e.PutBytes(g.Data)
}

func (g *GzipPacked) Decode(d *Decoder) (err error) {
	g.Data, err = d.Bytes()
	return err
}

type GetFutureSalts struct {
	Num int32
}

func (*GetFutureSalts) CRC() uint32 { return CrcGetFutureSalts }

func (g *GetFutureSalts) Encode(e *Encoder) {
	e.PutUint32(CrcGetFutureSalts)
	e.PutInt32(g.Num)
}

func (g *GetFutureSalts) Decode(d *Decoder) (err error) {
	g.Num, err = d.Int32()
	return err
}

// FutureSalt is always bare inside FutureSalts.
type FutureSalt struct {
	ValidSince int32
	ValidUntil int32
	Salt       int64
}

type FutureSalts struct {
	ReqMsgID int64
	Now      int32
	Salts    []FutureSalt
}

func (*FutureSalts) CRC() uint32 { return CrcFutureSalts }

func (f *FutureSalts) Encode(e *Encoder) {
	e.PutUint32(CrcFutureSalts)
	e.PutInt64(f.ReqMsgID)
	e.PutInt32(f.Now)
	e.PutInt32(int32(len(f.Salts)))
	for _, s := range f.Salts {
		e.PutInt32(s.ValidSince)
		e.PutInt32(s.ValidUntil)
		e.PutInt64(s.Salt)
	}
}

func (f *FutureSalts) Decode(d *Decoder) (err error) {
	if f.ReqMsgID, err = d.Int64(); err != nil {
		return err
	}
	if f.Now, err = d.Int32(); err != nil {
		return err
	}
	n, err := d.Int32()
	if err != nil {
		return err
	}
	if n < 0 || int(n)*16 > d.Len() {
		return ErrVectorTooLarge
	}
	f.Salts = make([]FutureSalt, n)
	for i := range f.Salts {
		s := &f.Salts[i]
		if s.ValidSince, err = d.Int32(); err != nil {
			return err
		}
		if s.ValidUntil, err = d.Int32(); err != nil {
			return err
		}
		if s.Salt, err = d.Int64(); err != nil {
			return err
		}
	}
	return nil
}

type DestroySession struct {
	SessionID int64
}

func (*DestroySession) CRC() uint32 { return CrcDestroySession }

func (s *DestroySession) Encode(e *Encoder) {
	e.PutUint32(CrcDestroySession)
	e.PutInt64(s.SessionID)
}

func (s *DestroySession) Decode(d *Decoder) (err error) {
	s.SessionID, err = d.Int64()
	return err
}

type DestroySessionOk struct {
	SessionID int64
}

func (*DestroySessionOk) CRC() uint32 { return CrcDestroySessionOk }

func (s *DestroySessionOk) Encode(e *Encoder) {
	e.PutUint32(CrcDestroySessionOk)
	e.PutInt64(s.SessionID)
}

func (s *DestroySessionOk) Decode(d *Decoder) (err error) {
	s.SessionID, err = d.Int64()
	return err
}

type DestroySessionNone struct {
	SessionID int64
}

func (*DestroySessionNone) CRC() uint32 { return CrcDestroySessionNone }

func (s *DestroySessionNone) Encode(e *Encoder) {
	e.PutUint32(CrcDestroySessionNone)
	e.PutInt64(s.SessionID)
}

func (s *DestroySessionNone) Decode(d *Decoder) (err error) {
	s.SessionID, err = d.Int64()
	return err
}

// AuthBindTempAuthKey binds the temporary key the request arrives on to a
// permanent key. EncryptedMessage holds a BindAuthKeyInner encrypted with
// the permanent key.
type AuthBindTempAuthKey struct {
	PermAuthKeyID    int64
	Nonce            int64
	ExpiresAt        int32
	EncryptedMessage []byte
}

func (*AuthBindTempAuthKey) CRC() uint32 { return CrcAuthBindTempAuthKey }

func (b *AuthBindTempAuthKey) Encode(e *Encoder) {
	e.PutUint32(CrcAuthBindTempAuthKey)
	e.PutInt64(b.PermAuthKeyID)
	e.PutInt64(b.Nonce)
	e.PutInt32(b.ExpiresAt)
	e.PutBytes(b.EncryptedMessage)
}

func (b *AuthBindTempAuthKey) Decode(d *Decoder) (err error) {
	if b.PermAuthKeyID, err = d.Int64(); err != nil {
		return err
	}
	if b.Nonce, err = d.Int64(); err != nil {
		return err
	}
	if b.ExpiresAt, err = d.Int32(); err != nil {
		return err
	}
	b.EncryptedMessage, err = d.Bytes()
	return err
}

type BindAuthKeyInner struct {
	Nonce         int64
	TempAuthKeyID int64
	PermAuthKeyID int64
	TempSessionID int64
	ExpiresAt     int32
}

func (*BindAuthKeyInner) CRC() uint32 { return CrcBindAuthKeyInner }

func (b *BindAuthKeyInner) Encode(e *Encoder) {
	e.PutUint32(CrcBindAuthKeyInner)
	e.PutInt64(b.Nonce)
	e.PutInt64(b.TempAuthKeyID)
	e.PutInt64(b.PermAuthKeyID)
	e.PutInt64(b.TempSessionID)
	e.PutInt32(b.ExpiresAt)
}

func (b *BindAuthKeyInner) Decode(d *Decoder) (err error) {
	if b.Nonce, err = d.Int64(); err != nil {
		return err
	}
	if b.TempAuthKeyID, err = d.Int64(); err != nil {
		return err
	}
	if b.PermAuthKeyID, err = d.Int64(); err != nil {
		return err
	}
	if b.TempSessionID, err = d.Int64(); err != nil {
		return err
	}
	b.ExpiresAt, err = d.Int32()
	return err
}

type InvokeWithLayer struct {
	Layer int32
	Query Object
}

func (*InvokeWithLayer) CRC() uint32 { return CrcInvokeWithLayer }

func (i *InvokeWithLayer) Encode(e *Encoder) {
	e.PutUint32(CrcInvokeWithLayer)
	e.PutInt32(i.Layer)
	e.PutObject(i.Query)
}

func (i *InvokeWithLayer) Decode(d *Decoder) (err error) {
	if i.Layer, err = d.Int32(); err != nil {
		return err
	}
	i.Query, err = d.Object()
	return err
}

type InitConnection struct {
	Flags          Flags
	APIID          int32
	DeviceModel    string
	SystemVersion  string
	AppVersion     string
	SystemLangCode string
	LangPack       string
	LangCode       string
	Proxy          Object // flags.0
	Params         Object // flags.1
	Query          Object
}

func (*InitConnection) CRC() uint32 { return CrcInitConnection }

func (i *InitConnection) Encode(e *Encoder) {
	e.PutUint32(CrcInitConnection)
	e.PutFlags(i.Flags)
	e.PutInt32(i.APIID)
	e.PutString(i.DeviceModel)
	e.PutString(i.SystemVersion)
	e.PutString(i.AppVersion)
	e.PutString(i.SystemLangCode)
	e.PutString(i.LangPack)
	e.PutString(i.LangCode)
	if i.Flags.Has(0) {
		e.PutObject(i.Proxy)
	}
	if i.Flags.Has(1) {
		e.PutObject(i.Params)
	}
	e.PutObject(i.Query)
}

func (i *InitConnection) Decode(d *Decoder) (err error) {
	if i.Flags, err = d.Flags(); err != nil {
		return err
	}
	if i.APIID, err = d.Int32(); err != nil {
		return err
	}
	for _, s := range []*string{&i.DeviceModel, &i.SystemVersion, &i.AppVersion, &i.SystemLangCode, &i.LangPack, &i.LangCode} {
		if *s, err = d.String(); err != nil {
			return err
		}
	}
	if i.Flags.Has(0) {
		if i.Proxy, err = d.Object(); err != nil {
			return err
		}
	}
	if i.Flags.Has(1) {
		if i.Params, err = d.Object(); err != nil {
			return err
		}
	}
	i.Query, err = d.Object()
	return err
}

// BoolTrue and BoolFalse are the boxed Bool results of RPC methods.
type BoolTrue struct{}

func (*BoolTrue) CRC() uint32             { return CrcTrue }
func (*BoolTrue) Encode(e *Encoder)       { e.PutUint32(CrcTrue) }
func (*BoolTrue) Decode(d *Decoder) error { return nil }

type BoolFalse struct{}

func (*BoolFalse) CRC() uint32             { return CrcFalse }
func (*BoolFalse) Encode(e *Encoder)       { e.PutUint32(CrcFalse) }
func (*BoolFalse) Decode(d *Decoder) error { return nil }

func NewBool(v bool) Object {
	if v {
		return &BoolTrue{}
	}
	return &BoolFalse{}
}

func init() {
	Register(
		func() Object { return new(MsgContainer) },
		func() Object { return new(RPCResult) },
		func() Object { return new(RPCError) },
		func() Object { return new(MsgsAck) },
		func() Object { return new(BadMsgNotification) },
		func() Object { return new(BadServerSalt) },
		func() Object { return new(NewSessionCreated) },
		func() Object { return new(Ping) },
		func() Object { return new(Pong) },
		func() Object { return new(PingDelayDisconnect) },
		func() Object { return new(GzipPacked) },
		func() Object { return new(GetFutureSalts) },
		func() Object { return new(FutureSalts) },
		func() Object { return new(DestroySession) },
		func() Object { return new(DestroySessionOk) },
		func() Object { return new(DestroySessionNone) },
		func() Object { return new(AuthBindTempAuthKey) },
		func() Object { return new(BindAuthKeyInner) },
		func() Object { return new(InvokeWithLayer) },
		func() Object { return new(InitConnection) },
		func() Object { return new(BoolTrue) },
		func() Object { return new(BoolFalse) },
	)
}

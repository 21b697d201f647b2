package tl

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBytesPadding(t *testing.T) {
	tests := []struct {
		name   string
		size   int
		header int
	}{
		{"empty", 0, 1},
		{"one byte", 1, 1},
		{"three bytes", 3, 1},
		{"short max", 253, 1},
		{"long min", 254, 4},
		{"long odd", 1001, 4},
		{"large", 70000, 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := bytes.Repeat([]byte{0xab}, tt.size)
			e := NewEncoder(0)
			e.PutBytes(in)
			out := e.Bytes()

			assert.Zero(t, len(out)%WordLen, "encoded length must be word aligned")
			assert.GreaterOrEqual(t, len(out), tt.header+tt.size)
			if tt.header == 4 {
				assert.Equal(t, byte(LongLengthMarker), out[0])
			}

			d := NewDecoder(out)
			got, err := d.Bytes()
			require.NoError(t, err)
			assert.Equal(t, in, got)
			assert.Zero(t, d.Len())
		})
	}
}

func TestBytesLengthLimits(t *testing.T) {
	t.Run("oversized string is an error", func(t *testing.T) {
		e := NewEncoder(0)
		e.PutInt32(7)
		e.PutBytes(make([]byte, maxBytesLength+1))
		e.PutInt32(8)
		assert.ErrorIs(t, e.Err(), ErrBytesTooLong)
		assert.Equal(t, 8, e.Len(), "the oversized value is not written")

		_, err := Marshal(&RPCError{Code: 400, Message: string(make([]byte, maxBytesLength+1))})
		assert.ErrorIs(t, err, ErrBytesTooLong)
	})

	t.Run("largest string encodes", func(t *testing.T) {
		e := NewEncoder(0)
		e.PutBytes(make([]byte, maxBytesLength))
		assert.NoError(t, e.Err())
	})

	t.Run("long prefix for a short string is rejected", func(t *testing.T) {
		raw := []byte{LongLengthMarker, 3, 0, 0, 'a', 'b', 'c', 0}
		_, err := NewDecoder(raw).Bytes()
		assert.ErrorIs(t, err, ErrInvalidLength)
	})

	t.Run("long prefix at the threshold is accepted", func(t *testing.T) {
		raw := append([]byte{LongLengthMarker, 254, 0, 0}, make([]byte, 256)...)
		got, err := NewDecoder(raw).Bytes()
		require.NoError(t, err)
		assert.Len(t, got, 254)
	})
}

func TestPrimitives(t *testing.T) {
	e := NewEncoder(0)
	e.PutInt32(-5)
	e.PutInt64(1 << 40)
	e.PutDouble(3.25)
	e.PutBool(true)
	e.PutBool(false)
	e.PutInt128([16]byte{1, 2, 3})
	e.PutInt256([32]byte{9})
	e.PutString("hello")
	e.PutInt32Vector([]int32{1, 2})
	e.PutInt64Vector([]int64{3})
	e.PutStringVector([]string{"a", "bc"})

	d := NewDecoder(e.Bytes())
	i32, err := d.Int32()
	require.NoError(t, err)
	assert.Equal(t, int32(-5), i32)
	i64, err := d.Int64()
	require.NoError(t, err)
	assert.Equal(t, int64(1<<40), i64)
	f, err := d.Double()
	require.NoError(t, err)
	assert.Equal(t, 3.25, f)
	b, err := d.Bool()
	require.NoError(t, err)
	assert.True(t, b)
	b, err = d.Bool()
	require.NoError(t, err)
	assert.False(t, b)
	i128, err := d.Int128()
	require.NoError(t, err)
	assert.Equal(t, [16]byte{1, 2, 3}, i128)
	i256, err := d.Int256()
	require.NoError(t, err)
	assert.Equal(t, [32]byte{9}, i256)
	s, err := d.String()
	require.NoError(t, err)
	assert.Equal(t, "hello", s)
	v32, err := d.Int32Vector()
	require.NoError(t, err)
	assert.Equal(t, []int32{1, 2}, v32)
	v64, err := d.Int64Vector()
	require.NoError(t, err)
	assert.Equal(t, []int64{3}, v64)
	vs, err := d.StringVector()
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "bc"}, vs)
	assert.Zero(t, d.Len())
}

func TestInvalidBool(t *testing.T) {
	e := NewEncoder(0)
	e.PutUint32(0xdeadbeef)
	_, err := NewDecoder(e.Bytes()).Bool()
	assert.ErrorIs(t, err, ErrInvalidBool)
}

func TestObjectRoundTrip(t *testing.T) {
	var userFlags, userFlags2 Flags
	userFlags.Set(UserFlagAccessHash)
	userFlags.Set(UserFlagFirstName)
	userFlags.Set(UserFlagStatus)
	userFlags.Set(UserFlagSelf)
	userFlags2.Set(UserFlag2Usernames)
	userFlags2.Set(UserFlag2StoriesMaxID)

	tests := []struct {
		name string
		obj  Object
	}{
		{"ping", &Ping{PingID: 42}},
		{"pong", &Pong{MsgID: 7, PingID: 42}},
		{"msgs ack", &MsgsAck{MsgIDs: []int64{1, 2, 3}}},
		{"rpc error", &RPCError{Code: 400, Message: "BAD_REQUEST"}},
		{"rpc result", &RPCResult{ReqMsgID: 99, Result: &UpdatesState{Pts: 1, Qts: 2, Date: 3, Seq: 4}}},
		{"future salts", &FutureSalts{ReqMsgID: 5, Now: 100, Salts: []FutureSalt{{ValidSince: 1, ValidUntil: 2, Salt: 3}}}},
		{"bind temp key", &AuthBindTempAuthKey{PermAuthKeyID: 1, Nonce: 2, ExpiresAt: 3, EncryptedMessage: []byte("opaque")}},
		{"invoke with layer", &InvokeWithLayer{Layer: 160, Query: &InitConnection{APIID: 1, DeviceModel: "pc", LangCode: "en", Query: &UpdatesGetState{}}}},
		{"user", &User{
			Flags: userFlags, Flags2: userFlags2, ID: 10, AccessHash: 11, FirstName: "Ann",
			Status:       &UserStatusRecently{Flags: 1},
			Usernames:    []*Username{{Flags: 2, Username: "ann"}},
			StoriesMaxID: 4,
		}},
		{"users vector", &Vector{Items: []Object{&UserEmpty{ID: 1}, &UserEmpty{ID: 2}}}},
		{"updates", &Updates{Updates: []Object{&UpdateUserName{UserID: 1, Usernames: []*Username{}}}, Users: []Object{}, Chats: []Object{}, Date: 5, Seq: 1}},
		{"null field", &UpdateShort{Update: nil, Date: 1}},
		{"bool", NewBool(true)},
		{"update username", &AccountUpdateUsername{Username: "ann_2"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := Encode(tt.obj)
			assert.Zero(t, len(raw)%WordLen)

			decoded, err := Decode(raw)
			require.NoError(t, err)
			assert.Equal(t, tt.obj, decoded)
			assert.Equal(t, raw, Encode(decoded))
		})
	}
}

func TestFlagsGateOptionalFields(t *testing.T) {
	bare := Encode(&User{ID: 1})
	var f Flags
	f.Set(UserFlagFirstName)
	named := Encode(&User{Flags: f, ID: 1, FirstName: "x", LastName: "ignored"})

	// flags + flags2 + id
	assert.Len(t, bare, WordLen*3+LongLen)
	// first_name only; last_name is absent because its bit is clear
	assert.Len(t, named, len(bare)+WordLen)
}

func TestUnknownConstructor(t *testing.T) {
	e := NewEncoder(0)
	e.PutUint32(0x11223344)
	e.PutInt32(7)

	_, err := Decode(e.Bytes())
	var de *DecodeError
	require.True(t, errors.As(err, &de))
	assert.Equal(t, uint32(0x11223344), de.ID)
	assert.Len(t, de.Remaining, WordLen)
	assert.ErrorIs(t, err, ErrUnknownConstructor)
}

func TestNestedUnknownKeepsInnerID(t *testing.T) {
	e := NewEncoder(0)
	e.PutUint32(CrcRPCResult)
	e.PutInt64(1)
	e.PutUint32(0x0badf00d)

	_, err := Decode(e.Bytes())
	var de *DecodeError
	require.True(t, errors.As(err, &de))
	assert.Equal(t, uint32(0x0badf00d), de.ID)
}

func TestTruncatedInput(t *testing.T) {
	raw := Encode(&Pong{MsgID: 1, PingID: 2})
	for i := 0; i < len(raw); i++ {
		_, err := Decode(raw[:i])
		assert.Error(t, err, "prefix of %d bytes", i)
	}
}

func TestTrailingData(t *testing.T) {
	raw := append(Encode(&Ping{PingID: 1}), 0, 0, 0, 0)
	_, err := Decode(raw)
	assert.ErrorIs(t, err, ErrTrailingData)
}

func TestVectorCountBounded(t *testing.T) {
	e := NewEncoder(0)
	e.PutVectorHeader(1 << 30)
	_, err := NewDecoder(e.Bytes()).Int64Vector()
	assert.ErrorIs(t, err, ErrVectorTooLarge)
}

func TestVectorElementsShareType(t *testing.T) {
	raw := Encode(&Vector{Items: []Object{&UserEmpty{ID: 1}, &UserEmpty{ID: 2}, &UserEmpty{ID: 3}}})
	o, err := Decode(raw)
	require.NoError(t, err)

	v := o.(*Vector)
	require.Len(t, v.Items, 3)
	for _, item := range v.Items {
		assert.IsType(t, &UserEmpty{}, item)
	}
}

func TestContainerIsolatesBadBody(t *testing.T) {
	bad := NewEncoder(0)
	bad.PutUint32(0xcafebabe)

	c := &MsgContainer{Messages: []*Message{
		{MsgID: 4, SeqNo: 1, Body: Encode(&Ping{PingID: 1})},
		{MsgID: 8, SeqNo: 3, Body: bad.Bytes()},
	}}
	o, err := Decode(Encode(c))
	require.NoError(t, err)

	msgs := o.(*MsgContainer).Messages
	require.Len(t, msgs, 2)
	first, err := msgs[0].Object()
	require.NoError(t, err)
	assert.Equal(t, &Ping{PingID: 1}, first)
	_, err = msgs[1].Object()
	assert.ErrorIs(t, err, ErrUnknownConstructor)
}

func TestGzipPacked(t *testing.T) {
	in := &Vector{Items: []Object{&UserEmpty{ID: 1}, &UserEmpty{ID: 2}}}
	packed, err := Pack(in)
	require.NoError(t, err)

	raw := Encode(packed)
	o, err := Decode(raw)
	require.NoError(t, err)

	out, err := Unwrap(o)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestFlags(t *testing.T) {
	var f Flags
	f.Set(3)
	f.Set(31)
	assert.True(t, f.Has(3))
	assert.True(t, f.Has(31))
	assert.False(t, f.Has(0))
	f.Unset(3)
	assert.False(t, f.Has(3))
}

func TestRPCErrorIsError(t *testing.T) {
	var err error = NewRPCError(420, "FLOOD_WAIT_3")
	var rpcErr *RPCError
	require.True(t, errors.As(err, &rpcErr))
	assert.Equal(t, int32(420), rpcErr.Code)
}

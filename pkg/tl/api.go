package tl

// API constructors served by the gateway itself or used by layer rules.
const (
	CrcUser                       uint32 = 0x83314fca
	CrcUserLayer160               uint32 = 0xabb5f120
	CrcUserLayer140               uint32 = 0x8f97c628
	CrcUserEmpty                  uint32 = 0xd3bc4b7a
	CrcUsername                   uint32 = 0xb4073647
	CrcUserStatusEmpty            uint32 = 0x09d05049
	CrcUserStatusOnline           uint32 = 0xedb93949
	CrcUserStatusOffline          uint32 = 0x008c703f
	CrcUserStatusRecently         uint32 = 0x7b197dc8
	CrcUserStatusRecentlyLayer170 uint32 = 0xe26f42f1
	CrcInputUserSelf              uint32 = 0xf7c1b13f
	CrcInputUser                  uint32 = 0xf21158c6
	CrcUsersGetUsers              uint32 = 0x0d91a548
	CrcUpdates                    uint32 = 0x74ae4240
	CrcUpdateShort                uint32 = 0x78d4dec1
	CrcUpdateUserName             uint32 = 0xa7848924
	CrcUpdateUserNameLayer140     uint32 = 0xc3f202e0
	CrcUpdatesGetState            uint32 = 0xedd4882a
	CrcUpdatesState               uint32 = 0xa56c2a3e
	CrcAccountUpdateUsername      uint32 = 0x3e0bdd7c
	CrcUpdatesGetDifference       uint32 = 0x19c2f763
	CrcUpdatesDifferenceEmpty     uint32 = 0x5d75a138
	CrcUpdatesDifference          uint32 = 0x00f49ca0
	CrcUpdatesDifferenceTooLong   uint32 = 0x4afe8f6d
	CrcInputChannel               uint32 = 0xf35aec28
	CrcChannelsJoinChannel        uint32 = 0x24b524c5
	CrcChannelsLeaveChannel       uint32 = 0xf836aa95
	CrcUpdateChannel              uint32 = 0x635b4c09
)

// User is the current user constructor. Optional fields are present when
// the matching bit of Flags (or Flags2 for the second group) is set.
type User struct {
	Flags          Flags
	Flags2         Flags
	ID             int64
	AccessHash     int64       // flags.0
	FirstName      string      // flags.1
	LastName       string      // flags.2
	Username       string      // flags.3
	Phone          string      // flags.4
	Photo          Object      // flags.5
	Status         Object      // flags.6
	BotInfoVersion int32       // flags.14
	LangCode       string      // flags.22
	Usernames      []*Username // flags2.0
	StoriesMaxID   int32       // flags2.5
}

// Flag bits shared by the user constructors.
const (
	UserFlagAccessHash = 0
	UserFlagFirstName  = 1
	UserFlagLastName   = 2
	UserFlagUsername   = 3
	UserFlagPhone      = 4
	UserFlagPhoto      = 5
	UserFlagStatus     = 6
	UserFlagSelf       = 10
	UserFlagContact    = 11
	UserFlagBot        = 14
	UserFlagLangCode   = 22
	UserFlagPremium    = 28

	UserFlag2Usernames    = 0
	UserFlag2StoriesMaxID = 5
)

func (*User) CRC() uint32 { return CrcUser }

func (u *User) Encode(e *Encoder) {
	e.PutUint32(CrcUser)
	e.PutFlags(u.Flags)
	e.PutFlags(u.Flags2)
	e.PutInt64(u.ID)
	encodeUserFields(e, u.Flags, u.AccessHash, u.FirstName, u.LastName, u.Username, u.Phone, u.Photo, u.Status, u.BotInfoVersion, u.LangCode)
	if u.Flags2.Has(UserFlag2Usernames) {
		putUsernames(e, u.Usernames)
	}
	if u.Flags2.Has(UserFlag2StoriesMaxID) {
		e.PutInt32(u.StoriesMaxID)
	}
}

func (u *User) Decode(d *Decoder) (err error) {
	if u.Flags, err = d.Flags(); err != nil {
		return err
	}
	if u.Flags2, err = d.Flags(); err != nil {
		return err
	}
	if u.ID, err = d.Int64(); err != nil {
		return err
	}
	if err = decodeUserFields(d, u.Flags, &u.AccessHash, &u.FirstName, &u.LastName, &u.Username, &u.Phone, &u.Photo, &u.Status, &u.BotInfoVersion, &u.LangCode); err != nil {
		return err
	}
	if u.Flags2.Has(UserFlag2Usernames) {
		if u.Usernames, err = decodeUsernames(d); err != nil {
			return err
		}
	}
	if u.Flags2.Has(UserFlag2StoriesMaxID) {
		u.StoriesMaxID, err = d.Int32()
	}
	return err
}

// UserLayer160 predates stories.
type UserLayer160 struct {
	Flags          Flags
	Flags2         Flags
	ID             int64
	AccessHash     int64
	FirstName      string
	LastName       string
	Username       string
	Phone          string
	Photo          Object
	Status         Object
	BotInfoVersion int32
	LangCode       string
	Usernames      []*Username // flags2.0
}

func (*UserLayer160) CRC() uint32 { return CrcUserLayer160 }

func (u *UserLayer160) Encode(e *Encoder) {
	e.PutUint32(CrcUserLayer160)
	e.PutFlags(u.Flags)
	e.PutFlags(u.Flags2)
	e.PutInt64(u.ID)
	encodeUserFields(e, u.Flags, u.AccessHash, u.FirstName, u.LastName, u.Username, u.Phone, u.Photo, u.Status, u.BotInfoVersion, u.LangCode)
	if u.Flags2.Has(UserFlag2Usernames) {
		putUsernames(e, u.Usernames)
	}
}

func (u *UserLayer160) Decode(d *Decoder) (err error) {
	if u.Flags, err = d.Flags(); err != nil {
		return err
	}
	if u.Flags2, err = d.Flags(); err != nil {
		return err
	}
	if u.ID, err = d.Int64(); err != nil {
		return err
	}
	if err = decodeUserFields(d, u.Flags, &u.AccessHash, &u.FirstName, &u.LastName, &u.Username, &u.Phone, &u.Photo, &u.Status, &u.BotInfoVersion, &u.LangCode); err != nil {
		return err
	}
	if u.Flags2.Has(UserFlag2Usernames) {
		u.Usernames, err = decodeUsernames(d)
	}
	return err
}

// UserLayer140 has a single flags word and one username.
type UserLayer140 struct {
	Flags          Flags
	ID             int64
	AccessHash     int64
	FirstName      string
	LastName       string
	Username       string
	Phone          string
	Photo          Object
	Status         Object
	BotInfoVersion int32
	LangCode       string
}

func (*UserLayer140) CRC() uint32 { return CrcUserLayer140 }

func (u *UserLayer140) Encode(e *Encoder) {
	e.PutUint32(CrcUserLayer140)
	e.PutFlags(u.Flags)
	e.PutInt64(u.ID)
	encodeUserFields(e, u.Flags, u.AccessHash, u.FirstName, u.LastName, u.Username, u.Phone, u.Photo, u.Status, u.BotInfoVersion, u.LangCode)
}

func (u *UserLayer140) Decode(d *Decoder) (err error) {
	if u.Flags, err = d.Flags(); err != nil {
		return err
	}
	if u.ID, err = d.Int64(); err != nil {
		return err
	}
	return decodeUserFields(d, u.Flags, &u.AccessHash, &u.FirstName, &u.LastName, &u.Username, &u.Phone, &u.Photo, &u.Status, &u.BotInfoVersion, &u.LangCode)
}

func encodeUserFields(e *Encoder, f Flags, accessHash int64, first, last, username, phone string, photo, status Object, botInfo int32, lang string) {
	if f.Has(UserFlagAccessHash) {
		e.PutInt64(accessHash)
	}
	if f.Has(UserFlagFirstName) {
		e.PutString(first)
	}
	if f.Has(UserFlagLastName) {
		e.PutString(last)
	}
	if f.Has(UserFlagUsername) {
		e.PutString(username)
	}
	if f.Has(UserFlagPhone) {
		e.PutString(phone)
	}
	if f.Has(UserFlagPhoto) {
		e.PutObject(photo)
	}
	if f.Has(UserFlagStatus) {
		e.PutObject(status)
	}
	if f.Has(UserFlagBot) {
		e.PutInt32(botInfo)
	}
	if f.Has(UserFlagLangCode) {
		e.PutString(lang)
	}
}

func decodeUserFields(d *Decoder, f Flags, accessHash *int64, first, last, username, phone *string, photo, status *Object, botInfo *int32, lang *string) (err error) {
	if f.Has(UserFlagAccessHash) {
		if *accessHash, err = d.Int64(); err != nil {
			return err
		}
	}
	for _, s := range []struct {
		bit int
		dst *string
	}{{UserFlagFirstName, first}, {UserFlagLastName, last}, {UserFlagUsername, username}, {UserFlagPhone, phone}} {
		if f.Has(s.bit) {
			if *s.dst, err = d.String(); err != nil {
				return err
			}
		}
	}
	if f.Has(UserFlagPhoto) {
		if *photo, err = d.Object(); err != nil {
			return err
		}
	}
	if f.Has(UserFlagStatus) {
		if *status, err = d.Object(); err != nil {
			return err
		}
	}
	if f.Has(UserFlagBot) {
		if *botInfo, err = d.Int32(); err != nil {
			return err
		}
	}
	if f.Has(UserFlagLangCode) {
		*lang, err = d.String()
	}
	return err
}

func putUsernames(e *Encoder, names []*Username) {
	e.PutVectorHeader(len(names))
	for _, n := range names {
		n.Encode(e)
	}
}

func decodeUsernames(d *Decoder) ([]*Username, error) {
	n, err := d.VectorHeader(WordLen)
	if err != nil {
		return nil, err
	}
	out := make([]*Username, n)
	for i := range out {
		if err := d.Expect(CrcUsername); err != nil {
			return nil, err
		}
		out[i] = new(Username)
		if err := out[i].Decode(d); err != nil {
			return nil, err
		}
	}
	return out, nil
}

type UserEmpty struct {
	ID int64
}

func (*UserEmpty) CRC() uint32 { return CrcUserEmpty }

func (u *UserEmpty) Encode(e *Encoder) {
	e.PutUint32(CrcUserEmpty)
	e.PutInt64(u.ID)
}

func (u *UserEmpty) Decode(d *Decoder) (err error) {
	u.ID, err = d.Int64()
	return err
}

type Username struct {
	Flags    Flags
	Username string
}

const (
	UsernameFlagEditable = 0
	UsernameFlagActive   = 1
)

func (*Username) CRC() uint32 { return CrcUsername }

func (u *Username) Encode(e *Encoder) {
	e.PutUint32(CrcUsername)
	e.PutFlags(u.Flags)
	e.PutString(u.Username)
}

func (u *Username) Decode(d *Decoder) (err error) {
	if u.Flags, err = d.Flags(); err != nil {
		return err
	}
	u.Username, err = d.String()
	return err
}

type UserStatusEmpty struct{}

func (*UserStatusEmpty) CRC() uint32             { return CrcUserStatusEmpty }
func (*UserStatusEmpty) Encode(e *Encoder)       { e.PutUint32(CrcUserStatusEmpty) }
func (*UserStatusEmpty) Decode(d *Decoder) error { return nil }

type UserStatusOnline struct {
	Expires int32
}

func (*UserStatusOnline) CRC() uint32 { return CrcUserStatusOnline }

func (s *UserStatusOnline) Encode(e *Encoder) {
	e.PutUint32(CrcUserStatusOnline)
	e.PutInt32(s.Expires)
}

func (s *UserStatusOnline) Decode(d *Decoder) (err error) {
	s.Expires, err = d.Int32()
	return err
}

type UserStatusOffline struct {
	WasOnline int32
}

func (*UserStatusOffline) CRC() uint32 { return CrcUserStatusOffline }

func (s *UserStatusOffline) Encode(e *Encoder) {
	e.PutUint32(CrcUserStatusOffline)
	e.PutInt32(s.WasOnline)
}

func (s *UserStatusOffline) Decode(d *Decoder) (err error) {
	s.WasOnline, err = d.Int32()
	return err
}

// UserStatusRecently gained flags (by_me, bit 0) in layer 171.
type UserStatusRecently struct {
	Flags Flags
}

func (*UserStatusRecently) CRC() uint32 { return CrcUserStatusRecently }

func (s *UserStatusRecently) Encode(e *Encoder) {
	e.PutUint32(CrcUserStatusRecently)
	e.PutFlags(s.Flags)
}

func (s *UserStatusRecently) Decode(d *Decoder) (err error) {
	s.Flags, err = d.Flags()
	return err
}

type UserStatusRecentlyLayer170 struct{}

func (*UserStatusRecentlyLayer170) CRC() uint32             { return CrcUserStatusRecentlyLayer170 }
func (*UserStatusRecentlyLayer170) Encode(e *Encoder)       { e.PutUint32(CrcUserStatusRecentlyLayer170) }
func (*UserStatusRecentlyLayer170) Decode(d *Decoder) error { return nil }

type InputUserSelf struct{}

func (*InputUserSelf) CRC() uint32             { return CrcInputUserSelf }
func (*InputUserSelf) Encode(e *Encoder)       { e.PutUint32(CrcInputUserSelf) }
func (*InputUserSelf) Decode(d *Decoder) error { return nil }

type InputUser struct {
	UserID     int64
	AccessHash int64
}

func (*InputUser) CRC() uint32 { return CrcInputUser }

func (u *InputUser) Encode(e *Encoder) {
	e.PutUint32(CrcInputUser)
	e.PutInt64(u.UserID)
	e.PutInt64(u.AccessHash)
}

func (u *InputUser) Decode(d *Decoder) (err error) {
	if u.UserID, err = d.Int64(); err != nil {
		return err
	}
	u.AccessHash, err = d.Int64()
	return err
}

// UsersGetUsers returns Vector<User>.
type UsersGetUsers struct {
	ID []Object
}

func (*UsersGetUsers) CRC() uint32 { return CrcUsersGetUsers }

func (m *UsersGetUsers) Encode(e *Encoder) {
	e.PutUint32(CrcUsersGetUsers)
	e.PutObjectVector(m.ID)
}

func (m *UsersGetUsers) Decode(d *Decoder) (err error) {
	m.ID, err = d.ObjectVector()
	return err
}

type Updates struct {
	Updates []Object
	Users   []Object
	Chats   []Object
	Date    int32
	Seq     int32
}

func (*Updates) CRC() uint32 { return CrcUpdates }

func (u *Updates) Encode(e *Encoder) {
	e.PutUint32(CrcUpdates)
	e.PutObjectVector(u.Updates)
	e.PutObjectVector(u.Users)
	e.PutObjectVector(u.Chats)
	e.PutInt32(u.Date)
	e.PutInt32(u.Seq)
}

func (u *Updates) Decode(d *Decoder) (err error) {
	if u.Updates, err = d.ObjectVector(); err != nil {
		return err
	}
	if u.Users, err = d.ObjectVector(); err != nil {
		return err
	}
	if u.Chats, err = d.ObjectVector(); err != nil {
		return err
	}
	if u.Date, err = d.Int32(); err != nil {
		return err
	}
	u.Seq, err = d.Int32()
	return err
}

type UpdateShort struct {
	Update Object
	Date   int32
}

func (*UpdateShort) CRC() uint32 { return CrcUpdateShort }

func (u *UpdateShort) Encode(e *Encoder) {
	e.PutUint32(CrcUpdateShort)
	e.PutObject(u.Update)
	e.PutInt32(u.Date)
}

func (u *UpdateShort) Decode(d *Decoder) (err error) {
	if u.Update, err = d.Object(); err != nil {
		return err
	}
	u.Date, err = d.Int32()
	return err
}

type UpdateUserName struct {
	UserID    int64
	FirstName string
	LastName  string
	Usernames []*Username
}

func (*UpdateUserName) CRC() uint32 { return CrcUpdateUserName }

func (u *UpdateUserName) Encode(e *Encoder) {
	e.PutUint32(CrcUpdateUserName)
	e.PutInt64(u.UserID)
	e.PutString(u.FirstName)
	e.PutString(u.LastName)
	putUsernames(e, u.Usernames)
}

func (u *UpdateUserName) Decode(d *Decoder) (err error) {
	if u.UserID, err = d.Int64(); err != nil {
		return err
	}
	if u.FirstName, err = d.String(); err != nil {
		return err
	}
	if u.LastName, err = d.String(); err != nil {
		return err
	}
	u.Usernames, err = decodeUsernames(d)
	return err
}

type UpdateUserNameLayer140 struct {
	UserID    int64
	FirstName string
	LastName  string
	Username  string
}

func (*UpdateUserNameLayer140) CRC() uint32 { return CrcUpdateUserNameLayer140 }

func (u *UpdateUserNameLayer140) Encode(e *Encoder) {
	e.PutUint32(CrcUpdateUserNameLayer140)
	e.PutInt64(u.UserID)
	e.PutString(u.FirstName)
	e.PutString(u.LastName)
	e.PutString(u.Username)
}

func (u *UpdateUserNameLayer140) Decode(d *Decoder) (err error) {
	if u.UserID, err = d.Int64(); err != nil {
		return err
	}
	if u.FirstName, err = d.String(); err != nil {
		return err
	}
	if u.LastName, err = d.String(); err != nil {
		return err
	}
	u.Username, err = d.String()
	return err
}

type UpdatesGetState struct{}

func (*UpdatesGetState) CRC() uint32             { return CrcUpdatesGetState }
func (*UpdatesGetState) Encode(e *Encoder)       { e.PutUint32(CrcUpdatesGetState) }
func (*UpdatesGetState) Decode(d *Decoder) error { return nil }

type UpdatesState struct {
	Pts         int32
	Qts         int32
	Date        int32
	Seq         int32
	UnreadCount int32
}

func (*UpdatesState) CRC() uint32 { return CrcUpdatesState }

func (s *UpdatesState) Encode(e *Encoder) {
	e.PutUint32(CrcUpdatesState)
	e.PutInt32(s.Pts)
	e.PutInt32(s.Qts)
	e.PutInt32(s.Date)
	e.PutInt32(s.Seq)
	e.PutInt32(s.UnreadCount)
}

func (s *UpdatesState) Decode(d *Decoder) (err error) {
	for _, p := range []*int32{&s.Pts, &s.Qts, &s.Date, &s.Seq, &s.UnreadCount} {
		if *p, err = d.Int32(); err != nil {
			return err
		}
	}
	return nil
}

// AccountUpdateUsername is account.updateUsername; an empty username
// removes it.
type AccountUpdateUsername struct {
	Username string
}

func (*AccountUpdateUsername) CRC() uint32 { return CrcAccountUpdateUsername }

func (a *AccountUpdateUsername) Encode(e *Encoder) {
	e.PutUint32(CrcAccountUpdateUsername)
	e.PutString(a.Username)
}

func (a *AccountUpdateUsername) Decode(d *Decoder) (err error) {
	a.Username, err = d.String()
	return err
}

// UpdatesGetDifference is updates.getDifference.
type UpdatesGetDifference struct {
	Flags         Flags
	Pts           int32
	PtsLimit      int32 // flags.1
	PtsTotalLimit int32 // flags.0
	Date          int32
	Qts           int32
	QtsLimit      int32 // flags.2
}

const (
	GetDifferenceFlagPtsTotalLimit = 0
	GetDifferenceFlagPtsLimit      = 1
	GetDifferenceFlagQtsLimit      = 2
)

func (*UpdatesGetDifference) CRC() uint32 { return CrcUpdatesGetDifference }

func (g *UpdatesGetDifference) Encode(e *Encoder) {
	e.PutUint32(CrcUpdatesGetDifference)
	e.PutFlags(g.Flags)
	e.PutInt32(g.Pts)
	if g.Flags.Has(GetDifferenceFlagPtsLimit) {
		e.PutInt32(g.PtsLimit)
	}
	if g.Flags.Has(GetDifferenceFlagPtsTotalLimit) {
		e.PutInt32(g.PtsTotalLimit)
	}
	e.PutInt32(g.Date)
	e.PutInt32(g.Qts)
	if g.Flags.Has(GetDifferenceFlagQtsLimit) {
		e.PutInt32(g.QtsLimit)
	}
}

func (g *UpdatesGetDifference) Decode(d *Decoder) (err error) {
	if g.Flags, err = d.Flags(); err != nil {
		return err
	}
	if g.Pts, err = d.Int32(); err != nil {
		return err
	}
	if g.Flags.Has(GetDifferenceFlagPtsLimit) {
		if g.PtsLimit, err = d.Int32(); err != nil {
			return err
		}
	}
	if g.Flags.Has(GetDifferenceFlagPtsTotalLimit) {
		if g.PtsTotalLimit, err = d.Int32(); err != nil {
			return err
		}
	}
	if g.Date, err = d.Int32(); err != nil {
		return err
	}
	if g.Qts, err = d.Int32(); err != nil {
		return err
	}
	if g.Flags.Has(GetDifferenceFlagQtsLimit) {
		g.QtsLimit, err = d.Int32()
	}
	return err
}

type UpdatesDifferenceEmpty struct {
	Date int32
	Seq  int32
}

func (*UpdatesDifferenceEmpty) CRC() uint32 { return CrcUpdatesDifferenceEmpty }

func (u *UpdatesDifferenceEmpty) Encode(e *Encoder) {
	e.PutUint32(CrcUpdatesDifferenceEmpty)
	e.PutInt32(u.Date)
	e.PutInt32(u.Seq)
}

func (u *UpdatesDifferenceEmpty) Decode(d *Decoder) (err error) {
	if u.Date, err = d.Int32(); err != nil {
		return err
	}
	u.Seq, err = d.Int32()
	return err
}

// UpdatesDifference carries the updates logged after the client's pts.
type UpdatesDifference struct {
	NewMessages          []Object
	NewEncryptedMessages []Object
	OtherUpdates         []Object
	Chats                []Object
	Users                []Object
	State                *UpdatesState
}

func (*UpdatesDifference) CRC() uint32 { return CrcUpdatesDifference }

func (u *UpdatesDifference) Encode(e *Encoder) {
	e.PutUint32(CrcUpdatesDifference)
	e.PutObjectVector(u.NewMessages)
	e.PutObjectVector(u.NewEncryptedMessages)
	e.PutObjectVector(u.OtherUpdates)
	e.PutObjectVector(u.Chats)
	e.PutObjectVector(u.Users)
	st := u.State
	if st == nil {
		st = &UpdatesState{}
	}
	st.Encode(e)
}

func (u *UpdatesDifference) Decode(d *Decoder) (err error) {
	for _, v := range []*[]Object{&u.NewMessages, &u.NewEncryptedMessages, &u.OtherUpdates, &u.Chats, &u.Users} {
		if *v, err = d.ObjectVector(); err != nil {
			return err
		}
	}
	if err = d.Expect(CrcUpdatesState); err != nil {
		return err
	}
	u.State = new(UpdatesState)
	return u.State.Decode(d)
}

// UpdatesDifferenceTooLong tells the client to refetch its state because
// the log no longer covers the gap.
type UpdatesDifferenceTooLong struct {
	Pts int32
}

func (*UpdatesDifferenceTooLong) CRC() uint32 { return CrcUpdatesDifferenceTooLong }

func (u *UpdatesDifferenceTooLong) Encode(e *Encoder) {
	e.PutUint32(CrcUpdatesDifferenceTooLong)
	e.PutInt32(u.Pts)
}

func (u *UpdatesDifferenceTooLong) Decode(d *Decoder) (err error) {
	u.Pts, err = d.Int32()
	return err
}

type InputChannel struct {
	ChannelID  int64
	AccessHash int64
}

func (*InputChannel) CRC() uint32 { return CrcInputChannel }

func (c *InputChannel) Encode(e *Encoder) {
	e.PutUint32(CrcInputChannel)
	e.PutInt64(c.ChannelID)
	e.PutInt64(c.AccessHash)
}

func (c *InputChannel) Decode(d *Decoder) (err error) {
	if c.ChannelID, err = d.Int64(); err != nil {
		return err
	}
	c.AccessHash, err = d.Int64()
	return err
}

// ChannelsJoinChannel returns Updates.
type ChannelsJoinChannel struct {
	Channel Object
}

func (*ChannelsJoinChannel) CRC() uint32 { return CrcChannelsJoinChannel }

func (m *ChannelsJoinChannel) Encode(e *Encoder) {
	e.PutUint32(CrcChannelsJoinChannel)
	e.PutObject(m.Channel)
}

func (m *ChannelsJoinChannel) Decode(d *Decoder) (err error) {
	m.Channel, err = d.Object()
	return err
}

// ChannelsLeaveChannel returns Updates.
type ChannelsLeaveChannel struct {
	Channel Object
}

func (*ChannelsLeaveChannel) CRC() uint32 { return CrcChannelsLeaveChannel }

func (m *ChannelsLeaveChannel) Encode(e *Encoder) {
	e.PutUint32(CrcChannelsLeaveChannel)
	e.PutObject(m.Channel)
}

func (m *ChannelsLeaveChannel) Decode(d *Decoder) (err error) {
	m.Channel, err = d.Object()
	return err
}

type UpdateChannel struct {
	ChannelID int64
}

func (*UpdateChannel) CRC() uint32 { return CrcUpdateChannel }

func (u *UpdateChannel) Encode(e *Encoder) {
	e.PutUint32(CrcUpdateChannel)
	e.PutInt64(u.ChannelID)
}

func (u *UpdateChannel) Decode(d *Decoder) (err error) {
	u.ChannelID, err = d.Int64()
	return err
}

// ActiveUsername returns the first active username, or "".
func ActiveUsername(names []*Username) string {
	for _, n := range names {
		if n.Flags.Has(UsernameFlagActive) {
			return n.Username
		}
	}
	return ""
}

func init() {
	Register(
		func() Object { return new(User) },
		func() Object { return new(AccountUpdateUsername) },
		func() Object { return new(UserLayer160) },
		func() Object { return new(UserLayer140) },
		func() Object { return new(UserEmpty) },
		func() Object { return new(Username) },
		func() Object { return new(UserStatusEmpty) },
		func() Object { return new(UserStatusOnline) },
		func() Object { return new(UserStatusOffline) },
		func() Object { return new(UserStatusRecently) },
		func() Object { return new(UserStatusRecentlyLayer170) },
		func() Object { return new(InputUserSelf) },
		func() Object { return new(InputUser) },
		func() Object { return new(UsersGetUsers) },
		func() Object { return new(Updates) },
		func() Object { return new(UpdateShort) },
		func() Object { return new(UpdateUserName) },
		func() Object { return new(UpdateUserNameLayer140) },
		func() Object { return new(UpdatesGetState) },
		func() Object { return new(UpdatesState) },
		func() Object { return new(UpdatesGetDifference) },
		func() Object { return new(UpdatesDifferenceEmpty) },
		func() Object { return new(UpdatesDifference) },
		func() Object { return new(UpdatesDifferenceTooLong) },
		func() Object { return new(InputChannel) },
		func() Object { return new(ChannelsJoinChannel) },
		func() Object { return new(ChannelsLeaveChannel) },
		func() Object { return new(UpdateChannel) },
	)
}

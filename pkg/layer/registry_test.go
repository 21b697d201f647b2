package layer

import (
	"testing"

	"github.com/ZentaChain/zentalk-gateway/pkg/tl"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleUser() *tl.User {
	u := &tl.User{
		ID:           7,
		AccessHash:   99,
		FirstName:    "Ada",
		Status:       &tl.UserStatusRecently{Flags: 1},
		Usernames:    []*tl.Username{{Flags: 1 << tl.UsernameFlagActive, Username: "ada"}},
		StoriesMaxID: 3,
	}
	u.Flags.Set(tl.UserFlagAccessHash)
	u.Flags.Set(tl.UserFlagFirstName)
	u.Flags.Set(tl.UserFlagStatus)
	u.Flags2.Set(tl.UserFlag2Usernames)
	u.Flags2.Set(tl.UserFlag2StoriesMaxID)
	return u
}

func sampleUpdates() *tl.Updates {
	return &tl.Updates{
		Updates: []tl.Object{&tl.UpdateUserName{UserID: 7, FirstName: "Ada", Usernames: sampleUser().Usernames}},
		Users:   []tl.Object{sampleUser(), &tl.UserEmpty{ID: 8}},
		Chats:   []tl.Object{},
		Date:    1,
		Seq:     2,
	}
}

func TestDowngradeUser(t *testing.T) {
	r := Default()

	tests := []struct {
		name   string
		layer  int32
		expect tl.Object
	}{
		{"current layer", tl.Layer, sampleUser()},
		{"layer 170", 170, &tl.User{}},
		{"layer 165", 165, &tl.UserLayer160{}},
		{"layer 160", 160, &tl.UserLayer160{}},
		{"layer 150", 150, &tl.UserLayer140{}},
		{"layer 140", 140, &tl.UserLayer140{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := r.Downgrade(sampleUser(), tt.layer)
			require.NoError(t, err)
			assert.IsType(t, tt.expect, got)
		})
	}

	t.Run("layer 140 collapses usernames and status", func(t *testing.T) {
		got, err := r.Downgrade(sampleUser(), 140)
		require.NoError(t, err)
		old := got.(*tl.UserLayer140)
		assert.Equal(t, "ada", old.Username)
		assert.True(t, old.Flags.Has(tl.UserFlagUsername))
		assert.IsType(t, &tl.UserStatusRecentlyLayer170{}, old.Status)

		// the old shape must still encode and decode
		decoded, err := tl.Decode(tl.Encode(old))
		require.NoError(t, err)
		assert.Equal(t, old, decoded)
	})

	t.Run("layer 165 drops stories flag", func(t *testing.T) {
		got, err := r.Downgrade(sampleUser(), 165)
		require.NoError(t, err)
		assert.False(t, got.(*tl.UserLayer160).Flags2.Has(tl.UserFlag2StoriesMaxID))
	})
}

func TestDowngradeIdempotent(t *testing.T) {
	r := Default()
	for _, layer := range []int32{140, 150, 155, 160, 167, 170, 171, tl.Layer} {
		once, err := r.Downgrade(sampleUpdates(), layer)
		require.NoError(t, err)
		twice, err := r.Downgrade(once, layer)
		require.NoError(t, err)
		assert.Equal(t, once, twice, "layer %d", layer)
		assert.Equal(t, tl.Encode(once), tl.Encode(twice), "layer %d", layer)
	}
}

func TestDowngradeMonotonic(t *testing.T) {
	r := Default()
	for _, id := range []uint32{tl.CrcUser, tl.CrcUserStatusRecently, tl.CrcUpdateUserName} {
		layers := r.Layers(id)
		for i := 0; i+1 < len(layers); i++ {
			low, high := layers[i], layers[i+1]
			at, err := r.Downgrade(sampleUpdates(), low)
			require.NoError(t, err)
			for l := low + 1; l < high; l++ {
				between, err := r.Downgrade(sampleUpdates(), l)
				require.NoError(t, err)
				// other types may change shape between low and high; compare
				// only the part governed by id's rules
				assert.IsType(t, pick(at, id), pick(between, id), "0x%08x at %d", id, l)
			}
		}
	}
}

// pick returns the object in an Updates graph that originated from id.
func pick(o tl.Object, id uint32) tl.Object {
	u := o.(*tl.Updates)
	switch id {
	case tl.CrcUpdateUserName:
		return u.Updates[0]
	case tl.CrcUserStatusRecently:
		switch user := u.Users[0].(type) {
		case *tl.User:
			return user.Status
		case *tl.UserLayer160:
			return user.Status
		case *tl.UserLayer140:
			return user.Status
		}
	}
	return u.Users[0]
}

func TestDowngradeDoesNotMutateInput(t *testing.T) {
	r := Default()
	in := sampleUpdates()
	before := tl.Encode(in)

	out, err := r.Downgrade(in, 140)
	require.NoError(t, err)
	assert.IsType(t, &tl.UserLayer140{}, out.(*tl.Updates).Users[0])
	assert.IsType(t, &tl.UpdateUserNameLayer140{}, out.(*tl.Updates).Updates[0])

	assert.Equal(t, before, tl.Encode(in))
	assert.IsType(t, &tl.User{}, in.Users[0])
}

func TestDowngradeNestedResult(t *testing.T) {
	r := Default()
	res := &tl.RPCResult{ReqMsgID: 4, Result: &tl.Vector{Items: []tl.Object{sampleUser()}}}

	out, err := r.Downgrade(res, 150)
	require.NoError(t, err)
	items := out.(*tl.RPCResult).Result.(*tl.Vector).Items
	assert.IsType(t, &tl.UserLayer140{}, items[0])
}

func TestNoRuleBelowOldestLayer(t *testing.T) {
	r := Default()
	_, err := r.Downgrade(sampleUser(), 100)
	assert.ErrorIs(t, err, ErrNoRule)
}

func TestRegisterKeepsLayersSorted(t *testing.T) {
	r := NewRegistry(200)
	r.Register(tl.CrcUser, 180, nil)
	r.Register(tl.CrcUser, 120, nil)
	r.Register(tl.CrcUser, 150, nil)
	r.Register(tl.CrcUser, 150, nil)
	assert.Equal(t, []int32{120, 150, 180}, r.Layers(tl.CrcUser))
}

func TestCurrentLayerIsIdentity(t *testing.T) {
	r := Default()
	in := sampleUser()
	out, err := r.Downgrade(in, tl.Layer)
	require.NoError(t, err)
	assert.Same(t, in, out)
}

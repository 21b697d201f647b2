package layer

import "github.com/ZentaChain/zentalk-gateway/pkg/tl"

// MinLayer is the oldest layer clients may negotiate.
const MinLayer = 140

// Default returns a registry with the rules for the built-in schema.
func Default() *Registry {
	r := NewRegistry(tl.Layer)

	r.Register(tl.CrcUser, 140, userToLayer140)
	r.Register(tl.CrcUser, 160, userToLayer160)
	r.Register(tl.CrcUser, 167, nil)

	r.Register(tl.CrcUserStatusRecently, 140, func(tl.Object) tl.Object {
		return &tl.UserStatusRecentlyLayer170{}
	})
	r.Register(tl.CrcUserStatusRecently, 171, nil)

	r.Register(tl.CrcUpdateUserName, 140, updateUserNameToLayer140)
	r.Register(tl.CrcUpdateUserName, 155, nil)

	return r
}

func userToLayer160(o tl.Object) tl.Object {
	u := o.(*tl.User)
	return &tl.UserLayer160{
		Flags:          u.Flags,
		Flags2:         u.Flags2 &^ (1 << tl.UserFlag2StoriesMaxID),
		ID:             u.ID,
		AccessHash:     u.AccessHash,
		FirstName:      u.FirstName,
		LastName:       u.LastName,
		Username:       u.Username,
		Phone:          u.Phone,
		Photo:          u.Photo,
		Status:         u.Status,
		BotInfoVersion: u.BotInfoVersion,
		LangCode:       u.LangCode,
		Usernames:      u.Usernames,
	}
}

func userToLayer140(o tl.Object) tl.Object {
	u := o.(*tl.User)
	old := &tl.UserLayer140{
		Flags:          u.Flags,
		ID:             u.ID,
		AccessHash:     u.AccessHash,
		FirstName:      u.FirstName,
		LastName:       u.LastName,
		Username:       u.Username,
		Phone:          u.Phone,
		Photo:          u.Photo,
		Status:         u.Status,
		BotInfoVersion: u.BotInfoVersion,
		LangCode:       u.LangCode,
	}
	// Collectible usernames collapse into the single username field.
	if !old.Flags.Has(tl.UserFlagUsername) {
		if name := tl.ActiveUsername(u.Usernames); name != "" {
			old.Username = name
			old.Flags.Set(tl.UserFlagUsername)
		}
	}
	return old
}

func updateUserNameToLayer140(o tl.Object) tl.Object {
	u := o.(*tl.UpdateUserName)
	return &tl.UpdateUserNameLayer140{
		UserID:    u.UserID,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Username:  tl.ActiveUsername(u.Usernames),
	}
}

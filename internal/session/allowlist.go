package session

import "github.com/livia-chatops/livia/internal/config"

// AllowList answers the Event Router's "is this channel/user allowed to
// talk to the bot" question. In "dev" mode only the user needs to be on the
// allow-list (any channel); in "prod" mode both the channel and the user
// must be allowed.
type AllowList struct {
	mode     string
	channels map[string]struct{}
	users    map[string]struct{}
}

func NewAllowList(cfg config.AllowListConfig) *AllowList {
	a := &AllowList{
		mode:     cfg.Mode,
		channels: make(map[string]struct{}, len(cfg.AllowedChannels)),
		users:    make(map[string]struct{}, len(cfg.AllowedUsers)),
	}
	for _, c := range cfg.AllowedChannels {
		a.channels[c] = struct{}{}
	}
	for _, u := range cfg.AllowedUsers {
		a.users[u] = struct{}{}
	}
	return a
}

func (a *AllowList) Allowed(channelID, userID string) bool {
	if _, ok := a.users[userID]; !ok {
		return false
	}
	if a.mode == "prod" {
		if _, ok := a.channels[channelID]; !ok {
			return false
		}
	}
	return true
}

// AllowedDM reports whether userID may reach the bot through a
// direct-message channel. This only applies in "prod" mode: dev mode's
// sole rule is the channel allow-list (§4.F step 3; original_source's
// DEVELOPMENT_MODE leaves ALLOWED_USERS/ALLOWED_DM_CHANNELS empty and
// never consults them).
func (a *AllowList) AllowedDM(userID string) bool {
	if a.mode != "prod" {
		return false
	}
	_, ok := a.users[userID]
	return ok
}

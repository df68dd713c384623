package chatplatform

import (
	"context"
	"sync"
)

// DMResolver answers whether a channel is a direct-message channel,
// caching every successful answer (DM or not) so a given channel is looked
// up via the platform at most once. Grounded on original_source/server/config.py's
// is_channel_allowed, which calls conversations_info once per channel and
// caches confirmed DM channel IDs in ALLOWED_DM_CHANNELS rather than
// re-querying on every event.
type DMResolver struct {
	platform Platform

	mu    sync.Mutex
	known map[string]bool
}

func NewDMResolver(platform Platform) *DMResolver {
	return &DMResolver{platform: platform, known: make(map[string]bool)}
}

// IsDM reports whether channelID is a direct-message channel. A lookup
// failure is treated as "not a DM" and is not cached, matching the
// original's behavior of logging the error and falling through to the
// public-channel checks.
func (d *DMResolver) IsDM(ctx context.Context, channelID string) bool {
	d.mu.Lock()
	if v, ok := d.known[channelID]; ok {
		d.mu.Unlock()
		return v
	}
	d.mu.Unlock()

	info, err := d.platform.GetChannelInfo(ctx, channelID)
	if err != nil {
		return false
	}

	d.mu.Lock()
	d.known[channelID] = info.IsDirectMessage
	d.mu.Unlock()
	return info.IsDirectMessage
}

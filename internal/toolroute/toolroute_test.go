package toolroute

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRoute_Mail(t *testing.T) {
	require.Equal(t, ServiceMail, Route("can you check my gmail inbox"))
}

func TestRoute_Calendar(t *testing.T) {
	require.Equal(t, ServiceCalendar, Route("schedule a meeting for tomorrow"))
}

func TestRoute_PriorityOrder(t *testing.T) {
	// file-drive is checked first in the priority table (§4.G), so a
	// message mentioning both wins on the drive keyword over mail's.
	require.Equal(t, ServiceFileDrive, Route("send this gmail and also check my drive"))
}

func TestRoute_FileDriveBeatsLaterEntries(t *testing.T) {
	require.Equal(t, ServiceFileDrive, Route("can you find that file on google drive"))
}

func TestRoute_NoMatchFallsThrough(t *testing.T) {
	require.Equal(t, "", Route("what's the weather like today"))
}

func TestSanitize_RejectsShellMetacharacters(t *testing.T) {
	require.False(t, Sanitize("foo; rm -rf /"))
	require.False(t, Sanitize("`whoami`"))
}

func TestSanitize_AllowsPlainArgs(t *testing.T) {
	require.True(t, Sanitize(`{"query": "invoice for March"}`))
}

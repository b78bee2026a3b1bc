package httpapi

import "time"

// Config defines HTTP API and UI settings.
type Config struct {
	Addr            string
	SessionCookie   string
	SessionTTLHours int
	// SessionPath persists anonymous sessions across restarts when set.
	SessionPath string
	BaseURL     string
	BasePath    string
	// RunRatePerSecond and RunBurst limit /api/run and /api/terminal per client.
	RunRatePerSecond float64
	RunBurst         int
	// TerminalLines is the scrollback sent in the stream snapshot.
	TerminalLines int
}

const (
	defaultSessionCookie = "snippad_session"
	defaultTerminalLines = 500
)

// DefaultSessionSweepInterval is how often expired sessions release their
// workspaces.
const DefaultSessionSweepInterval = 10 * time.Minute

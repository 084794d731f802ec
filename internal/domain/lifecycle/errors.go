package lifecycle

// Error codes surfaced in terminal replies. Negative by platform convention;
// zero means success.
const (
	ErrNone               = 0
	ErrGeneral            = -1
	ErrInvalidAppID       = -101
	ErrAppNotFound        = -102
	ErrAlreadyLaunching   = -103
	ErrNotRunning         = -104
	ErrNoHandler          = -105
	ErrSpawnFailed        = -106
	ErrNoCollaborator     = -107
	ErrLaunchPending      = -108
	ErrRegistrationDenied = -109
	ErrTargetRunning      = -110
	ErrCanceled           = -111
	ErrMemoryLow          = -112
	ErrBridgeRejected     = -113
	ErrNoProcess          = -114
)

package chat

// Severity classifies a notification for presentation.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Kind distinguishes failure classes so the UI can style them.
type Kind string

const (
	// KindConfigUnavailable: the credential configuration resource could not
	// be fetched. Fatal to any completion attempt until resolved.
	KindConfigUnavailable Kind = "config_unavailable"

	// KindAuthMissing: the named credential is absent after a successful
	// load. Recoverable by user action.
	KindAuthMissing Kind = "auth_missing"

	// KindProvider: the completion endpoint rejected the request.
	KindProvider Kind = "provider_error"

	// KindTransport: no response reached us.
	KindTransport Kind = "transport_error"
)

// Notification is a side-channel event raised when a submission fails.
type Notification struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Severity    Severity `json:"severity"`
	Kind        Kind     `json:"kind"`
}

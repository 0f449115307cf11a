package kintai

// Notifier delivers an outbound reminder to a group. The transport (chat
// message, desktop popup, ...) lives outside the core; media is an opaque
// reference the transport knows how to resolve.
type Notifier interface {
	Notify(group GroupID, person PersonID, message string, media string) error
}

// Package intent classifies conversational intents and routes them onto the
// storefront UI contexts.
package intent

// Intent is the classified purpose of a user utterance.
type Intent string

const (
	IntentSuggestions Intent = "suggestions"
	IntentOrder       Intent = "order"
	IntentMenu        Intent = "menu"
	IntentChitchat    Intent = "chitchat"
)

// FromString converts a server-provided intent name. Unrecognized names map
// to chitchat, which is always a safe no-op for the UI.
func FromString(name string) (Intent, bool) {
	switch Intent(name) {
	case IntentSuggestions, IntentOrder, IntentMenu, IntentChitchat:
		return Intent(name), true
	}
	return IntentChitchat, false
}

// Context is one of the storefront UI modes; exactly one is active at a time.
type Context string

const (
	ContextHome        Context = "home"
	ContextSuggestions Context = "suggestions"
	ContextTray        Context = "tray"
	ContextMenu        Context = "menu"
)

// ParseContext validates a context name (used by force-navigate decisions).
func ParseContext(name string) (Context, bool) {
	switch Context(name) {
	case ContextHome, ContextSuggestions, ContextTray, ContextMenu:
		return Context(name), true
	}
	return ContextHome, false
}

// Action is what the UI should do in response to a routed intent.
type Action string

const (
	ActionStay            Action = "stay"
	ActionOpenSuggestions Action = "openSuggestions"
	ActionOpenTray        Action = "openTray"
	ActionGoMenu          Action = "goMenu"
)

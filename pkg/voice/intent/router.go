package intent

import "sync"

// Route is the pure transition function (context, intent) -> action.
//
// Once the user has entered a focused context, a chitchat intent never pops
// them back to home; staying put is a deliberate invariant of the voice UX.
func Route(ctx Context, in Intent) Action {
	switch ctx {
	case ContextHome:
		switch in {
		case IntentSuggestions:
			return ActionOpenSuggestions
		case IntentOrder:
			return ActionOpenTray
		case IntentMenu:
			return ActionGoMenu
		}
		return ActionStay

	case ContextSuggestions:
		switch in {
		case IntentOrder:
			return ActionOpenTray
		case IntentMenu:
			return ActionGoMenu
		}
		return ActionStay

	case ContextTray:
		switch in {
		case IntentMenu:
			return ActionGoMenu
		case IntentSuggestions:
			return ActionOpenSuggestions
		}
		return ActionStay

	case ContextMenu:
		switch in {
		case IntentOrder:
			return ActionOpenTray
		case IntentSuggestions:
			return ActionOpenSuggestions
		}
		return ActionStay
	}
	return ActionStay
}

// Target returns the context an action lands on, given the current one.
func Target(current Context, action Action) Context {
	switch action {
	case ActionOpenSuggestions:
		return ContextSuggestions
	case ActionOpenTray:
		return ContextTray
	case ActionGoMenu:
		return ContextMenu
	}
	return current
}

// Router tracks the active UI context for one session. It is a persistent
// mode selector: initial context is home and there is no terminal state.
type Router struct {
	mu      sync.Mutex
	current Context
}

func NewRouter() *Router {
	return &Router{current: ContextHome}
}

// Current returns the active context.
func (r *Router) Current() Context {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current
}

// Apply routes the intent, advances the context, and returns the action.
func (r *Router) Apply(in Intent) Action {
	r.mu.Lock()
	defer r.mu.Unlock()
	action := Route(r.current, in)
	r.current = Target(r.current, action)
	return action
}

// ForceNavigate bypasses the transition table entirely. Used when the reply
// carries an explicit force-navigate decision.
func (r *Router) ForceNavigate(target Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.current = target
}

// Reset returns the session to the idle home context.
func (r *Router) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.current = ContextHome
}

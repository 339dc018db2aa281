package intent

import "testing"

func TestRouteTable(t *testing.T) {
	tests := []struct {
		ctx    Context
		in     Intent
		want   Action
	}{
		// home
		{ContextHome, IntentSuggestions, ActionOpenSuggestions},
		{ContextHome, IntentOrder, ActionOpenTray},
		{ContextHome, IntentMenu, ActionGoMenu},
		{ContextHome, IntentChitchat, ActionStay},
		// suggestions: chitchat never pops back to home
		{ContextSuggestions, IntentOrder, ActionOpenTray},
		{ContextSuggestions, IntentMenu, ActionGoMenu},
		{ContextSuggestions, IntentSuggestions, ActionStay},
		{ContextSuggestions, IntentChitchat, ActionStay},
		// tray
		{ContextTray, IntentMenu, ActionGoMenu},
		{ContextTray, IntentSuggestions, ActionOpenSuggestions},
		{ContextTray, IntentOrder, ActionStay},
		{ContextTray, IntentChitchat, ActionStay},
		// menu
		{ContextMenu, IntentOrder, ActionOpenTray},
		{ContextMenu, IntentSuggestions, ActionOpenSuggestions},
		{ContextMenu, IntentMenu, ActionStay},
		{ContextMenu, IntentChitchat, ActionStay},
	}

	for _, tt := range tests {
		if got := Route(tt.ctx, tt.in); got != tt.want {
			t.Errorf("Route(%s, %s) = %s, want %s", tt.ctx, tt.in, got, tt.want)
		}
	}
}

func TestRouterAdvancesContext(t *testing.T) {
	r := NewRouter()
	if r.Current() != ContextHome {
		t.Fatalf("initial context = %s", r.Current())
	}

	if action := r.Apply(IntentOrder); action != ActionOpenTray {
		t.Fatalf("expected openTray, got %s", action)
	}
	if r.Current() != ContextTray {
		t.Fatalf("context after openTray = %s", r.Current())
	}

	// chitchat in a focused context stays put
	if action := r.Apply(IntentChitchat); action != ActionStay {
		t.Fatalf("expected stay, got %s", action)
	}
	if r.Current() != ContextTray {
		t.Fatalf("chitchat must not move the context, got %s", r.Current())
	}
}

func TestForceNavigateBypassesTable(t *testing.T) {
	r := NewRouter()
	r.Apply(IntentSuggestions)

	r.ForceNavigate(ContextHome)
	if r.Current() != ContextHome {
		t.Fatalf("force navigate must override; got %s", r.Current())
	}
}

func TestClassifyPrecedence(t *testing.T) {
	// server intent wins even when the transcript says otherwise
	if got := Classify("menu", "add two biryani to my cart"); got != IntentMenu {
		t.Fatalf("server intent must be authoritative, got %s", got)
	}
	// invalid server intent falls through to the heuristic
	if got := Classify("navigate_somewhere", "add two biryani"); got != IntentOrder {
		t.Fatalf("fallback heuristic expected order, got %s", got)
	}
	if got := Classify("", "could you recommend something?"); got != IntentSuggestions {
		t.Fatalf("expected suggestions, got %s", got)
	}
	if got := Classify("", "nice weather today"); got != IntentChitchat {
		t.Fatalf("expected chitchat, got %s", got)
	}
}

func TestHeuristicBangla(t *testing.T) {
	if got := Heuristic("দুইটা বিরিয়ানি অর্ডার করবো"); got != IntentOrder {
		t.Fatalf("expected order for Bangla order phrase, got %s", got)
	}
	if got := Heuristic("মেনু দেখাও"); got != IntentMenu {
		t.Fatalf("expected menu, got %s", got)
	}
}

package intent

import (
	"strings"

	"ai-waiter-service/pkg/utils"
)

// Keyword tables for the local fallback classifier. Order matters: order
// phrases are checked before menu/suggestion phrases because "add the
// special to my cart" mentions the menu too.
var (
	orderPhrases = []string{
		"add", "order", "cart", "tray", "checkout", "remove", "take out",
		"one more", "another", "quantity", "নিব", "অর্ডার", "কার্ট",
	}
	suggestionPhrases = []string{
		"suggest", "recommend", "what's good", "whats good", "popular",
		"best seller", "bestseller", "special today", "সাজেশন", "ভালো কি",
	}
	menuPhrases = []string{
		"menu", "what do you have", "what do you serve", "show me",
		"full list", "মেনু", "কি কি আছে",
	}
)

// Classify resolves the effective intent for a reply. An explicit
// server-provided intent is authoritative; absent that, the transcript text
// is matched against local keyword tables.
func Classify(serverIntent, transcript string) Intent {
	if serverIntent != "" {
		if in, ok := FromString(serverIntent); ok {
			return in
		}
	}
	return Heuristic(transcript)
}

// Heuristic classifies transcript text by keyword/phrase matching. It
// produces the same enum as the server classifier so the router cannot tell
// them apart.
func Heuristic(text string) Intent {
	t := utils.NormalizeKey(text)
	if t == "" {
		return IntentChitchat
	}

	for _, p := range orderPhrases {
		if strings.Contains(t, p) {
			return IntentOrder
		}
	}
	for _, p := range suggestionPhrases {
		if strings.Contains(t, p) {
			return IntentSuggestions
		}
	}
	for _, p := range menuPhrases {
		if strings.Contains(t, p) {
			return IntentMenu
		}
	}
	return IntentChitchat
}

package market

import "strings"

// DefaultWhitelist is the set of instruments synced when no explicit list is
// given. Matching is by case-insensitive prefix against the account's
// instrument universe, so "xau_usd" also covers e.g. "XAU_USD".
var DefaultWhitelist = []string{
	"natgas_usd", "xau_usd", "eur_usd",
	"de30_eur", "xcu_usd", "xag_usd",
	"sugar_usd", "wtico_usd",
	"wheat_usd", "corn_usd", "spx500_usd",
	"jp225_usd", "cn50_usd", "eu50_eur",
	"fr40_eur", "xau_xag",
}

// FilterInstruments returns the names from universe that match any whitelist
// entry by case-insensitive prefix. An empty whitelist selects the whole
// universe.
func FilterInstruments(universe, whitelist []string) []string {
	if len(whitelist) == 0 {
		return universe
	}

	wl := make([]string, 0, len(whitelist))
	for _, w := range whitelist {
		w = strings.ToLower(strings.TrimSpace(w))
		if w != "" {
			wl = append(wl, w)
		}
	}

	var out []string
	for _, name := range universe {
		lower := strings.ToLower(name)
		for _, w := range wl {
			if strings.HasPrefix(lower, w) {
				out = append(out, name)
				break
			}
		}
	}
	return out
}

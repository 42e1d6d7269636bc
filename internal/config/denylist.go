package config

// DefaultDenylistPatterns returns URL substrings that mark a page as
// browser-internal. Time spent on these pages is never attributed.
func DefaultDenylistPatterns() []string {
	return []string{
		// Chromium family
		"chrome://",
		"chrome-extension://",
		"chrome-search://",
		"chrome-untrusted://",
		"devtools://",
		"edge://",
		"extension://",
		"brave://",
		"opera://",
		"vivaldi://",

		// Firefox
		"about:",
		"moz-extension://",
		"resource://",

		// Safari
		"safari-web-extension://",
		"favorites://",

		// Misc internal pages
		"view-source:",
		"chrome-native://newtab",
		"/_/chrome/newtab",
	}
}

package auth

import (
	"fmt"
	"io"
	"strings"
)

// WriteExtractionGuide writes step-by-step instructions for obtaining a token
// or session cookies from a logged-in browser session.
func WriteExtractionGuide(w io.Writer) {
	rule := strings.Repeat("=", 72)
	lines := []string{
		rule,
		"CREDENTIAL EXTRACTION GUIDE",
		rule,
		"",
		"igarchive authenticates with either a bearer token or session cookies.",
		"",
		"STEP 1: Log in at https://www.instagram.com in your browser.",
		"STEP 2: Open Developer Tools (F12, or Cmd+Option+I on macOS).",
		"STEP 3: Open the Network tab and reload the page.",
		"STEP 4: Select any request to instagram.com/graphql/query and open Headers.",
		"",
		"Then copy ONE of:",
		"  - the value after 'Authorization: Bearer ' (token), or",
		"  - the 'sessionid' and 'csrftoken' values from the Cookie header.",
		"",
		"TIPS:",
		"  - Copy the whole value, without quotes or semicolons.",
		"  - Cookies expire; run 'igarchive auth login' again when requests",
		"    start failing with authentication errors.",
		"",
		"These values grant full access to the account. Never share them.",
		rule,
	}
	for _, line := range lines {
		fmt.Fprintln(w, line)
	}
}

// WriteQuickGuide writes a one-line reminder for experienced users
func WriteQuickGuide(w io.Writer) {
	fmt.Fprintln(w, "F12 -> Network -> reload -> graphql/query request -> Headers: copy the Bearer token or sessionid/csrftoken cookies")
}

// Package alias generates case-mixed variants of a Gmail address. Gmail
// ignores letter case in the local part, so every variant delivers to the
// same inbox while looking distinct to third-party services.
package alias

import (
	"fmt"
	"math/rand/v2"
	"strings"
	"unicode"
)

// Generate returns a random case-mixed variant of email. The domain is
// never touched.
func Generate(email string) (string, error) {
	local, domain, ok := strings.Cut(email, "@")
	if !ok || local == "" {
		return "", fmt.Errorf("not a valid email address: %q", email)
	}

	mixed := make([]rune, 0, len(local))
	for _, r := range local {
		if unicode.IsLetter(r) && rand.IntN(2) == 0 {
			mixed = append(mixed, unicode.ToUpper(r))
		} else {
			mixed = append(mixed, unicode.ToLower(r))
		}
	}

	return string(mixed) + "@" + domain, nil
}

package text

import "unicode"

// The standard username alphabet: ASCII letters, digits and a few separators
// that every major chat platform allows. Anything else counts as anomalous.
func isStandardUsernameRune(r rune) bool {
	if r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' {
		return true
	}
	switch r {
	case '_', '.', '-', ' ':
		return true
	}
	return false
}

// CountAnomalousRunes returns the number of runes in name that fall outside
// the standard username alphabet. Confusable homoglyphs, zero-width joiners,
// combining marks and decorative symbols all land here, which is what makes
// the census useful as an impersonation signal.
func CountAnomalousRunes(name string) int {
	count := 0
	for _, r := range name {
		if !isStandardUsernameRune(r) {
			count++
		}
	}
	return count
}

// HasConfusables reports whether name mixes Latin letters with Cyrillic
// lookalikes, the most common homoglyph trick in impersonation attempts.
func HasConfusables(name string) bool {
	hasLatin := false
	hasCyrillic := false
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z':
			hasLatin = true
		case r >= 0x0400 && r <= 0x04FF:
			hasCyrillic = true
		}
		if hasLatin && hasCyrillic {
			return true
		}
	}
	return false
}

// StripDecorations removes non-printing and decorative runes, collapsing
// consecutive spaces, so display names can be compared for impersonation.
func StripDecorations(name string) string {
	var result []rune
	var lastWasSpace bool
	for _, r := range name {
		if !unicode.IsPrint(r) {
			continue
		}
		if unicode.IsSpace(r) {
			if !lastWasSpace {
				result = append(result, ' ')
				lastWasSpace = true
			}
			continue
		}
		lastWasSpace = false
		result = append(result, r)
	}
	return string(result)
}

package util

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Fold lowercases s, strips diacritics and collapses whitespace, so that
// "Educação  Básica" and "educacao basica" compare equal.
func Fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}
	return strings.Join(strings.Fields(strings.ToLower(folded)), " ")
}

// ContainsAny reports whether folded text contains any of the folded keywords.
// Single-word keywords match on word boundaries; phrases match as substrings.
func ContainsAny(text string, keywords []string) (string, bool) {
	for _, k := range keywords {
		if ContainsKeyword(text, k) {
			return k, true
		}
	}
	return "", false
}

// ContainsKeyword reports whether keyword occurs in text. Both are expected
// to be folded already. Single words also match on their singular form, so
// "hospital" finds "hospitais" and "construcao" finds "construcoes".
func ContainsKeyword(text, keyword string) bool {
	if keyword == "" {
		return false
	}
	if strings.ContainsRune(keyword, ' ') {
		return strings.Contains(text, keyword)
	}
	stem := Singular(keyword)
	for _, w := range Words(text) {
		if w == keyword || (len(keyword) >= 5 && strings.HasPrefix(w, keyword)) {
			return true
		}
		sw := Singular(w)
		if sw == stem || (len(stem) >= 5 && strings.HasPrefix(sw, stem)) {
			return true
		}
	}
	return false
}

// Singular maps a folded Portuguese plural to its singular: -ais to -al,
// -eis to -el, -ois to -ol, -uis to -ul, -oes and -aes to -ao, consonant
// plus -is to -il, -ns to -m, and a trailing -s dropped. Words of four
// letters or fewer are returned unchanged.
func Singular(w string) string {
	if len(w) <= 4 {
		return w
	}
	head := w[:len(w)-3]
	switch {
	case strings.HasSuffix(w, "oes"), strings.HasSuffix(w, "aes"):
		return head + "ao"
	case strings.HasSuffix(w, "ais"):
		return head + "al"
	case strings.HasSuffix(w, "eis"):
		return head + "el"
	case strings.HasSuffix(w, "ois"):
		return head + "ol"
	case strings.HasSuffix(w, "uis"):
		return head + "ul"
	case strings.HasSuffix(w, "is") && !isVowel(w[len(w)-3]):
		return w[:len(w)-2] + "il"
	case strings.HasSuffix(w, "ns"):
		return w[:len(w)-2] + "m"
	case strings.HasSuffix(w, "s"):
		return w[:len(w)-1]
	}
	return w
}

func isVowel(b byte) bool {
	return strings.IndexByte("aeiou", b) >= 0
}

// Words splits folded text into letter/digit runs.
func Words(text string) []string {
	return strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// Fingerprint hashes the folded parts into a stable hex identifier.
func Fingerprint(parts ...string) string {
	folded := make([]string, len(parts))
	for i, p := range parts {
		folded[i] = Fold(p)
	}
	sum := sha256.Sum256([]byte(strings.Join(folded, "\x1f")))
	return hex.EncodeToString(sum[:])
}

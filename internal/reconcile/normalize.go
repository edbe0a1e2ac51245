// Package reconcile merges provider data into system-of-record fields under
// per-field overwrite policy. Comparisons run on normalized text so cosmetic
// differences (casing, spacing, Unicode form) never count as changes.
package reconcile

import (
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Unsure is the placeholder a record holds when nobody has confirmed a
// value yet. A slot holding it is treated like an empty slot.
const Unsure = "unsure"

var multiSpaceRe = regexp.MustCompile(`\s{2,}`)

// Normalize standardizes a field value for comparison by:
//  1. Applying Unicode NFC so composed and decomposed forms compare equal
//  2. Trimming whitespace
//  3. Collapsing interior whitespace runs into single spaces
//  4. Lowercasing
func Normalize(s string) string {
	s = norm.NFC.String(s)
	s = strings.TrimSpace(s)
	s = multiSpaceRe.ReplaceAllString(s, " ")
	return strings.ToLower(s)
}

// IsEmptyOrUnsure reports whether a stored value is an open slot: empty
// after normalization, or the Unsure placeholder in any casing.
func IsEmptyOrUnsure(s string) bool {
	n := Normalize(s)
	return n == "" || n == Unsure
}

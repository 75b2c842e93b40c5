package whatsapp

import "strings"

// NormalizeText collapses every whitespace run (newlines and carriage returns
// included) into a single space and trims the ends. The platform rejects
// template parameters containing raw newlines or repeated spaces.
func NormalizeText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

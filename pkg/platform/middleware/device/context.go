// Package device derives a coarse device description from the User-Agent so
// audit entries can say what kind of client performed an action.
package device

import (
	"strings"

	"github.com/mssola/useragent"
)

// Describe renders a User-Agent as "browser version / os", or "mobile" and
// "bot" markers where they apply. Empty input yields "".
func Describe(userAgent string) string {
	if strings.TrimSpace(userAgent) == "" {
		return ""
	}
	ua := useragent.New(userAgent)
	if ua.Bot() {
		name, _ := ua.Browser()
		return "bot " + name
	}
	name, version := ua.Browser()
	parts := []string{strings.TrimSpace(name + " " + version)}
	if osName := ua.OS(); osName != "" {
		parts = append(parts, osName)
	}
	if ua.Mobile() {
		parts = append(parts, "mobile")
	}
	return strings.Join(parts, " / ")
}

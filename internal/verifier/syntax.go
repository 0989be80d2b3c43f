package verifier

import (
	"regexp"

	"github.com/cruxstack/email-reachability-go/internal/types"
)

// one '@', no whitespace, and a dot inside the domain
var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// CheckSyntax validates the shape of an address. It does no I/O.
func CheckSyntax(email types.EmailAddress) types.SyntaxResult {
	return types.SyntaxResult{Valid: emailPattern.MatchString(email.String())}
}

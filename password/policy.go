package password

import (
	"fmt"
	"strings"
	"unicode"
)

const defaultSpecialChars = `!@#$%^&*(),.?":{}|<>`

// Policy rejects weak replacement passwords. The zero value is not usable;
// start from DefaultPolicy.
type Policy struct {
	MinLength           int
	SimilarityThreshold float64
	RequireUpper        bool
	RequireLower        bool
	RequireDigit        bool
	RequireSpecial      bool
	SpecialChars        string
}

// DefaultPolicy returns the rules applied to password changes and resets.
func DefaultPolicy() Policy {
	return Policy{
		MinLength:           8,
		SimilarityThreshold: 0.7,
		RequireUpper:        true,
		RequireLower:        true,
		RequireDigit:        true,
		RequireSpecial:      true,
		SpecialChars:        defaultSpecialChars,
	}
}

var substitutions = map[rune]rune{
	'a': '4',
	'e': '3',
	'i': '1',
	'o': '0',
	's': '5',
	't': '7',
	'b': '8',
}

// Validate returns every rule that password breaks, as human-readable messages.
// A confirmation mismatch is reported alone. An empty result means the
// password is acceptable.
func (p Policy) Validate(password, confirm, username string) []string {
	if password != confirm {
		return []string{"Password confirmation does not match"}
	}

	var violations []string
	lower := strings.ToLower(password)
	user := strings.ToLower(username)

	if user != "" {
		if similarity(lower, user) > p.SimilarityThreshold {
			violations = append(violations, "Password is too similar to username")
		}
		if strings.Contains(lower, substitute(user)) {
			violations = append(violations, "Password contains username in common substitutions")
		}
	}

	if len([]rune(password)) < p.MinLength {
		violations = append(violations, fmt.Sprintf("Password must be at least %d characters", p.MinLength))
	}

	specials := p.SpecialChars
	if specials == "" {
		specials = defaultSpecialChars
	}
	var upper, lowerCase, digit, special bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lowerCase = true
		case unicode.IsDigit(r):
			digit = true
		}
		if strings.ContainsRune(specials, r) {
			special = true
		}
	}
	if p.RequireUpper && !upper {
		violations = append(violations, "Password must contain at least one uppercase letter")
	}
	if p.RequireLower && !lowerCase {
		violations = append(violations, "Password must contain at least one lowercase letter")
	}
	if p.RequireDigit && !digit {
		violations = append(violations, "Password must contain at least one digit")
	}
	if p.RequireSpecial && !special {
		violations = append(violations, "Password must contain at least one special character")
	}

	return violations
}

func substitute(s string) string {
	return strings.Map(func(r rune) rune {
		if sub, ok := substitutions[r]; ok {
			return sub
		}
		return r
	}, s)
}

// similarity returns 2*M/T where M is the length of the longest common
// subsequence and T the combined length, in [0, 1].
func similarity(a, b string) float64 {
	ra, rb := []rune(a), []rune(b)
	total := len(ra) + len(rb)
	if total == 0 {
		return 1
	}

	prev := make([]int, len(rb)+1)
	cur := make([]int, len(rb)+1)
	for i := 1; i <= len(ra); i++ {
		for j := 1; j <= len(rb); j++ {
			switch {
			case ra[i-1] == rb[j-1]:
				cur[j] = prev[j-1] + 1
			case prev[j] >= cur[j-1]:
				cur[j] = prev[j]
			default:
				cur[j] = cur[j-1]
			}
		}
		prev, cur = cur, prev
	}
	return 2 * float64(prev[len(rb)]) / float64(total)
}

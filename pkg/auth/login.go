package auth

import (
	"regexp"
	"slices"
	"strings"
)

const DefaultDomain = "epitech.eu"

// DefaultExempt lists logins that never receive the domain suffix.
var DefaultExempt = []string{"ramassage-tek"}

// legacyLoginRe matches pre-domain logins of the form lastname_f.
var legacyLoginRe = regexp.MustCompile(`^\D+_\D$`)

// Normalizer turns logins as typed by users into the form BLIH knows them by.
type Normalizer struct {
	Domain string
	Exempt []string
}

func DefaultNormalizer() Normalizer {
	return Normalizer{Domain: DefaultDomain, Exempt: DefaultExempt}
}

func (n Normalizer) suffix() string {
	domain := n.Domain
	if domain == "" {
		domain = DefaultDomain
	}
	return "@" + strings.TrimPrefix(strings.ToLower(domain), "@")
}

// RealLogin trims and lower-cases login, then appends the domain suffix unless login already
// carries it, is a legacy login or is exempt.
func (n Normalizer) RealLogin(login string) string {
	realLogin := strings.ToLower(strings.TrimSpace(login))
	if realLogin == "" {
		return ""
	}
	suffix := n.suffix()
	if strings.HasSuffix(realLogin, suffix) ||
		legacyLoginRe.MatchString(realLogin) ||
		slices.Contains(n.Exempt, realLogin) {
		return realLogin
	}
	return realLogin + suffix
}

// ShortLogin strips the domain suffix, the form used for display and ACL entries.
func (n Normalizer) ShortLogin(login string) string {
	return strings.TrimSuffix(strings.TrimSpace(login), n.suffix())
}

// SameUser reports whether a and b designate the same BLIH user.
func (n Normalizer) SameUser(a, b string) bool {
	return n.RealLogin(a) == n.RealLogin(b)
}

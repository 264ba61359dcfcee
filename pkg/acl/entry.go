package acl

import (
	"strings"

	"github.com/blihweb/blihweb/pkg/auth"
)

// Entry is one row of an ACL.  User is held in short form.
type Entry struct {
	User string
	Rights
}

// Grant is a user and rights string pair as the proxy returns them.
type Grant struct {
	User   string `json:"user"`
	Rights string `json:"rights"`
}

// Set is an ordered ACL, either the last known server state or a draft.
type Set []Entry

// FromGrants builds a set from server grants, keeping their order.
func FromGrants(n auth.Normalizer, grants []Grant) Set {
	s := make(Set, 0, len(grants))
	for _, g := range grants {
		s = append(s, Entry{User: n.ShortLogin(g.User), Rights: ParseRights(g.Rights)})
	}
	return s
}

func (s Set) Clone() Set {
	if s == nil {
		return nil
	}
	out := make(Set, len(s))
	copy(out, s)
	return out
}

// Clean drops rows without a user or without rights and shortens users.
func (s Set) Clean(n auth.Normalizer) Set {
	out := make(Set, 0, len(s))
	for _, e := range s {
		user := n.ShortLogin(strings.TrimSpace(e.User))
		if user == "" || e.Empty() {
			continue
		}
		out = append(out, Entry{User: user, Rights: e.Rights})
	}
	return out
}

// Equal compares the cleaned sets by normalized user, ignoring order.
func (s Set) Equal(n auth.Normalizer, other Set) bool {
	a, b := s.index(n), other.index(n)
	if len(a) != len(b) {
		return false
	}
	for user, rights := range a {
		if r, ok := b[user]; !ok || r != rights {
			return false
		}
	}
	return true
}

// index maps real logins to rights over the cleaned set.  Later rows win.
func (s Set) index(n auth.Normalizer) map[string]Rights {
	m := make(map[string]Rights, len(s))
	for _, e := range s.Clean(n) {
		m[n.RealLogin(e.User)] = e.Rights
	}
	return m
}

// Find returns the row for user, if any.
func (s Set) Find(n auth.Normalizer, user string) (Entry, bool) {
	login := n.RealLogin(user)
	for _, e := range s {
		if n.RealLogin(e.User) == login {
			return e, true
		}
	}
	return Entry{}, false
}

// Apply returns a new set with confirmed mutations folded in.  s is not modified.
func (s Set) Apply(n auth.Normalizer, mutations []Mutation) Set {
	out := s.Clone()
	for _, m := range mutations {
		login := n.RealLogin(m.User)
		idx := -1
		for i, e := range out {
			if n.RealLogin(e.User) == login {
				idx = i
				break
			}
		}
		switch {
		case m.Revoke() && idx >= 0:
			out = append(out[:idx], out[idx+1:]...)
		case m.Revoke():
		case idx >= 0:
			out[idx].Rights = ParseRights(m.Rights)
		default:
			out = append(out, Entry{User: n.ShortLogin(login), Rights: ParseRights(m.Rights)})
		}
	}
	return out
}

package acl

import (
	"fmt"
	"strings"

	"github.com/blihweb/blihweb/pkg/auth"
)

// Mutation is one setacl call.  User is the normalized login; an empty Rights revokes.
type Mutation struct {
	User   string `json:"user"`
	Rights string `json:"acl"`
}

func (m Mutation) Revoke() bool {
	return m.Rights == ""
}

func (m Mutation) String() string {
	if m.Revoke() {
		return m.User + " (revoke)"
	}
	return m.User + ":" + m.Rights
}

// Diff computes the mutations turning lastKnown into draft for a repository owned by owner.
// Draft rows with rights are emitted first, in draft order, then revocations for users of
// lastKnown absent from them; mutations matching lastKnown exactly are dropped.  Neither
// set is modified.
func Diff(n auth.Normalizer, lastKnown, draft Set, owner string) ([]Mutation, error) {
	ownerLogin := n.RealLogin(owner)
	var mutations []Mutation
	emitted := make(map[string]struct{}, len(draft))

	for _, e := range draft {
		user := n.ShortLogin(strings.TrimSpace(e.User))
		if user == "" {
			if e.Empty() {
				continue
			}
			return nil, fmt.Errorf("%w: rights %q", ErrMissingUser, e.String())
		}
		if e.Empty() {
			continue
		}
		login := n.RealLogin(user)
		if ownerLogin != "" && login == ownerLogin {
			return nil, fmt.Errorf("%w: %s", ErrOwnerEntry, user)
		}
		if _, ok := emitted[login]; ok {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateUser, user)
		}
		emitted[login] = struct{}{}
		mutations = append(mutations, Mutation{User: login, Rights: e.String()})
	}

	for _, e := range lastKnown {
		login := n.RealLogin(e.User)
		if login == "" || login == ownerLogin {
			continue
		}
		if _, ok := emitted[login]; ok {
			continue
		}
		emitted[login] = struct{}{}
		mutations = append(mutations, Mutation{User: login})
	}

	result := mutations[:0]
	for _, m := range mutations {
		if prev, ok := lastKnown.Find(n, m.User); ok && prev.String() == m.Rights {
			continue
		}
		result = append(result, m)
	}
	if len(result) == 0 {
		return nil, nil
	}
	return result, nil
}

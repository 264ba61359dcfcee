package acl

import "strings"

// Rights is the set of permissions a user holds on a repository.
type Rights struct {
	Read  bool
	Write bool
	Admin bool
}

// ParseRights reads a BLIH rights string such as "r" or "rwa".  Unknown letters are ignored.
func ParseRights(s string) Rights {
	return Rights{
		Read:  strings.ContainsRune(s, 'r'),
		Write: strings.ContainsRune(s, 'w'),
		Admin: strings.ContainsRune(s, 'a'),
	}
}

// String renders the rights in the fixed r, w, a order.  No rights renders as "".
func (r Rights) String() string {
	var sb strings.Builder
	if r.Read {
		sb.WriteByte('r')
	}
	if r.Write {
		sb.WriteByte('w')
	}
	if r.Admin {
		sb.WriteByte('a')
	}
	return sb.String()
}

func (r Rights) Empty() bool {
	return !r.Read && !r.Write && !r.Admin
}

package acl

import "errors"

var (
	ErrOwnerEntry    = errors.New("the repository owner cannot be given ACL rights")
	ErrMissingUser   = errors.New("ACL entry has rights but no user")
	ErrDuplicateUser = errors.New("user appears more than once in ACL")
)

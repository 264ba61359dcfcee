package blih

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// Operation names, as found after /api/ in proxy routes.
const (
	OpRepoList    = "repo/list"
	OpRepoGetACL  = "repo/getacl"
	OpRepoSetACL  = "repo/setacl"
	OpRepoGetInfo = "repo/getinfo"
	OpRepoCreate  = "repo/create"
	OpRepoDelete  = "repo/delete"
	OpSSHList     = "ssh/list"
	OpSSHUpload   = "ssh/upload"
	OpSSHDelete   = "ssh/delete"
)

const resourcePlaceholder = "{r}"

// Operation maps one proxy route to exactly one upstream method and path.
type Operation struct {
	Name   string
	Method string
	// Pattern is the upstream path, with {r} standing for the escaped resource.
	Pattern string
	shape   shapeFunc
}

var operations = []Operation{
	{Name: OpRepoList, Method: http.MethodGet, Pattern: "/repositories", shape: shapeRepositoryList},
	{Name: OpRepoGetACL, Method: http.MethodGet, Pattern: "/repository/{r}/acls", shape: shapeACL},
	{Name: OpRepoSetACL, Method: http.MethodPost, Pattern: "/repository/{r}/acls", shape: shapeNull},
	{Name: OpRepoGetInfo, Method: http.MethodGet, Pattern: "/repository/{r}", shape: shapeRepositoryInfo},
	{Name: OpRepoCreate, Method: http.MethodPost, Pattern: "/repositories", shape: shapePassThrough},
	{Name: OpRepoDelete, Method: http.MethodDelete, Pattern: "/repository/{r}", shape: shapeNull},
	{Name: OpSSHList, Method: http.MethodGet, Pattern: "/sshkeys", shape: shapeSSHKeyList},
	{Name: OpSSHUpload, Method: http.MethodPost, Pattern: "/sshkeys", shape: shapePassThrough},
	{Name: OpSSHDelete, Method: http.MethodDelete, Pattern: "/sshkey/{r}", shape: shapePassThrough},
}

// Operations returns the operation table.
func Operations() []Operation {
	ops := make([]Operation, len(operations))
	copy(ops, operations)
	return ops
}

func LookupOperation(name string) (Operation, error) {
	for _, op := range operations {
		if op.Name == name {
			return op, nil
		}
	}
	return Operation{}, fmt.Errorf("%w: %s", ErrUnknownOperation, name)
}

// NeedsResource reports whether the upstream path names a repository or key.
func (o Operation) NeedsResource() bool {
	return strings.Contains(o.Pattern, resourcePlaceholder)
}

// ReadOnly reports whether the upstream call leaves upstream state unchanged.
func (o Operation) ReadOnly() bool {
	return o.Method == http.MethodGet
}

// Paths returns the decoded and escaped upstream paths for resource.  The escaped path keeps
// slashes inside resource literal as %2F.
func (o Operation) Paths(resource string) (decoded, escaped string, err error) {
	if !o.NeedsResource() {
		return o.Pattern, o.Pattern, nil
	}
	if resource == "" {
		return "", "", fmt.Errorf("%w: %s", ErrMissingResource, o.Name)
	}
	decoded = strings.Replace(o.Pattern, resourcePlaceholder, resource, 1)
	escaped = strings.Replace(o.Pattern, resourcePlaceholder, EscapeResource(resource), 1)
	return decoded, escaped, nil
}

// Shape turns a 200 upstream body into the body returned to proxy callers.
func (o Operation) Shape(body []byte) ([]byte, error) {
	if o.shape == nil {
		return body, nil
	}
	return o.shape(body)
}

// EscapeResource percent-encodes a repository or key name into a single path segment.
func EscapeResource(resource string) string {
	return url.PathEscape(resource)
}

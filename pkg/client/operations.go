package client

import (
	"context"

	"github.com/blihweb/blihweb/pkg/acl"
	"github.com/blihweb/blihweb/pkg/auth"
	"github.com/blihweb/blihweb/pkg/blih"
)

const RepositoryTypeGit = "git"

type CreateRepositoryPayload struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

type UploadSSHKeyPayload struct {
	SSHKey string `json:"sshkey"`
}

func (c *Client) ListRepositories(ctx context.Context, cred *auth.Credential) Result {
	return c.Call(ctx, cred, blih.OpRepoList, "", nil)
}

func (c *Client) GetACL(ctx context.Context, cred *auth.Credential, repository string) Result {
	return c.Call(ctx, cred, blih.OpRepoGetACL, repository, nil)
}

// SetACL sends one mutation.  An empty rights string revokes the user.
func (c *Client) SetACL(ctx context.Context, cred *auth.Credential, repository string, m acl.Mutation) Result {
	return c.Call(ctx, cred, blih.OpRepoSetACL, repository, m)
}

func (c *Client) GetRepositoryInfo(ctx context.Context, cred *auth.Credential, repository string) Result {
	return c.Call(ctx, cred, blih.OpRepoGetInfo, repository, nil)
}

func (c *Client) CreateRepository(ctx context.Context, cred *auth.Credential, name string) Result {
	return c.Call(ctx, cred, blih.OpRepoCreate, "", CreateRepositoryPayload{Name: name, Type: RepositoryTypeGit})
}

func (c *Client) DeleteRepository(ctx context.Context, cred *auth.Credential, repository string) Result {
	return c.Call(ctx, cred, blih.OpRepoDelete, repository, nil)
}

func (c *Client) ListSSHKeys(ctx context.Context, cred *auth.Credential) Result {
	return c.Call(ctx, cred, blih.OpSSHList, "", nil)
}

// UploadSSHKey sends the key content encoded with EncodeSSHKey.
func (c *Client) UploadSSHKey(ctx context.Context, cred *auth.Credential, content string) Result {
	return c.Call(ctx, cred, blih.OpSSHUpload, "", UploadSSHKeyPayload{SSHKey: EncodeSSHKey(content)})
}

func (c *Client) DeleteSSHKey(ctx context.Context, cred *auth.Credential, name string) Result {
	return c.Call(ctx, cred, blih.OpSSHDelete, name, nil)
}

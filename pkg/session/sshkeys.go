package session

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/blihweb/blihweb/pkg/auth"
	"github.com/blihweb/blihweb/pkg/blih"
	"github.com/blihweb/blihweb/pkg/logging"
	"github.com/blihweb/blihweb/pkg/state"
)

const MinSSHKeyLength = 50

// RefreshSSHKeys reloads the SSH key list.
func (s *Session) RefreshSSHKeys(ctx context.Context) error {
	cred, err := s.credential()
	if err != nil {
		return err
	}
	if err := s.refreshSSHKeys(ctx, cred); err != nil {
		return s.fail(err)
	}
	return s.succeed(countText(len(s.store.SSHKeys()), "SSH key", "SSH keys"))
}

// SSHKeys returns the SSH key list, reloading it when stale or empty.
func (s *Session) SSHKeys(ctx context.Context) ([]state.SSHKey, error) {
	cred, err := s.credential()
	if err != nil {
		return nil, err
	}
	keys := s.store.SSHKeys()
	if len(keys) == 0 || s.store.Stale(state.SSHKeys, s.now()) {
		if err := s.refreshSSHKeys(ctx, cred); err != nil {
			return nil, s.fail(err)
		}
		keys = s.store.SSHKeys()
	}
	return keys, s.succeed(countText(len(keys), "SSH key", "SSH keys"))
}

func (s *Session) refreshSSHKeys(ctx context.Context, cred *auth.Credential) *Error {
	res := s.api.ListSSHKeys(ctx, cred)
	if !res.OK {
		return resultError(res)
	}
	var listed []blih.SSHKey
	if err := res.Decode(&listed); err != nil {
		return &Error{Text: TextUnknownError, Code: res.Code, Err: fmt.Errorf("decode ssh key list: %w", err)}
	}
	keys := make([]state.SSHKey, 0, len(listed))
	for _, k := range listed {
		keys = append(keys, state.SSHKey{Name: k.Name, Content: k.Content})
	}
	s.store.RefreshSSHKeys(keys, s.now())
	return nil
}

// UploadSSHKey uploads a public key.  The server names it after its comment, the last field.
func (s *Session) UploadSSHKey(ctx context.Context, content string) error {
	cred, err := s.credential()
	if err != nil {
		return err
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return s.fail(&Error{Text: TextKeyEmpty, Err: ErrInvalidInput})
	}
	fields := strings.Fields(content)
	name := fields[len(fields)-1]
	log := logging.FromContext(ctx).WithField(logging.SSHKeyFieldKey, name)
	// the server judges the key; a short one is only worth a warning
	if utf8.RuneCountInString(content) < MinSSHKeyLength {
		log.WithField("length", utf8.RuneCountInString(content)).Warn("SSH key looks too short")
	}
	res := s.api.UploadSSHKey(ctx, cred, content)
	if !res.OK {
		return s.fail(resultError(res))
	}
	s.store.MarkRecent(state.SSHKeys, name)
	log.Info("SSH key uploaded")
	if err := s.refreshSSHKeys(ctx, cred); err != nil {
		log.WithError(err).Warn("Failed to refresh SSH keys")
	}
	return s.succeed(TextKeyUploaded)
}

func (s *Session) DeleteSSHKey(ctx context.Context, name string) error {
	cred, err := s.credential()
	if err != nil {
		return err
	}
	if name == "" {
		return s.fail(&Error{Text: TextEmptyName, Err: ErrInvalidInput})
	}
	res := s.api.DeleteSSHKey(ctx, cred, name)
	if !res.OK {
		return s.fail(resultError(res))
	}
	s.store.RemoveSSHKey(name)
	return s.succeed("The SSH key " + name + " has been deleted.")
}

package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/blihweb/blihweb/pkg/acl"
	"github.com/blihweb/blihweb/pkg/auth"
	"github.com/blihweb/blihweb/pkg/blih"
	"github.com/blihweb/blihweb/pkg/client"
	"github.com/blihweb/blihweb/pkg/logging"
	"github.com/blihweb/blihweb/pkg/reconcile"
	"github.com/blihweb/blihweb/pkg/state"
	"github.com/spf13/cast"
	"golang.org/x/sync/errgroup"
)

const (
	MaxRepositoryNameLength = 84

	noACLsError = "No ACLs"
)

// RepositoryView is what opening a repository shows.
type RepositoryView struct {
	Repository state.Repository
	ACL        acl.Set
	// Unnamed repositories only show their uuid.
	Unnamed bool
}

// RefreshRepositories reloads the repository list.
func (s *Session) RefreshRepositories(ctx context.Context) error {
	cred, err := s.credential()
	if err != nil {
		return err
	}
	if err := s.refreshRepositories(ctx, cred); err != nil {
		return s.fail(err)
	}
	return s.succeed(countText(len(s.store.Repositories()), "repository", "repositories"))
}

// Repositories returns the repository list, reloading it when stale or empty.
func (s *Session) Repositories(ctx context.Context) ([]state.Repository, error) {
	cred, err := s.credential()
	if err != nil {
		return nil, err
	}
	repos := s.store.Repositories()
	if len(repos) == 0 || s.store.Stale(state.Repositories, s.now()) {
		if err := s.refreshRepositories(ctx, cred); err != nil {
			return nil, s.fail(err)
		}
		repos = s.store.Repositories()
	}
	return repos, s.succeed(countText(len(repos), "repository", "repositories"))
}

func (s *Session) refreshRepositories(ctx context.Context, cred *auth.Credential) *Error {
	res := s.api.ListRepositories(ctx, cred)
	if !res.OK {
		if res.Code == http.StatusNotFound {
			s.store.RefreshRepositories(nil, s.now())
			return nil
		}
		return resultError(res)
	}
	if err := s.storeRepositories(res); err != nil {
		return &Error{Text: TextUnknownError, Code: res.Code, Err: err}
	}
	return nil
}

func (s *Session) storeRepositories(res client.Result) error {
	var listed []blih.Repository
	if err := res.Decode(&listed); err != nil {
		return fmt.Errorf("decode repository list: %w", err)
	}
	repos := make([]state.Repository, 0, len(listed))
	for _, r := range listed {
		repos = append(repos, state.Repository{Name: r.Name, UUID: r.UUID})
	}
	s.store.RefreshRepositories(repos, s.now())
	return nil
}

// OpenRepository loads information and ACL of a repository, concurrently.  Information
// already known is not fetched again.  A repository missing upstream is dropped from the list.
func (s *Session) OpenRepository(ctx context.Context, nameOrUUID string) (*RepositoryView, error) {
	cred, err := s.credential()
	if err != nil {
		return nil, err
	}
	repo, ok := s.store.Repository(nameOrUUID)
	if !ok {
		if err := s.refreshRepositories(ctx, cred); err != nil {
			return nil, s.fail(err)
		}
		if repo, ok = s.store.Repository(nameOrUUID); !ok {
			return nil, s.fail(&Error{Text: "The repository " + nameOrUUID + " does not exist.", Err: ErrRepositoryNotFound})
		}
	}
	if repo.Name == "" {
		return &RepositoryView{Repository: repo, Unnamed: true}, s.succeed("")
	}
	s.store.ClearRecent(state.Repositories, repo.Name)
	log := logging.FromContext(ctx).WithField(logging.RepositoryFieldKey, repo.Name)

	var (
		mu       sync.Mutex
		deleted  bool
		firstErr *Error
		info     *blih.RepositoryInfo
		set      acl.Set
	)
	record := func(err *Error) {
		mu.Lock()
		defer mu.Unlock()
		if firstErr == nil {
			firstErr = err
		}
	}
	gone := func() {
		mu.Lock()
		defer mu.Unlock()
		deleted = true
	}

	var g errgroup.Group
	if !repo.HasInfo() {
		g.Go(func() error {
			v, err := s.info.GetOrSet(infoKey(cred, repo.Name), func() (interface{}, error) {
				res := s.api.GetRepositoryInfo(ctx, cred, repo.Name)
				if !res.OK {
					return nil, resultError(res)
				}
				var fetched blih.RepositoryInfo
				if err := res.Decode(&fetched); err != nil {
					return nil, &Error{Text: TextUnknownError, Code: res.Code, Err: err}
				}
				return &fetched, nil
			})
			if err != nil {
				var sErr *Error
				if errors.As(err, &sErr) && sErr.Code == http.StatusNotFound {
					s.api.AbortAll()
					gone()
					return nil
				}
				if errors.As(err, &sErr) {
					record(sErr)
				} else {
					record(&Error{Text: TextUnknownError, Err: err})
				}
				return nil
			}
			mu.Lock()
			info = v.(*blih.RepositoryInfo)
			mu.Unlock()
			return nil
		})
	}
	g.Go(func() error {
		res := s.api.GetACL(ctx, cred, repo.Name)
		if !res.OK {
			if res.ErrorBody().Error == noACLsError {
				mu.Lock()
				set = acl.Set{}
				mu.Unlock()
				return nil
			}
			if res.Code == http.StatusNotFound {
				s.api.AbortAll()
				gone()
				return nil
			}
			record(resultError(res))
			return nil
		}
		grants, err := decodeGrants(res.Data)
		if err != nil {
			record(&Error{Text: TextUnknownError, Code: res.Code, Err: err})
			return nil
		}
		mu.Lock()
		set = acl.FromGrants(s.normalizer, grants)
		mu.Unlock()
		return nil
	})
	_ = g.Wait()

	if deleted {
		log.Info("Repository vanished upstream")
		s.info.Invalidate(infoKey(cred, repo.Name))
		s.store.RemoveRepository(repo.Name)
		if err := s.refreshRepositories(ctx, cred); err != nil {
			log.WithError(err).Warn("Failed to refresh repositories")
		}
		return nil, s.fail(&Error{Text: "The repository " + repo.Name + " has been deleted.", Code: http.StatusNotFound, Err: ErrRepositoryDeleted})
	}
	if firstErr != nil {
		return nil, s.fail(firstErr)
	}

	if info != nil {
		created, err := parseCreationTime(info.CreationTime)
		if err != nil {
			log.WithError(err).Warn("Unreadable creation time")
		}
		s.store.SetRepositoryInfo(repo.Name, jsonString(info.UUID), created, jsonString(info.Description))
	}
	s.store.SetACL(repo.Name, set)
	repo, _ = s.store.Repository(repo.Name)
	return &RepositoryView{Repository: repo, ACL: set.Clone()}, s.succeed("")
}

// CreateRepository creates name then applies initial, DefaultACL() when nil.  The repository
// stays created when applying the ACL fails.
func (s *Session) CreateRepository(ctx context.Context, name string, initial acl.Set) error {
	cred, err := s.credential()
	if err != nil {
		return err
	}
	switch {
	case name == "":
		return s.fail(&Error{Text: TextEmptyName, Err: ErrInvalidInput})
	case utf8.RuneCountInString(name) > MaxRepositoryNameLength:
		return s.fail(&Error{Text: TextNameTooLong, Err: ErrInvalidInput})
	}
	if initial == nil {
		initial = DefaultACL()
	}
	mutations, err := acl.Diff(s.normalizer, nil, initial, cred.Login)
	if err != nil {
		return s.fail(aclError(err))
	}

	res := s.api.CreateRepository(ctx, cred, name)
	if !res.OK {
		return s.fail(resultError(res))
	}
	s.store.MarkRecent(state.Repositories, name)
	log := logging.FromContext(ctx).WithField(logging.RepositoryFieldKey, name)
	log.Info("Repository created")

	outcome := s.orchestrator.Apply(ctx, cred, name, nil, mutations)
	if outcome.OK {
		s.store.SetACL(name, outcome.State)
	}
	if err := s.refreshRepositories(ctx, cred); err != nil {
		log.WithError(err).Warn("Failed to refresh repositories")
	}
	if !outcome.OK {
		return s.fail(outcomeError(outcome))
	}
	if len(mutations) > 0 {
		return s.succeed("The repository " + name + " has been created with the specified ACL.")
	}
	return s.succeed("The repository " + name + " has been created without ACL.")
}

// DeleteRepository deletes a repository, unnamed ones by uuid.
func (s *Session) DeleteRepository(ctx context.Context, nameOrUUID string) error {
	cred, err := s.credential()
	if err != nil {
		return err
	}
	repo, ok := s.store.Repository(nameOrUUID)
	if !ok {
		repo = state.Repository{Name: nameOrUUID}
	}
	resource := repo.Name
	display := repo.Name
	if resource == "" {
		resource = repo.UUID
		display = repo.UUID
	}
	res := s.api.DeleteRepository(ctx, cred, resource)
	if !res.OK {
		return s.fail(resultError(res))
	}
	s.store.RemoveRepository(nameOrUUID)
	if repo.Name != "" {
		s.info.Invalidate(infoKey(cred, repo.Name))
	}
	return s.succeed("The repository " + display + " has been deleted.")
}

// SaveACL applies draft to repository.  Confirmed mutations are kept when others fail, and
// the ACL is read again from the server.
func (s *Session) SaveACL(ctx context.Context, repository string, draft acl.Set) error {
	cred, err := s.credential()
	if err != nil {
		return err
	}
	lastKnown, ok := s.store.ACL(repository)
	if !ok {
		if err := s.reloadACL(ctx, cred, repository); err != nil {
			return s.fail(err)
		}
		lastKnown, _ = s.store.ACL(repository)
	}
	mutations, err := acl.Diff(s.normalizer, lastKnown, draft, cred.Login)
	if err != nil {
		return s.fail(aclError(err))
	}
	if len(mutations) == 0 {
		return s.succeed(TextACLUnchanged)
	}

	outcome := s.orchestrator.Apply(ctx, cred, repository, lastKnown, mutations)
	s.store.SetACL(repository, outcome.State)
	if outcome.OK {
		return s.succeed(TextACLApplied)
	}
	if outcome.NeedsRefresh {
		if err := s.reloadACL(ctx, cred, repository); err != nil {
			logging.FromContext(ctx).WithError(err).Warn("Failed to reload ACL")
		}
	}
	return s.fail(outcomeError(outcome))
}

func (s *Session) reloadACL(ctx context.Context, cred *auth.Credential, repository string) *Error {
	res := s.api.GetACL(ctx, cred, repository)
	if !res.OK {
		if res.ErrorBody().Error == noACLsError {
			s.store.SetACL(repository, acl.Set{})
			return nil
		}
		return resultError(res)
	}
	grants, err := decodeGrants(res.Data)
	if err != nil {
		return &Error{Text: TextUnknownError, Code: res.Code, Err: err}
	}
	s.store.SetACL(repository, acl.FromGrants(s.normalizer, grants))
	return nil
}

func outcomeError(outcome reconcile.Outcome) *Error {
	if outcome.First != nil {
		err := resultError(outcome.First.Result)
		err.Err = fmt.Errorf("%w: %w", ErrReconciliation, outcome.Err)
		return err
	}
	return &Error{Text: TextAborted, Err: client.ErrAborted}
}

func aclError(err error) *Error {
	switch {
	case errors.Is(err, acl.ErrOwnerEntry):
		return &Error{Text: "The owner of the repository cannot be in its ACL.", Err: err}
	case errors.Is(err, acl.ErrMissingUser):
		return &Error{Text: "Every ACL entry with rights needs a user.", Err: err}
	case errors.Is(err, acl.ErrDuplicateUser):
		return &Error{Text: "A user appears more than once in the ACL.", Err: err}
	default:
		return &Error{Text: TextUnknownError, Err: err}
	}
}

// decodeGrants reads the getacl answer, an object of users to rights, keeping its order.
func decodeGrants(data json.RawMessage) ([]acl.Grant, error) {
	var obj blih.OrderedObject
	if err := json.Unmarshal(data, &obj); err != nil {
		return nil, fmt.Errorf("decode acl: %w", err)
	}
	grants := make([]acl.Grant, 0, obj.Len())
	for _, user := range obj.Keys() {
		raw, _ := obj.Get(user)
		grants = append(grants, acl.Grant{User: user, Rights: jsonString(raw)})
	}
	return grants, nil
}

// parseCreationTime reads epoch seconds sent as a number or a string.
func parseCreationTime(raw json.RawMessage) (time.Time, error) {
	var value interface{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &value); err != nil {
			return time.Time{}, fmt.Errorf("creation time: %w", err)
		}
	}
	if s, ok := value.(string); ok {
		value = strings.TrimSpace(s)
	}
	if value == nil || value == "" {
		return time.Time{}, nil
	}
	seconds, err := cast.ToFloat64E(value)
	if err != nil {
		return time.Time{}, fmt.Errorf("creation time %v: %w", value, err)
	}
	return time.Unix(int64(seconds), 0), nil
}

// jsonString returns a JSON string value, or the raw text of any other value.
func jsonString(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

func infoKey(cred *auth.Credential, repository string) string {
	return cred.Login + "/" + repository
}

func countText(n int, singular, plural string) string {
	if n == 1 {
		return "Total: 1 " + singular
	}
	return "Total: " + strconv.Itoa(n) + " " + plural
}

package state

import (
	"slices"
	"sync"
	"time"

	"github.com/blihweb/blihweb/pkg/acl"
)

const DefaultStaleAfter = 10 * time.Minute

// List names one of the lists held by the store.
type List int

const (
	Repositories List = iota
	SSHKeys
)

func (l List) String() string {
	switch l {
	case Repositories:
		return "repositories"
	case SSHKeys:
		return "sshkeys"
	default:
		return "unknown"
	}
}

type Repository struct {
	Name            string
	UUID            string
	CreationTime    time.Time
	Description     string
	RecentlyCreated bool
}

// HasInfo reports whether repository information was fetched already.
func (r Repository) HasInfo() bool {
	return !r.CreationTime.IsZero()
}

type SSHKey struct {
	Name             string
	Content          string
	RecentlyUploaded bool
}

// Store holds what the session last learned from the server.  Writers are serialized; every
// read returns copies.
type Store struct {
	mu           sync.RWMutex
	staleAfter   time.Duration
	repositories []Repository
	sshKeys      []SSHKey
	recent       map[List][]string
	refreshed    map[List]time.Time
	aclRepo      string
	acl          acl.Set
	aclLoaded    bool
}

func NewStore(staleAfter time.Duration) *Store {
	if staleAfter <= 0 {
		staleAfter = DefaultStaleAfter
	}
	return &Store{
		staleAfter: staleAfter,
		recent:     make(map[List][]string),
		refreshed:  make(map[List]time.Time),
	}
}

// RefreshRepositories replaces the repository list.  Entries with neither name nor uuid are
// dropped; info already fetched for a kept repository survives.
func (s *Store) RefreshRepositories(repos []Repository, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	known := make(map[string]Repository, len(s.repositories))
	for _, r := range s.repositories {
		known[repositoryKey(r)] = r
	}
	out := make([]Repository, 0, len(repos))
	for _, r := range repos {
		if r.Name == "" && r.UUID == "" {
			continue
		}
		if prev, ok := known[repositoryKey(r)]; ok && prev.UUID == r.UUID {
			r.CreationTime = prev.CreationTime
			r.Description = prev.Description
		}
		r.RecentlyCreated = slices.Contains(s.recent[Repositories], r.Name)
		out = append(out, r)
	}
	s.repositories = out
	s.refreshed[Repositories] = now
}

// RefreshSSHKeys replaces the key list.  Entries with neither name nor content are dropped.
func (s *Store) RefreshSSHKeys(keys []SSHKey, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]SSHKey, 0, len(keys))
	for _, k := range keys {
		if k.Name == "" && k.Content == "" {
			continue
		}
		k.RecentlyUploaded = slices.Contains(s.recent[SSHKeys], k.Name)
		out = append(out, k)
	}
	s.sshKeys = out
	s.refreshed[SSHKeys] = now
}

func (s *Store) Repositories() []Repository {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.repositories)
}

func (s *Store) SSHKeys() []SSHKey {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.sshKeys)
}

// Repository finds a repository by name, or by uuid for unnamed ones.
func (s *Store) Repository(nameOrUUID string) (Repository, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i := s.findRepository(nameOrUUID)
	if i < 0 {
		return Repository{}, false
	}
	return s.repositories[i], true
}

func (s *Store) SSHKey(name string) (SSHKey, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, k := range s.sshKeys {
		if k.Name == name {
			return k, true
		}
	}
	return SSHKey{}, false
}

// MarkRecent flags name as recently created or uploaded, in the list and on later refreshes.
func (s *Store) MarkRecent(list List, name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !slices.Contains(s.recent[list], name) {
		s.recent[list] = append(s.recent[list], name)
	}
	s.setRecentFlag(list, name, true)
}

func (s *Store) ClearRecent(list List, name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recent[list] = slices.DeleteFunc(s.recent[list], func(n string) bool { return n == name })
	s.setRecentFlag(list, name, false)
}

func (s *Store) Recent(list List) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.recent[list])
}

func (s *Store) setRecentFlag(list List, name string, recent bool) {
	switch list {
	case Repositories:
		for i := range s.repositories {
			if s.repositories[i].Name == name {
				s.repositories[i].RecentlyCreated = recent
			}
		}
	case SSHKeys:
		for i := range s.sshKeys {
			if s.sshKeys[i].Name == name {
				s.sshKeys[i].RecentlyUploaded = recent
			}
		}
	}
}

// RemoveRepository drops a deleted repository, by name or by uuid for unnamed ones.
func (s *Store) RemoveRepository(nameOrUUID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.findRepository(nameOrUUID); i >= 0 {
		name := s.repositories[i].Name
		s.repositories = slices.Delete(s.repositories, i, i+1)
		s.recent[Repositories] = slices.DeleteFunc(s.recent[Repositories], func(n string) bool { return n == name })
		if s.aclRepo == nameOrUUID || (name != "" && s.aclRepo == name) {
			s.clearACL()
		}
	}
}

func (s *Store) RemoveSSHKey(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sshKeys = slices.DeleteFunc(s.sshKeys, func(k SSHKey) bool { return k.Name == name })
	s.recent[SSHKeys] = slices.DeleteFunc(s.recent[SSHKeys], func(n string) bool { return n == name })
}

// SetRepositoryInfo records fetched information.  A uuid differing from the listed one
// replaces it.
func (s *Store) SetRepositoryInfo(name, uuid string, creationTime time.Time, description string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.findRepository(name)
	if i < 0 {
		return
	}
	r := &s.repositories[i]
	if uuid != "" && uuid != r.UUID {
		r.UUID = uuid
	}
	r.CreationTime = creationTime
	r.Description = description
}

// Stale reports whether list was never loaded or was loaded more than the threshold ago.
func (s *Store) Stale(list List, now time.Time) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	at, ok := s.refreshed[list]
	return !ok || now.Sub(at) > s.staleAfter
}

// Invalidate forces the next Stale check of list to report true.
func (s *Store) Invalidate(list List) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.refreshed, list)
}

// SetACL stores the last known ACL of repository.
func (s *Store) SetACL(repository string, set acl.Set) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.aclRepo = repository
	s.acl = set.Clone()
	s.aclLoaded = true
}

// ACL returns the last known ACL of repository, when it is the active one.
func (s *Store) ACL(repository string) (acl.Set, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.aclLoaded || s.aclRepo != repository {
		return nil, false
	}
	return s.acl.Clone(), true
}

// Clear forgets everything, on logout.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.repositories = nil
	s.sshKeys = nil
	s.recent = make(map[List][]string)
	s.refreshed = make(map[List]time.Time)
	s.clearACL()
}

func (s *Store) clearACL() {
	s.aclRepo = ""
	s.acl = nil
	s.aclLoaded = false
}

func (s *Store) findRepository(nameOrUUID string) int {
	for i, r := range s.repositories {
		if r.Name != "" && r.Name == nameOrUUID {
			return i
		}
	}
	for i, r := range s.repositories {
		if r.Name == "" && r.UUID == nameOrUUID {
			return i
		}
	}
	return -1
}

func repositoryKey(r Repository) string {
	if r.Name != "" {
		return "name:" + r.Name
	}
	return "uuid:" + r.UUID
}

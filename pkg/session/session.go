package session

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/blihweb/blihweb/pkg/acl"
	"github.com/blihweb/blihweb/pkg/auth"
	"github.com/blihweb/blihweb/pkg/cache"
	"github.com/blihweb/blihweb/pkg/client"
	"github.com/blihweb/blihweb/pkg/logging"
	"github.com/blihweb/blihweb/pkg/reconcile"
	"github.com/blihweb/blihweb/pkg/state"
)

const (
	DefaultIdleTimeout = time.Minute

	defaultInfoCacheSize   = 256
	defaultInfoCacheExpiry = 10 * time.Minute
)

var (
	ErrNotLoggedIn        = errors.New("not logged in")
	ErrRepositoryNotFound = errors.New("repository not found")
	ErrRepositoryDeleted  = errors.New("repository deleted")
	ErrSSHKeyNotFound     = errors.New("ssh key not found")
	ErrInvalidInput       = errors.New("invalid input")
	ErrReconciliation     = errors.New("acl reconciliation failed")
)

// API is the set of proxy calls a session makes.  *client.Client implements it.
type API interface {
	reconcile.Setter
	ListRepositories(ctx context.Context, cred *auth.Credential) client.Result
	GetACL(ctx context.Context, cred *auth.Credential, repository string) client.Result
	GetRepositoryInfo(ctx context.Context, cred *auth.Credential, repository string) client.Result
	CreateRepository(ctx context.Context, cred *auth.Credential, name string) client.Result
	DeleteRepository(ctx context.Context, cred *auth.Credential, repository string) client.Result
	ListSSHKeys(ctx context.Context, cred *auth.Credential) client.Result
	UploadSSHKey(ctx context.Context, cred *auth.Credential, content string) client.Result
	DeleteSSHKey(ctx context.Context, cred *auth.Credential, name string) client.Result
	AbortAll()
}

type Params struct {
	API         API
	Normalizer  auth.Normalizer
	Parallelism int
	StaleAfter  time.Duration
	IdleTimeout time.Duration
	// InfoCache holds fetched repository information; a bounded LRU when nil.
	InfoCache cache.Cache
	Now       func() time.Time
}

// Session is the context every user action runs in: the credential, what is known of the
// server and the single message area.
type Session struct {
	api          API
	normalizer   auth.Normalizer
	store        *state.Store
	orchestrator *reconcile.Orchestrator
	info         cache.Cache
	idleTimeout  time.Duration
	now          func() time.Time

	mu         sync.Mutex
	cred       *auth.Credential
	lastAction time.Time
	message    Message
}

func New(params Params) *Session {
	now := params.Now
	if now == nil {
		now = time.Now
	}
	idle := params.IdleTimeout
	if idle <= 0 {
		idle = DefaultIdleTimeout
	}
	info := params.InfoCache
	if info == nil {
		info = cache.NewCache(defaultInfoCacheSize, defaultInfoCacheExpiry, cache.NewJitterFn(time.Minute))
	}
	return &Session{
		api:          params.API,
		normalizer:   params.Normalizer,
		store:        state.NewStore(params.StaleAfter),
		orchestrator: reconcile.NewOrchestrator(params.API, params.Normalizer, params.Parallelism),
		info:         info,
		idleTimeout:  idle,
		now:          now,
	}
}

func (s *Session) Store() *state.Store {
	return s.store
}

func (s *Session) Normalizer() auth.Normalizer {
	return s.normalizer
}

// Message returns the current content of the message area.
func (s *Session) Message() Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.message
}

// Credential returns the session credential, nil when logged out.
func (s *Session) Credential() *auth.Credential {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cred
}

func (s *Session) LoggedIn() bool {
	return s.Credential() != nil
}

// Login checks login and password against the server by listing repositories.  A 404 means
// a user without repositories.
func (s *Session) Login(ctx context.Context, login, password string) error {
	s.begin()
	cred, err := auth.NewCredential(s.normalizer, strings.ToLower(login), password)
	if err != nil {
		return s.fail(&Error{Text: TextInvalidCredentials, Err: err})
	}
	res := s.api.ListRepositories(ctx, cred)
	if !res.OK && res.Code != http.StatusNotFound {
		if res.Code == http.StatusUnauthorized {
			return s.fail(&Error{Text: TextInvalidCredentials, Code: res.Code, Err: auth.ErrInvalidCredentials})
		}
		return s.fail(resultError(res))
	}

	s.mu.Lock()
	s.cred = cred
	s.mu.Unlock()
	s.store.Clear()
	if res.OK {
		if err := s.storeRepositories(res); err != nil {
			logging.FromContext(ctx).WithError(err).Warn("Ignoring unreadable repository list")
		}
	} else {
		s.store.RefreshRepositories(nil, s.now())
	}
	logging.FromContext(ctx).WithField(logging.UserFieldKey, cred.Login).Info("Logged in")
	return s.succeed("Logged in as " + cred.ShortLogin + ".")
}

// Logout aborts every call in flight and forgets the credential and what was learned.
func (s *Session) Logout() {
	s.logout(TextLoggedOut)
}

func (s *Session) logout(text string) {
	s.api.AbortAll()
	s.mu.Lock()
	s.cred = nil
	s.message = Message{Kind: MessageSuccess, Text: text}
	s.mu.Unlock()
	s.store.Clear()
}

// CheckIdle logs out a session idle for longer than the idle timeout.  It reports whether it
// did.
func (s *Session) CheckIdle() bool {
	s.mu.Lock()
	idle := s.cred != nil && s.now().Sub(s.lastAction) > s.idleTimeout
	s.mu.Unlock()
	if idle {
		s.logout(TextAutoLoggedOut)
	}
	return idle
}

// begin clears the message area and records activity.
func (s *Session) begin() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.message = Message{}
	s.lastAction = s.now()
}

// credential starts an operation needing a logged in user.
func (s *Session) credential() (*auth.Credential, error) {
	s.begin()
	cred := s.Credential()
	if cred == nil {
		return nil, s.fail(&Error{Text: TextNotLoggedIn, Err: ErrNotLoggedIn})
	}
	return cred, nil
}

func (s *Session) succeed(text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.message = Message{Kind: MessageSuccess, Text: text}
	return nil
}

func (s *Session) fail(err *Error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.message = Message{Kind: MessageError, Text: err.Text}
	return err
}

// DefaultACL is the ACL proposed for new repositories.
func DefaultACL() acl.Set {
	return acl.Set{{User: "ramassage-tek", Rights: acl.ParseRights("r")}}
}

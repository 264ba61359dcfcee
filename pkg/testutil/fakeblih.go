package testutil

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/blihweb/blihweb/pkg/auth"
	"github.com/blihweb/blihweb/pkg/sig"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// FakeBLIH is an in-memory BLIH API.  Every request must carry an envelope signed by a
// registered user.
type FakeBLIH struct {
	*httptest.Server

	mu      sync.Mutex
	secrets map[string]string
	repos   map[string]map[string]*FakeRepository
	keys    map[string]map[string]string
	// setACLFailures makes setacl for a user answer with the given status.
	setACLFailures map[string]int
	requests       []string
	now            func() time.Time
}

type FakeRepository struct {
	UUID    string
	Created time.Time
	// ACL maps logins to rights strings, in insertion order.
	ACL      map[string]string
	aclOrder []string
}

type fakeHandler func(w http.ResponseWriter, r *http.Request, login string, data json.RawMessage)

func NewFakeBLIH(t testing.TB) *FakeBLIH {
	t.Helper()
	f := &FakeBLIH{
		secrets:        make(map[string]string),
		repos:          make(map[string]map[string]*FakeRepository),
		keys:           make(map[string]map[string]string),
		setACLFailures: make(map[string]int),
		now:            time.Now,
	}
	r := chi.NewRouter()
	r.Get("/repositories", f.signed(f.listRepositories))
	r.Post("/repositories", f.signed(f.createRepository))
	r.Get("/repository/{name}", f.signed(f.getRepository))
	r.Delete("/repository/{name}", f.signed(f.deleteRepository))
	r.Get("/repository/{name}/acls", f.signed(f.getACL))
	r.Post("/repository/{name}/acls", f.signed(f.setACL))
	r.Get("/sshkeys", f.signed(f.listSSHKeys))
	r.Post("/sshkeys", f.signed(f.uploadSSHKey))
	r.Delete("/sshkey/{name}", f.signed(f.deleteSSHKey))
	f.Server = httptest.NewServer(r)
	t.Cleanup(f.Close)
	return f
}

// AddUser registers login (normalized) with password.
func (f *FakeBLIH) AddUser(login, password string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.secrets[login] = auth.HashSecret(password)
}

// AddRepository creates a repository owned by owner, with acl as user:rights pairs.
func (f *FakeBLIH) AddRepository(owner, name string, acl ...string) *FakeRepository {
	f.mu.Lock()
	defer f.mu.Unlock()
	repo := f.newRepository(owner, name)
	for _, pair := range acl {
		user, rights, _ := strings.Cut(pair, ":")
		repo.setRight(user, rights)
	}
	return repo
}

func (f *FakeBLIH) AddSSHKey(owner, name, content string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.keys[owner] == nil {
		f.keys[owner] = make(map[string]string)
	}
	f.keys[owner][name] = content
}

// FailSetACL makes every setacl call for user answer status.
func (f *FakeBLIH) FailSetACL(user string, status int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.setACLFailures[user] = status
}

// Repository returns a copy of a repository, nil when missing.
func (f *FakeBLIH) Repository(owner, name string) *FakeRepository {
	f.mu.Lock()
	defer f.mu.Unlock()
	repo, ok := f.repos[owner][name]
	if !ok {
		return nil
	}
	cp := *repo
	cp.ACL = make(map[string]string, len(repo.ACL))
	for k, v := range repo.ACL {
		cp.ACL[k] = v
	}
	return &cp
}

func (f *FakeBLIH) SSHKey(owner, name string) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	content, ok := f.keys[owner][name]
	return content, ok
}

// Requests returns "METHOD path" of every request received, in order.
func (f *FakeBLIH) Requests() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.requests...)
}

func (f *FakeBLIH) newRepository(owner, name string) *FakeRepository {
	if f.repos[owner] == nil {
		f.repos[owner] = make(map[string]*FakeRepository)
	}
	repo := &FakeRepository{
		UUID:    uuid.NewString(),
		Created: f.now().Truncate(time.Second),
		ACL:     make(map[string]string),
	}
	f.repos[owner][name] = repo
	return repo
}

func (r *FakeRepository) setRight(user, rights string) {
	if rights == "" {
		delete(r.ACL, user)
		for i, u := range r.aclOrder {
			if u == user {
				r.aclOrder = append(r.aclOrder[:i], r.aclOrder[i+1:]...)
				break
			}
		}
		return
	}
	if _, ok := r.ACL[user]; !ok {
		r.aclOrder = append(r.aclOrder, user)
	}
	r.ACL[user] = rights
}

func (f *FakeBLIH) signed(next fakeHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.requests = append(f.requests, r.Method+" "+r.URL.Path)
		f.mu.Unlock()

		body, err := io.ReadAll(r.Body)
		if err != nil {
			writeFake(w, http.StatusBadRequest, map[string]string{"error": "Bad request"})
			return
		}
		var env sig.Envelope
		if err := json.Unmarshal(body, &env); err != nil {
			writeFake(w, http.StatusBadRequest, map[string]string{"error": "Bad request"})
			return
		}
		f.mu.Lock()
		secret, ok := f.secrets[env.User]
		f.mu.Unlock()
		if !ok || sig.Verify(&env, secret) != nil {
			writeFake(w, http.StatusUnauthorized, map[string]string{"error": "Bad token"})
			return
		}
		next(w, r, env.User, env.Data)
	}
}

func nameParam(r *http.Request) string {
	name := chi.URLParam(r, "name")
	if unescaped, err := url.PathUnescape(name); err == nil {
		return unescaped
	}
	return name
}

func (f *FakeBLIH) listRepositories(w http.ResponseWriter, _ *http.Request, login string, _ json.RawMessage) {
	f.mu.Lock()
	defer f.mu.Unlock()
	repos := make(map[string]map[string]string, len(f.repos[login]))
	for name, repo := range f.repos[login] {
		repos[name] = map[string]string{
			"uuid": repo.UUID,
			"url":  "https://blih.epitech.eu/repository/" + name,
		}
	}
	writeFake(w, http.StatusOK, map[string]interface{}{
		"message":      "Listing repositories",
		"repositories": repos,
	})
}

func (f *FakeBLIH) createRepository(w http.ResponseWriter, _ *http.Request, login string, data json.RawMessage) {
	var payload struct {
		Name string `json:"name"`
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &payload); err != nil || payload.Name == "" {
		writeFake(w, http.StatusBadRequest, map[string]string{"error": "Missing name"})
		return
	}
	switch {
	case strings.Contains(payload.Name, " "):
		writeFake(w, http.StatusBadRequest, map[string]string{"error": "No spaces allowed"})
		return
	case strings.Contains(payload.Name, "/"):
		writeFake(w, http.StatusBadRequest, map[string]string{"error": "No slash allowed"})
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.repos[login][payload.Name]; ok {
		writeFake(w, http.StatusConflict, map[string]string{"error": "Repository already exists"})
		return
	}
	f.newRepository(login, payload.Name)
	writeFake(w, http.StatusOK, map[string]string{"message": "Repository " + payload.Name + " created"})
}

func (f *FakeBLIH) getRepository(w http.ResponseWriter, r *http.Request, login string, _ json.RawMessage) {
	name := nameParam(r)
	f.mu.Lock()
	defer f.mu.Unlock()
	repo, ok := f.repos[login][name]
	if !ok {
		writeFake(w, http.StatusNotFound, map[string]string{"error": "Repository doesn't exists"})
		return
	}
	writeFake(w, http.StatusOK, map[string]interface{}{
		"message": map[string]string{
			"name":          name,
			"uuid":          repo.UUID,
			"creation_time": strconv.FormatInt(repo.Created.Unix(), 10),
			"description":   "",
			"public":        "False",
			"url":           "https://blih.epitech.eu/repository/" + name,
		},
	})
}

func (f *FakeBLIH) deleteRepository(w http.ResponseWriter, r *http.Request, login string, _ json.RawMessage) {
	name := nameParam(r)
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.repos[login][name]; !ok {
		for n, repo := range f.repos[login] {
			if repo.UUID == name {
				delete(f.repos[login], n)
				writeFake(w, http.StatusOK, map[string]string{"message": "Repository deleted"})
				return
			}
		}
		writeFake(w, http.StatusNotFound, map[string]string{"error": "Repository doesn't exists"})
		return
	}
	delete(f.repos[login], name)
	writeFake(w, http.StatusOK, map[string]string{"message": "Repository deleted"})
}

func (f *FakeBLIH) getACL(w http.ResponseWriter, r *http.Request, login string, _ json.RawMessage) {
	name := nameParam(r)
	f.mu.Lock()
	defer f.mu.Unlock()
	repo, ok := f.repos[login][name]
	if !ok {
		writeFake(w, http.StatusNotFound, map[string]string{"error": "Repository doesn't exists"})
		return
	}
	if len(repo.ACL) == 0 {
		writeFake(w, http.StatusNotFound, map[string]string{"error": "No ACLs"})
		return
	}
	var sb strings.Builder
	sb.WriteByte('{')
	for i, user := range repo.aclOrder {
		if i > 0 {
			sb.WriteByte(',')
		}
		k, _ := json.Marshal(user)
		v, _ := json.Marshal(repo.ACL[user])
		fmt.Fprintf(&sb, "%s:%s", k, v)
	}
	sb.WriteByte('}')
	w.Header().Set("Content-Type", "application/json")
	_, _ = io.WriteString(w, sb.String())
}

func (f *FakeBLIH) setACL(w http.ResponseWriter, r *http.Request, login string, data json.RawMessage) {
	name := nameParam(r)
	var payload struct {
		User string `json:"user"`
		ACL  string `json:"acl"`
	}
	if err := json.Unmarshal(data, &payload); err != nil || payload.User == "" {
		writeFake(w, http.StatusBadRequest, map[string]string{"error": "Missing user"})
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	repo, ok := f.repos[login][name]
	if !ok {
		writeFake(w, http.StatusNotFound, map[string]string{"error": "Repository doesn't exists"})
		return
	}
	if status, ok := f.setACLFailures[payload.User]; ok {
		writeFake(w, status, map[string]string{"error": "User " + payload.User + " doesn't exists"})
		return
	}
	repo.setRight(payload.User, payload.ACL)
	writeFake(w, http.StatusOK, map[string]string{"message": "ACLs updated"})
}

func (f *FakeBLIH) listSSHKeys(w http.ResponseWriter, _ *http.Request, login string, _ json.RawMessage) {
	f.mu.Lock()
	defer f.mu.Unlock()
	keys := make(map[string]string, len(f.keys[login]))
	for name, content := range f.keys[login] {
		keys[name] = content
	}
	writeFake(w, http.StatusOK, keys)
}

func (f *FakeBLIH) uploadSSHKey(w http.ResponseWriter, _ *http.Request, login string, data json.RawMessage) {
	var payload struct {
		SSHKey string `json:"sshkey"`
	}
	if err := json.Unmarshal(data, &payload); err != nil || payload.SSHKey == "" {
		writeFake(w, http.StatusBadRequest, map[string]string{"error": "Missing sshkey"})
		return
	}
	content, err := url.PathUnescape(payload.SSHKey)
	if err != nil {
		writeFake(w, http.StatusBadRequest, map[string]string{"error": "Invalid sshkey"})
		return
	}
	fields := strings.Fields(content)
	if len(fields) < 2 {
		writeFake(w, http.StatusBadRequest, map[string]string{"error": "Invalid sshkey"})
		return
	}
	name := fields[len(fields)-1]
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.keys[login][name]; ok {
		writeFake(w, http.StatusConflict, map[string]string{"error": "sshkey already exists"})
		return
	}
	if f.keys[login] == nil {
		f.keys[login] = make(map[string]string)
	}
	f.keys[login][name] = content
	writeFake(w, http.StatusOK, map[string]string{"message": "Sshkey uploaded"})
}

func (f *FakeBLIH) deleteSSHKey(w http.ResponseWriter, r *http.Request, login string, _ json.RawMessage) {
	name := nameParam(r)
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.keys[login][name]; !ok {
		writeFake(w, http.StatusNotFound, map[string]string{"error": "Sshkey doesn't exists"})
		return
	}
	delete(f.keys[login], name)
	writeFake(w, http.StatusOK, map[string]string{"message": "Sshkey deleted"})
}

func writeFake(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

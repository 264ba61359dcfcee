package blih

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"
)

type shapeFunc func(body []byte) ([]byte, error)

// Repository is one item of the shaped repository list.
type Repository struct {
	Name string `json:"name"`
	UUID string `json:"uuid,omitempty"`
}

// SSHKey is one item of the shaped SSH key list.
type SSHKey struct {
	Name    string `json:"name"`
	Content string `json:"content"`
}

// RepositoryInfo is the shaped repository information.  Fields are kept as sent upstream.
type RepositoryInfo struct {
	UUID         json.RawMessage `json:"uuid,omitempty"`
	CreationTime json.RawMessage `json:"creation_time,omitempty"`
	Description  json.RawMessage `json:"description,omitempty"`
}

// compareNames orders names case-insensitively, the way the web UI lists them.
func compareNames(a, b string) int {
	return strings.Compare(strings.ToUpper(a), strings.ToUpper(b))
}

func shapeRepositoryList(body []byte) ([]byte, error) {
	var response struct {
		Repositories *OrderedObject `json:"repositories"`
	}
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrUnexpectedBody, err)
	}
	repos := make([]Repository, 0)
	if response.Repositories != nil {
		for _, name := range response.Repositories.Keys() {
			raw, _ := response.Repositories.Get(name)
			var details struct {
				UUID string `json:"uuid"`
			}
			if err := json.Unmarshal(raw, &details); err != nil {
				return nil, fmt.Errorf("%w: repository %s: %s", ErrUnexpectedBody, name, err)
			}
			repos = append(repos, Repository{Name: name, UUID: details.UUID})
		}
	}
	slices.SortStableFunc(repos, func(a, b Repository) int {
		return compareNames(a.Name, b.Name)
	})
	return json.Marshal(repos)
}

func shapeSSHKeyList(body []byte) ([]byte, error) {
	var response OrderedObject
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrUnexpectedBody, err)
	}
	keys := make([]SSHKey, 0, response.Len())
	for _, name := range response.Keys() {
		raw, _ := response.Get(name)
		var content string
		if err := json.Unmarshal(raw, &content); err != nil {
			return nil, fmt.Errorf("%w: ssh key %s: %s", ErrUnexpectedBody, name, err)
		}
		keys = append(keys, SSHKey{Name: name, Content: content})
	}
	slices.SortStableFunc(keys, func(a, b SSHKey) int {
		return compareNames(a.Name, b.Name)
	})
	return json.Marshal(keys)
}

func shapeACL(body []byte) ([]byte, error) {
	var response OrderedObject
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrUnexpectedBody, err)
	}
	users := slices.Clone(response.Keys())
	slices.SortStableFunc(users, compareNames)
	var sorted OrderedObject
	for _, user := range users {
		rights, _ := response.Get(user)
		sorted.Set(user, rights)
	}
	return json.Marshal(sorted)
}

func shapeRepositoryInfo(body []byte) ([]byte, error) {
	var response struct {
		Message *RepositoryInfo `json:"message"`
	}
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrUnexpectedBody, err)
	}
	if response.Message == nil {
		return nil, fmt.Errorf("%w: missing message", ErrUnexpectedBody)
	}
	return json.Marshal(response.Message)
}

func shapeNull([]byte) ([]byte, error) {
	return []byte("null"), nil
}

func shapePassThrough(body []byte) ([]byte, error) {
	return body, nil
}

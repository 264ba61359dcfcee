package blih_test

import (
	"encoding/json"
	"testing"

	"github.com/blihweb/blihweb/pkg/blih"
	"github.com/stretchr/testify/require"
)

func shape(t *testing.T, opName, body string) string {
	t.Helper()
	op, err := blih.LookupOperation(opName)
	require.NoError(t, err)
	out, err := op.Shape([]byte(body))
	require.NoError(t, err)
	return string(out)
}

func TestShape_RepositoryList(t *testing.T) {
	t.Run("case insensitive order", func(t *testing.T) {
		got := shape(t, blih.OpRepoList, `{"message":"Listing repositories","repositories":{"Zeta":{"uuid":"3"},"alpha":{"uuid":"1"},"Beta":{"uuid":"2"}}}`)
		require.Equal(t, `[{"name":"alpha","uuid":"1"},{"name":"Beta","uuid":"2"},{"name":"Zeta","uuid":"3"}]`, got)
	})

	t.Run("stable on equal names", func(t *testing.T) {
		got := shape(t, blih.OpRepoList, `{"repositories":{"b":{"uuid":"1"},"A":{"uuid":"2"},"a":{"uuid":"3"},"":{"uuid":"4"}}}`)
		require.Equal(t, `[{"name":"","uuid":"4"},{"name":"A","uuid":"2"},{"name":"a","uuid":"3"},{"name":"b","uuid":"1"}]`, got)
	})

	t.Run("no repositories", func(t *testing.T) {
		require.Equal(t, `[]`, shape(t, blih.OpRepoList, `{"message":"Listing repositories"}`))
		require.Equal(t, `[]`, shape(t, blih.OpRepoList, `{"repositories":{}}`))
	})

	t.Run("malformed", func(t *testing.T) {
		op, err := blih.LookupOperation(blih.OpRepoList)
		require.NoError(t, err)
		_, err = op.Shape([]byte(`{"repositories":{"a":"not an object"}}`))
		require.ErrorIs(t, err, blih.ErrUnexpectedBody)
		_, err = op.Shape([]byte(`<html>`))
		require.ErrorIs(t, err, blih.ErrUnexpectedBody)
	})
}

func TestShape_SSHKeyList(t *testing.T) {
	got := shape(t, blih.OpSSHList, `{"work":"ssh-rsa AAAA work","Home":"ssh-ed25519 BBBB Home","laptop":"ssh-rsa CCCC laptop"}`)
	var keys []blih.SSHKey
	require.NoError(t, json.Unmarshal([]byte(got), &keys))
	require.Equal(t, []blih.SSHKey{
		{Name: "Home", Content: "ssh-ed25519 BBBB Home"},
		{Name: "laptop", Content: "ssh-rsa CCCC laptop"},
		{Name: "work", Content: "ssh-rsa AAAA work"},
	}, keys)
	require.Equal(t, `[]`, shape(t, blih.OpSSHList, `{}`))
}

func TestShape_ACL(t *testing.T) {
	got := shape(t, blih.OpRepoGetACL, `{"zoe@epitech.eu":"r","Bob@epitech.eu":"rw","ramassage-tek":"r","alice@epitech.eu":"rwa"}`)
	require.Equal(t, `{"alice@epitech.eu":"rwa","Bob@epitech.eu":"rw","ramassage-tek":"r","zoe@epitech.eu":"r"}`, got)
}

func TestShape_RepositoryInfo(t *testing.T) {
	got := shape(t, blih.OpRepoGetInfo, `{"message":{"name":"repo","uuid":"a-b-c","creation_time":1514764800.5,"description":"none","public":false}}`)
	require.JSONEq(t, `{"uuid":"a-b-c","creation_time":1514764800.5,"description":"none"}`, got)

	op, err := blih.LookupOperation(blih.OpRepoGetInfo)
	require.NoError(t, err)
	_, err = op.Shape([]byte(`{"error":"no message"}`))
	require.ErrorIs(t, err, blih.ErrUnexpectedBody)
}

func TestShape_NullAndPassThrough(t *testing.T) {
	require.Equal(t, `null`, shape(t, blih.OpRepoDelete, `{"message":"Repository deleted"}`))
	require.Equal(t, `null`, shape(t, blih.OpRepoSetACL, `{"message":"ACL updated"}`))
	for _, name := range []string{blih.OpRepoCreate, blih.OpSSHUpload, blih.OpSSHDelete} {
		require.Equal(t, `{"message":"ok"}`, shape(t, name, `{"message":"ok"}`), name)
	}
}

func TestOrderedObject(t *testing.T) {
	var o blih.OrderedObject
	require.NoError(t, json.Unmarshal([]byte(`{"b":1,"a":{"x":[1,2]},"c":null,"b":2}`), &o))
	require.Equal(t, []string{"b", "a", "c"}, o.Keys())
	v, ok := o.Get("b")
	require.True(t, ok)
	require.Equal(t, "2", string(v))

	out, err := json.Marshal(o)
	require.NoError(t, err)
	require.Equal(t, `{"b":2,"a":{"x":[1,2]},"c":null}`, string(out))

	require.ErrorIs(t, json.Unmarshal([]byte(`[1]`), &o), blih.ErrUnexpectedBody)
}

func TestOperations(t *testing.T) {
	ops := blih.Operations()
	require.Len(t, ops, 9)
	seen := map[string]bool{}
	for _, op := range ops {
		require.False(t, seen[op.Name], "duplicate operation %s", op.Name)
		seen[op.Name] = true
	}

	_, err := blih.LookupOperation("repo/rename")
	require.ErrorIs(t, err, blih.ErrUnknownOperation)

	op, err := blih.LookupOperation(blih.OpRepoGetACL)
	require.NoError(t, err)
	require.True(t, op.NeedsResource())
	decoded, escaped, err := op.Paths("my repo/x")
	require.NoError(t, err)
	require.Equal(t, "/repository/my repo/x/acls", decoded)
	require.Equal(t, "/repository/my%20repo%2Fx/acls", escaped)
	_, _, err = op.Paths("")
	require.ErrorIs(t, err, blih.ErrMissingResource)

	op, err = blih.LookupOperation(blih.OpRepoList)
	require.NoError(t, err)
	require.False(t, op.NeedsResource())
}

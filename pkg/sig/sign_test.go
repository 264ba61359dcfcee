package sig_test

import (
	"encoding/json"
	"math/rand"
	"testing"

	"github.com/blihweb/blihweb/pkg/auth"
	"github.com/blihweb/blihweb/pkg/sig"
	"github.com/blihweb/blihweb/pkg/testutil"
	"github.com/stretchr/testify/require"
)

func testCredential(t *testing.T) *auth.Credential {
	t.Helper()
	cred, err := auth.NewCredential(auth.DefaultNormalizer(), "john.doe", "secret")
	testutil.Must(t, err)
	return cred
}

func TestSign_KnownVectors(t *testing.T) {
	cred := testCredential(t)

	t.Run("no payload", func(t *testing.T) {
		env, err := sig.Sign(cred, nil)
		require.NoError(t, err)
		require.Equal(t, "john.doe@epitech.eu", env.User)
		require.Nil(t, env.Data)
		require.Equal(t, "ddb1a92b5de40019126e913aec892624a735381fa2ef08ba83c0cc38f65a90481fa29eed93e1e8a6410b6d6d53b95588c01a324be76f2703ac49f72500225249", env.Signature)
	})

	t.Run("acl payload", func(t *testing.T) {
		payload := struct {
			User string `json:"user"`
			ACL  string `json:"acl"`
		}{User: "bob@epitech.eu", ACL: "rw"}
		env, err := sig.Sign(cred, payload)
		require.NoError(t, err)
		require.JSONEq(t, `{"acl":"rw","user":"bob@epitech.eu"}`, string(env.Data))
		require.Equal(t, "5bea1f4ddffa03d0c6fad99a10aa4b1b907a3146967f3e2dc82f864bbdc26063901fd7790aa76c8c6165e0e9f0cdce75446281773a1232b4dafa280c7a0334b3", env.Signature)
	})
}

func TestSign_EnvelopeJSON(t *testing.T) {
	env, err := sig.Sign(testCredential(t), map[string]string{"name": "repo", "type": "git"})
	require.NoError(t, err)
	b, err := json.Marshal(env)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(b, &decoded))
	require.Equal(t, "john.doe@epitech.eu", decoded["user"])
	require.Equal(t, map[string]any{"name": "repo", "type": "git"}, decoded["data"])
	require.Equal(t, env.Signature, decoded["signature"])

	bare, err := sig.Sign(testCredential(t), nil)
	require.NoError(t, err)
	b, err = json.Marshal(bare)
	require.NoError(t, err)
	require.NotContains(t, string(b), `"data"`)
}

func TestSign_Deterministic(t *testing.T) {
	cred := testCredential(t)
	r := rand.New(rand.NewSource(17))
	for i := 0; i < 50; i++ {
		payload := map[string]string{
			"name": testutil.RandomString(r, 20),
			"type": "git",
		}
		first, err := sig.Sign(cred, payload)
		require.NoError(t, err)
		second, err := sig.Sign(cred, payload)
		require.NoError(t, err)
		require.Equal(t, first.Signature, second.Signature)
		require.NoError(t, sig.Verify(first, cred.HashedSecret))
	}
}

func TestSign_Sensitivity(t *testing.T) {
	cred := testCredential(t)
	base, err := sig.Sign(cred, map[string]string{"acl": "r", "user": "bob@epitech.eu"})
	require.NoError(t, err)

	seen := map[string]string{base.Signature: "base"}
	record := func(name string, env *sig.Envelope) {
		t.Helper()
		if prev, ok := seen[env.Signature]; ok {
			t.Fatalf("%s collides with %s", name, prev)
		}
		seen[env.Signature] = name
	}

	env, err := sig.Sign(cred, map[string]string{"acl": "w", "user": "bob@epitech.eu"})
	require.NoError(t, err)
	record("changed rights", env)

	env, err = sig.Sign(cred, map[string]string{"acl": "r", "user": "bob@epitech.fr"})
	require.NoError(t, err)
	record("changed user", env)

	other := *cred
	other.HashedSecret = auth.HashSecret("secreu")
	env, err = sig.Sign(&other, map[string]string{"acl": "r", "user": "bob@epitech.eu"})
	require.NoError(t, err)
	record("changed secret", env)

	other = *cred
	other.Login = "john.doe@epitech.fr"
	env, err = sig.Sign(&other, map[string]string{"acl": "r", "user": "bob@epitech.eu"})
	require.NoError(t, err)
	record("changed login", env)

	env, err = sig.Sign(cred, nil)
	require.NoError(t, err)
	record("no payload", env)
}

func TestSign_MissingCredential(t *testing.T) {
	_, err := sig.Sign(nil, nil)
	require.ErrorIs(t, err, auth.ErrMissingCredential)
	_, err = sig.Sign(&auth.Credential{Login: "john.doe@epitech.eu"}, nil)
	require.ErrorIs(t, err, auth.ErrMissingCredential)
}

func TestVerify(t *testing.T) {
	cred := testCredential(t)
	env, err := sig.Sign(cred, map[string]string{"sshkey": "ssh-ed25519 AAAA me@host"})
	require.NoError(t, err)
	require.NoError(t, sig.Verify(env, cred.HashedSecret))

	require.ErrorIs(t, sig.Verify(env, auth.HashSecret("other")), sig.ErrBadSignature)

	tampered := *env
	tampered.Data = json.RawMessage(`{"sshkey":"ssh-ed25519 BBBB me@host"}`)
	require.ErrorIs(t, sig.Verify(&tampered, cred.HashedSecret), sig.ErrBadSignature)

	tampered = *env
	tampered.Signature = "not hex"
	require.ErrorIs(t, sig.Verify(&tampered, cred.HashedSecret), sig.ErrBadSignature)

	require.ErrorIs(t, sig.Verify(&sig.Envelope{}, cred.HashedSecret), sig.ErrMalformedEnvelope)
}

func TestCanonicalize(t *testing.T) {
	cases := []struct {
		name     string
		in       string
		expected string
	}{
		{
			name:     "sorted keys",
			in:       `{"user":"bob@epitech.eu","acl":"rw"}`,
			expected: "{\n    \"acl\": \"rw\",\n    \"user\": \"bob@epitech.eu\"\n}",
		},
		{
			name:     "nested",
			in:       `{"b":[1,2],"a":{"d":true,"c":null}}`,
			expected: "{\n    \"a\": {\n        \"c\": null,\n        \"d\": true\n    },\n    \"b\": [\n        1,\n        2\n    ]\n}",
		},
		{
			name:     "no html escaping",
			in:       `{"name":"a<b>&c"}`,
			expected: "{\n    \"name\": \"a<b>&c\"\n}",
		},
		{
			name:     "non ascii",
			in:       `{"type":"git","name":"café ☕ 𝄞"}`,
			expected: "{\n    \"name\": \"caf\\u00e9 \\u2615 \\ud834\\udd1e\",\n    \"type\": \"git\"\n}",
		},
		{
			name:     "numbers kept",
			in:       `{"n":1.50}`,
			expected: "{\n    \"n\": 1.50\n}",
		},
		{
			name:     "empty object",
			in:       `{}`,
			expected: "{}",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := sig.Canonicalize([]byte(tc.in))
			require.NoError(t, err)
			require.Equal(t, tc.expected, string(got))
		})
	}

	_, err := sig.Canonicalize([]byte(`{"a":`))
	require.ErrorIs(t, err, sig.ErrMalformedPayload)
}

package sig

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"unicode/utf16"
	"unicode/utf8"

	"github.com/blihweb/blihweb/pkg/auth"
)

const canonicalIndent = "    "

// Envelope is the signed_data structure sent with every request.
type Envelope struct {
	User      string          `json:"user"`
	Data      json.RawMessage `json:"data,omitempty"`
	Signature string          `json:"signature"`
}

// Sign builds the envelope for payload.  A nil payload signs the login alone.
func Sign(cred *auth.Credential, payload any) (*Envelope, error) {
	if cred == nil || cred.Login == "" || cred.HashedSecret == "" {
		return nil, auth.ErrMissingCredential
	}
	env := &Envelope{User: cred.Login}
	var canonical []byte
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshal payload: %w", err)
		}
		canonical, err = Canonicalize(raw)
		if err != nil {
			return nil, err
		}
		compact := &bytes.Buffer{}
		if err := json.Compact(compact, canonical); err != nil {
			return nil, fmt.Errorf("compact payload: %w", err)
		}
		env.Data = compact.Bytes()
	}
	env.Signature = hex.EncodeToString(mac(cred.HashedSecret, cred.Login, canonical))
	return env, nil
}

// Verify checks env against the hashed secret of its user.
func Verify(env *Envelope, hashedSecret string) error {
	if env == nil || env.User == "" {
		return ErrMalformedEnvelope
	}
	var canonical []byte
	if len(env.Data) > 0 && !bytes.Equal(env.Data, []byte("null")) {
		var err error
		canonical, err = Canonicalize(env.Data)
		if err != nil {
			return err
		}
	}
	got, err := hex.DecodeString(env.Signature)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrBadSignature, err)
	}
	if !hmac.Equal(got, mac(hashedSecret, env.User, canonical)) {
		return ErrBadSignature
	}
	return nil
}

func mac(key, login string, canonical []byte) []byte {
	h := hmac.New(sha512.New, []byte(key))
	_, _ = h.Write([]byte(login))
	_, _ = h.Write(canonical)
	return h.Sum(nil)
}

// Canonicalize renders a JSON document the way the BLIH server re-serializes it before
// checking signatures: object keys sorted, four-space indentation, ": " separators, non-ASCII
// escaped as \uXXXX and no trailing newline.
func Canonicalize(raw []byte) ([]byte, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrMalformedPayload, err)
	}
	buf := &bytes.Buffer{}
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", canonicalIndent)
	if err := enc.Encode(v); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrMalformedPayload, err)
	}
	return escapeNonASCII(bytes.TrimSuffix(buf.Bytes(), []byte("\n"))), nil
}

// escapeNonASCII replaces every non-ASCII rune with its JSON \u escape.  Non-ASCII bytes can
// only appear inside strings, so this never changes the document's value.
func escapeNonASCII(b []byte) []byte {
	out := make([]byte, 0, len(b))
	for len(b) > 0 {
		r, size := utf8.DecodeRune(b)
		b = b[size:]
		if r < utf8.RuneSelf {
			out = append(out, byte(r))
			continue
		}
		if r > 0xffff {
			r1, r2 := utf16.EncodeRune(r)
			out = fmt.Appendf(out, `\u%04x\u%04x`, r1, r2)
			continue
		}
		out = fmt.Appendf(out, `\u%04x`, r)
	}
	return out
}

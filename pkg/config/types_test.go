package config_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/blihweb/blihweb/pkg/config"
	"github.com/blihweb/blihweb/pkg/testutil"
	"github.com/go-test/deep"
	"github.com/go-viper/mapstructure/v2"
)

type exemptSettings struct {
	Exempt config.Strings
	Limit  int
}

func TestStrings(t *testing.T) {
	cases := []struct {
		Name     string
		Source   map[string]interface{}
		Expected exemptSettings
	}{
		{
			Name:     "single login",
			Source:   map[string]interface{}{"exempt": "ramassage-tek"},
			Expected: exemptSettings{Exempt: config.Strings{"ramassage-tek"}},
		}, {
			Name:     "comma-separated with spaces",
			Source:   map[string]interface{}{"exempt": "ramassage-tek, guest ,,"},
			Expected: exemptSettings{Exempt: config.Strings{"ramassage-tek", "guest"}},
		}, {
			Name:     "yaml list",
			Source:   map[string]interface{}{"exempt": []interface{}{"ramassage-tek", " guest"}},
			Expected: exemptSettings{Exempt: config.Strings{"ramassage-tek", "guest"}},
		}, {
			Name:     "string slice",
			Source:   map[string]interface{}{"exempt": []string{"a", "", "b"}},
			Expected: exemptSettings{Exempt: config.Strings{"a", "b"}},
		}, {
			Name:     "other values",
			Source:   map[string]interface{}{"exempt": []string{"a"}, "limit": 17},
			Expected: exemptSettings{Exempt: config.Strings{"a"}, Limit: 17},
		},
	}
	for _, c := range cases {
		t.Run(c.Name, func(t *testing.T) {
			var s exemptSettings
			decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
				DecodeHook: config.DecodeStrings,
				Result:     &s,
			})
			testutil.MustDo(t, "new decoder", err)
			testutil.MustDo(t, "decode", decoder.Decode(c.Source))
			if diffs := deep.Equal(s, c.Expected); diffs != nil {
				t.Error(diffs)
			}
		})
	}

	t.Run("non string item", func(t *testing.T) {
		var s exemptSettings
		decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
			DecodeHook: config.DecodeStrings,
			Result:     &s,
		})
		testutil.MustDo(t, "new decoder", err)
		err = decoder.Decode(map[string]interface{}{"exempt": []interface{}{"a", 3}})
		if !errorsMatch(err, config.ErrMustBeString) {
			t.Errorf("Decode() error = %v, expected %v", err, config.ErrMustBeString)
		}
	})
}

type securitySettings struct {
	Key config.SecureString
}

// errorsMatch returns true if errors.Is(err, target), or if the error message of err
// contains the error message of target as a substring.  mapstructure flattens hook errors
// into its own message.
func errorsMatch(err, target error) bool {
	return errors.Is(err, target) ||
		target != nil && err != nil && strings.Contains(err.Error(), target.Error())
}

func TestDecodeSecureString(t *testing.T) {
	cases := []struct {
		Name     string
		Source   map[string]interface{}
		Expected *securitySettings
		Err      error
	}{
		{
			Name:     "string",
			Source:   map[string]interface{}{"key": "0123456789abcdef"},
			Expected: &securitySettings{Key: "0123456789abcdef"},
		}, {
			Name:   "number",
			Source: map[string]interface{}{"key": 123456},
			Err:    config.ErrMustBeString,
		}, {
			Name:   "list",
			Source: map[string]interface{}{"key": []string{"a"}},
			Err:    config.ErrMustBeString,
		},
	}
	for _, c := range cases {
		t.Run(c.Name, func(t *testing.T) {
			var s securitySettings
			decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
				DecodeHook: config.DecodeSecureString,
				Result:     &s,
			})
			testutil.MustDo(t, "new decoder", err)
			err = decoder.Decode(c.Source)
			if c.Err != nil && !errorsMatch(err, c.Err) {
				t.Errorf("Got value %+v, error %v when expecting error %v", s, err, c.Err)
			}
			if c.Err == nil && err != nil {
				t.Errorf("Got error %v when expecting to succeed", err)
			}
			if c.Expected != nil {
				if diffs := deep.Equal(s.Key.SecureValue(), c.Expected.Key.SecureValue()); diffs != nil {
					t.Errorf("Got unexpected value: %s", diffs)
				}
			}
		})
	}
}

func TestSecureString(t *testing.T) {
	s := config.SecureString("hunter22")
	if s.String() != "[SECRET]" {
		t.Errorf("String() leaked the value: %s", s.String())
	}
	if s.SecureValue() != "hunter22" {
		t.Errorf("SecureValue() = %s", s.SecureValue())
	}
	text, err := s.MarshalText()
	testutil.Must(t, err)
	if string(text) != "[SECRET]" {
		t.Errorf("MarshalText() = %s", text)
	}
	text, err = config.SecureString("").MarshalText()
	testutil.Must(t, err)
	if len(text) != 0 {
		t.Errorf("empty MarshalText() = %s", text)
	}
}

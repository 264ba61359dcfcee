package config

import (
	"github.com/blihweb/blihweb/pkg/logging"
	"github.com/go-viper/mapstructure/v2"
)

// ToLoggerFields flattens the configuration into log fields keyed like the configuration
// keys.  Secrets keep their SecureString type and log elided.
func (c *Config) ToLoggerFields() logging.Fields {
	var values map[string]interface{}
	if err := mapstructure.Decode(c, &values); err != nil {
		return logging.Fields{"config_error": err.Error()}
	}
	fields := logging.Fields{}
	flattenFields(fields, "", values)
	return fields
}

func flattenFields(fields logging.Fields, prefix string, values map[string]interface{}) {
	for k, v := range values {
		key := k
		if prefix != "" {
			key = prefix + sep + k
		}
		if nested, ok := v.(map[string]interface{}); ok {
			flattenFields(fields, key, nested)
			continue
		}
		fields[key] = v
	}
}

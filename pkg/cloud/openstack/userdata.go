package openstack

import (
	"bytes"
	"strings"

	"github.com/juju/errors"
	"gopkg.in/yaml.v3"
)

const cloudConfigHeader = "#cloud-config"

// renderUserData builds a cloud-config document that authorizes publicKey.
// A cloud-config supplied in the cloud settings is merged in.
func renderUserData(publicKey, base string) ([]byte, error) {
	doc := map[string]any{}
	if strings.TrimSpace(base) != "" {
		if !strings.HasPrefix(strings.TrimSpace(base), cloudConfigHeader) {
			return nil, errors.NotValidf("user_data without %s header", cloudConfigHeader)
		}
		if err := yaml.Unmarshal([]byte(base), &doc); err != nil {
			return nil, errors.Annotate(err, "parsing user_data")
		}
		if doc == nil {
			doc = map[string]any{}
		}
	}

	var keys []any
	if existing, ok := doc["ssh_authorized_keys"].([]any); ok {
		keys = existing
	}
	doc["ssh_authorized_keys"] = append(keys, publicKey)

	var buf bytes.Buffer
	buf.WriteString(cloudConfigHeader + "\n")
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return nil, errors.Annotate(err, "rendering user_data")
	}
	if err := enc.Close(); err != nil {
		return nil, errors.Trace(err)
	}
	return buf.Bytes(), nil
}

package lookup

import (
	"fmt"
	"strings"
)

// ConnStringProperties splits the quoted part of a connect statement such as
// `CUSTOM CONNECT TO "provider=postgres;host=db"` into its properties.
func ConnStringProperties(statement string) (map[string]string, error) {
	parts := strings.Split(statement, `"`)
	if len(parts) < 3 {
		return nil, fmt.Errorf("invalid connection string: %s", statement)
	}
	params := parts[1]

	out := map[string]string{}
	for _, p := range strings.Split(params, ";") {
		if p == "" {
			continue
		}
		kv := strings.SplitN(p, "=", 2)
		if len(kv) != 2 {
			return nil, fmt.Errorf("invalid connection string: %s", params)
		}
		out[kv[0]] = kv[1]
	}
	return out, nil
}

// ConnStringProperty returns one property of a connect statement.
func ConnStringProperty(statement, name string) (string, error) {
	props, err := ConnStringProperties(statement)
	if err != nil {
		return "", err
	}
	v, ok := props[name]
	if !ok {
		return "", fmt.Errorf("unknown property component: %s", name)
	}
	return v, nil
}

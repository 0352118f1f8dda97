package transport

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Properties is the key/value configuration handed to a transport.
type Properties map[string]string

// String returns the trimmed value for key, or def when it is unset or blank.
func (p Properties) String(key, def string) string {
	if v, ok := p[key]; ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return def
}

// Required returns the value for key or a *ConfigError naming the transport.
func (p Properties) Required(transport, key string) (string, error) {
	v := p.String(key, "")
	if v == "" {
		return "", &ConfigError{Transport: transport, Key: key, Message: "required property is missing"}
	}
	return v, nil
}

// Int parses key as an integer.
func (p Properties) Int(transport, key string, def int) (int, error) {
	v := p.String(key, "")
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, &ConfigError{Transport: transport, Key: key, Message: fmt.Sprintf("not an integer: %q", v), Err: err}
	}
	return n, nil
}

// Bool parses key as a boolean.
func (p Properties) Bool(transport, key string, def bool) (bool, error) {
	v := p.String(key, "")
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, &ConfigError{Transport: transport, Key: key, Message: fmt.Sprintf("not a boolean: %q", v), Err: err}
	}
	return b, nil
}

// Duration parses key as a Go duration string.
func (p Properties) Duration(transport, key string, def time.Duration) (time.Duration, error) {
	v := p.String(key, "")
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, &ConfigError{Transport: transport, Key: key, Message: fmt.Sprintf("not a duration: %q", v), Err: err}
	}
	return d, nil
}

// List splits a comma-separated value, dropping blanks.
func (p Properties) List(key string) []string {
	var out []string
	for _, part := range strings.Split(p[key], ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Map returns a copy of the properties after applying fn to every value.
func (p Properties) Map(fn func(string) string) Properties {
	out := make(Properties, len(p))
	for k, v := range p {
		out[k] = fn(v)
	}
	return out
}

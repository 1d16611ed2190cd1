// Package stamp (render.go) writes Properties in the supported output formats.
package stamp

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"gitstamp/cli/internal/erruser"
)

// EnvPrefix is prepended to keys in the env format.
const EnvPrefix = "GITSTAMP_"

// Write renders p to w in format: properties, env, json, yaml or toml.
func Write(w io.Writer, p Properties, format string) error {
	var err error
	switch format {
	case "properties":
		err = writeProperties(w, p)
	case "env":
		err = writeEnv(w, p)
	case "json":
		err = writeJSON(w, p)
	case "yaml":
		err = writeYAML(w, p)
	case "toml":
		err = toml.NewEncoder(w).Encode(p.Map())
	default:
		return erruser.New(fmt.Sprintf("Unknown output format %q.", format), nil)
	}
	var userErr *erruser.Err
	switch {
	case err == nil:
		return nil
	case errors.As(err, &userErr):
		return err
	default:
		return erruser.New("Could not write build properties.", err)
	}
}

// writeProperties writes key=value lines in the java.util.Properties format.
// Keys have separators (space, "=", ":") and comment markers ("#", "!")
// escaped so they read back as one key; a value keeps inner spaces but a
// leading one is escaped so readers do not strip it.
func writeProperties(w io.Writer, p Properties) error {
	for _, kv := range p {
		if _, err := fmt.Fprintf(w, "%s=%s\n", escapeProperty(kv.Key, true), escapeProperty(kv.Value, false)); err != nil {
			return err
		}
	}
	return nil
}

func escapeProperty(s string, key bool) string {
	var b strings.Builder
	for i, r := range s {
		switch r {
		case '\\':
			b.WriteString(`\\`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		case '\f':
			b.WriteString(`\f`)
		case ' ':
			if key || i == 0 {
				b.WriteByte('\\')
			}
			b.WriteByte(' ')
		case '=', ':', '#', '!':
			if key {
				b.WriteByte('\\')
			}
			b.WriteRune(r)
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// EnvName maps a property key to GITSTAMP_<KEY>, replacing anything other
// than letters and digits with "_".
func EnvName(key string) string {
	var b strings.Builder
	b.WriteString(EnvPrefix)
	for _, r := range key {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			b.WriteRune(unicode.ToUpper(r))
		} else {
			b.WriteByte('_')
		}
	}
	return b.String()
}

// shellQuote single-quotes s for POSIX shells.
func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

func writeEnv(w io.Writer, p Properties) error {
	seen := make(map[string]string, len(p))
	for _, kv := range p {
		name := EnvName(kv.Key)
		if prev, ok := seen[name]; ok {
			return erruser.WithHint(
				erruser.New(fmt.Sprintf("Properties %q and %q both map to %s.", prev, kv.Key, name), nil),
				"Rename one of them or use another output format.")
		}
		seen[name] = kv.Key
	}
	for _, kv := range p {
		if _, err := fmt.Fprintf(w, "%s=%s\n", EnvName(kv.Key), shellQuote(kv.Value)); err != nil {
			return err
		}
	}
	return nil
}

// writeJSON writes a single object, keeping property order.
func writeJSON(w io.Writer, p Properties) error {
	var b strings.Builder
	b.WriteString("{")
	for i, kv := range p {
		if i > 0 {
			b.WriteString(",")
		}
		k, err := json.Marshal(kv.Key)
		if err != nil {
			return err
		}
		v, err := json.Marshal(kv.Value)
		if err != nil {
			return err
		}
		b.WriteString("\n  ")
		b.Write(k)
		b.WriteString(": ")
		b.Write(v)
	}
	if len(p) > 0 {
		b.WriteString("\n")
	}
	b.WriteString("}\n")
	_, err := io.WriteString(w, b.String())
	return err
}

// writeYAML writes a mapping node so property order survives.
func writeYAML(w io.Writer, p Properties) error {
	node := &yaml.Node{Kind: yaml.MappingNode}
	for _, kv := range p {
		node.Content = append(node.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: kv.Key},
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: kv.Value},
		)
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(node); err != nil {
		return err
	}
	return enc.Close()
}

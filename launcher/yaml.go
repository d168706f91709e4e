package launcher

import (
	"bytes"
	stderrors "errors"
	"io"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/wippyai/realms/errors"
)

// ParseYAML reads the YAML form of a graph description:
//
//	main: {symbol: acme.Main, realm: app}
//	properties:
//	  - {name: plugins.dir, using: launch.properties, default: plugins}
//	realms:
//	  - id: core
//	    load: [lib/*.wapk]
//	  - id: app
//	    parent: core
//	    imports:
//	      - {scope: acme.api, from: core}
//	    optionally: ["${plugins.dir}/**/*.wasm"]
//
// It yields the same directives as the equivalent line configuration, with
// line numbers taken from the YAML document. Unknown keys at any level are
// rejected. An explicit parent is kept even when a dotted prefix realm
// exists; see Configurator.Configure.
func ParseYAML(data []byte) ([]Directive, error) {
	var cfg yamlConfig
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !stderrors.Is(err, io.EOF) {
		var cfgErr *errors.ConfigSyntaxError
		if stderrors.As(err, &cfgErr) {
			return nil, cfgErr
		}
		var te *yaml.TypeError
		msg := "Invalid YAML configuration"
		if stderrors.As(err, &te) {
			msg = "Unhandled configuration"
		}
		return nil, &errors.ConfigSyntaxError{Msg: msg, Cause: err}
	}
	return cfg.directives()
}

// knownKeys rejects mapping keys outside allowed. Decoders created by
// Node.Decode do not inherit KnownFields, so every block checks its own.
func knownKeys(n *yaml.Node, allowed ...string) error {
	if n.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i < len(n.Content); i += 2 {
		k := n.Content[i]
		if !slices.Contains(allowed, k.Value) {
			return errors.ConfigSyntax(msgUnhandled, k.Line, k.Value)
		}
	}
	return nil
}

type yamlConfig struct {
	Main       *yamlMain   `yaml:"main"`
	Properties []yamlProp  `yaml:"properties"`
	Realms     []yamlRealm `yaml:"realms"`
}

type yamlMain struct {
	Symbol string `yaml:"symbol"`
	Realm  string `yaml:"realm"`
	line   int
}

func (m *yamlMain) UnmarshalYAML(n *yaml.Node) error {
	if err := knownKeys(n, "symbol", "realm"); err != nil {
		return err
	}
	type plain yamlMain
	if err := n.Decode((*plain)(m)); err != nil {
		return err
	}
	m.line = n.Line
	return nil
}

type yamlProp struct {
	Name    string `yaml:"name"`
	Using   string `yaml:"using"`
	Default string `yaml:"default"`
	line    int
}

func (p *yamlProp) UnmarshalYAML(n *yaml.Node) error {
	if err := knownKeys(n, "name", "using", "default"); err != nil {
		return err
	}
	type plain yamlProp
	if err := n.Decode((*plain)(p)); err != nil {
		return err
	}
	p.line = n.Line
	return nil
}

type yamlRealm struct {
	ID         string       `yaml:"id"`
	Parent     string       `yaml:"parent"`
	Load       []yamlString `yaml:"load"`
	Optionally []yamlString `yaml:"optionally"`
	Imports    []yamlImport `yaml:"imports"`
	line       int
}

func (r *yamlRealm) UnmarshalYAML(n *yaml.Node) error {
	if err := knownKeys(n, "id", "parent", "load", "optionally", "imports"); err != nil {
		return err
	}
	type plain yamlRealm
	if err := n.Decode((*plain)(r)); err != nil {
		return err
	}
	r.line = n.Line
	return nil
}

type yamlImport struct {
	Scope string `yaml:"scope"`
	From  string `yaml:"from"`
	line  int
}

func (i *yamlImport) UnmarshalYAML(n *yaml.Node) error {
	if err := knownKeys(n, "scope", "from"); err != nil {
		return err
	}
	type plain yamlImport
	if err := n.Decode((*plain)(i)); err != nil {
		return err
	}
	i.line = n.Line
	return nil
}

type yamlString struct {
	value string
	line  int
}

func (s *yamlString) UnmarshalYAML(n *yaml.Node) error {
	if err := n.Decode(&s.value); err != nil {
		return err
	}
	s.line = n.Line
	return nil
}

func (c *yamlConfig) directives() ([]Directive, error) {
	var out []Directive

	if m := c.Main; m != nil {
		d := MainDirective{Symbol: m.Symbol, Realm: m.Realm}
		d.Position = Position{Line: m.line, Text: d.String()}
		if m.Symbol == "" || m.Realm == "" {
			return nil, errors.ConfigSyntax(msgMissingFrom, d.Line, d.Text)
		}
		out = append(out, d)
	}

	for _, p := range c.Properties {
		d := SetDirective{Property: p.Name, Using: p.Using, Default: p.Default}
		d.Position = Position{Line: p.line, Text: d.String()}
		if p.Name == "" || (p.Using == "" && p.Default == "") {
			return nil, errors.ConfigSyntax(msgMissingSetFrom, d.Line, d.Text)
		}
		out = append(out, d)
	}

	for _, r := range c.Realms {
		rd := RealmDirective{ID: r.ID, Parent: r.Parent}
		rd.Position = Position{Line: r.line, Text: rd.String()}
		if r.ID == "" {
			return nil, errors.ConfigSyntax(msgInvalidRealm, rd.Line, rd.Text)
		}
		out = append(out, rd)

		for _, s := range r.Load {
			d := LoadDirective{Realm: r.ID, Path: s.value}
			d.Position = Position{Line: s.line, Text: d.String()}
			out = append(out, d)
		}
		for _, s := range r.Optionally {
			d := LoadDirective{Realm: r.ID, Path: s.value, Optional: true}
			d.Position = Position{Line: s.line, Text: d.String()}
			out = append(out, d)
		}
		for _, imp := range r.Imports {
			d := ImportDirective{Realm: r.ID, Scope: imp.Scope, From: imp.From}
			d.Position = Position{Line: imp.line, Text: d.String()}
			if imp.From == "" {
				return nil, errors.ConfigSyntax(msgMissingFrom, d.Line, d.Text)
			}
			out = append(out, d)
		}
	}
	return out, nil
}

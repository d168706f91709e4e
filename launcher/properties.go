package launcher

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/magiconair/properties"
	"github.com/spf13/viper"

	"github.com/wippyai/realms/errors"
)

// BasedirProperty falls back to the working directory when unset.
const BasedirProperty = "basedir"

// Properties holds the variables available to ${name} expansion.
// Thread-safe.
type Properties struct {
	values map[string]string
	mu     sync.RWMutex
}

// NewProperties creates a property set seeded with initial.
func NewProperties(initial map[string]string) *Properties {
	p := &Properties{values: make(map[string]string, len(initial))}
	for k, v := range initial {
		p.values[k] = v
	}
	return p
}

// Get returns the value of name. basedir defaults to the working directory.
func (p *Properties) Get(name string) (string, bool) {
	p.mu.RLock()
	v, ok := p.values[name]
	p.mu.RUnlock()
	if ok {
		return v, true
	}
	if name == BasedirProperty {
		if wd, err := os.Getwd(); err == nil {
			return wd, true
		}
	}
	return "", false
}

// Set assigns name.
func (p *Properties) Set(name, value string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.values[name] = value
}

// SetDefault assigns name only if it has no value yet and reports whether
// it did.
func (p *Properties) SetDefault(name, value string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.values[name]; ok {
		return false
	}
	p.values[name] = value
	return true
}

// Names returns the defined names, sorted.
func (p *Properties) Names() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]string, 0, len(p.values))
	for k := range p.values {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Expand replaces every ${name} in text. Unknown names and unterminated
// references fail with a *errors.ConfigSyntaxError at pos.
func (p *Properties) Expand(text string, pos Position) (string, error) {
	var b strings.Builder
	rest := text
	for {
		start := strings.Index(rest, "${")
		if start < 0 {
			b.WriteString(rest)
			return b.String(), nil
		}
		end := strings.IndexByte(rest[start+2:], '}')
		if end < 0 {
			return "", errors.ConfigSyntax("Unterminated property: "+rest[start:], pos.Line, pos.Text)
		}
		name := rest[start+2 : start+2+end]
		value, ok := p.Get(name)
		if !ok {
			return "", errors.ConfigSyntax("No such property: "+name, pos.Line, pos.Text)
		}
		b.WriteString(rest[:start])
		b.WriteString(value)
		rest = rest[start+2+end+1:]
	}
}

// propertyFile is a loaded property file. Keys read through viper are
// lower-cased by viper, so lookups against them fold case.
type propertyFile struct {
	values   map[string]string
	foldCase bool
}

func (f propertyFile) lookup(name string) (string, bool) {
	if f.foldCase {
		name = strings.ToLower(name)
	}
	v, ok := f.values[name]
	return v, ok
}

// readPropertyFile loads key/value pairs from file. Java style .properties
// files go through magiconair/properties; YAML, JSON and TOML through viper.
func readPropertyFile(file string) (propertyFile, error) {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(file), "."))
	switch ext {
	case "properties", "props", "prop", "":
		props, err := properties.LoadFile(file, properties.UTF8)
		if err != nil {
			return propertyFile{}, err
		}
		return propertyFile{values: props.Map()}, nil
	}

	v := viper.New()
	v.SetConfigFile(file)
	if ext == "yml" {
		v.SetConfigType("yaml")
	}
	if err := v.ReadInConfig(); err != nil {
		return propertyFile{}, err
	}
	out := make(map[string]string)
	for _, key := range v.AllKeys() {
		out[key] = v.GetString(key)
	}
	return propertyFile{values: out, foldCase: true}, nil
}

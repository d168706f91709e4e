package launcher

import (
	"bufio"
	"io"
	"strings"

	"github.com/wippyai/realms/errors"
)

const (
	mainPrefix       = "main is "
	setPrefix        = "set "
	importPrefix     = "import "
	loadPrefix       = "load "
	optionallyPrefix = "optionally "
	fromSeparator    = " from "
	usingSeparator   = " using "
	defaultSeparator = " default "
)

// Parser error messages.
const (
	msgUnhandled       = "Unhandled configuration"
	msgDuplicateMain   = "Duplicate main configuration"
	msgMissingFrom     = "Missing from clause"
	msgInvalidRealm    = "Invalid realm specifier"
	msgUnhandledImport = "Unhandled import"
	msgMissingSetFrom  = "Missing using or default clause"
)

// Parse reads the line oriented configuration format:
//
//	# comment
//	main is acme.Main from app
//	set plugins.dir using ${basedir}/launch.properties default plugins
//	[core]
//	  load ${basedir}/lib/*.wapk
//	[app]
//	  import acme.api from core
//	  optionally ${plugins.dir}/**/*.wasm
//
// Malformed lines fail with a *errors.ConfigSyntaxError carrying the line
// number and text. Variables are left unexpanded.
func Parse(r io.Reader) ([]Directive, error) {
	var (
		out     []Directive
		current string
		hasMain bool
		lineNo  int
	)

	sc := bufio.NewScanner(r)
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		pos := Position{Line: lineNo, Text: line}

		switch {
		case strings.HasPrefix(line, mainPrefix):
			if hasMain {
				return nil, errors.ConfigSyntax(msgDuplicateMain, lineNo, line)
			}
			sym, realmID, ok := splitFrom(line[len(mainPrefix):])
			if !ok {
				return nil, errors.ConfigSyntax(msgMissingFrom, lineNo, line)
			}
			hasMain = true
			out = append(out, MainDirective{Position: pos, Symbol: sym, Realm: realmID})

		case strings.HasPrefix(line, setPrefix):
			d, ok := parseSet(line[len(setPrefix):])
			if !ok {
				return nil, errors.ConfigSyntax(msgMissingSetFrom, lineNo, line)
			}
			d.Position = pos
			out = append(out, d)

		case strings.HasPrefix(line, "["):
			end := strings.IndexByte(line, ']')
			if end < 0 {
				return nil, errors.ConfigSyntax(msgInvalidRealm, lineNo, line)
			}
			id := strings.TrimSpace(line[1:end])
			if id == "" {
				return nil, errors.ConfigSyntax(msgInvalidRealm, lineNo, line)
			}
			current = id
			out = append(out, RealmDirective{Position: pos, ID: id})

		case strings.HasPrefix(line, importPrefix):
			if current == "" {
				return nil, errors.ConfigSyntax(msgUnhandledImport, lineNo, line)
			}
			scope, from, ok := splitFrom(line[len(importPrefix):])
			if !ok {
				return nil, errors.ConfigSyntax(msgMissingFrom, lineNo, line)
			}
			out = append(out, ImportDirective{Position: pos, Realm: current, Scope: scope, From: from})

		case strings.HasPrefix(line, loadPrefix), strings.HasPrefix(line, optionallyPrefix):
			optional := strings.HasPrefix(line, optionallyPrefix)
			if current == "" {
				return nil, errors.ConfigSyntax(msgUnhandled, lineNo, line)
			}
			p := line[len(loadPrefix):]
			if optional {
				p = line[len(optionallyPrefix):]
			}
			p = strings.TrimSpace(p)
			if p == "" {
				return nil, errors.ConfigSyntax(msgUnhandled, lineNo, line)
			}
			out = append(out, LoadDirective{Position: pos, Realm: current, Path: p, Optional: optional})

		default:
			return nil, errors.ConfigSyntax(msgUnhandled, lineNo, line)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, errors.IO("read configuration", err)
	}
	return out, nil
}

// splitFrom splits "X from Y" into trimmed halves.
func splitFrom(s string) (string, string, bool) {
	i := strings.Index(s, fromSeparator)
	if i < 0 {
		return "", "", false
	}
	left := strings.TrimSpace(s[:i])
	right := strings.TrimSpace(s[i+len(fromSeparator):])
	if left == "" || right == "" {
		return "", "", false
	}
	return left, right, true
}

// parseSet handles "P using F", "P default D" and "P using F default D".
func parseSet(s string) (SetDirective, bool) {
	var d SetDirective
	s = " " + strings.TrimSpace(s) + " "

	usingAt := strings.Index(s, usingSeparator)
	defaultAt := strings.Index(s, defaultSeparator)
	if usingAt < 0 && defaultAt < 0 {
		return d, false
	}

	propEnd := len(s)
	if usingAt >= 0 {
		propEnd = usingAt
	}
	if defaultAt >= 0 && defaultAt < propEnd {
		propEnd = defaultAt
	}
	d.Property = strings.TrimSpace(s[:propEnd])
	if d.Property == "" {
		return d, false
	}

	if usingAt >= 0 {
		end := len(s)
		if defaultAt > usingAt {
			end = defaultAt
		}
		d.Using = strings.TrimSpace(s[usingAt+len(usingSeparator) : end])
	}
	if defaultAt >= 0 {
		end := len(s)
		if usingAt > defaultAt {
			end = usingAt
		}
		d.Default = strings.TrimSpace(s[defaultAt+len(defaultSeparator) : end])
	}
	return d, true
}

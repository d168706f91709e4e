package launcher

import "fmt"

// Position locates a directive in its configuration.
type Position struct {
	Text string
	Line int
}

// Pos returns the position itself so embedding types satisfy Directive.
func (p Position) Pos() Position { return p }

// Directive is one step of a graph description. Field values are expanded
// against the launcher properties when the directive is applied, not when
// it is parsed.
type Directive interface {
	Pos() Position
}

// RealmDirective declares a realm and makes it current for the load and
// import directives that follow.
type RealmDirective struct {
	Position
	ID     string
	Parent string
}

// LoadDirective adds a content source, a glob of them, or a URL to the
// current realm.
type LoadDirective struct {
	Position
	Realm    string
	Path     string
	Optional bool
}

// ImportDirective imports Scope from the realm named From into Realm.
type ImportDirective struct {
	Position
	Realm string
	Scope string
	From  string
}

// SetDirective defines Property unless it is already set, from the
// property file Using and/or the Default value.
type SetDirective struct {
	Position
	Property string
	Using    string
	Default  string
}

// MainDirective names the entry point symbol and its realm.
type MainDirective struct {
	Position
	Symbol string
	Realm  string
}

func (d RealmDirective) String() string {
	if d.Parent != "" {
		return fmt.Sprintf("[%s] (parent %s)", d.ID, d.Parent)
	}
	return "[" + d.ID + "]"
}

func (d LoadDirective) String() string {
	if d.Optional {
		return "optionally " + d.Path
	}
	return "load " + d.Path
}

func (d ImportDirective) String() string {
	return "import " + d.Scope + " from " + d.From
}

func (d SetDirective) String() string {
	s := "set " + d.Property
	if d.Using != "" {
		s += " using " + d.Using
	}
	if d.Default != "" {
		s += " default " + d.Default
	}
	return s
}

func (d MainDirective) String() string {
	return "main is " + d.Symbol + " from " + d.Realm
}

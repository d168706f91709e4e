package realm

import (
	"fmt"
	"io"
	"sort"
)

// Info is a point in time description of a realm.
type Info struct {
	ID            string
	Parent        string
	Sources       []string
	Imports       []Entry
	ParentImports []string
	Seq           uint64
	Filtered      bool
	Foreign       bool
}

func (r *Realm) infoLocked() Info {
	info := Info{
		ID:       r.id,
		Parent:   r.parent,
		Seq:      r.seq,
		Filtered: r.filter != nil,
		Foreign:  r.foreign != nil,
	}
	for _, src := range r.sources {
		info.Sources = append(info.Sources, src.Locator())
	}
	for _, imp := range r.imports {
		info.Imports = append(info.Imports, imp.entry)
	}
	for _, e := range r.parentImports {
		info.ParentImports = append(info.ParentImports, e.scope)
	}
	return info
}

// Info describes the realm.
func (r *Realm) Info() Info {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.infoLocked()
}

// Describe returns a consistent snapshot of every realm, sorted by id.
// Realm locks are taken in creation order and held until all are copied.
func (w *World) Describe() []Info {
	w.mu.RLock()
	all := make([]*Realm, 0, len(w.realms))
	for _, r := range w.realms {
		all = append(all, r)
	}
	w.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool { return all[i].seq < all[j].seq })
	for _, r := range all {
		r.mu.RLock()
	}
	out := make([]Info, 0, len(all))
	for _, r := range all {
		out = append(out, r.infoLocked())
	}
	for i := len(all) - 1; i >= 0; i-- {
		all[i].mu.RUnlock()
	}

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Display writes a human readable dump of the realm and its ancestors.
func (r *Realm) Display(w io.Writer) error {
	seen := make(map[*Realm]bool)
	for cur := r; cur != nil && !seen[cur]; cur = cur.Parent() {
		seen[cur] = true
		if err := writeInfo(w, cur.Info()); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintln(w, "-----------------------------------------------------")
	return err
}

func writeInfo(w io.Writer, info Info) error {
	ew := &errWriter{w: w}
	ew.printf("-----------------------------------------------------\n")
	ew.printf("realm:    %s\n", info.ID)
	if info.Parent != "" {
		ew.printf("parent:   %s\n", info.Parent)
	}
	if info.Filtered {
		ew.printf("filtered: yes\n")
	}
	for i, src := range info.Sources {
		ew.printf("source[%d] = %s\n", i, src)
	}
	if len(info.Imports) > 0 {
		ew.printf("imports:  %d\n", len(info.Imports))
		for _, e := range info.Imports {
			ew.printf("  import %q from %s\n", e.Scope(), e.Realm())
		}
	}
	for _, scope := range info.ParentImports {
		ew.printf("  parent import %q\n", scope)
	}
	return ew.err
}

type errWriter struct {
	w   io.Writer
	err error
}

func (ew *errWriter) printf(format string, args ...any) {
	if ew.err != nil {
		return
	}
	_, ew.err = fmt.Fprintf(ew.w, format, args...)
}

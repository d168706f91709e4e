package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/wippyai/realms/realm"
)

func newInspectCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "inspect [realm]",
		Short: "Describe the configured realms",
		Long: `Describe every realm of the configured world: parent, content sources
and imports. With a realm id, print that realm and its ancestors.`,
		Args: usageArgs(cobra.MaximumNArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			l, err := a.launcher(cmd)
			if err != nil {
				return err
			}
			defer l.Close(cmd.Context())

			if len(args) == 1 {
				r, err := l.World().Realm(args[0])
				if err != nil {
					return err
				}
				return r.Display(a.stdout)
			}

			st := a.styles()
			if m, ok := l.Main(); ok {
				fmt.Fprintf(a.stdout, "%s %s from %s\n\n", st.title.Render("main"), m.Symbol, st.realm.Render(m.Realm))
			}
			for _, info := range l.World().Describe() {
				renderInfo(a.stdout, st, info)
			}
			return nil
		},
	}
}

func renderInfo(w io.Writer, st styles, info realm.Info) {
	var flags []string
	if info.Filtered {
		flags = append(flags, "filtered")
	}
	if info.Foreign {
		flags = append(flags, "foreign")
	}

	header := st.realm.Render(info.ID)
	if info.Parent != "" {
		header += " < " + info.Parent
	}
	if len(flags) > 0 {
		header += " (" + strings.Join(flags, ", ") + ")"
	}
	fmt.Fprintln(w, header)

	for _, src := range info.Sources {
		fmt.Fprintf(w, "  load   %s\n", src)
	}
	for _, e := range info.Imports {
		fmt.Fprintf(w, "  import %s from %s\n", st.scope.Render(e.Scope()), e.Realm())
	}
	for _, scope := range info.ParentImports {
		fmt.Fprintf(w, "  parent %s\n", st.scope.Render(scope))
	}
}

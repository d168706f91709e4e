package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/wippyai/realms/errors"
	"github.com/wippyai/realms/launcher"
	"github.com/wippyai/realms/realm"
)

type resolveOptions struct {
	realm       string
	resource    bool
	all         bool
	parentFirst bool
}

func newResolveCommand(a *app) *cobra.Command {
	opts := resolveOptions{}
	cmd := &cobra.Command{
		Use:   "resolve <name>",
		Short: "Show where a symbol or resource resolves from",
		Long: `Resolve a dotted symbol name, or a slash separated resource name with
--resource, as seen from a realm (the main realm by default).`,
		Args: usageArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			l, err := a.launcher(cmd)
			if err != nil {
				return err
			}
			defer l.Close(cmd.Context())
			return runResolve(cmd, a, l, opts, args[0])
		},
	}
	cmd.Flags().StringVarP(&opts.realm, "realm", "r", "", "Realm to resolve from (default: the main realm)")
	cmd.Flags().BoolVar(&opts.resource, "resource", false, "Treat the name as a resource name")
	cmd.Flags().BoolVar(&opts.all, "all", false, "List every visible resource with that name")
	cmd.Flags().BoolVar(&opts.parentFirst, "parent-first", false, "With --all, list parent resources first")
	return cmd
}

func pickRealm(l *launcher.Launcher, id string) (*realm.Realm, error) {
	if id == "" {
		return l.MainRealm()
	}
	return l.World().Realm(id)
}

func runResolve(cmd *cobra.Command, a *app, l *launcher.Launcher, opts resolveOptions, name string) error {
	r, err := pickRealm(l, opts.realm)
	if err != nil {
		return err
	}

	if opts.all {
		order := realm.SelfFirst
		if opts.parentFirst {
			order = realm.ParentFirst
		}
		if !opts.resource && !strings.Contains(name, "/") {
			name = realm.SymbolResource(name, l.World().SymbolSuffix())
		}
		found := r.ListResources(name, order)
		if len(found) == 0 {
			return errors.NotFound(r.ID(), name)
		}
		for _, res := range found {
			fmt.Fprintln(a.stdout, res.URL)
		}
		return nil
	}

	line, err := describe(cmd.Context(), r, name, opts.resource)
	if err != nil {
		return err
	}
	fmt.Fprintln(a.stdout, line)
	return nil
}

// describe resolves name from r and summarizes the outcome on one line.
func describe(ctx context.Context, r *realm.Realm, name string, resource bool) (string, error) {
	via := ""
	if imp := r.ImportRealmFor(name); imp != nil {
		via = " via import from " + imp.ID()
	}

	if resource {
		res, ok := r.ResolveResource(name)
		if !ok {
			return "", errors.NotFound(r.ID(), name)
		}
		return fmt.Sprintf("%s -> %s%s", name, res.URL, via), nil
	}

	sym, err := r.LoadSymbol(ctx, name)
	if err != nil {
		return "", err
	}
	defined := sym.Realm
	if defined == "" {
		defined = "host"
	}
	url := ""
	if sym.Resource != nil {
		url = " " + sym.Resource.URL
	}
	return fmt.Sprintf("%s -> realm %s%s%s", name, defined, url, via), nil
}

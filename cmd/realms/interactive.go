package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/wippyai/realms/realm"
)

type interactiveModel struct {
	ctx      context.Context
	err      error
	world    *realm.World
	st       styles
	title    string
	result   string
	realms   []realm.Info
	input    textinput.Model
	selected int
	state    modelState
	resource bool
}

type modelState int

const (
	stateSelectRealm modelState = iota
	stateInputName
	stateShowResult
)

type loadedMsg struct {
	realms []realm.Info
}

type resolvedMsg struct {
	err    error
	result string
}

func newInteractiveModel(ctx context.Context, w *realm.World, title string, st styles) *interactiveModel {
	ti := textinput.New()
	ti.Placeholder = "acme.Main"
	ti.Width = 48
	return &interactiveModel{
		ctx:   ctx,
		world: w,
		st:    st,
		title: title,
		input: ti,
		state: stateSelectRealm,
	}
}

func (m *interactiveModel) Init() tea.Cmd {
	return m.loadRealms
}

func (m *interactiveModel) loadRealms() tea.Msg {
	return loadedMsg{realms: m.world.Describe()}
}

func (m *interactiveModel) current() *realm.Realm {
	if m.selected >= len(m.realms) {
		return nil
	}
	r, _ := m.world.Lookup(m.realms[m.selected].ID)
	return r
}

func (m *interactiveModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			return m, tea.Quit

		case "q":
			if m.state != stateInputName {
				return m, tea.Quit
			}

		case "up", "k":
			if m.state == stateSelectRealm && m.selected > 0 {
				m.selected--
			}

		case "down", "j":
			if m.state == stateSelectRealm && m.selected < len(m.realms)-1 {
				m.selected++
			}

		case "enter":
			switch m.state {
			case stateSelectRealm:
				if len(m.realms) > 0 {
					m.state = stateInputName
					m.input.SetValue("")
					m.input.Focus()
				}
				return m, nil

			case stateInputName:
				return m, m.resolve(strings.TrimSpace(m.input.Value()))

			case stateShowResult:
				m.state = stateInputName
				m.result = ""
				m.err = nil
				m.input.Focus()
				return m, nil
			}

		case "tab":
			if m.state == stateInputName {
				m.resource = !m.resource
				if m.resource {
					m.input.Placeholder = "acme/config.yaml"
				} else {
					m.input.Placeholder = "acme.Main"
				}
				return m, nil
			}

		case "esc":
			switch m.state {
			case stateInputName:
				m.state = stateSelectRealm
				m.input.Blur()
			case stateShowResult:
				m.state = stateInputName
				m.result = ""
				m.err = nil
				m.input.Focus()
			}
			return m, nil
		}

	case loadedMsg:
		m.realms = msg.realms

	case resolvedMsg:
		m.result = msg.result
		m.err = msg.err
		m.state = stateShowResult
		m.input.Blur()
		return m, nil
	}

	if m.state == stateInputName {
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *interactiveModel) resolve(name string) tea.Cmd {
	r := m.current()
	resource := m.resource
	return func() tea.Msg {
		if r == nil {
			return resolvedMsg{err: fmt.Errorf("realm disposed")}
		}
		if name == "" {
			return resolvedMsg{err: fmt.Errorf("empty name")}
		}
		line, err := describe(m.ctx, r, name, resource)
		return resolvedMsg{result: line, err: err}
	}
}

func (m *interactiveModel) View() string {
	if m.realms == nil {
		return "Loading realms..."
	}

	var b strings.Builder
	b.WriteString(m.st.title.Render("Realm Explorer"))
	b.WriteString(" ")
	b.WriteString(m.title)
	b.WriteString("\n\n")

	switch m.state {
	case stateSelectRealm:
		if len(m.realms) == 0 {
			b.WriteString("No realms configured.\n\n")
			b.WriteString(m.st.help.Render("q quit"))
			return b.String()
		}
		b.WriteString("Select a realm:\n\n")
		for i, info := range m.realms {
			line := m.formatRealm(info)
			if i == m.selected {
				b.WriteString(m.st.selected.Render("> " + line))
			} else {
				b.WriteString("  " + line)
			}
			b.WriteString("\n")
		}
		b.WriteString("\n")
		b.WriteString(m.st.help.Render("↑/↓ select • enter resolve • q quit"))

	case stateInputName:
		kind := "symbol"
		if m.resource {
			kind = "resource"
		}
		fmt.Fprintf(&b, "Resolve a %s in %s\n\n", kind, m.st.realm.Render(m.realms[m.selected].ID))
		b.WriteString(m.input.View())
		b.WriteString("\n\n")
		b.WriteString(m.st.help.Render("enter resolve • tab symbol/resource • esc back"))

	case stateShowResult:
		fmt.Fprintf(&b, "From %s:\n\n", m.st.realm.Render(m.realms[m.selected].ID))
		if m.err != nil {
			b.WriteString(m.st.err.Render(fmt.Sprintf("Error: %v", m.err)))
		} else {
			b.WriteString(m.st.result.Render(m.result))
		}
		b.WriteString("\n\n")
		b.WriteString(m.st.help.Render("enter again • esc back • q quit"))
	}

	return b.String()
}

func (m *interactiveModel) formatRealm(info realm.Info) string {
	s := m.st.realm.Render(info.ID)
	if info.Parent != "" {
		s += " < " + info.Parent
	}
	if n := len(info.Imports); n > 0 {
		s += m.st.scope.Render(fmt.Sprintf(" (%d imports)", n))
	}
	return s
}

func newInteractiveCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "interactive",
		Aliases: []string{"i"},
		Short:   "Explore symbol resolution in a terminal UI",
		RunE: func(cmd *cobra.Command, _ []string) error {
			l, err := a.launcher(cmd)
			if err != nil {
				return err
			}
			defer l.Close(cmd.Context())

			m := newInteractiveModel(cmd.Context(), l.World(), a.v.GetString(keyConf), newStyles(true))
			p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(cmd.Context()))
			_, err = p.Run()
			return err
		},
	}
}

package cmd

import (
	"fmt"
	"io"

	"github.com/charmbracelet/bubbles/v2/list"
	tea "github.com/charmbracelet/bubbletea/v2"
	"github.com/charmbracelet/lipgloss/v2"
	"github.com/spf13/cobra"

	"sigforge/internal/parser"
	"sigforge/internal/smartanalyzer"
)

var pickFormat string

var pickCmd = &cobra.Command{
	Use:   "pick <file|->",
	Short: "Interactively choose a smart-anchor target to generate a signature for",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		text, err := readInput(args[0])
		if err != nil {
			return err
		}

		parsed, err := parser.Parse(text, parser.Options{Format: parser.Format(pickFormat)})
		if err != nil {
			return fmt.Errorf("pick: %w", err)
		}

		analysis := smartanalyzer.Analyze(parsed.Instructions, smartanalyzer.DefaultOptions())
		if len(analysis.TopTargets) == 0 {
			return fmt.Errorf("pick: no candidate targets found")
		}

		items := make([]list.Item, 0, len(analysis.TopTargets))
		for _, t := range analysis.TopTargets {
			items = append(items, targetItem{t})
		}

		l := list.New(items, targetDelegate{}, 60, 16)
		l.Title = "Select a signature anchor"

		program := tea.NewProgram(pickModel{list: l})
		finalModel, err := program.Run()
		if err != nil {
			return fmt.Errorf("pick: %w", err)
		}

		final := finalModel.(pickModel)
		if final.chosen == nil {
			return fmt.Errorf("pick: no target chosen")
		}
		fmt.Println(final.chosen.Address)
		return nil
	},
}

func init() {
	pickCmd.Flags().StringVar(&pickFormat, "format", string(parser.FormatAuto), "Input format: auto, x64dbg, cheatengine, hex")
}

type targetItem struct {
	smartanalyzer.Target
}

func (i targetItem) Title() string {
	return fmt.Sprintf("%s  %s %s  (%.0f)", i.Address, i.Mnemonic, i.Operands, i.Score)
}
func (i targetItem) Description() string { return "" }
func (i targetItem) FilterValue() string { return i.Address + " " + i.Mnemonic + " " + i.Operands }

type targetDelegate struct{}

func (d targetDelegate) Height() int                              { return 1 }
func (d targetDelegate) Spacing() int                             { return 0 }
func (d targetDelegate) Update(msg tea.Msg, m *list.Model) tea.Cmd { return nil }

func (d targetDelegate) Render(w io.Writer, m list.Model, index int, listItem list.Item) {
	i, ok := listItem.(targetItem)
	if !ok {
		return
	}
	indicator := " "
	style := lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	if index == m.Index() {
		indicator = ">"
		style = lipgloss.NewStyle().Foreground(lipgloss.Color("170"))
	}
	fmt.Fprintf(w, " %s %s", indicator, style.Render(i.Title()))
}

type pickModel struct {
	list   list.Model
	chosen *smartanalyzer.Target
}

func (m pickModel) Init() tea.Cmd {
	return nil
}

func (m pickModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.list.SetWidth(msg.Width)
		m.list.SetHeight(msg.Height)
		return m, nil
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case "enter":
			if item, ok := m.list.SelectedItem().(targetItem); ok {
				target := item.Target
				m.chosen = &target
			}
			return m, tea.Quit
		}
	}
	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m pickModel) View() string {
	return m.list.View()
}

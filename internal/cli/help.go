package cli

import (
	"fmt"
	"strings"

	"github.com/alecthomas/kong"
	"github.com/charmbracelet/lipgloss"
)

// Help styles, signal theme
var (
	helpTitleStyle   = lipgloss.NewStyle().Bold(true).Foreground(SignalBlue).MarginBottom(1)
	helpDescStyle    = lipgloss.NewStyle().Italic(true).Foreground(SteelGray).MarginBottom(1)
	helpSectionStyle = lipgloss.NewStyle().Bold(true).Foreground(SignalAmber).MarginTop(1)
	helpCommandStyle = lipgloss.NewStyle().Bold(true).Foreground(SignalBlue)
	helpArgStyle     = lipgloss.NewStyle().Bold(true).Foreground(SignalAmber)
	helpFlagStyle    = lipgloss.NewStyle().Bold(true).Foreground(SignalGreen)
	helpDefaultStyle = lipgloss.NewStyle().Italic(true).Foreground(SteelGray)
)

// helpRow is one entry of a help section: a styled term and its
// description, with an optional default value.
type helpRow struct {
	term       string
	help       string
	defaultVal string
}

// StyledHelpPrinter creates a custom help printer with Lipgloss styling.
// Help for a subcommand shows its own arguments and the flags it inherits.
func StyledHelpPrinter(options kong.HelpOptions) kong.HelpPrinter {
	return kong.HelpPrinter(func(options kong.HelpOptions, ctx *kong.Context) error {
		node := ctx.Selected()
		if node == nil {
			node = ctx.Model.Node
		}
		root := node == ctx.Model.Node

		desc := AppDescription
		if !root && node.Help != "" {
			desc = node.Help
		}

		var sb strings.Builder
		sb.WriteString(helpTitleStyle.Render(AppName) + "\n")
		sb.WriteString(helpDescStyle.Render(desc) + "\n")
		sb.WriteString(helpSectionStyle.Render("Usage:") + "\n  " + usage(ctx, node) + "\n")

		commands := commandRows(node)
		writeSection(&sb, "Commands:", commands, helpCommandStyle)
		writeSection(&sb, "Arguments:", argumentRows(node), helpArgStyle)
		writeSection(&sb, "Flags:", flagRows(node), helpFlagStyle)

		if len(commands) > 0 {
			hint := fmt.Sprintf("Run \"%s <command> --help\" for more information on a command.", ctx.Model.Name)
			sb.WriteString("\n" + helpDefaultStyle.Render(hint) + "\n")
		}
		sb.WriteString("\n")

		fmt.Fprint(ctx.Stdout, sb.String())
		return nil
	})
}

// writeSection renders rows under title with descriptions aligned in one
// column. Nothing is written for an empty section.
func writeSection(sb *strings.Builder, title string, rows []helpRow, termStyle lipgloss.Style) {
	if len(rows) == 0 {
		return
	}
	width := 0
	for _, r := range rows {
		width = max(width, len(r.term))
	}

	sb.WriteString("\n" + helpSectionStyle.Render(title) + "\n")
	for _, r := range rows {
		sb.WriteString("  " + termStyle.Render(r.term))
		if r.help != "" {
			sb.WriteString(strings.Repeat(" ", width-len(r.term)+2) + r.help)
		}
		if r.defaultVal != "" {
			sb.WriteString(" " + helpDefaultStyle.Render("(default: "+r.defaultVal+")"))
		}
		sb.WriteString("\n")
	}
}

func usage(ctx *kong.Context, node *kong.Node) string {
	if node == ctx.Model.Node {
		return ctx.Model.Name + " <command> [flags]"
	}
	return ctx.Model.Name + " " + node.Summary() + " [flags]"
}

func commandRows(node *kong.Node) []helpRow {
	var rows []helpRow
	for _, child := range node.Children {
		if child.Hidden || child.Type != kong.CommandNode {
			continue
		}
		rows = append(rows, helpRow{term: child.Summary(), help: child.Help})
	}
	return rows
}

func argumentRows(node *kong.Node) []helpRow {
	rows := make([]helpRow, 0, len(node.Positional))
	for _, arg := range node.Positional {
		rows = append(rows, helpRow{term: arg.Summary(), help: arg.Help})
	}
	return rows
}

// flagRows lists --help first, then the flags of node and its parents.
func flagRows(node *kong.Node) []helpRow {
	rows := []helpRow{{term: "-h, --help", help: "Show context-sensitive help."}}
	for _, group := range node.AllFlags(true) {
		for _, f := range group {
			if f.Name == "help" {
				continue
			}
			rows = append(rows, helpRow{
				term:       flagTerm(f),
				help:       f.Help,
				defaultVal: flagDefault(f),
			})
		}
	}
	return rows
}

func flagTerm(f *kong.Flag) string {
	term := "--" + f.Name
	if f.Short != 0 {
		term = fmt.Sprintf("-%c, %s", f.Short, term)
	}
	if !f.IsBool() && f.PlaceHolder != "" {
		term += "=" + strings.ToUpper(f.PlaceHolder)
	}
	return term
}

// flagDefault hides defaults that say nothing, such as those of booleans.
func flagDefault(f *kong.Flag) string {
	if !f.HasDefault || f.IsBool() {
		return ""
	}
	switch f.Default {
	case "", "STRING", "BOOL":
		return ""
	}
	return f.Default
}

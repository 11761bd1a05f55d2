package util

import (
	"fmt"
	"io"
	"os"
	"reflect"
	"sort"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/urfave/cli/v2"
	"golang.org/x/term"
)

const (
	helpIndent   = "   "
	flagIndent   = "  "
	maxHelpWidth = 120
)

func termWidth(fallback int) int {
	if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && w > 0 {
		return w
	}
	if cols := os.Getenv("COLUMNS"); cols != "" {
		if c, err := strconv.Atoi(cols); err == nil && c > 0 {
			return c
		}
	}
	return fallback
}

func wrapText(text string, width int) []string {
	var out []string
	for _, para := range strings.Split(text, "\n\n") {
		words := strings.Fields(para)
		if len(words) == 0 {
			continue
		}
		line := words[0]
		for _, w := range words[1:] {
			if len(line)+1+len(w) > width {
				out = append(out, line)
				line = w
				continue
			}
			line += " " + w
		}
		out = append(out, line)
	}
	if len(out) == 0 {
		out = append(out, "")
	}
	return out
}

func flagCategory(f cli.Flag) string {
	if c, ok := f.(cli.CategorizableFlag); ok {
		return c.GetCategory()
	}
	v := reflect.Indirect(reflect.ValueOf(f))
	if fld := v.FieldByName("Category"); fld.IsValid() && fld.Kind() == reflect.String {
		return fld.String()
	}
	return ""
}

func flagLabel(f cli.Flag) (label, usage string) {
	parts := strings.SplitN(strings.TrimRight(f.String(), "\n"), "\t", 2)
	label = parts[0]
	if len(parts) > 1 {
		usage = parts[1]
	}
	return
}

// WriteHelp renders an app or command with its flags grouped by category.
func WriteHelp(w io.Writer, data interface{}, width int) bool {
	var (
		flags []cli.Flag
		cmds  []*cli.Command
		name  string
		usage string
		desc  string
	)
	switch v := data.(type) {
	case *cli.App:
		flags, cmds, name, usage, desc = v.VisibleFlags(), v.VisibleCommands(), v.HelpName, v.Usage, v.Description
	case *cli.Command:
		flags, cmds, name, usage, desc = v.VisibleFlags(), v.VisibleCommands(), v.HelpName, v.Usage, v.Description
	default:
		return false
	}

	section := color.New(color.FgGreen, color.Bold).SprintFunc()
	category := color.New(color.FgCyan, color.Bold).SprintFunc()

	fmt.Fprintf(w, "%s\n%s%s - %s\n\n", section("NAME:"), helpIndent, name, usage)
	fmt.Fprintf(w, "%s\n%s%s", section("USAGE:"), helpIndent, name)
	if len(cmds) > 0 {
		fmt.Fprint(w, " command")
	}
	if len(flags) > 0 {
		fmt.Fprint(w, " [options]")
	}
	fmt.Fprint(w, "\n\n")

	if desc != "" {
		fmt.Fprintln(w, section("DESCRIPTION:"))
		for _, line := range wrapText(desc, width-len(helpIndent)) {
			fmt.Fprintf(w, "%s%s\n", helpIndent, line)
		}
		fmt.Fprintln(w)
	}

	if len(cmds) > 0 {
		fmt.Fprintln(w, section("COMMANDS:"))
		for _, c := range cmds {
			if c.Name == "help" {
				continue
			}
			fmt.Fprintf(w, "%s%-12s  %s\n", helpIndent, c.Name, c.Usage)
		}
		fmt.Fprintln(w)
	}

	if len(flags) == 0 {
		return true
	}
	fmt.Fprintf(w, "%s\n", section("OPTIONS:"))

	groups := map[string][]cli.Flag{}
	order := []string{}
	labelWidth := 0
	for _, f := range flags {
		label, _ := flagLabel(f)
		if strings.HasPrefix(label, "--help") {
			continue
		}
		cat := flagCategory(f)
		if _, ok := groups[cat]; !ok {
			order = append(order, cat)
		}
		groups[cat] = append(groups[cat], f)
		labelWidth = max(labelWidth, len(label))
	}
	sort.Strings(order)

	usageWidth := max(width-len(flagIndent)-labelWidth-2, 20)
	for _, cat := range order {
		header := cat
		if header == "" {
			header = "Global Options"
		}
		fmt.Fprintf(w, "%s%s\n", flagIndent, category(header))
		for _, f := range groups[cat] {
			label, text := flagLabel(f)
			lines := wrapText(text, usageWidth)
			fmt.Fprintf(w, "%s%-*s  %s\n", flagIndent, labelWidth, label, lines[0])
			for _, cont := range lines[1:] {
				fmt.Fprintf(w, "%s%s  %s\n", flagIndent, strings.Repeat(" ", labelWidth), cont)
			}
		}
		fmt.Fprintln(w)
	}
	return true
}

// UseCategoryHelp replaces the cli help printer with WriteHelp, falling back
// to the template printer for anything else.
func UseCategoryHelp() {
	fallback := cli.HelpPrinter
	width := min(maxHelpWidth, termWidth(maxHelpWidth)) - 4
	cli.HelpPrinter = func(w io.Writer, templ string, data interface{}) {
		if !WriteHelp(w, data, width) {
			fallback(w, templ, data)
		}
	}
}

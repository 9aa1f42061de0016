package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"pagepreview/internal/preflight"
)

type statusKind int

const (
	statusInfo statusKind = iota
	statusOK
	statusWarn
	statusError
)

var statusStyles = map[statusKind]struct {
	label string
	color text.Color
}{
	statusInfo:  {"INFO", text.FgBlue},
	statusOK:    {"OK", text.FgGreen},
	statusWarn:  {"WARN", text.FgYellow},
	statusError: {"ERROR", text.FgRed},
}

const statusLabelWidth = 20

type columnAlignment int

const (
	alignLeft columnAlignment = iota
	alignRight
)

// printer writes command output, colouring it only on a terminal.
type printer struct {
	out   io.Writer
	color bool
}

func newPrinter(cmd *cobra.Command) *printer {
	out := cmd.OutOrStdout()
	return &printer{out: out, color: isTerminal(out)}
}

func isTerminal(w io.Writer) bool {
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

func (p *printer) paint(color text.Color, s string) string {
	if !p.color {
		return s
	}
	return color.Sprint(s)
}

func (p *printer) linef(format string, args ...any) {
	fmt.Fprintf(p.out, format+"\n", args...)
}

// status prints "  label: [KIND] message".
func (p *printer) status(label string, kind statusKind, message string) {
	style := statusStyles[kind]
	tag := "[" + style.label + "]"
	if message != "" {
		tag += " " + message
	}
	p.linef("%s", p.paint(style.color, fmt.Sprintf("  %-*s %s", statusLabelWidth, label+":", tag)))
}

func (p *printer) check(result preflight.Result) {
	kind := statusOK
	switch {
	case !result.Passed:
		kind = statusError
	case result.Warning:
		kind = statusWarn
	}
	p.status(result.Name, kind, result.Detail)
}

func (p *printer) section(title string) {
	heading := fmt.Sprintf("== %s ==", strings.TrimSpace(title))
	p.linef("%s", p.paint(text.FgBlue, heading))
	p.linef("%s", p.paint(text.FgBlue, strings.Repeat("-", len(heading))))
}

// table prints rows under headers. Short rows are padded with blanks.
func (p *printer) table(headers []string, rows [][]string, aligns ...columnAlignment) {
	if len(headers) == 0 {
		return
	}
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(toRow(headers, len(headers)))
	for _, row := range rows {
		tw.AppendRow(toRow(row, len(headers)))
	}
	configs := make([]table.ColumnConfig, len(headers))
	for i := range headers {
		configs[i] = table.ColumnConfig{Number: i + 1, Align: text.AlignLeft, AlignHeader: text.AlignLeft}
		if i < len(aligns) && aligns[i] == alignRight {
			configs[i].Align = text.AlignRight
		}
	}
	tw.SetColumnConfigs(configs)
	p.linef("%s", tw.Render())
}

func toRow(cells []string, width int) table.Row {
	row := make(table.Row, width)
	for i := range row {
		if i < len(cells) {
			row[i] = cells[i]
		} else {
			row[i] = ""
		}
	}
	return row
}

// logLine highlights warning and error lines.
func (p *printer) logLine(line string) {
	switch {
	case !p.color:
	case strings.Contains(line, " ERROR ") || strings.Contains(line, `"level":"error"`):
		line = p.paint(text.FgRed, line)
	case strings.Contains(line, " WARN ") || strings.Contains(line, `"level":"warn"`):
		line = p.paint(text.FgYellow, line)
	}
	fmt.Fprintln(p.out, line)
}

func (p *printer) json(v any) error {
	enc := json.NewEncoder(p.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

package formatting

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"gopkg.in/yaml.v3"
)

type jsonRenderer struct{}

func (jsonRenderer) render(w io.Writer, l listing, _ Options) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(l.value)
}

type yamlRenderer struct{}

func (yamlRenderer) render(w io.Writer, l listing, _ Options) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(l.value); err != nil {
		return err
	}
	return enc.Close()
}

// consoleRenderer writes aligned plain text.
type consoleRenderer struct{}

func (consoleRenderer) render(w io.Writer, l listing, options Options) error {
	if len(l.rows) == 0 {
		if options.Quiet {
			return nil
		}
		_, err := fmt.Fprintf(w, "No %s found.\n", l.noun)
		return err
	}

	if l.detail {
		for _, row := range l.rows {
			if _, err := fmt.Fprintf(w, "%-16s %s\n", row[0]+":", row[1]); err != nil {
				return err
			}
		}
		return nil
	}

	widths := make([]int, len(l.headers))
	if !options.Quiet {
		for i, h := range l.headers {
			widths[i] = len(h)
		}
	}
	for _, row := range l.rows {
		for i, cell := range row {
			widths[i] = max(widths[i], len(cell))
		}
	}

	line := func(cells []string) error {
		padded := make([]string, len(cells))
		for i, cell := range cells {
			padded[i] = fmt.Sprintf("%-*s", widths[i], cell)
		}
		_, err := fmt.Fprintln(w, strings.TrimRight(strings.Join(padded, "  "), " "))
		return err
	}

	if !options.Quiet {
		if err := line(l.headers); err != nil {
			return err
		}
	}
	for _, row := range l.rows {
		if err := line(row); err != nil {
			return err
		}
	}
	return nil
}

// tableRenderer draws bordered tables.
type tableRenderer struct{}

func (tableRenderer) render(w io.Writer, l listing, options Options) error {
	if len(l.rows) == 0 {
		if options.Quiet {
			return nil
		}
		_, err := fmt.Fprintln(w, paint(options, text.FgYellow, fmt.Sprintf("No %s found", l.noun)))
		return err
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleRounded)

	header := make(table.Row, len(l.headers))
	for i, h := range l.headers {
		header[i] = paint(options, text.FgHiCyan, h)
	}
	t.AppendHeader(header)

	for _, row := range l.rows {
		r := make(table.Row, len(row))
		for i, cell := range row {
			if l.detail && i == 0 {
				r[i] = paint(options, text.FgHiCyan, cell)
				continue
			}
			r[i] = cell
		}
		t.AppendRow(r)
	}
	t.Render()

	if !options.Quiet && !l.detail {
		_, err := fmt.Fprintf(w, "%s %s %s\n",
			paint(options, text.FgHiBlue, "Total:"),
			paint(options, text.FgHiWhite, fmt.Sprint(len(l.rows))),
			paint(options, text.FgHiBlue, l.noun))
		return err
	}
	return nil
}

func paint(options Options, color text.Color, s string) string {
	if !options.Color {
		return s
	}
	return color.Sprint(s)
}

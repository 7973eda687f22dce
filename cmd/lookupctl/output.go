package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/couchcryptid/weather-lookup-service/internal/domain"
)

// printer handles table or JSON output.
type printer struct {
	format string
	w      io.Writer
}

func (p *printer) json(v any) error {
	enc := json.NewEncoder(p.w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// table writes rows using tabwriter. header is the first row.
func (p *printer) table(header []string, rows [][]string) {
	tw := tabwriter.NewWriter(p.w, 0, 4, 2, ' ', 0)
	writeRow(tw, header)
	for _, row := range rows {
		writeRow(tw, row)
	}
	_ = tw.Flush()
}

func writeRow(w io.Writer, cols []string) {
	for i, col := range cols {
		if i > 0 {
			_, _ = fmt.Fprint(w, "\t")
		}
		_, _ = fmt.Fprint(w, col)
	}
	_, _ = fmt.Fprintln(w)
}

// vars prints a variable map sorted by key.
func (p *printer) vars(vars map[string]string) error {
	if p.format == "json" {
		return p.json(vars)
	}
	keys := make([]string, 0, len(vars))
	for k := range vars {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	rows := make([][]string, 0, len(keys))
	for _, k := range keys {
		rows = append(rows, []string{k, vars[k]})
	}
	p.table([]string{"KEY", "VALUE"}, rows)
	return nil
}

// event prints a lookup summary followed by its variables.
func (p *printer) event(ev domain.LookupEvent) error {
	if p.format == "json" {
		return p.json(ev)
	}
	p.table([]string{"FILE", "MODIFIED", "ISSUED"}, [][]string{{
		ev.Filename, ev.Timestamp.Format(time.RFC3339), ev.IssuedAt.Format(time.RFC3339),
	}})
	_, _ = fmt.Fprintln(p.w)
	return p.vars(ev.Vars)
}

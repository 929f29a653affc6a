package core

import (
	"fmt"
	"io"
	"iter"
	"strings"
	"text/tabwriter"
)

// Lines yields one line per record with the fields separated by single
// spaces, in export column order. The sequence reads rs lazily and can be
// ranged over any number of times.
func Lines(rs ResultSet) iter.Seq[string] {
	return func(yield func(string) bool) {
		for _, rec := range rs {
			if !yield(strings.Join(rec.Fields(), " ")) {
				return
			}
		}
	}
}

// WriteLines writes the Lines of rs to w, newline terminated.
func WriteLines(w io.Writer, rs ResultSet) error {
	for line := range Lines(rs) {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}

// WriteTable renders rs as an aligned text table with the export headers.
func WriteTable(w io.Writer, rs ResultSet) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	if _, err := fmt.Fprintln(tw, strings.Join(ExportHeaders, "\t")); err != nil {
		return err
	}
	for _, rec := range rs {
		if _, err := fmt.Fprintln(tw, strings.Join(rec.Fields(), "\t")); err != nil {
			return err
		}
	}
	return tw.Flush()
}

package grid

import (
	"encoding/csv"
	"fmt"
	"io"
)

// WriteCSV writes the grid's text matrix as CSV. Spanned text appears once, at
// the span's anchor.
func WriteCSV(w io.Writer, g *Grid) error {
	cw := csv.NewWriter(w)
	if err := cw.WriteAll(g.Records()); err != nil {
		return fmt.Errorf("writing csv: %w", err)
	}
	return nil
}

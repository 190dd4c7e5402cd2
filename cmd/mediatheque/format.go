package main

import (
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/mediatheque/mediatheque/internal/faults"
)

const timePrecision = 10 * time.Millisecond

// newTable returns a writer aligning tab-separated columns. Call
// Flush when every row is written.
func newTable() *tabwriter.Writer {
	return tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
}

// parseID parses a positional numeric id argument.
func parseID(arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id <= 0 {
		return 0, faults.InvalidInput(fmt.Sprintf("%q is not a valid id", arg))
	}
	return id, nil
}

// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package report

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"
)

// table does layout of text tables. Columns are separated by two
// spaces; columns marked in right are right-aligned.
type table struct {
	rows  [][]string
	right []bool
}

func (t *table) row(cells ...string) {
	t.rows = append(t.rows, cells)
}

func (t *table) format(w io.Writer) error {
	var widths []int
	for _, row := range t.rows {
		for i, cell := range row {
			if i >= len(widths) {
				widths = append(widths, 0)
			}
			widths[i] = max(widths[i], utf8.RuneCountInString(cell))
		}
	}

	bw := bufio.NewWriter(w)
	var line strings.Builder
	for _, row := range t.rows {
		line.Reset()
		for i, cell := range row {
			if i > 0 {
				line.WriteString("  ")
			}
			pad := widths[i] - utf8.RuneCountInString(cell)
			if i < len(t.right) && t.right[i] {
				fmt.Fprintf(&line, "%*s%s", pad, "", cell)
			} else {
				fmt.Fprintf(&line, "%s%*s", cell, pad, "")
			}
		}
		bw.WriteString(strings.TrimRight(line.String(), " "))
		bw.WriteByte('\n')
	}
	return bw.Flush()
}

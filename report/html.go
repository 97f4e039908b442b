// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package report

import (
	"io"

	"github.com/google/safehtml/template"
)

var htmlTemplate = template.Must(template.New("").Parse(`<table class="cyclestat">
<caption>{{.Layout}}</caption>
<thead>
<tr>{{range .Header}}<th>{{.}}</th>{{end}}</tr>
</thead>
<tbody>
{{range .Rows -}}
<tr>{{range .}}<td>{{.}}</td>{{end}}</tr>
{{end -}}
</tbody>
</table>
`))

// HTML writes s to w as an HTML table.
func (s *Summary) HTML(w io.Writer) error {
	data := struct {
		Layout string
		Header []string
		Rows   [][]string
	}{Layout: s.Layout.String(), Header: s.header()}
	for _, r := range s.Rows {
		data.Rows = append(data.Rows, s.cells(r))
	}
	return htmlTemplate.Execute(w, data)
}

// format.go - rendering of error return traces.
//
// Output shape:
//
//	error return trace:
//	0: <tag> at <file>:<line>:<column> in <module>
//	1: ...
//	<blank line>
//
// Events are numbered from 0, oldest first. Rendering never mutates the
// trace. Write errors from the destination are returned; formatting itself
// cannot fail.
package ertrace

import (
	"bufio"
	"fmt"
	"io"
	"slices"
	"strconv"

	"github.com/fatih/color"
)

// Header is the first line of every rendered trace.
const Header = "error return trace:"

// RenderOptions tweaks the rendered text.
type RenderOptions struct {
	// Color highlights indices and tags with ANSI escapes.
	Color bool
}

// Colors are forced on: callers decide via RenderOptions.Color, not the
// package-wide tty detection in fatih/color.
var (
	indexColor = forced(color.New(color.FgHiBlack))
	tagColor   = forced(color.New(color.FgRed, color.Bold))
	fileColor  = forced(color.New(color.FgCyan))
)

func forced(c *color.Color) *color.Color {
	c.EnableColor()
	return c
}

// Render writes t to w in the plain text format.
func Render(w io.Writer, t *Trace) error {
	return RenderWith(w, t, RenderOptions{})
}

// RenderWith writes t to w using opts.
func RenderWith(w io.Writer, t *Trace, opts RenderOptions) error {
	bw := bufio.NewWriter(w)
	writeHeader(bw)
	for i, loc := range t.All() {
		writeLine(bw, i, loc, opts)
	}
	_ = bw.WriteByte('\n')
	return bw.Flush()
}

// Lines returns the numbered event lines of t without header or trailer.
func Lines(t *Trace) []string {
	out := make([]string, 0, t.Len())
	for i, loc := range t.All() {
		out = append(out, FormatLine(i, loc))
	}
	return out
}

// FormatLine formats one event line, "<i>: <tag> at <file>:<line>:<col> in <module>".
func FormatLine(i int, loc *Location) string {
	return strconv.Itoa(i) + ": " + loc.String()
}

// renderReversed renders a chain whose links point from newer to older
// events, starting at its newest node. The cause links are walked and
// buffered, then printed oldest first so numbering matches Render.
// At most limit nodes are visited; limit <= 0 means the pool's size bound.
func renderReversed(w io.Writer, p Pool, newest Ref, limit int) error {
	if limit <= 0 {
		limit = maxSlabNodes
	}
	var locs []*Location
	for r := newest; !r.IsZero() && len(locs) < limit; {
		nd := p.node(r)
		locs = append(locs, nd.loc.Load())
		r = Ref(nd.next.Load())
	}
	slices.Reverse(locs)

	bw := bufio.NewWriter(w)
	writeHeader(bw)
	for i, loc := range locs {
		writeLine(bw, i, loc, RenderOptions{})
	}
	_ = bw.WriteByte('\n')
	return bw.Flush()
}

// WriteTo implements io.WriterTo with the plain format.
func (t *Trace) WriteTo(w io.Writer) (int64, error) {
	cw := &countingWriter{w: w}
	err := Render(cw, t)
	return cw.n, err
}

func writeHeader(bw *bufio.Writer) {
	_, _ = bw.WriteString(Header)
	_ = bw.WriteByte('\n')
}

func writeLine(bw *bufio.Writer, i int, loc *Location, opts RenderOptions) {
	if !opts.Color {
		_, _ = bw.WriteString(FormatLine(i, loc))
		_ = bw.WriteByte('\n')
		return
	}
	if loc == nil {
		loc = &Location{Tag: "?", File: "?", ModulePath: "?"}
	}
	_, _ = fmt.Fprintf(bw, "%s %s at %s in %s\n",
		indexColor.Sprintf("%d:", i),
		tagColor.Sprint(loc.Tag),
		fileColor.Sprintf("%s:%d:%d", loc.File, loc.Line, loc.Column),
		loc.ModulePath,
	)
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}

var _ io.WriterTo = (*Trace)(nil)

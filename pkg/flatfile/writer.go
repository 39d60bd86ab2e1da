package flatfile

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/crystal-mush/arxscript/pkg/script"
)

// WriteScript writes a program back out as script text. Parsing the output
// yields a program with the same statements, labels and event entries.
func WriteScript(w io.Writer, prog *script.Program) error {
	wr := &writer{w: w}

	labels := make(map[int][]string)
	for _, name := range prog.Labels() {
		off, _ := prog.Label(name)
		labels[off] = append(labels[off], name)
	}
	events := make(map[int][]string)
	for _, name := range prog.Events() {
		off, _ := prog.Event(name)
		events[off] = append(events[off], name)
	}

	depth := 0
	owned := false
	for i := 0; i <= prog.Len(); i++ {
		for _, name := range events[i] {
			if depth == 0 {
				wr.writef("\n")
			}
			wr.writef("%son %s\n", indent(depth), name)
		}
		for _, name := range labels[i] {
			wr.writef("%s>>%s\n", indent(depth), name)
		}
		if i == prog.Len() {
			break
		}

		st := prog.At(i)
		extra := 0
		if owned && st.Kind != script.StmtOpen {
			extra = 1
		}
		switch st.Kind {
		case script.StmtOpen:
			wr.writef("%s{\n", indent(depth))
			depth++
		case script.StmtClose:
			if depth > 0 {
				depth--
			}
			wr.writef("%s}\n", indent(depth))
		default:
			wr.writef("%s%s\n", indent(depth+extra), formatStatement(st))
		}
		owned = st.Owns() && st.Kind == script.StmtCommand
	}
	return wr.err
}

// SaveScript writes a program to a file path.
func SaveScript(path string, prog *script.Program) error {
	tmpPath := path + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}

	if err := WriteScript(f, prog); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return err
	}

	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close temp file: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(path)
		if err := os.Rename(tmpPath, path); err != nil {
			return fmt.Errorf("rename temp to final: %w", err)
		}
	}
	return nil
}

type writer struct {
	w   io.Writer
	err error
}

func (wr *writer) writef(format string, args ...any) {
	if wr.err != nil {
		return
	}
	_, wr.err = fmt.Fprintf(wr.w, format, args...)
}

func formatStatement(st script.Statement) string {
	if st.Command == "if" && st.Args != "" {
		return "if (" + st.Args + ")"
	}
	return st.String()
}

func indent(depth int) string {
	return strings.Repeat("  ", depth)
}

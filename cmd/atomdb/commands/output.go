package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/teranos/atomdb/atom"
	"github.com/teranos/atomdb/errors"
	"github.com/teranos/atomdb/iterator"
)

// Output formats
const (
	FormatText = "text"
	FormatJSON = "json"
)

func checkFormat(f string) error {
	if f != FormatText && f != FormatJSON {
		return errors.Newf("unsupported format: %s (supported: text, json)", f)
	}
	return nil
}

// formatDeep renders an expanded atom as Type:name or Type(targets...).
func formatDeep(d *atom.Deep) string {
	if d == nil {
		return "<nil>"
	}
	if d.IsNode() {
		return d.Type + ":" + d.Name
	}
	parts := make([]string, len(d.Targets))
	for i, t := range d.Targets {
		parts[i] = formatDeep(t)
	}
	return d.Type + "(" + strings.Join(parts, ", ") + ")"
}

func formatSubgraph(s iterator.Subgraph) string {
	if s.Atom != nil {
		return formatDeep(s.Atom)
	}
	parts := make([]string, len(s.Parts))
	for i, p := range s.Parts {
		parts[i] = formatSubgraph(p)
	}
	return strings.Join(parts, " & ")
}

type answerJSON struct {
	Bindings map[string]string `json:"bindings"`
	Subgraph iterator.Subgraph `json:"subgraph"`
}

// writeAnswer prints one answer. JSON output is one object per line.
func writeAnswer(w io.Writer, format string, n int, a iterator.Answer) error {
	if format == FormatJSON {
		return json.NewEncoder(w).Encode(answerJSON{Bindings: a.Bindings(), Subgraph: a.Subgraph})
	}
	_, err := fmt.Fprintf(w, "%d. %s %s\n", n, a.Assignment, formatSubgraph(a.Subgraph))
	return err
}

func writeAtom(w io.Writer, format string, a *atom.Atom) error {
	if format == FormatJSON {
		return json.NewEncoder(w).Encode(a)
	}
	label := a.Type + ":" + a.Name
	if a.IsLink() {
		label = fmt.Sprintf("%s/%d", a.Type, a.Arity())
	}
	_, err := fmt.Fprintf(w, "%s  %s\n", a.Handle, label)
	return err
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

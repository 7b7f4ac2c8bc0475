// Copyright © 2024 The ELPS authors

package repl

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	parsec "github.com/prataprc/goparsec"

	"github.com/luthersystems/typecov/diagnostic"
)

// ErrUnknownCommand is returned for a line that does not start with a
// known command.
var ErrUnknownCommand = errors.New("unknown command")

// Commands lists the command keywords in the order they are documented.
var Commands = []string{
	"enable", "disable",
	"result", "result-null",
	"edit", "save",
	"pane-change", "not-text-editor", "no-provider", "provider-error",
}

// Command is one parsed console line.
type Command struct {
	Name       string
	Path       string
	Percentage float64
	Ranges     []diagnostic.Range
}

// ParseError describes a line that could not be parsed.
type ParseError struct {
	Line int
	Col  int
	Text string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%d:%d: %v: %s", e.Line, e.Col, e.Err, e.Text)
}

func (e *ParseError) Unwrap() error { return e.Err }

var lineParser = newLineParser()

// ParseLine parses a single command. Blank lines and lines starting with
// '#' yield a nil command.
func ParseLine(lineno int, text string) (*Command, error) {
	line := strings.TrimSpace(text)
	if line == "" || strings.HasPrefix(line, "#") {
		return nil, nil
	}
	root, _ := lineParser(parsec.NewScanner([]byte(line)))
	if cmd, ok := root.(*Command); ok {
		return cmd, nil
	}

	word, _, _ := strings.Cut(line, " ")
	for _, c := range Commands {
		if c == word {
			return nil, &ParseError{Line: lineno, Col: len(word) + 2, Text: line,
				Err: fmt.Errorf("malformed arguments to %s", word)}
		}
	}
	return nil, &ParseError{Line: lineno, Col: 1, Text: line, Err: ErrUnknownCommand}
}

func newLineParser() parsec.Parser {
	number := parsec.Token(`[0-9]+(?:\.[0-9]+)?`, "NUMBER")
	integer := parsec.Token(`[0-9]+`, "INT")
	path := parsec.Token(`[^\s()]+`, "PATH")
	openP := parsec.Atom("(", "OPENP")
	closeP := parsec.Atom(")", "CLOSEP")
	comma := parsec.Atom(",", "COMMA")
	dash := parsec.Atom("-", "DASH")

	position := parsec.And(positionNode, openP, integer, comma, integer, closeP)
	rng := parsec.And(rangeNode, position, dash, position)
	ranges := parsec.Kleene(rangesNode, rng)

	simple := make([]any, 0, len(Commands))
	for _, c := range Commands {
		if c == "result" || c == "result-null" {
			continue
		}
		simple = append(simple, keyword(c))
	}
	simpleCmd := parsec.And(simpleNode, parsec.OrdChoice(firstNode, simple...), parsec.End())
	nullCmd := parsec.And(nullNode, keyword("result-null"), path, parsec.End())
	resultCmd := parsec.And(resultNode, keyword("result"), path, number, ranges, parsec.End())

	return parsec.OrdChoice(firstNode, nullCmd, resultCmd, simpleCmd)
}

// keyword matches name as a whole word.
func keyword(name string) parsec.Parser {
	return parsec.Token(regexp.QuoteMeta(name)+`\b`, strings.ToUpper(name))
}

func firstNode(nodes []parsec.ParsecNode) parsec.ParsecNode {
	return nodes[0]
}

func terminal(n parsec.ParsecNode) string {
	if t, ok := n.(*parsec.Terminal); ok {
		return t.Value
	}
	return ""
}

func positionNode(nodes []parsec.ParsecNode) parsec.ParsecNode {
	line, err1 := strconv.Atoi(terminal(nodes[1]))
	col, err2 := strconv.Atoi(terminal(nodes[3]))
	if err1 != nil || err2 != nil {
		return nil
	}
	return diagnostic.Position{Line: line, Column: col}
}

func rangeNode(nodes []parsec.ParsecNode) parsec.ParsecNode {
	start, ok1 := nodes[0].(diagnostic.Position)
	end, ok2 := nodes[2].(diagnostic.Position)
	if !ok1 || !ok2 {
		return nil
	}
	return diagnostic.Range{Start: start, End: end}
}

func rangesNode(nodes []parsec.ParsecNode) parsec.ParsecNode {
	ranges := make([]diagnostic.Range, 0, len(nodes))
	for _, n := range nodes {
		if r, ok := n.(diagnostic.Range); ok {
			ranges = append(ranges, r)
		}
	}
	return ranges
}

func simpleNode(nodes []parsec.ParsecNode) parsec.ParsecNode {
	return &Command{Name: terminal(nodes[0])}
}

func nullNode(nodes []parsec.ParsecNode) parsec.ParsecNode {
	return &Command{Name: "result-null", Path: terminal(nodes[1])}
}

func resultNode(nodes []parsec.ParsecNode) parsec.ParsecNode {
	pct, err := strconv.ParseFloat(terminal(nodes[2]), 64)
	if err != nil {
		return nil
	}
	ranges, _ := nodes[3].([]diagnostic.Range)
	return &Command{Name: "result", Path: terminal(nodes[1]), Percentage: pct, Ranges: ranges}
}

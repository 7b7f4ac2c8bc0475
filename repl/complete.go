// Copyright © 2018 The ELPS authors

package repl

import (
	"sort"
	"strings"
)

// commandCompleter implements readline.AutoCompleter for the first word of
// a console line.
type commandCompleter struct {
	words []string
}

func newCommandCompleter() *commandCompleter {
	words := append([]string{"help", "quit"}, Commands...)
	sort.Strings(words)
	return &commandCompleter{words: words}
}

func (c *commandCompleter) Do(line []rune, pos int) ([][]rune, int) {
	prefix := string(line[:pos])
	// Only the command keyword is completed.
	if strings.ContainsAny(prefix, " \t") {
		return nil, 0
	}
	prefix = strings.TrimLeft(prefix, " \t")

	var result [][]rune
	for _, w := range c.words {
		if strings.HasPrefix(w, prefix) && w != prefix {
			result = append(result, []rune(w[len(prefix):]))
		}
	}
	if len(result) == 0 {
		return nil, 0
	}
	return result, len(prefix)
}

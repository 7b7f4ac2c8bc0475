// Copyright © 2018 The ELPS authors

package repl

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCommandCompleter(t *testing.T) {
	c := newCommandCompleter()

	// "re" completes both result commands.
	candidates, offset := c.Do([]rune("re"), 2)
	assert.Equal(t, 2, offset)
	assert.ElementsMatch(t, [][]rune{[]rune("sult"), []rune("sult-null")}, candidates)

	candidates, offset = c.Do([]rune("no"), 2)
	assert.Equal(t, 2, offset)
	assert.Len(t, candidates, 2)

	// An exact match offers only longer keywords.
	candidates, _ = c.Do([]rune("result"), 6)
	assert.Equal(t, [][]rune{[]rune("-null")}, candidates)

	// Arguments are not completed.
	candidates, _ = c.Do([]rune("result /a"), 9)
	assert.Empty(t, candidates)

	candidates, _ = c.Do([]rune("zzz"), 3)
	assert.Empty(t, candidates)
}

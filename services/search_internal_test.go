package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMatchesSearch(t *testing.T) {
	assert.True(t, matchesSearch("", "anything"))
	assert.True(t, matchesSearch(foldForSearch("ALI"), "Alice"))
	assert.True(t, matchesSearch(foldForSearch("muller"), "bob", "Müller@mail.de"))
	assert.True(t, matchesSearch(foldForSearch("STRASSE"), "straße"))
	assert.False(t, matchesSearch(foldForSearch("carol"), "alice", "bob"))
}

package utils

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGravatarURLNormalizesEmail(t *testing.T) {
	a := GravatarURL("  User@Example.com ", 0)
	b := GravatarURL("user@example.com", 200)
	assert.Equal(t, a, b)
	assert.True(t, strings.HasPrefix(a, "https://www.gravatar.com/avatar/"))
	assert.Contains(t, a, "?s=200&d=mp")

	assert.Contains(t, GravatarURL("user@example.com", 64), "?s=64&")
}

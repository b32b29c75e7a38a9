package utils

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateVerificationCode(t *testing.T) {
	pattern := regexp.MustCompile(`^[0-9]{6}$`)
	seen := make(map[string]struct{})

	for i := 0; i < 50; i++ {
		code, err := GenerateVerificationCode(6)
		require.NoError(t, err)
		assert.Regexp(t, pattern, code)
		seen[code] = struct{}{}
	}

	assert.Greater(t, len(seen), 1)
}

func TestGenerateVerificationCode_InvalidLength(t *testing.T) {
	_, err := GenerateVerificationCode(0)
	assert.Error(t, err)
}

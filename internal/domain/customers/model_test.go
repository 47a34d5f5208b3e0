package customers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBadgeCodeRoundTrip(t *testing.T) {
	code := FormatBadgeCode(42, "Aysel Mammadova")
	assert.Equal(t, "ID-42-NAME-Aysel Mammadova", code)

	id, err := ParseBadgeCode(code)
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)
}

func TestParseBadgeCodeTolerantOfWhitespace(t *testing.T) {
	id, err := ParseBadgeCode("  ID-7-NAME-X \n")
	require.NoError(t, err)
	assert.Equal(t, int64(7), id)
}

func TestParseBadgeCodeRejectsGarbage(t *testing.T) {
	for _, code := range []string{
		"",
		"42",
		"NAME-Foo-ID-42",
		"ID--NAME-Foo",
		"ID-abc-NAME-Foo",
		"ID-0-NAME-Foo",
		"ID-42-Foo",
	} {
		_, err := ParseBadgeCode(code)
		assert.ErrorIs(t, err, ErrBadBadgeCode, "code %q", code)
	}
}

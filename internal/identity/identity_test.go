package identity

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalizePhoneFormats(t *testing.T) {
	// All spellings of the same number canonicalize identically.
	inputs := []string{
		"+52 55 1234 5678",
		"+52    55 1234 5678",
		"\u200e+52 55 1234 5678",
		"+525512345678",
	}
	for _, in := range inputs {
		require.Equal(t, "525512345678", Normalize(in), "input %q", in)
	}
}

func TestNormalizeNickname(t *testing.T) {
	require.Equal(t, "~Currio", Normalize("~ Currio"))
	require.Equal(t, "~Currio", Normalize("~\u202fCurrio"))
	require.Equal(t, "~Currio", Normalize("\u200e~Currio"))
}

func TestNormalizePlainName(t *testing.T) {
	require.Equal(t, "Juan", Normalize(" Juan "))
	require.Equal(t, "Juan", Normalize("\u200eJuan"))
}

func TestHashDeterministic(t *testing.T) {
	h1 := Hash("+52 55 1234 5678")
	h2 := Hash("+525512345678")
	require.Equal(t, h1, h2)
	require.Len(t, h1, HashLength)
}

func TestHashDistinctIdentifiers(t *testing.T) {
	require.NotEqual(t, Hash("+52 55 1234 5678"), Hash("+52 55 1234 5679"))
	require.NotEqual(t, Hash("~Currio"), Hash("Currio"))
}

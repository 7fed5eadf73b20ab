package validation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValidRoleName(t *testing.T) {
	for _, v := range []string{"a", "USER", "ADMIN", "role:read", "ops_team-2", "a.b", "a" + strings.Repeat("x", 62) + "b"} {
		require.True(t, ValidRoleName(v), "expected valid: %q", v)
	}
	for _, v := range []string{"", ":lead", "trail:", "bad space", "semi;colon", "ñandú", strings.Repeat("a", 65)} {
		require.False(t, ValidRoleName(v), "expected invalid: %q", v)
	}
}

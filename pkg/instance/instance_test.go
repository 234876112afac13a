package instance

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestResolvePrefersExplicitID(t *testing.T) {
	env := map[string]string{EnvID: " tab-1 ", "DYNO": "web.1"}
	require.Equal(t, "tab-1", resolve(func(k string) string { return env[k] }))
}

func TestResolveFallsBackToDyno(t *testing.T) {
	env := map[string]string{"DYNO": "web.1"}
	require.Equal(t, "web.1", resolve(func(k string) string { return env[k] }))
}

func TestResolveGeneratesUniqueIDs(t *testing.T) {
	empty := func(string) string { return "" }
	a, b := resolve(empty), resolve(empty)
	require.True(t, strings.HasPrefix(a, "sf-"))
	require.NotEqual(t, a, b)
}

func TestGetIDIsStable(t *testing.T) {
	require.Equal(t, GetID(), GetID())
}

package shared

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestActorContextRoundTrip(t *testing.T) {
	_, ok := ActorFromContext(context.Background())
	require.False(t, ok, "empty context carries no actor")

	want := Actor{ID: 7, Role: RoleCollegeAdmin}
	ctx := ContextWithActor(context.Background(), want)
	got, ok := ActorFromContext(ctx)
	require.True(t, ok)
	require.Equal(t, want, got)
}

func TestRoleIsValid(t *testing.T) {
	require.True(t, RoleInspector.IsValid())
	require.False(t, Role("janitor").IsValid())
}

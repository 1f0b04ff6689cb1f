package shared

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPageFromOffset(t *testing.T) {
	p := PageFromOffset(20, 40, 95)
	require.Equal(t, 3, p.Page)
	require.Equal(t, 20, p.PerPage)
	require.Equal(t, 95, p.Total)
	require.Equal(t, 5, p.TotalPages)

	// Defaults guard bad query input.
	p = PageFromOffset(0, -5, 7)
	require.Equal(t, 1, p.Page)
	require.Equal(t, 20, p.PerPage)
	require.Equal(t, 1, p.TotalPages)
}

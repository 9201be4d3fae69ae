package export

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCSVExporterRender(t *testing.T) {
	out, err := NewCSVExporter().Render(Dataset{
		Headers: []string{"uuid", "site", "filename"},
		Rows: []map[string]string{
			{"uuid": "u1", "site": "mace-head", "filename": "a,b.nc"},
			{"uuid": "u2", "site": "bucharest"},
		},
	})
	require.NoError(t, err)
	require.Equal(t, "uuid,site,filename\nu1,mace-head,\"a,b.nc\"\nu2,bucharest,\n", string(out))
}

func TestCSVExporterRequiresHeaders(t *testing.T) {
	_, err := NewCSVExporter().Render(Dataset{})
	require.Error(t, err)
}

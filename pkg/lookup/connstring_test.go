package lookup_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openfroyo/qlikcloud/pkg/lookup"
)

func TestConnStringProperties(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    map[string]string
		wantErr bool
	}{
		{
			name: "custom connect",
			in:   `CUSTOM CONNECT TO "provider=QvOdbcConnectorPackage.exe;driver=postgres;host=db;port=5432;"`,
			want: map[string]string{
				"provider": "QvOdbcConnectorPackage.exe",
				"driver":   "postgres",
				"host":     "db",
				"port":     "5432",
			},
		},
		{
			name: "value containing equals",
			in:   `CUSTOM CONNECT TO "token=abc==;"`,
			want: map[string]string{"token": "abc=="},
		},
		{name: "no quotes", in: "CUSTOM CONNECT TO provider=x", wantErr: true},
		{name: "missing value", in: `CUSTOM CONNECT TO "provider"`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := lookup.ConnStringProperties(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestConnStringProperty(t *testing.T) {
	stmt := `CUSTOM CONNECT TO "provider=postgres;host=db"`

	host, err := lookup.ConnStringProperty(stmt, "host")
	require.NoError(t, err)
	assert.Equal(t, "db", host)

	_, err = lookup.ConnStringProperty(stmt, "password")
	assert.EqualError(t, err, "unknown property component: password")
}

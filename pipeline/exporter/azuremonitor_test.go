package exporter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAzureConnectionString(t *testing.T) {
	conn, err := parseAzureConnectionString(
		"InstrumentationKey=00000000-0000-0000-0000-000000000000;IngestionEndpoint=https://westeurope-5.in.applicationinsights.azure.com/",
	)

	require.NoError(t, err)
	assert.Equal(t, "00000000-0000-0000-0000-000000000000", conn.instrumentationKey)
	assert.Equal(t, "westeurope-5.in.applicationinsights.azure.com", conn.ingestionEndpoint)
}

func TestParseAzureConnectionStringIgnoresExtraSegments(t *testing.T) {
	conn, err := parseAzureConnectionString(
		"InstrumentationKey=abc; IngestionEndpoint=http://localhost:4317 ;LiveEndpoint=https://live.example.com/;",
	)

	require.NoError(t, err)
	assert.Equal(t, "abc", conn.instrumentationKey)
	assert.Equal(t, "localhost:4317", conn.ingestionEndpoint)
}

func TestParseAzureConnectionStringKeysAreCaseInsensitive(t *testing.T) {
	conn, err := parseAzureConnectionString("instrumentationkey=abc;ingestionendpoint=host:4317")

	require.NoError(t, err)
	assert.Equal(t, "abc", conn.instrumentationKey)
	assert.Equal(t, "host:4317", conn.ingestionEndpoint)
}

func TestParseAzureConnectionStringErrors(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want string
	}{
		{"empty", "", "requires a connection_string"},
		{"missing key", "IngestionEndpoint=https://host/", "missing InstrumentationKey"},
		{"missing endpoint", "InstrumentationKey=abc", "missing IngestionEndpoint"},
		{"malformed segment", "InstrumentationKey=abc;garbage", `malformed connection string segment "garbage"`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := parseAzureConnectionString(tc.raw)
			require.Error(t, err)
			assert.ErrorContains(t, err, tc.want)
		})
	}
}

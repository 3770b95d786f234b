package transform_test

import (
	"errors"
	"testing"

	"github.com/getherald/herald/internal/model"
	"github.com/getherald/herald/internal/transform"

	"github.com/stretchr/testify/require"
)

func geoipRequest(value string) model.TransformRequest {
	return model.TransformRequest{
		TenantID:  "acme",
		Transform: "geoip",
		Entity:    model.Entity{Kind: model.KindIP, Value: value},
	}
}

func TestGeoipDataset(t *testing.T) {
	t.Parallel()
	geoip := transform.NewGeoip(model.Geoip{Synthetic: true})
	rec := &recorder{}

	result, err := geoip.Run(t.Context(), geoipRequest("8.8.8.8"), rec.fn)
	require.NoError(t, err)

	loc, ok := result.(transform.GeoLocation)
	require.True(t, ok)
	require.Equal(t, "8.8.8.8", loc.IP)
	require.Equal(t, "US", loc.CountryCode)
	require.Equal(t, "Mountain View", loc.City)
	require.Equal(t, "dataset", loc.Source)
	rec.requireAscending(t)
}

func TestGeoipSynthetic(t *testing.T) {
	t.Parallel()
	geoip := transform.NewGeoip(model.Geoip{Synthetic: true})

	first, err := geoip.Run(t.Context(), geoipRequest("198.51.100.7"), (&recorder{}).fn)
	require.NoError(t, err)
	second, err := geoip.Run(t.Context(), geoipRequest("198.51.100.7"), (&recorder{}).fn)
	require.NoError(t, err)

	// Derived locations are stable per address.
	require.Equal(t, first, second)

	loc := first.(transform.GeoLocation)
	require.Equal(t, "synthetic", loc.Source)
	require.NotEmpty(t, loc.CountryCode)
	require.GreaterOrEqual(t, loc.Latitude, -60.0)
	require.Less(t, loc.Latitude, 70.0)
	require.GreaterOrEqual(t, loc.Longitude, -180.0)
	require.Less(t, loc.Longitude, 180.0)
}

func TestGeoipSyntheticDisabled(t *testing.T) {
	t.Parallel()
	geoip := transform.NewGeoip(model.Geoip{Synthetic: false})

	_, err := geoip.Run(t.Context(), geoipRequest("198.51.100.7"), (&recorder{}).fn)
	var failure *model.TransformError
	require.ErrorAs(t, err, &failure)
	require.Equal(t, "NO_DATA", failure.Code)
}

func TestGeoipInvalidAddress(t *testing.T) {
	t.Parallel()
	geoip := transform.NewGeoip(model.Geoip{Synthetic: true})

	for _, value := range []string{"", "not-an-ip", "999.0.0.1", "example.com"} {
		_, err := geoip.Run(t.Context(), geoipRequest(value), (&recorder{}).fn)
		var failure *model.TransformError
		require.ErrorAs(t, err, &failure, "value %q", value)
		require.Equal(t, "INVALID_IP", failure.Code)
	}
}

func TestGeoipProgressErrorStopsRun(t *testing.T) {
	t.Parallel()
	geoip := transform.NewGeoip(model.Geoip{Synthetic: true})
	sentinel := errors.New("job gone")

	_, err := geoip.Run(t.Context(), geoipRequest("8.8.8.8"), (&recorder{err: sentinel}).fn)
	require.ErrorIs(t, err, sentinel)
}

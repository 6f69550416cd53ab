package weather

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDisabledServiceReturnsMildDefault(t *testing.T) {
	svc := NewService(&Config{})
	assert.False(t, svc.IsEnabled())

	conditions, err := svc.Current(context.Background(), "Shanghai")
	require.NoError(t, err)
	assert.Equal(t, "Shanghai", conditions.City)
	assert.Equal(t, "clear", conditions.Condition)
	assert.InDelta(t, 20, conditions.TemperatureC, 0.01)
}

func TestCurrentParsesProviderResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/weather", r.URL.Path)
		assert.Equal(t, "Oslo", r.URL.Query().Get("q"))
		assert.Equal(t, "test-key", r.URL.Query().Get("appid"))
		assert.Equal(t, "metric", r.URL.Query().Get("units"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"weather":[{"main":"Snow"}],"main":{"temp":-3.5,"humidity":80},"name":"Oslo"}`))
	}))
	defer server.Close()

	svc := NewService(&Config{APIKey: "test-key", BaseURL: server.URL})
	require.True(t, svc.IsEnabled())

	conditions, err := svc.Current(context.Background(), "Oslo")
	require.NoError(t, err)
	assert.Equal(t, "Oslo", conditions.City)
	assert.Equal(t, "Snow", conditions.Condition)
	assert.InDelta(t, -3.5, conditions.TemperatureC, 0.01)
	assert.Equal(t, 80, conditions.Humidity)
}

func TestCurrentSurfacesProviderErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"message":"city not found"}`, http.StatusNotFound)
	}))
	defer server.Close()

	svc := NewService(&Config{APIKey: "test-key", BaseURL: server.URL})

	_, err := svc.Current(context.Background(), "Nowhere")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
}

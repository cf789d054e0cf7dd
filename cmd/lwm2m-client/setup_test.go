package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mash-protocol/lwm2m-go/cmd/lwm2m-client/interactive"
	"github.com/mash-protocol/lwm2m-go/pkg/client"
	"github.com/mash-protocol/lwm2m-go/pkg/config"
	"github.com/mash-protocol/lwm2m-go/pkg/model"
	"github.com/mash-protocol/lwm2m-go/pkg/server"
)

func TestBuildDefault(t *testing.T) {
	s, err := build(config.Default(), interactive.NewLoopback(nil), nil, nil)
	require.NoError(t, err)

	assert.Equal(t, model.ServerID(101), s.server)
	require.NotNil(t, s.objects.Device)
	require.NotNil(t, s.objects.Temperature)
	assert.Equal(t, "1.0", s.objects.Device.FirmwareVersion)

	srv, err := s.client.Server(101)
	require.NoError(t, err)
	assert.Equal(t, server.StatusRegistered, srv.Status)

	var ids []model.ID
	err = s.client.View(func(catalog *model.Catalog, _ client.ReadFunc) error {
		for _, obj := range catalog.Objects() {
			ids = append(ids, obj.ID())
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []model.ID{3, 3303}, ids)
}

func TestBuildFromFile(t *testing.T) {
	cfg, err := config.Parse([]byte(`
servers:
  - short_id: 7
    status: unregistered
  - short_id: 8
    default_pmax: 30
objects:
  temperature:
    units: Far
    sensors:
      3: 70
      1: 68
`))
	require.NoError(t, err)

	s, err := build(cfg, interactive.NewLoopback(nil), nil, nil)
	require.NoError(t, err)
	assert.Equal(t, model.ServerID(7), s.server)

	srv, err := s.client.Server(7)
	require.NoError(t, err)
	assert.Equal(t, server.StatusUnregistered, srv.Status)

	srv, err = s.client.Server(8)
	require.NoError(t, err)
	assert.Equal(t, uint32(30), srv.DefaultMaxPeriod)

	v, ok := s.objects.Temperature.Value(3)
	require.True(t, ok)
	assert.Equal(t, 70.0, v)
}

func TestBuildWithoutTemperature(t *testing.T) {
	cfg := config.Default()
	cfg.Objects.Temperature = nil
	s, err := build(cfg, interactive.NewLoopback(nil), nil, nil)
	require.NoError(t, err)
	assert.Nil(t, s.objects.Temperature)
}

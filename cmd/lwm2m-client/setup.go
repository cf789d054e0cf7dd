package main

import (
	"fmt"
	"log/slog"
	"slices"

	"github.com/mash-protocol/lwm2m-go/cmd/lwm2m-client/interactive"
	"github.com/mash-protocol/lwm2m-go/pkg/client"
	"github.com/mash-protocol/lwm2m-go/pkg/config"
	"github.com/mash-protocol/lwm2m-go/pkg/log"
	"github.com/mash-protocol/lwm2m-go/pkg/model"
	"github.com/mash-protocol/lwm2m-go/pkg/objects"
	"github.com/mash-protocol/lwm2m-go/pkg/observe"
)

// setup is the client assembled from a configuration.
type setup struct {
	client  *client.Client
	objects interactive.Objects

	// server is the first configured Server, used by console commands
	// without a server prefix.
	server model.ServerID
}

// build creates the client, registers the reference Objects and the
// Servers of cfg.
func build(cfg *config.Config, sender observe.Sender, logger *slog.Logger, protocol log.Logger) (*setup, error) {
	clientCfg, err := cfg.ClientConfig()
	if err != nil {
		return nil, err
	}
	clientCfg.Logger = logger
	clientCfg.ProtocolLogger = protocol

	c, err := client.New(sender, clientCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}
	s := &setup{client: c}

	dev := cfg.Objects.Device
	device := objects.NewDevice(dev.Manufacturer, dev.Model, dev.Serial)
	device.FirmwareVersion = dev.FirmwareVersion
	device.OnReboot = func() error {
		if logger != nil {
			logger.Info("reboot requested")
		}
		return nil
	}
	if err := s.addObject(device); err != nil {
		return nil, err
	}
	s.objects.Device = device

	if tc := cfg.Objects.Temperature; tc != nil {
		temp := objects.NewTemperature(tc.Units)
		ids := make([]uint16, 0, len(tc.Sensors))
		for id := range tc.Sensors {
			ids = append(ids, id)
		}
		slices.Sort(ids)
		for _, id := range ids {
			temp.AddSensor(model.ID(id), tc.Sensors[id])
		}
		if err := s.addObject(temp); err != nil {
			return nil, err
		}
		s.objects.Temperature = temp
	}

	for i, sc := range cfg.Servers {
		if err := c.AddServer(sc.ServerConfig()); err != nil {
			return nil, fmt.Errorf("server %d: %w", sc.ShortID, err)
		}
		st, err := sc.InitialStatus()
		if err != nil {
			return nil, err
		}
		if err := c.SetServerStatus(model.ServerID(sc.ShortID), st); err != nil {
			return nil, err
		}
		if i == 0 {
			s.server = model.ServerID(sc.ShortID)
		}
	}
	return s, nil
}

type objectSource interface {
	Object() (*model.Object, error)
}

func (s *setup) addObject(src objectSource) error {
	obj, err := src.Object()
	if err != nil {
		return err
	}
	if err := s.client.AddObject(obj); err != nil {
		return fmt.Errorf("object %d: %w", obj.ID(), err)
	}
	return nil
}

package objects

import (
	"context"
	"fmt"
	"time"

	"github.com/mash-protocol/lwm2m-go/pkg/model"
	"github.com/mash-protocol/lwm2m-go/pkg/status"
)

// DeviceObjectID is the Device Object id.
const DeviceObjectID model.ID = 3

// Device resource ids.
const (
	DeviceManufacturer     model.ID = 0
	DeviceModelNumber      model.ID = 1
	DeviceSerialNumber     model.ID = 2
	DeviceFirmwareVersion  model.ID = 3
	DeviceReboot           model.ID = 4
	DeviceBatteryLevel     model.ID = 9
	DeviceErrorCode        model.ID = 11
	DeviceCurrentTime      model.ID = 13
	DeviceUTCOffset        model.ID = 14
	DeviceSupportedBinding model.ID = 16
)

// DeviceResources describes the Device Object.
var DeviceResources = []model.ResourceDescriptor{
	{ID: DeviceManufacturer, Name: "Manufacturer", Type: model.TypeString, Operations: model.OpRead},
	{ID: DeviceModelNumber, Name: "Model Number", Type: model.TypeString, Operations: model.OpRead},
	{ID: DeviceSerialNumber, Name: "Serial Number", Type: model.TypeString, Operations: model.OpRead},
	{ID: DeviceFirmwareVersion, Name: "Firmware Version", Type: model.TypeString, Operations: model.OpRead},
	{ID: DeviceReboot, Name: "Reboot", Operations: model.OpExecute, Flags: model.FlagMandatory},
	{ID: DeviceBatteryLevel, Name: "Battery Level", Type: model.TypeInteger, Operations: model.OpRead, Unit: "%"},
	{ID: DeviceErrorCode, Name: "Error Code", Type: model.TypeInteger, Operations: model.OpRead, Flags: model.FlagMandatory | model.FlagMultiple},
	{ID: DeviceCurrentTime, Name: "Current Time", Type: model.TypeTime, Operations: model.OpReadWrite},
	{ID: DeviceUTCOffset, Name: "UTC Offset", Type: model.TypeString, Operations: model.OpReadWrite},
	{ID: DeviceSupportedBinding, Name: "Supported Binding and Modes", Type: model.TypeString, Operations: model.OpRead, Flags: model.FlagMandatory},
}

// Device serves the single Instance of the Device Object.
type Device struct {
	Manufacturer    string
	ModelNumber     string
	SerialNumber    string
	FirmwareVersion string
	BatteryLevel    int64
	ErrorCodes      []int64
	UTCOffset       string
	Binding         string

	// Now returns the local clock. Defaults to time.Now.
	Now func() time.Time

	// OnReboot runs when a Server executes Reboot.
	OnReboot func() error

	clockOffset time.Duration
}

// NewDevice returns a Device with no error and U binding.
func NewDevice(manufacturer, modelNumber, serial string) *Device {
	return &Device{
		Manufacturer: manufacturer,
		ModelNumber:  modelNumber,
		SerialNumber: serial,
		BatteryLevel: 100,
		ErrorCodes:   []int64{0},
		UTCOffset:    "+00:00",
		Binding:      "U",
		Now:          time.Now,
	}
}

// Object returns the Device Object with its Instance 0.
func (d *Device) Object() (*model.Object, error) {
	obj, err := model.NewObject(model.ObjectConfig{
		ID:        DeviceObjectID,
		Name:      "Device",
		Kind:      model.SingleInstance,
		Version:   model.Version{Major: 1, Minor: 1},
		Resources: DeviceResources,
		Provider:  d,
	})
	if err != nil {
		return nil, err
	}
	if err := obj.AddInstance(0, nil); err != nil {
		return nil, err
	}
	return obj, nil
}

// CurrentTime returns the device clock as adjusted by Servers.
func (d *Device) CurrentTime() time.Time {
	now := time.Now
	if d.Now != nil {
		now = d.Now
	}
	return now().Add(d.clockOffset)
}

// Read implements model.Provider.
func (d *Device) Read(_ context.Context, values []model.Value) error {
	for i := range values {
		v := &values[i]
		switch v.URI.ResourceID {
		case DeviceManufacturer:
			v.Data = d.Manufacturer
		case DeviceModelNumber:
			v.Data = d.ModelNumber
		case DeviceSerialNumber:
			v.Data = d.SerialNumber
		case DeviceFirmwareVersion:
			v.Data = d.FirmwareVersion
		case DeviceBatteryLevel:
			v.Data = d.BatteryLevel
		case DeviceErrorCode:
			idx := int(v.URI.ResourceInstanceID)
			if idx >= len(d.ErrorCodes) {
				return fmt.Errorf("%w: error code %d", status.ErrNotFound, idx)
			}
			v.Data = d.ErrorCodes[idx]
		case DeviceCurrentTime:
			v.Data = d.CurrentTime().Unix()
		case DeviceUTCOffset:
			v.Data = d.UTCOffset
		case DeviceSupportedBinding:
			v.Data = d.Binding
		default:
			return fmt.Errorf("%w: %s", status.ErrNotFound, v.URI)
		}
	}
	return nil
}

// Write implements model.Provider.
func (d *Device) Write(_ context.Context, values []model.Value, _ model.WriteMode) error {
	for _, v := range values {
		switch v.URI.ResourceID {
		case DeviceCurrentTime:
			secs, _ := v.Int64()
			local := d.CurrentTime().Add(-d.clockOffset)
			d.clockOffset = time.Unix(secs, 0).Sub(local)
		case DeviceUTCOffset:
			d.UTCOffset, _ = v.Text()
		default:
			return fmt.Errorf("%w: %s", status.ErrMethodNotAllowed, v.URI)
		}
	}
	return nil
}

// Execute implements model.Provider.
func (d *Device) Execute(_ context.Context, uri model.URI, _ []byte) error {
	if uri.ResourceID != DeviceReboot {
		return fmt.Errorf("%w: %s", status.ErrMethodNotAllowed, uri)
	}
	if d.OnReboot != nil {
		return d.OnReboot()
	}
	return nil
}

// ResourceInstances implements model.Dimensioner.
func (d *Device) ResourceInstances(_ context.Context, _, resourceID model.ID) ([]model.ID, error) {
	if resourceID != DeviceErrorCode {
		return nil, nil
	}
	ids := make([]model.ID, len(d.ErrorCodes))
	for i := range ids {
		ids[i] = model.ID(i)
	}
	return ids, nil
}

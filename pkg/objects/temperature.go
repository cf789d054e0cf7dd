package objects

import (
	"context"
	"fmt"
	"slices"

	"github.com/mash-protocol/lwm2m-go/pkg/model"
	"github.com/mash-protocol/lwm2m-go/pkg/status"
)

// TemperatureObjectID is the IPSO Temperature Object id.
const TemperatureObjectID model.ID = 3303

// Temperature resource ids.
const (
	TemperatureMinMeasured model.ID = 5601
	TemperatureMaxMeasured model.ID = 5602
	TemperatureResetMinMax model.ID = 5605
	TemperatureValue       model.ID = 5700
	TemperatureUnits       model.ID = 5701
)

// TemperatureResources describes the Temperature Object.
var TemperatureResources = []model.ResourceDescriptor{
	{ID: TemperatureMinMeasured, Name: "Min Measured Value", Type: model.TypeFloat, Operations: model.OpRead},
	{ID: TemperatureMaxMeasured, Name: "Max Measured Value", Type: model.TypeFloat, Operations: model.OpRead},
	{ID: TemperatureResetMinMax, Name: "Reset Min and Max Measured Values", Operations: model.OpExecute},
	{ID: TemperatureValue, Name: "Sensor Value", Type: model.TypeFloat, Operations: model.OpRead, Flags: model.FlagMandatory},
	{ID: TemperatureUnits, Name: "Sensor Units", Type: model.TypeString, Operations: model.OpReadWrite},
}

type sensor struct {
	value float64
	min   float64
	max   float64
	units string
}

func (s *sensor) update(v float64) {
	s.value = v
	s.min = min(s.min, v)
	s.max = max(s.max, v)
}

// Temperature serves the Instances of the Temperature Object. Servers may
// create and delete Instances.
type Temperature struct {
	sensors map[model.ID]*sensor
	units   string
}

// NewTemperature returns a Temperature provider whose new Instances report
// the given units.
func NewTemperature(units string) *Temperature {
	return &Temperature{
		sensors: make(map[model.ID]*sensor),
		units:   units,
	}
}

// Object returns the Temperature Object with an Instance per sensor added
// so far.
func (t *Temperature) Object() (*model.Object, error) {
	obj, err := model.NewObject(model.ObjectConfig{
		ID:        TemperatureObjectID,
		Name:      "Temperature",
		Kind:      model.MultipleInstance,
		Resources: TemperatureResources,
		Provider:  t,
	})
	if err != nil {
		return nil, err
	}
	for _, id := range t.ids() {
		if err := obj.AddInstance(id, nil); err != nil {
			return nil, err
		}
	}
	return obj, nil
}

func (t *Temperature) ids() []model.ID {
	ids := make([]model.ID, 0, len(t.sensors))
	for id := range t.sensors {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// AddSensor adds a sensor with an initial reading. Register it with the
// client's AddInstance when the Object is already registered.
func (t *Temperature) AddSensor(id model.ID, value float64) {
	t.sensors[id] = &sensor{value: value, min: value, max: value, units: t.units}
}

// Update records a new reading. The application reports it with the
// client's ResourceChanged.
func (t *Temperature) Update(id model.ID, value float64) error {
	s, ok := t.sensors[id]
	if !ok {
		return fmt.Errorf("%w: temperature instance %d", status.ErrNotFound, id)
	}
	s.update(value)
	return nil
}

// Value returns the current reading of a sensor.
func (t *Temperature) Value(id model.ID) (float64, bool) {
	s, ok := t.sensors[id]
	if !ok {
		return 0, false
	}
	return s.value, true
}

// Read implements model.Provider.
func (t *Temperature) Read(_ context.Context, values []model.Value) error {
	for i := range values {
		v := &values[i]
		s, ok := t.sensors[v.URI.InstanceID]
		if !ok {
			return fmt.Errorf("%w: %s", status.ErrNotFound, v.URI)
		}
		switch v.URI.ResourceID {
		case TemperatureValue:
			v.Data = s.value
		case TemperatureMinMeasured:
			v.Data = s.min
		case TemperatureMaxMeasured:
			v.Data = s.max
		case TemperatureUnits:
			v.Data = s.units
		default:
			return fmt.Errorf("%w: %s", status.ErrNotFound, v.URI)
		}
	}
	return nil
}

// Write implements model.Provider. The sensor value is only written while
// an Instance is being created.
func (t *Temperature) Write(_ context.Context, values []model.Value, _ model.WriteMode) error {
	for _, v := range values {
		s, ok := t.sensors[v.URI.InstanceID]
		if !ok {
			return fmt.Errorf("%w: %s", status.ErrNotFound, v.URI)
		}
		switch v.URI.ResourceID {
		case TemperatureValue:
			f, _ := v.Float64()
			s.value, s.min, s.max = f, f, f
		case TemperatureUnits:
			s.units, _ = v.Text()
		default:
			return fmt.Errorf("%w: %s", status.ErrMethodNotAllowed, v.URI)
		}
	}
	return nil
}

// Execute implements model.Provider. Resetting the measured range reports
// both range Resources as changed.
func (t *Temperature) Execute(ctx context.Context, uri model.URI, _ []byte) error {
	s, ok := t.sensors[uri.InstanceID]
	if !ok {
		return fmt.Errorf("%w: %s", status.ErrNotFound, uri)
	}
	if uri.ResourceID != TemperatureResetMinMax {
		return fmt.Errorf("%w: %s", status.ErrMethodNotAllowed, uri)
	}
	s.min, s.max = s.value, s.value
	model.ReportChange(ctx, model.ResourceURI(uri.ObjectID, uri.InstanceID, TemperatureMinMeasured))
	model.ReportChange(ctx, model.ResourceURI(uri.ObjectID, uri.InstanceID, TemperatureMaxMeasured))
	return nil
}

// Create implements model.InstanceCreator.
func (t *Temperature) Create(_ context.Context, instanceID model.ID) error {
	if _, ok := t.sensors[instanceID]; ok {
		return fmt.Errorf("%w: temperature instance %d", model.ErrInstanceExists, instanceID)
	}
	t.sensors[instanceID] = &sensor{units: t.units}
	return nil
}

// Delete implements model.InstanceDeleter.
func (t *Temperature) Delete(_ context.Context, instanceID model.ID) error {
	delete(t.sensors, instanceID)
	return nil
}

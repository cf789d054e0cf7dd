package data

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/mash-protocol/lwm2m-go/pkg/model"
	"github.com/mash-protocol/lwm2m-go/pkg/status"
)

func TestCreateAssignsSmallestFreeID(t *testing.T) {
	f := newFixture(t, model.MultipleInstance, nil, 0, 2)

	// Names one level below the object carry resources of a new instance.
	values := []model.Value{
		model.NewString(model.InstanceURI(testObject, 0), "new"),
		model.NewInteger(model.InstanceURI(testObject, 1), 3),
	}
	ids, err := f.engine.Create(context.Background(), server, model.ObjectURI(testObject), values, false)
	require.NoError(t, err)
	assert.Equal(t, []model.ID{1}, ids)
	assert.Equal(t, []model.ID{0, 1, 2}, f.object.InstanceIDs())

	v, ok := f.memory.Get(res(1, 0))
	require.True(t, ok)
	assert.Equal(t, "new", v.Data)
	assert.Contains(t, f.listener.dirty, model.InstanceURI(testObject, 1))
}

func TestCreateWithExplicitID(t *testing.T) {
	f := newFixture(t, model.MultipleInstance, nil, 0)

	ids, err := f.engine.Create(context.Background(), server, model.ObjectURI(testObject),
		[]model.Value{model.NewString(res(7, 0), "x")}, false)
	require.NoError(t, err)
	assert.Equal(t, []model.ID{7}, ids)

	_, err = f.engine.Create(context.Background(), server, model.ObjectURI(testObject),
		[]model.Value{model.NewString(res(7, 0), "x")}, false)
	assert.ErrorIs(t, err, status.ErrBadRequest, "instance already exists")
}

func TestCreateDropsUnknownResources(t *testing.T) {
	f := newFixture(t, model.MultipleInstance, nil)

	values := []model.Value{
		model.NewString(res(0, 0), "x"),
		model.NewInteger(res(0, 999), 1),
	}
	_, err := f.engine.Create(context.Background(), server, model.ObjectURI(testObject), values, false)
	require.NoError(t, err)
	_, ok := f.memory.Get(res(0, 999))
	assert.False(t, ok)
}

func TestCreatePayloadRules(t *testing.T) {
	tests := []struct {
		name      string
		values    []model.Value
		bootstrap bool
		want      error
	}{
		{
			name:   "missing mandatory",
			values: []model.Value{model.NewInteger(res(0, 1), 1)},
			want:   ErrMissingMandatory,
		},
		{
			name:      "missing mandatory in bootstrap",
			values:    []model.Value{model.NewInteger(res(0, 1), 1)},
			bootstrap: true,
		},
		{
			name: "two instances",
			values: []model.Value{
				model.NewString(res(0, 0), "a"),
				model.NewString(res(1, 0), "b"),
			},
			want: status.ErrBadRequest,
		},
		{
			name: "two instances in bootstrap",
			values: []model.Value{
				model.NewString(res(0, 0), "a"),
				model.NewString(res(1, 0), "b"),
			},
			bootstrap: true,
		},
		{
			name:   "other object",
			values: []model.Value{model.NewString(model.ResourceURI(3, 0, 0), "a")},
			want:   status.ErrBadRequest,
		},
		{
			name:   "wrong type",
			values: []model.Value{model.NewBool(res(0, 0), true)},
			want:   status.ErrBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, model.MultipleInstance, nil)
			_, err := f.engine.Create(context.Background(), server, model.ObjectURI(testObject), tt.values, tt.bootstrap)
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.want)
			assert.Empty(t, f.object.Instances())
		})
	}
}

func TestCreateHeterogeneousRecordsSubset(t *testing.T) {
	f := newFixture(t, model.MultipleInstanceHeterogeneous, nil)

	values := []model.Value{
		model.NewString(res(4, 0), "x"),
		model.NewInteger(res(4, 1), 1),
	}
	_, err := f.engine.Create(context.Background(), server, model.ObjectURI(testObject), values, false)
	require.NoError(t, err)

	inst, err := f.object.Instance(4)
	require.NoError(t, err)
	assert.Equal(t, []model.ID{0, 1}, inst.Resources)
}

func TestCreateRollsBackOnWriteFailure(t *testing.T) {
	p := newMockProvider()
	f := newFixture(t, model.MultipleInstance, p)

	p.On("Create", mock.Anything, model.ID(0)).Return(nil).Once()
	p.On("Write", mock.Anything, mock.Anything, model.WriteReplace).Return(errors.New("flash full")).Once()
	p.On("Delete", mock.Anything, model.ID(0)).Return(nil).Once()

	_, err := f.engine.Create(context.Background(), server, model.ObjectURI(testObject),
		[]model.Value{model.NewString(res(0, 0), "x")}, false)
	assert.ErrorIs(t, err, status.ErrInternal)
	assert.Empty(t, f.object.Instances())
	p.AssertExpectations(t)
}

func TestCreateUnsupported(t *testing.T) {
	f := newFixture(t, model.MultipleInstance, readOnlyProvider{})
	_, err := f.engine.Create(context.Background(), server, model.ObjectURI(testObject),
		[]model.Value{model.NewString(res(0, 0), "x")}, false)
	assert.ErrorIs(t, err, status.ErrMethodNotAllowed)

	err = f.engine.Delete(context.Background(), server, model.ObjectURI(testObject))
	assert.ErrorIs(t, err, status.ErrMethodNotAllowed)
}

func TestDeleteInstance(t *testing.T) {
	f := newFixture(t, model.MultipleInstance, nil, 0, 1)
	f.memory.Set(model.NewString(res(1, 0), "gone"))

	require.NoError(t, f.engine.Delete(context.Background(), server, model.InstanceURI(testObject, 1)))
	assert.Equal(t, []model.ID{0}, f.object.InstanceIDs())
	assert.Equal(t, []model.URI{model.InstanceURI(testObject, 1)}, f.listener.removed)
	_, ok := f.memory.Get(res(1, 0))
	assert.False(t, ok)

	err := f.engine.Delete(context.Background(), server, model.InstanceURI(testObject, 1))
	assert.ErrorIs(t, err, status.ErrNotFound)

	err = f.engine.Delete(context.Background(), server, res(0, 0))
	assert.ErrorIs(t, err, status.ErrMethodNotAllowed)
}

func TestDeleteAllInstances(t *testing.T) {
	f := newFixture(t, model.MultipleInstance, nil, 0, 3, 5)
	require.NoError(t, f.engine.Delete(context.Background(), server, model.ObjectURI(testObject)))
	assert.Empty(t, f.object.Instances())
	assert.Len(t, f.listener.removed, 3)
}

type readOnlyProvider struct{}

func (readOnlyProvider) Read(context.Context, []model.Value) error                   { return nil }
func (readOnlyProvider) Write(context.Context, []model.Value, model.WriteMode) error { return nil }
func (readOnlyProvider) Execute(context.Context, model.URI, []byte) error            { return nil }
func (readOnlyProvider) ResourceInstances(context.Context, model.ID, model.ID) ([]model.ID, error) {
	return nil, nil
}

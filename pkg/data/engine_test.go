package data

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/mash-protocol/lwm2m-go/pkg/model"
	"github.com/mash-protocol/lwm2m-go/pkg/objects"
	"github.com/mash-protocol/lwm2m-go/pkg/status"
)

const (
	testObject model.ID       = 1000
	server     model.ServerID = 1
)

var testResources = []model.ResourceDescriptor{
	{ID: 0, Name: "name", Type: model.TypeString, Operations: model.OpReadWrite, Flags: model.FlagMandatory},
	{ID: 1, Name: "count", Type: model.TypeInteger, Operations: model.OpReadWrite},
	{ID: 2, Name: "level", Type: model.TypeFloat, Operations: model.OpRead},
	{ID: 3, Name: "reset", Operations: model.OpExecute, Flags: model.FlagMandatory},
	{ID: 4, Name: "list", Type: model.TypeInteger, Operations: model.OpReadWrite, Flags: model.FlagMultiple},
	{ID: 5, Name: "size", Type: model.TypeUnsignedInteger, Operations: model.OpReadWrite},
	{ID: 6, Name: "secret", Type: model.TypeString, Operations: model.OpWrite},
}

type recordingListener struct {
	guard        *model.CallbackGuard
	dirty        []model.URI
	dirtyGuarded []bool
	removed      []model.URI
}

func (l *recordingListener) MarkDirty(uri model.URI) {
	l.dirty = append(l.dirty, uri)
	l.dirtyGuarded = append(l.dirtyGuarded, l.guard.Active())
}

func (l *recordingListener) InstanceRemoved(uri model.URI) {
	l.removed = append(l.removed, uri)
}

type fixture struct {
	catalog  *model.Catalog
	object   *model.Object
	memory   *objects.Memory
	engine   *Engine
	listener *recordingListener
}

func newFixture(t *testing.T, kind model.ObjectKind, provider model.Provider, instances ...model.ID) *fixture {
	t.Helper()
	f := &fixture{catalog: model.NewCatalog()}
	if provider == nil {
		f.memory = objects.NewMemory()
		provider = f.memory
	}
	obj, err := model.NewObject(model.ObjectConfig{
		ID:        testObject,
		Kind:      kind,
		Resources: testResources,
		Provider:  provider,
	})
	require.NoError(t, err)
	for _, id := range instances {
		var subset []model.ID
		if kind == model.MultipleInstanceHeterogeneous {
			subset = []model.ID{0, 2}
		}
		require.NoError(t, obj.AddInstance(id, subset))
	}
	require.NoError(t, f.catalog.AddObject(obj))
	f.object = obj

	guard := &model.CallbackGuard{}
	f.listener = &recordingListener{guard: guard}
	f.engine = NewEngine(f.catalog, guard, Config{Listener: f.listener})
	return f
}

func res(inst, r model.ID) model.URI { return model.ResourceURI(testObject, inst, r) }

func TestReadExpandsInstance(t *testing.T) {
	f := newFixture(t, model.MultipleInstance, nil, 0)
	f.memory.Set(model.NewString(res(0, 0), "pump"))
	f.memory.Set(model.NewInteger(res(0, 1), 7))
	f.memory.Set(model.NewFloat(res(0, 2), 1.5))
	f.memory.Set(model.NewInteger(model.ResourceInstanceURI(testObject, 0, 4, 0), 10))
	f.memory.Set(model.NewInteger(model.ResourceInstanceURI(testObject, 0, 4, 3), 13))
	f.memory.Set(model.NewUnsigned(res(0, 5), 99))

	values, err := f.engine.Read(context.Background(), server, model.InstanceURI(testObject, 0))
	require.NoError(t, err)

	var uris []string
	for _, v := range values {
		uris = append(uris, v.URI.String())
	}
	assert.Equal(t, []string{
		"/1000/0/0", "/1000/0/1", "/1000/0/2", "/1000/0/4/0", "/1000/0/4/3", "/1000/0/5",
	}, uris, "execute and write-only resources are skipped")
	assert.Equal(t, 1.5, values[2].Data)
	assert.Equal(t, uint64(99), values[5].Data)
}

func TestReadObjectWithoutInstances(t *testing.T) {
	f := newFixture(t, model.MultipleInstance, nil)
	values, err := f.engine.Read(context.Background(), server, model.ObjectURI(testObject))
	require.NoError(t, err)
	assert.Empty(t, values)
}

func TestReadResourceInstance(t *testing.T) {
	f := newFixture(t, model.MultipleInstance, nil, 0)
	f.memory.Set(model.NewInteger(model.ResourceInstanceURI(testObject, 0, 4, 2), 5))

	values, err := f.engine.Read(context.Background(), server, model.ResourceInstanceURI(testObject, 0, 4, 2))
	require.NoError(t, err)
	require.Len(t, values, 1)
	assert.Equal(t, int64(5), values[0].Data)

	_, err = f.engine.Read(context.Background(), server, model.ResourceInstanceURI(testObject, 0, 4, 9))
	assert.ErrorIs(t, err, status.ErrNotFound)

	_, err = f.engine.Read(context.Background(), server, model.ResourceInstanceURI(testObject, 0, 1, 0))
	assert.ErrorIs(t, err, status.ErrNotFound)
}

func TestReadHeterogeneousSubset(t *testing.T) {
	f := newFixture(t, model.MultipleInstanceHeterogeneous, nil, 0)
	values, err := f.engine.Read(context.Background(), server, model.InstanceURI(testObject, 0))
	require.NoError(t, err)
	require.Len(t, values, 2)
	assert.Equal(t, res(0, 0), values[0].URI)
	assert.Equal(t, res(0, 2), values[1].URI)

	_, err = f.engine.Read(context.Background(), server, res(0, 1))
	assert.ErrorIs(t, err, status.ErrNotFound)
}

func TestOperationNotAllowed(t *testing.T) {
	f := newFixture(t, model.MultipleInstance, nil, 0)
	ctx := context.Background()

	_, err := f.engine.Read(ctx, server, res(0, 6))
	assert.ErrorIs(t, err, status.ErrMethodNotAllowed, "read write-only")

	_, err = f.engine.Read(ctx, server, res(0, 3))
	assert.ErrorIs(t, err, status.ErrMethodNotAllowed, "read executable")

	err = f.engine.Write(ctx, server, []model.Value{model.NewFloat(res(0, 2), 1)}, model.WritePartial)
	assert.ErrorIs(t, err, status.ErrMethodNotAllowed, "write read-only")

	err = f.engine.Execute(ctx, server, res(0, 1), nil)
	assert.ErrorIs(t, err, status.ErrMethodNotAllowed, "execute readable")

	err = f.engine.Execute(ctx, server, model.InstanceURI(testObject, 0), nil)
	assert.ErrorIs(t, err, status.ErrMethodNotAllowed, "execute instance")

	assert.Zero(t, f.memory.Len())
	assert.Empty(t, f.memory.Executed)
}

func TestWriteThenReadRoundTrip(t *testing.T) {
	f := newFixture(t, model.MultipleInstance, nil, 0)
	ctx := context.Background()

	written := []model.Value{
		model.NewString(res(0, 0), "valve"),
		model.NewInteger(res(0, 1), -4),
		model.NewInteger(model.ResourceInstanceURI(testObject, 0, 4, 1), 11),
		model.NewUnsigned(res(0, 5), 12),
	}
	require.NoError(t, f.engine.Write(ctx, server, written, model.WriteReplace))

	for _, w := range written {
		values, err := f.engine.Read(ctx, server, w.URI)
		require.NoError(t, err)
		require.Len(t, values, 1)
		assert.True(t, values[0].Equal(w), "read %v, wrote %v", values[0], w)
	}
}

func TestWriteConvertsCompatibleTypes(t *testing.T) {
	f := newFixture(t, model.MultipleInstance, nil, 0)
	values := []model.Value{
		{URI: res(0, 1), Type: model.TypeUndefined, Data: "42"},
		model.NewInteger(res(0, 5), 3),
	}
	require.NoError(t, f.engine.Write(context.Background(), server, values, model.WritePartial))

	v, _ := f.memory.Get(res(0, 1))
	assert.Equal(t, int64(42), v.Data)
	v, _ = f.memory.Get(res(0, 5))
	assert.Equal(t, uint64(3), v.Data)

	// A whole float is accepted by an integer Resource.
	require.NoError(t, f.engine.Write(context.Background(), server, []model.Value{model.NewFloat(res(0, 1), 3)}, model.WritePartial))
	v, _ = f.memory.Get(res(0, 1))
	assert.Equal(t, model.TypeInteger, v.Type)
	assert.Equal(t, int64(3), v.Data)
}

func TestWriteConsistency(t *testing.T) {
	tests := []struct {
		name  string
		value model.Value
	}{
		{"string into integer", model.NewString(res(0, 1), "x")},
		{"fractional float into integer", model.NewFloat(res(0, 1), 3.5)},
		{"negative unsigned", model.NewInteger(res(0, 5), -1)},
		{"timestamp", model.Value{URI: res(0, 1), Type: model.TypeInteger, Data: int64(1), Timestamp: 5}},
		{"instance of single resource", model.NewInteger(model.ResourceInstanceURI(testObject, 0, 1, 0), 1)},
		{"instance level value", model.NewInteger(model.InstanceURI(testObject, 0), 1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, model.MultipleInstance, nil, 0)
			err := f.engine.Write(context.Background(), server, []model.Value{tt.value}, model.WritePartial)
			assert.ErrorIs(t, err, status.ErrBadRequest)
			assert.Zero(t, f.memory.Len())
		})
	}
}

func TestWriteUnknownTargets(t *testing.T) {
	f := newFixture(t, model.MultipleInstance, nil, 0)
	err := f.engine.Write(context.Background(), server, []model.Value{model.NewInteger(res(5, 1), 1)}, model.WritePartial)
	assert.ErrorIs(t, err, status.ErrNotFound)

	err = f.engine.Write(context.Background(), server, nil, model.WritePartial)
	assert.ErrorIs(t, err, status.ErrBadRequest)
}

func TestWriteMarksDirtyInsideGuard(t *testing.T) {
	f := newFixture(t, model.MultipleInstance, nil, 0)
	values := []model.Value{
		model.NewInteger(model.ResourceInstanceURI(testObject, 0, 4, 0), 1),
		model.NewInteger(model.ResourceInstanceURI(testObject, 0, 4, 1), 2),
		model.NewInteger(res(0, 1), 3),
	}
	require.NoError(t, f.engine.Write(context.Background(), server, values, model.WritePartial))

	assert.Equal(t, []model.URI{res(0, 4), res(0, 1)}, f.listener.dirty)
	assert.Equal(t, []bool{true, true}, f.listener.dirtyGuarded)
}

func TestProviderReportsChangeInsideGuard(t *testing.T) {
	f := newFixture(t, model.MultipleInstance, nil, 0)
	f.memory.OnExecute = func(ctx context.Context, _ model.URI, _ []byte) error {
		f.memory.Set(model.NewFloat(res(0, 2), 0))
		if !model.ReportChange(ctx, res(0, 2)) {
			return errors.New("no change reporter")
		}
		return nil
	}

	require.NoError(t, f.engine.Execute(context.Background(), server, res(0, 3), nil))
	assert.Equal(t, []model.URI{res(0, 2)}, f.listener.dirty)
	assert.Equal(t, []bool{true}, f.listener.dirtyGuarded)
}

func TestReplaceResourceInstanceDeletesFirst(t *testing.T) {
	p := newMockProvider()
	f := newFixture(t, model.MultipleInstance, p, 0)
	uri := model.ResourceInstanceURI(testObject, 0, 4, 1)

	p.On("DeleteResourceInstance", mock.Anything, uri).Return(nil).Once()
	p.On("Write", mock.Anything, mock.Anything, model.WriteReplace).Return(nil).Once()

	require.NoError(t, f.engine.Write(context.Background(), server, []model.Value{model.NewInteger(uri, 5)}, model.WriteReplace))
	p.AssertExpectations(t)

	p.On("Write", mock.Anything, mock.Anything, model.WritePartial).Return(nil).Once()
	require.NoError(t, f.engine.Write(context.Background(), server, []model.Value{model.NewInteger(uri, 6)}, model.WritePartial))
	p.AssertNumberOfCalls(t, "DeleteResourceInstance", 1)
}

func TestProviderErrorsPropagate(t *testing.T) {
	p := newMockProvider()
	f := newFixture(t, model.MultipleInstance, p, 0)

	p.On("Read", mock.Anything, mock.Anything).Return(errors.New("sensor offline")).Once()
	_, err := f.engine.Read(context.Background(), server, res(0, 1))
	assert.ErrorIs(t, err, status.ErrInternal)

	p.On("Write", mock.Anything, mock.Anything, mock.Anything).Return(status.ErrPreconditionFailed).Once()
	err = f.engine.Write(context.Background(), server, []model.Value{model.NewInteger(res(0, 1), 1)}, model.WritePartial)
	assert.ErrorIs(t, err, status.ErrPreconditionFailed)
	assert.Empty(t, f.listener.dirty, "failed write is not marked dirty")
}

func TestProviderSeesServer(t *testing.T) {
	p := newMockProvider()
	f := newFixture(t, model.MultipleInstance, p, 0)

	p.On("Execute", mock.MatchedBy(func(ctx context.Context) bool {
		id, ok := model.ServerFromContext(ctx)
		return ok && id == server
	}), res(0, 3), []byte("now")).Return(nil).Once()

	require.NoError(t, f.engine.Execute(context.Background(), server, res(0, 3), []byte("now")))
	p.AssertExpectations(t)
}

func TestResourceInstanceIDs(t *testing.T) {
	f := newFixture(t, model.MultipleInstance, nil, 0)
	f.memory.Set(model.NewInteger(model.ResourceInstanceURI(testObject, 0, 4, 7), 1))
	f.memory.Set(model.NewInteger(model.ResourceInstanceURI(testObject, 0, 4, 2), 1))

	ids, err := f.engine.ResourceInstanceIDs(context.Background(), server, res(0, 4))
	require.NoError(t, err)
	assert.Equal(t, []model.ID{2, 7}, ids)

	ids, err = f.engine.ResourceInstanceIDs(context.Background(), server, res(0, 1))
	require.NoError(t, err)
	assert.Nil(t, ids)
}

package interactive

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/plgd-dev/go-coap/v3/message/codes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mash-protocol/lwm2m-go/pkg/client"
	"github.com/mash-protocol/lwm2m-go/pkg/model"
	"github.com/mash-protocol/lwm2m-go/pkg/objects"
	"github.com/mash-protocol/lwm2m-go/pkg/server"
	"github.com/mash-protocol/lwm2m-go/pkg/wire"
)

// syncBuffer is a bytes.Buffer safe for the event goroutines.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

type testConsole struct {
	*Console
	out    *syncBuffer
	lb     *Loopback
	client *client.Client
	temp   *objects.Temperature
	device *objects.Device
}

func newTestConsole(t *testing.T) *testConsole {
	t.Helper()
	out := &syncBuffer{}
	lb := NewLoopback(out)

	c, err := client.New(lb, client.DefaultConfig())
	require.NoError(t, err)

	device := objects.NewDevice("Acme", "T-1", "SN1")
	devObj, err := device.Object()
	require.NoError(t, err)
	require.NoError(t, c.AddObject(devObj))

	temp := objects.NewTemperature("Cel")
	temp.AddSensor(0, 21.5)
	tempObj, err := temp.Object()
	require.NoError(t, err)
	require.NoError(t, c.AddObject(tempObj))

	require.NoError(t, c.AddServer(server.Config{ShortID: 101}))
	require.NoError(t, c.SetServerStatus(101, server.StatusRegistered))

	con := New(c, lb, Objects{Device: device, Temperature: temp}, 101, out)
	return &testConsole{Console: con, out: out, lb: lb, client: c, temp: temp, device: device}
}

func (tc *testConsole) run(t *testing.T, lines ...string) {
	t.Helper()
	for _, line := range lines {
		require.False(t, tc.Execute(context.Background(), line), "command %q exited", line)
	}
}

// last returns the most recent message sent by the client.
func (tc *testConsole) last(t *testing.T) *wire.Message {
	t.Helper()
	history := tc.lb.History()
	require.NotEmpty(t, history)
	return history[len(history)-1].Msg
}

func TestGet(t *testing.T) {
	tc := newTestConsole(t)
	tc.run(t, "get temperature/0/sensor_value")

	msg := tc.last(t)
	assert.Equal(t, wire.Acknowledgement, msg.Type)
	assert.Equal(t, codes.Content, msg.Code)
	assert.Equal(t, "21.5", string(msg.Payload))
	assert.Contains(t, tc.out.String(), "-> [101] CON GET")
	assert.Contains(t, tc.out.String(), "<- [101] response ACK 2.05")
}

func TestGetInstanceDecodesSenML(t *testing.T) {
	tc := newTestConsole(t)
	tc.run(t, "get 3303/0 senml")

	msg := tc.last(t)
	require.Equal(t, codes.Content, msg.Code)
	assert.Equal(t, wire.FormatSenMLCBOR, msg.Options.ContentFormat)
	assert.Contains(t, tc.out.String(), "/3303/0/5700 = 21.50")
	assert.Contains(t, tc.out.String(), `/3303/0/5701 = "Cel"`)
}

func TestObserveSetTick(t *testing.T) {
	tc := newTestConsole(t)
	tc.run(t, "observe 3303/0/5700")

	msg := tc.last(t)
	require.Equal(t, codes.Content, msg.Code)
	require.True(t, msg.Options.HasObserve)
	require.Len(t, tc.client.Observations(101), 1)

	tc.run(t, "set temperature/0 23.5", "tick")

	msg = tc.last(t)
	assert.Equal(t, wire.NonConfirmable, msg.Type)
	assert.Equal(t, uint32(1), msg.Options.Observe)
	assert.Equal(t, "23.5", string(msg.Payload))
	assert.Contains(t, tc.out.String(), "<- [101] notify")

	v, ok := tc.temp.Value(0)
	require.True(t, ok)
	assert.Equal(t, 23.5, v)
}

func TestCancelByPath(t *testing.T) {
	tc := newTestConsole(t)
	tc.run(t, "observe 3303/0/5700", "cancel 3303/0/5700")

	assert.Empty(t, tc.client.Observations(101))
	msg := tc.last(t)
	assert.Equal(t, codes.Content, msg.Code)
	assert.Equal(t, []byte{0, 0, 0, 1}, msg.Token)
}

func TestCancelByToken(t *testing.T) {
	tc := newTestConsole(t)
	tc.run(t, "observe 3303/0", "observe 3/0/9", "cancel 00000001")

	obs := tc.client.Observations(101)
	require.Len(t, obs, 1)
	assert.Equal(t, []model.URI{model.ResourceURI(3, 0, 9)}, obs[0].Targets)
}

func TestCancelUnknown(t *testing.T) {
	tc := newTestConsole(t)
	tc.run(t, "cancel 3303/0/5700")
	assert.Contains(t, tc.out.String(), "No observation matches 3303/0/5700")
}

func TestReset(t *testing.T) {
	tc := newTestConsole(t)
	tc.run(t, "observe 3303/0/5700", "set 3303/0 30", "tick", "reset 00000001")
	assert.Empty(t, tc.client.Observations(101))
}

func TestCreateInstance(t *testing.T) {
	tc := newTestConsole(t)
	tc.run(t, "post temperature sensor_value=19")

	msg := tc.last(t)
	require.Equal(t, codes.Created, msg.Code)
	assert.Equal(t, "/3303/1", msg.Options.LocationPath)
	assert.Contains(t, tc.out.String(), "location=/3303/1")

	v, ok := tc.temp.Value(1)
	require.True(t, ok)
	assert.Equal(t, 19.0, v)
}

func TestCreateBadAssignment(t *testing.T) {
	tc := newTestConsole(t)
	tc.run(t, "post 3303 nosuch=1", "post 3303 5700", "post 3303 5700=warm")

	out := tc.out.String()
	assert.Contains(t, out, "unknown name in path: nosuch")
	assert.Contains(t, out, `expected <resource>=<value>, got "5700"`)
	assert.Empty(t, tc.lb.History())
}

func TestPutAndExecute(t *testing.T) {
	tc := newTestConsole(t)
	tc.run(t, "put 3303/0/5701 Kel")
	assert.Equal(t, codes.Changed, tc.last(t).Code)

	tc.run(t, "get 3303/0/5701")
	assert.Equal(t, "Kel", string(tc.last(t).Payload))

	tc.run(t, "put 3303/0 sensor_units=Cel")
	assert.Equal(t, codes.Changed, tc.last(t).Code)

	tc.run(t, "post 3303/0/5605")
	assert.Equal(t, codes.Changed, tc.last(t).Code)

	tc.run(t, "put 3/0/0 Other")
	assert.Equal(t, codes.MethodNotAllowed, tc.last(t).Code)
}

func TestAttrsAndDiscover(t *testing.T) {
	tc := newTestConsole(t)
	tc.run(t, "attrs 3303/0/5700 pmin=5 gt=30")
	assert.Equal(t, codes.Changed, tc.last(t).Code)

	tc.run(t, "discover 3303/0/5700")
	msg := tc.last(t)
	require.Equal(t, codes.Content, msg.Code)
	assert.Equal(t, "</3303/0/5700>;pmin=5;gt=30", string(msg.Payload))
	assert.Contains(t, tc.out.String(), "</3303/0/5700>;pmin=5;gt=30")

	tc.run(t, "attrs 3303/0/5700 bogus=1")
	assert.Equal(t, codes.BadRequest, tc.last(t).Code)
}

func TestDelete(t *testing.T) {
	tc := newTestConsole(t)
	tc.run(t, "observe 3303/0/5700", "delete 3303/0")

	assert.Equal(t, codes.Deleted, tc.last(t).Code)
	assert.Empty(t, tc.client.Observations(101))
	_, ok := tc.temp.Value(0)
	assert.False(t, ok)
}

func TestSetBattery(t *testing.T) {
	tc := newTestConsole(t)
	tc.run(t, "set device/0/battery_level 80")
	assert.Equal(t, int64(80), tc.device.BatteryLevel)

	tc.run(t, "set 3/0/9 101", "set 3/0/0 x", "set 3303/0 warm")
	out := tc.out.String()
	assert.Contains(t, out, "Invalid battery level: 101")
	assert.Contains(t, out, "Cannot set /3/0/0 locally")
	assert.Contains(t, out, "Invalid reading")
}

func TestServerStatus(t *testing.T) {
	tc := newTestConsole(t)
	tc.run(t, "server 101 unregistered", "get 3303/0/5700")
	assert.Empty(t, tc.lb.History())

	srv, err := tc.client.Server(101)
	require.NoError(t, err)
	assert.Equal(t, server.StatusUnregistered, srv.Status)

	tc.run(t, "status")
	assert.Contains(t, tc.out.String(), "Server 101: UNREGISTERED *")

	tc.run(t, "server 7 registered", "server 101 sleeping", "server x registered")
	out := tc.out.String()
	assert.Contains(t, out, "server not found")
	assert.Contains(t, out, "Unknown status: sleeping")
	assert.Contains(t, out, "Invalid server id: x")
}

func TestStatusListsObservations(t *testing.T) {
	tc := newTestConsole(t)
	tc.run(t, "observe 3303/0/5700", "status")
	out := tc.out.String()
	assert.Contains(t, out, "Server 101: REGISTERED *")
	assert.Contains(t, out, "token=00000001 /3303/0/5700")
}

func TestTree(t *testing.T) {
	tc := newTestConsole(t)
	tc.run(t, "tree")
	out := tc.out.String()
	assert.Contains(t, out, "Device [/3] (single, v1.1)")
	assert.Contains(t, out, "[5700] Sensor Value: 21.50 (float, R)")

	tc.run(t, "tree 3303/0/5701")
	assert.Contains(t, tc.out.String(), `/3303/0/5701 = "Cel"`)

	tc.run(t, "tree 3303/7")
	assert.Contains(t, tc.out.String(), "Error:")
}

func TestUsageAndErrors(t *testing.T) {
	tc := newTestConsole(t)
	tc.run(t, "", "bogus", "get", "get nosuch/0", "get 3303/0 tlv")
	out := tc.out.String()
	assert.Contains(t, out, "Unknown command: bogus")
	assert.Contains(t, out, "Usage: get <path>")
	assert.Contains(t, out, "Invalid path:")
	assert.Contains(t, out, "Unknown format: tlv")
	assert.Empty(t, tc.lb.History())
}

func TestQuit(t *testing.T) {
	tc := newTestConsole(t)
	for _, cmd := range []string{"quit", "exit", "q"} {
		assert.True(t, tc.Execute(context.Background(), cmd), cmd)
	}
}

func TestHelp(t *testing.T) {
	tc := newTestConsole(t)
	tc.run(t, "help")
	for _, cmd := range []string{"get", "observe", "cancel", "put", "post", "delete", "attrs", "discover", "set", "tick", "tree", "status", "quit"} {
		assert.True(t, strings.Contains(tc.out.String(), fmt.Sprintf("    %s ", cmd)), "help lacks %s", cmd)
	}
}

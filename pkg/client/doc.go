// Package client is the enclosing context of the LwM2M device-management
// core.
//
// A Client owns the Object catalog, the Attribute Store, the Server
// registry and the observations, and serializes every access to them. The
// application registers Objects and reports value changes; the transport
// feeds it incoming messages through HandleMessage and supplies a Sender
// for outgoing ones; a scheduler calls Step (or Run) to emit the
// notifications that are due.
//
// Basic usage:
//
//	c, err := client.New(transport, client.DefaultConfig())
//	if err != nil {
//	    return err
//	}
//	temp := objects.NewTemperature("Cel")
//	temp.AddSensor(0, 21.5)
//	obj, _ := temp.Object()
//	_ = c.AddObject(obj)
//	_ = c.AddServer(server.Config{ShortID: 101})
//	_ = c.SetServerStatus(101, server.StatusRegistered)
//	go c.Run(ctx)
//
//	// Later, when the reading changes:
//	_ = temp.Update(0, 22.0)
//	c.ResourceChanged(objects.TemperatureObjectID, 0, objects.TemperatureValue)
package client

// Package interactive provides the interactive command-line interface of
// the LwM2M client console.
//
// The console plays the part of an LwM2M Server: each command is turned
// into a device-management request and fed to the client, and the
// Loopback prints whatever the client sends back.
package interactive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/chzyer/readline"

	"github.com/mash-protocol/lwm2m-go/pkg/client"
	"github.com/mash-protocol/lwm2m-go/pkg/inspect"
	"github.com/mash-protocol/lwm2m-go/pkg/model"
	"github.com/mash-protocol/lwm2m-go/pkg/objects"
	"github.com/mash-protocol/lwm2m-go/pkg/wire"
)

// Objects are the reference Objects the console can change locally with
// the set command. Either may be nil.
type Objects struct {
	Device      *objects.Device
	Temperature *objects.Temperature
}

// Console handles interactive mode for lwm2m-client.
type Console struct {
	client    *client.Client
	loopback  *Loopback
	objects   Objects
	server    model.ServerID
	formatter *inspect.Formatter
	codec     *wire.MultiCodec
	out       io.Writer
	rl        *readline.Instance

	nextMID   uint16
	nextToken uint32
}

// New creates a console issuing requests as Server server. Output goes to
// out, or stdout when out is nil.
func New(c *client.Client, lb *Loopback, objs Objects, server model.ServerID, out io.Writer) *Console {
	if out == nil {
		out = os.Stdout
	}
	con := &Console{
		client:    c,
		loopback:  lb,
		objects:   objs,
		server:    server,
		formatter: inspect.NewFormatter(),
		codec:     wire.NewMultiCodec(wire.FormatSenMLCBOR),
		out:       out,
	}
	c.OnEvent(con.handleEvent)
	return con
}

// Stdout returns a writer that properly coordinates with the readline
// input once Run has started.
func (c *Console) Stdout() io.Writer {
	if c.rl != nil {
		return c.rl.Stdout()
	}
	return c.out
}

// Attach creates the readline prompt and routes console and loopback
// output through it.
func (c *Console) Attach() error {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "lwm2m> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return fmt.Errorf("failed to create readline: %w", err)
	}
	c.rl = rl
	c.out = rl.Stdout()
	c.loopback.SetOutput(rl.Stdout())
	return nil
}

// Run starts the interactive command loop. Attach must have been called.
func (c *Console) Run(ctx context.Context, cancel context.CancelFunc) {
	defer c.rl.Close()

	c.printHelp()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		line, err := c.rl.Readline()
		if err != nil {
			if errors.Is(err, readline.ErrInterrupt) {
				continue
			}
			fmt.Fprintln(c.out, "Exiting...")
			cancel()
			return
		}

		if c.Execute(ctx, line) {
			fmt.Fprintln(c.out, "Exiting...")
			cancel()
			return
		}
	}
}

// Execute runs one command line. It returns true when the console should
// exit.
func (c *Console) Execute(ctx context.Context, line string) bool {
	input := strings.TrimSpace(line)
	if input == "" {
		return false
	}

	parts := strings.Fields(input)
	cmd := strings.ToLower(parts[0])
	args := parts[1:]

	switch cmd {
	case "help", "?":
		c.printHelp()

	case "get", "read", "r":
		c.cmdGet(ctx, args)

	case "observe", "obs":
		c.cmdObserve(ctx, args)

	case "cancel":
		c.cmdCancel(ctx, args)

	case "reset", "rst":
		c.cmdReset(ctx, args)

	case "put", "write", "w":
		c.cmdPut(ctx, args)

	case "post", "exec", "create":
		c.cmdPost(ctx, args)

	case "delete", "del":
		c.cmdDelete(ctx, args)

	case "attrs", "attr":
		c.cmdAttrs(ctx, args)

	case "discover", "disc":
		c.cmdDiscover(ctx, args)

	case "set":
		c.cmdSet(args)

	case "tick", "step":
		c.cmdTick(ctx)

	case "tree", "inspect", "i":
		c.cmdTree(ctx, args)

	case "server", "srv":
		c.cmdServer(args)

	case "status":
		c.cmdStatus()

	case "quit", "exit", "q":
		return true

	default:
		fmt.Fprintf(c.out, "Unknown command: %s (type 'help' for commands)\n", cmd)
	}
	return false
}

func (c *Console) printHelp() {
	fmt.Fprintln(c.out, `
LwM2M Client Console Commands:
  Server requests:
    get <path> [text|senml]     - Read a node
    observe <path>              - Start observing a node
    cancel <path|token>         - Cancel an observation with GET Observe=1
    reset <token>               - Answer the last notification with Reset
    put <path> <value>          - Write a Resource
    put <path> <res>=<value>... - Replace an Instance
    post <path> [args]          - Execute a Resource
    post <path> <res>=<value>...- Create an Instance or update one partially
    delete <path>               - Delete an Instance
    attrs <path> [k=v|k]...     - Write attributes (pmin, pmax, gt, lt, st)
    discover <path>             - Discover a node

  Local:
    set <path> <value>          - Change a sensor reading or battery level
    tick                        - Send due notifications now
    tree [path]                 - Show Objects, Instances and values
    server <id> <status>        - Set status: registered, update-pending, unregistered
    status                      - Show Servers and observations

  General:
    help                        - Show this help
    quit                        - Exit

  Path Format:
    [server:]object/instance/resource/resourceInstance
    IDs or names: 3303/0/5700 or 101:temperature/0/sensor_value`)
}

func (c *Console) handleEvent(event client.Event) {
	switch event.Type {
	case client.EventUpdateDue:
		fmt.Fprintf(c.Stdout(), "[EVENT] registration update due for server %d\n", event.Server)
	case client.EventServerStatusChanged:
		fmt.Fprintf(c.Stdout(), "[EVENT] server %d is %s\n", event.Server, event.Status)
	case client.EventObservationsDropped:
		fmt.Fprintf(c.Stdout(), "[EVENT] %d observation(s) dropped under %s\n", event.Count, event.URI)
	}
}

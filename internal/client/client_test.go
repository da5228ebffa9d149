package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/starcore/internal/container"
	"github.com/roach88/starcore/internal/engine"
	"github.com/roach88/starcore/internal/hub"
	"github.com/roach88/starcore/internal/instance"
	"github.com/roach88/starcore/internal/ir"
	"github.com/roach88/starcore/internal/schema"
	"github.com/roach88/starcore/internal/testutil"
	"github.com/roach88/starcore/internal/wire"
)

// startHub serves a hub and returns its websocket URL.
func startHub(t *testing.T, wrap func(http.Handler) http.Handler, opts ...hub.Option) string {
	t.Helper()
	h, err := hub.New(append([]hub.Option{
		hub.WithLogger(testutil.DiscardLogger()),
		hub.WithModules(
			instance.Declare("TestSystem", ir.ModuleSystem),
			instance.Declare("TestProtocol", ir.ModuleProtocol),
		),
	}, opts...)...)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		h.Run(ctx)
	}()

	var handler http.Handler = h.Handler(nil)
	if wrap != nil {
		handler = wrap(handler)
	}
	srv := httptest.NewServer(handler)
	t.Cleanup(func() {
		cancel()
		<-done
		srv.Close()
	})
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/hub"
}

// runClient starts c and stops it at cleanup.
func runClient(t *testing.T, c *Client) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		assert.ErrorIs(t, <-done, context.Canceled)
	})
}

func newClient(t *testing.T, url string, opts ...Option) *Client {
	t.Helper()
	c, err := New(url, append([]Option{WithLogger(testutil.DiscardLogger()), WithBackoff(10*time.Millisecond, 50*time.Millisecond)}, opts...)...)
	require.NoError(t, err)
	return c
}

func replicatedString(c *Client) string {
	var s string
	c.View(schema.ReplicatedContainer, func(ct *container.Container) {
		s = container.MustValue[string](ct, schema.PropReplicatedString).Get()
	})
	return s
}

func modules(c *Client) int {
	var n int
	c.View(schema.ReplicatedContainer, func(ct *container.Container) {
		n = container.MustCollection[ir.ModuleData](ct, schema.PropModules).Len()
	})
	return n
}

func TestNew_InvalidClientType(t *testing.T) {
	_, err := New("ws://localhost/hub", WithClientType("toaster"))
	assert.Error(t, err)
}

func TestClient_FetchesOnConnect(t *testing.T) {
	url := startHub(t, nil)
	c := newClient(t, url, WithClientType(wire.ClientMobile))
	runClient(t, c)

	assert.Eventually(t, func() bool { return modules(c) == 2 }, 2*time.Second, 10*time.Millisecond)
}

func TestClient_Converges(t *testing.T) {
	url := startHub(t, nil)
	a, b := newClient(t, url), newClient(t, url)

	updated := make(chan engine.Updated, 16)
	b.OnUpdated(func(u engine.Updated) { updated <- u })

	runClient(t, a)
	runClient(t, b)
	require.Eventually(t, func() bool { return modules(a) == 2 && modules(b) == 2 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, a.Mutate(schema.ReplicatedContainer, func(ct *container.Container) error {
		container.MustValue[string](ct, schema.PropReplicatedString).Set("converged")
		return nil
	}))

	assert.Eventually(t, func() bool { return replicatedString(b) == "converged" }, 2*time.Second, 10*time.Millisecond)

	da, err := a.Digest(schema.ReplicatedContainer)
	require.NoError(t, err)
	db, err := b.Digest(schema.ReplicatedContainer)
	require.NoError(t, err)
	assert.Equal(t, da, db)
	assert.NotEmpty(t, updated)
}

// arenaSchemas returns the built-in containers plus a shared Arena.
func arenaSchemas(t *testing.T) *schema.Registry {
	t.Helper()
	r := schema.Builtin()
	require.NoError(t, r.Register(ir.ContainerSchema{
		Type:       "Arena",
		Properties: []ir.PropertySchema{{Name: "Round", Kind: ir.KindValue, Element: "int"}},
	}))
	return r
}

func round(c *Client) int64 {
	var n int64
	c.View("Arena", func(ct *container.Container) {
		n = container.MustValue[int64](ct, "Round").Get()
	})
	return n
}

func TestClient_ReplicatesDeclaredContainers(t *testing.T) {
	url := startHub(t, nil, hub.WithSchemas(arenaSchemas(t)))
	a := newClient(t, url, WithSchemas(arenaSchemas(t)))
	b := newClient(t, url, WithSchemas(arenaSchemas(t)))
	runClient(t, a)
	runClient(t, b)
	require.Eventually(t, func() bool { return modules(a) == 2 && modules(b) == 2 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, a.Mutate("Arena", func(ct *container.Container) error {
		container.MustValue[int64](ct, "Round").Set(3)
		return nil
	}))

	assert.Eventually(t, func() bool { return round(b) == 3 }, 2*time.Second, 10*time.Millisecond)
}

func TestClient_DefaultsToBuiltinContainers(t *testing.T) {
	c := newClient(t, "ws://localhost/hub")
	assert.Equal(t, []string{schema.ClientContainer, schema.ReplicatedContainer}, c.types)
	assert.Error(t, c.Mutate("Arena", func(*container.Container) error { return nil }))
}

func TestClient_OpenFocusesAndNotifies(t *testing.T) {
	url := startHub(t, nil)
	c := newClient(t, url)

	notes := make(chan wire.Command, 4)
	c.OnCommand(func(cmd wire.Command) {
		if cmd.Name == wire.CmdNotification {
			notes <- cmd
		}
	})
	runClient(t, c)
	require.Eventually(t, func() bool { return modules(c) == 2 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, c.Open("TestProtocol"))

	select {
	case note := <-notes:
		assert.Equal(t, "Test Protocol", note.Title)
	case <-time.After(2 * time.Second):
		t.Fatal("no notification")
	}

	assert.Eventually(t, func() bool {
		var focused string
		var instances []ir.InstanceData
		c.View(schema.ClientContainer, func(ct *container.Container) {
			focused = container.MustValue[string](ct, schema.PropFocusedInstance).Get()
		})
		c.View(schema.ReplicatedContainer, func(ct *container.Container) {
			instances = container.MustCollection[ir.InstanceData](ct, schema.PropOpenInstances).Items()
		})
		return len(instances) == 2 && focused == instances[1].InstanceID
	}, 2*time.Second, 10*time.Millisecond)
}

func TestClient_Ping(t *testing.T) {
	url := startHub(t, nil)
	c := newClient(t, url)

	pongs := make(chan string, 1)
	c.OnCommand(func(cmd wire.Command) {
		if cmd.Name == wire.CmdPong {
			pongs <- cmd.Message
		}
	})
	assert.ErrorIs(t, c.Ping("early"), ErrNotConnected)

	runClient(t, c)
	require.Eventually(t, func() bool { return modules(c) == 2 }, 2*time.Second, 10*time.Millisecond)
	require.NoError(t, c.Ping("hello"))

	select {
	case msg := <-pongs:
		assert.Equal(t, "hello", msg)
	case <-time.After(2 * time.Second):
		t.Fatal("no pong")
	}
}

func TestClient_ReconnectsAndRefetches(t *testing.T) {
	var attempts atomic.Int32
	drop := websocket.Upgrader{}
	url := startHub(t, func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/hub" && attempts.Add(1) == 1 {
				ws, err := drop.Upgrade(w, r, nil)
				if err == nil {
					ws.Close()
				}
				return
			}
			next.ServeHTTP(w, r)
		})
	})

	c := newClient(t, url)
	runClient(t, c)

	assert.Eventually(t, func() bool { return modules(c) == 2 }, 5*time.Second, 10*time.Millisecond)
	assert.GreaterOrEqual(t, attempts.Load(), int32(2))
}

func TestClient_MutateUnknownContainer(t *testing.T) {
	c := newClient(t, "ws://localhost/hub")
	err := c.Mutate("Nope", func(*container.Container) error { return nil })
	assert.Error(t, err)
	_, err = c.Digest("Nope")
	assert.Error(t, err)
}

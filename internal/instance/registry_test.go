package instance

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/starcore/internal/action"
	"github.com/roach88/starcore/internal/container"
	"github.com/roach88/starcore/internal/engine"
	"github.com/roach88/starcore/internal/ids"
	"github.com/roach88/starcore/internal/ir"
	"github.com/roach88/starcore/internal/schema"
)

type fixture struct {
	reg     *Registry
	eng     *engine.Engine
	emitted []action.Action
	events  []Event
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	layout, ok := schema.Builtin().Lookup(schema.ReplicatedContainer)
	require.True(t, ok)

	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	shared := container.New(layout)
	f := &fixture{eng: engine.New(shared, engine.WithLogger(logger))}
	f.eng.OnAction(func(o engine.Outbound) { f.emitted = append(f.emitted, o.Action) })

	reg, err := New(shared, WithIDs(ids.NewSequence("inst")), WithLogger(logger))
	require.NoError(t, err)
	reg.OnEvent(func(ev Event) { f.events = append(f.events, ev) })
	f.reg = reg
	return f
}

func TestSplitWords(t *testing.T) {
	tests := map[string]string{
		"TestProtocol": "Test Protocol",
		"Echo":         "Echo",
		"":             "",
		"lowerStart":   "lower Start",
		"ABC":          "A B C",
	}
	for in, want := range tests {
		assert.Equal(t, want, SplitWords(in), in)
	}
}

func TestDeclare_Defaults(t *testing.T) {
	m := Declare("TestSystem", ir.ModuleSystem)
	assert.Equal(t, ir.ModuleData{
		Module:        "TestSystem",
		ModuleType:    ir.ModuleSystem,
		Name:          "Test System",
		ShowOnClient:  true,
		CanClientOpen: true,
		NotifyOnOpen:  true,
	}, m)

	m = Declare("X", ir.ModuleProtocol, WithName("Custom"), WithDescription("d"), HiddenOnClient(), ServerOpenOnly(), Quiet())
	assert.Equal(t, "Custom", m.Name)
	assert.Equal(t, "d", m.Description)
	assert.False(t, m.ShowOnClient)
	assert.False(t, m.CanClientOpen)
	assert.False(t, m.NotifyOnOpen)
}

func TestRegistry_DeclareReplicates(t *testing.T) {
	f := newFixture(t)

	m := Declare("TestProtocol", ir.ModuleProtocol)
	require.NoError(t, f.reg.Declare(m))

	assert.Equal(t, []action.Action{
		action.Add{Name: schema.PropModules, Index: 0, Items: []any{m}},
	}, f.emitted, "feed mutations go through the observed collection")

	assert.Error(t, f.reg.Declare(m), "duplicate module")
	assert.Error(t, f.reg.Declare(ir.ModuleData{Module: "Bad", ModuleType: "plugin"}))
	assert.Error(t, f.reg.Declare(ir.ModuleData{ModuleType: ir.ModuleSystem}))
}

func TestRegistry_StartOpensSystems(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.reg.Declare(Declare("TestSystem", ir.ModuleSystem)))
	require.NoError(t, f.reg.Declare(Declare("TestProtocol", ir.ModuleProtocol)))

	require.NoError(t, f.reg.Start())

	insts := f.reg.Instances()
	require.Len(t, insts, 1)
	assert.Equal(t, ir.InstanceData{
		Module:         "TestSystem",
		InstanceID:     "inst-1",
		Title:          "Test System",
		CanClientClose: false,
	}, insts[0])

	_, err := f.reg.Open("TestSystem", FromServer)
	assert.ErrorIs(t, err, ErrAlreadyOpen)
}

func TestRegistry_OpenClose(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.reg.Declare(Declare("TestProtocol", ir.ModuleProtocol)))

	a, err := f.reg.Open("TestProtocol", FromClient)
	require.NoError(t, err)
	b, err := f.reg.Open("TestProtocol", FromClient)
	require.NoError(t, err)
	assert.NotEqual(t, a.InstanceID, b.InstanceID)
	assert.True(t, a.CanClientClose)

	require.NoError(t, f.reg.Close(a.InstanceID, FromClient))
	assert.Equal(t, []ir.InstanceData{b}, f.reg.Instances())

	require.Len(t, f.events, 3)
	assert.Equal(t, EventOpened, f.events[0].Kind)
	assert.Equal(t, EventClosed, f.events[2].Kind)
	assert.Equal(t, a.InstanceID, f.events[2].Instance.InstanceID)

	last := f.emitted[len(f.emitted)-1]
	assert.Equal(t, action.Remove{Name: schema.PropOpenInstances, Index: 0}, last)
}

func TestRegistry_OpenErrors(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.reg.Declare(Declare("Locked", ir.ModuleProtocol, ServerOpenOnly())))

	_, err := f.reg.Open("Missing", FromServer)
	assert.ErrorIs(t, err, ErrUnknownModule)

	_, err = f.reg.Open("Locked", FromClient)
	assert.ErrorIs(t, err, ErrNotPermitted)

	_, err = f.reg.Open("Locked", FromServer)
	assert.NoError(t, err)
}

func TestRegistry_CloseErrors(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.reg.Declare(Declare("TestSystem", ir.ModuleSystem)))
	require.NoError(t, f.reg.Start())
	sys := f.reg.Instances()[0]

	assert.ErrorIs(t, f.reg.Close("nope", FromServer), ErrUnknownInstance)
	assert.ErrorIs(t, f.reg.Close(sys.InstanceID, FromServer), ErrSystemInstance)
	assert.Len(t, f.reg.Instances(), 1)
}

func TestRegistry_Rename(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.reg.Declare(Declare("TestProtocol", ir.ModuleProtocol)))
	inst, err := f.reg.Open("TestProtocol", FromServer)
	require.NoError(t, err)

	require.NoError(t, f.reg.Rename(inst.InstanceID, "Focus on Starkit"))

	got, ok := f.reg.Instance(inst.InstanceID)
	require.True(t, ok)
	assert.Equal(t, "Focus on Starkit", got.Title)

	inst.Title = "Focus on Starkit"
	assert.Equal(t, action.Replace{Name: schema.PropOpenInstances, Index: 0, Value: inst}, f.emitted[len(f.emitted)-1])

	assert.ErrorIs(t, f.reg.Rename("nope", "x"), ErrUnknownInstance)
}

func TestNew_RequiresReplicatedContainer(t *testing.T) {
	layout, _ := schema.Builtin().Lookup(schema.ClientContainer)
	_, err := New(container.New(layout))
	assert.Error(t, err)
}

package netprop

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/starcore/internal/ir"
)

func TestNetworkValue_SetNotifies(t *testing.T) {
	v := NewValue("a")

	var got []string
	v.Subscribe(func(s string) { got = append(got, s) })

	v.Set("b")
	assert.Equal(t, "b", v.Get())
	assert.Equal(t, []string{"b"}, got)
}

func TestNetworkValue_SetSameValueStillNotifies(t *testing.T) {
	v := NewValue(7)

	count := 0
	v.Subscribe(func(int) { count++ })

	v.Set(7)
	v.Set(7)
	assert.Equal(t, 2, count, "every set notifies, even without a change")
}

func TestNetworkValue_StoreBeforeNotify(t *testing.T) {
	v := NewValue("a")

	var seen string
	v.Subscribe(func(string) { seen = v.Get() })

	v.Set("b")
	assert.Equal(t, "b", seen, "subscriber must observe the stored value")
}

func TestNetworkValue_Unsubscribe(t *testing.T) {
	v := NewValue(false)

	count := 0
	cancel := v.Subscribe(func(bool) { count++ })
	v.Set(true)
	cancel()
	v.Set(false)

	assert.Equal(t, 1, count)
	assert.Equal(t, 0, v.Subscribers())
}

func TestNetworkValue_SuppressSilences(t *testing.T) {
	v := NewValue("a")

	count := 0
	v.Subscribe(func(string) { count++ })

	release := v.Suppress()
	v.Set("b")
	release()
	v.Set("c")

	assert.Equal(t, "c", v.Get())
	assert.Equal(t, 1, count, "only the unsuppressed set notifies")
}

func TestNetworkValue_SuppressNested(t *testing.T) {
	v := NewValue(0)

	outer := v.Suppress()
	inner := v.Suppress()
	inner()
	assert.True(t, v.Suppressed(), "inner release must not end the outer scope")

	outer()
	assert.False(t, v.Suppressed())

	// Releasing twice is harmless.
	outer()
	assert.False(t, v.Suppressed())
}

func TestNetworkValue_SuppressReleasedOnPanic(t *testing.T) {
	v := NewValue(0)

	func() {
		defer func() { _ = recover() }()
		release := v.Suppress()
		defer release()
		panic("boom")
	}()

	assert.False(t, v.Suppressed())
}

func TestNetworkValue_UntypedView(t *testing.T) {
	var p Value = NewValue("x")

	assert.Equal(t, ir.KindValue, p.Kind())

	var seen any
	p.Watch(func(v any) { seen = v })

	require.NoError(t, p.Store("y"))
	assert.Equal(t, "y", p.Load())
	assert.Equal(t, "y", seen)

	err := p.Store(42)
	var typeErr *TypeError
	require.ErrorAs(t, err, &typeErr)
	assert.Equal(t, "string", typeErr.Want)
	assert.Equal(t, "int", typeErr.Got)
	assert.Equal(t, "y", p.Load(), "rejected store leaves value untouched")
}

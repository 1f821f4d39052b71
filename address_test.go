package xplorer

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAddressRegistryRegisterAndLookup(t *testing.T) {
	r := NewAddressRegistry()

	type widget struct{ Name string }
	w := &widget{Name: "button"}

	addr := r.Register(w)
	assert.NotZero(t, addr)

	got, ok := r.ObjectAt(addr, reflect.TypeOf(w))
	assert.True(t, ok)
	assert.Same(t, w, got)
}

func TestAddressRegistryRejectsZeroAndMisaligned(t *testing.T) {
	r := NewAddressRegistry()

	for _, addr := range []uintptr{0, 1, 3, 5, 7} {
		_, ok := r.ObjectAt(addr, nil)
		assert.False(t, ok, "address %d must not resolve", addr)
	}
}

func TestAddressRegistryRejectsUnknownAddress(t *testing.T) {
	r := NewAddressRegistry()
	_, ok := r.ObjectAt(8, nil)
	assert.False(t, ok)
}

func TestAddressRegistryTypeMismatch(t *testing.T) {
	r := NewAddressRegistry()

	type widget struct{ Name string }
	type gadget struct{ Name string }

	w := &widget{Name: "button"}
	addr := r.Register(w)

	_, ok := r.ObjectAt(addr, reflect.TypeOf(&gadget{}))
	assert.False(t, ok)
}

func TestAddressRegistryUnregister(t *testing.T) {
	r := NewAddressRegistry()

	type widget struct{ Name string }
	w := &widget{Name: "button"}
	addr := r.Register(w)

	r.Unregister(addr)

	_, ok := r.ObjectAt(addr, nil)
	assert.False(t, ok)
}

func TestAddressRegistryPanicsOnNonPointer(t *testing.T) {
	r := NewAddressRegistry()
	assert.Panics(t, func() {
		r.Register(42)
	})
}

func TestParseAddressRoundTrip(t *testing.T) {
	addr, ok := ParseAddress("0x10")
	assert.True(t, ok)
	assert.Equal(t, uintptr(16), addr)
	assert.Equal(t, "0x10", AddressString(addr))

	_, ok = ParseAddress("not-hex")
	assert.False(t, ok)

	_, ok = ParseAddress("")
	assert.False(t, ok)
}

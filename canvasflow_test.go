package canvasflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValuesKeyPrefersUniqueUUID(t *testing.T) {
	comp := &Component{UUID: "u1"}
	assert.Equal(t, "u1", comp.ValuesKey())

	comp.UniqueUUID = "microapp_x__u1"
	assert.Equal(t, "microapp_x__u1", comp.ValuesKey())
}

func TestEventNameHelpers(t *testing.T) {
	assert.Equal(t, "component-property-changed:Label1", ComponentPropertyChangedEvent("Label1"))
	assert.Equal(t, "component:value:set:u1", ComponentValueSetEvent("u1"))
	assert.Equal(t, "runtime:Vars:theme", ScopedEvent("runtime", "Vars", "theme"))
}

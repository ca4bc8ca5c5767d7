package action

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func counterDef() Definition {
	on := DefaultState()
	on.Image = "on"
	off := DefaultState()
	off.Image = "off"
	return Definition{
		Name:                    "Counter",
		UUID:                    "plugin.counter",
		Plugin:                  "plugin.counter",
		SupportedInMultiActions: true,
		Controllers:             []string{ControllerKeypad},
		States:                  []State{off, on},
	}
}

func slot() Slot {
	return Slot{Device: "sd-ABC", Profile: "Default", Controller: ControllerKeypad, Position: 4}
}

func TestNewRoot(t *testing.T) {
	simple := NewRoot(counterDef(), slot().WithIndex(0))
	assert.Nil(t, simple.Children)
	assert.False(t, simple.IsComposite())
	assert.JSONEq(t, `{}`, string(simple.Settings))
	assert.Len(t, simple.States, 2)

	multi := NewRoot(Builtins()[0], slot().WithIndex(0))
	assert.NotNil(t, multi.Children)
	assert.Empty(t, multi.Children)
	assert.True(t, multi.IsComposite())
}

func TestNewInstance_StatesIndependentOfDefinition(t *testing.T) {
	def := counterDef()
	inst := NewInstance(def, slot().WithIndex(0))

	inst.States[0].Text = "changed"
	assert.Empty(t, def.States[0].Text)
}

func TestInstance_CycleState(t *testing.T) {
	inst := NewInstance(counterDef(), slot().WithIndex(0))

	assert.True(t, inst.CycleState())
	assert.Equal(t, 1, inst.CurrentState)
	assert.True(t, inst.CycleState())
	assert.Equal(t, 0, inst.CurrentState)

	inst.Action.DisableAutomaticStates = true
	assert.False(t, inst.CycleState())
	assert.Equal(t, 0, inst.CurrentState)

	three := NewInstance(counterDef(), slot().WithIndex(0))
	three.States = append(three.States, DefaultState())
	assert.False(t, three.CycleState())
}

func TestInstance_SetStatesClamps(t *testing.T) {
	inst := NewInstance(counterDef(), slot().WithIndex(0))
	inst.CurrentState = 1

	inst.SetStates([]State{DefaultState()})
	assert.Equal(t, 0, inst.CurrentState)

	inst.SetStates(nil)
	assert.Equal(t, 0, inst.CurrentState)
	_, ok := inst.Current()
	assert.False(t, ok)
}

func TestRoot_ToggleChildren(t *testing.T) {
	toggle := NewRoot(Builtins()[1], slot().WithIndex(0))

	for n := 0; n < 3; n++ {
		child := NewInstance(counterDef(), slot().WithIndex(toggle.NextChildIndex()))
		require.NoError(t, toggle.AddChild(child))
	}

	require.Len(t, toggle.Children, 3)
	assert.Len(t, toggle.States, 3)
	assert.Equal(t, []int{1, 2, 3}, []int{
		toggle.Children[0].Context.Index,
		toggle.Children[1].Context.Index,
		toggle.Children[2].Context.Index,
	})
	require.NoError(t, toggle.Validate())

	toggle.CurrentState = 2
	assert.True(t, toggle.RemoveChild(slot().WithIndex(3)))
	assert.Len(t, toggle.States, 2)
	assert.Equal(t, 1, toggle.CurrentState)
	require.NoError(t, toggle.Validate())

	assert.Equal(t, 3, toggle.NextChildIndex())
	assert.False(t, toggle.RemoveChild(slot().WithIndex(9)))
}

func TestRoot_AddChildRejects(t *testing.T) {
	simple := NewRoot(counterDef(), slot().WithIndex(0))
	err := simple.AddChild(NewInstance(counterDef(), slot().WithIndex(1)))
	assert.ErrorIs(t, err, ErrInvalidInstance)

	multi := NewRoot(Builtins()[0], slot().WithIndex(0))

	nested := NewInstance(Builtins()[1], slot().WithIndex(1))
	assert.ErrorIs(t, multi.AddChild(nested), ErrInvalidInstance)

	ineligible := counterDef()
	ineligible.SupportedInMultiActions = false
	assert.ErrorIs(t, multi.AddChild(NewInstance(ineligible, slot().WithIndex(1))), ErrInvalidInstance)

	other := Slot{Device: "sd-ABC", Profile: "Default", Controller: ControllerKeypad, Position: 5}
	assert.ErrorIs(t, multi.AddChild(NewInstance(counterDef(), other.WithIndex(1))), ErrInvalidInstance)

	assert.ErrorIs(t, multi.AddChild(NewInstance(counterDef(), slot().WithIndex(0))), ErrInvalidInstance)
}

func TestRoot_FindAndRelocate(t *testing.T) {
	multi := NewRoot(Builtins()[0], slot().WithIndex(0))
	child := NewInstance(counterDef(), slot().WithIndex(1))
	require.NoError(t, multi.AddChild(child))

	assert.Same(t, &multi.Instance, multi.Find(slot().WithIndex(0)))
	assert.Same(t, child, multi.Find(slot().WithIndex(1)))
	assert.Nil(t, multi.Find(slot().WithIndex(2)))

	dest := Slot{Device: "sd-ABC", Profile: "Other", Controller: ControllerKeypad, Position: 0}
	multi.Relocate(dest)
	assert.Equal(t, dest.WithIndex(0), multi.Context)
	assert.Equal(t, dest.WithIndex(1), multi.Children[0].Context)
	assert.NoError(t, multi.Validate())
}

func TestRoot_Leaves(t *testing.T) {
	simple := NewRoot(counterDef(), slot().WithIndex(0))
	assert.Equal(t, []*Instance{&simple.Instance}, simple.Leaves())

	multi := NewRoot(Builtins()[0], slot().WithIndex(0))
	assert.Empty(t, multi.Leaves())
}

func TestRoot_CloneIsDeep(t *testing.T) {
	multi := NewRoot(Builtins()[0], slot().WithIndex(0))
	require.NoError(t, multi.AddChild(NewInstance(counterDef(), slot().WithIndex(1))))
	multi.Children[0].Settings = json.RawMessage(`{"a":1}`)

	cpy := multi.Clone()
	cpy.Children[0].Settings[5] = '2'
	cpy.Children[0].States[0].Text = "x"
	cpy.Children = append(cpy.Children, NewInstance(counterDef(), slot().WithIndex(2)))

	assert.JSONEq(t, `{"a":1}`, string(multi.Children[0].Settings))
	assert.Empty(t, multi.Children[0].States[0].Text)
	assert.Len(t, multi.Children, 1)
}

func TestRoot_ValidateSimpleWithChildren(t *testing.T) {
	simple := NewRoot(counterDef(), slot().WithIndex(0))
	simple.Children = []*Instance{}
	assert.ErrorIs(t, simple.Validate(), ErrInvalidInstance)
}

func TestRoot_JSONShape(t *testing.T) {
	simple := NewRoot(counterDef(), slot().WithIndex(0))

	data, err := json.Marshal(simple)
	require.NoError(t, err)

	var raw map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &raw))
	for _, key := range []string{"action", "context", "states", "current_state", "settings", "children"} {
		assert.Contains(t, raw, key)
	}
	assert.Equal(t, `"sd-ABC.Default.Keypad.4.0"`, string(raw["context"]))
	assert.Equal(t, "null", string(raw["children"]))
}

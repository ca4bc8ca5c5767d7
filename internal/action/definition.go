package action

import (
	"bytes"
	"encoding/json"
	"slices"
)

// Built-in plugin and composite action identifiers.
const (
	BuiltinPlugin    = "opendeck"
	MultiActionUUID  = "opendeck.multiaction"
	ToggleActionUUID = "opendeck.toggleaction"
)

// Kind classifies an action by how the router treats it.
type Kind int

const (
	// KindSimple is any plugin-provided action.
	KindSimple Kind = iota
	// KindMulti runs every child in order on one press.
	KindMulti
	// KindToggle runs one child per press and release, cycling.
	KindToggle
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindMulti:
		return "multi"
	case KindToggle:
		return "toggle"
	default:
		return "simple"
	}
}

// KindOf returns the kind of the action with the given uuid.
func KindOf(uuid string) Kind {
	switch uuid {
	case MultiActionUUID:
		return KindMulti
	case ToggleActionUUID:
		return KindToggle
	default:
		return KindSimple
	}
}

// Definition is an action template as declared by its plugin.
type Definition struct {
	Name                    string   `json:"name"`
	UUID                    string   `json:"uuid"`
	Plugin                  string   `json:"plugin"`
	Tooltip                 string   `json:"tooltip"`
	Icon                    string   `json:"icon"`
	DisableAutomaticStates  bool     `json:"disable_automatic_states"`
	VisibleInActionList     bool     `json:"visible_in_action_list"`
	SupportedInMultiActions bool     `json:"supported_in_multi_actions"`
	PropertyInspector       string   `json:"property_inspector"`
	Controllers             []string `json:"controllers"`
	States                  []State  `json:"states"`
}

// Kind returns the routing kind of the definition.
func (d Definition) Kind() Kind {
	return KindOf(d.UUID)
}

// IsBuiltin reports whether the definition belongs to the core itself.
func (d Definition) IsBuiltin() bool {
	return d.Plugin == BuiltinPlugin
}

// Supports reports whether the action may be bound to the controller kind.
func (d Definition) Supports(controller string) bool {
	return slices.Contains(d.Controllers, controller)
}

// Clone returns a copy that shares no slices with d.
func (d Definition) Clone() Definition {
	d.Controllers = slices.Clone(d.Controllers)
	d.States = cloneStates(d.States)
	return d
}

// UnmarshalJSON applies manifest defaults and accepts manifest spellings.
func (d *Definition) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		return nil
	}

	type plain Definition
	aux := struct {
		plain
		DisableAutomaticStatesAlias  *bool   `json:"DisableAutomaticStates"`
		VisibleInActionsListAlias    *bool   `json:"VisibleInActionsList"`
		SupportedInMultiActionsAlias *bool   `json:"SupportedInMultiActions"`
		PropertyInspectorPathAlias   *string `json:"PropertyInspectorPath"`
	}{plain: plain{
		VisibleInActionList:     true,
		SupportedInMultiActions: true,
	}}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	def := Definition(aux.plain)
	if aux.DisableAutomaticStatesAlias != nil {
		def.DisableAutomaticStates = *aux.DisableAutomaticStatesAlias
	}
	if aux.VisibleInActionsListAlias != nil {
		def.VisibleInActionList = *aux.VisibleInActionsListAlias
	}
	if aux.SupportedInMultiActionsAlias != nil {
		def.SupportedInMultiActions = *aux.SupportedInMultiActionsAlias
	}
	if aux.PropertyInspectorPathAlias != nil {
		def.PropertyInspector = *aux.PropertyInspectorPathAlias
	}
	if len(def.Controllers) == 0 {
		def.Controllers = []string{ControllerKeypad}
	}
	*d = def
	return nil
}

// Builtins returns fresh copies of the two composite definitions.
func Builtins() []Definition {
	return []Definition{
		builtin("Multi Action", MultiActionUUID, "Execute multiple actions", "opendeck/multi-action.png"),
		builtin("Toggle Action", ToggleActionUUID, "Cycle through multiple actions", "opendeck/toggle-action.png"),
	}
}

func builtin(name, uuid, tooltip, icon string) Definition {
	st := DefaultState()
	st.Image = icon
	return Definition{
		Name:                    name,
		UUID:                    uuid,
		Plugin:                  BuiltinPlugin,
		Tooltip:                 tooltip,
		Icon:                    icon,
		VisibleInActionList:     true,
		SupportedInMultiActions: false,
		Controllers:             []string{ControllerKeypad},
		States:                  []State{st},
	}
}

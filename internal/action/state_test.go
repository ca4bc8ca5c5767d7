package action

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestState_UnmarshalDefaults(t *testing.T) {
	var st State
	require.NoError(t, json.Unmarshal([]byte(`{}`), &st))
	assert.Equal(t, DefaultState(), st)
}

func TestState_UnmarshalManifestSpelling(t *testing.T) {
	input := `{
		"Image": "icons/on",
		"Title": "On",
		"ShowTitle": false,
		"TitleColor": "#FF0000",
		"TitleAlignment": "top",
		"FontFamily": "Mono",
		"FontStyle": "Bold",
		"FontSize": "12",
		"FontUnderline": true
	}`

	var st State
	require.NoError(t, json.Unmarshal([]byte(input), &st))

	assert.Equal(t, State{
		Image:     "icons/on",
		Text:      "On",
		Show:      false,
		Colour:    "#FF0000",
		Alignment: "top",
		Family:    "Mono",
		Style:     "Bold",
		Size:      12,
		Underline: true,
	}, st)
}

func TestFontSize_Unmarshal(t *testing.T) {
	tests := []struct {
		input   string
		want    FontSize
		wantErr bool
	}{
		{input: `16`, want: 16},
		{input: `"24"`, want: 24},
		{input: `"big"`, wantErr: true},
		{input: `-1`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			var f FontSize
			err := json.Unmarshal([]byte(tt.input), &f)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, f)
		})
	}
}

func TestDefinition_UnmarshalDefaults(t *testing.T) {
	input := `{"Name": "Counter", "UUID": "plugin.counter", "States": [{}, {"Image": "on"}]}`

	var def Definition
	require.NoError(t, json.Unmarshal([]byte(input), &def))

	assert.Equal(t, "Counter", def.Name)
	assert.Equal(t, "plugin.counter", def.UUID)
	assert.True(t, def.VisibleInActionList)
	assert.True(t, def.SupportedInMultiActions)
	assert.Equal(t, []string{ControllerKeypad}, def.Controllers)
	require.Len(t, def.States, 2)
	assert.Equal(t, DefaultImage, def.States[0].Image)
	assert.Equal(t, "on", def.States[1].Image)
}

func TestDefinition_UnmarshalManifestAliases(t *testing.T) {
	input := `{
		"UUID": "plugin.dial",
		"DisableAutomaticStates": true,
		"SupportedInMultiActions": false,
		"VisibleInActionsList": false,
		"PropertyInspectorPath": "pi.html",
		"Controllers": ["Encoder"]
	}`

	var def Definition
	require.NoError(t, json.Unmarshal([]byte(input), &def))

	assert.True(t, def.DisableAutomaticStates)
	assert.False(t, def.SupportedInMultiActions)
	assert.False(t, def.VisibleInActionList)
	assert.Equal(t, "pi.html", def.PropertyInspector)
	assert.True(t, def.Supports(ControllerEncoder))
	assert.False(t, def.Supports(ControllerKeypad))
}

func TestBuiltins(t *testing.T) {
	builtins := Builtins()
	require.Len(t, builtins, 2)

	for _, def := range builtins {
		assert.Equal(t, BuiltinPlugin, def.Plugin)
		assert.True(t, def.IsBuiltin())
		assert.False(t, def.SupportedInMultiActions)
		assert.Equal(t, []string{ControllerKeypad}, def.Controllers)
		assert.Len(t, def.States, 1)
	}
	assert.Equal(t, KindMulti, builtins[0].Kind())
	assert.Equal(t, KindToggle, builtins[1].Kind())
}

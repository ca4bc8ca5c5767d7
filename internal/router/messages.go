package router

import (
	"encoding/json"

	"github.com/nerrad567/opendeck-core/internal/action"
	"github.com/nerrad567/opendeck-core/internal/device"
)

// Event names sent to plugins and property inspectors.
const (
	EventKeyDown                  = "keyDown"
	EventKeyUp                    = "keyUp"
	EventDialDown                 = "dialDown"
	EventDialUp                   = "dialUp"
	EventDialRotate               = "dialRotate"
	EventWillAppear               = "willAppear"
	EventWillDisappear            = "willDisappear"
	EventDeviceDidConnect         = "deviceDidConnect"
	EventDeviceDidDisconnect      = "deviceDidDisconnect"
	EventDidReceiveSettings       = "didReceiveSettings"
	EventDidReceiveGlobalSettings = "didReceiveGlobalSettings"
	EventTitleParametersDidChange = "titleParametersDidChange"
)

// Coordinates locate a slot on the device face.
type Coordinates struct {
	Row    int `json:"row"`
	Column int `json:"column"`
}

// Message is the envelope of every outbound event.
type Message struct {
	Event      string      `json:"event"`
	Action     string      `json:"action,omitempty"`
	Context    string      `json:"context,omitempty"`
	Device     string      `json:"device,omitempty"`
	DeviceInfo *DeviceInfo `json:"deviceInfo,omitempty"`
	Payload    any         `json:"payload,omitempty"`
}

// InstancePayload accompanies key, appear and settings events.
type InstancePayload struct {
	Settings        json.RawMessage `json:"settings"`
	Coordinates     Coordinates     `json:"coordinates"`
	Controller      string          `json:"controller"`
	State           int             `json:"state"`
	IsInMultiAction bool            `json:"isInMultiAction"`
}

// RotatePayload accompanies dialRotate.
type RotatePayload struct {
	Settings    json.RawMessage `json:"settings"`
	Coordinates Coordinates     `json:"coordinates"`
	Controller  string          `json:"controller"`
	Ticks       int             `json:"ticks"`
	Pressed     bool            `json:"pressed"`
}

// TitlePayload accompanies titleParametersDidChange.
type TitlePayload struct {
	Settings        json.RawMessage `json:"settings"`
	Coordinates     Coordinates     `json:"coordinates"`
	State           int             `json:"state"`
	Title           string          `json:"title"`
	TitleParameters TitleParameters `json:"titleParameters"`
}

// TitleParameters mirror the title fields of an action state.
type TitleParameters struct {
	FontFamily     string `json:"fontFamily"`
	FontSize       int    `json:"fontSize"`
	FontStyle      string `json:"fontStyle"`
	FontUnderline  bool   `json:"fontUnderline"`
	ShowTitle      bool   `json:"showTitle"`
	TitleAlignment string `json:"titleAlignment"`
	TitleColor     string `json:"titleColor"`
}

// GlobalSettingsPayload accompanies didReceiveGlobalSettings.
type GlobalSettingsPayload struct {
	Settings json.RawMessage `json:"settings"`
}

// DeviceInfo accompanies deviceDidConnect.
type DeviceInfo struct {
	Name string     `json:"name"`
	Type int        `json:"type"`
	Size DeviceSize `json:"size"`
}

// DeviceSize is the key grid of a device.
type DeviceSize struct {
	Rows    int `json:"rows"`
	Columns int `json:"columns"`
}

func coordinates(rec device.Record, ctx action.Context) Coordinates {
	row, column := rec.Coordinates(ctx.Controller == action.ControllerEncoder, ctx.Position)
	return Coordinates{Row: row, Column: column}
}

func instancePayload(rec device.Record, inst *action.Instance, nested bool) InstancePayload {
	return InstancePayload{
		Settings:        settingsOf(inst),
		Coordinates:     coordinates(rec, inst.Context),
		Controller:      inst.Context.Controller,
		State:           inst.CurrentState,
		IsInMultiAction: nested,
	}
}

func instanceMessage(event string, rec device.Record, inst *action.Instance, payload any) Message {
	return Message{
		Event:   event,
		Action:  inst.Action.UUID,
		Context: inst.Context.String(),
		Device:  rec.ID,
		Payload: payload,
	}
}

func titleMessage(rec device.Record, inst *action.Instance) (Message, bool) {
	st, ok := inst.Current()
	if !ok {
		return Message{}, false
	}
	return instanceMessage(EventTitleParametersDidChange, rec, inst, TitlePayload{
		Settings:    settingsOf(inst),
		Coordinates: coordinates(rec, inst.Context),
		State:       inst.CurrentState,
		Title:       st.Text,
		TitleParameters: TitleParameters{
			FontFamily:     st.Family,
			FontSize:       int(st.Size),
			FontStyle:      st.Style,
			FontUnderline:  st.Underline,
			ShowTitle:      st.Show,
			TitleAlignment: st.Alignment,
			TitleColor:     st.Colour,
		},
	}), true
}

func settingsOf(inst *action.Instance) json.RawMessage {
	if len(inst.Settings) == 0 {
		return action.EmptySettings
	}
	return inst.Settings
}

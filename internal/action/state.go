package action

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// DefaultImage is the placeholder image name shown until a state has its own.
const DefaultImage = "actionDefaultImage"

// FontSize is a title font size. Manifests write it as either a number or a
// numeric string.
type FontSize int

// UnmarshalJSON accepts 16 and "16".
func (f *FontSize) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		n, err := strconv.ParseUint(s, 10, 16)
		if err != nil {
			return fmt.Errorf("font size %q: %w", s, err)
		}
		*f = FontSize(n)
		return nil
	}
	var n uint16
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("font size: %w", err)
	}
	*f = FontSize(n)
	return nil
}

// State is one visual state of an instance.
type State struct {
	Image     string   `json:"image"`
	Name      string   `json:"name"`
	Text      string   `json:"text"`
	Show      bool     `json:"show"`
	Colour    string   `json:"colour"`
	Alignment string   `json:"alignment"`
	Family    string   `json:"family"`
	Style     string   `json:"style"`
	Size      FontSize `json:"size"`
	Underline bool     `json:"underline"`
}

// DefaultState returns the state used for any field a manifest leaves out.
func DefaultState() State {
	return State{
		Image:     DefaultImage,
		Show:      true,
		Colour:    "#FFFFFF",
		Alignment: "middle",
		Family:    "Liberation Sans",
		Style:     "Regular",
		Size:      16,
	}
}

// UnmarshalJSON fills missing fields from DefaultState and accepts the
// manifest spellings (Title, ShowTitle, TitleColor, ...).
func (s *State) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		return nil
	}

	type plain State
	aux := struct {
		plain
		Title          *string   `json:"Title"`
		ShowTitle      *bool     `json:"ShowTitle"`
		TitleColor     *string   `json:"TitleColor"`
		TitleAlignment *string   `json:"TitleAlignment"`
		FontFamily     *string   `json:"FontFamily"`
		FontStyle      *string   `json:"FontStyle"`
		FontSize       *FontSize `json:"FontSize"`
		FontUnderline  *bool     `json:"FontUnderline"`
	}{plain: plain(DefaultState())}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	st := State(aux.plain)
	if aux.Title != nil {
		st.Text = *aux.Title
	}
	if aux.ShowTitle != nil {
		st.Show = *aux.ShowTitle
	}
	if aux.TitleColor != nil {
		st.Colour = *aux.TitleColor
	}
	if aux.TitleAlignment != nil {
		st.Alignment = *aux.TitleAlignment
	}
	if aux.FontFamily != nil {
		st.Family = *aux.FontFamily
	}
	if aux.FontStyle != nil {
		st.Style = *aux.FontStyle
	}
	if aux.FontSize != nil {
		st.Size = *aux.FontSize
	}
	if aux.FontUnderline != nil {
		st.Underline = *aux.FontUnderline
	}
	*s = st
	return nil
}

func cloneStates(states []State) []State {
	if states == nil {
		return nil
	}
	out := make([]State, len(states))
	copy(out, states)
	return out
}

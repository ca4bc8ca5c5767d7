package profile

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/nerrad567/opendeck-core/internal/action"
)

// diskInstance is the portable on-disk form of an instance. Device and
// profile are implied by the file location.
type diskInstance struct {
	Action       action.Definition  `json:"action"`
	Context      action.DiskContext `json:"context"`
	States       []action.State     `json:"states"`
	CurrentState int                `json:"current_state"`
	Settings     json.RawMessage    `json:"settings"`
	Children     []*diskInstance    `json:"children"`
}

type diskProfile struct {
	Keys    []*diskInstance `json:"keys"`
	Sliders []*diskInstance `json:"sliders"`
	// Touchpoints is read from older files and folded into Keys.
	Touchpoints []*diskInstance `json:"touchpoints,omitempty"`
}

// codec converts a Profile to and from its on-disk form. It is bound to
// one device and profile id because the file does not record them.
type codec struct {
	paths   Paths
	device  string
	profile string
}

// Encode implements store.Codec. Inline data: images are extracted into
// the instance image directory as a side effect; the in-memory value is
// left untouched.
func (c codec) Encode(p Profile) ([]byte, error) {
	disk := diskProfile{
		Keys:    make([]*diskInstance, len(p.Keys)),
		Sliders: make([]*diskInstance, len(p.Sliders)),
	}
	for n, r := range p.Keys {
		disk.Keys[n] = c.encodeRoot(r)
	}
	for n, r := range p.Sliders {
		disk.Sliders[n] = c.encodeRoot(r)
	}
	return json.MarshalIndent(disk, "", "  ")
}

func (c codec) encodeRoot(r *action.Root) *diskInstance {
	if r == nil {
		return nil
	}
	d := c.encodeInstance(&r.Instance)
	if r.Children != nil {
		d.Children = make([]*diskInstance, len(r.Children))
		for n, child := range r.Children {
			d.Children[n] = c.encodeInstance(child)
		}
	}
	return d
}

func (c codec) encodeInstance(i *action.Instance) *diskInstance {
	imageDir := c.paths.InstanceImageDir(i.Context)
	d := &diskInstance{
		Action:       i.Action.Clone(),
		Context:      i.Context.Disk(),
		States:       make([]action.State, len(i.States)),
		CurrentState: i.CurrentState,
		Settings:     i.Settings,
	}
	copy(d.States, i.States)

	for n := range d.States {
		img := d.States[n].Image
		if strings.HasPrefix(img, "data:") {
			name, err := extractDataURL(img, imageDir, n)
			if err != nil {
				// Keep the inline image rather than lose it.
				continue
			}
			img = name
		}
		d.States[n].Image = c.paths.normalise(img, imageDir)
	}
	for n := range d.Action.States {
		d.Action.States[n].Image = c.paths.normalise(d.Action.States[n].Image, "")
	}
	d.Action.Icon = c.paths.normalise(d.Action.Icon, "")
	d.Action.PropertyInspector = c.paths.normalise(d.Action.PropertyInspector, "")
	return d
}

// Decode implements store.Codec.
func (c codec) Decode(data []byte, _ string) (Profile, error) {
	var disk diskProfile
	if err := json.Unmarshal(data, &disk); err != nil {
		return Profile{}, err
	}

	p := Profile{
		ID:      c.profile,
		Keys:    make([]*action.Root, 0, len(disk.Keys)+len(disk.Touchpoints)),
		Sliders: make([]*action.Root, len(disk.Sliders)),
	}
	for _, d := range append(disk.Keys, disk.Touchpoints...) {
		p.Keys = append(p.Keys, c.decodeRoot(d))
	}
	for n, d := range disk.Sliders {
		p.Sliders[n] = c.decodeRoot(d)
	}
	return p, nil
}

func (c codec) decodeRoot(d *diskInstance) *action.Root {
	if d == nil {
		return nil
	}
	r := &action.Root{Instance: *c.decodeInstance(d)}
	if d.Children != nil {
		// Grandchildren cannot be represented and are dropped.
		r.Children = make([]*action.Instance, 0, len(d.Children))
		for _, child := range d.Children {
			if child != nil {
				r.Children = append(r.Children, c.decodeInstance(child))
			}
		}
	}
	return r
}

func (c codec) decodeInstance(d *diskInstance) *action.Instance {
	ctx := d.Context.In(c.device, c.profile)
	imageDir := c.paths.InstanceImageDir(ctx)

	i := &action.Instance{
		Action:       d.Action,
		Context:      ctx,
		States:       d.States,
		CurrentState: d.CurrentState,
		Settings:     compact(d.Settings),
	}
	for n := range i.States {
		i.States[n].Image = c.paths.reconstructState(i.States[n].Image, imageDir)
	}
	for n := range i.Action.States {
		i.Action.States[n].Image = c.paths.reconstruct(i.Action.States[n].Image)
	}
	i.Action.Icon = c.paths.reconstruct(i.Action.Icon)
	i.Action.PropertyInspector = c.paths.reconstruct(i.Action.PropertyInspector)
	return i
}

// compact undoes the indentation MarshalIndent applies to raw settings so
// that a saved value reloads byte for byte.
func compact(raw json.RawMessage) json.RawMessage {
	if raw == nil {
		return nil
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return raw
	}
	return buf.Bytes()
}

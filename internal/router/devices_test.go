package router

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nerrad567/opendeck-core/internal/action"
	"github.com/nerrad567/opendeck-core/internal/device"
)

func TestRegisterDevice_BroadcastsAndAppears(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.connect(t, testDevice)
	env.create(t, "plugin.counter", keySlot(testDevice, 2))

	slot := keySlot(testDevice, 0)
	env.create(t, action.MultiActionUUID, slot)
	env.create(t, "plugin.other.action", slot)

	require.NoError(t, env.router.DeregisterDevice(ctx, "", testDevice))
	env.wire.reset()
	env.connect(t, testDevice)

	for _, p := range []string{counterPlugin, otherPlugin} {
		got := env.wire.filter(p, EventDeviceDidConnect)
		require.Len(t, got, 1, p)
		assert.Equal(t, testDevice, got[0].Msg["device"])
		assert.Equal(t, map[string]any{
			"name": "Deck sd-ABC",
			"type": float64(0),
			"size": map[string]any{"rows": float64(3), "columns": float64(5)},
		}, got[0].Msg["deviceInfo"])
	}

	appear := env.wire.filter(counterPlugin, EventWillAppear, EventTitleParametersDidChange)
	require.Len(t, appear, 2)
	assert.Equal(t, EventWillAppear, appear[0].event())
	assert.Equal(t, EventTitleParametersDidChange, appear[1].event())
	assert.Equal(t, "sd-ABC.Default.Keypad.2.0", appear[0].context())

	// The composite itself is silent; its child appears nested.
	nested := env.wire.filter(otherPlugin, EventWillAppear)
	require.Len(t, nested, 1)
	assert.Equal(t, "sd-ABC.Default.Keypad.0.1", nested[0].context())
	assert.Equal(t, true, nested[0].payload()["isInMultiAction"])

	assert.Len(t, env.router.Devices(), 1)
	assert.Equal(t, 3, env.notifier.devices)
}

func TestDeregisterDevice(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.connect(t, testDevice)
	env.create(t, "plugin.counter", keySlot(testDevice, 2))
	env.wire.reset()

	require.NoError(t, env.router.DeregisterDevice(ctx, "", testDevice))

	log := env.wire.filter(counterPlugin, EventWillDisappear, EventDeviceDidDisconnect)
	require.Len(t, log, 2)
	assert.Equal(t, EventWillDisappear, log[0].event())
	assert.Equal(t, "sd-ABC.Default.Keypad.2.0", log[0].context())
	assert.Equal(t, EventDeviceDidDisconnect, log[1].event())
	assert.Equal(t, testDevice, log[1].Msg["device"])

	assert.Empty(t, env.router.Devices())
	assert.ErrorIs(t, env.router.KeyDown(ctx, testDevice, 2), device.ErrDeviceNotFound)

	// Unknown devices are ignored.
	assert.NoError(t, env.router.DeregisterDevice(ctx, "", "sd-GONE"))
}

func TestRegisterDevice_NamespaceOwnership(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.devices.ClaimNamespace("sd", "driver.plugin")
	rec := device.Record{ID: testDevice, Name: "Deck", Rows: 3, Columns: 5, Encoders: 2}

	assert.ErrorIs(t, env.router.RegisterDevice(ctx, "intruder", rec), device.ErrNamespaceDenied)
	assert.Empty(t, env.router.Devices())

	require.NoError(t, env.router.RegisterDevice(ctx, "driver.plugin", rec))
	assert.ErrorIs(t, env.router.DeregisterDevice(ctx, "intruder", testDevice), device.ErrNamespaceDenied)
	assert.Len(t, env.router.Devices(), 1)
	require.NoError(t, env.router.DeregisterDevice(ctx, "driver.plugin", testDevice))
}

func TestRegisterDevice_PrunesUninstalledPlugins(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.connect(t, testDevice)
	env.create(t, "plugin.counter", keySlot(testDevice, 1))
	env.create(t, "plugin.other.action", keySlot(testDevice, 2))
	require.NoError(t, env.router.DeregisterDevice(ctx, "", testDevice))

	require.NoError(t, os.RemoveAll(filepath.Join(env.root, "plugins", otherPlugin)))
	env.connect(t, testDevice)

	p, err := env.router.Profile(testDevice, "Default")
	require.NoError(t, err)
	assert.NotNil(t, p.Keys[1])
	assert.Nil(t, p.Keys[2])
}

func TestRegisterDevice_InvalidRecord(t *testing.T) {
	env := newTestEnv(t)
	err := env.router.RegisterDevice(context.Background(), "", device.Record{ID: testDevice, Rows: -1})
	assert.ErrorIs(t, err, device.ErrInvalidDevice)
}

func TestRegisterDevice_UnreadableProfilesRollsBack(t *testing.T) {
	env := newTestEnv(t)
	// A file where the device's profile folder should be cannot be listed.
	require.NoError(t, os.MkdirAll(filepath.Join(env.root, "profiles"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(env.root, "profiles", testDevice), []byte("x"), 0o644))

	err := env.router.RegisterDevice(context.Background(), "", device.Record{
		ID: testDevice, Name: "Deck", Rows: 3, Columns: 5, Encoders: 2,
	})
	require.ErrorIs(t, err, ErrDeviceSetup)

	assert.Empty(t, env.router.Devices())
	_, err = env.devices.Get(testDevice)
	assert.ErrorIs(t, err, device.ErrDeviceNotFound)
	assert.Empty(t, env.wire.filter(counterPlugin, EventWillAppear))
	assert.ErrorIs(t, env.router.KeyDown(context.Background(), testDevice, 0), device.ErrDeviceNotFound)
}

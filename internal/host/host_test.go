package host

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumenled/led-autobrightness-daemon/internal/pipeline"
	"github.com/lumenled/led-autobrightness-daemon/internal/settings"
)

// stubCapability records lifecycle calls.
type stubCapability struct {
	name      string
	inits     int
	ticks     int
	imported  []json.RawMessage
	complete  bool
	exported  json.RawMessage
	telemetry map[string][]any
}

func (s *stubCapability) Name() string      { return s.name }
func (s *stubCapability) Initialize() error { s.inits++; return nil }

func (s *stubCapability) Tick(time.Time) { s.ticks++ }

func (s *stubCapability) ExportConfig() (json.RawMessage, error) {
	if s.exported == nil {
		return json.RawMessage(`{}`), nil
	}
	return s.exported, nil
}

func (s *stubCapability) ImportConfig(raw json.RawMessage) bool {
	s.imported = append(s.imported, raw)
	return s.complete
}

func (s *stubCapability) Telemetry() map[string][]any { return s.telemetry }

func (s *stubCapability) ConfigHints() map[string]string {
	return map[string]string{"field": "hint"}
}

func newTestLoop(t *testing.T, caps ...Capability) (*Loop, *settings.Store, *pipeline.Engine) {
	t.Helper()
	store := settings.NewStore(filepath.Join(t.TempDir(), "settings.json"))
	require.NoError(t, store.Load())
	engine := pipeline.New(nil, 1, [3]byte{255, 255, 255})
	loop := NewLoop(engine, store)
	for _, c := range caps {
		loop.Register(c)
	}
	return loop, store, engine
}

func TestLoop_Initialize_ImportsPersistedSections(t *testing.T) {
	cap1 := &stubCapability{name: "Auto Brightness", complete: true}
	loop, store, _ := newTestLoop(t, cap1)
	store.SetSection("Auto Brightness", json.RawMessage(`{"enabled":true}`))

	require.NoError(t, loop.Initialize())

	assert.Equal(t, 1, cap1.inits)
	require.Len(t, cap1.imported, 1)
	assert.JSONEq(t, `{"enabled":true}`, string(cap1.imported[0]))
}

func TestLoop_Initialize_NoSectionSkipsImport(t *testing.T) {
	cap1 := &stubCapability{name: "Auto Brightness"}
	loop, _, _ := newTestLoop(t, cap1)

	require.NoError(t, loop.Initialize())

	assert.Equal(t, 1, cap1.inits)
	assert.Empty(t, cap1.imported)
}

func TestLoop_Tick_DrivesEngineAndCapabilities(t *testing.T) {
	cap1 := &stubCapability{name: "a"}
	cap2 := &stubCapability{name: "b"}
	loop, _, engine := newTestLoop(t, cap1, cap2)

	now := time.Now()
	engine.StartTransition(200, time.Second, now)
	require.True(t, engine.Busy())

	loop.tick(now.Add(2 * time.Second))

	assert.Equal(t, 1, cap1.ticks)
	assert.Equal(t, 1, cap2.ticks)
	assert.False(t, engine.Busy(), "tick must advance the engine transition")
}

func TestLoop_Tick_DispatchesConsumedNotifications(t *testing.T) {
	var modes []pipeline.RefreshMode
	cap1 := &stubCapability{name: "a"}
	store := settings.NewStore(filepath.Join(t.TempDir(), "settings.json"))
	engine := pipeline.New(nil, 1, [3]byte{255, 255, 255})
	loop := NewLoop(engine, store, WithNotifier(func(mode pipeline.RefreshMode) {
		modes = append(modes, mode)
	}))
	loop.Register(cap1)

	loop.tick(time.Now())
	assert.Empty(t, modes, "no notification without a pending refresh")

	engine.RequestUIRefresh()
	loop.tick(time.Now())
	assert.Equal(t, []pipeline.RefreshMode{pipeline.RefreshNoNotify}, modes)
}

func TestLoop_ImportSection(t *testing.T) {
	cap1 := &stubCapability{name: "Auto Brightness", complete: true, exported: json.RawMessage(`{"enabled":true}`)}
	loop, store, engine := newTestLoop(t, cap1)

	complete, err := loop.ImportSection("Auto Brightness", json.RawMessage(`{"enabled":true}`))
	require.NoError(t, err)
	assert.True(t, complete)

	// The imported settings are persisted and a broadcast is scheduled.
	assert.JSONEq(t, `{"enabled":true}`, string(store.Section("Auto Brightness")))
	assert.Equal(t, pipeline.RefreshState, engine.ConsumeRefresh())
}

func TestLoop_ImportSection_Unknown(t *testing.T) {
	loop, _, _ := newTestLoop(t, &stubCapability{name: "a"})

	_, err := loop.ImportSection("nope", json.RawMessage(`{}`))
	assert.ErrorIs(t, err, ErrUnknownSection)
}

func TestLoop_ExportSection_Unknown(t *testing.T) {
	loop, _, _ := newTestLoop(t, &stubCapability{name: "a"})

	_, err := loop.ExportSection("nope")
	assert.ErrorIs(t, err, ErrUnknownSection)
}

func TestLoop_Telemetry_MergesCapabilities(t *testing.T) {
	cap1 := &stubCapability{name: "a", telemetry: map[string][]any{"Light level": {12.5, " lx"}}}
	cap2 := &stubCapability{name: "b", telemetry: map[string][]any{"Other": {1}}}
	loop, _, _ := newTestLoop(t, cap1, cap2)

	merged := loop.Telemetry()
	assert.Len(t, merged, 2)
	assert.Contains(t, merged, "Light level")
	assert.Contains(t, merged, "Other")
}

// switchableStub is a stubCapability with an enable toggle.
type switchableStub struct {
	stubCapability
	enabled []bool
}

func (s *switchableStub) SetEnabled(enabled bool) { s.enabled = append(s.enabled, enabled) }

func TestLoop_SetAutomatic(t *testing.T) {
	sw := &switchableStub{stubCapability: stubCapability{name: "Auto Brightness"}}
	plain := &stubCapability{name: "b"}
	loop, store, engine := newTestLoop(t, sw, plain)

	loop.SetAutomatic(true)
	loop.SetAutomatic(false)

	assert.Equal(t, []bool{true, false}, sw.enabled)
	assert.Equal(t, pipeline.RefreshState, engine.ConsumeRefresh())
	// Like a config import, the toggle is persisted.
	assert.NotNil(t, store.Section("Auto Brightness"))
}

func TestLoop_SetBrightness_TakesOwnership(t *testing.T) {
	loop, _, engine := newTestLoop(t)

	loop.SetBrightness(150, time.Second)

	assert.True(t, engine.Busy())
	assert.Equal(t, pipeline.RefreshState, engine.ConsumeRefresh())
}

func TestLoop_Run_StopsOnContextCancel(t *testing.T) {
	cap1 := &stubCapability{name: "a"}
	store := settings.NewStore(filepath.Join(t.TempDir(), "settings.json"))
	engine := pipeline.New(nil, 1, [3]byte{255, 255, 255})
	loop := NewLoop(engine, store, WithTickInterval(time.Millisecond))
	loop.Register(cap1)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		loop.Run(ctx)
		close(done)
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("loop did not stop after context cancellation")
	}
	loop.Locked(func() {
		assert.Greater(t, cap1.ticks, 0)
	})
}

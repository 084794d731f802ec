package runtime

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/AgentOS/appmanager/internal/domain/appinfo"
	"github.com/GriffinCanCode/AgentOS/appmanager/internal/domain/lifecycle"
	"github.com/GriffinCanCode/AgentOS/appmanager/internal/infrastructure/logging"
	"github.com/GriffinCanCode/AgentOS/appmanager/internal/shared/loop"
	"github.com/GriffinCanCode/AgentOS/appmanager/internal/shared/types"
)

type recordedStatus struct {
	appID  string
	status types.LifeStatus
}

type fakeSink struct {
	statuses []recordedStatus
	notified int
}

func (s *fakeSink) RequestStatus(appID string, requested types.LifeStatus) {
	s.statuses = append(s.statuses, recordedStatus{appID, requested})
}

func (s *fakeSink) NotifyRunningList() { s.notified++ }

func (s *fakeSink) lastStatus() types.LifeStatus {
	if len(s.statuses) == 0 {
		return types.LifeStatusInvalid
	}
	return s.statuses[len(s.statuses)-1].status
}

type sentMessage struct {
	method  string
	payload map[string]interface{}
}

type fakeConn struct {
	sent    []sentMessage
	sendErr error
}

func (c *fakeConn) Send(method string, payload map[string]interface{}) error {
	if c.sendErr != nil {
		return c.sendErr
	}
	c.sent = append(c.sent, sentMessage{method, payload})
	return nil
}

type doneResult struct {
	uid  string
	code int
	text string
}

func collectDone(results *[]doneResult) lifecycle.DoneFunc {
	return func(uid string, code int, text string) {
		*results = append(*results, doneResult{uid, code, text})
	}
}

type nativeFixture struct {
	lp      *loop.Loop
	store   *appinfo.Store
	sink    *fakeSink
	sup     *Supervisor
	handler *NativeHandler
}

func newNativeFixture(t *testing.T) *nativeFixture {
	t.Helper()
	log := logging.NewNop()
	lp := loop.New(64)
	lp.Start()
	t.Cleanup(lp.Stop)

	store := appinfo.NewStore()
	sink := &fakeSink{}
	sup := NewSupervisor(log, lp, nil, SupervisorOptions{KillGrace: 20 * time.Millisecond})
	handler := NewNativeHandler(log, lp, store, sink, sup, nil, NativeOptions{
		RegistrationTimeout:      50 * time.Millisecond,
		KillTimeout:              50 * time.Millisecond,
		MemoryReclaimKillTimeout: 20 * time.Millisecond,
	})
	return &nativeFixture{lp: lp, store: store, sink: sink, sup: sup, handler: handler}
}

// addClient installs a supervision record directly, bypassing Spawn.
func (f *nativeFixture) addClient(appID string, pid int, registered bool, conn lifecycle.AppConnection) *Client {
	client := &Client{AppID: appID, PID: pid, InterfaceVersion: 1, Registered: registered, conn: conn}
	f.lp.Call(func() {
		f.handler.clients[appID] = client
		f.store.SetRuntimeStatus(appID, types.RuntimeStatusRunning)
		if registered {
			f.store.SetRuntimeStatus(appID, types.RuntimeStatusRegistered)
		}
		f.store.AddRunningRecord(appID, pid)
	})
	return client
}

// bogusPID is far above any live pid so kill signals are harmless no-ops.
const bogusPID = 1 << 28

func newItem(appID string) *lifecycle.LaunchingItem {
	task := lifecycle.NewTask(appID, "caller", nil, func(lifecycle.Reply) {})
	return lifecycle.NewLaunchingItem(task)
}

func newCloseItem(appID, callerID, reason string) *lifecycle.CloseItem {
	return lifecycle.NewCloseItem(appID, 0, callerID, reason)
}

func TestLaunchPendingSingleSlotV1(t *testing.T) {
	f := newNativeFixture(t)
	desc := &types.AppDescriptor{ID: "com.example.v1", Kind: types.RuntimeNative, InterfaceVersion: 1}

	var results []doneResult
	f.lp.Call(func() {
		f.store.SetRuntimeStatus(desc.ID, types.RuntimeStatusLaunching)
		f.handler.Launch(newItem(desc.ID), desc, collectDone(&results))
		f.handler.Launch(newItem(desc.ID), desc, collectDone(&results))
	})

	require.Len(t, results, 1)
	assert.Equal(t, lifecycle.ErrLaunchPending, results[0].code)
	f.lp.Call(func() {
		assert.Len(t, f.handler.pending[desc.ID], 1)
	})
}

func TestLaunchPendingQueueV2(t *testing.T) {
	f := newNativeFixture(t)
	desc := &types.AppDescriptor{ID: "com.example.v2", Kind: types.RuntimeNative, InterfaceVersion: 2}

	var results []doneResult
	f.lp.Call(func() {
		f.store.SetRuntimeStatus(desc.ID, types.RuntimeStatusClosing)
		f.handler.Launch(newItem(desc.ID), desc, collectDone(&results))
		f.handler.Launch(newItem(desc.ID), desc, collectDone(&results))
	})

	assert.Empty(t, results)
	f.lp.Call(func() {
		assert.Len(t, f.handler.pending[desc.ID], 2)
	})
}

func TestRegisterDeniedWhenStopped(t *testing.T) {
	f := newNativeFixture(t)

	var code int
	var text string
	f.lp.Call(func() {
		f.handler.Register("com.example.ghost", &fakeConn{}, func(c int, s string) {
			code, text = c, s
		})
	})

	assert.Equal(t, lifecycle.ErrRegistrationDenied, code)
	assert.Contains(t, text, "cannot register")
}

func TestRegisterFlushesAllPending(t *testing.T) {
	f := newNativeFixture(t)
	const appID = "com.example.app"
	desc := &types.AppDescriptor{ID: appID, Kind: types.RuntimeNative, InterfaceVersion: 2}
	conn := &fakeConn{}
	f.addClient(appID, 4242, false, nil)

	var launches []doneResult
	f.lp.Call(func() {
		f.handler.pending[appID] = []*pendingLaunch{
			{it: newItem(appID), desc: desc, done: collectDone(&launches)},
			{it: newItem(appID), desc: desc, done: collectDone(&launches)},
		}
	})

	var regCode int
	f.lp.Call(func() {
		f.handler.Register(appID, conn, func(c int, _ string) { regCode = c })
	})

	assert.Equal(t, lifecycle.ErrNone, regCode)
	assert.Equal(t, types.RuntimeStatusRegistered, f.store.RuntimeStatus(appID))

	// Both queued launches became in-place relaunch notifications.
	require.Len(t, launches, 2)
	for _, r := range launches {
		assert.Equal(t, lifecycle.ErrNone, r.code)
	}
	require.Len(t, conn.sent, 2)
	assert.Equal(t, "relaunch", conn.sent[0].method)
	f.lp.Call(func() {
		assert.Empty(t, f.handler.pending[appID])
	})
}

func TestCloseIdempotentWhileClosing(t *testing.T) {
	f := newNativeFixture(t)
	const appID = "com.example.app"
	conn := &fakeConn{}
	f.addClient(appID, 4242, true, conn)
	f.lp.Call(func() {
		f.store.SetRuntimeStatus(appID, types.RuntimeStatusClosing)
	})

	var results []doneResult
	f.lp.Call(func() {
		ci := newCloseItem(appID, "caller", "userClose")
		f.handler.Close(ci, nil, collectDone(&results))
	})

	require.Len(t, results, 1)
	assert.Equal(t, lifecycle.ErrNone, results[0].code)
	assert.Empty(t, conn.sent, "no second close notification while already closing")
}

func TestCloseRegisteredArmsKillTimer(t *testing.T) {
	f := newNativeFixture(t)
	const appID = "com.example.app"
	conn := &fakeConn{}
	f.addClient(appID, bogusPID, true, conn)

	var results []doneResult
	f.lp.Call(func() {
		ci := newCloseItem(appID, "caller", "userClose")
		f.handler.Close(ci, nil, collectDone(&results))
	})

	require.Len(t, results, 1)
	assert.Equal(t, lifecycle.ErrNone, results[0].code)
	require.Len(t, conn.sent, 1)
	assert.Equal(t, "close", conn.sent[0].method)
	assert.Equal(t, types.RuntimeStatusClosing, f.store.RuntimeStatus(appID))
	f.lp.Call(func() {
		assert.True(t, f.sup.HasKillRecord(appID))
		assert.Equal(t, types.LifeStatusClosing, f.sink.lastStatus())
	})
}

func TestCloseNotificationFailureForcesKill(t *testing.T) {
	f := newNativeFixture(t)
	const appID = "com.example.app"
	conn := &fakeConn{sendErr: errors.New("connection reset")}
	f.addClient(appID, bogusPID, true, conn)

	var results []doneResult
	f.lp.Call(func() {
		ci := newCloseItem(appID, "caller", "userClose")
		f.handler.Close(ci, nil, collectDone(&results))
	})

	require.Len(t, results, 1)
	assert.Equal(t, lifecycle.ErrNone, results[0].code)
	assert.Equal(t, types.RuntimeStatusClosing, f.store.RuntimeStatus(appID))
}

func TestPauseRegistered(t *testing.T) {
	f := newNativeFixture(t)
	const appID = "com.example.app"
	conn := &fakeConn{}
	f.addClient(appID, 4242, true, conn)

	var code int
	f.lp.Call(func() {
		f.handler.Pause(appID, types.LaunchParams{"saveState": true}, func(c int, _ string) { code = c })
	})

	assert.Equal(t, lifecycle.ErrNone, code)
	require.Len(t, conn.sent, 1)
	assert.Equal(t, "pause", conn.sent[0].method)
	f.lp.Call(func() {
		assert.Equal(t, types.LifeStatusPausing, f.sink.lastStatus())
	})
}

func TestPauseWithoutProcess(t *testing.T) {
	f := newNativeFixture(t)

	var code int
	f.lp.Call(func() {
		f.handler.Pause("com.example.ghost", nil, func(c int, _ string) { code = c })
	})

	assert.Equal(t, lifecycle.ErrNoProcess, code)
}

func TestExitReleasesExactlyOnePending(t *testing.T) {
	f := newNativeFixture(t)
	const appID = "com.example.app"
	// Exec left empty so the released launch fails at spawn instead of
	// forking a real process.
	desc := &types.AppDescriptor{ID: appID, Kind: types.RuntimeNative, InterfaceVersion: 2}
	f.addClient(appID, 4242, false, nil)

	var first, second []doneResult
	f.lp.Call(func() {
		f.handler.pending[appID] = []*pendingLaunch{
			{it: newItem(appID), desc: desc, done: collectDone(&first)},
			{it: newItem(appID), desc: desc, done: collectDone(&second)},
		}
	})

	f.lp.Call(func() {
		f.handler.onProcessExit(appID, 4242)
	})

	require.Len(t, first, 1, "head of the queue must be released")
	assert.Equal(t, lifecycle.ErrSpawnFailed, first[0].code)
	assert.Empty(t, second, "only one pending launch is released per exit")
	f.lp.Call(func() {
		assert.Len(t, f.handler.pending[appID], 1)
	})
}

func TestExitClearsRecordsAndReportsStop(t *testing.T) {
	f := newNativeFixture(t)
	const appID = "com.example.app"
	f.addClient(appID, 4242, true, &fakeConn{})

	f.lp.Call(func() {
		f.handler.onProcessExit(appID, 4242)
	})

	assert.Equal(t, types.RuntimeStatusStop, f.store.RuntimeStatus(appID))
	assert.False(t, f.store.IsRunning(appID))
	f.lp.Call(func() {
		_, exists := f.handler.clients[appID]
		assert.False(t, exists)
		assert.Equal(t, types.LifeStatusStop, f.sink.lastStatus())
	})
}

func TestChangeAppIDRebindsEverything(t *testing.T) {
	f := newNativeFixture(t)
	const from = "com.example.bootstrap"
	const to = "com.example.final"
	f.addClient(from, 4242, true, &fakeConn{})

	var code int
	f.lp.Call(func() {
		f.handler.ChangeAppID(from, to, func(c int, _ string) { code = c })
	})

	assert.Equal(t, lifecycle.ErrNone, code)
	pid, ok := f.store.PIDForApp(to)
	require.True(t, ok)
	assert.Equal(t, 4242, pid)
	_, ok = f.store.PIDForApp(from)
	assert.False(t, ok)
	f.lp.Call(func() {
		_, exists := f.handler.clients[from]
		assert.False(t, exists)
		client, exists := f.handler.clients[to]
		require.True(t, exists)
		assert.Equal(t, to, client.AppID)
	})
}

func TestChangeAppIDRejectsRunningTarget(t *testing.T) {
	f := newNativeFixture(t)
	f.addClient("com.example.a", 4242, true, &fakeConn{})
	f.addClient("com.example.b", 4243, true, &fakeConn{})

	var code int
	f.lp.Call(func() {
		f.handler.ChangeAppID("com.example.a", "com.example.b", func(c int, _ string) { code = c })
	})

	assert.Equal(t, lifecycle.ErrTargetRunning, code)
}

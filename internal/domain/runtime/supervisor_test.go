package runtime

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/AgentOS/appmanager/internal/infrastructure/logging"
	"github.com/GriffinCanCode/AgentOS/appmanager/internal/shared/loop"
	"github.com/GriffinCanCode/AgentOS/appmanager/internal/shared/types"
)

func newTestSupervisor(t *testing.T, opts SupervisorOptions) (*Supervisor, *loop.Loop) {
	t.Helper()
	lp := loop.New(64)
	lp.Start()
	t.Cleanup(lp.Stop)
	return NewSupervisor(logging.NewNop(), lp, nil, opts), lp
}

func TestArmKillTimerAtMostOneRecord(t *testing.T) {
	sup, lp := newTestSupervisor(t, SupervisorOptions{})
	const appID = "com.example.app"

	var first, second bool
	lp.Call(func() {
		first = sup.ArmKillTimer(appID, bogusPID, time.Hour)
		second = sup.ArmKillTimer(appID, bogusPID, time.Hour)
	})

	assert.True(t, first)
	assert.False(t, second, "second arm while a record exists is a no-op")
	lp.Call(func() {
		assert.True(t, sup.HasKillRecord(appID))
	})
}

func TestCancelKillTimerDropsRecord(t *testing.T) {
	sup, lp := newTestSupervisor(t, SupervisorOptions{})
	const appID = "com.example.app"

	lp.Call(func() {
		sup.ArmKillTimer(appID, bogusPID, 10*time.Millisecond)
		sup.CancelKillTimer(appID)
		assert.False(t, sup.HasKillRecord(appID))
	})

	// A late fire against the cancelled record must change nothing.
	time.Sleep(30 * time.Millisecond)
	lp.Call(func() {
		assert.False(t, sup.HasKillRecord(appID))
	})
}

func TestEscalationRunsToCompletion(t *testing.T) {
	sup, lp := newTestSupervisor(t, SupervisorOptions{KillGrace: 10 * time.Millisecond})
	const appID = "com.example.app"

	lp.Call(func() {
		sup.ArmKillTimer(appID, bogusPID, 10*time.Millisecond)
	})

	// Graceful window, then grace, then the record is retired.
	require.Eventually(t, func() bool {
		var exists bool
		lp.Call(func() { exists = sup.HasKillRecord(appID) })
		return !exists
	}, time.Second, 5*time.Millisecond)
}

func TestRekeyMovesKillRecordAndPidBinding(t *testing.T) {
	sup, lp := newTestSupervisor(t, SupervisorOptions{})
	const oldID = "com.example.bootstrap"
	const newID = "com.example.final"

	lp.Call(func() {
		sup.appByPid[bogusPID] = oldID
		sup.ArmKillTimer(oldID, bogusPID, time.Hour)
		sup.Rekey(oldID, newID)

		assert.False(t, sup.HasKillRecord(oldID))
		assert.True(t, sup.HasKillRecord(newID))
		assert.Equal(t, newID, sup.appByPid[bogusPID])
	})
}

func TestPIDTreeFallsBackToSelf(t *testing.T) {
	sup, _ := newTestSupervisor(t, SupervisorOptions{})
	assert.Equal(t, []int{bogusPID}, sup.PIDTree(bogusPID))
}

func TestUseJailPolicy(t *testing.T) {
	jailed, _ := newTestSupervisor(t, SupervisorOptions{
		JailerPath: "/usr/bin/jailer",
		NoJailApps: []string{"com.example.nojail"},
	})
	unjailed, _ := newTestSupervisor(t, SupervisorOptions{})

	cases := []struct {
		name string
		sup  *Supervisor
		desc types.AppDescriptor
		want bool
	}{
		{"default trust is jailed", jailed, types.AppDescriptor{ID: "com.example.app"}, true},
		{"trusted skips the jail", jailed, types.AppDescriptor{ID: "com.example.app", TrustLevel: types.TrustTrusted}, false},
		{"allow-listed skips the jail", jailed, types.AppDescriptor{ID: "com.example.nojail"}, false},
		{"no jailer configured", unjailed, types.AppDescriptor{ID: "com.example.app"}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.sup.useJail(&tc.desc))
		})
	}
}

func TestExitForUntrackedPidIsIgnored(t *testing.T) {
	sup, lp := newTestSupervisor(t, SupervisorOptions{})

	called := false
	lp.Call(func() {
		sup.SetExitHandler(func(string, int) { called = true })
		sup.handleExit(bogusPID)
	})

	assert.False(t, called)
}

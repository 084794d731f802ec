package http

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/AgentOS/appmanager/internal/domain/appinfo"
	"github.com/GriffinCanCode/AgentOS/appmanager/internal/domain/lifecycle"
	"github.com/GriffinCanCode/AgentOS/appmanager/internal/infrastructure/logging"
	"github.com/GriffinCanCode/AgentOS/appmanager/internal/shared/types"
)

type fakeLifecycle struct {
	replies     map[string]lifecycle.Reply
	closedByPid bool
	bridged     types.LaunchParams
	lastCaller  string
}

func (f *fakeLifecycle) reply(task *lifecycle.LifecycleTask) {
	f.lastCaller = task.CallerID
	if r, ok := f.replies[task.AppID]; ok {
		task.Respond(r)
		return
	}
	task.Respond(lifecycle.Reply{OK: true, AppID: task.AppID})
}

func (f *fakeLifecycle) Launch(task *lifecycle.LifecycleTask) { f.reply(task) }
func (f *fakeLifecycle) Close(task *lifecycle.LifecycleTask)  { f.reply(task) }
func (f *fakeLifecycle) CloseByPid(task *lifecycle.LifecycleTask) {
	f.closedByPid = true
	task.Respond(lifecycle.Reply{OK: true, AppID: "com.example.bypid"})
}
func (f *fakeLifecycle) CloseAll(task *lifecycle.LifecycleTask) {
	task.Respond(lifecycle.Reply{OK: true})
}
func (f *fakeLifecycle) Pause(task *lifecycle.LifecycleTask) { f.reply(task) }
func (f *fakeLifecycle) ChangeRunningAppID(from, to string, done func(int, string)) {
	if to == "com.example.taken" {
		done(lifecycle.ErrTargetRunning, "already running")
		return
	}
	done(lifecycle.ErrNone, "")
}
func (f *fakeLifecycle) HandleBridgedLaunchRequest(params types.LaunchParams) { f.bridged = params }
func (f *fakeLifecycle) ForegroundApp() string                                { return "com.example.front" }
func (f *fakeLifecycle) LoadingApps() []string                                { return nil }

type staticCatalog struct{ apps []*types.AppDescriptor }

func (c *staticCatalog) GetAppByID(id string) (*types.AppDescriptor, bool) {
	for _, a := range c.apps {
		if a.ID == id {
			return a, true
		}
	}
	return nil, false
}
func (c *staticCatalog) List() []*types.AppDescriptor { return c.apps }

func newTestRouter(lc *fakeLifecycle, store *appinfo.Store) *gin.Engine {
	gin.SetMode(gin.TestMode)
	if store == nil {
		store = appinfo.NewStore()
	}
	h := NewHandlers(logging.NewNop(), lc, &staticCatalog{
		apps: []*types.AppDescriptor{{ID: "com.example.app", Kind: types.RuntimeWeb, Visible: true}},
	}, store, time.Second)
	r := gin.New()
	h.Register(r.Group("/api"))
	return r
}

func doJSON(t *testing.T, r *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(CallerHeader, "com.example.shell")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestLaunchEndpoint(t *testing.T) {
	lc := &fakeLifecycle{}
	r := newTestRouter(lc, nil)

	w := doJSON(t, r, http.MethodPost, "/api/launch", gin.H{"id": "com.example.app"})

	assert.Equal(t, http.StatusOK, w.Code)
	var reply lifecycle.Reply
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &reply))
	assert.True(t, reply.OK)
	assert.Equal(t, "com.example.app", reply.AppID)
	assert.Equal(t, "com.example.shell", lc.lastCaller)
}

func TestLaunchRejectsInvalidAppID(t *testing.T) {
	r := newTestRouter(&fakeLifecycle{}, nil)

	w := doJSON(t, r, http.MethodPost, "/api/launch", gin.H{"id": "bad id!"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestLaunchErrorMapsToStatus(t *testing.T) {
	lc := &fakeLifecycle{replies: map[string]lifecycle.Reply{
		"com.example.missing": {OK: false, ErrorCode: lifecycle.ErrAppNotFound},
		"com.example.dup":     {OK: false, ErrorCode: lifecycle.ErrAlreadyLaunching},
		"com.example.lowmem":  {OK: false, ErrorCode: lifecycle.ErrMemoryLow},
	}}
	r := newTestRouter(lc, nil)

	assert.Equal(t, http.StatusNotFound,
		doJSON(t, r, http.MethodPost, "/api/launch", gin.H{"id": "com.example.missing"}).Code)
	assert.Equal(t, http.StatusConflict,
		doJSON(t, r, http.MethodPost, "/api/launch", gin.H{"id": "com.example.dup"}).Code)
	assert.Equal(t, http.StatusServiceUnavailable,
		doJSON(t, r, http.MethodPost, "/api/launch", gin.H{"id": "com.example.lowmem"}).Code)
}

func TestCloseByPid(t *testing.T) {
	lc := &fakeLifecycle{}
	r := newTestRouter(lc, nil)

	w := doJSON(t, r, http.MethodPost, "/api/close", gin.H{"pid": 4242})

	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, lc.closedByPid)
}

func TestCloseRequiresIDOrPid(t *testing.T) {
	r := newTestRouter(&fakeLifecycle{}, nil)

	w := doJSON(t, r, http.MethodPost, "/api/close", gin.H{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestChangeAppIDConflict(t *testing.T) {
	r := newTestRouter(&fakeLifecycle{}, nil)

	w := doJSON(t, r, http.MethodPost, "/api/changeAppId",
		gin.H{"from": "com.example.app", "to": "com.example.taken"})
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestBridgedLaunchAccepted(t *testing.T) {
	lc := &fakeLifecycle{}
	r := newTestRouter(lc, nil)

	w := doJSON(t, r, http.MethodPost, "/api/bridgedLaunch",
		gin.H{"token": "tok-1", "proceed": false})

	assert.Equal(t, http.StatusAccepted, w.Code)
	require.NotNil(t, lc.bridged)
	assert.Equal(t, "tok-1", lc.bridged.String("token"))
	assert.False(t, lc.bridged.Bool("proceed"))
}

func TestRunningList(t *testing.T) {
	store := appinfo.NewStore()
	store.AddRunningRecord("com.example.app", 4242)
	r := newTestRouter(&fakeLifecycle{}, store)

	w := doJSON(t, r, http.MethodGet, "/api/apps/running", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	var body struct {
		ReturnValue bool               `json:"returnValue"`
		Running     []types.RunningApp `json:"running"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.Running, 1)
	assert.Equal(t, 4242, body.Running[0].PID)
}

func TestForegroundEndpoint(t *testing.T) {
	r := newTestRouter(&fakeLifecycle{}, nil)

	w := doJSON(t, r, http.MethodGet, "/api/apps/foreground", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "com.example.front")
}

func TestListAppsEndpoint(t *testing.T) {
	r := newTestRouter(&fakeLifecycle{}, nil)

	w := doJSON(t, r, http.MethodGet, "/api/apps", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "com.example.app")
}

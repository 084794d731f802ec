// Package http exposes the application manager's REST surface.
package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/GriffinCanCode/AgentOS/appmanager/internal/domain/appinfo"
	"github.com/GriffinCanCode/AgentOS/appmanager/internal/domain/lifecycle"
	"github.com/GriffinCanCode/AgentOS/appmanager/internal/infrastructure/logging"
	"github.com/GriffinCanCode/AgentOS/appmanager/internal/shared/types"
	"github.com/GriffinCanCode/AgentOS/appmanager/internal/shared/utils"
)

// CallerHeader carries the requesting app's identity. The platform shell
// sets it on every forwarded request.
const CallerHeader = "X-Caller-ID"

// Lifecycle is the orchestrator surface the REST handlers drive.
type Lifecycle interface {
	Launch(task *lifecycle.LifecycleTask)
	Close(task *lifecycle.LifecycleTask)
	CloseByPid(task *lifecycle.LifecycleTask)
	CloseAll(task *lifecycle.LifecycleTask)
	Pause(task *lifecycle.LifecycleTask)
	ChangeRunningAppID(currentID, targetID string, done func(errCode int, errText string))
	HandleBridgedLaunchRequest(params types.LaunchParams)
	ForegroundApp() string
	LoadingApps() []string
}

// Catalog is the descriptor surface the REST handlers read.
type Catalog interface {
	GetAppByID(id string) (*types.AppDescriptor, bool)
	List() []*types.AppDescriptor
}

// Handlers bundles the REST endpoints.
type Handlers struct {
	log          *logging.Logger
	lc           Lifecycle
	catalog      Catalog
	appInfo      *appinfo.Store
	replyTimeout time.Duration
}

// NewHandlers creates the REST handler set.
func NewHandlers(log *logging.Logger, lc Lifecycle, catalog Catalog, store *appinfo.Store, replyTimeout time.Duration) *Handlers {
	if replyTimeout <= 0 {
		replyTimeout = 60 * time.Second
	}
	return &Handlers{
		log:          log.Named("http"),
		lc:           lc,
		catalog:      catalog,
		appInfo:      store,
		replyTimeout: replyTimeout,
	}
}

// Register installs the routes on the router group.
func (h *Handlers) Register(r gin.IRoutes) {
	r.POST("/launch", h.Launch)
	r.POST("/close", h.Close)
	r.POST("/closeAll", h.CloseAll)
	r.POST("/pause", h.Pause)
	r.POST("/changeAppId", h.ChangeAppID)
	r.POST("/bridgedLaunch", h.BridgedLaunch)
	r.GET("/apps", h.ListApps)
	r.GET("/apps/running", h.Running)
	r.GET("/apps/foreground", h.Foreground)
	r.GET("/apps/loading", h.Loading)
}

type launchRequest struct {
	ID           string                 `json:"id"`
	Params       map[string]interface{} `json:"params"`
	Reason       string                 `json:"reason"`
	NoSplash     bool                   `json:"noSplash"`
	Spinner      bool                   `json:"spinner"`
	PreloadTag   string                 `json:"preload"`
	KeepAlive    bool                   `json:"keepAlive"`
	Automatic    bool                   `json:"automatic"`
	LastInputApp bool                   `json:"lastInputApp"`
}

// Launch admits a launch request and blocks until its terminal reply.
func (h *Handlers) Launch(c *gin.Context) {
	var req launchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	if err := utils.ValidateAppID(req.ID); err != nil {
		badRequest(c, err.Error())
		return
	}
	if err := utils.ValidateParams(req.Params); err != nil {
		badRequest(c, err.Error())
		return
	}

	replies := make(chan lifecycle.Reply, 1)
	task := lifecycle.NewTask(req.ID, caller(c), req.Params, func(r lifecycle.Reply) {
		replies <- r
	})
	task.Reason = req.Reason
	task.LaunchReason = req.Reason
	task.ShowSplash = !req.NoSplash
	task.ShowSpinner = req.Spinner
	task.PreloadTag = req.PreloadTag
	task.KeepAlive = req.KeepAlive
	task.Automatic = req.Automatic
	task.IsLastInputApp = req.LastInputApp

	h.lc.Launch(task)
	h.await(c, replies)
}

type closeRequest struct {
	ID     string `json:"id"`
	PID    int    `json:"pid"`
	Reason string `json:"reason"`
}

// Close tears down a running app, addressed by app id or pid.
func (h *Handlers) Close(c *gin.Context) {
	var req closeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	replies := make(chan lifecycle.Reply, 1)
	task := lifecycle.NewTask(req.ID, caller(c), nil, func(r lifecycle.Reply) {
		replies <- r
	})
	task.Reason = req.Reason

	if req.ID == "" && req.PID > 0 {
		task.PID = req.PID
		h.lc.CloseByPid(task)
	} else {
		if err := utils.ValidateAppID(req.ID); err != nil {
			badRequest(c, err.Error())
			return
		}
		h.lc.Close(task)
	}
	h.await(c, replies)
}

// CloseAll closes every running app. The reply is immediate and
// best-effort; per-app teardown continues in the background.
func (h *Handlers) CloseAll(c *gin.Context) {
	var req closeRequest
	if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
		badRequest(c, err.Error())
		return
	}

	replies := make(chan lifecycle.Reply, 1)
	task := lifecycle.NewTask("", caller(c), nil, func(r lifecycle.Reply) {
		replies <- r
	})
	task.Reason = req.Reason

	h.lc.CloseAll(task)
	h.await(c, replies)
}

type pauseRequest struct {
	ID     string                 `json:"id"`
	Params map[string]interface{} `json:"params"`
}

// Pause sends a running app to the paused state.
func (h *Handlers) Pause(c *gin.Context) {
	var req pauseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	if err := utils.ValidateAppID(req.ID); err != nil {
		badRequest(c, err.Error())
		return
	}

	replies := make(chan lifecycle.Reply, 1)
	task := lifecycle.NewTask(req.ID, caller(c), req.Params, func(r lifecycle.Reply) {
		replies <- r
	})

	h.lc.Pause(task)
	h.await(c, replies)
}

type changeAppIDRequest struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// ChangeAppID re-keys a running native app's identity.
func (h *Handlers) ChangeAppID(c *gin.Context) {
	var req changeAppIDRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	if err := utils.ValidateAppID(req.From); err != nil {
		badRequest(c, "from: "+err.Error())
		return
	}
	if err := utils.ValidateAppID(req.To); err != nil {
		badRequest(c, "to: "+err.Error())
		return
	}

	replies := make(chan lifecycle.Reply, 1)
	h.lc.ChangeRunningAppID(req.From, req.To, func(code int, text string) {
		replies <- lifecycle.Reply{OK: code == lifecycle.ErrNone, AppID: req.To, ErrorCode: code, ErrorText: text}
	})
	h.await(c, replies)
}

type bridgedRequest struct {
	Token   string                 `json:"token"`
	Proceed *bool                  `json:"proceed"`
	Params  map[string]interface{} `json:"params"`
}

// BridgedLaunch resumes a launch suspended for an external decision. The
// decision is acknowledged immediately; the launch outcome flows through
// the original launch request's reply.
func (h *Handlers) BridgedLaunch(c *gin.Context) {
	var req bridgedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	if req.Token == "" {
		badRequest(c, "token is required")
		return
	}

	params := types.LaunchParams{"token": req.Token}
	if req.Proceed != nil {
		params["proceed"] = *req.Proceed
	}
	for k, v := range req.Params {
		params[k] = v
	}
	h.lc.HandleBridgedLaunchRequest(params)
	c.JSON(http.StatusAccepted, gin.H{"returnValue": true})
}

// ListApps returns the installed app descriptors.
func (h *Handlers) ListApps(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"returnValue": true,
		"apps":        h.catalog.List(),
	})
}

// Running returns the running-apps list.
func (h *Handlers) Running(c *gin.Context) {
	running := h.appInfo.RunningList()
	if running == nil {
		running = []types.RunningApp{}
	}
	c.JSON(http.StatusOK, gin.H{
		"returnValue": true,
		"running":     running,
	})
}

// Foreground returns the current foreground app id.
func (h *Handlers) Foreground(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"returnValue": true,
		"appId":       h.lc.ForegroundApp(),
	})
}

// Loading returns the apps currently in the loading set.
func (h *Handlers) Loading(c *gin.Context) {
	loading := h.lc.LoadingApps()
	if loading == nil {
		loading = []string{}
	}
	c.JSON(http.StatusOK, gin.H{
		"returnValue": true,
		"loading":     loading,
	})
}

// await blocks until the task's terminal reply or the reply timeout.
func (h *Handlers) await(c *gin.Context, replies chan lifecycle.Reply) {
	select {
	case r := <-replies:
		c.JSON(statusFor(r), r)
	case <-time.After(h.replyTimeout):
		c.JSON(http.StatusGatewayTimeout, gin.H{
			"returnValue": false,
			"errorText":   "request timed out",
		})
	case <-c.Request.Context().Done():
		// The caller went away; the lifecycle operation continues.
		c.Status(http.StatusRequestTimeout)
	}
}

func statusFor(r lifecycle.Reply) int {
	if r.OK {
		return http.StatusOK
	}
	switch r.ErrorCode {
	case lifecycle.ErrInvalidAppID:
		return http.StatusBadRequest
	case lifecycle.ErrAppNotFound, lifecycle.ErrNotRunning, lifecycle.ErrNoProcess:
		return http.StatusNotFound
	case lifecycle.ErrAlreadyLaunching, lifecycle.ErrLaunchPending, lifecycle.ErrTargetRunning:
		return http.StatusConflict
	case lifecycle.ErrMemoryLow:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{
		"returnValue": false,
		"errorText":   msg,
	})
}

func caller(c *gin.Context) string {
	if id := c.GetHeader(CallerHeader); id != "" {
		return id
	}
	return "unknown"
}

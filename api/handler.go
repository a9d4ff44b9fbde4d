// Package api serves a monitor session over HTTP: JSON snapshots and
// commands under /api/v1, a websocket snapshot stream, and prometheus
// metrics.
package api

import (
	"github.com/gavinwade12/canLogger/monitor"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Handler wires the HTTP layer to a session.
type Handler struct {
	session *monitor.Session
	log     *zap.SugaredLogger
}

// NewHandler returns a handler for s. A nil log discards everything.
func NewHandler(s *monitor.Session, log *zap.SugaredLogger) *Handler {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Handler{session: s, log: log}
}

// InitRoutes builds the router with every route registered.
func (h *Handler) InitRoutes() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/health", h.health)
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(h.session.Metrics().Registry(), promhttp.HandlerOpts{})))
	router.GET("/ws", h.streamSnapshots)

	api := router.Group("/api/v1")
	{
		h.registerMonitorRoutes(api)
		h.registerTransmitRoutes(api)
		h.registerBusRoutes(api)
	}
	return router
}

func (h *Handler) registerMonitorRoutes(api *gin.RouterGroup) {
	api.GET("/messages", h.getMessages)
	api.GET("/rules", h.getRules)

	log := api.Group("/log")
	{
		log.GET("", h.getLog)
		log.DELETE("", h.clearLog)
		// Body: {"lines":["100 AA BB","200 01"]}
		log.PUT("", h.importLog)
		// Body: {"active":true,"paused":false}
		log.PUT("/state", h.setLogState)
	}

	console := api.Group("/console")
	{
		console.GET("", h.getConsole)
		console.DELETE("", h.clearConsole)
	}

	graphs := api.Group("/graphs")
	{
		graphs.GET("", h.getGraphs)
		graphs.GET("/:id", h.getGraph)
	}
}

func (h *Handler) registerTransmitRoutes(api *gin.RouterGroup) {
	// Body: {"line":"t2001AA"} or {"id":"200","data":"AA"}
	api.POST("/send", h.send)

	tx := api.Group("/tx")
	{
		tx.GET("", h.getTransmits)
		tx.POST("/:key/toggle", h.togglePeriodic)
	}

	macros := api.Group("/macros")
	{
		macros.GET("", h.getMacros)
		macros.POST("/:id/press", h.pressMacro)
	}
}

func (h *Handler) registerBusRoutes(api *gin.RouterGroup) {
	bus := api.Group("/bus")
	{
		// Body: {"speed":250}
		bus.POST("/open", h.openBus)
		bus.POST("/close", h.closeBus)
	}
}

// logAndJSONError logs err and answers with userMsg.
func (h *Handler) logAndJSONError(c *gin.Context, httpCode int, userMsg, logKey string, err error, kv ...interface{}) {
	if h.log != nil && err != nil {
		fields := append([]interface{}{"err", err}, kv...)
		h.log.Errorw(logKey, fields...)
	}
	c.JSON(httpCode, gin.H{"error": userMsg})
}

package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/zhifu/donation-dashboard/services"
	"github.com/zhifu/donation-dashboard/utils"
)

// Options configures the API routes.
type Options struct {
	// PublicURL is the base URL of the web dashboard, used in QR codes.
	PublicURL string
	// Verifier enables Firebase ID token checks when set.
	Verifier TokenVerifier
	Logger   zerolog.Logger
}

type APIRoutes struct {
	dashboard *services.DashboardService
	publicURL string
	verifier  TokenVerifier
	log       zerolog.Logger

	upgrader websocket.Upgrader
	hub      *Hub
}

func NewAPIRoutes(dashboard *services.DashboardService, opts Options) *APIRoutes {
	ar := &APIRoutes{
		dashboard: dashboard,
		publicURL: opts.PublicURL,
		verifier:  opts.Verifier,
		log:       opts.Logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		hub: NewHub(opts.Logger),
	}

	go ar.hub.Run()

	return ar
}

// Close disconnects every WebSocket client and stops the hub.
func (ar *APIRoutes) Close() {
	ar.hub.Stop()
}

// SetupRoutes 设置路由
func (ar *APIRoutes) SetupRoutes(router *gin.Engine) {
	router.GET("/healthz", ar.Health)

	api := router.Group("/api")
	{
		api.GET("/leaderboard", ar.GetLeaderboard)

		users := api.Group("/users/:userId")
		if ar.verifier != nil {
			users.Use(RequireUser(ar.verifier, ar.log))
		}
		users.GET("/activity", ar.GetActivity)
		users.GET("/rank", ar.GetRank)
		users.GET("/dashboard", ar.GetDashboard)
		users.GET("/qrcode", ar.GenerateQRCode)
	}

	ws := router.Group("/ws")
	if ar.verifier != nil {
		ws.Use(RequireSocketUser(ar.verifier, ar.log))
	}
	ws.GET("", ar.WebSocketHandler)
}

func (ar *APIRoutes) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "ws_clients": ar.hub.ClientCount()})
}

type activityQuery struct {
	Page int `form:"page,default=1" binding:"min=1"`
}

// GetActivity 获取最近动态（分页）
// A page past the end is clamped to the last page.
func (ar *APIRoutes) GetActivity(c *gin.Context) {
	var q activityQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "page must be a positive integer"})
		return
	}

	userID := c.Param("userId")
	result := ar.dashboard.GetRecentActivity(c.Request.Context(), userID)

	perPage := ar.dashboard.ItemsPerPage()
	totalPages := services.TotalPages(len(result.Entries), perPage)
	page := q.Page
	if last := max(totalPages, 1); page > last {
		page = last
	}

	c.JSON(http.StatusOK, gin.H{
		"user_id":        userID,
		"entries":        services.GetPage(result.Entries, page, perPage),
		"current_page":   page,
		"total_pages":    totalPages,
		"items_per_page": perPage,
		"total_points":   result.TotalPoints,
		"failed":         result.Failed,
	})
}

// GetRank 获取用户排名
func (ar *APIRoutes) GetRank(c *gin.Context) {
	c.JSON(http.StatusOK, ar.dashboard.GetRank(c.Request.Context(), c.Param("userId")))
}

// GetDashboard 获取仪表盘汇总
func (ar *APIRoutes) GetDashboard(c *gin.Context) {
	c.JSON(http.StatusOK, ar.dashboard.GetSummary(c.Request.Context(), c.Param("userId")))
}

type leaderboardQuery struct {
	Limit int `form:"limit,default=10" binding:"min=1,max=100"`
}

// GetLeaderboard 获取积分排行榜
func (ar *APIRoutes) GetLeaderboard(c *gin.Context) {
	var q leaderboardQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be between 1 and 100"})
		return
	}
	c.JSON(http.StatusOK, ar.dashboard.GetLeaderboard(c.Request.Context(), q.Limit))
}

// GenerateQRCode 生成仪表盘分享二维码
func (ar *APIRoutes) GenerateQRCode(c *gin.Context) {
	png, err := utils.GenerateQRCode(utils.DashboardURL(ar.publicURL, c.Param("userId")))
	if err != nil {
		ar.log.Error().Err(err).Msg("generate qr code")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to generate qr code"})
		return
	}
	c.Header("Cache-Control", "public, max-age=86400")
	c.Data(http.StatusOK, "image/png", png)
}

package api

import (
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/your-org/photoid/internal/api/handlers"
	"github.com/your-org/photoid/internal/api/ws"
	"github.com/your-org/photoid/internal/auth"
	"github.com/your-org/photoid/internal/cache"
	"github.com/your-org/photoid/internal/config"
	"github.com/your-org/photoid/internal/ingest"
	"github.com/your-org/photoid/internal/models"
	"github.com/your-org/photoid/internal/queue"
	"github.com/your-org/photoid/internal/storage"
)

type RouterConfig struct {
	Server      config.ServerConfig
	DB          *storage.PostgresStore
	MinIO       *storage.MinIOStore
	Producer    *queue.Producer
	Coordinator *ingest.Coordinator
	Listings    *cache.TTL[[]models.Photo]
	Hub         *ws.Hub
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(LoggingMiddleware())
	r.Use(cors.Default())

	// System endpoints (no auth)
	systemH := handlers.NewSystemHandler(cfg.DB, cfg.MinIO, cfg.Producer)
	r.GET("/healthz", systemH.Healthz)
	r.GET("/readyz", systemH.Readyz)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API v1 (with auth)
	v1 := r.Group("/v1")
	v1.Use(auth.APIKeyMiddleware(cfg.Server.APIKey))

	// WebSocket
	v1.GET("/ws", cfg.Hub.HandleWS)
	v1.GET("/guests", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"active": cfg.Hub.ClientCount()})
	})

	// Photos
	photoH := handlers.NewPhotoHandler(cfg.DB, cfg.MinIO, cfg.Coordinator, cfg.Listings,
		cfg.Server.PublicURL, cfg.Server.MaxUploadBytes)
	v1.POST("/photos", photoH.Upload)
	v1.GET("/photos", photoH.List)
	v1.GET("/photos/:id", photoH.Get)
	v1.GET("/photos/:id/faces", photoH.ListFaces)
	v1.DELETE("/photos/:id", photoH.Delete)

	// Persons
	personH := handlers.NewPersonHandler(cfg.DB, cfg.Server.PublicURL)
	v1.GET("/persons", personH.List)
	v1.GET("/persons/:id", personH.Get)
	v1.PATCH("/persons/:id", personH.Rename)
	v1.GET("/persons/:id/photos", personH.ListPhotos)

	// Faces
	faceH := handlers.NewFaceHandler(cfg.DB)
	v1.GET("/faces/:id/similar", faceH.Similar)

	// Maintenance
	maintH := handlers.NewMaintenanceHandler(cfg.DB, cfg.Coordinator)
	v1.POST("/maintenance/reconcile", maintH.Reconcile)
	v1.POST("/maintenance/clusters", maintH.Clusters)

	return r
}

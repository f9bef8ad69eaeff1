// Package routes provides HTTP route configuration for the presentation layer.
package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/pagecanvas/pagecanvas-go/internal/application/container"
	"github.com/pagecanvas/pagecanvas-go/internal/presentation/http/handlers"
	"github.com/pagecanvas/pagecanvas-go/internal/presentation/http/middleware"
)

// SetupRoutes configures all HTTP routes and middleware with dependency injection.
func SetupRoutes(container *container.Container) *gin.Engine {
	r := gin.Default()

	r.Use(middleware.CORSMiddleware(container.Settings.CORSOrigins))

	// Uploaded images are served straight from the media directory.
	r.Static("/media", container.Settings.MediaPath)

	// Initialize handlers
	dataSourceHandlers := handlers.NewDataSourceHandlers(container.DataSourceService, container.Logger)
	templateHandlers := handlers.NewTemplateHandlers(container.TemplateService, container.PreviewService, container.Logger)
	graphHandlers := handlers.NewGraphHandlers(container.GraphService, container.PreviewService, container.Logger)
	monitorHandlers := handlers.NewMonitorHandlers(container.GraphService, container.Broadcaster, container.Logger)
	mediaHandlers := handlers.NewMediaHandlers(container.MediaService, container.Logger)

	r.GET("/api/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.Group("/api/v1")
	{
		// Data source registry
		dataSources := api.Group("/data-sources")
		{
			dataSources.GET("", dataSourceHandlers.ListDataSources)
			dataSources.POST("", dataSourceHandlers.CreateDataSource)
			dataSources.GET("/:id", dataSourceHandlers.GetDataSource)
			dataSources.PUT("/:id", dataSourceHandlers.UpdateDataSource)
			dataSources.DELETE("/:id", dataSourceHandlers.DeleteDataSource)
			dataSources.POST("/:id/refresh", dataSourceHandlers.RefreshDataSource)
		}

		// One-shot descriptor resolution
		api.POST("/resolve", dataSourceHandlers.ResolveDataSource)

		// Saved templates
		templates := api.Group("/templates")
		{
			templates.GET("", templateHandlers.ListTemplates)
			templates.GET("/:name", templateHandlers.GetTemplate)
			templates.PUT("/:name", templateHandlers.SaveTemplate)
			templates.DELETE("/:name", templateHandlers.DeleteTemplate)
			templates.GET("/:name/export", templateHandlers.ExportTemplate)
			templates.GET("/:name/preview", templateHandlers.PreviewTemplate)
		}

		// Live editing sessions
		graphs := api.Group("/graphs")
		{
			graphs.GET("", graphHandlers.ListGraphs)
			graphs.POST("", graphHandlers.CreateGraph)
			graphs.GET("/:id", graphHandlers.GetGraph)
			graphs.DELETE("/:id", graphHandlers.CloseGraph)
			graphs.GET("/:id/tree", graphHandlers.SerializeGraph)
			graphs.PUT("/:id/tree", graphHandlers.DeserializeGraph)
			graphs.GET("/:id/preview", graphHandlers.PreviewGraph)
			graphs.POST("/:id/nodes", graphHandlers.AddNode)
			graphs.PATCH("/:id/nodes/:nodeId", graphHandlers.SetNodeProps)
			graphs.DELETE("/:id/nodes/:nodeId", graphHandlers.RemoveNode)
			graphs.POST("/:id/nodes/:nodeId/expand", graphHandlers.ExpandCollection)

			graphs.GET("/:id/monitor", monitorHandlers.GetMonitorState)
			graphs.GET("/:id/monitor/ws", monitorHandlers.StreamChanges)
		}

		// Media uploads
		media := api.Group("/media")
		{
			media.POST("/images", mediaHandlers.UploadImage)
			media.DELETE("/images/:id", mediaHandlers.DeleteImage)
		}
	}

	return r
}

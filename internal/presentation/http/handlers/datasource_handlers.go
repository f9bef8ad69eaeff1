// Package handlers provides HTTP handlers for the builder API.
package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/pagecanvas/pagecanvas-go/internal/application/services"
	"github.com/pagecanvas/pagecanvas-go/internal/domain/entities/datasource"
	"github.com/pagecanvas/pagecanvas-go/internal/domain/registry"
	"github.com/pagecanvas/pagecanvas-go/internal/infrastructure/observability/logging"
)

// DataSourceHandlers contains all data-source-related HTTP handlers
type DataSourceHandlers struct {
	dataSourceService *services.DataSourceService
	logger            *logging.ChanneledLogger
}

// NewDataSourceHandlers creates data source handlers with injected dependencies
func NewDataSourceHandlers(dataSourceService *services.DataSourceService, logger *logging.ChanneledLogger) *DataSourceHandlers {
	return &DataSourceHandlers{
		dataSourceService: dataSourceService,
		logger:            logger,
	}
}

// ListDataSources returns every registered data source with its cached dataset
func (h *DataSourceHandlers) ListDataSources(c *gin.Context) {
	entries := h.dataSourceService.List()
	c.JSON(http.StatusOK, gin.H{
		"dataSources": entries,
		"count":       len(entries),
	})
}

// GetDataSource returns one registered data source by ID
func (h *DataSourceHandlers) GetDataSource(c *gin.Context) {
	id := c.Param("id")
	entry, err := h.dataSourceService.Get(id)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, entry)
}

// CreateDataSource registers a new data source and triggers its first resolution
func (h *DataSourceHandlers) CreateDataSource(c *gin.Context) {
	start := time.Now()

	var descriptor datasource.Descriptor
	if err := c.ShouldBindJSON(&descriptor); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}

	id, err := h.dataSourceService.Add(&descriptor)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	h.logger.DataSource().Info("Data source created", "id", id, "type", descriptor.Kind, "duration", time.Since(start))
	c.JSON(http.StatusCreated, gin.H{"id": id})
}

// UpdateDataSource patches a registered descriptor
func (h *DataSourceHandlers) UpdateDataSource(c *gin.Context) {
	id := c.Param("id")

	var patch registry.Patch
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}

	if err := h.dataSourceService.Update(id, &patch); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	h.logger.DataSource().Info("Data source updated", "id", id)
	c.JSON(http.StatusOK, gin.H{"id": id})
}

// DeleteDataSource unregisters a data source
func (h *DataSourceHandlers) DeleteDataSource(c *gin.Context) {
	id := c.Param("id")
	if err := h.dataSourceService.Remove(id); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	h.logger.DataSource().Info("Data source deleted", "id", id)
	c.JSON(http.StatusOK, gin.H{"id": id})
}

// RefreshDataSource forces a re-resolution of one data source
func (h *DataSourceHandlers) RefreshDataSource(c *gin.Context) {
	start := time.Now()
	id := c.Param("id")

	entry, err := h.dataSourceService.Refresh(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	h.logger.DataSource().Info("Data source refreshed", "id", id, "records", len(entry.Dataset.Records), "duration", time.Since(start))
	c.JSON(http.StatusOK, entry)
}

// ResolveDataSource resolves an ad-hoc descriptor without registering it
func (h *DataSourceHandlers) ResolveDataSource(c *gin.Context) {
	start := time.Now()

	var descriptor datasource.Descriptor
	if err := c.ShouldBindJSON(&descriptor); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}

	dataset, err := h.dataSourceService.ResolveOnce(c.Request.Context(), &descriptor)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	h.logger.DataSource().Debug("Ad-hoc resolution completed", "type", descriptor.Kind, "records", len(dataset.Records), "duration", time.Since(start))
	c.JSON(http.StatusOK, dataset)
}

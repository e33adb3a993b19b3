package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/mmdatafocus/gst_reconciliation/config"
	"github.com/mmdatafocus/gst_reconciliation/models"
	"github.com/mmdatafocus/gst_reconciliation/models/reports"
	"github.com/mmdatafocus/gst_reconciliation/utils"
	"github.com/sirupsen/logrus"
)

// Swapped in tests.
var (
	publishEvent = config.PublishEvent
	uploadReport = utils.UploadReportToGCS
	signDownload = utils.SignReportDownload
)

func reconcileHandler(settings *config.Settings) gin.HandlerFunc {
	return func(c *gin.Context) {
		upload, ok := bindReconcileUpload(c, settings)
		if !ok {
			return
		}

		reconciler := models.NewReconciler(upload.Tolerance, config.GetLogger())
		report, data, err := reports.ReconcileToExcel(c.Request.Context(), reconciler, upload.Internal, upload.External)
		if err != nil {
			writeReconcileError(c, err)
			return
		}
		c.Header("Content-Disposition", "attachment; filename="+reports.ExportFileName)
		c.Data(http.StatusOK, reports.ExportMimeType, data)
		notifyRunCompleted(c.Request.Context(), settings, report, "")
	}
}

func reconcileSummaryHandler(settings *config.Settings) gin.HandlerFunc {
	return func(c *gin.Context) {
		upload, ok := bindReconcileUpload(c, settings)
		if !ok {
			return
		}

		reconciler := models.NewReconciler(upload.Tolerance, config.GetLogger())
		result, err := reconciler.Reconcile(c.Request.Context(), upload.Internal, upload.External)
		if err != nil {
			writeReconcileError(c, err)
			return
		}
		report := reports.BuildReconciliationReport(result)
		c.JSON(http.StatusOK, report.Summary())
		notifyRunCompleted(c.Request.Context(), settings, report, "")
	}
}

// reconcileExportHandler stores the workbook in the report bucket and
// answers with a signed download link instead of the file itself.
func reconcileExportHandler(settings *config.Settings) gin.HandlerFunc {
	return func(c *gin.Context) {
		if settings.ReportBucket == "" {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": utils.ErrorStorageNotConfigured.Error()})
			return
		}
		upload, ok := bindReconcileUpload(c, settings)
		if !ok {
			return
		}

		ctx := c.Request.Context()
		reconciler := models.NewReconciler(upload.Tolerance, config.GetLogger())
		report, data, err := reports.ReconcileToExcel(ctx, reconciler, upload.Internal, upload.External)
		if err != nil {
			writeReconcileError(c, err)
			return
		}

		objectKey := utils.ReportObjectKey(report.RunId, reports.ExportFileName, time.Now())
		if err := uploadReport(ctx, settings.ReportBucket, objectKey, reports.ExportMimeType, data); err != nil {
			config.LogError(config.GetLogger(), "server.go", "reconcileExportHandler", "upload report", objectKey, err)
			c.JSON(http.StatusBadGateway, gin.H{"error": "failed to store reconciliation report"})
			return
		}
		download, err := signDownload(ctx, settings.ReportBucket, objectKey, settings.SignedURLTTL())
		if err != nil {
			config.LogError(config.GetLogger(), "server.go", "reconcileExportHandler", "sign download", objectKey, err)
			c.JSON(http.StatusBadGateway, gin.H{"error": "failed to sign report download"})
			return
		}
		c.JSON(http.StatusCreated, gin.H{
			"run_id":   report.RunId,
			"download": download,
			"summary":  report.Summary(),
		})
		notifyRunCompleted(ctx, settings, report, objectKey)
	}
}

// eventPublishTimeout bounds a single run-completed publish, client
// initialization included.
const eventPublishTimeout = 5 * time.Second

// pendingEvents tracks publishes still in flight; main drains it on shutdown.
var pendingEvents sync.WaitGroup

// notifyRunCompleted publishes the run summary in the background when
// RECON_EVENTS_TOPIC is set. The publish outlives the request context and
// its failures are only logged.
func notifyRunCompleted(ctx context.Context, settings *config.Settings, report *reports.ReconciliationReport, objectKey string) {
	if settings.EventsTopic == "" {
		return
	}
	correlationId, _ := utils.GetCorrelationIdFromContext(ctx)
	event := report.CompletedEvent(correlationId, objectKey, time.Now())

	pendingEvents.Add(1)
	go func() {
		defer pendingEvents.Done()
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), eventPublishTimeout)
		defer cancel()
		id, err := publishEvent(ctx, settings.EventsTopic, event.Attributes(), event)
		if err != nil {
			config.LogError(config.GetLogger(), "server.go", "notifyRunCompleted", "publish "+settings.EventsTopic, event.Attributes(), err)
			return
		}
		config.GetLogger().WithFields(logrus.Fields{
			"run_id":         report.RunId,
			"correlation_id": correlationId,
			"message_id":     id,
		}).Info("reconciliation event published")
	}()
}

// writeReconcileError maps pipeline failures to responses. Schema errors are
// the caller's to fix; anything else is ours.
func writeReconcileError(c *gin.Context, err error) {
	var schemaErr *models.SchemaError
	if errors.As(err, &schemaErr) {
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error":           schemaErr.Error(),
			"side":            schemaErr.Side,
			"missing_columns": schemaErr.Columns,
		})
		return
	}
	config.LogError(config.GetLogger(), "server.go", "writeReconcileError", "reconcile", nil, err)
	_ = c.Error(err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "reconciliation failed"})
}

func customNotFoundHandler(c *gin.Context) {
	c.JSON(http.StatusNotFound, gin.H{"error": "route not found"})
}

// customErrorLogger is a custom Gin middleware that logs only errors
func customErrorLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		// Only log when there are errors
		if len(c.Errors) > 0 {
			logger.Error(c.Errors.String())
		}
	}
}

// Correlation IDs: reuse the caller's or generate one per request.
func correlationIdMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		cid := c.GetHeader("x-correlation-id")
		if cid == "" {
			cid = uuid.NewString()
		}
		c.Header("x-correlation-id", cid)
		c.Request = c.Request.WithContext(utils.SetCorrelationIdInContext(c.Request.Context(), cid))
		c.Next()
	}
}

func corsConfig(settings *config.Settings) cors.Config {
	corsConfig := cors.DefaultConfig()
	// In production, require explicit allowlist via CORS_ALLOWED_ORIGINS.
	if settings.Production {
		corsConfig.AllowOrigins = settings.AllowedOrigins
		if len(corsConfig.AllowOrigins) == 0 {
			// deny all if not configured
			corsConfig.AllowOrigins = []string{}
		}
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AddAllowMethods("GET", "POST", "OPTIONS")
	corsConfig.AddAllowHeaders("Origin", "Content-Type", "x-correlation-id")
	corsConfig.AddExposeHeaders("Content-Length", "Content-Disposition", "x-correlation-id")
	return corsConfig
}

func newRouter(settings *config.Settings, logger *logrus.Logger) *gin.Engine {
	r := gin.New()
	r.Use(correlationIdMiddleware())
	if !settings.Production || len(settings.AllowedOrigins) > 0 {
		r.Use(cors.New(corsConfig(settings)))
	}
	r.Use(customErrorLogger(logger))
	r.Use(gin.Recovery())

	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusNoContent) })
	r.POST("/reconcile", reconcileHandler(settings))
	r.POST("/reconcile/summary", reconcileSummaryHandler(settings))
	r.POST("/reconcile/export", reconcileExportHandler(settings))
	r.NoRoute(customNotFoundHandler)
	return r
}

func main() {
	logger := config.GetLogger()

	settings, err := config.LoadSettings()
	if err != nil {
		logger.WithFields(logrus.Fields{"field": "settings"}).Fatal(err.Error())
	}
	if settings.Production {
		gin.SetMode(gin.ReleaseMode)
	}

	// Cloud Run sends SIGTERM on revision shutdown; handle it for graceful drain.
	sigCtx, stopSignals := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	srv := &http.Server{
		Addr:              ":" + settings.Port,
		Handler:           newRouter(settings, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}
	serverErrCh := make(chan error, 1)
	go func() {
		// ListenAndServe returns http.ErrServerClosed on graceful shutdown.
		serverErrCh <- srv.ListenAndServe()
	}()

	logger.WithFields(logrus.Fields{
		"port":      settings.Port,
		"tolerance": settings.Tolerance().String(),
		"bucket":    settings.ReportBucket,
		"topic":     settings.EventsTopic,
	}).Info("gst reconciliation service listening")
	log.Println("Server started successfully")

	select {
	case <-sigCtx.Done():
	case err := <-serverErrCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithFields(logrus.Fields{"field": "http"}).Error("server stopped unexpectedly: " + err.Error())
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithFields(logrus.Fields{"field": "http"}).Error("graceful shutdown failed: " + err.Error())
	}
	pendingEvents.Wait()
}

package main

import (
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/gst_reconciliation/config"
	"github.com/mmdatafocus/gst_reconciliation/models"
	"github.com/mmdatafocus/gst_reconciliation/utils"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

const (
	formFieldInternal  = "internal"
	formFieldExternal  = "external"
	formFieldTolerance = "tolerance"
)

var workbookMimeTypes = map[string]bool{
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet": true,
	"application/octet-stream": true,
	"application/zip":          true,
}

// reconcileForm is the multipart body of the reconcile endpoints.
type reconcileForm struct {
	Internal  *multipart.FileHeader `form:"internal" binding:"required"`
	External  *multipart.FileHeader `form:"external" binding:"required"`
	Tolerance *float64              `form:"tolerance" binding:"omitempty,gte=0"`
}

type uploadedDatasets struct {
	Internal  models.RawDataset
	External  models.RawDataset
	Tolerance decimal.Decimal
}

// bindReconcileUpload validates and parses both uploaded workbooks. It
// writes the error response itself and returns ok=false on failure.
func bindReconcileUpload(c *gin.Context, settings *config.Settings) (*uploadedDatasets, bool) {
	logger := config.GetLogger()
	correlationId, _ := utils.GetCorrelationIdFromContext(c.Request.Context())

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, 2*settings.MaxUploadSizeBytes()+1024*1024)

	var form reconcileForm
	if err := c.ShouldBind(&form); err != nil {
		logger.WithFields(logrus.Fields{
			"field":          "bindReconcileUpload",
			"correlation_id": correlationId,
		}).Warn("invalid reconcile request: " + err.Error())
		c.JSON(http.StatusBadRequest, gin.H{"error": "internal and external .xlsx files are required", "fields": utils.ProcessValidationErrors(err)})
		return nil, false
	}

	out := &uploadedDatasets{Tolerance: settings.Tolerance()}
	if form.Tolerance != nil {
		out.Tolerance = decimal.NewFromFloat(*form.Tolerance)
	}

	for _, upload := range []struct {
		side   models.Side
		header *multipart.FileHeader
		dst    *models.RawDataset
	}{
		{models.SideInternal, form.Internal, &out.Internal},
		{models.SideExternal, form.External, &out.External},
	} {
		ds, err := readUploadedWorkbook(upload.header, settings.MaxUploadSizeBytes())
		if err != nil {
			logger.WithFields(logrus.Fields{
				"field":          "bindReconcileUpload",
				"side":           upload.side,
				"file_name":      upload.header.Filename,
				"correlation_id": correlationId,
			}).Warn("rejected upload: " + err.Error())
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("%s file: %v", upload.side, err)})
			return nil, false
		}
		*upload.dst = ds
	}
	return out, true
}

func readUploadedWorkbook(fh *multipart.FileHeader, maxSize int64) (models.RawDataset, error) {
	if err := validateWorkbookUpload(fh, maxSize); err != nil {
		return models.RawDataset{}, err
	}
	file, err := fh.Open()
	if err != nil {
		return models.RawDataset{}, fmt.Errorf("%w: %v", utils.ErrorInvalidUpload, err)
	}
	defer file.Close()

	ds, err := models.ReadRawDatasetFromXlsx(file)
	if err != nil {
		if errors.Is(err, utils.ErrorEmptyWorkbook) {
			return models.RawDataset{}, err
		}
		return models.RawDataset{}, fmt.Errorf("%w: %v", utils.ErrorInvalidUpload, err)
	}
	return ds, nil
}

func validateWorkbookUpload(fh *multipart.FileHeader, maxSize int64) error {
	if fh == nil {
		return fmt.Errorf("%w: file is required", utils.ErrorInvalidUpload)
	}
	if ext := strings.ToLower(filepath.Ext(fh.Filename)); ext != ".xlsx" {
		return fmt.Errorf("%w: only .xlsx files are allowed", utils.ErrorInvalidUpload)
	}
	if fh.Size <= 0 {
		return fmt.Errorf("%w: file is empty", utils.ErrorInvalidUpload)
	}
	if fh.Size > maxSize {
		return fmt.Errorf("%w: file size exceeds %dMB limit", utils.ErrorInvalidUpload, maxSize/(1024*1024))
	}
	if mt := strings.TrimSpace(fh.Header.Get("Content-Type")); mt != "" && !workbookMimeTypes[strings.ToLower(mt)] {
		return fmt.Errorf("%w: unsupported file type %s", utils.ErrorInvalidUpload, mt)
	}
	return nil
}

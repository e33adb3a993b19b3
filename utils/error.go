package utils

import "errors"

var (
	ErrorInvalidUpload        = errors.New("invalid upload")
	ErrorEmptyWorkbook        = errors.New("workbook has no data")
	ErrorInvalidSetting       = errors.New("invalid setting")
	ErrorStorageNotConfigured = errors.New("report storage is not configured")
)

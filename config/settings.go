package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/mmdatafocus/gst_reconciliation/utils"
	"github.com/shopspring/decimal"
)

const (
	defaultPort            = "8080"
	defaultAmountTolerance = 1.0
	defaultMaxUploadSizeMB = 10
	defaultSignedURLTTL    = 60
)

// Settings is the externally visible configuration of the service.
//
// Env:
// - PORT (falls back to API_PORT, then 8080)
// - GO_ENV=production restricts CORS to CORS_ALLOWED_ORIGINS
// - RECON_AMOUNT_TOLERANCE=1.0
// - MAX_UPLOAD_SIZE_MB=10
// - RECON_REPORT_BUCKET (falls back to GCS_BUCKET) enables /reconcile/export
// - RECON_SIGNED_URL_TTL_MINUTES=60
// - RECON_EVENTS_TOPIC publishes a Pub/Sub message per completed run
type Settings struct {
	Port                string `validate:"required,numeric"`
	Production          bool
	AllowedOrigins      []string `validate:"dive,required"`
	AmountTolerance     float64  `validate:"gte=0"`
	MaxUploadSizeMB     int64    `validate:"gt=0,lte=512"`
	ReportBucket        string   `validate:"omitempty,min=3,max=222"`
	SignedURLTTLMinutes int      `validate:"gt=0,lte=10080"`
	EventsTopic         string
}

var validate = validator.New()

func LoadSettings() (*Settings, error) {
	s := &Settings{
		Port:            firstNonEmptyEnv("PORT", "API_PORT"),
		Production:      strings.EqualFold(strings.TrimSpace(os.Getenv("GO_ENV")), "production"),
		AllowedOrigins:  utils.SplitAndTrim(os.Getenv("CORS_ALLOWED_ORIGINS")),
		AmountTolerance: defaultAmountTolerance,
		MaxUploadSizeMB: defaultMaxUploadSizeMB,

		ReportBucket:        firstNonEmptyEnv("RECON_REPORT_BUCKET", "GCS_BUCKET"),
		SignedURLTTLMinutes: defaultSignedURLTTL,
		EventsTopic:         strings.TrimSpace(os.Getenv("RECON_EVENTS_TOPIC")),
	}
	if s.Port == "" {
		s.Port = defaultPort
	}

	if v := strings.TrimSpace(os.Getenv("RECON_AMOUNT_TOLERANCE")); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: RECON_AMOUNT_TOLERANCE=%q", utils.ErrorInvalidSetting, v)
		}
		s.AmountTolerance = f
	}
	if v := strings.TrimSpace(os.Getenv("MAX_UPLOAD_SIZE_MB")); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: MAX_UPLOAD_SIZE_MB=%q", utils.ErrorInvalidSetting, v)
		}
		s.MaxUploadSizeMB = n
	}
	if v := strings.TrimSpace(os.Getenv("RECON_SIGNED_URL_TTL_MINUTES")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("%w: RECON_SIGNED_URL_TTL_MINUTES=%q", utils.ErrorInvalidSetting, v)
		}
		s.SignedURLTTLMinutes = n
	}

	if err := validate.Struct(s); err != nil {
		return nil, fmt.Errorf("%w: %v", utils.ErrorInvalidSetting, utils.ProcessValidationErrors(err))
	}
	return s, nil
}

func (s *Settings) Tolerance() decimal.Decimal {
	return decimal.NewFromFloat(s.AmountTolerance)
}

func (s *Settings) MaxUploadSizeBytes() int64 {
	return s.MaxUploadSizeMB * 1024 * 1024
}

func (s *Settings) SignedURLTTL() time.Duration {
	return time.Duration(s.SignedURLTTLMinutes) * time.Minute
}

func firstNonEmptyEnv(keys ...string) string {
	for _, k := range keys {
		if v := strings.TrimSpace(os.Getenv(k)); v != "" {
			return v
		}
	}
	return ""
}

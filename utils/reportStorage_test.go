package utils

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"strings"
	"testing"
	"time"
)

func testPrivateKeyPEM(t *testing.T) string {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	return string(pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)}))
}

func TestReportObjectKey(t *testing.T) {
	at := time.Date(2024, 3, 9, 23, 30, 0, 0, time.FixedZone("IST", 5*3600+1800))
	got := ReportObjectKey("run-1", "../GST_Reconciliation_Result.xlsx", at)
	if got != "reconciliations/2024-03-09/run-1/GST_Reconciliation_Result.xlsx" {
		t.Fatalf("unexpected object key %q", got)
	}
}

func TestLoadSignerFromEnv(t *testing.T) {
	cases := []struct {
		name    string
		env     map[string]string
		wantOk  bool
		wantErr bool
	}{
		{name: "nothing configured", env: map[string]string{}},
		{name: "invalid json", env: map[string]string{"GCS_CREDENTIALS_JSON": "{"}, wantErr: true},
		{name: "json without key", env: map[string]string{"GCS_CREDENTIALS_JSON": `{"client_email":"a@b"}`}, wantErr: true},
		{name: "json key", env: map[string]string{"GCS_CREDENTIALS_JSON": `{"client_email":"a@b","private_key":"k\\nx"}`}, wantOk: true},
		{name: "email only", env: map[string]string{"GCS_SIGNER_EMAIL": "a@b"}},
		{name: "email and key", env: map[string]string{"GCS_SIGNER_EMAIL": "a@b", "GCS_SIGNER_PRIVATE_KEY": "k"}, wantOk: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			for _, k := range []string{"GCS_CREDENTIALS_JSON", "GCS_SIGNER_EMAIL", "GCS_SIGNER_PRIVATE_KEY"} {
				t.Setenv(k, tc.env[k])
			}
			email, key, ok, err := loadSignerFromEnv()
			if (err != nil) != tc.wantErr {
				t.Fatalf("unexpected error %v", err)
			}
			if ok != tc.wantOk {
				t.Fatalf("expected ok=%v, got %v", tc.wantOk, ok)
			}
			if ok && (email != "a@b" || len(key) == 0) {
				t.Fatalf("unexpected signer %q/%q", email, key)
			}
		})
	}
}

func TestNormalizePrivateKey(t *testing.T) {
	if got := string(normalizePrivateKey(`a\nb`)); got != "a\nb" {
		t.Fatalf("expected escaped newlines to be expanded, got %q", got)
	}
}

func TestSignReportDownload_WithEnvKey(t *testing.T) {
	t.Setenv("GCS_CREDENTIALS_JSON", "")
	t.Setenv("GCS_SIGNER_EMAIL", "recon@project.iam.gserviceaccount.com")
	t.Setenv("GCS_SIGNER_PRIVATE_KEY", testPrivateKeyPEM(t))

	before := time.Now()
	signed, err := SignReportDownload(context.Background(), "recon-exports", "reconciliations/2024-03-09/run-1/out.xlsx", 15*time.Minute)
	if err != nil {
		t.Fatalf("SignReportDownload error: %v", err)
	}
	if !strings.Contains(signed.DownloadURL, "recon-exports/reconciliations/2024-03-09/run-1/out.xlsx") {
		t.Fatalf("unexpected url %s", signed.DownloadURL)
	}
	if !strings.Contains(signed.DownloadURL, "X-Goog-Signature=") {
		t.Fatalf("expected a v4 signature in %s", signed.DownloadURL)
	}
	if signed.ExpiresAt.Before(before.Add(14 * time.Minute)) {
		t.Fatalf("unexpected expiry %s", signed.ExpiresAt)
	}
}

func TestReportStorage_RequiresBucket(t *testing.T) {
	if _, err := SignReportDownload(context.Background(), " ", "k", time.Minute); !errors.Is(err, ErrorStorageNotConfigured) {
		t.Fatalf("expected ErrorStorageNotConfigured, got %v", err)
	}
	if err := UploadReportToGCS(context.Background(), "", "k", "text/plain", nil); !errors.Is(err, ErrorStorageNotConfigured) {
		t.Fatalf("expected ErrorStorageNotConfigured, got %v", err)
	}
}

package archive

import (
	"errors"
	"testing"
)

func TestNewService_Validation(t *testing.T) {
	valid := Config{
		BucketName:      "bucket",
		AccessKeyID:     "key",
		SecretAccessKey: "secret",
		Endpoint:        "https://accountid.r2.cloudflarestorage.com",
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr error
	}{
		{name: "valid", mutate: func(c *Config) {}, wantErr: nil},
		{name: "missing bucket", mutate: func(c *Config) { c.BucketName = "" }, wantErr: ErrMissingBucket},
		{name: "missing key id", mutate: func(c *Config) { c.AccessKeyID = "" }, wantErr: ErrMissingKeyID},
		{name: "missing secret", mutate: func(c *Config) { c.SecretAccessKey = "" }, wantErr: ErrMissingSecretKey},
		{name: "missing endpoint", mutate: func(c *Config) { c.Endpoint = "" }, wantErr: ErrMissingEndpoint},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)

			svc, err := NewService(cfg)
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("NewService() error: %v", err)
				}
				if svc == nil {
					t.Fatal("NewService() returned nil service")
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("NewService() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_Configured(t *testing.T) {
	if (Config{}).Configured() {
		t.Error("empty config must report unconfigured")
	}
	if !(Config{BucketName: "b"}).Configured() {
		t.Error("partial config must report configured so validation can flag the gaps")
	}
}

func TestObjectKey(t *testing.T) {
	if got := ObjectKey("abc-123"); got != "articles/abc-123.txt" {
		t.Errorf("ObjectKey() = %q", got)
	}
}

package config

import (
	"strings"
	"testing"
)

func TestLoadSQLiteWithJWT(t *testing.T) {
	t.Setenv("DB_DRIVER", "SQLite")
	t.Setenv("DB_PATH", "/tmp/chat.db")
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("ALLOWED_ORIGINS", "http://a.test,http://b.test")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.DBDriver != DriverSQLite {
		t.Fatalf("driver=%q", cfg.DBDriver)
	}
	if cfg.Port != "8080" || cfg.SendRateLimit != 60 {
		t.Fatalf("defaults not applied: port=%q limit=%d", cfg.Port, cfg.SendRateLimit)
	}
	if len(cfg.AllowedOrigins) != 2 {
		t.Fatalf("origins=%v", cfg.AllowedOrigins)
	}
	if !cfg.IsDevelopment() {
		t.Fatalf("expected development env")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr string
	}{
		{
			name: "mysql complete",
			cfg:  Config{DBDriver: DriverMySQL, DBUser: "u", DBPassword: "p", DBName: "chat", DBHost: "db", JWTSecret: "x"},
		},
		{
			name: "mysql via cloud sql",
			cfg:  Config{DBDriver: DriverMySQL, DBUser: "u", DBPassword: "p", DBName: "chat", InstanceConnectionName: "p:r:i", FirebaseProjectID: "proj"},
		},
		{
			name:    "mysql missing host",
			cfg:     Config{DBDriver: DriverMySQL, DBUser: "u", DBPassword: "p", DBName: "chat", JWTSecret: "x"},
			wantErr: "DB_HOST",
		},
		{
			name:    "postgres missing name",
			cfg:     Config{DBDriver: DriverPostgres, DBHost: "db", JWTSecret: "x"},
			wantErr: "postgres requires",
		},
		{
			name:    "no auth",
			cfg:     Config{DBDriver: DriverSQLite, DBPath: "x.db"},
			wantErr: "JWT_SECRET",
		},
		{
			name:    "unknown driver",
			cfg:     Config{DBDriver: "mongo", JWTSecret: "x"},
			wantErr: "unsupported DB_DRIVER",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected err: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("err=%v want substring %q", err, tt.wantErr)
			}
		})
	}
}

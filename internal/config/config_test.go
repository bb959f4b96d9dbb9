package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/lherron/ghl2hs/internal/domain"
)

// isolate points HOME and cwd at a fresh temp dir so no real config leaks in
func isolate(t *testing.T) string {
	t.Helper()
	tmpDir := t.TempDir()
	t.Setenv("HOME", tmpDir)
	for _, key := range []string{
		"GHL2HS_BACKEND", "GHL2HS_DB_PATH", "GHL2HS_MONGO_URI", "GHL2HS_MONGO_DB",
		"HUBSPOT_TOKEN", "HUBSPOT_TOKEN_FILE", "HUBSPOT_DEALSTAGE", "GHL2HS_REQUEST_DELAY",
		"GHL2HS_LOG_LEVEL", "GHL2HS_OUTPUT",
	} {
		key := key
		prev, had := os.LookupEnv(key)
		os.Unsetenv(key)
		t.Cleanup(func() {
			if had {
				os.Setenv(key, prev)
			} else {
				os.Unsetenv(key)
			}
		})
	}
	chdir(t, tmpDir)
	return tmpDir
}

func chdir(t *testing.T, dir string) {
	t.Helper()
	oldCwd, _ := os.Getwd()
	t.Cleanup(func() { os.Chdir(oldCwd) })
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
}

func sameFile(t *testing.T, want, got string) {
	t.Helper()
	// Resolve symlinks for comparison (macOS /var -> /private/var)
	wantResolved, _ := filepath.EvalSymlinks(want)
	gotResolved, _ := filepath.EvalSymlinks(got)
	if wantResolved != gotResolved {
		t.Errorf("expected %s, got %s", wantResolved, gotResolved)
	}
}

func TestFindEnvLocal(t *testing.T) {
	tests := []struct {
		name    string
		envDirs []string // relative to the temp root, closest last
		cwd     string
		want    string // relative dir of the expected file, "-" for none
	}{
		{"current dir", []string{"."}, ".", "."},
		{"parent dir", []string{"."}, "child", "."},
		{"grandparent dir", []string{"."}, "parent/child", "."},
		{"closest wins", []string{".", "parent"}, "parent/child", "parent"},
		{"not found", nil, ".", "-"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tmpDir := t.TempDir()
			cwd := filepath.Join(tmpDir, tt.cwd)
			if err := os.MkdirAll(cwd, 0755); err != nil {
				t.Fatal(err)
			}
			for _, d := range tt.envDirs {
				if err := os.WriteFile(filepath.Join(tmpDir, d, ".env.local"), []byte("TEST="+d), 0644); err != nil {
					t.Fatal(err)
				}
			}
			chdir(t, cwd)

			result := findEnvLocal()
			if tt.want == "-" {
				if result != "" {
					t.Errorf("expected empty string when no .env.local found, got %s", result)
				}
				return
			}
			if result == "" {
				t.Fatal("expected to find .env.local")
			}
			sameFile(t, filepath.Join(tmpDir, tt.want, ".env.local"), result)
		})
	}
}

func TestLoadDefaults(t *testing.T) {
	home := isolate(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Backend != BackendSQLite {
		t.Errorf("Backend = %q, want sqlite", cfg.Backend)
	}
	if cfg.RequestDelay != 300*time.Millisecond {
		t.Errorf("RequestDelay = %v, want 300ms", cfg.RequestDelay)
	}
	if want := filepath.Join(home, ".local", "share", "ghl2hs", "ghl2hs.db"); cfg.DBPath != want {
		t.Errorf("DBPath = %q, want %q", cfg.DBPath, want)
	}
}

func TestLoadPrecedence(t *testing.T) {
	home := isolate(t)

	yamlDir := filepath.Join(home, ".config", "ghl2hs")
	if err := os.MkdirAll(yamlDir, 0755); err != nil {
		t.Fatal(err)
	}
	yamlData := "dealstage: from-yaml\npipeline: sales\nrequest_delay: 50ms\n"
	if err := os.WriteFile(filepath.Join(yamlDir, "config.yaml"), []byte(yamlData), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(home, ".env.local"), []byte("HUBSPOT_DEALSTAGE=from-dotenv\n"), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.DealStage != "from-dotenv" {
		t.Errorf("DealStage = %q, want from-dotenv", cfg.DealStage)
	}
	if cfg.Pipeline != "sales" {
		t.Errorf("Pipeline = %q, want sales", cfg.Pipeline)
	}
	if cfg.RequestDelay != 50*time.Millisecond {
		t.Errorf("RequestDelay = %v, want 50ms", cfg.RequestDelay)
	}

	t.Setenv("HUBSPOT_DEALSTAGE", "from-env")
	cfg, err = Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.DealStage != "from-env" {
		t.Errorf("DealStage = %q, want from-env", cfg.DealStage)
	}
}

func TestLoadTokenFromFile(t *testing.T) {
	home := isolate(t)
	tokenPath := filepath.Join(home, "token")
	if err := os.WriteFile(tokenPath, []byte("pat-123\n"), 0600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("HUBSPOT_TOKEN_FILE", tokenPath)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.HubSpotToken != "pat-123" {
		t.Errorf("HubSpotToken = %q, want pat-123", cfg.HubSpotToken)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	isolate(t)
	t.Setenv("GHL2HS_OUTPUT", "xml")

	if _, err := Load(); err == nil {
		t.Fatal("expected error for invalid output format")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name             string
		cfg              Config
		needsDestination bool
		wantField        string
	}{
		{"sqlite dry run", Config{Backend: BackendSQLite, DBPath: "x.db"}, false, ""},
		{"missing token", Config{Backend: BackendSQLite, DBPath: "x.db"}, true, "HUBSPOT_TOKEN"},
		{"with token", Config{Backend: BackendSQLite, DBPath: "x.db", HubSpotToken: "t"}, true, ""},
		{"mongo without uri", Config{Backend: BackendMongo, MongoDB: "ghl"}, false, "GHL2HS_MONGO_URI"},
		{"mongo without db", Config{Backend: BackendMongo, MongoURI: "mongodb://h"}, false, "GHL2HS_MONGO_DB"},
		{"unknown backend", Config{Backend: "postgres"}, false, "GHL2HS_BACKEND"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate(tt.needsDestination)
			if tt.wantField == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			ce, ok := err.(*domain.ConfigError)
			if !ok {
				t.Fatalf("expected ConfigError, got %v", err)
			}
			if ce.Field != tt.wantField {
				t.Errorf("Field = %q, want %q", ce.Field, tt.wantField)
			}
		})
	}
}

func TestValidateSource(t *testing.T) {
	cfg := Config{GHLToken: "t"}
	if err := cfg.ValidateSource(); !domain.IsConfigError(err) {
		t.Errorf("expected ConfigError for missing location, got %v", err)
	}
	cfg.GHLLocationID = "loc"
	if err := cfg.ValidateSource(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

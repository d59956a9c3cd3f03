package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/banshee-data/transient.report/internal/forced"
)

func TestLoadTuningConfig(t *testing.T) {
	// Create temporary directory
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "test_config.json")

	// Write test config with flat schema
	testJSON := `{
  "tolerance_arcsec": 0.5,
  "tile_depth": 10,
  "centroid_mode": "peak",
  "exposure_id_bits": 16,
  "store_forced_records": false
}`
	if err := os.WriteFile(configPath, []byte(testJSON), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}

	// Load the config
	cfg, err := LoadTuningConfig(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	// Verify values
	if cfg.ToleranceArcsec == nil || *cfg.ToleranceArcsec != 0.5 {
		t.Errorf("Expected ToleranceArcsec 0.5, got %v", cfg.ToleranceArcsec)
	}
	if cfg.TileDepth == nil || *cfg.TileDepth != 10 {
		t.Errorf("Expected TileDepth 10, got %v", cfg.TileDepth)
	}
	if cfg.CentroidMode == nil || *cfg.CentroidMode != "peak" {
		t.Errorf("Expected CentroidMode 'peak', got %v", cfg.CentroidMode)
	}
	if cfg.ExposureIDBits == nil || *cfg.ExposureIDBits != 16 {
		t.Errorf("Expected ExposureIDBits 16, got %v", cfg.ExposureIDBits)
	}
	if cfg.StoreForcedRecords == nil || *cfg.StoreForcedRecords != false {
		t.Errorf("Expected StoreForcedRecords false, got %v", cfg.StoreForcedRecords)
	}

	// Test getter methods
	if cfg.GetToleranceArcsec() != 0.5 {
		t.Errorf("GetToleranceArcsec() = %f, want 0.5", cfg.GetToleranceArcsec())
	}
	if cfg.GetTileDepth() != 10 {
		t.Errorf("GetTileDepth() = %d, want 10", cfg.GetTileDepth())
	}
	if cfg.GetCentroidMode() != forced.CentroidFromPeak {
		t.Errorf("GetCentroidMode() = %v, want %v", cfg.GetCentroidMode(), forced.CentroidFromPeak)
	}
	if cfg.GetExposureIDBits() != 16 {
		t.Errorf("GetExposureIDBits() = %d, want 16", cfg.GetExposureIDBits())
	}
	if cfg.GetStoreForcedRecords() != false {
		t.Errorf("GetStoreForcedRecords() = %v, want false", cfg.GetStoreForcedRecords())
	}
}

func TestLoadTuningConfigMissing(t *testing.T) {
	_, err := LoadTuningConfig("/nonexistent/path/to/config.json")
	if err == nil {
		t.Error("Expected error when loading missing file, got nil")
	}
}

func TestLoadTuningConfigInvalid(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "invalid_config.json")

	// Write invalid JSON
	invalidJSON := `{
  "tolerance_arcsec": "invalid"
`
	if err := os.WriteFile(configPath, []byte(invalidJSON), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}

	_, err := LoadTuningConfig(configPath)
	if err == nil {
		t.Error("Expected error when loading invalid JSON, got nil")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *TuningConfig
		wantErr bool
	}{
		{
			name:    "empty config is valid",
			cfg:     &TuningConfig{},
			wantErr: false,
		},
		{
			name: "valid full config",
			cfg: &TuningConfig{
				ToleranceArcsec:    ptrFloat64(1.5),
				TileDepth:          ptrInt(7),
				CentroidMode:       ptrString("coord"),
				ExposureIDBits:     ptrInt(10),
				StoreForcedRecords: ptrBool(true),
			},
			wantErr: false,
		},
		{
			name: "zero tolerance",
			cfg: &TuningConfig{
				ToleranceArcsec: ptrFloat64(0),
			},
			wantErr: true,
		},
		{
			name: "negative tolerance",
			cfg: &TuningConfig{
				ToleranceArcsec: ptrFloat64(-1),
			},
			wantErr: true,
		},
		{
			name: "negative tile depth",
			cfg: &TuningConfig{
				TileDepth: ptrInt(-1),
			},
			wantErr: true,
		},
		{
			name: "tile depth too deep",
			cfg: &TuningConfig{
				TileDepth: ptrInt(25),
			},
			wantErr: true,
		},
		{
			name: "unknown centroid mode",
			cfg: &TuningConfig{
				CentroidMode: ptrString("psf"),
			},
			wantErr: true,
		},
		{
			name: "exposure id bits too small",
			cfg: &TuningConfig{
				ExposureIDBits: ptrInt(0),
			},
			wantErr: true,
		},
		{
			name: "exposure id bits too large",
			cfg: &TuningConfig{
				ExposureIDBits: ptrInt(63),
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoadTuningConfigPartial(t *testing.T) {
	// Partial config: only override tolerance; everything else should keep defaults.
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "partial.json")

	partialJSON := `{
  "tolerance_arcsec": 2.0
}`
	if err := os.WriteFile(configPath, []byte(partialJSON), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}

	cfg, err := LoadTuningConfig(configPath)
	if err != nil {
		t.Fatalf("Failed to load partial config: %v", err)
	}

	// Overridden value
	if cfg.GetToleranceArcsec() != 2.0 {
		t.Errorf("Expected overridden ToleranceArcsec 2.0, got %f", cfg.GetToleranceArcsec())
	}
	// Default values should be preserved
	if cfg.GetTileDepth() != 7 {
		t.Errorf("Expected default TileDepth 7, got %d", cfg.GetTileDepth())
	}
	if cfg.GetCentroidMode() != forced.CentroidFromCoord {
		t.Errorf("Expected default CentroidMode coord, got %v", cfg.GetCentroidMode())
	}
	if cfg.GetExposureIDBits() != 10 {
		t.Errorf("Expected default ExposureIDBits 10, got %d", cfg.GetExposureIDBits())
	}
	if cfg.GetStoreForcedRecords() != true {
		t.Errorf("Expected default StoreForcedRecords true, got %v", cfg.GetStoreForcedRecords())
	}
}

func TestLoadTuningConfigRejectsNonJSON(t *testing.T) {
	_, err := LoadTuningConfig("/some/path/config.yaml")
	if err == nil {
		t.Error("Expected error for non-.json extension, got nil")
	}
}

func TestLoadTuningConfigRejectsLargeFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "large.json")

	// Create a file larger than 1MB
	largeData := make([]byte, 2*1024*1024) // 2MB
	if err := os.WriteFile(configPath, largeData, 0644); err != nil {
		t.Fatalf("Failed to write large file: %v", err)
	}

	_, err := LoadTuningConfig(configPath)
	if err == nil {
		t.Error("Expected error for file size > 1MB, got nil")
	}
}

func TestGetterDefaults(t *testing.T) {
	// Test that getter methods return expected defaults when pointers are nil
	cfg := EmptyTuningConfig()

	if cfg.GetToleranceArcsec() != 1.0 {
		t.Errorf("GetToleranceArcsec() = %f, want 1.0", cfg.GetToleranceArcsec())
	}
	if cfg.GetTileDepth() != 7 {
		t.Errorf("GetTileDepth() = %d, want 7", cfg.GetTileDepth())
	}
	if cfg.GetCentroidMode() != forced.CentroidFromCoord {
		t.Errorf("GetCentroidMode() = %v, want coord", cfg.GetCentroidMode())
	}
	if cfg.GetExposureIDBits() != 10 {
		t.Errorf("GetExposureIDBits() = %d, want 10", cfg.GetExposureIDBits())
	}
	if cfg.GetStoreForcedRecords() != true {
		t.Errorf("GetStoreForcedRecords() = %v, want true", cfg.GetStoreForcedRecords())
	}
}

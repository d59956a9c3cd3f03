package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/banshee-data/transient.report/internal/forced"
	"github.com/banshee-data/transient.report/internal/htm"
)

// TuningConfig represents the root configuration for association and
// forced-measurement tuning parameters. Fields are pointers so that a
// partial JSON file is safe: anything omitted falls back to the default
// supplied by the matching Get* accessor.
type TuningConfig struct {
	// Association params
	ToleranceArcsec *float64 `json:"tolerance_arcsec,omitempty"`

	// Tiling params
	TileDepth *int `json:"tile_depth,omitempty"`

	// Forced measurement params
	CentroidMode   *string `json:"centroid_mode,omitempty"`
	ExposureIDBits *int    `json:"exposure_id_bits,omitempty"`

	// Persistence params
	StoreForcedRecords *bool `json:"store_forced_records,omitempty"`
}

// Helper functions to create pointers
func ptrFloat64(v float64) *float64 { return &v }
func ptrBool(v bool) *bool          { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }

// EmptyTuningConfig returns a TuningConfig with all fields set to nil.
// Use LoadTuningConfig to load actual values from a file.
func EmptyTuningConfig() *TuningConfig {
	return &TuningConfig{}
}

// LoadTuningConfig loads a TuningConfig from a JSON file.
// The file is validated to ensure it has a .json extension and is under the max file size.
// Fields omitted from the JSON file retain their default values, so
// partial configs are safe.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	// Validate the config file path.
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	// Check file size for safety (max 1MB)
	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Parse JSON into empty config. The Get* methods provide fallback
	// defaults for any fields not specified in the JSON.
	cfg := EmptyTuningConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	// Validate the configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that the configuration values are valid.
func (c *TuningConfig) Validate() error {
	// Validate ToleranceArcsec if set
	if c.ToleranceArcsec != nil {
		if *c.ToleranceArcsec <= 0 {
			return fmt.Errorf("tolerance_arcsec must be positive, got %f", *c.ToleranceArcsec)
		}
	}

	// Validate TileDepth if set
	if c.TileDepth != nil {
		if *c.TileDepth < 0 || *c.TileDepth > htm.MaxDepth {
			return fmt.Errorf("tile_depth must be between 0 and %d, got %d", htm.MaxDepth, *c.TileDepth)
		}
	}

	// Validate CentroidMode names a known strategy if set
	if c.CentroidMode != nil {
		if _, err := forced.ParseCentroidMode(*c.CentroidMode); err != nil {
			return fmt.Errorf("invalid centroid_mode '%s': %w", *c.CentroidMode, err)
		}
	}

	// Validate ExposureIDBits if set
	if c.ExposureIDBits != nil {
		if *c.ExposureIDBits < 1 || *c.ExposureIDBits > 62 {
			return fmt.Errorf("exposure_id_bits must be between 1 and 62, got %d", *c.ExposureIDBits)
		}
	}

	return nil
}

// GetToleranceArcsec returns the tolerance_arcsec value or the default.
func (c *TuningConfig) GetToleranceArcsec() float64 {
	if c.ToleranceArcsec == nil {
		return 1.0 // default
	}
	return *c.ToleranceArcsec
}

// GetTileDepth returns the tile_depth value or the default.
func (c *TuningConfig) GetTileDepth() int {
	if c.TileDepth == nil {
		return htm.DefaultDepth
	}
	return *c.TileDepth
}

// GetCentroidMode returns the centroid_mode value or the default.
func (c *TuningConfig) GetCentroidMode() forced.CentroidMode {
	if c.CentroidMode == nil {
		return forced.CentroidFromCoord
	}
	mode, err := forced.ParseCentroidMode(*c.CentroidMode)
	if err != nil {
		return forced.CentroidFromCoord // default on parse error
	}
	return mode
}

// GetExposureIDBits returns the exposure_id_bits value or the default.
func (c *TuningConfig) GetExposureIDBits() uint {
	if c.ExposureIDBits == nil {
		return 10
	}
	return uint(*c.ExposureIDBits)
}

// GetStoreForcedRecords returns the store_forced_records value or the default.
func (c *TuningConfig) GetStoreForcedRecords() bool {
	if c.StoreForcedRecords == nil {
		return true // default: persist forced records
	}
	return *c.StoreForcedRecords
}

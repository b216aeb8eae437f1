package backend

import (
	"fmt"

	"clinic/internal/config"
)

// FromAppConfig converts the application config to backend config
func FromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, fmt.Errorf("app config is nil")
	}

	backendType := BackendType(appConfig.DataBackend)
	if !backendType.IsValid() {
		return Config{}, fmt.Errorf("invalid backend type in config: %s", appConfig.DataBackend)
	}
	mirror := MirrorType(appConfig.MirrorBackend)
	if mirror == "" {
		mirror = NoMirror
	}
	if !mirror.IsValid() {
		return Config{}, fmt.Errorf("invalid mirror type in config: %s", appConfig.MirrorBackend)
	}
	loc, err := appConfig.Location()
	if err != nil {
		return Config{}, err
	}

	return Config{
		Type:         backendType,
		SQLiteDBPath: appConfig.SQLiteDBPath,

		Mirror:                mirror,
		GoogleSpreadsheetID:   appConfig.GoogleSpreadsheetID,
		GooglePaymentsSheet:   appConfig.GooglePaymentsSheet,
		GoogleExpensesSheet:   appConfig.GoogleExpensesSheet,
		GoogleCredentialsFile: appConfig.GoogleCredentialsFile,
		GoogleCredentialsJSON: appConfig.GoogleCredentialsJSON,
		Location:              loc,
	}, nil
}

// Validate validates the backend configuration
func (c Config) Validate() error {
	if !c.Type.IsValid() {
		return fmt.Errorf("invalid backend type: %s", c.Type)
	}
	if c.Type == SQLiteBackend && c.SQLiteDBPath == "" {
		return fmt.Errorf("SQLite database path is required for sqlite backend")
	}

	if c.Mirror != "" && !c.Mirror.IsValid() {
		return fmt.Errorf("invalid mirror type: %s", c.Mirror)
	}
	if c.Mirror == SheetsMirror {
		if c.GoogleSpreadsheetID == "" {
			return fmt.Errorf("Google Spreadsheet ID is required for the sheets mirror")
		}
		if c.GoogleCredentialsFile == "" && c.GoogleCredentialsJSON == "" {
			return fmt.Errorf("either GoogleCredentialsFile or GoogleCredentialsJSON must be provided for the sheets mirror")
		}
	}

	return nil
}

// GetBackendTypes returns all valid backend types
func GetBackendTypes() []BackendType {
	return []BackendType{SQLiteBackend, MemoryBackend}
}

// GetBackendTypeStrings returns all valid backend type strings
func GetBackendTypeStrings() []string {
	types := GetBackendTypes()
	strings := make([]string, len(types))
	for i, t := range types {
		strings[i] = t.String()
	}
	return strings
}

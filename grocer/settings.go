package grocer

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"gopkg.in/yaml.v3"
)


func DefaultStoreSettings() *StoreSettings {
	return &StoreSettings{
		ClearOnLogout: false,
		AlertHistoryLimit: 32,
	}
}

type StoreSettings struct {
	// when set, logout also clears the customer profile, cart, and payment key
	// the catalog is public and always kept
	ClearOnLogout bool `yaml:"clear_on_logout"`
	AlertHistoryLimit int `yaml:"alert_history_limit"`
}


func DefaultSettings() *Settings {
	return &Settings{
		Api: DefaultApiSettings(),
		Store: DefaultStoreSettings(),
	}
}

type Settings struct {
	Api *ApiSettings `yaml:"api"`
	Store *StoreSettings `yaml:"store"`
}


// overlays the yaml file at `path` onto `settings`
// fields missing from the file keep their current values. a missing file is not an error
func ReadSettingsFile(path string, settings any) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read settings %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, settings); err != nil {
		return fmt.Errorf("parse settings %s: %w", path, err)
	}
	return nil
}

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

const (
	// MaxBackups is the number of user config backups kept.
	MaxBackups = 3

	// BackupSuffix separates the config name from the backup timestamp.
	BackupSuffix = ".bak"
)

// BackupUserConfig copies the user config to a timestamped backup and
// prunes old backups. It returns "" when there is no user config.
func BackupUserConfig() (string, error) {
	configPath := GetUserConfigPath()
	if !UserConfigExists() {
		return "", nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return "", fmt.Errorf("failed to read config for backup: %w", err)
	}

	backupPath := fmt.Sprintf("%s%s.%s", configPath, BackupSuffix, time.Now().Format("20060102-150405.000"))
	if err := os.WriteFile(backupPath, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write backup: %w", err)
	}

	backups, err := ListUserConfigBackups()
	if err == nil && len(backups) > MaxBackups {
		for _, old := range backups[MaxBackups:] {
			_ = os.Remove(old)
		}
	}

	return backupPath, nil
}

// ListUserConfigBackups returns backup paths, newest first. The timestamp
// suffix sorts lexically, so no stat calls are needed.
func ListUserConfigBackups() ([]string, error) {
	configPath := GetUserConfigPath()
	dir := filepath.Dir(configPath)
	prefix := filepath.Base(configPath) + BackupSuffix + "."

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to list config directory: %w", err)
	}

	var backups []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasPrefix(e.Name(), prefix) {
			backups = append(backups, filepath.Join(dir, e.Name()))
		}
	}
	sort.Sort(sort.Reverse(sort.StringSlice(backups)))
	return backups, nil
}

// InitUserConfig writes the default configuration to the user config path.
// An existing file is backed up first; without force it is left alone.
func InitUserConfig(force bool) (path string, backup string, err error) {
	path = GetUserConfigPath()
	if UserConfigExists() {
		if !force {
			return path, "", fmt.Errorf("config already exists at %s (use --force to overwrite)", path)
		}
		backup, err = BackupUserConfig()
		if err != nil {
			return path, "", err
		}
	}
	if err := NewConfig().WriteYAML(path); err != nil {
		return path, backup, err
	}
	return path, backup, nil
}

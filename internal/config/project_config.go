package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// InitProjectConfigScaffold 在当前工作目录下初始化项目级配置模板（./.kanban/config.json）。
// InitProjectConfigScaffold initializes a project-level config scaffold (./.kanban/config.json) in the current working directory.
func InitProjectConfigScaffold() (string, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("get current working directory: %w", err)
	}

	dir := filepath.Join(cwd, ".kanban")
	path := filepath.Join(dir, "config.json")

	// 若项目已经有 ./.kanban/config.json，则尊重用户现有配置。
	info, err := os.Stat(path)
	if err == nil {
		if info.IsDir() {
			return "", fmt.Errorf("project config path is a directory: %s", path)
		}
		return path, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return "", fmt.Errorf("stat project config: %w", err)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("mkdir .kanban: %w", err)
	}

	cfg := Default()
	cfg.Storage.BaseDir = ".kanban"
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal default config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write project config: %w", err)
	}

	return path, nil
}

// WriteUILocale 将 ui.locale 写入项目配置（./.kanban/config.json）；目录不存在则创建
// WriteUILocale writes ui.locale to project config (./.kanban/config.json); creates dir if needed
func WriteUILocale(projectDir, locale string) error {
	locale = strings.TrimSpace(locale)
	if locale == "" {
		return errors.New("locale is empty")
	}
	dir := filepath.Join(strings.TrimSpace(projectDir), ".kanban")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("mkdir .kanban: %w", err)
	}
	path := filepath.Join(dir, "config.json")
	var out map[string]any
	data, err := os.ReadFile(path)
	if err == nil {
		if err := json.Unmarshal(stripJSONComments(data), &out); err != nil {
			out = nil
		}
	}
	if out == nil {
		out = make(map[string]any)
	}
	uiMap, _ := out["ui"].(map[string]any)
	if uiMap == nil {
		uiMap = make(map[string]any)
	}
	uiMap["locale"] = locale
	out["ui"] = uiMap
	data, err = json.MarshalIndent(out, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

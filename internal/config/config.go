package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"kanban/internal/board"
)

// ServerConfig 客户端访问持久化服务的设置
// ServerConfig is how the board client reaches the persistence service.
type ServerConfig struct {
	BaseURL   string `json:"base_url" yaml:"base_url"`
	TimeoutMS int    `json:"timeout_ms" yaml:"timeout_ms"`
}

type BoardConfig struct {
	Lanes []board.Lane `json:"lanes" yaml:"lanes"`
	// RollbackFailedMoves 为 true 时，移动失败会把卡片放回原处；默认保留本地位置。
	// RollbackFailedMoves puts a card back where it came from when the move fails to persist; by default the local placement is kept.
	RollbackFailedMoves bool `json:"rollback_failed_moves" yaml:"rollback_failed_moves"`
}

// ServiceConfig configures `kanban serve`.
type ServiceConfig struct {
	Listen                string   `json:"listen" yaml:"listen"`
	DBPath                string   `json:"db_path" yaml:"db_path"`
	RedisURL              string   `json:"redis_url" yaml:"redis_url"`
	CacheTTLSeconds       int      `json:"cache_ttl_seconds" yaml:"cache_ttl_seconds"`
	IdempotencyTTLSeconds int      `json:"idempotency_ttl_seconds" yaml:"idempotency_ttl_seconds"`
	AllowOrigins          []string `json:"allow_origins" yaml:"allow_origins"`
}

type StorageConfig struct {
	BaseDir string `json:"base_dir" yaml:"base_dir"`
}

type LogConfig struct {
	Level string `json:"level" yaml:"level"`
	File  string `json:"file" yaml:"file"`
}

type UIConfig struct {
	Locale string `json:"locale" yaml:"locale"`
}

type Config struct {
	Server  ServerConfig  `json:"server" yaml:"server"`
	Board   BoardConfig   `json:"board" yaml:"board"`
	Service ServiceConfig `json:"service" yaml:"service"`
	Storage StorageConfig `json:"storage" yaml:"storage"`
	Log     LogConfig     `json:"log" yaml:"log"`
	UI      UIConfig      `json:"ui" yaml:"ui"`
}

type fileBoardConfig struct {
	Lanes               *[]board.Lane `json:"lanes" yaml:"lanes"`
	RollbackFailedMoves *bool         `json:"rollback_failed_moves" yaml:"rollback_failed_moves"`
}

type fileConfig struct {
	Server  *ServerConfig    `json:"server" yaml:"server"`
	Board   *fileBoardConfig `json:"board" yaml:"board"`
	Service *ServiceConfig   `json:"service" yaml:"service"`
	Storage *StorageConfig   `json:"storage" yaml:"storage"`
	Log     *LogConfig       `json:"log" yaml:"log"`
	UI      *UIConfig        `json:"ui" yaml:"ui"`
}

func Default() Config {
	return Config{
		Server: ServerConfig{
			BaseURL:   DefaultServerBaseURL,
			TimeoutMS: DefaultServerTimeoutMS,
		},
		Board: BoardConfig{
			Lanes: board.DefaultLanes().Lanes(),
		},
		Service: ServiceConfig{
			Listen:                DefaultServiceListen,
			CacheTTLSeconds:       DefaultCacheTTLSeconds,
			IdempotencyTTLSeconds: DefaultIdempotencyTTLSeconds,
		},
		Storage: StorageConfig{BaseDir: "~/.kanban"},
		Log:     LogConfig{Level: "info"},
		UI:      UIConfig{Locale: "zh-CN"},
	}
}

// LaneSet builds the board's lanes from config.
func (c Config) LaneSet() (board.LaneSet, error) {
	if len(c.Board.Lanes) == 0 {
		return board.DefaultLanes(), nil
	}
	set, err := board.NewLaneSet(c.Board.Lanes...)
	if err != nil {
		return board.LaneSet{}, fmt.Errorf("board.lanes: %w", err)
	}
	return set, nil
}

// DBFile is where `kanban serve` keeps its database.
func (c Config) DBFile() string {
	if c.Service.DBPath != "" {
		return c.Service.DBPath
	}
	return filepath.Join(c.Storage.BaseDir, "kanban.db")
}

// LogFile is where the board client writes its log.
func (c Config) LogFile() string {
	if c.Log.File != "" {
		return c.Log.File
	}
	return filepath.Join(c.Storage.BaseDir, "logs", "kanban.log")
}

func Load(path string) (Config, error) {
	cfg := Default()

	for _, globalPath := range globalConfigPaths() {
		if err := mergeFromFile(&cfg, globalPath); err != nil {
			return Config{}, err
		}
	}

	resolvedPath := strings.TrimSpace(path)
	if envPath := strings.TrimSpace(os.Getenv("KANBAN_CONFIG")); envPath != "" {
		resolvedPath = envPath
	}
	if resolvedPath == "" {
		resolvedPath = findProjectConfigPath()
	}
	if err := mergeFromFile(&cfg, resolvedPath); err != nil {
		return Config{}, err
	}

	if err := normalize(&cfg); err != nil {
		return Config{}, err
	}
	return applyEnv(cfg)
}

func globalConfigPaths() []string {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil
	}
	return []string{
		filepath.Join(home, ".kanban", "config.json"),
		filepath.Join(home, ".kanban", "config.yaml"),
	}
}

func findProjectConfigPath() string {
	candidates := []string{
		"kanban.config.json",
		"kanban.yaml",
		".kanban/config.json",
		".kanban/config.yaml",
	}
	for _, c := range candidates {
		if _, err := os.Stat(c); err == nil {
			return c
		}
	}
	return ""
}

func mergeFromFile(cfg *Config, path string) error {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil
	}

	resolved, err := expandPath(path)
	if err != nil {
		return fmt.Errorf("expand config path %q: %w", path, err)
	}

	data, err := os.ReadFile(resolved)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read config %q: %w", resolved, err)
	}

	var fileCfg fileConfig
	switch strings.ToLower(filepath.Ext(resolved)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &fileCfg); err != nil {
			return fmt.Errorf("parse config %q: %w", resolved, err)
		}
	default:
		if err := json.Unmarshal(stripJSONComments(data), &fileCfg); err != nil {
			return fmt.Errorf("parse config %q: %w", resolved, err)
		}
	}
	applyFileConfig(cfg, fileCfg)
	return nil
}

func applyFileConfig(cfg *Config, fc fileConfig) {
	if fc.Server != nil {
		cfg.Server = mergeServer(cfg.Server, *fc.Server)
	}
	if fc.Board != nil {
		if fc.Board.Lanes != nil {
			cfg.Board.Lanes = append([]board.Lane(nil), (*fc.Board.Lanes)...)
		}
		if fc.Board.RollbackFailedMoves != nil {
			cfg.Board.RollbackFailedMoves = *fc.Board.RollbackFailedMoves
		}
	}
	if fc.Service != nil {
		cfg.Service = mergeService(cfg.Service, *fc.Service)
	}
	if fc.Storage != nil && strings.TrimSpace(fc.Storage.BaseDir) != "" {
		cfg.Storage.BaseDir = fc.Storage.BaseDir
	}
	if fc.Log != nil {
		if strings.TrimSpace(fc.Log.Level) != "" {
			cfg.Log.Level = fc.Log.Level
		}
		if strings.TrimSpace(fc.Log.File) != "" {
			cfg.Log.File = fc.Log.File
		}
	}
	if fc.UI != nil && strings.TrimSpace(fc.UI.Locale) != "" {
		cfg.UI.Locale = fc.UI.Locale
	}
}

func mergeServer(base ServerConfig, override ServerConfig) ServerConfig {
	if strings.TrimSpace(override.BaseURL) != "" {
		base.BaseURL = override.BaseURL
	}
	if override.TimeoutMS > 0 {
		base.TimeoutMS = override.TimeoutMS
	}
	return base
}

func mergeService(base ServiceConfig, override ServiceConfig) ServiceConfig {
	if strings.TrimSpace(override.Listen) != "" {
		base.Listen = override.Listen
	}
	if strings.TrimSpace(override.DBPath) != "" {
		base.DBPath = override.DBPath
	}
	if strings.TrimSpace(override.RedisURL) != "" {
		base.RedisURL = override.RedisURL
	}
	if override.CacheTTLSeconds > 0 {
		base.CacheTTLSeconds = override.CacheTTLSeconds
	}
	if override.IdempotencyTTLSeconds > 0 {
		base.IdempotencyTTLSeconds = override.IdempotencyTTLSeconds
	}
	if len(override.AllowOrigins) > 0 {
		base.AllowOrigins = append([]string(nil), override.AllowOrigins...)
	}
	return base
}

func normalize(cfg *Config) error {
	cfg.Server.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.Server.BaseURL), "/")
	if cfg.Server.BaseURL == "" {
		cfg.Server.BaseURL = DefaultServerBaseURL
	}
	if cfg.Server.TimeoutMS <= 0 {
		cfg.Server.TimeoutMS = DefaultServerTimeoutMS
	}

	if len(cfg.Board.Lanes) == 0 {
		cfg.Board.Lanes = board.DefaultLanes().Lanes()
	}
	if _, err := cfg.LaneSet(); err != nil {
		return err
	}

	cfg.Service.Listen = strings.TrimSpace(cfg.Service.Listen)
	if cfg.Service.Listen == "" {
		cfg.Service.Listen = DefaultServiceListen
	}
	if cfg.Service.CacheTTLSeconds <= 0 {
		cfg.Service.CacheTTLSeconds = DefaultCacheTTLSeconds
	}
	if cfg.Service.IdempotencyTTLSeconds <= 0 {
		cfg.Service.IdempotencyTTLSeconds = DefaultIdempotencyTTLSeconds
	}
	cfg.Service.AllowOrigins = normalizeList(cfg.Service.AllowOrigins)

	if strings.TrimSpace(cfg.Storage.BaseDir) == "" {
		cfg.Storage.BaseDir = Default().Storage.BaseDir
	}
	storageDir, err := expandPath(cfg.Storage.BaseDir)
	if err != nil {
		return err
	}
	cfg.Storage.BaseDir = storageDir

	if cfg.Service.DBPath != "" {
		if cfg.Service.DBPath, err = expandPath(cfg.Service.DBPath); err != nil {
			return err
		}
	}
	if cfg.Log.File != "" {
		if cfg.Log.File, err = expandPath(cfg.Log.File); err != nil {
			return err
		}
	}
	cfg.Log.Level = strings.ToLower(strings.TrimSpace(cfg.Log.Level))
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	cfg.UI.Locale = strings.TrimSpace(cfg.UI.Locale)
	return nil
}

func applyEnv(cfg Config) (Config, error) {
	if v := strings.TrimSpace(os.Getenv("KANBAN_BASE_URL")); v != "" {
		cfg.Server.BaseURL = v
	}
	if v := strings.TrimSpace(os.Getenv("KANBAN_TIMEOUT_MS")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return Config{}, fmt.Errorf("invalid KANBAN_TIMEOUT_MS: %q", v)
		}
		cfg.Server.TimeoutMS = n
	}
	if v := strings.TrimSpace(os.Getenv("KANBAN_LISTEN")); v != "" {
		cfg.Service.Listen = v
	}
	if v := strings.TrimSpace(os.Getenv("KANBAN_DB_PATH")); v != "" {
		cfg.Service.DBPath = v
	}
	if v := strings.TrimSpace(os.Getenv("KANBAN_REDIS_URL")); v != "" {
		cfg.Service.RedisURL = v
	}
	if v := strings.TrimSpace(os.Getenv("KANBAN_LOG_LEVEL")); v != "" {
		cfg.Log.Level = v
	}
	if v := strings.TrimSpace(os.Getenv("KANBAN_HOME")); v != "" {
		cfg.Storage.BaseDir = v
	}
	if v := strings.TrimSpace(os.Getenv("KANBAN_LANG")); v != "" {
		cfg.UI.Locale = v
	}

	return cfg, normalize(&cfg)
}

func normalizeList(items []string) []string {
	out := make([]string, 0, len(items))
	seen := map[string]struct{}{}
	for _, item := range items {
		trimmed := strings.TrimSpace(item)
		if trimmed == "" {
			continue
		}
		if _, ok := seen[trimmed]; ok {
			continue
		}
		seen[trimmed] = struct{}{}
		out = append(out, trimmed)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func expandPath(path string) (string, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return "", nil
	}
	if strings.HasPrefix(path, "~/") || path == "~" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		if path == "~" {
			path = home
		} else {
			path = filepath.Join(home, strings.TrimPrefix(path, "~/"))
		}
	}
	return filepath.Abs(path)
}

func stripJSONComments(data []byte) []byte {
	const (
		stateNormal = iota
		stateString
		stateLineComment
		stateBlockComment
	)

	state := stateNormal
	escaped := false
	out := bytes.Buffer{}

	for i := 0; i < len(data); i++ {
		c := data[i]
		next := byte(0)
		if i+1 < len(data) {
			next = data[i+1]
		}

		switch state {
		case stateNormal:
			if c == '"' {
				state = stateString
				out.WriteByte(c)
				continue
			}
			if c == '/' && next == '/' {
				state = stateLineComment
				i++
				continue
			}
			if c == '/' && next == '*' {
				state = stateBlockComment
				i++
				continue
			}
			out.WriteByte(c)
		case stateString:
			out.WriteByte(c)
			if escaped {
				escaped = false
				continue
			}
			if c == '\\' {
				escaped = true
				continue
			}
			if c == '"' {
				state = stateNormal
			}
		case stateLineComment:
			if c == '\n' {
				state = stateNormal
				out.WriteByte(c)
			}
		case stateBlockComment:
			if c == '*' && next == '/' {
				state = stateNormal
				i++
			}
		}
	}

	return out.Bytes()
}

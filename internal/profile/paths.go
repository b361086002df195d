package profile

import (
	"os"
	"path/filepath"
)

// homeEnv overrides the base directory.
const homeEnv = "CHATROOM_HOME"

// BaseDir returns ~/.chatroom, or $CHATROOM_HOME when set.
func BaseDir() string {
	if dir := os.Getenv(homeEnv); dir != "" {
		return dir
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".chatroom")
}

// Dir returns the profile-specific directory.
func Dir(name string) string {
	return filepath.Join(BaseDir(), "profiles", name)
}

// LockPath returns the lock file path for a profile.
func LockPath(name string) string {
	return filepath.Join(Dir(name), "LOCK")
}

// CacheDBPath returns the message cache database path.
func CacheDBPath(name string) string {
	return filepath.Join(Dir(name), "cache.db")
}

// VaultDBPath returns the credential vault database path.
func VaultDBPath(name string) string {
	return filepath.Join(Dir(name), "vault.db")
}

// VaultKeyPath returns the path of the key sealing vault secrets.
func VaultKeyPath(name string) string {
	return filepath.Join(Dir(name), "vault.key")
}

// MediaDir returns where exported images are written.
func MediaDir(name string) string {
	return filepath.Join(Dir(name), "media")
}

// LogDir returns the log directory for a profile.
func LogDir(name string) string {
	return filepath.Join(Dir(name), "logs")
}

// LogPath returns the log file path.
func LogPath(name string) string {
	return filepath.Join(LogDir(name), "chatroom.log")
}

// ConfigPath returns the global config file path.
func ConfigPath() string {
	return filepath.Join(BaseDir(), "config.toml")
}

// EnsureDir creates the profile directory tree with proper permissions.
func EnsureDir(name string) error {
	for _, d := range []string{Dir(name), LogDir(name), MediaDir(name)} {
		if err := os.MkdirAll(d, 0700); err != nil {
			return err
		}
	}
	return nil
}

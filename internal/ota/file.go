package ota

import (
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
)

const stagingSuffix = ".next"

// FileUpdater stages the image alongside the target binary and atomically
// renames it over the target on Commit. The staging file lives in the same
// directory so the rename never crosses filesystems.
type FileUpdater struct {
	target string

	staging  *os.File
	expected int64
	written  int64
}

// NewFileUpdater creates an updater for the given binary path. An empty
// target means the running executable.
func NewFileUpdater(target string) *FileUpdater {
	return &FileUpdater{target: target}
}

func (u *FileUpdater) Begin(size int64) error {
	if u.staging != nil {
		return fmt.Errorf("update already in progress")
	}

	target := u.target
	if target == "" {
		exe, err := os.Executable()
		if err != nil {
			return fmt.Errorf("resolve running executable: %w", err)
		}
		target = exe
		u.target = exe
	}

	mode := os.FileMode(0o755)
	if info, err := os.Stat(target); err == nil {
		mode = info.Mode().Perm()
	}

	f, err := os.OpenFile(target+stagingSuffix, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, mode)
	if err != nil {
		return fmt.Errorf("open staging file: %w", err)
	}

	u.staging = f
	u.expected = size
	u.written = 0
	log.Info().Str("target", target).Int64("size", size).Msg("Firmware update started")
	return nil
}

func (u *FileUpdater) Write(p []byte) (int, error) {
	if u.staging == nil {
		return 0, fmt.Errorf("no update in progress")
	}

	n, err := u.staging.Write(p)
	u.written += int64(n)
	if err != nil {
		return n, fmt.Errorf("write staging file: %w", err)
	}
	return n, nil
}

func (u *FileUpdater) Commit() error {
	if u.staging == nil {
		return fmt.Errorf("no update in progress")
	}

	if u.expected >= 0 && u.written != u.expected {
		u.Abort()
		return fmt.Errorf("incomplete image: expected %d bytes, wrote %d", u.expected, u.written)
	}

	if err := u.staging.Sync(); err != nil {
		u.Abort()
		return fmt.Errorf("sync staging file: %w", err)
	}
	name := u.staging.Name()
	if err := u.staging.Close(); err != nil {
		u.staging = nil
		os.Remove(name)
		return fmt.Errorf("close staging file: %w", err)
	}
	u.staging = nil

	if err := os.Rename(name, u.target); err != nil {
		os.Remove(name)
		return fmt.Errorf("install staged image: %w", err)
	}

	log.Info().Str("target", u.target).Int64("bytes", u.written).Msg("Firmware update installed")
	return nil
}

func (u *FileUpdater) Abort() {
	if u.staging == nil {
		return
	}
	name := u.staging.Name()
	u.staging.Close()
	u.staging = nil
	if err := os.Remove(name); err != nil {
		log.Debug().Err(err).Msg("Staging file cleanup")
	}
	log.Warn().Int64("bytes", u.written).Msg("Firmware update aborted")
}

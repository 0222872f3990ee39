package cache

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"lyrics-translator-go/logcolors"

	"github.com/dustin/go-humanize"
	log "github.com/sirupsen/logrus"
	bolt "go.etcd.io/bbolt"
)

const backupExt = ".db"

// BackupInfo contains metadata about a backup file
type BackupInfo struct {
	FileName  string `json:"fileName"`
	FilePath  string `json:"filePath"`
	Size      int64  `json:"sizeBytes"`
	SizeHuman string `json:"sizeHuman"`
	CreatedAt string `json:"createdAt"`
}

// Backup writes a consistent snapshot of the cache database into the backup
// directory and returns its path. Readers and writers are not blocked.
func (s *Store) Backup() (string, error) {
	if s.backupPath == "" {
		return "", errors.New("no backup directory configured")
	}

	timestamp := s.now().UTC().Format("2006-01-02_15-04-05.000")
	backupFilePath := filepath.Join(s.backupPath, fmt.Sprintf("cache_backup_%s%s", timestamp, backupExt))
	// two backups within the same millisecond get a sequence suffix
	for n := 1; fileExists(backupFilePath); n++ {
		backupFilePath = filepath.Join(s.backupPath, fmt.Sprintf("cache_backup_%s_%d%s", timestamp, n, backupExt))
	}

	log.Infof("%s Creating backup at: %s", logcolors.LogCacheBackup, backupFilePath)

	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.CopyFile(backupFilePath, 0600)
	})
	if err != nil {
		os.Remove(backupFilePath)
		return "", fmt.Errorf("failed to write backup: %w", err)
	}

	if info, err := os.Stat(backupFilePath); err == nil {
		log.Infof("%s Backup created successfully: %s (%s)", logcolors.LogCacheBackup, backupFilePath, humanize.Bytes(uint64(info.Size())))
	}
	return backupFilePath, nil
}

// BackupAndClear snapshots the cache and then clears the given categories.
func (s *Store) BackupAndClear(categories ...Category) (string, error) {
	backupFilePath, err := s.Backup()
	if err != nil {
		return "", fmt.Errorf("failed to create backup: %w", err)
	}
	if err := s.Clear(categories...); err != nil {
		return backupFilePath, fmt.Errorf("backup created but failed to clear cache: %w", err)
	}
	return backupFilePath, nil
}

// ListBackups returns the available backups, newest first.
func (s *Store) ListBackups() ([]BackupInfo, error) {
	backups := []BackupInfo{}
	if s.backupPath == "" {
		return backups, nil
	}

	entries, err := os.ReadDir(s.backupPath)
	if err != nil {
		if os.IsNotExist(err) {
			return backups, nil
		}
		return nil, fmt.Errorf("failed to read backup directory: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != backupExt {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			log.Warnf("%s Failed to get info for %s: %v", logcolors.LogCacheBackup, entry.Name(), err)
			continue
		}
		backups = append(backups, BackupInfo{
			FileName:  entry.Name(),
			FilePath:  filepath.Join(s.backupPath, entry.Name()),
			Size:      info.Size(),
			SizeHuman: humanize.Bytes(uint64(info.Size())),
			CreatedAt: info.ModTime().UTC().Format("2006-01-02T15:04:05Z"),
		})
	}

	// names embed a sortable timestamp
	sort.Slice(backups, func(i, j int) bool {
		return backups[i].FileName > backups[j].FileName
	})
	return backups, nil
}

// DeleteBackup removes one backup file by name.
func (s *Store) DeleteBackup(backupFileName string) error {
	if backupFileName == "" || filepath.Base(backupFileName) != backupFileName {
		return fmt.Errorf("invalid backup file name: %q", backupFileName)
	}
	if filepath.Ext(backupFileName) != backupExt {
		return errors.New("invalid backup file: must be a .db file")
	}

	backupFilePath := filepath.Join(s.backupPath, backupFileName)
	if _, err := os.Stat(backupFilePath); os.IsNotExist(err) {
		return fmt.Errorf("backup file not found: %s", backupFileName)
	}
	if err := os.Remove(backupFilePath); err != nil {
		return fmt.Errorf("failed to delete backup: %w", err)
	}

	log.Infof("%s Deleted backup: %s", logcolors.LogCacheBackup, backupFileName)
	return nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

package database

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"time"
)

const backupTimeLayout = "20060102_150405"

var backupName = regexp.MustCompile(`^(\d{8}_\d{6})_pvsoiling\.db\.zip$`)

func (d *Database) backupDir() string {
	return filepath.Join(filepath.Dir(d.path), "backups")
}

// Backup writes a consistent snapshot of the database, zipped, to the
// backups directory next to the database file.
func (d *Database) Backup(ctx context.Context) error {
	return d.backupAt(ctx, time.Now())
}

func (d *Database) backupAt(ctx context.Context, now time.Time) error {
	dir := d.backupDir()
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create backup directory: %w", err)
	}

	snapshot := filepath.Join(dir, now.UTC().Format(backupTimeLayout)+"_pvsoiling.db")
	if _, err := d.write.ExecContext(ctx, "VACUUM INTO ?", snapshot); err != nil {
		return fmt.Errorf("vacuuming database into '%s': %w", snapshot, err)
	}
	defer func() {
		if err := os.Remove(snapshot); err != nil && !errors.Is(err, fs.ErrNotExist) {
			d.logger.Warn("could not remove uncompressed snapshot", slog.String("path", snapshot), slog.Any("error", err))
		}
	}()

	archive := snapshot + ".zip"
	if err := zipFile(snapshot, archive, filepath.Base(d.path)); err != nil {
		os.Remove(archive)
		return err
	}

	d.logger.Info("database backup complete", slog.String("filename", archive))
	return nil
}

func zipFile(src, dest, entryName string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open snapshot for compression: %w", err)
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return fmt.Errorf("stat snapshot: %w", err)
	}

	out, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("create zip file: %w", err)
	}
	defer out.Close()

	header, err := zip.FileInfoHeader(info)
	if err != nil {
		return fmt.Errorf("create zip header: %w", err)
	}
	header.Name = entryName
	header.Method = zip.Deflate

	zw := zip.NewWriter(out)
	w, err := zw.CreateHeader(header)
	if err != nil {
		return fmt.Errorf("create zip entry: %w", err)
	}
	if _, err := io.Copy(w, in); err != nil {
		return fmt.Errorf("write snapshot to zip: %w", err)
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("finalize zip file: %w", err)
	}
	return out.Close()
}

// PurgeBackups removes backups older than retentionDays. Files that do not
// look like backups are left alone. Zero or less keeps everything.
func (d *Database) PurgeBackups(ctx context.Context, retentionDays int) error {
	return d.purgeBackupsAt(ctx, retentionDays, time.Now())
}

func (d *Database) purgeBackupsAt(ctx context.Context, retentionDays int, now time.Time) error {
	if retentionDays < 1 {
		return nil
	}
	cutoff := now.Add(-time.Duration(retentionDays) * 24 * time.Hour)

	dir := d.backupDir()
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read backup directory: %w", err)
	}

	removed := 0
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}
		m := backupName.FindStringSubmatch(e.Name())
		if e.IsDir() || m == nil {
			continue
		}
		taken, err := time.Parse(backupTimeLayout, m[1])
		if err != nil || !taken.Before(cutoff) {
			continue
		}
		path := filepath.Join(dir, e.Name())
		if err := os.Remove(path); err != nil {
			return fmt.Errorf("remove old backup '%s': %w", path, err)
		}
		removed++
	}

	d.logger.Info("backup purge complete", slog.Int("removed", removed), slog.Int("retentionDays", retentionDays))
	return nil
}

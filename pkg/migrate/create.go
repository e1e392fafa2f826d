package migrate

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

var unsafeNameChars = regexp.MustCompile(`[^a-z0-9]+`)

const migrationTemplate = `-- +goose Up
-- +goose StatementBegin
-- %[1]s (%[2]s)
-- +goose StatementEnd

-- +goose Down
-- +goose StatementBegin
-- revert %[1]s (%[2]s)
-- +goose StatementEnd
`

// CreateSQLMigrations writes one empty goose migration per directory, all
// sharing a single version so the driver trees stay in step. Nothing is
// written if any target file already exists.
func CreateSQLMigrations(name string, dirs ...string) ([]string, error) {
	if len(dirs) == 0 {
		return nil, errors.New("at least one dir is required")
	}
	slug := migrationSlug(name)
	if slug == "" {
		return nil, fmt.Errorf("name %q has no usable characters", name)
	}
	file := time.Now().UTC().Format("20060102150405") + "_" + slug + ".sql"

	paths := make([]string, 0, len(dirs))
	for _, dir := range dirs {
		if dir == "" {
			return nil, errors.New("dir is required")
		}
		path := filepath.Join(dir, file)
		if _, err := os.Stat(path); err == nil {
			return nil, fmt.Errorf("migration already exists: %s", path)
		}
		paths = append(paths, path)
	}

	for i, path := range paths {
		if err := os.MkdirAll(dirs[i], 0o755); err != nil {
			return nil, fmt.Errorf("mkdir %q: %w", dirs[i], err)
		}
		body := fmt.Sprintf(migrationTemplate, slug, filepath.Base(dirs[i]))
		if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
			return nil, fmt.Errorf("write migration %q: %w", path, err)
		}
	}
	return paths, nil
}

func migrationSlug(name string) string {
	return strings.Trim(unsafeNameChars.ReplaceAllString(strings.ToLower(name), "_"), "_")
}

package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// StepName identifies a pipeline step for caching purposes.
type StepName string

const (
	StepPage    StepName = "page"
	StepRecords StepName = "records"
)

// Cache keeps timestamped copies of intermediate pipeline outputs. The
// latest cached page is what extract re-parses when no file is given.
type Cache struct {
	dir string
	now func() time.Time
}

// NewCache creates a cache rooted at dir
func NewCache(dir string) *Cache {
	return &Cache{dir: dir, now: time.Now}
}

// stepDir returns the cache directory for a given step.
func (c *Cache) stepDir(step StepName) string {
	return filepath.Join(c.dir, string(step))
}

// generateFilename creates a timestamped filename with the given extension.
func (c *Cache) generateFilename(ext string) string {
	return c.now().Format("2006-01-02T15-04-05.000") + ext
}

// SaveStepOutput saves JSON-serializable data to the step's cache directory.
// Returns the path to the saved file.
func SaveStepOutput[T any](c *Cache, step StepName, data T) (string, error) {
	dir := c.stepDir(step)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create step cache dir: %w", err)
	}

	path := filepath.Join(dir, c.generateFilename(".json"))

	jsonData, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal step output: %w", err)
	}

	if err := os.WriteFile(path, jsonData, 0644); err != nil {
		return "", fmt.Errorf("failed to write step output: %w", err)
	}

	return path, nil
}

// SaveTextOutput saves text content (e.g., page markup) to the step's cache directory.
// Returns the path to the saved file.
func (c *Cache) SaveTextOutput(step StepName, content string, ext string) (string, error) {
	dir := c.stepDir(step)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create step cache dir: %w", err)
	}

	path := filepath.Join(dir, c.generateFilename(ext))

	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return "", fmt.Errorf("failed to write step output: %w", err)
	}

	return path, nil
}

// LatestStepFile returns the path to the most recent file in a step's cache directory.
func (c *Cache) LatestStepFile(step StepName) (string, error) {
	dir := c.stepDir(step)

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("no cached output for step %s", step)
		}
		return "", err
	}

	// os.ReadDir sorts by name, which is chronological for our timestamps
	var files []string
	for _, entry := range entries {
		if !entry.IsDir() {
			files = append(files, entry.Name())
		}
	}

	if len(files) == 0 {
		return "", fmt.Errorf("no cached output for step %s", step)
	}

	return filepath.Join(dir, files[len(files)-1]), nil
}

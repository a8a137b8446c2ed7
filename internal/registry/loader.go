package registry

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"overlayd/internal/common/fsutil"
	"overlayd/pkg/types"
)

// ErrNotFound is returned by Find when the requested model file is absent.
var ErrNotFound = errors.New("model not found")

var quantPattern = regexp.MustCompile(`(?i)[._-](q\d(?:_[a-z0-9]+)*|f16|f32|bf16)$`)

// GGUFScanner discovers *.gguf files in a models directory.
type GGUFScanner struct{}

func NewGGUFScanner() *GGUFScanner { return &GGUFScanner{} }

// Scan lists *.gguf files in dir (non-recursive), sorted by id. ID is the file
// name including extension and Path is the absolute file path.
func (s *GGUFScanner) Scan(dir string) ([]types.Model, error) {
	abs, err := resolveDir(dir)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(abs)
	if err != nil {
		return nil, fmt.Errorf("read dir: %w", err)
	}
	var models []types.Model
	for _, e := range entries {
		if e.IsDir() || !isGGUF(e.Name()) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		models = append(models, describe(abs, e.Name(), info.Size()))
	}
	sort.Slice(models, func(i, j int) bool { return models[i].ID < models[j].ID })
	return models, nil
}

// Find returns the model with the given id from dir.
func (s *GGUFScanner) Find(dir, id string) (types.Model, error) {
	if strings.TrimSpace(id) == "" || filepath.Base(id) != id {
		return types.Model{}, fmt.Errorf("%w: invalid id %q", ErrNotFound, id)
	}
	abs, err := resolveDir(dir)
	if err != nil {
		return types.Model{}, err
	}
	p := filepath.Join(abs, id)
	info, err := os.Stat(p)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return types.Model{}, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return types.Model{}, err
	}
	if info.IsDir() {
		return types.Model{}, fmt.Errorf("%w: %s is a directory", ErrNotFound, id)
	}
	return describe(abs, id, info.Size()), nil
}

func resolveDir(dir string) (string, error) {
	base, err := fsutil.ExpandHome(dir)
	if err != nil {
		return "", err
	}
	abs, err := filepath.Abs(base)
	if err != nil {
		return "", fmt.Errorf("abs path: %w", err)
	}
	return abs, nil
}

func isGGUF(name string) bool { return strings.HasSuffix(strings.ToLower(name), ".gguf") }

func describe(dir, name string, size int64) types.Model {
	stem := strings.TrimSuffix(name, filepath.Ext(name))
	m := types.Model{ID: name, Name: stem, Path: filepath.Join(dir, name), SizeBytes: size}
	if q := quantPattern.FindStringSubmatch(stem); q != nil {
		m.Quant = strings.ToUpper(q[1])
		m.Name = fmt.Sprintf("%s (%s)", stem[:len(stem)-len(q[0])], m.Quant)
	}
	return m
}

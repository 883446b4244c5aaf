package scripts

import (
	"context"
	"fmt"
	"io/fs"
	"regexp"
	"strings"

	"github.com/USA-RedDragon/rpc-tester/internal/storage"
	"github.com/go-errors/errors"
)

const (
	extension = ".expr"
	// MaxScriptSize bounds a saved script.
	MaxScriptSize = 64 * 1024
)

var (
	ErrInvalidName    = errors.New("script names are 1 to 64 letters, digits, dashes or underscores")
	ErrScriptNotFound = errors.New("script not found")
	ErrScriptTooLarge = errors.New("script is too large")
	ErrScriptEmpty    = errors.New("script is empty")
)

//nolint:golint,gochecknoglobals
var validName = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_-]{0,63}$`)

// Library stores named sandbox scripts.
type Library struct {
	storage storage.Storage
}

func NewLibrary(storage storage.Storage) *Library {
	return &Library{storage: storage}
}

func ValidateName(name string) error {
	if !validName.MatchString(name) {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}

func (l *Library) Save(ctx context.Context, name, script string) error {
	if err := ValidateName(name); err != nil {
		return err
	}
	if strings.TrimSpace(script) == "" {
		return ErrScriptEmpty
	}
	if len(script) > MaxScriptSize {
		return ErrScriptTooLarge
	}
	return l.storage.WriteFile(ctx, name+extension, []byte(script))
}

func (l *Library) Load(ctx context.Context, name string) (string, error) {
	if err := ValidateName(name); err != nil {
		return "", err
	}
	data, err := l.storage.ReadFile(ctx, name+extension)
	if errors.Is(err, fs.ErrNotExist) {
		return "", fmt.Errorf("%w: %q", ErrScriptNotFound, name)
	}
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func (l *Library) Delete(ctx context.Context, name string) error {
	if err := ValidateName(name); err != nil {
		return err
	}
	err := l.storage.Remove(ctx, name+extension)
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %q", ErrScriptNotFound, name)
	}
	return err
}

// List returns saved script names, sorted. Foreign files are skipped.
func (l *Library) List(ctx context.Context) ([]string, error) {
	files, err := l.storage.List(ctx)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(files))
	for _, file := range files {
		name, ok := strings.CutSuffix(file, extension)
		if ok && validName.MatchString(name) {
			names = append(names, name)
		}
	}
	return names, nil
}

func (l *Library) Close() error {
	return l.storage.Close()
}

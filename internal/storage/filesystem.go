package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"golang.org/x/sys/unix"
)

// Filesystem resolves every name inside root, so names cannot escape it.
type Filesystem struct {
	root string
	dfd  int
}

func newFilesystem(root string) (*Filesystem, error) {
	dfd, err := unix.Open(root, unix.O_DIRECTORY|unix.O_PATH|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", root, err)
	}
	return &Filesystem{
		root: root,
		dfd:  dfd,
	}, nil
}

func (f *Filesystem) Close() error {
	return unix.Close(f.dfd)
}

func (f *Filesystem) openFile(name string, flag int, perm fs.FileMode) (*os.File, error) {
	// openat2 RESOLVE_IN_ROOT - so symlinks still work
	for {
		how := unix.OpenHow{
			Flags:   uint64(flag) | unix.O_CLOEXEC,
			Mode:    uint64(perm),
			Resolve: unix.RESOLVE_IN_ROOT,
		}
		fd, err := unix.Openat2(f.dfd, name, &how)
		if err != nil {
			// need to check for EINTR - Go issues 11180, 39237
			// also EAGAIN in case of unsafe race
			if errors.Is(err, unix.EINTR) || errors.Is(err, unix.EAGAIN) {
				continue
			}
			return nil, &fs.PathError{Op: "open", Path: name, Err: err}
		}

		return os.NewFile(uintptr(fd), name), nil
	}
}

func (f *Filesystem) ReadFile(_ context.Context, name string) ([]byte, error) {
	file, err := f.openFile(name, os.O_RDONLY, 0)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	return io.ReadAll(file)
}

func (f *Filesystem) WriteFile(_ context.Context, name string, data []byte) error {
	file, err := f.openFile(name, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}
	defer file.Close()

	written, err := file.Write(data)
	if err != nil {
		return err
	}
	if written != len(data) {
		return io.ErrShortWrite
	}
	return nil
}

func (f *Filesystem) Remove(_ context.Context, name string) error {
	// tricky: we have to open the *parent*, then unlinkat
	// unlinkat has no RESOLVE_IN_ROOT, AT_EMPTY_PATH, or AT_SYMLINK_NOFOLLOW
	parent, err := f.openFile(filepath.Dir(name), unix.O_DIRECTORY|unix.O_PATH, 0)
	if err != nil {
		return err
	}
	defer parent.Close()

	err = unix.Unlinkat(int(parent.Fd()), filepath.Base(name), 0)
	if err != nil {
		return &fs.PathError{Op: "remove", Path: name, Err: err}
	}
	return nil
}

// List returns the regular files directly under root, sorted.
func (f *Filesystem) List(_ context.Context) ([]string, error) {
	dir, err := f.openFile(".", unix.O_DIRECTORY|os.O_RDONLY, 0)
	if err != nil {
		return nil, err
	}
	defer dir.Close()

	entries, err := dir.ReadDir(0)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.Type().IsRegular() {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

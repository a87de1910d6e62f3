package edb

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"io"
	"os"
	"sync"

	"github.com/pkg/errors"
)

// FileRevision represents the version of the file medium format.
// The value must be incremented for every change that breaks the
// compatibility with the existing format.
const FileRevision uint16 = 1

const revSize = 2

type osFile interface {
	io.Reader
	io.Writer
	io.Closer
	io.Seeker

	Truncate(size int64) error
}

// A FileMedium keeps all entries in a single file on disk. The file holds a
// 2 bytes little endian revision followed by the entries encoded as a JSON
// object. The whole file is rewritten on every mutation, so the medium is
// not suited for large amounts of data.
//
// A FileMedium is safe for concurrent use within one process. Accesses are
// serialized since they share the file offset.
type FileMedium struct {
	mu  sync.Mutex
	f   *file
	rev uint16
}

// OpenFileMedium opens the medium stored at path, creating it if it does not
// exist.
func OpenFileMedium(path string) (*FileMedium, error) {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return newFileMedium(path)
		}
		return nil, errors.Wrapf(err, "cannot stat medium path %q", path)
	}
	osf, err := os.OpenFile(path, os.O_RDWR, 0600)
	if err != nil {
		return nil, errors.Wrap(err, "cannot open file medium")
	}
	return openFileMedium(osf)
}

func newFileMedium(path string) (*FileMedium, error) {
	osf, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0600)
	if err != nil {
		return nil, errors.Wrap(err, "error while creating new file medium")
	}
	f := newFile(osf)
	if err := f.writeRevision(FileRevision); err != nil {
		_ = f.close()
		return nil, errors.Wrap(err, "error while creating new file medium")
	}
	return &FileMedium{f: f, rev: FileRevision}, nil
}

func openFileMedium(osf osFile) (*FileMedium, error) {
	f := newFile(osf)
	rev, err := f.readRevision()
	if err != nil {
		_ = f.close()
		return nil, errors.Wrap(err, "cannot open file medium")
	}
	if rev > FileRevision {
		_ = f.close()
		return nil, errors.Errorf("unsupported file medium revision %d", rev)
	}
	return &FileMedium{f: f, rev: rev}, nil
}

// Revision returns the format revision of the underlying file.
func (fm *FileMedium) Revision() uint16 {
	return fm.rev
}

func (fm *FileMedium) GetItem(_ context.Context, key string) (string, bool, error) {
	fm.mu.Lock()
	defer fm.mu.Unlock()
	m, err := fm.f.readEntries()
	if err != nil {
		return "", false, err
	}
	v, ok := m[key]
	return v, ok, nil
}

func (fm *FileMedium) SetItem(_ context.Context, key, value string) error {
	fm.mu.Lock()
	defer fm.mu.Unlock()
	m, err := fm.f.readEntries()
	if err != nil {
		return err
	}
	m[key] = value
	return fm.f.writeEntries(m)
}

func (fm *FileMedium) SetItemIfAbsent(_ context.Context, key, value string) (bool, error) {
	fm.mu.Lock()
	defer fm.mu.Unlock()
	m, err := fm.f.readEntries()
	if err != nil {
		return false, err
	}
	if _, ok := m[key]; ok {
		return false, nil
	}
	m[key] = value
	if err := fm.f.writeEntries(m); err != nil {
		return false, err
	}
	return true, nil
}

func (fm *FileMedium) RemoveItem(_ context.Context, key string) error {
	fm.mu.Lock()
	defer fm.mu.Unlock()
	m, err := fm.f.readEntries()
	if err != nil {
		return err
	}
	if _, ok := m[key]; !ok {
		return nil
	}
	delete(m, key)
	return fm.f.writeEntries(m)
}

func (fm *FileMedium) Keys(_ context.Context) ([]string, error) {
	fm.mu.Lock()
	defer fm.mu.Unlock()
	m, err := fm.f.readEntries()
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	return keys, nil
}

// Close closes the underlying file.
func (fm *FileMedium) Close() error {
	fm.mu.Lock()
	defer fm.mu.Unlock()
	if err := fm.f.close(); err != nil {
		return errors.Wrap(err, "cannot close medium file")
	}
	return nil
}

type file struct {
	rw osFile
}

func newFile(f osFile) *file {
	return &file{rw: f}
}

func (f *file) readRevision() (uint16, error) {
	if _, err := f.rw.Seek(0, io.SeekStart); err != nil {
		return 0, errors.Wrap(err, "cannot seek to the revision")
	}
	buf := make([]byte, revSize)
	if _, err := io.ReadFull(f.rw, buf); err != nil {
		return 0, errors.Wrap(err, "cannot read revision")
	}
	return binary.LittleEndian.Uint16(buf), nil
}

func (f *file) readEntries() (map[string]string, error) {
	if _, err := f.rw.Seek(revSize, io.SeekStart); err != nil {
		return nil, errors.Wrap(err, "cannot seek to the data")
	}
	data, err := io.ReadAll(f.rw)
	if err != nil {
		return nil, errors.Wrap(err, "cannot read data")
	}
	m := make(map[string]string)
	if len(data) == 0 {
		return m, nil
	}
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, errors.Wrap(err, "cannot decode entries")
	}
	return m, nil
}

func (f *file) writeRevision(rev uint16) error {
	buf := make([]byte, revSize)
	binary.LittleEndian.PutUint16(buf, rev)
	if _, err := f.rw.Seek(0, io.SeekStart); err != nil {
		return errors.Wrap(err, "cannot seek to the revision")
	}
	if _, err := f.rw.Write(buf); err != nil {
		return errors.Wrap(err, "cannot write revision")
	}
	return nil
}

func (f *file) writeEntries(m map[string]string) error {
	data, err := json.Marshal(m)
	if err != nil {
		return errors.Wrap(err, "cannot encode entries")
	}
	if err := f.rw.Truncate(revSize); err != nil {
		return errors.Wrap(err, "cannot truncate file")
	}
	if _, err := f.rw.Seek(revSize, io.SeekStart); err != nil {
		return errors.Wrap(err, "cannot seek to data")
	}
	if _, err := f.rw.Write(data); err != nil {
		return errors.Wrap(err, "cannot write data")
	}
	return nil
}

func (f *file) close() error {
	return f.rw.Close()
}

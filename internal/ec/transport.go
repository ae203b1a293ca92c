package ec

import (
	"fmt"
	"io"
	"os"
	"sync"
)

// DefaultIOPath is the EC register file exposed by the ec_sys kernel
// module when loaded with write_support=1.
const DefaultIOPath = "/sys/kernel/debug/ec/ec0/io"

// Transport is a seekable byte-addressable register resource.
//
// Implementations perform strictly sequential single-attempt
// operations: no retries, no timeouts, no batching. A failed call
// wraps ErrReadFailed or ErrWriteFailed naming the address so callers
// can report exactly which register access broke.
type Transport interface {
	// ReadByte reads one byte at the given register address.
	ReadByte(addr uint32) (byte, error)

	// ReadWord reads two bytes at the given address, high byte first.
	// Used for the fan tachometer registers.
	ReadWord(addr uint32) (uint16, error)

	// WriteByte writes one byte at the given register address.
	WriteByte(addr uint32, value byte) error

	// Available reports whether the underlying resource exists. It is
	// an existence check only, not a guarantee of write permission.
	Available() bool
}

// File is a Transport backed by a seekable file: the EC debugfs
// register file, or a firmware image opened read-only for scanning.
//
// The file handle is opened once and reused. Each register access is
// one seek followed by one read or write, held under a single lock so
// concurrent callers cannot interleave their seeks; File is safe for
// concurrent use.
type File struct {
	path     string
	readOnly bool

	mu sync.Mutex
	f  *os.File
}

// Open opens a read-write transport on the given register file.
// Returns ErrNotAvailable when the file does not exist.
func Open(path string) (*File, error) {
	return openFile(path, false)
}

// OpenReadOnly opens a read-only transport, e.g. a firmware image.
// WriteByte on the returned transport fails with ErrReadOnly.
func OpenReadOnly(path string) (*File, error) {
	return openFile(path, true)
}

func openFile(path string, readOnly bool) (*File, error) {
	flag := os.O_RDWR
	if readOnly {
		flag = os.O_RDONLY
	}
	f, err := os.OpenFile(path, flag, 0)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotAvailable, path)
		}
		return nil, fmt.Errorf("%w: open %s: %v", ErrNotAvailable, path, err)
	}
	return &File{path: path, f: f, readOnly: readOnly}, nil
}

// Close releases the underlying file handle.
func (t *File) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.f == nil {
		return nil
	}
	err := t.f.Close()
	t.f = nil
	return err
}

// Path returns the backing file path.
func (t *File) Path() string {
	return t.path
}

// Available reports whether the backing file still exists.
func (t *File) Available() bool {
	_, err := os.Stat(t.path)
	return err == nil
}

// ReadByte implements Transport.
func (t *File) ReadByte(addr uint32) (byte, error) {
	var buf [1]byte
	if err := t.readAt(addr, buf[:]); err != nil {
		return 0, err
	}
	return buf[0], nil
}

// ReadWord implements Transport. The EC stores words high byte first.
func (t *File) ReadWord(addr uint32) (uint16, error) {
	var buf [2]byte
	if err := t.readAt(addr, buf[:]); err != nil {
		return 0, err
	}
	return uint16(buf[0])<<8 | uint16(buf[1]), nil
}

// WriteByte implements Transport.
func (t *File) WriteByte(addr uint32, value byte) error {
	if t.readOnly {
		return fmt.Errorf("%w: write 0x%02x at 0x%02x", ErrReadOnly, value, addr)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, err := t.f.Seek(int64(addr), io.SeekStart); err != nil {
		return fmt.Errorf("%w: seek 0x%02x: %v", ErrWriteFailed, addr, err)
	}
	if _, err := t.f.Write([]byte{value}); err != nil {
		return fmt.Errorf("%w: address 0x%02x: %v", ErrWriteFailed, addr, err)
	}
	return nil
}

// ReadRange reads length bytes starting at addr. Used for EC dumps.
func (t *File) ReadRange(addr uint32, length int) ([]byte, error) {
	buf := make([]byte, length)
	if err := t.readAt(addr, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

func (t *File) readAt(addr uint32, buf []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, err := t.f.Seek(int64(addr), io.SeekStart); err != nil {
		return fmt.Errorf("%w: seek 0x%02x: %v", ErrReadFailed, addr, err)
	}
	if _, err := io.ReadFull(t.f, buf); err != nil {
		return fmt.Errorf("%w: address 0x%02x: %v", ErrReadFailed, addr, err)
	}
	return nil
}

// Lazy is a read-write Transport that defers opening the register
// file until first use. Operations fail with ErrNotAvailable while
// the file is absent and start succeeding once it appears, so a
// long-running process can come up before the ec_sys module is loaded
// and recover without a restart once it is.
//
// Lazy is safe for concurrent use.
type Lazy struct {
	path string

	mu sync.Mutex
	f  *File
}

// NewLazy returns a lazy transport on the given register file path.
func NewLazy(path string) *Lazy {
	return &Lazy{path: path}
}

// Path returns the register file path.
func (t *Lazy) Path() string {
	return t.path
}

// Available reports whether the register file currently exists.
func (t *Lazy) Available() bool {
	_, err := os.Stat(t.path)
	return err == nil
}

// ReadByte implements Transport.
func (t *Lazy) ReadByte(addr uint32) (byte, error) {
	f, err := t.file()
	if err != nil {
		return 0, err
	}
	return f.ReadByte(addr)
}

// ReadWord implements Transport.
func (t *Lazy) ReadWord(addr uint32) (uint16, error) {
	f, err := t.file()
	if err != nil {
		return 0, err
	}
	return f.ReadWord(addr)
}

// WriteByte implements Transport.
func (t *Lazy) WriteByte(addr uint32, value byte) error {
	f, err := t.file()
	if err != nil {
		return err
	}
	return f.WriteByte(addr, value)
}

// ReadRange reads length bytes starting at addr.
func (t *Lazy) ReadRange(addr uint32, length int) ([]byte, error) {
	f, err := t.file()
	if err != nil {
		return nil, err
	}
	return f.ReadRange(addr, length)
}

// Close releases the cached file handle, if one was opened.
func (t *Lazy) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.f == nil {
		return nil
	}
	err := t.f.Close()
	t.f = nil
	return err
}

// file returns the cached handle, opening it on first use. A cached
// handle whose file has since vanished (module unloaded) is dropped
// and reopened on the next call.
func (t *Lazy) file() (*File, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.f != nil {
		if t.f.Available() {
			return t.f, nil
		}
		_ = t.f.Close()
		t.f = nil
	}
	f, err := Open(t.path)
	if err != nil {
		return nil, err
	}
	t.f = f
	return f, nil
}

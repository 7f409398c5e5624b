package state

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"tunnelctl/pkg/logging"
)

const (
	pidSuffix     = ".pid"
	networkSuffix = ".network"
	tempPrefix    = ".tmp-"

	dirMode  = 0o700
	fileMode = 0o600
)

// Store is a file-per-record tunnel state directory.
type Store struct {
	dir string
}

// NewStore returns a store rooted at dir. The directory is created on the
// first write, not here, so read-only commands never touch the filesystem.
func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

// Dir returns the state directory.
func (s *Store) Dir() string {
	return s.dir
}

func validateContext(name string) error {
	if name == "" || name == "." || name == ".." ||
		strings.HasPrefix(name, ".") ||
		strings.ContainsAny(name, `/\`) ||
		strings.ContainsRune(name, 0) {
		return fmt.Errorf("%w: %q", ErrInvalidContext, name)
	}
	return nil
}

func (s *Store) path(name, suffix string) (string, error) {
	if err := validateContext(name); err != nil {
		return "", err
	}
	return filepath.Join(s.dir, name+suffix), nil
}

// WriteTunnelRecord stores the pid of the tunnel for name, replacing any
// previous record.
func (s *Store) WriteTunnelRecord(name string, rec TunnelRecord) error {
	if rec.PID <= 0 {
		return fmt.Errorf("refusing to record non-positive pid %d for %s", rec.PID, name)
	}
	p, err := s.path(name, pidSuffix)
	if err != nil {
		return err
	}
	if err := s.writeAtomic(p, []byte(strconv.Itoa(rec.PID)+"\n")); err != nil {
		return fmt.Errorf("failed to write tunnel record for %s: %w", name, err)
	}
	logging.Debug("State", "Recorded tunnel pid %d for %s", rec.PID, name)
	return nil
}

// ReadTunnelRecord returns the record for name. The boolean is false when no
// record exists; that is not an error.
func (s *Store) ReadTunnelRecord(name string) (TunnelRecord, bool, error) {
	p, err := s.path(name, pidSuffix)
	if err != nil {
		return TunnelRecord{}, false, err
	}
	data, err := os.ReadFile(p)
	if errors.Is(err, fs.ErrNotExist) {
		return TunnelRecord{}, false, nil
	}
	if err != nil {
		return TunnelRecord{}, false, fmt.Errorf("failed to read tunnel record for %s: %w", name, err)
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return TunnelRecord{}, false, &ParseError{Context: name, Path: p, Err: err}
	}
	if pid <= 0 {
		return TunnelRecord{}, false, &ParseError{Context: name, Path: p, Err: fmt.Errorf("non-positive pid %d", pid)}
	}
	return TunnelRecord{PID: pid}, true, nil
}

// DeleteTunnelRecord removes the record for name. Missing records are fine.
func (s *Store) DeleteTunnelRecord(name string) error {
	return s.remove(name, pidSuffix)
}

// WriteNetworkMetadata stores the network requirements of name. Metadata
// without any requirement is not written: a missing file means direct access.
func (s *Store) WriteNetworkMetadata(name string, meta NetworkMetadata) error {
	p, err := s.path(name, networkSuffix)
	if err != nil {
		return err
	}
	if !meta.IsRequired() {
		return nil
	}
	data, err := yaml.Marshal(&meta)
	if err != nil {
		return fmt.Errorf("failed to encode network metadata for %s: %w", name, err)
	}
	if err := s.writeAtomic(p, data); err != nil {
		return fmt.Errorf("failed to write network metadata for %s: %w", name, err)
	}
	logging.Debug("State", "Saved network metadata for %s (type=%q vpn=%t)", name, meta.Type, meta.NeedsVPN)
	return nil
}

// networkFile is the on-disk shape. routing_command is accepted as an alias
// of sshuttle_command.
type networkFile struct {
	NetworkMetadata `yaml:",inline"`
	LegacyCommand   *string `yaml:"routing_command,omitempty"`
}

// ReadNetworkMetadata returns the metadata for name, or nil when there is
// none. Unparseable files yield a *ParseError.
func (s *Store) ReadNetworkMetadata(name string) (*NetworkMetadata, error) {
	p, err := s.path(name, networkSuffix)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read network metadata for %s: %w", name, err)
	}

	var f networkFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, &ParseError{Context: name, Path: p, Err: err}
	}
	meta := f.NetworkMetadata
	if meta.RoutingCommand == nil {
		meta.RoutingCommand = f.LegacyCommand
	}
	switch meta.Type {
	case NetworkNone, NetworkSshuttle, NetworkVPN:
	default:
		return nil, &ParseError{Context: name, Path: p, Err: fmt.Errorf("unknown network_type %q", meta.Type)}
	}
	return &meta, nil
}

// DeleteNetworkMetadata removes the metadata for name. Missing files are fine.
func (s *Store) DeleteNetworkMetadata(name string) error {
	return s.remove(name, networkSuffix)
}

// ListContexts returns every context that has a tunnel record, sorted.
func (s *Store) ListContexts() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if errors.Is(err, fs.ErrNotExist) {
		return []string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list state directory %s: %w", s.dir, err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		fn := e.Name()
		if strings.HasPrefix(fn, tempPrefix) || !strings.HasSuffix(fn, pidSuffix) {
			continue
		}
		name := strings.TrimSuffix(fn, pidSuffix)
		if validateContext(name) != nil {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (s *Store) remove(name, suffix string) error {
	p, err := s.path(name, suffix)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to remove %s: %w", p, err)
	}
	return nil
}

// writeAtomic writes data to a temp file next to target and renames it into
// place.
func (s *Store) writeAtomic(target string, data []byte) (err error) {
	if err := os.MkdirAll(s.dir, dirMode); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(s.dir, tempPrefix+filepath.Base(target)+"-*")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = os.Remove(tmp.Name())
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err = tmp.Chmod(fileMode); err != nil {
		_ = tmp.Close()
		return err
	}
	if err = tmp.Sync(); err != nil {
		_ = tmp.Close()
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), target)
}

package store

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"cellscript/internal/logging"
	"cellscript/internal/types"

	"github.com/hashicorp/go-multierror"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

// Document is the on-disk workbook format:
//
//	sheets:
//	  Sheet1:
//	    A1: "x = 5"
//	    B1: "x * 2"
//	names:
//	  prices: Sheet1!A1:A3
type Document struct {
	Sheets map[string]map[string]string `yaml:"sheets"`
	Names  map[string]string            `yaml:"names,omitempty"`
}

// NewDocument returns an empty document.
func NewDocument() *Document {
	return &Document{
		Sheets: make(map[string]map[string]string),
		Names:  make(map[string]string),
	}
}

// ParseDocument decodes and validates a workbook. Every invalid cell key or
// name reference is reported.
func ParseDocument(data []byte) (*Document, error) {
	doc := NewDocument()
	if err := yaml.Unmarshal(data, doc); err != nil {
		return nil, fmt.Errorf("failed to parse workbook: %w", err)
	}
	if doc.Sheets == nil {
		doc.Sheets = make(map[string]map[string]string)
	}
	if doc.Names == nil {
		doc.Names = make(map[string]string)
	}

	var result *multierror.Error
	for sheet, cells := range doc.Sheets {
		for key := range cells {
			if _, err := types.ParseAddress(key, sheet); err != nil {
				result = multierror.Append(result, fmt.Errorf("sheet %s: %w", sheet, err))
			}
		}
	}
	for name, ref := range doc.Names {
		if _, err := types.ParseRange(ref, ""); err != nil {
			result = multierror.Append(result, fmt.Errorf("name %s: %w", name, err))
		}
	}
	if err := result.ErrorOrNil(); err != nil {
		return nil, err
	}
	return doc, nil
}

// ReadDocument loads path from fs. A missing file is an empty workbook.
func ReadDocument(fs afero.Fs, path string) (*Document, error) {
	data, err := afero.ReadFile(fs, path)
	if os.IsNotExist(err) {
		return NewDocument(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read workbook %s: %w", path, err)
	}
	return ParseDocument(data)
}

// Marshal encodes the document.
func (d *Document) Marshal() ([]byte, error) {
	return yaml.Marshal(d)
}

// Cells returns every cell of the document keyed by address.
func (d *Document) Cells() map[types.Address]string {
	out := make(map[types.Address]string)
	for sheet, cells := range d.Sheets {
		for key, text := range cells {
			addr, err := types.ParseAddress(key, sheet)
			if err != nil {
				continue
			}
			addr.Container = sheet
			out[addr] = text
		}
	}
	return out
}

// SheetNames returns the sheet names sorted.
func (d *Document) SheetNames() []string {
	out := make([]string, 0, len(d.Sheets))
	for name := range d.Sheets {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// =============================================================================
// FILE STORE
// =============================================================================

// FileStore keeps a workbook document in memory and writes it back to a YAML
// file after every change.
type FileStore struct {
	mu   sync.RWMutex
	fs   afero.Fs
	path string
	doc  *Document
}

var (
	_ SourceStore = (*FileStore)(nil)
	_ NameStore   = (*FileStore)(nil)
)

// NewFileStore opens the workbook at path on fs.
func NewFileStore(fs afero.Fs, path string) (*FileStore, error) {
	doc, err := ReadDocument(fs, path)
	if err != nil {
		return nil, err
	}
	logging.Store("Opened workbook %s (%d sheets)", path, len(doc.Sheets))
	return &FileStore{fs: fs, path: path, doc: doc}, nil
}

func (f *FileStore) save() error {
	data, err := f.doc.Marshal()
	if err != nil {
		return fmt.Errorf("failed to encode workbook: %w", err)
	}
	if err := f.fs.MkdirAll(filepath.Dir(f.path), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	tmp := f.path + ".tmp"
	if err := afero.WriteFile(f.fs, tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	if err := f.fs.Rename(tmp, f.path); err != nil {
		return fmt.Errorf("failed to replace workbook: %w", err)
	}
	return nil
}

// cellKey finds the document key for addr, tolerating keys written in a
// different case or with $ anchors.
func (f *FileStore) cellKey(addr types.Address) (string, bool) {
	cells := f.doc.Sheets[addr.Container]
	if _, ok := cells[addr.Cell()]; ok {
		return addr.Cell(), true
	}
	for key := range cells {
		if a, err := types.ParseAddress(key, addr.Container); err == nil && a == addr {
			return key, true
		}
	}
	return "", false
}

func (f *FileStore) Read(addr types.Address) (string, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	key, ok := f.cellKey(addr)
	if !ok {
		return "", ErrNotFound
	}
	return f.doc.Sheets[addr.Container][key], nil
}

func (f *FileStore) Write(addr types.Address, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cells := f.doc.Sheets[addr.Container]
	if cells == nil {
		cells = make(map[string]string)
		f.doc.Sheets[addr.Container] = cells
	}
	key, ok := f.cellKey(addr)
	if !ok {
		key = addr.Cell()
	}
	cells[key] = text
	return f.save()
}

func (f *FileStore) Delete(addr types.Address) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	key, ok := f.cellKey(addr)
	if !ok {
		return nil
	}
	delete(f.doc.Sheets[addr.Container], key)
	if len(f.doc.Sheets[addr.Container]) == 0 {
		delete(f.doc.Sheets, addr.Container)
	}
	return f.save()
}

func (f *FileStore) Exists(addr types.Address) (bool, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	_, ok := f.cellKey(addr)
	return ok, nil
}

func (f *FileStore) List(container string) ([]types.Address, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	var out []types.Address
	for key := range f.doc.Sheets[container] {
		addr, err := types.ParseAddress(key, container)
		if err != nil {
			return nil, err
		}
		addr.Container = container
		out = append(out, addr)
	}
	sortAddresses(out)
	return out, nil
}

func (f *FileStore) Containers() ([]string, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.doc.SheetNames(), nil
}

func (f *FileStore) Names() (map[string]string, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make(map[string]string, len(f.doc.Names))
	for k, v := range f.doc.Names {
		out[k] = v
	}
	return out, nil
}

func (f *FileStore) DefineName(name, ref string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.doc.Names[name] = ref
	return f.save()
}

func (f *FileStore) RemoveName(name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.doc.Names[name]; !ok {
		return nil
	}
	delete(f.doc.Names, name)
	return f.save()
}

func (f *FileStore) Close() error { return nil }

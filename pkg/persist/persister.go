package persist

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/Sumatoshi-tech/treestore/pkg/forest"
	"github.com/Sumatoshi-tech/treestore/pkg/forest/serialize"
)

// ErrNoSnapshot is returned by Load when the snapshot file does not exist.
var ErrNoSnapshot = errors.New("no snapshot")

const snapshotPerm = 0o600

// Persister writes a forest to one snapshot file and reads it back. Internal
// ids are stored so a restored store answers to the same ids.
type Persister struct {
	path  string
	codec Codec
	limit int64
}

// Option configures a Persister.
type Option func(*Persister)

// WithCodec overrides the codec chosen from the path.
func WithCodec(codec Codec) Option {
	return func(p *Persister) {
		p.codec = codec
	}
}

// WithLimit caps the size of a snapshot read by Load, before and after
// decompression. Zero means no cap.
func WithLimit(limit int64) Option {
	return func(p *Persister) {
		p.limit = limit
	}
}

// NewPersister creates a persister for path.
func NewPersister(path string, opts ...Option) *Persister {
	persister := &Persister{path: filepath.Clean(path), codec: CodecFor(path)}

	for _, opt := range opts {
		opt(persister)
	}

	if compressed, ok := persister.codec.(CompressedCodec); ok && compressed.Limit == 0 {
		compressed.Limit = persister.limit
		persister.codec = compressed
	}

	return persister
}

// Path returns the snapshot file path.
func (p *Persister) Path() string {
	return p.path
}

// Save writes the forest to a temporary file next to the snapshot and
// renames it into place, so readers never see a partial snapshot.
func (p *Persister) Save(store *forest.Store) error {
	var buf bytes.Buffer

	err := p.codec.Encode(&buf, store.Export(serialize.Options{IncludeInternalIDs: true}))
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(p.path), filepath.Base(p.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create snapshot file: %w", err)
	}

	tmpPath := tmp.Name()

	_, err = tmp.Write(buf.Bytes())
	if err == nil {
		err = tmp.Chmod(snapshotPerm)
	}

	closeErr := tmp.Close()
	if err == nil {
		err = closeErr
	}

	if err != nil {
		return errors.Join(fmt.Errorf("write snapshot: %w", err), os.Remove(tmpPath))
	}

	err = os.Rename(tmpPath, p.path)
	if err != nil {
		return errors.Join(fmt.Errorf("install snapshot: %w", err), os.Remove(tmpPath))
	}

	return nil
}

// Load replaces the forest in store with the snapshot contents.
func (p *Persister) Load(store *forest.Store) error {
	file, err := os.Open(p.path)
	if errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%w: %s", ErrNoSnapshot, p.path)
	}

	if err != nil {
		return fmt.Errorf("open snapshot: %w", err)
	}

	defer file.Close()

	raw, err := serialize.ReadLimited(file, p.limit)
	if err != nil {
		return fmt.Errorf("snapshot %s: %w", p.path, err)
	}

	data, err := p.codec.Decode(bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("decode snapshot: %w", err)
	}

	err = store.Import(data)
	if err != nil {
		return fmt.Errorf("restore snapshot: %w", err)
	}

	return nil
}

package store

import (
	"errors"
	"fmt"
	"hash/fnv"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/natefinch/atomic"
	"github.com/ugorji/go/codec"

	"github.com/qumulus-db/qumulus/internal/node"
	"github.com/qumulus-db/qumulus/internal/path"
)

var mh codec.MsgpackHandle

// fileEnvelope is what actually lands on disk: the zone's own path
// alongside its tree, so FS.List can recover the path set without
// depending on the (lossy, truncated) filename scheme.
type fileEnvelope struct {
	Path []string
	Tree *node.NodeTree
}

// FS is a filesystem-backed Backend: one file per zone, named by
// zonefilename, written with a write-then-rename so a crash mid-write
// never corrupts an existing snapshot. Grounded on
// original_source/src/store/fs.rs, whose bincode + manual
// create-tmp-then-rename sequence is replaced here with
// github.com/ugorji/go/codec's msgpack encoding and
// github.com/natefinch/atomic's WriteFile.
type FS struct {
	dir string
}

// NewFS creates (if needed) dir and returns a Backend rooted there.
func NewFS(dir string) (*FS, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("store: create dir %q: %w", dir, err)
	}
	return &FS{dir: dir}, nil
}

func (f *FS) Read(p path.Path) (*node.NodeTree, error) {
	file, err := os.Open(filepath.Join(f.dir, zonefilename(p)))
	if errors.Is(err, os.ErrNotExist) {
		return node.NewNodeTree(p), nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", p.String(), err)
	}
	defer file.Close()

	buf, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("store: read %s: %w", p.String(), err)
	}

	var env fileEnvelope
	if err := codec.NewDecoderBytes(buf, &mh).Decode(&env); err != nil {
		return nil, fmt.Errorf("store: decode %s: %w", p.String(), err)
	}
	if got := path.New(env.Path); !got.Equal(p) {
		return nil, fmt.Errorf("store: file for %s holds zone %s", p.String(), got.String())
	}
	return env.Tree, nil
}

func (f *FS) Write(p path.Path, tree *node.NodeTree) error {
	var buf []byte
	env := fileEnvelope{Path: p.Segments(), Tree: tree}
	if err := codec.NewEncoderBytes(&buf, &mh).Encode(env); err != nil {
		return fmt.Errorf("store: encode %s: %w", p.String(), err)
	}

	target := filepath.Join(f.dir, zonefilename(p))
	if err := atomic.WriteFile(target, strings.NewReader(string(buf))); err != nil {
		return fmt.Errorf("store: write %s: %w", p.String(), err)
	}
	return nil
}

func (f *FS) List() ([]path.Path, error) {
	entries, err := os.ReadDir(f.dir)
	if err != nil {
		return nil, fmt.Errorf("store: read dir %q: %w", f.dir, err)
	}

	paths := make([]path.Path, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || strings.HasSuffix(entry.Name(), ".tmp") {
			continue
		}

		buf, err := os.ReadFile(filepath.Join(f.dir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("store: read %s: %w", entry.Name(), err)
		}

		var env fileEnvelope
		if err := codec.NewDecoderBytes(buf, &mh).Decode(&env); err != nil {
			return nil, fmt.Errorf("store: decode %s: %w", entry.Name(), err)
		}
		paths = append(paths, path.New(env.Path))
	}
	return paths, nil
}

// zonefilename derives a filesystem-safe name for a zone's path:
// a truncated, sanitized form of the path joined by "." followed by a
// hash of the full path to disambiguate truncation/sanitization
// collisions. Grounded on original_source/src/store/fs.rs's
// zonefilename, which did the same with SipHash in place of the fnv
// hash used here.
func zonefilename(p path.Path) string {
	full := strings.Join(p.Segments(), ".")

	name := "r"
	if p.Len() > 0 {
		name += full
	}
	if len(name) > 80 {
		name = name[:80]
	}

	var sanitized strings.Builder
	for _, r := range name {
		switch {
		case r == '#',
			r >= '0' && r <= '9',
			r >= 'A' && r <= 'Z',
			r >= 'a' && r <= 'z':
			sanitized.WriteRune(r)
		default:
			sanitized.WriteRune('_')
		}
	}

	h := fnv.New64a()
	h.Write([]byte(full))

	return fmt.Sprintf("%s_%x", sanitized.String(), h.Sum64())
}

var _ Backend = (*FS)(nil)

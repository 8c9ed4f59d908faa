package asset

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/chazu/amalgraph/entity"
	"github.com/chazu/amalgraph/graph"
	"github.com/chazu/amalgraph/intern"
	"github.com/chazu/amalgraph/opcode"
)

// metadata is the sidecar every stored entity carries.
type metadata struct {
	RandSeed string
	Version  string
}

func storeMetadata(path string, md metadata, pool *intern.Pool) error {
	m := graph.NewManager(pool)
	root := m.Alloc(opcode.Associative)
	if root == nil {
		return fmt.Errorf("asset: node budget exhausted")
	}
	root.Node.Mapped = make(map[uint32]*graph.Node)
	put := func(key, value string) error {
		v := m.AllocWithReferenceHandoff(opcode.String, pool.Intern(value))
		if v == nil {
			return fmt.Errorf("asset: node budget exhausted")
		}
		root.Node.Mapped[pool.Intern(key)] = v.Node
		return nil
	}
	if err := put("rand_seed", md.RandSeed); err != nil {
		return err
	}
	if err := put("version", md.Version); err != nil {
		return err
	}
	return StoreRoot(path, root.Node, pool)
}

func loadMetadata(path string, pool *intern.Pool) (metadata, bool) {
	m := graph.NewManager(pool)
	root, status := LoadRoot(path, m, pool)
	if !status.Loaded || root.Node == nil || root.Node.Mapped == nil {
		return metadata{}, false
	}
	var md metadata
	get := func(key string) string {
		id, ok := pool.Lookup(key)
		if !ok {
			return ""
		}
		v := root.Node.Mapped[id]
		if v == nil || v.Kind != opcode.String {
			return ""
		}
		return pool.Name(v.Str)
	}
	md.RandSeed = get("rand_seed")
	md.Version = get("version")
	return md, true
}

// childDir returns the directory holding an entity file's children:
// base.ext has children in base/.
func childDir(file string) string {
	return strings.TrimSuffix(file, filepath.Ext(file))
}

func metadataPath(file string) string {
	return strings.TrimSuffix(file, filepath.Ext(file)) + ExtMetadata
}

// StoreEntity persists e at file: root in the named format, metadata in
// a sibling .metadata file, children recursively in a sibling directory
// keyed by escaped ID.
func StoreEntity(file string, e *entity.Entity) error {
	if err := StoreRoot(file, e.Root.Node, e.Pool); err != nil {
		return err
	}
	md := metadata{RandSeed: e.Random.Seed(), Version: EngineVersion().String()}
	if err := storeMetadata(metadataPath(file), md, e.Pool); err != nil {
		return err
	}
	names := e.ChildNames()
	if len(names) == 0 {
		return nil
	}
	dir := childDir(file)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	ext := filepath.Ext(file)
	for _, name := range names {
		c, ok := e.Child(name)
		if !ok {
			continue
		}
		if err := StoreEntity(filepath.Join(dir, escapeFilename(name)+ext), c); err != nil {
			return err
		}
	}
	return nil
}

// LoadEntity reads the entity stored at file, including metadata and the
// recursive child directory. The version gate runs before any node is
// allocated, so a rejected file leaves no partial entity behind.
func LoadEntity(file, name string, pool *intern.Pool) (*entity.Entity, Status) {
	md, hasMD := loadMetadata(metadataPath(file), pool)
	if hasMD && md.Version != "" {
		loaded, err := ParseVersion(md.Version)
		if err != nil {
			return nil, failed("%v", err)
		}
		if err := CheckLoadableVersion(loaded); err != nil {
			return nil, Status{Message: err.Error(), Version: md.Version}
		}
	}

	e := entity.New(name, pool, md.RandSeed)
	root, status := LoadRoot(file, e.Manager, pool)
	if !status.Loaded {
		return nil, status
	}
	e.SetRoot(root)

	dir := childDir(file)
	ext := filepath.Ext(file)
	entries, err := os.ReadDir(dir)
	if err == nil {
		for _, entry := range entries {
			if entry.IsDir() || filepath.Ext(entry.Name()) != ext {
				continue
			}
			childID, err := unescapeFilename(strings.TrimSuffix(entry.Name(), ext))
			if err != nil {
				return nil, failed("%v", err)
			}
			c, childStatus := LoadEntity(filepath.Join(dir, entry.Name()), childID, pool)
			if !childStatus.Loaded {
				return nil, childStatus
			}
			e.AttachChild(childID, c)
		}
	}
	return e, Status{Loaded: true, Version: md.Version}
}

/*
Package classpath indexes class files of *.jar and *.zip archives found in a
directory. The index is only used to report classes of intercepted streams
that the archives don't provide, nothing is ever loaded or instantiated.
*/
package classpath

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/klauspost/compress/zip"
	"go.uber.org/zap"
)

// platformPrefixes are packages of the Java runtime itself.
var platformPrefixes = []string{"java.", "javax.", "jdk.", "sun.", "com.sun."}

// Registry is a reloadable class index. It's safe for concurrent use.
type Registry struct {
	dir string
	log *zap.Logger

	lock sync.RWMutex
	// classes maps class names to archive file names.
	classes  map[string]string
	archives int
}

// New creates an empty registry for the given directory, Load fills it.
func New(dir string, log *zap.Logger) *Registry {
	if log == nil {
		log = zap.NewNop()
	}
	return &Registry{dir: dir, log: log, classes: make(map[string]string)}
}

// Load indexes archives of the directory replacing the current index. Broken
// archives are skipped with a warning. An empty directory setting gives an
// empty index.
func (r *Registry) Load() error {
	var (
		classes  = make(map[string]string)
		archives int
	)
	if r.dir != "" {
		entries, err := os.ReadDir(r.dir)
		if err != nil {
			return fmt.Errorf("can't read class path: %w", err)
		}
		for _, e := range entries {
			ext := strings.ToLower(filepath.Ext(e.Name()))
			if e.IsDir() || (ext != ".jar" && ext != ".zip") {
				continue
			}
			if err := indexArchive(filepath.Join(r.dir, e.Name()), classes); err != nil {
				r.log.Warn("skipping archive", zap.String("file", e.Name()), zap.Error(err))
				continue
			}
			archives++
		}
	}
	r.lock.Lock()
	r.classes = classes
	r.archives = archives
	r.lock.Unlock()
	r.log.Info("class path loaded",
		zap.String("dir", r.dir),
		zap.Int("archives", archives),
		zap.Int("classes", len(classes)))
	return nil
}

func indexArchive(path string, classes map[string]string) error {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return err
	}
	defer zr.Close()
	for _, f := range zr.File {
		name, ok := strings.CutSuffix(f.Name, ".class")
		if !ok || strings.HasPrefix(name, "META-INF/") || strings.HasSuffix(name, "module-info") {
			continue
		}
		name = strings.ReplaceAll(name, "/", ".")
		if _, dup := classes[name]; !dup {
			classes[name] = filepath.Base(path)
		}
	}
	return nil
}

// Close drops the index.
func (r *Registry) Close() error {
	r.lock.Lock()
	defer r.lock.Unlock()
	if r.classes == nil {
		return errors.New("already closed")
	}
	r.classes = nil
	r.archives = 0
	return nil
}

// Len returns the number of indexed classes.
func (r *Registry) Len() int {
	r.lock.RLock()
	defer r.lock.RUnlock()
	return len(r.classes)
}

// Archives returns the number of indexed archives.
func (r *Registry) Archives() int {
	r.lock.RLock()
	defer r.lock.RUnlock()
	return r.archives
}

// Lookup returns the archive providing the class. Array class names are
// resolved to their element class, arrays of primitives are always found
// with an empty archive name.
func (r *Registry) Lookup(name string) (string, bool) {
	elem, primitive := ElementClass(name)
	if primitive {
		return "", true
	}
	r.lock.RLock()
	defer r.lock.RUnlock()
	archive, ok := r.classes[elem]
	return archive, ok
}

// Known checks whether the class is provided by some archive.
func (r *Registry) Known(name string) bool {
	_, ok := r.Lookup(name)
	return ok
}

// Classes returns sorted indexed class names.
func (r *Registry) Classes() []string {
	r.lock.RLock()
	res := make([]string, 0, len(r.classes))
	for name := range r.classes {
		res = append(res, name)
	}
	r.lock.RUnlock()
	slices.Sort(res)
	return res
}

// ElementClass strips array dimensions from a class name like "[[Lcom.x.Y;"
// and reports whether the element type is a primitive one.
func ElementClass(name string) (string, bool) {
	elem := strings.TrimLeft(name, "[")
	if len(elem) == len(name) {
		return name, false
	}
	if strings.HasPrefix(elem, "L") && strings.HasSuffix(elem, ";") {
		return elem[1 : len(elem)-1], false
	}
	return elem, true
}

// IsPlatform checks whether the class belongs to the Java runtime.
func IsPlatform(name string) bool {
	elem, primitive := ElementClass(name)
	if primitive {
		return true
	}
	for _, p := range platformPrefixes {
		if strings.HasPrefix(elem, p) {
			return true
		}
	}
	return false
}

package csvio

import (
	"encoding/csv"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Output is one file to write: a CSV table, or raw Data when set.
type Output struct {
	Path   string
	Header []string
	Rows   [][]string
	Data   []byte
}

// Batch writes a set of outputs so that either all of them replace their
// targets or none do.
type Batch struct {
	outputs []Output
}

// Add queues an output.
func (b *Batch) Add(o Output) {
	b.outputs = append(b.outputs, o)
}

// Paths returns the queued target paths in order.
func (b *Batch) Paths() []string {
	paths := make([]string, len(b.outputs))
	for i, o := range b.outputs {
		paths[i] = o.Path
	}
	return paths
}

// Commit writes every output to a temp file next to its target, then
// renames them into place only after all writes succeeded. On failure the
// temp files are removed and no target is touched.
func (b *Batch) Commit() error {
	temps := make([]string, 0, len(b.outputs))
	cleanup := func() {
		for _, tmp := range temps {
			_ = os.Remove(tmp)
		}
	}

	for _, o := range b.outputs {
		tmp, err := writeTemp(o)
		if tmp != "" {
			temps = append(temps, tmp)
		}
		if err != nil {
			cleanup()
			return err
		}
	}

	for i, o := range b.outputs {
		if err := os.Rename(temps[i], o.Path); err != nil {
			cleanup()
			return eris.Wrapf(err, "csvio: rename into %s", o.Path)
		}
		zap.L().Debug("csvio: wrote output", zap.String("path", o.Path), zap.Int("rows", len(o.Rows)))
	}
	return nil
}

func writeTemp(o Output) (string, error) {
	dir := filepath.Dir(o.Path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", eris.Wrapf(err, "csvio: create dir %s", dir)
	}
	f, err := os.CreateTemp(dir, "."+filepath.Base(o.Path)+".*.tmp")
	if err != nil {
		return "", eris.Wrapf(err, "csvio: create temp for %s", o.Path)
	}
	tmp := f.Name()

	if o.Data != nil {
		if _, err := f.Write(o.Data); err != nil {
			_ = f.Close()
			return tmp, eris.Wrapf(err, "csvio: write %s", o.Path)
		}
		return tmp, syncClose(f, o.Path)
	}

	w := csv.NewWriter(f)
	if err := w.Write(o.Header); err != nil {
		_ = f.Close()
		return tmp, eris.Wrapf(err, "csvio: write header %s", o.Path)
	}
	if err := w.WriteAll(o.Rows); err != nil {
		_ = f.Close()
		return tmp, eris.Wrapf(err, "csvio: write rows %s", o.Path)
	}
	return tmp, syncClose(f, o.Path)
}

func syncClose(f *os.File, path string) error {
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return eris.Wrapf(err, "csvio: sync %s", path)
	}
	return eris.Wrapf(f.Close(), "csvio: close %s", path)
}

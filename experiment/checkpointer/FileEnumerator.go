package checkpointer

import (
	"fmt"
	"path/filepath"
)

// fileEnumerator enumerates filenames
type fileEnumerator struct {
	i         int
	dir       string
	name      string
	extension string
}

// filename returns the name of the next consecutive enumerated file
func (f *fileEnumerator) filename() string {
	f.i++
	return filepath.Join(f.dir, fmt.Sprintf("%v%v%v", f.name, f.i,
		f.extension))
}

// FilenameEnumerator returns a function which will return filenames
// in dir with a counter integer suffix. Each time the returned function
// is called, the filename counter suffix will be one higher than on the
// previous call, starting at start+1. The extension parameter determines
// the file extension.
func FilenameEnumerator(start int, dir, filename,
	extension string) func() string {
	enum := fileEnumerator{i: start, dir: dir, name: filename,
		extension: extension}

	return enum.filename
}

// Package artifact holds exported files and the boundary they are saved
// through.
package artifact

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/reconquest/karma-go"
	"github.com/reconquest/pkg/log"
)

// Artifact is one exported file. Its data is released once it has been
// handed to a Saver.
type Artifact struct {
	Name     string
	Filename string
	MIMEType string
	Data     []byte
	Width    int
	Height   int
	Checksum string
}

// New builds an artifact named name with the given extension. An empty
// name falls back to the checksum of the data.
func New(name, extension, mimeType string, data []byte, width, height int) (*Artifact, error) {
	checksum, err := GetChecksum(bytes.NewReader(data))
	if err != nil {
		return nil, karma.Format(err, "unable to get checksum for artifact: %q", name)
	}

	if name == "" {
		name = checksum
	}

	return &Artifact{
		Name:     name,
		Filename: Filename(name, extension),
		MIMEType: mimeType,
		Data:     data,
		Width:    width,
		Height:   height,
		Checksum: checksum,
	}, nil
}

// Filename makes a flat file name out of a diagram name.
func Filename(name, extension string) string {
	name = strings.ReplaceAll(name, "/", "_")
	name = strings.ReplaceAll(name, string(filepath.Separator), "_")

	return name + "." + extension
}

// Release drops the data of the artifact.
func (artifact *Artifact) Release() {
	artifact.Data = nil
}

func GetChecksum(reader io.Reader) (string, error) {
	hash := sha256.New()
	if _, err := io.Copy(hash, reader); err != nil {
		return "", err
	}

	return hex.EncodeToString(hash.Sum(nil)), nil
}

// Saver is the file-save boundary.
type Saver interface {
	Save(artifact *Artifact) (string, error)
}

// DirSaver writes artifacts into a directory. A file is replaced
// atomically, and not touched at all when its content is unchanged.
type DirSaver struct {
	Dir string
}

func NewDirSaver(dir string) *DirSaver {
	return &DirSaver{Dir: dir}
}

func (saver *DirSaver) Save(artifact *Artifact) (string, error) {
	target := filepath.Join(saver.Dir, artifact.Filename)

	existing, err := checksumOf(target)
	if err != nil {
		return "", err
	}

	switch existing {
	case artifact.Checksum:
		log.Infof(nil, "keeping unmodified artifact: %q", target)
		return target, nil
	case "":
		log.Infof(nil, "creating artifact: %q", target)
	default:
		log.Infof(nil, "updating artifact: %q", target)
	}

	err = os.MkdirAll(saver.Dir, 0o755)
	if err != nil {
		return "", karma.Format(err, "unable to create output directory: %q", saver.Dir)
	}

	file, err := os.CreateTemp(saver.Dir, "."+artifact.Filename+".*")
	if err != nil {
		return "", karma.Format(err, "unable to create temporary file for %q", target)
	}

	temporary := file.Name()
	defer func() {
		_ = os.Remove(temporary)
	}()

	_, err = file.Write(artifact.Data)
	if err != nil {
		_ = file.Close()
		return "", karma.Format(err, "unable to write %q", temporary)
	}

	err = file.Close()
	if err != nil {
		return "", karma.Format(err, "unable to close %q", temporary)
	}

	err = os.Chmod(temporary, 0o644)
	if err != nil {
		return "", karma.Format(err, "unable to chmod %q", temporary)
	}

	err = os.Rename(temporary, target)
	if err != nil {
		return "", karma.Format(err, "unable to move artifact into %q", target)
	}

	return target, nil
}

func checksumOf(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}

		return "", karma.Format(err, "unable to open file: %q", path)
	}
	defer func() {
		_ = file.Close()
	}()

	checksum, err := GetChecksum(file)
	if err != nil {
		return "", karma.Format(err, "unable to read file: %q", path)
	}

	return checksum, nil
}

// SaveAll saves every artifact and releases it, stopping at the first
// failure.
func SaveAll(saver Saver, artifacts []*Artifact) ([]string, error) {
	paths := []string{}

	for _, artifact := range artifacts {
		path, err := saver.Save(artifact)
		artifact.Release()

		if err != nil {
			return paths, karma.Format(err, "unable to save artifact %q", artifact.Filename)
		}

		paths = append(paths, path)
	}

	return paths, nil
}

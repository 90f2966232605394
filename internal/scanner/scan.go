package scanner

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/clarad/clarad/internal/model"
)

// Roots is the set of directories scanned for *.gguf files, in priority
// order for Source tagging. A root may be empty if the caller doesn't
// have one (e.g. no custom directory configured).
type Roots struct {
	User    string
	Bundled string
	Custom  string
}

// Scanner walks Roots looking for *.gguf files and turns them into
// classified, uniquely-named model.ModelFile entries (component D).
type Scanner struct {
	log *logrus.Entry
}

func NewScanner(log *logrus.Entry) *Scanner {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Scanner{log: log}
}

// Scan enumerates every *.gguf file under the configured roots (each
// walked non-recursively at one level, matching the teacher's
// collector enumeration pattern), classifies it, and assigns globally
// unique display names across the whole batch.
func (s *Scanner) Scan(roots Roots) ([]model.ModelFile, error) {
	var files []model.ModelFile

	for _, rd := range []struct {
		dir    string
		source model.Source
	}{
		{roots.User, model.SourceUser},
		{roots.Bundled, model.SourceBundled},
		{roots.Custom, model.SourceCustom},
	} {
		if rd.dir == "" {
			continue
		}
		found, err := scanDir(rd.dir, rd.source)
		if err != nil {
			s.log.WithError(err).WithField("dir", rd.dir).Warn("scanner: failed to read directory")
			continue
		}
		files = append(files, found...)
	}

	inputs := make([]NameInput, len(files))
	for i, f := range files {
		inputs[i] = NameInput{Filename: f.Filename, SizeBytes: f.SizeBytes}
	}
	names := Namer{}.AssignNames(inputs)
	for i := range files {
		files[i].DisplayName = names[i]
	}

	return files, nil
}

func scanDir(dir string, source model.Source) ([]model.ModelFile, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var out []model.ModelFile
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".gguf") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		abs := filepath.Join(dir, e.Name())
		out = append(out, model.ModelFile{
			AbsolutePath:   abs,
			Filename:       e.Name(),
			SizeBytes:      info.Size(),
			Source:         source,
			LastModified:   info.ModTime(),
			Classification: Classify(e.Name()),
		})
	}
	return out, nil
}

package registry

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/paveg/kwdata/internal/errors"
	"gopkg.in/yaml.v3"
)

// Manifest file suffixes
var manifestSuffixes = []string{".kw.yaml", ".kw.yml"}

// Manifest declares keyword signatures in YAML:
//
//	keywords:
//	  - name: login
//	    doc: Logs a user in.
//	    mandatory: [USERNAME, PASSWORD]
//	    optional:
//	      - name: REMEMBER
//	        default: false
type Manifest struct {
	Keywords []KeywordSpec `yaml:"keywords"`
}

// KeywordSpec is one keyword entry of a manifest
type KeywordSpec struct {
	Name      string         `yaml:"name"`
	Doc       string         `yaml:"doc"`
	Mandatory []string       `yaml:"mandatory"`
	Optional  []OptionalSpec `yaml:"optional"`
}

// OptionalSpec is an optional parameter with its default
type OptionalSpec struct {
	Name    string `yaml:"name"`
	Default any    `yaml:"default"`
}

// Keyword converts the entry into a keyword without handler
func (k KeywordSpec) Keyword() Keyword {
	params := make([]Param, 0, len(k.Mandatory)+len(k.Optional))
	for _, name := range k.Mandatory {
		params = append(params, Mandatory(name))
	}
	for _, opt := range k.Optional {
		params = append(params, Optional(opt.Name, opt.Default))
	}
	return Keyword{Name: k.Name, Doc: strings.TrimSpace(k.Doc), Params: params}
}

// LoadManifest reads a manifest file
func LoadManifest(path string) (Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Manifest{}, fmt.Errorf("reading manifest: %w", err)
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return Manifest{}, errors.NewParseError("LoadManifest",
			fmt.Sprintf("the manifest %s could not be parsed", path), err)
	}
	return m, nil
}

// IsManifest reports whether path names a manifest file
func IsManifest(path string) bool {
	name := strings.ToLower(filepath.Base(path))
	for _, suffix := range manifestSuffixes {
		if strings.HasSuffix(name, suffix) {
			return true
		}
	}
	return false
}

// FindManifests returns the manifest files under the given locations. A
// location may be a directory, searched recursively, or a manifest file.
func FindManifests(locations []string) ([]string, error) {
	var files []string
	for _, location := range locations {
		err := filepath.WalkDir(location, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() && IsManifest(path) {
				files = append(files, path)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("searching %s for keyword manifests: %w", location, err)
		}
	}
	return files, nil
}

// Discover registers the keywords declared in every manifest under the
// given locations and returns how many were registered.
func (r *Registry) Discover(locations []string) (int, error) {
	files, err := FindManifests(locations)
	if err != nil {
		return 0, err
	}

	count := 0
	for _, file := range files {
		m, err := LoadManifest(file)
		if err != nil {
			return count, err
		}
		for _, spec := range m.Keywords {
			if err := r.Register(spec.Keyword()); err != nil {
				return count, fmt.Errorf("registering keywords of %s: %w", file, err)
			}
			count++
		}
		r.logger.Debug().Str("manifest", file).Int("keywords", len(m.Keywords)).Msg("loaded keyword manifest")
	}
	return count, nil
}

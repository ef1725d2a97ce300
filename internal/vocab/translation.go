package vocab

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// TranslationFile holds curator-maintained term translations that are not
// (yet) in the database. Keys are raw terms, values are target keys.
type TranslationFile struct {
	Organism         map[string]int64 `yaml:"organism"`
	OrganismToStrain map[string]int64 `yaml:"organism_to_strain"`
}

// LoadTranslations reads a YAML translation file.
func LoadTranslations(path string) (*TranslationFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "vocab: read translations %s", path)
	}
	var tf TranslationFile
	if err := yaml.Unmarshal(data, &tf); err != nil {
		return nil, eris.Wrapf(err, "vocab: parse translations %s", path)
	}
	return &tf, nil
}

// Extender accepts additional terms for a domain.
type Extender interface {
	Extend(domain Domain, terms map[string]int64)
}

// Apply merges the file's translations into r.
func (tf *TranslationFile) Apply(r Extender) {
	if len(tf.Organism) > 0 {
		r.Extend(Organism, tf.Organism)
	}
	if len(tf.OrganismToStrain) > 0 {
		r.Extend(OrganismToStrain, tf.OrganismToStrain)
	}
}

// Extend implements Extender.
func (m *MapResolver) Extend(domain Domain, terms map[string]int64) {
	m.Merge(domain, terms)
}

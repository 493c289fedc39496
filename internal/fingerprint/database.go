package fingerprint

import (
	"bytes"
	_ "embed"
	"encoding/xml"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"github.com/InfraSecConsult/dhcp-osfp-go/lib/model"
)

//go:embed data/dhcp.xml
var embeddedSignatures []byte

// BuiltinSource names the embedded signature set in errors and logs.
const BuiltinSource = "builtin:dhcp.xml"

// streamSource labels databases parsed from a reader or byte slice.
const streamSource = "<stream>"

// Database is an immutable set of OS fingerprints. It is safe for
// concurrent use once loaded.
type Database struct {
	source       string
	fingerprints []*OSFingerprint
}

// Diagnostic reports a test attribute that is accepted but never evaluated.
type Diagnostic struct {
	Fingerprint string
	Test        int
	Attribute   string
}

// Source returns where the database was loaded from.
func (db *Database) Source() string {
	return db.source
}

// Len returns the number of fingerprints.
func (db *Database) Len() int {
	return len(db.fingerprints)
}

// Fingerprints returns the fingerprints in load order. The returned slice is
// a copy; the fingerprints themselves must not be modified.
func (db *Database) Fingerprints() []*OSFingerprint {
	return append([]*OSFingerprint(nil), db.fingerprints...)
}

// Diagnostics lists every unrecognized test attribute.
func (db *Database) Diagnostics() []Diagnostic {
	var out []Diagnostic
	for _, f := range db.fingerprints {
		for i, t := range f.Tests {
			for _, name := range t.Unrecognized() {
				out = append(out, Diagnostic{Fingerprint: f.Label(), Test: i, Attribute: name})
			}
		}
	}
	return out
}

// UnrecognizedAttributes returns the distinct unrecognized attribute names.
func (db *Database) UnrecognizedAttributes() *model.Set {
	names := model.NewSet()
	for _, d := range db.Diagnostics() {
		names.Add(d.Attribute)
	}
	return names
}

// LoadDatabase reads a signature file. Files ending in .yaml or .yml are
// parsed as YAML, everything else as Satori XML.
func LoadDatabase(path string) (*Database, error) {
	content, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, newLoadError(path, ErrSignaturesNotFound, "%v", err)
	}
	if err != nil {
		return nil, newLoadError(path, ErrSignaturesMalformed, "read: %v", err)
	}

	var db *Database
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		db, err = ParseYAML(content)
	default:
		db, err = ParseXML(bytes.NewReader(content))
	}
	if err != nil {
		return nil, withSource(err, path)
	}
	db.source = path
	logLoaded(db)
	return db, nil
}

// LoadBuiltin parses the signature set embedded in the binary.
func LoadBuiltin() (*Database, error) {
	db, err := ParseXML(bytes.NewReader(embeddedSignatures))
	if err != nil {
		return nil, withSource(err, BuiltinSource)
	}
	db.source = BuiltinSource
	logLoaded(db)
	return db, nil
}

func withSource(err error, source string) error {
	var loadErr *LoadError
	if errors.As(err, &loadErr) {
		loadErr.Source = source
	}
	return err
}

func logLoaded(db *Database) {
	log.Debug().
		Str("source", db.source).
		Int("fingerprints", db.Len()).
		Msg("Loaded DHCP signatures")
	for _, d := range db.Diagnostics() {
		log.Debug().
			Str("fingerprint", d.Fingerprint).
			Int("test", d.Test).
			Str("attribute", d.Attribute).
			Msg("Ignoring unrecognized test attribute")
	}
}

// Typical data: <test weight="4" matchtype="exact" dhcptype="Inform" dhcpoptions="53,61,12,60,55"/>
type xmlSignatureFile struct {
	Fingerprints []xmlFingerprint `xml:"fingerprints>fingerprint"`
}

type xmlFingerprint struct {
	OSClass string    `xml:"os_class,attr"`
	OSName  string    `xml:"os_name,attr"`
	Name    string    `xml:"name,attr"`
	Tests   []xmlTest `xml:"dhcp_tests>test"`
}

type xmlTest struct {
	Attrs []xml.Attr `xml:",any,attr"`
}

// ParseXML parses a Satori DHCP signature document.
func ParseXML(r io.Reader) (*Database, error) {
	var doc xmlSignatureFile
	if err := xml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, newLoadError(streamSource, ErrSignaturesMalformed, "decode XML: %v", err)
	}

	db := &Database{source: streamSource}
	for i, xf := range doc.Fingerprints {
		fp := newFingerprint(i, xf.OSName, xf.Name, xf.OSClass)
		for j, xt := range xf.Tests {
			attrs := make([]Attribute, 0, len(xt.Attrs))
			for _, a := range xt.Attrs {
				attrs = append(attrs, Attribute{Name: a.Name.Local, Value: a.Value})
			}
			rule, err := buildRule(attrs)
			if err != nil {
				return nil, newLoadError(streamSource, err, "fingerprint %q test %d", fp.Label(), j)
			}
			fp.Tests = append(fp.Tests, rule)
		}
		db.fingerprints = append(db.fingerprints, fp)
	}
	return db, nil
}

type yamlSignatureFile struct {
	Fingerprints []yamlFingerprint `yaml:"fingerprints"`
}

type yamlFingerprint struct {
	OSClass string      `yaml:"os_class"`
	OSName  string      `yaml:"os_name"`
	Name    string      `yaml:"name"`
	Tests   []yaml.Node `yaml:"dhcp_tests"`
}

// ParseYAML parses the YAML form of a signature database. Each test is a
// flat mapping whose keys are kept in document order.
func ParseYAML(data []byte) (*Database, error) {
	var doc yamlSignatureFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, newLoadError(streamSource, ErrSignaturesMalformed, "decode YAML: %v", err)
	}

	db := &Database{source: streamSource}
	for i, yf := range doc.Fingerprints {
		fp := newFingerprint(i, yf.OSName, yf.Name, yf.OSClass)
		for j, node := range yf.Tests {
			attrs, err := yamlAttributes(&node)
			if err != nil {
				return nil, newLoadError(streamSource, ErrSignaturesMalformed, "fingerprint %q test %d: %v", fp.Label(), j, err)
			}
			rule, err := buildRule(attrs)
			if err != nil {
				return nil, newLoadError(streamSource, err, "fingerprint %q test %d", fp.Label(), j)
			}
			fp.Tests = append(fp.Tests, rule)
		}
		db.fingerprints = append(db.fingerprints, fp)
	}
	return db, nil
}

func yamlAttributes(node *yaml.Node) ([]Attribute, error) {
	if node.Kind != yaml.MappingNode {
		return nil, errors.New("test must be a mapping of attributes")
	}
	attrs := make([]Attribute, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		key, value := node.Content[i], node.Content[i+1]
		if value.Kind != yaml.ScalarNode {
			return nil, errors.New("attribute " + key.Value + " must be a scalar")
		}
		attrs = append(attrs, Attribute{Name: key.Value, Value: value.Value})
	}
	return attrs, nil
}

// newFingerprint falls back to the generic name attribute when os_name is empty.
func newFingerprint(index int, osName, name, osClass string) *OSFingerprint {
	if osName == "" {
		osName = name
	}
	return &OSFingerprint{OSName: osName, OSClass: osClass, index: index}
}

// buildRule parses the weight and rejects duplicate attribute names. Other
// values are not validated until match time.
func buildRule(attrs []Attribute) (TestRule, error) {
	weight := 0
	seen := make(map[string]struct{}, len(attrs))
	for _, a := range attrs {
		if _, dup := seen[a.Name]; dup {
			return TestRule{}, ErrSignaturesMalformed
		}
		seen[a.Name] = struct{}{}

		if a.Name != AttrWeight {
			continue
		}
		w, err := strconv.Atoi(strings.TrimSpace(a.Value))
		if err != nil || w < 0 {
			return TestRule{}, ErrBadWeight
		}
		weight = w
	}
	return NewTestRule(weight, attrs), nil
}

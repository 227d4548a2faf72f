package divination

import (
	_ "embed"
	"fmt"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed data/horoscopes.yaml
var horoscopeYAML []byte

// Reading is the four-horizon horoscope text for a sign.
type Reading struct {
	Daily   string `yaml:"daily" json:"daily"`
	Weekly  string `yaml:"weekly" json:"weekly"`
	Monthly string `yaml:"monthly" json:"monthly"`
	Yearly  string `yaml:"yearly" json:"yearly"`
}

type horoscopeCatalog struct {
	Default Reading          `yaml:"default"`
	Signs   map[Sign]Reading `yaml:"signs"`
}

var (
	catalogOnce sync.Once
	catalog     horoscopeCatalog
	catalogErr  error
)

func loadCatalog() (horoscopeCatalog, error) {
	catalogOnce.Do(func() {
		catalog, catalogErr = parseCatalog(horoscopeYAML)
	})
	return catalog, catalogErr
}

func parseCatalog(data []byte) (horoscopeCatalog, error) {
	var c horoscopeCatalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return horoscopeCatalog{}, fmt.Errorf("parse horoscope catalog: %w", err)
	}
	if !c.Default.complete() {
		return horoscopeCatalog{}, fmt.Errorf("horoscope catalog: default reading is incomplete")
	}
	for _, s := range Signs() {
		if r, ok := c.Signs[s]; !ok || !r.complete() {
			return horoscopeCatalog{}, fmt.Errorf("horoscope catalog: %s is missing or incomplete", s)
		}
	}
	return c, nil
}

func (r Reading) complete() bool {
	return r.Daily != "" && r.Weekly != "" && r.Monthly != "" && r.Yearly != ""
}

// ValidateHoroscopes checks the embedded catalog once, so a broken build
// fails at startup instead of serving empty readings.
func ValidateHoroscopes() error {
	_, err := loadCatalog()
	return err
}

// Horoscope returns the texts for sign, or the default reading when the sign
// has no entry. An empty sign is allowed.
func Horoscope(sign Sign) Reading {
	c, err := loadCatalog()
	if err != nil {
		return Reading{}
	}
	if r, ok := c.Signs[sign]; ok {
		return r
	}
	return c.Default
}

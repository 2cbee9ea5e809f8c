package sema

import (
	"fmt"

	"github.com/BurntSushi/toml"

	"github.com/glint-lang/glint/pkg/value"
)

// Manifest is the TOML export surface of a module. It lets a registry
// be assembled for emission without the exporting module's front end
// present: constants and enum members are canonical value renderings,
// underlying types are canonical type renderings.
//
//	[module]
//	name = "import_0"
//
//	[constants]
//	MY_CONST = "u3:2"
//
//	[[enums]]
//	name = "ImportedEnum"
//	underlying = "uN[3]"
//	members = [
//	    { name = "VAL_0", value = "u3:0" },
//	    { name = "VAL_1", value = "u3:1" },
//	]
//
//	functions = ["my_function"]
type Manifest struct {
	Module    manifestModule    `toml:"module"`
	Constants map[string]string `toml:"constants"`
	Enums     []manifestEnum    `toml:"enums"`
	Functions []string          `toml:"functions"`
}

type manifestModule struct {
	Name string `toml:"name"`
}

type manifestEnum struct {
	Name       string           `toml:"name"`
	Underlying string           `toml:"underlying"`
	Members    []manifestMember `toml:"members"`
}

type manifestMember struct {
	Name  string `toml:"name"`
	Value string `toml:"value"`
}

// LoadManifest reads a module manifest from a TOML file and resolves
// it into a Module.
func LoadManifest(path string) (*Module, error) {
	var mf Manifest
	if _, err := toml.DecodeFile(path, &mf); err != nil {
		return nil, fmt.Errorf("sema: load manifest %s: %w", path, err)
	}
	return mf.Resolve()
}

// DecodeManifest parses manifest TOML from a string and resolves it
// into a Module.
func DecodeManifest(data string) (*Module, error) {
	var mf Manifest
	if _, err := toml.Decode(data, &mf); err != nil {
		return nil, fmt.Errorf("sema: decode manifest: %w", err)
	}
	return mf.Resolve()
}

// Resolve converts the textual manifest into a Module, parsing every
// value and type rendering.
func (mf *Manifest) Resolve() (*Module, error) {
	if mf.Module.Name == "" {
		return nil, fmt.Errorf("sema: manifest missing module name")
	}
	m := NewModule(mf.Module.Name)
	for name, text := range mf.Constants {
		v, err := value.Parse(text)
		if err != nil {
			return nil, fmt.Errorf("sema: manifest constant %s: %w", name, err)
		}
		m.AddConst(name, v)
	}
	for _, me := range mf.Enums {
		under, err := ParseType(me.Underlying)
		if err != nil {
			return nil, fmt.Errorf("sema: manifest enum %s: %w", me.Name, err)
		}
		def := &EnumDef{Name: me.Name, Underlying: under}
		for _, mm := range me.Members {
			v, err := value.Parse(mm.Value)
			if err != nil {
				return nil, fmt.Errorf("sema: manifest enum %s member %s: %w", me.Name, mm.Name, err)
			}
			def.Members = append(def.Members, EnumMember{Name: mm.Name, Value: v})
		}
		m.AddEnum(def)
	}
	for _, fn := range mf.Functions {
		m.AddFunc(fn)
	}
	return m, nil
}

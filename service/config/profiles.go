package config

import (
	"os"

	"golang.org/x/xerrors"
	"gopkg.in/yaml.v3"

	"github.com/khaledhikmat/vs-detect/detect"
	"github.com/khaledhikmat/vs-detect/model"
)

// ProfileOverride changes selected fields of one built-in profile. Nil
// fields keep the built-in value.
type ProfileOverride struct {
	Confidence  *float32      `yaml:"confidence"`
	NMS         *float32      `yaml:"nms"`
	InputSize   *model.Size   `yaml:"inputSize"`
	Mean        *[3]float32   `yaml:"mean"`
	Scale       *float32      `yaml:"scale"`
	SwapRB      *bool         `yaml:"swapRB"`
	Layout      *model.Layout `yaml:"layout"`
	MinFaceSize *int          `yaml:"minFaceSize"`
	ModelFile   *string       `yaml:"modelFile"`
	ConfigFile  *string       `yaml:"configFile"`
}

type profilesFile struct {
	Profiles map[string]ProfileOverride `yaml:"profiles"`
}

// ParseProfileOverrides decodes a YAML document of the form
//
//	profiles:
//	  ssd-resnet:
//	    confidence: 0.5
//	    layout: {boxIndex: 3, confidenceIndex: 2, scoreIndex: -1}
//
// Keys are algorithm names in any form ParseAlgorithm accepts.
func ParseProfileOverrides(data []byte) (map[model.AlgorithmKind]ProfileOverride, error) {
	var doc profilesFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, xerrors.Errorf("parse profile overrides: %w", err)
	}

	out := make(map[model.AlgorithmKind]ProfileOverride, len(doc.Profiles))
	for name, o := range doc.Profiles {
		kind, ok := model.ParseAlgorithm(name)
		if !ok {
			return nil, xerrors.Errorf("profile overrides: unknown algorithm %q", name)
		}
		out[kind] = o
	}
	return out, nil
}

func LoadProfileOverrides(path string) (map[model.AlgorithmKind]ProfileOverride, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, xerrors.Errorf("read profile overrides: %w", err)
	}
	return ParseProfileOverrides(data)
}

// ApplyOverrides returns a new catalog with overrides applied.
func ApplyOverrides(base *detect.Catalog, overrides map[model.AlgorithmKind]ProfileOverride) *detect.Catalog {
	if len(overrides) == 0 {
		return base
	}
	return base.With(func(p *model.AlgorithmProfile) {
		o, ok := overrides[p.Kind]
		if !ok {
			return
		}
		if o.Confidence != nil {
			p.Thresholds.Confidence = *o.Confidence
		}
		if o.NMS != nil {
			p.Thresholds.NMS = *o.NMS
		}
		if o.InputSize != nil {
			p.InputSize = *o.InputSize
		}
		if o.Mean != nil {
			p.Mean = *o.Mean
		}
		if o.Scale != nil {
			p.Scale = *o.Scale
		}
		if o.SwapRB != nil {
			p.SwapRB = *o.SwapRB
		}
		if o.Layout != nil {
			p.Layout = *o.Layout
		}
		if o.MinFaceSize != nil {
			p.MinFaceSize = *o.MinFaceSize
		}
		if o.ModelFile != nil {
			p.ModelFile = *o.ModelFile
		}
		if o.ConfigFile != nil {
			p.ConfigFile = *o.ConfigFile
		}
	})
}

// Catalog builds the profile catalog for svc: the built-in profiles plus the
// overrides file, if one is configured.
func Catalog(svc IService) (*detect.Catalog, error) {
	catalog := detect.DefaultCatalog()
	path := svc.GetProfilesFile()
	if path == "" {
		return catalog, nil
	}
	overrides, err := LoadProfileOverrides(path)
	if err != nil {
		return nil, err
	}
	return ApplyOverrides(catalog, overrides), nil
}

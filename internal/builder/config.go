package builder

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/wonny/crossasset/internal/model"
)

// CalibrationType selects how a factor's parameters are fitted.
type CalibrationType string

const (
	CalibrationNone      CalibrationType = "none"
	CalibrationBootstrap CalibrationType = "bootstrap"
	CalibrationGlobal    CalibrationType = "global"
)

func (c CalibrationType) valid() bool {
	switch c {
	case CalibrationNone, CalibrationBootstrap, CalibrationGlobal:
		return true
	}
	return false
}

// ParamType selects the shape of a parameter curve.
type ParamType string

const (
	ParamConstant  ParamType = "constant"
	ParamPiecewise ParamType = "piecewise"
)

func (p ParamType) valid() bool {
	return p == ParamConstant || p == ParamPiecewise
}

// StageConfigurations names the market configuration tag each calibration
// stage relinks the discount curves to. Empty tags fall back to the market's
// default configuration.
type StageConfigurations struct {
	IrCalibration string `yaml:"ir_calibration"`
	FxCalibration string `yaml:"fx_calibration"`
	EqCalibration string `yaml:"eq_calibration"`
	Final         string `yaml:"final"`
}

// IrConfig configures one LGM interest rate factor. The first entry is the
// domestic currency.
type IrConfig struct {
	Currency         string          `yaml:"currency"`
	Calibration      CalibrationType `yaml:"calibration"`
	ParamType        ParamType       `yaml:"param_type"`
	InitialAlpha     float64         `yaml:"initial_alpha"`
	Reversion        float64         `yaml:"reversion"`
	SwaptionExpiries []float64       `yaml:"swaption_expiries"`
	SwaptionTenor    int             `yaml:"swaption_tenor"`
}

// FxConfig configures one FX Black-Scholes factor against the domestic
// currency.
type FxConfig struct {
	ForeignCurrency string          `yaml:"foreign_currency"`
	Calibration     CalibrationType `yaml:"calibration"`
	ParamType       ParamType       `yaml:"param_type"`
	InitialSigma    float64         `yaml:"initial_sigma"`
	OptionExpiries  []float64       `yaml:"option_expiries"`
}

// EqConfig configures one equity Black-Scholes factor.
type EqConfig struct {
	Name           string          `yaml:"name"`
	Currency       string          `yaml:"currency"`
	Calibration    CalibrationType `yaml:"calibration"`
	ParamType      ParamType       `yaml:"param_type"`
	InitialSigma   float64         `yaml:"initial_sigma"`
	OptionExpiries []float64       `yaml:"option_expiries"`
}

// InfConfig configures one Dodgson-Kainth inflation block. Alpha and kappa
// can be calibrated separately, jointly, or not at all.
type InfConfig struct {
	Index            string          `yaml:"index"`
	Currency         string          `yaml:"currency"`
	Calibration      CalibrationType `yaml:"calibration"`
	CalibrateAlpha   bool            `yaml:"calibrate_alpha"`
	CalibrateKappa   bool            `yaml:"calibrate_kappa"`
	AlphaType        ParamType       `yaml:"alpha_type"`
	KappaType        ParamType       `yaml:"kappa_type"`
	InitialAlpha     float64         `yaml:"initial_alpha"`
	InitialKappa     float64         `yaml:"initial_kappa"`
	CapFloorExpiries []float64       `yaml:"capfloor_expiries"`
	StrikeRate       float64         `yaml:"strike_rate"`
}

// CrConfig configures one credit block. Credit parameters are seeded from
// configuration and never calibrated.
type CrConfig struct {
	Name         string  `yaml:"name"`
	Currency     string  `yaml:"currency"`
	InitialAlpha float64 `yaml:"initial_alpha"`
	InitialKappa float64 `yaml:"initial_kappa"`
}

// CorrelationConfig is one pairwise Brownian correlation entry. Factors are
// written "CLASS:NAME", for example "IR:EUR" or "FX:USD".
type CorrelationConfig struct {
	Factor1 string  `yaml:"factor1"`
	Factor2 string  `yaml:"factor2"`
	Value   float64 `yaml:"value"`
}

// ModelConfig is the full model configuration document.
type ModelConfig struct {
	BootstrapTolerance float64             `yaml:"bootstrap_tolerance"`
	Salvage            string              `yaml:"salvage"`
	Configurations     StageConfigurations `yaml:"configurations"`
	Ir                 []IrConfig          `yaml:"ir"`
	Fx                 []FxConfig          `yaml:"fx"`
	Eq                 []EqConfig          `yaml:"eq"`
	Inf                []InfConfig         `yaml:"inf"`
	Cr                 []CrConfig          `yaml:"cr"`
	Correlations       []CorrelationConfig `yaml:"correlations"`

	hash string
}

// LoadModelConfig reads and validates a YAML model configuration file.
func LoadModelConfig(path string) (*ModelConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read model config: %w", err)
	}
	return ParseModelConfig(raw)
}

// ParseModelConfig decodes a YAML model configuration document. Unknown
// fields are rejected.
func ParseModelConfig(raw []byte) (*ModelConfig, error) {
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	var cfg ModelConfig
	if err := dec.Decode(&cfg); err != nil {
		return nil, configErrorf("decode model config: %v", err)
	}
	sum := sha256.Sum256(raw)
	cfg.hash = hex.EncodeToString(sum[:])
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Hash returns the SHA-256 of the raw configuration document, recorded in
// calibration reports and snapshots.
func (c *ModelConfig) Hash() string { return c.hash }

// SalvageMode maps the configured salvage string onto the model's mode.
func (c *ModelConfig) SalvageMode() model.SalvageMode {
	if c.Salvage == "eigen" {
		return model.SalvageEigen
	}
	return model.SalvageNone
}

// Validate checks the structural constraints that do not need market data.
func (c *ModelConfig) Validate() error {
	if len(c.Ir) == 0 {
		return configErrorf("at least one interest rate factor required")
	}
	if len(c.Fx) != len(c.Ir)-1 {
		return configErrorf("%d fx factors for %d currencies, need one per foreign currency",
			len(c.Fx), len(c.Ir))
	}
	if c.BootstrapTolerance <= 0 {
		return configErrorf("bootstrap tolerance must be positive, got %v", c.BootstrapTolerance)
	}
	if c.Salvage != "" && c.Salvage != "none" && c.Salvage != "eigen" {
		return configErrorf("unknown salvage mode %q", c.Salvage)
	}

	ccys := make(map[string]bool, len(c.Ir))
	for i, ir := range c.Ir {
		if ir.Currency == "" {
			return configErrorf("ir[%d]: currency required", i)
		}
		if ccys[ir.Currency] {
			return configErrorf("duplicate currency %s", ir.Currency)
		}
		ccys[ir.Currency] = true
		if !ir.Calibration.valid() {
			return configErrorf("ir[%d]: unknown calibration type %q", i, ir.Calibration)
		}
		if !ir.ParamType.valid() {
			return configErrorf("ir[%d]: unknown param type %q", i, ir.ParamType)
		}
		if ir.Calibration != CalibrationNone && len(ir.SwaptionExpiries) == 0 {
			return configErrorf("ir[%d]: swaption expiries required for calibration", i)
		}
		if ir.Calibration != CalibrationNone && ir.SwaptionTenor <= 0 {
			return configErrorf("ir[%d]: swaption tenor must be positive", i)
		}
	}
	for i, fx := range c.Fx {
		if fx.ForeignCurrency != c.Ir[i+1].Currency {
			return configErrorf("fx[%d]: foreign currency %s does not match ir[%d] currency %s",
				i, fx.ForeignCurrency, i+1, c.Ir[i+1].Currency)
		}
		if !fx.Calibration.valid() {
			return configErrorf("fx[%d]: unknown calibration type %q", i, fx.Calibration)
		}
		if !fx.ParamType.valid() {
			return configErrorf("fx[%d]: unknown param type %q", i, fx.ParamType)
		}
		if fx.Calibration != CalibrationNone && len(fx.OptionExpiries) == 0 {
			return configErrorf("fx[%d]: option expiries required for calibration", i)
		}
	}
	for i, eq := range c.Eq {
		if eq.Name == "" {
			return configErrorf("eq[%d]: name required", i)
		}
		if !ccys[eq.Currency] {
			return configErrorf("eq[%d]: currency %s has no interest rate factor", i, eq.Currency)
		}
		if !eq.Calibration.valid() {
			return configErrorf("eq[%d]: unknown calibration type %q", i, eq.Calibration)
		}
		if !eq.ParamType.valid() {
			return configErrorf("eq[%d]: unknown param type %q", i, eq.ParamType)
		}
		if eq.Calibration != CalibrationNone && len(eq.OptionExpiries) == 0 {
			return configErrorf("eq[%d]: option expiries required for calibration", i)
		}
	}
	for i, inf := range c.Inf {
		if inf.Index == "" {
			return configErrorf("inf[%d]: index name required", i)
		}
		if !ccys[inf.Currency] {
			return configErrorf("inf[%d]: currency %s has no interest rate factor", i, inf.Currency)
		}
		if !inf.Calibration.valid() {
			return configErrorf("inf[%d]: unknown calibration type %q", i, inf.Calibration)
		}
		if !inf.AlphaType.valid() || !inf.KappaType.valid() {
			return configErrorf("inf[%d]: unknown param type", i)
		}
		if inf.Calibration != CalibrationNone {
			if !inf.CalibrateAlpha && !inf.CalibrateKappa {
				return configErrorf("inf[%d]: calibration requested but no parameter flagged", i)
			}
			if len(inf.CapFloorExpiries) == 0 {
				return configErrorf("inf[%d]: capfloor expiries required for calibration", i)
			}
		}
	}
	for i, cr := range c.Cr {
		if cr.Name == "" {
			return configErrorf("cr[%d]: name required", i)
		}
		if !ccys[cr.Currency] {
			return configErrorf("cr[%d]: currency %s has no interest rate factor", i, cr.Currency)
		}
	}
	for i, corr := range c.Correlations {
		if _, err := parseFactor(corr.Factor1); err != nil {
			return configErrorf("correlations[%d]: %v", i, err)
		}
		if _, err := parseFactor(corr.Factor2); err != nil {
			return configErrorf("correlations[%d]: %v", i, err)
		}
		if corr.Value < -1 || corr.Value > 1 {
			return configErrorf("correlations[%d]: value %v outside [-1, 1]", i, corr.Value)
		}
	}
	return nil
}

// parseFactor reads a "CLASS:NAME" factor reference.
func parseFactor(s string) (model.FactorID, error) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 || parts[1] == "" {
		return model.FactorID{}, fmt.Errorf("malformed factor reference %q, want CLASS:NAME", s)
	}
	var class model.AssetClass
	switch parts[0] {
	case "IR":
		class = model.IR
	case "FX":
		class = model.FX
	case "EQ":
		class = model.EQ
	case "INF":
		class = model.INF
	case "CR":
		class = model.CR
	default:
		return model.FactorID{}, fmt.Errorf("unknown asset class %q in factor reference %q", parts[0], s)
	}
	return model.FactorID{Class: class, Name: parts[1]}, nil
}

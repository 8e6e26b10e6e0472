// Package scenario runs scripted exchange sessions described in YAML.
package scenario

import (
	"fmt"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"gopkg.in/yaml.v3"
)

// Scenario is a named list of steps over symbolic accounts and tokens.
type Scenario struct {
	Name  string `yaml:"name"`
	Steps []Step `yaml:"steps"`
}

// Step is one operation. Only the fields used by Op are read.
//
// Names resolve to addresses: a hex address is used as is, "A/B" is the
// pair of tokens A and B, anything else maps to a fixed address derived from
// the name.
type Step struct {
	Op string `yaml:"op"`

	Pair   string `yaml:"pair,omitempty"`
	TokenA string `yaml:"token_a,omitempty"`
	TokenB string `yaml:"token_b,omitempty"`
	Token  string `yaml:"token,omitempty"`
	From   string `yaml:"from,omitempty"`
	To     string `yaml:"to,omitempty"`

	Amount     string   `yaml:"amount,omitempty"`
	AmountA    string   `yaml:"amount_a,omitempty"`
	AmountB    string   `yaml:"amount_b,omitempty"`
	MinA       string   `yaml:"min_a,omitempty"`
	MinB       string   `yaml:"min_b,omitempty"`
	Amount0Out string   `yaml:"amount0_out,omitempty"`
	Amount1Out string   `yaml:"amount1_out,omitempty"`
	Shares     string   `yaml:"shares,omitempty"`
	Limit      string   `yaml:"limit,omitempty"`
	Path       []string `yaml:"path,omitempty"`

	// Expect, when set, must equal the step's headline amount.
	Expect string `yaml:"expect,omitempty"`

	// expect_error wraps Step and requires it to fail with Error.
	Error string `yaml:"error,omitempty"`
	Step  *Step  `yaml:"step,omitempty"`
}

// Load reads and parses a scenario file.
func Load(path string) (*Scenario, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(b)
}

func Parse(b []byte) (*Scenario, error) {
	var sc Scenario
	if err := yaml.Unmarshal(b, &sc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidScenario, err)
	}
	if len(sc.Steps) == 0 {
		return nil, fmt.Errorf("%w: no steps", ErrInvalidScenario)
	}
	for i, st := range sc.Steps {
		if err := st.validate(); err != nil {
			return nil, fmt.Errorf("step %d: %w", i+1, err)
		}
	}
	return &sc, nil
}

func (st *Step) validate() error {
	if st.Op == OpExpectError {
		if st.Step == nil || st.Error == "" {
			return fmt.Errorf("%w: expect_error needs step and error", ErrInvalidScenario)
		}
		if _, ok := errorKinds[st.Error]; !ok {
			return fmt.Errorf("%w: unknown error kind %q", ErrInvalidScenario, st.Error)
		}
		return st.Step.validate()
	}
	if _, ok := ops[st.Op]; !ok {
		return fmt.Errorf("%w: unknown op %q", ErrInvalidScenario, st.Op)
	}
	return nil
}

// Address maps a symbolic name to its address.
func Address(name string) common.Address {
	if common.IsHexAddress(name) {
		return common.HexToAddress(name)
	}
	return common.BytesToAddress(crypto.Keccak256([]byte(strings.ToLower(name))))
}

// names remembers the symbolic name behind every resolved address so
// reports can print names instead of hex.
type names map[common.Address]string

func (n names) resolve(name string) common.Address {
	a := Address(name)
	if _, ok := n[a]; !ok {
		n[a] = name
	}
	return a
}

func (n names) label(a common.Address) string {
	if name, ok := n[a]; ok {
		return name
	}
	return a.Hex()
}

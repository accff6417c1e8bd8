package strategos

import (
	"fmt"
	"strings"
)

// Algorithm identifies a variant of the evolution strategy family by its
// numeric code. The name/code mapping is fixed at process start and never
// mutated.
type Algorithm int

const (
	CMAES Algorithm = iota
	IPOP
	BIPOP
	ACMAES
	AIPOP
	ABIPOP
	SepCMAES
	SepIPOP
	SepBIPOP
	SepACMAES
	SepAIPOP
	SepABIPOP
)

var algorithmNames = []string{
	CMAES:     "cmaes",
	IPOP:      "ipop",
	BIPOP:     "bipop",
	ACMAES:    "acmaes",
	AIPOP:     "aipop",
	ABIPOP:    "abipop",
	SepCMAES:  "sepcmaes",
	SepIPOP:   "sepipop",
	SepBIPOP:  "sepbipop",
	SepACMAES: "sepacmaes",
	SepAIPOP:  "sepaipop",
	SepABIPOP: "sepabipop",
}

var algorithmCodes = make(map[string]Algorithm, len(algorithmNames))

func init() {
	for code, name := range algorithmNames {
		algorithmCodes[name] = Algorithm(code)
	}
}

// AlgorithmFromName resolves a canonical variant name to its code. Names are
// matched after trimming and lowercasing.
func AlgorithmFromName(name string) (Algorithm, bool) {
	normalized := strings.TrimSpace(strings.ToLower(name))
	algo, ok := algorithmCodes[normalized]
	return algo, ok
}

// AlgorithmNames returns the canonical variant names in code order.
func AlgorithmNames() []string {
	return append([]string(nil), algorithmNames...)
}

func (a Algorithm) Valid() bool {
	return a >= 0 && int(a) < len(algorithmNames)
}

func (a Algorithm) String() string {
	if a.Valid() {
		return algorithmNames[a]
	}
	return fmt.Sprintf("algorithm(%d)", int(a))
}

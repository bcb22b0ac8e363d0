package pathway

// defaultCofactors are metabolite names that never form part of a primary
// chain, however many reactions they appear in.
var defaultCofactors = map[string]struct{}{
	"ATP":      {},
	"ADP":      {},
	"AMP":      {},
	"NAD(+)":   {},
	"NAD":      {},
	"NADH(2-)": {},
	"NADH":     {},
	"NADP(+)":  {},
	"NADP":     {},
	"NADPH":    {},
	"GTP":      {},
	"GDP":      {},
	"CoA":      {},
	"UMP(2-)":  {},
	"UMP":      {},
	"H(+)":     {},
	"H":        {},
	"O2":       {},
	"CO(2)":    {},
	"CO2":      {},
	"H2O":      {},
	"H2O2":     {},
}

// IsDefaultCofactor reports whether name is one of the static cofactors.
func IsDefaultCofactor(name string) bool {
	_, ok := defaultCofactors[name]
	return ok
}

// Package config holds the protocol profile: network parameters and
// hardfork activation heights (spec.md §6.2).
package config

// Hardfork is a named, height-gated activation point (spec.md glossary).
type Hardfork string

const (
	HFAspidochelone Hardfork = "Aspidochelone"
	HFBasilisk      Hardfork = "Basilisk"
	HFCockatrice    Hardfork = "Cockatrice"
	HFDomovoi       Hardfork = "Domovoi"
	HFEchidna       Hardfork = "Echidna"
	HFFaun          Hardfork = "Faun"
)

// Ordering is the activation sequence, earliest first. A hardfork's
// index here determines which later hardforks it implies being active
// for (ProtocolConfiguration.HFActive considers everything up to and including the target
// as cumulative).
var Ordering = []Hardfork{
	HFAspidochelone, HFBasilisk, HFCockatrice, HFDomovoi, HFEchidna, HFFaun,
}

func indexOf(hf Hardfork) int {
	for i, h := range Ordering {
		if h == hf {
			return i
		}
	}
	return -1
}

// AtLeast reports whether hf is at or after target in the activation
// ordering (e.g. HFEchidna.AtLeast(HFAspidochelone) == true).
func (hf Hardfork) AtLeast(target Hardfork) bool {
	return indexOf(hf) >= indexOf(target)
}

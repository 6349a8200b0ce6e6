package config

// ProtocolConfiguration is a fixed parameter set (spec.md §6.2): network
// magic, address version, validator count, ms-per-block, maximum
// valid-until-block increment, maximum transactions per block, and the
// hardfork activation heights. Loaded from YAML, mirroring neo-go's
// config.ProtocolConfiguration.
type ProtocolConfiguration struct {
	Name                         string             `yaml:"Name"`
	Magic                        uint32             `yaml:"Magic"`
	AddressVersion               byte               `yaml:"AddressVersion"`
	ValidatorsCount              int                `yaml:"ValidatorsCount"`
	MillisecondsPerBlock         uint32             `yaml:"MillisecondsPerBlock"`
	MaxValidUntilBlockIncrement  uint32             `yaml:"MaxValidUntilBlockIncrement"`
	MaxTransactionsPerBlock      uint32             `yaml:"MaxTransactionsPerBlock"`
	MaxTraceableBlocks           uint32             `yaml:"MaxTraceableBlocks"`
	HardforkActivationHeights    map[Hardfork]uint32 `yaml:"Hardforks"`
}

// HFActive reports whether hf is active at the given chain height.
func (p *ProtocolConfiguration) HFActive(hf Hardfork, height uint32) bool {
	activation, ok := p.HardforkActivationHeights[hf]
	if !ok {
		return false
	}
	return height >= activation
}

// MainNet is the Neo N3 MainNet profile (spec.md §6.2). Activation
// heights are the published v3.9.1 MainNet values.
func MainNet() *ProtocolConfiguration {
	return &ProtocolConfiguration{
		Name:                        "mainnet",
		Magic:                       0x334F454E,
		AddressVersion:              0x35,
		ValidatorsCount:             7,
		MillisecondsPerBlock:        15000,
		MaxValidUntilBlockIncrement: 86400 / 15,
		MaxTransactionsPerBlock:     512,
		MaxTraceableBlocks:          2102400,
		HardforkActivationHeights: map[Hardfork]uint32{
			HFAspidochelone: 1730000,
			HFBasilisk:      4120000,
			HFCockatrice:    5450000,
			HFDomovoi:       5570000,
			HFEchidna:       6300000,
			HFFaun:          7300000,
		},
	}
}

// TestNet is the Neo N3 TestNet profile.
func TestNet() *ProtocolConfiguration {
	return &ProtocolConfiguration{
		Name:                        "testnet",
		Magic:                       0x3154414E,
		AddressVersion:              0x35,
		ValidatorsCount:             7,
		MillisecondsPerBlock:        15000,
		MaxValidUntilBlockIncrement: 86400 / 15,
		MaxTransactionsPerBlock:     512,
		MaxTraceableBlocks:          2102400,
		HardforkActivationHeights: map[Hardfork]uint32{
			HFAspidochelone: 128000,
			HFBasilisk:      1355000,
			HFCockatrice:    3650000,
			HFDomovoi:       4150000,
			HFEchidna:       5870000,
			HFFaun:          6870000,
		},
	}
}

// Unknown is the third profile named by spec.md §6.2: v3.9.1 defaults
// with every hardfork active from genesis and an arbitrary network
// magic, suitable for the t8n transition tool and conformance testing.
func Unknown(magic uint32) *ProtocolConfiguration {
	heights := make(map[Hardfork]uint32, len(Ordering))
	for _, hf := range Ordering {
		heights[hf] = 0
	}
	return &ProtocolConfiguration{
		Name:                        "unknown",
		Magic:                       magic,
		AddressVersion:              0x35,
		ValidatorsCount:             7,
		MillisecondsPerBlock:        15000,
		MaxValidUntilBlockIncrement: 86400 / 15,
		MaxTransactionsPerBlock:     512,
		MaxTraceableBlocks:          2102400,
		HardforkActivationHeights:   heights,
	}
}

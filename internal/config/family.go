package config

import "strings"

// Family identifies a model family for convenience defaults.
type Family string

const (
	FamilyUnknown Family = "unknown"
	FamilyQwen    Family = "qwen"
	FamilyMistral Family = "mistral"
)

// familyDefaults is applied when a field is empty or outside the accepted set.
type familyDefaults struct {
	cacheV        string
	flashAttn     string
	cacheAccepted []string
	flashAccepted []string
}

var (
	cacheTypes = []string{"auto", "f16", "q4_0", "q4_1", "q5_0", "q5_1", "q8_0"}
	flashModes = []string{"auto", "1", "0"}
)

var familyTable = map[Family]familyDefaults{
	FamilyQwen:    {cacheV: "auto", flashAttn: "auto", cacheAccepted: cacheTypes, flashAccepted: flashModes},
	FamilyMistral: {cacheV: "q8_0", flashAttn: "0", cacheAccepted: cacheTypes, flashAccepted: flashModes},
}

// FamilyOf classifies a model path by its file name.
func FamilyOf(modelPath string) Family {
	p := strings.ToLower(modelPath)
	switch {
	case strings.Contains(p, "qwen"):
		return FamilyQwen
	case strings.Contains(p, "mistral"):
		return FamilyMistral
	default:
		return FamilyUnknown
	}
}

// ApplyFamilyDefaults returns a copy with per-family cache and flash-attention
// defaults filled in. Valid explicit values are left alone.
func (c BackendConfig) ApplyFamilyDefaults() BackendConfig {
	fd, ok := familyTable[c.Family]
	if !ok {
		if c.FlashAttn == "" {
			c.FlashAttn = "auto"
		}
		if c.CacheK == "" {
			c.CacheK = "f16"
		}
		if c.CacheV == "" {
			c.CacheV = "f16"
		}
		return c
	}
	if !contains(fd.cacheAccepted, c.CacheV) {
		c.CacheV = fd.cacheV
	}
	if !contains(fd.flashAccepted, c.FlashAttn) {
		c.FlashAttn = fd.flashAttn
	}
	if c.CacheK == "" {
		c.CacheK = "f16"
	}
	return c
}

func contains(set []string, v string) bool {
	v = strings.ToLower(strings.TrimSpace(v))
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}

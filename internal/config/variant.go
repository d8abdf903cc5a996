package config

// Variant is a partial override tried after the base configuration fails to
// become ready. Nil fields keep the base value.
type Variant struct {
	Name       string  `json:"name" yaml:"name" toml:"name"`
	CtxSize    *int    `json:"ctxSize,omitempty" yaml:"ctxSize,omitempty" toml:"ctxSize,omitempty"`
	BatchSize  *int    `json:"batchSize,omitempty" yaml:"batchSize,omitempty" toml:"batchSize,omitempty"`
	UBatchSize *int    `json:"ubatchSize,omitempty" yaml:"ubatchSize,omitempty" toml:"ubatchSize,omitempty"`
	Parallel   *int    `json:"parallel,omitempty" yaml:"parallel,omitempty" toml:"parallel,omitempty"`
	GPULayers  *int    `json:"gpuLayers,omitempty" yaml:"gpuLayers,omitempty" toml:"gpuLayers,omitempty"`
	CacheK     *string `json:"cacheK,omitempty" yaml:"cacheK,omitempty" toml:"cacheK,omitempty"`
	CacheV     *string `json:"cacheV,omitempty" yaml:"cacheV,omitempty" toml:"cacheV,omitempty"`
	FlashAttn  *string `json:"flashAttn,omitempty" yaml:"flashAttn,omitempty" toml:"flashAttn,omitempty"`
}

// Apply returns a copy of c with v's non-nil fields set.
func (c BackendConfig) Apply(v Variant) BackendConfig {
	if v.CtxSize != nil {
		c.CtxSize = *v.CtxSize
	}
	if v.BatchSize != nil {
		c.BatchSize = *v.BatchSize
	}
	if v.UBatchSize != nil {
		c.UBatchSize = *v.UBatchSize
	}
	if v.Parallel != nil {
		c.Parallel = *v.Parallel
	}
	if v.GPULayers != nil {
		c.GPULayers = *v.GPULayers
	}
	if v.CacheK != nil {
		c.CacheK = *v.CacheK
	}
	if v.CacheV != nil {
		c.CacheV = *v.CacheV
	}
	if v.FlashAttn != nil {
		c.FlashAttn = *v.FlashAttn
	}
	return c
}

const reducedCtx = 4096

// DefaultVariants is the escalation used when a document declares none:
// smaller context, no flash attention, f16 KV cache, fewer GPU layers.
// Steps that would not change base are omitted.
func DefaultVariants(base BackendConfig) []Variant {
	var out []Variant
	ctx := base.CtxSize
	if ctx > reducedCtx {
		ctx = reducedCtx
		out = append(out, Variant{Name: "reduced-context", CtxSize: intp(ctx)})
	}
	if base.FlashAttn != "0" {
		out = append(out, Variant{Name: "no-flash-attn", CtxSize: intp(ctx), FlashAttn: strp("0")})
	}
	if base.CacheK != "f16" || base.CacheV != "f16" {
		out = append(out, Variant{Name: "f16-cache", CtxSize: intp(ctx), FlashAttn: strp("0"), CacheK: strp("f16"), CacheV: strp("f16")})
	}
	if base.GPULayers > 1 {
		out = append(out, Variant{
			Name:      "reduced-gpu-layers",
			CtxSize:   intp(ctx),
			FlashAttn: strp("0"),
			CacheK:    strp("f16"),
			CacheV:    strp("f16"),
			GPULayers: intp(base.GPULayers / 2),
			Parallel:  intp(1),
		})
	}
	return out
}

func intp(v int) *int       { return &v }
func strp(v string) *string { return &v }

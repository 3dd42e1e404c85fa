package logging

import (
	"go.uber.org/zap/zapcore"
)

// newSampledCore samples entries below Error. Errors always reach core.
func newSampledCore(core zapcore.Core, cfg SamplingConfig) zapcore.Core {
	if !cfg.Enabled {
		return core
	}
	return &samplingCore{
		Core:    core,
		sampled: zapcore.NewSamplerWithOptions(core, cfg.Tick.Duration(), cfg.Initial, cfg.Thereafter),
	}
}

type samplingCore struct {
	zapcore.Core
	sampled zapcore.Core
}

func (c *samplingCore) Check(e zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if e.Level >= zapcore.ErrorLevel {
		return c.Core.Check(e, ce)
	}
	return c.sampled.Check(e, ce)
}

func (c *samplingCore) With(fields []zapcore.Field) zapcore.Core {
	return &samplingCore{Core: c.Core.With(fields), sampled: c.sampled.With(fields)}
}

package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"logsplit/internal/codec"
	"logsplit/internal/pipeline"
	"logsplit/internal/rate"
	"logsplit/internal/timestamp"
	"logsplit/pkg/contract"
	"logsplit/pkg/registry"
)

// Validate 对 CLI 契约做静态校验。未知方法返回包装 ErrInvalidMethod 的错误。
func Validate(cfg Config) error {
	if cfg.InputFile == "" {
		return errors.New("config: input_file not set")
	}
	if registry.Splitter[cfg.Method] == nil {
		return fmt.Errorf("config: %w: %q (want lines|bytes|date)", contract.ErrInvalidMethod, cfg.Method)
	}
	if contract.Granularity(cfg.Granularity).Minutes() == 0 {
		return fmt.Errorf("config: granularity %q (want minute|hour|day|month)", cfg.Granularity)
	}
	if cfg.LowerBound < 1 {
		return errors.New("config: lower_bound must be >= 1")
	}
	if cfg.ChunkSize < 1 {
		return errors.New("config: chunk_size must be >= 1")
	}
	if _, err := timestamp.ForMode(cfg.TimestampMode); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	switch contract.OutOfOrder(cfg.OutOfOrder) {
	case "", contract.OutOfOrderDiscard, contract.OutOfOrderKeep:
	default:
		return fmt.Errorf("config: out_of_order %q (want discard|keep)", cfg.OutOfOrder)
	}
	if registry.Writer[cfg.Output.Sink] == nil {
		return fmt.Errorf("config: output.sink %q not registered", cfg.Output.Sink)
	}
	if _, err := codec.Lookup(cfg.Output.Compress); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if cfg.Output.Rate.FilesPerMin < 0 || cfg.Output.Rate.BytesPerMin < 0 {
		return errors.New("config: output.rate values must be >= 0")
	}
	if cfg.Output.Sink == "minio" {
		if strings.TrimSpace(cfg.Output.Minio.Endpoint) == "" || strings.TrimSpace(cfg.Output.Minio.Bucket) == "" {
			return errors.New("config: output.minio.endpoint and output.minio.bucket required for sink minio")
		}
	}
	return nil
}

// SplitOptions 返回拆分器的运行期参数。
func (c Config) SplitOptions() contract.SplitOptions {
	return contract.SplitOptions{
		Method:        contract.Method(c.Method),
		BaseName:      c.FileBaseName,
		LowerBound:    c.LowerBound,
		UpperBound:    c.UpperBound,
		ChunkSize:     c.ChunkSize,
		Granularity:   contract.Granularity(c.Granularity),
		BeginTime:     c.BeginTime,
		EndTime:       c.EndTime,
		TimestampMode: c.TimestampMode,
		OutOfOrder:    contract.OutOfOrder(c.OutOfOrder),
	}
}

// ComponentOptions 返回各实现的具体选项。
func (c Config) ComponentOptions() registry.Options {
	var o registry.Options
	o.Reader.BufSize = c.Input.BufSize
	o.Reader.MaxBytes = c.Input.MaxBytes

	atomic, flat := c.Output.Atomic, c.Output.Flat
	o.FS.OutputDir = c.Output.Dir
	o.FS.Atomic = &atomic
	o.FS.Flat = &flat
	o.FS.Compress = c.Output.Compress
	o.FS.PermFile = os.FileMode(c.Output.PermFile)
	o.FS.PermDir = os.FileMode(c.Output.PermDir)
	o.FS.BufSize = c.Output.BufSize

	o.Minio = c.Output.Minio
	if strings.TrimSpace(o.Minio.Compress) == "" {
		o.Minio.Compress = c.Output.Compress
	}
	return o
}

// Gate 按 output.rate 构造写出限速闸门；未配置任何额度时返回 nil。
func (c Config) Gate() rate.Gate {
	r := c.Output.Rate
	if r.FilesPerMin <= 0 && r.BytesPerMin <= 0 {
		return nil
	}
	return rate.NewGate(map[rate.LimitKey]rate.Limits{
		rate.LimitKey(c.Output.Sink): {FilesPerMin: r.FilesPerMin, BytesPerMin: r.BytesPerMin},
	}, nil)
}

// Assemble 校验并构造 Components 与 Settings。
func Assemble(cfg Config) (pipeline.Components, pipeline.Settings, error) {
	if err := Validate(cfg); err != nil {
		return pipeline.Components{}, pipeline.Settings{}, err
	}
	opts := cfg.ComponentOptions()

	r, err := registry.Reader["fs"](opts)
	if err != nil {
		return pipeline.Components{}, pipeline.Settings{}, err
	}
	s, err := registry.LookupSplitter(cfg.SplitOptions())
	if err != nil {
		return pipeline.Components{}, pipeline.Settings{}, err
	}
	w, err := registry.Writer[cfg.Output.Sink](opts)
	if err != nil {
		return pipeline.Components{}, pipeline.Settings{}, err
	}

	comp := pipeline.Components{Reader: r, Splitter: s, Writer: w}
	set := pipeline.Settings{
		Input:  cfg.InputFile,
		Method: contract.Method(cfg.Method),
		Sink:   cfg.Output.Sink,
		Gate:   cfg.Gate(),
	}
	return comp, set, nil
}

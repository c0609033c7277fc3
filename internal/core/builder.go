package core

import (
	"fmt"

	"prt7/config"
	"prt7/internal/frame"
	"prt7/internal/retry"
	"prt7/internal/transport"
	"prt7/util"
)

// Build constructs the decode mode for a validated configuration.
func Build(cfg *config.Config, logger *util.Logger) (Mode, error) {
	src, err := buildSource(cfg, logger)
	if err != nil {
		return nil, err
	}

	reconnect := cfg.Reconnect
	if reconnect && cfg.Source() == config.SourceFile {
		logger.Warn("--reconnect has no effect on a file source")
		reconnect = false
	}

	bo := retry.DefaultBackoff()
	bo.MaxAttempts = cfg.MaxReconnects

	return &DecodeMode{
		Source:      src,
		Parser:      frame.Parser{StrictRotation: cfg.StrictRotation},
		MaxLine:     cfg.MaxLine,
		Reconnect:   reconnect,
		Backoff:     bo,
		Audit:       cfg.Audit,
		List:        cfg.List,
		Quiet:       cfg.Quiet,
		MetricsAddr: cfg.MetricsAddr,
		Logger:      logger,
	}, nil
}

// buildSource creates the transport.Source the configuration selects.
func buildSource(cfg *config.Config, logger *util.Logger) (transport.Source, error) {
	switch cfg.Source() {
	case config.SourceSerial:
		return &transport.SerialPort{Device: cfg.Device, Baud: cfg.Baud}, nil
	case config.SourceTCP:
		return &transport.TCPSource{Addr: cfg.TCPAddr, Timeout: cfg.Timeout}, nil
	case config.SourceFile:
		return &transport.FileSource{Path: cfg.File}, nil
	case config.SourceSSH:
		if cfg.TunnelHost == "" {
			return nil, fmt.Errorf("tunnel %q not resolved; validate the configuration first", cfg.TunnelSpec)
		}
		return &transport.SSHSource{
			Config:  cfg.SSHConfig(),
			Device:  cfg.Device,
			Command: cfg.RemoteCommand,
			Logger:  logger.Named("ssh"),
		}, nil
	}
	return nil, fmt.Errorf("no frame source configured")
}

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/JaimeStill/insight/internal/api"
	"github.com/JaimeStill/insight/internal/config"
	"github.com/JaimeStill/insight/internal/infrastructure"
)

const shutdownTimeout = 5 * time.Second

// session holds the in-process systems a command runs against.
type session struct {
	infra  *infrastructure.Infrastructure
	domain *api.Domain
	cfg    *config.Config
}

func openSession() (*session, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("config load failed: %w", err)
	}

	infra, err := infrastructure.New(cfg)
	if err != nil {
		return nil, err
	}
	if err := infra.Start(); err != nil {
		return nil, err
	}
	infra.Lifecycle.WaitForStartup()

	domain, err := api.NewDomain(api.NewRuntime(cfg, infra))
	if err != nil {
		return nil, err
	}

	return &session{infra: infra, domain: domain, cfg: cfg}, nil
}

func (s *session) close() {
	if err := s.infra.Lifecycle.Shutdown(shutdownTimeout); err != nil {
		s.infra.Logger.Error("shutdown failed", "error", err)
	}
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

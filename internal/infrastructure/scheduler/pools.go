package scheduler

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
)

// Pool names
const (
	PoolAPI        = "api"
	PoolInventory  = "inventory"
	PoolBackground = "background"
)

// PoolsConfig sizes the three process-wide pools
type PoolsConfig struct {
	API        PoolConfig
	Inventory  PoolConfig
	Background PoolConfig
}

// DefaultPoolsConfig returns the default pool sizes
func DefaultPoolsConfig() PoolsConfig {
	return PoolsConfig{
		API:        PoolConfig{Name: PoolAPI, Workers: 10, QueueSize: 100},
		Inventory:  PoolConfig{Name: PoolInventory, Workers: 5, QueueSize: 50},
		Background: PoolConfig{Name: PoolBackground, Workers: 5, QueueSize: 50, TaskTimeout: 10 * time.Minute},
	}
}

// Pools groups the request, inventory and background pools
type Pools struct {
	API        *WorkerPool
	Inventory  *WorkerPool
	Background *WorkerPool
}

// NewPools creates the three pools, stopped
func NewPools(cfg PoolsConfig, logger *zap.Logger) (*Pools, error) {
	cfg.API.Name = PoolAPI
	cfg.Inventory.Name = PoolInventory
	cfg.Background.Name = PoolBackground

	api, err := NewWorkerPool(cfg.API, logger)
	if err != nil {
		return nil, err
	}
	inv, err := NewWorkerPool(cfg.Inventory, logger)
	if err != nil {
		return nil, err
	}
	bg, err := NewWorkerPool(cfg.Background, logger)
	if err != nil {
		return nil, err
	}
	return &Pools{API: api, Inventory: inv, Background: bg}, nil
}

// Start starts every pool
func (p *Pools) Start(ctx context.Context) error {
	for _, pool := range p.all() {
		if err := pool.Start(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Stop stops every pool, sharing the ctx deadline
func (p *Pools) Stop(ctx context.Context) error {
	var errs []error
	for _, pool := range p.all() {
		if err := pool.Stop(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (p *Pools) all() []*WorkerPool {
	return []*WorkerPool{p.API, p.Inventory, p.Background}
}

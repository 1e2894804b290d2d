package event

import (
	"context"
	"sync"
	"time"

	"github.com/rasp-lab/mqtt-debug-broker/internal/logger"
)

type Callable interface {
	Invoke(ctx context.Context) error
}

// CallableFunc 将普通函数适配为 Callable
type CallableFunc func(ctx context.Context) error

func (f CallableFunc) Invoke(ctx context.Context) error {
	return f(ctx)
}

// Cleaner 收集停机时需要执行的清理动作，按注册顺序执行
type Cleaner struct {
	mu       sync.Mutex
	cleaners []Callable
	cleaning bool
}

func NewCleaner() *Cleaner {
	return &Cleaner{}
}

func (c *Cleaner) Add(callable Callable) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cleaning {
		logger.Debug("Cleaner is already shutting down, ignoring new cleaner")
		return
	}
	c.cleaners = append(c.cleaners, callable)
}

// Clean 执行所有清理动作，每个动作有独立的超时
func (c *Cleaner) Clean() {
	c.mu.Lock()
	c.cleaning = true
	cleanersCopy := make([]Callable, len(c.cleaners))
	copy(cleanersCopy, c.cleaners)
	c.mu.Unlock()

	logger.DebugF("Starting cleanup of %d registered functions", len(cleanersCopy))

	for i, callable := range cleanersCopy {
		func(idx int, cl Callable) {
			timeoutCtx, cancelFunc := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancelFunc()
			if err := cl.Invoke(timeoutCtx); err != nil {
				logger.ErrorF("Cleaner #%d (%T) failed: %v", idx+1, cl, err)
			}
		}(i, callable)
	}

	logger.Info("Cleanup finished, server offline")
}

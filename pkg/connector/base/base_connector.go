// Package base provides the BaseConnector embedded by source connectors.
// It carries the connector identity, a scoped logger, the metrics collector
// and the tracer, and guards the close lifecycle.
//
//	type MySource struct {
//	    *base.BaseConnector
//	}
//
//	func NewMySource() *MySource {
//	    return &MySource{BaseConnector: base.NewBaseConnector("my-source", core.ConnectorTypeSource, "1.0.0")}
//	}
package base

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/ajitpratap0/nebula-tiktok-ads/pkg/connector/core"
	"github.com/ajitpratap0/nebula-tiktok-ads/pkg/errors"
	"github.com/ajitpratap0/nebula-tiktok-ads/pkg/logger"
	"github.com/ajitpratap0/nebula-tiktok-ads/pkg/metrics"
	"github.com/ajitpratap0/nebula-tiktok-ads/pkg/observability"
)

// BaseConnector provides common functionality for all connectors
type BaseConnector struct {
	name          string
	connectorType core.ConnectorType
	version       string
	logger        *zap.Logger

	metricsCollector *metrics.Collector
	tracer           *observability.ConnectorTracer

	closed     bool
	closeMutex sync.Mutex
}

// NewBaseConnector creates a new base connector with the specified name, type, and version
func NewBaseConnector(name string, connectorType core.ConnectorType, version string) *BaseConnector {
	return &BaseConnector{
		name:             name,
		connectorType:    connectorType,
		version:          version,
		logger:           logger.Get().With(zap.String("connector", name)),
		metricsCollector: metrics.NewCollector(name),
		tracer:           observability.NewConnectorTracer(string(connectorType), name),
	}
}

// Name returns the connector name
func (bc *BaseConnector) Name() string {
	return bc.name
}

// Type returns the connector type
func (bc *BaseConnector) Type() core.ConnectorType {
	return bc.connectorType
}

// Version returns the connector version
func (bc *BaseConnector) Version() string {
	return bc.version
}

// GetLogger returns the connector logger
func (bc *BaseConnector) GetLogger() *zap.Logger {
	return bc.logger
}

// SetLogger replaces the connector logger
func (bc *BaseConnector) SetLogger(l *zap.Logger) {
	bc.logger = l.With(zap.String("connector", bc.name))
}

// LoggerFor returns the connector logger with the fields carried by ctx
func (bc *BaseConnector) LoggerFor(ctx context.Context) *zap.Logger {
	return logger.WithContext(ctx).With(zap.String("connector", bc.name))
}

// GetMetricsCollector returns the metrics collector
func (bc *BaseConnector) GetMetricsCollector() *metrics.Collector {
	return bc.metricsCollector
}

// Tracer returns the connector tracer
func (bc *BaseConnector) Tracer() *observability.ConnectorTracer {
	return bc.tracer
}

// CheckOpen returns an error once the connector is closed
func (bc *BaseConnector) CheckOpen() error {
	bc.closeMutex.Lock()
	defer bc.closeMutex.Unlock()
	if bc.closed {
		return errors.Newf(errors.ErrorTypeInternal, "connector %s is closed", bc.name)
	}
	return nil
}

// Close marks the connector closed. It reports whether this call closed it.
func (bc *BaseConnector) Close(_ context.Context) bool {
	bc.closeMutex.Lock()
	defer bc.closeMutex.Unlock()
	if bc.closed {
		return false
	}
	bc.closed = true
	bc.logger.Debug("connector closed", zap.Any("metrics", bc.metricsCollector.GetAll()))
	return true
}

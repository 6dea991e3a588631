// Package server exposes the HTTP API consumed by the storefront and the
// admin panel.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"lista-precios/internal/catalog"
	"lista-precios/internal/pricing"
	"lista-precios/internal/storage"
)

// Store is the persistence contract the handlers talk to. The in-memory
// view is never updated optimistically: a mutation is reported successful
// only after the store confirms it.
type Store interface {
	ListProducts(ctx context.Context) ([]catalog.Product, error)
	MaxProductID(ctx context.Context) (int64, error)
	AppendProducts(ctx context.Context, products []catalog.Product) error
	DeleteProduct(ctx context.Context, id int64) error
	DeleteAllProducts(ctx context.Context) error
	GetPricingSettings(ctx context.Context) (storage.PricingSettings, error)
	SavePricingSettings(ctx context.Context, settings storage.PricingSettings) error
}

// RateSource supplies the current dollar rate. Reads never block.
type RateSource interface {
	Current() (rate float64, updatedAt time.Time)
	Refresh(ctx context.Context) (float64, error)
}

// Notifier is told about completed imports.
type Notifier interface {
	ImportCompleted(count int, total int)
}

type Server struct {
	store    Store
	rates    RateSource
	importer *catalog.Importer
	notifier Notifier
	logger   *zap.Logger
}

func New(store Store, rates RateSource, importer *catalog.Importer, notifier Notifier, logger *zap.Logger) *Server {
	return &Server{
		store:    store,
		rates:    rates,
		importer: importer,
		notifier: notifier,
		logger:   logger,
	}
}

// Handler returns the routed handler with the middleware chain applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/public/products", s.handleListProducts)
	mux.HandleFunc("GET /api/public/config", s.handleGetConfig)

	mux.HandleFunc("POST /api/admin/config", s.handleUpdateConfig)
	mux.HandleFunc("POST /api/admin/product", s.handleAddProduct)
	mux.HandleFunc("DELETE /api/admin/product/{id}", s.handleDeleteProduct)
	mux.HandleFunc("DELETE /api/admin/products", s.handleDeleteAllProducts)
	mux.HandleFunc("POST /api/admin/import", s.handleImport)
	mux.HandleFunc("POST /api/admin/rules", s.handleAddRule)
	mux.HandleFunc("PUT /api/admin/rules/{id}", s.handleUpdateRule)
	mux.HandleFunc("DELETE /api/admin/rules/{id}", s.handleDeleteRule)
	mux.HandleFunc("GET /api/admin/export", s.handleExport)

	mux.HandleFunc("GET /healthz", s.handleHealth)

	return s.withRequestID(s.withLogging(s.withRecovery(mux)))
}

// Run serves until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string, shutdownTimeout time.Duration) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP server listening", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		s.logger.Info("HTTP server shut down gracefully")
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// currentConfig assembles the pricing configuration from the stored
// settings and the live dollar rate.
func (s *Server) currentConfig(ctx context.Context) (pricing.Config, error) {
	settings, err := s.store.GetPricingSettings(ctx)
	if err != nil {
		return pricing.Config{}, err
	}
	rate, updatedAt := s.rates.Current()
	return pricing.Config{
		DollarRate:       rate,
		ProfitMargin:     settings.ProfitMargin,
		ProfitRules:      settings.ProfitRules,
		LastDollarUpdate: updatedAt,
	}, nil
}

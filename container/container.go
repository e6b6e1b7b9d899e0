package container

import (
	"context"
	"fmt"
	"log"

	"covergate-backend/config"
	"covergate-backend/handlers"
	"covergate-backend/payments"
	"covergate-backend/services"
	"covergate-backend/storage/auth"
	"covergate-backend/storage/cover"
)

// Container holds all application dependencies
type Container struct {
	Config config.Config

	// Storage
	Store      cover.Store
	Vault      *payments.MemoryVault
	Keys       auth.KeyStore
	Challenges *auth.ChallengeStore

	// Services
	QuoteService  *services.QuoteService
	QRCodeService *services.QRCodeService
	HealthService *services.HealthService

	// Handlers
	HealthHandler  *handlers.HealthHandler
	QuoteHandler   *handlers.QuoteHandler
	CatalogHandler *handlers.CatalogHandler
	AdminHandler   *handlers.AdminHandler
	APIKeyHandler  *handlers.APIKeyHandler
}

// NewContainer creates a new dependency container
func NewContainer(ctx context.Context, cfg config.Config) (*Container, error) {
	var store cover.Store
	switch cfg.StoreDriver {
	case "postgres":
		pg, err := cover.NewPGStore(ctx, cfg.PGDSN, cfg.Seed)
		if err != nil {
			return nil, fmt.Errorf("init postgres store: %w", err)
		}
		store = pg
	default:
		mem := cover.NewMemoryStore()
		if cfg.Seed {
			if err := cover.Seed(ctx, mem); err != nil {
				return nil, fmt.Errorf("seed memory store: %w", err)
			}
		}
		store = mem
	}
	log.Printf("store driver: %s", cfg.StoreDriver)

	vault := payments.NewMemoryVault()

	var keys auth.KeyStore
	if cfg.StoreDriver == "postgres" {
		pgKeys, err := auth.NewPGAPIKeyStore(ctx, cfg.PGDSN)
		if err != nil {
			store.Close()
			return nil, fmt.Errorf("init postgres key store: %w", err)
		}
		keys = pgKeys
	} else {
		keys = auth.NewAPIKeyStore()
	}
	keys.Seed(cfg.AdminKey, auth.RoleAdmin, "seed")
	keys.Seed(cfg.OperatorKey, auth.RoleOperator, "seed")
	challenges := auth.NewChallengeStore(cfg.ChallengeTTL())

	quoteService := services.NewQuoteService(store, vault, cfg.AuthorizedSigners)
	qrService := services.NewQRCodeService()
	healthService := services.NewHealthService(quoteService)

	return &Container{
		Config:     cfg,
		Store:      store,
		Vault:      vault,
		Keys:       keys,
		Challenges: challenges,

		QuoteService:  quoteService,
		QRCodeService: qrService,
		HealthService: healthService,

		HealthHandler:  handlers.NewHealthHandler(healthService),
		QuoteHandler:   handlers.NewQuoteHandler(quoteService, qrService, keys),
		CatalogHandler: handlers.NewCatalogHandler(store, keys, quoteService),
		AdminHandler:   handlers.NewAdminHandler(quoteService),
		APIKeyHandler:  handlers.NewAPIKeyHandler(keys, keys, challenges),
	}, nil
}

// Close releases held resources.
func (c *Container) Close() {
	if c.Store != nil {
		c.Store.Close()
	}
	if c.Keys != nil {
		c.Keys.Close()
	}
}

package main

import (
	"context"
	"fmt"

	"github.com/swisscast/kaltura-migration/internal/auditlog"
	"github.com/swisscast/kaltura-migration/internal/config"
	"github.com/swisscast/kaltura-migration/internal/extract"
	"github.com/swisscast/kaltura-migration/internal/services"
	"github.com/swisscast/kaltura-migration/internal/store"
	"github.com/swisscast/kaltura-migration/pkg/kaltura"
)

// engine bundles the wired service graph shared by the CLI commands and
// the HTTP server.
type engine struct {
	cfg   *config.Config
	store *store.Store
	audit *auditlog.Logger

	scanner  *services.Scanner
	exporter *services.Exporter

	// Set by connectCatalog; commands that never talk to Kaltura leave
	// them nil.
	catalog  *kaltura.Client
	rewriter *services.Rewriter
	migrator *services.Migrator
}

func newEngine(ctx context.Context, cfg *config.Config) (*engine, error) {
	db, err := store.NewDB(cfg.Migration.DataPath)
	if err != nil {
		return nil, fmt.Errorf("opening engine database: %w", err)
	}
	st := store.NewStore(db)
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("migrating engine database: %w", err)
	}

	audit := auditlog.New(st.Logs())
	extractor := extract.New(cfg.Migration.Hosts)

	return &engine{
		cfg:      cfg,
		store:    st,
		audit:    audit,
		scanner:  services.NewScanner(st, extractor),
		exporter: services.NewExporter(st),
	}, nil
}

// connectCatalog opens the admin session against Kaltura and wires the
// services that depend on the remote catalog.
func (e *engine) connectCatalog(ctx context.Context) error {
	client, err := kaltura.NewClient(ctx, kaltura.Config{
		ServiceURL:  e.cfg.Kaltura.APIURL,
		PartnerID:   e.cfg.Kaltura.PartnerID,
		AdminSecret: e.cfg.Kaltura.AdminSecret,
		UserID:      e.cfg.Kaltura.UserID,
	})
	if err != nil {
		return fmt.Errorf("connecting to kaltura: %w", err)
	}
	client.SetAudit(e.audit)

	embed := services.EmbedBuilder{
		ServiceURL:    e.cfg.Kaltura.APIURL,
		PartnerID:     e.cfg.Kaltura.PartnerID,
		UIConfID:      e.cfg.Kaltura.UIConfID,
		KafURI:        e.cfg.Kaltura.KafURI,
		MediaSpaceURL: e.cfg.Kaltura.MediaSpaceURL,
	}
	categories := services.NewCategories(client, e.audit, e.cfg.Migration.RootCategory, e.cfg.Kaltura.UIConfID)

	e.catalog = client
	e.rewriter = services.NewRewriter(e.store, client, embed, e.audit)
	e.migrator = services.NewMigrator(e.store, categories, e.audit)
	return nil
}

func (e *engine) close() {
	if err := e.store.Close(); err != nil {
		fmt.Printf("closing engine database: %v\n", err)
	}
}

package cmd

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jjenkins/factbase/internal/config"
	"github.com/jjenkins/factbase/internal/model"
	"github.com/jjenkins/factbase/internal/service"
	"github.com/jjenkins/factbase/internal/store"
	"github.com/sirupsen/logrus"
)

// app is the wired object graph shared by the commands.
type app struct {
	db       *sql.DB
	stores   *store.Stores
	resolver *service.AgencyResolver
	engine   *service.MergeEngine
	orch     *service.Orchestrator
	linkage  *service.LinkageService

	agencies    *service.AgenciesJob
	plum        *service.PlumJob
	legislators *service.LegislatorsJob
	regulations *service.RegulationsJob
}

func newApp(ctx context.Context, cfg *config.Config, log *logrus.Logger) (*app, error) {
	db, err := store.NewDB(cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	if err := store.Migrate(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	mappings, err := config.LoadAgencyMappings(cfg.Linkage.MappingsFile)
	if err != nil {
		db.Close()
		return nil, err
	}

	a := &app{db: db, stores: store.NewStores(db)}
	a.resolver = service.NewAgencyResolver(a.stores.Organizations, service.ResolverOptions{
		FuzzyEnabled:   cfg.Linkage.FuzzyEnabled,
		FuzzyThreshold: cfg.Linkage.FuzzyThreshold,
		Mappings:       mappings,
	}, log)
	a.engine = service.NewMergeEngine(service.MergeStores{
		Organizations: a.stores.Organizations,
		People:        a.stores.People,
		Positions:     a.stores.Positions,
		Holdings:      a.stores.Holdings,
		Regulations:   a.stores.Regulations,
	}, log)
	a.linkage = service.NewLinkageService(a.stores.Regulations, a.resolver)

	base := service.FetcherOptions{
		ConnectTimeout: cfg.HTTP.ConnectTimeout,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		MaxAttempts:    cfg.HTTP.MaxAttempts,
		BaseDelay:      cfg.HTTP.BaseDelay,
		UserAgent:      cfg.HTTP.UserAgent,
	}
	plumOpts := base
	plumOpts.ReadTimeout = cfg.Plum.ReadTimeout
	frOpts := base
	frOpts.MinInterval = cfg.FederalRegister.RateLimit

	general := service.NewFetcher(base, log)
	fr := service.NewFederalRegisterClient(service.NewFetcher(frOpts, log),
		cfg.FederalRegister.BaseURL, cfg.FederalRegister.PageSize, cfg.FederalRegister.MaxPages, log)

	a.agencies = service.NewAgenciesJob(fr, a.engine)
	a.plum = service.NewPlumJob(service.NewPlumClient(service.NewFetcher(plumOpts, log), cfg.Plum.URL), a.engine, a.resolver)
	a.legislators = service.NewLegislatorsJob(
		service.NewLegislatorsClient(general, cfg.Legislators.RawBaseURL, cfg.Legislators.APIBaseURL, cfg.Legislators.Branch),
		a.engine, cfg.Legislators.Files, cfg.Legislators.SocialFile, log)
	a.regulations = service.NewRegulationsJob(fr, a.engine, a.resolver,
		cfg.FederalRegister.DocumentTypes, cfg.FederalRegister.BackfillDays)

	a.orch = service.NewOrchestrator(
		[]service.Job{a.agencies, a.plum, a.legislators, a.regulations},
		a.stores.Markers, a.resolver,
		service.OrchestratorOptions{Concurrency: cfg.Sync.Concurrency, MaxErrorSamples: cfg.Sync.MaxErrorSamples},
		log)

	// An empty organizations table is fine; the agencies sync fills it.
	if _, err := a.resolver.Refresh(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to load agency resolver: %w", err)
	}
	return a, nil
}

func schedules(cfg *config.Config) map[model.SyncSource]string {
	return map[model.SyncSource]string{
		model.SyncAgencies:    cfg.Sync.AgenciesSchedule,
		model.SyncPlum:        cfg.Plum.Schedule,
		model.SyncLegislators: cfg.Legislators.Schedule,
		model.SyncRegulations: cfg.FederalRegister.Schedule,
	}
}

func (a *app) Close() error {
	return a.db.Close()
}

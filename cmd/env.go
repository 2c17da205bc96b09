package main

import (
	"context"
	"os"

	"github.com/k-capehart/go-salesforce/v3"
	"github.com/rotisserie/eris"

	"github.com/sells-group/gemsieve/internal/pipeline"
	"github.com/sells-group/gemsieve/internal/store"
	"github.com/sells-group/gemsieve/pkg/ai"
	"github.com/sells-group/gemsieve/pkg/gmail"
	sfpkg "github.com/sells-group/gemsieve/pkg/salesforce"
)

// openStore opens the configured backend (Postgres when DATABASE_URL is
// set, SQLite otherwise) and applies migrations.
func openStore(ctx context.Context) (*store.DB, error) {
	db, err := store.Open(cfg.Storage.SQLitePath, cfg.Storage.DatabaseURL)
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, eris.Wrap(err, "migrate store")
	}
	return db, nil
}

// newProvider builds the AI provider. spec overrides the configured
// provider:model tag when non-empty.
func newProvider(spec string) (ai.Provider, error) {
	if spec == "" {
		spec = cfg.AI.ModelSpec()
	}
	return ai.New(ai.Options{
		Spec:            spec,
		Model:           cfg.AI.Model,
		OllamaBaseURL:   cfg.AI.OllamaBaseURL,
		OllamaAPIKey:    cfg.AI.OllamaAPIKey,
		OpenAIBaseURL:   cfg.AI.OpenAIBaseURL,
		OpenAIAPIKey:    cfg.AI.OpenAIAPIKey,
		AnthropicAPIKey: cfg.AI.AnthropicAPIKey,
		TimeoutSecs:     cfg.AI.TimeoutSecs,
	})
}

// newOrchestrator wires the stage orchestrator over an open store. The
// provider may be nil for stages that never call the model.
func newOrchestrator(db *store.DB, provider ai.Provider) *pipeline.Orchestrator {
	return pipeline.New(db, provider, cfg)
}

// initGmail authenticates against the Gmail API using the configured
// OAuth credentials and token files.
func initGmail(ctx context.Context) (*gmail.Client, error) {
	svc, err := gmail.Authenticate(ctx, cfg.Gmail.CredentialsFile, cfg.Gmail.TokenFile)
	if err != nil {
		return nil, eris.Wrap(err, "gmail auth")
	}
	return gmail.NewClient(ctx, svc)
}

// initSalesforce logs in with the JWT bearer flow for lead export.
func initSalesforce() (sfpkg.Client, error) {
	if cfg.Salesforce.ClientID == "" {
		return nil, eris.New("salesforce client ID is required (GEMSIEVE_SALESFORCE_CLIENT_ID)")
	}

	pemData, err := os.ReadFile(cfg.Salesforce.KeyPath)
	if err != nil {
		return nil, eris.Wrap(err, "read salesforce JWT private key")
	}

	sf, err := salesforce.Init(salesforce.Creds{
		Domain:         cfg.Salesforce.LoginURL,
		Username:       cfg.Salesforce.Username,
		ConsumerKey:    cfg.Salesforce.ClientID,
		ConsumerRSAPem: string(pemData),
	})
	if err != nil {
		return nil, eris.Wrap(err, "init salesforce")
	}

	return sfpkg.NewClient(sf), nil
}

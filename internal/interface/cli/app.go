package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/neilberkman/thinkchat/internal/core/conversation"
	"github.com/neilberkman/thinkchat/internal/core/db"
	"github.com/neilberkman/thinkchat/internal/core/llm"
	"github.com/neilberkman/thinkchat/internal/core/models"
	"github.com/neilberkman/thinkchat/internal/core/store"
	"github.com/rs/zerolog/log"
)

// app bundles the store and, for interactive commands, the controller
type app struct {
	database   *db.DB
	store      *store.Store
	controller *conversation.Controller
}

// openBackend returns the persistence substrate selected by --db/--ephemeral
func openBackend() (store.Backend, *db.DB, error) {
	if ephemeral {
		return store.NewMemoryBackend(), nil, nil
	}
	database, err := db.New(dbPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open database: %w", err)
	}
	return database, database, nil
}

// openApp loads the session store. A history that cannot be read is
// replaced by a fresh session, as on first start.
func openApp(ctx context.Context, withController bool) (*app, error) {
	backend, database, err := openBackend()
	if err != nil {
		return nil, err
	}

	st := store.New(backend,
		store.WithKey(cfg.StorageKey),
		store.WithLogger(log.Logger.With().Str("component", "store").Logger()),
	)
	if err := st.Load(ctx); err != nil {
		var rerr *store.ReadError
		if !errors.As(err, &rerr) {
			_ = st.Close()
			if database != nil {
				_ = database.Close()
			}
			return nil, err
		}
		st.EnsureSession()
	}

	a := &app{database: database, store: st}
	if withController {
		gw, err := newGateway(ctx)
		if err != nil {
			a.close()
			return nil, err
		}
		a.controller = conversation.New(st, gw,
			conversation.WithLogger(log.Logger.With().Str("component", "conversation").Logger()),
		)
		if active, ok := st.Active(); ok {
			if err := a.controller.Activate(ctx, active.ID); err != nil {
				log.Warn().Err(err).Msg("failed to activate session")
			}
		}
	}
	return a, nil
}

func (a *app) close() {
	if err := a.store.Close(); err != nil {
		log.Warn().Err(err).Msg("final history write failed")
	}
	if a.database != nil {
		_ = a.database.Close()
	}
}

// newGateway wires the Gemini gateway from config. Without an API key the
// gateway still works for the url image backend; text turns fail with
// llm.ErrNotConfigured.
func newGateway(ctx context.Context) (llm.Gateway, error) {
	logger := log.Logger.With().Str("component", "llm").Logger()

	system, err := llm.RenderSystemInstruction(cfg.SystemInstruction, cfg.AssistantName)
	if err != nil {
		return nil, err
	}

	var (
		starter llm.ChatStarter
		images  llm.ImageBackend
	)
	client, err := llm.NewGenAIClient(ctx, cfg.APIKey)
	switch {
	case errors.Is(err, llm.ErrNotConfigured):
		logger.Warn().Msg("no API key configured, set GEMINI_API_KEY or api_key in config.toml")
	case err != nil:
		return nil, err
	default:
		starter = llm.NewGenAIStarter(client, cfg.Model)
	}

	switch cfg.ImageBackend {
	case "url":
		images = llm.NewURLImageBackend(cfg.ImageURLBase)
	default:
		if client != nil {
			images = llm.NewImagenBackend(client, cfg.ImageModel)
		}
	}

	return llm.NewGemini(starter, images, system, llm.WithGatewayLogger(logger)), nil
}

// readSessions decodes the persisted collection without creating or
// writing anything
func readSessions(ctx context.Context) ([]models.ChatSession, error) {
	backend, database, err := openBackend()
	if err != nil {
		return nil, err
	}
	if database != nil {
		defer func() { _ = database.Close() }()
	}

	data, ok, err := backend.Get(ctx, cfg.StorageKey)
	if err != nil {
		return nil, &store.ReadError{Key: cfg.StorageKey, Err: err}
	}
	if !ok {
		return nil, nil
	}
	sessions, err := store.Decode(data)
	if err != nil {
		return nil, &store.ReadError{Key: cfg.StorageKey, Err: err}
	}
	return sessions, nil
}

// findSession resolves a full id or a unique id prefix
func findSession(sessions []models.ChatSession, id string) (models.ChatSession, error) {
	var match *models.ChatSession
	for i := range sessions {
		if sessions[i].ID == id {
			return sessions[i], nil
		}
		if len(id) >= 4 && len(sessions[i].ID) > len(id) && sessions[i].ID[:len(id)] == id {
			if match != nil {
				return models.ChatSession{}, fmt.Errorf("session id %q is ambiguous", id)
			}
			match = &sessions[i]
		}
	}
	if match == nil {
		return models.ChatSession{}, fmt.Errorf("%w: %s", store.ErrSessionNotFound, id)
	}
	return *match, nil
}

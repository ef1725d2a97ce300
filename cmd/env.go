package main

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/mgijax/srcload/internal/source"
	"github.com/mgijax/srcload/internal/store"
	"github.com/mgijax/srcload/internal/vocab"
)

// sourceEnv holds the gateway, vocabulary, and resolver shared by the load
// and resolve commands.
type sourceEnv struct {
	Gateway  *store.PostgresGateway
	Vocab    *vocab.PostgresResolver
	Policy   source.Policy
	Cache    *source.EquivalenceCache
	Resolver *source.Resolver
}

// Close releases the database pool.
func (e *sourceEnv) Close() {
	if e.Gateway != nil {
		_ = e.Gateway.Close()
	}
}

// envOptions override configured settings for one command.
type envOptions struct {
	Policy    string
	CacheMode source.CacheMode
}

// initSourceEnv connects to MGD, preloads the vocabularies, and builds the
// policy, equivalence cache, and resolver. Callers should defer env.Close().
func initSourceEnv(ctx context.Context, opts envOptions) (*sourceEnv, error) {
	cloneMode, err := source.ParseCacheMode(cfg.Source.CloneCacheMode)
	if err != nil {
		return nil, err
	}

	gw, err := store.NewPostgres(ctx, cfg.Store.DatabaseURL, &cfg.Store.Pool, store.GatewayOptions{
		CloneCacheMode: cloneMode,
		CloneCacheSize: cfg.Source.CloneCacheSize,
	})
	if err != nil {
		return nil, err
	}
	env := &sourceEnv{Gateway: gw}

	env.Vocab = vocab.NewPostgresResolver(gw.Pool())
	if err := env.Vocab.Preload(ctx); err != nil {
		env.Close()
		return nil, err
	}
	if cfg.Source.TranslationFile != "" {
		tf, err := vocab.LoadTranslations(cfg.Source.TranslationFile)
		if err != nil {
			env.Close()
			return nil, err
		}
		tf.Apply(env.Vocab)
	}

	sentinels, err := source.LoadSentinels(ctx, env.Vocab)
	if err != nil {
		env.Close()
		return nil, eris.Wrap(err, "load sentinels")
	}

	policyName := cfg.Source.Policy
	if opts.Policy != "" {
		policyName = opts.Policy
	}
	env.Policy, err = source.NewPolicy(policyName, env.Vocab, sentinels)
	if err != nil {
		env.Close()
		return nil, err
	}

	mode := opts.CacheMode
	if mode == "" {
		if mode, err = source.ParseCacheMode(cfg.Source.CacheMode); err != nil {
			env.Close()
			return nil, err
		}
	}
	env.Cache, err = source.NewEquivalenceCache(ctx, gw, mode, source.Collapsible)
	if err != nil {
		env.Close()
		return nil, err
	}
	env.Resolver = source.NewResolver(env.Policy, env.Cache, gw)

	zap.L().Info("source environment ready",
		zap.String("policy", env.Policy.Name()),
		zap.String("cache_mode", string(mode)),
		zap.Int("cached_sources", env.Cache.Len()),
	)
	return env, nil
}

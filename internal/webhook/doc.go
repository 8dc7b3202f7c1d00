// Package webhook receives GitHub webhook deliveries, checks that they are
// genuine and routes them to the hook registered for their event.
//
// # Security Model
//
//   - Origin check: the client address, after skipping trusted proxy hops in
//     X-Forwarded-For, must fall inside GitHub's published hook ranges
//   - Signature check: X-Hub-Signature must equal "sha1=" + HMAC-SHA1 of the
//     raw body, compared in constant time
//   - Both checks can be toggled at runtime; they default to on
//   - Body size limits are enforced before any check runs
//   - Request logging excludes payloads and signatures
//
// # Configuration
//
// Validation settings live in hookgate.yaml:
//
//	server:
//	  listen: "127.0.0.1:8081"
//	  path: /hooks
//	  max_body_size: 1MB
//	validation:
//	  secret_env: GITHUB_WEBHOOK_SECRET
//	  trusted_proxy_hops: 1
//
// # Request Flow
//
//  1. HTTP POST arrives at the configured path
//  2. Body size checked (413 if too large)
//  3. Origin check (403 if untrusted, 503 if the ranges are unavailable)
//  4. Signature check (400 if missing or wrong)
//  5. X-GitHub-Event, X-GitHub-Delivery and the JSON body checked (400)
//  6. The registered hook runs and its response is returned as-is;
//     unregistered events get 200 "Hook not used"
//
// Failures are returned as JSON {"error": "..."}.
//
// # Example Usage
//
//	cache := allowlist.NewCache(allowlist.NewMetaFetcher(allowlist.DefaultMetaURL, nil))
//	validator := webhook.NewValidator(cfg.Validation, cache, logger)
//	registry := webhook.NewRegistry(logger)
//	registry.MustRegister("ping", webhook.HandlerFunc(func(ctx context.Context, d webhook.Delivery) (webhook.Response, error) {
//		return webhook.Text(http.StatusOK, "pong"), nil
//	}))
//
//	server := webhook.New(cfg, validator, registry, cache, logger)
//	if err := server.Start(ctx); err != nil {
//		log.Fatal(err)
//	}
package webhook

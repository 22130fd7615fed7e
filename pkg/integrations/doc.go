// Package integrations provides the HTTP plumbing shared by the planning-tool
// API clients.
//
// # Overview
//
// Each upstream API has its own subpackage:
//
//   - [productboard]: features, components, products and initiatives
//   - [azuredevops]: WIQL queries and work item create/update
//
// # Client Pattern
//
// Subpackage clients embed [*Client] and add a base URL:
//
//	pb := productboard.NewClient(c, token, "", time.Hour)
//	features, err := pb.ListFeatures(ctx, false) // false = use cache
//
// The shared [Client] handles:
//   - default headers (auth, API version)
//   - JSON request and response bodies, including JSON Patch
//   - status classification into [ErrNotFound], [ErrUnauthorized],
//     [ErrConflict], [ErrNetwork] and rate limiting
//   - retry with backoff for 5xx and 429 responses
//   - response caching via [cache.Cache]
//   - request/response events via [observability.HTTP]
//
// [productboard]: github.com/matzehuels/planbridge/pkg/integrations/productboard
// [azuredevops]: github.com/matzehuels/planbridge/pkg/integrations/azuredevops
// [cache.Cache]: github.com/matzehuels/planbridge/pkg/cache.Cache
// [observability.HTTP]: github.com/matzehuels/planbridge/pkg/observability.HTTP
package integrations

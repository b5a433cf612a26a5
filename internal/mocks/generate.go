package mocks

// Mock generation directives. Run `go generate ./internal/mocks/` to regenerate.

//go:generate go run go.uber.org/mock/mockgen -source=../core/cache.go -destination=mock_cache.go -package=mocks
//go:generate go run go.uber.org/mock/mockgen -source=../core/provider.go -destination=mock_provider.go -package=mocks
//go:generate go run go.uber.org/mock/mockgen -source=../core/metrics.go -destination=mock_metrics.go -package=mocks

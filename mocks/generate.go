package mocks

//go:generate mockgen -destination=./mock_provider.go -package=mocks github.com/rxtech-lab/argo-bot/pkg/marketdata Provider
//go:generate mockgen -destination=./mock_exchange.go -package=mocks github.com/rxtech-lab/argo-bot/internal/exchange Client
//go:generate mockgen -destination=./mock_strategy.go -package=mocks github.com/rxtech-lab/argo-bot/internal/strategy Strategy
//go:generate mockgen -destination=./mock_publisher.go -package=mocks github.com/rxtech-lab/argo-bot/internal/events Publisher

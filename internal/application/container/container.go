package container

import (
	"quantstore/internal/application/port"
	"quantstore/internal/application/service"
)

// Repositories groups the stores the services are built on.
type Repositories struct {
	Klines    port.KlineRepositories
	Assets    port.AssetRepository
	Snapshots port.AssetSnapshotRepository
	Orders    port.OrderRepository
}

type Container struct {
	repos Repositories
	pub   port.EventPublisher

	klineService *service.KlineService
	orderService *service.OrderService
	assetService *service.AssetService
}

func New(repos Repositories, pub port.EventPublisher) *Container {
	return &Container{
		repos: repos,
		pub:   pub,
	}
}

func (c *Container) Repositories() Repositories {
	return c.repos
}

func (c *Container) Publisher() port.EventPublisher {
	return c.pub
}

func (c *Container) KlineService() *service.KlineService {
	if c.klineService == nil {
		c.klineService = service.NewKlineService(c.repos.Klines, c.pub)
	}
	return c.klineService
}

func (c *Container) OrderService() *service.OrderService {
	if c.orderService == nil {
		c.orderService = service.NewOrderService(c.repos.Orders, c.pub)
	}
	return c.orderService
}

func (c *Container) AssetService() *service.AssetService {
	if c.assetService == nil {
		c.assetService = service.NewAssetService(c.repos.Assets, c.repos.Snapshots)
	}
	return c.assetService
}

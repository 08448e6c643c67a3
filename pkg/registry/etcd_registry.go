package registry

import (
	"context"
	"fmt"
	"time"

	clientv3 "go.etcd.io/etcd/client/v3"

	"deepfake-service/pkg/config"
	"deepfake-service/pkg/logger"
)

// ServiceRegistry registers the HTTP endpoint of this instance into etcd under a lease.
type ServiceRegistry struct {
	client      *clientv3.Client
	serviceName string
	serviceID   string
	serviceAddr string
	ttl         int64
	leaseID     clientv3.LeaseID
	cancel      context.CancelFunc
}

// NewServiceRegistry creates a new ServiceRegistry instance.
func NewServiceRegistry(etcdCfg config.EtcdConfig, svcCfg config.ServiceRegistryConfig, serviceAddr string) (*ServiceRegistry, error) {
	client, err := clientv3.New(clientv3.Config{
		Endpoints:   etcdCfg.Endpoints,
		DialTimeout: etcdCfg.DialTimeout,
		Username:    etcdCfg.Username,
		Password:    etcdCfg.Password,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create etcd client: %w", err)
	}

	ttl := int64(svcCfg.TTL / time.Second)
	if ttl <= 0 {
		ttl = 30
	}
	serviceID := svcCfg.ServiceID
	if serviceID == "" {
		serviceID = serviceAddr
	}

	return &ServiceRegistry{
		client:      client,
		serviceName: svcCfg.ServiceName,
		serviceID:   serviceID,
		serviceAddr: serviceAddr,
		ttl:         ttl,
	}, nil
}

func (r *ServiceRegistry) Name() string { return "etcdRegistry" }

// Key returns the etcd key this instance is registered under.
func (r *ServiceRegistry) Key() string {
	return fmt.Sprintf("/services/%s/%s", r.serviceName, r.serviceID)
}

// Start grants a lease, registers the instance and keeps the lease alive until Stop.
func (r *ServiceRegistry) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	r.cancel = cancel

	leaseResp, err := r.client.Grant(runCtx, r.ttl)
	if err != nil {
		cancel()
		return fmt.Errorf("failed to grant lease: %w", err)
	}
	r.leaseID = leaseResp.ID

	if _, err := r.client.Put(runCtx, r.Key(), r.serviceAddr, clientv3.WithLease(r.leaseID)); err != nil {
		cancel()
		return fmt.Errorf("failed to register service: %w", err)
	}

	ch, err := r.client.KeepAlive(runCtx, r.leaseID)
	if err != nil {
		cancel()
		return fmt.Errorf("failed to keep alive lease: %w", err)
	}
	go r.drainKeepAlive(runCtx, ch)

	logger.Infof("Service registered key=%s addr=%s", r.Key(), r.serviceAddr)
	return nil
}

func (r *ServiceRegistry) drainKeepAlive(ctx context.Context, ch <-chan *clientv3.LeaseKeepAliveResponse) {
	for {
		select {
		case <-ctx.Done():
			return
		case ka := <-ch:
			if ka == nil {
				logger.Warnf("etcd keep alive channel closed key=%s", r.Key())
				return
			}
		}
	}
}

// Stop revokes the lease and closes the etcd client.
func (r *ServiceRegistry) Stop() error {
	if r.cancel != nil {
		r.cancel()
	}
	if r.leaseID != 0 {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if _, err := r.client.Revoke(ctx, r.leaseID); err != nil {
			logger.Warnf("Failed to revoke lease key=%s error=%v", r.Key(), err)
		}
	}
	if err := r.client.Close(); err != nil {
		return fmt.Errorf("failed to close etcd client: %w", err)
	}
	logger.Infof("Service deregistered id=%s", r.serviceID)
	return nil
}

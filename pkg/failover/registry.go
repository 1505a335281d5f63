package failover

import "sync/atomic"

// Registry holds the process's streaming failover service, if any. An empty registry
// is a normal state: backfill-only processes never register a service.
type Registry struct {
	svc atomic.Pointer[Service]
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Set registers svc, replacing any previous service.
func (r *Registry) Set(svc *Service) {
	r.svc.Store(svc)
}

// Clear removes the registered service.
func (r *Registry) Clear() {
	r.svc.Store(nil)
}

// Service returns the registered service and whether one is present.
func (r *Registry) Service() (*Service, bool) {
	svc := r.svc.Load()
	return svc, svc != nil
}

// Require returns the registered service or ErrServiceAbsent.
func (r *Registry) Require() (*Service, error) {
	if svc, ok := r.Service(); ok {
		return svc, nil
	}
	return nil, ErrServiceAbsent
}

package srv

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

type recorder struct {
	mu    sync.Mutex
	order []string
}

func (r *recorder) add(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.order = append(r.order, name)
}

type named struct {
	name string
	rec  *recorder
	err  error
}

func (n *named) Name() string                       { return n.name }
func (n *named) Start(ctx context.Context) error    { return nil }
func (n *named) Shutdown(ctx context.Context) error { n.rec.add(n.name); return n.err }

func TestShutdown_ReverseOrder(t *testing.T) {
	rec := &recorder{}
	services := []Service{
		NewCleanup("storage", func() error { rec.add("storage"); return nil }),
		&named{name: "poller", rec: rec},
		&named{name: "api", rec: rec, err: errors.New("busy")},
	}

	failed := Shutdown(context.Background(), services)
	assert.Equal(t, 1, failed)
	assert.Equal(t, []string{"api", "poller", "storage"}, rec.order)
}

func TestShutdownServices_WaitsForCancel(t *testing.T) {
	rec := &recorder{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ShutdownServices(ctx, []Service{&named{name: "poller", rec: rec}})
	assert.Equal(t, []string{"poller"}, rec.order)
}

func TestName(t *testing.T) {
	assert.Equal(t, "storage", Name(NewCleanup("storage", nil)))
	assert.Equal(t, "poller", Name(&named{name: "poller"}))

	type bare struct{ Service }
	assert.Equal(t, "srv.bare", Name(bare{}))
}

func TestCleanup_NilFunc(t *testing.T) {
	assert.NoError(t, NewCleanup("noop", nil).Shutdown(context.Background()))
}

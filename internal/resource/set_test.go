package resource

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

type fakeResource struct {
	name  string
	err   error
	order *[]string
}

func (f *fakeResource) Name() string { return f.name }
func (f *fakeResource) Close() error {
	*f.order = append(*f.order, f.name)
	return f.err
}

func TestSetClosesInReverseOrder(t *testing.T) {
	var order []string
	s := &Set{}
	s.Add(&fakeResource{name: "redis", order: &order})
	s.Add(&fakeResource{name: "kafka", order: &order, err: errors.New("broker gone")})
	s.Add(nil)
	s.Add(&fakeResource{name: "minio", order: &order})

	err := s.CloseAll()
	assert.ErrorContains(t, err, "close kafka: broker gone")
	assert.Equal(t, []string{"minio", "kafka", "redis"}, order)

	assert.NoError(t, s.CloseAll())
	assert.Len(t, order, 3)
}

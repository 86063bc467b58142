package etcd

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.etcd.io/etcd/api/v3/mvccpb"
	clientv3 "go.etcd.io/etcd/client/v3"
)

// memKV es un KV en memoria para pruebas
type memKV struct {
	mu      sync.Mutex
	data    map[string]string
	failGet bool
}

func newMemKV(data map[string]string) *memKV {
	if data == nil {
		data = map[string]string{}
	}
	return &memKV{data: data}
}

func (m *memKV) Get(ctx context.Context, key string, opts ...clientv3.OpOption) (*clientv3.GetResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failGet {
		return nil, errors.New("error simulado en Get")
	}
	resp := &clientv3.GetResponse{}
	if v, ok := m.data[key]; ok {
		resp.Kvs = []*mvccpb.KeyValue{{Key: []byte(key), Value: []byte(v)}}
		resp.Count = 1
	}
	return resp, nil
}

func (m *memKV) Put(ctx context.Context, key, val string, opts ...clientv3.OpOption) (*clientv3.PutResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = val
	return &clientv3.PutResponse{}, nil
}

func (m *memKV) Delete(ctx context.Context, key string, opts ...clientv3.OpOption) (*clientv3.DeleteResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return &clientv3.DeleteResponse{}, nil
}

func newTestClient(data map[string]string) (*Client, *memKV) {
	kv := newMemKV(data)
	return NewWithKV(kv, "fixgate", "test", time.Second), kv
}

func TestClient_GetVar(t *testing.T) {
	c, _ := newTestClient(map[string]string{"server/listen_addr": ":6001"})
	ctx := context.Background()

	v, err := c.GetVar(ctx, "server/listen_addr")
	require.NoError(t, err)
	assert.Equal(t, ":6001", v)

	_, err = c.GetVar(ctx, "missing")
	assert.Error(t, err, "una clave ausente debe retornar error")

	v, err = c.GetVarWithDefault(ctx, "missing", "fallback")
	assert.NoError(t, err)
	assert.Equal(t, "fallback", v)
}

func TestClient_TypedGetters(t *testing.T) {
	c, _ := newTestClient(map[string]string{
		"int":      " 42 ",
		"bad-int":  "abc",
		"bool":     "true",
		"bad-bool": "maybe",
		"dur":      "250",
		"list":     "a, b,,c ",
	})
	ctx := context.Background()

	n, err := c.GetVarInt(ctx, "int")
	require.NoError(t, err)
	assert.Equal(t, 42, n)

	n, _ = c.GetVarIntWithDefault(ctx, "bad-int", 7)
	assert.Equal(t, 7, n, "un entero inválido debe usar el default")

	b, _ := c.GetVarBoolWithDefault(ctx, "bool", false)
	assert.True(t, b)
	b, _ = c.GetVarBoolWithDefault(ctx, "bad-bool", true)
	assert.True(t, b)

	d, _ := c.GetVarDurationWithDefault(ctx, "dur", time.Second)
	assert.Equal(t, 250*time.Millisecond, d)
	d, _ = c.GetVarDurationWithDefault(ctx, "missing", time.Second)
	assert.Equal(t, time.Second, d)

	l, _ := c.GetVarListWithDefault(ctx, "list", nil)
	assert.Equal(t, []string{"a", "b", "c"}, l)
	l, _ = c.GetVarListWithDefault(ctx, "missing", []string{"x"})
	assert.Equal(t, []string{"x"}, l)
}

func TestClient_SetAndDelete(t *testing.T) {
	c, kv := newTestClient(nil)
	ctx := context.Background()

	require.NoError(t, c.SetVar(ctx, "delivery/sink", "kafka"))
	assert.Equal(t, "kafka", kv.data["delivery/sink"])

	require.NoError(t, c.DeleteVar(ctx, "delivery/sink"))
	_, err := c.GetVar(ctx, "delivery/sink")
	assert.Error(t, err)
}

func TestClient_GetFailureUsesDefault(t *testing.T) {
	c, kv := newTestClient(map[string]string{"k": "v"})
	kv.failGet = true

	v, err := c.GetVarWithDefault(context.Background(), "k", "def")
	assert.NoError(t, err)
	assert.Equal(t, "def", v)
}

func TestNamespaceAndEnv(t *testing.T) {
	c, _ := newTestClient(nil)
	assert.Equal(t, "/fixgate/test/", c.NamespacePrefix())
	assert.Equal(t, "test", c.Env())
	assert.NoError(t, c.Close())
}

func TestEndpointsFromEnv(t *testing.T) {
	t.Setenv("ETCD_ENDPOINTS", "http://a:2379, http://b:2379,")
	assert.Equal(t, []string{"http://a:2379", "http://b:2379"}, EndpointsFromEnv())

	t.Setenv("ETCD_ENDPOINTS", "")
	assert.Nil(t, EndpointsFromEnv())
}

package etcd

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	clientv3 "go.etcd.io/etcd/client/v3"
	"go.etcd.io/etcd/client/v3/namespace"
)

const (
	defaultTimeout = 5
	envEndpoints   = "ETCD_ENDPOINTS"
	envTimeout     = "ETCD_TIMEOUT"
	envScope       = "ENV"
)

type (
	// KV define las operaciones básicas que nos interesan de etcd (facilita mocking).
	KV interface {
		// Get obtiene un valor de etcd por su clave
		Get(ctx context.Context, key string, opts ...clientv3.OpOption) (*clientv3.GetResponse, error)
		// Put establece un valor en etcd para una clave
		Put(ctx context.Context, key, val string, opts ...clientv3.OpOption) (*clientv3.PutResponse, error)
		// Delete elimina una clave de etcd
		Delete(ctx context.Context, key string, opts ...clientv3.OpOption) (*clientv3.DeleteResponse, error)
	}

	// Client encapsula la funcionalidad del cliente etcd con namespace configurado
	Client struct {
		raw     *clientv3.Client // cliente real (nil con NewWithKV)
		kv      KV               // namespaced KV
		app     string           // nombre de la aplicación
		env     string           // entorno (development, testing, production)
		timeout time.Duration    // timeout para operaciones
	}
)

// ---------- Constructor ----------

// Option define una función que modifica la configuración del cliente
type Option func(*config)

// config contiene la configuración para el cliente etcd
type config struct {
	endpoints []string      // lista de endpoints de etcd
	timeout   time.Duration // timeout para operaciones
	app       string        // nombre de la aplicación
	env       string        // entorno (development, testing, production)
	prefix    string        // prefijo personalizado (opcional)
}

// defaultConfig crea una configuración por defecto basada en variables de entorno
func defaultConfig() *config {
	timeout := defaultTimeout
	if i, err := strconv.Atoi(os.Getenv(envTimeout)); err == nil {
		timeout = i
	}

	endpoints := EndpointsFromEnv()
	if len(endpoints) == 0 {
		endpoints = []string{"http://localhost:2379"}
	}

	return &config{
		endpoints: endpoints,
		timeout:   time.Duration(timeout) * time.Second,
		app:       "default",
		env:       firstNonEmpty(os.Getenv(envScope), "development"),
	}
}

// WithEndpoints establece los endpoints del servidor etcd
func WithEndpoints(eps ...string) Option { return func(c *config) { c.endpoints = eps } }

// WithTimeout establece el timeout para las operaciones del cliente
func WithTimeout(t time.Duration) Option { return func(c *config) { c.timeout = t } }

// WithApp establece el nombre de la aplicación para el namespace
func WithApp(name string) Option { return func(c *config) { c.app = name } }

// WithEnv establece el entorno para el namespace
func WithEnv(env string) Option { return func(c *config) { c.env = env } }

// WithPrefix establece un prefijo personalizado para el namespace
func WithPrefix(p string) Option { return func(c *config) { c.prefix = p } }

// EndpointsFromEnv extrae la lista de endpoints del clúster leyendo la variable ETCD_ENDPOINTS.
// Devuelve nil si la variable no está definida o está vacía.
func EndpointsFromEnv() []string {
	return splitCSV(os.Getenv(envEndpoints))
}

// New crea un nuevo cliente etcd con la configuración proporcionada
func New(opts ...Option) (*Client, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	cli, err := clientv3.New(clientv3.Config{
		Endpoints:   cfg.endpoints,
		DialTimeout: cfg.timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("error creating etcd client: %w", err)
	}

	// prefijo: /APP/ENV/
	if cfg.prefix == "" {
		cfg.prefix = fmt.Sprintf("/%s/%s/", cfg.app, cfg.env)
	}

	return &Client{
		raw:     cli,
		kv:      namespace.NewKV(cli, cfg.prefix),
		app:     cfg.app,
		env:     cfg.env,
		timeout: cfg.timeout,
	}, nil
}

// NewWithKV crea un cliente sobre un KV ya namespaced (tests, embebidos).
func NewWithKV(kv KV, app, env string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout * time.Second
	}
	return &Client{kv: kv, app: app, env: env, timeout: timeout}
}

// ---------- Operaciones de alto nivel ----------

// NamespacePrefix devuelve el prefijo absoluto configurado para el cliente,
// con formato "/<app>/<env>/".
func (c *Client) NamespacePrefix() string {
	return fmt.Sprintf("/%s/%s/", c.app, c.env)
}

// Env retorna el entorno del namespace.
func (c *Client) Env() string {
	return c.env
}

// GetVar obtiene una variable usando el patrón de namespace configurado
func (c *Client) GetVar(ctx context.Context, key string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.kv.Get(ctx, key)
	if err != nil {
		return "", fmt.Errorf("failed to get key %s: %w", key, err)
	}
	if len(resp.Kvs) == 0 {
		return "", fmt.Errorf("key not found: %s", key)
	}

	return string(resp.Kvs[0].Value), nil
}

// GetVarWithDefault obtiene una variable o devuelve un valor por defecto si no existe
func (c *Client) GetVarWithDefault(ctx context.Context, key, defaultValue string) (string, error) {
	value, err := c.GetVar(ctx, key)
	if err != nil {
		return defaultValue, nil
	}
	return value, nil
}

// GetVarInt obtiene una variable como entero
func (c *Client) GetVarInt(ctx context.Context, key string) (int, error) {
	value, err := c.GetVar(ctx, key)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(value))
}

// GetVarIntWithDefault obtiene una variable como entero o devuelve un valor por defecto
func (c *Client) GetVarIntWithDefault(ctx context.Context, key string, defaultValue int) (int, error) {
	value, err := c.GetVarInt(ctx, key)
	if err != nil {
		return defaultValue, nil
	}
	return value, nil
}

// GetVarBool obtiene una variable como booleano
func (c *Client) GetVarBool(ctx context.Context, key string) (bool, error) {
	value, err := c.GetVar(ctx, key)
	if err != nil {
		return false, err
	}
	return strconv.ParseBool(strings.TrimSpace(value))
}

// GetVarBoolWithDefault obtiene una variable como booleano o devuelve un valor por defecto
func (c *Client) GetVarBoolWithDefault(ctx context.Context, key string, defaultValue bool) (bool, error) {
	value, err := c.GetVarBool(ctx, key)
	if err != nil {
		return defaultValue, nil
	}
	return value, nil
}

// GetVarDuration obtiene una variable como duración (en milisegundos)
func (c *Client) GetVarDuration(ctx context.Context, key string) (time.Duration, error) {
	value, err := c.GetVarInt(ctx, key)
	if err != nil {
		return 0, err
	}
	return time.Duration(value) * time.Millisecond, nil
}

// GetVarDurationWithDefault obtiene una variable como duración o devuelve un valor por defecto
func (c *Client) GetVarDurationWithDefault(ctx context.Context, key string, defaultValue time.Duration) (time.Duration, error) {
	value, err := c.GetVarDuration(ctx, key)
	if err != nil {
		return defaultValue, nil
	}
	return value, nil
}

// GetVarList obtiene una variable CSV como lista (valores vacíos descartados)
func (c *Client) GetVarList(ctx context.Context, key string) ([]string, error) {
	value, err := c.GetVar(ctx, key)
	if err != nil {
		return nil, err
	}
	return splitCSV(value), nil
}

// GetVarListWithDefault obtiene una lista CSV o devuelve un valor por defecto
func (c *Client) GetVarListWithDefault(ctx context.Context, key string, defaultValue []string) ([]string, error) {
	value, err := c.GetVarList(ctx, key)
	if err != nil || len(value) == 0 {
		return defaultValue, nil
	}
	return value, nil
}

// SetVar establece una variable usando el patrón de namespace configurado
func (c *Client) SetVar(ctx context.Context, key, val string) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	_, err := c.kv.Put(ctx, key, val)
	if err != nil {
		return fmt.Errorf("failed to set key %s: %w", key, err)
	}

	return nil
}

// DeleteVar elimina una variable usando el patrón de namespace configurado
func (c *Client) DeleteVar(ctx context.Context, key string) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	_, err := c.kv.Delete(ctx, key)
	if err != nil {
		return fmt.Errorf("failed to delete key %s: %w", key, err)
	}

	return nil
}

// Close cierra la conexión con etcd
func (c *Client) Close() error {
	if c.raw != nil {
		return c.raw.Close()
	}
	return nil
}

// firstNonEmpty devuelve el primer valor no vacío de la lista
func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

// splitCSV separa por comas y descarta elementos vacíos
func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	var clean []string
	for _, p := range strings.Split(s, ",") {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			clean = append(clean, trimmed)
		}
	}
	return clean
}

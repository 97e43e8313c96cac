package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var ErrInvalidBaseURL = errors.New("device base url must be an absolute http(s) url")

// Device is a registered display endpoint. BaseURL is the root the
// transmission client appends /configuration and /frame to.
type Device struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	BaseURL string `json:"base_url"`
}

// Registry is a key-value CRUD list of device endpoints held in Redis.
type Registry struct {
	rc        redis.UniversalClient
	namespace string
}

func New(rc redis.UniversalClient, namespace string) *Registry {
	return &Registry{rc: rc, namespace: namespace}
}

func (r *Registry) key(id string) string {
	return r.namespace + ":" + id
}

// Add registers a device endpoint and returns it with a generated id.
func (r *Registry) Add(ctx context.Context, name, baseURL string) (Device, error) {
	if err := validateBaseURL(baseURL); err != nil {
		return Device{}, err
	}

	dev := Device{
		ID:      uuid.NewString(),
		Name:    name,
		BaseURL: baseURL,
	}

	payload, err := json.Marshal(dev)
	if err != nil {
		return Device{}, err
	}
	if err := r.rc.Set(ctx, r.key(dev.ID), payload, 0).Err(); err != nil {
		return Device{}, fmt.Errorf("failed to register device: %w", err)
	}
	return dev, nil
}

// Get returns the device for id, or (nil, nil) when it is not registered.
func (r *Registry) Get(ctx context.Context, id string) (*Device, error) {
	raw, err := r.rc.Get(ctx, r.key(id)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up device: %w", err)
	}

	var dev Device
	if err := json.Unmarshal([]byte(raw), &dev); err != nil {
		return nil, fmt.Errorf("corrupt device record %q: %w", id, err)
	}
	return &dev, nil
}

// List returns all registered devices.
func (r *Registry) List(ctx context.Context) ([]Device, error) {
	keys, err := r.rc.Keys(ctx, r.namespace+":*").Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list devices: %w", err)
	}
	if len(keys) == 0 {
		return []Device{}, nil
	}

	// Pipeline the fetches so listing stays one round trip.
	pl := r.rc.Pipeline()
	cmds := make([]*redis.StringCmd, len(keys))
	for i, key := range keys {
		cmds[i] = pl.Get(ctx, key)
	}
	if _, err := pl.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("failed to list devices: %w", err)
	}

	devices := make([]Device, 0, len(keys))
	for _, cmd := range cmds {
		raw, err := cmd.Result()
		if err != nil {
			continue // deleted between KEYS and GET
		}
		var dev Device
		if err := json.Unmarshal([]byte(raw), &dev); err != nil {
			continue
		}
		devices = append(devices, dev)
	}
	return devices, nil
}

// Remove deletes the device registration. Removing an unknown id is a no-op.
func (r *Registry) Remove(ctx context.Context, id string) error {
	if err := r.rc.Del(ctx, r.key(id)).Err(); err != nil {
		return fmt.Errorf("failed to remove device: %w", err)
	}
	return nil
}

func validateBaseURL(baseURL string) error {
	u, err := url.Parse(baseURL)
	if err != nil || !u.IsAbs() || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return ErrInvalidBaseURL
	}
	return nil
}

package container

import (
	"errors"
	"fmt"
	"reflect"
	"sync"
)

// Small DI container using constructor injection. Providers are registered
// per type and built lazily on first Resolve; every instance is a singleton.
// Resources registered with OnClose are released in reverse order by Close.

type Container struct {
	mu        sync.Mutex
	prov      map[reflect.Type]func(*Container) (any, error)
	instances map[reflect.Type]any
	building  map[reflect.Type]bool
	closers   []func() error
}

func New() *Container {
	return &Container{
		prov:      make(map[reflect.Type]func(*Container) (any, error)),
		instances: make(map[reflect.Type]any),
		building:  make(map[reflect.Type]bool),
	}
}

func typeOf[T any]() reflect.Type { return reflect.TypeOf((*T)(nil)).Elem() }

// Provide registers the constructor of T. The constructor may Resolve its own
// dependencies from c.
func Provide[T any](c *Container, constructor func(c *Container) (T, error)) error {
	t := typeOf[T]()
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.prov[t]; exists {
		return fmt.Errorf("container: provider already exists for %v", t)
	}
	c.prov[t] = func(c *Container) (any, error) { return constructor(c) }
	return nil
}

// Value registers an already built instance of T.
func Value[T any](c *Container, v T) error {
	return Provide(c, func(*Container) (T, error) { return v, nil })
}

// Resolve returns the instance of T, building it and its dependencies on first use.
func Resolve[T any](c *Container) (T, error) {
	var zero T
	t := typeOf[T]()

	c.mu.Lock()
	if v, ok := c.instances[t]; ok {
		c.mu.Unlock()
		return v.(T), nil
	}
	build, ok := c.prov[t]
	if !ok {
		c.mu.Unlock()
		return zero, fmt.Errorf("container: no provider for %v", t)
	}
	if c.building[t] {
		c.mu.Unlock()
		return zero, fmt.Errorf("container: cyclic dependency for %v", t)
	}
	c.building[t] = true
	c.mu.Unlock()

	v, err := build(c)

	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.building, t)
	if err != nil {
		return zero, fmt.Errorf("container: build %v: %w", t, err)
	}
	c.instances[t] = v
	return v.(T), nil
}

// MustResolve is Resolve for wiring code that cannot continue without T.
func MustResolve[T any](c *Container) T {
	v, err := Resolve[T](c)
	if err != nil {
		panic(err)
	}
	return v
}

// OnClose registers fn to run on Close.
func (c *Container) OnClose(fn func() error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closers = append(c.closers, fn)
}

// Close runs the registered closers last-in first-out and joins their errors.
func (c *Container) Close() error {
	c.mu.Lock()
	closers := c.closers
	c.closers = nil
	c.mu.Unlock()

	var errs []error
	for i := len(closers) - 1; i >= 0; i-- {
		if err := closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

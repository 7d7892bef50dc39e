package prelude

import (
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/kristofer/feral/pkg/value"
	"github.com/kristofer/feral/pkg/vm"
)

// registerThreads installs the mutex/thread standard types original_source's
// mutex_type.hpp and Thread.cpp supply but spec.md §5 leaves unnamed
// ("scripts coordinate via explicit mutex types supplied as a standard
// library"): a mutex namespace backed by sync.Mutex, and a thread namespace
// that runs a feral Fn on its own goroutine, joined through an
// errgroup.Group so an error returned by the spawned Fn surfaces as an
// ordinary join() error. A panic inside the Fn is not recovered.
func registerThreads(m *vm.VM) {
	t := m.Types

	t.Register(value.TypeMutex, "lock", value.NewNativeFn("lock", func(args []value.Value, kwargs map[string]value.Value) (value.Value, error) {
		mu, err := asMutex(args)
		if err != nil {
			return nil, err
		}
		mu.L.Lock()
		return value.NewNil(), nil
	}))
	t.Register(value.TypeMutex, "unlock", value.NewNativeFn("unlock", func(args []value.Value, kwargs map[string]value.Value) (value.Value, error) {
		mu, err := asMutex(args)
		if err != nil {
			return nil, err
		}
		mu.L.Unlock()
		return value.NewNil(), nil
	}))
	t.Register(value.TypeMutex, "try_lock", value.NewNativeFn("try_lock", func(args []value.Value, kwargs map[string]value.Value) (value.Value, error) {
		mu, err := asMutex(args)
		if err != nil {
			return nil, err
		}
		return value.NewBool(mu.L.TryLock()), nil
	}))

	t.Register(value.TypeThread, "join", value.NewNativeFn("join", func(args []value.Value, kwargs map[string]value.Value) (value.Value, error) {
		th, ok := args[0].(*value.Thread)
		if !ok {
			return nil, fmt.Errorf("join() receiver must be a thread, got %s", args[0].Type())
		}
		if err := th.Group.Wait(); err != nil {
			return nil, err
		}
		return th.Join()
	}))

	mutexNamespace := value.NewModule(-1, "mutex")
	mutexNamespace.Globals["new"] = value.NewNativeFn("new", func(args []value.Value, kwargs map[string]value.Value) (value.Value, error) {
		return value.NewMutex(), nil
	})
	m.Globals["mutex"] = mutexNamespace

	threadNamespace := value.NewModule(-1, "thread")
	threadNamespace.Globals["spawn"] = value.NewNativeFn("spawn", func(args []value.Value, kwargs map[string]value.Value) (value.Value, error) {
		if len(args) == 0 {
			return nil, fmt.Errorf("thread.spawn() requires a function argument")
		}
		fn := args[0]
		callArgs := append([]value.Value{}, args[1:]...)

		var g errgroup.Group
		done := make(chan struct{})
		th := value.NewThread(&g, done)
		g.Go(func() error {
			result, err := m.Invoke(fn, callArgs, kwargs)
			th.Settle(result, err)
			return err
		})
		return th, nil
	})
	m.Globals["thread"] = threadNamespace
}

func asMutex(args []value.Value) (*value.Mutex, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("mutex method requires a receiver")
	}
	mu, ok := args[0].(*value.Mutex)
	if !ok {
		return nil, fmt.Errorf("expected mutex receiver, got %s", args[0].Type())
	}
	return mu, nil
}

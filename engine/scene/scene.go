package scene

import (
	"log/slog"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/Carmen-Shannon/oxy-render/engine/camera"
	"github.com/Carmen-Shannon/oxy-render/engine/game_object"
	"github.com/Carmen-Shannon/oxy-render/engine/logger"
	"github.com/Carmen-Shannon/oxy-render/engine/renderer"
)

// Scene owns a set of game objects drawn through one camera into one render target.
//
// Objects may be added, removed and updated from any goroutine. Renderer calls
// (AttachToRenderer, SubmitFrame, DetachFromRenderer) must run on the render goroutine,
// since the Renderer is not safe for concurrent use.
type Scene interface {
	// Name returns the scene name.
	Name() string

	// Active reports whether the scene is submitted by the engine.
	Active() bool

	// SetActive sets whether the scene is submitted by the engine.
	//
	// Parameters:
	//   - active: false hides every object of the scene
	SetActive(active bool)

	// Camera returns the camera the scene is drawn through.
	Camera() camera.Camera

	// Count returns the number of persistent objects.
	Count() int

	// CountEphemeral returns the number of ephemeral objects.
	CountEphemeral() int

	// Add adds an object and assigns it an ID if it has none.
	//
	// Parameters:
	//   - obj: the object to add
	//
	// Returns:
	//   - uint64: the object's ID
	Add(obj game_object.GameObject) uint64

	// Get returns the object with the given ID, nil if there is none.
	//
	// Parameters:
	//   - id: the object ID
	//
	// Returns:
	//   - game_object.GameObject: the object or nil
	Get(id uint64) game_object.GameObject

	// Remove removes an object. Its persistent pass is dropped on the next SubmitFrame.
	//
	// Parameters:
	//   - id: the object ID
	Remove(id uint64)

	// Clear removes every object.
	Clear()

	// Update advances every enabled object by dt seconds, in parallel on the scene's
	// worker pool. It returns once every object has been updated.
	//
	// Parameters:
	//   - dt: the elapsed time in seconds
	Update(dt float32)

	// AttachToRenderer binds the scene to a renderer and target. Persistent objects are
	// registered on the next SubmitFrame.
	//
	// Parameters:
	//   - r: the renderer
	//   - target: the window, screen buffer or shadow map the objects draw into
	AttachToRenderer(r renderer.Renderer, target renderer.Target)

	// DetachFromRenderer unregisters every persistent pass of the scene.
	DetachFromRenderer()

	// SubmitFrame brings the renderer's registrations in line with the scene and submits
	// the ephemeral objects inside the camera frustum for this frame.
	//
	// Returns:
	//   - int: the number of ephemeral objects submitted
	SubmitFrame() int

	// Close stops the worker pool.
	Close()
}

// scene is the implementation of the Scene interface.
type scene struct {
	name string
	cam  camera.Camera

	mu        sync.RWMutex
	active    bool
	nextID    uint64
	registry  map[uint64]game_object.GameObject
	ephemeral map[uint64]game_object.GameObject

	// render goroutine state
	r       renderer.Renderer
	target  renderer.Target
	handles map[uint64]renderer.PersistentPassHandle

	pool      worker.DynamicWorkerPool
	workers   int
	chunkSize int
	closeOnce sync.Once

	log *slog.Logger
}

var _ Scene = &scene{}

// NewScene creates an active scene drawn through cam.
//
// Parameters:
//   - name: the scene name, used in logs
//   - cam: the camera passes read their view-projection from
//   - options: a variadic list of SceneBuilderOption functions to configure the Scene
//
// Returns:
//   - Scene: the new scene
func NewScene(name string, cam camera.Camera, options ...SceneBuilderOption) Scene {
	s := &scene{
		name:      name,
		cam:       cam,
		active:    true,
		nextID:    1,
		registry:  make(map[uint64]game_object.GameObject),
		ephemeral: make(map[uint64]game_object.GameObject),
		handles:   make(map[uint64]renderer.PersistentPassHandle),
		workers:   max(runtime.NumCPU()-1, 1),
		chunkSize: 256,
		log:       logger.Component("scene").With("scene", name),
	}
	for _, option := range options {
		option(s)
	}
	s.pool = worker.NewDynamicWorkerPool(s.workers, 256, time.Second)
	return s
}

func (s *scene) Name() string          { return s.name }
func (s *scene) Camera() camera.Camera { return s.cam }

func (s *scene) Active() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.active
}

func (s *scene) SetActive(active bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active = active
}

func (s *scene) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.registry)
}

func (s *scene) CountEphemeral() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.ephemeral)
}

func (s *scene) Add(obj game_object.GameObject) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.addLocked(obj)
	return obj.ID()
}

func (s *scene) addLocked(obj game_object.GameObject) {
	if obj.ID() == 0 {
		obj.SetID(s.nextID)
		s.nextID++
	} else if obj.ID() >= s.nextID {
		s.nextID = obj.ID() + 1
	}
	if obj.Ephemeral() {
		s.ephemeral[obj.ID()] = obj
		return
	}
	s.registry[obj.ID()] = obj
}

func (s *scene) Get(id uint64) game_object.GameObject {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if obj, ok := s.registry[id]; ok {
		return obj
	}
	return s.ephemeral[id]
}

func (s *scene) Remove(id uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.registry, id)
	delete(s.ephemeral, id)
}

func (s *scene) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.registry = make(map[uint64]game_object.GameObject)
	s.ephemeral = make(map[uint64]game_object.GameObject)
}

// objects returns every object, persistent ones first, each group ordered by ID.
func (s *scene) objects() []game_object.GameObject {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]game_object.GameObject, 0, len(s.registry)+len(s.ephemeral))
	for _, m := range []map[uint64]game_object.GameObject{s.registry, s.ephemeral} {
		start := len(out)
		for _, obj := range m {
			out = append(out, obj)
		}
		group := out[start:]
		sort.Slice(group, func(i, j int) bool { return group[i].ID() < group[j].ID() })
	}
	return out
}

func (s *scene) Update(dt float32) {
	objs := s.objects()
	// A WaitGroup is the per-tick barrier; the pool's own Wait blocks until workers idle out.
	var wg sync.WaitGroup
	for id, start := 0, 0; start < len(objs); id, start = id+1, start+s.chunkSize {
		chunk := objs[start:min(start+s.chunkSize, len(objs))]
		wg.Add(1)
		s.pool.SubmitTask(worker.Task{
			ID: id,
			Do: func() (any, error) {
				defer wg.Done()
				for _, obj := range chunk {
					if obj.Enabled() {
						obj.Update(dt)
					}
				}
				return nil, nil
			},
		})
	}
	wg.Wait()
}

func (s *scene) AttachToRenderer(r renderer.Renderer, target renderer.Target) {
	if s.r != nil {
		s.DetachFromRenderer()
	}
	s.r, s.target = r, target
	if w, ok := target.(renderer.WindowTarget); ok {
		r.RegisterWindow(w)
	}
	s.log.Debug("attached to renderer", "target", target.Label())
}

func (s *scene) DetachFromRenderer() {
	if s.r == nil {
		return
	}
	for id, h := range s.handles {
		s.unregister(h)
		delete(s.handles, id)
	}
	s.r, s.target = nil, nil
}

func (s *scene) register(pass renderer.RenderPass) renderer.PersistentPassHandle {
	switch s.target.(type) {
	case *renderer.ScreenBuffer:
		return s.r.RegisterPersistentOffscreenRenderPass(pass)
	case *renderer.ShadowMapBuffer:
		return s.r.RegisterPersistentShadowMapRenderPass(pass)
	default:
		return s.r.RegisterPersistentRenderPass(pass)
	}
}

func (s *scene) unregister(h renderer.PersistentPassHandle) {
	switch s.target.(type) {
	case *renderer.ScreenBuffer:
		s.r.UnregisterPersistentOffscreenRenderPass(h)
	case *renderer.ShadowMapBuffer:
		s.r.UnregisterPersistentShadowMapRenderPass(h)
	default:
		s.r.UnregisterPersistentRenderPass(h)
	}
}

func (s *scene) SubmitFrame() int {
	if s.r == nil {
		return 0
	}
	active := s.Active()

	s.mu.RLock()
	want := make(map[uint64]game_object.GameObject, len(s.registry))
	if active {
		for id, obj := range s.registry {
			if obj.Enabled() {
				want[id] = obj
			}
		}
	}
	s.mu.RUnlock()

	for id, h := range s.handles {
		if _, ok := want[id]; !ok {
			s.unregister(h)
			delete(s.handles, id)
		}
	}
	added := 0
	for id, obj := range want {
		if _, ok := s.handles[id]; ok {
			continue
		}
		h := s.register(obj.CreateRenderPass(s.target, s.cam))
		if !h.Valid() {
			s.log.Warn("object not registered", "id", id, "pipeline", obj.PipelineName())
			continue
		}
		s.handles[id] = h
		added++
	}
	if added > 0 {
		s.log.Debug("objects registered", "added", added, "total", len(s.handles))
	}

	if !active {
		return 0
	}
	var frustum func([3]float32, float32) bool
	if s.cam != nil {
		f := s.cam.Frustum()
		frustum = f.ContainsSphere
	}
	s.mu.RLock()
	ephemeral := make([]game_object.GameObject, 0, len(s.ephemeral))
	for _, obj := range s.ephemeral {
		ephemeral = append(ephemeral, obj)
	}
	s.mu.RUnlock()
	sort.Slice(ephemeral, func(i, j int) bool { return ephemeral[i].ID() < ephemeral[j].ID() })

	submitted := 0
	for _, obj := range ephemeral {
		if !obj.Enabled() {
			continue
		}
		if frustum != nil && !frustum(obj.Position(), obj.Radius()) {
			continue
		}
		s.r.SubmitRenderPass(obj.CreateRenderPass(s.target, s.cam))
		submitted++
	}
	return submitted
}

func (s *scene) Close() {
	s.closeOnce.Do(func() {
		s.pool.Stop()
	})
}

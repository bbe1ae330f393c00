package scene

import "github.com/Carmen-Shannon/oxy-render/engine/game_object"

// SceneBuilderOption is a functional option for configuring a Scene.
type SceneBuilderOption func(s *scene)

// WithActive sets whether the scene is drawn.
//
// Parameters:
//   - active: whether the scene is active
//
// Returns:
//   - SceneBuilderOption: option function to apply
func WithActive(active bool) SceneBuilderOption {
	return func(s *scene) {
		s.active = active
	}
}

// WithObjects adds initial objects to the scene. Objects without IDs are assigned new IDs.
//
// Parameters:
//   - objects: the objects to add
//
// Returns:
//   - SceneBuilderOption: option function to apply
func WithObjects(objects ...game_object.GameObject) SceneBuilderOption {
	return func(s *scene) {
		for _, obj := range objects {
			s.addLocked(obj)
		}
	}
}

// WithUpdateWorkers sets how many goroutines Update fans out to. Defaults to runtime.NumCPU()-1.
//
// Parameters:
//   - n: the number of workers (minimum 1)
//
// Returns:
//   - SceneBuilderOption: option function to apply
func WithUpdateWorkers(n int) SceneBuilderOption {
	return func(s *scene) {
		s.workers = max(n, 1)
	}
}

// WithUpdateChunkSize sets how many objects one Update task advances.
//
// Parameters:
//   - n: objects per task (minimum 1)
//
// Returns:
//   - SceneBuilderOption: option function to apply
func WithUpdateChunkSize(n int) SceneBuilderOption {
	return func(s *scene) {
		s.chunkSize = max(n, 1)
	}
}

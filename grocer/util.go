package grocer

import (
	"slices"
	"sync"
)


// makes a copy of the list on update
// callbacks are identified by a handle since funcs are not comparable
type CallbackList[T any] struct {
	mutex sync.Mutex
	nextHandle uint64
	handles []uint64
	callbacks []T
}

func NewCallbackList[T any]() *CallbackList[T] {
	return &CallbackList[T]{}
}

func (self *CallbackList[T]) Get() []T {
	self.mutex.Lock()
	defer self.mutex.Unlock()
	return self.callbacks
}

// returns a function that removes the callback
func (self *CallbackList[T]) Add(callback T) func() {
	self.mutex.Lock()
	defer self.mutex.Unlock()

	self.nextHandle += 1
	handle := self.nextHandle

	nextHandles := slices.Clone(self.handles)
	nextHandles = append(nextHandles, handle)
	nextCallbacks := slices.Clone(self.callbacks)
	nextCallbacks = append(nextCallbacks, callback)
	self.handles = nextHandles
	self.callbacks = nextCallbacks

	return func() {
		self.remove(handle)
	}
}

func (self *CallbackList[T]) remove(handle uint64) {
	self.mutex.Lock()
	defer self.mutex.Unlock()

	i := slices.Index(self.handles, handle)
	if i < 0 {
		// not present
		return
	}
	nextHandles := slices.Clone(self.handles)
	nextHandles = slices.Delete(nextHandles, i, i + 1)
	nextCallbacks := slices.Clone(self.callbacks)
	nextCallbacks = slices.Delete(nextCallbacks, i, i + 1)
	self.handles = nextHandles
	self.callbacks = nextCallbacks
}

func (self *CallbackList[T]) Len() int {
	self.mutex.Lock()
	defer self.mutex.Unlock()
	return len(self.callbacks)
}

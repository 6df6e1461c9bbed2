package confirm

// Handler receives the notification payload dispatched for every new
// confirmation request. A handler error (or panic) is logged and isolated;
// it never blocks the remaining handlers or fails the surrounding call.
type Handler interface {
	// Name identifies the handler inside the registry. Registration is
	// keyed by name, which makes add/remove idempotent.
	Name() string
	// Notify delivers one payload.
	Notify(payload NotificationPayload) error
}

// HandlerFromFunc wraps a bare function as a named Handler.
func HandlerFromFunc(name string, fn func(payload NotificationPayload) error) Handler {
	return &funcHandler{name: name, fn: fn}
}

type funcHandler struct {
	name string
	fn   func(payload NotificationPayload) error
}

func (h *funcHandler) Name() string { return h.name }

func (h *funcHandler) Notify(payload NotificationPayload) error { return h.fn(payload) }

// handlerRegistry is an ordered, name-keyed handler set. It carries no lock
// of its own; the owning Service guards it with the same mutex as the
// request maps.
type handlerRegistry struct {
	order  []string
	byName map[string]Handler
}

func newHandlerRegistry() handlerRegistry {
	return handlerRegistry{byName: make(map[string]Handler)}
}

// add registers a handler. Adding a name already present is a no-op.
func (r *handlerRegistry) add(handler Handler) bool {
	name := handler.Name()
	if _, exists := r.byName[name]; exists {
		return false
	}
	r.byName[name] = handler
	r.order = append(r.order, name)
	return true
}

// remove unregisters a handler by name. Removing an absent name is a no-op.
func (r *handlerRegistry) remove(name string) bool {
	if _, exists := r.byName[name]; !exists {
		return false
	}
	delete(r.byName, name)
	for i, existing := range r.order {
		if existing == name {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return true
}

// list returns the handlers in registration order. The returned slice is a
// copy so dispatch can run outside the service lock.
func (r *handlerRegistry) list() []Handler {
	handlers := make([]Handler, 0, len(r.order))
	for _, name := range r.order {
		handlers = append(handlers, r.byName[name])
	}
	return handlers
}

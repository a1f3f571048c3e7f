package core

import "context"

type IService interface {
	Initialize(ctx context.Context) error
	Cleanup() error
	Reset() error
}

type IHandler interface {
	Initialize(
		inputChan <-chan *EventPacket,
		outputNextChan chan<- *EventPacket,
		outputTopChan chan<- *EventPacket,
		ctx context.Context,
	) error
	Start() error // Starts the handler's main loop.
	HandleEvent(packet *EventPacket) error

	Cleanup() error // Cleans up resources used by the handler.
	Reset() error   // Resets the handler to its initial state.
}

// BaseHandler carries the channel plumbing shared by every pipeline stage.
// Concrete handlers embed it, register their HandleEvent via
// SetHandleEventFunc, and get a default Start loop for free.
type BaseHandler struct {
	Service               IService
	Ctx                   context.Context
	InputChan             <-chan *EventPacket
	Logger                *Logger
	FatalServiceErrorChan chan error

	outputNextChan chan<- *EventPacket
	outputTopChan  chan<- *EventPacket
	handleEvent    func(packet *EventPacket) error
}

func NewBaseHandler(service IService, logger *Logger) *BaseHandler {
	if logger == nil {
		logger = GetLogger()
	}
	return &BaseHandler{
		Service: service,
		Logger:  logger,
	}
}

func (h *BaseHandler) Initialize(
	inputChan <-chan *EventPacket,
	outputNextChan chan<- *EventPacket,
	outputTopChan chan<- *EventPacket,
	ctx context.Context,
) error {
	h.InputChan = inputChan
	h.outputNextChan = outputNextChan
	h.outputTopChan = outputTopChan
	h.FatalServiceErrorChan = make(chan error, 4)
	h.Ctx = ctx
	go h.fatalErrorLoop()
	if h.Service != nil {
		return h.Service.Initialize(ctx)
	}
	return nil
}

// SetHandleEventFunc registers the concrete handler's HandleEvent so the
// default Start loop dispatches to the outermost implementation rather
// than the embedded one.
func (h *BaseHandler) SetHandleEventFunc(fn func(packet *EventPacket) error) {
	h.handleEvent = fn
}

// Start runs the default event loop. Handlers with their own service
// channels override this and run their own select.
func (h *BaseHandler) Start() error {
	go func() {
		for {
			select {
			case packet := <-h.InputChan:
				if h.handleEvent == nil {
					continue
				}
				if err := h.handleEvent(packet); err != nil {
					h.FatalServiceErrorChan <- err
				}
			case <-h.Ctx.Done():
				return
			}
		}
	}()
	return nil
}

func (h *BaseHandler) HandleEvent(packet *EventPacket) error {
	h.SendPacket(packet)
	return nil
}

func (h *BaseHandler) Cleanup() error {
	if h.Service != nil {
		return h.Service.Cleanup()
	}
	return nil
}

func (h *BaseHandler) Reset() error {
	if h.Service != nil {
		return h.Service.Reset()
	}
	return nil
}

func (h *BaseHandler) SendPacket(packet *EventPacket) {
	switch packet.Destination {
	case EventRelayDestinationTopService:
		h.outputTopChan <- packet
	default:
		h.outputNextChan <- packet
	}
}

// fatalErrorLoop logs service failures and surfaces them to the pipeline
// top so the runner can decide whether the session survives.
func (h *BaseHandler) fatalErrorLoop() {
	for {
		select {
		case err := <-h.FatalServiceErrorChan:
			h.Logger.With(map[string]any{"error": err}).Error("handler service error")
			h.outputTopChan <- NewEventPacket(
				&CriticalErrorEvent{Error: err.Error()},
				EventRelayDestinationTopService,
				"BaseHandler",
			)
		case <-h.Ctx.Done():
			return
		}
	}
}

// Package runner wires an ordered handler chain with buffered channels
// and owns its lifecycle. Packets flow head to tail; packets addressed
// to the top service come back to the runner, which reacts to shutdown
// and critical errors.
package runner

import (
	"context"

	"companionkit/core"
)

const chanBuffer = 100

type Runner struct {
	Handlers []core.IHandler
	// Finished closes when the pipeline stops on its own, e.g. after a
	// shutdown event.
	Finished chan struct{}

	logger        *core.Logger
	ctx           context.Context
	cancel        context.CancelFunc
	headChan      chan *core.EventPacket
	topOutputChan chan *core.EventPacket
	tailChan      chan *core.EventPacket
}

func NewRunner(handlers []core.IHandler, logger *core.Logger) *Runner {
	if logger == nil {
		logger = core.GetLogger()
	}
	return &Runner{
		Handlers: handlers,
		Finished: make(chan struct{}),
		logger:   logger.With(map[string]any{"component": "runner"}),
	}
}

// Inject hands a packet to the head of the chain.
func (r *Runner) Inject(packet *core.EventPacket) {
	select {
	case r.headChan <- packet:
	case <-r.ctx.Done():
	}
}

func (r *Runner) Start() error {
	if len(r.Handlers) == 0 {
		close(r.Finished)
		return nil
	}

	r.ctx, r.cancel = context.WithCancel(context.Background())
	r.topOutputChan = make(chan *core.EventPacket, chanBuffer)
	r.tailChan = make(chan *core.EventPacket, chanBuffer)

	inputChans := make([]chan *core.EventPacket, len(r.Handlers))
	for i := range inputChans {
		inputChans[i] = make(chan *core.EventPacket, chanBuffer)
	}
	r.headChan = inputChans[0]

	for i, handler := range r.Handlers {
		var outputNextChan chan<- *core.EventPacket
		if i < len(r.Handlers)-1 {
			outputNextChan = inputChans[i+1]
		} else {
			outputNextChan = r.tailChan
		}

		if err := handler.Initialize(inputChans[i], outputNextChan, r.topOutputChan, r.ctx); err != nil {
			r.cancel()
			return err
		}
		if err := handler.Start(); err != nil {
			r.cancel()
			return err
		}
	}

	go r.listenToOutputs()
	return nil
}

func (r *Runner) listenToOutputs() {
	for {
		select {
		case packet := <-r.tailChan:
			// The tail handler is expected to consume what matters;
			// anything arriving here is debug-only.
			r.logger.Debug("unconsumed packet at tail", "event", packet.Event.GetId())
		case packet := <-r.topOutputChan:
			r.processTopOutput(packet)
		case <-r.ctx.Done():
			return
		}
	}
}

func (r *Runner) processTopOutput(packet *core.EventPacket) {
	switch event := packet.Event.(type) {
	case *core.CriticalErrorEvent:
		// Services already logged the cause; the loop itself survives.
		r.logger.Error("critical pipeline error", "error", event.Error, "relayer", packet.Relayer)
	case *core.ShutdownEvent:
		r.logger.Info("shutdown requested", "reason", event.Reason)
		r.cancel()
		close(r.Finished)
	default:
		// Echo back to the head of the chain.
		r.Inject(packet)
	}
}

func (r *Runner) Stop() error {
	if r.cancel != nil {
		r.cancel()
	}

	var errs []error
	for _, handler := range r.Handlers {
		if err := handler.Cleanup(); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return errs[0]
	}
	return nil
}

func (r *Runner) Reset() error {
	var errs []error
	for _, handler := range r.Handlers {
		if err := handler.Reset(); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return errs[0]
	}
	return nil
}

package tools

import (
	"fmt"
	"sync"

	"github.com/mathisarends/voiceorchestrator/internal/eventbus"
	"github.com/mathisarends/voiceorchestrator/internal/obslog"
	"github.com/mathisarends/voiceorchestrator/internal/voicemodel"
)

// progressSink is the subset of messagemanager.Manager the Executor needs.
type progressSink interface {
	SubmitToolResult(result voicemodel.FunctionCallResult)
	SendProgressUpdate(chunk string)
}

// Executor runs registered tools in response to AssistantStartedToolCall:
// lookup, special-parameter check, optional spoken progress message, then
// the sync or streaming call and the result publish.
type Executor struct {
	registry *Registry
	bus      *eventbus.Bus
	mm       progressSink
	special  SpecialToolParameters

	mu      sync.Mutex
	wg      sync.WaitGroup
	cancels []func()
}

// NewExecutor creates an Executor subscribing to the bus.
func NewExecutor(registry *Registry, bus *eventbus.Bus, mm progressSink, special SpecialToolParameters) *Executor {
	e := &Executor{registry: registry, bus: bus, mm: mm, special: special}
	bus.Subscribe(eventbus.AssistantStartedToolCall, eventbus.Sync1(e.handle))
	return e
}

func (e *Executor) handle(data any) {
	item, ok := data.(voicemodel.FunctionCallItem)
	if !ok {
		return
	}

	d, found := e.registry.Get(item.Name)
	if !found {
		e.fail(item, fmt.Errorf("unknown tool %q", item.Name))
		return
	}

	for _, field := range d.RequiresSpecial {
		if !e.special.available(field) {
			e.fail(item, fmt.Errorf("tool %q requires unavailable special parameter %q", item.Name, field))
			return
		}
	}

	if d.ExecutionMessage != "" {
		e.mm.SendProgressUpdate(d.ExecutionMessage)
	}

	obslog.ToolCall(item.Name, item.CallID, len(item.Arguments))

	if d.streaming() {
		e.runStreaming(item, d)
		return
	}
	e.runSync(item, d)
}

func (e *Executor) runSync(item voicemodel.FunctionCallItem, d *Descriptor) {
	output, err := e.safeCall(func() (any, error) {
		return d.Handler(item.Arguments, e.special)
	})
	if err != nil {
		e.fail(item, err)
		return
	}
	e.succeed(item, output, "")
}

// runStreaming spawns a cancellable background task forwarding each yielded
// chunk as a progress update. A streaming tool never emits a
// function-call-output frame: once the channel closes, only
// AssistantReceivedToolCallResult is published, so the state
// machine returns to Responding without the Message Manager sending a
// conversation.item.create it was never asked for.
func (e *Executor) runStreaming(item voicemodel.FunctionCallItem, d *Descriptor) {
	stopped := make(chan struct{})
	stop := func() { close(stopped) }

	e.mu.Lock()
	e.cancels = append(e.cancels, stop)
	e.mu.Unlock()

	ch, err := d.StreamHandler(item.Arguments, e.special)
	if err != nil {
		e.fail(item, err)
		return
	}

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		for {
			select {
			case chunk, ok := <-ch:
				if !ok {
					result := voicemodel.FunctionCallResult{ToolName: item.Name, CallID: item.CallID}
					obslog.ToolResult(item.Name, item.CallID, true, 0)
					e.bus.PublishSync(eventbus.AssistantReceivedToolCallResult, result)
					return
				}
				e.mm.SendProgressUpdate(chunk)
			case <-stopped:
				return
			}
		}
	}()
}

func (e *Executor) safeCall(fn func() (any, error)) (output any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("tool handler panicked: %v", r)
		}
	}()
	return fn()
}

func (e *Executor) succeed(item voicemodel.FunctionCallItem, output any, instruction string) {
	result := voicemodel.FunctionCallResult{
		ToolName:            item.Name,
		CallID:              item.CallID,
		Output:              output,
		ResponseInstruction: instruction,
	}
	obslog.ToolResult(item.Name, item.CallID, true, 0)
	e.mm.SubmitToolResult(result)
	e.bus.PublishSync(eventbus.AssistantReceivedToolCallResult, result)
}

func (e *Executor) fail(item voicemodel.FunctionCallItem, err error) {
	result := voicemodel.FunctionCallResult{
		ToolName:            item.Name,
		CallID:              item.CallID,
		Output:              "Error: " + err.Error(),
		ResponseInstruction: "This is an error - relay this to the user apologetically, without technical detail.",
	}
	obslog.ToolResult(item.Name, item.CallID, false, 0)
	e.mm.SubmitToolResult(result)
	e.bus.PublishSync(eventbus.AssistantReceivedToolCallResult, result)
}

// Shutdown cancels every in-flight streaming task and waits for them to exit.
func (e *Executor) Shutdown() {
	e.mu.Lock()
	cancels := e.cancels
	e.cancels = nil
	e.mu.Unlock()
	for _, cancel := range cancels {
		cancel()
	}
	e.wg.Wait()
}

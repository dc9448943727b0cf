package script

import (
	"context"

	"github.com/dop251/goja"
	"github.com/dop251/goja_nodejs/console"
	"github.com/dop251/goja_nodejs/require"
	"github.com/pkg/errors"

	"github.com/antoniostano/npctalk/internal/dialog"
)

// hookName is the optional top-level function called when the player closes
// the dialog.
const hookName = "chatEnded"

// Script runs one compiled NPC program for one conversation. Its runtime is
// created by Run and reused by ChatEnded.
type Script struct {
	npcID    int32
	program  *goja.Program
	registry *require.Registry

	vm *goja.Runtime
}

var (
	_ dialog.Script      = (*Script)(nil)
	_ dialog.EndChatHook = (*Script)(nil)
)

func (s *Script) Run(ctx context.Context, c *dialog.Conversation) error {
	vm := goja.New()
	s.registry.Enable(vm)
	console.Enable(vm)
	if err := vm.Set("npc", newBinding(ctx, vm, c).object()); err != nil {
		return errors.Wrap(err, "bind npc api")
	}
	s.vm = vm

	// Scripts cannot be halted between prompts any other way.
	context.AfterFunc(ctx, func() {
		vm.Interrupt(dialog.ErrConversationInterrupted)
	})

	_, err := vm.RunProgram(s.program)
	return s.translate(err)
}

func (s *Script) ChatEnded(ctx context.Context, _ *dialog.Conversation) error {
	if s.vm == nil || ctx.Err() != nil {
		return dialog.ErrConversationInterrupted
	}
	s.vm.ClearInterrupt()
	fn, ok := goja.AssertFunction(s.vm.Get(hookName))
	if !ok {
		return nil
	}
	_, err := fn(goja.Undefined())
	return s.translate(err)
}

// translate maps interpreter errors back to conversation errors.
func (s *Script) translate(err error) error {
	if err == nil {
		return nil
	}
	var interrupted *goja.InterruptedError
	if errors.As(err, &interrupted) {
		if cause, ok := interrupted.Value().(error); ok {
			return cause
		}
		return dialog.ErrConversationInterrupted
	}
	var exc *goja.Exception
	if errors.As(err, &exc) {
		return errors.Errorf("npc %d script: %s", s.npcID, exc.Error())
	}
	return errors.Wrapf(err, "npc %d script", s.npcID)
}

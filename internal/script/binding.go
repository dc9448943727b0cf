package script

import (
	"context"

	"github.com/dop251/goja"
	"github.com/pkg/errors"

	"github.com/antoniostano/npctalk/internal/dialog"
	"github.com/antoniostano/npctalk/internal/wire"
)

// binding exposes a conversation to JavaScript as the npc global.
type binding struct {
	ctx  context.Context
	vm   *goja.Runtime
	conv *dialog.Conversation
}

func newBinding(ctx context.Context, vm *goja.Runtime, conv *dialog.Conversation) *binding {
	return &binding{ctx: ctx, vm: vm, conv: conv}
}

type hostFunc func(call goja.FunctionCall) (any, error)

func (b *binding) object() *goja.Object {
	obj := b.vm.NewObject()
	set := func(name string, fn hostFunc) {
		if err := obj.Set(name, b.wrap(fn)); err != nil {
			panic(err)
		}
	}

	set("say", func(call goja.FunctionCall) (any, error) {
		return nil, b.conv.Say(call.Argument(0).String())
	})
	set("sayNext", func(call goja.FunctionCall) (any, error) {
		return nil, b.conv.SayNext(call.Argument(0).String())
	})
	set("askYesNo", func(call goja.FunctionCall) (any, error) {
		return b.conv.AskYesNo(call.Argument(0).String())
	})
	set("askAccept", func(call goja.FunctionCall) (any, error) {
		return b.conv.AskAccept(call.Argument(0).String())
	})
	set("askAcceptNoEsc", func(call goja.FunctionCall) (any, error) {
		return b.conv.AskAcceptNoEsc(call.Argument(0).String())
	})
	set("askText", func(call goja.FunctionCall) (any, error) {
		return b.conv.AskText(call.Argument(0).String(), optString(call.Argument(1)),
			int16(call.Argument(2).ToInteger()), int16(call.Argument(3).ToInteger()))
	})
	set("askNumber", func(call goja.FunctionCall) (any, error) {
		return b.conv.AskNumber(call.Argument(0).String(), int32(call.Argument(1).ToInteger()),
			int32(call.Argument(2).ToInteger()), int32(call.Argument(3).ToInteger()))
	})
	set("askMenu", func(call goja.FunctionCall) (any, error) {
		return b.conv.AskMenu(call.Argument(0).String())
	})
	set("askAvatar", func(call goja.FunctionCall) (any, error) {
		var styles []int32
		if err := b.vm.ExportTo(call.Argument(1), &styles); err != nil {
			return nil, errors.Wrap(err, "askAvatar styles")
		}
		return b.conv.AskAvatar(call.Argument(0).String(), styles...)
	})
	set("askQuiz", func(call goja.FunctionCall) (any, error) {
		return b.conv.AskQuiz(wire.QuizSubject(call.Argument(0).ToInteger()),
			int32(call.Argument(1).ToInteger()), int32(call.Argument(2).ToInteger()),
			int32(call.Argument(3).ToInteger()), int32(call.Argument(4).ToInteger()))
	})
	set("askQuizQuestion", func(call goja.FunctionCall) (any, error) {
		return b.conv.AskQuizQuestion(call.Argument(0).String(), call.Argument(1).String(),
			optString(call.Argument(2)), int32(call.Argument(3).ToInteger()),
			int32(call.Argument(4).ToInteger()), int32(call.Argument(5).ToInteger()))
	})
	set("sendShop", func(call goja.FunctionCall) (any, error) {
		return b.conv.SendShop(b.ctx, b.npcArg(call))
	})
	set("sendStorage", func(call goja.FunctionCall) (any, error) {
		return b.conv.SendStorage(b.ctx, b.npcArg(call))
	})
	set("clearBackButton", func(goja.FunctionCall) (any, error) {
		b.conv.ClearBackButton()
		return nil, nil
	})
	set("endConversation", func(goja.FunctionCall) (any, error) {
		b.conv.EndConversation()
		return nil, nil
	})
	set("getNpcId", func(goja.FunctionCall) (any, error) {
		return b.conv.NPCID(), nil
	})
	set("getPlayerName", func(goja.FunctionCall) (any, error) {
		return b.conv.PlayerName(), nil
	})
	set("getAllSkinColors", func(goja.FunctionCall) (any, error) {
		colors := b.conv.SkinColors()
		out := make([]any, len(colors))
		for i, c := range colors {
			out[i] = c
		}
		return b.vm.NewArray(out...), nil
	})
	set("getAllEyeStyles", b.ids(b.conv.EyeStyles))
	set("getAllEyeColors", b.ids(b.conv.EyeColors))
	set("getAllHairStyles", b.ids(b.conv.HairStyles))
	set("getAllHairColors", b.ids(b.conv.HairColors))
	set("isFaceValid", func(call goja.FunctionCall) (any, error) {
		return b.conv.IsFaceValid(b.ctx, int32(call.Argument(0).ToInteger()))
	})
	set("isHairValid", func(call goja.FunctionCall) (any, error) {
		return b.conv.IsHairValid(b.ctx, int32(call.Argument(0).ToInteger()))
	})
	return obj
}

// wrap converts a host function's error into JavaScript control flow.
// Interruption is uncatchable by script code; anything else is thrown.
func (b *binding) wrap(fn hostFunc) func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		v, err := fn(call)
		if err != nil {
			if errors.Is(err, dialog.ErrConversationInterrupted) {
				b.vm.Interrupt(err)
				return goja.Undefined()
			}
			panic(b.vm.NewGoError(err))
		}
		if v == nil {
			return goja.Undefined()
		}
		if jsv, ok := v.(goja.Value); ok {
			return jsv
		}
		return b.vm.ToValue(v)
	}
}

func (b *binding) ids(query func(context.Context) ([]int32, error)) hostFunc {
	return func(goja.FunctionCall) (any, error) {
		ids, err := query(b.ctx)
		if err != nil {
			return nil, err
		}
		out := make([]any, len(ids))
		for i, id := range ids {
			out[i] = id
		}
		return b.vm.NewArray(out...), nil
	}
}

// npcArg reads an optional npc id, defaulting to the conversation's NPC.
func (b *binding) npcArg(call goja.FunctionCall) int32 {
	if v := call.Argument(0); !goja.IsUndefined(v) && !goja.IsNull(v) {
		return int32(v.ToInteger())
	}
	return b.conv.NPCID()
}

func optString(v goja.Value) string {
	if goja.IsUndefined(v) || goja.IsNull(v) {
		return ""
	}
	return v.String()
}

package filter

import (
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/antonmedv/expr"
	"github.com/antonmedv/expr/vm"
	"github.com/aperoland/aperoland-chat/globals"
	"github.com/aperoland/aperoland-chat/types"
)

// ErrRejected is returned for a message that does not satisfy the filter.
var ErrRejected = errors.New("message rejected")

// MessageFilter decides whether a chat message is accepted, f.e. `Length <= 500 && !(Message contains "http")`.
// A nil *MessageFilter accepts everything.
type MessageFilter struct {
	expression string
	prog       *vm.Program
}

// Compile compiles expression, an empty expression yields a nil filter.
func Compile(expression string) (*MessageFilter, error) {
	if expression == "" {
		return nil, nil
	}
	prog, err := expr.Compile(expression, expr.Env(Env{}), expr.AsBool())
	if err != nil {
		return nil, fmt.Errorf("could not compile filter %q: %w", expression, err)
	}
	return &MessageFilter{expression: expression, prog: prog}, nil
}

// NewEnv builds the environment for a message sent by user to room.
func NewEnv(user *types.User, room, message string) Env {
	env := Env{
		Room:    room,
		Message: message,
		Length:  utf8.RuneCountInString(message),
	}
	if user != nil {
		env.User = User{
			Id:            user.Id,
			Username:      user.Username,
			Role:          user.Role,
			Authenticated: user.Authenticated,
		}
	}
	return env
}

// Check returns nil if env is accepted. Evaluation errors reject the message.
func (f *MessageFilter) Check(env Env) error {
	if f == nil {
		return nil
	}
	res, err := expr.Run(f.prog, env)
	if err != nil {
		globals.AppLogger.Error("could not run filter", "expression", f.expression, "error", err)
		return fmt.Errorf("%w: %s", ErrRejected, err)
	}
	if ok, _ := res.(bool); !ok {
		return ErrRejected
	}
	return nil
}

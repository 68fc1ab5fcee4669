package crew

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/thoknuts/nda-sm-platform/internal/core/domain"
	"github.com/thoknuts/nda-sm-platform/internal/core/ports"
	"github.com/thoknuts/nda-sm-platform/internal/core/services"
)

// Attester is the part of the attestation service the crew bot drives.
type Attester interface {
	Verify(ctx context.Context, caller *domain.Staff, signatureID uuid.UUID) (*services.VerifyResult, error)
	ListPending(ctx context.Context, caller *domain.Staff) ([]*domain.SignatureListItem, error)
}

// Deps are handed to every registered handler constructor.
type Deps struct {
	Attestation Attester
	Bot         ports.BotClientPort
}

// Define constructor types for crew handlers
type CommandHandlerConstructor func(deps Deps, baseLogger *zerolog.Logger) ports.CommandHandler
type CallbackHandlerConstructor func(deps Deps, baseLogger *zerolog.Logger) ports.CallbackHandler

var (
	commandRegistry  []CommandHandlerConstructor
	callbackRegistry []CallbackHandlerConstructor
)

// RegisterCommand is called by handlers in their init() function
func RegisterCommand(constructor CommandHandlerConstructor) {
	commandRegistry = append(commandRegistry, constructor)
}

// RegisterCallback is called by handlers in their init() function
func RegisterCallback(constructor CallbackHandlerConstructor) {
	callbackRegistry = append(callbackRegistry, constructor)
}

// RegisterAllHandlers builds every registered handler and passes it to the router.
func RegisterAllHandlers(router *Router, deps Deps, baseLogger *zerolog.Logger) {
	for _, constructor := range commandRegistry {
		router.RegisterCommandHandler(constructor(deps, baseLogger))
	}
	for _, constructor := range callbackRegistry {
		router.RegisterCallbackHandler(constructor(deps, baseLogger))
	}
}

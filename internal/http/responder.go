package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/salafacil/salafacil/internal/application"
	"github.com/salafacil/salafacil/internal/logging"
)

var (
	errBadRequestBody  = errors.New("Formato de requisição inválido.")
	errInvalidID       = errors.New("Identificador inválido.")
	errMissingToken    = errors.New("Token não fornecido.")
	errInvalidToken    = errors.New("Token inválido ou expirado.")
	errUnknownAction   = errors.New("Ação desconhecida.")
	errInvalidTimeSpan = errors.New("Parâmetros de data inválidos.")
	errInvalidCapacity = errors.New("Capacidade mínima inválida.")
)

const (
	codeBadRequest         = "bad_request"
	codeValidation         = "validation_error"
	codeUnauthorized       = "unauthorized"
	codeInvalidCredentials = "invalid_credentials"
	codeForbidden          = "forbidden"
	codeAccountBlocked     = "account_blocked"
	codeNotFound           = "not_found"
	codeMethodNotAllowed   = "method_not_allowed"
	codeConflict           = "conflict"
	codeTooManyRequests    = "too_many_requests"
	codeInternal           = "internal_error"
	codeUnavailable        = "service_unavailable"
)

type responder struct {
	logger        *slog.Logger
	exposeDetails bool
}

func newResponder(logger *slog.Logger, exposeDetails bool) responder {
	return responder{logger: defaultLogger(logger), exposeDetails: exposeDetails}
}

func (r responder) writeJSON(ctx context.Context, w http.ResponseWriter, status int, payload any) {
	if w == nil {
		return
	}

	if status == http.StatusNoContent || payload == nil {
		w.WriteHeader(status)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		r.loggerFor(ctx).ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

// writeError answers with the default message for status unless err carries one.
func (r responder) writeError(ctx context.Context, w http.ResponseWriter, status int, err error) {
	message := localizedStatusMessage(status)
	if err != nil {
		if msg := strings.TrimSpace(err.Error()); msg != "" {
			message = msg
		}
	}
	r.writeJSON(ctx, w, status, errorResponse{Code: statusCode(status), Message: message})
}

func (r responder) handleServiceError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		r.writeError(ctx, w, http.StatusInternalServerError, nil)
		return
	}

	var (
		vErr     *application.ValidationError
		conflict *application.ConflictError
	)
	switch {
	case errors.As(err, &vErr):
		r.writeJSON(ctx, w, http.StatusBadRequest, errorResponse{
			Code:    codeValidation,
			Message: validationSummary(vErr),
			Errors:  localizeValidationErrors(vErr),
		})
	case errors.As(err, &conflict):
		r.writeJSON(ctx, w, http.StatusConflict, conflictResponse{
			Code:      codeConflict,
			Message:   "Sala já está ocupada neste horário.",
			Conflicts: toReservationDTOs(conflict.Conflicts),
		})
	case errors.Is(err, application.ErrInvalidCredentials):
		r.writeJSON(ctx, w, http.StatusUnauthorized, errorResponse{Code: codeInvalidCredentials, Message: "Usuário ou senha inválidos."})
	case errors.Is(err, application.ErrExternalAccount):
		r.writeJSON(ctx, w, http.StatusUnauthorized, errorResponse{Code: codeInvalidCredentials, Message: "Usuário cadastrado via Google. Use login com Google."})
	case errors.Is(err, application.ErrSessionExpired):
		r.writeJSON(ctx, w, http.StatusUnauthorized, errorResponse{Code: codeUnauthorized, Message: "Sessão expirada. Faça login novamente."})
	case errors.Is(err, application.ErrSessionRevoked):
		r.writeJSON(ctx, w, http.StatusUnauthorized, errorResponse{Code: codeUnauthorized, Message: "Sessão encerrada. Faça login novamente."})
	case errors.Is(err, application.ErrAccountDisabled):
		r.writeJSON(ctx, w, http.StatusForbidden, errorResponse{Code: codeAccountBlocked, Message: "Conta bloqueada. Procure um administrador."})
	case errors.Is(err, application.ErrUnauthorized):
		r.writeJSON(ctx, w, http.StatusForbidden, errorResponse{Code: codeForbidden, Message: "Você não tem permissão para executar esta operação."})
	case errors.Is(err, application.ErrNotFound):
		r.writeJSON(ctx, w, http.StatusNotFound, errorResponse{Code: codeNotFound, Message: "Recurso não encontrado."})
	case errors.Is(err, application.ErrAlreadyExists):
		r.writeJSON(ctx, w, http.StatusConflict, errorResponse{Code: codeConflict, Message: "Registro já existe."})
	case errors.Is(err, application.ErrInUse):
		r.writeJSON(ctx, w, http.StatusConflict, errorResponse{Code: codeConflict, Message: "Registro em uso não pode ser removido."})
	case errors.Is(err, application.ErrConflict):
		r.writeJSON(ctx, w, http.StatusConflict, errorResponse{Code: codeConflict, Message: "Sala já está ocupada neste horário."})
	case errors.Is(err, application.ErrStaleReservation):
		r.writeJSON(ctx, w, http.StatusConflict, errorResponse{Code: codeConflict, Message: "O agendamento foi alterado por outra operação. Tente novamente."})
	case errors.Is(err, application.ErrNotConfigured):
		r.writeJSON(ctx, w, http.StatusServiceUnavailable, errorResponse{Code: codeUnavailable, Message: "Recurso indisponível neste servidor."})
	default:
		r.loggerFor(ctx).ErrorContext(ctx, "unhandled service error", "error", err)
		resp := errorResponse{Code: codeInternal, Message: "Erro interno do servidor."}
		if r.exposeDetails {
			resp.Detail = err.Error()
		}
		r.writeJSON(ctx, w, http.StatusInternalServerError, resp)
	}
}

func (r responder) methodNotAllowed(ctx context.Context, w http.ResponseWriter, allowed ...string) {
	if len(allowed) > 0 {
		w.Header().Set("Allow", strings.Join(allowed, ", "))
	}
	r.writeError(ctx, w, http.StatusMethodNotAllowed, nil)
}

func (r responder) loggerFor(ctx context.Context) *slog.Logger {
	if logger := logging.FromContext(ctx); logger != nil {
		return logger
	}
	return r.logger
}

func statusCode(status int) string {
	switch status {
	case http.StatusBadRequest:
		return codeBadRequest
	case http.StatusUnauthorized:
		return codeUnauthorized
	case http.StatusForbidden:
		return codeForbidden
	case http.StatusNotFound:
		return codeNotFound
	case http.StatusMethodNotAllowed:
		return codeMethodNotAllowed
	case http.StatusConflict:
		return codeConflict
	case http.StatusTooManyRequests:
		return codeTooManyRequests
	case http.StatusServiceUnavailable:
		return codeUnavailable
	default:
		return codeInternal
	}
}

func localizedStatusMessage(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "Requisição inválida."
	case http.StatusUnauthorized:
		return "Autenticação necessária."
	case http.StatusForbidden:
		return "Você não tem permissão para executar esta operação."
	case http.StatusNotFound:
		return "Recurso não encontrado."
	case http.StatusMethodNotAllowed:
		return "Método não permitido."
	case http.StatusConflict:
		return "A requisição conflita com o estado atual do recurso."
	case http.StatusTooManyRequests:
		return "Muitas requisições. Tente novamente em instantes."
	default:
		return "Erro interno do servidor."
	}
}

// validationSummary returns the single field message when only one field failed.
func validationSummary(vErr *application.ValidationError) string {
	if vErr != nil && len(vErr.FieldErrors) == 1 {
		for _, msg := range vErr.FieldErrors {
			return translateValidationMessage(msg)
		}
	}
	return "Dados inválidos."
}

func localizeValidationErrors(vErr *application.ValidationError) map[string]string {
	if vErr == nil || len(vErr.FieldErrors) == 0 {
		return nil
	}

	translated := make(map[string]string, len(vErr.FieldErrors))
	for field, msg := range vErr.FieldErrors {
		translated[field] = translateValidationMessage(msg)
	}
	return translated
}

func translateValidationMessage(message string) string {
	switch message {
	case "email is required":
		return "Email é obrigatório."
	case "email is invalid":
		return "Email inválido."
	case "name is required", "required":
		return "Nome é obrigatório."
	case "username is required":
		return "Nome de usuário é obrigatório."
	case "username is already taken":
		return "Nome de usuário já está em uso."
	case "unknown role":
		return "Perfil desconhecido."
	case "department does not exist":
		return "Departamento não encontrado."
	case "status must be active or blocked":
		return "Status deve ser active ou blocked."
	case "administrators cannot block themselves":
		return "Administradores não podem bloquear a si mesmos."
	case "administrators cannot delete themselves":
		return "Administradores não podem excluir a si mesmos."
	case "capacity must be positive":
		return "Capacidade deve ser maior que zero."
	case "location does not exist":
		return "Localização não encontrada."
	case "location could not be verified":
		return "Não foi possível verificar a localização."
	case "state must be a two letter code":
		return "Estado deve ter 2 letras."
	case "postal code must have 8 digits":
		return "CEP deve ter 8 dígitos."
	case "department cannot be its own parent":
		return "Departamento não pode ser pai de si mesmo."
	case "parent department does not exist":
		return "Departamento pai não encontrado."
	case "title is required":
		return "Título é obrigatório."
	case "message is required":
		return "Mensagem é obrigatória."
	case "room is required":
		return "Sala é obrigatória."
	case "room does not exist":
		return "Sala não encontrada."
	case "room is not active":
		return "Sala inativa."
	case "room or user does not exist":
		return "Sala ou usuário não encontrado."
	case "recipient does not exist":
		return "Destinatário não encontrado."
	case "participants cannot be negative":
		return "Participantes não pode ser negativo."
	case "start is required":
		return "Data de início é obrigatória."
	case "end is required":
		return "Data de fim é obrigatória."
	case "end must be after start":
		return "Data de fim deve ser posterior à data de início."
	case "end of window must not precede its start":
		return "Fim do período deve ser posterior ao início."
	case "closed reservations cannot be changed":
		return "Agendamentos concluídos ou cancelados não podem ser alterados."
	case "unknown status":
		return "Status desconhecido."
	case "credential is required":
		return "Credencial do Google é obrigatória."
	default:
		switch {
		case strings.HasPrefix(message, "password must have at least"):
			return "Senha deve ter pelo menos" + strings.TrimPrefix(message, "password must have at least") + "."
		case strings.HasPrefix(message, "room holds at most"):
			return "Sala comporta no máximo" + strings.TrimSuffix(strings.TrimPrefix(message, "room holds at most"), " people") + " pessoas."
		case strings.HasPrefix(message, "cannot move from"):
			return "Transição de status inválida:" + strings.Replace(strings.TrimPrefix(message, "cannot move from"), " to ", " para ", 1) + "."
		}
		return message
	}
}

type errorResponse struct {
	Code    string            `json:"error"`
	Message string            `json:"message"`
	Errors  map[string]string `json:"errors,omitempty"`
	Detail  string            `json:"detail,omitempty"`
}

type conflictResponse struct {
	Code      string           `json:"error"`
	Message   string           `json:"message"`
	Conflicts []reservationDTO `json:"conflitos"`
}

// Package http exposes the booking API over JSON.
//
// Public endpoints:
//   - POST /auth {action: login|register|refresh|logout, ...} and GET /auth for
//     the current user.
//   - POST /register and POST /google-auth return {token, refreshToken, user}.
//   - GET /healthz and GET /metrics.
//
// Every other route requires an access token from the Authorization header
// or the session_token cookie:
//   - /salas, /salas/{id}, /salas/{id}/disponibilidade
//   - /agendamentos, /agendamentos/{id}, /agendamentos/{id}/cancelar
//   - /localizacoes, /departments, /users, /users/{id}/status
//   - /notifications, /notifications/{id}/read
//   - /admin/notifications, /admin/logs, /stats
//
// Errors are JSON objects {"error", "message", "errors"?, "detail"?} with
// pt-BR messages. Request and response DTOs live next to their handlers.
package http

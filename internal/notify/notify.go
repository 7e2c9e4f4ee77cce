// Package notify entrega avisos de preço aos usuários pelo Telegram.
package notify

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/codeGROOVE-dev/retry"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Outcome é o resultado de uma tentativa de entrega
type Outcome int

const (
	// Delivered indica que a mensagem foi aceita
	Delivered Outcome = iota
	// PermanentlyUnreachable indica usuário que bloqueou o bot ou não existe
	PermanentlyUnreachable
	// TransientFailure indica falha que pode passar numa próxima tentativa
	TransientFailure
)

func (o Outcome) String() string {
	switch o {
	case Delivered:
		return "delivered"
	case PermanentlyUnreachable:
		return "permanently_unreachable"
	case TransientFailure:
		return "transient_failure"
	default:
		return "unknown"
	}
}

// sender é a parte do BotAPI usada aqui
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Telegram envia mensagens HTML e classifica o resultado
type Telegram struct {
	api      sender
	attempts uint
	delay    time.Duration
	logger   *slog.Logger
}

// NewTelegram cria o notificador. attempts conta a primeira tentativa.
func NewTelegram(api sender, attempts uint, delay time.Duration, logger *slog.Logger) *Telegram {
	if attempts == 0 {
		attempts = 1
	}
	return &Telegram{
		api:      api,
		attempts: attempts,
		delay:    delay,
		logger:   logger,
	}
}

// Send entrega text ao usuário. Erros de rede, 429 e 5xx são repetidos;
// 403 e chat inexistente não são.
func (t *Telegram) Send(ctx context.Context, userID int64, text string) Outcome {
	var lastClass Outcome

	err := retry.Do(
		func() error {
			msg := tgbotapi.NewMessage(userID, text)
			msg.ParseMode = tgbotapi.ModeHTML
			_, err := t.api.Send(msg)
			if err != nil {
				lastClass = classify(err)
			}
			return err
		},
		retry.Attempts(t.attempts),
		retry.Delay(t.delay),
		retry.MaxJitter(t.delay),
		retry.Context(ctx),
		retry.OnRetry(func(n uint, err error) {
			t.logger.Info("Repetindo envio após erro", "user_id", userID, "attempt", n, "error", err)
		}),
		retry.RetryIf(func(err error) bool {
			return retryable(err)
		}),
	)

	if err == nil {
		return Delivered
	}
	if lastClass == PermanentlyUnreachable {
		t.logger.Warn("Usuário inalcançável", "user_id", userID, "error", err)
		return PermanentlyUnreachable
	}
	t.logger.Error("Falha ao enviar notificação", "user_id", userID, "error", err)
	return TransientFailure
}

// classify traduz o erro da API do Telegram num Outcome
func classify(err error) Outcome {
	var apiErr *tgbotapi.Error
	if !errors.As(err, &apiErr) {
		return TransientFailure
	}
	if apiErr.Code == http.StatusForbidden {
		return PermanentlyUnreachable
	}
	if apiErr.Code == http.StatusBadRequest && strings.Contains(strings.ToLower(apiErr.Message), "chat not found") {
		return PermanentlyUnreachable
	}
	return TransientFailure
}

// retryable indica se vale tentar de novo: falhas de rede, 429 e 5xx
func retryable(err error) bool {
	var apiErr *tgbotapi.Error
	if !errors.As(err, &apiErr) {
		return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
	}
	return apiErr.Code == http.StatusTooManyRequests || apiErr.Code >= 500
}

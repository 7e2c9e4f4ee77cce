// Package browser gerencia a única instância de navegador automatizado do processo.
package browser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
)

// ErrSessionUnavailable indica que o navegador não pôde ser (re)iniciado
var ErrSessionUnavailable = errors.New("sessão do navegador indisponível")

const probeTimeout = 5 * time.Second

// Tab é a aba controlada pela sessão. Não suporta comandos concorrentes.
type Tab interface {
	Navigate(ctx context.Context, url string) error
	WaitURLContains(ctx context.Context, fragment string) error
	WaitElement(ctx context.Context, selector string) error
	HTML(ctx context.Context) (string, error)
}

// Handle é uma instância viva do navegador
type Handle interface {
	Tab
	Ping(ctx context.Context) error
	Close() error
}

// Launcher inicia um navegador novo
type Launcher func(ctx context.Context) (Handle, error)

// Manager é dono do navegador e serializa todo acesso a ele.
// Toda navegação, seja do monitor ou de uma busca do usuário, segura o lock
// do começo da navegação até o fim da extração.
type Manager struct {
	lock   *semaphore.Weighted
	launch Launcher
	logger *slog.Logger

	mu     sync.Mutex // protege handle e closed
	handle Handle
	closed bool
}

// NewManager cria o gerenciador; o navegador só é iniciado no primeiro uso
func NewManager(launch Launcher, logger *slog.Logger) *Manager {
	return &Manager{
		lock:   semaphore.NewWeighted(1),
		launch: launch,
		logger: logger,
	}
}

// Do executa fn com acesso exclusivo a uma aba viva
func (m *Manager) Do(ctx context.Context, fn func(Tab) error) error {
	if err := m.lock.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("aguardando sessão: %w", err)
	}
	defer m.lock.Release(1)

	h, err := m.acquire(ctx)
	if err != nil {
		return err
	}
	return fn(h)
}

// acquire devolve o handle atual se ele responder; senão reinicia uma única vez
func (m *Manager) acquire(ctx context.Context) (Handle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, fmt.Errorf("%w: sessão encerrada", ErrSessionUnavailable)
	}

	if m.handle != nil {
		probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
		err := m.handle.Ping(probeCtx)
		cancel()
		if err == nil {
			return m.handle, nil
		}
		m.logger.Warn("Navegador não responde, reiniciando", "error", err)
		if cerr := m.handle.Close(); cerr != nil {
			m.logger.Debug("Erro ao fechar navegador antigo", "error", cerr)
		}
		m.handle = nil
	}

	h, err := m.launch(ctx)
	if err != nil {
		m.logger.Error("Não foi possível iniciar o navegador", "error", err)
		return nil, fmt.Errorf("%w: %v", ErrSessionUnavailable, err)
	}
	m.logger.Info("Navegador iniciado")
	m.handle = h
	return h, nil
}

// Close espera a operação em andamento terminar (limitado por ctx) e encerra o navegador.
// Se o prazo acabar antes, o navegador é encerrado mesmo assim, o que faz a operação
// em andamento falhar e liberar o lock.
func (m *Manager) Close(ctx context.Context) error {
	if err := m.lock.Acquire(ctx, 1); err != nil {
		m.logger.Warn("Operação em andamento não terminou, encerrando navegador à força")
		return m.shutdown()
	}
	defer m.lock.Release(1)
	return m.shutdown()
}

func (m *Manager) shutdown() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	if m.handle == nil {
		return nil
	}
	err := m.handle.Close()
	m.handle = nil
	m.logger.Info("Navegador encerrado")
	return err
}

package browser

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
)

// UserAgent é o user agent fixo de desktop usado pelo navegador
const UserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

const urlPollInterval = 200 * time.Millisecond

// RodLauncher retorna um Launcher que sobe um Chromium headless via rod.
// bin vazio deixa o rod localizar (ou baixar) o navegador.
func RodLauncher(bin string) Launcher {
	return func(ctx context.Context) (Handle, error) {
		l := launcher.New().
			Context(ctx).
			Headless(true).
			NoSandbox(true).
			Leakless(false).
			Set("disable-dev-shm-usage").
			Set("disable-blink-features", "AutomationControlled").
			Set("user-agent", UserAgent).
			Delete("enable-automation")
		if bin != "" {
			l = l.Bin(bin)
		}

		controlURL, err := l.Launch()
		if err != nil {
			return nil, fmt.Errorf("iniciar chromium: %w", err)
		}

		b := rod.New().ControlURL(controlURL)
		if err := b.Connect(); err != nil {
			l.Kill()
			return nil, fmt.Errorf("conectar ao chromium: %w", err)
		}

		page, err := b.Page(proto.TargetCreateTarget{URL: "about:blank"})
		if err != nil {
			_ = b.Close()
			l.Kill()
			return nil, fmt.Errorf("abrir aba: %w", err)
		}
		if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: UserAgent}); err != nil {
			_ = b.Close()
			l.Kill()
			return nil, fmt.Errorf("definir user agent: %w", err)
		}

		return &rodHandle{launcher: l, browser: b, page: page}, nil
	}
}

// rodHandle reaproveita uma única aba, como um driver com uma janela só
type rodHandle struct {
	launcher *launcher.Launcher
	browser  *rod.Browser
	page     *rod.Page
}

func (h *rodHandle) Navigate(ctx context.Context, url string) error {
	return h.page.Context(ctx).Navigate(url)
}

func (h *rodHandle) WaitURLContains(ctx context.Context, fragment string) error {
	ticker := time.NewTicker(urlPollInterval)
	defer ticker.Stop()

	for {
		info, err := h.page.Context(ctx).Info()
		if err == nil && strings.Contains(info.URL, fragment) {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (h *rodHandle) WaitElement(ctx context.Context, selector string) error {
	_, err := h.page.Context(ctx).Element(selector)
	return err
}

func (h *rodHandle) HTML(ctx context.Context) (string, error) {
	return h.page.Context(ctx).HTML()
}

// Ping é a sonda barata de vida: listar as abas exige um ida e volta ao navegador
func (h *rodHandle) Ping(ctx context.Context) error {
	_, err := h.browser.Context(ctx).Pages()
	return err
}

func (h *rodHandle) Close() error {
	err := h.browser.Close()
	h.launcher.Kill()
	h.launcher.Cleanup()
	return err
}

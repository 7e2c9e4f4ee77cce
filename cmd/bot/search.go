package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"bot-marketplaces/config"
	"bot-marketplaces/internal/models"
	"bot-marketplaces/internal/ranking"
)

var searchCmd = &cobra.Command{
	Use:   "search <ozon|wb|best> <consulta>",
	Short: "Buscar produtos pelo terminal",
	Long:  "Busca em uma loja (ozon, wb) ou nas duas (best) e imprime os resultados ordenados pela pontuação.",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("erro ao carregar configurações: %w", err)
		}
		a, err := newApp(cfg, newLogger(cfg))
		if err != nil {
			return err
		}
		defer a.close()

		query := strings.Join(args[1:], " ")
		var products []models.ProductRecord
		if strings.EqualFold(args[0], "best") {
			products = a.search.Best(ctx, query)
		} else {
			source, ok := models.ParseSource(args[0])
			if !ok {
				return fmt.Errorf("loja desconhecida %q: use ozon, wb ou best", args[0])
			}
			products = a.search.Store(ctx, source, query)
		}

		printProducts(cmd.OutOrStdout(), products)
		return nil
	},
}

var checkCmd = &cobra.Command{
	Use:   "check <artigo ou URL>",
	Short: "Carregar um produto do Ozon",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("erro ao carregar configurações: %w", err)
		}
		a, err := newApp(cfg, newLogger(cfg))
		if err != nil {
			return err
		}
		defer a.close()

		article, ok := a.ozon.ArticleFromInput(args[0])
		if !ok {
			return fmt.Errorf("artigo inválido: %q", args[0])
		}
		record, err := a.ozon.GetProductDetail(ctx, article)
		if err != nil {
			return fmt.Errorf("produto %s: %w", article, err)
		}
		printProducts(cmd.OutOrStdout(), []models.ProductRecord{*record})
		return nil
	},
}

func printProducts(w io.Writer, products []models.ProductRecord) {
	if len(products) == 0 {
		fmt.Fprintln(w, "Nada encontrado.")
		return
	}
	for i, p := range products {
		fmt.Fprintf(w, "%d. [%s] %s\n", i+1, p.Source.Title(), p.Name)
		fmt.Fprintf(w, "   preço: %d ₽", p.BasePrice.Whole())
		if p.AltPrice != nil {
			fmt.Fprintf(w, "  com cartão: %d ₽", p.AltPrice.Whole())
		}
		fmt.Fprintf(w, "\n   nota: %.1f  avaliações: %d  compras: %d  pontuação: %.2f\n", p.Rating, p.Reviews, p.Purchases, ranking.Score(p))
		fmt.Fprintf(w, "   %s\n", p.URL)
	}
}

func init() {
	rootCmd.AddCommand(searchCmd, checkCmd)
}

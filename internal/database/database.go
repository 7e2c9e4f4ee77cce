package database

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"bot-marketplaces/internal/models"

	_ "github.com/mattn/go-sqlite3"
)

// DB encapsula a conexão com o banco de dados.
// Cada método é uma única instrução atômica; não há transações com várias linhas.
type DB struct {
	conn   *sql.DB
	logger *slog.Logger
}

// New cria uma nova instância do banco de dados
func New(dbPath string, logger *slog.Logger) (*DB, error) {
	conn, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, err
	}

	db := &DB{conn: conn, logger: logger}

	if err := db.init(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("inicializar banco: %w", err)
	}

	logger.Info("Banco de dados inicializado com sucesso", "path", dbPath)
	return db, nil
}

// Close fecha a conexão com o banco de dados
func (db *DB) Close() error {
	return db.conn.Close()
}

// init cria as tabelas necessárias
func (db *DB) init() error {
	createTablesSQL := `
	CREATE TABLE IF NOT EXISTS favorites (
		user_id INTEGER NOT NULL,
		product_id TEXT NOT NULL,
		name TEXT,
		price INTEGER,
		PRIMARY KEY (user_id, product_id)
	);
	CREATE TABLE IF NOT EXISTS tracking (
		user_id INTEGER NOT NULL,
		product_id TEXT NOT NULL,
		source TEXT NOT NULL DEFAULT 'ozon',
		name TEXT,
		desired_price INTEGER NOT NULL,
		current_price INTEGER,
		last_check DATETIME,
		PRIMARY KEY (user_id, product_id)
	);
	`

	if _, err := db.conn.Exec(createTablesSQL); err != nil {
		return err
	}

	// Migração de bancos sem a coluna source
	// SQLite não suporta IF NOT EXISTS em ALTER TABLE, então ignoramos o erro
	_, _ = db.conn.Exec("ALTER TABLE tracking ADD COLUMN source TEXT NOT NULL DEFAULT 'ozon'")

	return nil
}

// UpsertFavorite salva (ou substitui) um favorito
func (db *DB) UpsertFavorite(ctx context.Context, f models.FavoriteItem) error {
	_, err := db.conn.ExecContext(ctx,
		"INSERT OR REPLACE INTO favorites (user_id, product_id, name, price) VALUES (?, ?, ?, ?)",
		f.UserID, f.Article, f.Name, f.Price,
	)
	return err
}

// DeleteFavorite remove um favorito; remover algo inexistente não é erro
func (db *DB) DeleteFavorite(ctx context.Context, key models.FavoriteKey) error {
	_, err := db.conn.ExecContext(ctx,
		"DELETE FROM favorites WHERE user_id = ? AND product_id = ?",
		key.UserID, key.Article,
	)
	return err
}

// ListFavorites retorna os favoritos de um usuário
func (db *DB) ListFavorites(ctx context.Context, userID int64) ([]models.FavoriteItem, error) {
	rows, err := db.conn.QueryContext(ctx,
		"SELECT user_id, product_id, name, price FROM favorites WHERE user_id = ? ORDER BY rowid",
		userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var favorites []models.FavoriteItem
	for rows.Next() {
		var f models.FavoriteItem
		var name sql.NullString
		var price sql.NullInt64
		if err := rows.Scan(&f.UserID, &f.Article, &name, &price); err != nil {
			return nil, err
		}
		f.Name = name.String
		f.Price = price.Int64
		favorites = append(favorites, f)
	}
	return favorites, rows.Err()
}

// FavoriteExists verifica se o favorito já existe
func (db *DB) FavoriteExists(ctx context.Context, key models.FavoriteKey) (bool, error) {
	return db.exists(ctx,
		"SELECT 1 FROM favorites WHERE user_id = ? AND product_id = ?",
		key.UserID, key.Article,
	)
}

// UpsertWatch salva (ou substitui) um item monitorado
func (db *DB) UpsertWatch(ctx context.Context, w models.WatchItem) error {
	source := w.Source
	if source == "" {
		source = models.SourceOzon
	}
	_, err := db.conn.ExecContext(ctx,
		"INSERT OR REPLACE INTO tracking (user_id, product_id, source, name, desired_price, current_price, last_check) VALUES (?, ?, ?, ?, ?, ?, ?)",
		w.UserID, w.Article, string(source), w.Name, w.DesiredPrice, w.CurrentPrice, nullTime(w.LastCheck),
	)
	return err
}

// DeleteWatch remove um item monitorado
func (db *DB) DeleteWatch(ctx context.Context, key models.WatchKey) error {
	_, err := db.conn.ExecContext(ctx,
		"DELETE FROM tracking WHERE user_id = ? AND product_id = ?",
		key.UserID, key.Article,
	)
	return err
}

// ListWatch retorna os itens monitorados de um usuário
func (db *DB) ListWatch(ctx context.Context, userID int64) ([]models.WatchItem, error) {
	return db.queryWatch(ctx, "WHERE user_id = ? ORDER BY rowid", userID)
}

// ListAllWatch retorna todos os itens monitorados, de todos os usuários
func (db *DB) ListAllWatch(ctx context.Context) ([]models.WatchItem, error) {
	return db.queryWatch(ctx, "ORDER BY rowid")
}

// UpdateWatchPrice grava o último preço observado e o horário da verificação
func (db *DB) UpdateWatchPrice(ctx context.Context, key models.WatchKey, price int64, checkedAt time.Time) error {
	_, err := db.conn.ExecContext(ctx,
		"UPDATE tracking SET current_price = ?, last_check = ? WHERE user_id = ? AND product_id = ?",
		price, nullTime(checkedAt), key.UserID, key.Article,
	)
	return err
}

// WatchExists verifica se o usuário já monitora o artigo
func (db *DB) WatchExists(ctx context.Context, key models.WatchKey) (bool, error) {
	return db.exists(ctx,
		"SELECT 1 FROM tracking WHERE user_id = ? AND product_id = ?",
		key.UserID, key.Article,
	)
}

func (db *DB) queryWatch(ctx context.Context, clause string, args ...any) ([]models.WatchItem, error) {
	rows, err := db.conn.QueryContext(ctx,
		"SELECT user_id, product_id, source, name, desired_price, current_price, last_check FROM tracking "+clause,
		args...,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []models.WatchItem
	for rows.Next() {
		var w models.WatchItem
		var source string
		var name sql.NullString
		var current sql.NullInt64
		var lastCheck sql.NullTime
		if err := rows.Scan(&w.UserID, &w.Article, &source, &name, &w.DesiredPrice, &current, &lastCheck); err != nil {
			return nil, err
		}
		w.Source = models.Source(source)
		w.Name = name.String
		w.CurrentPrice = current.Int64
		if lastCheck.Valid {
			w.LastCheck = lastCheck.Time
		}
		items = append(items, w)
	}
	return items, rows.Err()
}

func (db *DB) exists(ctx context.Context, query string, args ...any) (bool, error) {
	var one int
	err := db.conn.QueryRowContext(ctx, query, args...).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func nullTime(t time.Time) sql.NullTime {
	if t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

package main

import (
	"database/sql"
	"fmt"
	"log"
	"os"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
	"golang.org/x/crypto/bcrypt"
)

func main() {
	// Загружаем переменные окружения из .env файла
	if err := godotenv.Load(); err != nil {
		log.Println("Файл .env не найден, используем переменные окружения")
	}

	dsn := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		env("PG_HOST", "localhost"), env("PG_PORT", "5432"),
		env("PG_USER", "postgres"), env("PG_PASSWORD", "postgres"),
		env("PG_DATABASE", "botfactory"), env("PG_SSLMODE", "disable"),
	)

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		log.Fatalf("Ошибка подключения к базе данных: %v", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		log.Fatalf("Ошибка проверки соединения с БД: %v", err)
	}
	log.Println("Успешное подключение к базе данных")

	createTables(db)
	seedDemo(db)

	log.Println("База данных успешно инициализирована")
}

func env(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// Создание таблиц базы данных
func createTables(db *sql.DB) {
	// Таблица пользователей платформы (владельцы ботов)
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS users (
			id BIGSERIAL PRIMARY KEY,
			email TEXT NOT NULL UNIQUE,
			username TEXT NOT NULL UNIQUE,
			hashed_password TEXT NOT NULL,
			full_name TEXT,
			phone TEXT,
			subscription_type TEXT NOT NULL DEFAULT 'free',
			subscription_expires_at TIMESTAMPTZ,
			messages_this_month INTEGER NOT NULL DEFAULT 0,
			messages_reset_at TIMESTAMPTZ,
			is_active BOOLEAN NOT NULL DEFAULT TRUE,
			is_admin BOOLEAN NOT NULL DEFAULT FALSE,
			last_login_at TIMESTAMPTZ,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`)
	if err != nil {
		log.Fatalf("Ошибка создания таблицы users: %v", err)
	}

	// Таблица ботов
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS bots (
			id BIGSERIAL PRIMARY KEY,
			user_id BIGINT NOT NULL REFERENCES users (id) ON DELETE CASCADE,
			name TEXT NOT NULL,
			description TEXT,
			platform TEXT NOT NULL DEFAULT 'telegram',
			token TEXT NOT NULL UNIQUE,
			webhook_url TEXT,
			language TEXT NOT NULL DEFAULT 'uz',
			system_prompt TEXT,
			temperature REAL NOT NULL DEFAULT 0.7,
			max_tokens INTEGER NOT NULL DEFAULT 1000,
			settings JSONB NOT NULL DEFAULT '{}',
			status TEXT NOT NULL DEFAULT 'pending',
			is_active BOOLEAN NOT NULL DEFAULT FALSE,
			error_message TEXT,
			total_messages BIGINT NOT NULL DEFAULT 0,
			total_users BIGINT NOT NULL DEFAULT 0,
			last_message_at TIMESTAMPTZ,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_bots_user_id ON bots (user_id);
	`)
	if err != nil {
		log.Fatalf("Ошибка создания таблицы bots: %v", err)
	}

	// Таблица базы знаний
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS knowledge_base (
			id BIGSERIAL PRIMARY KEY,
			bot_id BIGINT NOT NULL REFERENCES bots (id) ON DELETE CASCADE,
			title TEXT NOT NULL,
			content TEXT NOT NULL,
			source_type TEXT NOT NULL DEFAULT 'text',
			source_url TEXT,
			question TEXT,
			answer TEXT,
			extra_data JSONB,
			chunk_index INTEGER,
			total_chunks INTEGER,
			parent_id BIGINT REFERENCES knowledge_base (id) ON DELETE CASCADE,
			hit_count BIGINT NOT NULL DEFAULT 0,
			is_active BOOLEAN NOT NULL DEFAULT TRUE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_knowledge_bot_id ON knowledge_base (bot_id);
	`)
	if err != nil {
		log.Fatalf("Ошибка создания таблицы knowledge_base: %v", err)
	}

	// Таблица истории диалогов
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS chat_history (
			id BIGSERIAL PRIMARY KEY,
			bot_id BIGINT NOT NULL REFERENCES bots (id) ON DELETE CASCADE,
			platform_user_id TEXT NOT NULL,
			platform_username TEXT,
			session_id TEXT NOT NULL,
			role TEXT NOT NULL,
			message_type TEXT NOT NULL DEFAULT 'text',
			content TEXT NOT NULL,
			media_url TEXT,
			ai_model TEXT,
			tokens_used INTEGER,
			response_time_ms INTEGER,
			context_ids JSONB,
			feedback_score INTEGER,
			feedback_text TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_chat_bot_user ON chat_history (bot_id, platform_user_id, created_at);
		CREATE INDEX IF NOT EXISTS idx_chat_session ON chat_history (session_id, created_at);
	`)
	if err != nil {
		log.Fatalf("Ошибка создания таблицы chat_history: %v", err)
	}

	// Таблица платежей
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS payments (
			id BIGSERIAL PRIMARY KEY,
			user_id BIGINT NOT NULL REFERENCES users (id) ON DELETE CASCADE,
			provider TEXT NOT NULL,
			amount BIGINT NOT NULL,
			currency TEXT NOT NULL DEFAULT 'UZS',
			status TEXT NOT NULL DEFAULT 'pending',
			transaction_id TEXT NOT NULL UNIQUE,
			provider_tx_id TEXT,
			subscription_type TEXT NOT NULL,
			subscription_months INTEGER NOT NULL DEFAULT 1,
			state INTEGER NOT NULL DEFAULT 0,
			create_time BIGINT NOT NULL DEFAULT 0,
			perform_time BIGINT NOT NULL DEFAULT 0,
			cancel_time BIGINT NOT NULL DEFAULT 0,
			cancel_reason INTEGER,
			payment_url TEXT,
			return_url TEXT,
			paid_at TIMESTAMPTZ,
			expires_at TIMESTAMPTZ,
			error_code TEXT,
			error_message TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_payments_user_id ON payments (user_id);
		CREATE INDEX IF NOT EXISTS idx_payments_provider_tx ON payments (provider, provider_tx_id);
	`)
	if err != nil {
		log.Fatalf("Ошибка создания таблицы payments: %v", err)
	}

	log.Println("Все таблицы успешно созданы")
}

// Демо-данные для локальной разработки
func seedDemo(db *sql.DB) {
	passwordHash, err := bcrypt.GenerateFromPassword([]byte("demo12345"), bcrypt.DefaultCost)
	if err != nil {
		log.Fatalf("Ошибка хеширования пароля: %v", err)
	}

	var userID int64
	err = db.QueryRow(`
		INSERT INTO users (email, username, hashed_password, full_name, subscription_type, is_active)
		VALUES ($1, $2, $3, $4, 'free', TRUE)
		ON CONFLICT (email) DO UPDATE SET username = EXCLUDED.username
		RETURNING id
	`, "demo@botfactory.uz", "demo", string(passwordHash), "Demo Foydalanuvchi").Scan(&userID)
	if err != nil {
		log.Fatalf("Ошибка создания демо-пользователя: %v", err)
	}
	log.Printf("Создан демо-пользователь с ID: %d (demo@botfactory.uz / demo12345)", userID)

	var botID int64
	err = db.QueryRow(`
		INSERT INTO bots (user_id, name, description, platform, token, language, status)
		VALUES ($1, $2, $3, 'telegram', $4, 'uz', 'pending')
		ON CONFLICT (token) DO UPDATE SET name = EXCLUDED.name
		RETURNING id
	`, userID, "Demo Bot", "Demo savdo yordamchisi", "000000:demo-token").Scan(&botID)
	if err != nil {
		log.Fatalf("Ошибка создания демо-бота: %v", err)
	}
	log.Printf("Создан демо-бот с ID: %d", botID)

	items := []struct {
		title, content, sourceType, question, answer string
	}{
		{
			title:      "Ish vaqti",
			content:    "Dushanba-Shanba 9:00-18:00",
			sourceType: "faq",
			question:   "Ish vaqtingiz qanday?",
			answer:     "Biz Dushanba-Shanba kunlari 9:00 dan 18:00 gacha ishlaymiz.",
		},
		{
			title:      "Yetkazib berish",
			content:    "Toshkent bo'ylab yetkazib berish 1 kun ichida, viloyatlarga 2-3 kun.",
			sourceType: "text",
		},
	}
	for _, it := range items {
		_, err = db.Exec(`
			INSERT INTO knowledge_base (bot_id, title, content, source_type, question, answer)
			VALUES ($1, $2, $3, $4, NULLIF($5, ''), NULLIF($6, ''))
		`, botID, it.title, it.content, it.sourceType, it.question, it.answer)
		if err != nil {
			log.Fatalf("Ошибка добавления записи базы знаний %q: %v", it.title, err)
		}
	}
	log.Printf("Добавлено %d демо-записей базы знаний", len(items))
}

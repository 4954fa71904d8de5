package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadConfig_Defaults(t *testing.T) {
	for _, key := range []string{"APP_PORT", "STORE_DRIVER", "GENERATION_COST", "WELCOME_BONUS", "MIN_RECHARGE", "SIREN_INTERVAL", "GALLERY_MAX_IMAGES"} {
		t.Setenv(key, "")
	}

	cfg := LoadConfig()

	assert.Equal(t, "8080", cfg.AppPort)
	assert.Equal(t, DriverMySQL, cfg.StoreDriver)
	assert.Equal(t, int64(500), cfg.GalleryMaxImages)
	assert.Equal(t, 5*time.Second, cfg.SirenInterval)
	p := cfg.Policy()
	assert.Equal(t, int64(3), p.GenerationCost)
	assert.Equal(t, int64(10), p.WelcomeBonus)
	assert.Equal(t, int64(50), p.MinRecharge)
}

func TestLoadConfig_Overrides(t *testing.T) {
	t.Setenv("GENERATION_COST", "5")
	t.Setenv("SIREN_INTERVAL", "30s")
	t.Setenv("TELEGRAM_ADMIN_CHAT_ID", "-1001234567890")
	t.Setenv("REDIS_DB", "not-a-number")

	cfg := LoadConfig()

	assert.Equal(t, int64(5), cfg.Policy().GenerationCost)
	assert.Equal(t, 30*time.Second, cfg.SirenInterval)
	assert.Equal(t, int64(-1001234567890), cfg.TelegramChatID)
	assert.Equal(t, 0, cfg.RedisDB)
}

func TestDSNs(t *testing.T) {
	cfg := &Config{DBUser: "u", DBPassword: "p", DBHost: "db", DBName: "studio"}
	assert.Equal(t, "u:p@tcp(db:3306)/studio?charset=utf8mb4&parseTime=True&loc=Local", cfg.MySQLDSN())
	assert.Equal(t, "host=db user=u password=p dbname=studio port=5432 sslmode=disable", cfg.PostgresDSN())

	cfg.DatabaseURL = "postgres://x"
	assert.Equal(t, "postgres://x", cfg.PostgresDSN())
}

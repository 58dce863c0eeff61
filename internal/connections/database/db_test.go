package database

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"qr-ordering/internal/common/config"
)

func TestDSNEscapesCredentials(t *testing.T) {
	dsn := DSN(config.DB{Host: "db", Port: 5432, User: "app", Pass: "p@ss/word", Name: "orders", SSLMode: "disable"})
	assert.Equal(t, "postgres://app:p%40ss%2Fword@db:5432/orders?sslmode=disable", dsn)
}

func TestSchemaHasTokenCounter(t *testing.T) {
	assert.Contains(t, schema, "order_token_counters")
	assert.Contains(t, schema, "order_status_log")
}
